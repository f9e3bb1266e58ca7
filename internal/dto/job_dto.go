package dto

import (
	"time"

	"ctfpilot-be/internal/entity"

	"github.com/google/uuid"
)

type CreateJobRequest struct {
	Title       string `json:"title" form:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" form:"description" validate:"required,max=10000"`
	FlagFormat  string `json:"flag_format" form:"flag_format"`
}

type JobSummaryResponse struct {
	Id               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	InputFiles       []string   `json:"input_files"`
	CommandsExecuted int        `json:"commands_executed"`
}

type JobDetailResponse struct {
	Id               uuid.UUID               `json:"id"`
	Title            string                  `json:"title"`
	Description      string                  `json:"description"`
	FlagFormat       string                  `json:"flag_format"`
	Status           string                  `json:"status"`
	CreatedAt        time.Time               `json:"created_at"`
	StartedAt        *time.Time              `json:"started_at"`
	CompletedAt      *time.Time              `json:"completed_at"`
	InputFiles       []string                `json:"input_files"`
	CommandsExecuted int                     `json:"commands_executed"`
	ErrorMessage     string                  `json:"error_message,omitempty"`
	Timeline         []entity.TimelineEvent  `json:"timeline"`
	FlagCandidates   []FlagCandidateResponse `json:"flag_candidates"`
}

type JobListResponse struct {
	Jobs   []*JobSummaryResponse `json:"jobs"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type RunJobResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type CommandResponse struct {
	Id              string     `json:"id"`
	Tool            string     `json:"tool"`
	Arguments       []string   `json:"arguments"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	ExitCode        *int       `json:"exit_code"`
	StdoutTruncated string     `json:"stdout_truncated"`
	Stderr          string     `json:"stderr"`
	OutputHash      string     `json:"output_hash,omitempty"`
}

type CommandListResponse struct {
	Commands []*CommandResponse `json:"commands"`
}

type FlagCandidateResponse struct {
	Id         uuid.UUID `json:"id"`
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	EvidenceId string    `json:"evidence_id,omitempty"`
	Context    string    `json:"context,omitempty"`
}

type ArtifactInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	Hash string `json:"hash,omitempty"`
}

type ArtifactListResponse struct {
	Artifacts []ArtifactInfo `json:"artifacts"`
}

type JobFilesResponse struct {
	Files []string `json:"files"`
}

type TerminalCommandRequest struct {
	Tool      string   `json:"tool" validate:"required"`
	Arguments []string `json:"arguments"`
}

type TerminalCommandResponse struct {
	ExitCode   int     `json:"exit_code"`
	Stdout     string  `json:"stdout"`
	Stderr     string  `json:"stderr"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"duration_ms,omitempty"`
}

// RunAnalysisMessage is the work-queue payload for a queued job.
type RunAnalysisMessage struct {
	JobId uuid.UUID `json:"job_id"`
}

// Kinds of in-process stream messages relayed to websocket clients.
const (
	StreamKindProgress = "progress"
	StreamKindLog      = "log"
	StreamKindComplete = "complete"
)

// JobStreamMessage is published on the internal update bus by the analysis
// worker and forwarded to connected websocket clients.
type JobStreamMessage struct {
	JobId          string                   `json:"job_id"`
	Kind           string                   `json:"kind"`
	Status         string                   `json:"status,omitempty"`
	Progress       int                      `json:"progress,omitempty"`
	Message        string                   `json:"message,omitempty"`
	Entry          string                   `json:"entry,omitempty"`
	Level          string                   `json:"level,omitempty"`
	FlagCandidates []map[string]interface{} `json:"flag_candidates,omitempty"`
	ErrorMessage   string                   `json:"error_message,omitempty"`
}
