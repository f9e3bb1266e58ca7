package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Message types on the job-update feed.
const (
	TypeJobUpdate = "job_update"
	TypeJobLog    = "job_log"
)

// Heartbeat sentinels. The ack is a bare literal, not JSON, and must be
// recognized before any parse attempt.
const (
	heartbeatPing = "ping"
	heartbeatPong = "pong"
)

// FlagCandidateSummary is the wire shape of one candidate attached to a
// completion update.
type FlagCandidateSummary struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// UpdatePayload carries the optional fields of a job update. Absence means
// "unchanged", so every scalar is a pointer; consumers merge, never
// overwrite.
type UpdatePayload struct {
	Status         *string                `json:"status,omitempty"`
	Progress       *int                   `json:"progress,omitempty"`
	Message        *string                `json:"message,omitempty"`
	Completed      *bool                  `json:"completed,omitempty"`
	FlagCandidates []FlagCandidateSummary `json:"flag_candidates,omitempty"`
	ErrorMessage   *string                `json:"error_message,omitempty"`
	Level          *string                `json:"level,omitempty"`
}

// JobUpdate is one inbound feed message.
type JobUpdate struct {
	Type     string        `json:"type"`
	JobID    string        `json:"job_id"`
	JobTitle string        `json:"job_title,omitempty"`
	Data     UpdatePayload `json:"data"`
}

// parseMessage decodes a raw frame. It returns (nil, nil) for a heartbeat
// ack and an error for malformed payloads; malformed frames are expected
// noise, not connection failures.
func parseMessage(raw []byte) (*JobUpdate, error) {
	if string(bytes.TrimSpace(raw)) == heartbeatPong {
		return nil, nil
	}

	var update JobUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, fmt.Errorf("malformed feed message: %w", err)
	}
	return &update, nil
}

// JobSnapshot is the most recent merged view of one job's live fields.
type JobSnapshot struct {
	JobTitle       string
	Status         string
	Progress       int
	Message        string
	Completed      bool
	FlagCandidates []FlagCandidateSummary
	ErrorMessage   string
}

// merge applies an update payload field-by-field; nil fields leave the
// snapshot untouched.
func (s *JobSnapshot) merge(update *JobUpdate) {
	if update.JobTitle != "" {
		s.JobTitle = update.JobTitle
	}
	p := update.Data
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Progress != nil {
		s.Progress = *p.Progress
	}
	if p.Message != nil {
		s.Message = *p.Message
	}
	if p.Completed != nil {
		s.Completed = *p.Completed
	}
	if p.FlagCandidates != nil {
		s.FlagCandidates = p.FlagCandidates
	}
	if p.ErrorMessage != nil {
		s.ErrorMessage = *p.ErrorMessage
	}
}

// EndpointURL derives the feed address from the API origin: https maps to
// wss, http to ws, and the job id scopes the path when present.
func EndpointURL(baseURL, jobID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
		// already a feed scheme
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/ws/jobs"
	if jobID != "" {
		u.Path += "/" + jobID
	}
	return u.String(), nil
}
