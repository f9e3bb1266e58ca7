package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

const DefaultFlagFormat = `CTF\{[^}]+\}`

type TimelineEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
}

type Job struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title       string
	Description string
	FlagFormat  string
	Status      string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	InputFiles       []string
	CommandsExecuted int

	ErrorMessage string
	Timeline     []TimelineEvent
}

// CanRun reports whether the job is in a state that allows queueing.
func (j *Job) CanRun() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusFailed
}
