package entity

import (
	"time"

	"github.com/google/uuid"
)

type Command struct {
	Id    string `gorm:"primaryKey"`
	JobId uuid.UUID

	Tool      string
	Arguments []string

	StartedAt   time.Time
	CompletedAt *time.Time
	ExitCode    *int

	Stdout          string
	Stderr          string
	StdoutTruncated string

	OutputHash string
}
