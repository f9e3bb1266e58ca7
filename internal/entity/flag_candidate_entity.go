package entity

import (
	"github.com/google/uuid"
)

type FlagCandidate struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobId uuid.UUID

	Value      string
	Confidence float64
	Source     string
	EvidenceId string
	Context    string
}
