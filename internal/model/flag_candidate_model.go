package model

import (
	"github.com/google/uuid"
)

type FlagCandidate struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	JobId uuid.UUID `gorm:"type:uuid;not null;index"`

	Value      string  `gorm:"type:varchar(500);not null"`
	Confidence float64 `gorm:"default:0.5"`
	Source     string  `gorm:"type:varchar(200);not null"`
	EvidenceId string  `gorm:"type:varchar(50)"`
	Context    string  `gorm:"type:text"`
}

func (FlagCandidate) TableName() string {
	return "flag_candidates"
}
