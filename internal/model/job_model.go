package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Job struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title       string    `gorm:"type:varchar(200);not null"`
	Description string    `gorm:"type:text;not null"`
	FlagFormat  string    `gorm:"type:varchar(500);default:'CTF\\{[^}]+\\}'"`
	Status      string    `gorm:"type:varchar(20);not null;index"`

	CreatedAt   time.Time `gorm:"autoCreateTime"`
	StartedAt   *time.Time
	CompletedAt *time.Time

	InputFiles       datatypes.JSON `gorm:"type:jsonb"`
	CommandsExecuted int            `gorm:"default:0"`

	ErrorMessage string         `gorm:"type:text"`
	Timeline     datatypes.JSON `gorm:"type:jsonb"`
}

func (Job) TableName() string {
	return "jobs"
}
