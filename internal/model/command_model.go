package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Command struct {
	Id    string    `gorm:"type:varchar(50);primaryKey"`
	JobId uuid.UUID `gorm:"type:uuid;not null;index"`

	Tool      string         `gorm:"type:varchar(100);not null"`
	Arguments datatypes.JSON `gorm:"type:jsonb"`

	StartedAt   time.Time `gorm:"autoCreateTime"`
	CompletedAt *time.Time
	ExitCode    *int

	Stdout          string `gorm:"type:text"`
	Stderr          string `gorm:"type:text"`
	StdoutTruncated string `gorm:"type:text"`

	OutputHash string `gorm:"type:varchar(100)"`
}

func (Command) TableName() string {
	return "commands"
}
