package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByJobID struct {
	JobID uuid.UUID
}

func (s ByJobID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("job_id = ?", s.JobID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// OrderByStarted orders commands in execution order.
type OrderByStarted struct{}

func (s OrderByStarted) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("started_at ASC")
}
