package contract

import (
	"context"

	"ctfpilot-be/internal/entity"
	"ctfpilot-be/internal/repository/specification"

	"github.com/google/uuid"
)

type FlagCandidateRepository interface {
	Create(ctx context.Context, candidate *entity.FlagCandidate) error
	CreateBulk(ctx context.Context, candidates []*entity.FlagCandidate) error
	DeleteByJobId(ctx context.Context, jobId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.FlagCandidate, error)
}
