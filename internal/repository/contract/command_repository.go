package contract

import (
	"context"

	"ctfpilot-be/internal/entity"
	"ctfpilot-be/internal/repository/specification"

	"github.com/google/uuid"
)

type CommandRepository interface {
	Create(ctx context.Context, command *entity.Command) error
	CreateBulk(ctx context.Context, commands []*entity.Command) error
	DeleteByJobId(ctx context.Context, jobId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Command, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
