package unitofwork

import (
	"context"

	"ctfpilot-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	JobRepository() contract.JobRepository
	CommandRepository() contract.CommandRepository
	FlagCandidateRepository() contract.FlagCandidateRepository
}
