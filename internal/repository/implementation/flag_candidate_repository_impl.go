package implementation

import (
	"context"

	"ctfpilot-be/internal/entity"
	"ctfpilot-be/internal/mapper"
	"ctfpilot-be/internal/model"
	"ctfpilot-be/internal/repository/contract"
	"ctfpilot-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FlagCandidateRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.FlagCandidateMapper
}

func NewFlagCandidateRepository(db *gorm.DB) contract.FlagCandidateRepository {
	return &FlagCandidateRepositoryImpl{
		db:     db,
		mapper: mapper.NewFlagCandidateMapper(),
	}
}

func (r *FlagCandidateRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *FlagCandidateRepositoryImpl) Create(ctx context.Context, candidate *entity.FlagCandidate) error {
	m := r.mapper.ToModel(candidate)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*candidate = *r.mapper.ToEntity(m)
	return nil
}

func (r *FlagCandidateRepositoryImpl) CreateBulk(ctx context.Context, candidates []*entity.FlagCandidate) error {
	if len(candidates) == 0 {
		return nil
	}
	models := r.mapper.ToModels(candidates)
	return r.db.WithContext(ctx).Create(models).Error
}

func (r *FlagCandidateRepositoryImpl) DeleteByJobId(ctx context.Context, jobId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobId).Delete(&model.FlagCandidate{}).Error
}

func (r *FlagCandidateRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.FlagCandidate, error) {
	var models []*model.FlagCandidate
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
