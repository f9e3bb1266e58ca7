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

type CommandRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CommandMapper
}

func NewCommandRepository(db *gorm.DB) contract.CommandRepository {
	return &CommandRepositoryImpl{
		db:     db,
		mapper: mapper.NewCommandMapper(),
	}
}

func (r *CommandRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CommandRepositoryImpl) Create(ctx context.Context, command *entity.Command) error {
	m := r.mapper.ToModel(command)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*command = *r.mapper.ToEntity(m)
	return nil
}

func (r *CommandRepositoryImpl) CreateBulk(ctx context.Context, commands []*entity.Command) error {
	if len(commands) == 0 {
		return nil
	}
	models := r.mapper.ToModels(commands)
	return r.db.WithContext(ctx).Create(models).Error
}

func (r *CommandRepositoryImpl) DeleteByJobId(ctx context.Context, jobId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobId).Delete(&model.Command{}).Error
}

func (r *CommandRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Command, error) {
	var models []*model.Command
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *CommandRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Command{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
