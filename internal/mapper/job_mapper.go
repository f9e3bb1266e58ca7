package mapper

import (
	"encoding/json"

	"ctfpilot-be/internal/entity"
	"ctfpilot-be/internal/model"

	"gorm.io/datatypes"
)

type JobMapper struct{}

func NewJobMapper() *JobMapper {
	return &JobMapper{}
}

func (m *JobMapper) ToEntity(j *model.Job) *entity.Job {
	if j == nil {
		return nil
	}

	var inputFiles []string
	if len(j.InputFiles) > 0 {
		// Corrupt JSON leaves the slice empty rather than failing the read.
		_ = json.Unmarshal(j.InputFiles, &inputFiles)
	}

	var timeline []entity.TimelineEvent
	if len(j.Timeline) > 0 {
		_ = json.Unmarshal(j.Timeline, &timeline)
	}

	return &entity.Job{
		Id:               j.Id,
		Title:            j.Title,
		Description:      j.Description,
		FlagFormat:       j.FlagFormat,
		Status:           j.Status,
		CreatedAt:        j.CreatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
		InputFiles:       inputFiles,
		CommandsExecuted: j.CommandsExecuted,
		ErrorMessage:     j.ErrorMessage,
		Timeline:         timeline,
	}
}

func (m *JobMapper) ToModel(j *entity.Job) *model.Job {
	if j == nil {
		return nil
	}

	inputFiles := j.InputFiles
	if inputFiles == nil {
		inputFiles = []string{}
	}
	inputFilesJSON, _ := json.Marshal(inputFiles)

	timeline := j.Timeline
	if timeline == nil {
		timeline = []entity.TimelineEvent{}
	}
	timelineJSON, _ := json.Marshal(timeline)

	return &model.Job{
		Id:               j.Id,
		Title:            j.Title,
		Description:      j.Description,
		FlagFormat:       j.FlagFormat,
		Status:           j.Status,
		CreatedAt:        j.CreatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
		InputFiles:       datatypes.JSON(inputFilesJSON),
		CommandsExecuted: j.CommandsExecuted,
		ErrorMessage:     j.ErrorMessage,
		Timeline:         datatypes.JSON(timelineJSON),
	}
}

func (m *JobMapper) ToEntities(jobs []*model.Job) []*entity.Job {
	entities := make([]*entity.Job, len(jobs))
	for i, j := range jobs {
		entities[i] = m.ToEntity(j)
	}
	return entities
}

func (m *JobMapper) ToModels(jobs []*entity.Job) []*model.Job {
	models := make([]*model.Job, len(jobs))
	for i, j := range jobs {
		models[i] = m.ToModel(j)
	}
	return models
}
