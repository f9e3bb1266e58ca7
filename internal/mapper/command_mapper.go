package mapper

import (
	"encoding/json"

	"ctfpilot-be/internal/entity"
	"ctfpilot-be/internal/model"

	"gorm.io/datatypes"
)

type CommandMapper struct{}

func NewCommandMapper() *CommandMapper {
	return &CommandMapper{}
}

func (m *CommandMapper) ToEntity(c *model.Command) *entity.Command {
	if c == nil {
		return nil
	}

	var arguments []string
	if len(c.Arguments) > 0 {
		_ = json.Unmarshal(c.Arguments, &arguments)
	}

	return &entity.Command{
		Id:              c.Id,
		JobId:           c.JobId,
		Tool:            c.Tool,
		Arguments:       arguments,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		ExitCode:        c.ExitCode,
		Stdout:          c.Stdout,
		Stderr:          c.Stderr,
		StdoutTruncated: c.StdoutTruncated,
		OutputHash:      c.OutputHash,
	}
}

func (m *CommandMapper) ToModel(c *entity.Command) *model.Command {
	if c == nil {
		return nil
	}

	arguments := c.Arguments
	if arguments == nil {
		arguments = []string{}
	}
	argumentsJSON, _ := json.Marshal(arguments)

	return &model.Command{
		Id:              c.Id,
		JobId:           c.JobId,
		Tool:            c.Tool,
		Arguments:       datatypes.JSON(argumentsJSON),
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		ExitCode:        c.ExitCode,
		Stdout:          c.Stdout,
		Stderr:          c.Stderr,
		StdoutTruncated: c.StdoutTruncated,
		OutputHash:      c.OutputHash,
	}
}

func (m *CommandMapper) ToEntities(commands []*model.Command) []*entity.Command {
	entities := make([]*entity.Command, len(commands))
	for i, c := range commands {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *CommandMapper) ToModels(commands []*entity.Command) []*model.Command {
	models := make([]*model.Command, len(commands))
	for i, c := range commands {
		models[i] = m.ToModel(c)
	}
	return models
}
