package mapper

import (
	"ctfpilot-be/internal/entity"
	"ctfpilot-be/internal/model"
)

type FlagCandidateMapper struct{}

func NewFlagCandidateMapper() *FlagCandidateMapper {
	return &FlagCandidateMapper{}
}

func (m *FlagCandidateMapper) ToEntity(c *model.FlagCandidate) *entity.FlagCandidate {
	if c == nil {
		return nil
	}

	return &entity.FlagCandidate{
		Id:         c.Id,
		JobId:      c.JobId,
		Value:      c.Value,
		Confidence: c.Confidence,
		Source:     c.Source,
		EvidenceId: c.EvidenceId,
		Context:    c.Context,
	}
}

func (m *FlagCandidateMapper) ToModel(c *entity.FlagCandidate) *model.FlagCandidate {
	if c == nil {
		return nil
	}

	return &model.FlagCandidate{
		Id:         c.Id,
		JobId:      c.JobId,
		Value:      c.Value,
		Confidence: c.Confidence,
		Source:     c.Source,
		EvidenceId: c.EvidenceId,
		Context:    c.Context,
	}
}

func (m *FlagCandidateMapper) ToEntities(candidates []*model.FlagCandidate) []*entity.FlagCandidate {
	entities := make([]*entity.FlagCandidate, len(candidates))
	for i, c := range candidates {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *FlagCandidateMapper) ToModels(candidates []*entity.FlagCandidate) []*model.FlagCandidate {
	models := make([]*model.FlagCandidate, len(candidates))
	for i, c := range candidates {
		models[i] = m.ToModel(c)
	}
	return models
}
