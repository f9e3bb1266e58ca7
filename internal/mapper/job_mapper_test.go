package mapper

import (
	"testing"
	"time"

	"ctfpilot-be/internal/entity"
	"ctfpilot-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMapperRoundTrip(t *testing.T) {
	m := NewJobMapper()
	started := time.Now().UTC().Truncate(time.Second)

	job := &entity.Job{
		Id:          uuid.New(),
		Title:       "heap pwn",
		Description: "use after free",
		FlagFormat:  entity.DefaultFlagFormat,
		Status:      entity.JobStatusRunning,
		CreatedAt:   started,
		StartedAt:   &started,
		InputFiles:  []string{"challenge.elf", "notes.txt"},
		Timeline: []entity.TimelineEvent{
			{Timestamp: started, Event: "Job created"},
		},
		CommandsExecuted: 3,
	}

	got := m.ToEntity(m.ToModel(job))
	require.NotNil(t, got)
	assert.Equal(t, job.Id, got.Id)
	assert.Equal(t, job.InputFiles, got.InputFiles)
	require.Len(t, got.Timeline, 1)
	assert.Equal(t, "Job created", got.Timeline[0].Event)
	assert.Equal(t, 3, got.CommandsExecuted)
}

func TestJobMapperNilInputFilesBecomeEmptyJSON(t *testing.T) {
	m := NewJobMapper()

	mdl := m.ToModel(&entity.Job{Id: uuid.New(), Status: entity.JobStatusPending})
	assert.JSONEq(t, "[]", string(mdl.InputFiles))
	assert.JSONEq(t, "[]", string(mdl.Timeline))
}

func TestJobMapperToleratesCorruptJSON(t *testing.T) {
	m := NewJobMapper()

	got := m.ToEntity(&model.Job{
		Id:         uuid.New(),
		Status:     entity.JobStatusFailed,
		InputFiles: []byte("{not json"),
		Timeline:   []byte("also not json"),
	})
	require.NotNil(t, got)
	assert.Empty(t, got.InputFiles)
	assert.Empty(t, got.Timeline)
	assert.Equal(t, entity.JobStatusFailed, got.Status)
}

func TestJobMapperNilPassthrough(t *testing.T) {
	m := NewJobMapper()
	assert.Nil(t, m.ToEntity(nil))
	assert.Nil(t, m.ToModel(nil))
}
