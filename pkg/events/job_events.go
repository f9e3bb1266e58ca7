package events

import "time"

// Job lifecycle event types carried over the work queue and the in-process
// update bus.
const (
	TypeJobQueued    = "JOB_QUEUED"
	TypeJobStarted   = "JOB_STARTED"
	TypeJobProgress  = "JOB_PROGRESS"
	TypeJobLog       = "JOB_LOG"
	TypeJobCompleted = "JOB_COMPLETED"
	TypeJobFailed    = "JOB_FAILED"
)

// NewJobEvent builds a job-scoped event; extra fields merge into the
// payload next to job_id.
func NewJobEvent(eventType, jobID string, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{
		"job_id": jobID,
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
