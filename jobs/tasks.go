package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge is the task type for removing expired login sessions.
	TaskSessionPurge = "sessions:purge"
)

// SessionPurgePayload bounds how many rows a single purge run may delete.
type SessionPurgePayload struct {
	BatchSize int `json:"batch_size"`
}

// NewSessionPurgeTask constructs an Asynq task for the session purge.
func NewSessionPurgeTask(batchSize int) (*asynq.Task, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	data, err := json.Marshal(SessionPurgePayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, data), nil
}
