package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpirySweep deactivates long-expired membership and exception rows.
	TaskExpirySweep = "authz:expiry_sweep"
	// TaskCacheWarmup pre-populates effective capability sets for recently
	// active users.
	TaskCacheWarmup = "authz:cache_warmup"
)

// ExpirySweepPayload bounds how far behind now the sweep reaches.
type ExpirySweepPayload struct {
	GraceHours int `json:"grace_hours"`
}

// NewExpirySweepTask constructs an Asynq task.
func NewExpirySweepTask(payload ExpirySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpirySweep, data), nil
}

// CacheWarmupPayload limits how many users get warmed per run.
type CacheWarmupPayload struct {
	MaxUsers int `json:"max_users"`
}

// NewCacheWarmupTask constructs an Asynq task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data), nil
}
