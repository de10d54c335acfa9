// Package queue runs fire-and-forget background jobs on an in-process
// worker pool. The queue is bounded and in-memory: a full queue drops the
// job, a crash loses queued work. Durable retry lives with the sender
// (webhook delivery), not here.
package queue

import "time"

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a snapshot of one worker's state.
type WorkerHealth struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentJob    string       `json:"current_job,omitempty"`
	JobsProcessed int          `json:"jobs_processed"`
	LastActivity  time.Time    `json:"last_activity"`
}

// PoolHealth is a snapshot of the pool's state for the health endpoint.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	JobsDropped   int            `json:"jobs_dropped"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}
