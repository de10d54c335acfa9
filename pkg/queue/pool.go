package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultQueueCapacity = 256

// Job is one unit of background work. Name labels log lines and worker
// health; Run receives a context bounded by the pool's job timeout.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool manages a bounded job queue and a fixed set of workers.
type Pool struct {
	jobs       chan Job
	workers    []*Worker
	jobTimeout time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once

	mu      sync.Mutex
	dropped int
	started bool
}

// NewPool creates a pool with workerCount workers. jobTimeout bounds each
// job's context; zero means no per-job deadline.
func NewPool(workerCount int, jobTimeout time.Duration) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		jobs:       make(chan Job, defaultQueueCapacity),
		workers:    make([]*Worker, 0, workerCount),
		jobTimeout: jobTimeout,
		stopCh:     make(chan struct{}),
	}
}

// Start spawns the worker goroutines. It is safe to call multiple times;
// subsequent calls are no-ops.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	workerCount := cap(p.workers)
	slog.Info("Starting worker pool", "worker_count", workerCount)

	for i := 0; i < workerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p.jobs, p.jobTimeout)
		p.workers = append(p.workers, worker)
		worker.Start()
	}
}

// Stop signals all workers to stop and waits for them to finish their
// current jobs. Queued jobs that never started are dropped.
func (p *Pool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	p.stopOnce.Do(func() { close(p.stopCh) })
	for _, worker := range p.workers {
		worker.Stop()
	}

	slog.Info("Worker pool stopped gracefully")
}

// Submit enqueues a job without blocking. Returns false when the pool is
// stopping or the queue is full; the job is dropped with a log line.
func (p *Pool) Submit(name string, run func(ctx context.Context) error) bool {
	select {
	case <-p.stopCh:
		slog.Warn("Job rejected, pool is stopping", "job", name)
		return false
	default:
	}

	select {
	case p.jobs <- Job{Name: name, Run: run}:
		return true
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		slog.Warn("Job dropped, queue is full", "job", name, "capacity", cap(p.jobs))
		return false
	}
}

// Health returns the current health status of the pool.
func (p *Pool) Health() *PoolHealth {
	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	p.mu.Lock()
	dropped := p.dropped
	started := p.started
	p.mu.Unlock()

	return &PoolHealth{
		IsHealthy:     started && len(p.workers) > 0,
		QueueDepth:    len(p.jobs),
		QueueCapacity: cap(p.jobs),
		ActiveWorkers: activeWorkers,
		TotalWorkers:  len(p.workers),
		JobsDropped:   dropped,
		WorkerStats:   workerStats,
	}
}
