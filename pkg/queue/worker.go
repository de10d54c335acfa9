package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker is a single pool worker that drains the job channel.
type Worker struct {
	id         string
	jobs       <-chan Job
	jobTimeout time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	// Health tracking
	mu            sync.RWMutex
	status        WorkerStatus
	currentJob    string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a new pool worker.
func NewWorker(id string, jobs <-chan Job, jobTimeout time.Duration) *Worker {
	return &Worker{
		id:           id,
		jobs:         jobs,
		jobTimeout:   jobTimeout,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker loop in a goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop signals the worker to stop and waits for it to finish its current
// job. It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        w.status,
		CurrentJob:    w.currentJob,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run() {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case job := <-w.jobs:
			w.process(job, log)
		}
	}
}

// process runs one job under the pool's job timeout, recovering panics so
// a broken job cannot take the worker down.
func (w *Worker) process(job Job, log *slog.Logger) {
	w.setStatus(WorkerStatusWorking, job.Name)
	defer w.setStatus(WorkerStatusIdle, "")

	ctx := context.Background()
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	err := w.runGuarded(ctx, job)
	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	if err != nil {
		log.Error("Background job failed", "job", job.Name, "error", err)
		return
	}
	log.Debug("Background job complete", "job", job.Name)
}

func (w *Worker) runGuarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, jobName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJob = jobName
	w.lastActivity = time.Now()
}
