package erpserver

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// OverdueRunner periodically flips pending installments past their due
// date to overdue.
type OverdueRunner struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOverdueRunner creates a runner with the given scan interval.
func NewOverdueRunner(store *Store, interval time.Duration) *OverdueRunner {
	return &OverdueRunner{
		store:    store,
		interval: interval,
		logger:   slog.Default().With("component", "overdue-runner"),
		stopCh:   make(chan struct{}),
	}
}

// Start runs an immediate scan and then one per interval until Stop.
func (r *OverdueRunner) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.runOnce()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.runOnce()
			}
		}
	}()
}

// Stop halts the scan loop and waits for an in-flight scan to finish.
func (r *OverdueRunner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *OverdueRunner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := r.store.MarkOverdue(ctx, time.Now().UTC())
	if err != nil {
		r.logger.Error("Overdue scan failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("Marked installments overdue", "count", n)
	}
}
