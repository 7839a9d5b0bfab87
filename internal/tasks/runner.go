// Package tasks runs post-acknowledgement work in the background.
// Every job is isolated: a panic or error in one job never reaches
// the HTTP response path or a sibling job.
package tasks

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Job is a unit of background work. The context carries cancellation
// from server shutdown, not from the originating request.
type Job func(ctx context.Context) error

type Runner struct {
	log *slog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func NewRunner(log *slog.Logger) *Runner {
	return &Runner{log: log}
}

// Submit schedules fn on its own goroutine. Once the runner is closed,
// further submissions are dropped with a log line instead of racing
// shutdown.
func (r *Runner) Submit(ctx context.Context, name, tenantID string, fn Job) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn("background job dropped, runner closed", "job", name, "tenant_id", tenantID)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("background job panicked",
					"job", name,
					"tenant_id", tenantID,
					"panic", rec,
					"stack", string(debug.Stack()))
			}
		}()

		start := time.Now()
		if err := fn(ctx); err != nil {
			r.log.Error("background job failed",
				"job", name,
				"tenant_id", tenantID,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err)
			return
		}
		r.log.Info("background job done",
			"job", name,
			"tenant_id", tenantID,
			"duration_ms", time.Since(start).Milliseconds())
	}()
}

// Close stops accepting new jobs and waits for in-flight ones.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

// Wait blocks until currently submitted jobs finish. Used by tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}
