// Package maintenance removes active-call rows whose terminal event
// never arrived, so abandoned calls do not linger on the dashboard.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"voicehub-platform/internal/config"
)

// StaleDeleter is the slice of the call store the sweeper needs.
type StaleDeleter interface {
	DeleteStaleActiveCalls(ctx context.Context, olderThan time.Time) (int64, error)
}

type Sweeper struct {
	records  StaleDeleter
	maxAge   time.Duration
	interval time.Duration
	log      *slog.Logger
	clock    func() time.Time
}

func NewSweeper(records StaleDeleter, cfg config.MaintenanceConfig, log *slog.Logger) *Sweeper {
	return &Sweeper{
		records:  records,
		maxAge:   cfg.ActiveCallMaxAge,
		interval: cfg.SweepInterval,
		log:      log,
		clock:    time.Now,
	}
}

// Run sweeps on a ticker until ctx is cancelled. Call from its own
// goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes every active call older than the configured age
// and returns how many went.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	cutoff := s.clock().UTC().Add(-s.maxAge)
	n, err := s.records.DeleteStaleActiveCalls(ctx, cutoff)
	if err != nil {
		s.log.Error("stale active-call sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		s.log.Info("stale active calls removed", "count", n, "older_than", cutoff)
	}
	return n
}
