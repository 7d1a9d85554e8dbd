package cache

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when NewSweeper is given a non-positive interval.
const DefaultSweepInterval = time.Minute

// Sweepable is anything whose expired entries can be reclaimed.
type Sweepable interface {
	CleanupExpired() int
}

// Sweeper periodically removes expired entries that nobody reads again.
// Lazy expiry in Get already hides stale values, so running a Sweeper is optional.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper for target.
func NewSweeper(target Sweepable, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on every tick until ctx is done. It always returns nil so it can be
// used directly with errgroup.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.target.CleanupExpired(); removed > 0 {
				s.logger.Debug("cache sweep removed expired entries", slog.Int("removed", removed))
			}
		}
	}
}
