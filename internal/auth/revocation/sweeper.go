// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package revocation

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when the configured interval is not positive.
const DefaultSweepInterval = time.Minute

// Sweeper periodically purges expired entries from a store.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger

	// OnSweep, when set, receives the store stats after every pass.
	OnSweep func(Stats)
}

// NewSweeper builds a sweeper for store.
func NewSweeper(store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. Call it in its own goroutine.
func (sweeper *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweeper.interval)
	defer ticker.Stop()

	sweeper.logger.Info("revocation_sweeper_started", slog.Duration("interval", sweeper.interval))

	for {
		select {
		case <-ctx.Done():
			sweeper.logger.Info("revocation_sweeper_stopped")
			return
		case <-ticker.C:
			sweeper.Sweep(ctx)
		}
	}
}

// Sweep runs one purge pass. Errors are logged, never returned.
func (sweeper *Sweeper) Sweep(ctx context.Context) {
	removed, err := sweeper.store.PurgeExpired(ctx)
	if err != nil {
		sweeper.logger.Warn("revocation_sweep_failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		sweeper.logger.Debug("revocation_sweep_completed", slog.Int("removed", removed))
	}

	if sweeper.OnSweep == nil {
		return
	}
	stats, err := sweeper.store.Stats(ctx)
	if err != nil {
		sweeper.logger.Warn("revocation_stats_failed", slog.Any("error", err))
		return
	}
	sweeper.OnSweep(stats)
}
