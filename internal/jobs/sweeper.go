package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/pixel-warden/internal/core"
)

const (
	DefaultSweepInterval = 15 * time.Second
	DefaultStaleAfter    = 10 * time.Minute
	sweepBatchSize       = 100
)

// SweepStore finds notification rows that need another dispatch.
type SweepStore interface {
	DueNotifications(ctx context.Context, now time.Time, limit int) ([]string, error)
	ResetStaleNotifications(ctx context.Context, staleBefore time.Time) (int64, error)
}

// Sweeper re-dispatches pending notifications whose retry time has come, including
// those the in-memory queue lost on a full queue or a restart, and releases
// notifications left in progress by a crashed worker.
type Sweeper struct {
	store      SweepStore
	dispatcher core.JobDispatcher
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewSweeper creates a Sweeper. Non-positive durations fall back to the defaults.
func NewSweeper(store SweepStore, dispatcher core.JobDispatcher, interval, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Sweeper{
		store:      store,
		dispatcher: dispatcher,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     logger,
	}
}

// Run sweeps until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("notification sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep performs one pass and returns the number of dispatched notifications.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	reset, err := s.store.ResetStaleNotifications(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		s.logger.Warn("released stale notifications", "count", reset)
	}

	ids, err := s.store.DueNotifications(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, id := range ids {
		if err := s.dispatcher.Dispatch(ctx, id); err != nil {
			return dispatched, fmt.Errorf("sweep stopped after %d notifications: %w", dispatched, err)
		}
		dispatched++
	}
	if dispatched > 0 {
		s.logger.Debug("dispatched due notifications", "count", dispatched)
	}
	return dispatched, nil
}
