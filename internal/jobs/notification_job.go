package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sevigo/pixel-warden/internal/core"
)

const (
	DefaultMaxAttempts    = 5
	DefaultAttemptTimeout = 2 * time.Minute
)

// DeliveryStore tracks the delivery state of notification rows.
type DeliveryStore interface {
	ClaimNotification(ctx context.Context, id string) (*core.BuildNotification, error)
	CompleteNotification(ctx context.Context, id string) error
	FailNotification(ctx context.Context, id string, reason string) error
	RetryNotification(ctx context.Context, id string, reason string, nextAttemptAt time.Time) error
}

// RetryPolicy decides how often and how late a failed delivery is tried again.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the randomization factor applied to each delay, 0 for none.
	Jitter float64
}

// Delay returns the wait before the attempt that follows the given attempt number.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		b.InitialInterval = p.BaseDelay
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.RandomizationFactor = p.Jitter
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// NotificationJob runs one claimed delivery attempt and records its outcome.
type NotificationJob struct {
	store   DeliveryStore
	deliver core.Job
	policy  RetryPolicy
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

var _ core.Job = (*NotificationJob)(nil)

// NewNotificationJob wraps deliver, usually a dispatch.Coordinator, with claiming and
// retry bookkeeping.
func NewNotificationJob(store DeliveryStore, deliver core.Job, policy RetryPolicy, timeout time.Duration, logger *slog.Logger) *NotificationJob {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &NotificationJob{
		store:   store,
		deliver: deliver,
		policy:  policy,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// Run claims the notification and delivers it. A notification that is not pending
// anymore was taken by another worker and is skipped.
func (j *NotificationJob) Run(ctx context.Context, notificationID string) error {
	n, err := j.store.ClaimNotification(ctx, notificationID)
	if errors.Is(err, core.ErrNotFound) {
		j.logger.Debug("notification already claimed", "notification", notificationID)
		return nil
	}
	if err != nil {
		return err
	}

	logger := j.logger.With("notification", n.ID, "build", n.BuildID, "type", string(n.Type), "attempt", n.Attempts)

	attemptCtx, cancel := context.WithTimeout(ctx, j.timeout)
	runErr := j.deliver.Run(attemptCtx, n.ID)
	cancel()

	switch {
	case runErr == nil:
		if err := j.store.CompleteNotification(ctx, n.ID); err != nil {
			return fmt.Errorf("failed to complete notification %s: %w", n.ID, err)
		}
		logger.Info("notification delivered")
		return nil

	case !core.IsRetryable(runErr) && core.IsUnretryable(runErr):
		logger.Error("notification failed permanently", "error", runErr)
		return j.fail(ctx, n.ID, runErr)

	case n.Attempts >= j.policy.MaxAttempts:
		logger.Error("notification failed after exhausting retries", "error", runErr)
		return j.fail(ctx, n.ID, runErr)

	default:
		next := j.now().Add(j.policy.Delay(n.Attempts))
		logger.Warn("notification delivery will be retried", "next_attempt_at", next, "error", runErr)
		if err := j.store.RetryNotification(ctx, n.ID, runErr.Error(), next); err != nil {
			return fmt.Errorf("failed to reschedule notification %s: %w", n.ID, err)
		}
		return nil
	}
}

func (j *NotificationJob) fail(ctx context.Context, id string, cause error) error {
	if err := j.store.FailNotification(ctx, id, cause.Error()); err != nil {
		return fmt.Errorf("failed to mark notification %s as errored: %w", id, err)
	}
	return cause
}
