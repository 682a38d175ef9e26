// Package review records reviewer verdicts on builds.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/storage"
)

// ErrInvalidVerdict is returned for a verdict other than accepted or rejected.
var ErrInvalidVerdict = errors.New("verdict must be accepted or rejected")

// Store is the persistence the review flow needs.
type Store interface {
	InTx(ctx context.Context, fn func(tx *storage.Tx) error) error
	GetBuild(ctx context.Context, id string) (*core.Build, error)
	SetDiffValidationStatus(ctx context.Context, tx *storage.Tx, buildID string, status core.ValidationStatus) (int64, error)
}

// Pusher records a notification in a transaction.
type Pusher interface {
	Push(ctx context.Context, tx *storage.Tx, buildID string, notificationType core.NotificationType) (*core.BuildNotification, error)
}

// Service applies a verdict to all diffs of a build and notifies the providers.
type Service struct {
	store  Store
	pusher Pusher
	logger *slog.Logger
}

func NewService(store Store, pusher Pusher, logger *slog.Logger) *Service {
	return &Service{store: store, pusher: pusher, logger: logger}
}

// Review stores the verdict and queues the matching notification in the same
// transaction, so providers only hear about verdicts that were saved.
func (s *Service) Review(ctx context.Context, buildID string, verdict core.ValidationStatus) (*core.BuildNotification, error) {
	var notificationType core.NotificationType
	switch verdict {
	case core.ValidationAccepted:
		notificationType = core.NotificationDiffAccepted
	case core.ValidationRejected:
		notificationType = core.NotificationDiffRejected
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidVerdict, string(verdict))
	}

	if _, err := s.store.GetBuild(ctx, buildID); err != nil {
		return nil, err
	}

	var created *core.BuildNotification
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		updated, err := s.store.SetDiffValidationStatus(ctx, tx, buildID, verdict)
		if err != nil {
			return err
		}
		created, err = s.pusher.Push(ctx, tx, buildID, notificationType)
		if err != nil {
			return err
		}
		s.logger.Info("build reviewed", "build", buildID, "verdict", string(verdict), "diffs", updated)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to review build %s: %w", buildID, err)
	}
	return created, nil
}
