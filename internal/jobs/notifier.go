package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/storage"
)

// NotificationWriter creates notification rows.
type NotificationWriter interface {
	InTx(ctx context.Context, fn func(tx *storage.Tx) error) error
	InsertNotification(ctx context.Context, tx *storage.Tx, buildID string, notificationType core.NotificationType) (*core.BuildNotification, error)
}

// Notifier records build notifications and hands them to the dispatcher once the
// surrounding transaction has committed.
type Notifier struct {
	store      NotificationWriter
	dispatcher core.JobDispatcher
	logger     *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(store NotificationWriter, dispatcher core.JobDispatcher, logger *slog.Logger) *Notifier {
	return &Notifier{store: store, dispatcher: dispatcher, logger: logger}
}

// Push inserts a pending notification of the given type for the build. The row is
// written with tx so it only exists if the caller's change commits, and the id is
// enqueued after that commit. A nil tx runs the insert in its own transaction.
func (n *Notifier) Push(ctx context.Context, tx *storage.Tx, buildID string, notificationType core.NotificationType) (*core.BuildNotification, error) {
	if tx == nil {
		var created *core.BuildNotification
		err := n.store.InTx(ctx, func(tx *storage.Tx) error {
			var err error
			created, err = n.Push(ctx, tx, buildID, notificationType)
			return err
		})
		return created, err
	}

	if _, err := core.ParseNotificationType(string(notificationType)); err != nil {
		return nil, err
	}
	created, err := n.store.InsertNotification(ctx, tx, buildID, notificationType)
	if err != nil {
		return nil, fmt.Errorf("failed to push %s notification: %w", notificationType, err)
	}

	id := created.ID
	tx.AfterCommit(func() {
		// The request context may be gone by the time the transaction commits.
		if err := n.dispatcher.Dispatch(context.WithoutCancel(ctx), id); err != nil {
			n.logger.Warn("notification left for the sweeper", "notification", id, "error", err)
		}
	})
	return created, nil
}
