package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/pixel-warden/internal/core"
)

const notificationColumns = `id, build_id, type, job_status, attempts, last_error,
	next_attempt_at, created_at, updated_at`

func (s *postgresStore) InsertNotification(ctx context.Context, tx *Tx, buildID string, notificationType core.NotificationType) (*core.BuildNotification, error) {
	var n core.BuildNotification
	query := `
		INSERT INTO build_notifications (id, build_id, type, job_status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING ` + notificationColumns
	row := s.ext(tx).QueryRowxContext(ctx, query, uuid.NewString(), buildID, string(notificationType))
	if err := row.StructScan(&n); err != nil {
		return nil, fmt.Errorf("failed to insert %s notification for build %s: %w", notificationType, buildID, err)
	}
	return &n, nil
}

func (s *postgresStore) GetNotification(ctx context.Context, id string) (*core.BuildNotification, error) {
	var n core.BuildNotification
	query := `SELECT ` + notificationColumns + ` FROM build_notifications WHERE id = $1`
	if err := s.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification %s: %w", id, err)
	}
	return &n, nil
}

func (s *postgresStore) ListNotifications(ctx context.Context, buildID string) ([]core.BuildNotification, error) {
	var rows []core.BuildNotification
	query := `SELECT ` + notificationColumns + `
		FROM build_notifications WHERE build_id = $1 ORDER BY created_at ASC`
	if err := s.db.SelectContext(ctx, &rows, query, buildID); err != nil {
		return nil, fmt.Errorf("failed to list notifications of build %s: %w", buildID, err)
	}
	return rows, nil
}

// ClaimNotification moves a pending notification to progress and counts the attempt.
// It returns core.ErrNotFound when the row is not pending anymore, which happens when
// another worker claimed it first.
func (s *postgresStore) ClaimNotification(ctx context.Context, id string) (*core.BuildNotification, error) {
	var n core.BuildNotification
	query := `
		UPDATE build_notifications
		SET job_status = 'progress', attempts = attempts + 1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM build_notifications
			WHERE id = $1 AND job_status = 'pending'
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationColumns
	if err := s.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to claim notification %s: %w", id, err)
	}
	return &n, nil
}

func (s *postgresStore) CompleteNotification(ctx context.Context, id string) error {
	query := `
		UPDATE build_notifications
		SET job_status = 'complete', last_error = NULL, updated_at = NOW()
		WHERE id = $1`
	return s.exec(ctx, query, id)
}

func (s *postgresStore) FailNotification(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE build_notifications
		SET job_status = 'error', last_error = $2, updated_at = NOW()
		WHERE id = $1`
	return s.exec(ctx, query, id, reason)
}

func (s *postgresStore) RetryNotification(ctx context.Context, id string, reason string, nextAttemptAt time.Time) error {
	query := `
		UPDATE build_notifications
		SET job_status = 'pending', last_error = $2, next_attempt_at = $3, updated_at = NOW()
		WHERE id = $1`
	return s.exec(ctx, query, id, reason, nextAttemptAt)
}

// ResetNotification makes an errored notification deliverable again with a fresh
// attempt budget.
func (s *postgresStore) ResetNotification(ctx context.Context, id string) error {
	query := `
		UPDATE build_notifications
		SET job_status = 'pending', attempts = 0, next_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND job_status IN ('error', 'pending')`
	return s.exec(ctx, query, id)
}

func (s *postgresStore) DueNotifications(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	query := `
		SELECT id FROM build_notifications
		WHERE job_status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC
		LIMIT $2`
	if err := s.db.SelectContext(ctx, &ids, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due notifications: %w", err)
	}
	return ids, nil
}

// ResetStaleNotifications returns to pending the notifications left in progress by
// a worker that died before finishing them.
func (s *postgresStore) ResetStaleNotifications(ctx context.Context, staleBefore time.Time) (int64, error) {
	query := `
		UPDATE build_notifications
		SET job_status = 'pending', next_attempt_at = NOW(), updated_at = NOW()
		WHERE job_status = 'progress' AND updated_at < $1`
	res, err := s.db.ExecContext(ctx, query, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale notifications: %w", err)
	}
	return res.RowsAffected()
}

func (s *postgresStore) SetPullRequestCommentID(ctx context.Context, pullRequestID string, commentID int64) error {
	query := `
		UPDATE github_pull_requests
		SET comment_id = $2, comment_deleted = FALSE, updated_at = NOW()
		WHERE id = $1`
	return s.exec(ctx, query, pullRequestID, commentID)
}

// MarkPullRequestCommentDeleted flags the pull requests whose comment was deleted on
// GitHub so that it is not recreated.
func (s *postgresStore) MarkPullRequestCommentDeleted(ctx context.Context, commentID int64) (int64, error) {
	query := `
		UPDATE github_pull_requests
		SET comment_deleted = TRUE, updated_at = NOW()
		WHERE comment_id = $1`
	res, err := s.db.ExecContext(ctx, query, commentID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark comment %d as deleted: %w", commentID, err)
	}
	return res.RowsAffected()
}

func (s *postgresStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
