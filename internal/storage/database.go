package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/pixel-warden/internal/core"
)

// BuildJobStatus is one distinct diff job status found for a build.
type BuildJobStatus struct {
	BuildID   string         `db:"build_id"`
	JobStatus core.JobStatus `db:"job_status"`
}

// BuildValidationStatus is one distinct diff validation status found for a build.
// Unreviewed diffs appear with core.ValidationUnknown.
type BuildValidationStatus struct {
	BuildID          string                `db:"build_id"`
	ValidationStatus core.ValidationStatus `db:"validation_status"`
}

// BuildLocation holds the parts of a build's public URL.
type BuildLocation struct {
	AccountSlug string `db:"account_slug"`
	ProjectName string `db:"project_name"`
	Number      int    `db:"number"`
}

// Store defines the interface for all database operations.
type Store interface {
	InTx(ctx context.Context, fn func(tx *Tx) error) error

	CreateBuild(ctx context.Context, tx *Tx, build *core.Build) error
	GetBuild(ctx context.Context, id string) (*core.Build, error)
	GetBuildLocation(ctx context.Context, buildID string) (*BuildLocation, error)
	LatestBuildsForCommit(ctx context.Context, commit string) ([]core.Build, error)
	SetDiffValidationStatus(ctx context.Context, tx *Tx, buildID string, status core.ValidationStatus) (int64, error)

	DiffJobStatuses(ctx context.Context, buildIDs []string) ([]BuildJobStatus, error)
	CountDetectedDiffs(ctx context.Context, buildIDs []string) (map[string]int, error)
	DiffValidationStatuses(ctx context.Context, buildIDs []string) ([]BuildValidationStatus, error)
	BuildStats(ctx context.Context, buildID string) (core.BuildStats, error)

	InsertNotification(ctx context.Context, tx *Tx, buildID string, notificationType core.NotificationType) (*core.BuildNotification, error)
	GetNotification(ctx context.Context, id string) (*core.BuildNotification, error)
	ListNotifications(ctx context.Context, buildID string) ([]core.BuildNotification, error)
	ClaimNotification(ctx context.Context, id string) (*core.BuildNotification, error)
	CompleteNotification(ctx context.Context, id string) error
	FailNotification(ctx context.Context, id string, reason string) error
	RetryNotification(ctx context.Context, id string, reason string, nextAttemptAt time.Time) error
	ResetNotification(ctx context.Context, id string) error
	DueNotifications(ctx context.Context, now time.Time, limit int) ([]string, error)
	ResetStaleNotifications(ctx context.Context, staleBefore time.Time) (int64, error)

	LoadNotificationContext(ctx context.Context, notificationID string) (*core.NotificationContext, error)
	SetPullRequestCommentID(ctx context.Context, pullRequestID string, commentID int64) error
	MarkPullRequestCommentDeleted(ctx context.Context, commentID int64) (int64, error)
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a new Store backed by Postgres.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// InTx runs fn inside a transaction. The transaction commits when fn returns nil,
// which also runs the hooks fn registered with Tx.AfterCommit.
func (s *postgresStore) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := NewTx(sqlTx)
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ext returns the transaction when there is one, the pool otherwise.
func (s *postgresStore) ext(tx *Tx) sqlx.ExtContext {
	if tx != nil && tx.Tx != nil {
		return tx.Tx
	}
	return s.db
}
