package core

import (
	"fmt"
	"time"
)

// NotificationType is the business event that justifies telling external
// providers that something changed on a build.
type NotificationType string

const (
	NotificationQueued         NotificationType = "queued"
	NotificationProgress       NotificationType = "progress"
	NotificationNoDiffDetected NotificationType = "no-diff-detected"
	NotificationDiffDetected   NotificationType = "diff-detected"
	NotificationDiffAccepted   NotificationType = "diff-accepted"
	NotificationDiffRejected   NotificationType = "diff-rejected"
)

// ParseNotificationType validates a raw notification type.
func ParseNotificationType(raw string) (NotificationType, error) {
	switch t := NotificationType(raw); t {
	case NotificationQueued, NotificationProgress, NotificationNoDiffDetected,
		NotificationDiffDetected, NotificationDiffAccepted, NotificationDiffRejected:
		return t, nil
	default:
		return "", Unretryable(fmt.Errorf("unknown notification type %q", raw))
	}
}

// BuildNotification is a queued unit of delivery work. Its type never changes after
// creation; only the delivery bookkeeping does.
type BuildNotification struct {
	ID            string           `db:"id"`
	BuildID       string           `db:"build_id"`
	Type          NotificationType `db:"type"`
	JobStatus     JobStatus        `db:"job_status"`
	Attempts      int              `db:"attempts"`
	LastError     *string          `db:"last_error"`
	NextAttemptAt time.Time        `db:"next_attempt_at"`
	CreatedAt     time.Time        `db:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"`
}
