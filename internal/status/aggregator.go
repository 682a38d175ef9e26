// Package status derives the lifecycle label of builds from their job status and
// the state of their screenshot diffs. Nothing computed here is stored.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/storage"
)

// ExpirationDelay is the age after which a build still pending or in progress is
// considered abandoned.
const ExpirationDelay = 2 * time.Hour

// Store is the read access the aggregator needs. Every method takes the whole set of
// builds so that each stage costs one query.
type Store interface {
	DiffJobStatuses(ctx context.Context, buildIDs []string) ([]storage.BuildJobStatus, error)
	CountDetectedDiffs(ctx context.Context, buildIDs []string) (map[string]int, error)
	DiffValidationStatuses(ctx context.Context, buildIDs []string) ([]storage.BuildValidationStatus, error)
	BuildStats(ctx context.Context, buildID string) (core.BuildStats, error)
}

// Aggregator computes aggregated build statuses.
type Aggregator struct {
	store Store
	now   func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces the wall clock used for expiration.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an Aggregator reading from store.
func NewAggregator(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AggregatedStatuses returns one status per build, in the order of builds. The review
// outcome wins over the conclusion, which wins over the job status.
func (a *Aggregator) AggregatedStatuses(ctx context.Context, builds []core.Build) ([]core.AggregatedStatus, error) {
	statuses, err := a.Statuses(ctx, builds)
	if err != nil {
		return nil, err
	}
	conclusions, err := a.Conclusions(ctx, builds, statuses)
	if err != nil {
		return nil, err
	}
	reviews, err := a.ReviewStatuses(ctx, builds, conclusions)
	if err != nil {
		return nil, err
	}

	result := make([]core.AggregatedStatus, len(builds))
	for i := range builds {
		switch {
		case reviews[i] != "":
			result[i] = reviews[i]
		case conclusions[i] != "":
			result[i] = conclusions[i]
		default:
			result[i] = statuses[i]
		}
	}
	return result, nil
}

// AggregatedStatus is AggregatedStatuses for a single build.
func (a *Aggregator) AggregatedStatus(ctx context.Context, build core.Build) (core.AggregatedStatus, error) {
	statuses, err := a.AggregatedStatuses(ctx, []core.Build{build})
	if err != nil {
		return "", err
	}
	return statuses[0], nil
}

// Statuses resolves the job status stage. Complete builds are checked against the
// distinct job statuses of their diffs.
func (a *Aggregator) Statuses(ctx context.Context, builds []core.Build) ([]core.AggregatedStatus, error) {
	var completeIDs []string
	for i := range builds {
		if builds[i].JobStatus == core.JobStatusComplete {
			completeIDs = append(completeIDs, builds[i].ID)
		}
	}

	diffStatuses := make(map[string][]core.JobStatus, len(completeIDs))
	if len(completeIDs) > 0 {
		rows, err := a.store.DiffJobStatuses(ctx, completeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load diff job statuses: %w", err)
		}
		for _, r := range rows {
			diffStatuses[r.BuildID] = append(diffStatuses[r.BuildID], r.JobStatus)
		}
	}

	now := a.now()
	result := make([]core.AggregatedStatus, len(builds))
	for i := range builds {
		b := &builds[i]
		switch b.JobStatus {
		case core.JobStatusPending, core.JobStatusProgress:
			if now.Sub(b.CreatedAt) > ExpirationDelay {
				result[i] = core.StatusExpired
			} else {
				result[i] = core.AggregatedStatus(b.JobStatus)
			}
		case core.JobStatusError, core.JobStatusAborted:
			result[i] = core.AggregatedStatus(b.JobStatus)
		case core.JobStatusComplete:
			result[i] = completionStatus(diffStatuses[b.ID])
		default:
			return nil, core.Invariant("unknown job status %q for build %s", b.JobStatus, b.ID)
		}
	}
	return result, nil
}

func completionStatus(statuses []core.JobStatus) core.AggregatedStatus {
	for _, s := range statuses {
		if s == core.JobStatusError {
			return core.StatusError
		}
	}
	if len(statuses) == 0 || (len(statuses) == 1 && statuses[0] == core.JobStatusComplete) {
		return core.StatusComplete
	}
	return core.StatusProgress
}

// Conclusions returns stable or diffDetected for builds whose status is complete and
// an empty status for the others.
func (a *Aggregator) Conclusions(ctx context.Context, builds []core.Build, statuses []core.AggregatedStatus) ([]core.AggregatedStatus, error) {
	var completeIDs []string
	for i := range builds {
		if statuses[i] == core.StatusComplete {
			completeIDs = append(completeIDs, builds[i].ID)
		}
	}

	result := make([]core.AggregatedStatus, len(builds))
	if len(completeIDs) == 0 {
		return result, nil
	}

	counts, err := a.store.CountDetectedDiffs(ctx, completeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count detected diffs: %w", err)
	}
	for i := range builds {
		if statuses[i] != core.StatusComplete {
			continue
		}
		if counts[builds[i].ID] > 0 {
			result[i] = core.StatusDiffDetected
		} else {
			result[i] = core.StatusStable
		}
	}
	return result, nil
}

// ReviewStatuses returns accepted or rejected for builds with detected diffs that
// were reviewed, and an empty status otherwise. A build is accepted only when its
// diffs carry a single distinct validation status and it is accepted.
func (a *Aggregator) ReviewStatuses(ctx context.Context, builds []core.Build, conclusions []core.AggregatedStatus) ([]core.AggregatedStatus, error) {
	var detectedIDs []string
	for i := range builds {
		if conclusions[i] == core.StatusDiffDetected {
			detectedIDs = append(detectedIDs, builds[i].ID)
		}
	}

	result := make([]core.AggregatedStatus, len(builds))
	if len(detectedIDs) == 0 {
		return result, nil
	}

	rows, err := a.store.DiffValidationStatuses(ctx, detectedIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load diff validation statuses: %w", err)
	}
	validations := make(map[string][]core.ValidationStatus, len(detectedIDs))
	for _, r := range rows {
		validations[r.BuildID] = append(validations[r.BuildID], r.ValidationStatus)
	}

	for i := range builds {
		if conclusions[i] != core.StatusDiffDetected {
			continue
		}
		result[i] = reviewStatus(validations[builds[i].ID])
	}
	return result, nil
}

func reviewStatus(statuses []core.ValidationStatus) core.AggregatedStatus {
	if len(statuses) == 1 && statuses[0] == core.ValidationAccepted {
		return core.StatusAccepted
	}
	for _, s := range statuses {
		if s == core.ValidationRejected {
			return core.StatusRejected
		}
	}
	return ""
}

// Stats returns the diff counts of a build per classification.
func (a *Aggregator) Stats(ctx context.Context, buildID string) (core.BuildStats, error) {
	stats, err := a.store.BuildStats(ctx, buildID)
	if err != nil {
		return core.BuildStats{}, fmt.Errorf("failed to load stats of build %s: %w", buildID, err)
	}
	return stats, nil
}
