package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/storage"
)

type fakeDiff struct {
	buildID    string
	jobStatus  core.JobStatus
	diffStatus core.DiffStatus
	validation core.ValidationStatus
}

// fakeStore answers the aggregator queries from an in-memory list of diffs, with
// the same distinct-value semantics as the SQL queries.
type fakeStore struct {
	diffs   []fakeDiff
	calls   map[string]int
	failOn  string
	failErr error
}

func newFakeStore(diffs ...fakeDiff) *fakeStore {
	return &fakeStore{diffs: diffs, calls: map[string]int{}}
}

func (f *fakeStore) hit(name string) error {
	f.calls[name]++
	if f.failOn == name {
		return f.failErr
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (f *fakeStore) DiffJobStatuses(_ context.Context, ids []string) ([]storage.BuildJobStatus, error) {
	if err := f.hit("DiffJobStatuses"); err != nil {
		return nil, err
	}
	seen := map[storage.BuildJobStatus]bool{}
	var rows []storage.BuildJobStatus
	for _, d := range f.diffs {
		row := storage.BuildJobStatus{BuildID: d.buildID, JobStatus: d.jobStatus}
		if contains(ids, d.buildID) && !seen[row] {
			seen[row] = true
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeStore) CountDetectedDiffs(_ context.Context, ids []string) (map[string]int, error) {
	if err := f.hit("CountDetectedDiffs"); err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, d := range f.diffs {
		if !contains(ids, d.buildID) {
			continue
		}
		switch d.diffStatus {
		case core.DiffStatusAdded, core.DiffStatusChanged, core.DiffStatusRemoved:
			counts[d.buildID]++
		}
	}
	return counts, nil
}

func (f *fakeStore) DiffValidationStatuses(_ context.Context, ids []string) ([]storage.BuildValidationStatus, error) {
	if err := f.hit("DiffValidationStatuses"); err != nil {
		return nil, err
	}
	seen := map[storage.BuildValidationStatus]bool{}
	var rows []storage.BuildValidationStatus
	for _, d := range f.diffs {
		row := storage.BuildValidationStatus{BuildID: d.buildID, ValidationStatus: d.validation}
		if contains(ids, d.buildID) && !seen[row] {
			seen[row] = true
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeStore) BuildStats(_ context.Context, id string) (core.BuildStats, error) {
	var stats core.BuildStats
	if err := f.hit("BuildStats"); err != nil {
		return stats, err
	}
	for _, d := range f.diffs {
		if d.buildID == id {
			stats.Add(d.diffStatus, 1)
		}
	}
	return stats, nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func build(id string, status core.JobStatus, age time.Duration) core.Build {
	return core.Build{ID: id, JobStatus: status, Type: core.BuildTypeCheck, CreatedAt: now.Add(-age)}
}

func diff(buildID string, js core.JobStatus, ds core.DiffStatus, v core.ValidationStatus) fakeDiff {
	return fakeDiff{buildID: buildID, jobStatus: js, diffStatus: ds, validation: v}
}

func TestAggregator_AggregatedStatuses(t *testing.T) {
	const (
		complete = core.JobStatusComplete
		accepted = core.ValidationAccepted
		rejected = core.ValidationRejected
		none     = core.ValidationUnknown
	)

	tests := []struct {
		name  string
		build core.Build
		diffs []fakeDiff
		want  core.AggregatedStatus
	}{
		{
			name:  "pending one hour old stays pending",
			build: build("b", core.JobStatusPending, time.Hour),
			want:  core.StatusPending,
		},
		{
			name:  "pending older than two hours expires",
			build: build("b", core.JobStatusPending, 2*time.Hour+time.Minute),
			want:  core.StatusExpired,
		},
		{
			name:  "progress one hour old stays progress",
			build: build("b", core.JobStatusProgress, time.Hour),
			want:  core.StatusProgress,
		},
		{
			name:  "progress older than two hours expires",
			build: build("b", core.JobStatusProgress, 3*time.Hour),
			want:  core.StatusExpired,
		},
		{
			name:  "error is terminal",
			build: build("b", core.JobStatusError, 5*time.Hour),
			want:  core.StatusError,
		},
		{
			name:  "aborted is terminal",
			build: build("b", core.JobStatusAborted, time.Minute),
			want:  core.StatusAborted,
		},
		{
			name:  "complete without diffs is stable",
			build: build("b", complete, 5*time.Hour),
			want:  core.StatusStable,
		},
		{
			name:  "single errored diff fails the build",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{diff("b", core.JobStatusError, core.DiffStatusChanged, none)},
			want:  core.StatusError,
		},
		{
			name:  "one errored diff among complete ones fails the build",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{
				diff("b", complete, core.DiffStatusChanged, none),
				diff("b", core.JobStatusError, core.DiffStatusUnchanged, none),
			},
			want: core.StatusError,
		},
		{
			name:  "diffs still running keep the build in progress",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{
				diff("b", complete, core.DiffStatusUnchanged, none),
				diff("b", core.JobStatusPending, core.DiffStatusUnchanged, none),
			},
			want: core.StatusProgress,
		},
		{
			name:  "only unchanged diffs are stable",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{
				diff("b", complete, core.DiffStatusUnchanged, none),
				diff("b", complete, core.DiffStatusUnchanged, none),
			},
			want: core.StatusStable,
		},
		{
			name:  "failure diffs do not count as detected",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{diff("b", complete, core.DiffStatusFailure, none)},
			want:  core.StatusStable,
		},
		{
			name:  "changed diff without review is diffDetected",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{diff("b", complete, core.DiffStatusChanged, none)},
			want:  core.StatusDiffDetected,
		},
		{
			name:  "added diff is diffDetected",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{diff("b", complete, core.DiffStatusAdded, none)},
			want:  core.StatusDiffDetected,
		},
		{
			name:  "removed diff is diffDetected",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{diff("b", complete, core.DiffStatusRemoved, none)},
			want:  core.StatusDiffDetected,
		},
		{
			name:  "single accepted diff is accepted",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{diff("b", complete, core.DiffStatusChanged, accepted)},
			want:  core.StatusAccepted,
		},
		{
			name:  "every diff accepted is accepted",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{
				diff("b", complete, core.DiffStatusChanged, accepted),
				diff("b", complete, core.DiffStatusAdded, accepted),
			},
			want: core.StatusAccepted,
		},
		{
			name:  "accepted next to an unreviewed diff is not accepted",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{
				diff("b", complete, core.DiffStatusChanged, accepted),
				diff("b", complete, core.DiffStatusUnchanged, none),
			},
			want: core.StatusDiffDetected,
		},
		{
			name:  "any rejected diff rejects",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{
				diff("b", complete, core.DiffStatusChanged, accepted),
				diff("b", complete, core.DiffStatusChanged, rejected),
			},
			want: core.StatusRejected,
		},
		{
			name:  "review is ignored on stable builds",
			build: build("b", complete, time.Minute),
			diffs: []fakeDiff{diff("b", complete, core.DiffStatusUnchanged, rejected)},
			want:  core.StatusStable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(tt.diffs...)
			agg := NewAggregator(store, WithClock(func() time.Time { return now }))

			got, err := agg.AggregatedStatus(context.Background(), tt.build)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregator_OneQueryPerStage(t *testing.T) {
	builds := []core.Build{
		build("a", core.JobStatusComplete, time.Minute),
		build("b", core.JobStatusComplete, time.Minute),
		build("c", core.JobStatusComplete, time.Minute),
		build("d", core.JobStatusPending, time.Minute),
		build("e", core.JobStatusComplete, time.Minute),
	}
	store := newFakeStore(
		diff("a", core.JobStatusComplete, core.DiffStatusChanged, core.ValidationAccepted),
		diff("b", core.JobStatusComplete, core.DiffStatusUnchanged, core.ValidationUnknown),
		diff("c", core.JobStatusComplete, core.DiffStatusAdded, core.ValidationRejected),
		diff("e", core.JobStatusComplete, core.DiffStatusRemoved, core.ValidationUnknown),
	)
	agg := NewAggregator(store, WithClock(func() time.Time { return now }))

	got, err := agg.AggregatedStatuses(context.Background(), builds)
	require.NoError(t, err)

	assert.Equal(t, []core.AggregatedStatus{
		core.StatusAccepted,
		core.StatusStable,
		core.StatusRejected,
		core.StatusPending,
		core.StatusDiffDetected,
	}, got)
	assert.Equal(t, 1, store.calls["DiffJobStatuses"])
	assert.Equal(t, 1, store.calls["CountDetectedDiffs"])
	assert.Equal(t, 1, store.calls["DiffValidationStatuses"])
}

func TestAggregator_SkipsQueriesWhenNothingIsComplete(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(store, WithClock(func() time.Time { return now }))

	got, err := agg.AggregatedStatuses(context.Background(), []core.Build{
		build("a", core.JobStatusPending, time.Minute),
		build("b", core.JobStatusError, time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, []core.AggregatedStatus{core.StatusPending, core.StatusError}, got)
	assert.Empty(t, store.calls)
}

func TestAggregator_UnknownJobStatusIsUnretryable(t *testing.T) {
	agg := NewAggregator(newFakeStore())
	_, err := agg.AggregatedStatus(context.Background(), core.Build{ID: "b", JobStatus: "exploded"})
	require.Error(t, err)
	assert.True(t, core.IsUnretryable(err))
}

func TestAggregator_StoreErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")
	for _, stage := range []string{"DiffJobStatuses", "CountDetectedDiffs", "DiffValidationStatuses"} {
		t.Run(stage, func(t *testing.T) {
			store := newFakeStore(diff("b", core.JobStatusComplete, core.DiffStatusChanged, core.ValidationUnknown))
			store.failOn = stage
			store.failErr = boom
			agg := NewAggregator(store, WithClock(func() time.Time { return now }))

			_, err := agg.AggregatedStatus(context.Background(), build("b", core.JobStatusComplete, time.Minute))
			require.ErrorIs(t, err, boom)
			assert.False(t, core.IsUnretryable(err))
		})
	}
}

func TestAggregator_Stats(t *testing.T) {
	store := newFakeStore(
		diff("b", core.JobStatusComplete, core.DiffStatusChanged, core.ValidationUnknown),
		diff("b", core.JobStatusComplete, core.DiffStatusChanged, core.ValidationUnknown),
		diff("b", core.JobStatusComplete, core.DiffStatusAdded, core.ValidationUnknown),
		diff("b", core.JobStatusComplete, core.DiffStatusUnchanged, core.ValidationUnknown),
		diff("other", core.JobStatusComplete, core.DiffStatusRemoved, core.ValidationUnknown),
	)
	stats, err := NewAggregator(store).Stats(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, core.BuildStats{Changed: 2, Added: 1, Unchanged: 1, Total: 4}, stats)
}
