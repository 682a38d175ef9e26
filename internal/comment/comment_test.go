package comment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/storage"
)

type fakeLocations map[string]storage.BuildLocation

func (f fakeLocations) GetBuildLocation(_ context.Context, buildID string) (*storage.BuildLocation, error) {
	loc, ok := f[buildID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &loc, nil
}

func TestURLBuilder_BuildURL(t *testing.T) {
	locations := fakeLocations{"b1": {AccountSlug: "acme", ProjectName: "web app", Number: 12}}
	u := NewURLBuilder("https://pixels.example.com/", locations)

	got, err := u.BuildURL(context.Background(), &core.Build{ID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, "https://pixels.example.com/acme/web%20app/builds/12", got)

	_, err = u.BuildURL(context.Background(), &core.Build{ID: "missing"})
	assert.True(t, core.IsUnretryable(err))
}

type fakeLister struct {
	builds []core.Build
	commit string
}

func (f *fakeLister) LatestBuildsForCommit(_ context.Context, commit string) ([]core.Build, error) {
	f.commit = commit
	return f.builds, nil
}

type fakeStatuses struct {
	statuses map[string]core.AggregatedStatus
	stats    map[string]core.BuildStats
	err      error
}

func (f *fakeStatuses) AggregatedStatuses(_ context.Context, builds []core.Build) ([]core.AggregatedStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]core.AggregatedStatus, len(builds))
	for i, b := range builds {
		out[i] = f.statuses[b.ID]
	}
	return out, nil
}

func (f *fakeStatuses) Stats(_ context.Context, buildID string) (core.BuildStats, error) {
	return f.stats[buildID], nil
}

func TestBuilder_CommentBody(t *testing.T) {
	updated := time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC)
	lister := &fakeLister{builds: []core.Build{
		{ID: "b2", Name: "mobile", Number: 4, UpdatedAt: updated},
		{ID: "b1", Name: "default", Number: 7, UpdatedAt: updated},
	}}
	statuses := &fakeStatuses{
		statuses: map[string]core.AggregatedStatus{"b1": core.StatusDiffDetected, "b2": core.StatusStable},
		stats:    map[string]core.BuildStats{"b1": {Changed: 2, Added: 1}},
	}
	urls := NewURLBuilder("https://pixels.example.com", fakeLocations{
		"b1": {AccountSlug: "acme", ProjectName: "web", Number: 7},
		"b2": {AccountSlug: "acme", ProjectName: "web", Number: 4},
	})

	body, err := NewBuilder(lister, statuses, urls).CommentBody(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "abc123", lister.commit)
	assert.Equal(t, strings.Join([]string{
		"**The latest updates on your projects.**",
		"",
		"| Build | Status | Details | Updated (UTC) |",
		"| :---- | :----- | :------ | :------------ |",
		"| **default** ([Inspect](https://pixels.example.com/acme/web/builds/7)) | 🧿 Changes detected ([Review](https://pixels.example.com/acme/web/builds/7)) | 2 changed, 1 added | Mar 1, 2026, 2:05 PM |",
		"| **mobile** ([Inspect](https://pixels.example.com/acme/web/builds/4)) | ✅ No change detected | - | Mar 1, 2026, 2:05 PM |",
	}, "\n"), body)
}

func TestBuilder_CommentBodyErrors(t *testing.T) {
	lister := &fakeLister{builds: []core.Build{{ID: "b1", Name: "default"}}}
	urls := NewURLBuilder("https://pixels.example.com", fakeLocations{"b1": {AccountSlug: "acme", ProjectName: "web", Number: 1}})

	t.Run("status failure", func(t *testing.T) {
		_, err := NewBuilder(lister, &fakeStatuses{err: errors.New("db down")}, urls).CommentBody(context.Background(), "abc")
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("unknown status", func(t *testing.T) {
		statuses := &fakeStatuses{statuses: map[string]core.AggregatedStatus{"b1": "weird"}}
		_, err := NewBuilder(lister, statuses, urls).CommentBody(context.Background(), "abc")
		assert.True(t, core.IsUnretryable(err))
	})
}
