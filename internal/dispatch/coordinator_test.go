package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/provider"
)

type fakeLoader struct {
	nc  *core.NotificationContext
	err error
}

func (f *fakeLoader) LoadNotificationContext(context.Context, string) (*core.NotificationContext, error) {
	return f.nc, f.err
}

type fakeStats struct {
	stats core.BuildStats
	err   error
	calls int
}

func (f *fakeStats) Stats(context.Context, string) (core.BuildStats, error) {
	f.calls++
	return f.stats, f.err
}

type fakeURLs struct{}

func (fakeURLs) BuildURL(_ context.Context, b *core.Build) (string, error) {
	return "https://pixels.example.com/builds/" + b.ID, nil
}

type fakeProvider struct {
	name  string
	err   error
	block bool

	mu         sync.Mutex
	deliveries []*core.Delivery
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Notify(ctx context.Context, d *core.Delivery) error {
	f.mu.Lock()
	f.deliveries = append(f.deliveries, d)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deliveries)
}

func notificationContext(n core.NotificationType) *core.NotificationContext {
	return &core.NotificationContext{
		Notification: core.BuildNotification{ID: "n1", BuildID: "b1", Type: n},
		Build:        &core.Build{ID: "b1", Type: core.BuildTypeCheck, CompareScreenshotBucketID: "sb1"},
		Project:      &core.Project{ID: "p1"},
		Account:      &core.Account{ID: "a1"},
		Compare:      &core.ScreenshotBucket{ID: "sb1", Commit: "abc123"},
	}
}

func newCoordinator(loader ContextLoader, stats StatsSource, timeout time.Duration, providers ...core.Provider) *Coordinator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(loader, stats, fakeURLs{}, providers, timeout, logger)
}

func TestCoordinator_Process(t *testing.T) {
	t.Run("all providers receive the same delivery", func(t *testing.T) {
		github := &fakeProvider{name: "github"}
		gitlab := &fakeProvider{name: "gitlab"}
		vercel := &fakeProvider{name: "vercel"}
		stats := &fakeStats{stats: core.BuildStats{Changed: 2}}
		c := newCoordinator(&fakeLoader{nc: notificationContext(core.NotificationDiffDetected)}, stats, time.Second, github, gitlab, vercel)

		require.NoError(t, c.Process(context.Background(), "n1"))

		for _, p := range []*fakeProvider{github, gitlab, vercel} {
			require.Equal(t, 1, p.calls(), p.name)
			d := p.deliveries[0]
			assert.Equal(t, "https://pixels.example.com/builds/b1", d.BuildURL)
			assert.Equal(t, "2 changed — waiting for your decision", d.Payload.Description)
			assert.Equal(t, core.GitHubStateFailure, d.Payload.GitHubState)
		}
		assert.Equal(t, 1, stats.calls)
	})

	t.Run("lifecycle notifications skip stats", func(t *testing.T) {
		stats := &fakeStats{}
		p := &fakeProvider{name: "github"}
		c := newCoordinator(&fakeLoader{nc: notificationContext(core.NotificationQueued)}, stats, time.Second, p)

		require.NoError(t, c.Process(context.Background(), "n1"))
		assert.Zero(t, stats.calls)
		assert.Equal(t, "Build is queued", p.deliveries[0].Payload.Description)
	})

	t.Run("one failing provider does not stop the others", func(t *testing.T) {
		failing := &fakeProvider{name: "github", err: errors.New("connection reset")}
		gitlab := &fakeProvider{name: "gitlab"}
		vercel := &fakeProvider{name: "vercel"}
		c := newCoordinator(&fakeLoader{nc: notificationContext(core.NotificationProgress)}, &fakeStats{}, time.Second, failing, gitlab, vercel)

		err := c.Process(context.Background(), "n1")

		require.Error(t, err)
		assert.True(t, core.IsRetryable(err))
		assert.Contains(t, err.Error(), "github")
		assert.Equal(t, 1, gitlab.calls())
		assert.Equal(t, 1, vercel.calls())
	})

	t.Run("benign and no-op outcomes succeed", func(t *testing.T) {
		benign := &fakeProvider{name: "github", err: provider.Benign(errors.New("stale commit"))}
		noop := &fakeProvider{name: "gitlab"}
		c := newCoordinator(&fakeLoader{nc: notificationContext(core.NotificationQueued)}, &fakeStats{}, time.Second, benign, noop)

		assert.NoError(t, c.Process(context.Background(), "n1"))
	})

	t.Run("fatal provider error is unretryable", func(t *testing.T) {
		fatal := &fakeProvider{name: "github", err: core.Invariant("github account missing")}
		c := newCoordinator(&fakeLoader{nc: notificationContext(core.NotificationQueued)}, &fakeStats{}, time.Second, fatal, &fakeProvider{name: "gitlab"})

		err := c.Process(context.Background(), "n1")

		assert.True(t, core.IsUnretryable(err))
		assert.False(t, core.IsRetryable(err))
	})

	t.Run("retryable wins over fatal", func(t *testing.T) {
		fatal := &fakeProvider{name: "github", err: &provider.HTTPError{StatusCode: 401}}
		transient := &fakeProvider{name: "vercel", err: &provider.HTTPError{StatusCode: 503}}
		c := newCoordinator(&fakeLoader{nc: notificationContext(core.NotificationQueued)}, &fakeStats{}, time.Second, fatal, transient)

		err := c.Process(context.Background(), "n1")

		assert.True(t, core.IsRetryable(err))
		assert.Contains(t, err.Error(), "github")
		assert.Contains(t, err.Error(), "vercel")
	})

	t.Run("provider timeout is retryable", func(t *testing.T) {
		slow := &fakeProvider{name: "gitlab", block: true}
		fast := &fakeProvider{name: "github"}
		c := newCoordinator(&fakeLoader{nc: notificationContext(core.NotificationQueued)}, &fakeStats{}, 20*time.Millisecond, slow, fast)

		err := c.Process(context.Background(), "n1")

		assert.True(t, core.IsRetryable(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, fast.calls())
	})

	t.Run("missing references are unretryable", func(t *testing.T) {
		nc := notificationContext(core.NotificationQueued)
		nc.Compare = nil
		p := &fakeProvider{name: "github"}
		c := newCoordinator(&fakeLoader{nc: nc}, &fakeStats{}, time.Second, p)

		err := c.Process(context.Background(), "n1")

		assert.True(t, core.IsUnretryable(err))
		assert.Zero(t, p.calls())
	})

	t.Run("loader invariant propagates", func(t *testing.T) {
		c := newCoordinator(&fakeLoader{err: core.Invariant("build b1 not found")}, &fakeStats{}, time.Second)

		assert.True(t, core.IsUnretryable(c.Process(context.Background(), "n1")))
	})

	t.Run("unknown notification type is unretryable", func(t *testing.T) {
		p := &fakeProvider{name: "github"}
		c := newCoordinator(&fakeLoader{nc: notificationContext("reticulated")}, &fakeStats{}, time.Second, p)

		err := c.Process(context.Background(), "n1")

		assert.True(t, core.IsUnretryable(err))
		assert.Zero(t, p.calls())
	})

	t.Run("stats failure is transient", func(t *testing.T) {
		p := &fakeProvider{name: "github"}
		c := newCoordinator(&fakeLoader{nc: notificationContext(core.NotificationDiffAccepted)}, &fakeStats{err: errors.New("db down")}, time.Second, p)

		err := c.Process(context.Background(), "n1")

		require.Error(t, err)
		assert.False(t, core.IsUnretryable(err))
		assert.Zero(t, p.calls())
	})
}
