// Package dispatch delivers one build notification to every status provider.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/notification"
	"github.com/sevigo/pixel-warden/internal/provider"
	"github.com/sevigo/pixel-warden/internal/status"
)

// DefaultProviderTimeout bounds a single provider call when none is configured.
const DefaultProviderTimeout = 30 * time.Second

// ContextLoader loads everything a delivery needs in one fetch.
type ContextLoader interface {
	LoadNotificationContext(ctx context.Context, notificationID string) (*core.NotificationContext, error)
}

// StatsSource returns the diff counts of a build.
type StatsSource interface {
	Stats(ctx context.Context, buildID string) (core.BuildStats, error)
}

// Coordinator runs one delivery attempt of a notification: it builds the payload once
// and fans it out to all providers, which run independently of each other.
type Coordinator struct {
	loader    ContextLoader
	stats     StatsSource
	urls      core.URLBuilder
	providers []core.Provider
	timeout   time.Duration
	logger    *slog.Logger
}

var _ core.Job = (*Coordinator)(nil)

// NewCoordinator creates a Coordinator. A non-positive timeout means DefaultProviderTimeout.
func NewCoordinator(loader ContextLoader, stats StatsSource, urls core.URLBuilder, providers []core.Provider, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Coordinator{
		loader:    loader,
		stats:     stats,
		urls:      urls,
		providers: providers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Run implements core.Job.
func (c *Coordinator) Run(ctx context.Context, notificationID string) error {
	return c.Process(ctx, notificationID)
}

// Process delivers the notification. The returned error is a core.UnretryableError
// when retrying cannot help, a core.RetryableError when at least one provider failed
// transiently, and nil when every provider succeeded or had nothing to do.
func (c *Coordinator) Process(ctx context.Context, notificationID string) error {
	nc, err := c.loader.LoadNotificationContext(ctx, notificationID)
	if err != nil {
		return err
	}
	if nc.Build == nil || nc.Project == nil || nc.Compare == nil {
		return core.Invariant("incomplete delivery context for notification %s", notificationID)
	}

	delivery, err := c.prepare(ctx, nc)
	if err != nil {
		return err
	}

	logger := c.logger.With(
		"notification", notificationID,
		"build", nc.Build.ID,
		"type", string(nc.Notification.Type),
	)

	errs := make([]error, len(c.providers))
	var g errgroup.Group
	for i, p := range c.providers {
		g.Go(func() error {
			errs[i] = c.notify(ctx, p, delivery)
			return nil
		})
	}
	_ = g.Wait()

	var fatal, retryable []error
	for i, p := range c.providers {
		err := errs[i]
		class := provider.Classify(err)
		switch class {
		case provider.ClassSuccess:
			logger.Debug("provider notified", "provider", p.Name())
		case provider.ClassBenign:
			logger.Info("provider condition ignored", "provider", p.Name(), "error", err)
		case provider.ClassFatal:
			logger.Error("provider failed permanently", "provider", p.Name(), "error", err)
			fatal = append(fatal, fmt.Errorf("%s: %w", p.Name(), err))
		case provider.ClassRetryable:
			logger.Warn("provider failed", "provider", p.Name(), "error", err)
			retryable = append(retryable, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}

	// Providers are idempotent, so a transient failure re-runs all of them.
	if len(retryable) > 0 {
		return core.Retryable(errors.Join(append(retryable, fatal...)...))
	}
	if len(fatal) > 0 {
		return core.Unretryable(errors.Join(fatal...))
	}
	return nil
}

// prepare computes the build URL and the payload concurrently.
func (c *Coordinator) prepare(ctx context.Context, nc *core.NotificationContext) (*core.Delivery, error) {
	d := &core.Delivery{Context: nc}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := c.urls.BuildURL(gctx, nc.Build)
		if err != nil {
			return fmt.Errorf("failed to compute url of build %s: %w", nc.Build.ID, err)
		}
		d.BuildURL = url
		return nil
	})
	g.Go(func() error {
		var stats string
		if notification.NeedsStats(nc.Notification.Type) {
			s, err := c.stats.Stats(gctx, nc.Build.ID)
			if err != nil {
				return err
			}
			stats = status.StatsMessage(s)
		}
		payload, err := notification.BuildPayload(nc.Notification.Type, nc.Build.Type, stats)
		if err != nil {
			return err
		}
		d.Payload = payload
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Coordinator) notify(ctx context.Context, p core.Provider, d *core.Delivery) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = core.Unretryable(fmt.Errorf("provider %s panicked: %v", p.Name(), r))
		}
	}()
	return p.Notify(ctx, d)
}
