package wire

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/wire"

	"github.com/sevigo/pixel-warden/internal/app"
	"github.com/sevigo/pixel-warden/internal/comment"
	"github.com/sevigo/pixel-warden/internal/config"
	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/db"
	"github.com/sevigo/pixel-warden/internal/dispatch"
	"github.com/sevigo/pixel-warden/internal/github"
	"github.com/sevigo/pixel-warden/internal/jobs"
	"github.com/sevigo/pixel-warden/internal/logger"
	"github.com/sevigo/pixel-warden/internal/provider"
	"github.com/sevigo/pixel-warden/internal/review"
	"github.com/sevigo/pixel-warden/internal/server"
	"github.com/sevigo/pixel-warden/internal/server/handler"
	"github.com/sevigo/pixel-warden/internal/status"
	"github.com/sevigo/pixel-warden/internal/storage"
)

// AppSet builds the server application.
var AppSet = wire.NewSet(
	config.LoadConfig,
	provideLogger,
	provideDBConfig,
	db.NewDatabase,
	provideStore,
	provideAggregator,
	provideURLBuilder,
	provideCommentBuilder,
	provideProviders,
	provideCoordinator,
	provideNotificationJob,
	provideDispatcher,
	provideNotifier,
	provideSweeper,
	provideReviewService,
	provideBuildHandler,
	provideWebhookHandler,
	server.NewRouter,
	provideServer,
	app.NewApp,
)

// ToolkitSet builds the services used by the command line tool. Deliveries always
// run on the in-memory dispatcher so the command can wait for them.
var ToolkitSet = wire.NewSet(
	config.LoadConfig,
	provideLogger,
	provideDBConfig,
	db.NewDatabase,
	provideStore,
	provideAggregator,
	provideURLBuilder,
	provideCommentBuilder,
	provideProviders,
	provideCoordinator,
	provideNotificationJob,
	provideLocalDispatcher,
	provideNotifier,
	app.NewToolkit,
)

func provideLogger(cfg *config.Config) *slog.Logger {
	return logger.NewLogger(cfg.Logger, nil)
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return &cfg.DB
}

func provideStore(conn *db.DB) (storage.Store, error) {
	if err := conn.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return storage.NewStore(conn.DB), nil
}

func provideAggregator(store storage.Store) *status.Aggregator {
	return status.NewAggregator(store)
}

func provideURLBuilder(cfg *config.Config, store storage.Store) *comment.URLBuilder {
	return comment.NewURLBuilder(cfg.ServerURL, store)
}

func provideCommentBuilder(store storage.Store, agg *status.Aggregator, urls *comment.URLBuilder) *comment.Builder {
	return comment.NewBuilder(store, agg, urls)
}

// provideProviders returns the adapters of every configured integration. GitHub needs
// App credentials; GitLab and Vercel use per-account tokens stored in the database.
func provideProviders(cfg *config.Config, store storage.Store, comments *comment.Builder, log *slog.Logger) ([]core.Provider, error) {
	log = logger.Component(log, "provider")
	var providers []core.Provider

	if cfg.GitHub.Enabled() {
		clients, err := github.NewClientFactory(cfg.GitHub, log)
		if err != nil {
			return nil, fmt.Errorf("failed to set up github app: %w", err)
		}
		providers = append(providers, provider.NewGitHubProvider(clients, comments, store, cfg.StatusContextPrefix, log))
	} else {
		log.Warn("GITHUB_APP_ID not set, github statuses are disabled")
	}

	providers = append(providers,
		provider.NewGitLabProvider(cfg.GitLab.BaseURL, nil, cfg.StatusContextPrefix, log),
		provider.NewVercelProvider(cfg.Vercel.APIBaseURL, nil, log),
	)
	return providers, nil
}

func provideCoordinator(cfg *config.Config, store storage.Store, agg *status.Aggregator, urls *comment.URLBuilder, providers []core.Provider, log *slog.Logger) *dispatch.Coordinator {
	return dispatch.NewCoordinator(store, agg, urls, providers, cfg.ProviderTimeout, logger.Component(log, "dispatch"))
}

func provideNotificationJob(cfg *config.Config, store storage.Store, coordinator *dispatch.Coordinator, log *slog.Logger) *jobs.NotificationJob {
	policy := jobs.RetryPolicy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseDelay:   cfg.Queue.RetryBaseDelay,
		MaxDelay:    cfg.Queue.RetryMaxDelay,
		Jitter:      0.2,
	}
	// Every provider call is bounded by ProviderTimeout and they run in parallel.
	timeout := 2 * cfg.ProviderTimeout
	return jobs.NewNotificationJob(store, coordinator, policy, timeout, logger.Component(log, "jobs"))
}

func provideDispatcher(ctx context.Context, cfg *config.Config, job *jobs.NotificationJob, log *slog.Logger) (core.JobDispatcher, func(), error) {
	log = logger.Component(log, "queue")
	switch cfg.Queue.Backend {
	case config.QueueBackendRedis:
		rdb, err := jobs.NewRedisClient(ctx, cfg.Queue)
		if err != nil {
			return nil, nil, err
		}
		q := jobs.NewRedisQueue(rdb, cfg.Queue.RedisKey, job, cfg.Queue.Workers, log)
		return q, func() { _ = rdb.Close() }, nil
	default:
		return jobs.NewDispatcher(job, cfg.Queue.Workers, cfg.Queue.Size, log), func() {}, nil
	}
}

func provideLocalDispatcher(cfg *config.Config, job *jobs.NotificationJob, log *slog.Logger) core.JobDispatcher {
	return jobs.NewDispatcher(job, cfg.Queue.Workers, cfg.Queue.Size, logger.Component(log, "queue"))
}

func provideNotifier(store storage.Store, dispatcher core.JobDispatcher, log *slog.Logger) *jobs.Notifier {
	return jobs.NewNotifier(store, dispatcher, logger.Component(log, "notifier"))
}

func provideSweeper(cfg *config.Config, store storage.Store, dispatcher core.JobDispatcher, log *slog.Logger) *jobs.Sweeper {
	return jobs.NewSweeper(store, dispatcher, cfg.Queue.SweepInterval, cfg.Queue.StaleAfter, logger.Component(log, "sweeper"))
}

func provideReviewService(store storage.Store, notifier *jobs.Notifier, log *slog.Logger) *review.Service {
	return review.NewService(store, notifier, logger.Component(log, "review"))
}

func provideBuildHandler(store storage.Store, agg *status.Aggregator, reviews *review.Service, notifier *jobs.Notifier, log *slog.Logger) *handler.BuildHandler {
	return handler.NewBuildHandler(store, agg, reviews, notifier, logger.Component(log, "api"))
}

// provideWebhookHandler returns nil when no webhook secret is configured, which
// keeps the webhook route closed.
func provideWebhookHandler(cfg *config.Config, store storage.Store, log *slog.Logger) *handler.WebhookHandler {
	if cfg.GitHub.WebhookSecret == "" {
		return nil
	}
	return handler.NewWebhookHandler(cfg.GitHub.WebhookSecret, store, logger.Component(log, "webhook"))
}

func provideServer(cfg *config.Config, router *chi.Mux, log *slog.Logger) *server.Server {
	return server.NewServer(cfg.ServerPort, router, log)
}
