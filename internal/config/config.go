package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/pixel-warden/internal/logger"
)

const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

// Config holds the application's configuration values.
type Config struct {
	ServerPort          string
	ServerURL           string
	StatusContextPrefix string
	ProviderTimeout     time.Duration
	Logger              logger.Config
	DB                  DBConfig
	GitHub              GitHubConfig
	GitLab              GitLabConfig
	Vercel              VercelConfig
	Queue               QueueConfig
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// GitHubConfig holds the GitHub App credentials. The GitHub integration is disabled
// when AppID is zero.
type GitHubConfig struct {
	AppID          int64
	PrivateKeyPath string
	APIBaseURL     string
	WebhookSecret  string
}

// Enabled reports whether GitHub App credentials were provided.
func (c GitHubConfig) Enabled() bool {
	return c.AppID != 0
}

// GitLabConfig holds the GitLab instance settings. Tokens are per account.
type GitLabConfig struct {
	BaseURL string
}

// VercelConfig holds the Vercel API settings. Tokens are per integration.
type VercelConfig struct {
	APIBaseURL string
}

// QueueConfig controls how notification deliveries are queued and retried.
type QueueConfig struct {
	Backend        string
	Workers        int
	Size           int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	SweepInterval  time.Duration
	StaleAfter     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKey       string
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to read config file", "error", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("STATUS_CONTEXT_PREFIX", "pixel-warden")
	v.SetDefault("PROVIDER_TIMEOUT", "10s")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "pixel_warden")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")

	v.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/pixel-warden.private-key.pem")
	v.SetDefault("GITHUB_API_BASE_URL", "https://api.github.com/")
	v.SetDefault("GITLAB_BASE_URL", "https://gitlab.com/api/v4")
	v.SetDefault("VERCEL_API_BASE_URL", "https://api.vercel.com")

	v.SetDefault("QUEUE_BACKEND", QueueBackendMemory)
	v.SetDefault("QUEUE_WORKERS", 5)
	v.SetDefault("QUEUE_SIZE", 100)
	v.SetDefault("QUEUE_MAX_ATTEMPTS", 5)
	v.SetDefault("QUEUE_RETRY_BASE_DELAY", "5s")
	v.SetDefault("QUEUE_RETRY_MAX_DELAY", "10m")
	v.SetDefault("QUEUE_SWEEP_INTERVAL", "30s")
	v.SetDefault("QUEUE_STALE_AFTER", "5m")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY", "pixel-warden:notifications")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		ServerPort:          v.GetString("SERVER_PORT"),
		ServerURL:           strings.TrimRight(v.GetString("SERVER_URL"), "/"),
		StatusContextPrefix: v.GetString("STATUS_CONTEXT_PREFIX"),
		ProviderTimeout:     v.GetDuration("PROVIDER_TIMEOUT"),
		Logger: logger.Config{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
			File:   v.GetString("LOG_FILE"),
		},
		DB: DBConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Username:        v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		GitHub: GitHubConfig{
			AppID:          v.GetInt64("GITHUB_APP_ID"),
			PrivateKeyPath: v.GetString("GITHUB_PRIVATE_KEY_PATH"),
			APIBaseURL:     v.GetString("GITHUB_API_BASE_URL"),
			WebhookSecret:  v.GetString("GITHUB_WEBHOOK_SECRET"),
		},
		GitLab: GitLabConfig{
			BaseURL: v.GetString("GITLAB_BASE_URL"),
		},
		Vercel: VercelConfig{
			APIBaseURL: strings.TrimRight(v.GetString("VERCEL_API_BASE_URL"), "/"),
		},
		Queue: QueueConfig{
			Backend:        strings.ToLower(v.GetString("QUEUE_BACKEND")),
			Workers:        v.GetInt("QUEUE_WORKERS"),
			Size:           v.GetInt("QUEUE_SIZE"),
			MaxAttempts:    v.GetInt("QUEUE_MAX_ATTEMPTS"),
			RetryBaseDelay: v.GetDuration("QUEUE_RETRY_BASE_DELAY"),
			RetryMaxDelay:  v.GetDuration("QUEUE_RETRY_MAX_DELAY"),
			SweepInterval:  v.GetDuration("QUEUE_SWEEP_INTERVAL"),
			StaleAfter:     v.GetDuration("QUEUE_STALE_AFTER"),
			RedisAddr:      v.GetString("REDIS_ADDR"),
			RedisPassword:  v.GetString("REDIS_PASSWORD"),
			RedisDB:        v.GetInt("REDIS_DB"),
			RedisKey:       v.GetString("REDIS_KEY"),
		},
	}
}

// Validate checks that the required values are present and consistent.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("SERVER_URL must be set")
	}
	if u, err := url.Parse(c.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SERVER_URL must be an absolute URL, got %q", c.ServerURL)
	}
	if c.StatusContextPrefix == "" {
		return errors.New("STATUS_CONTEXT_PREFIX must not be empty")
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("DB_HOST and DB_NAME must be set")
	}
	if c.GitHub.Enabled() && c.GitHub.PrivateKeyPath == "" {
		return errors.New("GITHUB_PRIVATE_KEY_PATH must be set when GITHUB_APP_ID is set")
	}
	return c.Queue.validate()
}

func (q QueueConfig) validate() error {
	switch q.Backend {
	case QueueBackendMemory:
	case QueueBackendRedis:
		if q.RedisAddr == "" {
			return errors.New("REDIS_ADDR must be set for the redis queue backend")
		}
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", q.Backend)
	}
	if q.Workers <= 0 {
		return errors.New("QUEUE_WORKERS must be positive")
	}
	if q.Size <= 0 {
		return errors.New("QUEUE_SIZE must be positive")
	}
	if q.MaxAttempts <= 0 {
		return errors.New("QUEUE_MAX_ATTEMPTS must be positive")
	}
	if q.RetryBaseDelay <= 0 || q.RetryMaxDelay < q.RetryBaseDelay {
		return errors.New("QUEUE_RETRY_BASE_DELAY must be positive and not above QUEUE_RETRY_MAX_DELAY")
	}
	if q.SweepInterval <= 0 || q.StaleAfter <= 0 {
		return errors.New("QUEUE_SWEEP_INTERVAL and QUEUE_STALE_AFTER must be positive")
	}
	return nil
}
