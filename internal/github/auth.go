package github

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/google/go-github/v73/github"
	"github.com/gregjones/httpcache"

	"github.com/sevigo/pixel-warden/internal/config"
)

const defaultAPIBaseURL = "https://api.github.com/"

// ClientFactory hands out clients authenticated as an installation of the GitHub App.
type ClientFactory interface {
	InstallationClient(installationID int64) (Client, error)
}

type installationClientFactory struct {
	appID      int64
	privateKey []byte
	baseURL    *url.URL
	base       http.RoundTripper
	cache      httpcache.Cache
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[int64]Client
}

// NewClientFactory reads the App private key and prepares the shared transport stack.
// Every installation client goes through:
//  1. httpcache (ETag conditional requests, one cache shared by all installations)
//  2. ghinstallation (installation token minting and refresh)
//  3. go-github-ratelimit (sleeps on secondary rate limits)
func NewClientFactory(cfg config.GitHubConfig, logger *slog.Logger) (ClientFactory, error) {
	privateKey, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key from %s: %w", cfg.PrivateKeyPath, err)
	}
	return newClientFactory(cfg, privateKey, http.DefaultTransport, logger)
}

func newClientFactory(cfg config.GitHubConfig, privateKey []byte, base http.RoundTripper, logger *slog.Logger) (*installationClientFactory, error) {
	raw := cfg.APIBaseURL
	if raw == "" {
		raw = defaultAPIBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	baseURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API base URL %q: %w", raw, err)
	}

	return &installationClientFactory{
		appID:      cfg.AppID,
		privateKey: privateKey,
		baseURL:    baseURL,
		base:       base,
		cache:      httpcache.NewMemoryCache(),
		logger:     logger,
		clients:    make(map[int64]Client),
	}, nil
}

// InstallationClient returns the client of an installation, creating it on first use.
func (f *installationClientFactory) InstallationClient(installationID int64) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[installationID]; ok {
		return c, nil
	}

	cacheTransport := &httpcache.Transport{Transport: f.base, Cache: f.cache, MarkCachedResponses: true}
	itr, err := ghinstallation.New(cacheTransport, f.appID, installationID, f.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation transport for %d: %w", installationID, err)
	}
	itr.BaseURL = strings.TrimSuffix(f.baseURL.String(), "/")

	client := github.NewClient(github_ratelimit.NewClient(itr))
	client.BaseURL = f.baseURL

	f.logger.Info("created GitHub installation client", "installation_id", installationID)
	c := NewGitHubClient(client, f.logger)
	f.clients[installationID] = c
	return c, nil
}
