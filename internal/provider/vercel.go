package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/sevigo/pixel-warden/internal/core"
)

// VercelProvider updates the deployment check registered for a build.
type VercelProvider struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ core.Provider = (*VercelProvider)(nil)

// NewVercelProvider creates the Vercel adapter. httpClient is the base client the
// bearer transport wraps; nil means http.DefaultClient.
func NewVercelProvider(baseURL string, httpClient *http.Client, logger *slog.Logger) *VercelProvider {
	return &VercelProvider{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.With("provider", "vercel"),
	}
}

type vercelCheckUpdate struct {
	Name       string                 `json:"name"`
	DetailsURL string                 `json:"detailsUrl"`
	ExternalID string                 `json:"externalId"`
	Status     *core.VercelStatus     `json:"status,omitempty"`
	Conclusion *core.VercelConclusion `json:"conclusion,omitempty"`
}

func (p *VercelProvider) Name() string { return "vercel" }

func (p *VercelProvider) Notify(ctx context.Context, d *core.Delivery) error {
	nc := d.Context
	check := nc.VercelCheck
	if check == nil {
		return nil
	}
	if check.Deployment == nil {
		return core.Invariant("vercel deployment not found for check %s", check.ID)
	}
	if check.Deployment.Project == nil {
		return core.Invariant("vercel project not found for deployment %s", check.Deployment.ID)
	}
	cfg := check.Deployment.Project.ActiveConfiguration
	if cfg == nil || cfg.VercelAccessToken == nil || *cfg.VercelAccessToken == "" {
		p.logger.Debug("no active vercel configuration, skipping", "check", check.ID)
		return nil
	}

	update := vercelCheckUpdate{
		Name:       d.Payload.Description,
		DetailsURL: d.BuildURL,
		ExternalID: nc.Build.ID,
		Status:     d.Payload.VercelStatus,
		Conclusion: d.Payload.VercelConclusion,
	}
	return p.updateCheck(ctx, *cfg.VercelAccessToken, cfg.VercelTeamID, check.Deployment.VercelID, check.VercelID, update)
}

func (p *VercelProvider) updateCheck(ctx context.Context, token string, teamID *string, deploymentID, checkID string, update vercelCheckUpdate) error {
	endpoint := fmt.Sprintf("%s/v1/deployments/%s/checks/%s", p.baseURL, url.PathEscape(deploymentID), url.PathEscape(checkID))
	if teamID != nil && *teamID != "" {
		endpoint += "?" + url.Values{"teamId": {*teamID}}.Encode()
	}

	body, err := json.Marshal(update)
	if err != nil {
		return core.Unretryable(fmt.Errorf("failed to encode vercel check update: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return core.Unretryable(fmt.Errorf("failed to build vercel request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client(ctx, token).Do(req)
	if err != nil {
		return fmt.Errorf("failed to update vercel check %s: %w", checkID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("failed to update vercel check %s: %w", checkID, &HTTPError{StatusCode: resp.StatusCode, Body: string(msg)})
}

func (p *VercelProvider) client(ctx context.Context, token string) *http.Client {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}
