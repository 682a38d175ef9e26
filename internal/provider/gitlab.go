package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xanzy/go-gitlab"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/util"
)

// GitLabProvider posts commit statuses with the access token of the account owner.
type GitLabProvider struct {
	baseURL    string
	httpClient *http.Client
	prefix     string
	logger     *slog.Logger
}

var _ core.Provider = (*GitLabProvider)(nil)

// NewGitLabProvider creates the GitLab adapter. httpClient may be nil.
func NewGitLabProvider(baseURL string, httpClient *http.Client, prefix string, logger *slog.Logger) *GitLabProvider {
	return &GitLabProvider{
		baseURL:    baseURL,
		httpClient: httpClient,
		prefix:     prefix,
		logger:     logger.With("provider", "gitlab"),
	}
}

func (p *GitLabProvider) Name() string { return "gitlab" }

func (p *GitLabProvider) Notify(ctx context.Context, d *core.Delivery) error {
	nc := d.Context
	if nc.Account == nil {
		return core.Invariant("account not found for project %s", nc.Project.ID)
	}
	if nc.Account.GitLabAccessToken == nil || *nc.Account.GitLabAccessToken == "" {
		return nil
	}
	if nc.GitLabProject == nil {
		return nil
	}

	client, err := p.client(*nc.Account.GitLabAccessToken)
	if err != nil {
		return core.Unretryable(fmt.Errorf("failed to create gitlab client: %w", err))
	}

	sha := nc.Commit()
	opts := &gitlab.SetCommitStatusOptions{
		State:       gitlab.BuildStateValue(d.Payload.GitLabState),
		Context:     gitlab.Ptr(util.StatusContext(p.prefix, nc.Build.Name)),
		TargetURL:   gitlab.Ptr(d.BuildURL),
		Description: gitlab.Ptr(d.Payload.Description),
	}
	_, _, err = client.Commits.SetCommitStatus(int(nc.GitLabProject.GitLabID), sha, opts, gitlab.WithContext(ctx))
	if err != nil {
		if isSameStateTransition(err) {
			return Benign(err)
		}
		return fmt.Errorf("failed to set gitlab status on project %d@%s: %w", nc.GitLabProject.GitLabID, sha, err)
	}
	return nil
}

func (p *GitLabProvider) client(token string) (*gitlab.Client, error) {
	opts := []gitlab.ClientOptionFunc{gitlab.WithBaseURL(p.baseURL)}
	if p.httpClient != nil {
		opts = append(opts, gitlab.WithHTTPClient(p.httpClient))
	}
	return gitlab.NewClient(token, opts...)
}

// isSameStateTransition reports the 400 GitLab answers when the status already is in
// the requested state, which happens when a delivery is repeated.
func isSameStateTransition(err error) bool {
	var glErr *gitlab.ErrorResponse
	if !errors.As(err, &glErr) || glErr.Response == nil {
		return false
	}
	return glErr.Response.StatusCode == http.StatusBadRequest &&
		strings.Contains(glErr.Message, "Cannot transition status")
}
