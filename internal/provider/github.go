package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	gh "github.com/google/go-github/v73/github"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/github"
	"github.com/sevigo/pixel-warden/internal/util"
)

// CommentStore persists the pull request comment written on GitHub.
type CommentStore interface {
	SetPullRequestCommentID(ctx context.Context, pullRequestID string, commentID int64) error
}

// GitHubProvider posts commit statuses through the GitHub App installation of the
// repository and keeps the pull request comment up to date.
type GitHubProvider struct {
	clients  github.ClientFactory
	comments core.CommentBuilder
	store    CommentStore
	prefix   string
	logger   *slog.Logger
}

var _ core.Provider = (*GitHubProvider)(nil)

// NewGitHubProvider creates the GitHub adapter.
func NewGitHubProvider(clients github.ClientFactory, comments core.CommentBuilder, store CommentStore, prefix string, logger *slog.Logger) *GitHubProvider {
	return &GitHubProvider{
		clients:  clients,
		comments: comments,
		store:    store,
		prefix:   prefix,
		logger:   logger.With("provider", "github"),
	}
}

func (p *GitHubProvider) Name() string { return "github" }

func (p *GitHubProvider) Notify(ctx context.Context, d *core.Delivery) error {
	nc := d.Context
	if nc.GitHubRepository == nil {
		return nil
	}
	if nc.GitHubAccount == nil {
		return core.Invariant("github account not found for repository %s", nc.GitHubRepository.ID)
	}
	if nc.GitHubInstallation == nil {
		p.logger.Debug("no active installation, skipping", "repository", nc.GitHubRepository.Name)
		return nil
	}

	client, err := p.clients.InstallationClient(nc.GitHubInstallation.GitHubID)
	if err != nil {
		return core.Unretryable(fmt.Errorf("failed to create github client: %w", err))
	}

	owner, repo := nc.GitHubAccount.Login, nc.GitHubRepository.Name
	sha := nc.Commit()
	err = client.CreateStatus(ctx, owner, repo, sha, github.CommitStatus{
		State:       string(d.Payload.GitHubState),
		TargetURL:   d.BuildURL,
		Description: d.Payload.Description,
		Context:     util.StatusContext(p.prefix, nc.Build.Name),
	})
	if err != nil && !isStaleCommit(err) {
		return fmt.Errorf("failed to create github status on %s/%s@%s: %w", owner, repo, sha, err)
	}
	stale := err
	if stale != nil {
		p.logger.Info("commit status rejected as stale", "repository", owner+"/"+repo, "commit", sha, "error", stale)
	}

	if err := p.upsertComment(ctx, client, nc); err != nil {
		return err
	}
	if stale != nil {
		return Benign(fmt.Errorf("commit %s of %s/%s: %w", sha, owner, repo, stale))
	}
	return nil
}

func (p *GitHubProvider) upsertComment(ctx context.Context, client github.Client, nc *core.NotificationContext) error {
	pr := nc.PullRequest
	if !nc.Project.PRCommentEnabled || nc.Build.GitHubPullRequestID == nil || pr == nil || pr.CommentDeleted {
		return nil
	}

	// The comment lists the builds of the compare bucket commit, which can differ
	// from the pull request head.
	body, err := p.comments.CommentBody(ctx, nc.Compare.Commit)
	if err != nil {
		return fmt.Errorf("failed to render pull request comment: %w", err)
	}

	owner, repo := nc.GitHubAccount.Login, nc.GitHubRepository.Name
	commentID, err := client.UpsertIssueComment(ctx, owner, repo, pr.Number, pr.CommentID, body)
	if err != nil {
		return fmt.Errorf("failed to write comment on %s/%s#%d: %w", owner, repo, pr.Number, err)
	}
	if pr.CommentID != nil && *pr.CommentID == commentID {
		return nil
	}
	if err := p.store.SetPullRequestCommentID(ctx, pr.ID, commentID); err != nil {
		return fmt.Errorf("failed to save comment id of pull request %s: %w", pr.ID, err)
	}
	return nil
}

// isStaleCommit reports the 422 GitHub answers when the commit is unknown or
// already carries the maximum number of statuses.
func isStaleCommit(err error) bool {
	var ghErr *gh.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity
}
