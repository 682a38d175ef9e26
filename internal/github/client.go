// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"
)

// CommitStatus is one commit status as shown on GitHub. Statuses sharing a Context
// replace each other.
type CommitStatus struct {
	State       string
	TargetURL   string
	Description string
	Context     string
}

// Client defines the GitHub operations used to report build results on commits
// and pull requests.
//
//go:generate mockgen -destination=../../mocks/mock_github_client.go -package=mocks . Client
type Client interface {
	CreateStatus(ctx context.Context, owner, repo, ref string, status CommitStatus) error
	// UpsertIssueComment edits the comment commentID when set and still present,
	// otherwise creates a new comment. It returns the id of the written comment.
	UpsertIssueComment(ctx context.Context, owner, repo string, number int, commentID *int64, body string) (int64, error)
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewGitHubClient wraps the official go-github client to provide a focused,
// testable interface for application-specific GitHub operations.
func NewGitHubClient(client *github.Client, logger *slog.Logger) Client {
	return &gitHubClient{client: client, logger: logger}
}

// CreateStatus creates a commit status on ref.
func (g *gitHubClient) CreateStatus(ctx context.Context, owner, repo, ref string, status CommitStatus) error {
	repoStatus := &github.RepoStatus{
		State:       github.Ptr(status.State),
		TargetURL:   github.Ptr(status.TargetURL),
		Description: github.Ptr(truncate(status.Description, maxDescriptionLength)),
		Context:     github.Ptr(status.Context),
	}
	_, _, err := g.client.Repositories.CreateStatus(ctx, owner, repo, ref, repoStatus)
	if err != nil {
		g.logger.Debug("failed to create commit status", "owner", owner, "repo", repo, "ref", ref, "context", status.Context, "error", err)
	}
	return err
}

// UpsertIssueComment writes the pull request comment, recreating it when the stored
// one was deleted on GitHub.
func (g *gitHubClient) UpsertIssueComment(ctx context.Context, owner, repo string, number int, commentID *int64, body string) (int64, error) {
	comment := &github.IssueComment{Body: github.Ptr(body)}

	if commentID != nil {
		edited, _, err := g.client.Issues.EditComment(ctx, owner, repo, *commentID, comment)
		if err == nil {
			return edited.GetID(), nil
		}
		if !isNotFound(err) {
			g.logger.Error("failed to edit comment", "owner", owner, "repo", repo, "pr", number, "comment_id", *commentID, "error", err)
			return 0, err
		}
		g.logger.Info("stored comment is gone, creating a new one", "owner", owner, "repo", repo, "pr", number)
	}

	created, _, err := g.client.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		g.logger.Error("failed to create comment", "owner", owner, "repo", repo, "pr", number, "error", err)
		return 0, err
	}
	return created.GetID(), nil
}

// GitHub rejects commit status descriptions longer than this.
const maxDescriptionLength = 140

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
