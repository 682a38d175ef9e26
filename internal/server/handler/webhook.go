package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"
)

// CommentDeletionStore remembers pull request comments removed on GitHub.
type CommentDeletionStore interface {
	MarkPullRequestCommentDeleted(ctx context.Context, commentID int64) (int64, error)
}

// WebhookHandler processes incoming webhooks from the GitHub App.
type WebhookHandler struct {
	secret string
	store  CommentDeletionStore
	logger *slog.Logger
}

// NewWebhookHandler creates a webhook handler. An empty secret disables signature checks.
func NewWebhookHandler(secret string, store CommentDeletionStore, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret: secret,
		store:  store,
		logger: logger,
	}
}

// Handle processes GitHub webhook requests.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, []byte(h.secret))
	if err != nil {
		h.logger.Error("invalid webhook payload signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		h.logger.Error("could not parse webhook", "error", err)
		http.Error(w, "Could not parse webhook", http.StatusBadRequest)
		return
	}

	switch e := event.(type) {
	case *github.IssueCommentEvent:
		h.handleIssueComment(r.Context(), w, e)
	default:
		h.logger.Debug("ignoring unhandled webhook event type", "type", github.WebHookType(r))
		_, _ = fmt.Fprint(w, "Event type not handled")
	}
}

// handleIssueComment stops updates of a build comment a user deleted, so the next
// notification does not bring it back.
func (h *WebhookHandler) handleIssueComment(ctx context.Context, w http.ResponseWriter, event *github.IssueCommentEvent) {
	if event.GetAction() != "deleted" || event.GetComment() == nil {
		_, _ = fmt.Fprint(w, "Comment ignored")
		return
	}

	commentID := event.GetComment().GetID()
	n, err := h.store.MarkPullRequestCommentDeleted(ctx, commentID)
	if err != nil {
		h.logger.Error("failed to record deleted comment", "error", err, "comment", commentID)
		http.Error(w, "Failed to record deleted comment", http.StatusInternalServerError)
		return
	}
	if n > 0 {
		h.logger.Info("build comment deleted on github", "comment", commentID, "repo", event.GetRepo().GetFullName())
	}
	_, _ = fmt.Fprint(w, "Comment deletion recorded")
}
