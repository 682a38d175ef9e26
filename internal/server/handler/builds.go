// Package handler provides HTTP handlers for the pixel-warden API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/review"
	"github.com/sevigo/pixel-warden/internal/status"
	"github.com/sevigo/pixel-warden/internal/storage"
)

// BuildReader loads builds.
type BuildReader interface {
	GetBuild(ctx context.Context, id string) (*core.Build, error)
}

// StatusReader derives the status of a build.
type StatusReader interface {
	AggregatedStatus(ctx context.Context, build core.Build) (core.AggregatedStatus, error)
	Stats(ctx context.Context, buildID string) (core.BuildStats, error)
}

// Reviewer applies reviewer verdicts.
type Reviewer interface {
	Review(ctx context.Context, buildID string, verdict core.ValidationStatus) (*core.BuildNotification, error)
}

// Pusher queues build notifications.
type Pusher interface {
	Push(ctx context.Context, tx *storage.Tx, buildID string, notificationType core.NotificationType) (*core.BuildNotification, error)
}

// BuildHandler serves the build endpoints.
type BuildHandler struct {
	builds   BuildReader
	statuses StatusReader
	reviewer Reviewer
	pusher   Pusher
	logger   *slog.Logger
}

func NewBuildHandler(builds BuildReader, statuses StatusReader, reviewer Reviewer, pusher Pusher, logger *slog.Logger) *BuildHandler {
	return &BuildHandler{
		builds:   builds,
		statuses: statuses,
		reviewer: reviewer,
		pusher:   pusher,
		logger:   logger,
	}
}

// StatusResponse is the body of GET /builds/{id}/status.
type StatusResponse struct {
	BuildID string          `json:"buildId" yaml:"buildId"`
	Number  int             `json:"number" yaml:"number"`
	Name    string          `json:"name" yaml:"name"`
	Status  string          `json:"status" yaml:"status"`
	Label   string          `json:"label" yaml:"label"`
	Summary string          `json:"summary" yaml:"summary"`
	Stats   core.BuildStats `json:"stats" yaml:"stats"`
}

// NotificationResponse describes a queued notification.
type NotificationResponse struct {
	ID        string `json:"id" yaml:"id"`
	BuildID   string `json:"buildId" yaml:"buildId"`
	Type      string `json:"type" yaml:"type"`
	JobStatus string `json:"jobStatus" yaml:"jobStatus"`
}

type reviewRequest struct {
	Verdict string `json:"verdict"`
}

type notifyRequest struct {
	Type string `json:"type"`
}

// Status returns the aggregated status of a build.
func (h *BuildHandler) Status(w http.ResponseWriter, r *http.Request) {
	build, ok := h.loadBuild(w, r)
	if !ok {
		return
	}

	aggregated, err := h.statuses.AggregatedStatus(r.Context(), *build)
	if err != nil {
		h.fail(w, "failed to aggregate build status", err)
		return
	}
	label, err := aggregated.Label()
	if err != nil {
		h.fail(w, "failed to label build status", err)
		return
	}
	stats, err := h.statuses.Stats(r.Context(), build.ID)
	if err != nil {
		h.fail(w, "failed to load build stats", err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		BuildID: build.ID,
		Number:  build.Number,
		Name:    build.Name,
		Status:  string(aggregated),
		Label:   label,
		Summary: status.StatsMessage(stats),
		Stats:   stats,
	})
}

// Review records a verdict on every diff of the build.
func (h *BuildHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := buildID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n, err := h.reviewer.Review(r.Context(), id, core.ValidationStatus(req.Verdict))
	switch {
	case errors.Is(err, review.ErrInvalidVerdict):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, "Build not found", http.StatusNotFound)
		return
	case err != nil:
		h.fail(w, "failed to review build", err)
		return
	}
	writeJSON(w, http.StatusAccepted, notificationResponse(n))
}

// Notify queues a notification of the requested type for the build.
func (h *BuildHandler) Notify(w http.ResponseWriter, r *http.Request) {
	build, ok := h.loadBuild(w, r)
	if !ok {
		return
	}
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	notificationType, err := core.ParseNotificationType(req.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.pusher.Push(r.Context(), nil, build.ID, notificationType)
	if err != nil {
		h.fail(w, "failed to push notification", err)
		return
	}
	h.logger.Info("notification pushed", "build", build.ID, "type", req.Type, "notification", n.ID)
	writeJSON(w, http.StatusAccepted, notificationResponse(n))
}

func (h *BuildHandler) loadBuild(w http.ResponseWriter, r *http.Request) (*core.Build, bool) {
	id, ok := buildID(w, r)
	if !ok {
		return nil, false
	}
	build, err := h.builds.GetBuild(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		http.Error(w, "Build not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.fail(w, "failed to load build", err)
		return nil, false
	}
	return build, true
}

func (h *BuildHandler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func buildID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "Invalid build id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func notificationResponse(n *core.BuildNotification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		BuildID:   n.BuildID,
		Type:      string(n.Type),
		JobStatus: string(n.JobStatus),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
