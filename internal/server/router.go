package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/pixel-warden/internal/server/handler"
)

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(builds *handler.BuildHandler, webhook *handler.WebhookHandler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/builds/{id}", func(r chi.Router) {
			r.Get("/status", builds.Status)
			r.Post("/review", builds.Review)
			r.Post("/notifications", builds.Notify)
		})
		if webhook != nil {
			r.Post("/webhook/github", webhook.Handle)
		} else {
			logger.Debug("github webhook route disabled")
		}
	})

	return r
}
