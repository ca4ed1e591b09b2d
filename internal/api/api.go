// Package api exposes the intake service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/sports-intake/internal/commit"
	"github.com/sells-group/sports-intake/internal/intake"
	"github.com/sells-group/sports-intake/internal/model"
)

// Service is the intake surface the handlers call.
type Service interface {
	Create(ctx context.Context, actor model.Actor, req intake.CreateRequest) (*model.Submission, error)
	Get(ctx context.Context, actor model.Actor, id string) (*model.Submission, error)
	List(ctx context.Context, actor model.Actor, filter model.SubmissionFilter) ([]model.Submission, error)
	Patch(ctx context.Context, actor model.Actor, id string, body json.RawMessage, replace bool) (*model.Submission, error)
	RequestExtraction(ctx context.Context, actor model.Actor, id string) (*model.Submission, error)
	OverrideFinding(ctx context.Context, actor model.Actor, id, findingID, reason string) (*model.Finding, error)
	Confirm(ctx context.Context, actor model.Actor, id string, body json.RawMessage) (*model.CommitSummary, error)
	Approve(ctx context.Context, actor model.Actor, id string, body json.RawMessage) (*model.ApproveResult, error)
	Reject(ctx context.Context, actor model.Actor, id string) error
	Delete(ctx context.Context, actor model.Actor, id string) error
	CorrectGame(ctx context.Context, actor model.Actor, gameID string, home, away int, reason string) (*commit.Correction, error)
	VerifyGame(ctx context.Context, actor model.Actor, gameID string) (*model.Game, error)
}

var _ Service = (*intake.Service)(nil)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure the router.
type Options struct {
	CORSOrigins []string
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Health is pinged by GET /health when set.
	Health Pinger
	// MaxUploadBytes bounds multipart bodies. Zero means 32 MiB.
	MaxUploadBytes int64
}

// Handler serves the REST API.
type Handler struct {
	svc       Service
	health    Pinger
	maxUpload int64
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(svc Service, opts Options) http.Handler {
	h := &Handler{svc: svc, health: opts.Health, maxUpload: opts.MaxUploadBytes}
	if h.maxUpload <= 0 {
		h.maxUpload = 32 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", headerActorID, headerActorRole},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(actorFromHeaders)
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/submissions", func(r chi.Router) {
			r.Post("/", h.CreateSubmission)
			r.Get("/", h.ListSubmissions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSubmission)
				r.Patch("/", h.PatchSubmission)
				r.Delete("/", h.DeleteSubmission)
				r.Post("/extract", h.RequestExtraction)
				r.Post("/findings/{findingID}/override", h.OverrideFinding)
				r.Post("/confirm", h.Confirm)
				r.Post("/approve", h.Approve)
				r.Post("/reject", h.Reject)
			})
		})

		r.Route("/games/{id}", func(r chi.Router) {
			r.Patch("/score", h.CorrectScore)
			r.Post("/verify", h.VerifyGame)
		})
	})
	return r
}

// Health reports liveness and, when configured, store reachability.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
