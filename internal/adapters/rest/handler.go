// Package rest exposes the recommendation flows and the history over HTTP.
package rest

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/services"
)

const healthTimeout = 2 * time.Second

// Service is the part of *services.Orchestrator the handler needs.
type Service interface {
	RecommendByMood(ctx context.Context, req services.MoodRequest) (services.MoodResult, error)
	DiscoverBySong(ctx context.Context, req services.SongRequest) (services.SongResult, error)
	History(ctx context.Context, kind domain.HistoryKind, limit int) ([]domain.HistoryEntry, error)
	HistoryEntry(ctx context.Context, kind domain.HistoryKind, id int64) (domain.HistoryEntry, error)
	HistoryStats(ctx context.Context) (services.HistoryStats, error)
	ClearHistory(ctx context.Context) (int64, error)
}

var _ Service = (*services.Orchestrator)(nil)

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc      Service
	router   chi.Router
	validate *validator.Validate
	health   func(ctx context.Context) error
}

// Option configures a Handler.
type Option func(*Handler)

// WithHealthCheck makes GET /health report 503 when check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(h *Handler) { h.health = check }
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc Service, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		router:   chi.NewRouter(),
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.router.Use(requestID)
	h.router.Use(chimiddleware.Recoverer)
	h.router.Use(recordMetrics)

	h.router.Get("/health", h.HealthCheck)
	h.router.Handle("/metrics", promhttp.Handler())

	h.router.Route("/recommendations", func(r chi.Router) {
		r.Post("/mood", h.RecommendByMood)
		r.Post("/similar", h.DiscoverBySong)
	})

	h.router.Route("/history", func(r chi.Router) {
		r.Get("/", h.ListHistory)
		r.Delete("/", h.ClearHistory)
		r.Get("/stats", h.HistoryStats)
		r.Get("/{kind}/{id}", h.GetHistoryEntry)
	})
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "message": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Moodmix is live 🎶"})
}
