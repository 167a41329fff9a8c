// Package api provides HTTP handlers for the MuscleLog API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/musclelog/server/internal/coach"
	"github.com/musclelog/server/internal/config"
	"github.com/musclelog/server/internal/llm"
	"github.com/musclelog/server/internal/store"
)

// Handler provides the authenticated API endpoints.
type Handler struct {
	repo         store.Repository
	orchestrator *coach.Orchestrator
	llm          *llm.Client
	rateLimiter  *RateLimiter
	cfg          *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, orchestrator *coach.Orchestrator, llmClient *llm.Client, cfg *config.Config) *Handler {
	return &Handler{
		repo:         repo,
		orchestrator: orchestrator,
		llm:          llmClient,
		rateLimiter:  NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		cfg:          cfg,
	}
}

// RegisterRoutes registers the authenticated API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Post("/transcribe", h.HandleTranscribe)
		r.Get("/export", h.HandleExport)
		r.Post("/admin/classify-exercises", h.HandleClassifyExercises)
		r.Post("/billing/checkout", h.HandleCheckout)
		if h.cfg.SeedEnabled {
			r.Post("/seed", h.HandleSeed)
		}
	})
	r.Get("/ws/chat", h.HandleChatSocket)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
