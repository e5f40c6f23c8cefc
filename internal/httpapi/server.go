package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/audiotutor/audiotutor/internal/observability"
	"github.com/audiotutor/audiotutor/internal/session"
	"github.com/audiotutor/audiotutor/internal/store"
	"github.com/audiotutor/audiotutor/internal/voice"
)

// Server is the placeholder HTTP surface: health, metrics, and a status
// endpoint. The session pipeline itself is not network-driven here.
type Server struct {
	sessions *session.Manager
	records  store.Store
	metrics  *observability.Metrics
	log      zerolog.Logger
}

func New(sessions *session.Manager, records store.Store, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		sessions: sessions,
		records:  records,
		metrics:  metrics,
		log:      log.With().Str("component", "httpapi").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/languages", s.handleLanguages)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.records.Stats(ctx); err != nil {
		s.log.Warn().Err(err).Msg("readiness probe failed on record store")
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	stats, err := s.records.Stats(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("status query failed")
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "stats unavailable"})
		return
	}

	out := map[string]any{
		"active_sessions":     s.sessions.ActiveCount(),
		"total_conversations": stats.TotalConversations,
		"unique_users":        stats.UniqueUsers,
	}
	if s.metrics != nil {
		out["stages"] = s.metrics.Stages.Snapshot()
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"languages": voice.SupportedLanguages()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
