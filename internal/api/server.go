// Package api provides the HTTP server for GivePulse.
// It exposes the payment webhook endpoint and a small REST surface for
// campaigns, donation stats, automation logs, and health.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/givepulse/givepulse/internal/app"
	"github.com/givepulse/givepulse/internal/app/router"
	"github.com/givepulse/givepulse/internal/domain"
)

// Server is the GivePulse HTTP API server.
type Server struct {
	core           *app.Core
	log            *slog.Logger
	metricsEnabled bool
}

// NewServer creates a new API server around the engine core.
func NewServer(core *app.Core, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{core: core, log: log.With("component", "api")}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": "0.1.0",
		})
	})

	// Payment processor webhook. The response code carries the redelivery
	// contract: 2xx acknowledges, 4xx refuses permanently, 5xx asks the
	// processor to redeliver.
	r.Post("/webhooks/payment", s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/campaigns", s.handleListCampaigns)
		r.Post("/campaigns", s.handleCreateCampaign)
		r.Get("/campaigns/{id}", s.handleGetCampaign)
		r.Post("/campaigns/{id}/recompute", s.handleRecompute)
		r.Get("/stats", s.handleStats)
		r.Get("/automation/logs", s.handleAutomationLogs)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Webhook ─────────────────────────────────────────────────────────────────

// webhookEvent is the wire shape of a processor event.
type webhookEvent struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var ev webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "malformed event payload")
		return
	}

	res := s.core.HandleEvent(r.Context(), domain.Event{
		ID:        ev.ID,
		Type:      ev.Type,
		Data:      ev.Data,
		CreatedAt: time.Now(),
	})

	switch res.Outcome {
	case router.OutcomeHandled, router.OutcomeUnsupported:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"received": ev.ID,
			"outcome":  string(res.Outcome),
		})
	case router.OutcomeRejected:
		writeError(w, http.StatusBadRequest, res.Err.Error())
	default: // OutcomeFailed
		if res.Retryable {
			// 5xx so the processor redelivers.
			writeError(w, http.StatusInternalServerError, res.Err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, res.Err.Error())
	}
}

// ─── Campaigns & Reporting ──────────────────────────────────────────────────

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	camps, err := s.core.ListCampaigns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": camps})
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.core.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var c domain.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "malformed campaign payload")
		return
	}
	if err := s.core.CreateCampaign(r.Context(), &c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info("campaign created", "campaign", c.ID, "goal", c.GoalAmount)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	raised, err := s.core.RecomputeRaised(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"campaign_id":   id,
		"raised_amount": raised,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.core.GetDonationStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAutomationLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": s.core.GetAutomationLogs(limit),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.core.HealthStatus()
	status := http.StatusOK
	if state == domain.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{
		"status": string(state),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
