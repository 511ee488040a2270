// Package api provides the HTTP server for FocusDeck.
// It exposes account, record, ledger, and chat endpoints plus a realtime
// change feed over SSE.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/focusdeck/focusdeck/internal/app/agent"
	"github.com/focusdeck/focusdeck/internal/app/ledger"
	"github.com/focusdeck/focusdeck/internal/app/meter"
	"github.com/focusdeck/focusdeck/internal/app/syncer"
	"github.com/focusdeck/focusdeck/internal/domain"
)

// Server is the FocusDeck HTTP API server.
type Server struct {
	accounts       domain.AccountStore
	ledger         *ledger.Service
	gateway        *meter.Gateway
	coordinator    *syncer.Coordinator
	notifier       domain.Notifier
	dispatcher     *agent.Dispatcher // nil when no assistant backend configured
	now            func() time.Time
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(accounts domain.AccountStore, ledgerSvc *ledger.Service, gateway *meter.Gateway, coordinator *syncer.Coordinator, notifier domain.Notifier) *Server {
	return &Server{
		accounts:    accounts,
		ledger:      ledgerSvc,
		gateway:     gateway,
		coordinator: coordinator,
		notifier:    notifier,
		now:         time.Now,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetDispatcher wires the assistant dispatcher. Without it the chat
// endpoint answers 503.
func (s *Server) SetDispatcher(d *agent.Dispatcher) { s.dispatcher = d }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "FocusDeck is running",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": "0.1.0",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts", s.handleCreateAccount)
		r.Get("/accounts/{id}", s.handleGetAccount)

		r.Post("/session", s.handleSwitchSession)
		r.Get("/session", s.handleGetSession)

		r.Get("/records", s.handleListRecords)
		r.Post("/records/{kind}", s.handleUpsertRecord)
		r.Delete("/records/{kind}/{id}", s.handleDeleteRecord)
		r.Post("/records/habit/{id}/toggle", s.handleToggleHabit)

		r.Get("/account/balance", s.handleBalance)
		r.Get("/ledger/transactions", s.handleTransactions)

		r.Post("/chat", s.handleChat)
		r.Get("/realtime/{accountID}", s.handleRealtime)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

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

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
