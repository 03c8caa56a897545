// Package server exposes the read-only status API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"stockwatch/pkg/marketcal"
	"stockwatch/pkg/quota"
	"stockwatch/pkg/storage"
)

// Server provides health check and status API endpoints.
type Server struct {
	store    storage.Storage
	ledger   *quota.Ledger
	calendar *marketcal.Calendar
	mux      *http.ServeMux
	logger   *slog.Logger
}

// NewServer creates an API server.
func NewServer(store storage.Storage, ledger *quota.Ledger, calendar *marketcal.Calendar, logger *slog.Logger) *Server {
	s := &Server{
		store:    store,
		ledger:   ledger,
		calendar: calendar,
		mux:      http.NewServeMux(),
		logger:   logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/alerts", s.handleAlerts)
	s.mux.HandleFunc("GET /api/v1/budget", s.handleBudget)
	s.mux.HandleFunc("GET /api/v1/markets", s.handleMarkets)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	alerts, err := s.listAlerts(ctx, r.URL.Query().Get("owner"))
	if err != nil {
		s.logger.Error("list alerts", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

func (s *Server) listAlerts(ctx context.Context, owner string) (any, error) {
	if owner == "" {
		return s.store.ListActiveAlerts(ctx)
	}
	ownerID, err := strconv.ParseInt(owner, 10, 64)
	if err != nil {
		return nil, err
	}
	return s.store.ListOwnerAlerts(ctx, ownerID)
}

func (s *Server) handleBudget(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ledger.Status())
}

type marketStatus struct {
	Exchange     string `json:"exchange"`
	Open         bool   `json:"open"`
	UntilOpenSec int64  `json:"until_open_sec,omitempty"`
}

func (s *Server) handleMarkets(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()

	var markets []marketStatus
	for _, code := range s.calendar.Exchanges() {
		m := marketStatus{Exchange: code, Open: s.calendar.IsOpenAt(code, now)}
		if !m.Open {
			m.UntilOpenSec = int64(s.calendar.UntilOpenAt(code, now).Seconds())
		}
		markets = append(markets, m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(markets)
}
