// Package api exposes the HTTP API over recorded activity data.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"idlewatch/internal/activity"
)

// Config holds the API server configuration.
type Config struct {
	BindAddress string
	Port        int
}

// Server is the HTTP API server.
type Server struct {
	config   Config
	server   *http.Server
	router   *mux.Router
	activity *activity.Aggregator
	logger   zerolog.Logger
}

// NewServer creates an API server around the activity aggregator.
func NewServer(cfg Config, agg *activity.Aggregator, logger zerolog.Logger) *Server {
	s := &Server{
		config:   cfg,
		router:   mux.NewRouter(),
		activity: agg,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	days := NewDaysHandler(s.activity, s.logger)
	statsH := NewStatsHandler(s.activity, s.logger)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/days", days.ListDays).Methods("GET")
	api.HandleFunc("/days/{date}", days.GetDay).Methods("GET")
	api.HandleFunc("/days/{date}/top", days.TopSessions).Methods("GET")
	api.HandleFunc("/week", days.GetWeek).Methods("GET")
	api.HandleFunc("/stats/alltime", statsH.AllTime).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info().Str("address", addr).Msg("Starting API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Stopping API server")
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
