package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	SessionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlewatch_sessions_recorded_total",
			Help: "Total activity sessions appended to day records",
		},
		[]string{"state"},
	)

	IdleSecondsBucketed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idlewatch_idle_seconds_bucketed_total",
			Help: "Total idle seconds distributed into hour buckets",
		},
	)

	SessionsDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idlewatch_sessions_discarded_total",
			Help: "Sessions dropped for being shorter than the minimum duration",
		},
	)

	MidnightSplits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idlewatch_midnight_splits_total",
			Help: "Idle intervals split at a midnight boundary before aggregation",
		},
	)

	// State source metrics
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlewatch_state_transitions_total",
			Help: "State change events received from the idle signal source",
		},
		[]string{"state"},
	)

	// Storage metrics
	StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlewatch_storage_errors_total",
			Help: "Storage operation failures",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsRecorded,
		IdleSecondsBucketed,
		SessionsDiscarded,
		MidnightSplits,
		StateTransitions,
		StorageErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
