package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"idlewatch/internal/activity"
	"idlewatch/internal/stats"
)

const defaultTopN = 5

// DaysHandler serves per-day activity records.
type DaysHandler struct {
	activity *activity.Aggregator
	logger   zerolog.Logger
}

// NewDaysHandler creates a new days handler.
func NewDaysHandler(agg *activity.Aggregator, logger zerolog.Logger) *DaysHandler {
	return &DaysHandler{
		activity: agg,
		logger:   logger.With().Str("handler", "days").Logger(),
	}
}

// GetDay returns the activity record for one date. Unknown dates answer
// with an empty record, not an error.
func (h *DaysHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := mux.Vars(r)["date"]

	rec, err := h.activity.Day(ctx, date)
	if err != nil {
		if _, parseErr := time.Parse(activity.DateKeyLayout, date); parseErr != nil {
			writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		h.logger.Error().Err(err).Str("date", date).Msg("Failed to load day record")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve activity data")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListDays returns every stored day record keyed by date.
func (h *DaysHandler) ListDays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days, err := h.activity.AllDays(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list day records")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve activity data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":  days,
		"count": len(days),
	})
}

// TopSessions returns the longest idle sessions of a date.
func (h *DaysHandler) TopSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := mux.Vars(r)["date"]

	n := defaultTopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid n, expected a positive integer")
			return
		}
		n = parsed
	}

	sessions, err := h.activity.TopSessions(ctx, date, n)
	if err != nil {
		if _, parseErr := time.Parse(activity.DateKeyLayout, date); parseErr != nil {
			writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		h.logger.Error().Err(err).Str("date", date).Msg("Failed to load top sessions")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve activity data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetWeek returns the Sunday to Saturday week containing the reference
// date (today when omitted). Days without data carry data: null.
func (h *DaysHandler) GetWeek(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ref := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(activity.DateKeyLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	week, err := h.activity.Week(ctx, ref)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load weekly data")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve activity data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"week":   week,
		"series": stats.WeeklySeries(week),
	})
}

// StatsHandler serves aggregate statistics.
type StatsHandler struct {
	activity *activity.Aggregator
	logger   zerolog.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(agg *activity.Aggregator, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		activity: agg,
		logger:   logger.With().Str("handler", "stats").Logger(),
	}
}

// AllTime returns totals across every recorded day.
func (h *StatsHandler) AllTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days, err := h.activity.AllDays(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load all-time data")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve activity data")
		return
	}

	summary := stats.ComputeAllTime(days)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":        summary,
		"total_natural":  stats.FormatDurationNatural(summary.TotalIdleSeconds),
		"most_idle_span": stats.FormatDurationNatural(summary.MostIdleSeconds),
	})
}
