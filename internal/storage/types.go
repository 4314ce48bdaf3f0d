package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// HoursPerDay is the fixed number of hour buckets in a day record.
const HoursPerDay = 24

// SessionState classifies an activity session.
type SessionState string

const (
	StateActive SessionState = "active"
	StateIdle   SessionState = "idle"
)

// UnmarshalJSON implements json.Unmarshaler to normalize state to lowercase.
func (s *SessionState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := SessionState(strings.ToLower(raw))

	switch normalized {
	case StateActive, StateIdle:
		*s = normalized
		return nil
	default:
		return fmt.Errorf("invalid session state: %s (must be active or idle)", raw)
	}
}

// MarshalJSON implements json.Marshaler to ensure lowercase output.
func (s SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// Session is one observed activity interval with a closed start and end.
type Session struct {
	State           SessionState `json:"state"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	DurationSeconds int64        `json:"duration_seconds"`
}

// HourBucket accumulates idle seconds attributed to one hour of the day.
// Bucket values only ever increase as sessions are appended.
type HourBucket struct {
	Hour        int   `json:"hour"`
	IdleSeconds int64 `json:"idle_seconds"`
}

// DailySummary holds derived per-day totals. Unlike the hour buckets it is
// recomputed in full from the session list on every append.
type DailySummary struct {
	TotalIdleSeconds int64 `json:"total_idle_seconds"`
}

// DayRecord is the unit of persistence for one calendar date.
type DayRecord struct {
	Date           string       `json:"date"`
	Sessions       []Session    `json:"activity_sessions"`
	HourlyActivity []HourBucket `json:"hourly_activity"`
	Summary        DailySummary `json:"daily_summary"`
}

// NewDayRecord returns an empty record for date: no sessions, all 24 hour
// buckets present with zero idle seconds, zero summary.
func NewDayRecord(date string) *DayRecord {
	buckets := make([]HourBucket, HoursPerDay)
	for hour := range buckets {
		buckets[hour].Hour = hour
	}

	return &DayRecord{
		Date:           date,
		Sessions:       []Session{},
		HourlyActivity: buckets,
		Summary:        DailySummary{},
	}
}
