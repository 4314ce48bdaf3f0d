// Package stats derives reporting figures from stored day records: all-time
// totals, weekly series, and human-readable durations.
package stats

import (
	"fmt"
	"sort"
	"strings"

	"idlewatch/internal/activity"
	"idlewatch/internal/storage"
)

// AllTime summarizes every recorded day.
type AllTime struct {
	TotalIdleSeconds   int64   `json:"total_idle_seconds"`
	DaysRecorded       int     `json:"days_recorded"`
	SessionsRecorded   int     `json:"sessions_recorded"`
	AverageIdleSeconds float64 `json:"average_idle_seconds"`
	MostIdleDate       string  `json:"most_idle_date,omitempty"`
	MostIdleSeconds    int64   `json:"most_idle_seconds"`
}

// ComputeAllTime folds all day records into a single summary. Days are
// visited in date order so the most-idle day is deterministic on ties.
func ComputeAllTime(days map[string]*storage.DayRecord) AllTime {
	var summary AllTime

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		rec := days[date]
		if rec == nil {
			continue
		}

		summary.DaysRecorded++
		summary.SessionsRecorded += len(rec.Sessions)
		summary.TotalIdleSeconds += rec.Summary.TotalIdleSeconds

		if rec.Summary.TotalIdleSeconds > summary.MostIdleSeconds {
			summary.MostIdleSeconds = rec.Summary.TotalIdleSeconds
			summary.MostIdleDate = date
		}
	}

	if summary.DaysRecorded > 0 {
		summary.AverageIdleSeconds = float64(summary.TotalIdleSeconds) / float64(summary.DaysRecorded)
	}
	return summary
}

// WeekPoint is one day of a weekly series. HasData distinguishes a day with
// zero idle time from a day with no stored record at all.
type WeekPoint struct {
	Date        string `json:"date"`
	IdleSeconds int64  `json:"idle_seconds"`
	HasData     bool   `json:"has_data"`
}

// WeeklySeries flattens a week of day records into chart-ready points,
// preserving the Sunday to Saturday order.
func WeeklySeries(week []activity.WeekDay) []WeekPoint {
	points := make([]WeekPoint, len(week))
	for i, day := range week {
		points[i] = WeekPoint{Date: day.Date}
		if day.Record != nil {
			points[i].IdleSeconds = day.Record.Summary.TotalIdleSeconds
			points[i].HasData = true
		}
	}
	return points
}

// FormatDurationNatural renders seconds the way a person would say them:
// "2h 5m", "45s", "1h". Seconds only show when there are no whole hours.
func FormatDurationNatural(seconds int64) string {
	totalMinutes := seconds / 60
	hours := totalMinutes / 60
	mins := totalMinutes % 60
	secs := seconds % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	if hours == 0 && (secs > 0 || len(parts) == 0) {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}
