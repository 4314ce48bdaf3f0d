package stats

import (
	"testing"

	"idlewatch/internal/activity"
	"idlewatch/internal/storage"
)

func dayWithIdle(date string, idleSeconds int64, sessions int) *storage.DayRecord {
	rec := storage.NewDayRecord(date)
	for i := 0; i < sessions; i++ {
		rec.Sessions = append(rec.Sessions, storage.Session{State: storage.StateIdle})
	}
	rec.Summary.TotalIdleSeconds = idleSeconds
	return rec
}

func TestComputeAllTime(t *testing.T) {
	days := map[string]*storage.DayRecord{
		"2025-05-18": dayWithIdle("2025-05-18", 600, 2),
		"2025-05-19": dayWithIdle("2025-05-19", 1800, 3),
		"2025-05-20": dayWithIdle("2025-05-20", 900, 1),
	}

	summary := ComputeAllTime(days)

	if summary.TotalIdleSeconds != 3300 {
		t.Errorf("expected total 3300, got %d", summary.TotalIdleSeconds)
	}
	if summary.DaysRecorded != 3 {
		t.Errorf("expected 3 days, got %d", summary.DaysRecorded)
	}
	if summary.SessionsRecorded != 6 {
		t.Errorf("expected 6 sessions, got %d", summary.SessionsRecorded)
	}
	if summary.AverageIdleSeconds != 1100 {
		t.Errorf("expected average 1100, got %f", summary.AverageIdleSeconds)
	}
	if summary.MostIdleDate != "2025-05-19" || summary.MostIdleSeconds != 1800 {
		t.Errorf("expected most idle day 2025-05-19 (1800s), got %s (%ds)",
			summary.MostIdleDate, summary.MostIdleSeconds)
	}
}

func TestComputeAllTimeEmpty(t *testing.T) {
	summary := ComputeAllTime(map[string]*storage.DayRecord{})

	if summary.DaysRecorded != 0 || summary.TotalIdleSeconds != 0 || summary.AverageIdleSeconds != 0 {
		t.Errorf("expected zero summary, got %+v", summary)
	}
	if summary.MostIdleDate != "" {
		t.Errorf("expected no most idle day, got %s", summary.MostIdleDate)
	}
}

func TestWeeklySeriesKeepsOrderAndNullness(t *testing.T) {
	week := []activity.WeekDay{
		{Date: "2025-05-18"},
		{Date: "2025-05-19", Record: dayWithIdle("2025-05-19", 1800, 1)},
		{Date: "2025-05-20", Record: dayWithIdle("2025-05-20", 0, 0)},
	}

	points := WeeklySeries(week)

	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].HasData {
		t.Error("missing day must not claim data")
	}
	if !points[1].HasData || points[1].IdleSeconds != 1800 {
		t.Errorf("expected 1800 seconds with data, got %+v", points[1])
	}

	// A stored all-zero day is distinct from a missing one
	if !points[2].HasData || points[2].IdleSeconds != 0 {
		t.Errorf("expected zero-second day to still have data, got %+v", points[2])
	}
}

func TestFormatDurationNatural(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{60, "1m"},
		{125, "2m"},
		{3600, "1h"},
		{3605, "1h"},
		{3660, "1h 1m"},
		{7500, "2h 5m"},
	}

	for _, tc := range cases {
		if got := FormatDurationNatural(tc.seconds); got != tc.want {
			t.Errorf("FormatDurationNatural(%d): expected %q, got %q", tc.seconds, tc.want, got)
		}
	}
}
