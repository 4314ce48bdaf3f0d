// Package activity maintains per-day activity records: it appends closed
// idle/active sessions, distributes idle time across hour-of-day buckets,
// recomputes daily summaries, and answers the read queries used by
// reporting consumers.
package activity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"idlewatch/internal/metrics"
	"idlewatch/internal/storage"
)

// DateKeyLayout is the canonical date key format for day records.
const DateKeyLayout = "2006-01-02"

const secondsPerHour = 3600

// ErrSessionWrapsMidnight is returned when a session ends before it starts.
// Such an interval crosses midnight and must be split into a pre-midnight
// and a post-midnight session by the caller before appending.
var ErrSessionWrapsMidnight = errors.New("activity: session ends before it starts, split it at midnight first")

// ErrMalformedRecord is returned when a record fails the save-side guards.
var ErrMalformedRecord = errors.New("activity: malformed day record")

// WeekDay pairs a date key with its stored record. Record is nil for dates
// with no stored data, which consumers must treat as "no data" rather than
// an all-zero day.
type WeekDay struct {
	Date   string             `json:"date"`
	Record *storage.DayRecord `json:"data"`
}

// Aggregator owns the day-record data model on top of an injected DayStore.
// It holds no state of its own between calls.
//
// AddSession is a read-modify-write over a single date key with no locking;
// interleaved appends for the same date can lose updates. The upstream idle
// signal closes one session before the next begins, so a single event
// stream never races itself. This is an accepted constraint, not a bug to
// lock away.
type Aggregator struct {
	days   storage.DayStore
	logger zerolog.Logger
}

// New creates an Aggregator on top of days.
func New(days storage.DayStore, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		days:   days,
		logger: logger.With().Str("component", "activity").Logger(),
	}
}

// DateKey formats t as a canonical day-record key.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// normalizeDate validates a date key against the canonical layout.
func normalizeDate(date string) (string, error) {
	t, err := time.Parse(DateKeyLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date key %q (want YYYY-MM-DD): %w", date, err)
	}
	return t.Format(DateKeyLayout), nil
}

// Day returns the record for date. A date with no stored record yields a
// fresh empty record (24 zero buckets, no sessions) without persisting it;
// absence is never an error. Storage failures propagate.
func (a *Aggregator) Day(ctx context.Context, date string) (*storage.DayRecord, error) {
	key, err := normalizeDate(date)
	if err != nil {
		return nil, err
	}

	rec, err := a.days.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.NewDayRecord(key), nil
	}
	if err != nil {
		metrics.StorageErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	return rec, nil
}

// AllDays returns every stored day record keyed by date.
func (a *Aggregator) AllDays(ctx context.Context) (map[string]*storage.DayRecord, error) {
	recs, err := a.days.All(ctx)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("all").Inc()
		return nil, err
	}
	return recs, nil
}

// SaveDay overwrites the record stored at date. There is no merge and no
// concurrency check: last writer wins. Records that would be unreadable
// later are rejected before they reach storage.
func (a *Aggregator) SaveDay(ctx context.Context, date string, rec *storage.DayRecord) error {
	key, err := normalizeDate(date)
	if err != nil {
		return err
	}

	if rec == nil || rec.Sessions == nil {
		return fmt.Errorf("%w: missing session list", ErrMalformedRecord)
	}
	if rec.Date != key {
		return fmt.Errorf("%w: record date %q does not match key %q", ErrMalformedRecord, rec.Date, key)
	}

	if err := a.days.Save(ctx, key, rec); err != nil {
		metrics.StorageErrors.WithLabelValues("save").Inc()
		return err
	}
	return nil
}

// AddSession appends a closed session to the record for date, distributes
// idle time into hour buckets, recomputes the daily summary, and persists
// the record. Exactly one storage read and one storage write per call.
func (a *Aggregator) AddSession(ctx context.Context, date string, sess storage.Session) error {
	if sess.EndTime.Before(sess.StartTime) {
		return ErrSessionWrapsMidnight
	}
	if sess.DurationSeconds < 0 {
		return fmt.Errorf("activity: negative session duration %d", sess.DurationSeconds)
	}

	rec, err := a.Day(ctx, date)
	if err != nil {
		return err
	}

	rec.Sessions = append(rec.Sessions, sess)

	if sess.State == storage.StateIdle {
		a.distributeHourly(rec, sess)
		metrics.IdleSecondsBucketed.Add(float64(sess.DurationSeconds))
	}

	rec.Summary = recomputeSummary(rec)

	if err := a.SaveDay(ctx, rec.Date, rec); err != nil {
		return err
	}

	metrics.SessionsRecorded.WithLabelValues(string(sess.State)).Inc()

	a.logger.Debug().
		Str("date", rec.Date).
		Str("state", string(sess.State)).
		Int64("duration_seconds", sess.DurationSeconds).
		Int64("total_idle_seconds", rec.Summary.TotalIdleSeconds).
		Msg("Appended activity session")

	return nil
}

// distributeHourly attributes a session's seconds to the hour buckets it
// covers. A session inside one clock hour lands entirely in that bucket.
// A session spanning hours gives the first bucket the seconds up to the
// next hour boundary, every fully covered hour 3600 seconds, and the last
// bucket the remainder. Every update is an increment, never an overwrite.
func (a *Aggregator) distributeHourly(rec *storage.DayRecord, sess storage.Session) {
	startHour := sess.StartTime.Hour()
	endHour := sess.EndTime.Hour()

	if startHour == endHour {
		addToBucket(rec, startHour, sess.DurationSeconds)
		return
	}

	firstBoundary := hourFloor(sess.StartTime).Add(time.Hour)
	addToBucket(rec, startHour, int64(firstBoundary.Sub(sess.StartTime).Seconds()))

	for hour := startHour + 1; hour < endHour; hour++ {
		addToBucket(rec, hour, secondsPerHour)
	}

	lastBoundary := hourFloor(sess.EndTime)
	addToBucket(rec, endHour, int64(sess.EndTime.Sub(lastBoundary).Seconds()))
}

// hourFloor returns t with minutes, seconds, and nanoseconds zeroed in its
// own location. Not Truncate: that works on absolute time and misplaces the
// boundary in zones with fractional UTC offsets.
func hourFloor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// addToBucket increments one hour bucket, lazily growing a short bucket
// slice from a malformed stored record.
func addToBucket(rec *storage.DayRecord, hour int, seconds int64) {
	if hour < 0 || hour >= storage.HoursPerDay {
		return
	}

	for len(rec.HourlyActivity) <= hour {
		rec.HourlyActivity = append(rec.HourlyActivity, storage.HourBucket{Hour: len(rec.HourlyActivity)})
	}

	rec.HourlyActivity[hour].IdleSeconds += seconds
}

// recomputeSummary rebuilds the daily summary from the full session list.
// Recomputing rather than incrementing keeps the total self-correcting even
// if the stored session list was edited out of band.
func recomputeSummary(rec *storage.DayRecord) storage.DailySummary {
	var summary storage.DailySummary
	for _, sess := range rec.Sessions {
		if sess.State == storage.StateIdle {
			summary.TotalIdleSeconds += sess.DurationSeconds
		}
	}
	return summary
}

// TopSessions returns up to n idle sessions for date ordered by descending
// duration. Ties keep their append order. Days with fewer idle sessions
// return what they have.
func (a *Aggregator) TopSessions(ctx context.Context, date string, n int) ([]storage.Session, error) {
	if n <= 0 {
		return []storage.Session{}, nil
	}

	rec, err := a.Day(ctx, date)
	if err != nil {
		return nil, err
	}

	idle := make([]storage.Session, 0, len(rec.Sessions))
	for _, sess := range rec.Sessions {
		if sess.State == storage.StateIdle {
			idle = append(idle, sess)
		}
	}

	sort.SliceStable(idle, func(i, j int) bool {
		return idle[i].DurationSeconds > idle[j].DurationSeconds
	})

	if len(idle) > n {
		idle = idle[:n]
	}
	return idle, nil
}

// Week returns the 7 days of the week containing ref, Sunday first. Days
// with no stored record carry a nil Record; they are never synthesized.
func (a *Aggregator) Week(ctx context.Context, ref time.Time) ([]WeekDay, error) {
	dates := weekRange(ref)

	recs, err := a.days.GetMany(ctx, dates)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("get_many").Inc()
		return nil, err
	}

	week := make([]WeekDay, len(dates))
	for i, date := range dates {
		week[i] = WeekDay{Date: date, Record: recs[date]}
	}
	return week, nil
}

// weekRange lists the Sunday..Saturday date keys around ref.
func weekRange(ref time.Time) []string {
	sunday := ref.AddDate(0, 0, -int(ref.Weekday()))

	dates := make([]string, 7)
	for i := range dates {
		dates[i] = DateKey(sunday.AddDate(0, 0, i))
	}
	return dates
}
