package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"idlewatch/internal/activity"
	"idlewatch/internal/metrics"
	"idlewatch/internal/storage"
)

const (
	// DefaultMinSessionDuration is the minimum idle interval worth recording
	DefaultMinSessionDuration = 10 * time.Second

	// DefaultVerifyInterval is how often the tracker cross-checks the source
	// state to recover missed transitions
	DefaultVerifyInterval = 4 * time.Minute
)

// Config holds tracker configuration
type Config struct {
	MinSessionDuration time.Duration
	VerifyInterval     time.Duration
}

// Tracker turns presence state changes into closed idle sessions and hands
// them to the recorder. The start of the open idle interval is explicit
// struct state here; closing the interval produces the full
// start/end/duration tuple the aggregation layer needs.
type Tracker struct {
	recorder           Recorder
	source             Source
	minSessionDuration time.Duration
	verifyInterval     time.Duration
	logger             zerolog.Logger

	mu        sync.Mutex
	idleStart time.Time // zero when the user is active
	now       func() time.Time
}

// New creates a tracker consuming source and recording into recorder.
func New(recorder Recorder, source Source, config Config, logger zerolog.Logger) *Tracker {
	if config.MinSessionDuration == 0 {
		config.MinSessionDuration = DefaultMinSessionDuration
	}
	if config.VerifyInterval == 0 {
		config.VerifyInterval = DefaultVerifyInterval
	}

	return &Tracker{
		recorder:           recorder,
		source:             source,
		minSessionDuration: config.MinSessionDuration,
		verifyInterval:     config.VerifyInterval,
		logger:             logger.With().Str("component", "tracker").Logger(),
		now:                time.Now,
	}
}

// Run consumes events until ctx is cancelled. A still-open idle interval is
// closed and recorded on shutdown.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.verifyInterval)
	defer ticker.Stop()

	t.logger.Info().
		Dur("min_session_duration", t.minSessionDuration).
		Dur("verify_interval", t.verifyInterval).
		Msg("Tracker started")

	for {
		select {
		case <-ctx.Done():
			t.closeOpenInterval()
			return ctx.Err()

		case ev, ok := <-t.source.Events():
			if !ok {
				t.closeOpenInterval()
				return nil
			}
			t.HandleEvent(ctx, ev)

		case <-ticker.C:
			t.verifyState(ctx)
		}
	}
}

// HandleEvent processes one state-change notification.
func (t *Tracker) HandleEvent(ctx context.Context, ev Event) {
	metrics.StateTransitions.WithLabelValues(string(ev.State)).Inc()

	switch ev.State {
	case StateIdle, StateLocked:
		t.beginIdle(ev.At)
	case StateActive:
		t.endIdle(ctx, ev.At)
	default:
		t.logger.Warn().Str("state", string(ev.State)).Msg("Ignoring unknown state")
	}
}

// beginIdle opens an idle interval. An idle to locked transition keeps the
// original start so the interval is not shortened.
func (t *Tracker) beginIdle(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.idleStart.IsZero() {
		return
	}

	t.idleStart = at
	t.logger.Debug().Time("start", at).Msg("User went idle")
}

// endIdle closes the open idle interval at the given time and records the
// resulting sessions.
func (t *Tracker) endIdle(ctx context.Context, at time.Time) {
	t.mu.Lock()
	start := t.idleStart
	t.idleStart = time.Time{}
	t.mu.Unlock()

	if start.IsZero() || !at.After(start) {
		return
	}

	total := at.Sub(start)
	if total < t.minSessionDuration {
		metrics.SessionsDiscarded.Inc()
		t.logger.Debug().
			Dur("duration", total).
			Dur("min_duration", t.minSessionDuration).
			Msg("Idle interval too short, not recording")
		return
	}

	segments := splitAtMidnight(start, at)
	if len(segments) > 1 {
		metrics.MidnightSplits.Inc()
	}

	for _, seg := range segments {
		sess := storage.Session{
			State:           storage.StateIdle,
			StartTime:       seg.start,
			EndTime:         seg.end,
			DurationSeconds: int64(seg.end.Sub(seg.start).Seconds()),
		}

		date := activity.DateKey(seg.start)
		if err := t.recorder.AddSession(ctx, date, sess); err != nil {
			t.logger.Error().Err(err).
				Str("date", date).
				Int64("duration_seconds", sess.DurationSeconds).
				Msg("Failed to record idle session")
			return
		}

		t.logger.Info().
			Str("date", date).
			Int64("duration_seconds", sess.DurationSeconds).
			Msg("Recorded idle session")
	}
}

// verifyState cross-checks the source's present state against the open
// interval, recovering transitions lost while events were not delivered.
func (t *Tracker) verifyState(ctx context.Context) {
	state, err := t.source.CurrentState(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("State verification failed")
		return
	}

	t.mu.Lock()
	idle := !t.idleStart.IsZero()
	t.mu.Unlock()

	now := t.now()
	if state != StateActive && !idle {
		// Missed the idle start
		t.beginIdle(now)
	} else if state == StateActive && idle {
		// Missed the return to active
		t.endIdle(ctx, now)
	}
}

// closeOpenInterval records a still-open idle interval on shutdown.
func (t *Tracker) closeOpenInterval() {
	t.mu.Lock()
	open := !t.idleStart.IsZero()
	t.mu.Unlock()

	if open {
		t.endIdle(context.Background(), t.now())
	}
}

type segment struct {
	start time.Time
	end   time.Time
}

// splitAtMidnight cuts [start, end] into per-day segments so every recorded
// session stays within one calendar date. The aggregation layer rejects
// intervals that wrap midnight, so the split happens here, on the write
// path that owns the raw interval.
func splitAtMidnight(start, end time.Time) []segment {
	var segments []segment

	for {
		boundary := nextMidnight(start)
		if !boundary.Before(end) {
			break
		}
		segments = append(segments, segment{start: start, end: boundary})
		start = boundary
	}

	if end.After(start) {
		segments = append(segments, segment{start: start, end: end})
	}
	return segments
}

// nextMidnight returns the first midnight after t in t's location.
func nextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
