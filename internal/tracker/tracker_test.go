package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"idlewatch/internal/storage"
)

type recorded struct {
	date string
	sess storage.Session
}

type fakeRecorder struct {
	sessions []recorded
	fail     error
}

func (r *fakeRecorder) AddSession(ctx context.Context, date string, sess storage.Session) error {
	if r.fail != nil {
		return r.fail
	}
	r.sessions = append(r.sessions, recorded{date: date, sess: sess})
	return nil
}

type fakeSource struct {
	events chan Event
	state  State
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan Event, 10), state: StateActive}
}

func (s *fakeSource) Events() <-chan Event {
	return s.events
}

func (s *fakeSource) CurrentState(ctx context.Context) (State, error) {
	return s.state, nil
}

func newTestTracker(t *testing.T) (*Tracker, *fakeRecorder, *fakeSource) {
	t.Helper()

	recorder := &fakeRecorder{}
	source := newFakeSource()
	tr := New(recorder, source, Config{MinSessionDuration: 10 * time.Second}, zerolog.Nop())
	return tr, recorder, source
}

func at(t *testing.T, value string) time.Time {
	t.Helper()

	ts, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return ts
}

func TestIdleThenActiveRecordsSession(t *testing.T) {
	tr, recorder, _ := newTestTracker(t)
	ctx := context.Background()

	tr.HandleEvent(ctx, Event{State: StateIdle, At: at(t, "2025-05-20 09:10:00")})
	tr.HandleEvent(ctx, Event{State: StateActive, At: at(t, "2025-05-20 09:20:00")})

	if len(recorder.sessions) != 1 {
		t.Fatalf("expected 1 recorded session, got %d", len(recorder.sessions))
	}

	got := recorder.sessions[0]
	if got.date != "2025-05-20" {
		t.Errorf("expected date 2025-05-20, got %s", got.date)
	}
	if got.sess.State != storage.StateIdle {
		t.Errorf("expected idle state, got %s", got.sess.State)
	}
	if got.sess.DurationSeconds != 600 {
		t.Errorf("expected duration 600, got %d", got.sess.DurationSeconds)
	}
}

func TestLockedCountsAsIdle(t *testing.T) {
	tr, recorder, _ := newTestTracker(t)
	ctx := context.Background()

	tr.HandleEvent(ctx, Event{State: StateLocked, At: at(t, "2025-05-20 12:00:00")})
	tr.HandleEvent(ctx, Event{State: StateActive, At: at(t, "2025-05-20 12:05:00")})

	if len(recorder.sessions) != 1 {
		t.Fatalf("expected 1 recorded session, got %d", len(recorder.sessions))
	}
	if recorder.sessions[0].sess.DurationSeconds != 300 {
		t.Errorf("expected duration 300, got %d", recorder.sessions[0].sess.DurationSeconds)
	}
}

func TestIdleToLockedKeepsOriginalStart(t *testing.T) {
	tr, recorder, _ := newTestTracker(t)
	ctx := context.Background()

	tr.HandleEvent(ctx, Event{State: StateIdle, At: at(t, "2025-05-20 09:00:00")})
	tr.HandleEvent(ctx, Event{State: StateLocked, At: at(t, "2025-05-20 09:05:00")})
	tr.HandleEvent(ctx, Event{State: StateActive, At: at(t, "2025-05-20 09:10:00")})

	if len(recorder.sessions) != 1 {
		t.Fatalf("expected 1 recorded session, got %d", len(recorder.sessions))
	}
	if recorder.sessions[0].sess.DurationSeconds != 600 {
		t.Errorf("expected the full 600 second interval, got %d", recorder.sessions[0].sess.DurationSeconds)
	}
}

func TestShortIntervalDiscarded(t *testing.T) {
	tr, recorder, _ := newTestTracker(t)
	ctx := context.Background()

	tr.HandleEvent(ctx, Event{State: StateIdle, At: at(t, "2025-05-20 09:00:00")})
	tr.HandleEvent(ctx, Event{State: StateActive, At: at(t, "2025-05-20 09:00:05")})

	if len(recorder.sessions) != 0 {
		t.Fatalf("expected no recorded sessions, got %d", len(recorder.sessions))
	}
}

func TestMidnightCrossingSplitsSessions(t *testing.T) {
	tr, recorder, _ := newTestTracker(t)
	ctx := context.Background()

	tr.HandleEvent(ctx, Event{State: StateIdle, At: at(t, "2025-05-20 23:30:00")})
	tr.HandleEvent(ctx, Event{State: StateActive, At: at(t, "2025-05-21 00:15:00")})

	if len(recorder.sessions) != 2 {
		t.Fatalf("expected 2 recorded sessions, got %d", len(recorder.sessions))
	}

	first, second := recorder.sessions[0], recorder.sessions[1]
	if first.date != "2025-05-20" || second.date != "2025-05-21" {
		t.Errorf("expected dates 2025-05-20 and 2025-05-21, got %s and %s", first.date, second.date)
	}
	if first.sess.DurationSeconds != 1800 {
		t.Errorf("expected pre-midnight duration 1800, got %d", first.sess.DurationSeconds)
	}
	if second.sess.DurationSeconds != 900 {
		t.Errorf("expected post-midnight duration 900, got %d", second.sess.DurationSeconds)
	}
	if first.sess.DurationSeconds+second.sess.DurationSeconds != 2700 {
		t.Errorf("split must conserve the total interval")
	}
}

func TestSplitAtMidnightMultipleDays(t *testing.T) {
	start := at(t, "2025-05-20 22:00:00")
	end := at(t, "2025-05-22 01:00:00")

	segments := splitAtMidnight(start, end)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}

	var total time.Duration
	for _, seg := range segments {
		total += seg.end.Sub(seg.start)
	}
	if total != end.Sub(start) {
		t.Errorf("expected total %v, got %v", end.Sub(start), total)
	}
	if segments[1].end.Sub(segments[1].start) != 24*time.Hour {
		t.Errorf("middle segment must cover the full day, got %v", segments[1].end.Sub(segments[1].start))
	}
}

func TestSplitAtMidnightEndExactlyAtMidnight(t *testing.T) {
	start := at(t, "2025-05-20 23:00:00")
	end := at(t, "2025-05-21 00:00:00")

	segments := splitAtMidnight(start, end)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if !segments[0].end.Equal(end) {
		t.Errorf("expected segment to end at midnight, got %v", segments[0].end)
	}
}

func TestVerifyStateRecoversMissedIdleStart(t *testing.T) {
	tr, recorder, source := newTestTracker(t)
	ctx := context.Background()

	now := at(t, "2025-05-20 10:00:00")
	tr.now = func() time.Time { return now }

	// The source went idle without an event being delivered
	source.state = StateIdle
	tr.verifyState(ctx)

	// Activity resumes twenty minutes later
	tr.HandleEvent(ctx, Event{State: StateActive, At: at(t, "2025-05-20 10:20:00")})

	if len(recorder.sessions) != 1 {
		t.Fatalf("expected 1 recorded session, got %d", len(recorder.sessions))
	}
	if recorder.sessions[0].sess.DurationSeconds != 1200 {
		t.Errorf("expected duration 1200, got %d", recorder.sessions[0].sess.DurationSeconds)
	}
}

func TestVerifyStateRecoversMissedActive(t *testing.T) {
	tr, recorder, source := newTestTracker(t)
	ctx := context.Background()

	tr.HandleEvent(ctx, Event{State: StateIdle, At: at(t, "2025-05-20 10:00:00")})

	now := at(t, "2025-05-20 10:30:00")
	tr.now = func() time.Time { return now }
	source.state = StateActive

	tr.verifyState(ctx)

	if len(recorder.sessions) != 1 {
		t.Fatalf("expected 1 recorded session, got %d", len(recorder.sessions))
	}
	if recorder.sessions[0].sess.DurationSeconds != 1800 {
		t.Errorf("expected duration 1800, got %d", recorder.sessions[0].sess.DurationSeconds)
	}
}
