package tracker

import (
	"context"
	"time"

	"idlewatch/internal/storage"
)

// State is a user presence state reported by the signal source.
type State string

const (
	StateActive State = "active"
	StateIdle   State = "idle"
	StateLocked State = "locked"
)

// Event is one state-change notification from the signal source.
type Event struct {
	State State
	At    time.Time
}

// Source delivers presence state changes. Implementations are thin wrappers
// around an external detector (logind, screensaver); the tracker places no
// obligations on them beyond the event stream and a point-in-time query.
type Source interface {
	// Events returns the channel of state-change notifications.
	Events() <-chan Event
	// CurrentState reports the present state, used to recover transitions
	// missed while the process was not listening.
	CurrentState(ctx context.Context) (State, error)
}

// Recorder receives closed activity sessions keyed by date.
type Recorder interface {
	AddSession(ctx context.Context, date string, sess storage.Session) error
}
