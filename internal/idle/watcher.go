// Package idle wraps the logind and screensaver D-Bus interfaces as a
// presence state source. It is a thin adapter: lock, unlock, suspend, and
// screensaver signals become tracker events and nothing here carries
// aggregation logic.
package idle

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"idlewatch/internal/tracker"
)

const autoSessionPath = dbus.ObjectPath("/org/freedesktop/login1/session/auto")

// DefaultPollInterval is how often the watcher polls LockedHint as a
// fallback for missed signals.
const DefaultPollInterval = 15 * time.Second

// Watcher listens for logind session signals and exposes them as tracker
// state events. Signals are the primary source; a periodic LockedHint poll
// catches transitions whose signals were never delivered. When a session bus
// is reachable, screensaver activation doubles as the idle signal.
type Watcher struct {
	conn         *dbus.Conn
	sessConn     *dbus.Conn
	events       chan tracker.Event
	pollInterval time.Duration
	lastState    tracker.State
	logger       zerolog.Logger
}

// NewWatcher connects to the system bus and subscribes to the relevant
// logind signals. pollInterval controls the fallback state poll; zero means
// DefaultPollInterval. The screensaver subscription on the session bus is
// best effort: without it, idle is only observed as locked.
func NewWatcher(pollInterval time.Duration, logger zerolog.Logger) (*Watcher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	// Session lock state arrives as a LockedHint property change
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("add match for PropertiesChanged failed: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("add match for PrepareForSleep failed: %w", err)
	}

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	w := &Watcher{
		conn:         conn,
		events:       make(chan tracker.Event, 16),
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "idle-watcher").Logger(),
	}

	sessConn, err := dbus.ConnectSessionBus()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Session bus unavailable, screensaver idle detection disabled")
		return w, nil
	}
	if err := sessConn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.ScreenSaver"),
		dbus.WithMatchMember("ActiveChanged"),
	); err != nil {
		w.logger.Warn().Err(err).Msg("Screensaver signal subscription failed, idle detection disabled")
		_ = sessConn.Close()
		return w, nil
	}
	w.sessConn = sessConn

	return w, nil
}

// Events returns the channel of translated state events.
func (w *Watcher) Events() <-chan tracker.Event {
	return w.events
}

// Close disconnects from the buses. The Watch loop terminates once the
// connections drop their signal channels.
func (w *Watcher) Close() error {
	if w.sessConn != nil {
		_ = w.sessConn.Close()
	}
	return w.conn.Close()
}

// CurrentState reports whether the caller's session is presently locked.
func (w *Watcher) CurrentState(ctx context.Context) (tracker.State, error) {
	obj := w.conn.Object("org.freedesktop.login1", autoSessionPath)

	variant, err := obj.GetProperty("org.freedesktop.login1.Session.LockedHint")
	if err != nil {
		return "", fmt.Errorf("failed to read LockedHint: %w", err)
	}

	locked, _ := variant.Value().(bool)
	if locked {
		return tracker.StateLocked, nil
	}
	return tracker.StateActive, nil
}

// Watch translates bus signals into tracker events until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	defer close(w.events)

	signals := make(chan *dbus.Signal, 16)
	w.conn.Signal(signals)

	sessSignals := make(chan *dbus.Signal, 16)
	if w.sessConn != nil {
		w.sessConn.Signal(sessSignals)
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info().
		Dur("poll_interval", w.pollInterval).
		Bool("screensaver", w.sessConn != nil).
		Msg("Watching for session state changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			w.handleSignal(sig)

		case sig, ok := <-sessSignals:
			if !ok {
				sessSignals = nil
				continue
			}
			w.handleSignal(sig)

		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll reads the present lock state and emits an event only when it differs
// from the last state this watcher reported. Screensaver idle is invisible
// to LockedHint, so a poll never overrides an idle state with active.
func (w *Watcher) poll(ctx context.Context) {
	state, err := w.CurrentState(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Lock state poll failed")
		return
	}

	if state == tracker.StateActive && w.lastState == tracker.StateIdle {
		return
	}

	if state != w.lastState {
		w.emit(tracker.Event{State: state, At: time.Now()})
	}
}

func (w *Watcher) handleSignal(sig *dbus.Signal) {
	now := time.Now()

	switch sig.Name {
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 2 {
			return
		}
		iface, ok := sig.Body[0].(string)
		if !ok || iface != "org.freedesktop.login1.Session" {
			return
		}
		changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return
		}
		val, exists := changedProps["LockedHint"]
		if !exists {
			return
		}

		locked, _ := val.Value().(bool)
		if locked {
			w.emit(tracker.Event{State: tracker.StateLocked, At: now})
		} else {
			w.emit(tracker.Event{State: tracker.StateActive, At: now})
		}

	case "org.freedesktop.login1.Manager.PrepareForSleep":
		if len(sig.Body) == 0 {
			return
		}
		sleeping, _ := sig.Body[0].(bool)
		if sleeping {
			w.emit(tracker.Event{State: tracker.StateLocked, At: now})
		} else {
			w.emit(tracker.Event{State: tracker.StateActive, At: now})
		}

	case "org.freedesktop.ScreenSaver.ActiveChanged":
		if len(sig.Body) == 0 {
			return
		}
		active, _ := sig.Body[0].(bool)
		if active {
			w.emit(tracker.Event{State: tracker.StateIdle, At: now})
		} else {
			w.emit(tracker.Event{State: tracker.StateActive, At: now})
		}
	}
}

func (w *Watcher) emit(ev tracker.Event) {
	w.lastState = ev.State
	select {
	case w.events <- ev:
		w.logger.Debug().Str("state", string(ev.State)).Time("at", ev.At).Msg("State change")
	default:
		// A stalled consumer should not block the bus loop
		w.logger.Warn().Str("state", string(ev.State)).Msg("Dropping state event, channel full")
	}
}
