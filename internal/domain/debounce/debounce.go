// Package debounce suppresses bursts of identical detections at the
// ingestion boundary.
//
// The scoring engine counts every logged event, so whether two FOCUS_LOST
// detections one second apart cost two deductions or one is decided here,
// before anything reaches the log. With a zero window the debouncer is a
// no-op and every detection is stored.
package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/proctorkit/vigil/internal/domain/model"
)

// Debouncer decides whether a detection should be dropped because an
// identical one was recorded moments earlier.
type Debouncer interface {
	// Suppress atomically checks whether kind was seen for the session within
	// the window ending at ts, recording ts as the new last-seen instant when
	// it was not. Returns true if the event should be dropped.
	Suppress(ctx context.Context, sessionID string, kind model.EventKind, ts time.Time) bool

	// Forget drops all per-kind state for a session. Called when the session
	// closes so the map does not grow with dead sessions.
	Forget(ctx context.Context, sessionID string)

	// Size returns the number of sessions currently tracked.
	Size() int64
}

// windowDebouncer implements Debouncer with a per-session map of the last
// accepted timestamp per kind.
type windowDebouncer struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]map[model.EventKind]time.Time
}

// NewWindowDebouncer creates a debouncer with configuration options. The
// default window is zero, which disables suppression entirely.
func NewWindowDebouncer(opts ...Option) Debouncer {
	d := &windowDebouncer{
		seen: make(map[string]map[model.EventKind]time.Time),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Suppress atomically checks and records the last accepted instant for the
// session/kind pair.
func (d *windowDebouncer) Suppress(ctx context.Context, sessionID string, kind model.EventKind, ts time.Time) bool {
	if d.window <= 0 {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	byKind, ok := d.seen[sessionID]
	if !ok {
		byKind = make(map[model.EventKind]time.Time)
		d.seen[sessionID] = byKind
	}

	if last, ok := byKind[kind]; ok && ts.Sub(last) < d.window {
		return true
	}

	byKind[kind] = ts
	return false
}

// Forget drops all tracked state for a session.
func (d *windowDebouncer) Forget(ctx context.Context, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, sessionID)
}

// Size returns the number of sessions with tracked state.
func (d *windowDebouncer) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
