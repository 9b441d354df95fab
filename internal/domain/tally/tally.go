// Package tally maintains live per-session event counts.
//
// The tally is a projection fed asynchronously by the worker pool; it powers
// the provisional monitoring view while a session is in progress. It is a
// cache over the append-only log, never the other way around: full score
// reports are always recomputed from the log itself.
package tally

import (
	"context"
	"sync"

	"github.com/proctorkit/vigil/internal/domain/model"
)

// Snapshot is a point-in-time copy of one session's tally.
type Snapshot struct {
	SessionID   string
	TotalEvents int
	Counts      map[model.EventKind]int
}

// Tally accumulates per-kind counts for sessions.
type Tally interface {
	// Apply folds one event kind into the session's counts.
	Apply(ctx context.Context, sessionID string, kind model.EventKind) error

	// Snapshot returns a copy of the session's current counts. A session with
	// no applied events yields an empty snapshot, not an error.
	Snapshot(ctx context.Context, sessionID string) Snapshot

	// Drop releases the session's counts, typically when it closes. Drop is
	// final: later Apply calls for the session are ignored, so events still in
	// flight through the queue cannot resurrect a closed session's counter.
	Drop(ctx context.Context, sessionID string)

	// Sessions returns the number of sessions with live counts.
	Sessions(ctx context.Context) int
}

// counter holds the mutable counts for one session. Each counter has its own
// lock so sessions never contend with each other.
type counter struct {
	mu     sync.Mutex
	total  int
	counts map[model.EventKind]int
}

// InMemoryTally implements Tally with a map of per-session counters. Dropped
// sessions leave a tombstone so stragglers from the queue are ignored.
type InMemoryTally struct {
	mu       sync.RWMutex
	sessions map[string]*counter
	dropped  map[string]struct{}
}

// NewInMemoryTally creates an empty tally.
func NewInMemoryTally() *InMemoryTally {
	return &InMemoryTally{
		sessions: make(map[string]*counter),
		dropped:  make(map[string]struct{}),
	}
}

// Apply folds one event kind into the session's counts. Applying to a dropped
// session is a no-op.
func (t *InMemoryTally) Apply(ctx context.Context, sessionID string, kind model.EventKind) error {
	c := t.counterFor(sessionID)
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.counts[kind]++
	return nil
}

// Snapshot returns a copy of the session's current counts.
func (t *InMemoryTally) Snapshot(ctx context.Context, sessionID string) Snapshot {
	t.mu.RLock()
	c, ok := t.sessions[sessionID]
	t.mu.RUnlock()

	snap := Snapshot{
		SessionID: sessionID,
		Counts:    make(map[model.EventKind]int),
	}
	if !ok {
		return snap
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	snap.TotalEvents = c.total
	for kind, count := range c.counts {
		snap.Counts[kind] = count
	}
	return snap
}

// Drop releases the session's counts and marks it so later applies are
// ignored.
func (t *InMemoryTally) Drop(ctx context.Context, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
	t.dropped[sessionID] = struct{}{}
}

// Sessions returns the number of sessions with live counts.
func (t *InMemoryTally) Sessions(ctx context.Context) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// counterFor returns the session's counter, creating it on first use. Returns
// nil for dropped sessions.
func (t *InMemoryTally) counterFor(sessionID string) *counter {
	t.mu.RLock()
	c, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, gone := t.dropped[sessionID]; gone {
		return nil
	}
	if c, ok = t.sessions[sessionID]; ok {
		return c
	}
	c = &counter{counts: make(map[model.EventKind]int)}
	t.sessions[sessionID] = c
	return c
}
