package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/proctorkit/vigil/internal/domain/model"
	"github.com/proctorkit/vigil/pkg/metrics"
)

// sessionLog pairs one session with its append-only event log. Each log has
// its own lock so appends to one session serialize without blocking others.
type sessionLog struct {
	mu      sync.Mutex
	session model.Session
	events  []model.Event
}

// MemStore implements Store with in-memory per-session logs. It is the
// default store; logs live only as long as the process.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	open     int
	events   int64
	now      clock
}

// NewMemStore creates an empty in-memory store with configuration options.
func NewMemStore(ctx context.Context, opts ...MemOption) *MemStore {
	s := &MemStore{
		sessions: make(map[string]*sessionLog),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateSession opens a new session for the given subject.
func (s *MemStore) CreateSession(ctx context.Context, subject string) (model.Session, error) {
	session := model.Session{
		SessionID: uuid.New().String(),
		Subject:   subject,
		StartedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.SessionID] = &sessionLog{session: session}
	s.open++
	open, total := s.open, len(s.sessions)
	s.mu.Unlock()

	metrics.UpdateOpenSessions(open)
	metrics.UpdateTotalSessions(total)
	return session, nil
}

// CloseSession ends an open session.
func (s *MemStore) CloseSession(ctx context.Context, sessionID string) (model.Session, error) {
	log, err := s.log(sessionID)
	if err != nil {
		return model.Session{}, err
	}

	log.mu.Lock()
	if log.session.Closed() {
		log.mu.Unlock()
		return model.Session{}, ErrSessionClosed
	}
	ended := s.now().UTC()
	log.session.EndedAt = &ended
	closed := log.session
	log.mu.Unlock()

	s.mu.Lock()
	s.open--
	open := s.open
	s.mu.Unlock()
	metrics.UpdateOpenSessions(open)

	return closed, nil
}

// GetSession returns one session.
func (s *MemStore) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	log, err := s.log(sessionID)
	if err != nil {
		return model.Session{}, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	return log.session, nil
}

// ListSessions returns all sessions ordered by start time, newest first.
func (s *MemStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	s.mu.RLock()
	logs := make([]*sessionLog, 0, len(s.sessions))
	for _, log := range s.sessions {
		logs = append(logs, log)
	}
	s.mu.RUnlock()

	sessions := make([]model.Session, 0, len(logs))
	for _, log := range logs {
		log.mu.Lock()
		sessions = append(sessions, log.session)
		log.mu.Unlock()
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

// AppendEvent durably appends one classified event to an open session's log.
func (s *MemStore) AppendEvent(ctx context.Context, sessionID string, kind model.EventKind, confidence float64, ts time.Time) (model.Event, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreAppendLatency(float64(time.Since(start).Milliseconds()))
	}()

	log, err := s.log(sessionID)
	if err != nil {
		return model.Event{}, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	if log.session.Closed() {
		return model.Event{}, ErrSessionClosed
	}
	if n := len(log.events); n > 0 && ts.Before(log.events[n-1].TS) {
		return model.Event{}, ErrTimestampOrder
	}

	event := model.Event{
		EventID:    uuid.New().String(),
		SessionID:  sessionID,
		Kind:       kind,
		Confidence: confidence,
		TS:         ts,
	}
	log.events = append(log.events, event)

	s.mu.Lock()
	s.events++
	s.mu.Unlock()

	return event, nil
}

// Snapshot returns the session and a consistent copy of its event log.
func (s *MemStore) Snapshot(ctx context.Context, sessionID string) (model.Session, []model.Event, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreReadLatency(float64(time.Since(start).Milliseconds()))
	}()

	log, err := s.log(sessionID)
	if err != nil {
		return model.Session{}, nil, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	events := make([]model.Event, len(log.events))
	copy(events, log.events)
	return log.session, events, nil
}

// CountSessions returns the number of sessions tracked by the store.
func (s *MemStore) CountSessions(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CountEvents returns the number of events across all sessions.
func (s *MemStore) CountEvents(ctx context.Context) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}

// log resolves a session's log by id.
func (s *MemStore) log(sessionID string) (*sessionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return log, nil
}
