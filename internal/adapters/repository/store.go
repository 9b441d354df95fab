// Package repository defines the session event-log store interface and its
// implementations.
//
// The store is the system of record: sessions with their append-only,
// timestamp-ordered event logs. Appends to one session are serialized;
// different sessions are fully independent.
package repository

import (
	"context"
	"time"

	"github.com/proctorkit/vigil/internal/domain/model"
)

// Store provides read/write access to sessions and their event logs.
type Store interface {
	// CreateSession opens a new session for the given subject.
	CreateSession(ctx context.Context, subject string) (model.Session, error)

	// CloseSession ends an open session. Returns ErrSessionNotFound for an
	// unknown id and ErrSessionClosed if it already ended.
	CloseSession(ctx context.Context, sessionID string) (model.Session, error)

	// GetSession returns one session. Returns ErrSessionNotFound when absent.
	GetSession(ctx context.Context, sessionID string) (model.Session, error)

	// ListSessions returns all sessions ordered by start time, newest first.
	ListSessions(ctx context.Context) ([]model.Session, error)

	// AppendEvent durably appends one classified event to an open session's
	// log and returns the stored event with its assigned id. Fails with
	// ErrSessionNotFound, ErrSessionClosed, or ErrTimestampOrder when ts is
	// older than the last appended event. Either the event is appended in
	// full or nothing is written.
	AppendEvent(ctx context.Context, sessionID string, kind model.EventKind, confidence float64, ts time.Time) (model.Event, error)

	// Snapshot returns the session together with a consistent copy of its
	// complete ordered event log.
	Snapshot(ctx context.Context, sessionID string) (model.Session, []model.Event, error)

	// CountSessions returns the number of sessions tracked by the store.
	CountSessions(ctx context.Context) int

	// CountEvents returns the number of events across all sessions.
	CountEvents(ctx context.Context) int64
}

// clock abstracts time.Now so stores can be driven deterministically in tests.
type clock func() time.Time
