package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/proctorkit/vigil/internal/domain/model"
	"github.com/proctorkit/vigil/pkg/metrics"
)

// sessionRow is the persisted shape of a session.
type sessionRow struct {
	SessionID string `gorm:"primaryKey"`
	Subject   string
	StartedAt time.Time
	EndedAt   *time.Time
}

func (sessionRow) TableName() string { return "sessions" }

// eventRow is the persisted shape of one logged event. Seq gives a stable
// total order for events sharing a timestamp.
type eventRow struct {
	Seq        int64  `gorm:"primaryKey;autoIncrement"`
	EventID    string `gorm:"uniqueIndex"`
	SessionID  string `gorm:"index"`
	Kind       string
	Confidence float64
	TS         time.Time
}

func (eventRow) TableName() string { return "events" }

// SQLStore implements Store on SQLite via GORM. Appends are transactional:
// the session state check and the insert commit together or not at all.
type SQLStore struct {
	db  *gorm.DB
	now clock
}

// NewSQLStore opens (or creates) the SQLite database at path and migrates
// the schema.
func NewSQLStore(ctx context.Context, path string, opts ...SQLOption) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&sessionRow{}, &eventRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}

	s := &SQLStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}
	return sqlDB.Close()
}

// CreateSession opens a new session for the given subject.
func (s *SQLStore) CreateSession(ctx context.Context, subject string) (model.Session, error) {
	row := sessionRow{
		SessionID: uuid.New().String(),
		Subject:   subject,
		StartedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}

	s.publishSessionGauges(ctx)
	return row.toModel(), nil
}

// CloseSession ends an open session.
func (s *SQLStore) CloseSession(ctx context.Context, sessionID string) (model.Session, error) {
	var closed model.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.find(tx, sessionID)
		if err != nil {
			return err
		}
		if row.EndedAt != nil {
			return ErrSessionClosed
		}
		ended := s.now().UTC()
		row.EndedAt = &ended
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("close session: %w", err)
		}
		closed = row.toModel()
		return nil
	})
	if err != nil {
		return model.Session{}, err
	}

	s.publishSessionGauges(ctx)
	return closed, nil
}

// GetSession returns one session.
func (s *SQLStore) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	row, err := s.find(s.db.WithContext(ctx), sessionID)
	if err != nil {
		return model.Session{}, err
	}
	return row.toModel(), nil
}

// ListSessions returns all sessions ordered by start time, newest first.
func (s *SQLStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Order("started_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]model.Session, len(rows))
	for i, row := range rows {
		sessions[i] = row.toModel()
	}
	return sessions, nil
}

// AppendEvent durably appends one classified event to an open session's log.
func (s *SQLStore) AppendEvent(ctx context.Context, sessionID string, kind model.EventKind, confidence float64, ts time.Time) (model.Event, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreAppendLatency(float64(time.Since(start).Milliseconds()))
	}()

	var stored model.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.find(tx, sessionID)
		if err != nil {
			return err
		}
		if row.EndedAt != nil {
			return ErrSessionClosed
		}

		var last eventRow
		err = tx.Where("session_id = ?", sessionID).Order("seq DESC").First(&last).Error
		switch {
		case err == nil:
			if ts.Before(last.TS) {
				return ErrTimestampOrder
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first event for the session
		default:
			return fmt.Errorf("read last event: %w", err)
		}

		event := eventRow{
			EventID:    uuid.New().String(),
			SessionID:  sessionID,
			Kind:       kind.String(),
			Confidence: confidence,
			TS:         ts,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		stored = event.toModel()
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	return stored, nil
}

// Snapshot returns the session and a consistent copy of its event log.
func (s *SQLStore) Snapshot(ctx context.Context, sessionID string) (model.Session, []model.Event, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreReadLatency(float64(time.Since(start).Milliseconds()))
	}()

	var (
		session model.Session
		events  []model.Event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.find(tx, sessionID)
		if err != nil {
			return err
		}
		session = row.toModel()

		var rows []eventRow
		if err := tx.Where("session_id = ?", sessionID).Order("seq ASC").Find(&rows).Error; err != nil {
			return fmt.Errorf("read event log: %w", err)
		}
		events = make([]model.Event, len(rows))
		for i, r := range rows {
			events[i] = r.toModel()
		}
		return nil
	})
	if err != nil {
		return model.Session{}, nil, err
	}
	return session, events, nil
}

// CountSessions returns the number of sessions tracked by the store.
func (s *SQLStore) CountSessions(ctx context.Context) int {
	var count int64
	if err := s.db.WithContext(ctx).Model(&sessionRow{}).Count(&count).Error; err != nil {
		return 0
	}
	return int(count)
}

// CountEvents returns the number of events across all sessions.
func (s *SQLStore) CountEvents(ctx context.Context) int64 {
	var count int64
	if err := s.db.WithContext(ctx).Model(&eventRow{}).Count(&count).Error; err != nil {
		return 0
	}
	return count
}

// find loads a session row, translating the GORM not-found error into the
// store's sentinel.
func (s *SQLStore) find(tx *gorm.DB, sessionID string) (*sessionRow, error) {
	var row sessionRow
	err := tx.Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &row, nil
}

// publishSessionGauges refreshes the session gauges after a lifecycle change.
func (s *SQLStore) publishSessionGauges(ctx context.Context) {
	var open int64
	if err := s.db.WithContext(ctx).Model(&sessionRow{}).Where("ended_at IS NULL").Count(&open).Error; err == nil {
		metrics.UpdateOpenSessions(int(open))
	}
	metrics.UpdateTotalSessions(s.CountSessions(ctx))
}

func (r sessionRow) toModel() model.Session {
	return model.Session{
		SessionID: r.SessionID,
		Subject:   r.Subject,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
}

func (r eventRow) toModel() model.Event {
	return model.Event{
		EventID:    r.EventID,
		SessionID:  r.SessionID,
		Kind:       model.EventKind(r.Kind),
		Confidence: r.Confidence,
		TS:         r.TS,
	}
}
