// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/proctorkit/vigil/internal/adapters/mq/queue"
	workerpool "github.com/proctorkit/vigil/internal/adapters/mq/worker"
	repository "github.com/proctorkit/vigil/internal/adapters/repository"
	"github.com/proctorkit/vigil/internal/config"
	"github.com/proctorkit/vigil/internal/domain/debounce"
	"github.com/proctorkit/vigil/internal/domain/model"
	"github.com/proctorkit/vigil/internal/domain/scoring"
	"github.com/proctorkit/vigil/internal/domain/tally"
	"github.com/proctorkit/vigil/internal/domain/types"
	"github.com/proctorkit/vigil/pkg/logger"
	"github.com/proctorkit/vigil/pkg/metrics"
)

// Service implements the API dependencies for the proctoring system: session
// lifecycle, event ingestion, live tallies and score reports.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	debouncer  debounce.Debouncer
	eventQueue eventqueue.Queue
	liveTally  tally.Tally
	scorer     *scoring.DeductionScorer
	workerPool *workerpool.Pool

	// Configuration
	storeBackend   string
	sqlitePath     string
	workerCount    int
	queueSize      int
	debounceWindow time.Duration
	weights        map[model.EventKind]int
	badWeightKeys  []string
	scoreFloor     int
	scoreCeiling   int

	// State
	started bool

	// Logging
	logger logger.Logger

	now func() time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of tally worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the tally queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDebounceWindow sets the ingestion debounce window. Zero disables
// suppression.
func WithDebounceWindow(window time.Duration) Option {
	return func(s *Service) {
		if window >= 0 {
			s.debounceWindow = window
		}
	}
}

// WithStoreBackend selects the event log backend and, for sqlite, its path.
func WithStoreBackend(backend, sqlitePath string) Option {
	return func(s *Service) {
		if backend != "" {
			s.storeBackend = backend
		}
		if sqlitePath != "" {
			s.sqlitePath = sqlitePath
		}
	}
}

// WithStore injects a pre-built store, overriding the backend selection.
// Used by tests.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWeights overrides entries of the deduction schedule. Keys are wire
// kind names; unknown keys are dropped with a warning at start.
func WithWeights(weights map[string]int) Option {
	return func(s *Service) {
		s.weights = make(map[model.EventKind]int, len(weights))
		for name, points := range weights {
			kind, err := model.ParseKind(name)
			if err != nil {
				s.badWeightKeys = append(s.badWeightKeys, name)
				continue
			}
			s.weights[kind] = points
		}
	}
}

// WithScoreBounds sets the clamp range for integrity scores.
func WithScoreBounds(floor, ceiling int) Option {
	return func(s *Service) {
		if ceiling > floor {
			s.scoreFloor = floor
			s.scoreCeiling = ceiling
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the service time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeBackend: config.StoreMemory,
		sqlitePath:   "vigil.db",
		workerCount:  runtime.NumCPU() * 2,
		queueSize:    10_000,
		weights:      map[model.EventKind]int{},
		scoreFloor:   0,
		scoreCeiling: 100,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting proctoring service...")

	for _, name := range s.badWeightKeys {
		s.logger.Warn(ctx, "ignoring weight override for unknown event kind", logger.String("kind", name))
	}

	if s.store == nil {
		switch s.storeBackend {
		case config.StoreSQLite:
			store, err := repository.NewSQLStore(ctx, s.sqlitePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.sqlitePath))
		default:
			s.store = repository.NewMemStore(ctx)
			s.logger.Info(ctx, "using in-memory store")
		}
	}

	s.debouncer = debounce.NewWindowDebouncer(
		debounce.WithWindow(s.debounceWindow),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	s.liveTally = tally.NewInMemoryTally()
	s.scorer = scoring.NewDeductionScorer(
		scoring.WithWeights(s.weights),
		scoring.WithFloor(s.scoreFloor),
		scoring.WithCeiling(s.scoreCeiling),
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.liveTally)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "proctoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int64("debounceWindowMS", s.debounceWindow.Milliseconds()),
		logger.String("store", s.storeBackend),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping proctoring service...")

	if q, ok := s.eventQueue.(*eventqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "proctoring service stopped")
}

// CreateSession opens a new proctoring session.
func (s *Service) CreateSession(ctx context.Context, subject string) (types.Session, error) {
	session, err := s.store.CreateSession(ctx, subject)
	if err != nil {
		return types.Session{}, err
	}
	s.logger.Info(ctx, "session created",
		logger.String("sessionID", session.SessionID),
		logger.String("subject", session.Subject),
	)
	return toSessionView(session), nil
}

// CloseSession ends an open session and releases its live state.
func (s *Service) CloseSession(ctx context.Context, sessionID string) (types.Session, error) {
	session, err := s.store.CloseSession(ctx, sessionID)
	if err != nil {
		return types.Session{}, err
	}

	// The log keeps the events; only the ingestion-side caches go.
	s.debouncer.Forget(ctx, sessionID)
	s.liveTally.Drop(ctx, sessionID)

	s.logger.Info(ctx, "session closed", logger.String("sessionID", sessionID))
	return toSessionView(session), nil
}

// GetSession returns one session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (types.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return types.Session{}, err
	}
	return toSessionView(session), nil
}

// ListSessions returns all sessions, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]types.Session, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]types.Session, len(sessions))
	for i, session := range sessions {
		views[i] = toSessionView(session)
	}
	return views, nil
}

// Record validates and appends one classified event to a session's log.
// A suppressed=true result means the debouncer dropped the detection as a
// repeat; nothing was stored and no error occurred.
func (s *Service) Record(ctx context.Context, sessionID, kindName string, confidence float64, ts time.Time) (eventID string, suppressed bool, err error) {
	kind, err := model.ParseKind(kindName)
	if err != nil {
		metrics.RecordEventRejected("invalid_event_kind")
		return "", false, err
	}
	if !model.ValidConfidence(confidence) {
		metrics.RecordEventRejected("invalid_confidence")
		return "", false, fmt.Errorf("%w: %v", model.ErrInvalidConfidence, confidence)
	}

	// Resolve the session up front so the debouncer never tracks state for
	// sessions that cannot accept events.
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		metrics.RecordEventRejected("session_not_found")
		return "", false, err
	}
	if session.Closed() {
		metrics.RecordEventRejected("session_closed")
		return "", false, repository.ErrSessionClosed
	}

	if s.debouncer.Suppress(ctx, sessionID, kind, ts) {
		metrics.RecordEventDebounced()
		s.logger.Debug(ctx, "detection debounced",
			logger.String("sessionID", sessionID),
			logger.String("kind", kind.String()),
		)
		return "", true, nil
	}

	event, err := s.store.AppendEvent(ctx, sessionID, kind, confidence, ts)
	if err != nil {
		metrics.RecordEventRejected("append_failed")
		return "", false, err
	}
	metrics.RecordEventRecorded(kind.String())

	// The tally is best-effort async; on backpressure fold it in here so the
	// live view cannot silently drift from the log.
	if ok := s.eventQueue.Enqueue(ctx, event); !ok {
		if applyErr := s.liveTally.Apply(ctx, sessionID, kind); applyErr != nil {
			s.logger.Warn(ctx, "tally fallback failed",
				logger.String("eventID", event.EventID),
				logger.Error(applyErr),
			)
		}
	}

	return event.EventID, false, nil
}

// Report computes a full score report from the session's event log.
func (s *Service) Report(ctx context.Context, sessionID string) (types.Report, error) {
	start := time.Now()

	session, events, err := s.store.Snapshot(ctx, sessionID)
	if err != nil {
		return types.Report{}, err
	}

	report, err := s.scorer.Compute(ctx, session, events, s.now().UTC())
	if err != nil {
		return types.Report{}, err
	}

	metrics.RecordReportComputed()
	metrics.RecordReportLatency(float64(time.Since(start).Milliseconds()))

	return toReportView(report), nil
}

// Live returns the provisional tally summary for a session.
func (s *Service) Live(ctx context.Context, sessionID string) (types.LiveSummary, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return types.LiveSummary{}, err
	}

	snap := s.liveTally.Snapshot(ctx, sessionID)

	counts := make(map[string]int, len(snap.Counts))
	for kind, count := range snap.Counts {
		counts[kind.String()] = count
	}

	return types.LiveSummary{
		SessionID:        sessionID,
		TotalEvents:      snap.TotalEvents,
		Counts:           counts,
		ProvisionalScore: s.scorer.ScoreCounts(snap.Counts),
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"store":            s.storeBackend,
		"debounceWindowMS": s.debounceWindow.Milliseconds(),
	}

	if s.started {
		stats["queueLength"] = s.eventQueue.Len(ctx)
		stats["sessions"] = s.store.CountSessions(ctx)
		stats["events"] = s.store.CountEvents(ctx)
		stats["liveSessions"] = s.liveTally.Sessions(ctx)
	}

	return stats
}

func toSessionView(session model.Session) types.Session {
	return types.Session{
		SessionID: session.SessionID,
		Subject:   session.Subject,
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
		Closed:    session.Closed(),
	}
}

func toReportView(report model.ScoreReport) types.Report {
	counts := make(map[string]int, len(report.Counts))
	for kind, count := range report.Counts {
		counts[kind.String()] = count
	}

	deductions := make([]types.Deduction, len(report.Deductions))
	for i, d := range report.Deductions {
		deductions[i] = types.Deduction{
			Kind:   d.Kind.String(),
			Count:  d.Count,
			Points: d.Points,
			Total:  d.Total,
		}
	}

	events := make([]types.ReportEvent, len(report.Events))
	for i, e := range report.Events {
		events[i] = types.ReportEvent{
			EventID:    e.EventID,
			Kind:       e.Kind.String(),
			Confidence: e.Confidence,
			TS:         e.TS,
		}
	}

	return types.Report{
		SessionID:       report.SessionID,
		Subject:         report.Subject,
		GeneratedAt:     report.GeneratedAt,
		DurationSeconds: report.Duration.Seconds(),
		Provisional:     report.Provisional,
		TotalEvents:     report.TotalEvents,
		Counts:          counts,
		Deductions:      deductions,
		Events:          events,
		Score:           report.Score,
	}
}
