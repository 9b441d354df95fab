// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	repository "github.com/proctorkit/vigil/internal/adapters/repository"
	"github.com/proctorkit/vigil/internal/domain/model"
	"github.com/proctorkit/vigil/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Session lifecycle.
	CreateSession(ctx context.Context, subject string) (types.Session, error)
	CloseSession(ctx context.Context, sessionID string) (types.Session, error)
	GetSession(ctx context.Context, sessionID string) (types.Session, error)
	ListSessions(ctx context.Context) ([]types.Session, error)

	// Record appends one classified detection to the session's log.
	// suppressed=true means the debouncer dropped it as a repeat.
	Record(ctx context.Context, sessionID, kind string, confidence float64, ts time.Time) (eventID string, suppressed bool, err error)

	// Read operations over the log and the live tally.
	Report(ctx context.Context, sessionID string) (types.Report, error)
	Live(ctx context.Context, sessionID string) (types.LiveSummary, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	eventsHandler   *EventsHandler
	reportHandler   *ReportHandler
	liveHandler     *LiveHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		sessionsHandler: NewSessionsHandler(deps),
		eventsHandler:   NewEventsHandler(deps),
		reportHandler:   NewReportHandler(deps),
		liveHandler:     NewLiveHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandleSessions, "sessions"))
	mux.HandleFunc("/sessions/", MetricsMiddleware(s.routeSession, "sessions"))
}

// routeSession dispatches /sessions/{id}[/action] to the right handler.
func (s *Server) routeSession(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	sessionID, action, _ := strings.Cut(path, "/")
	if sessionID == "" || strings.Contains(action, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch action {
	case "":
		s.sessionsHandler.HandleGetSession(w, r, sessionID)
	case "close":
		s.sessionsHandler.HandleCloseSession(w, r, sessionID)
	case "events":
		s.eventsHandler.HandlePostEvent(w, r, sessionID)
	case "report":
		s.reportHandler.HandleGetReport(w, r, sessionID)
	case "live":
		s.liveHandler.HandleGetLive(w, r, sessionID)
	default:
		http.NotFound(w, r)
	}
}

// createSessionRequest mirrors the OpenAPI schema for POST /sessions.
type createSessionRequest struct {
	Subject string `json:"subject"`
}

func (c createSessionRequest) validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("missing subject")
	}
	return nil
}

// eventRequest mirrors the OpenAPI schema for POST /sessions/{id}/events.
type eventRequest struct {
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	TS         string  `json:"ts"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.Kind) == "":
		return errors.New("missing kind")
	case strings.TrimSpace(e.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, e.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	return nil
}

type ackResponse struct {
	Status     string `json:"status"`
	EventID    string `json:"event_id,omitempty"`
	Suppressed bool   `json:"suppressed"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates store and model errors to the wire envelope.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, repository.ErrSessionClosed):
		writeError(w, http.StatusConflict, "invalid_session", err)
	case errors.Is(err, repository.ErrTimestampOrder):
		writeError(w, http.StatusConflict, "timestamp_order", err)
	case errors.Is(err, model.ErrInvalidEventKind):
		writeError(w, http.StatusBadRequest, "invalid_event_kind", err)
	case errors.Is(err, model.ErrInvalidConfidence):
		writeError(w, http.StatusBadRequest, "invalid_confidence", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
