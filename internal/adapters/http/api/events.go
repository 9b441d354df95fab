// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// EventDependencies defines the interface for event ingestion.
type EventDependencies interface {
	Record(ctx context.Context, sessionID, kind string, confidence float64, ts time.Time) (eventID string, suppressed bool, err error)
}

// EventsHandler handles event ingestion requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /sessions/{id}/events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request, sessionID string) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// validate() already checked the layout.
	ts, _ := time.Parse(time.RFC3339, req.TS)

	eventID, suppressed, err := h.deps.Record(r.Context(), sessionID, req.Kind, req.Confidence, ts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if suppressed {
		writeJSON(w, http.StatusOK, ackResponse{Status: "suppressed", Suppressed: true})
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "recorded", EventID: eventID})
}
