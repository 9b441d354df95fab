// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/proctorkit/vigil/internal/domain/types"
)

// LiveDependencies defines the interface for the live monitoring view.
type LiveDependencies interface {
	Live(ctx context.Context, sessionID string) (types.LiveSummary, error)
}

// LiveHandler handles live tally requests.
type LiveHandler struct {
	deps LiveDependencies
}

// NewLiveHandler creates a new live handler.
func NewLiveHandler(deps LiveDependencies) *LiveHandler {
	return &LiveHandler{deps: deps}
}

// HandleGetLive handles GET /sessions/{id}/live requests.
// The summary is a provisional projection fed by the workers; the
// authoritative score always comes from the report endpoint.
func (h *LiveHandler) HandleGetLive(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	summary, err := h.deps.Live(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
