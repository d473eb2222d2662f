package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	service "github.com/okian/mangacatch/internal/app"
	"github.com/okian/mangacatch/internal/domain/model"
)

// pointerRequest is a normalized pointer position.
type pointerRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (p pointerRequest) validate() error {
	switch {
	case p.X == nil:
		return errors.New("missing x")
	case p.Y == nil:
		return errors.New("missing y")
	}
	for _, v := range []float64{*p.X, *p.Y} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return errors.New("x and y must be within [0, 1]")
		}
	}
	return nil
}

type startResponse struct {
	Status string `json:"status"`
}

type pointerResponse struct {
	Accepted bool `json:"accepted"`
}

// ControlHandler handles the start trigger and pointer fallback input.
type ControlHandler struct {
	deps ControlDependencies
}

// NewControlHandler creates a new control handler.
func NewControlHandler(deps ControlDependencies) *ControlHandler {
	return &ControlHandler{deps: deps}
}

// HandleStart handles POST /start requests.
func (h *ControlHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.TriggerStart(); err != nil {
		switch {
		case errors.Is(err, service.ErrNotTitle):
			writeError(w, http.StatusConflict, "not_title", WrapKind(op, ErrConflict, err))
		case errors.Is(err, service.ErrStopped):
			writeError(w, http.StatusServiceUnavailable, "stopped", NewKind(op, ErrStopped))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		}
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{Status: "started"})
}

// HandlePointer handles POST /pointer requests. A sample refused because
// tracking is live still answers 200 with accepted=false.
func (h *ControlHandler) HandlePointer(w http.ResponseWriter, r *http.Request) {
	const op = "api.pointer"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req pointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ok := h.deps.Pointer(model.PointerSample{X: *req.X, Y: *req.Y})
	writeJSON(w, http.StatusOK, pointerResponse{Accepted: ok})
}
