package segmenter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler exposes read-only controller state on the ops listener.
type Handler struct {
	ctrl *Controller
	log  *slog.Logger
}

// NewHandler returns a Handler reporting on ctrl.
func NewHandler(ctrl *Controller, log *slog.Logger) *Handler {
	return &Handler{ctrl: ctrl, log: log}
}

// Routes mounts the handler endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.GetStatus)
	r.Get("/status/entries/{sequence}", h.GetEntry)
}

// GetStatus handles GET /status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.ctrl.Status())
}

// GetEntry handles GET /status/entries/{sequence}. It answers 404 for
// sequences that are not advertised in the current playlist.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	seq, err := strconv.ParseUint(chi.URLParam(r, "sequence"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, e := range h.ctrl.Status().Entries {
		if e.Sequence == seq {
			h.writeJSON(w, e)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("status response write failed", slog.String("error", err.Error()))
	}
}
