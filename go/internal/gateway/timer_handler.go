package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/mcdev12/eventclock/go/internal/journal"
	"github.com/mcdev12/eventclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Controller is the command surface of the timer engine
type Controller interface {
	SnapshotSource
	Start(cfg timer.Config) (timer.Snapshot, error)
	Pause() timer.Snapshot
	Reset() timer.Snapshot
}

// Notifier is told after every applied command so the push path catches up
// without waiting for the next tick
type Notifier interface {
	Notify()
}

// CommandObserver sees every successfully applied command
type CommandObserver interface {
	CommandApplied(command string, snap timer.Snapshot)
}

// JournalReader lists recently applied commands
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// APIResponse is the envelope returned by command endpoints
type APIResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  *timer.Snapshot `json:"state,omitempty"`
}

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

// TimerHandler serves the timer control and poll endpoints
type TimerHandler struct {
	controller Controller
	notifier   Notifier
	observers  []CommandObserver
	journal    JournalReader
	presets    map[string]timer.StartRequest
}

// NewTimerHandler creates a new timer handler
func NewTimerHandler(controller Controller, notifier Notifier) *TimerHandler {
	return &TimerHandler{
		controller: controller,
		notifier:   notifier,
		presets:    make(map[string]timer.StartRequest),
	}
}

// HandleStart handles POST /api/timer/start. An optional ?preset=name selects
// a configured start request; body fields override the preset.
func (h *TimerHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req timer.StartRequest

	if name := r.URL.Query().Get("preset"); name != "" {
		preset, ok := h.presets[name]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown preset "+strconv.Quote(name))
			return
		}
		req = copyStartRequest(preset)
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg, err := req.ToConfig()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.controller.Start(cfg)
	if errors.Is(err, timer.ErrStartIgnored) {
		// Nothing changed, so there is nothing to journal or push
		log.Debug().
			Str("status", string(snap.Status)).
			Msg("start command ignored")
		writeJSON(w, http.StatusOK, APIResponse{Status: "success", State: &snap})
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, timer.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	h.applied(journal.CommandStart, snap)
	writeJSON(w, http.StatusOK, APIResponse{Status: "success", State: &snap})
}

// HandlePause handles POST /api/timer/pause
func (h *TimerHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	snap := h.controller.Pause()
	h.applied(journal.CommandPause, snap)
	writeJSON(w, http.StatusOK, APIResponse{Status: "success", State: &snap})
}

// HandleReset handles POST /api/timer/reset
func (h *TimerHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	snap := h.controller.Reset()
	h.applied(journal.CommandReset, snap)
	writeJSON(w, http.StatusOK, APIResponse{Status: "success", State: &snap})
}

// HandleGetState handles GET /api/timer/state, the poll path
func (h *TimerHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// HandleGetPresets handles GET /api/timer/presets
func (h *TimerHandler) HandleGetPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.presets)
}

// HandleGetJournal handles GET /api/timer/journal?limit=N
func (h *TimerHandler) HandleGetJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "journal is disabled")
		return
	}

	limit := defaultJournalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxJournalLimit)
	}

	entries, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read timer journal")
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// RegisterRoutes registers timer routes with an HTTP mux
func (h *TimerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/timer/start", h.HandleStart)
	mux.HandleFunc("POST /api/timer/pause", h.HandlePause)
	mux.HandleFunc("POST /api/timer/reset", h.HandleReset)
	mux.HandleFunc("GET /api/timer/state", h.HandleGetState)
	mux.HandleFunc("GET /api/timer/presets", h.HandleGetPresets)
	mux.HandleFunc("GET /api/timer/journal", h.HandleGetJournal)
}

func (h *TimerHandler) applied(command string, snap timer.Snapshot) {
	log.Info().
		Str("command", command).
		Str("status", string(snap.Status)).
		Str("formatted_time", snap.FormattedTime).
		Msg("timer command applied")

	if h.notifier != nil {
		h.notifier.Notify()
	}
	for _, o := range h.observers {
		o.CommandApplied(command, snap)
	}
}

// copyStartRequest detaches pointer fields so decoding a body over a preset
// cannot write into the preset itself
func copyStartRequest(req timer.StartRequest) timer.StartRequest {
	out := req
	if req.MaxDurationMs != nil {
		v := *req.MaxDurationMs
		out.MaxDurationMs = &v
	}
	if req.MaxDuration != nil {
		v := *req.MaxDuration
		out.MaxDuration = &v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{Status: "error", Error: msg})
}
