package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"telecast/models"
	"telecast/services/playback"

	"github.com/gorilla/mux"
)

// QueueHandler builds playback queues and opens resilience sessions over them.
type QueueHandler struct {
	Sessions *playback.SessionManager
	Local    *playback.LocalLibrary
	Accounts *AccountResolver
}

func NewQueueHandler(sessions *playback.SessionManager, local *playback.LocalLibrary, accounts *AccountResolver) *QueueHandler {
	return &QueueHandler{Sessions: sessions, Local: local, Accounts: accounts}
}

type buildQueueRequest struct {
	Items        []models.ContentItem        `json:"items"`
	Selected     models.ContentItem          `json:"selected"`
	Capabilities playback.DeviceCapabilities `json:"capabilities"`
}

type queueResponse struct {
	SessionID string               `json:"sessionId"`
	Queue     models.PlaybackQueue `json:"queue"`
}

// Build creates a queue from browsed items plus the selection and opens a
// session for it.
func (h *QueueHandler) Build(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Accounts.Resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req buildQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	queue := playback.BuildQueue(req.Items, req.Selected, cfg)
	if len(queue.Items) == 0 {
		http.Error(w, "no playable items", http.StatusUnprocessableEntity)
		return
	}
	session := h.Sessions.Open(queue, req.Capabilities)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(queueResponse{SessionID: session.ID, Queue: queue})
}

type localQueueRequest struct {
	Paths        []string                    `json:"paths,omitempty"`
	Selected     string                      `json:"selected,omitempty"`
	Capabilities playback.DeviceCapabilities `json:"capabilities"`
}

// BuildLocal creates a queue over local media files. Without explicit paths
// the configured media directories are scanned.
func (h *QueueHandler) BuildLocal(w http.ResponseWriter, r *http.Request) {
	var req localQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	paths := req.Paths
	if len(paths) == 0 {
		var err error
		paths, err = h.Local.Scan()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	queue := playback.BuildLocalQueue(paths, req.Selected)
	if len(queue.Items) == 0 {
		http.Error(w, "no playable files", http.StatusUnprocessableEntity)
		return
	}
	session := h.Sessions.Open(queue, req.Capabilities)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(queueResponse{SessionID: session.ID, Queue: queue})
}

// SessionHandler is the device-side event surface of a playback session.
type SessionHandler struct {
	Sessions *playback.SessionManager
}

func NewSessionHandler(sessions *playback.SessionManager) *SessionHandler {
	return &SessionHandler{Sessions: sessions}
}

// ReportError feeds a player error event to the session.
func (h *SessionHandler) ReportError(w http.ResponseWriter, r *http.Request) {
	var perr playback.PlayerError
	if err := json.NewDecoder(r.Body).Decode(&perr); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.Sessions.ReportError(mux.Vars(r)["id"], perr); err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stateReport struct {
	State string `json:"state"` // "ready" or "transition"
	Index int    `json:"index"`
}

// ReportState records a READY or media-transition event.
func (h *SessionHandler) ReportState(w http.ResponseWriter, r *http.Request) {
	var report stateReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := mux.Vars(r)["id"]
	var err error
	switch report.State {
	case "ready":
		err = h.Sessions.ReportReady(id, report.Index)
	case "transition":
		err = h.Sessions.ReportTransition(id, report.Index)
	default:
		http.Error(w, "unknown state: "+report.State, http.StatusBadRequest)
		return
	}
	if err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type directivesResponse struct {
	Directives []playback.Directive `json:"directives"`
	Notices    []string             `json:"notices"`
}

// Directives drains pending player directives and user notices.
func (h *SessionHandler) Directives(w http.ResponseWriter, r *http.Request) {
	directives, notices, err := h.Sessions.Directives(mux.Vars(r)["id"])
	if err != nil {
		h.sessionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(directivesResponse{Directives: directives, Notices: notices})
}

// Close ends a session.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Close(mux.Vars(r)["id"]); err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) sessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, playback.ErrSessionNotFound) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}
