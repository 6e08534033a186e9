package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"telecast/models"
	syncsvc "telecast/services/sync"

	"github.com/gorilla/mux"
)

// SyncHandler exposes the progressive sync coordinator to the TV client.
type SyncHandler struct {
	Manager  *syncsvc.Manager
	Accounts *AccountResolver
}

func NewSyncHandler(manager *syncsvc.Manager, accounts *AccountResolver) *SyncHandler {
	return &SyncHandler{Manager: manager, Accounts: accounts}
}

func (h *SyncHandler) coordinator(w http.ResponseWriter, r *http.Request) (*syncsvc.Coordinator, bool) {
	cfg, err := h.Accounts.Resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return h.Manager.ForAccount(cfg), true
}

// FastStart kicks off the minimal cross-section slice. The response returns
// immediately; progress is observable through Status.
func (h *SyncHandler) FastStart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.coordinator(w, r)
	if !ok {
		return
	}
	// Detached from the request context: sync outlives the HTTP call.
	go func() {
		if err := c.StartFastStartSync(context.Background()); err != nil {
			log.Printf("[api] fast start sync: %v", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

// Full starts the background full pass directly.
func (h *SyncHandler) Full(w http.ResponseWriter, r *http.Request) {
	c, ok := h.coordinator(w, r)
	if !ok {
		return
	}
	go func() {
		if err := c.StartBackgroundFullSync(context.Background()); err != nil {
			log.Printf("[api] background sync: %v", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

// Boost pulls one section to the front of the sync order.
func (h *SyncHandler) Boost(w http.ResponseWriter, r *http.Request) {
	section, err := models.ParseSection(mux.Vars(r)["section"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, ok := h.coordinator(w, r)
	if !ok {
		return
	}
	go func() {
		if err := c.BoostSection(context.Background(), section); err != nil {
			log.Printf("[api] boost %s: %v", section, err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (h *SyncHandler) Pause(w http.ResponseWriter, r *http.Request) {
	c, ok := h.coordinator(w, r)
	if !ok {
		return
	}
	c.PauseBackgroundSync()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SyncHandler) Resume(w http.ResponseWriter, r *http.Request) {
	c, ok := h.coordinator(w, r)
	if !ok {
		return
	}
	c.ResumeBackgroundSync(context.Background())
	w.WriteHeader(http.StatusNoContent)
}

// PlaybackStarted parks background sync while a stream is playing.
func (h *SyncHandler) PlaybackStarted(w http.ResponseWriter, r *http.Request) {
	c, ok := h.coordinator(w, r)
	if !ok {
		return
	}
	c.PlaybackStarted()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SyncHandler) PlaybackStopped(w http.ResponseWriter, r *http.Request) {
	c, ok := h.coordinator(w, r)
	if !ok {
		return
	}
	c.PlaybackStopped(context.Background())
	w.WriteHeader(http.StatusNoContent)
}

// Status returns the coordinator's state snapshot.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	c, ok := h.coordinator(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c.State())
}
