package sync

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"telecast/models"
)

// StateStore persists the last known progressive-sync state per account so a
// restart can resume background sync instead of starting over.
type StateStore struct {
	path string

	mu     sync.RWMutex
	states map[string]*models.ProgressiveSyncState // accountKey -> state
}

func NewStateStore(dataDir string) (*StateStore, error) {
	s := &StateStore{
		path:   filepath.Join(dataDir, "sync_state.json"),
		states: make(map[string]*models.ProgressiveSyncState),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StateStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sync state: %w", err)
	}
	if err := json.Unmarshal(data, &s.states); err != nil {
		log.Printf("[sync] sync state file corrupt, starting fresh: %v", err)
		s.states = make(map[string]*models.ProgressiveSyncState)
	}
	return nil
}

func (s *StateStore) persist() {
	data, err := json.MarshalIndent(s.states, "", "  ")
	if err != nil {
		log.Printf("[sync] marshal sync state: %v", err)
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Printf("[sync] write sync state: %v", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.Printf("[sync] rename sync state: %v", err)
	}
}

// Get returns a copy of the stored state for an account, or nil.
func (s *StateStore) Get(accountKey string) *models.ProgressiveSyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[accountKey]
	if !ok {
		return nil
	}
	clone := state.Clone()
	return &clone
}

// Put stores a snapshot of the state for an account.
func (s *StateStore) Put(accountKey string, state *models.ProgressiveSyncState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := state.Clone()
	s.states[accountKey] = &clone
	s.persist()
}

// Delete removes the stored state for an account.
func (s *StateStore) Delete(accountKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[accountKey]; !ok {
		return
	}
	delete(s.states, accountKey)
	s.persist()
}
