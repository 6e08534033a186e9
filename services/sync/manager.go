package sync

import (
	"sync"

	"telecast/config"
	"telecast/models"
)

// Manager hands out one Coordinator per account and rehydrates persisted
// state the first time an account is seen.
type Manager struct {
	store    indexStore
	persist  *StateStore
	settings config.SyncSettings
	listener ProgressListener

	mu     sync.Mutex
	coords map[string]*Coordinator
}

func NewManager(store indexStore, persist *StateStore, settings config.SyncSettings, listener ProgressListener) *Manager {
	return &Manager{
		store:    store,
		persist:  persist,
		settings: settings,
		listener: listener,
		coords:   make(map[string]*Coordinator),
	}
}

// ForAccount returns the coordinator for an account, creating and restoring
// it on first use.
func (m *Manager) ForAccount(cfg models.AccountConfig) *Coordinator {
	key := cfg.Key()
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.coords[key]; ok {
		return c
	}
	c := NewCoordinator(m.store, m.persist, cfg, m.settings, m.listener)
	if m.persist != nil {
		c.RestoreState(m.persist.Get(key))
	}
	m.coords[key] = c
	return c
}

// Forget drops the coordinator and persisted state for an account.
func (m *Manager) Forget(cfg models.AccountConfig) {
	key := cfg.Key()
	m.mu.Lock()
	c, ok := m.coords[key]
	delete(m.coords, key)
	m.mu.Unlock()
	if ok {
		c.PauseBackgroundSync()
	}
	if m.persist != nil {
		m.persist.Delete(key)
	}
}
