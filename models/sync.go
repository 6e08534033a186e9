package models

import "time"

// SyncPhase is the coordinator's active phase. Exactly one phase is active
// per account; PAUSED always remembers the phase it will resume into.
type SyncPhase string

const (
	SyncPhaseFastStart      SyncPhase = "FAST_START"
	SyncPhaseBackgroundFull SyncPhase = "BACKGROUND_FULL"
	SyncPhaseOnDemandBoost  SyncPhase = "ON_DEMAND_BOOST"
	SyncPhasePaused         SyncPhase = "PAUSED"
	SyncPhaseComplete       SyncPhase = "COMPLETE"
)

// SectionProgress is a best-effort per-section estimate. Progress reaches 1.0
// only when the section checkpoint completes, never before.
type SectionProgress struct {
	Progress     float64 `json:"progress"`
	ItemsIndexed int     `json:"itemsIndexed"`
}

// ProgressiveSyncState is the coordinator's externally visible state snapshot.
type ProgressiveSyncState struct {
	Phase             SyncPhase                   `json:"phase"`
	FastStartReady    bool                        `json:"fastStartReady"`
	FullIndexComplete bool                        `json:"fullIndexComplete"`
	IsPaused          bool                        `json:"isPaused"`
	CurrentSection    *Section                    `json:"currentSection,omitempty"`
	SectionProgress   map[Section]SectionProgress `json:"sectionProgress"`
	LastSyncTimestamp time.Time                   `json:"lastSyncTimestamp"`
}

// Clone returns a deep copy so snapshots can escape the coordinator's lock.
func (s ProgressiveSyncState) Clone() ProgressiveSyncState {
	out := s
	if s.CurrentSection != nil {
		section := *s.CurrentSection
		out.CurrentSection = &section
	}
	out.SectionProgress = make(map[Section]SectionProgress, len(s.SectionProgress))
	for k, v := range s.SectionProgress {
		out.SectionProgress[k] = v
	}
	return out
}

// SectionSyncCheckpoint records resumable indexing progress for one section.
// The cursor only moves forward; a forced resync is the sole path back to zero.
type SectionSyncCheckpoint struct {
	Section       Section   `json:"section"`
	IsComplete    bool      `json:"isComplete"`
	Cursor        int       `json:"cursor"`
	ItemsIndexed  int       `json:"itemsIndexed"`
	TotalEstimate int       `json:"totalEstimate"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
