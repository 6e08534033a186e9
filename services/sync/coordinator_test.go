package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"telecast/config"
	"telecast/models"
	"telecast/services/index"
)

// fakeIndexStore simulates a paged upstream with per-section totals and
// records every checkpoint commit so tests can assert monotonicity.
type fakeIndexStore struct {
	mu             sync.Mutex
	totals         map[models.Section]int
	cursors        map[models.Section][]int // every committed cursor, in order
	complete       map[models.Section]bool
	completedOrder []models.Section
	checkpoints    map[models.Section]*models.SectionSyncCheckpoint
	fetchCalls     int
	delay          time.Duration // per-page latency, lets tests pause mid-job
}

func newFakeIndexStore(totals map[models.Section]int) *fakeIndexStore {
	return &fakeIndexStore{
		totals:      totals,
		cursors:     make(map[models.Section][]int),
		complete:    make(map[models.Section]bool),
		checkpoints: make(map[models.Section]*models.SectionSyncCheckpoint),
	}
}

func (f *fakeIndexStore) FetchAndStorePage(ctx context.Context, cfg models.AccountConfig, section models.Section, cursor, limit int) (index.PageResult, error) {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return index.PageResult{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	total := f.totals[section]
	n := total - cursor
	if n > limit {
		n = limit
	}
	if n < 0 {
		n = 0
	}
	next := cursor + n
	ckpt := f.checkpoints[section]
	if ckpt == nil {
		ckpt = &models.SectionSyncCheckpoint{Section: section}
		f.checkpoints[section] = ckpt
	}
	if next > ckpt.Cursor {
		ckpt.Cursor = next
		ckpt.ItemsIndexed = next
	}
	ckpt.TotalEstimate = total
	f.cursors[section] = append(f.cursors[section], next)
	return index.PageResult{ItemsStored: n, NextCursor: next, Total: total, Done: next >= total}, nil
}

func (f *fakeIndexStore) EnsureCategories(ctx context.Context, cfg models.AccountConfig, section models.Section) error {
	return nil
}

func (f *fakeIndexStore) MarkSectionComplete(cfg models.AccountConfig, section models.Section) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete[section] = true
	f.completedOrder = append(f.completedOrder, section)
	if ckpt := f.checkpoints[section]; ckpt != nil {
		ckpt.IsComplete = true
	}
	return nil
}

func (f *fakeIndexStore) SectionSyncCheckpoint(section models.Section, cfg models.AccountConfig) (*models.SectionSyncCheckpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ckpt, ok := f.checkpoints[section]
	if !ok {
		return nil, nil
	}
	clone := *ckpt
	return &clone, nil
}

func (f *fakeIndexStore) HasFullIndex(cfg models.AccountConfig) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, section := range models.SyncTargetSections {
		if !f.complete[section] {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeIndexStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func testSyncSettings() config.SyncSettings {
	return config.SyncSettings{
		PageSize:          10,
		FastStartPageSize: 5,
		GraceDelayMs:      30,
		RetryAttempts:     2,
		RetryDelayMs:      1,
	}
}

func testAccount() models.AccountConfig {
	return models.AccountConfig{
		BaseURL:  "http://example.test",
		Username: "user",
		Password: "pass",
		ListName: "Main",
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestFastStartThenBackgroundCompletes(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 25,
		models.SectionSeries: 12,
		models.SectionLive:   8,
	})
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)

	if err := c.StartFastStartSync(context.Background()); err != nil {
		t.Fatalf("StartFastStartSync: %v", err)
	}

	state := c.State()
	if !state.FastStartReady {
		t.Fatal("expected fastStartReady after minimal slice")
	}
	if state.FullIndexComplete {
		t.Fatal("full index cannot be complete right after fast start")
	}

	// Background full sync auto-triggers after the grace delay.
	waitFor(t, 3*time.Second, func() bool {
		return c.State().Phase == models.SyncPhaseComplete
	})

	state = c.State()
	if !state.FullIndexComplete {
		t.Fatal("expected fullIndexComplete at COMPLETE")
	}
	for _, section := range models.SyncTargetSections {
		progress := state.SectionProgress[section]
		if progress.Progress != 1.0 {
			t.Errorf("%s progress = %v, want 1.0", section, progress.Progress)
		}
		if progress.ItemsIndexed != store.totals[section] {
			t.Errorf("%s itemsIndexed = %d, want %d", section, progress.ItemsIndexed, store.totals[section])
		}
		if !store.complete[section] {
			t.Errorf("%s checkpoint never completed", section)
		}
	}
}

func TestProgressNeverReachesOneBeforeCompletion(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 5,
		models.SectionSeries: 5,
		models.SectionLive:   5,
	})
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)

	// Fast start indexes the full 5 items of each section, but completion is
	// declared by the background pass, not inferred from counts.
	if err := c.StartFastStartSync(context.Background()); err != nil {
		t.Fatalf("StartFastStartSync: %v", err)
	}
	state := c.State()
	for _, section := range models.SyncTargetSections {
		if p := state.SectionProgress[section].Progress; p >= 1.0 {
			t.Errorf("%s progress = %v before checkpoint completion", section, p)
		}
	}
}

func TestPauseIsIdempotentAndCancelsGraceTimer(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 25,
		models.SectionSeries: 12,
		models.SectionLive:   8,
	})
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)

	if err := c.StartFastStartSync(context.Background()); err != nil {
		t.Fatalf("StartFastStartSync: %v", err)
	}
	c.PauseBackgroundSync()
	first := c.State()
	c.PauseBackgroundSync()
	second := c.State()

	if !first.IsPaused || !second.IsPaused {
		t.Fatal("expected paused state after pause calls")
	}
	if first.Phase != second.Phase {
		t.Fatalf("second pause changed phase: %s -> %s", first.Phase, second.Phase)
	}

	calls := store.calls()
	time.Sleep(100 * time.Millisecond) // past the grace delay
	if store.calls() != calls {
		t.Fatal("background sync ran despite pause")
	}

	c.ResumeBackgroundSync(context.Background())
	waitFor(t, 3*time.Second, func() bool {
		return c.State().Phase == models.SyncPhaseComplete
	})
}

func TestCheckpointCursorsNeverDecrease(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 60,
		models.SectionSeries: 40,
		models.SectionLive:   20,
	})
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)

	go c.StartBackgroundFullSync(context.Background())
	time.Sleep(10 * time.Millisecond)
	c.PauseBackgroundSync()
	c.ResumeBackgroundSync(context.Background())
	time.Sleep(10 * time.Millisecond)
	if err := c.BoostSection(context.Background(), models.SectionLive); err != nil {
		t.Fatalf("BoostSection: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return c.State().Phase == models.SyncPhaseComplete
	})

	store.mu.Lock()
	defer store.mu.Unlock()
	for section, cursors := range store.cursors {
		for i := 1; i < len(cursors); i++ {
			if cursors[i] < cursors[i-1] {
				t.Errorf("%s cursor went backwards: %v", section, cursors)
				break
			}
		}
	}
	for _, section := range models.SyncTargetSections {
		if !store.complete[section] {
			t.Errorf("%s never completed", section)
		}
	}
}

func TestBoostSkipsCompletedSection(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 5,
		models.SectionSeries: 5,
		models.SectionLive:   5,
	})
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)
	if err := c.StartBackgroundFullSync(context.Background()); err != nil {
		t.Fatalf("StartBackgroundFullSync: %v", err)
	}

	calls := store.calls()
	if err := c.BoostSection(context.Background(), models.SectionMovies); err != nil {
		t.Fatalf("BoostSection: %v", err)
	}
	if store.calls() != calls {
		t.Fatal("boost re-fetched a completed section")
	}
}

func TestRestoreCompletedStateSkipsFastStart(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 5,
		models.SectionSeries: 5,
		models.SectionLive:   5,
	})
	for _, section := range models.SyncTargetSections {
		store.complete[section] = true
	}
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)
	c.RestoreState(&models.ProgressiveSyncState{
		Phase:             models.SyncPhaseComplete,
		FastStartReady:    true,
		FullIndexComplete: true,
	})

	state := c.State()
	if state.Phase != models.SyncPhaseComplete || !state.FastStartReady {
		t.Fatalf("restored state = %+v, want COMPLETE and fastStartReady", state)
	}

	if err := c.StartFastStartSync(context.Background()); err != nil {
		t.Fatalf("StartFastStartSync: %v", err)
	}
	if store.calls() != 0 {
		t.Fatal("fast start fetched pages despite an existing full index")
	}
	if c.State().Phase != models.SyncPhaseComplete {
		t.Fatalf("phase = %s, want COMPLETE", c.State().Phase)
	}
}

func TestPlaybackEventsParkAndReleaseSync(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 60,
		models.SectionSeries: 40,
		models.SectionLive:   20,
	})
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)

	go c.StartBackgroundFullSync(context.Background())
	time.Sleep(10 * time.Millisecond)
	c.PlaybackStarted()

	if !c.State().IsPaused {
		t.Fatal("expected paused state while playback is active")
	}
	calls := store.calls()
	time.Sleep(50 * time.Millisecond)
	if store.calls() != calls {
		t.Fatal("sync kept paging during playback")
	}

	c.PlaybackStopped(context.Background())
	waitFor(t, 5*time.Second, func() bool {
		return c.State().Phase == models.SyncPhaseComplete
	})
}

func TestPauseAfterStartWhilePausedStillCancels(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 10000,
		models.SectionSeries: 10000,
		models.SectionLive:   10000,
	})
	store.delay = 2 * time.Millisecond
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)

	// Pause first, then start anyway: the start releases the hold, so the
	// next pause must latch again instead of early-returning.
	c.PauseBackgroundSync()

	done := make(chan struct{})
	go func() {
		c.StartBackgroundFullSync(context.Background())
		close(done)
	}()
	waitFor(t, 3*time.Second, func() bool { return store.calls() > 2 })

	c.PauseBackgroundSync()

	if got := c.State().Phase; got != models.SyncPhasePaused {
		t.Fatalf("phase after second pause = %s, want PAUSED", got)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job kept running after the second pause")
	}
	calls := store.calls()
	time.Sleep(50 * time.Millisecond)
	if store.calls() != calls {
		t.Fatal("sync kept paging after the second pause")
	}
}

func TestResumeReissuesInterruptedBoost(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 200,
		models.SectionSeries: 200,
		models.SectionLive:   200,
	})
	store.delay = 2 * time.Millisecond
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)

	go c.BoostSection(context.Background(), models.SectionSeries)
	waitFor(t, 3*time.Second, func() bool { return store.calls() > 1 })

	c.PauseBackgroundSync()
	if got := c.State().Phase; got != models.SyncPhasePaused {
		t.Fatalf("phase = %s, want PAUSED", got)
	}

	c.ResumeBackgroundSync(context.Background())
	waitFor(t, 10*time.Second, func() bool {
		return c.State().Phase == models.SyncPhaseComplete
	})

	// The boost keeps its priority across the pause: the boosted section
	// finishes before the background order would have reached it.
	store.mu.Lock()
	first := store.completedOrder[0]
	store.mu.Unlock()
	if first != models.SectionSeries {
		t.Fatalf("first completed section = %s, want %s", first, models.SectionSeries)
	}
}

func TestBoostOverridesExplicitPause(t *testing.T) {
	store := newFakeIndexStore(map[models.Section]int{
		models.SectionMovies: 30,
		models.SectionSeries: 30,
		models.SectionLive:   30,
	})
	c := NewCoordinator(store, nil, testAccount(), testSyncSettings(), nil)

	c.PauseBackgroundSync()
	if err := c.BoostSection(context.Background(), models.SectionSeries); err != nil {
		t.Fatalf("BoostSection: %v", err)
	}

	// User demand un-parks sync: the boost runs and the background pass
	// chains after it instead of staying paused.
	if !store.complete[models.SectionSeries] {
		t.Fatal("boosted section never completed")
	}
	if got := c.State().Phase; got != models.SyncPhaseComplete {
		t.Fatalf("phase = %s, want COMPLETE", got)
	}

	// The hold is released, not broken: a fresh pause still latches.
	c.PauseBackgroundSync()
	if !c.State().IsPaused {
		t.Fatal("pause after boost did not latch")
	}
}
