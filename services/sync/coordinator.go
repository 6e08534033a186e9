package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"telecast/config"
	"telecast/models"
	"telecast/services/index"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// indexStore is the slice of the content index store the coordinator drives.
type indexStore interface {
	FetchAndStorePage(ctx context.Context, cfg models.AccountConfig, section models.Section, cursor, limit int) (index.PageResult, error)
	EnsureCategories(ctx context.Context, cfg models.AccountConfig, section models.Section) error
	MarkSectionComplete(cfg models.AccountConfig, section models.Section) error
	SectionSyncCheckpoint(section models.Section, cfg models.AccountConfig) (*models.SectionSyncCheckpoint, error)
	HasFullIndex(cfg models.AccountConfig) (bool, error)
}

// ProgressListener receives a state snapshot after every observable change.
type ProgressListener func(models.ProgressiveSyncState)

// Coordinator runs progressive sync for a single account: a fast cross-section
// slice first, then a full background pass that boosts, pauses and resumes
// around user activity. All phase changes go through the coordinator lock;
// page fetches never hold it.
type Coordinator struct {
	store    indexStore
	persist  *StateStore
	cfg      models.AccountConfig
	settings config.SyncSettings
	listener ProgressListener

	mu             sync.Mutex
	state          models.ProgressiveSyncState
	generation     string // token of the only job allowed to mutate state
	pausedExplicit bool
	pausedPlayback bool
	resumePhase    models.SyncPhase
	resumeSection  *models.Section // boosted section to re-issue when pause interrupted a boost
	graceTimer     *time.Timer
	cancelJob      context.CancelFunc
}

func NewCoordinator(store indexStore, persist *StateStore, cfg models.AccountConfig, settings config.SyncSettings, listener ProgressListener) *Coordinator {
	return &Coordinator{
		store:    store,
		persist:  persist,
		cfg:      cfg,
		settings: settings,
		listener: listener,
		state: models.ProgressiveSyncState{
			SectionProgress: make(map[models.Section]models.SectionProgress),
		},
	}
}

// State returns a snapshot safe to hand to callers.
func (c *Coordinator) State() models.ProgressiveSyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// RestoreState hydrates from a persisted snapshot without touching upstream.
// A completed index stays completed; fast start is skipped for it.
func (c *Coordinator) RestoreState(state *models.ProgressiveSyncState) {
	if state == nil {
		return
	}
	c.mu.Lock()
	c.state = state.Clone()
	if c.state.SectionProgress == nil {
		c.state.SectionProgress = make(map[models.Section]models.SectionProgress)
	}
	// A restart cannot resume a half-open pause or an in-flight job.
	c.state.IsPaused = false
	c.state.CurrentSection = nil
	if c.state.FullIndexComplete {
		c.state.Phase = models.SyncPhaseComplete
	}
	c.mu.Unlock()
	c.notify()
}

// StartFastStartSync indexes a minimal slice of every sync target in parallel,
// marks the account browsable, and schedules the full background pass after a
// short grace delay. Safe to call when a full index already exists.
func (c *Coordinator) StartFastStartSync(ctx context.Context) error {
	if full, err := c.store.HasFullIndex(c.cfg); err == nil && full {
		c.mu.Lock()
		c.state.Phase = models.SyncPhaseComplete
		c.state.FastStartReady = true
		c.state.FullIndexComplete = true
		c.mu.Unlock()
		c.notify()
		return nil
	}

	gen := c.beginJob(models.SyncPhaseFastStart)
	jobCtx, cancel := c.bindJob(ctx, gen)
	defer cancel()

	p := pool.New().WithContext(jobCtx).WithCancelOnError()
	for _, section := range models.SyncTargetSections {
		section := section
		p.Go(func(ctx context.Context) error {
			if err := c.store.EnsureCategories(ctx, c.cfg, section); err != nil {
				log.Printf("[sync] fast start categories for %s unavailable: %v", section, err)
			}
			res, err := c.fetchPage(ctx, section, 0, c.settings.FastStartPageSize)
			if err != nil {
				return fmt.Errorf("fast start %s: %w", section, err)
			}
			c.recordProgress(gen, section, res, false)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		c.failJob(gen, err)
		return err
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil
	}
	c.state.FastStartReady = true
	c.state.LastSyncTimestamp = time.Now()
	grace := time.Duration(c.settings.GraceDelayMs) * time.Millisecond
	c.graceTimer = time.AfterFunc(grace, func() {
		c.mu.Lock()
		stale := c.generation != gen
		paused := c.pausedExplicit || c.pausedPlayback
		c.mu.Unlock()
		if stale || paused {
			return
		}
		if err := c.StartBackgroundFullSync(context.Background()); err != nil {
			log.Printf("[sync] background sync for %s: %v", c.cfg.ListName, err)
		}
	})
	c.mu.Unlock()
	c.notify()
	c.save()
	return nil
}

// StartBackgroundFullSync pages every sync target to completion in a fixed
// order, resuming each section from its checkpoint.
func (c *Coordinator) StartBackgroundFullSync(ctx context.Context) error {
	gen := c.beginJob(models.SyncPhaseBackgroundFull)
	jobCtx, cancel := c.bindJob(ctx, gen)
	defer cancel()

	for _, section := range models.SyncTargetSections {
		if err := c.syncSection(jobCtx, gen, section); err != nil {
			if jobCtx.Err() != nil {
				return nil // preempted by pause or boost, checkpoint holds our place
			}
			c.failJob(gen, err)
			return err
		}
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil
	}
	c.state.Phase = models.SyncPhaseComplete
	c.state.FullIndexComplete = true
	c.state.FastStartReady = true
	c.state.CurrentSection = nil
	c.state.LastSyncTimestamp = time.Now()
	c.mu.Unlock()
	c.notify()
	c.save()
	return nil
}

// BoostSection pulls one section ahead of the background order, then hands
// control back to the background pass, which resumes from its checkpoints.
// A boost is direct user demand, so it overrides an active pause the same
// way any explicit start does; the pause holds latch again on the next
// pause or playback event.
func (c *Coordinator) BoostSection(ctx context.Context, section models.Section) error {
	if !section.IsSyncTarget() {
		return fmt.Errorf("cannot boost %s: not a sync target", section)
	}
	if ckpt, err := c.store.SectionSyncCheckpoint(section, c.cfg); err == nil && ckpt != nil && ckpt.IsComplete {
		return nil
	}

	gen := c.beginJob(models.SyncPhaseOnDemandBoost)
	jobCtx, cancel := c.bindJob(ctx, gen)
	defer cancel()

	if err := c.syncSection(jobCtx, gen, section); err != nil {
		if jobCtx.Err() != nil {
			return nil
		}
		c.failJob(gen, err)
		return err
	}

	c.mu.Lock()
	stale := c.generation != gen
	paused := c.pausedExplicit || c.pausedPlayback
	c.mu.Unlock()
	if stale || paused {
		return nil
	}
	return c.StartBackgroundFullSync(ctx)
}

// PauseBackgroundSync suspends paging until an explicit resume. Idempotent.
func (c *Coordinator) PauseBackgroundSync() {
	c.pause(true)
}

// ResumeBackgroundSync lifts an explicit pause. Idempotent; sync stays parked
// while playback is still active.
func (c *Coordinator) ResumeBackgroundSync(ctx context.Context) {
	c.resume(ctx, true)
}

// PlaybackStarted parks background sync so paging never competes with a
// stream for bandwidth.
func (c *Coordinator) PlaybackStarted() {
	c.pause(false)
}

// PlaybackStopped releases the playback hold.
func (c *Coordinator) PlaybackStopped(ctx context.Context) {
	c.resume(ctx, false)
}

func (c *Coordinator) pause(explicit bool) {
	c.mu.Lock()
	if explicit {
		if c.pausedExplicit {
			c.mu.Unlock()
			return
		}
		c.pausedExplicit = true
	} else {
		if c.pausedPlayback {
			c.mu.Unlock()
			return
		}
		c.pausedPlayback = true
	}

	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
		c.resumePhase = models.SyncPhaseBackgroundFull
	}
	switch c.state.Phase {
	case models.SyncPhaseBackgroundFull, models.SyncPhaseOnDemandBoost, models.SyncPhaseFastStart:
		// An interrupted boost resumes as a boost of the same section. Fast
		// start collapses into the background pass, whose checkpoints cover
		// the same pages.
		if c.state.Phase == models.SyncPhaseOnDemandBoost && c.state.CurrentSection != nil {
			section := *c.state.CurrentSection
			c.resumePhase = models.SyncPhaseOnDemandBoost
			c.resumeSection = &section
		} else {
			c.resumePhase = models.SyncPhaseBackgroundFull
			c.resumeSection = nil
		}
		if c.cancelJob != nil {
			c.cancelJob()
			c.cancelJob = nil
		}
		c.generation = "" // orphan the in-flight job
		c.state.Phase = models.SyncPhasePaused
	}
	c.state.IsPaused = true
	c.state.CurrentSection = nil
	c.mu.Unlock()
	c.notify()
	c.save()
}

func (c *Coordinator) resume(ctx context.Context, explicit bool) {
	c.mu.Lock()
	if explicit {
		c.pausedExplicit = false
	} else {
		c.pausedPlayback = false
	}
	if c.pausedExplicit || c.pausedPlayback {
		c.mu.Unlock()
		return
	}
	phase := c.resumePhase
	section := c.resumeSection
	c.resumePhase = ""
	c.resumeSection = nil
	c.state.IsPaused = false
	c.mu.Unlock()
	c.notify()

	switch {
	case phase == models.SyncPhaseOnDemandBoost && section != nil:
		go func() {
			if err := c.BoostSection(ctx, *section); err != nil {
				log.Printf("[sync] resume boost of %s for %s: %v", *section, c.cfg.ListName, err)
			}
		}()
	case phase == models.SyncPhaseBackgroundFull:
		go func() {
			if err := c.StartBackgroundFullSync(ctx); err != nil {
				log.Printf("[sync] resume background sync for %s: %v", c.cfg.ListName, err)
			}
		}()
	}
}

// syncSection resumes a section from its checkpoint and pages it to
// completion. The checkpoint only advances on a committed page, so a crash or
// preemption between pages loses nothing.
func (c *Coordinator) syncSection(ctx context.Context, gen string, section models.Section) error {
	cursor := 0
	if ckpt, err := c.store.SectionSyncCheckpoint(section, c.cfg); err != nil {
		return err
	} else if ckpt != nil {
		if ckpt.IsComplete {
			c.markSectionDone(gen, section)
			return nil
		}
		cursor = ckpt.Cursor
	}

	if err := c.store.EnsureCategories(ctx, c.cfg, section); err != nil {
		log.Printf("[sync] categories for %s unavailable, continuing: %v", section, err)
	}

	c.setCurrentSection(gen, section)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := c.fetchPage(ctx, section, cursor, c.settings.PageSize)
		if err != nil {
			return err
		}
		cursor = res.NextCursor
		c.recordProgress(gen, section, res, false)
		if res.Done {
			break
		}
	}

	if err := c.store.MarkSectionComplete(c.cfg, section); err != nil {
		return err
	}
	c.markSectionDone(gen, section)
	return nil
}

// fetchPage wraps a single page fetch in bounded retries.
func (c *Coordinator) fetchPage(ctx context.Context, section models.Section, cursor, limit int) (index.PageResult, error) {
	return retry.DoWithData(
		func() (index.PageResult, error) {
			return c.store.FetchAndStorePage(ctx, c.cfg, section, cursor, limit)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.settings.RetryAttempts)),
		retry.Delay(time.Duration(c.settings.RetryDelayMs)*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// beginJob issues the generation token for a new sync job. Starting a job is
// an implicit resume: both pause holds are released, so the next pause call
// latches again and cancels this job rather than early-returning.
func (c *Coordinator) beginJob(phase models.SyncPhase) string {
	gen := uuid.NewString()
	c.mu.Lock()
	if c.cancelJob != nil {
		c.cancelJob()
		c.cancelJob = nil
	}
	c.generation = gen
	c.pausedExplicit = false
	c.pausedPlayback = false
	c.resumePhase = ""
	c.resumeSection = nil
	c.state.Phase = phase
	c.state.IsPaused = false
	c.mu.Unlock()
	c.notify()
	return gen
}

func (c *Coordinator) bindJob(ctx context.Context, gen string) (context.Context, context.CancelFunc) {
	jobCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.generation == gen {
		c.cancelJob = cancel
	}
	c.mu.Unlock()
	return jobCtx, cancel
}

func (c *Coordinator) failJob(gen string, err error) {
	log.Printf("[sync] sync for %s failed: %v", c.cfg.ListName, err)
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.state.CurrentSection = nil
	c.mu.Unlock()
	c.notify()
}

func (c *Coordinator) setCurrentSection(gen string, section models.Section) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.state.CurrentSection = &section
	c.mu.Unlock()
	c.notify()
}

// recordProgress folds a committed page into the per-section estimate.
// Items indexed never decreases and progress only reaches 1.0 at completion.
func (c *Coordinator) recordProgress(gen string, section models.Section, res index.PageResult, done bool) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	prev := c.state.SectionProgress[section]
	next := prev
	if res.NextCursor > prev.ItemsIndexed {
		next.ItemsIndexed = res.NextCursor
	}
	if done {
		next.Progress = 1.0
	} else if res.Total > 0 {
		next.Progress = float64(next.ItemsIndexed) / float64(res.Total)
		if next.Progress >= 1.0 {
			next.Progress = 0.99 // completion is declared, never inferred
		}
	}
	c.state.SectionProgress[section] = next
	c.state.LastSyncTimestamp = time.Now()
	c.mu.Unlock()
	c.notify()
}

func (c *Coordinator) markSectionDone(gen string, section models.Section) {
	c.recordProgress(gen, section, index.PageResult{}, true)
}

func (c *Coordinator) notify() {
	if c.listener == nil {
		return
	}
	c.listener(c.State())
}

func (c *Coordinator) save() {
	if c.persist == nil {
		return
	}
	snapshot := c.State()
	c.persist.Put(c.cfg.Key(), &snapshot)
}
