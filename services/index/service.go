package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"telecast/internal/database"
	"telecast/models"
	"telecast/services/xtream"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/sync/singleflight"
)

var (
	ErrPagerStale     = errors.New("pager invalidated by cache clear")
	ErrUnknownSection = errors.New("section is not a sync target")
)

// upstreamClient is the slice of the xtream client the index store needs.
type upstreamClient interface {
	Categories(ctx context.Context, cfg models.AccountConfig, section models.Section) ([]models.Category, error)
	StreamsPage(ctx context.Context, cfg models.AccountConfig, section models.Section, offset, limit int) (xtream.StreamsPage, error)
	VodInfo(ctx context.Context, cfg models.AccountConfig, movieID int64) (*models.MovieInfo, error)
	SeriesInfo(ctx context.Context, cfg models.AccountConfig, seriesID int64) (*models.SeriesInfo, error)
	ShortEPG(ctx context.Context, cfg models.AccountConfig, streamID int64) (*models.NowNext, error)
	InvalidateListings(cfg models.AccountConfig)
}

// Service is the content index store: cached catalog content written by the
// sync coordinator and read by clients, independent of sync completeness.
type Service struct {
	repo     *database.Repository
	upstream upstreamClient

	metadataTTL time.Duration
	nowNextTTL  time.Duration

	sf singleflight.Group

	mu          sync.RWMutex
	epochs      map[string]int        // accountKey -> pager epoch, bumped on cache clear
	loaderCache map[string]cacheEntry // metadata loader results, individually expiring
}

type cacheEntry struct {
	value   interface{}
	expires time.Time
}

func NewService(repo *database.Repository, upstream upstreamClient, metadataTTL, nowNextTTL time.Duration) *Service {
	if metadataTTL <= 0 {
		metadataTTL = 24 * time.Hour
	}
	if nowNextTTL <= 0 {
		nowNextTTL = 5 * time.Minute
	}
	return &Service{
		repo:        repo,
		upstream:    upstream,
		metadataTTL: metadataTTL,
		nowNextTTL:  nowNextTTL,
		epochs:      make(map[string]int),
		loaderCache: make(map[string]cacheEntry),
	}
}

// PageResult reports one committed sync page.
type PageResult struct {
	ItemsStored int
	NextCursor  int
	Total       int
	Done        bool
}

// FetchAndStorePage fetches one slice of a section listing and commits it
// together with the checkpoint advance. The cursor counts items, so the page
// either fully lands in the checkpoint or the checkpoint is untouched.
func (s *Service) FetchAndStorePage(ctx context.Context, cfg models.AccountConfig, section models.Section, cursor, limit int) (PageResult, error) {
	if !section.IsSyncTarget() {
		return PageResult{}, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}

	page, err := s.upstream.StreamsPage(ctx, cfg, section, cursor, limit)
	if err != nil {
		return PageResult{}, fmt.Errorf("fetch %s page at %d: %w", section, cursor, err)
	}

	next := cursor + len(page.Items)
	if len(page.Items) > 0 {
		texts := make([]string, len(page.Items))
		for i, item := range page.Items {
			texts[i] = NormalizeSearchText(item.Name)
		}
		if err := s.repo.CommitPage(cfg.Key(), section, page.Items, texts, next, next, page.Total); err != nil {
			return PageResult{}, fmt.Errorf("commit %s page at %d: %w", section, cursor, err)
		}
	}

	return PageResult{
		ItemsStored: len(page.Items),
		NextCursor:  next,
		Total:       page.Total,
		Done:        next >= page.Total,
	}, nil
}

// EnsureCategories refreshes the cached category set for a section.
func (s *Service) EnsureCategories(ctx context.Context, cfg models.AccountConfig, section models.Section) error {
	cats, err := s.upstream.Categories(ctx, cfg, section)
	if err != nil {
		return fmt.Errorf("fetch %s categories: %w", section, err)
	}
	if err := s.repo.UpsertCategories(cfg.Key(), section, cats); err != nil {
		return fmt.Errorf("store %s categories: %w", section, err)
	}
	return nil
}

// MarkSectionComplete finishes a section's checkpoint. Completion is the
// atomicity boundary readers observe, so this only runs after the last page
// committed.
func (s *Service) MarkSectionComplete(cfg models.AccountConfig, section models.Section) error {
	return s.repo.CompleteSection(cfg.Key(), section)
}

// SectionSyncCheckpoint is a read-only checkpoint lookup, used to
// short-circuit redundant boosts.
func (s *Service) SectionSyncCheckpoint(section models.Section, cfg models.AccountConfig) (*models.SectionSyncCheckpoint, error) {
	return s.repo.GetCheckpoint(cfg.Key(), section)
}

// HasFullIndex reports whether every sync target section completed.
func (s *Service) HasFullIndex(cfg models.AccountConfig) (bool, error) {
	ckpts, err := s.repo.ListCheckpoints(cfg.Key())
	if err != nil {
		return false, err
	}
	complete := make(map[models.Section]bool, len(ckpts))
	for _, c := range ckpts {
		complete[c.Section] = c.IsComplete
	}
	for _, section := range models.SyncTargetSections {
		if !complete[section] {
			return false, nil
		}
	}
	return true, nil
}

// HasSearchIndex reports whether a section has any indexed content at all.
func (s *Service) HasSearchIndex(cfg models.AccountConfig, section models.Section) (bool, error) {
	ckpt, err := s.repo.GetCheckpoint(cfg.Key(), section)
	if err != nil {
		return false, err
	}
	return ckpt != nil && (ckpt.IsComplete || ckpt.ItemsIndexed > 0), nil
}

// HasAnySearchIndex reports whether any sync target has indexed content.
func (s *Service) HasAnySearchIndex(cfg models.AccountConfig) (bool, error) {
	for _, section := range models.SyncTargetSections {
		ok, err := s.HasSearchIndex(cfg, section)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// SyncProgressFunc receives per-page progress during a manual indexing pass.
type SyncProgressFunc func(section models.Section, itemsIndexed, total int)

// SyncSearchIndex performs (or forces) a full indexing pass over the given
// sections. It resumes from existing checkpoints unless force is set, and
// never marks a section complete on a partial fetch.
func (s *Service) SyncSearchIndex(ctx context.Context, cfg models.AccountConfig, force bool, sections []models.Section, onProgress SyncProgressFunc) error {
	if len(sections) == 0 {
		sections = models.SyncTargetSections
	}

	if force {
		if err := s.repo.ResetCheckpoints(cfg.Key(), sections); err != nil {
			return fmt.Errorf("invalidate checkpoints: %w", err)
		}
		s.upstream.InvalidateListings(cfg)
	}

	for _, section := range sections {
		if !section.IsSyncTarget() {
			continue
		}

		cursor := 0
		if ckpt, err := s.repo.GetCheckpoint(cfg.Key(), section); err != nil {
			return err
		} else if ckpt != nil {
			if ckpt.IsComplete {
				continue
			}
			cursor = ckpt.Cursor
		}

		if err := s.EnsureCategories(ctx, cfg, section); err != nil {
			log.Printf("[index] categories for %s unavailable, continuing: %v", section, err)
		}

		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.FetchAndStorePage(ctx, cfg, section, cursor, 500)
			if err != nil {
				return err
			}
			cursor = res.NextCursor
			if onProgress != nil {
				onProgress(section, cursor, res.Total)
			}
			if res.Done {
				break
			}
		}
		if err := s.MarkSectionComplete(cfg, section); err != nil {
			return err
		}
	}
	return nil
}

// ClearCache drops in-memory caches for an account and invalidates its
// outstanding pagers. Disk rows survive.
func (s *Service) ClearCache(cfg models.AccountConfig) {
	key := cfg.Key()
	s.upstream.InvalidateListings(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[key]++
	prefix := key + "|"
	for k := range s.loaderCache {
		if strings.HasPrefix(k, prefix) {
			delete(s.loaderCache, k)
		}
	}
}

// ClearDiskCache additionally deletes the account's persisted index rows and
// checkpoints (account switch / sign-out).
func (s *Service) ClearDiskCache(cfg models.AccountConfig) error {
	s.ClearCache(cfg)
	if err := s.repo.DeleteAccount(cfg.Key()); err != nil {
		return fmt.Errorf("clear disk cache: %w", err)
	}
	return nil
}

func (s *Service) currentEpoch(accountKey string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epochs[accountKey]
}

// NormalizeSearchText folds a display name to lowercase ASCII for the
// search_text column and for query terms.
func NormalizeSearchText(name string) string {
	ascii := unidecode.Unidecode(name)
	ascii = strings.ToLower(strings.TrimSpace(ascii))
	return strings.Join(strings.Fields(ascii), " ")
}

// SearchTerms splits a free-text query into normalized match tokens.
func SearchTerms(query string) []string {
	return strings.Fields(NormalizeSearchText(query))
}
