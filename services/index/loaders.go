package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"telecast/models"
)

// Metadata loaders sit outside the bulk index: on-demand fetches, individually
// cached with their own TTLs, deduped through singleflight so a burst of
// detail-screen opens costs one upstream call.

func (s *Service) cached(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.loaderCache[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.value, true
}

func (s *Service) store(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaderCache[key] = cacheEntry{value: value, expires: time.Now().Add(ttl)}
}

func (s *Service) loadOnce(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := s.cached(key); ok {
		return v, nil
	}
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if v, ok := s.cached(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.store(key, v, ttl)
		return v, nil
	})
	return v, err
}

// LoadMovieInfo returns the cached or freshly fetched movie detail record.
func (s *Service) LoadMovieInfo(ctx context.Context, cfg models.AccountConfig, movieID int64) (*models.MovieInfo, error) {
	key := fmt.Sprintf("%s|movie|%d", cfg.Key(), movieID)
	v, err := s.loadOnce(ctx, key, s.metadataTTL, func(ctx context.Context) (interface{}, error) {
		return s.upstream.VodInfo(ctx, cfg, movieID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MovieInfo), nil
}

// LoadSeriesInfo returns the cached or freshly fetched series detail record.
func (s *Service) LoadSeriesInfo(ctx context.Context, cfg models.AccountConfig, seriesID int64) (*models.SeriesInfo, error) {
	key := fmt.Sprintf("%s|series|%d", cfg.Key(), seriesID)
	v, err := s.loadOnce(ctx, key, s.metadataTTL, func(ctx context.Context) (interface{}, error) {
		return s.upstream.SeriesInfo(ctx, cfg, seriesID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SeriesInfo), nil
}

// LoadSeriesSeasons lists the seasons of a series.
func (s *Service) LoadSeriesSeasons(ctx context.Context, cfg models.AccountConfig, seriesID int64) ([]models.SeriesSeason, error) {
	info, err := s.LoadSeriesInfo(ctx, cfg, seriesID)
	if err != nil {
		return nil, err
	}
	if len(info.Seasons) > 0 {
		return info.Seasons, nil
	}
	// Some providers omit the seasons block; derive it from episodes.
	var seasons []models.SeriesSeason
	for number, eps := range info.Episodes {
		seasons = append(seasons, models.SeriesSeason{Number: number, EpisodeCount: len(eps)})
	}
	sort.Slice(seasons, func(i, j int) bool { return seasons[i].Number < seasons[j].Number })
	return seasons, nil
}

// LoadSeriesEpisodes lists the playable episodes of one season.
func (s *Service) LoadSeriesEpisodes(ctx context.Context, cfg models.AccountConfig, seriesID int64, season int) ([]models.ContentItem, error) {
	info, err := s.LoadSeriesInfo(ctx, cfg, seriesID)
	if err != nil {
		return nil, err
	}
	return info.Episodes[season], nil
}

func (s *Service) allSeriesEpisodes(ctx context.Context, cfg models.AccountConfig, seriesID int64) ([]models.ContentItem, error) {
	info, err := s.LoadSeriesInfo(ctx, cfg, seriesID)
	if err != nil {
		return nil, err
	}
	seasons := make([]int, 0, len(info.Episodes))
	for number := range info.Episodes {
		seasons = append(seasons, number)
	}
	sort.Ints(seasons)

	var all []models.ContentItem
	for _, number := range seasons {
		all = append(all, info.Episodes[number]...)
	}
	return all, nil
}

// LoadLiveNowNext returns the current and next programme for a live channel.
// EPG moves fast, so this cache is much shorter-lived than movie metadata.
func (s *Service) LoadLiveNowNext(ctx context.Context, cfg models.AccountConfig, streamID int64) (*models.NowNext, error) {
	key := fmt.Sprintf("%s|nownext|%d", cfg.Key(), streamID)
	v, err := s.loadOnce(ctx, key, s.nowNextTTL, func(ctx context.Context) (interface{}, error) {
		return s.upstream.ShortEPG(ctx, cfg, streamID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.NowNext), nil
}

// Categories lists the cached categories of a section.
func (s *Service) Categories(cfg models.AccountConfig, section models.Section) ([]models.Category, error) {
	return s.repo.ListCategories(cfg.Key(), section)
}

// CategoryThumbnail resolves a display thumbnail for a category.
func (s *Service) CategoryThumbnail(cfg models.AccountConfig, section models.Section, categoryID string) (string, error) {
	return s.repo.CategoryThumbnail(cfg.Key(), section, categoryID)
}
