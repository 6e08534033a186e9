package index

import (
	"context"
	"fmt"

	"telecast/internal/database"
	"telecast/models"
)

const defaultPageLimit = 50

// Pager is a cursor reader over cached section content. It is account- and
// epoch-scoped: after ClearCache the pager fails with ErrPagerStale instead of
// silently serving another account's rows. Pages reflect whatever has been
// committed so far; results grow as sync progresses.
type Pager struct {
	svc        *Service
	accountKey string
	epoch      int
	query      database.ItemQuery
	offset     int
	limit      int
}

// Next returns the next committed page.
func (p *Pager) Next() (models.ContentPage, error) {
	if p.svc.currentEpoch(p.accountKey) != p.epoch {
		return models.ContentPage{}, ErrPagerStale
	}

	p.query.Offset = p.offset
	p.query.Limit = p.limit
	items, total, err := p.svc.repo.QueryItems(p.accountKey, p.query)
	if err != nil {
		return models.ContentPage{}, fmt.Errorf("read page: %w", err)
	}

	p.offset += len(items)
	return models.ContentPage{
		Items:      items,
		NextOffset: p.offset,
		Total:      total,
		HasMore:    p.offset < total,
	}, nil
}

// Seek positions the pager at an absolute offset.
func (p *Pager) Seek(offset int) {
	if offset < 0 {
		offset = 0
	}
	p.offset = offset
}

func (s *Service) newPager(cfg models.AccountConfig, query database.ItemQuery, limit int) *Pager {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	key := cfg.Key()
	return &Pager{
		svc:        s,
		accountKey: key,
		epoch:      s.currentEpoch(key),
		query:      query,
		limit:      limit,
	}
}

// Pager reads a whole section in committed order.
func (s *Service) Pager(cfg models.AccountConfig, section models.Section, limit int) *Pager {
	return s.newPager(cfg, database.ItemQuery{Section: section}, limit)
}

// SearchPager reads a section filtered by a free-text query. SectionAll
// searches across every sync target.
func (s *Service) SearchPager(cfg models.AccountConfig, section models.Section, query string, limit int) *Pager {
	return s.newPager(cfg, database.ItemQuery{
		Section:     section,
		SearchTerms: SearchTerms(query),
	}, limit)
}

// CategoryPager reads one category of a section.
func (s *Service) CategoryPager(cfg models.AccountConfig, section models.Section, categoryID string, limit int) *Pager {
	return s.newPager(cfg, database.ItemQuery{
		Section:    section,
		CategoryID: categoryID,
	}, limit)
}

// CategorySearchPager reads one category filtered by a free-text query.
func (s *Service) CategorySearchPager(cfg models.AccountConfig, section models.Section, categoryID, query string, limit int) *Pager {
	return s.newPager(cfg, database.ItemQuery{
		Section:     section,
		CategoryID:  categoryID,
		SearchTerms: SearchTerms(query),
	}, limit)
}

// SeriesPager pages every episode of a series across seasons, in season then
// episode order. Episodes come from the on-demand series loader, not the bulk
// index.
type SeriesPager struct {
	svc      *Service
	cfg      models.AccountConfig
	seriesID int64
	season   int // 0 = all seasons
	offset   int
	limit    int
}

func (s *Service) SeriesPager(cfg models.AccountConfig, seriesID int64, limit int) *SeriesPager {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return &SeriesPager{svc: s, cfg: cfg, seriesID: seriesID, limit: limit}
}

// SeriesSeasonPager pages the episodes of a single season.
func (s *Service) SeriesSeasonPager(cfg models.AccountConfig, seriesID int64, season, limit int) *SeriesPager {
	p := s.SeriesPager(cfg, seriesID, limit)
	p.season = season
	return p
}

// Seek positions the pager at an absolute episode offset.
func (p *SeriesPager) Seek(offset int) {
	if offset < 0 {
		offset = 0
	}
	p.offset = offset
}

// Next returns the next page of episodes.
func (p *SeriesPager) Next(ctx context.Context) (models.ContentPage, error) {
	var episodes []models.ContentItem
	var err error
	if p.season > 0 {
		episodes, err = p.svc.LoadSeriesEpisodes(ctx, p.cfg, p.seriesID, p.season)
	} else {
		episodes, err = p.svc.allSeriesEpisodes(ctx, p.cfg, p.seriesID)
	}
	if err != nil {
		return models.ContentPage{}, err
	}

	total := len(episodes)
	if p.offset >= total {
		return models.ContentPage{NextOffset: p.offset, Total: total}, nil
	}
	end := p.offset + p.limit
	if end > total {
		end = total
	}
	page := episodes[p.offset:end]
	p.offset = end
	return models.ContentPage{
		Items:      page,
		NextOffset: p.offset,
		Total:      total,
		HasMore:    p.offset < total,
	}, nil
}
