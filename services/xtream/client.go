package xtream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"telecast/models"
)

const maxResponseSize = 64 * 1024 * 1024 // provider listings can run to tens of MB

// Client talks to an Xtream-codes compatible player_api endpoint. Full section
// listings are memoized for a short TTL so the paged sync loop commits in
// checkpointable slices without re-downloading the catalog per page.
type Client struct {
	httpc      *http.Client
	listingTTL time.Duration

	mu       sync.RWMutex
	listings map[string]listingEntry
}

type listingEntry struct {
	items     []models.ContentItem
	fetchedAt time.Time
}

// StreamsPage is one slice of a section listing.
type StreamsPage struct {
	Items []models.ContentItem
	Total int
}

func NewClient(timeout, listingTTL time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if listingTTL <= 0 {
		listingTTL = 10 * time.Minute
	}
	return &Client{
		httpc:      &http.Client{Timeout: timeout},
		listingTTL: listingTTL,
		listings:   make(map[string]listingEntry),
	}
}

func sectionActions(section models.Section) (categories, streams string, err error) {
	switch section {
	case models.SectionLive:
		return "get_live_categories", "get_live_streams", nil
	case models.SectionMovies:
		return "get_vod_categories", "get_vod_streams", nil
	case models.SectionSeries:
		return "get_series_categories", "get_series", nil
	}
	return "", "", fmt.Errorf("section %s has no upstream listing", section)
}

func (c *Client) apiURL(cfg models.AccountConfig, action string, extra url.Values) string {
	params := url.Values{}
	params.Set("username", cfg.Username)
	params.Set("password", cfg.Password)
	params.Set("action", action)
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	return strings.TrimRight(cfg.BaseURL, "/") + "/player_api.php?" + params.Encode()
}

func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("upstream returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read upstream body: %w", err)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}

// Categories fetches the category list for one sync section.
func (c *Client) Categories(ctx context.Context, cfg models.AccountConfig, section models.Section) ([]models.Category, error) {
	action, _, err := sectionActions(section)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID   flexString `json:"category_id"`
		Name string     `json:"category_name"`
	}
	if err := c.get(ctx, c.apiURL(cfg, action, nil), &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	cats := make([]models.Category, 0, len(raw))
	for _, r := range raw {
		if r.ID == "" {
			continue
		}
		cats = append(cats, models.Category{ID: string(r.ID), Name: r.Name, Section: section})
	}
	return cats, nil
}

// StreamsPage returns one slice of the section listing, fetching (or reusing a
// memoized copy of) the full upstream list. Total refers to the whole listing.
func (c *Client) StreamsPage(ctx context.Context, cfg models.AccountConfig, section models.Section, offset, limit int) (StreamsPage, error) {
	items, err := c.sectionListing(ctx, cfg, section)
	if err != nil {
		return StreamsPage{}, err
	}

	total := len(items)
	if offset >= total {
		return StreamsPage{Total: total}, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	page := make([]models.ContentItem, end-offset)
	copy(page, items[offset:end])
	return StreamsPage{Items: page, Total: total}, nil
}

// InvalidateListings drops memoized listings for an account (account switch,
// forced resync).
func (c *Client) InvalidateListings(cfg models.AccountConfig) {
	prefix := cfg.Key() + "|"
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.listings {
		if strings.HasPrefix(key, prefix) {
			delete(c.listings, key)
		}
	}
}

func (c *Client) sectionListing(ctx context.Context, cfg models.AccountConfig, section models.Section) ([]models.ContentItem, error) {
	key := cfg.Key() + "|" + string(section)

	c.mu.RLock()
	entry, ok := c.listings[key]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.listingTTL {
		return entry.items, nil
	}

	_, action, err := sectionActions(section)
	if err != nil {
		return nil, err
	}

	var items []models.ContentItem
	switch section {
	case models.SectionSeries:
		items, err = c.fetchSeriesListing(ctx, cfg, action)
	default:
		items, err = c.fetchStreamListing(ctx, cfg, section, action)
	}
	if err != nil {
		return nil, err
	}

	// Stable order keeps cursor-addressed pages meaningful across calls.
	sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	c.mu.Lock()
	c.listings[key] = listingEntry{items: items, fetchedAt: time.Now()}
	c.mu.Unlock()
	return items, nil
}

func (c *Client) fetchStreamListing(ctx context.Context, cfg models.AccountConfig, section models.Section, action string) ([]models.ContentItem, error) {
	var raw []struct {
		StreamID   flexInt    `json:"stream_id"`
		Name       string     `json:"name"`
		Icon       string     `json:"stream_icon"`
		CategoryID flexString `json:"category_id"`
		Container  string     `json:"container_extension"`
		Added      flexInt    `json:"added"`
	}
	if err := c.get(ctx, c.apiURL(cfg, action, nil), &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	ctype := models.ContentTypeLive
	if section == models.SectionMovies {
		ctype = models.ContentTypeMovie
	}

	items := make([]models.ContentItem, 0, len(raw))
	for _, r := range raw {
		if r.StreamID == 0 {
			continue
		}
		item := models.ContentItem{
			Type:               ctype,
			ID:                 int64(r.StreamID),
			StreamID:           int64(r.StreamID),
			Name:               r.Name,
			CategoryID:         string(r.CategoryID),
			ContainerExtension: r.Container,
			Poster:             r.Icon,
		}
		if ctype == models.ContentTypeLive {
			// Live channels stream as MPEG-TS; the listing carries no extension.
			item.ContainerExtension = "ts"
		}
		if r.Added > 0 {
			item.AddedAt = time.Unix(int64(r.Added), 0).UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) fetchSeriesListing(ctx context.Context, cfg models.AccountConfig, action string) ([]models.ContentItem, error) {
	var raw []struct {
		SeriesID     flexInt    `json:"series_id"`
		Name         string     `json:"name"`
		Cover        string     `json:"cover"`
		CategoryID   flexString `json:"category_id"`
		LastModified flexInt    `json:"last_modified"`
	}
	if err := c.get(ctx, c.apiURL(cfg, action, nil), &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	items := make([]models.ContentItem, 0, len(raw))
	for _, r := range raw {
		if r.SeriesID == 0 {
			continue
		}
		// Container extension stays empty: a series row is a container node,
		// playable only once resolved to a concrete episode.
		item := models.ContentItem{
			Type:       models.ContentTypeSeries,
			ID:         int64(r.SeriesID),
			StreamID:   int64(r.SeriesID),
			Name:       r.Name,
			CategoryID: string(r.CategoryID),
			Poster:     r.Cover,
		}
		if r.LastModified > 0 {
			item.AddedAt = time.Unix(int64(r.LastModified), 0).UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

// VodInfo fetches the detail record for one movie.
func (c *Client) VodInfo(ctx context.Context, cfg models.AccountConfig, movieID int64) (*models.MovieInfo, error) {
	var raw struct {
		Info struct {
			Name         string     `json:"name"`
			Plot         string     `json:"plot"`
			Genre        string     `json:"genre"`
			ReleaseDate  string     `json:"releasedate"`
			Rating       flexFloat  `json:"rating"`
			DurationSecs flexInt    `json:"duration_secs"`
			MovieImage   string     `json:"movie_image"`
			Backdrop     flexImages `json:"backdrop_path"`
		} `json:"info"`
		MovieData struct {
			StreamID  flexInt `json:"stream_id"`
			Container string  `json:"container_extension"`
		} `json:"movie_data"`
	}
	extra := url.Values{"vod_id": []string{strconv.FormatInt(movieID, 10)}}
	if err := c.get(ctx, c.apiURL(cfg, "get_vod_info", extra), &raw); err != nil {
		return nil, fmt.Errorf("get_vod_info %d: %w", movieID, err)
	}

	info := &models.MovieInfo{
		ID:                 movieID,
		Name:               raw.Info.Name,
		Plot:               raw.Info.Plot,
		Genre:              raw.Info.Genre,
		ReleaseDate:        raw.Info.ReleaseDate,
		Rating:             float64(raw.Info.Rating),
		DurationSecs:       int(raw.Info.DurationSecs),
		ContainerExtension: raw.MovieData.Container,
		Poster:             raw.Info.MovieImage,
	}
	if len(raw.Info.Backdrop) > 0 {
		info.Backdrop = raw.Info.Backdrop[0]
	}
	return info, nil
}

// SeriesInfo fetches seasons and episodes for one series container.
func (c *Client) SeriesInfo(ctx context.Context, cfg models.AccountConfig, seriesID int64) (*models.SeriesInfo, error) {
	var raw struct {
		Seasons []struct {
			Number       flexInt `json:"season_number"`
			Name         string  `json:"name"`
			EpisodeCount flexInt `json:"episode_count"`
			Cover        string  `json:"cover"`
		} `json:"seasons"`
		Info struct {
			Name     string     `json:"name"`
			Plot     string     `json:"plot"`
			Genre    string     `json:"genre"`
			Rating   flexFloat  `json:"rating"`
			Cover    string     `json:"cover"`
			Backdrop flexImages `json:"backdrop_path"`
		} `json:"info"`
		Episodes map[string][]struct {
			ID         flexInt `json:"id"`
			EpisodeNum flexInt `json:"episode_num"`
			Title      string  `json:"title"`
			Container  string  `json:"container_extension"`
			Season     flexInt `json:"season"`
			Info       struct {
				MovieImage string `json:"movie_image"`
			} `json:"info"`
		} `json:"episodes"`
	}
	extra := url.Values{"series_id": []string{strconv.FormatInt(seriesID, 10)}}
	if err := c.get(ctx, c.apiURL(cfg, "get_series_info", extra), &raw); err != nil {
		return nil, fmt.Errorf("get_series_info %d: %w", seriesID, err)
	}

	out := &models.SeriesInfo{
		ID:       seriesID,
		Name:     raw.Info.Name,
		Plot:     raw.Info.Plot,
		Genre:    raw.Info.Genre,
		Rating:   float64(raw.Info.Rating),
		Poster:   raw.Info.Cover,
		Episodes: make(map[int][]models.ContentItem),
	}
	if len(raw.Info.Backdrop) > 0 {
		out.Backdrop = raw.Info.Backdrop[0]
	}
	for _, s := range raw.Seasons {
		out.Seasons = append(out.Seasons, models.SeriesSeason{
			Number:       int(s.Number),
			Name:         s.Name,
			EpisodeCount: int(s.EpisodeCount),
			Cover:        s.Cover,
		})
	}
	sort.Slice(out.Seasons, func(i, j int) bool { return out.Seasons[i].Number < out.Seasons[j].Number })

	for seasonKey, eps := range raw.Episodes {
		season, err := strconv.Atoi(seasonKey)
		if err != nil {
			continue
		}
		for _, ep := range eps {
			out.Episodes[season] = append(out.Episodes[season], models.ContentItem{
				Type:               models.ContentTypeSeries,
				ID:                 int64(ep.ID),
				StreamID:           int64(ep.ID),
				Name:               ep.Title,
				ContainerExtension: ep.Container,
				Poster:             ep.Info.MovieImage,
				Season:             season,
				Episode:            int(ep.EpisodeNum),
			})
		}
		sort.Slice(out.Episodes[season], func(i, j int) bool {
			return out.Episodes[season][i].Episode < out.Episodes[season][j].Episode
		})
	}
	return out, nil
}

// ShortEPG fetches the now/next programmes for a live channel. Providers
// base64-encode programme titles.
func (c *Client) ShortEPG(ctx context.Context, cfg models.AccountConfig, streamID int64) (*models.NowNext, error) {
	var raw struct {
		Listings []struct {
			Title          string  `json:"title"`
			StartTimestamp flexInt `json:"start_timestamp"`
			StopTimestamp  flexInt `json:"stop_timestamp"`
		} `json:"epg_listings"`
	}
	extra := url.Values{
		"stream_id": []string{strconv.FormatInt(streamID, 10)},
		"limit":     []string{"2"},
	}
	if err := c.get(ctx, c.apiURL(cfg, "get_short_epg", extra), &raw); err != nil {
		return nil, fmt.Errorf("get_short_epg %d: %w", streamID, err)
	}

	out := &models.NowNext{ChannelID: streamID}
	for i, l := range raw.Listings {
		entry := &models.EPGEntry{
			Title: decodeEPGTitle(l.Title),
			Start: time.Unix(int64(l.StartTimestamp), 0).UTC(),
			Stop:  time.Unix(int64(l.StopTimestamp), 0).UTC(),
		}
		switch i {
		case 0:
			out.Now = entry
		case 1:
			out.Next = entry
		}
	}
	return out, nil
}

func decodeEPGTitle(raw string) string {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return raw
	}
	return strings.TrimSpace(string(decoded))
}
