package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"telecast/internal/database"
	"telecast/models"
	"telecast/services/xtream"
)

// fakeUpstream serves deterministic listings and counts calls, standing in
// for the Xtream client.
type fakeUpstream struct {
	totals        map[models.Section]int
	listingCalls  int
	infoCalls     int
	epgCalls      int
	invalidations int
}

func (f *fakeUpstream) Categories(ctx context.Context, cfg models.AccountConfig, section models.Section) ([]models.Category, error) {
	return []models.Category{{ID: "10", Name: "Default", Section: section}}, nil
}

func (f *fakeUpstream) StreamsPage(ctx context.Context, cfg models.AccountConfig, section models.Section, offset, limit int) (xtream.StreamsPage, error) {
	f.listingCalls++
	total := f.totals[section]
	if offset >= total {
		return xtream.StreamsPage{Total: total}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	ctype := models.ContentTypeMovie
	ext := "mkv"
	switch section {
	case models.SectionSeries:
		ctype = models.ContentTypeSeries
		ext = ""
	case models.SectionLive:
		ctype = models.ContentTypeLive
		ext = "ts"
	}
	items := make([]models.ContentItem, 0, end-offset)
	for i := offset; i < end; i++ {
		items = append(items, models.ContentItem{
			Type:               ctype,
			ID:                 int64(i + 1),
			StreamID:           int64(i + 1),
			Name:               fmt.Sprintf("%s Item Über %d", section, i+1),
			CategoryID:         "10",
			ContainerExtension: ext,
		})
	}
	return xtream.StreamsPage{Items: items, Total: total}, nil
}

func (f *fakeUpstream) VodInfo(ctx context.Context, cfg models.AccountConfig, movieID int64) (*models.MovieInfo, error) {
	f.infoCalls++
	return &models.MovieInfo{ID: movieID, Name: "Movie"}, nil
}

func (f *fakeUpstream) SeriesInfo(ctx context.Context, cfg models.AccountConfig, seriesID int64) (*models.SeriesInfo, error) {
	f.infoCalls++
	return &models.SeriesInfo{
		ID:   seriesID,
		Name: "Show",
		Episodes: map[int][]models.ContentItem{
			1: {
				{Type: models.ContentTypeSeries, ID: 901, StreamID: 901, Name: "Pilot", ContainerExtension: "mp4", Season: 1, Episode: 1},
				{Type: models.ContentTypeSeries, ID: 902, StreamID: 902, Name: "Second", ContainerExtension: "mp4", Season: 1, Episode: 2},
			},
			2: {
				{Type: models.ContentTypeSeries, ID: 903, StreamID: 903, Name: "Return", ContainerExtension: "mp4", Season: 2, Episode: 1},
			},
		},
	}, nil
}

func (f *fakeUpstream) ShortEPG(ctx context.Context, cfg models.AccountConfig, streamID int64) (*models.NowNext, error) {
	f.epgCalls++
	return &models.NowNext{ChannelID: streamID, Now: &models.EPGEntry{Title: "News"}}, nil
}

func (f *fakeUpstream) InvalidateListings(cfg models.AccountConfig) {
	f.invalidations++
}

func testService(t *testing.T, totals map[models.Section]int) (*Service, *fakeUpstream) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	upstream := &fakeUpstream{totals: totals}
	return NewService(database.NewRepository(db.Connection()), upstream, time.Hour, time.Minute), upstream
}

func indexAccount() models.AccountConfig {
	return models.AccountConfig{BaseURL: "http://x", Username: "u", Password: "p", ListName: "Main"}
}

func TestFetchAndStorePageReportsDone(t *testing.T) {
	svc, _ := testService(t, map[models.Section]int{models.SectionMovies: 7})
	cfg := indexAccount()

	res, err := svc.FetchAndStorePage(context.Background(), cfg, models.SectionMovies, 0, 5)
	if err != nil {
		t.Fatalf("FetchAndStorePage: %v", err)
	}
	if res.ItemsStored != 5 || res.NextCursor != 5 || res.Done {
		t.Fatalf("res = %+v", res)
	}

	res, err = svc.FetchAndStorePage(context.Background(), cfg, models.SectionMovies, res.NextCursor, 5)
	if err != nil {
		t.Fatalf("FetchAndStorePage: %v", err)
	}
	if res.ItemsStored != 2 || !res.Done {
		t.Fatalf("res = %+v", res)
	}

	ckpt, err := svc.SectionSyncCheckpoint(models.SectionMovies, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if ckpt == nil || ckpt.Cursor != 7 {
		t.Fatalf("checkpoint = %+v", ckpt)
	}
}

func TestFetchAndStorePageRejectsNonSyncSections(t *testing.T) {
	svc, _ := testService(t, nil)
	_, err := svc.FetchAndStorePage(context.Background(), indexAccount(), models.SectionFavorites, 0, 5)
	if !errors.Is(err, ErrUnknownSection) {
		t.Fatalf("err = %v, want ErrUnknownSection", err)
	}
}

func TestSyncSearchIndexCompletesAndIsSearchable(t *testing.T) {
	svc, _ := testService(t, map[models.Section]int{
		models.SectionMovies: 12,
		models.SectionSeries: 4,
		models.SectionLive:   3,
	})
	cfg := indexAccount()

	var lastSection models.Section
	err := svc.SyncSearchIndex(context.Background(), cfg, false, nil, func(section models.Section, items, total int) {
		lastSection = section
	})
	if err != nil {
		t.Fatalf("SyncSearchIndex: %v", err)
	}
	if lastSection != models.SectionLive {
		t.Fatalf("last progress section = %s, want LIVE (fixed order)", lastSection)
	}

	full, err := svc.HasFullIndex(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !full {
		t.Fatal("expected a full index after the pass")
	}

	// Normalized search finds the unidecoded name.
	pager := svc.SearchPager(cfg, models.SectionMovies, "uber", 10)
	page, err := pager.Next()
	if err != nil {
		t.Fatalf("SearchPager.Next: %v", err)
	}
	if len(page.Items) == 0 {
		t.Fatal("normalized search found nothing")
	}
}

func TestSyncSearchIndexResumesFromCheckpoint(t *testing.T) {
	svc, upstream := testService(t, map[models.Section]int{
		models.SectionMovies: 6,
		models.SectionSeries: 0,
		models.SectionLive:   0,
	})
	cfg := indexAccount()

	if err := svc.SyncSearchIndex(context.Background(), cfg, false, nil, nil); err != nil {
		t.Fatal(err)
	}
	calls := upstream.listingCalls

	// Completed sections are skipped on the next pass.
	if err := svc.SyncSearchIndex(context.Background(), cfg, false, nil, nil); err != nil {
		t.Fatal(err)
	}
	if upstream.listingCalls != calls {
		t.Fatalf("completed sections were re-fetched: %d -> %d", calls, upstream.listingCalls)
	}

	// force resets checkpoints and invalidates upstream memos.
	if err := svc.SyncSearchIndex(context.Background(), cfg, true, []models.Section{models.SectionMovies}, nil); err != nil {
		t.Fatal(err)
	}
	if upstream.invalidations == 0 {
		t.Fatal("force did not invalidate upstream listings")
	}
	if upstream.listingCalls == calls {
		t.Fatal("force did not re-fetch")
	}
}

func TestPagerWalksSectionInOrder(t *testing.T) {
	svc, _ := testService(t, map[models.Section]int{
		models.SectionMovies: 5,
		models.SectionSeries: 0,
		models.SectionLive:   0,
	})
	cfg := indexAccount()
	if err := svc.SyncSearchIndex(context.Background(), cfg, false, []models.Section{models.SectionMovies}, nil); err != nil {
		t.Fatal(err)
	}

	pager := svc.Pager(cfg, models.SectionMovies, 2)
	var seen []int64
	for {
		page, err := pager.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		for _, item := range page.Items {
			seen = append(seen, item.ID)
		}
		if !page.HasMore {
			break
		}
	}
	if len(seen) != 5 {
		t.Fatalf("seen = %v, want 5 items", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("ids out of order: %v", seen)
		}
	}
}

func TestClearCacheInvalidatesOutstandingPagers(t *testing.T) {
	svc, _ := testService(t, map[models.Section]int{
		models.SectionMovies: 5,
		models.SectionSeries: 0,
		models.SectionLive:   0,
	})
	cfg := indexAccount()
	if err := svc.SyncSearchIndex(context.Background(), cfg, false, []models.Section{models.SectionMovies}, nil); err != nil {
		t.Fatal(err)
	}

	pager := svc.Pager(cfg, models.SectionMovies, 2)
	if _, err := pager.Next(); err != nil {
		t.Fatalf("Next before clear: %v", err)
	}

	svc.ClearCache(cfg)
	if _, err := pager.Next(); !errors.Is(err, ErrPagerStale) {
		t.Fatalf("err = %v, want ErrPagerStale", err)
	}

	// A fresh pager works against the surviving disk rows.
	fresh := svc.Pager(cfg, models.SectionMovies, 2)
	page, err := fresh.Next()
	if err != nil {
		t.Fatalf("fresh Next: %v", err)
	}
	if len(page.Items) == 0 {
		t.Fatal("disk rows gone after in-memory clear")
	}
}

func TestClearCacheIsScopedToOneAccount(t *testing.T) {
	svc, _ := testService(t, map[models.Section]int{
		models.SectionMovies: 3,
		models.SectionSeries: 0,
		models.SectionLive:   0,
	})
	cfgA := indexAccount()
	cfgB := models.AccountConfig{BaseURL: "http://y", Username: "u", Password: "p", ListName: "Other"}
	for _, cfg := range []models.AccountConfig{cfgA, cfgB} {
		if err := svc.SyncSearchIndex(context.Background(), cfg, false, []models.Section{models.SectionMovies}, nil); err != nil {
			t.Fatal(err)
		}
	}

	pagerB := svc.Pager(cfgB, models.SectionMovies, 2)
	svc.ClearCache(cfgA)
	if _, err := pagerB.Next(); err != nil {
		t.Fatalf("clearing account A broke account B's pager: %v", err)
	}
}

func TestMetadataLoadersMemoize(t *testing.T) {
	svc, upstream := testService(t, nil)
	cfg := indexAccount()

	for i := 0; i < 3; i++ {
		if _, err := svc.LoadMovieInfo(context.Background(), cfg, 42); err != nil {
			t.Fatalf("LoadMovieInfo: %v", err)
		}
	}
	if upstream.infoCalls != 1 {
		t.Fatalf("infoCalls = %d, want 1", upstream.infoCalls)
	}

	svc.ClearCache(cfg)
	if _, err := svc.LoadMovieInfo(context.Background(), cfg, 42); err != nil {
		t.Fatal(err)
	}
	if upstream.infoCalls != 2 {
		t.Fatalf("infoCalls = %d after clear, want 2", upstream.infoCalls)
	}
}

func TestSeriesPagerFlattensSeasonsInOrder(t *testing.T) {
	svc, _ := testService(t, nil)
	cfg := indexAccount()

	pager := svc.SeriesPager(cfg, 9, 10)
	page, err := pager.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(page.Items) != 3 || page.Total != 3 {
		t.Fatalf("page = %+v", page)
	}
	if page.Items[0].Name != "Pilot" || page.Items[2].Name != "Return" {
		t.Fatalf("episode order wrong: %+v", page.Items)
	}

	seasonPager := svc.SeriesSeasonPager(cfg, 9, 2, 10)
	page, err = seasonPager.Next(context.Background())
	if err != nil {
		t.Fatalf("season Next: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "Return" {
		t.Fatalf("season page = %+v", page.Items)
	}
}

func TestNormalizeSearchText(t *testing.T) {
	got := NormalizeSearchText("  Der Himmel ÜBER Berlin!  ")
	if got != "der himmel uber berlin!" {
		t.Fatalf("got %q", got)
	}
}
