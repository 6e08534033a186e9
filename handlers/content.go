package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"telecast/models"
	"telecast/services/index"
	"telecast/utils/rank"

	"github.com/gorilla/mux"
)

const defaultPageLimit = 50

// ContentHandler serves paged catalog reads and on-demand metadata out of the
// content index store. Reads work against a partial index; completeness is
// the sync coordinator's concern, not the reader's.
type ContentHandler struct {
	Index    *index.Service
	Accounts *AccountResolver
}

func NewContentHandler(svc *index.Service, accounts *AccountResolver) *ContentHandler {
	return &ContentHandler{Index: svc, Accounts: accounts}
}

// Section serves one window of a section listing, optionally filtered by
// category and/or search query.
func (h *ContentHandler) Section(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Accounts.Resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	section, err := models.ParseSection(mux.Vars(r)["section"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	offset := intParam(q.Get("offset"), 0)
	limit := intParam(q.Get("limit"), defaultPageLimit)
	search := q.Get("q")
	category := q.Get("category")

	var pager *index.Pager
	switch {
	case category != "" && search != "":
		pager = h.Index.CategorySearchPager(cfg, section, category, search, limit)
	case category != "":
		pager = h.Index.CategoryPager(cfg, section, category, limit)
	case search != "":
		pager = h.Index.SearchPager(cfg, section, search, limit)
	default:
		pager = h.Index.Pager(cfg, section, limit)
	}
	pager.Seek(offset)

	page, err := pager.Next()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, index.ErrPagerStale) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	if search != "" {
		rank.ByRelevance(page.Items, search)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// Categories lists the cached categories of a section.
func (h *ContentHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Accounts.Resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	section, err := models.ParseSection(mux.Vars(r)["section"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cats, err := h.Index.Categories(cfg, section)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cats)
}

// CategoryThumbnail resolves a representative thumbnail for a category, so
// the shelf UI can decorate category tiles without loading the full listing.
func (h *ContentHandler) CategoryThumbnail(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Accounts.Resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	section, err := models.ParseSection(mux.Vars(r)["section"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	thumb, err := h.Index.CategoryThumbnail(cfg, section, mux.Vars(r)["category"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"thumbnail": thumb})
}

// MovieInfo serves the on-demand movie detail record.
func (h *ContentHandler) MovieInfo(w http.ResponseWriter, r *http.Request) {
	cfg, id, ok := h.accountAndID(w, r)
	if !ok {
		return
	}
	info, err := h.Index.LoadMovieInfo(r.Context(), cfg, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

// SeriesSeasons lists the seasons of a series container.
func (h *ContentHandler) SeriesSeasons(w http.ResponseWriter, r *http.Request) {
	cfg, id, ok := h.accountAndID(w, r)
	if !ok {
		return
	}
	seasons, err := h.Index.LoadSeriesSeasons(r.Context(), cfg, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(seasons)
}

// SeriesEpisodes serves one window of a series' episodes, optionally scoped
// to a single season.
func (h *ContentHandler) SeriesEpisodes(w http.ResponseWriter, r *http.Request) {
	cfg, id, ok := h.accountAndID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	offset := intParam(q.Get("offset"), 0)
	limit := intParam(q.Get("limit"), defaultPageLimit)

	var pager *index.SeriesPager
	if season := q.Get("season"); season != "" {
		pager = h.Index.SeriesSeasonPager(cfg, id, intParam(season, 0), limit)
	} else {
		pager = h.Index.SeriesPager(cfg, id, limit)
	}
	pager.Seek(offset)

	page, err := pager.Next(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// NowNext serves the current and next programme for a live channel.
func (h *ContentHandler) NowNext(w http.ResponseWriter, r *http.Request) {
	cfg, id, ok := h.accountAndID(w, r)
	if !ok {
		return
	}
	nn, err := h.Index.LoadLiveNowNext(r.Context(), cfg, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nn)
}

// ClearCache drops the account's in-memory caches; with ?disk=true it also
// deletes the persisted index (account switch / sign-out).
func (h *ContentHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Accounts.Resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("disk") == "true" {
		if err := h.Index.ClearDiskCache(cfg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		h.Index.ClearCache(cfg)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContentHandler) accountAndID(w http.ResponseWriter, r *http.Request) (models.AccountConfig, int64, bool) {
	cfg, err := h.Accounts.Resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return models.AccountConfig{}, 0, false
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return models.AccountConfig{}, 0, false
	}
	return cfg, id, true
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
