package api

import (
	"net/http"

	"telecast/handlers"

	"github.com/gorilla/mux"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	syncHandler *handlers.SyncHandler,
	contentHandler *handlers.ContentHandler,
	queueHandler *handlers.QueueHandler,
	sessionHandler *handlers.SessionHandler,
	settingsHandler *handlers.SettingsHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Progressive sync
	api.HandleFunc("/sync/fast-start", syncHandler.FastStart).Methods(http.MethodPost)
	api.HandleFunc("/sync/full", syncHandler.Full).Methods(http.MethodPost)
	api.HandleFunc("/sync/pause", syncHandler.Pause).Methods(http.MethodPost)
	api.HandleFunc("/sync/resume", syncHandler.Resume).Methods(http.MethodPost)
	api.HandleFunc("/sync/boost/{section}", syncHandler.Boost).Methods(http.MethodPost)
	api.HandleFunc("/sync/status", syncHandler.Status).Methods(http.MethodGet)

	// Playback activity events feed the coordinator's implicit pause
	api.HandleFunc("/playback/started", syncHandler.PlaybackStarted).Methods(http.MethodPost)
	api.HandleFunc("/playback/stopped", syncHandler.PlaybackStopped).Methods(http.MethodPost)

	// Catalog reads (work against a partial index)
	api.HandleFunc("/content/movie/{id}/info", contentHandler.MovieInfo).Methods(http.MethodGet)
	api.HandleFunc("/content/series/{id}/seasons", contentHandler.SeriesSeasons).Methods(http.MethodGet)
	api.HandleFunc("/content/series/{id}/episodes", contentHandler.SeriesEpisodes).Methods(http.MethodGet)
	api.HandleFunc("/content/live/{id}/now-next", contentHandler.NowNext).Methods(http.MethodGet)
	api.HandleFunc("/content/{section}/categories", contentHandler.Categories).Methods(http.MethodGet)
	api.HandleFunc("/content/{section}/categories/{category}/thumbnail", contentHandler.CategoryThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/content/{section}", contentHandler.Section).Methods(http.MethodGet)

	// Playback queues and sessions
	api.HandleFunc("/queue", queueHandler.Build).Methods(http.MethodPost)
	api.HandleFunc("/queue/local", queueHandler.BuildLocal).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}/error", sessionHandler.ReportError).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}/state", sessionHandler.ReportState).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}/directives", sessionHandler.Directives).Methods(http.MethodGet)
	api.HandleFunc("/session/{id}", sessionHandler.Close).Methods(http.MethodDelete)

	// Cache management
	api.HandleFunc("/cache/clear", contentHandler.ClearCache).Methods(http.MethodPost)

	// Settings
	api.HandleFunc("/settings", settingsHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/settings", settingsHandler.Update).Methods(http.MethodPut)

	api.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
}
