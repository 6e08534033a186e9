package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"telecast/api"
	"telecast/config"
	"telecast/handlers"
	"telecast/internal/database"
	"telecast/services/index"
	"telecast/services/playback"
	syncsvc "telecast/services/sync"
	"telecast/services/xtream"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("telecast backend starting...")

	configPath := os.Getenv("TELECAST_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if err := os.MkdirAll(settings.Cache.Directory, 0755); err != nil {
		log.Fatalf("failed to create cache directory: %v", err)
	}

	db, err := database.Open(settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open content index database: %v", err)
	}
	defer db.Close()
	repo := database.NewRepository(db.Connection())

	upstream := xtream.NewClient(
		time.Duration(settings.Sync.UpstreamTimeoutSec)*time.Second,
		time.Duration(settings.Cache.ListingTTLMinutes)*time.Minute,
	)
	indexSvc := index.NewService(repo, upstream,
		time.Duration(settings.Cache.MetadataTTLHours)*time.Hour,
		time.Duration(settings.Cache.NowNextTTLMinutes)*time.Minute,
	)

	stateStore, err := syncsvc.NewStateStore(settings.Cache.Directory)
	if err != nil {
		log.Fatalf("failed to open sync state store: %v", err)
	}
	syncManager := syncsvc.NewManager(indexSvc, stateStore, settings.Sync, nil)

	sessions := playback.NewSessionManager(
		settings.Playback.LiveReconnectMax,
		time.Duration(settings.Playback.LiveReconnectDelayMs)*time.Millisecond,
	)
	local := playback.NewLocalLibrary(afero.NewOsFs(), settings.Local.MediaDirs)

	accounts := handlers.NewAccountResolver(settings)
	syncHandler := handlers.NewSyncHandler(syncManager, accounts)
	contentHandler := handlers.NewContentHandler(indexSvc, accounts)
	queueHandler := handlers.NewQueueHandler(sessions, local, accounts)
	sessionHandler := handlers.NewSessionHandler(sessions)
	settingsHandler := handlers.NewSettingsHandler(cfgManager)

	r := mux.NewRouter()
	api.Register(r, syncHandler, contentHandler, queueHandler, sessionHandler, settingsHandler)

	// Resume background sync for accounts that were mid-index at shutdown.
	for _, acct := range settings.Accounts {
		if !acct.Enabled {
			continue
		}
		coordinator := syncManager.ForAccount(acct.Config())
		state := coordinator.State()
		if state.FastStartReady && !state.FullIndexComplete {
			go func() {
				if err := coordinator.StartBackgroundFullSync(context.Background()); err != nil {
					log.Printf("[main] resume background sync: %v", err)
				}
			}()
		}
	}

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Park sync so the last checkpoint lands before the process exits.
	for _, acct := range settings.Accounts {
		if acct.Enabled {
			syncManager.ForAccount(acct.Config()).PauseBackgroundSync()
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
