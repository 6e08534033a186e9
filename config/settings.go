package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"telecast/models"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings    `json:"server"`
	Accounts []AccountSettings `json:"accounts"`
	Sync     SyncSettings      `json:"sync"`
	Playback PlaybackSettings  `json:"playback"`
	Cache    CacheSettings     `json:"cache"`
	Database DatabaseSettings  `json:"database"`
	Local    LocalSettings     `json:"local"`
	Log      LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// AccountSettings is a named upstream provider account. Name is what clients
// reference; the rest maps onto models.AccountConfig.
type AccountSettings struct {
	Name     string `json:"name"`
	BaseURL  string `json:"baseUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
	ListName string `json:"listName"`
	Enabled  bool   `json:"enabled"`
}

// Config converts the stored account to the runtime config value.
func (a AccountSettings) Config() models.AccountConfig {
	return models.AccountConfig{
		BaseURL:  a.BaseURL,
		Username: a.Username,
		Password: a.Password,
		ListName: a.ListName,
	}
}

// SyncSettings tunes the progressive indexing engine.
type SyncSettings struct {
	PageSize           int `json:"pageSize"`          // items committed per checkpoint advance
	FastStartPageSize  int `json:"fastStartPageSize"` // minimal slice indexed per section during fast start
	GraceDelayMs       int `json:"graceDelayMs"`      // delay between fast-start completion and background full sync
	RetryAttempts      int `json:"retryAttempts"`     // bounded retries per page fetch
	RetryDelayMs       int `json:"retryDelayMs"`
	UpstreamTimeoutSec int `json:"upstreamTimeoutSec"`
}

// PlaybackSettings tunes runtime stream recovery.
type PlaybackSettings struct {
	LiveReconnectMax     int `json:"liveReconnectMax"`     // bounded auto-reconnect attempts per live session
	LiveReconnectDelayMs int `json:"liveReconnectDelayMs"` // fixed delay before a scheduled reconnect
}

type CacheSettings struct {
	Directory         string `json:"directory"`
	MetadataTTLHours  int    `json:"metadataTtlHours"`
	NowNextTTLMinutes int    `json:"nowNextTtlMinutes"`
	ListingTTLMinutes int    `json:"listingTtlMinutes"` // upstream section listing memo used for paged commits
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

// LocalSettings lists directories scanned for local media files.
type LocalSettings struct {
	MediaDirs []string `json:"mediaDirs"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 7788},
		Accounts: []AccountSettings{},
		Sync: SyncSettings{
			PageSize:           500,
			FastStartPageSize:  100,
			GraceDelayMs:       2000,
			RetryAttempts:      3,
			RetryDelayMs:       500,
			UpstreamTimeoutSec: 30,
		},
		Playback: PlaybackSettings{
			LiveReconnectMax:     3,
			LiveReconnectDelayMs: 3000,
		},
		Cache: CacheSettings{
			Directory:         "cache",
			MetadataTTLHours:  24,
			NowNextTTLMinutes: 5,
			ListingTTLMinutes: 10,
		},
		Database: DatabaseSettings{Path: "cache/index.db"},
		Local:    LocalSettings{MediaDirs: []string{}},
		Log: LogConfig{
			File:       "cache/logs/backend.log",
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures the parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	// Decode into a raw map first so older single-account configs migrate.
	var raw map[string]interface{}
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return Settings{}, err
	}
	if accountRaw, ok := raw["account"].(map[string]interface{}); ok {
		if _, hasName := accountRaw["name"]; !hasName {
			accountRaw["name"] = "Primary"
		}
		if _, hasEnabled := accountRaw["enabled"]; !hasEnabled {
			accountRaw["enabled"] = true
		}
		raw["accounts"] = []interface{}{accountRaw}
		delete(raw, "account")
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return Settings{}, err
	}
	s := DefaultSettings()
	if err := json.Unmarshal(buf, &s); err != nil {
		return Settings{}, err
	}
	applyDefaults(&s)
	return s, nil
}

func applyDefaults(s *Settings) {
	d := DefaultSettings()
	if s.Sync.PageSize <= 0 {
		s.Sync.PageSize = d.Sync.PageSize
	}
	if s.Sync.FastStartPageSize <= 0 {
		s.Sync.FastStartPageSize = d.Sync.FastStartPageSize
	}
	if s.Sync.GraceDelayMs <= 0 {
		s.Sync.GraceDelayMs = d.Sync.GraceDelayMs
	}
	if s.Sync.RetryAttempts <= 0 {
		s.Sync.RetryAttempts = d.Sync.RetryAttempts
	}
	if s.Sync.RetryDelayMs <= 0 {
		s.Sync.RetryDelayMs = d.Sync.RetryDelayMs
	}
	if s.Sync.UpstreamTimeoutSec <= 0 {
		s.Sync.UpstreamTimeoutSec = d.Sync.UpstreamTimeoutSec
	}
	if s.Playback.LiveReconnectMax <= 0 {
		s.Playback.LiveReconnectMax = d.Playback.LiveReconnectMax
	}
	if s.Playback.LiveReconnectDelayMs <= 0 {
		s.Playback.LiveReconnectDelayMs = d.Playback.LiveReconnectDelayMs
	}
	if strings.TrimSpace(s.Cache.Directory) == "" {
		s.Cache.Directory = d.Cache.Directory
	}
	if s.Cache.MetadataTTLHours <= 0 {
		s.Cache.MetadataTTLHours = d.Cache.MetadataTTLHours
	}
	if s.Cache.NowNextTTLMinutes <= 0 {
		s.Cache.NowNextTTLMinutes = d.Cache.NowNextTTLMinutes
	}
	if s.Cache.ListingTTLMinutes <= 0 {
		s.Cache.ListingTTLMinutes = d.Cache.ListingTTLMinutes
	}
	if strings.TrimSpace(s.Database.Path) == "" {
		s.Database.Path = d.Database.Path
	}
}

// AccountByName resolves a configured, enabled account by its display name.
func (s Settings) AccountByName(name string) (AccountSettings, bool) {
	for _, a := range s.Accounts {
		if strings.EqualFold(a.Name, name) && a.Enabled {
			return a, true
		}
	}
	return AccountSettings{}, false
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
