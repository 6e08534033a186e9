package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)

	s, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Sync.GraceDelayMs != 2000 {
		t.Fatalf("graceDelayMs = %d, want 2000", s.Sync.GraceDelayMs)
	}
	if s.Playback.LiveReconnectMax != 3 || s.Playback.LiveReconnectDelayMs != 3000 {
		t.Fatalf("playback defaults = %+v", s.Playback)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults were not persisted: %v", err)
	}
}

func TestLoadFillsMissingFieldsWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	partial := `{"server": {"host": "0.0.0.0", "port": 9090}, "sync": {"pageSize": 250}}`
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Server.Port != 9090 {
		t.Fatalf("port = %d, explicit value lost", s.Server.Port)
	}
	if s.Sync.PageSize != 250 {
		t.Fatalf("pageSize = %d, explicit value lost", s.Sync.PageSize)
	}
	if s.Sync.RetryAttempts != 3 {
		t.Fatalf("retryAttempts = %d, default not applied", s.Sync.RetryAttempts)
	}
}

func TestLoadMigratesLegacySingleAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	legacy := `{"account": {"baseUrl": "http://old.test", "username": "u", "password": "p", "listName": "Old"}}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Accounts) != 1 {
		t.Fatalf("accounts = %+v, want the migrated one", s.Accounts)
	}
	acct := s.Accounts[0]
	if acct.BaseURL != "http://old.test" || acct.ListName != "Old" || !acct.Enabled {
		t.Fatalf("migrated account = %+v", acct)
	}
}

func TestSaveWritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)
	s, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}

	s.Server.Port = 7070
	if err := m.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var reread Settings
	if err := json.Unmarshal(data, &reread); err != nil {
		t.Fatalf("saved file is not valid JSON: %v", err)
	}
	if reread.Server.Port != 7070 {
		t.Fatalf("port = %d, want 7070", reread.Server.Port)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestAccountByName(t *testing.T) {
	s := Settings{Accounts: []AccountSettings{
		{Name: "main", Enabled: true},
		{Name: "off", Enabled: false},
	}}
	if _, ok := s.AccountByName("main"); !ok {
		t.Fatal("enabled account not found")
	}
	if _, ok := s.AccountByName("off"); ok {
		t.Fatal("disabled account resolved")
	}
	if _, ok := s.AccountByName("ghost"); ok {
		t.Fatal("unknown account resolved")
	}
}
