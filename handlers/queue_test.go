package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"telecast/config"
	"telecast/handlers"
	"telecast/models"
	"telecast/services/playback"
)

func testSettings() config.Settings {
	return config.Settings{
		Accounts: []config.AccountSettings{
			{
				Name:     "main",
				BaseURL:  "http://example.test",
				Username: "user",
				Password: "pass",
				ListName: "Main",
				Enabled:  true,
			},
		},
	}
}

func queueRouter() (*mux.Router, *playback.SessionManager) {
	sessions := playback.NewSessionManager(3, time.Millisecond)
	accounts := handlers.NewAccountResolver(testSettings())
	queueHandler := handlers.NewQueueHandler(sessions, playback.NewLocalLibrary(nil, nil), accounts)
	sessionHandler := handlers.NewSessionHandler(sessions)

	r := mux.NewRouter()
	r.HandleFunc("/api/queue", queueHandler.Build).Methods(http.MethodPost)
	r.HandleFunc("/api/session/{id}/error", sessionHandler.ReportError).Methods(http.MethodPost)
	r.HandleFunc("/api/session/{id}/directives", sessionHandler.Directives).Methods(http.MethodGet)
	return r, sessions
}

func TestBuildQueueEndpointOpensSession(t *testing.T) {
	r, _ := queueRouter()

	body, _ := json.Marshal(map[string]interface{}{
		"items": []models.ContentItem{
			{Type: models.ContentTypeMovie, ID: 42, StreamID: 42, Name: "The Answer", ContainerExtension: "mkv"},
		},
		"selected": models.ContentItem{Type: models.ContentTypeMovie, ID: 42, StreamID: 42, Name: "The Answer", ContainerExtension: "mkv"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/queue", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SessionID string               `json:"sessionId"`
		Queue     models.PlaybackQueue `json:"queue"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("no session id returned")
	}
	if len(resp.Queue.Items) != 1 {
		t.Fatalf("queue = %+v", resp.Queue)
	}
	if resp.Queue.Items[0].URI != "http://example.test/movie/user/pass/42.mkv" {
		t.Fatalf("primary uri = %s", resp.Queue.Items[0].URI)
	}

	// An error on the session produces a swap directive on the next poll.
	errBody, _ := json.Marshal(playback.PlayerError{Message: "source error"})
	req = httptest.NewRequest(http.MethodPost, "/api/session/"+resp.SessionID+"/error", bytes.NewReader(errBody))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("error report status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/session/"+resp.SessionID+"/directives", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var directives struct {
		Directives []playback.Directive `json:"directives"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &directives); err != nil {
		t.Fatalf("decode directives: %v", err)
	}
	if len(directives.Directives) == 0 {
		t.Fatal("no directive after a player error")
	}
	if directives.Directives[0].Action != "swap" {
		t.Fatalf("directive = %+v", directives.Directives[0])
	}
}

func TestBuildQueueRejectsUnplayableOnlyInput(t *testing.T) {
	r, _ := queueRouter()

	// A bare series container node cannot produce a playable queue.
	body, _ := json.Marshal(map[string]interface{}{
		"items":    []models.ContentItem{{Type: models.ContentTypeSeries, ID: 9, Name: "Show"}},
		"selected": models.ContentItem{Type: models.ContentTypeSeries, ID: 9, Name: "Show"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/queue", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestSessionEndpointsReject404ForUnknownSession(t *testing.T) {
	r, _ := queueRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/session/nope/directives", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
