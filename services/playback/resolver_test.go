package playback

import (
	"reflect"
	"testing"

	"telecast/models"
)

func resolverAccount() models.AccountConfig {
	return models.AccountConfig{
		BaseURL:  "http://example.test:8080/",
		Username: "user",
		Password: "pass",
		ListName: "Main",
	}
}

func TestCandidateURIsLive(t *testing.T) {
	got := CandidateURIs(resolverAccount(), models.ContentTypeLive, 7, "")
	want := []string{
		"http://example.test:8080/live/user/pass/7.ts",
		"http://example.test:8080/live/user/pass/7.m3u8",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCandidateURIsMovieKeepsCatalogExtensionFirst(t *testing.T) {
	got := CandidateURIs(resolverAccount(), models.ContentTypeMovie, 42, "avi")
	want := []string{
		"http://example.test:8080/movie/user/pass/42.avi",
		"http://example.test:8080/movie/user/pass/42.mp4",
		"http://example.test:8080/movie/user/pass/42.mkv",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCandidateURIsMovieDeduplicatesExtension(t *testing.T) {
	got := CandidateURIs(resolverAccount(), models.ContentTypeMovie, 42, "mkv")
	want := []string{
		"http://example.test:8080/movie/user/pass/42.mkv",
		"http://example.test:8080/movie/user/pass/42.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCandidateURIsMovieWithoutExtension(t *testing.T) {
	got := CandidateURIs(resolverAccount(), models.ContentTypeMovie, 42, "")
	want := []string{
		"http://example.test:8080/movie/user/pass/42.mp4",
		"http://example.test:8080/movie/user/pass/42.mkv",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCandidateURIsSeriesEpisode(t *testing.T) {
	got := CandidateURIs(resolverAccount(), models.ContentTypeSeries, 900, ".MKV")
	if got[0] != "http://example.test:8080/series/user/pass/900.mkv" {
		t.Fatalf("primary = %s", got[0])
	}
}

func TestCandidateURIsLocalHasNoCandidates(t *testing.T) {
	if got := CandidateURIs(resolverAccount(), models.ContentTypeLocal, 0, ""); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}
