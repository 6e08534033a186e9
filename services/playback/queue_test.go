package playback

import (
	"testing"

	"telecast/models"
)

func movieItem(id int64, name string) models.ContentItem {
	return models.ContentItem{
		Type:               models.ContentTypeMovie,
		ID:                 id,
		StreamID:           id,
		Name:               name,
		ContainerExtension: "mkv",
	}
}

func TestBuildQueueFiltersSeriesContainerNodes(t *testing.T) {
	containerNode := models.ContentItem{Type: models.ContentTypeSeries, ID: 1, StreamID: 1, Name: "Show"}
	episode := models.ContentItem{Type: models.ContentTypeSeries, ID: 2, StreamID: 2, Name: "S01E01", ContainerExtension: "mp4"}

	queue := BuildQueue([]models.ContentItem{containerNode, episode}, episode, resolverAccount())
	if len(queue.Items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(queue.Items))
	}
	if queue.Items[0].MediaID != episode.MediaID() {
		t.Fatalf("kept %s, want the episode", queue.Items[0].MediaID)
	}
}

func TestBuildQueueAppendsMissingSelection(t *testing.T) {
	items := []models.ContentItem{movieItem(1, "A"), movieItem(2, "B")}
	selected := movieItem(9, "Lone")

	queue := BuildQueue(items, selected, resolverAccount())
	if len(queue.Items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(queue.Items))
	}
	if queue.StartIndex != 2 {
		t.Fatalf("startIndex = %d, want 2", queue.StartIndex)
	}
}

func TestBuildQueueStartIndexDefaultsToZero(t *testing.T) {
	items := []models.ContentItem{movieItem(1, "A"), movieItem(2, "B")}
	// An unplayable selection cannot be appended; the start falls back to 0.
	selected := models.ContentItem{Type: models.ContentTypeSeries, ID: 9, Name: "Node"}

	queue := BuildQueue(items, selected, resolverAccount())
	if queue.StartIndex != 0 {
		t.Fatalf("startIndex = %d, want 0", queue.StartIndex)
	}
}

func TestBuildQueueFirstFallbackEqualsPrimary(t *testing.T) {
	items := []models.ContentItem{movieItem(42, "The Answer")}
	queue := BuildQueue(items, items[0], resolverAccount())

	id := models.MediaID{Type: models.ContentTypeMovie, ID: 42}
	candidates := queue.FallbackURIs[id]
	if len(candidates) == 0 {
		t.Fatal("no fallback candidates recorded")
	}
	if candidates[0] != queue.Items[0].URI {
		t.Fatalf("first candidate %s != primary %s", candidates[0], queue.Items[0].URI)
	}
	if id.String() != "MOVIES:42" {
		t.Fatalf("media id text = %s", id.String())
	}
}

func TestBuildLocalQueueHasNoFallbacks(t *testing.T) {
	queue := BuildLocalQueue([]string{"/media/a.mkv", "/media/b.mkv"}, "/media/b.mkv")
	if len(queue.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(queue.Items))
	}
	if queue.StartIndex != 1 {
		t.Fatalf("startIndex = %d, want 1", queue.StartIndex)
	}
	if len(queue.FallbackURIs) != 0 {
		t.Fatalf("local queue recorded fallbacks: %v", queue.FallbackURIs)
	}
	if queue.Items[0].URI != "file:///media/a.mkv" {
		t.Fatalf("uri = %s", queue.Items[0].URI)
	}
	if queue.Items[0].MediaID.Type != models.ContentTypeLocal {
		t.Fatalf("type = %s", queue.Items[0].MediaID.Type)
	}
}
