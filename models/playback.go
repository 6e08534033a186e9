package models

// PlaybackQueueItem is one entry handed to the player. URI is the primary
// candidate; alternates live in the owning queue's FallbackURIs.
type PlaybackQueueItem struct {
	MediaID MediaID     `json:"mediaId"`
	Title   string      `json:"title"`
	Type    ContentType `json:"type"`
	URI     string      `json:"uri"`
}

// PlaybackQueue is an ordered set of playable items plus the per-item fallback
// candidate lists. For every keyed media id the first fallback equals that
// item's primary URI.
type PlaybackQueue struct {
	Items        []PlaybackQueueItem   `json:"items"`
	StartIndex   int                   `json:"startIndex"`
	FallbackURIs map[MediaID][]string  `json:"fallbackUris,omitempty"`
}

// ItemByID returns the queue entry for a media id, or nil when absent.
func (q *PlaybackQueue) ItemByID(id MediaID) *PlaybackQueueItem {
	for i := range q.Items {
		if q.Items[i].MediaID == id {
			return &q.Items[i]
		}
	}
	return nil
}
