package playback

import (
	"telecast/models"
)

// BuildQueue turns a browsed item list plus the user's selection into a
// playback queue. Unplayable series container nodes are dropped; the selected
// item is guaranteed a slot even when the caller only provided it.
func BuildQueue(items []models.ContentItem, selected models.ContentItem, cfg models.AccountConfig) models.PlaybackQueue {
	playable := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if item.Playable() {
			playable = append(playable, item)
		}
	}

	found := false
	for _, item := range playable {
		if item.ID == selected.ID && item.Type == selected.Type {
			found = true
			break
		}
	}
	if !found && selected.Playable() {
		playable = append(playable, selected)
	}

	queue := models.PlaybackQueue{
		Items:        make([]models.PlaybackQueueItem, 0, len(playable)),
		FallbackURIs: make(map[models.MediaID][]string, len(playable)),
	}
	for _, item := range playable {
		candidates := CandidateURIs(cfg, item.Type, item.StreamID, item.ContainerExtension)
		if len(candidates) == 0 {
			continue
		}
		id := item.MediaID()
		queue.Items = append(queue.Items, models.PlaybackQueueItem{
			MediaID: id,
			Title:   item.Name,
			Type:    item.Type,
			URI:     candidates[0],
		})
		queue.FallbackURIs[id] = candidates
		if item.ID == selected.ID && item.Type == selected.Type {
			// StartIndex stays 0 if the selection somehow got filtered out.
			queue.StartIndex = len(queue.Items) - 1
		}
	}
	return queue
}
