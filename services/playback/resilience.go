package playback

import (
	"fmt"
	"log"
	"sync"
	"time"

	"telecast/models"
)

// Player is the slice of the device's playback engine the controller drives.
// SwapCurrentURI replaces the media source in place, keeping position or the
// live edge; Prepare re-opens the current item for a live reconnect.
type Player interface {
	CurrentIndex() int
	SwapCurrentURI(uri string)
	Prepare()
	Resume()
}

// NoticeSink receives transient user-visible messages.
type NoticeSink interface {
	Notify(msg string)
}

// Controller keeps one playback session moving across transient stream
// failures. Live streams get a capped, delayed reconnect; everything else
// walks the item's fallback candidates. When both are exhausted the user
// keeps manual queue navigation, never a dead session.
type Controller struct {
	player  Player
	notices NoticeSink
	caps    DeviceCapabilities
	queue   models.PlaybackQueue

	reconnectMax   int
	reconnectDelay time.Duration

	mu               sync.Mutex
	reconnects       int
	reconnectTimer   *time.Timer
	fallbackAttempts map[models.MediaID]int
	currentTitle     string
}

func NewController(player Player, notices NoticeSink, caps DeviceCapabilities, queue models.PlaybackQueue, reconnectMax int, reconnectDelay time.Duration) *Controller {
	c := &Controller{
		player:           player,
		notices:          notices,
		caps:             caps,
		queue:            queue,
		reconnectMax:     reconnectMax,
		reconnectDelay:   reconnectDelay,
		fallbackAttempts: make(map[models.MediaID]int),
	}
	if len(queue.Items) > 0 {
		idx := clampIndex(player.CurrentIndex(), len(queue.Items))
		c.currentTitle = queue.Items[idx].Title
	}
	return c
}

// OnPlayerError handles a playback failure for the current item.
func (c *Controller) OnPlayerError(perr PlayerError) {
	item, ok := c.currentItem()
	if !ok {
		return
	}

	// Live streams reconnect before burning fallback candidates.
	if item.Type == models.ContentTypeLive && c.scheduleReconnect() {
		return
	}

	if IsHEVCDecodeFailure(perr, c.caps) {
		c.notify(fmt.Sprintf("%s uses the HEVC codec, which this device cannot decode. Use next/previous to pick another stream.", item.Title))
		return
	}

	c.tryFallback(item)
}

// OnReady marks the stream recovered: for live items the reconnect budget
// refills and any pending reconnect is dropped.
func (c *Controller) OnReady() {
	item, ok := c.currentItem()
	if !ok || item.Type != models.ContentTypeLive {
		return
	}
	c.mu.Lock()
	c.resetReconnectLocked()
	c.mu.Unlock()
}

// OnMediaTransition refreshes session state when the queue advances. Fallback
// attempt counters persist for the queue's lifetime; the reconnect counter
// belongs to the departed channel and resets.
func (c *Controller) OnMediaTransition(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetReconnectLocked()
	if len(c.queue.Items) == 0 {
		return
	}
	clamped := clampIndex(index, len(c.queue.Items))
	if clamped != index {
		log.Printf("[playback] media index %d out of range, clamped to %d", index, clamped)
	}
	c.currentTitle = c.queue.Items[clamped].Title
}

// CurrentTitle is the display title of the item the session believes is
// playing.
func (c *Controller) CurrentTitle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTitle
}

// Close drops any pending reconnect.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetReconnectLocked()
}

func (c *Controller) currentItem() (models.PlaybackQueueItem, bool) {
	if len(c.queue.Items) == 0 {
		return models.PlaybackQueueItem{}, false
	}
	idx := clampIndex(c.player.CurrentIndex(), len(c.queue.Items))
	return c.queue.Items[idx], true
}

// scheduleReconnect books one delayed re-prepare if the cap allows it.
func (c *Controller) scheduleReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconnects >= c.reconnectMax {
		return false
	}
	c.reconnects++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	attempt := c.reconnects
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		log.Printf("[playback] live reconnect attempt %d/%d", attempt, c.reconnectMax)
		c.player.Prepare()
		c.player.Resume()
	})
	return true
}

// tryFallback swaps to the next untried candidate URI, or surfaces a terminal
// notice when the item is out of alternates.
func (c *Controller) tryFallback(item models.PlaybackQueueItem) {
	candidates := c.queue.FallbackURIs[item.MediaID]

	c.mu.Lock()
	next := c.fallbackAttempts[item.MediaID] + 1
	if next >= len(candidates) {
		c.mu.Unlock()
		c.notify(fmt.Sprintf("Playback of %s failed on every available stream. Use next/previous to continue.", item.Title))
		return
	}
	c.fallbackAttempts[item.MediaID] = next
	c.mu.Unlock()

	log.Printf("[playback] %s: switching to fallback stream %d/%d", item.MediaID, next, len(candidates)-1)
	c.player.SwapCurrentURI(candidates[next])
	c.player.Resume()
}

func (c *Controller) resetReconnectLocked() {
	c.reconnects = 0
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Controller) notify(msg string) {
	if c.notices != nil {
		c.notices.Notify(msg)
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
