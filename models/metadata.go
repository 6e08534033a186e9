package models

import "time"

// MovieInfo is the on-demand detail record for a movie, fetched outside the
// bulk index and cached with its own TTL.
type MovieInfo struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Plot               string  `json:"plot,omitempty"`
	Genre              string  `json:"genre,omitempty"`
	ReleaseDate        string  `json:"releaseDate,omitempty"`
	Rating             float64 `json:"rating,omitempty"`
	DurationSecs       int     `json:"durationSecs,omitempty"`
	ContainerExtension string  `json:"containerExtension,omitempty"`
	Poster             string  `json:"poster,omitempty"`
	Backdrop           string  `json:"backdrop,omitempty"`
}

// SeriesSeason summarises one season of a series container.
type SeriesSeason struct {
	Number       int    `json:"number"`
	Name         string `json:"name,omitempty"`
	EpisodeCount int    `json:"episodeCount"`
	Cover        string `json:"cover,omitempty"`
}

// SeriesInfo is the on-demand detail record for a series container node.
type SeriesInfo struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Plot     string         `json:"plot,omitempty"`
	Genre    string         `json:"genre,omitempty"`
	Rating   float64        `json:"rating,omitempty"`
	Poster   string         `json:"poster,omitempty"`
	Backdrop string         `json:"backdrop,omitempty"`
	Seasons  []SeriesSeason `json:"seasons"`
	// Episodes holds every episode keyed by season number. Each episode is a
	// playable ContentItem with a concrete container extension.
	Episodes map[int][]ContentItem `json:"episodes"`
}

// EPGEntry is a single programme on a live channel.
type EPGEntry struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
}

// NowNext is the current and upcoming programme for a live channel.
type NowNext struct {
	ChannelID int64     `json:"channelId"`
	Now       *EPGEntry `json:"now,omitempty"`
	Next      *EPGEntry `json:"next,omitempty"`
}
