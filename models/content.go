package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ContentType distinguishes playable catalog entries. The string values double
// as the type half of a MediaID, so they stay aligned with section names.
type ContentType string

const (
	ContentTypeLive   ContentType = "LIVE"
	ContentTypeMovie  ContentType = "MOVIES"
	ContentTypeSeries ContentType = "SERIES"
	ContentTypeLocal  ContentType = "local"
)

// Section returns the sync section this content type is indexed under.
func (c ContentType) Section() Section {
	switch c {
	case ContentTypeLive:
		return SectionLive
	case ContentTypeMovie:
		return SectionMovies
	case ContentTypeSeries:
		return SectionSeries
	}
	return SectionLocalFiles
}

// MediaID is the structured identity of a queue entry. Keying fallback lists
// by (type, id) instead of the bare numeric id prevents collisions between
// content types whose upstream ids overlap.
type MediaID struct {
	Type ContentType
	ID   int64
	// Path carries the file URI for local entries, which have no numeric id.
	Path string
}

func (m MediaID) String() string {
	if m.Type == ContentTypeLocal {
		return "local:" + m.Path
	}
	return fmt.Sprintf("%s:%d", m.Type, m.ID)
}

// MarshalText lets MediaID act as a JSON map key in the "type:id" form.
func (m MediaID) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MediaID) UnmarshalText(text []byte) error {
	parsed, err := ParseMediaID(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMediaID parses "MOVIES:42" / "local:file:///path" style identifiers.
func ParseMediaID(value string) (MediaID, error) {
	head, rest, ok := strings.Cut(value, ":")
	if !ok {
		return MediaID{}, fmt.Errorf("malformed media id %q", value)
	}
	if ContentType(head) == ContentTypeLocal {
		return MediaID{Type: ContentTypeLocal, Path: rest}, nil
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return MediaID{}, fmt.Errorf("malformed media id %q: %w", value, err)
	}
	switch ContentType(head) {
	case ContentTypeLive, ContentTypeMovie, ContentTypeSeries:
		return MediaID{Type: ContentType(head), ID: id}, nil
	}
	return MediaID{}, fmt.Errorf("unknown media id type %q", head)
}

// ContentItem is a cached catalog entry owned by the index store. Consumers
// reference items but never mutate them.
type ContentItem struct {
	Type       ContentType `json:"type"`
	ID         int64       `json:"id"`
	StreamID   int64       `json:"streamId"`
	Name       string      `json:"name"`
	CategoryID string      `json:"categoryId,omitempty"`
	// ContainerExtension is empty for a series container node; a concrete
	// value marks the item as a directly playable stream or episode.
	ContainerExtension string    `json:"containerExtension,omitempty"`
	Poster             string    `json:"poster,omitempty"`
	Season             int       `json:"season,omitempty"`
	Episode            int       `json:"episode,omitempty"`
	AddedAt            time.Time `json:"addedAt,omitempty"`
}

// MediaID returns the structured identity for this item.
func (c ContentItem) MediaID() MediaID {
	return MediaID{Type: c.Type, ID: c.ID}
}

// Playable reports whether the item can be handed to the player as-is. Series
// container nodes only become playable once resolved to a concrete episode.
func (c ContentItem) Playable() bool {
	if c.Type == ContentTypeSeries {
		return c.ContainerExtension != ""
	}
	return true
}

// Category is a catalog grouping within one section.
type Category struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Section   Section `json:"section"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

// ContentPage is one window of a paged section read.
type ContentPage struct {
	Items      []ContentItem `json:"items"`
	NextOffset int           `json:"nextOffset"`
	Total      int           `json:"total"`
	HasMore    bool          `json:"hasMore"`
}
