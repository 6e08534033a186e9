package models

import (
	"fmt"
	"strings"
)

// Section is a catalog partition shown by the client. Only the sync targets
// carry indexed upstream content; the rest are views over cached data.
type Section string

const (
	SectionAll              Section = "ALL"
	SectionContinueWatching Section = "CONTINUE_WATCHING"
	SectionFavorites        Section = "FAVORITES"
	SectionMovies           Section = "MOVIES"
	SectionSeries           Section = "SERIES"
	SectionLive             Section = "LIVE"
	SectionCategories       Section = "CATEGORIES"
	SectionLocalFiles       Section = "LOCAL_FILES"
	SectionSettings         Section = "SETTINGS"
)

// SyncTargetSections is the fixed order background indexing walks sections in.
var SyncTargetSections = []Section{SectionMovies, SectionSeries, SectionLive}

// IsSyncTarget reports whether the section holds indexed upstream content.
func (s Section) IsSyncTarget() bool {
	switch s {
	case SectionMovies, SectionSeries, SectionLive:
		return true
	}
	return false
}

// ParseSection converts a route or query value into a Section.
func ParseSection(value string) (Section, error) {
	s := Section(strings.ToUpper(strings.TrimSpace(value)))
	switch s {
	case SectionAll, SectionContinueWatching, SectionFavorites, SectionMovies,
		SectionSeries, SectionLive, SectionCategories, SectionLocalFiles, SectionSettings:
		return s, nil
	}
	return "", fmt.Errorf("unknown section %q", value)
}
