package playback

import (
	"fmt"
	"strings"

	"telecast/models"
)

// movieAltExtensions are tried after the catalog extension when a VOD stream
// turns out to be unplayable under its advertised container.
var movieAltExtensions = []string{"mp4", "mkv"}

// CandidateURIs resolves the ordered playable URLs for a stream. Pure function
// of its inputs: the first entry is the primary URI, the rest are fallbacks in
// retry order.
func CandidateURIs(cfg models.AccountConfig, contentType models.ContentType, streamID int64, containerExtension string) []string {
	base := strings.TrimRight(cfg.BaseURL, "/")

	switch contentType {
	case models.ContentTypeLive:
		// Raw MPEG-TS first; HLS works on more finicky upstreams.
		return []string{
			fmt.Sprintf("%s/live/%s/%s/%d.ts", base, cfg.Username, cfg.Password, streamID),
			fmt.Sprintf("%s/live/%s/%s/%d.m3u8", base, cfg.Username, cfg.Password, streamID),
		}
	case models.ContentTypeMovie:
		return extensionCandidates(base, "movie", cfg, streamID, containerExtension)
	case models.ContentTypeSeries:
		return extensionCandidates(base, "series", cfg, streamID, containerExtension)
	}
	return nil
}

func extensionCandidates(base, path string, cfg models.AccountConfig, streamID int64, ext string) []string {
	exts := make([]string, 0, 1+len(movieAltExtensions))
	if ext != "" {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	for _, alt := range movieAltExtensions {
		exts = appendUnique(exts, alt)
	}

	uris := make([]string, 0, len(exts))
	for _, e := range exts {
		uris = append(uris, fmt.Sprintf("%s/%s/%s/%s/%d.%s", base, path, cfg.Username, cfg.Password, streamID, e))
	}
	return uris
}

func appendUnique(exts []string, ext string) []string {
	for _, e := range exts {
		if e == ext {
			return exts
		}
	}
	return append(exts, ext)
}
