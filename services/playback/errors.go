package playback

import (
	"strings"
)

// PlayerError is the device adapter's report of a playback failure. Codec and
// MimeType describe the failing format when the player knows it; Message and
// Causes carry the error text chain.
type PlayerError struct {
	Message  string   `json:"message"`
	Codec    string   `json:"codec,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Causes   []string `json:"causes,omitempty"`
}

// DeviceCapabilities is what the device reported about its decoders.
type DeviceCapabilities struct {
	HEVCDecode bool `json:"hevcDecode"`
}

var hevcMarkers = []string{"hevc", "h265", "h.265", "hvc1", "hev1"}

// IsHEVCDecodeFailure classifies a player error as an HEVC decode failure on
// a device that cannot decode HEVC. These do not auto-recover; the user gets
// a distinct notice instead of a pointless fallback loop.
func IsHEVCDecodeFailure(err PlayerError, caps DeviceCapabilities) bool {
	if caps.HEVCDecode {
		return false
	}
	if mentionsHEVC(err.Codec) || mentionsHEVC(err.MimeType) || mentionsHEVC(err.Message) {
		return true
	}
	for _, cause := range err.Causes {
		if mentionsHEVC(cause) {
			return true
		}
	}
	return false
}

func mentionsHEVC(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range hevcMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
