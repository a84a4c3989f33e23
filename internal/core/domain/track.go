package domain

import (
	"math"
	"time"
)

// Track represents a recommended track as returned by the recommendation backend.
type Track struct {
	URI      string `json:"uri"` // opaque identifier used for playlist creation
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"album_art,omitempty"`
	URL      string `json:"url,omitempty"` // external link to the track
}

// Preferences are the user toggles attached to a recommendation request.
type Preferences struct {
	IncludeRegional bool `json:"include_regional"`
}

// DefaultPreferences is what the heart-rate path sends; it has no toggle of its own.
func DefaultPreferences() Preferences {
	return Preferences{}
}

// BiometricSample is a single heart-rate reading.
type BiometricSample struct {
	BPM float64   `json:"bpm"`
	At  time.Time `json:"at"`
}

// Validate rejects readings that cannot come from a real sensor.
func (s BiometricSample) Validate() error {
	if math.IsNaN(s.BPM) || s.BPM <= 0 || s.BPM > maxPlausibleBPM {
		return ErrSensorSample
	}
	return nil
}

// maxPlausibleBPM also catches +Inf.
const maxPlausibleBPM = 400

// ActivityReport is the mobile-path backend answer: the server's own
// classification plus the songs it picked for it.
type ActivityReport struct {
	Activity ActivityCategory
	Tracks   []Track
}
