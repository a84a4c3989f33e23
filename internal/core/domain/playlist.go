package domain

import (
	"time"
	"unicode"
	"unicode/utf8"
)

// PlaylistLocation is the music service's link to a created playlist.
type PlaylistLocation struct {
	URL string `json:"url"`
}

// Publication records a playlist created for a session.
type Publication struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	TrackCount int       `json:"track_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// PlaylistName derives the playlist title for an activity, e.g. "My Running Playlist".
// Only the first character of the label is upper-cased.
func PlaylistName(activity ActivityCategory) string {
	return "My " + capitalizeFirst(string(activity)) + " Playlist"
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
