package backend

import "github.com/ewilliams-labs/cadence/internal/core/domain"

// loginResponse is the body of GET /login.
type loginResponse struct {
	URL string `json:"url"`
}

// callbackResponse is the optional body of GET /callback.
type callbackResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// wireTrack is a track as the backend serializes it. The mobile endpoint
// omits uri and album_art.
type wireTrack struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"album_art,omitempty"`
	URL      string `json:"url,omitempty"`
}

// recommendationsResponse is the body of GET /recommendations. A pointer
// separates a missing field from an empty list.
type recommendationsResponse struct {
	Recommendations *[]wireTrack `json:"recommendations"`
}

type activityRequest struct {
	HeartRate float64 `json:"heart_rate"`
}

type activityResponse struct {
	Activity string       `json:"activity"`
	Songs    *[]wireTrack `json:"songs"`
}

type createPlaylistRequest struct {
	PlaylistName string   `json:"playlist_name"`
	TrackURIs    []string `json:"track_uris"`
}

type createPlaylistResponse struct {
	URL string `json:"url"`
}

func (wt wireTrack) toDomain() domain.Track {
	return domain.Track{
		URI:      wt.URI,
		Name:     wt.Name,
		Artist:   wt.Artist,
		AlbumArt: wt.AlbumArt,
		URL:      wt.URL,
	}
}

// mapTracks keeps the backend's order and never returns nil.
func mapTracks(in []wireTrack) []domain.Track {
	out := make([]domain.Track, len(in))
	for i, wt := range in {
		out[i] = wt.toDomain()
	}
	return out
}
