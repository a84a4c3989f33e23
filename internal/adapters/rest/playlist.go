package rest

import (
	"net/http"
	"strconv"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const defaultHistoryLimit = 20

type createPlaylistResponse struct {
	URL string `json:"url"`
}

type listPlaylistsResponse struct {
	Playlists []domain.Publication `json:"playlists"`
}

// CreatePlaylist handles POST /playlist. The response redirects to the new
// playlist and carries its URL for clients that do not follow redirects.
func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	loc, err := h.svc.Publisher.Publish(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", loc.URL)
	writeJSON(w, http.StatusSeeOther, createPlaylistResponse{URL: loc.URL})
}

// ListPlaylists handles GET /playlists?limit=.
func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeErrorWithCode(w, http.StatusBadRequest, "limit must be a positive integer", errCodeBadRequest)
			return
		}
		limit = n
	}

	pubs, err := h.svc.Publisher.History(r.Context(), sessionFrom(r).ID(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listPlaylistsResponse{Playlists: pubs})
}
