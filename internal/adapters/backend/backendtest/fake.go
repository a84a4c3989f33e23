// Package backendtest provides an in-process recommendation backend for tests.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Track is a track as the fake backend serves it.
type Track struct {
	URI      string `json:"uri,omitempty"`
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"album_art,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Request is one request the fake received.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
	Header http.Header
}

// FakeServer mimics the recommendation backend. Codes are single use, and
// protected endpoints answer 401 until a code has been exchanged.
type FakeServer struct {
	*httptest.Server

	mu          sync.Mutex
	authorizeAt string
	token       string
	cookieName  string
	codes       map[string]bool // code -> consumed
	tracks      []Track
	activity    string
	songs       []Track
	playlistURL string
	failures    map[string]int
	requests    []Request
	loggedIn    bool
}

// NewFakeServer starts a fake backend that is shut down with the test.
// Exchanged codes yield a session cookie; use WithToken to hand out a bearer token instead.
func NewFakeServer(t testing.TB) *FakeServer {
	t.Helper()
	f := &FakeServer{
		authorizeAt: "https://accounts.example.com/authorize?client_id=cadence",
		cookieName:  "session",
		codes:       map[string]bool{},
		activity:    "running",
		playlistURL: "https://open.example.com/playlist/37i9dQZF1DX",
		failures:    map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Get("/login", f.handleLogin)
	r.Get("/callback", f.handleCallback)
	r.Group(func(r chi.Router) {
		r.Use(f.requireLogin)
		r.Get("/recommendations", f.handleRecommendations)
		r.Post("/activity", f.handleActivity)
		r.Post("/create_playlist", f.handleCreatePlaylist)
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

// AddCode registers an authorization code the callback will accept once.
func (f *FakeServer) AddCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = false
}

// WithToken makes the callback return a bearer token in its body.
func (f *FakeServer) WithToken(token string) *FakeServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	return f
}

// SetTracks sets what GET /recommendations returns.
func (f *FakeServer) SetTracks(tracks ...Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = tracks
}

// SetActivityReport sets what POST /activity returns.
func (f *FakeServer) SetActivityReport(activity string, songs ...Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity = activity
	f.songs = songs
}

// SetPlaylistURL sets what POST /create_playlist returns.
func (f *FakeServer) SetPlaylistURL(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlistURL = u
}

// Fail makes every request to path answer with status until cleared with 0.
func (f *FakeServer) Fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, path)
		return
	}
	f.failures[path] = status
}

// Requests returns the requests received so far.
func (f *FakeServer) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// RequestsTo returns the requests received for path.
func (f *FakeServer) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range f.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  map[string]string{},
			Header: r.Header.Clone(),
		}
		for k := range r.URL.Query() {
			rec.Query[k] = r.URL.Query().Get(k)
		}
		if r.Body != nil && r.ContentLength != 0 {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				rec.Body = body
			}
		}

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		status := f.failures[r.URL.Path]
		f.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeServer) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeServer) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loggedIn {
		return false
	}
	if f.token != "" {
		return r.Header.Get("Authorization") == "Bearer "+f.token
	}
	ck, err := r.Cookie(f.cookieName)
	return err == nil && ck.Value == sessionValue
}

const sessionValue = "fake-session"

func (f *FakeServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	u := f.authorizeAt
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (f *FakeServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	f.mu.Lock()
	consumed, known := f.codes[code]
	if !known || consumed {
		f.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	f.codes[code] = true
	f.loggedIn = true
	token := f.token
	f.mu.Unlock()

	if token != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: f.cookieName, Value: sessionValue, Path: "/", HttpOnly: true})
	w.WriteHeader(http.StatusOK)
}

func (f *FakeServer) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if _, err := strconv.ParseBool(r.URL.Query().Get("include_bollywood")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "include_bollywood must be a boolean"})
		return
	}
	if strings.TrimSpace(r.URL.Query().Get("activity")) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "activity is required"})
		return
	}
	f.mu.Lock()
	tracks := append([]Track{}, f.tracks...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": tracks})
}

func (f *FakeServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	activity := f.activity
	songs := append([]Track{}, f.songs...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity, "songs": songs})
}

func (f *FakeServer) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	u := f.playlistURL
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
