package domain

import (
	"errors"
	"sync"
)

// Session holds the state of one user session: the current selection, the
// latest recommendation set and the auth marker. It is mutated only through
// the transition methods below; each transition is atomic.
type Session struct {
	mu sync.Mutex

	id              string
	activity        ActivityCategory
	preferences     Preferences
	recommendations []Track
	loading         bool
	errMsg          string
	auth            AuthSession

	// seq is the number of the most recently issued fetch.
	seq uint64
}

// SessionSnapshot is a consistent copy of a Session for readers.
type SessionSnapshot struct {
	ID              string           `json:"id"`
	Activity        ActivityCategory `json:"activity"`
	Preferences     Preferences      `json:"preferences"`
	Recommendations []Track          `json:"recommendations"`
	Loading         bool             `json:"loading"`
	Error           string           `json:"error,omitempty"`
	AuthState       AuthState        `json:"auth_state"`
	CanPublish      bool             `json:"can_publish"`
}

// NewSession creates an unauthenticated session. The selection defaults
// match the web client: walking, with regional genres included.
func NewSession(id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("domain: invalid argument")
	}
	return &Session{
		id:              id,
		activity:        ActivityWalking,
		preferences:     Preferences{IncludeRegional: true},
		recommendations: []Track{},
		auth:            AuthSession{State: AuthUnauthenticated},
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Activity() ActivityCategory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity
}

func (s *Session) SetActivity(a ActivityCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = a
}

func (s *Session) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferences
}

func (s *Session) SetPreferences(p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences = p
}

// Recommendations returns a copy of the current recommendation set.
func (s *Session) Recommendations() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Track, len(s.recommendations))
	copy(out, s.recommendations)
	return out
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// SetError records a user-visible error message; an empty string clears it.
// A message is not recorded while a fetch is loading. It reports whether the
// session was changed.
func (s *Session) SetError(msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg != "" && s.loading {
		return false
	}
	s.errMsg = msg
	return true
}

func (s *Session) Auth() AuthSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func (s *Session) SetAuth(a AuthSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = a
}

// BeginFetch starts a recommendation round-trip: the previous error and
// recommendation set are cleared and loading is raised. The returned number
// identifies this fetch in CompleteFetch/FailFetch.
func (s *Session) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.errMsg = ""
	s.recommendations = []Track{}
	s.loading = true
	return s.seq
}

// CompleteFetch applies a successful result. It reports false, leaving the
// session untouched, when a newer fetch has been issued since seq.
func (s *Session) CompleteFetch(seq uint64, tracks []Track) bool {
	return s.complete(seq, tracks, "")
}

// CompleteActivityFetch is CompleteFetch for a fetch that also decided the
// activity. The activity is applied only together with the tracks.
func (s *Session) CompleteActivityFetch(seq uint64, tracks []Track, activity ActivityCategory) bool {
	return s.complete(seq, tracks, activity)
}

func (s *Session) complete(seq uint64, tracks []Track, activity ActivityCategory) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return false
	}
	if activity != "" {
		s.activity = activity
	}
	s.recommendations = make([]Track, len(tracks))
	copy(s.recommendations, tracks)
	s.errMsg = ""
	s.loading = false
	return true
}

// FailFetch applies a failed result under the same staleness rule as CompleteFetch.
func (s *Session) FailFetch(seq uint64, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return false
	}
	s.recommendations = []Track{}
	s.errMsg = msg
	s.loading = false
	return true
}

// CanPublish reports whether a playlist may be created from the current set.
func (s *Session) CanPublish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canPublishLocked()
}

func (s *Session) canPublishLocked() bool {
	return len(s.recommendations) > 0 && s.auth.Authorized()
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]Track, len(s.recommendations))
	copy(recs, s.recommendations)
	return SessionSnapshot{
		ID:              s.id,
		Activity:        s.activity,
		Preferences:     s.preferences,
		Recommendations: recs,
		Loading:         s.loading,
		Error:           s.errMsg,
		AuthState:       s.auth.State,
		CanPublish:      s.canPublishLocked(),
	}
}
