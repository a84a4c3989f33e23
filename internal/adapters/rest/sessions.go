package rest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/services"
)

// SessionCookie names the cookie that identifies a browser session.
const SessionCookie = "cadence_session"

type sessionKey struct{}

// DefaultSessionIdleTTL is how long a session may go unused before it is
// dropped from memory. Its login survives in the store.
const DefaultSessionIdleTTL = 30 * time.Minute

// Sessions keeps one domain.Session per browser. Sessions unknown to this
// process, e.g. after a restart, get their auth restored from the store
// exactly once, before any request sees them.
type Sessions struct {
	auth    *services.AuthCoordinator
	log     *zap.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	m         map[string]*sessionEntry
	lastSweep time.Time
}

type sessionEntry struct {
	sess     *domain.Session
	restore  sync.Once
	lastSeen time.Time
}

func NewSessions(auth *services.AuthCoordinator, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		auth:    auth,
		log:     log.Named("sessions"),
		idleTTL: DefaultSessionIdleTTL,
		now:     time.Now,
		m:       map[string]*sessionEntry{},
	}
}

// Get returns the session for id, creating it if needed. created reports
// whether the session is new to this process.
func (s *Sessions) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	s.mu.Lock()
	now := s.now()
	s.sweepLocked(now)
	e, ok := s.m[id]
	if !ok {
		ns, nerr := domain.NewSession(id)
		if nerr != nil {
			s.mu.Unlock()
			return nil, false, nerr
		}
		e = &sessionEntry{sess: ns}
		s.m[id] = e
	}
	e.lastSeen = now
	s.mu.Unlock()

	e.restore.Do(func() {
		if err := s.auth.Restore(context.WithoutCancel(ctx), e.sess); err != nil {
			// an unreadable auth record leaves the session logged out
			s.log.Warn("failed to restore auth", zap.String("session_id", id), zap.Error(err))
		}
	})
	return e.sess, !ok, nil
}

// Len reports how many sessions are held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// sweepLocked drops idle sessions, at most once per idle period. A session
// that is loading is kept.
func (s *Sessions) sweepLocked(now time.Time) {
	if s.idleTTL <= 0 || now.Sub(s.lastSweep) < s.idleTTL {
		return
	}
	s.lastSweep = now
	for id, e := range s.m {
		if now.Sub(e.lastSeen) >= s.idleTTL && !e.sess.Loading() {
			delete(s.m, id)
		}
	}
}

func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if _, perr := uuid.Parse(c.Value); perr == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		sess, _, err := h.sessions.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *domain.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*domain.Session)
	return sess
}
