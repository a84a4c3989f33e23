package domain

import "time"

// AuthState is the position of a session in the external authorization handshake.
type AuthState string

const (
	AuthUnauthenticated      AuthState = "unauthenticated"
	AuthAuthorizationPending AuthState = "authorization_pending"
	AuthAuthenticated        AuthState = "authenticated"
	AuthAuthorizationFailed  AuthState = "authorization_failed"
)

// Credential is whatever the backend handed back when the code was exchanged.
// The token may be empty when the backend keeps the credential server-side
// and only tracks the client by cookie.
type Credential struct {
	Token     string    `json:"token,omitempty"`
	TokenType string    `json:"token_type,omitempty"`
	Expiry    time.Time `json:"expiry,omitempty"`
}

// AuthSession is the authorization marker for one user session.
type AuthSession struct {
	State           AuthState  `json:"state"`
	Credential      Credential `json:"credential"`
	PendingSince    time.Time  `json:"pending_since,omitempty"`
	AuthenticatedAt time.Time  `json:"authenticated_at,omitempty"`
}

// Authorized reports whether requests needing a login may proceed.
func (a AuthSession) Authorized() bool {
	return a.State == AuthAuthenticated
}

// Expired reports whether a credential with a known expiry has lapsed.
func (a AuthSession) Expired(now time.Time) bool {
	return !a.Credential.Expiry.IsZero() && now.After(a.Credential.Expiry)
}
