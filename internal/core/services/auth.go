package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// AuthCoordinator drives the external authorization handshake:
// unauthenticated -> authorization_pending -> authenticated, with
// authorization_failed reachable from pending. It owns no business state.
type AuthCoordinator struct {
	backend ports.RecommendationBackend
	store   ports.AuthStore
	log     *zap.Logger
	now     func() time.Time
}

// NewAuthCoordinator constructs an AuthCoordinator.
func NewAuthCoordinator(backend ports.RecommendationBackend, store ports.AuthStore, log *zap.Logger) *AuthCoordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthCoordinator{
		backend: backend,
		store:   store,
		log:     log.Named("auth"),
		now:     time.Now,
	}
}

// Initiate asks the backend for the authorization URL the user agent must
// navigate to. The session moves to authorization_pending; the pending
// marker is persisted because the redirect discards in-memory state.
// It is refused with ErrFetchInProgress while the session is loading.
func (c *AuthCoordinator) Initiate(ctx context.Context, sess *domain.Session) (string, error) {
	if sess.Loading() {
		return "", domain.ErrFetchInProgress
	}
	raw, err := c.backend.LoginURL(ctx)
	if err != nil {
		c.log.Warn("login url request failed", zap.String("session_id", sess.ID()), zap.Error(err))
		sess.SetError(domain.MsgAuthInitFailed)
		return "", fmt.Errorf("%w: %w", domain.ErrAuthInit, err)
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		c.log.Warn("login url malformed", zap.String("session_id", sess.ID()), zap.String("url", raw))
		sess.SetError(domain.MsgAuthInitFailed)
		return "", fmt.Errorf("%w: invalid authorization url %q", domain.ErrAuthInit, raw)
	}

	auth := domain.AuthSession{
		State:        domain.AuthAuthorizationPending,
		PendingSince: c.now(),
	}
	sess.SetAuth(auth)
	sess.SetError("")
	if err := c.store.SaveAuth(ctx, sess.ID(), auth); err != nil {
		// The redirect can still complete; the callback does not depend on the marker.
		c.log.Warn("failed to persist pending marker", zap.String("session_id", sess.ID()), zap.Error(err))
	}

	c.log.Info("authorization pending", zap.String("session_id", sess.ID()))
	return u.String(), nil
}

// CompleteCallback exchanges the code delivered on the callback page load.
// A code can be used once; replaying it fails with ErrAuthCallback and leaves
// the session as it was. A rejected code moves the session to
// authorization_failed only when no login is in place; an authenticated
// session keeps its credential.
func (c *AuthCoordinator) CompleteCallback(ctx context.Context, sess *domain.Session, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: missing code", domain.ErrAuthCallback)
	}

	if err := c.store.ConsumeCode(ctx, code); err != nil {
		if errors.Is(err, domain.ErrCodeConsumed) {
			c.log.Warn("authorization code replayed", zap.String("session_id", sess.ID()))
			return fmt.Errorf("%w: %w", domain.ErrAuthCallback, err)
		}
		return fmt.Errorf("%w: record code: %w", domain.ErrAuthCallback, err)
	}

	cred, err := c.backend.ExchangeCode(ctx, code)
	if err != nil {
		c.log.Warn("code exchange failed", zap.String("session_id", sess.ID()), zap.Error(err))
		sess.SetError(domain.MsgCallbackFailed)
		if sess.Auth().Authorized() {
			return fmt.Errorf("%w: %w", domain.ErrAuthCallback, err)
		}
		failed := domain.AuthSession{State: domain.AuthAuthorizationFailed}
		sess.SetAuth(failed)
		if err := c.store.SaveAuth(ctx, sess.ID(), failed); err != nil {
			c.log.Warn("failed to persist auth failure", zap.String("session_id", sess.ID()), zap.Error(err))
		}
		return fmt.Errorf("%w: %w", domain.ErrAuthCallback, err)
	}

	auth := domain.AuthSession{
		State:           domain.AuthAuthenticated,
		Credential:      cred,
		AuthenticatedAt: c.now(),
	}
	if err := c.store.SaveAuth(ctx, sess.ID(), auth); err != nil {
		return fmt.Errorf("%w: persist session: %w", domain.ErrAuthCallback, err)
	}
	sess.SetAuth(auth)
	sess.SetError("")

	c.log.Info("authenticated", zap.String("session_id", sess.ID()))
	return nil
}

// Restore loads the persisted auth marker into the session. A missing
// record leaves the session unauthenticated.
func (c *AuthCoordinator) Restore(ctx context.Context, sess *domain.Session) error {
	auth, err := c.store.LoadAuth(ctx, sess.ID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service: failed to restore auth: %w", err)
	}
	if auth.Authorized() && auth.Expired(c.now()) {
		c.log.Info("stored credential expired", zap.String("session_id", sess.ID()))
		return c.Invalidate(ctx, sess, "expired")
	}
	sess.SetAuth(auth)
	return nil
}

// RequireAuthenticated returns the auth session if requests may use it.
func (c *AuthCoordinator) RequireAuthenticated(sess *domain.Session) (domain.AuthSession, error) {
	auth := sess.Auth()
	if !auth.Authorized() {
		return domain.AuthSession{}, domain.ErrNotAuthenticated
	}
	if auth.Expired(c.now()) {
		return domain.AuthSession{}, fmt.Errorf("%w: credential expired", domain.ErrNotAuthenticated)
	}
	return auth, nil
}

// Invalidate drops the session's credential after a logout or a detected failure.
func (c *AuthCoordinator) Invalidate(ctx context.Context, sess *domain.Session, reason string) error {
	sess.SetAuth(domain.AuthSession{State: domain.AuthUnauthenticated})
	c.log.Info("auth invalidated", zap.String("session_id", sess.ID()), zap.String("reason", reason))
	if err := c.store.DeleteAuth(ctx, sess.ID()); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("service: failed to delete auth: %w", err)
	}
	return nil
}

// Logout ends the session's authorization.
func (c *AuthCoordinator) Logout(ctx context.Context, sess *domain.Session) error {
	return c.Invalidate(ctx, sess, "logout")
}

// CallbackCode extracts the authorization code from a page address.
func CallbackCode(u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}
	code := strings.TrimSpace(u.Query().Get("code"))
	return code, code != ""
}

// StripCode returns u without the code (and the provider's state) so that
// reloading the page cannot submit the code again.
func StripCode(u *url.URL) *url.URL {
	out := *u
	q := out.Query()
	q.Del("code")
	q.Del("state")
	out.RawQuery = q.Encode()
	return &out
}
