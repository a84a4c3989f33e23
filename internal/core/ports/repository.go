package ports

import (
	"context"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// AuthStore persists auth markers across the login redirect and process restarts.
type AuthStore interface {
	// LoadAuth returns domain.ErrNotFound when nothing is stored for the session.
	LoadAuth(ctx context.Context, sessionID string) (domain.AuthSession, error)
	SaveAuth(ctx context.Context, sessionID string, auth domain.AuthSession) error
	DeleteAuth(ctx context.Context, sessionID string) error
	// ConsumeCode marks an authorization code as used. It returns
	// domain.ErrCodeConsumed if the code was seen before.
	ConsumeCode(ctx context.Context, code string) error
}

// PublicationRepository keeps the history of created playlists.
type PublicationRepository interface {
	SavePublication(ctx context.Context, p domain.Publication) error
	ListPublications(ctx context.Context, sessionID string, limit int) ([]domain.Publication, error)
}

// Store is what a storage driver provides.
type Store interface {
	AuthStore
	PublicationRepository
	Close() error
}
