package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

var (
	// ErrBackendUnauthorized indicates the backend rejected the credential (401/403).
	ErrBackendUnauthorized = errors.New("backend: unauthorized")
	// ErrBackendUnavailable indicates the backend could not be reached.
	ErrBackendUnavailable = errors.New("backend: unavailable")
	// ErrMalformedResponse indicates a 2xx response whose body could not be used.
	ErrMalformedResponse = errors.New("backend: malformed response")
)

// StatusError carries a non-success HTTP status from the backend.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s: status %d", e.Op, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrBackendUnauthorized && (e.StatusCode == 401 || e.StatusCode == 403)
}

// RecommendationBackend is the recommendation/playlist service the clients talk to.
type RecommendationBackend interface {
	// LoginURL returns the external authorization URL the user agent must visit.
	LoginURL(ctx context.Context) (string, error)
	// ExchangeCode hands the callback code to the backend.
	ExchangeCode(ctx context.Context, code string) (domain.Credential, error)
	// Recommendations is the web call shape: a pre-classified activity plus preference flags.
	Recommendations(ctx context.Context, cred domain.Credential, activity domain.ActivityCategory, prefs domain.Preferences) ([]domain.Track, error)
	// ActivityRecommendations is the mobile call shape: the backend classifies the raw heart rate itself.
	ActivityRecommendations(ctx context.Context, cred domain.Credential, heartRate float64) (domain.ActivityReport, error)
	CreatePlaylist(ctx context.Context, cred domain.Credential, name string, trackURIs []string) (domain.PlaylistLocation, error)
}
