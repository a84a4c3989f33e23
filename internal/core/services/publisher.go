package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// Publisher turns a session's recommendations into a playlist on the music service.
type Publisher struct {
	backend ports.RecommendationBackend
	auth    *AuthCoordinator
	repo    ports.PublicationRepository
	log     *zap.Logger
	now     func() time.Time
}

// NewPublisher constructs a Publisher. repo may be nil, in which case no history is kept.
func NewPublisher(backend ports.RecommendationBackend, auth *AuthCoordinator, repo ports.PublicationRepository, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		backend: backend,
		auth:    auth,
		repo:    repo,
		log:     log.Named("publisher"),
		now:     time.Now,
	}
}

// Publish creates a playlist named after the session's activity from the
// current recommendations, in session order.
func (p *Publisher) Publish(ctx context.Context, sess *domain.Session) (domain.PlaylistLocation, error) {
	if sess.Loading() {
		return domain.PlaylistLocation{}, domain.ErrFetchInProgress
	}
	recs := sess.Recommendations()
	if len(recs) == 0 {
		return p.fail(sess, domain.ErrNothingToPublish)
	}

	uris := make([]string, 0, len(recs))
	for i, t := range recs {
		if t.URI == "" {
			return p.fail(sess, fmt.Errorf("service: track %d (%q) has no uri", i, t.Name))
		}
		uris = append(uris, t.URI)
	}

	return p.CreatePlaylist(ctx, sess, domain.PlaylistName(sess.Activity()), uris)
}

// CreatePlaylist asks the backend to create a playlist with the given tracks.
// The caller is expected to send the user to the returned location. It is
// refused with ErrFetchInProgress while the session is loading.
func (p *Publisher) CreatePlaylist(ctx context.Context, sess *domain.Session, name string, trackURIs []string) (domain.PlaylistLocation, error) {
	if sess.Loading() {
		return domain.PlaylistLocation{}, domain.ErrFetchInProgress
	}
	if len(trackURIs) == 0 {
		return p.fail(sess, domain.ErrNothingToPublish)
	}
	auth, err := p.auth.RequireAuthenticated(sess)
	if err != nil {
		return p.fail(sess, err)
	}

	loc, err := p.backend.CreatePlaylist(ctx, auth.Credential, name, trackURIs)
	if err != nil {
		if errors.Is(err, ports.ErrBackendUnauthorized) {
			if ierr := p.auth.Invalidate(ctx, sess, "backend rejected credential"); ierr != nil {
				p.log.Warn("failed to invalidate auth", zap.String("session_id", sess.ID()), zap.Error(ierr))
			}
		}
		return p.fail(sess, err)
	}

	p.log.Info("playlist created",
		zap.String("session_id", sess.ID()),
		zap.String("name", name),
		zap.Int("tracks", len(trackURIs)),
		zap.String("url", loc.URL),
	)
	sess.SetError("")
	p.record(ctx, domain.Publication{
		ID:         uuid.NewString(),
		SessionID:  sess.ID(),
		Name:       name,
		URL:        loc.URL,
		TrackCount: len(trackURIs),
		CreatedAt:  p.now().UTC(),
	})
	return loc, nil
}

// History lists the most recent publications for a session, newest first.
func (p *Publisher) History(ctx context.Context, sessionID string, limit int) ([]domain.Publication, error) {
	if p.repo == nil {
		return []domain.Publication{}, nil
	}
	pubs, err := p.repo.ListPublications(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list publications: %w", err)
	}
	return pubs, nil
}

func (p *Publisher) record(ctx context.Context, pub domain.Publication) {
	if p.repo == nil {
		return
	}
	if err := p.repo.SavePublication(ctx, pub); err != nil {
		p.log.Warn("failed to record publication", zap.String("session_id", pub.SessionID), zap.Error(err))
	}
}

func (p *Publisher) fail(sess *domain.Session, cause error) (domain.PlaylistLocation, error) {
	p.log.Warn("create playlist failed", zap.String("session_id", sess.ID()), zap.Error(cause))
	sess.SetError(domain.MsgPublishFailed)
	return domain.PlaylistLocation{}, fmt.Errorf("%w: %w", domain.ErrPublish, cause)
}
