package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// Orchestrator coordinates recommendation fetches between a session and the backend.
type Orchestrator struct {
	backend ports.RecommendationBackend
	auth    *AuthCoordinator
	log     *zap.Logger
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(backend ports.RecommendationBackend, auth *AuthCoordinator, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		backend: backend,
		auth:    auth,
		log:     log.Named("orchestrator"),
	}
}

// FetchRecommendations requests tracks for the session's current activity and
// preferences. On return loading is always false for this fetch, unless a
// newer fetch has been issued in the meantime (ErrSuperseded).
func (o *Orchestrator) FetchRecommendations(ctx context.Context, sess *domain.Session) ([]domain.Track, error) {
	activity := sess.Activity()
	prefs := sess.Preferences()

	return o.run(ctx, sess, "recommendations", func(cred domain.Credential) ([]domain.Track, domain.ActivityCategory, error) {
		tracks, err := o.backend.Recommendations(ctx, cred, activity, prefs)
		return tracks, "", err
	}, zap.String("activity", activity.String()), zap.Bool("include_regional", prefs.IncludeRegional))
}

// FetchForHeartRate is the mobile call shape: the raw reading goes to the
// backend, which classifies it and picks the songs in one round-trip. The
// backend's label replaces whatever placeholder the session was showing,
// together with the tracks and under the same staleness rule.
func (o *Orchestrator) FetchForHeartRate(ctx context.Context, sess *domain.Session, sample domain.BiometricSample) ([]domain.Track, error) {
	return o.run(ctx, sess, "activity", func(cred domain.Credential) ([]domain.Track, domain.ActivityCategory, error) {
		report, err := o.backend.ActivityRecommendations(ctx, cred, sample.BPM)
		if err != nil {
			return nil, "", err
		}
		label := report.Activity
		if !label.Valid() || label == domain.ActivityUnknown {
			o.log.Warn("backend returned no usable activity label; keeping placeholder",
				zap.String("session_id", sess.ID()), zap.String("label", string(label)))
			label = ""
		}
		return report.Tracks, label, nil
	}, zap.Float64("heart_rate", sample.BPM), zap.String("placeholder", sess.Activity().String()))
}

// run applies the shared fetch policy: reset, auth check, one backend call,
// then a guarded completion. A non-empty activity returned by call is applied
// with the tracks. Every failure collapses to ErrFetch.
func (o *Orchestrator) run(ctx context.Context, sess *domain.Session, op string, call func(domain.Credential) ([]domain.Track, domain.ActivityCategory, error), fields ...zap.Field) ([]domain.Track, error) {
	seq := sess.BeginFetch()
	log := o.log.With(append(fields, zap.String("session_id", sess.ID()), zap.String("op", op), zap.Uint64("seq", seq))...)
	log.Debug("fetch started")

	auth, err := o.auth.RequireAuthenticated(sess)
	if err != nil {
		log.Info("fetch attempted without authentication")
		if !sess.FailFetch(seq, domain.MsgFetchFailed) {
			return nil, domain.ErrSuperseded
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	tracks, activity, err := call(auth.Credential)
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		if errors.Is(err, ports.ErrBackendUnauthorized) {
			if ierr := o.auth.Invalidate(ctx, sess, "backend rejected credential"); ierr != nil {
				log.Warn("failed to invalidate auth", zap.Error(ierr))
			}
		}
		if !sess.FailFetch(seq, domain.MsgFetchFailed) {
			log.Debug("discarding stale failure")
			return nil, domain.ErrSuperseded
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	if !sess.CompleteActivityFetch(seq, tracks, activity) {
		log.Debug("discarding stale result", zap.Int("tracks", len(tracks)))
		return nil, domain.ErrSuperseded
	}
	log.Info("fetch completed", zap.Int("tracks", len(tracks)))
	return sess.Recommendations(), nil
}
