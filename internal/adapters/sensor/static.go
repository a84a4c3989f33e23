// Package sensor provides heart-rate sources for hosts without a biometric subsystem.
package sensor

import (
	"context"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// Static reports one fixed reading, e.g. from a --bpm flag.
type Static struct {
	bpm         float64
	unavailable bool
	deny        bool
	now         func() time.Time
}

var _ ports.HeartRateSensor = (*Static)(nil)

// StaticOption configures a Static sensor.
type StaticOption func(*Static)

// Unavailable makes the sensor behave like a device without heart-rate data.
func Unavailable() StaticOption {
	return func(s *Static) { s.unavailable = true }
}

// DenyAccess makes authorization requests come back denied.
func DenyAccess() StaticOption {
	return func(s *Static) { s.deny = true }
}

func NewStatic(bpm float64, opts ...StaticOption) *Static {
	s := &Static{bpm: bpm, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Static) RequestAuthorization(ctx context.Context) (bool, error) {
	if s.unavailable {
		return false, domain.ErrSensorUnavailable
	}
	return !s.deny, nil
}

func (s *Static) LatestHeartRate(ctx context.Context) (domain.BiometricSample, error) {
	if err := ctx.Err(); err != nil {
		return domain.BiometricSample{}, err
	}
	if s.unavailable {
		return domain.BiometricSample{}, domain.ErrSensorUnavailable
	}
	return domain.BiometricSample{BPM: s.bpm, At: s.now().UTC()}, nil
}
