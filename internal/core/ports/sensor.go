package ports

import (
	"context"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// HeartRateSensor is the device's biometric subsystem.
type HeartRateSensor interface {
	// RequestAuthorization asks for read access. It returns domain.ErrSensorUnavailable
	// when the device has no heart-rate data at all.
	RequestAuthorization(ctx context.Context) (bool, error)
	// LatestHeartRate returns the single most recent sample.
	LatestHeartRate(ctx context.Context) (domain.BiometricSample, error)
}
