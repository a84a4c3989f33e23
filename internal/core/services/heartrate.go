package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// SampleState is where the monitor is in its most recent sampling attempt.
type SampleState string

const (
	SampleIdle     SampleState = "idle"
	SampleSampling SampleState = "sampling"
	SampleSampled  SampleState = "sampled"
	SampleFailed   SampleState = "sample_failed"
)

// SensorAuthorization is the outcome of asking for read access to heart-rate data.
type SensorAuthorization string

const (
	SensorNotDetermined SensorAuthorization = "not_determined"
	SensorGranted       SensorAuthorization = "granted"
	SensorDenied        SensorAuthorization = "denied"
)

// Reading is the result of one successful FetchHeartRate.
type Reading struct {
	Sample      domain.BiometricSample  `json:"sample"`
	Placeholder domain.ActivityCategory `json:"placeholder"`
	Activity    domain.ActivityCategory `json:"activity"`
	Tracks      []domain.Track          `json:"tracks"`
}

// HeartRateMonitor is the mobile activity source: one most-recent sample per
// invocation, classified locally, then handed to the orchestrator.
type HeartRateMonitor struct {
	sensor ports.HeartRateSensor
	orch   *Orchestrator
	log    *zap.Logger

	mu    sync.Mutex
	authz SensorAuthorization
	state SampleState
	last  domain.BiometricSample
}

// NewHeartRateMonitor constructs a HeartRateMonitor in the idle state.
func NewHeartRateMonitor(sensor ports.HeartRateSensor, orch *Orchestrator, log *zap.Logger) *HeartRateMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &HeartRateMonitor{
		sensor: sensor,
		orch:   orch,
		log:    log.Named("heartrate"),
		authz:  SensorNotDetermined,
		state:  SampleIdle,
	}
}

// Authorization returns the current sensor authorization.
func (m *HeartRateMonitor) Authorization() SensorAuthorization {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authz
}

// State returns the state of the latest sampling attempt.
func (m *HeartRateMonitor) State() SampleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastSample returns the most recent accepted sample.
func (m *HeartRateMonitor) LastSample() (domain.BiometricSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.state == SampleSampled
}

// RequestSensorAuthorization asks the sensor for read access. It always
// settles on granted or denied; a denial leaves the rest of the app usable.
func (m *HeartRateMonitor) RequestSensorAuthorization(ctx context.Context) (SensorAuthorization, error) {
	granted, err := m.sensor.RequestAuthorization(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err != nil:
		m.authz = SensorDenied
		m.log.Warn("sensor authorization failed", zap.Error(err))
		if errors.Is(err, domain.ErrSensorUnavailable) {
			return m.authz, err
		}
		return m.authz, fmt.Errorf("%w: %w", domain.ErrSensorAuthorizationDenied, err)
	case granted:
		m.authz = SensorGranted
	default:
		m.authz = SensorDenied
	}
	m.log.Info("sensor authorization settled", zap.String("authorization", string(m.authz)))
	return m.authz, nil
}

// FetchHeartRate reads the latest heart rate and chains a recommendation
// fetch for it. Sensor failures are returned to the caller only; the session's
// error message is left for the fetch to set.
func (m *HeartRateMonitor) FetchHeartRate(ctx context.Context, sess *domain.Session) (Reading, error) {
	m.mu.Lock()
	if m.authz != SensorGranted {
		authz := m.authz
		m.mu.Unlock()
		m.log.Warn("sampling refused", zap.String("authorization", string(authz)))
		return Reading{}, fmt.Errorf("%w: authorization is %s", domain.ErrSensorAuthorizationDenied, authz)
	}
	m.state = SampleSampling
	m.mu.Unlock()

	sample, err := m.sensor.LatestHeartRate(ctx)
	if err == nil {
		err = sample.Validate()
	}
	if err != nil {
		m.setState(SampleFailed)
		m.log.Warn("heart rate sample failed", zap.Error(err))
		if errors.Is(err, domain.ErrSensorSample) {
			return Reading{}, err
		}
		return Reading{}, fmt.Errorf("%w: %w", domain.ErrSensorSample, err)
	}

	m.mu.Lock()
	m.state = SampleSampled
	m.last = sample
	m.mu.Unlock()

	placeholder := domain.Classify(sample.BPM)
	sess.SetActivity(placeholder)
	m.log.Info("heart rate sampled",
		zap.String("session_id", sess.ID()),
		zap.Float64("bpm", sample.BPM),
		zap.String("placeholder", placeholder.String()),
	)

	tracks, err := m.orch.FetchForHeartRate(ctx, sess, sample)
	if err != nil {
		return Reading{Sample: sample, Placeholder: placeholder, Activity: sess.Activity()}, err
	}
	return Reading{
		Sample:      sample,
		Placeholder: placeholder,
		Activity:    sess.Activity(),
		Tracks:      tracks,
	}, nil
}

func (m *HeartRateMonitor) setState(s SampleState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}
