package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// Replay reads recorded samples from a JSON file, e.g. an export from a
// watch. The file is re-read on every query so it can be appended to
// while the process runs.
//
// Format: [{"bpm": 72, "at": "2024-06-01T07:30:00Z"}, ...]
type Replay struct {
	path string
}

var _ ports.HeartRateSensor = (*Replay)(nil)

func NewReplay(path string) *Replay {
	return &Replay{path: path}
}

// RequestAuthorization grants access when the file exists.
func (r *Replay) RequestAuthorization(ctx context.Context) (bool, error) {
	if _, err := os.Stat(r.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", domain.ErrSensorUnavailable, r.path)
		}
		return false, fmt.Errorf("sensor: stat %s: %w", r.path, err)
	}
	return true, nil
}

// LatestHeartRate returns the sample with the latest timestamp. On equal
// timestamps the later entry in the file wins.
func (r *Replay) LatestHeartRate(ctx context.Context) (domain.BiometricSample, error) {
	if err := ctx.Err(); err != nil {
		return domain.BiometricSample{}, err
	}
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return domain.BiometricSample{}, fmt.Errorf("%w: read %s: %w", domain.ErrSensorSample, r.path, err)
	}

	var samples []domain.BiometricSample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return domain.BiometricSample{}, fmt.Errorf("%w: decode %s: %w", domain.ErrSensorSample, r.path, err)
	}
	if len(samples) == 0 {
		return domain.BiometricSample{}, fmt.Errorf("%w: no samples in %s", domain.ErrSensorSample, r.path)
	}

	latest := samples[0]
	for _, s := range samples[1:] {
		if !s.At.Before(latest.At) {
			latest = s
		}
	}
	return latest, nil
}
