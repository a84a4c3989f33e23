package domain

import (
	"math"
	"strings"
)

// ActivityCategory is the physical activity a recommendation set is tuned for.
type ActivityCategory string

const (
	ActivityWalking    ActivityCategory = "walking"
	ActivityRunning    ActivityCategory = "running"
	ActivitySitting    ActivityCategory = "sitting"
	ActivityExercising ActivityCategory = "exercising"
	ActivityDriving    ActivityCategory = "driving"
	ActivityUnknown    ActivityCategory = "unknown"
)

// Heart-rate thresholds in beats per minute. Each is the inclusive lower
// bound of the next category up.
const (
	walkingMinBPM    = 70.0
	runningMinBPM    = 100.0
	exercisingMinBPM = 140.0
)

// Selectable returns the activities offered for manual selection, in display order.
func Selectable() []ActivityCategory {
	return []ActivityCategory{
		ActivityWalking,
		ActivityRunning,
		ActivitySitting,
		ActivityExercising,
		ActivityDriving,
	}
}

func (a ActivityCategory) String() string {
	return string(a)
}

// Valid reports whether a is one of the known categories.
func (a ActivityCategory) Valid() bool {
	switch a {
	case ActivityWalking, ActivityRunning, ActivitySitting, ActivityExercising, ActivityDriving, ActivityUnknown:
		return true
	}
	return false
}

// ParseActivity maps a label to its category. The backend labels a high
// heart rate "exercise", so that spelling is accepted as well.
func ParseActivity(label string) (ActivityCategory, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "exercise" {
		return ActivityExercising, nil
	}
	a := ActivityCategory(normalized)
	if normalized == "" || !a.Valid() {
		return ActivityUnknown, ErrUnknownActivity
	}
	return a, nil
}

// Classify maps a heart rate to an activity. It never yields ActivityDriving:
// driving can only be selected by hand.
func Classify(bpm float64) ActivityCategory {
	switch {
	case math.IsNaN(bpm):
		return ActivityUnknown
	case bpm < walkingMinBPM:
		return ActivitySitting
	case bpm < runningMinBPM:
		return ActivityWalking
	case bpm < exercisingMinBPM:
		return ActivityRunning
	default:
		return ActivityExercising
	}
}
