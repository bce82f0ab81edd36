package state

import "math"

// MotivationTrackerConfig controls the motivation scalar's EMA and the
// weights of its three named inputs (streak, accuracy delta, session
// length vs preferred) — same weighted + EMA shape as FatigueEstimator.
type MotivationTrackerConfig struct {
	Beta               float64
	WeightStreak       float64
	WeightAccuracyDelta float64
	WeightSessionFit   float64
	StreakSaturation   float64 // streak length at which the streak term saturates to 1
}

func DefaultMotivationTrackerConfig() MotivationTrackerConfig {
	return MotivationTrackerConfig{
		Beta:                0.7,
		WeightStreak:        0.4,
		WeightAccuracyDelta: 0.4,
		WeightSessionFit:    0.2,
		StreakSaturation:    10,
	}
}

// MotivationTracker maintains the EMA-smoothed motivation scalar M ∈ [-1,1].
type MotivationTracker struct {
	cfg MotivationTrackerConfig
}

func NewMotivationTracker(cfg MotivationTrackerConfig) *MotivationTracker {
	if cfg.Beta <= 0 || cfg.Beta >= 1 {
		cfg.Beta = 0.7
	}
	if cfg.StreakSaturation <= 0 {
		cfg.StreakSaturation = 10
	}
	return &MotivationTracker{cfg: cfg}
}

// MotivationInputs bundles the per-event signals feeding the motivation score.
type MotivationInputs struct {
	StreakLength          int
	RecentAccuracyDelta   float64 // [-1,1], positive = improving
	SessionLengthMinutes  float64
	PreferredSessionMinutes float64 // from HabitProfile; 0 if unknown
}

// Update blends the weighted raw motivation score into prevM.
func (m *MotivationTracker) Update(prevM float64, in MotivationInputs) float64 {
	streakTerm := math.Min(1, float64(in.StreakLength)/m.cfg.StreakSaturation)

	sessionFit := 0.0
	if in.PreferredSessionMinutes > 0 {
		diff := math.Abs(in.SessionLengthMinutes - in.PreferredSessionMinutes)
		sessionFit = 1 - math.Min(1, diff/in.PreferredSessionMinutes)
	}

	raw := m.cfg.WeightStreak*streakTerm +
		m.cfg.WeightAccuracyDelta*clampSigned(in.RecentAccuracyDelta) +
		m.cfg.WeightSessionFit*sessionFit

	raw = clampSigned(raw)
	return m.cfg.Beta*prevM + (1-m.cfg.Beta)*raw
}

func clampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
