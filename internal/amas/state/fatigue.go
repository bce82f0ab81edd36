package state

// FatigueEstimatorConfig controls the behavioral-fatigue raw-scalar
// computation and its EMA smoothing. Spec §4.b leaves the exact
// behavioral-fatigue formula unspecified ("not shown here; consumed by
// fusion") — this follows the same weighted-signal + EMA shape used by
// every other state model in this package, so the texture stays uniform.
type FatigueEstimatorConfig struct {
	Beta             float64
	WeightErrorRate  float64
	WeightRTIncrease float64
	WeightFocusLoss  float64
	WeightIdle       float64
}

func DefaultFatigueEstimatorConfig() FatigueEstimatorConfig {
	return FatigueEstimatorConfig{
		Beta:             0.7,
		WeightErrorRate:  0.62,
		WeightRTIncrease: 0.33,
		WeightFocusLoss:  0.03,
		WeightIdle:       0.02,
	}
}

// FatigueEstimator maintains the EMA-smoothed behavioral fatigue scalar.
type FatigueEstimator struct {
	cfg FatigueEstimatorConfig
}

func NewFatigueEstimator(cfg FatigueEstimatorConfig) *FatigueEstimator {
	if cfg.Beta <= 0 || cfg.Beta >= 1 {
		cfg.Beta = 0.7
	}
	return &FatigueEstimator{cfg: cfg}
}

// BehaviorInputs bundles the per-event signals feeding the fatigue raw score.
type BehaviorInputs struct {
	ErrorRate        float64 // [0,1] rolling error rate
	RTIncreaseRatio  float64 // [0,1] normalised response-time increase vs baseline
	FocusLossRatio   float64 // [0,1] fraction of event spent with focus lost
	IdleRatio        float64 // [0,1] normalised idle time
}

// Update blends the weighted raw behavioral-fatigue score into prevF.
// The result stays clamped to [0.05,1] by the caller (UserState.Clamp).
func (m *FatigueEstimator) Update(prevF float64, in BehaviorInputs) float64 {
	raw := m.cfg.WeightErrorRate*clamp01(in.ErrorRate) +
		m.cfg.WeightRTIncrease*clamp01(in.RTIncreaseRatio) +
		m.cfg.WeightFocusLoss*clamp01(in.FocusLossRatio) +
		m.cfg.WeightIdle*clamp01(in.IdleRatio)

	return m.cfg.Beta*prevF + (1-m.cfg.Beta)*raw
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
