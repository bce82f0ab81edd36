package fusion

import (
	"math"

	"github.com/vocabamas/amas/internal/domain"
)

// ThresholdLearnerConfig controls the Bayesian threshold-update rates and
// bounds (spec §4.f).
type ThresholdLearnerConfig struct {
	MinSamplesBeforeLearning int
	LearningRate             float64
	MinVariance              float64
	StdDecayPct              float64 // per-observation shrink toward MinVariance
	LowerBoundFrac           float64 // mean never drops below LowerBoundFrac * initial mean
	UpperBoundFrac           float64 // mean never rises above UpperBoundFrac * initial mean
}

func DefaultThresholdLearnerConfig() ThresholdLearnerConfig {
	return ThresholdLearnerConfig{
		MinSamplesBeforeLearning: 10,
		LearningRate:             0.1,
		MinVariance:              0.01,
		StdDecayPct:              0.01,
		LowerBoundFrac:           0.5,
		UpperBoundFrac:           1.5,
	}
}

// BehaviorSignals bundles the gating inputs for degraded/good behavior.
type BehaviorSignals struct {
	ErrorRate      float64
	RTIncreaseRatio float64
	Fatigue        float64
}

func (b BehaviorSignals) degraded() bool {
	return b.ErrorRate > 0.3 || b.RTIncreaseRatio > 0.3 || b.Fatigue > 0.6
}

// ThresholdLearner maintains a single {mean,std} pair and the initial
// mean used as the basis for the lower/upper bound fractions.
type ThresholdLearner struct {
	cfg         ThresholdLearnerConfig
	initialMean float64
	hasInitial  bool
}

func NewThresholdLearner(cfg ThresholdLearnerConfig) *ThresholdLearner {
	if cfg.MinSamplesBeforeLearning <= 0 {
		cfg.MinSamplesBeforeLearning = 10
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.MinVariance <= 0 {
		cfg.MinVariance = 0.01
	}
	if cfg.StdDecayPct <= 0 {
		cfg.StdDecayPct = 0.01
	}
	if cfg.LowerBoundFrac <= 0 {
		cfg.LowerBoundFrac = 0.5
	}
	if cfg.UpperBoundFrac <= 0 {
		cfg.UpperBoundFrac = 1.5
	}
	return &ThresholdLearner{cfg: cfg}
}

// Update Bayesian-updates stats toward observed given sampleCount (total
// observations seen so far, including this one) and behavior signals.
func (t *ThresholdLearner) Update(stats *domain.GaussianStats, observed float64, sampleCount int, behavior BehaviorSignals) {
	if !t.hasInitial {
		t.initialMean = stats.Mean
		if t.initialMean == 0 {
			t.initialMean = observed
		}
		t.hasInitial = true
	}

	if sampleCount >= t.cfg.MinSamplesBeforeLearning {
		lowerBound := t.initialMean * t.cfg.LowerBoundFrac
		upperBound := t.initialMean * t.cfg.UpperBoundFrac

		if behavior.degraded() && observed > stats.Mean {
			stats.Mean -= 0.5 * t.cfg.LearningRate * (observed - stats.Mean)
			if stats.Mean < lowerBound {
				stats.Mean = lowerBound
			}
		} else if !behavior.degraded() && observed < 0.7*stats.Mean {
			stats.Mean += 0.1 * t.cfg.LearningRate * (stats.Mean - observed)
			if stats.Mean > upperBound {
				stats.Mean = upperBound
			}
		}
	}

	stats.Std = math.Max(t.cfg.MinVariance, stats.Std-t.cfg.StdDecayPct*(stats.Std-t.cfg.MinVariance))
}
