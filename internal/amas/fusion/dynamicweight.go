package fusion

import "math"

// DynamicWeightConfig controls the base fusion weights, trustworthiness
// gate and scene-boost multipliers (spec §4.e). Base weights themselves
// are not given literal values by the spec; 0.5/0.3/0.2 is a reasonable
// behavior-dominant prior, tunable without touching the formulas below.
type DynamicWeightConfig struct {
	BaseBehavior            float64
	BaseVisual              float64
	BaseTemporal            float64
	MinConfidenceThreshold  float64
	DefaultHistoryReliability float64
	MinPairedSamples        int
}

func DefaultDynamicWeightConfig() DynamicWeightConfig {
	return DynamicWeightConfig{
		BaseBehavior:              0.5,
		BaseVisual:                0.3,
		BaseTemporal:              0.2,
		MinConfidenceThreshold:    0.2,
		DefaultHistoryReliability: 0.5,
		MinPairedSamples:          5,
	}
}

// DynamicWeightCalculator derives fusion weights from trustworthiness and
// scene context, maintaining a rolling window of paired (visual,behavior)
// samples for the correlation-based history-reliability term.
type DynamicWeightCalculator struct {
	cfg    DynamicWeightConfig
	pairsV []float64
	pairsB []float64
}

func NewDynamicWeightCalculator(cfg DynamicWeightConfig) *DynamicWeightCalculator {
	if cfg.BaseBehavior+cfg.BaseVisual+cfg.BaseTemporal <= 0 {
		cfg = DefaultDynamicWeightConfig()
	}
	if cfg.MinConfidenceThreshold <= 0 {
		cfg.MinConfidenceThreshold = 0.2
	}
	if cfg.DefaultHistoryReliability <= 0 {
		cfg.DefaultHistoryReliability = 0.5
	}
	if cfg.MinPairedSamples <= 0 {
		cfg.MinPairedSamples = 5
	}
	return &DynamicWeightCalculator{cfg: cfg}
}

// SceneContext bundles the scene-boost trigger inputs (spec §4.e).
type SceneContext struct {
	FusedScore      float64
	VisualScore     float64
	BehaviorScore   float64
	VisualConfidence float64
	SessionMinutes  float64
	HourOfDay       float64
	TrendSlope      float64
}

const pairedWindow = 20

// Observe records a new (visual, behavior) pair for the correlation-based
// history-reliability term.
func (c *DynamicWeightCalculator) Observe(visual, behavior float64) {
	c.pairsV = append(c.pairsV, visual)
	c.pairsB = append(c.pairsB, behavior)
	if len(c.pairsV) > pairedWindow {
		c.pairsV = c.pairsV[len(c.pairsV)-pairedWindow:]
		c.pairsB = c.pairsB[len(c.pairsB)-pairedWindow:]
	}
}

// Compute derives this call's fusion weights.
func (c *DynamicWeightCalculator) Compute(confidence, freshness float64, scene SceneContext) (weights struct{ Behavior, Visual, Temporal float64 }, trustworthiness float64) {
	historyReliability := c.cfg.DefaultHistoryReliability
	if len(c.pairsV) >= c.cfg.MinPairedSamples {
		historyReliability = 0.3 + 0.7*math.Abs(pearsonCorrelation(c.pairsV, c.pairsB))
	}

	trustworthiness = math.Sqrt(clampNonNeg(confidence*freshness)) * historyReliability

	behavior, visual, temporal := c.cfg.BaseBehavior, c.cfg.BaseVisual, c.cfg.BaseTemporal

	if trustworthiness < c.cfg.MinConfidenceThreshold {
		redistributed := visual
		visual = 0
		behavior += 0.7 * redistributed
		temporal += 0.3 * redistributed
	}

	if scene.FusedScore > 0.6 && scene.VisualConfidence > 0.7 {
		visual *= 1.3
	}
	if scene.BehaviorScore < 0.3 && scene.VisualScore > 0.6 {
		visual *= 1.5
	}
	if scene.SessionMinutes > 45 {
		temporal *= 1.2
	}
	if isNightHour(scene.HourOfDay) {
		visual *= 1.1
	}
	if scene.TrendSlope > 0.1 {
		visual *= 1.1
	}

	sum := behavior + visual + temporal
	if sum <= 0 {
		behavior, visual, temporal = c.cfg.BaseBehavior, c.cfg.BaseVisual, c.cfg.BaseTemporal
		sum = behavior + visual + temporal
	}

	weights.Behavior = behavior / sum
	weights.Visual = visual / sum
	weights.Temporal = temporal / sum
	return weights, trustworthiness
}

func isNightHour(hour float64) bool {
	return hour >= 22 || hour < 5
}

func clampNonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func pearsonCorrelation(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 || len(xs) != len(ys) {
		return 0
	}
	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
		sumYY += ys[i] * ys[i]
	}
	numer := n*sumXY - sumX*sumY
	denom := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	if denom == 0 {
		return 0
	}
	return numer / denom
}
