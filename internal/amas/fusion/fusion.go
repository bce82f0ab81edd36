// Package fusion combines behavioral, visual and temporal fatigue signals
// into a single fused estimate, Kalman-smoothed per user (spec §4.d).
package fusion

import (
	"math"

	"github.com/vocabamas/amas/internal/domain"
)

// Config controls the temporal-decay, conflict-threshold and
// Kalman/smoothing constants. The per-source weights are not part of
// Config: they are passed in on each call and renormalised to sum to 1
// whenever their sum is off by 1e-3 or more.
type Config struct {
	TemporalK      float64
	ConflictTheta  float64
	ProcessNoiseQ  float64
	MeasureNoiseR  float64
	SmoothAlpha    float64
}

func DefaultConfig() Config {
	return Config{
		TemporalK:     0.05,
		ConflictTheta: 0.4,
		ProcessNoiseQ: 0.01,
		MeasureNoiseR: 0.1,
		SmoothAlpha:   0.3,
	}
}

// KalmanState is the per-user scalar Kalman filter state carried between
// fusion calls.
type KalmanState struct {
	X        float64
	P        float64
	Smoothed float64
	hasPrior bool
}

// Engine fuses fatigue signals. It holds only configuration: each user's
// KalmanState is passed in by the caller (the registry keeps one per user
// in its UserBundle), so a single Engine serves every user.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.TemporalK <= 0 {
		cfg.TemporalK = 0.05
	}
	if cfg.ConflictTheta <= 0 {
		cfg.ConflictTheta = 0.4
	}
	if cfg.ProcessNoiseQ <= 0 {
		cfg.ProcessNoiseQ = 0.01
	}
	if cfg.MeasureNoiseR <= 0 {
		cfg.MeasureNoiseR = 0.1
	}
	if cfg.SmoothAlpha <= 0 || cfg.SmoothAlpha >= 1 {
		cfg.SmoothAlpha = 0.3
	}
	return &Engine{cfg: cfg}
}

// Temporal computes F_temporal = 1 - exp(-k*max(0, minutes-30)).
func (e *Engine) Temporal(sessionMinutes float64) float64 {
	excess := math.Max(0, sessionMinutes-30)
	return 1 - math.Exp(-e.cfg.TemporalK*excess)
}

// Fuse weighted-combines the three fatigue sources, runs them through the
// user's Kalman filter and exponential smoother, detects conflict, and
// assigns the fatigue level and recommendation strings.
func (e *Engine) Fuse(ks *KalmanState, behavior, visual, temporal float64, weights domain.FusionWeights, sessionMinutes float64) domain.FusionResult {
	weights = normaliseWeights(weights)

	z := weights.Behavior*behavior + weights.Visual*visual + weights.Temporal*temporal
	z = domain.Clamp01(z)

	x := kalmanUpdate(ks, z, e.cfg.ProcessNoiseQ, e.cfg.MeasureNoiseR)

	if !ks.hasPrior {
		ks.Smoothed = x
		ks.hasPrior = true
	} else {
		ks.Smoothed = e.cfg.SmoothAlpha*x + (1-e.cfg.SmoothAlpha)*ks.Smoothed
	}
	fused := domain.Clamp01(ks.Smoothed)

	dominant := dominantSource(behavior, visual, weights)

	var conflict *domain.Conflict
	delta := behavior - visual
	if math.Abs(delta) > e.cfg.ConflictTheta {
		side := "visual"
		desc := "visual fatigue signal is elevated relative to behavioral signal"
		if delta > 0 {
			side = "behavior"
			desc = "behavioral fatigue signal is elevated relative to visual signal"
		}
		conflict = &domain.Conflict{Dominant: side, Description: desc, Delta: delta}
	}

	level := fatigueLevel(fused)
	recs := recommendations(fused, dominant, sessionMinutes, behavior, conflict)

	return domain.FusionResult{
		FusedFatigue:    fused,
		Visual:          visual,
		Behavior:        behavior,
		Temporal:        temporal,
		Weights:         weights,
		DominantSource:  dominant,
		Conflict:        conflict,
		Level:           level,
		Recommendations: recs,
	}
}

// kalmanUpdate applies x <- x + K(z-x), K = (p+Q)/(p+Q+R), p <- (1-K)(p+Q).
func kalmanUpdate(ks *KalmanState, z, q, r float64) float64 {
	if !ks.hasPrior {
		ks.X = z
		ks.P = q
		return ks.X
	}
	pPred := ks.P + q
	k := pPred / (pPred + r)
	ks.X = ks.X + k*(z-ks.X)
	ks.P = (1 - k) * pPred
	return ks.X
}

func normaliseWeights(w domain.FusionWeights) domain.FusionWeights {
	sum := w.Behavior + w.Visual + w.Temporal
	if sum <= 0 {
		return domain.FusionWeights{Behavior: 1.0 / 3, Visual: 1.0 / 3, Temporal: 1.0 / 3}
	}
	if math.Abs(sum-1) < 1e-3 {
		return w
	}
	return domain.FusionWeights{
		Behavior: w.Behavior / sum,
		Visual:   w.Visual / sum,
		Temporal: w.Temporal / sum,
	}
}

func dominantSource(behavior, visual float64, w domain.FusionWeights) string {
	behaviorWeighted := behavior * w.Behavior
	visualWeighted := visual * w.Visual
	if visualWeighted > behaviorWeighted {
		return "visual"
	}
	return "behavior"
}

func fatigueLevel(fused float64) domain.FatigueLevel {
	switch {
	case fused < 0.25:
		return domain.LevelAlert
	case fused < 0.5:
		return domain.LevelMild
	case fused < 0.75:
		return domain.LevelModerate
	default:
		return domain.LevelSevere
	}
}

// recommendations returns the deterministic, priority-ordered literal
// recommendation strings. These exact strings are part of the external
// contract (spec §6).
func recommendations(fused float64, dominant string, sessionMinutes float64, behavior float64, conflict *domain.Conflict) []string {
	var out []string
	if fused >= 0.75 {
		out = append(out, "rest 15–20 min")
	}
	if dominant == "visual" && fused >= 0.5 {
		out = append(out, "close eyes")
	}
	if sessionMinutes > 45 {
		out = append(out, "stand up")
	}
	if dominant == "behavior" {
		out = append(out, "change activity")
	}
	return out
}
