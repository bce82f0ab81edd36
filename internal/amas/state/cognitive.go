package state

import "math"

// CognitiveProfilerConfig controls the short/long-term EMA rates and the
// blend time-constant τ (spec §4.b: λ = 1-exp(-n/τ), τ≈30).
type CognitiveProfilerConfig struct {
	ShortBeta float64
	LongBeta  float64
	Tau       float64
	RTRange   float64 // normalisation range for response time, ms
}

func DefaultCognitiveProfilerConfig() CognitiveProfilerConfig {
	return CognitiveProfilerConfig{
		ShortBeta: 0.5,
		LongBeta:  0.95,
		Tau:       30,
		RTRange:   8000,
	}
}

// RecentStats is the per-event summary CognitiveProfiler consumes.
type RecentStats struct {
	Accuracy        float64
	AvgResponseTime float64
	ErrorVariance   float64
	ReferenceRT     float64
}

// CognitiveProfile is the {mem,speed,stability} triple plus the long-term
// EMA shadow state needed to keep blending correctly across calls.
type CognitiveProfile struct {
	Short       [3]float64 // mem, speed, stability
	Long        [3]float64
	SampleCount int
}

// CognitiveProfiler blends fast and slow EMAs of accuracy/speed/stability
// into the user's C={mem,speed,stability} state.
type CognitiveProfiler struct {
	cfg CognitiveProfilerConfig
}

func NewCognitiveProfiler(cfg CognitiveProfilerConfig) *CognitiveProfiler {
	if cfg.ShortBeta <= 0 || cfg.ShortBeta >= 1 {
		cfg.ShortBeta = 0.5
	}
	if cfg.LongBeta <= 0 || cfg.LongBeta >= 1 {
		cfg.LongBeta = 0.95
	}
	if cfg.Tau <= 0 {
		cfg.Tau = 30
	}
	if cfg.RTRange <= 0 {
		cfg.RTRange = 8000
	}
	return &CognitiveProfiler{cfg: cfg}
}

// Update advances the short/long EMAs with the latest stats and returns
// the blended {mem,speed,stability} triple.
func (p *CognitiveProfiler) Update(prof *CognitiveProfile, stats RecentStats) (mem, speed, stability float64) {
	speedRaw := normSigned(stats.ReferenceRT-stats.AvgResponseTime, p.cfg.RTRange)
	stabilityRaw := 1 - normAbs(stats.ErrorVariance, 1)
	raw := [3]float64{clamp01(stats.Accuracy), clamp01(speedRaw), clamp01(stabilityRaw)}

	for i := 0; i < 3; i++ {
		prof.Short[i] = p.cfg.ShortBeta*prof.Short[i] + (1-p.cfg.ShortBeta)*raw[i]
		prof.Long[i] = p.cfg.LongBeta*prof.Long[i] + (1-p.cfg.LongBeta)*raw[i]
	}
	prof.SampleCount++

	lambda := 1 - math.Exp(-float64(prof.SampleCount)/p.cfg.Tau)
	blended := [3]float64{}
	for i := 0; i < 3; i++ {
		blended[i] = (1-lambda)*prof.Short[i] + lambda*prof.Long[i]
	}
	return clamp01(blended[0]), clamp01(blended[1]), clamp01(blended[2])
}

// normSigned maps x into [0,1] via (x/range + 1)/2, clamped.
func normSigned(x, rng float64) float64 {
	if rng == 0 {
		return 0.5
	}
	return clamp01((x/rng + 1) / 2)
}

// normAbs maps |x|/range into [0,1], clamped.
func normAbs(x, rng float64) float64 {
	if rng == 0 {
		return 0
	}
	return clamp01(math.Abs(x) / rng)
}
