package state

import (
	"math"

	"github.com/vocabamas/amas/internal/domain"
)

// TrendAnalyzerConfig controls the rolling-window regression thresholds
// (spec §4.b breakpoints are literal and not configurable; the window
// size and minimum sample/span requirements are).
type TrendAnalyzerConfig struct {
	WindowDays      int
	MinSamples      int
	MinSpanDays     float64
	EMABeta         float64 // fallback 7-day EMA rate when regression can't run
}

func DefaultTrendAnalyzerConfig() TrendAnalyzerConfig {
	return TrendAnalyzerConfig{
		WindowDays:  30,
		MinSamples:  10,
		MinSpanDays: 15,
		EMABeta:     0.7,
	}
}

type abilitySample struct {
	tsMS    int64
	ability float64
}

// TrendAnalyzer holds one user's rolling ability window and EMA fallback.
type TrendAnalyzer struct {
	cfg     TrendAnalyzerConfig
	samples []abilitySample
	emaVal  float64
	emaSet  bool
}

func NewTrendAnalyzer(cfg TrendAnalyzerConfig) *TrendAnalyzer {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 10
	}
	if cfg.MinSpanDays <= 0 {
		cfg.MinSpanDays = 15
	}
	if cfg.EMABeta <= 0 || cfg.EMABeta >= 1 {
		cfg.EMABeta = 0.7
	}
	return &TrendAnalyzer{cfg: cfg}
}

func dayMS() int64 { return 24 * 60 * 60 * 1000 }

// capacity is windowDays*3 per spec §3.
func (t *TrendAnalyzer) capacity() int { return t.cfg.WindowDays * 3 }

// Observe appends a new (ts, ability) sample, keeping the buffer sorted
// by timestamp (bubble-sort on the rare out-of-order arrival, per spec
// §4.b — arrivals are normally already in order) and evicting samples
// older than the window. It never drops the just-appended sample on
// overflow (invariant 8): the oldest entries are evicted first.
func (t *TrendAnalyzer) Observe(tsMS int64, ability float64) {
	t.samples = append(t.samples, abilitySample{tsMS, ability})

	for i := len(t.samples) - 1; i > 0 && t.samples[i].tsMS < t.samples[i-1].tsMS; i-- {
		t.samples[i], t.samples[i-1] = t.samples[i-1], t.samples[i]
	}

	cutoff := tsMS - int64(t.cfg.WindowDays)*dayMS()
	kept := t.samples[:0:0]
	for _, s := range t.samples {
		if s.tsMS >= cutoff {
			kept = append(kept, s)
		}
	}
	t.samples = kept

	if cap := t.capacity(); len(t.samples) > cap {
		t.samples = t.samples[len(t.samples)-cap:]
	}
}

// Classify returns the current TrendState per the spec's literal
// breakpoints and confidence formula.
func (t *TrendAnalyzer) Classify() domain.TrendState {
	n := len(t.samples)
	if n == 0 {
		return domain.TrendState{Label: domain.TrendFlat, Confidence: 0}
	}

	spanDays := 0.0
	if n > 1 {
		spanDays = float64(t.samples[n-1].tsMS-t.samples[0].tsMS) / float64(dayMS())
	}

	usedEMA := false
	var slope, sigma float64

	if n >= t.cfg.MinSamples && spanDays >= t.cfg.MinSpanDays {
		slope, sigma = linearRegressionSlope(t.samples)
	} else {
		usedEMA = true
		latest := t.samples[n-1].ability
		if !t.emaSet {
			t.emaVal = latest
			t.emaSet = true
		} else {
			t.emaVal = t.cfg.EMABeta*t.emaVal + (1-t.cfg.EMABeta)*latest
		}
		if n >= 2 {
			prev := t.samples[n-2]
			curr := t.samples[n-1]
			dtDays := float64(curr.tsMS-prev.tsMS) / float64(dayMS())
			if dtDays > 0 {
				slope = (t.emaVal - prev.ability) / dtDays
			}
		}
		sigma = stddevAbility(t.samples)
	}

	label := classifyLabel(slope, sigma)

	sizeFactor := math.Min(1, float64(n)/float64(t.capacity()))
	spanFactor := math.Min(1, spanDays/float64(t.cfg.WindowDays))
	confidence := 0.5*sizeFactor + 0.3*spanFactor + 0.2*(1/(1+10*sigma))
	if usedEMA {
		confidence -= 0.15
	}
	if math.Abs(slope) < 0.002 {
		confidence *= 0.8
	}
	confidence = domain.Clamp01(confidence)

	return domain.TrendState{Label: label, SlopePerDay: slope, Confidence: confidence}
}

func classifyLabel(slope, sigma float64) domain.TrendLabel {
	switch {
	case slope > 0.01:
		return domain.TrendUp
	case slope < -0.005:
		return domain.TrendDown
	case math.Abs(slope) <= 0.005 && sigma < 0.05:
		return domain.TrendFlat
	default:
		return domain.TrendStuck
	}
}

// linearRegressionSlope fits ability ~ dayOffset via ordinary least
// squares and returns (slope-per-day, residual std deviation).
func linearRegressionSlope(samples []abilitySample) (slope, sigma float64) {
	n := float64(len(samples))
	t0 := samples[0].tsMS
	var sumX, sumY, sumXY, sumXX float64
	for _, s := range samples {
		x := float64(s.tsMS-t0) / float64(dayMS())
		y := s.ability
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, stddevAbility(samples)
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	var sse float64
	for _, s := range samples {
		x := float64(s.tsMS-t0) / float64(dayMS())
		pred := intercept + slope*x
		resid := s.ability - pred
		sse += resid * resid
	}
	sigma = math.Sqrt(sse / n)
	return slope, sigma
}

func stddevAbility(samples []abilitySample) float64 {
	n := float64(len(samples))
	if n == 0 {
		return 0
	}
	var mean float64
	for _, s := range samples {
		mean += s.ability
	}
	mean /= n
	var variance float64
	for _, s := range samples {
		d := s.ability - mean
		variance += d * d
	}
	return math.Sqrt(variance / n)
}
