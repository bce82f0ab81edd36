// Package visual processes exogenous visual-fatigue samples: validation,
// freshness decay, outlier clipping and personal-baseline calibration
// (spec §4.c).
package visual

import (
	"math"

	"github.com/vocabamas/amas/internal/domain"
)

// Config controls validation thresholds and decay/outlier parameters.
type Config struct {
	MinConfidence float64
	MaxAgeMS      int64   // freshness decays linearly to 0 over this window
	OutlierK      float64 // clip when |score-mean| > K*std
	HistorySize   int     // minimum history before outlier clipping kicks in
	EARStdMult    float64 // earThreshold = max(0.05, earMean - mult*earStd)
}

func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.3,
		MaxAgeMS:      30_000,
		OutlierK:      3,
		HistorySize:   5,
		EARStdMult:    1.5,
	}
}

// Processed is the validated, decayed, clipped, calibrated sample.
type Processed struct {
	Score      float64
	Confidence float64
	IsValid    bool
	Freshness  float64
}

// Processor holds the per-user rolling score history needed for outlier
// clipping (ring buffer, bounded at HistorySize*4 so the stats window
// itself can grow slowly without being unbounded).
type Processor struct {
	cfg     Config
	history []float64
}

func NewProcessor(cfg Config) *Processor {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.3
	}
	if cfg.MaxAgeMS <= 0 {
		cfg.MaxAgeMS = 30_000
	}
	if cfg.OutlierK <= 0 {
		cfg.OutlierK = 3
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 5
	}
	if cfg.EARStdMult <= 0 {
		cfg.EARStdMult = 1.5
	}
	return &Processor{cfg: cfg}
}

// Process validates, time-decays, outlier-clips and returns the sample's
// processed score. nowMS is the caller's clock for freshness computation.
func (p *Processor) Process(s domain.VisualFatigueSample, nowMS int64) Processed {
	if !s.Valid() || s.Confidence < p.cfg.MinConfidence {
		return Processed{IsValid: false}
	}

	ageMS := float64(nowMS - s.Timestamp)
	freshness := math.Max(0, 1-ageMS/float64(p.cfg.MaxAgeMS))

	score := s.Score
	if len(p.history) >= p.cfg.HistorySize {
		mean, std := meanStd(p.history)
		lo := mean - p.cfg.OutlierK*std
		hi := mean + p.cfg.OutlierK*std
		if score < lo {
			score = lo
		} else if score > hi {
			score = hi
		}
	}

	// The raw score goes into the history, so a constant run followed by
	// a real change does not keep clipping every later sample to the mean.
	p.history = append(p.history, s.Score)
	if maxHist := p.cfg.HistorySize * 4; len(p.history) > maxHist {
		p.history = p.history[len(p.history)-maxHist:]
	}

	return Processed{
		Score:      domain.Clamp01(score),
		Confidence: s.Confidence,
		IsValid:    true,
		Freshness:  freshness,
	}
}

// Calibrate scales a processed score by the user's personal baseline:
// score * (perclos / earThreshold), clamped to [0.5, 1.5] as a
// multiplier, where earThreshold = max(0.05, earMean - mult*earStd).
func (p *Processor) Calibrate(score, perclos, earMean, earStd float64) float64 {
	earThreshold := math.Max(0.05, earMean-p.cfg.EARStdMult*earStd)
	if earThreshold <= 0 {
		return score
	}
	multiplier := perclos / earThreshold
	if multiplier < 0.5 {
		multiplier = 0.5
	} else if multiplier > 1.5 {
		multiplier = 1.5
	}
	return domain.Clamp01(score * multiplier)
}

func meanStd(xs []float64) (mean, std float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= n
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / n)
}
