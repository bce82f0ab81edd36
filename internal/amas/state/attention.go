package state

import (
	"log"
	"math"
)

// AttentionMonitorConfig controls the EMA smoothing of the attention
// signal. Beta defaults to 0.7 — a mismatched or non-positive value
// falls back to the default, following the teacher's validate-in-
// constructor convention.
type AttentionMonitorConfig struct {
	Beta    float64
	Weights []float64 // length must match the behavioral feature vector
}

func DefaultAttentionMonitorConfig() AttentionMonitorConfig {
	return AttentionMonitorConfig{
		Beta: 0.7,
		Weights: []float64{
			0.2, 0.15, 0.15, 0.1, 0.1, 0.1, 0.1, 0.1,
		},
	}
}

// AttentionMonitor maintains the EMA-smoothed attention scalar A.
type AttentionMonitor struct {
	cfg AttentionMonitorConfig
}

func NewAttentionMonitor(cfg AttentionMonitorConfig) *AttentionMonitor {
	if cfg.Beta <= 0 || cfg.Beta >= 1 {
		cfg.Beta = 0.7
	}
	if len(cfg.Weights) == 0 {
		cfg = DefaultAttentionMonitorConfig()
	}
	return &AttentionMonitor{cfg: cfg}
}

// Update computes A_raw = sigmoid(-w·f) and blends it into prevA with the
// configured EMA beta. A weight/feature length mismatch is a no-op — the
// update is skipped, not failed. NaN entries in f are treated as zero.
func (m *AttentionMonitor) Update(prevA float64, f []float64) float64 {
	if len(f) != len(m.cfg.Weights) {
		log.Printf("[amas.state] attention: feature length %d != weights length %d, skipping update", len(f), len(m.cfg.Weights))
		return prevA
	}

	dot := 0.0
	for i, w := range m.cfg.Weights {
		fi := f[i]
		if math.IsNaN(fi) {
			log.Printf("[amas.state] attention: NaN feature at index %d, treated as zero", i)
			fi = 0
		}
		dot += w * fi
	}

	raw := sigmoid(-dot)
	return m.cfg.Beta*prevA + (1-m.cfg.Beta)*raw
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
