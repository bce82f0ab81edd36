// Package actr implements the ACT-R declarative-memory activation model
// used as one of the decision ensemble's learners (spec §4.h): base-level
// activation over a word's retrieval history, converted to a recall
// probability via a logistic link.
package actr

import (
	"math"

	"github.com/vocabamas/amas/internal/domain"
)

// Config holds the ACT-R decay/threshold/noise-scale constants. The
// formula itself (A = ln Σ t_k^(-d), recall = logistic((A-τ)/s)) is
// given directly; the numeric defaults below are standard ACT-R
// textbook values (decay 0.5, retrieval threshold 0, noise scale s
// ≈ 0.25) since the source text does not pin them down.
type Config struct {
	Decay        float64 // d
	Threshold    float64 // τ
	NoiseScale   float64 // s
	NoiseSigma   float64 // σ, scales the logistic-noise perturbation
	MinSeconds   float64 // floor on t_k to avoid ln(0) for same-instant events
}

func DefaultConfig() Config {
	return Config{
		Decay:      0.5,
		Threshold:  0.0,
		NoiseScale: 0.25,
		NoiseSigma: 0.1,
		MinSeconds: 1.0,
	}
}

// Model scores recall probability for a single (user, word) memory trace.
type Model struct {
	cfg Config
}

func NewModel(cfg Config) *Model {
	if cfg.Decay <= 0 {
		cfg.Decay = 0.5
	}
	if cfg.NoiseScale <= 0 {
		cfg.NoiseScale = 0.25
	}
	if cfg.MinSeconds <= 0 {
		cfg.MinSeconds = 1.0
	}
	return &Model{cfg: cfg}
}

// Activation computes A = ln Σ t_k^(-d) over the trace's recorded
// secondsAgo values. An empty trace has no retrieval history, so
// activation is -Inf (never recalled) by construction; callers should
// treat this as domain.ErrNoMemoryTrace territory upstream.
func (m *Model) Activation(trace *domain.MemoryTrace) float64 {
	if trace == nil || len(trace.Events) == 0 {
		return math.Inf(-1)
	}
	sum := 0.0
	for _, ev := range trace.Events {
		t := ev.SecondsAgo
		if t < m.cfg.MinSeconds {
			t = m.cfg.MinSeconds
		}
		sum += math.Pow(t, -m.cfg.Decay)
	}
	if sum <= 0 {
		return math.Inf(-1)
	}
	return math.Log(sum)
}

// RecallProbability converts an activation value (optionally perturbed
// by noise) into 1/(1+exp(-(A-τ)/s)).
func (m *Model) RecallProbability(activation float64) float64 {
	if math.IsInf(activation, -1) {
		return 0
	}
	z := (activation - m.cfg.Threshold) / m.cfg.NoiseScale
	p := 1 / (1 + math.Exp(-z))
	if math.IsNaN(p) {
		return 0
	}
	return p
}

// Score computes the ACT-R ensemble score for one action: the trace's
// base activation perturbed by σ·logistic(ε) noise, then passed through
// RecallProbability. epsilonDraw is an already-sampled standard-normal
// value so the caller controls the random source (injectable clock /
// rand pattern used across the package).
func (m *Model) Score(trace *domain.MemoryTrace, epsilonDraw float64) float64 {
	a := m.Activation(trace)
	if math.IsInf(a, -1) {
		return 0
	}
	noise := m.cfg.NoiseSigma * logistic(epsilonDraw)
	return m.RecallProbability(a + noise)
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
