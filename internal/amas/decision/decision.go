// Package decision implements the ensemble vote over the four learners
// (spec §4.h): LinUCB, Thompson sampling, an ACT-R memory model, and the
// rule-based fallback. Each learner scores every candidate action; scores
// are combined by a fixed weighted vote and the winner is chosen with a
// deterministic tie-break.
package decision

import (
	"fmt"
	"log"
	"math"

	"github.com/vocabamas/amas/internal/amas/actr"
	"github.com/vocabamas/amas/internal/amas/bandit"
	"github.com/vocabamas/amas/internal/amas/features"
	"github.com/vocabamas/amas/internal/amas/rulebased"
	"github.com/vocabamas/amas/internal/domain"
)

// Learner names, used to report which learners were skipped.
// tieBreakOrder is the order in which Result.Skipped lists them; it plays
// no part in choosing an action.
const (
	LearnerLinUCB   = "linucb"
	LearnerThompson = "thompson"
	LearnerACTR     = "actr"
	LearnerRule     = "rule"
)

var tieBreakOrder = []string{LearnerLinUCB, LearnerThompson, LearnerACTR, LearnerRule}

// Weights are the normalised per-learner ensemble weights.
type Weights struct {
	Thompson float64
	LinUCB   float64
	ACTR     float64
	Rule     float64
}

// DefaultWeights matches the source table's default 0.5/0.25/0.15/0.10
// thompson/linucb/actr/rule split.
func DefaultWeights() Weights {
	return Weights{Thompson: 0.5, LinUCB: 0.25, ACTR: 0.15, Rule: 0.10}
}

// Config bundles the ensemble's tunables.
type Config struct {
	Weights      Weights
	BatchNormMax float64
}

func DefaultConfig() Config {
	return Config{Weights: DefaultWeights(), BatchNormMax: 20}
}

// Ensemble wires the four learners together for one scoring pass. It
// holds no per-user state; callers supply the user's BanditModel and
// MemoryTrace on each call.
type Ensemble struct {
	cfg   Config
	lin   bandit.LinUCB
	actrM *actr.Model
}

func NewEnsemble(cfg Config, actrCfg actr.Config) *Ensemble {
	if cfg.BatchNormMax <= 0 {
		cfg.BatchNormMax = 20
	}
	sum := cfg.Weights.Thompson + cfg.Weights.LinUCB + cfg.Weights.ACTR + cfg.Weights.Rule
	if sum <= 0 {
		cfg.Weights = DefaultWeights()
	} else if math.Abs(sum-1) > 1e-6 {
		cfg.Weights.Thompson /= sum
		cfg.Weights.LinUCB /= sum
		cfg.Weights.ACTR /= sum
		cfg.Weights.Rule /= sum
	}
	return &Ensemble{cfg: cfg, lin: bandit.LinUCB{}, actrM: actr.NewModel(actrCfg)}
}

// PerLearnerScores holds each candidate action's score under each
// learner, for the decision trace.
type PerLearnerScores struct {
	LinUCB   []float64
	Thompson []float64
	ACTR     []float64
	Rule     []float64
	Combined []float64
}

// Result is the ensemble's chosen action plus its explainable scoring.
type Result struct {
	Action     domain.Strategy
	ActionIdx  int // index into actions; -1 when the rule-based fallback strategy is not among them
	Confidence float64
	Scores     PerLearnerScores
	Skipped    []string // learner names that threw and were scored 0
}

// Decide scores every candidate action and returns the ensemble's pick.
// thompsonTheta is a single posterior draw shared across all candidates
// in this call (bandit.ThompsonSampler.SampleTheta), so the comparison
// is apples-to-apples under one sampled coefficient vector; epsilonDraw
// is the ACT-R noise draw shared the same way.
func (e *Ensemble) Decide(
	model *domain.BanditModel,
	thompsonTheta []float64,
	trace *domain.MemoryTrace,
	epsilonDraw float64,
	baseContext domain.ContextVector,
	actions []domain.Strategy,
	ruleIn rulebased.Inputs,
) (Result, error) {
	if len(actions) == 0 {
		return Result{}, fmt.Errorf("%w: empty action set", domain.ErrInvalidEvent)
	}

	n := len(actions)
	scores := PerLearnerScores{
		LinUCB:   make([]float64, n),
		Thompson: make([]float64, n),
		ACTR:     make([]float64, n),
		Rule:     make([]float64, n),
		Combined: make([]float64, n),
	}
	skipped := map[string]bool{}

	ruleStrategy := rulebased.Evaluate(ruleIn)

	for i, action := range actions {
		xa := perturbContext(baseContext, action, e.cfg.BatchNormMax)

		if s, err := e.lin.Score(model, xa.Values); err != nil {
			log.Printf("[amas.decision] linucb learner skipped: %v", err)
			skipped[LearnerLinUCB] = true
		} else {
			scores.LinUCB[i] = s
		}

		if thompsonTheta != nil {
			s := dotOrZero(thompsonTheta, xa.Values)
			scores.Thompson[i] = s
		} else {
			skipped[LearnerThompson] = true
		}

		scores.ACTR[i] = e.actrM.Score(trace, epsilonDraw)

		if sameStrategy(action, ruleStrategy) {
			scores.Rule[i] = 1.0
		}

		scores.Combined[i] = e.cfg.Weights.LinUCB*scores.LinUCB[i] +
			e.cfg.Weights.Thompson*scores.Thompson[i] +
			e.cfg.Weights.ACTR*scores.ACTR[i] +
			e.cfg.Weights.Rule*scores.Rule[i]
	}

	bothSkipped := skipped[LearnerLinUCB] && skipped[LearnerThompson]
	if bothSkipped {
		// Both stateful learners failed; the ACT-R score alone is too
		// coarse a basis for a choice (it never throws, but an empty
		// memory trace makes it uniformly zero), so fall back to the
		// rule-based policy alone.
		for i := range actions {
			scores.Combined[i] = scores.Rule[i]
		}
	}

	best := selectBest(actions, scores.Combined)
	confidence := softmax(scores.Combined)[best]
	action, actionIdx := actions[best], best
	if bothSkipped && scores.Rule[best] == 0 {
		// No candidate equals the rule-based strategy, so every combined
		// score is 0; return the rule-based strategy itself.
		action, actionIdx = ruleStrategy, -1
	}

	skippedNames := make([]string, 0, len(skipped))
	for _, name := range tieBreakOrder {
		if skipped[name] {
			skippedNames = append(skippedNames, name)
		}
	}

	return Result{
		Action:     action,
		ActionIdx:  actionIdx,
		Confidence: confidence,
		Scores:     scores,
		Skipped:    skippedNames,
	}, nil
}

// selectBest picks the highest-scoring action, tie-breaking by smaller
// batch_size; when batch_size also ties, the earliest-indexed candidate
// in actions is kept.
func selectBest(actions []domain.Strategy, combined []float64) int {
	best := 0
	for i := 1; i < len(actions); i++ {
		switch {
		case combined[i] > combined[best]+1e-12:
			best = i
		case math.Abs(combined[i]-combined[best]) <= 1e-12 && actions[i].BatchSize < actions[best].BatchSize:
			best = i
		}
	}
	return best
}

func sameStrategy(a, b domain.Strategy) bool {
	return a.BatchSize == b.BatchSize && a.Difficulty == b.Difficulty && a.HintLevel == b.HintLevel
}

func dotOrZero(theta, x []float64) float64 {
	if len(theta) != len(x) {
		return 0
	}
	sum := 0.0
	for i := range theta {
		sum += theta[i] * x[i]
	}
	return sum
}

func softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	exps := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		e := math.Exp(s - max)
		exps[i] = e
		sum += e
	}
	if sum == 0 {
		uniform := 1.0 / float64(len(scores))
		for i := range exps {
			exps[i] = uniform
		}
		return exps
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}

func difficultyValue(d domain.Difficulty) float64 {
	switch d {
	case domain.DifficultyEasy:
		return 0
	case domain.DifficultyHard:
		return 1
	default:
		return 0.5
	}
}

// perturbContext overwrites the action-dependent dimensions of a base
// context vector (intervalScale, newRatio, difficulty, hintLevel/3,
// batchNorm and their cross terms) with the candidate action's values,
// leaving the user-state-derived dimensions untouched.
func perturbContext(base domain.ContextVector, action domain.Strategy, batchNormMax float64) domain.ContextVector {
	out := make([]float64, len(base.Values))
	copy(out, base.Values)
	if len(out) != features.Dimension {
		return domain.ContextVector{Values: out, Version: base.Version, Labels: base.Labels, TS: base.TS}
	}

	mem := base.Values[2] // C.mem
	m := base.Values[4]   // M

	intervalScale := action.IntervalScale
	newRatio := action.NewRatio
	difficulty := difficultyValue(action.Difficulty)
	hintNorm := float64(action.HintLevel) / 3
	batchNorm := 0.0
	if batchNormMax > 0 {
		batchNorm = float64(action.BatchSize) / batchNormMax
	}

	out[6] = intervalScale
	out[7] = newRatio
	out[8] = difficulty
	out[9] = hintNorm
	out[10] = batchNorm
	out[18] = mem * newRatio
	out[20] = newRatio * m

	return domain.ContextVector{Values: out, Version: base.Version, Labels: base.Labels, TS: base.TS}
}
