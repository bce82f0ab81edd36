// Package rulebased implements the fixed fatigue-indexed fallback policy
// used when the decision ensemble has no learner available, during
// cold-start, as the floor scorer in the ensemble vote, and as a
// standalone emergency gate the orchestrator checks ahead of the
// ensemble once a user is fatigued, demotivated, or stressed past the
// tier-1 breakpoint (spec §4.m, §8 Scenario S2).
package rulebased

import "github.com/vocabamas/amas/internal/domain"

// Inputs bundles the user-state snapshot the rule table reads.
type Inputs struct {
	A    float64
	F    float64
	M    float64
	Mem  float64 // C.mem
	Conf float64
}

// Stress computes stress = 0.5F + 0.3(1-A) + 0.2(1-(M+1)/2).
func Stress(in Inputs) float64 {
	return 0.5*in.F + 0.3*(1-in.A) + 0.2*(1-(in.M+1)/2)
}

// GateFired reports whether the tier-1 emergency breakpoint trips for
// in — the same predicate Evaluate's first branch uses. Exported so the
// orchestrator can short-circuit the ensemble vote and commit to this
// tier directly, instead of leaving it as one 10%-weighted term a noisy
// learner can outvote.
func GateFired(in Inputs) bool {
	return in.F >= 0.8 || in.M <= -0.7 || (in.A <= 0.25 && in.F >= 0.65) || Stress(in) >= 0.7
}

// Evaluate applies the fixed breakpoint table and returns the strategy
// for the current state. This never errors and never depends on
// learned parameters, which is what makes it safe as the last-resort
// fallback when every bandit learner has been skipped.
func Evaluate(in Inputs) domain.Strategy {
	stress := Stress(in)

	switch {
	case GateFired(in):
		return domain.Strategy{
			BatchSize:     5,
			Difficulty:    domain.DifficultyEasy,
			HintLevel:     2,
			IntervalScale: 0.8,
			NewRatio:      0.1,
		}

	case stress >= 0.4 || in.A <= 0.25:
		return domain.Strategy{
			BatchSize:     8,
			Difficulty:    domain.DifficultyMid,
			HintLevel:     1,
			IntervalScale: 1.0,
			NewRatio:      0.2,
		}

	default:
		difficulty := domain.DifficultyMid
		newRatio := 0.2
		if in.Mem >= 0.75 {
			difficulty = domain.DifficultyHard
			newRatio = 0.3
		}
		return domain.Strategy{
			BatchSize:     12,
			Difficulty:    difficulty,
			HintLevel:     0,
			IntervalScale: 1.2,
			NewRatio:      newRatio,
		}
	}
}
