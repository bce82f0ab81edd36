// Package coldstart implements the classify -> explore -> normal phase
// state machine that gates the decision ensemble during bootstrap
// (spec §4.g).
package coldstart

import "github.com/vocabamas/amas/internal/domain"

// Config controls the classify-window size and the probe sequences used
// during classify/explore.
type Config struct {
	ClassifyUpdatesRequired int
	ClassifyProbes          []domain.Strategy
	ExploreProbesByType     map[domain.UserType][]domain.Strategy
}

func DefaultConfig() Config {
	return Config{
		ClassifyUpdatesRequired: 5,
		ClassifyProbes: []domain.Strategy{
			{BatchSize: 8, Difficulty: domain.DifficultyMid, HintLevel: 1, IntervalScale: 1.0, NewRatio: 0.2},
			{BatchSize: 10, Difficulty: domain.DifficultyMid, HintLevel: 1, IntervalScale: 1.0, NewRatio: 0.2},
			{BatchSize: 6, Difficulty: domain.DifficultyEasy, HintLevel: 2, IntervalScale: 0.9, NewRatio: 0.1},
			{BatchSize: 12, Difficulty: domain.DifficultyHard, HintLevel: 0, IntervalScale: 1.1, NewRatio: 0.3},
			{BatchSize: 8, Difficulty: domain.DifficultyMid, HintLevel: 1, IntervalScale: 1.0, NewRatio: 0.2},
		},
		ExploreProbesByType: map[domain.UserType][]domain.Strategy{
			domain.UserFast: {
				{BatchSize: 14, Difficulty: domain.DifficultyHard, HintLevel: 0, IntervalScale: 1.2, NewRatio: 0.3},
				{BatchSize: 12, Difficulty: domain.DifficultyHard, HintLevel: 0, IntervalScale: 1.1, NewRatio: 0.25},
			},
			domain.UserStable: {
				{BatchSize: 10, Difficulty: domain.DifficultyMid, HintLevel: 1, IntervalScale: 1.0, NewRatio: 0.2},
				{BatchSize: 10, Difficulty: domain.DifficultyMid, HintLevel: 1, IntervalScale: 1.0, NewRatio: 0.2},
			},
			domain.UserCautious: {
				{BatchSize: 6, Difficulty: domain.DifficultyEasy, HintLevel: 2, IntervalScale: 0.8, NewRatio: 0.1},
				{BatchSize: 6, Difficulty: domain.DifficultyEasy, HintLevel: 2, IntervalScale: 0.9, NewRatio: 0.15},
			},
		},
	}
}

// ClassifierInputs summarise the classify-window observations used to
// assign a UserType once ClassifyUpdatesRequired is reached.
type ClassifierInputs struct {
	MeanResponseTimeMS float64
	MeanAccuracy       float64
	ErrorVariance      float64
}

// Classify buckets a user into fast/stable/cautious from the classify
// window's summary stats. Fast learners answer quickly and accurately;
// cautious users are slow with high variance; everyone else is stable.
func Classify(in ClassifierInputs) domain.UserType {
	switch {
	case in.MeanResponseTimeMS < 3000 && in.MeanAccuracy > 0.75:
		return domain.UserFast
	case in.MeanResponseTimeMS > 6000 || in.ErrorVariance > 0.3:
		return domain.UserCautious
	default:
		return domain.UserStable
	}
}

// Controller drives one user's cold-start state machine.
type Controller struct {
	cfg Config
}

func NewController(cfg Config) *Controller {
	if cfg.ClassifyUpdatesRequired <= 0 {
		cfg.ClassifyUpdatesRequired = 5
	}
	if len(cfg.ClassifyProbes) == 0 || cfg.ExploreProbesByType == nil {
		def := DefaultConfig()
		if len(cfg.ClassifyProbes) == 0 {
			cfg.ClassifyProbes = def.ClassifyProbes
		}
		if cfg.ExploreProbesByType == nil {
			cfg.ExploreProbesByType = def.ExploreProbesByType
		}
	}
	return &Controller{cfg: cfg}
}

// NewState seeds a fresh ColdStartState at phase classify.
func (c *Controller) NewState() *domain.ColdStartState {
	return &domain.ColdStartState{Phase: domain.PhaseClassify}
}

// Advance is called once per event, after state models update, and
// returns the strategy to use this call plus whether the ensemble should
// run (only true once phase==normal).
func (c *Controller) Advance(cs *domain.ColdStartState, classifierIn ClassifierInputs) (strategy domain.Strategy, ensembleActive bool) {
	switch cs.Phase {
	case domain.PhaseClassify:
		idx := cs.ClassifyUpdates % len(c.cfg.ClassifyProbes)
		strategy = c.cfg.ClassifyProbes[idx]
		cs.ClassifyUpdates++
		cs.UpdateCount++
		if cs.ClassifyUpdates >= c.cfg.ClassifyUpdatesRequired {
			cs.UserType = Classify(classifierIn)
			cs.Advance(domain.PhaseExplore)
			cs.ProbeIndex = 0
		}
		return strategy, false

	case domain.PhaseExplore:
		probes := c.cfg.ExploreProbesByType[cs.UserType]
		if len(probes) == 0 {
			probes = c.cfg.ExploreProbesByType[domain.UserStable]
		}
		if cs.ProbeIndex >= len(probes) {
			settled := probes[len(probes)-1]
			cs.SettledStrategy = &settled
			cs.Advance(domain.PhaseNormal)
			cs.UpdateCount++
			return settled, true
		}
		strategy = probes[cs.ProbeIndex]
		cs.ProbeIndex++
		cs.UpdateCount++
		return strategy, false

	default: // normal
		cs.UpdateCount++
		return domain.Strategy{}, true
	}
}

// Override forces the controller to normal with a settled strategy
// (the "manual override" transition in spec §4.g's table).
func (c *Controller) Override(cs *domain.ColdStartState, settled domain.Strategy) {
	cs.SettledStrategy = &settled
	cs.Advance(domain.PhaseNormal)
}
