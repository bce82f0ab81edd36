// Package trace implements the per-decision explainability recorder
// (spec §4.l): one record per ensemble decision with the state snapshot,
// chosen action, per-learner scores, stage timings, and a deterministic
// explanation string, kept in a bounded in-memory ring buffer and
// persisted through the PersistenceManager.
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vocabamas/amas/internal/amas/rulebased"
	"github.com/vocabamas/amas/internal/domain"
)

// Source names which pathway produced the strategy in a record.
type Source string

const (
	SourceNormal    Source = "normal"
	SourceColdStart Source = "coldstart"
	SourceRuleGate  Source = "rule_gate"
)

// StageTiming is one named stage's wall-clock duration within processing
// a single event (the engine records "state_update" and "ensemble").
type StageTiming struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"durationMs"`
}

// Stage is a started-but-not-yet-ended timing span, mirroring the
// teacher's StartSpan/EndSpan pairing but scoped to one stage name
// inside a single decision rather than a cross-process trace.
type Stage struct {
	name  string
	start time.Time
}

func StartStage(name string) Stage {
	return Stage{name: name, start: time.Now()}
}

func (s Stage) End() StageTiming {
	return StageTiming{Name: s.name, DurationMS: float64(time.Since(s.start)) / float64(time.Millisecond)}
}

// LearnerScores mirrors decision.PerLearnerScores without importing the
// decision package, keeping trace a leaf dependency of the ensemble
// rather than the other way around.
type LearnerScores struct {
	LinUCB   []float64 `json:"linucb"`
	Thompson []float64 `json:"thompson"`
	ACTR     []float64 `json:"actr"`
	Rule     []float64 `json:"rule"`
	Combined []float64 `json:"combined"`
}

// Weights mirrors decision.Weights for the same reason.
type Weights struct {
	Thompson float64 `json:"thompson"`
	LinUCB   float64 `json:"linucb"`
	ACTR     float64 `json:"actr"`
	Rule     float64 `json:"rule"`
}

// Record is the full explainability record for one decision.
type Record struct {
	DecisionID       string             `json:"decisionId"`
	UserID           string             `json:"userId"`
	TS               int64              `json:"ts"`
	StateSnapshot    domain.UserState   `json:"stateSnapshot"`
	ChosenAction     domain.Strategy    `json:"chosenAction"`
	PerLearnerScores LearnerScores      `json:"perLearnerScores"`
	EnsembleWeights  Weights            `json:"ensembleWeights"`
	Source           Source             `json:"source"`
	StageTimings     []StageTiming      `json:"stageTimings"`
	Explanation      string             `json:"explanation"`
	Reward           *float64           `json:"reward,omitempty"`
}

// Config bounds the in-memory ring buffer.
type Config struct {
	Enabled    bool
	MaxRecords int
}

func DefaultConfig() Config {
	return Config{Enabled: true, MaxRecords: 10_000}
}

// Recorder holds a bounded ring buffer of recent decision records and
// persists each one through the PersistenceManager as it's recorded.
type Recorder struct {
	mu      sync.Mutex
	records []Record
	byID    map[string]int
	cfg     Config
	pm      domain.PersistenceManager
}

func NewRecorder(cfg Config, pm domain.PersistenceManager) *Recorder {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 10_000
	}
	return &Recorder{
		records: make([]Record, 0, cfg.MaxRecords),
		byID:    make(map[string]int),
		cfg:     cfg,
		pm:      pm,
	}
}

// NewDecisionID mints a fresh UUID for a decision record.
func NewDecisionID() string {
	return uuid.NewString()
}

// Record appends a record to the ring buffer (overwriting the oldest
// entry once at capacity) and best-effort persists it. A persistence
// failure here is logged, not propagated — explainability is
// informational and must never fail the request that produced it.
func (r *Recorder) Record(rec Record) {
	r.mu.Lock()
	if len(r.records) >= r.cfg.MaxRecords {
		evicted := r.records[0]
		delete(r.byID, evicted.DecisionID)
		r.records = r.records[1:]
		for id, idx := range r.byID {
			r.byID[id] = idx - 1
		}
	}
	r.records = append(r.records, rec)
	r.byID[rec.DecisionID] = len(r.records) - 1
	r.mu.Unlock()

	if r.pm != nil {
		_ = r.pm.SaveDecisionTrace(rec)
	}
}

// ApplyReward attaches a realised reward to an already-recorded decision,
// matching "reward, once applied, is stored on the same record" (§4.l).
func (r *Recorder) ApplyReward(decisionID string, reward float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byID[decisionID]
	if !ok {
		return false
	}
	r.records[idx].Reward = &reward
	if r.pm != nil {
		_ = r.pm.SaveDecisionTrace(r.records[idx])
	}
	return true
}

// Lookup finds a record by decisionId, checking the in-memory ring
// buffer before falling back to the persistence layer.
func (r *Recorder) Lookup(decisionID string) (Record, bool) {
	r.mu.Lock()
	idx, ok := r.byID[decisionID]
	if ok {
		rec := r.records[idx]
		r.mu.Unlock()
		return rec, true
	}
	r.mu.Unlock()

	if r.pm == nil {
		return Record{}, false
	}
	raw, err := r.pm.LoadDecisionTrace(decisionID)
	if err != nil || raw == nil {
		return Record{}, false
	}
	rec, ok := raw.(Record)
	return rec, ok
}

// Explain produces the deterministic explanation string for the
// rule-based breakpoint that would fire for the given state, which is
// also the tier the rule-based learner itself voted for (spec §4.m's
// ordered table, reused verbatim as the explanation source).
func Explain(in rulebased.Inputs) string {
	stress := rulebased.Stress(in)
	switch {
	case in.F >= 0.8:
		return "fatigue is high (F>=0.8): easing batch size and difficulty"
	case in.M <= -0.7:
		return "motivation is very low (M<=-0.7): easing batch size and difficulty"
	case in.A <= 0.25 && in.F >= 0.65:
		return "attention is low and fatigue is elevated: easing batch size and difficulty"
	case stress >= 0.7:
		return "combined stress is high (>=0.7): easing batch size and difficulty"
	case stress >= 0.4:
		return "combined stress is moderate (>=0.4): using a balanced strategy"
	case in.A <= 0.25:
		return "attention is low (A<=0.25): using a balanced strategy"
	case in.Mem >= 0.75:
		return "mastery is high (C.mem>=0.75): stepping up to a harder, larger batch"
	default:
		return "state is within normal range: using the default strategy"
	}
}
