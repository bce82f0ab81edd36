// Package domain contains pure business types with ZERO infrastructure
// imports. This is the innermost ring of clean architecture — it depends
// on nothing else in this module.
package domain

import "math"

// ColdStartPhase is the cold-start controller's phase (spec §4.g). Ordinal
// order matters: phases are monotonic, a user never moves backward.
type ColdStartPhase int

const (
	PhaseClassify ColdStartPhase = iota
	PhaseExplore
	PhaseNormal
)

func (p ColdStartPhase) String() string {
	switch p {
	case PhaseClassify:
		return "classify"
	case PhaseExplore:
		return "explore"
	case PhaseNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// UserType buckets a user once classified during the cold-start window.
type UserType string

const (
	UserFast     UserType = "fast"
	UserStable   UserType = "stable"
	UserCautious UserType = "cautious"
)

// CognitiveState is the C={mem,speed,stability} component of UserState.
type CognitiveState struct {
	Mem       float64 `json:"mem"`
	Speed     float64 `json:"speed"`
	Stability float64 `json:"stability"`
}

func (c *CognitiveState) Clamp() {
	c.Mem = Clamp01(c.Mem)
	c.Speed = Clamp01(c.Speed)
	c.Stability = Clamp01(c.Stability)
}

// UserState is the per-user latent state tuple. One per user; created on
// first event, updated in place, never deleted while active.
type UserState struct {
	UserID     string          `json:"userId"`
	A          float64         `json:"a"`    // attention [0,1]
	F          float64         `json:"f"`    // fatigue [0.05,1]
	M          float64         `json:"m"`    // motivation [-1,1]
	C          CognitiveState  `json:"c"`
	Conf       float64         `json:"conf"` // [0,1]
	TS         int64           `json:"ts"`   // ms
	ColdStart  *ColdStartState `json:"coldStart,omitempty"`
	UpdateCount int64          `json:"updateCount"`
}

// Clamp enforces invariant 1: every UserState field stays within its
// declared range after every process() call. NaN is never allowed to
// propagate — it is replaced by a per-field default: A 0.5, F 0.05, M 0,
// Conf 0, and 0 for each cognitive component.
func (s *UserState) Clamp() {
	s.A = clampNaN(s.A, 0, 1, 0.5)
	s.F = clampNaN(s.F, 0.05, 1, 0.05)
	s.M = clampNaN(s.M, -1, 1, 0)
	s.C.Clamp()
	s.Conf = clampNaN(s.Conf, 0, 1, 0)
}

func clampNaN(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 clamps v into [0,1], mapping NaN to 0.
func Clamp01(v float64) float64 { return clampNaN(v, 0, 1, 0) }

// ClampRange clamps v into [lo,hi], mapping NaN to lo.
func ClampRange(v, lo, hi float64) float64 { return clampNaN(v, lo, hi, lo) }

// ColdStartState exists only during the cold-start window.
type ColdStartState struct {
	Phase           ColdStartPhase `json:"phase"`
	UserType        UserType       `json:"userType,omitempty"`
	ProbeIndex      int            `json:"probeIndex"`
	ClassifyUpdates int            `json:"classifyUpdates"`
	UpdateCount     int            `json:"updateCount"`
	SettledStrategy *Strategy      `json:"settledStrategy,omitempty"`
}

// Advance moves to the next phase, enforcing monotonicity (invariant 7):
// once normal, never returns to classify.
func (c *ColdStartState) Advance(next ColdStartPhase) {
	if next > c.Phase {
		c.Phase = next
	}
}

// HabitProfile tracks a user's preferred study rhythm.
type HabitProfile struct {
	TimePref           [24]float32 `json:"timePref"`
	SessionMedianMin   float64     `json:"sessionMedianMinutes"`
	BatchMedian        float64     `json:"batchMedian"`
	PreferredTimeSlots []int       `json:"preferredTimeSlots,omitempty"`
	TimeEvents         int         `json:"timeEvents"`
	SessionSamples     int         `json:"sessions"`
	BatchSamples       int         `json:"batches"`
}

// TrendLabel classifies a user's recent ability trajectory.
type TrendLabel string

const (
	TrendUp    TrendLabel = "up"
	TrendFlat  TrendLabel = "flat"
	TrendStuck TrendLabel = "stuck"
	TrendDown  TrendLabel = "down"
)

// TrendState is derived from a rolling window of ability samples.
type TrendState struct {
	Label      TrendLabel `json:"label"`
	SlopePerDay float64   `json:"slopePerDay"`
	Confidence  float64   `json:"confidence"`
}

// MemoryEvent is one observation in a word's retrieval history, used by
// the ACT-R activation function.
type MemoryEvent struct {
	SecondsAgo float64 `json:"secondsAgo"`
	IsCorrect  bool    `json:"isCorrect"`
}

// MemoryTrace is the ordered (oldest-last) retrieval history for one
// (user, word) pair. Bounded to MaxMemoryEvents per word.
type MemoryTrace struct {
	UserID string        `json:"userId"`
	WordID string        `json:"wordId"`
	Events []MemoryEvent `json:"events"`
}

const MaxMemoryEvents = 50

// Append adds an event, evicting the oldest when over capacity.
func (t *MemoryTrace) Append(secondsAgo float64, correct bool) {
	t.Events = append([]MemoryEvent{{SecondsAgo: secondsAgo, IsCorrect: correct}}, t.Events...)
	if len(t.Events) > MaxMemoryEvents {
		t.Events = t.Events[:MaxMemoryEvents]
	}
}

// BanditModel is a per-user LinUCB linear model. A must remain symmetric
// positive-definite; enforced by keeping λI in the diagonal (λ≥1e-3).
type BanditModel struct {
	D           int       `json:"d"`
	Lambda      float64   `json:"lambda"`
	Alpha       float64   `json:"alpha"`
	A           []float64 `json:"a"` // d*d, row-major
	B           []float64 `json:"b"` // d
	UpdateCount int64     `json:"updateCount"`
}

// ContextVector is the fixed-order feature vector produced by the
// feature extractor (spec §4.a), carrying its own version for alignment.
type ContextVector struct {
	Values  []float64 `json:"values"`
	Version int       `json:"version"`
	Labels  []string  `json:"labels"`
	TS      int64     `json:"ts"`
}

// AlignTo zero-pads or truncates v to dimension d, matching the stored
// dimension to the current model dimension (spec §4.a, §7 "auto-aligned").
func (v *ContextVector) AlignTo(d int) (changed bool) {
	if len(v.Values) == d {
		return false
	}
	aligned := make([]float64, d)
	copy(aligned, v.Values)
	v.Values = aligned
	return true
}

// RewardStatus is the lifecycle state of a reward-queue item.
type RewardStatus string

const (
	RewardPending    RewardStatus = "PENDING"
	RewardApplied    RewardStatus = "APPLIED"
	RewardDeadLetter RewardStatus = "DEAD_LETTER"
)

// RewardQueueItem is a delayed reward awaiting application to a bandit.
type RewardQueueItem struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	Reward         float64      `json:"reward"`
	ScheduledFor   int64        `json:"scheduledFor"`
	SessionID      string       `json:"sessionId,omitempty"`
	AnswerRecordID string       `json:"answerRecordId,omitempty"`
	Attempts       int          `json:"attempts"`
	Status         RewardStatus `json:"status"`
}

const MaxRewardAttempts = 5

// VisualFatigueSample is a raw exogenous signal sample. Validated at the
// boundary; out-of-range is rejected before it enters the core.
type VisualFatigueSample struct {
	Score         float64  `json:"score"`
	Perclos       float64  `json:"perclos"`
	BlinkRate     float64  `json:"blinkRate"`
	YawnCount     int      `json:"yawnCount"`
	HeadPitch     *float64 `json:"headPitch,omitempty"`
	HeadYaw       *float64 `json:"headYaw,omitempty"`
	HeadRoll      *float64 `json:"headRoll,omitempty"`
	Squint        *float64 `json:"squint,omitempty"`
	GazeOffScreen *bool    `json:"gazeOffScreen,omitempty"`
	Confidence    float64  `json:"confidence"`
	Timestamp     int64    `json:"timestamp"`
}

// Valid checks the sample's declared ranges (spec §3).
func (s VisualFatigueSample) Valid() bool {
	if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
		return false
	}
	if math.IsNaN(s.Perclos) || s.Perclos < 0 || s.Perclos > 1 {
		return false
	}
	if math.IsNaN(s.BlinkRate) || s.BlinkRate < 0 {
		return false
	}
	if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return false
	}
	return true
}

// FatigueLevel buckets fused fatigue for display and recommendation text.
type FatigueLevel string

const (
	LevelAlert    FatigueLevel = "alert"
	LevelMild     FatigueLevel = "mild"
	LevelModerate FatigueLevel = "moderate"
	LevelSevere   FatigueLevel = "severe"
)

// FusionResult is the output of the fusion engine (spec §4.d).
type FusionResult struct {
	FusedFatigue    float64      `json:"fusedFatigue"`
	Visual          float64      `json:"visual"`
	Behavior        float64      `json:"behavior"`
	Temporal        float64      `json:"temporal"`
	Weights         FusionWeights `json:"weights"`
	DominantSource  string       `json:"dominantSource"`
	Conflict        *Conflict    `json:"conflict,omitempty"`
	Level           FatigueLevel `json:"level"`
	Recommendations []string     `json:"recommendations"`
}

// FusionWeights are the normalised per-source fusion weights (sum to 1).
type FusionWeights struct {
	Behavior float64 `json:"behavior"`
	Visual   float64 `json:"visual"`
	Temporal float64 `json:"temporal"`
}

// Conflict describes a behavior/visual fatigue disagreement (spec §4.d).
type Conflict struct {
	Dominant    string  `json:"dominant"`
	Description string  `json:"description"`
	Delta       float64 `json:"delta"`
}

// GaussianStats is a running {mean,std} pair used by the threshold
// learner and personalised baselines.
type GaussianStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// PersonalisedThresholds are Bayesian-updated per-user baselines (spec §4.f).
type PersonalisedThresholds struct {
	Perclos      GaussianStats `json:"perclos"`
	BlinkRate    GaussianStats `json:"blinkRate"`
	FatigueScore GaussianStats `json:"fatigueScore"`
	UpdatedAt    int64         `json:"updatedAt"`
	SampleCount  int           `json:"sampleCount"`
}

// Difficulty is the discrete difficulty level of a chosen strategy.
type Difficulty string

const (
	DifficultyEasy Difficulty = "easy"
	DifficultyMid  Difficulty = "mid"
	DifficultyHard Difficulty = "hard"
)

// Strategy is one action in the bandit's action set: the thing the
// engine ultimately returns to the caller.
type Strategy struct {
	BatchSize     int        `json:"batch_size"`
	Difficulty    Difficulty `json:"difficulty"`
	HintLevel     int        `json:"hint_level"`
	IntervalScale float64    `json:"interval_scale"`
	NewRatio      float64    `json:"new_ratio"`
}

// LearningEventInput is the raw per-answer telemetry event (spec §6.1).
type LearningEventInput struct {
	WordID              string  `json:"wordId"`
	IsCorrect           bool    `json:"isCorrect"`
	ResponseTimeMS      float64 `json:"responseTime"`
	FocusLossDuration   float64 `json:"focusLossDuration,omitempty"`
	HesitationCount     int     `json:"hesitationCount,omitempty"`
	BackspaceCount      int     `json:"backspaceCount,omitempty"`
	IdleMS              float64 `json:"idleMs,omitempty"`
}

// EventContext is the optional request-scoped context carried with an event.
type EventContext struct {
	WordID          string  `json:"wordId,omitempty"`
	WordDifficulty  float64 `json:"wordDifficulty,omitempty"`
	SessionLength   float64 `json:"sessionLength,omitempty"`
	RecentAccuracy  float64 `json:"recentAccuracy,omitempty"`
}

// AmasProcessResult is returned by POST /amas/process (spec §6.1).
type AmasProcessResult struct {
	SessionID           string     `json:"sessionId"`
	Strategy            Strategy   `json:"strategy"`
	State               UserState  `json:"state"`
	Explanation         string     `json:"explanation"`
	Suggestion          string     `json:"suggestion,omitempty"`
	ShouldBreak         bool       `json:"shouldBreak,omitempty"`
	WordMasteryDecision string     `json:"wordMasteryDecision,omitempty"`
	DecisionID          string     `json:"decisionId"`
}
