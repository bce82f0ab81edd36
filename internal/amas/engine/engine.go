// Package engine is the per-event orchestrator (spec §4.m): it wires the
// feature extractor, state models, fusion, cold-start controller, decision
// ensemble, smart router, reward pipeline, registry and trace recorder
// into the two request handlers the API surfaces — process() and the
// visual-fatigue ingest path — plus the supporting explain/learning-curve/
// counterfactual/forgetting-alert operations.
package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/vocabamas/amas/internal/amas/actr"
	"github.com/vocabamas/amas/internal/amas/bandit"
	"github.com/vocabamas/amas/internal/amas/coldstart"
	"github.com/vocabamas/amas/internal/amas/decision"
	"github.com/vocabamas/amas/internal/amas/features"
	"github.com/vocabamas/amas/internal/amas/fusion"
	"github.com/vocabamas/amas/internal/amas/registry"
	"github.com/vocabamas/amas/internal/amas/reward"
	"github.com/vocabamas/amas/internal/amas/router"
	"github.com/vocabamas/amas/internal/amas/rulebased"
	"github.com/vocabamas/amas/internal/amas/state"
	"github.com/vocabamas/amas/internal/amas/trace"
	"github.com/vocabamas/amas/internal/amas/visual"
	"github.com/vocabamas/amas/internal/domain"
	"github.com/vocabamas/amas/internal/infra/observability"
)

// Config bundles every tunable the engine needs beyond the per-package
// defaults already validated inside each constructor.
type Config struct {
	Actions       []domain.Strategy
	BatchNormMax  float64
	RTNormMaxMS   float64
	BanditLambda  float64
	BanditAlpha   float64
	ThompsonSigma float64
	ActR          actr.Config
	Decision      decision.Config
	ColdStart     coldstart.Config
	Fusion        fusion.Config
	DynamicWeight fusion.DynamicWeightConfig
	Threshold     fusion.ThresholdLearnerConfig
	Visual        visual.Config
	MaxUsers      int
	Trace         trace.Config
}

// DefaultActionCatalog is the fixed grid of candidate strategies the
// ensemble scores every decision. Grounded on coldstart's probe-table
// shape (spec §4.g), generalised to cover the full batch/difficulty/hint
// combinations the spec's Strategy type exposes.
func DefaultActionCatalog() []domain.Strategy {
	return []domain.Strategy{
		{BatchSize: 5, Difficulty: domain.DifficultyEasy, HintLevel: 2, IntervalScale: 0.8, NewRatio: 0.1},
		{BatchSize: 8, Difficulty: domain.DifficultyEasy, HintLevel: 2, IntervalScale: 0.9, NewRatio: 0.15},
		{BatchSize: 8, Difficulty: domain.DifficultyMid, HintLevel: 1, IntervalScale: 1.0, NewRatio: 0.2},
		{BatchSize: 10, Difficulty: domain.DifficultyMid, HintLevel: 1, IntervalScale: 1.0, NewRatio: 0.2},
		{BatchSize: 10, Difficulty: domain.DifficultyMid, HintLevel: 0, IntervalScale: 1.05, NewRatio: 0.25},
		{BatchSize: 12, Difficulty: domain.DifficultyHard, HintLevel: 0, IntervalScale: 1.1, NewRatio: 0.3},
		{BatchSize: 14, Difficulty: domain.DifficultyHard, HintLevel: 0, IntervalScale: 1.2, NewRatio: 0.3},
	}
}

func DefaultConfig() Config {
	return Config{
		Actions:       DefaultActionCatalog(),
		BatchNormMax:  20,
		RTNormMaxMS:   10_000,
		BanditLambda:  1.0,
		BanditAlpha:   0.5,
		ThompsonSigma: 1.0,
		ActR:          actr.DefaultConfig(),
		Decision:      decision.DefaultConfig(),
		ColdStart:     coldstart.DefaultConfig(),
		Fusion:        fusion.DefaultConfig(),
		DynamicWeight: fusion.DefaultDynamicWeightConfig(),
		Threshold:     fusion.DefaultThresholdLearnerConfig(),
		Visual:        visual.DefaultConfig(),
		MaxUsers:      10_000,
		Trace:         trace.DefaultConfig(),
	}
}

// Engine is the process-wide orchestrator. Per-user state lives in the
// Registry; every other field here is stateless config shared safely
// across users (registry package's Design Note classification).
type Engine struct {
	cfg    Config
	pm     domain.PersistenceManager
	native domain.NativeAccelerator

	reg *registry.Registry

	attention  *state.AttentionMonitor
	fatigueEst *state.FatigueEstimator
	motivation *state.MotivationTracker
	cognitive  *state.CognitiveProfiler
	habit      *state.HabitRecognizer

	fusionEngine *fusion.Engine

	coldstartCtl *coldstart.Controller
	ensemble     *decision.Ensemble
	actrModel    *actr.Model
	thompson     *bandit.ThompsonSampler

	smartRouter *router.SmartRouter
	rewardQueue *reward.Queue
	rewardProc  *reward.Processor
	tracer      *trace.Recorder

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewEngine wires every package into one orchestrator. native may be nil
// (no accelerator registered); the smart router degrades to the pure-Go
// fallback on every operation in that case, exactly as it would in
// production before a native extension is deployed.
func NewEngine(cfg Config, pm domain.PersistenceManager, native domain.NativeAccelerator) *Engine {
	if len(cfg.Actions) == 0 {
		cfg.Actions = DefaultActionCatalog()
	}
	if cfg.BatchNormMax <= 0 {
		cfg.BatchNormMax = 20
	}
	if cfg.RTNormMaxMS <= 0 {
		cfg.RTNormMaxMS = 10_000
	}

	e := &Engine{
		cfg:          cfg,
		pm:           pm,
		native:       native,
		attention:    state.NewAttentionMonitor(state.DefaultAttentionMonitorConfig()),
		fatigueEst:   state.NewFatigueEstimator(state.DefaultFatigueEstimatorConfig()),
		motivation:   state.NewMotivationTracker(state.DefaultMotivationTrackerConfig()),
		cognitive:    state.NewCognitiveProfiler(state.DefaultCognitiveProfilerConfig()),
		habit:        state.NewHabitRecognizer(state.DefaultHabitRecognizerConfig()),
		fusionEngine: fusion.NewEngine(cfg.Fusion),
		coldstartCtl: coldstart.NewController(cfg.ColdStart),
		ensemble:     decision.NewEnsemble(cfg.Decision, cfg.ActR),
		actrModel:    actr.NewModel(cfg.ActR),
		thompson:     bandit.NewThompsonSampler(cfg.ThompsonSigma, rand.NewSource(1)),
		smartRouter:  router.NewSmartRouter(native),
		rewardQueue:  reward.NewQueue(),
		tracer:       trace.NewRecorder(cfg.Trace, pm),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	e.smartRouter.SetPolicy("actr_activation", router.Policy{ForceRoute: router.RouteAuto, NativeDataSizeMin: 8, NativeAvailable: native != nil})
	e.smartRouter.OnMetrics(func(operation, outcome, route string, durationMS float64) {
		observability.NativeCallTotal.WithLabelValues(operation, route, outcome).Inc()
		observability.NativeCallDurationMS.WithLabelValues(operation, route).Observe(durationMS)
	})
	e.smartRouter.Breaker("actr_activation").OnTransition(func(from, to router.State) {
		observability.CircuitBreakerState.WithLabelValues("actr_activation").Set(circuitStateValue(to))
	})

	factories := registry.Factories{
		NewTrendAnalyzer:    func() *state.TrendAnalyzer { return state.NewTrendAnalyzer(state.DefaultTrendAnalyzerConfig()) },
		NewDynamicWeight:    func() *fusion.DynamicWeightCalculator { return fusion.NewDynamicWeightCalculator(cfg.DynamicWeight) },
		NewThresholdLearner: func() *fusion.ThresholdLearner { return fusion.NewThresholdLearner(cfg.Threshold) },
		NewVisualProcessor:  func() *visual.Processor { return visual.NewProcessor(cfg.Visual) },
	}
	e.reg = registry.NewRegistry(cfg.MaxUsers, factories)

	if pm != nil {
		e.reg.OnLoad(func(userID string, bundle *registry.UserBundle) {
			if s, err := pm.LoadState(userID); err == nil && s != nil {
				bundle.State = s
			}
			if m, err := pm.LoadModel(userID); err == nil && m != nil {
				bundle.Model = m
			}
			if h, err := pm.LoadHabit(userID); err == nil && h != nil {
				bundle.Habit = h
			}
			if th, err := pm.LoadThresholds(userID); err == nil && th != nil {
				bundle.Thresholds = th
			}
		})
		e.reg.OnEvict(func(userID string, bundle *registry.UserBundle) {
			if err := pm.SaveState(userID, bundle.State, bundle.ColdStart); err != nil {
				log.Printf("[amas.engine] evict: save state for %s failed: %v", userID, err)
			}
			if bundle.Model != nil {
				if err := pm.SaveModel(userID, bundle.Model); err != nil {
					log.Printf("[amas.engine] evict: save model for %s failed: %v", userID, err)
				}
			}
		})
	}

	e.rewardProc = reward.NewProcessor(pm, e.contextLookup)
	return e
}

func (e *Engine) contextLookup(userID, answerRecordID, sessionID string) (*domain.ContextVector, error) {
	if e.pm == nil {
		return nil, fmt.Errorf("%w: no persistence manager configured", domain.ErrPersistenceTransient)
	}
	return e.pm.LoadContextVector(userID, answerRecordID, sessionID)
}

func circuitStateValue(s router.State) float64 {
	switch s {
	case router.StateOpen:
		return 1
	case router.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

func (e *Engine) drawEpsilon() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.NormFloat64()
}

// Process implements POST /amas/process: updates every state model from
// one answer event, advances cold-start or runs the decision ensemble,
// and returns the chosen strategy with its explanation and decision id.
// The answer event's own decisionID doubles as the reward pipeline's
// answerRecordID: one event produces at most one delayed reward.
func (e *Engine) Process(ctx context.Context, userID, sessionID string, in domain.LearningEventInput, ec domain.EventContext, nowMS int64) (domain.AmasProcessResult, error) {
	if userID == "" {
		return domain.AmasProcessResult{}, domain.ErrInvalidUserID
	}
	if in.WordID == "" || in.ResponseTimeMS < 0 {
		return domain.AmasProcessResult{}, domain.ErrInvalidEvent
	}

	var stageTimings []trace.StageTiming
	stStateUpdate := trace.StartStage("state_update")
	bundle := e.reg.Get(userID)

	hourOfDay := float64((nowMS/3_600_000)%24) + float64((nowMS/60_000)%60)/60
	sessionMinutes := ec.SessionLength

	errorRate := 0.0
	if !in.IsCorrect {
		errorRate = 1.0
	}
	rtIncrease := domain.Clamp01(in.ResponseTimeMS/e.cfg.RTNormMaxMS - 0.3)
	focusLossRatio := domain.ClampRange(safeDiv(in.FocusLossDuration, in.ResponseTimeMS+1), 0, 1)
	idleRatio := domain.ClampRange(safeDiv(in.IdleMS, in.ResponseTimeMS+in.IdleMS+1), 0, 1)

	// Last entry is a negated correctness signal: a correct, low-friction
	// answer pulls the weighted dot product below zero so sigmoid(-dot)
	// rises above 0.5, while every other entry is a badness signal that
	// pushes it back down.
	behavioral := []float64{
		errorRate, rtIncrease, focusLossRatio,
		domain.Clamp01(float64(in.HesitationCount) / 5),
		domain.Clamp01(float64(in.BackspaceCount) / 5),
		idleRatio, errorRate * idleRatio, -(1 - errorRate),
	}
	bundle.State.A = e.attention.Update(bundle.State.A, behavioral)
	bundle.State.F = e.fatigueEst.Update(bundle.State.F, state.BehaviorInputs{
		ErrorRate: errorRate, RTIncreaseRatio: rtIncrease, FocusLossRatio: focusLossRatio, IdleRatio: idleRatio,
	})

	accuracyNow := 1.0
	if !in.IsCorrect {
		accuracyNow = 0.0
		bundle.Streak = 0
	} else {
		bundle.Streak++
	}
	accuracyDelta := accuracyNow - bundle.PrevAccuracy
	bundle.PrevAccuracy = accuracyNow
	bundle.State.M = e.motivation.Update(bundle.State.M, state.MotivationInputs{
		StreakLength:            bundle.Streak,
		RecentAccuracyDelta:     accuracyDelta,
		SessionLengthMinutes:    sessionMinutes,
		PreferredSessionMinutes: bundle.Habit.SessionMedianMin,
	})

	errVariance := 0.0
	if !in.IsCorrect {
		errVariance = 0.5
	}
	mem, speed, stability := e.cognitive.Update(bundle.Cognitive, state.RecentStats{
		Accuracy: accuracyNow, AvgResponseTime: in.ResponseTimeMS, ErrorVariance: errVariance, ReferenceRT: 3000,
	})
	bundle.State.C.Mem, bundle.State.C.Speed, bundle.State.C.Stability = mem, speed, stability
	bundle.State.Conf = stability
	bundle.State.TS = nowMS
	bundle.State.UpdateCount++
	bundle.State.Clamp()

	e.habit.Observe(bundle.Habit, hourOfDay, sessionMinutes, bundle.Habit.BatchMedian)
	bundle.Trend.Observe(nowMS, mem)
	_ = bundle.Trend.Classify()

	memTrace := bundle.MemoryTraces[in.WordID]
	if memTrace == nil {
		memTrace = &domain.MemoryTrace{UserID: userID, WordID: in.WordID}
		bundle.MemoryTraces[in.WordID] = memTrace
	}
	for i := range memTrace.Events {
		memTrace.Events[i].SecondsAgo += float64(sessionMinutes) * 60
	}
	memTrace.Append(0, in.IsCorrect)
	stageTimings = append(stageTimings, stStateUpdate.End())

	ruleIn := rulebased.Inputs{A: bundle.State.A, F: bundle.State.F, M: bundle.State.M, Mem: bundle.State.C.Mem, Conf: bundle.State.Conf}

	var strategy domain.Strategy
	var decResult decision.Result
	var ctxVec domain.ContextVector
	src := trace.SourceNormal
	ensembleRan := false

	if bundle.ColdStart.Phase != domain.PhaseNormal {
		classifierIn := coldstart.ClassifierInputs{
			MeanResponseTimeMS: in.ResponseTimeMS,
			MeanAccuracy:       accuracyNow,
			ErrorVariance:      errVariance,
		}
		strategy, _ = e.coldstartCtl.Advance(bundle.ColdStart, classifierIn)
		src = trace.SourceColdStart
	} else if rulebased.GateFired(ruleIn) {
		// Fatigue/motivation/stress past the tier-1 breakpoint commits
		// to the rule table directly rather than leaving it as one
		// outvotable term in the ensemble's weighted score.
		strategy = rulebased.Evaluate(ruleIn)
		src = trace.SourceRuleGate
	} else {
		stEnsemble := trace.StartStage("ensemble")
		if bundle.Model == nil {
			bundle.Model = bandit.NewModel(features.Dimension, e.cfg.BanditLambda, e.cfg.BanditAlpha)
		}
		ctxVec = features.Build(*bundle.State, features.Inputs{
			RecentAccuracy: ec.RecentAccuracy,
			IntervalScale:  1.0,
			NewRatio:       0.2,
			Difficulty:     ec.WordDifficulty,
			HintLevel:      1,
			BatchSize:      int(bundle.Habit.BatchMedian),
			BatchNormMax:   e.cfg.BatchNormMax,
			ResponseTimeMS: in.ResponseTimeMS,
			RTNormMaxMS:    e.cfg.RTNormMaxMS,
			TimeOfDayHour:  hourOfDay,
			PreferredHour:  preferredHour(bundle.Habit),
		})
		ctxVec.AlignTo(bundle.Model.D)

		thompsonTheta, err := e.thompson.SampleTheta(bundle.Model)
		if err != nil {
			log.Printf("[amas.engine] thompson sample failed for %s: %v", userID, err)
			thompsonTheta = nil
		}
		epsilon := e.drawEpsilon()

		result, err := e.ensemble.Decide(bundle.Model, thompsonTheta, memTrace, epsilon, ctxVec, e.cfg.Actions, ruleIn)
		if err != nil {
			log.Printf("[amas.engine] ensemble decide failed for %s, degrading to rule-based: %v", userID, err)
			strategy = rulebased.Evaluate(ruleIn)
		} else {
			strategy = result.Action
			decResult = result
			ensembleRan = true
		}
		stageTimings = append(stageTimings, stEnsemble.End())
	}

	decisionID := trace.NewDecisionID()
	if ensembleRan && e.pm != nil {
		if err := e.pm.SaveContextVector(userID, decisionID, sessionID, ctxVec); err != nil {
			log.Printf("[amas.engine] save context vector for %s failed: %v", userID, err)
		}
	}

	explanation := trace.Explain(ruleIn)
	e.tracer.Record(trace.Record{
		DecisionID:    decisionID,
		UserID:        userID,
		TS:            nowMS,
		StateSnapshot: *bundle.State,
		ChosenAction:  strategy,
		PerLearnerScores: trace.LearnerScores{
			LinUCB: decResult.Scores.LinUCB, Thompson: decResult.Scores.Thompson,
			ACTR: decResult.Scores.ACTR, Rule: decResult.Scores.Rule, Combined: decResult.Scores.Combined,
		},
		EnsembleWeights: trace.Weights{
			Thompson: e.cfg.Decision.Weights.Thompson, LinUCB: e.cfg.Decision.Weights.LinUCB,
			ACTR: e.cfg.Decision.Weights.ACTR, Rule: e.cfg.Decision.Weights.Rule,
		},
		Source:       src,
		StageTimings: stageTimings,
		Explanation:  explanation,
	})

	if e.pm != nil {
		if err := e.pm.SaveState(userID, bundle.State, bundle.ColdStart); err != nil {
			log.Printf("[amas.engine] save state for %s failed: %v", userID, err)
		}
		if bundle.Model != nil {
			if err := e.pm.SaveModel(userID, bundle.Model); err != nil {
				log.Printf("[amas.engine] save model for %s failed: %v", userID, err)
			}
		}
		if err := e.pm.SaveHabit(userID, bundle.Habit); err != nil {
			log.Printf("[amas.engine] save habit for %s failed: %v", userID, err)
		}
		if err := e.pm.SaveMemoryTrace(userID, memTrace); err != nil {
			log.Printf("[amas.engine] save memory trace for %s/%s failed: %v", userID, in.WordID, err)
		}
		if err := e.pm.AppendAbilitySample(userID, domain.AbilitySample{TS: nowMS, Ability: mem}); err != nil {
			log.Printf("[amas.engine] append ability sample for %s failed: %v", userID, err)
		}
	}

	return domain.AmasProcessResult{
		SessionID:   sessionID,
		Strategy:    strategy,
		State:       *bundle.State,
		Explanation: explanation,
		ShouldBreak: bundle.State.F >= 0.75,
		DecisionID:  decisionID,
	}, nil
}

func preferredHour(h *domain.HabitProfile) float64 {
	if len(h.PreferredTimeSlots) == 0 {
		return -1
	}
	return float64(h.PreferredTimeSlots[0])
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// ProcessVisualFatigue implements POST /visual-fatigue/metrics: validates
// and decays the sample, fuses it with the user's current behavioral and
// temporal fatigue, and adapts the user's personalised thresholds.
func (e *Engine) ProcessVisualFatigue(userID string, sample domain.VisualFatigueSample, nowMS int64, sessionMinutes float64) (domain.FusionResult, error) {
	if userID == "" {
		return domain.FusionResult{}, domain.ErrInvalidUserID
	}
	if !sample.Valid() {
		return domain.FusionResult{}, domain.ErrInvalidFatigueData
	}

	bundle := e.reg.Get(userID)
	processed := bundle.Visual.Process(sample, nowMS)
	if !processed.IsValid {
		return domain.FusionResult{}, domain.ErrInvalidFatigueData
	}

	bundle.DynamicWeight.Observe(processed.Score, bundle.State.F)
	weights, trust := bundle.DynamicWeight.Compute(processed.Confidence, processed.Freshness, fusion.SceneContext{
		FusedScore:       bundle.Kalman.Smoothed,
		VisualScore:      processed.Score,
		BehaviorScore:    bundle.State.F,
		VisualConfidence: processed.Confidence,
		SessionMinutes:   sessionMinutes,
		HourOfDay:        float64((nowMS / 3_600_000) % 24),
	})
	_ = trust

	temporal := e.fusionEngine.Temporal(sessionMinutes)
	result := e.fusionEngine.Fuse(bundle.Kalman, bundle.State.F, processed.Score, temporal,
		domain.FusionWeights{Behavior: weights.Behavior, Visual: weights.Visual, Temporal: weights.Temporal}, sessionMinutes)

	bundle.Thresholds.SampleCount++
	bundle.ThresholdLearner.Update(&bundle.Thresholds.FatigueScore, result.FusedFatigue, bundle.Thresholds.SampleCount, fusion.BehaviorSignals{
		ErrorRate: 1 - bundle.State.A, Fatigue: bundle.State.F,
	})
	bundle.Thresholds.UpdatedAt = nowMS

	if e.pm != nil {
		if err := e.pm.SaveThresholds(userID, bundle.Thresholds); err != nil {
			log.Printf("[amas.engine] save thresholds for %s failed: %v", userID, err)
		}
	}

	return result, nil
}

// Explain looks up a previously recorded decision and returns its stored
// explanation string; it recomputes nothing, it only reads the record
// that Process already wrote (spec §6.4).
func (e *Engine) Explain(decisionID string) (string, error) {
	rec, ok := e.tracer.Lookup(decisionID)
	if !ok {
		return "", domain.ErrDecisionNotFound
	}
	return rec.Explanation, nil
}

// DecisionRecord returns the full recorded decision (spec §6.4's "decision
// record" response for GET /amas/explain-decision), as opposed to Explain's
// bare explanation string used internally.
func (e *Engine) DecisionRecord(decisionID string) (trace.Record, error) {
	rec, ok := e.tracer.Lookup(decisionID)
	if !ok {
		return trace.Record{}, domain.ErrDecisionNotFound
	}
	return rec, nil
}

// LearningCurve implements GET /amas/learning-curve: the user's ability
// time series over the requested window (spec expansion §4.n).
func (e *Engine) LearningCurve(userID string, days int) ([]domain.AbilitySample, error) {
	if days < 7 || days > 90 {
		return nil, domain.ErrInvalidDays
	}
	if e.pm == nil {
		return nil, domain.ErrInsufficientData
	}
	return e.pm.AbilitySeries(userID, days)
}

// Counterfactual implements POST /amas/counterfactual: scores one
// hypothetical action against the user's current state without mutating
// any persisted state, by re-running the same ensemble machinery used in
// Process over a one-action candidate set plus the real catalog for
// comparison context.
func (e *Engine) Counterfactual(userID string, hypothetical domain.Strategy, ec domain.EventContext, nowMS int64) (decision.Result, error) {
	if userID == "" {
		return decision.Result{}, domain.ErrInvalidUserID
	}
	bundle := e.reg.Get(userID)
	if bundle.Model == nil {
		return decision.Result{}, domain.ErrInsufficientData
	}

	ctxVec := features.Build(*bundle.State, features.Inputs{
		RecentAccuracy: ec.RecentAccuracy,
		Difficulty:     ec.WordDifficulty,
		BatchNormMax:   e.cfg.BatchNormMax,
		RTNormMaxMS:    e.cfg.RTNormMaxMS,
		TimeOfDayHour:  float64((nowMS / 3_600_000) % 24),
		PreferredHour:  preferredHour(bundle.Habit),
	})
	ctxVec.AlignTo(bundle.Model.D)

	thompsonTheta, err := e.thompson.SampleTheta(bundle.Model)
	if err != nil {
		thompsonTheta = nil
	}
	epsilon := e.drawEpsilon()
	ruleIn := rulebased.Inputs{A: bundle.State.A, F: bundle.State.F, M: bundle.State.M, Mem: bundle.State.C.Mem, Conf: bundle.State.Conf}

	candidates := append([]domain.Strategy{hypothetical}, e.cfg.Actions...)
	return e.ensemble.Decide(bundle.Model, thompsonTheta, bundle.MemoryTraces[ec.WordID], epsilon, ctxVec, candidates, ruleIn)
}

// forgettingThreshold and forgettingWindowSec implement the
// forgetting-alert worker (spec expansion §4.o): a word is alertable once
// its ACT-R recall probability drops below forgettingThreshold and it has
// gone unreviewed for longer than forgettingWindowSec.
const (
	forgettingThreshold = 0.3
	forgettingWindowSec = 72 * 3600
)

// ForgettingAlert is one word flagged by CheckForgetting.
type ForgettingAlert struct {
	WordID             string
	RecallProbability  float64
	SecondsSinceReview float64
}

// CheckForgetting scans a user's memory traces for words whose recall
// probability has decayed below threshold without a recent review,
// routing the ACT-R activation computation through the smart router so a
// native accelerator (if ever registered) serves this scan instead of
// the pure-Go fallback.
func (e *Engine) CheckForgetting(ctx context.Context, userID string) ([]ForgettingAlert, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	bundle := e.reg.Get(userID)

	var alerts []ForgettingAlert
	for wordID, memTrace := range bundle.MemoryTraces {
		if len(memTrace.Events) == 0 {
			continue
		}
		lastReview := memTrace.Events[0].SecondsAgo
		if lastReview < forgettingWindowSec {
			continue
		}

		secondsAgo := make([]float64, len(memTrace.Events))
		for i, ev := range memTrace.Events {
			secondsAgo[i] = ev.SecondsAgo
		}

		result, err := e.smartRouter.Route(ctx, "actr_activation", len(secondsAgo),
			func(ctx context.Context) (any, error) {
				return e.native.ComputeActivation(secondsAgo, e.cfg.ActR.Decay)
			},
			func(ctx context.Context) (any, error) {
				return e.actrModel.Activation(memTrace), nil
			},
		)
		if err != nil {
			log.Printf("[amas.engine] forgetting check for %s/%s failed: %v", userID, wordID, err)
			continue
		}
		activation := result.(float64)
		p := e.actrModel.RecallProbability(activation)
		if p < forgettingThreshold {
			alerts = append(alerts, ForgettingAlert{WordID: wordID, RecallProbability: p, SecondsSinceReview: lastReview})
		}
	}
	return alerts, nil
}

// EnqueueReward implements the write side of POST /amas/reward: it
// records the reward in the in-memory priority queue and best-effort
// persists the queue item, returning immediately (spec §4.j — reward
// application itself is asynchronous).
func (e *Engine) EnqueueReward(item domain.RewardQueueItem) {
	e.rewardQueue.Enqueue(item)
	if e.pm != nil {
		if err := e.pm.EnqueueReward(item); err != nil {
			log.Printf("[amas.engine] persist reward enqueue failed: %v", err)
		}
	}
}

// DrainRewards applies every reward item due by nowMS, called from the
// scheduler's reward-drain queue (spec §5).
func (e *Engine) DrainRewards(nowMS int64) []domain.RewardQueueItem {
	due := e.rewardQueue.DrainDue(nowMS)
	applied := make([]domain.RewardQueueItem, 0, len(due))
	for _, item := range due {
		start := time.Now()
		result := e.rewardProc.Apply(item)
		observability.RewardProcessingDurationSeconds.Observe(time.Since(start).Seconds())
		observability.RewardProcessedTotal.WithLabelValues(string(result.Status)).Inc()
		applied = append(applied, result)
		if result.Status == domain.RewardPending {
			e.rewardQueue.Enqueue(result)
		}
		if e.pm != nil {
			if err := e.pm.UpdateRewardItem(result); err != nil {
				log.Printf("[amas.engine] update reward item %s failed: %v", result.ID, err)
			}
		}
		e.tracer.ApplyReward(item.AnswerRecordID, item.Reward)
	}
	return applied
}

// Shutdown implements the persistence side of the graceful-shutdown
// sequence from spec §5: it drains every currently-due reward before
// returning. The caller stops the scheduler's dispatcher loop and the
// HTTP listener around this call, in the order spec §5 specifies.
func (e *Engine) Shutdown(nowMS int64) {
	for e.rewardQueue.Len() > 0 {
		before := e.rewardQueue.Len()
		e.DrainRewards(nowMS)
		if e.rewardQueue.Len() >= before {
			break
		}
	}
}

// ActiveUserIDs returns the user IDs currently hydrated in the registry,
// for the forgetting-alert cron worker to sweep.
func (e *Engine) ActiveUserIDs() []string {
	return e.reg.ActiveUserIDs()
}
