// Package registry owns the per-user instances that spec.md's Design
// Notes (§9) flag as wrongly-global singletons in the source system:
// each user's FusionEngine Kalman state, trend analyzer, dynamic-weight
// calculator, threshold learner, and visual fatigue history live in one
// UserBundle, evicted on an LRU policy instead of living forever in a
// process-wide map.
package registry

import (
	"container/list"
	"sync"

	"github.com/vocabamas/amas/internal/amas/fusion"
	"github.com/vocabamas/amas/internal/amas/state"
	"github.com/vocabamas/amas/internal/amas/visual"
	"github.com/vocabamas/amas/internal/domain"
)

// UserBundle groups every per-user stateful component the orchestrator
// needs across a request. Components that are pure config (no per-user
// mutable state — AttentionMonitor, FatigueEstimator, MotivationTracker,
// CognitiveProfiler, HabitRecognizer, the cold-start Controller, the
// fusion Engine, the decision Ensemble, ACT-R's Model) are NOT here;
// those are process-wide and owned by the daemon, not the registry.
type UserBundle struct {
	UserID string

	State     *domain.UserState
	ColdStart *domain.ColdStartState
	Habit     *domain.HabitProfile
	Cognitive *state.CognitiveProfile
	Model     *domain.BanditModel
	Thresholds *domain.PersonalisedThresholds

	Kalman       *fusion.KalmanState
	Trend        *state.TrendAnalyzer
	DynamicWeight *fusion.DynamicWeightCalculator
	ThresholdLearner *fusion.ThresholdLearner
	Visual       *visual.Processor

	MemoryTraces map[string]*domain.MemoryTrace // keyed by wordID

	// Streak and PrevAccuracy are engine-local bookkeeping for the
	// motivation tracker's streak/accuracy-delta inputs; they are not
	// part of the persisted domain model.
	Streak      int
	PrevAccuracy float64
}

// Factories bundles the per-user constructors the registry calls on a
// cache miss, so it never hard-codes a specific config.
type Factories struct {
	NewTrendAnalyzer     func() *state.TrendAnalyzer
	NewDynamicWeight     func() *fusion.DynamicWeightCalculator
	NewThresholdLearner  func() *fusion.ThresholdLearner
	NewVisualProcessor   func() *visual.Processor
}

func newBundle(userID string, f Factories) *UserBundle {
	return &UserBundle{
		UserID:           userID,
		State:            &domain.UserState{UserID: userID, A: 0.5, F: 0.05},
		ColdStart:        &domain.ColdStartState{Phase: domain.PhaseClassify},
		Habit:            &domain.HabitProfile{},
		Cognitive:        &state.CognitiveProfile{},
		Model:            nil, // filled in by the caller once dimensionality is known
		Thresholds:       &domain.PersonalisedThresholds{},
		Kalman:           &fusion.KalmanState{},
		Trend:            f.NewTrendAnalyzer(),
		DynamicWeight:    f.NewDynamicWeight(),
		ThresholdLearner: f.NewThresholdLearner(),
		Visual:           f.NewVisualProcessor(),
		MemoryTraces:     make(map[string]*domain.MemoryTrace),
	}
}

// Registry is an LRU cache of UserBundles bounded by MaxUsers. A cache
// miss calls Loader (typically the persistence manager) to hydrate the
// bundle before handing it back; a persistence miss falls through to a
// fresh bundle via factories.
type Registry struct {
	mu        sync.Mutex
	maxUsers  int
	ll        *list.List // front = most recently used
	elems     map[string]*list.Element
	factories Factories
	loader    func(userID string, bundle *UserBundle)
	onEvict   func(userID string, bundle *UserBundle)
}

type entry struct {
	userID string
	bundle *UserBundle
}

func NewRegistry(maxUsers int, factories Factories) *Registry {
	if maxUsers <= 0 {
		maxUsers = 10_000
	}
	return &Registry{
		maxUsers:  maxUsers,
		ll:        list.New(),
		elems:     make(map[string]*list.Element),
		factories: factories,
	}
}

// OnLoad registers a hook invoked once per cold-start bundle creation,
// before the bundle is handed back, so the caller can hydrate it from
// persistence (loadState/loadModel/loadHabit/loadThresholds).
func (r *Registry) OnLoad(fn func(userID string, bundle *UserBundle)) {
	r.loader = fn
}

// OnEvict registers a hook invoked when a bundle is evicted from the
// LRU, so the caller can flush it to persistence before it's dropped.
func (r *Registry) OnEvict(fn func(userID string, bundle *UserBundle)) {
	r.onEvict = fn
}

// Get returns the bundle for userID, creating (and loading) one on a
// cache miss, and marks it most-recently-used.
func (r *Registry) Get(userID string) *UserBundle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.elems[userID]; ok {
		r.ll.MoveToFront(el)
		return el.Value.(*entry).bundle
	}

	bundle := newBundle(userID, r.factories)
	if r.loader != nil {
		r.loader(userID, bundle)
	}
	el := r.ll.PushFront(&entry{userID: userID, bundle: bundle})
	r.elems[userID] = el

	if r.ll.Len() > r.maxUsers {
		r.evictOldestLocked()
	}
	return bundle
}

func (r *Registry) evictOldestLocked() {
	el := r.ll.Back()
	if el == nil {
		return
	}
	ent := el.Value.(*entry)
	r.ll.Remove(el)
	delete(r.elems, ent.userID)
	if r.onEvict != nil {
		r.onEvict(ent.userID, ent.bundle)
	}
}

// Len reports the number of bundles currently cached.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ll.Len()
}

// ActiveUserIDs returns the user IDs currently cached, most-recently-used
// first, for callers that need to sweep every in-memory bundle (the
// forgetting-alert worker).
func (r *Registry) ActiveUserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, r.ll.Len())
	for el := r.ll.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(*entry).userID)
	}
	return ids
}

// Evict drops userID's bundle immediately, invoking OnEvict first.
func (r *Registry) Evict(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.elems[userID]
	if !ok {
		return
	}
	ent := el.Value.(*entry)
	r.ll.Remove(el)
	delete(r.elems, userID)
	if r.onEvict != nil {
		r.onEvict(ent.userID, ent.bundle)
	}
}
