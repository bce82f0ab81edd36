package registry

import (
	"testing"

	"github.com/vocabamas/amas/internal/amas/fusion"
	"github.com/vocabamas/amas/internal/amas/state"
	"github.com/vocabamas/amas/internal/amas/visual"
)

func testFactories() Factories {
	return Factories{
		NewTrendAnalyzer:    func() *state.TrendAnalyzer { return state.NewTrendAnalyzer(state.DefaultTrendAnalyzerConfig()) },
		NewDynamicWeight:    func() *fusion.DynamicWeightCalculator { return fusion.NewDynamicWeightCalculator(fusion.DefaultDynamicWeightConfig()) },
		NewThresholdLearner: func() *fusion.ThresholdLearner { return fusion.NewThresholdLearner(fusion.DefaultThresholdLearnerConfig()) },
		NewVisualProcessor:  func() *visual.Processor { return visual.NewProcessor(visual.DefaultConfig()) },
	}
}

func TestRegistry_GetCreatesOnMiss(t *testing.T) {
	r := NewRegistry(10, testFactories())
	b := r.Get("u1")
	if b.UserID != "u1" {
		t.Errorf("userId = %s, want u1", b.UserID)
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}
}

func TestRegistry_GetReturnsSameBundleOnHit(t *testing.T) {
	r := NewRegistry(10, testFactories())
	b1 := r.Get("u1")
	b1.State.A = 0.9
	b2 := r.Get("u1")
	if b2.State.A != 0.9 {
		t.Error("expected the same bundle instance to be returned on a cache hit")
	}
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	r := NewRegistry(2, testFactories())
	r.Get("u1")
	r.Get("u2")
	r.Get("u1") // touch u1, making u2 the LRU victim
	r.Get("u3") // should evict u2

	evicted := map[string]bool{}
	r2 := NewRegistry(2, testFactories())
	r2.OnEvict(func(userID string, bundle *UserBundle) { evicted[userID] = true })
	r2.Get("a")
	r2.Get("b")
	r2.Get("a")
	r2.Get("c")
	if !evicted["b"] {
		t.Errorf("expected b to be evicted as least-recently-used, evicted=%v", evicted)
	}
	if evicted["a"] {
		t.Error("a was touched most recently and should not be evicted")
	}
}

func TestRegistry_OnLoadHydratesBundle(t *testing.T) {
	r := NewRegistry(10, testFactories())
	r.OnLoad(func(userID string, bundle *UserBundle) {
		bundle.State.A = 0.42
	})
	b := r.Get("u1")
	if b.State.A != 0.42 {
		t.Errorf("A = %f, want 0.42 from loader hook", b.State.A)
	}
}

func TestRegistry_EvictRemovesImmediately(t *testing.T) {
	r := NewRegistry(10, testFactories())
	r.Get("u1")
	r.Evict("u1")
	if r.Len() != 0 {
		t.Errorf("len = %d, want 0 after explicit evict", r.Len())
	}
}

func TestRegistry_ActiveUserIDsReflectsCachedUsers(t *testing.T) {
	r := NewRegistry(10, testFactories())
	r.Get("u1")
	r.Get("u2")
	r.Evict("u1")

	ids := r.ActiveUserIDs()
	if len(ids) != 1 || ids[0] != "u2" {
		t.Errorf("ActiveUserIDs() = %v, want [u2]", ids)
	}
}
