package store

import (
	"testing"

	"github.com/vocabamas/amas/internal/domain"
)

func newTestStore(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", 100)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestState_SaveLoad_RoundTrips(t *testing.T) {
	db := newTestStore(t)
	state := &domain.UserState{UserID: "u1", A: 0.6, F: 0.2, M: 0.1, Conf: 0.5, TS: 1000, UpdateCount: 3}
	cold := &domain.ColdStartState{Phase: domain.PhaseNormal}

	if err := db.SaveState("u1", state, cold); err != nil {
		t.Fatalf("SaveState() error: %v", err)
	}

	got, err := db.LoadState("u1")
	if err != nil {
		t.Fatalf("LoadState() error: %v", err)
	}
	if got == nil {
		t.Fatal("LoadState() returned nil, want a state")
	}
	if got.A != 0.6 || got.F != 0.2 {
		t.Errorf("got = %+v, want A=0.6 F=0.2", got)
	}
}

func TestState_Load_UnknownUserReturnsNil(t *testing.T) {
	db := newTestStore(t)
	got, err := db.LoadState("nobody")
	if err != nil {
		t.Fatalf("LoadState() error: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil for unknown user", got)
	}
}

func TestState_Save_UpdatesExistingRow(t *testing.T) {
	db := newTestStore(t)
	db.SaveState("u1", &domain.UserState{UserID: "u1", A: 0.5}, &domain.ColdStartState{})
	db.SaveState("u1", &domain.UserState{UserID: "u1", A: 0.9}, &domain.ColdStartState{})

	got, err := db.LoadState("u1")
	if err != nil {
		t.Fatalf("LoadState() error: %v", err)
	}
	if got.A != 0.9 {
		t.Errorf("A = %f, want 0.9 after update", got.A)
	}
}

func TestModel_SaveLoad_RoundTrips(t *testing.T) {
	db := newTestStore(t)
	model := &domain.BanditModel{D: 4, Lambda: 1, Alpha: 0.5, A: make([]float64, 16), B: make([]float64, 4)}
	if err := db.SaveModel("u1", model); err != nil {
		t.Fatalf("SaveModel() error: %v", err)
	}
	got, err := db.LoadModel("u1")
	if err != nil {
		t.Fatalf("LoadModel() error: %v", err)
	}
	if got.D != 4 {
		t.Errorf("D = %d, want 4", got.D)
	}
}

func TestMemoryTrace_SaveLoad_RoundTrips(t *testing.T) {
	db := newTestStore(t)
	tr := &domain.MemoryTrace{UserID: "u1", WordID: "w1", Events: []domain.MemoryEvent{{SecondsAgo: 10, IsCorrect: true}}}
	if err := db.SaveMemoryTrace("u1", tr); err != nil {
		t.Fatalf("SaveMemoryTrace() error: %v", err)
	}
	got, err := db.LoadMemoryTrace("u1", "w1")
	if err != nil {
		t.Fatalf("LoadMemoryTrace() error: %v", err)
	}
	if len(got.Events) != 1 || got.Events[0].SecondsAgo != 10 {
		t.Errorf("got = %+v, want one event at secondsAgo=10", got)
	}
}

func TestContextVector_SaveLoad_RoundTrips(t *testing.T) {
	db := newTestStore(t)
	v := domain.ContextVector{Values: []float64{1, 2, 3}, Version: 1}
	if err := db.SaveContextVector("u1", "d1", "s1", v); err != nil {
		t.Fatalf("SaveContextVector() error: %v", err)
	}
	got, err := db.LoadContextVector("u1", "d1", "s1")
	if err != nil {
		t.Fatalf("LoadContextVector() error: %v", err)
	}
	if len(got.Values) != 3 {
		t.Errorf("Values = %v, want length 3", got.Values)
	}
}

func TestContextVector_Load_UnknownReturnsDecisionNotFound(t *testing.T) {
	db := newTestStore(t)
	_, err := db.LoadContextVector("u1", "nope", "s1")
	if err != domain.ErrDecisionNotFound {
		t.Errorf("err = %v, want ErrDecisionNotFound", err)
	}
}

func TestRewardQueue_EnqueueAndDrainDue(t *testing.T) {
	db := newTestStore(t)
	item := domain.RewardQueueItem{ID: "r1", UserID: "u1", Reward: 0.5, ScheduledFor: 1000, Status: domain.RewardPending}
	if err := db.EnqueueReward(item); err != nil {
		t.Fatalf("EnqueueReward() error: %v", err)
	}

	due, err := db.DrainDueRewards(1000, 10)
	if err != nil {
		t.Fatalf("DrainDueRewards() error: %v", err)
	}
	if len(due) != 1 || due[0].ID != "r1" {
		t.Fatalf("due = %+v, want one item r1", due)
	}

	item.Status = domain.RewardApplied
	if err := db.UpdateRewardItem(item); err != nil {
		t.Fatalf("UpdateRewardItem() error: %v", err)
	}
	due, err = db.DrainDueRewards(1000, 10)
	if err != nil {
		t.Fatalf("DrainDueRewards() error: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("due = %+v, want none after status=APPLIED", due)
	}
}

func TestRewardQueue_DrainDue_RespectsScheduledFor(t *testing.T) {
	db := newTestStore(t)
	db.EnqueueReward(domain.RewardQueueItem{ID: "future", UserID: "u1", ScheduledFor: 5000, Status: domain.RewardPending})

	due, err := db.DrainDueRewards(1000, 10)
	if err != nil {
		t.Fatalf("DrainDueRewards() error: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("due = %+v, want none before scheduledFor", due)
	}
}

func TestAbilitySample_AppendAndSeries(t *testing.T) {
	db := newTestStore(t)
	db.AppendAbilitySample("u1", domain.AbilitySample{TS: 1000, Ability: 0.2})
	db.AppendAbilitySample("u1", domain.AbilitySample{TS: 2000, Ability: 0.4})

	series, err := db.AbilitySeries("u1", 90)
	if err != nil {
		t.Fatalf("AbilitySeries() error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series = %+v, want 2 samples", series)
	}
	if series[0].Ability != 0.2 || series[1].Ability != 0.4 {
		t.Errorf("series out of order or wrong values: %+v", series)
	}
}

func TestDecisionTrace_SaveLoad_RoundTrips(t *testing.T) {
	db := newTestStore(t)
	record := struct {
		DecisionID string
		UserID     string
	}{DecisionID: "d1", UserID: "u1"}

	if err := db.SaveDecisionTrace(record); err != nil {
		t.Fatalf("SaveDecisionTrace() error: %v", err)
	}
	got, err := db.LoadDecisionTrace("d1")
	if err != nil {
		t.Fatalf("LoadDecisionTrace() error: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["UserID"] != "u1" {
		t.Errorf("got = %+v, want map with UserID=u1", got)
	}
}

func TestDecisionTrace_Load_UnknownReturnsDecisionNotFound(t *testing.T) {
	db := newTestStore(t)
	_, err := db.LoadDecisionTrace("nope")
	if err != domain.ErrDecisionNotFound {
		t.Errorf("err = %v, want ErrDecisionNotFound", err)
	}
}

func TestLRUCache_EvictsOldestBeyondCapacity(t *testing.T) {
	c := newLRUCache(2)
	c.set("a", 1)
	c.set("b", 2)
	c.set("c", 3)

	if _, ok := c.get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if v, ok := c.get("c"); !ok || v.(int) != 3 {
		t.Error("expected c to still be cached")
	}
}
