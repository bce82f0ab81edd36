package reward

import (
	"errors"
	"testing"

	"github.com/vocabamas/amas/internal/amas/bandit"
	"github.com/vocabamas/amas/internal/domain"
)

func TestQueue_DrainDueReturnsInScheduledOrder(t *testing.T) {
	q := NewQueue()
	q.Enqueue(domain.RewardQueueItem{ID: "c", ScheduledFor: 300})
	q.Enqueue(domain.RewardQueueItem{ID: "a", ScheduledFor: 100})
	q.Enqueue(domain.RewardQueueItem{ID: "b", ScheduledFor: 200})

	due := q.DrainDue(250)
	if len(due) != 2 {
		t.Fatalf("drained %d items, want 2 due by t=250", len(due))
	}
	if due[0].ID != "a" || due[1].ID != "b" {
		t.Errorf("drain order = [%s,%s], want [a,b]", due[0].ID, due[1].ID)
	}
	if q.Len() != 1 {
		t.Errorf("queue len = %d, want 1 remaining item", q.Len())
	}
}

type stubPM struct {
	model *domain.BanditModel
	saved *domain.BanditModel
	err   error
}

func (s *stubPM) LoadState(userID string) (*domain.UserState, error) { return nil, nil }
func (s *stubPM) SaveState(userID string, state *domain.UserState, cold *domain.ColdStartState) error {
	return nil
}
func (s *stubPM) LoadModel(userID string) (*domain.BanditModel, error) { return s.model, s.err }
func (s *stubPM) SaveModel(userID string, model *domain.BanditModel) error {
	s.saved = model
	return nil
}
func (s *stubPM) LoadHabit(userID string) (*domain.HabitProfile, error)    { return nil, nil }
func (s *stubPM) SaveHabit(userID string, h *domain.HabitProfile) error   { return nil }
func (s *stubPM) LoadThresholds(userID string) (*domain.PersonalisedThresholds, error) {
	return nil, nil
}
func (s *stubPM) SaveThresholds(userID string, t *domain.PersonalisedThresholds) error { return nil }
func (s *stubPM) LoadMemoryTrace(userID, wordID string) (*domain.MemoryTrace, error)   { return nil, nil }
func (s *stubPM) SaveMemoryTrace(userID string, t *domain.MemoryTrace) error           { return nil }
func (s *stubPM) SaveContextVector(userID, answerRecordID, sessionID string, v domain.ContextVector) error {
	return nil
}
func (s *stubPM) LoadContextVector(userID, answerRecordID, sessionID string) (*domain.ContextVector, error) {
	return nil, nil
}
func (s *stubPM) EnqueueReward(item domain.RewardQueueItem) error           { return nil }
func (s *stubPM) DrainDueRewards(now int64, limit int) ([]domain.RewardQueueItem, error) {
	return nil, nil
}
func (s *stubPM) UpdateRewardItem(item domain.RewardQueueItem) error { return nil }
func (s *stubPM) SaveDecisionTrace(record any) error                { return nil }
func (s *stubPM) LoadDecisionTrace(decisionID string) (any, error)  { return nil, nil }
func (s *stubPM) AbilitySeries(userID string, days int) ([]domain.AbilitySample, error) {
	return nil, nil
}
func (s *stubPM) AppendAbilitySample(userID string, sample domain.AbilitySample) error { return nil }

func TestProcessor_Apply_SuccessMarksApplied(t *testing.T) {
	pm := &stubPM{model: bandit.NewModel(2, 1.0, 0.5)}
	lookup := func(userID, answerRecordID, sessionID string) (*domain.ContextVector, error) {
		return &domain.ContextVector{Values: []float64{1, 2}}, nil
	}
	p := NewProcessor(pm, lookup)
	item := domain.RewardQueueItem{ID: "r1", UserID: "u1", Reward: 0.5}

	result := p.Apply(item)
	if result.Status != domain.RewardApplied {
		t.Errorf("status = %s, want APPLIED", result.Status)
	}
	if pm.saved == nil || pm.saved.UpdateCount != 1 {
		t.Errorf("expected model to be saved with updateCount=1, got %+v", pm.saved)
	}
}

func TestProcessor_Apply_FailureIncrementsAttemptsAndReschedules(t *testing.T) {
	pm := &stubPM{err: errors.New("db down")}
	lookup := func(userID, answerRecordID, sessionID string) (*domain.ContextVector, error) {
		return nil, nil
	}
	p := NewProcessor(pm, lookup)
	item := domain.RewardQueueItem{ID: "r1", UserID: "u1", Reward: 0.5, Attempts: 0}

	result := p.Apply(item)
	if result.Status != domain.RewardPending {
		t.Errorf("status = %s, want PENDING for a retryable failure", result.Status)
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
}

func TestProcessor_Apply_DeadLettersAfterMaxAttempts(t *testing.T) {
	pm := &stubPM{err: errors.New("db down")}
	lookup := func(userID, answerRecordID, sessionID string) (*domain.ContextVector, error) {
		return nil, nil
	}
	p := NewProcessor(pm, lookup)
	item := domain.RewardQueueItem{ID: "r1", UserID: "u1", Reward: 0.5, Attempts: domain.MaxRewardAttempts - 1}

	result := p.Apply(item)
	if result.Status != domain.RewardDeadLetter {
		t.Errorf("status = %s, want DEAD_LETTER after exhausting attempts", result.Status)
	}
}

func TestProcessor_Apply_AlignsContextDimension(t *testing.T) {
	pm := &stubPM{model: bandit.NewModel(4, 1.0, 0.5)}
	lookup := func(userID, answerRecordID, sessionID string) (*domain.ContextVector, error) {
		return &domain.ContextVector{Values: []float64{1, 2}}, nil // shorter than model.D
	}
	p := NewProcessor(pm, lookup)
	item := domain.RewardQueueItem{ID: "r1", UserID: "u1", Reward: 0.5}

	result := p.Apply(item)
	if result.Status != domain.RewardApplied {
		t.Fatalf("status = %s, want APPLIED after auto-aligning dimension", result.Status)
	}
}
