// Package reward implements the delayed-reward pipeline (spec §4.j): a
// scheduledFor-ordered queue drained by a one-minute cron tick, applying
// a LinUCB update to the owning user's bandit model and retrying failed
// applications with exponential backoff up to a hard cap before
// dead-lettering.
package reward

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/vocabamas/amas/internal/amas/bandit"
	"github.com/vocabamas/amas/internal/domain"
	"github.com/vocabamas/amas/internal/infra/dsa"
)

// Queue orders pending reward items by scheduledFor using the package's
// min-heap priority queue with starvation-boosting disabled (the reward
// pipeline wants strict scheduledFor ordering, not age-boosted reordering).
type Queue struct {
	pq *dsa.PriorityQueue
}

func NewQueue() *Queue {
	return &Queue{pq: dsa.NewPriorityQueue(dsa.PriorityQueueConfig{})}
}

func (q *Queue) Enqueue(item domain.RewardQueueItem) {
	q.pq.Push(dsa.HeapItem{
		Key:      item.ID,
		Priority: int(item.ScheduledFor),
		Value:    item,
	})
}

func (q *Queue) Len() int { return q.pq.Len() }

// DrainDue pops every item whose scheduledFor <= nowMS, in scheduledFor
// order, stopping at the first item that is not yet due (the queue is a
// min-heap so items come out in sorted order, making this a simple
// peek-then-pop loop).
func (q *Queue) DrainDue(nowMS int64) []domain.RewardQueueItem {
	var due []domain.RewardQueueItem
	for {
		item, ok := q.pq.Peek()
		if !ok {
			break
		}
		rq := item.Value.(domain.RewardQueueItem)
		if rq.ScheduledFor > nowMS {
			break
		}
		q.pq.Pop()
		due = append(due, rq)
	}
	return due
}

// ContextLookup resolves the context vector to update against, preferring
// the one tied to the specific answer record, falling back to the most
// recent one in the session window.
type ContextLookup func(userID, answerRecordID, sessionID string) (*domain.ContextVector, error)

// Processor applies due reward items against their owning user's bandit
// model, with retry-then-dead-letter semantics (invariant 6: exactly-once
// or dead-letter, never both).
type Processor struct {
	pm       domain.PersistenceManager
	lookup   ContextLookup
	backoff  func(attempt int) time.Duration
	onMetric func(outcome string, durationMS float64)
}

func NewProcessor(pm domain.PersistenceManager, lookup ContextLookup) *Processor {
	return &Processor{
		pm:      pm,
		lookup:  lookup,
		backoff: exponentialBackoff,
	}
}

func (p *Processor) OnMetric(fn func(outcome string, durationMS float64)) {
	p.onMetric = fn
}

func exponentialBackoff(attempt int) time.Duration {
	base := time.Second
	d := base * time.Duration(math.Pow(2, float64(attempt)))
	capDur := 5 * time.Minute
	if d > capDur {
		d = capDur
	}
	return d
}

// Apply processes one due reward item: loads the model, resolves the
// context vector, aligns dimensions, and applies the LinUCB update. On
// success the item is marked APPLIED (callers should then drop it from
// persistence). On failure it increments Attempts and either schedules a
// retry (backoff) or dead-letters once MaxRewardAttempts is reached.
func (p *Processor) Apply(item domain.RewardQueueItem) domain.RewardQueueItem {
	start := time.Now()
	err := p.tryApply(item)
	durationMS := float64(time.Since(start)) / float64(time.Millisecond)

	if err == nil {
		item.Status = domain.RewardApplied
		p.emit("success", durationMS)
		return item
	}

	item.Attempts++
	if item.Attempts >= domain.MaxRewardAttempts {
		item.Status = domain.RewardDeadLetter
		log.Printf("[amas.reward] dead-lettering reward item %s after %d attempts: %v", item.ID, item.Attempts, err)
		p.emit("dead_letter", durationMS)
		return item
	}

	item.Status = domain.RewardPending
	delay := p.backoff(item.Attempts)
	item.ScheduledFor = time.Now().Add(delay).UnixMilli()
	log.Printf("[amas.reward] retrying reward item %s (attempt %d) after %v: %v", item.ID, item.Attempts, delay, err)
	p.emit("retry", durationMS)
	return item
}

func (p *Processor) tryApply(item domain.RewardQueueItem) error {
	model, err := p.pm.LoadModel(item.UserID)
	if err != nil {
		return fmt.Errorf("%w: load model for %s: %v", domain.ErrPersistenceTransient, item.UserID, err)
	}
	if model == nil {
		return fmt.Errorf("%w: no model for user %s", domain.ErrInsufficientData, item.UserID)
	}

	ctx, err := p.lookup(item.UserID, item.AnswerRecordID, item.SessionID)
	if err != nil {
		return fmt.Errorf("%w: context lookup: %v", domain.ErrPersistenceTransient, err)
	}
	if ctx == nil {
		return fmt.Errorf("%w: no context vector for reward item %s", domain.ErrInsufficientData, item.ID)
	}

	ctx.AlignTo(model.D)
	if err := bandit.Update(model, ctx.Values, item.Reward); err != nil {
		return fmt.Errorf("bandit update: %w", err)
	}

	if err := p.pm.SaveModel(item.UserID, model); err != nil {
		return fmt.Errorf("%w: save model for %s: %v", domain.ErrPersistenceTransient, item.UserID, err)
	}
	return nil
}

func (p *Processor) emit(outcome string, durationMS float64) {
	if p.onMetric != nil {
		p.onMetric(outcome, durationMS)
	}
}
