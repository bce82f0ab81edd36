package daemon

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/vocabamas/amas/internal/amas/sched"
)

// Cron drives the once-per-second tick that feeds the reward-drain and
// forgetting-alert workers into the cooperative scheduler's
// QueueRewardDrain and QueueCron queues (spec §5). It is a minimal
// standalone matcher rather than a full cron expression library: none of
// the retrieved example repos pull in a cron package, and AMAS's two
// scheduled jobs only ever need "every N minutes" cadences, so a small
// `*/N` step matcher covers the real requirement without a new
// dependency.
type Cron struct {
	sched *sched.Scheduler
	now   func() time.Time

	rewardDrainIntervalSec int
	forgettingSchedule     string

	drainRewards   func(nowMS int64)
	checkForgetting func(ctx context.Context)

	stop chan struct{}
}

// NewCron wires a scheduler and the two worker callbacks into a driver
// ticking once per second (fine-grained enough to honour
// RewardDrainIntervalSec down to single-digit seconds; the
// ForgettingAlertSchedule's minute-granularity cron field is only
// evaluated once the wall clock crosses a minute boundary).
func NewCron(s *sched.Scheduler, cfg WorkerConfig, now func() time.Time, drainRewards func(nowMS int64), checkForgetting func(ctx context.Context)) *Cron {
	if now == nil {
		now = time.Now
	}
	interval := cfg.RewardDrainIntervalSec
	if interval <= 0 {
		interval = 60
	}
	return &Cron{
		sched:                  s,
		now:                    now,
		rewardDrainIntervalSec: interval,
		forgettingSchedule:     cfg.ForgettingAlertSchedule,
		drainRewards:           drainRewards,
		checkForgetting:        checkForgetting,
		stop:                   make(chan struct{}),
	}
}

// Run ticks once per second until ctx is cancelled or Stop is called,
// submitting reward-drain work on its configured interval and
// forgetting-alert work whenever the wall clock matches the cron
// schedule's minute field.
func (c *Cron) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastDrain time.Time
	var lastForgetMinute = -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.now()
			if c.drainRewards != nil && now.Sub(lastDrain) >= time.Duration(c.rewardDrainIntervalSec)*time.Second {
				lastDrain = now
				c.sched.Submit(sched.QueueRewardDrain, func(ctx context.Context) error {
					c.drainRewards(now.UnixMilli())
					return nil
				})
			}
			if c.checkForgetting != nil && now.Minute() != lastForgetMinute && matchesSchedule(c.forgettingSchedule, now) {
				lastForgetMinute = now.Minute()
				c.sched.Submit(sched.QueueCron, func(ctx context.Context) error {
					c.checkForgetting(ctx)
					return nil
				})
			}
		}
	}
}

// Stop halts Run at its next tick.
func (c *Cron) Stop() {
	close(c.stop)
}

// matchesSchedule evaluates a 5-field cron expression's minute field
// against t. A non-"*" hour/day-of-month/month/day-of-week field is
// logged on each call and ignored; a malformed expression is logged and
// treated as "every minute".
func matchesSchedule(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		log.Printf("[amas.daemon] cron expression %q malformed, defaulting to every minute", expr)
		return true
	}
	minuteField := fields[0]
	for _, f := range fields[1:] {
		if f != "*" {
			log.Printf("[amas.daemon] cron expression %q uses an unsupported field, only the minute field is evaluated", expr)
			break
		}
	}
	return matchesMinuteField(minuteField, t.Minute())
}

func matchesMinuteField(field string, minute int) bool {
	if field == "*" {
		return true
	}
	if strings.HasPrefix(field, "*/") {
		step, err := strconv.Atoi(strings.TrimPrefix(field, "*/"))
		if err != nil || step <= 0 {
			return true
		}
		return minute%step == 0
	}
	exact, err := strconv.Atoi(field)
	if err != nil {
		return true
	}
	return minute == exact
}
