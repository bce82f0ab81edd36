package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/vocabamas/amas/internal/amas/sched"
)

func TestMatchesMinuteField(t *testing.T) {
	cases := []struct {
		field  string
		minute int
		want   bool
	}{
		{"*", 37, true},
		{"*/15", 0, true},
		{"*/15", 15, true},
		{"*/15", 16, false},
		{"*/5", 23, false},
		{"30", 30, true},
		{"30", 31, false},
	}
	for _, tc := range cases {
		if got := matchesMinuteField(tc.field, tc.minute); got != tc.want {
			t.Errorf("matchesMinuteField(%q, %d) = %v, want %v", tc.field, tc.minute, got, tc.want)
		}
	}
}

func TestMatchesSchedule_OnlyMinuteFieldHonoured(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	if !matchesSchedule("*/15 * * * *", t0) {
		t.Error("expected */15 to match minute 30")
	}
	if matchesSchedule("*/15 * * * *", t0.Add(time.Minute)) {
		t.Error("expected */15 not to match minute 31")
	}
}

func TestMatchesSchedule_MalformedDefaultsToEveryMinute(t *testing.T) {
	if !matchesSchedule("garbage", time.Now()) {
		t.Error("expected malformed schedule to default to every minute")
	}
}

func TestCron_Run_SubmitsRewardDrainOnInterval(t *testing.T) {
	s := sched.NewScheduler(sched.DefaultConfig())
	done := make(chan struct{}, 1)
	drains := 0

	cfg := WorkerConfig{RewardDrainIntervalSec: 1}
	fakeNow := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	c := NewCron(s, cfg, func() time.Time { return fakeNow }, func(nowMS int64) {
		drains++
		select {
		case done <- struct{}{}:
		default:
		}
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go s.Run(ctx)
	go c.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reward-drain submission")
	}
	if drains == 0 {
		t.Error("expected at least one reward-drain invocation")
	}
}

func TestCron_Stop_HaltsLoop(t *testing.T) {
	s := sched.NewScheduler(sched.DefaultConfig())
	c := NewCron(s, WorkerConfig{RewardDrainIntervalSec: 60}, nil, func(nowMS int64) {}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(stopped)
	}()

	c.Stop()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Stop()")
	}
}
