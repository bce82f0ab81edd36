package router

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestCircuitBreaker_OpensAtFailureRateThreshold(t *testing.T) {
	b := NewCircuitBreaker()
	clock := &fakeClock{t: time.Unix(0, 0)}
	b.Now = clock.now

	for i := 0; i < 10; i++ {
		b.RecordFailure("op", "boom")
	}
	for i := 0; i < 10; i++ {
		b.RecordSuccess()
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open at 50%% failure rate over a full window", b.State())
	}
}

func TestCircuitBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b := NewCircuitBreaker()
	clock := &fakeClock{t: time.Unix(0, 0)}
	b.Now = clock.now

	for i := 0; i < 2; i++ {
		b.RecordFailure("op", "boom")
	}
	for i := 0; i < 18; i++ {
		b.RecordSuccess()
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed below 50%% failure rate", b.State())
	}
}

func TestCircuitBreaker_OpenToHalfOpenAfterTimeout(t *testing.T) {
	b := NewCircuitBreaker()
	clock := &fakeClock{t: time.Unix(0, 0)}
	b.Now = clock.now

	for i := 0; i < 20; i++ {
		b.RecordFailure("op", "boom")
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if b.Allow() {
		t.Error("should not allow calls immediately after opening")
	}

	clock.advance(61 * time.Second)
	if !b.Allow() {
		t.Error("should allow a half-open probe after the 60s timeout")
	}
	if b.State() != StateHalfOpen {
		t.Errorf("state = %v, want half-open", b.State())
	}
}

func TestCircuitBreaker_HalfOpenClosesAfterThreeSuccesses(t *testing.T) {
	b := NewCircuitBreaker()
	clock := &fakeClock{t: time.Unix(0, 0)}
	b.Now = clock.now
	for i := 0; i < 20; i++ {
		b.RecordFailure("op", "boom")
	}
	clock.advance(61 * time.Second)
	b.Allow()

	b.RecordSuccess()
	b.Allow()
	b.RecordSuccess()
	b.Allow()
	b.RecordSuccess()

	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after 3 half-open successes", b.State())
	}
}

func TestCircuitBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	b := NewCircuitBreaker()
	clock := &fakeClock{t: time.Unix(0, 0)}
	b.Now = clock.now
	for i := 0; i < 20; i++ {
		b.RecordFailure("op", "boom")
	}
	clock.advance(61 * time.Second)
	b.Allow()
	b.RecordFailure("op", "still broken")

	if b.State() != StateOpen {
		t.Errorf("state = %v, want open after a half-open probe fails", b.State())
	}
}

func TestCircuitBreaker_HalfOpenCapsConcurrentProbes(t *testing.T) {
	b := NewCircuitBreaker()
	clock := &fakeClock{t: time.Unix(0, 0)}
	b.Now = clock.now
	for i := 0; i < 20; i++ {
		b.RecordFailure("op", "boom")
	}
	clock.advance(61 * time.Second)

	allowed := 0
	for i := 0; i < 5; i++ {
		if b.Allow() {
			allowed++
		}
	}
	if allowed != halfOpenProbe {
		t.Errorf("allowed %d half-open probes, want exactly %d", allowed, halfOpenProbe)
	}
}

type stubNative struct {
	available bool
	err       error
}

func (s stubNative) Available() bool { return s.available }
func (s stubNative) ComputeActivation(secondsAgo []float64, decay float64) (float64, error) {
	return 0, s.err
}
func (s stubNative) InvertMatrix(a []float64, d int) ([]float64, error) {
	return nil, s.err
}

func TestSmartRouter_ForceRouteTS(t *testing.T) {
	r := NewSmartRouter(nil)
	r.SetPolicy("module.method", Policy{ForceRoute: RouteTS})
	calledNative := false
	_, err := r.Route(context.Background(), "module.method", 100,
		func(ctx context.Context) (any, error) { calledNative = true; return nil, nil },
		func(ctx context.Context) (any, error) { return "fallback", nil })
	if err != nil {
		t.Fatalf("route err: %v", err)
	}
	if calledNative {
		t.Error("forceRoute=ts should never call native")
	}
}

func TestSmartRouter_FallsBackOnNativeFailure(t *testing.T) {
	r := NewSmartRouter(nil)
	r.SetPolicy("module.method", Policy{ForceRoute: RouteNative, NativeAvailable: false})
	result, err := r.Route(context.Background(), "module.method", 100,
		func(ctx context.Context) (any, error) { return "native", nil },
		func(ctx context.Context) (any, error) { return "fallback", nil })
	if err != nil {
		t.Fatalf("route err: %v", err)
	}
	if result != "fallback" {
		t.Errorf("result = %v, want fallback when native unavailable", result)
	}
}

func TestSmartRouter_NativeFailureFallsBackAndRecordsBreaker(t *testing.T) {
	native := stubNative{available: true}
	r := NewSmartRouter(native)
	r.SetPolicy("module.method", Policy{ForceRoute: RouteNative, NativeAvailable: true})
	result, err := r.Route(context.Background(), "module.method", 100,
		func(ctx context.Context) (any, error) { return nil, errors.New("native exploded") },
		func(ctx context.Context) (any, error) { return "fallback", nil })
	if err != nil {
		t.Fatalf("route err: %v", err)
	}
	if result != "fallback" {
		t.Errorf("result = %v, want fallback after native error", result)
	}
	if r.Breaker("module.method").State() != StateClosed {
		t.Error("one failure should not yet open the breaker (window not full)")
	}
}
