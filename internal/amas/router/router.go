// Package router implements the smart router and circuit breaker that
// gate every Native accelerator call (spec §4.i): a static per-operation
// policy table plus a sliding-window breaker with the standard
// CLOSED/OPEN/HALF_OPEN state machine.
package router

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vocabamas/amas/internal/domain"
)

// State names the circuit breaker's three states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// RouteMode forces a named operation onto native, TS (fallback), or lets
// the breaker and data-size threshold decide.
type RouteMode string

const (
	RouteNative RouteMode = "native"
	RouteTS     RouteMode = "ts"
	RouteAuto   RouteMode = "auto"
)

// Policy is one row of the static per-operation routing table.
type Policy struct {
	ForceRoute        RouteMode
	NativeDataSizeMin int
	NativeAvailable   bool
}

const (
	windowSize       = 20
	openTimeout      = 60 * time.Second
	halfOpenProbe    = 3
	failureRateOpen  = 0.5
	halfOpenToClosed = 3
)

// CircuitBreaker is a sliding-window failure-rate breaker scoped to one
// named operation (spec's `module.method`).
type CircuitBreaker struct {
	mu sync.Mutex

	Now func() time.Time

	state   State
	window  [windowSize]bool // true = success
	filled  int
	idx     int
	openAt  time.Time
	probes  int // in-flight half-open probes
	hoSucc  int // consecutive half-open successes
	onTrans func(from, to State)
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{state: StateClosed, Now: time.Now}
}

// OnTransition registers a callback invoked on every state change, used
// to emit the spec's "state transitions emit a telemetry event".
func (b *CircuitBreaker) OnTransition(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrans = fn
}

func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a Native call may proceed right now, applying
// the OPEN -> HALF_OPEN timeout transition as a side effect when due.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.Now().Sub(b.openAt) >= openTimeout {
			b.transition(StateHalfOpen)
			b.probes = 0
			b.hoSucc = 0
			return b.allowHalfOpenLocked()
		}
		return false
	case StateHalfOpen:
		return b.allowHalfOpenLocked()
	default:
		return false
	}
}

func (b *CircuitBreaker) allowHalfOpenLocked() bool {
	if b.probes >= halfOpenProbe {
		return false
	}
	b.probes++
	return true
}

// RecordSuccess records a successful Native call outcome.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.push(true)

	if b.state == StateHalfOpen {
		b.hoSucc++
		if b.hoSucc >= halfOpenToClosed {
			b.transition(StateClosed)
			b.filled, b.idx = 0, 0
			b.hoSucc = 0
		}
		return
	}
	if b.state == StateClosed && b.failureRateLocked() >= failureRateOpen && b.filled >= windowSize {
		b.transition(StateOpen)
		b.openAt = b.Now()
	}
}

// RecordFailure records a failed Native call outcome (msg is logged,
// not retained — the breaker only tracks success/failure counts).
func (b *CircuitBreaker) RecordFailure(operation, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	log.Printf("[amas.router] native call failed op=%s: %s", operation, msg)
	b.push(false)

	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
		b.openAt = b.Now()
		b.hoSucc = 0
	case StateClosed:
		if b.failureRateLocked() >= failureRateOpen && b.filled >= windowSize {
			b.transition(StateOpen)
			b.openAt = b.Now()
		}
	}
}

func (b *CircuitBreaker) push(success bool) {
	b.window[b.idx] = success
	b.idx = (b.idx + 1) % windowSize
	if b.filled < windowSize {
		b.filled++
	}
}

func (b *CircuitBreaker) failureRateLocked() float64 {
	if b.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < b.filled; i++ {
		if !b.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.filled)
}

func (b *CircuitBreaker) transition(to State) {
	from := b.state
	b.state = to
	if b.onTrans != nil && from != to {
		b.onTrans(from, to)
	}
}

// SmartRouter consults a static per-operation policy table and a breaker
// per operation to decide whether a call should go to the Native
// accelerator or the pure-Go fallback, and runs whichever is chosen.
type SmartRouter struct {
	mu        sync.Mutex
	policies  map[string]Policy
	breakers  map[string]*CircuitBreaker
	native    domain.NativeAccelerator
	onMetrics func(operation, outcome, route string, durationMS float64)
}

func NewSmartRouter(native domain.NativeAccelerator) *SmartRouter {
	return &SmartRouter{
		policies: map[string]Policy{},
		breakers: map[string]*CircuitBreaker{},
		native:   native,
	}
}

// SetPolicy installs the static route policy for one named operation.
func (r *SmartRouter) SetPolicy(operation string, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[operation] = p
}

// OnMetrics registers a callback invoked after every call with the
// outcome and chosen route, for the native_call_total/duration metrics.
func (r *SmartRouter) OnMetrics(fn func(operation, outcome, route string, durationMS float64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMetrics = fn
}

func (r *SmartRouter) breaker(operation string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[operation]
	if !ok {
		b = NewCircuitBreaker()
		r.breakers[operation] = b
	}
	return b
}

// Breaker exposes the per-operation breaker for metrics/inspection
// (e.g. the circuit_breaker_state gauge).
func (r *SmartRouter) Breaker(operation string) *CircuitBreaker {
	return r.breaker(operation)
}

// NativeFunc and FallbackFunc are the two call shapes a route decides
// between; both return a result value and an error.
type NativeFunc func(ctx context.Context) (any, error)
type FallbackFunc func(ctx context.Context) (any, error)

// Route decides native vs. fallback for one call and executes it,
// recording breaker and metric outcomes as a side effect. dataSize is
// the size metric used against the policy's NativeDataSizeMin.
func (r *SmartRouter) Route(ctx context.Context, operation string, dataSize int, nativeFn NativeFunc, fallbackFn FallbackFunc) (any, error) {
	r.mu.Lock()
	policy := r.policies[operation]
	r.mu.Unlock()

	b := r.breaker(operation)
	useNative := r.decide(policy, dataSize, b)

	start := time.Now()
	route := "ts"
	var result any
	var err error

	if useNative {
		route = "native"
		result, err = nativeFn(ctx)
		durationMS := float64(time.Since(start)) / float64(time.Millisecond)
		if err != nil {
			b.RecordFailure(operation, err.Error())
			r.emit(operation, "failure", route, durationMS)
			// Native failed: fall back rather than surface the error,
			// matching "Native calls are opaque; treated atomic" plus
			// the breaker being "the only escape" (§5).
			fbStart := time.Now()
			result, err = fallbackFn(ctx)
			r.emit(operation, outcomeOf(err), "ts", float64(time.Since(fbStart))/float64(time.Millisecond))
			return result, err
		}
		b.RecordSuccess()
		r.emit(operation, "success", route, durationMS)
		return result, nil
	}

	result, err = fallbackFn(ctx)
	durationMS := float64(time.Since(start)) / float64(time.Millisecond)
	r.emit(operation, outcomeOf(err), route, durationMS)
	return result, err
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (r *SmartRouter) emit(operation, outcome, route string, durationMS float64) {
	r.mu.Lock()
	fn := r.onMetrics
	r.mu.Unlock()
	if fn != nil {
		fn(operation, outcome, route, durationMS)
	}
}

func (r *SmartRouter) decide(p Policy, dataSize int, b *CircuitBreaker) bool {
	switch p.ForceRoute {
	case RouteNative:
		return p.NativeAvailable && r.native != nil && r.native.Available()
	case RouteTS:
		return false
	default: // auto
		if r.native == nil || !p.NativeAvailable || !r.native.Available() {
			return false
		}
		if dataSize < p.NativeDataSizeMin {
			return false
		}
		return b.Allow()
	}
}
