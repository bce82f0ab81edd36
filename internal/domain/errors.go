package domain

import "errors"

// Validation errors — rejected at the boundary, never enter the core.
var (
	ErrInvalidUserID      = errors.New("amas: invalid or missing userId")
	ErrInvalidEvent       = errors.New("amas: malformed learning event")
	ErrInvalidReward      = errors.New("amas: reward out of range [-1,1]")
	ErrInvalidFatigueData = errors.New("amas: visual fatigue sample out of range")
	ErrInvalidDays        = errors.New("amas: learning-curve days must be in [7,90]")
)

// Insufficient-data signals — surfaced as typed results, never a crash.
var (
	ErrInsufficientData   = errors.New("amas: insufficient data to build profile")
	ErrNoMemoryTrace      = errors.New("amas: no memory trace for word")
	ErrDecisionNotFound   = errors.New("amas: decision record not found")
)

// Transient failures — degrade without propagating to the caller.
var (
	ErrNativeUnavailable     = errors.New("amas: native accelerator unavailable")
	ErrPersistenceTransient  = errors.New("amas: transient persistence failure")
	ErrCircuitBreakerOpen    = errors.New("amas: circuit breaker open")
)

// Fatal — corrupted persisted invariants. The corrupt user's model (not
// state) is reset to its seeded prior; the process keeps serving.
var (
	ErrBanditNotSPD  = errors.New("amas: bandit matrix is not symmetric positive-definite")
	ErrNaNPropagated = errors.New("amas: NaN propagated into persisted state")
)

// Reward-queue terminal status.
var ErrRewardDeadLettered = errors.New("amas: reward item exceeded max attempts")
