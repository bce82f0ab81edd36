// Package bandit implements the contextual bandit learners behind the
// decision ensemble (spec §4.h): a LinUCB model and a Thompson-sampling
// head sharing the same ridge-regression sufficient statistics (A, b).
package bandit

import (
	"fmt"
	"math"

	"github.com/vocabamas/amas/internal/domain"
)

// NewModel initialises a BanditModel with A = lambda*I and b = 0 for the
// given context dimensionality.
func NewModel(d int, lambda, alpha float64) *domain.BanditModel {
	if d <= 0 {
		d = 1
	}
	if lambda <= 0 {
		lambda = 1.0
	}
	if alpha <= 0 {
		alpha = 0.5
	}
	a := identity(d)
	for i := range a {
		a[i] *= lambda
	}
	return &domain.BanditModel{
		D:      d,
		Lambda: lambda,
		Alpha:  alpha,
		A:      a,
		B:      make([]float64, d),
	}
}

// LinUCB wraps a BanditModel with the theta/UCB scoring logic. It holds
// no state of its own; all learned state lives in the BanditModel so it
// can be persisted and reloaded per user.
type LinUCB struct{}

// Theta solves A*theta = b for the ridge-regression coefficient vector.
func Theta(m *domain.BanditModel) ([]float64, []float64, error) {
	ainv, err := invert(m.A, m.D)
	if err != nil {
		return nil, nil, fmt.Errorf("bandit: theta: %w", err)
	}
	theta := matVec(ainv, m.B, m.D)
	return theta, ainv, nil
}

// Score computes the LinUCB upper-confidence-bound score
// θᵀx + α√(xᵀA⁻¹x) for a context vector already aligned to m.D.
func (LinUCB) Score(m *domain.BanditModel, x []float64) (float64, error) {
	if len(x) != m.D {
		return 0, fmt.Errorf("%w: context dim %d, model dim %d", domain.ErrInvalidEvent, len(x), m.D)
	}
	theta, ainv, err := Theta(m)
	if err != nil {
		return 0, err
	}
	exploit := dot(theta, x)
	variance := quadForm(ainv, x, m.D)
	if variance < 0 {
		variance = 0
	}
	explore := m.Alpha * math.Sqrt(variance)
	score := exploit + explore
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: linucb score", domain.ErrNaNPropagated)
	}
	return score, nil
}

// Update applies the online ridge-regression update A += xxᵀ, b += r*x
// for a realised reward r on context x, and increments UpdateCount.
func Update(m *domain.BanditModel, x []float64, reward float64) error {
	if len(x) != m.D {
		return fmt.Errorf("%w: context dim %d, model dim %d", domain.ErrInvalidEvent, len(x), m.D)
	}
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		return fmt.Errorf("%w: reward", domain.ErrNaNPropagated)
	}
	addOuterProduct(m.A, x, m.D)
	for i := range m.B {
		m.B[i] += reward * x[i]
	}
	m.UpdateCount++
	if !isSymmetricPositiveDefinite(m.A, m.D, x) {
		return fmt.Errorf("%w: after update %d", domain.ErrBanditNotSPD, m.UpdateCount)
	}
	return nil
}
