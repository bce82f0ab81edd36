package bandit

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/vocabamas/amas/internal/domain"
)

// ThompsonSampler draws θ̃ ~ N(θ, σ²A⁻¹) and scores a context against the
// sampled coefficient vector. Rand is injectable so tests can seed a
// deterministic source; NewThompsonSampler given a nil source gives the
// sampler its own source seeded with 1.
type ThompsonSampler struct {
	Sigma float64
	Rand  *rand.Rand
}

func NewThompsonSampler(sigma float64, src rand.Source) *ThompsonSampler {
	if sigma <= 0 {
		sigma = 1.0
	}
	if src == nil {
		src = rand.NewSource(1)
	}
	return &ThompsonSampler{Sigma: sigma, Rand: rand.New(src)}
}

// Score draws one posterior sample θ̃ and returns θ̃ᵀx. Each call draws a
// fresh sample; to compare several actions under the same posterior draw
// within one decision, use SampleTheta once and dot the result against
// each action's context vector instead.
func (s *ThompsonSampler) Score(m *domain.BanditModel, x []float64) (float64, error) {
	if len(x) != m.D {
		return 0, fmt.Errorf("%w: context dim %d, model dim %d", domain.ErrInvalidEvent, len(x), m.D)
	}
	sampled, err := s.SampleTheta(m)
	if err != nil {
		return 0, err
	}
	score := dot(sampled, x)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: thompson score", domain.ErrNaNPropagated)
	}
	return score, nil
}

// SampleTheta draws one posterior sample θ̃ ~ N(θ, σ²A⁻¹).
func (s *ThompsonSampler) SampleTheta(m *domain.BanditModel) ([]float64, error) {
	theta, ainv, err := Theta(m)
	if err != nil {
		return nil, err
	}
	return s.sampleMultivariateNormal(theta, ainv, m.D)
}

// sampleMultivariateNormal draws θ̃ ~ N(mean, σ²*cov) using a Cholesky
// factor of cov applied to i.i.d. standard normals: θ̃ = mean + σ*L*z.
// cov = A⁻¹ is symmetric positive definite by construction (invariant 3),
// so the factorisation always exists.
func (s *ThompsonSampler) sampleMultivariateNormal(mean, cov []float64, d int) ([]float64, error) {
	l, err := cholesky(cov, d)
	if err != nil {
		return nil, fmt.Errorf("bandit: thompson sample: %w", err)
	}
	z := make([]float64, d)
	for i := range z {
		z[i] = s.Rand.NormFloat64()
	}
	lz := matVec(l, z, d)
	out := make([]float64, d)
	for i := range out {
		out[i] = mean[i] + s.Sigma*lz[i]
	}
	return out, nil
}

// cholesky computes the lower-triangular factor L such that L*Lᵀ = a for
// a symmetric positive (semi)definite flattened d x d matrix, with a
// small floor on the diagonal to tolerate near-zero eigenvalues from
// A⁻¹ when A has just been regularised.
func cholesky(a []float64, d int) ([]float64, error) {
	l := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i*d+j]
			for k := 0; k < j; k++ {
				sum -= l[i*d+k] * l[j*d+k]
			}
			if i == j {
				if sum < 1e-12 {
					sum = 1e-12
				}
				l[i*d+j] = math.Sqrt(sum)
			} else {
				if l[j*d+j] == 0 {
					return nil, fmt.Errorf("cholesky: zero pivot at %d", j)
				}
				l[i*d+j] = sum / l[j*d+j]
			}
		}
	}
	return l, nil
}
