package bandit

import (
	"fmt"
	"math"
)

// invert computes the inverse of a d x d matrix (row-major flat slice)
// via Gaussian elimination with partial pivoting over the augmented
// matrix [A|I]. Near-singular pivots are regularised rather than
// rejected, since A = λI + Σxxᵀ is kept SPD by construction and should
// never be truly singular once λ>0.
//
// Grounded on other_examples' cartographus LinUCB implementation
// (invertMatrix), which uses the same augmented-matrix elimination with
// a 1e-10 regularisation floor on the pivot.
func invert(flat []float64, d int) ([]float64, error) {
	if len(flat) != d*d {
		return nil, fmt.Errorf("bandit: invert: matrix has %d entries, want %d for d=%d", len(flat), d*d, d)
	}

	aug := make([][]float64, d)
	for i := 0; i < d; i++ {
		row := make([]float64, 2*d)
		copy(row[:d], flat[i*d:(i+1)*d])
		row[d+i] = 1
		aug[i] = row
	}

	for col := 0; col < d; col++ {
		pivotRow := col
		maxAbs := math.Abs(aug[col][col])
		for r := col + 1; r < d; r++ {
			if v := math.Abs(aug[r][col]); v > maxAbs {
				maxAbs = v
				pivotRow = r
			}
		}
		if pivotRow != col {
			aug[col], aug[pivotRow] = aug[pivotRow], aug[col]
		}

		pivot := aug[col][col]
		if math.Abs(pivot) < 1e-10 {
			pivot = 1e-10
			aug[col][col] = pivot
		}
		for k := 0; k < 2*d; k++ {
			aug[col][k] /= pivot
		}

		for r := 0; r < d; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for k := 0; k < 2*d; k++ {
				aug[r][k] -= factor * aug[col][k]
			}
		}
	}

	inv := make([]float64, d*d)
	for i := 0; i < d; i++ {
		copy(inv[i*d:(i+1)*d], aug[i][d:])
	}
	return inv, nil
}

// identity returns a flattened d x d identity matrix.
func identity(d int) []float64 {
	m := make([]float64, d*d)
	for i := 0; i < d; i++ {
		m[i*d+i] = 1
	}
	return m
}

// matVec computes A*x for a flattened d x d matrix A and length-d vector x.
func matVec(a []float64, x []float64, d int) []float64 {
	out := make([]float64, d)
	for i := 0; i < d; i++ {
		sum := 0.0
		row := a[i*d : (i+1)*d]
		for j := 0; j < d; j++ {
			sum += row[j] * x[j]
		}
		out[i] = sum
	}
	return out
}

// dot computes x . y.
func dot(x, y []float64) float64 {
	sum := 0.0
	for i := range x {
		sum += x[i] * y[i]
	}
	return sum
}

// quadForm computes x^T A x.
func quadForm(a, x []float64, d int) float64 {
	return dot(x, matVec(a, x, d))
}

// addOuterProduct computes A += x*x^T in place.
func addOuterProduct(a, x []float64, d int) {
	for i := 0; i < d; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		row := a[i*d : (i+1)*d]
		for j := 0; j < d; j++ {
			row[j] += xi * x[j]
		}
	}
}

// isSymmetricPositiveDefinite checks invariant 3 via x^T A x > 0 for a
// provided probe vector and symmetry of A within tolerance.
func isSymmetricPositiveDefinite(a []float64, d int, probe []float64) bool {
	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			if math.Abs(a[i*d+j]-a[j*d+i]) > 1e-6 {
				return false
			}
		}
	}
	if probe == nil {
		return true
	}
	v := quadForm(a, probe, d)
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
