// Package features turns a raw answer event into the fixed, versioned
// context vector consumed by the decision ensemble.
package features

import (
	"math"

	"github.com/vocabamas/amas/internal/domain"
)

// FeatureVersion is the current context-vector schema. Bump this whenever
// the fixed ordering or dimension below changes; stored vectors carry
// their own version so older ones can be aligned (domain.ContextVector.AlignTo).
const FeatureVersion = 1

// Dimension is the length of the vector this version produces.
const Dimension = 22

// Labels names each position in the vector, in order, for explainability.
var Labels = [Dimension]string{
	"A", "F", "C.mem", "C.speed", "M", "1-recentAccuracy", "intervalScale",
	"newRatio", "difficulty", "hintLevel/3", "batchNorm", "rtNorm",
	"timeOfDay/24", "sin2pi", "cos2pi", "A*F", "M*F", "paceMatch",
	"C.mem*newRatio", "F*rtNorm", "newRatio*M", "bias",
}

// Inputs bundles everything the extractor needs beyond UserState.
type Inputs struct {
	RecentAccuracy float64 // [0,1]
	IntervalScale  float64
	NewRatio       float64
	Difficulty     float64 // [0,1]
	HintLevel      int     // 0..3
	BatchSize      int
	BatchNormMax   float64 // normalisation divisor, default 20
	ResponseTimeMS float64
	RTNormMaxMS    float64 // normalisation divisor, default 10000
	TimeOfDayHour  float64 // 0..24
	PreferredHour  float64 // from HabitProfile, for paceMatch; -1 if unknown
}

// Build produces the 22-dim context vector in the spec's fixed order,
// bias last. Values that would be NaN (missing habit data, zero
// normalisation ranges) are treated as zero rather than propagated.
func Build(state domain.UserState, in Inputs) domain.ContextVector {
	if in.BatchNormMax <= 0 {
		in.BatchNormMax = 20
	}
	if in.RTNormMaxMS <= 0 {
		in.RTNormMaxMS = 10000
	}

	batchNorm := safeDiv(float64(in.BatchSize), in.BatchNormMax)
	rtNorm := safeDiv(in.ResponseTimeMS, in.RTNormMaxMS)
	timeFrac := safeDiv(in.TimeOfDayHour, 24)
	angle := 2 * math.Pi * timeFrac

	paceMatch := 0.0
	if in.PreferredHour >= 0 {
		diff := math.Abs(in.TimeOfDayHour - in.PreferredHour)
		if diff > 12 {
			diff = 24 - diff
		}
		paceMatch = 1 - diff/12
	}

	values := [Dimension]float64{
		state.A,
		state.F,
		state.C.Mem,
		state.C.Speed,
		state.M,
		1 - in.RecentAccuracy,
		in.IntervalScale,
		in.NewRatio,
		in.Difficulty,
		float64(in.HintLevel) / 3,
		batchNorm,
		rtNorm,
		timeFrac,
		math.Sin(angle),
		math.Cos(angle),
		state.A * state.F,
		state.M * state.F,
		paceMatch,
		state.C.Mem * in.NewRatio,
		state.F * rtNorm,
		in.NewRatio * state.M,
		1.0,
	}

	out := make([]float64, Dimension)
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = v
	}

	labels := make([]string, Dimension)
	copy(labels, Labels[:])

	return domain.ContextVector{
		Values:  out,
		Version: FeatureVersion,
		Labels:  labels,
		TS:      state.TS,
	}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
