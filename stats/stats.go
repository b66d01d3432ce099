// Package stats implements the streaming sample aggregator used to
// summarize per-iteration array-failure and LSE magnitudes: running mean,
// standard deviation, confidence interval, and relative error, computed on
// demand from constant-size running sums.
package stats

import (
	"math"
	"strconv"

	"gitlab.com/NebulousLabs/errors"
)

// ErrUnknownConfidence is returned when Results is asked for a confidence
// level that isn't in the fixed lookup table.
var ErrUnknownConfidence = errors.New("unknown confidence level")

// zTable maps a confidence level to its z-score, the same fixed table the
// original implementation hard-codes.
var zTable = map[float64]float64{
	0.80:  1.281,
	0.85:  1.440,
	0.90:  1.645,
	0.95:  1.960,
	0.995: 2.801,
}

// Samples accumulates streaming per-iteration outcomes (bytes lost, LSE
// counts, or any other nonnegative magnitude) without retaining the
// individual samples. Both the value distribution (magnitude when nonzero)
// and the probability distribution (fraction of iterations with a nonzero
// outcome) are tracked simultaneously.
//
// The running mean/variance are kept with Welford's online algorithm rather
// than the textbook "mean of squares minus square of mean" formula, because
// sample magnitudes here can be on the order of 2^40 bytes: squaring values
// that large before subtracting is exactly the catastrophic-cancellation
// case the spec warns about.
type Samples struct {
	n         int64
	mean      float64
	m2        float64
	nPositive int64
}

// New returns an empty Samples accumulator.
func New() *Samples {
	return &Samples{}
}

// Add records one sample, zero or not. A zero-valued sample still updates
// the running mean/variance like any other value - it contributes 0 to both
// sums either way - but only a positive sample advances nPositive, the
// count the probability-of-loss estimator is computed over.
func (s *Samples) Add(x float64) {
	s.n++
	if x > 0 {
		s.nPositive++
	}
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	delta2 := x - s.mean
	s.m2 += delta * delta2
}

// AddZeros records k samples of zero magnitude at once - used to compress
// long runs of "nothing lost" iterations without looping k times.
func (s *Samples) AddZeros(k int64) {
	if k <= 0 {
		return
	}
	s.merge(0, 0, k, 0)
}

// Merge folds another worker's accumulator into this one. Sharded Simulator
// workers each own a private Samples; the driver merges them with this
// method before computing derived statistics, relying on the fact that the
// underlying sums (n, n_+, and the Welford moments) are addable across
// partitions.
func (s *Samples) Merge(other *Samples) {
	if other == nil || other.n == 0 {
		return
	}
	s.merge(other.mean, other.m2, other.n, other.nPositive)
}

// merge combines this accumulator with a second group described by
// (otherMean, otherM2, otherN, otherNPositive) using the parallel variance
// combination formula (Chan et al., 1979), which is exact regardless of
// group sizes.
func (s *Samples) merge(otherMean, otherM2 float64, otherN, otherNPositive int64) {
	if otherN == 0 {
		return
	}
	if s.n == 0 {
		s.mean = otherMean
		s.m2 = otherM2
		s.n = otherN
		s.nPositive = otherNPositive
		return
	}
	delta := otherMean - s.mean
	total := s.n + otherN
	newMean := s.mean + delta*float64(otherN)/float64(total)
	newM2 := s.m2 + otherM2 + delta*delta*float64(s.n)*float64(otherN)/float64(total)
	s.mean = newMean
	s.m2 = newM2
	s.n = total
	s.nPositive += otherNPositive
}

// State returns the accumulator's raw internal sums, letting a caller
// snapshot and later restore a Samples accumulator exactly - used by
// persist.Checkpoint to save and resume a long adaptive run.
func (s *Samples) State() (n, nPositive int64, mean, m2 float64) {
	return s.n, s.nPositive, s.mean, s.m2
}

// FromState reconstructs a Samples accumulator from sums previously
// returned by State.
func FromState(n, nPositive int64, mean, m2 float64) *Samples {
	return &Samples{n: n, nPositive: nPositive, mean: mean, m2: m2}
}

// N returns the total number of samples recorded, including zeros.
func (s *Samples) N() int64 {
	return s.n
}

// NPositive returns the number of samples whose magnitude was nonzero.
func (s *Samples) NPositive() int64 {
	return s.nPositive
}

// Results holds the derived statistics for one Samples accumulator at a
// given confidence level.
type Results struct {
	ValueMean float64 `json:"valueMean"`
	ValueDev  float64 `json:"valueDev"`
	ValueCI   float64 `json:"valueCI"`
	ValueRE   float64 `json:"valueRE"`

	ProbMean float64 `json:"probMean"`
	ProbDev  float64 `json:"probDev"`
	ProbCI   float64 `json:"probCI"`
	ProbRE   float64 `json:"probRE"`
}

// Compute derives mean, standard deviation, confidence-interval half-width,
// and relative error for both the value distribution and the probability-
// of-loss distribution, at the given confidence level (one of the keys in
// zTable).
func (s *Samples) Compute(confidence float64) (Results, error) {
	z, ok := zTable[confidence]
	if !ok {
		return Results{}, errors.AddContext(ErrUnknownConfidence, formatConfidence(confidence))
	}
	if s.n == 0 {
		return Results{}, nil
	}

	n := float64(s.n)
	valueVar := s.m2 / n
	if valueVar < 0 {
		// Only possible from floating point error on a near-constant
		// stream; clamp rather than propagate a negative variance.
		valueVar = 0
	}
	valueDev := math.Sqrt(valueVar)
	valueCI := math.Abs(z * valueDev / math.Sqrt(n))
	valueRE := 0.0
	if s.mean != 0 {
		valueRE = valueCI / s.mean
	}

	probMean := float64(s.nPositive) / n
	probVar := probMean * (1 - probMean)
	if probVar < 0 {
		probVar = 0
	}
	probDev := math.Sqrt(probVar)
	probCI := math.Abs(z * probDev / math.Sqrt(n))
	probRE := 0.0
	if probMean != 0 {
		probRE = probCI / probMean
	}

	return Results{
		ValueMean: s.mean,
		ValueDev:  valueDev,
		ValueCI:   valueCI,
		ValueRE:   valueRE,
		ProbMean:  probMean,
		ProbDev:   probDev,
		ProbCI:    probCI,
		ProbRE:    probRE,
	}, nil
}

func formatConfidence(c float64) string {
	return "confidence level " + strconv.FormatFloat(c, 'g', -1, 64) + " is not in the supported table"
}
