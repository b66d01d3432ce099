package stats

import (
	"math"
	"testing"
)

func TestAddTracksCountsAndMean(t *testing.T) {
	s := New()
	values := []float64{0, 2, 0, 4, 6}
	for _, v := range values {
		s.Add(v)
	}
	if s.N() != int64(len(values)) {
		t.Fatalf("N() = %d, want %d", s.N(), len(values))
	}
	if s.NPositive() != 3 {
		t.Fatalf("NPositive() = %d, want 3", s.NPositive())
	}
	res, err := s.Compute(0.95)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	wantMean := (0 + 2 + 0 + 4 + 6) / 5.0
	if math.Abs(res.ValueMean-wantMean) > 1e-9 {
		t.Fatalf("ValueMean = %v, want %v", res.ValueMean, wantMean)
	}
	wantProbMean := 3.0 / 5.0
	if math.Abs(res.ProbMean-wantProbMean) > 1e-9 {
		t.Fatalf("ProbMean = %v, want %v", res.ProbMean, wantProbMean)
	}
}

func TestNPositiveNeverExceedsN(t *testing.T) {
	s := New()
	for i := 0; i < 50; i++ {
		v := 0.0
		if i%3 == 0 {
			v = float64(i)
		}
		s.Add(v)
		if s.NPositive() > s.N() {
			t.Fatalf("NPositive %d exceeds N %d after %d adds", s.NPositive(), s.N(), i+1)
		}
	}
}

func TestComputeAllZeroSamplesHasNoNaN(t *testing.T) {
	s := New()
	for i := 0; i < 10; i++ {
		s.Add(0)
	}
	res, err := s.Compute(0.95)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.ValueRE != 0 || res.ProbRE != 0 {
		t.Fatalf("expected zero relative errors for all-zero samples, got %+v", res)
	}
	if math.IsNaN(res.ValueMean) || math.IsNaN(res.ProbMean) || math.IsNaN(res.ValueDev) || math.IsNaN(res.ProbDev) {
		t.Fatalf("unexpected NaN in results: %+v", res)
	}
}

func TestComputeEmptySamplesReturnsZeroValue(t *testing.T) {
	s := New()
	res, err := s.Compute(0.95)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res != (Results{}) {
		t.Fatalf("expected zero-value Results for an empty accumulator, got %+v", res)
	}
}

func TestComputeUnknownConfidenceErrors(t *testing.T) {
	s := New()
	s.Add(1)
	if _, err := s.Compute(0.42); err == nil {
		t.Fatal("expected an error for an unsupported confidence level")
	}
}

func TestMergeAgreesWithSequentialAdd(t *testing.T) {
	values := []float64{0, 5, 10, 0, 15, 20, 0, 25, 1, 2, 3}

	sequential := New()
	for _, v := range values {
		sequential.Add(v)
	}

	a := New()
	b := New()
	for i, v := range values {
		if i%2 == 0 {
			a.Add(v)
		} else {
			b.Add(v)
		}
	}
	a.Merge(b)

	seqRes, err := sequential.Compute(0.95)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	mergedRes, err := a.Compute(0.95)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if a.N() != sequential.N() {
		t.Fatalf("merged N = %d, want %d", a.N(), sequential.N())
	}
	if a.NPositive() != sequential.NPositive() {
		t.Fatalf("merged NPositive = %d, want %d", a.NPositive(), sequential.NPositive())
	}
	if math.Abs(mergedRes.ValueMean-seqRes.ValueMean) > 1e-9 {
		t.Fatalf("merged ValueMean = %v, want %v", mergedRes.ValueMean, seqRes.ValueMean)
	}
	if math.Abs(mergedRes.ValueDev-seqRes.ValueDev) > 1e-9 {
		t.Fatalf("merged ValueDev = %v, want %v", mergedRes.ValueDev, seqRes.ValueDev)
	}
}

func TestMergeWithEmptyIsNoOp(t *testing.T) {
	s := New()
	s.Add(1)
	s.Add(2)
	before := *s
	s.Merge(New())
	if *s != before {
		t.Fatalf("merging an empty accumulator changed state: %+v != %+v", *s, before)
	}
	s.Merge(nil)
	if *s != before {
		t.Fatalf("merging nil changed state: %+v != %+v", *s, before)
	}
}

func TestAddZerosMatchesRepeatedAddZero(t *testing.T) {
	a := New()
	a.AddZeros(7)

	b := New()
	for i := 0; i < 7; i++ {
		b.Add(0)
	}

	if a.N() != b.N() || a.NPositive() != b.NPositive() {
		t.Fatalf("AddZeros(7) state %+v does not match 7x Add(0) state %+v", *a, *b)
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := New()
	for _, v := range []float64{0, 3, 0, 9, 27} {
		s.Add(v)
	}
	n, nPositive, mean, m2 := s.State()
	restored := FromState(n, nPositive, mean, m2)
	if *restored != *s {
		t.Fatalf("FromState(State()) = %+v, want %+v", *restored, *s)
	}
}
