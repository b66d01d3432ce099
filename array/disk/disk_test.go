package disk

import (
	"testing"

	"github.com/fomy/simd/stochastic"
)

func testParams() Params {
	return Params{
		Fail:     stochastic.NewWeibull(1.2, 461386, 0),
		Repair:   stochastic.NewWeibull(2.0, 12, 6),
		LSE:      stochastic.NewPoisson(1.08 / 10000),
		Scrub:    stochastic.NewWeibull(3, 168, 6),
		Capacity: 2 * 1024 * 1024 * 1024,
	}
}

func testSource() *stochastic.Source {
	var seed [stochastic.SeedSize]byte
	copy(seed[:], []byte("disk-test-fixed-seed-value-here!"))
	return stochastic.NewSourceFromSeed(seed)
}

func TestNewDiskStartsOKWithFailTime(t *testing.T) {
	src := testSource()
	d := New(testParams(), src)
	if d.State() != StateOK {
		t.Fatalf("State() = %v, want StateOK", d.State())
	}
	if d.FailTime <= 0 {
		t.Fatalf("FailTime = %v, want > 0", d.FailTime)
	}
}

func TestFailThenRepairTimesAreForwardMoving(t *testing.T) {
	src := testSource()
	d := New(testParams(), src)

	failAt := d.FailTime
	repairAt := d.Fail(src, failAt)
	if d.State() != StateFailed {
		t.Fatalf("State() = %v, want StateFailed", d.State())
	}
	if repairAt <= failAt {
		t.Fatalf("repair time %v not after fail time %v", repairAt, failAt)
	}

	nextFailAt := d.Repair(src)
	if d.State() != StateOK {
		t.Fatalf("State() = %v, want StateOK after repair", d.State())
	}
	if nextFailAt <= repairAt {
		t.Fatalf("next fail time %v not after repair time %v", nextFailAt, repairAt)
	}
}

func TestResetAfterFailRepairCycleIsIdempotentGivenSameSeed(t *testing.T) {
	runOnce := func() float64 {
		src := testSource()
		d := New(testParams(), src)
		d.Fail(src, d.FailTime)
		d.Repair(src)
		return d.Reset(src)
	}
	if runOnce() != runOnce() {
		t.Fatal("Reset after an identical fail/repair sequence produced different fail times from the same seed")
	}
}

func TestFailOnFailedDiskPanics(t *testing.T) {
	src := testSource()
	d := New(testParams(), src)
	d.Fail(src, d.FailTime)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic calling Fail on an already-failed disk")
		}
	}()
	d.Fail(src, 1)
}

func TestRepairOnOKDiskPanics(t *testing.T) {
	src := testSource()
	d := New(testParams(), src)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic calling Repair on an OK disk")
		}
	}()
	d.Repair(src)
}

func TestRepairProgressClampedToUnitInterval(t *testing.T) {
	src := testSource()
	d := New(testParams(), src)
	repairAt := d.Fail(src, 0)

	if p := d.RepairProgress(-100); p != 0 {
		t.Fatalf("RepairProgress before start = %v, want 0", p)
	}
	if p := d.RepairProgress(repairAt + 1000); p != 1 {
		t.Fatalf("RepairProgress long after completion = %v, want 1", p)
	}
}

func TestSectorErrorsNonNegative(t *testing.T) {
	src := testSource()
	d := New(testParams(), src)
	for i := 0; i < 100; i++ {
		if n := d.SectorErrors(src, 168); n < 0 {
			t.Fatalf("SectorErrors = %d, want >= 0", n)
		}
	}
}
