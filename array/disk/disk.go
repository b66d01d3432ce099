// Package disk implements the per-disk state machine: failure, repair, and
// the sampled scrub/sector-error process used once a disk has failed.
package disk

import (
	"github.com/fomy/simd/build"
	"github.com/fomy/simd/stochastic"
)

// SectorSize is the size, in bytes, of one disk sector.
const SectorSize = 512

// State is the disk's current operational state.
type State int

const (
	// StateOK means the disk is serving data normally and has a pending
	// fail_time.
	StateOK State = iota
	// StateFailed means the disk is down and has a pending repair_time.
	StateFailed
)

// Params bundles the four distributions a Disk is parameterized by.
type Params struct {
	Fail    stochastic.Weibull
	Repair  stochastic.Weibull
	LSE     stochastic.Poisson
	Scrub   stochastic.Weibull
	Capacity uint64 // sectors
}

// Disk is one member of an erasure-coded Array. Exactly one of FailTime /
// RepairTime is meaningful at any time, per its current State.
type Disk struct {
	params Params

	state State

	// FailTime is the absolute mission-hour at which this disk will next
	// fail. Valid only when State == StateOK.
	FailTime float64
	// RepairTime is the absolute mission-hour at which this disk's ongoing
	// repair completes. Valid only when State == StateFailed.
	RepairTime float64
	// RepairStartTime is the absolute mission-hour the current repair began.
	RepairStartTime float64
}

// New constructs a Disk in the OK state with a freshly drawn fail time. Call
// Reset to (re)seed it for a new iteration.
func New(params Params, src *stochastic.Source) *Disk {
	d := &Disk{params: params}
	d.Reset(src)
	return d
}

// Capacity returns the disk's capacity in sectors.
func (d *Disk) Capacity() uint64 {
	return d.params.Capacity
}

// State returns the disk's current operational state.
func (d *Disk) State() State {
	return d.state
}

// Reset returns the disk to StateOK with a freshly drawn FailTime, clearing
// any in-progress repair bookkeeping. It returns the new FailTime, which the
// caller enqueues as this disk's next event if it falls within the mission
// window.
func (d *Disk) Reset(src *stochastic.Source) float64 {
	d.state = StateOK
	d.RepairTime = 0
	d.RepairStartTime = 0
	d.FailTime = d.params.Fail.Draw(src)
	return d.FailTime
}

// Fail transitions an OK disk to StateFailed. It requires the disk to
// currently be OK; violating that precondition is a programmer error, not a
// simulation event. Returns the newly drawn RepairTime.
func (d *Disk) Fail(src *stochastic.Source, now float64) float64 {
	if d.state != StateOK {
		build.Critical("Fail called on a disk that is not OK")
	}
	d.state = StateFailed
	d.RepairStartTime = now
	d.RepairTime = now + d.params.Repair.Draw(src)
	d.FailTime = 0
	return d.RepairTime
}

// Repair transitions a failed disk back to StateOK. It requires the disk to
// currently be StateFailed. The next FailTime is resampled additively from
// RepairTime - `RepairTime + fail_dist.draw()` - which is the only
// convention that keeps event times strictly forward-moving. Returns the
// newly drawn FailTime.
func (d *Disk) Repair(src *stochastic.Source) float64 {
	if d.state != StateFailed {
		build.Critical("Repair called on a disk that is not failed")
	}
	d.FailTime = d.RepairTime + d.params.Fail.Draw(src)
	d.RepairTime = 0
	d.RepairStartTime = 0
	d.state = StateOK
	return d.FailTime
}

// RepairProgress returns how far into its repair a failed disk is, as a
// fraction in [0, 1]. It is only meaningful while the disk is StateFailed.
func (d *Disk) RepairProgress(now float64) float64 {
	if d.state != StateFailed {
		build.Critical("RepairProgress called on a disk that is not failed")
	}
	span := d.RepairTime - d.RepairStartTime
	if span <= 0 {
		return 1
	}
	progress := (now - d.RepairStartTime) / span
	if progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}

// ScrubTime draws a sample from the scrubbing-interval distribution.
func (d *Disk) ScrubTime(src *stochastic.Source) float64 {
	return d.params.Scrub.Draw(src)
}

// SectorErrors draws the number of latent sector errors observed during a
// scrub window of length t hours.
func (d *Disk) SectorErrors(src *stochastic.Source, t float64) int {
	return d.params.LSE.Draw(src, t)
}
