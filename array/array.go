// Package array implements the erasure-coded group (an "MDS array"): a
// fixed set of disks tracked for degraded state, critical region, and the
// per-step array-failure and latent-sector-error contributions described in
// the reliability model.
package array

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/klauspost/reedsolomon"
	"gitlab.com/NebulousLabs/errors"

	"github.com/fomy/simd/array/disk"
	"github.com/fomy/simd/build"
	"github.com/fomy/simd/stochastic"
)

// MaxDisks bounds N (data + parity fragments): the failed-disk bitmap is a
// single uint64, which is generous for any realistic erasure code.
const MaxDisks = 64

// ErrInvalidRaidType is returned when a raid_type string does not parse as
// "mds_<D>_<P>" with positive integer D and P.
var ErrInvalidRaidType = errors.New("raid_type must have the form mds_<data>_<parity> with positive integers")

// ErrTooManyDisks is returned when D+P exceeds MaxDisks.
var ErrTooManyDisks = errors.New("data+parity fragment count exceeds the supported disk bitmap width")

// Config describes one array's erasure-code shape and per-disk parameters.
// It is shared, read-only, across every Array instance in a System.
type Config struct {
	RaidType string
	Data     int
	Parity   int
	Disk     disk.Params
}

// ParseRaidType parses a raid_type string of the form "mds_<D>_<P>".
func ParseRaidType(raidType string) (data, parity int, err error) {
	parts := strings.Split(raidType, "_")
	if len(parts) != 3 || parts[0] != "mds" {
		return 0, 0, ErrInvalidRaidType
	}
	data, errD := strconv.Atoi(parts[1])
	parity, errP := strconv.Atoi(parts[2])
	if errD != nil || errP != nil || data <= 0 || parity <= 0 {
		return 0, 0, ErrInvalidRaidType
	}
	return data, parity, nil
}

// NewConfig parses raidType and bundles it with the shared disk parameters.
func NewConfig(raidType string, diskParams disk.Params) (Config, error) {
	data, parity, err := ParseRaidType(raidType)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{RaidType: raidType, Data: data, Parity: parity, Disk: diskParams}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that (Data, Parity) describes a buildable MDS code by
// actually constructing a Reed-Solomon encoder for it, rather than trusting
// the raid_type string alone. This catches configuration mistakes (for
// example a parity count the library's Galois field can't support) at
// startup instead of letting them surface as silently wrong statistics deep
// into a long run.
func (c Config) Validate() error {
	n := c.Data + c.Parity
	if n > MaxDisks {
		return errors.AddContext(ErrTooManyDisks, fmt.Sprintf("mds_%d_%d has %d disks, max is %d", c.Data, c.Parity, n, MaxDisks))
	}
	if _, err := reedsolomon.New(c.Data, c.Parity); err != nil {
		return errors.AddContext(err, fmt.Sprintf("raid_type %q does not describe a constructible MDS code", c.RaidType))
	}
	return nil
}

// N returns the total number of disks (Data + Parity).
func (c Config) N() int {
	return c.Data + c.Parity
}

// State is the array's overall health.
type State int

const (
	// StateOK means the array still tolerates its configured number of
	// disk failures.
	StateOK State = iota
	// StateFailed means more than Parity disks have failed: the array has
	// suffered unrecoverable data loss.
	StateFailed
)

// undefinedCriticalRegion marks CriticalRegion as not-yet-computed, which is
// only meaningful once FailedCount >= Parity.
const undefinedCriticalRegion = -1

// Array holds N disks for one erasure-coded group and tracks the degraded
// state needed to compute array-failure and LSE contributions.
type Array struct {
	cfg   Config
	Disks []*disk.Disk

	FailedCount   int
	FailedBitmap  uint64
	CriticalRegion float64
	State         State

	BytesLost float64
	LSECount  int
}

// New constructs an Array with N freshly-seeded disks.
func New(cfg Config, src *stochastic.Source) *Array {
	a := &Array{cfg: cfg}
	a.Disks = make([]*disk.Disk, cfg.N())
	for i := range a.Disks {
		a.Disks[i] = disk.New(cfg.Disk, src)
	}
	a.CriticalRegion = undefinedCriticalRegion
	return a
}

// Config returns the array's erasure-code configuration.
func (a *Array) Config() Config {
	return a.cfg
}

// Reset seeds every disk for a new iteration and clears all degraded-state
// bookkeeping. It returns each disk's freshly drawn fail time, indexed by
// disk position within the array.
func (a *Array) Reset(src *stochastic.Source) []float64 {
	a.FailedCount = 0
	a.FailedBitmap = 0
	a.CriticalRegion = undefinedCriticalRegion
	a.State = StateOK
	a.BytesLost = 0
	a.LSECount = 0

	times := make([]float64, len(a.Disks))
	for i, d := range a.Disks {
		times[i] = d.Reset(src)
	}
	return times
}

// recomputeCriticalRegion sets CriticalRegion to the minimum, over every
// currently failed disk, of its remaining (unrepaired) fraction. A disk that
// has barely started repairing contributes close to 1; one nearly done
// contributes close to 0. The array-wide critical region is bounded by the
// failed disk closest to finishing its repair, because a stripe stays
// unprotected only while every failed disk's part of it is still unrepaired.
func (a *Array) recomputeCriticalRegion(now float64) {
	region := 1.0
	for i, d := range a.Disks {
		if a.FailedBitmap&(1<<uint(i)) == 0 {
			continue
		}
		remaining := 1 - d.RepairProgress(now)
		if remaining < region {
			region = remaining
		}
	}
	a.CriticalRegion = region
}

// Degrade applies a disk failure at position idx. It returns the disk's
// newly scheduled repair time, which the caller enqueues as its next event.
func (a *Array) Degrade(src *stochastic.Source, idx int, now float64) float64 {
	if a.FailedBitmap&(1<<uint(idx)) != 0 {
		build.Severe("Degrade called twice on the same disk before an intervening Upgrade")
	}
	next := a.Disks[idx].Fail(src, now)
	a.FailedCount++
	a.FailedBitmap |= 1 << uint(idx)
	if a.FailedCount >= a.cfg.Parity {
		a.recomputeCriticalRegion(now)
	}
	return next
}

// Upgrade applies a disk repair at position idx. It returns the disk's newly
// scheduled fail time, which the caller enqueues as its next event.
func (a *Array) Upgrade(src *stochastic.Source, idx int) float64 {
	next := a.Disks[idx].Repair(src)
	a.FailedCount--
	a.FailedBitmap &^= 1 << uint(idx)
	a.CriticalRegion = 0
	return next
}

// CheckFailure reports whether the array has just become unrecoverable
// (more than Parity disks are down) and, if so, computes the bytes lost to
// the still-unprotected critical region and transitions the array to
// StateFailed. This is a terminal condition: a failed array accrues no
// further LSE damage in the current iteration.
func (a *Array) CheckFailure() bool {
	if a.FailedCount <= a.cfg.Parity {
		return false
	}
	a.State = StateFailed
	dataFraction := float64(a.cfg.Data) / float64(a.cfg.N())
	capacityBytes := float64(a.cfg.Disk.Capacity) * disk.SectorSize
	a.BytesLost = capacityBytes * a.CriticalRegion * dataFraction
	return true
}

// CheckSectorsLost samples latent sector errors on every still-healthy disk
// once the array is no longer fault tolerant (FailedCount >= Parity). The
// critical-region coin flip is per disk, not per sector: it models whether
// this disk's scrub pass happened to touch the unprotected stripe region at
// all, not what fraction of its sectors did. It returns true iff this step
// produced at least one sector error.
func (a *Array) CheckSectorsLost(src *stochastic.Source, now float64) bool {
	if a.FailedCount < a.cfg.Parity {
		return false
	}
	total := 0
	for i, d := range a.Disks {
		if a.FailedBitmap&(1<<uint(i)) != 0 {
			continue
		}
		if src.Float64() >= a.CriticalRegion {
			continue
		}
		t := d.ScrubTime(src)
		total += d.SectorErrors(src, t)
	}
	a.LSECount += total
	return total > 0
}

// Popcount returns the number of set bits in the failed-disk bitmap, which
// must always equal FailedCount - this is one of the module's core
// invariants and is exercised directly by tests.
func Popcount(bitmap uint64) int {
	return bits.OnesCount64(bitmap)
}
