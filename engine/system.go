package engine

import (
	"github.com/fomy/simd/array"
	"github.com/fomy/simd/array/disk"
	"github.com/fomy/simd/build"
	"github.com/fomy/simd/stochastic"
)

// System owns every Array in one simulation iteration and the single global
// event queue that orders transitions across all of them.
type System struct {
	cfg         array.Config
	missionTime float64
	arrays      []*array.Array
	queue       *eventQueue
	availArrays int
}

// NewSystem constructs a System with raidNum freshly-seeded arrays. Call
// Reset before the first (and every subsequent) iteration.
func NewSystem(cfg array.Config, raidNum int, missionTime float64, src *stochastic.Source) *System {
	sys := &System{
		cfg:         cfg,
		missionTime: missionTime,
		arrays:      make([]*array.Array, raidNum),
	}
	for i := range sys.arrays {
		sys.arrays[i] = array.New(cfg, src)
	}
	return sys
}

// Reset seeds every array for a new iteration and rebuilds the global event
// queue from each disk's freshly drawn fail time.
func (sys *System) Reset(src *stochastic.Source) {
	sys.queue = newEventQueue()
	sys.availArrays = len(sys.arrays)
	for ai, arr := range sys.arrays {
		for di, t := range arr.Reset(src) {
			if t <= sys.missionTime {
				sys.queue.push(Event{Time: t, DiskIdx: di, ArrayIdx: ai})
			}
		}
	}
}

// Step pops and applies the single earliest event, discarding (and
// re-popping) events belonging to arrays that have already failed. It
// returns false when there is nothing left to do: either the queue is
// empty, or every array has failed.
func (sys *System) Step(src *stochastic.Source) bool {
	for {
		if sys.availArrays == 0 {
			return false
		}
		ev, ok := sys.queue.pop()
		if !ok {
			return false
		}
		if ev.Time > sys.missionTime {
			build.Critical("popped an event scheduled past the mission horizon")
		}
		arr := sys.arrays[ev.ArrayIdx]
		if arr.State == array.StateFailed {
			continue
		}
		sys.applyEvent(src, arr, ev)
		return true
	}
}

func (sys *System) applyEvent(src *stochastic.Source, arr *array.Array, ev Event) {
	d := arr.Disks[ev.DiskIdx]
	if d.State() == disk.StateOK {
		next := arr.Degrade(src, ev.DiskIdx, ev.Time)
		if next <= sys.missionTime {
			sys.queue.push(Event{Time: next, DiskIdx: ev.DiskIdx, ArrayIdx: ev.ArrayIdx})
		}
		sys.afterFail(src, arr, ev.Time)
		return
	}
	next := arr.Upgrade(src, ev.DiskIdx)
	if next <= sys.missionTime {
		sys.queue.push(Event{Time: next, DiskIdx: ev.DiskIdx, ArrayIdx: ev.ArrayIdx})
	}
	// No damage check follows a repair event.
}

// afterFail runs the post-FAIL-event damage checks: check_failure first,
// and only check_sectors_lost when the array is still OK afterward.
func (sys *System) afterFail(src *stochastic.Source, arr *array.Array, now float64) {
	if arr.FailedCount < arr.Config().Parity {
		return
	}
	if arr.CheckFailure() {
		sys.availArrays--
		return
	}
	arr.CheckSectorsLost(src, now)
}

// Run steps the System until completion (queue exhausted or every array
// failed), checking stop between every event for a cooperative interrupt.
// A nil stop channel means "never interrupt".
func (sys *System) Run(src *stochastic.Source, stop <-chan struct{}) {
	for sys.Step(src) {
		if stop == nil {
			continue
		}
		select {
		case <-stop:
			return
		default:
		}
	}
}

// CorruptedAreas returns, for every array that ended this iteration in
// StateFailed, its critical_region * data_fraction contribution - the raw
// input to the damage model's RaidFailure mapping.
func (sys *System) CorruptedAreas() []float64 {
	var areas []float64
	for _, arr := range sys.arrays {
		if arr.State != array.StateFailed {
			continue
		}
		dataFraction := float64(sys.cfg.Data) / float64(sys.cfg.N())
		areas = append(areas, arr.CriticalRegion*dataFraction)
	}
	return areas
}

// TotalLSECount sums the raw LSE count accumulated across every array in
// this iteration, failed or not.
func (sys *System) TotalLSECount() int {
	total := 0
	for _, arr := range sys.arrays {
		total += arr.LSECount
	}
	return total
}

// FailedArrayCount returns the number of arrays that ended this iteration
// in StateFailed.
func (sys *System) FailedArrayCount() int {
	count := 0
	for _, arr := range sys.arrays {
		if arr.State == array.StateFailed {
			count++
		}
	}
	return count
}
