package engine

import (
	"sync"

	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/threadgroup"

	"github.com/fomy/simd/array"
	"github.com/fomy/simd/array/disk"
	"github.com/fomy/simd/config"
	"github.com/fomy/simd/damage"
	"github.com/fomy/simd/stats"
	"github.com/fomy/simd/stochastic"
)

// interruptCheckInterval is how many iterations Run completes between
// Progress messages and Checkpoint calls (2^14). The cooperative-interrupt
// channel itself is checked before every iteration and between events.
const interruptCheckInterval = 1 << 14

// confidenceLevel is the fixed confidence level results are computed at.
const confidenceLevel = 0.95

// minAdditionalIterations is the floor on how many extra iterations the
// adaptive loop adds per round, even when the linear RE estimate asks for
// fewer.
const minAdditionalIterations = 10000

// Progress is published on an optional channel during Run, one message per
// completed batch of iterations. Consuming it is entirely the caller's
// responsibility (a CLI progress bar, an HTTP poll endpoint, nothing at
// all); the Simulator never blocks waiting for a reader.
type Progress struct {
	IterationsDone int64
	IterationsGoal int64
}

// Result is the core's full return surface: both sample aggregators, raw
// event counters, the final iteration count, and the damage model's
// deduplication factor.
type Result struct {
	ArrayFailureSamples *stats.Samples `json:"-"`
	LSESamples          *stats.Samples `json:"-"`
	ArrayFailureEvents  int64          `json:"arrayFailureEvents"`
	LSEEvents           int64          `json:"lseEvents"`
	DataLossEvents      int64          `json:"dataLossEvents"`
	Iterations          int64          `json:"iterations"`
	DF                  float64        `json:"deduplicationFactor"`

	ArrayFailureStats stats.Results `json:"arrayFailure"`
	LSEStats          stats.Results `json:"lse"`
}

// Simulator drives the adaptive iteration loop described in the component
// design: run a base number of iterations, compute confidence statistics,
// and - when force_re is set - keep extending the run until both sample
// aggregators meet the required relative error.
type Simulator struct {
	opts        config.Options
	arrayCfg    array.Config
	damageModel damage.Model

	tg *threadgroup.ThreadGroup

	// Progress, if non-nil, receives a Progress message after every batch
	// of iterations. Sends are non-blocking: a full or absent receiver
	// never stalls the simulation.
	Progress chan<- Progress

	// Checkpoint, if non-nil, is called periodically with the running
	// state so a killed long run can be resumed. See persist.Checkpoint.
	Checkpoint func(state RunState)

	// Resume, if non-nil, seeds Run's aggregators, event counters, and
	// iteration count from a prior checkpoint instead of starting from zero.
	Resume *RunState
}

// RunState is the subset of a Simulator's running state a caller can save
// and later feed back in as Resume: the iteration count, both sample
// aggregators, and the three event counters, exactly what
// persist.CheckpointState reconstructs.
type RunState struct {
	Iterations         int64
	ArrayFailure       *stats.Samples
	LSE                *stats.Samples
	ArrayFailureEvents int64
	LSEEvents          int64
	DataLossEvents     int64
}

// New validates opts, resolves its raid_type and damage-model selectors,
// and returns a ready-to-run Simulator.
func New(opts config.Options) (*Simulator, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.AddContext(err, "invalid simulator configuration")
	}

	diskParams, err := diskParamsFromOptions(opts)
	if err != nil {
		return nil, err
	}
	arrayCfg, err := array.NewConfig(opts.RaidType, diskParams)
	if err != nil {
		return nil, err
	}

	tracePath, err := config.ResolveTracePath(opts.TracePath)
	if err != nil {
		return nil, err
	}
	damageCfg := opts.DamageConfig()
	damageCfg.TracePath = tracePath
	model, err := damage.New(damageCfg)
	if err != nil {
		return nil, errors.AddContext(err, "could not build damage model")
	}

	return &Simulator{
		opts:        opts,
		arrayCfg:    arrayCfg,
		damageModel: model,
		tg:          &threadgroup.ThreadGroup{},
	}, nil
}

func diskParamsFromOptions(opts config.Options) (disk.Params, error) {
	return disk.Params{
		Fail:     stochastic.NewWeibull(opts.DiskFailParms.Shape, opts.DiskFailParms.Scale, opts.DiskFailParms.Location),
		Repair:   stochastic.NewWeibull(opts.DiskRepairParms.Shape, opts.DiskRepairParms.Scale, opts.DiskRepairParms.Location),
		LSE:      stochastic.NewPoisson(opts.DiskLSERate),
		Scrub:    stochastic.NewWeibull(opts.DiskScrubbingParms.Shape, opts.DiskScrubbingParms.Scale, opts.DiskScrubbingParms.Location),
		Capacity: opts.DiskCapacity,
	}, nil
}

// Interrupt cooperatively stops an in-progress Run: the current iteration
// stops at its next event boundary and its outcome so far is recorded, then
// the Simulator computes statistics on whatever has accumulated and returns
// - it is never an error for Run to be interrupted.
func (s *Simulator) Interrupt() {
	_ = s.tg.Stop()
}

// Run executes the adaptive loop: opts.Iterations base iterations, then -
// if opts.ForceRE - additional rounds until both sample aggregators are
// within opts.RequiredRE, per the linear-underestimate extension formula.
func (s *Simulator) Run(src *stochastic.Source) (Result, error) {
	if err := s.tg.Add(); err != nil {
		return Result{}, errors.AddContext(err, "simulator is already stopped")
	}
	defer s.tg.Done()

	arrayFailure := stats.New()
	lse := stats.New()
	var arrayFailureEvents, lseEvents, dataLossEvents int64

	goal := s.opts.Iterations
	var done int64
	if s.Resume != nil {
		arrayFailure = s.Resume.ArrayFailure
		lse = s.Resume.LSE
		done = s.Resume.Iterations
		arrayFailureEvents = s.Resume.ArrayFailureEvents
		lseEvents = s.Resume.LSEEvents
		dataLossEvents = s.Resume.DataLossEvents
		if goal < done {
			goal = done
		}
	}

	sys := NewSystem(s.arrayCfg, s.opts.RaidNum, s.opts.MissionTime, src)

	run := func(n int64) bool {
		for i := int64(0); i < n; i++ {
			select {
			case <-s.tg.StopChan():
				return false
			default:
			}
			af, l, afEvent, lEvent := s.runOneIteration(sys, src)
			arrayFailure.Add(af)
			lse.Add(l)
			if afEvent {
				arrayFailureEvents++
			}
			if lEvent {
				lseEvents++
			}
			if afEvent || lEvent {
				dataLossEvents++
			}
			done++
			if done%interruptCheckInterval == 0 {
				s.publishProgress(done, goal)
				s.publishCheckpoint(done, arrayFailure, lse, arrayFailureEvents, lseEvents, dataLossEvents)
			}
		}
		return true
	}

	if !run(goal-done) {
		return s.finalize(arrayFailure, lse, arrayFailureEvents, lseEvents, dataLossEvents, done)
	}

	if s.opts.ForceRE {
		for {
			afStats, err := arrayFailure.Compute(confidenceLevel)
			if err != nil {
				return Result{}, err
			}
			lseStats, err := lse.Compute(confidenceLevel)
			if err != nil {
				return Result{}, err
			}
			if afStats.ValueRE <= s.opts.RequiredRE && lseStats.ValueRE <= s.opts.RequiredRE {
				break
			}
			worstRE := afStats.ValueRE
			if lseStats.ValueRE > worstRE {
				worstRE = lseStats.ValueRE
			}
			extra := extensionSize(worstRE, s.opts.RequiredRE, done)
			goal = done + extra
			if !run(extra) {
				break
			}
		}
	}

	return s.finalize(arrayFailure, lse, arrayFailureEvents, lseEvents, dataLossEvents, done)
}

// extensionSize computes how many additional iterations to run given the
// current worst observed relative error, per spec.md §4.7: at least 10,000,
// or the linear-underestimate scaling of iterations-so-far, whichever is
// larger.
func extensionSize(currentRE, targetRE float64, iterationsSoFar int64) int64 {
	if targetRE <= 0 {
		return minAdditionalIterations
	}
	ratio := currentRE/targetRE - 1
	if ratio < 0 {
		ratio = 0
	}
	linear := int64(ratio*float64(iterationsSoFar) + 0.5)
	if linear < minAdditionalIterations {
		return minAdditionalIterations
	}
	return linear
}

func (s *Simulator) finalize(arrayFailure, lse *stats.Samples, arrayFailureEvents, lseEvents, dataLossEvents, iterations int64) (Result, error) {
	afStats, err := arrayFailure.Compute(confidenceLevel)
	if err != nil {
		return Result{}, err
	}
	lseStats, err := lse.Compute(confidenceLevel)
	if err != nil {
		return Result{}, err
	}
	return Result{
		ArrayFailureSamples: arrayFailure,
		LSESamples:          lse,
		ArrayFailureEvents:  arrayFailureEvents,
		LSEEvents:           lseEvents,
		DataLossEvents:      dataLossEvents,
		Iterations:          iterations,
		DF:                  s.damageModel.DF(),
		ArrayFailureStats:   afStats,
		LSEStats:            lseStats,
	}, nil
}

// runOneIteration resets the System, runs it to completion, and maps its
// raw output through the damage model, returning the per-iteration
// array-failure and LSE magnitudes plus whether each kind of event
// occurred at all.
func (s *Simulator) runOneIteration(sys *System, src *stochastic.Source) (arrayFailureValue, lseValue float64, arrayFailureEvent, lseEvent bool) {
	sys.Reset(src)
	sys.Run(src, s.tg.StopChan())

	for _, area := range sys.CorruptedAreas() {
		arrayFailureValue += s.damageModel.RaidFailure(area)
		arrayFailureEvent = true
	}

	lseCount := sys.TotalLSECount()
	if lseCount > 0 {
		lseValue = s.damageModel.SectorError(src, lseCount)
		lseEvent = lseValue > 0
	}

	return arrayFailureValue, lseValue, arrayFailureEvent, lseEvent
}

func (s *Simulator) publishProgress(done, goal int64) {
	if s.Progress == nil {
		return
	}
	select {
	case s.Progress <- Progress{IterationsDone: done, IterationsGoal: goal}:
	default:
	}
}

func (s *Simulator) publishCheckpoint(done int64, arrayFailure, lse *stats.Samples, arrayFailureEvents, lseEvents, dataLossEvents int64) {
	if s.Checkpoint == nil {
		return
	}
	s.Checkpoint(RunState{
		Iterations:         done,
		ArrayFailure:       arrayFailure,
		LSE:                lse,
		ArrayFailureEvents: arrayFailureEvents,
		LSEEvents:          lseEvents,
		DataLossEvents:     dataLossEvents,
	})
}

// RunSharded is the parallel variant of Run: it splits opts.Iterations
// (and, if force_re is set, every subsequent extension round) across
// workers workers, each owning a private System, Source, and pair of
// Samples, merging their sums once all workers finish a round. Each worker
// is seeded independently by splitting master's seed, per the concurrency
// model's reproducibility requirement.
func (s *Simulator) RunSharded(master *stochastic.Source, workers int) (Result, error) {
	if workers <= 1 {
		return s.Run(master)
	}
	if err := s.tg.Add(); err != nil {
		return Result{}, errors.AddContext(err, "simulator is already stopped")
	}
	defer s.tg.Done()

	seeds, err := master.Split(workers)
	if err != nil {
		return Result{}, err
	}

	goal := s.opts.Iterations
	arrayFailure := stats.New()
	lse := stats.New()
	var arrayFailureEvents, lseEvents, dataLossEvents, done int64
	if s.Resume != nil {
		arrayFailure = s.Resume.ArrayFailure
		lse = s.Resume.LSE
		done = s.Resume.Iterations
		arrayFailureEvents = s.Resume.ArrayFailureEvents
		lseEvents = s.Resume.LSEEvents
		dataLossEvents = s.Resume.DataLossEvents
		if goal < done {
			goal = done
		}
	}

	runRound := func(total int64) bool {
		perWorker := total / int64(workers)
		remainder := total % int64(workers)

		var wg sync.WaitGroup
		results := make([]struct {
			af, l              *stats.Samples
			afEv, lEv, dlEv, n int64
		}, workers)

		for w := 0; w < workers; w++ {
			n := perWorker
			if int64(w) < remainder {
				n++
			}
			wg.Add(1)
			go func(w int, n int64) {
				defer wg.Done()
				src := stochastic.NewSourceFromSeed(seeds[w])
				sys := NewSystem(s.arrayCfg, s.opts.RaidNum, s.opts.MissionTime, src)
				workerAF := stats.New()
				workerLSE := stats.New()
				var afEv, lEv, dlEv int64
				for i := int64(0); i < n; i++ {
					select {
					case <-s.tg.StopChan():
						results[w].af, results[w].l = workerAF, workerLSE
						results[w].afEv, results[w].lEv, results[w].dlEv, results[w].n = afEv, lEv, dlEv, i
						return
					default:
					}
					af, l, afEvent, lEvent := s.runOneIteration(sys, src)
					workerAF.Add(af)
					workerLSE.Add(l)
					if afEvent {
						afEv++
					}
					if lEvent {
						lEv++
					}
					if afEvent || lEvent {
						dlEv++
					}
				}
				results[w].af, results[w].l = workerAF, workerLSE
				results[w].afEv, results[w].lEv, results[w].dlEv, results[w].n = afEv, lEv, dlEv, n
			}(w, n)
		}
		wg.Wait()

		for _, r := range results {
			arrayFailure.Merge(r.af)
			lse.Merge(r.l)
			arrayFailureEvents += r.afEv
			lseEvents += r.lEv
			dataLossEvents += r.dlEv
			done += r.n
		}
		s.publishProgress(done, goal)
		s.publishCheckpoint(done, arrayFailure, lse, arrayFailureEvents, lseEvents, dataLossEvents)
		return true
	}

	runRound(goal - done)

	if s.opts.ForceRE {
	extendLoop:
		for {
			afStats, err := arrayFailure.Compute(confidenceLevel)
			if err != nil {
				return Result{}, err
			}
			lseStats, err := lse.Compute(confidenceLevel)
			if err != nil {
				return Result{}, err
			}
			if afStats.ValueRE <= s.opts.RequiredRE && lseStats.ValueRE <= s.opts.RequiredRE {
				break
			}
			worstRE := afStats.ValueRE
			if lseStats.ValueRE > worstRE {
				worstRE = lseStats.ValueRE
			}
			extra := extensionSize(worstRE, s.opts.RequiredRE, done)
			select {
			case <-s.tg.StopChan():
				break extendLoop
			default:
			}
			runRound(extra)
		}
	}

	return s.finalize(arrayFailure, lse, arrayFailureEvents, lseEvents, dataLossEvents, done)
}
