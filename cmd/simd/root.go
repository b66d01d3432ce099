package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"

	"github.com/fomy/simd/config"
	"github.com/fomy/simd/engine"
	"github.com/fomy/simd/persist"
	"github.com/fomy/simd/stochastic"
)

var flags struct {
	parameters        string
	missionTime       float64
	iterations        int64
	raidType          string
	raidNum           int
	capacityFactor    float64
	diskFailDist      string
	diskRepairDist    string
	diskLSEDist       string
	diskScrubbingDist string
	accuracy          float64
	trace             string
	filelevel         bool
	dedup             bool
	weighted          bool
	quiet             bool
	checkpoint        string
}

var rootCmd = &cobra.Command{
	Use:   "simd",
	Short: "Monte-Carlo reliability simulator for erasure-coded storage arrays",
	Long: `simd estimates array-failure probability and data-loss magnitude for an
erasure-coded storage array over a mission window, by running many
independent discrete-event simulations and aggregating their outcomes.`,
	RunE: runSimulation,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.parameters, "parameters", "p", "", "preset parameter bundle: Elerath2009, Elerath2014A, Elerath2014B")
	f.Float64VarP(&flags.missionTime, "mission_time", "m", 0, "mission time in hours (default 87600)")
	f.Int64VarP(&flags.iterations, "iterations", "i", 0, "number of simulation iterations (default 10000)")
	f.StringVarP(&flags.raidType, "raid", "r", "", "raid configuration, e.g. mds_7_1 (default mds_14_2)")
	f.IntVarP(&flags.raidNum, "raid_num", "n", 0, "number of raids in the system (default 1)")
	f.Float64VarP(&flags.capacityFactor, "capacity", "c", 0, "disk capacity factor (default 1)")
	f.StringVarP(&flags.diskFailDist, "disk_fail_dist", "F", "", "disk fail distribution: \"(shape, scale, location)\"")
	f.StringVarP(&flags.diskRepairDist, "disk_repair_dist", "R", "", "disk repair distribution: \"(shape, scale, location)\"")
	f.StringVarP(&flags.diskLSEDist, "disk_lse_dist", "L", "", "disk LSE rate: \"(rate)\"")
	f.StringVarP(&flags.diskScrubbingDist, "disk_scrubbing_dist", "S", "", "disk scrubbing distribution: \"(shape, scale, location)\"")
	f.Float64VarP(&flags.accuracy, "accuracy", "a", 0, "required relative error; enables adaptive extension when set")
	f.StringVarP(&flags.trace, "trace", "t", "", "trace file path, required for filelevel/dedup damage models")
	f.BoolVarP(&flags.filelevel, "filelevel", "f", false, "report loss at file granularity instead of chunk granularity")
	f.BoolVarP(&flags.dedup, "dedup", "d", false, "amplify reported loss by the trace's deduplication factor")
	f.BoolVarP(&flags.weighted, "weighted", "w", false, "weight each LSE by a randomly drawn trace entry")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress the progress bar")
	f.StringVar(&flags.checkpoint, "checkpoint", "", "write-ahead log path for resumable checkpointing; resumes from it if present")
}

func buildOptions() (config.Options, error) {
	opts, ok := presetOptions(flags.parameters)
	if !ok {
		return config.Options{}, fmt.Errorf("unrecognized parameter bundle %q", flags.parameters)
	}

	if flags.missionTime != 0 {
		opts.MissionTime = flags.missionTime
	}
	if flags.iterations != 0 {
		opts.Iterations = flags.iterations
	}
	if flags.raidType != "" {
		opts.RaidType = flags.raidType
	}
	if flags.raidNum != 0 {
		opts.RaidNum = flags.raidNum
	}
	if flags.capacityFactor != 0 {
		opts.CapacityFactor = flags.capacityFactor
	}
	if flags.diskFailDist != "" {
		parsed, err := parseWeibullArg(flags.diskFailDist)
		if err != nil {
			return config.Options{}, fmt.Errorf("disk_fail_dist: %w", err)
		}
		opts.DiskFailParms = parsed
	}
	if flags.diskRepairDist != "" {
		parsed, err := parseWeibullArg(flags.diskRepairDist)
		if err != nil {
			return config.Options{}, fmt.Errorf("disk_repair_dist: %w", err)
		}
		opts.DiskRepairParms = parsed
	}
	if flags.diskScrubbingDist != "" {
		parsed, err := parseWeibullArg(flags.diskScrubbingDist)
		if err != nil {
			return config.Options{}, fmt.Errorf("disk_scrubbing_dist: %w", err)
		}
		opts.DiskScrubbingParms = parsed
	}
	if flags.diskLSEDist != "" {
		parsed, err := parseRateArg(flags.diskLSEDist)
		if err != nil {
			return config.Options{}, fmt.Errorf("disk_lse_dist: %w", err)
		}
		opts.DiskLSERate = parsed
	}
	if flags.accuracy != 0 {
		opts.ForceRE = true
		opts.RequiredRE = flags.accuracy
	}
	if flags.trace != "" {
		opts.TracePath = flags.trace
	}
	opts.FileLevel = flags.filelevel
	opts.Dedup = flags.dedup
	opts.Weighted = flags.weighted

	opts.ApplyCapacityFactor()
	return opts, nil
}

func presetOptions(name string) (config.Options, bool) {
	switch name {
	case "":
		return config.Default(), true
	case "Elerath2009":
		return config.Elerath2009(), true
	case "Elerath2014A":
		return config.Elerath2014A(), true
	case "Elerath2014B":
		return config.Elerath2014B(), true
	default:
		return config.Options{}, false
	}
}

func runSimulation(_ *cobra.Command, _ []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}

	sim, err := engine.New(opts)
	if err != nil {
		return fmt.Errorf("could not build simulator: %w", err)
	}

	var checkpoint *persist.Checkpoint
	if flags.checkpoint != "" {
		cp, recovered, err := persist.NewCheckpoint(flags.checkpoint)
		if err != nil {
			return fmt.Errorf("could not open checkpoint: %w", err)
		}
		checkpoint = cp
		defer checkpoint.Close()
		if recovered != nil {
			fmt.Printf("resuming from checkpoint at %d iterations\n", recovered.Iterations)
			sim.Resume = &engine.RunState{
				Iterations:         recovered.Iterations,
				ArrayFailure:       recovered.ArrayFailureSamples(),
				LSE:                recovered.LSESamples(),
				ArrayFailureEvents: recovered.ArrayFailureEvents,
				LSEEvents:          recovered.LSEEvents,
				DataLossEvents:     recovered.DataLossEvents,
			}
		}
		sim.Checkpoint = func(state engine.RunState) {
			cpState := persist.NewCheckpointState(state.Iterations, state.ArrayFailureEvents, state.LSEEvents, state.DataLossEvents, state.ArrayFailure, state.LSE)
			if err := checkpoint.Save(cpState); err != nil {
				fmt.Fprintln(os.Stderr, "warning: could not save checkpoint:", err)
			}
		}
	}

	progress := make(chan engine.Progress, 1)
	sim.Progress = progress

	var p *mpb.Progress
	var bar *mpb.Bar
	done := make(chan struct{})
	if !flags.quiet {
		p = mpb.New(mpb.WithWidth(64))
		bar = p.AddBar(opts.Iterations,
			mpb.PrependDecorators(decor.Name("simulating")),
			mpb.AppendDecorators(decor.Percentage()),
		)
		go func() {
			defer close(done)
			last := int64(0)
			for pr := range progress {
				if pr.IterationsGoal > bar.Current() {
					// An adaptive extension can raise the goal past the bar's
					// original total. The bar is not resized while the run
					// is in progress; once Run returns, SetTotal below sets
					// its total to the final iteration count.
				}
				bar.IncrBy(int(pr.IterationsDone - last))
				last = pr.IterationsDone
			}
		}()
	} else {
		close(done)
		go func() {
			for range progress {
			}
		}()
	}

	result, err := sim.Run(stochastic.NewSource())
	close(progress)
	<-done
	if p != nil {
		if bar != nil && !bar.Completed() {
			bar.SetTotal(result.Iterations, true)
		}
		p.Wait()
	}
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	printResult(opts, result)
	return nil
}
