package main

import (
	"fmt"
	"time"

	"github.com/fomy/simd/array"
	"github.com/fomy/simd/config"
	"github.com/fomy/simd/engine"
)

// printResult renders a Result in the same layout the original command-line
// tool used: a header line with total capacity and iteration count, then a
// RAID-failure section and an LSE section, each with probability and
// magnitude estimates at their confidence interval.
func printResult(opts config.Options, result engine.Result) {
	data, _, err := array.ParseRaidType(opts.RaidType)
	if err != nil {
		data = 0
	}
	const sectorsToTB = 512.0 / 1024 / 1024 / 1024 / 1024
	totalCapacity := float64(data) * float64(opts.DiskCapacity) * float64(opts.RaidNum) * sectorsToTB * result.DF

	fmt.Println("**************************************")
	fmt.Printf("System (%s): %.2fTB data, D/F = %.4f, %d of %s RAID, %d iterations\n",
		time.Now().Format(time.ANSIC), totalCapacity, result.DF, opts.RaidNum, opts.RaidType, result.Iterations)
	fmt.Printf("Filelevel = %v, Dedup = %v, Weighted = %v\n", opts.FileLevel, opts.Dedup, opts.Weighted)
	fmt.Printf("Summary: %d of systems with data loss events (%d by raid failures, %d by lse)\n",
		result.DataLossEvents, result.ArrayFailureEvents, result.LSEEvents)

	af := result.ArrayFailureStats
	fmt.Println("******** RAID Failure Part ***********")
	fmt.Printf("Probability of RAID Failures: %e +/- %f Percent, CI (%e,%e), StdDev: %e\n",
		af.ProbMean, 100*af.ProbRE, af.ProbMean-af.ProbCI, af.ProbMean+af.ProbCI, af.ProbDev)
	fmt.Printf("%s: %e +/- %f Percent, CI (%e,%e), StdDev: %e\n",
		valueLabel(opts), af.ValueMean, 100*af.ValueRE, af.ValueMean-af.ValueCI, af.ValueMean+af.ValueCI, af.ValueDev)

	lse := result.LSEStats
	fmt.Println("************* LSE Part ***************")
	fmt.Printf("Probability of LSEs: %e +/- %f Percent, CI (%e,%e), StdDev: %e\n",
		lse.ProbMean, 100*lse.ProbRE, lse.ProbMean-lse.ProbCI, lse.ProbMean+lse.ProbCI, lse.ProbDev)

	nomdl := 0.0
	if totalCapacity != 0 {
		nomdl = lse.ValueMean / totalCapacity
	}
	if !opts.FileLevel {
		unit := "Blocks/Chunks"
		if opts.Weighted {
			unit = "Bytes"
		}
		fmt.Printf("# of %s Lost: %e +/- %f Percent, CI (%f,%f), StdDev: %e\n",
			unit, lse.ValueMean, 100*lse.ValueRE, lse.ValueMean-lse.ValueCI, lse.ValueMean+lse.ValueCI, lse.ValueDev)
		fmt.Printf("NOMDL (Normalized Magnitude of Data Loss): %e %s per TB\n", nomdl, unitPerTB(unit))
	} else {
		fmt.Printf("# of Files Lost: %e +/- %f Percent, CI (%f,%f), StdDev: %e\n",
			lse.ValueMean, 100*lse.ValueRE, lse.ValueMean-lse.ValueCI, lse.ValueMean+lse.ValueCI, lse.ValueDev)
		fmt.Printf("NOMDL (Normalized Magnitude of Data Loss): %e files per TB\n", nomdl)
	}
}

func valueLabel(opts config.Options) string {
	switch {
	case !opts.FileLevel:
		return "Fraction of Blocks/Chunks Lost in the Failed Disk"
	case !opts.Weighted:
		return "Fraction of Files Lost"
	default:
		return "Fraction of Files Lost Weighted by Bytes"
	}
}

func unitPerTB(unit string) string {
	if unit == "Bytes" {
		return "bytes"
	}
	return "chunks"
}
