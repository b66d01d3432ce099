// Package damage maps the simulator's two raw per-iteration quantities -
// corrupted-area fraction (from an array failure) and LSE count (from
// latent sector errors) - onto reportable units: chunks, files, or bytes,
// optionally amplified by a deduplication factor.
package damage

import (
	"github.com/fomy/simd/stochastic"
)

// chunkBlockSize is the logical block size, in bytes, that each LSE is
// multiplied by in the weighted chunk-level no-dedup variant, matching the
// original implementation's fixed constant.
const chunkBlockSize = 8192

// Model maps raw simulator output to reportable loss units for one of the
// six configured damage-model variants.
type Model interface {
	// RaidFailure converts a corrupted-area fraction (critical_region *
	// data_fraction) into a reportable loss fraction or count.
	RaidFailure(corruptedArea float64) float64
	// SectorError converts a raw LSE count into reportable loss units,
	// drawing randomly from a weight trace when the variant requires it.
	SectorError(src *stochastic.Source, lseCount int) float64
	// DF is the deduplication factor used to scale reported total capacity.
	DF() float64
}

// Config selects which of the six damage-model variants to build.
type Config struct {
	FileLevel bool
	Dedup     bool
	Weighted  bool
	TracePath string
}

// New builds the Model described by cfg, loading a trace file when the
// variant requires one.
func New(cfg Config) (Model, error) {
	switch {
	case !cfg.FileLevel && !cfg.Dedup:
		return chunkNoDedup{weighted: cfg.Weighted}, nil
	case !cfg.FileLevel && cfg.Dedup:
		trace, err := LoadTrace(cfg.TracePath, false, true, true, true)
		if err != nil {
			return nil, err
		}
		return dedupModel{trace: trace}, nil
	case cfg.FileLevel && !cfg.Dedup && !cfg.Weighted:
		trace, err := LoadTrace(cfg.TracePath, true, false, false, false)
		if err != nil {
			return nil, err
		}
		return fileNoDedup{trace: trace, weighted: false}, nil
	case cfg.FileLevel && !cfg.Dedup && cfg.Weighted:
		trace, err := LoadTrace(cfg.TracePath, true, false, true, false)
		if err != nil {
			return nil, err
		}
		return fileNoDedup{trace: trace, weighted: true}, nil
	default: // FileLevel && Dedup, weighted or not - same trace layout
		trace, err := LoadTrace(cfg.TracePath, true, true, true, true)
		if err != nil {
			return nil, err
		}
		return dedupModel{trace: trace}, nil
	}
}

// chunkNoDedup is the simplest variant: no trace, no dedup. RaidFailure
// passes the corrupted-area fraction straight through.
type chunkNoDedup struct {
	weighted bool
}

func (m chunkNoDedup) RaidFailure(corruptedArea float64) float64 {
	return corruptedArea
}

func (m chunkNoDedup) SectorError(_ *stochastic.Source, lseCount int) float64 {
	if m.weighted {
		return float64(lseCount) * chunkBlockSize
	}
	return float64(lseCount)
}

func (m chunkNoDedup) DF() float64 { return 1 }

// fileNoDedup maps corrupted-area fraction through a file-level loss curve,
// without amplifying for deduplication. When weighted, each LSE is mapped
// to a random file's weight (its size) rather than counted as one unit.
type fileNoDedup struct {
	trace    *Trace
	weighted bool
}

func (m fileNoDedup) RaidFailure(corruptedArea float64) float64 {
	return m.trace.RaidFailure(corruptedArea)
}

func (m fileNoDedup) SectorError(src *stochastic.Source, lseCount int) float64 {
	if !m.weighted {
		return float64(lseCount)
	}
	return sumRandomWeights(src, m.trace, lseCount)
}

func (m fileNoDedup) DF() float64 { return 1 }

// dedupModel covers both the chunk-dedup and file-dedup(weighted or not)
// variants: all three share the same behavior once a trace is loaded - the
// loss curve drives RaidFailure and every LSE draws a random logical weight
// from the trace, amplified overall by the trace's deduplication factor.
type dedupModel struct {
	trace *Trace
}

func (m dedupModel) RaidFailure(corruptedArea float64) float64 {
	return m.trace.RaidFailure(corruptedArea)
}

func (m dedupModel) SectorError(src *stochastic.Source, lseCount int) float64 {
	return sumRandomWeights(src, m.trace, lseCount)
}

func (m dedupModel) DF() float64 { return m.trace.DF }

func sumRandomWeights(src *stochastic.Source, trace *Trace, n int) float64 {
	rng := trace.LSERange()
	if rng == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		idx := int(src.Float64() * float64(rng))
		if idx >= rng {
			idx = rng - 1
		}
		total += trace.Weights[idx]
	}
	return total
}
