// Package config defines the simulator's enumerated configuration options,
// the two bit-for-bit preset parameter bundles, and validation.
package config

import (
	"os"
	"path/filepath"

	"github.com/kardianos/osext"
	"gitlab.com/NebulousLabs/errors"

	"github.com/fomy/simd/array"
	"github.com/fomy/simd/damage"
)

// WeibullParams is a (shape, scale, location) tuple, the form every
// disk_*_parms option takes.
type WeibullParams struct {
	Shape    float64 `json:"shape"`
	Scale    float64 `json:"scale"`
	Location float64 `json:"location"`
}

// Options bundles every enumerated configuration option from the external
// interface.
type Options struct {
	MissionTime float64 `json:"missionTime"` // hours, default 87600
	Iterations  int64   `json:"iterations"`  // default 10000

	RaidType string `json:"raidType"` // "mds_<D>_<P>"
	RaidNum  int    `json:"raidNum"`

	DiskCapacity   uint64  `json:"diskCapacity"` // sectors, 512B each
	CapacityFactor float64 `json:"capacityFactor"`

	DiskFailParms      WeibullParams `json:"diskFailParms"`
	DiskRepairParms    WeibullParams `json:"diskRepairParms"`
	DiskScrubbingParms WeibullParams `json:"diskScrubbingParms"`
	DiskLSERate        float64       `json:"diskLSERate"` // per hour

	ForceRE    bool    `json:"forceRE"`
	RequiredRE float64 `json:"requiredRE"`

	FileLevel bool   `json:"fileLevel"`
	Dedup     bool   `json:"dedup"`
	Weighted  bool   `json:"weighted"`
	TracePath string `json:"tracePath,omitempty"`
}

// Errors returned by Validate.
var (
	ErrMissionTime  = errors.New("mission_time must be non-negative")
	ErrIterations   = errors.New("iterations must be positive")
	ErrRaidNum      = errors.New("raid_num must be positive")
	ErrDiskCapacity = errors.New("disk_capacity must be positive")
	ErrLSERate      = errors.New("disk_lse_parms rate must be non-negative")
	ErrRequiredRE   = errors.New("required_re must be positive when force_re is set")
	ErrTracePath    = errors.New("trace_path is required for file-level or dedup damage models")
)

// Default returns the built-in defaults from the external-interface spec,
// prior to applying any preset.
func Default() Options {
	return Options{
		MissionTime:    87600,
		Iterations:     10000,
		RaidType:       "mds_14_2",
		RaidNum:        1,
		DiskCapacity:   2 * 1024 * 1024 * 1024,
		CapacityFactor: 1,
		RequiredRE:     0.05,
	}
}

// Elerath2009 returns the Elerath2009 preset parameter bundle, values
// preserved bit-for-bit from the source.
func Elerath2009() Options {
	o := Default()
	o.DiskFailParms = WeibullParams{Shape: 1.2, Scale: 461386.0, Location: 0}
	o.DiskRepairParms = WeibullParams{Shape: 2.0, Scale: 12.0, Location: 6.0}
	o.DiskLSERate = 1.08 / 10000
	o.DiskScrubbingParms = WeibullParams{Shape: 3, Scale: 168, Location: 6}
	return o
}

// Elerath2014A returns the Elerath2014, SATA Disk A preset bundle.
func Elerath2014A() Options {
	o := Default()
	o.DiskFailParms = WeibullParams{Shape: 1.13, Scale: 302016.0, Location: 0}
	o.DiskRepairParms = WeibullParams{Shape: 1.65, Scale: 22.7, Location: 0}
	o.DiskLSERate = 1.0 / 12325
	o.DiskScrubbingParms = WeibullParams{Shape: 1, Scale: 186, Location: 0}
	return o
}

// Elerath2014B returns the Elerath2014, SATA Disk B preset bundle.
func Elerath2014B() Options {
	o := Default()
	o.DiskFailParms = WeibullParams{Shape: 0.576, Scale: 4833522.0, Location: 0}
	o.DiskRepairParms = WeibullParams{Shape: 1.15, Scale: 20.25, Location: 0}
	o.DiskLSERate = 1.0 / 42857
	o.DiskScrubbingParms = WeibullParams{Shape: 0.97, Scale: 160, Location: 0}
	return o
}

// ApplyCapacityFactor scales DiskCapacity and the repair/scrubbing
// distributions' scale and location parameters by o.CapacityFactor. Call
// this once, after choosing a preset and overriding CapacityFactor, and
// before constructing the simulation engine.
func (o *Options) ApplyCapacityFactor() {
	f := o.CapacityFactor
	if f == 0 {
		f = 1
	}
	o.DiskCapacity = uint64(float64(o.DiskCapacity) * f)
	o.DiskRepairParms.Scale *= f
	o.DiskRepairParms.Location *= f
	o.DiskScrubbingParms.Scale *= f
	o.DiskScrubbingParms.Location *= f
}

// Validate checks every option and, on failure, returns every problem found
// composed into a single error rather than stopping at the first.
func (o Options) Validate() error {
	var errs []error
	if o.MissionTime < 0 {
		errs = append(errs, ErrMissionTime)
	}
	if o.Iterations <= 0 {
		errs = append(errs, ErrIterations)
	}
	if o.RaidNum <= 0 {
		errs = append(errs, ErrRaidNum)
	}
	if o.DiskCapacity == 0 {
		errs = append(errs, ErrDiskCapacity)
	}
	if o.DiskLSERate < 0 {
		errs = append(errs, ErrLSERate)
	}
	if o.ForceRE && o.RequiredRE <= 0 {
		errs = append(errs, ErrRequiredRE)
	}
	if _, _, err := array.ParseRaidType(o.RaidType); err != nil {
		errs = append(errs, err)
	}
	if (o.FileLevel || o.Dedup) && o.TracePath == "" {
		errs = append(errs, ErrTracePath)
	}
	return errors.Compose(errs...)
}

// DamageConfig projects the damage-model selector fields into a
// damage.Config. TracePath is copied as given; it is not resolved here (see
// ResolveTracePath).
func (o Options) DamageConfig() damage.Config {
	return damage.Config{
		FileLevel: o.FileLevel,
		Dedup:     o.Dedup,
		Weighted:  o.Weighted,
		TracePath: o.TracePath,
	}
}

// ResolveTracePath returns path unchanged if it exists relative to the
// current working directory; otherwise it tries the directory the running
// executable lives in, the way an installed binary ships its bundled preset
// traces alongside itself.
func ResolveTracePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	if pathExists(path) {
		return path, nil
	}
	dir, err := osext.ExecutableFolder()
	if err != nil {
		return "", errors.AddContext(err, "could not resolve executable directory to search for trace file")
	}
	candidate := filepath.Join(dir, path)
	if pathExists(candidate) {
		return candidate, nil
	}
	return path, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
