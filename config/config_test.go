package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestPresetsAreValid(t *testing.T) {
	presets := map[string]Options{
		"Elerath2009":  Elerath2009(),
		"Elerath2014A": Elerath2014A(),
		"Elerath2014B": Elerath2014B(),
	}
	for name, o := range presets {
		if err := o.Validate(); err != nil {
			t.Errorf("%s.Validate() = %v, want nil", name, err)
		}
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	o := Options{
		MissionTime:  -1,
		Iterations:   0,
		RaidNum:      0,
		DiskCapacity: 0,
		DiskLSERate:  -1,
		RaidType:     "not-a-raid-type",
	}
	err := o.Validate()
	if err == nil {
		t.Fatal("expected Validate to return an error for a fully invalid Options")
	}
}

func TestValidateRequiresRequiredRERWhenForceRESet(t *testing.T) {
	o := Default()
	o.ForceRE = true
	o.RequiredRE = 0
	if err := o.Validate(); err == nil {
		t.Fatal("expected an error when force_re is set but required_re is not positive")
	}
}

func TestValidateRequiresTracePathForFileLevelOrDedup(t *testing.T) {
	base := Default()

	fileLevel := base
	fileLevel.FileLevel = true
	if err := fileLevel.Validate(); err == nil {
		t.Fatal("expected an error for FileLevel without a TracePath")
	}

	dedup := base
	dedup.Dedup = true
	if err := dedup.Validate(); err == nil {
		t.Fatal("expected an error for Dedup without a TracePath")
	}

	withTrace := base
	withTrace.FileLevel = true
	withTrace.TracePath = "some/trace.txt"
	if err := withTrace.Validate(); err != nil {
		t.Fatalf("Validate with a TracePath set = %v, want nil", err)
	}
}

func TestApplyCapacityFactorScalesFields(t *testing.T) {
	o := Default()
	o.DiskCapacity = 1000
	o.DiskRepairParms = WeibullParams{Scale: 10, Location: 2}
	o.DiskScrubbingParms = WeibullParams{Scale: 20, Location: 4}
	o.CapacityFactor = 2

	o.ApplyCapacityFactor()

	if o.DiskCapacity != 2000 {
		t.Fatalf("DiskCapacity = %d, want 2000", o.DiskCapacity)
	}
	if o.DiskRepairParms.Scale != 20 || o.DiskRepairParms.Location != 4 {
		t.Fatalf("DiskRepairParms = %+v, want Scale=20 Location=4", o.DiskRepairParms)
	}
	if o.DiskScrubbingParms.Scale != 40 || o.DiskScrubbingParms.Location != 8 {
		t.Fatalf("DiskScrubbingParms = %+v, want Scale=40 Location=8", o.DiskScrubbingParms)
	}
}

func TestApplyCapacityFactorDefaultsToOne(t *testing.T) {
	o := Default()
	o.DiskCapacity = 500
	o.CapacityFactor = 0
	o.ApplyCapacityFactor()
	if o.DiskCapacity != 500 {
		t.Fatalf("DiskCapacity = %d, want unchanged 500 when CapacityFactor is 0", o.DiskCapacity)
	}
}

func TestResolveTracePathEmptyIsEmpty(t *testing.T) {
	path, err := ResolveTracePath("")
	if err != nil {
		t.Fatalf("ResolveTracePath(\"\") = %v", err)
	}
	if path != "" {
		t.Fatalf("ResolveTracePath(\"\") = %q, want empty", path)
	}
}

func TestResolveTracePathAbsoluteUnchanged(t *testing.T) {
	const abs = "/tmp/does/not/exist/trace.txt"
	path, err := ResolveTracePath(abs)
	if err != nil {
		t.Fatalf("ResolveTracePath: %v", err)
	}
	if path != abs {
		t.Fatalf("ResolveTracePath(%q) = %q, want unchanged", abs, path)
	}
}

func TestDamageConfigProjectsSelectorFields(t *testing.T) {
	o := Default()
	o.FileLevel = true
	o.Dedup = true
	o.Weighted = true
	o.TracePath = "trace.txt"

	dc := o.DamageConfig()
	if !dc.FileLevel || !dc.Dedup || !dc.Weighted || dc.TracePath != "trace.txt" {
		t.Fatalf("DamageConfig() = %+v, want all selectors true and matching TracePath", dc)
	}
}
