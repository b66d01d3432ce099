// Package build contains build-time constants and fatal-assertion helpers
// shared by every package in the module.
package build

import "fmt"

// Release identifies the build mode the binary was compiled in. It mirrors
// the convention of gating test-only behavior (e.g. forcing a worker-pool
// refresh) behind `build.Release == "testing"`.
var Release = "standard"

// Version is the simulator's semantic version, bumped on release.
const Version = "0.1.0"

// Critical should be called when the program encounters an unrecoverable
// inconsistency caused by programmer error rather than bad input - for
// example calling Repair on a disk that is not failed. It panics with a
// formatted message instead of returning an error, because the caller has no
// reasonable way to recover from a broken invariant.
func Critical(v ...interface{}) {
	s := "Critical error: " + fmt.Sprint(v...)
	panic(s)
}

// Severe panics just like Critical, with a different message prefix. In this
// module it is reserved for precondition checks inside hot loops where
// allocating an error would be wasteful, such as Array.Degrade being called
// twice on the same disk.
func Severe(v ...interface{}) {
	s := "Severe error: " + fmt.Sprint(v...)
	panic(s)
}
