package damage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fomy/simd/stochastic"
)

func writeTraceFile(t *testing.T, header string, weights []float64, df float64, hasWeights, hasDF bool) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(header + "\n")
	if hasWeights {
		for _, w := range weights {
			fmt.Fprintf(&b, "%s\n", strconv.FormatFloat(w, 'g', -1, 64))
		}
	}
	if hasDF {
		fmt.Fprintf(&b, "%s\n", strconv.FormatFloat(df, 'g', -1, 64))
	}
	for i := 0; i < TailLen; i++ {
		fmt.Fprintf(&b, "%s\n", strconv.FormatFloat(float64(i)/float64(TailLen-1), 'g', -1, 64))
	}

	path := filepath.Join(t.TempDir(), "trace.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func testSrc() *stochastic.Source {
	var seed [stochastic.SeedSize]byte
	copy(seed[:], []byte("damage-test-fixed-seed-value-her"))
	return stochastic.NewSourceFromSeed(seed)
}

func TestChunkNoDedupNeedsNoTraceFile(t *testing.T) {
	m, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := m.RaidFailure(0.5); got != 0.5 {
		t.Fatalf("RaidFailure(0.5) = %v, want 0.5 (pass-through)", got)
	}
	if got := m.SectorError(testSrc(), 3); got != 3 {
		t.Fatalf("SectorError(3) = %v, want 3", got)
	}
	if m.DF() != 1 {
		t.Fatalf("DF() = %v, want 1", m.DF())
	}
}

func TestChunkNoDedupWeightedScalesByBlockSize(t *testing.T) {
	m, err := New(Config{Weighted: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := m.SectorError(testSrc(), 2)
	want := 2 * float64(chunkBlockSize)
	if got != want {
		t.Fatalf("SectorError(2) = %v, want %v", got, want)
	}
}

func TestFileNoDedupUnweighted(t *testing.T) {
	path := writeTraceFile(t, "FILE:NODEDUP", nil, 1, false, false)
	m, err := New(Config{FileLevel: true, TracePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.DF() != 1 {
		t.Fatalf("DF() = %v, want 1", m.DF())
	}
	// The fixture's tail is linear (Tail[i] = i/100), so RaidFailure(0) =
	// 1 - Tail[0] = 1.
	if got := m.RaidFailure(0); got != 1 {
		t.Fatalf("RaidFailure(0) = %v, want 1", got)
	}
	if got := m.SectorError(testSrc(), 5); got != 5 {
		t.Fatalf("SectorError(5) = %v, want 5 (unweighted passthrough)", got)
	}
}

func TestFileNoDedupWeightedDrawsFromTrace(t *testing.T) {
	weights := []float64{10, 20, 30}
	path := writeTraceFile(t, "FILE:NODEDUP", weights, 1, true, false)
	m, err := New(Config{FileLevel: true, Weighted: true, TracePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := m.SectorError(testSrc(), 10)
	if got <= 0 {
		t.Fatalf("SectorError = %v, want > 0 drawing from positive weights", got)
	}
}

func TestDedupModelUsesTraceDF(t *testing.T) {
	weights := []float64{5, 15}
	path := writeTraceFile(t, "CHUNK:DEDUP", weights, 2.5, true, true)
	m, err := New(Config{Dedup: true, TracePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.DF() != 2.5 {
		t.Fatalf("DF() = %v, want 2.5", m.DF())
	}
}

func TestFileDedupVariant(t *testing.T) {
	weights := []float64{1, 2, 3, 4}
	path := writeTraceFile(t, "FILE:DEDUP", weights, 1.8, true, true)
	m, err := New(Config{FileLevel: true, Dedup: true, TracePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.DF() != 1.8 {
		t.Fatalf("DF() = %v, want 1.8", m.DF())
	}
}

func TestLoadTraceHeaderMismatch(t *testing.T) {
	path := writeTraceFile(t, "CHUNK:NODEDUP", nil, 1, false, false)
	if _, err := LoadTrace(path, true, false, false, false); err == nil {
		t.Fatal("expected a header-mismatch error loading a chunk trace as file-level")
	}
}

func TestLoadTraceNonMonotonicTailIsDegenerate(t *testing.T) {
	var b strings.Builder
	b.WriteString("FILE:NODEDUP\n")
	for i := 0; i < TailLen; i++ {
		v := float64(i) / float64(TailLen-1)
		if i == TailLen/2 {
			v = 0 // break monotonicity partway through
		}
		fmt.Fprintf(&b, "%v\n", v)
	}
	path := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadTrace(path, true, false, false, false); err == nil {
		t.Fatal("expected a degenerate-trace error for a non-monotonic cumulative curve")
	}
}

func TestLoadTraceZeroWeightsIsDegenerate(t *testing.T) {
	path := writeTraceFile(t, "FILE:NODEDUP", []float64{0, 0, 0}, 1, true, false)
	if _, err := LoadTrace(path, true, false, true, false); err == nil {
		t.Fatal("expected a degenerate-trace error for all-zero weights")
	}
}

func TestLoadTraceShortBodyIsDegenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.txt")
	if err := os.WriteFile(path, []byte("FILE:NODEDUP\n0\n1\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadTrace(path, true, false, false, false); err == nil {
		t.Fatal("expected a degenerate-trace error for a body shorter than the fixed tail")
	}
}

func TestRaidFailureMonotonicAcrossCorruptedArea(t *testing.T) {
	path := writeTraceFile(t, "FILE:NODEDUP", nil, 1, false, false)
	trace, err := LoadTrace(path, true, false, false, false)
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	prev := trace.RaidFailure(0)
	for _, area := range []float64{0.1, 0.3, 0.5, 0.8, 1.0} {
		got := trace.RaidFailure(area)
		if got > prev {
			t.Fatalf("RaidFailure(%v) = %v is greater than RaidFailure at a smaller area (%v); loss should be non-increasing as the tail climbs", area, got, prev)
		}
		prev = got
	}
}
