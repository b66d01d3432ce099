package damage

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	mstats "github.com/montanaflynn/stats"
	"gitlab.com/NebulousLabs/errors"
)

// TailLen is the number of entries in a trace's cumulative
// loss-vs-mission-progress curve: one for 0%, 1%, ..., 100% progress.
const TailLen = 101

// ErrTraceHeaderMismatch is returned when a trace file's header line doesn't
// match the variant it was loaded for.
var ErrTraceHeaderMismatch = errors.New("trace file header does not match the requested damage-model variant")

// ErrTraceDegenerate is returned when a trace's contents fail a basic
// sanity check (e.g. an all-zero weight vector, or a cumulative tail that
// isn't non-decreasing).
var ErrTraceDegenerate = errors.New("trace file failed sanity validation")

// Trace is the immutable, loaded content of a dedup/file-level damage trace:
// optional per-chunk (or per-file) weights, an optional deduplication
// factor, and the 101-entry cumulative loss curve.
type Trace struct {
	// Weights holds per-chunk/file weights (size or reference count),
	// empty for the unweighted, no-dedup file-level variant.
	Weights []float64
	// DF is the deduplication factor: ratio of logical to physical bytes.
	// It is 1 for every non-dedup variant.
	DF float64
	// Tail is the cumulative loss-vs-progress curve, Tail[i] corresponding
	// to i% of mission progress.
	Tail [TailLen]float64
}

// header identifies which of the trace layouts a file holds.
type header struct {
	fileLevel bool
	dedup     bool
}

func (h header) expected() string {
	level := "CHUNK"
	if h.fileLevel {
		level = "FILE"
	}
	if h.dedup {
		return level + ":DEDUP"
	}
	return level + ":NODEDUP"
}

// LoadTrace reads a trace file from path, validating that its header line
// matches the requested variant and that the body has the shape that
// variant expects. hasWeights controls whether a weights section precedes
// the fixed 101-entry tail; hasDF controls whether a single deduplication-
// factor float precedes the tail.
func LoadTrace(path string, fileLevel, dedup, hasWeights, hasDF bool) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.AddContext(err, "could not open trace file")
	}
	defer f.Close()

	values, headerLine, err := readTraceLines(f)
	if err != nil {
		return nil, err
	}

	want := header{fileLevel: fileLevel, dedup: dedup}
	if strings.TrimSpace(headerLine) != want.expected() {
		return nil, errors.AddContext(ErrTraceHeaderMismatch, "got "+strconv.Quote(headerLine)+", want "+want.expected())
	}

	t := &Trace{DF: 1}
	if err := t.populate(values, hasWeights, hasDF); err != nil {
		return nil, err
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func readTraceLines(r io.Reader) (values []float64, headerLine string, err error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, "", errors.New("trace file is empty")
	}
	headerLine = scanner.Text()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, "", errors.AddContext(err, "could not parse trace body line as a float")
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, "", errors.AddContext(err, "error reading trace file")
	}
	return values, headerLine, nil
}

func (t *Trace) populate(values []float64, hasWeights, hasDF bool) error {
	needed := TailLen
	if hasDF {
		needed++
	}
	if len(values) < needed {
		return errors.AddContext(ErrTraceDegenerate, "trace body is shorter than its fixed tail/df section")
	}

	tailStart := len(values) - TailLen
	copy(t.Tail[:], values[tailStart:])

	rest := values[:tailStart]
	if hasDF {
		if len(rest) == 0 {
			return errors.AddContext(ErrTraceDegenerate, "trace is missing its deduplication-factor entry")
		}
		t.DF = rest[len(rest)-1]
		rest = rest[:len(rest)-1]
	}
	if hasWeights {
		t.Weights = rest
	}
	return nil
}

// validate runs basic sanity statistics over the loaded trace using
// montanaflynn/stats, catching malformed traces at load time rather than
// letting them silently distort the simulation's reported damage.
func (t *Trace) validate() error {
	for i := 1; i < TailLen; i++ {
		if t.Tail[i] < t.Tail[i-1] {
			return errors.AddContext(ErrTraceDegenerate, "cumulative loss curve is not non-decreasing")
		}
	}
	if len(t.Weights) > 0 {
		data := mstats.LoadRawData(t.Weights)
		sum, err := mstats.Sum(data)
		if err != nil {
			return errors.AddContext(err, "could not summarize trace weights")
		}
		if sum <= 0 {
			return errors.AddContext(ErrTraceDegenerate, "trace weights sum to zero or less")
		}
	}
	if t.DF <= 0 {
		return errors.AddContext(ErrTraceDegenerate, "deduplication factor must be positive")
	}
	return nil
}

// LSERange is the number of chunk/file weight entries available for random
// sampling in SectorError.
func (t *Trace) LSERange() int {
	return len(t.Weights)
}

// RaidFailure maps a corrupted-area fraction to a loss fraction via the
// cumulative curve: idx = floor((corruptedArea+0.005)*100), clamped to
// [0,100], and the result is 1 - Tail[idx].
func (t *Trace) RaidFailure(corruptedArea float64) float64 {
	idx := int((corruptedArea + 0.005) * 100)
	if idx < 0 {
		idx = 0
	}
	if idx > 100 {
		idx = 100
	}
	return 1 - t.Tail[idx]
}
