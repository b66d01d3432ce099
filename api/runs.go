package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"
	"gitlab.com/NebulousLabs/fastrand"

	"github.com/fomy/simd/config"
	"github.com/fomy/simd/engine"
	"github.com/fomy/simd/stochastic"
)

// runIDSize is the number of random bytes hex-encoded into a run ID.
const runIDSize = 8

// runState is the lifecycle of one submitted run.
type runState string

const (
	runQueued  runState = "queued"
	runRunning runState = "running"
	runDone    runState = "done"
	runFailed  runState = "failed"
)

// run tracks one submitted simulation from submission through completion.
type run struct {
	id  string
	sim *engine.Simulator

	mu       sync.Mutex
	state    runState
	progress engine.Progress
	result   engine.Result
	err      error
}

func (r *run) snapshot() runStatusGET {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := runStatusGET{
		ID:    r.id,
		State: string(r.state),
	}
	if r.state == runRunning || r.state == runDone {
		status.IterationsDone = r.progress.IterationsDone
		status.IterationsGoal = r.progress.IterationsGoal
	}
	if r.state == runDone {
		status.Result = &r.result
	}
	if r.state == runFailed && r.err != nil {
		status.Error = r.err.Error()
	}
	return status
}

// runRegistry holds every run this API process has ever submitted, keyed by
// ID. Entries are never evicted: a long-lived API server is expected to be
// restarted between campaigns, not to run forever accumulating state.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*run
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*run)}
}

func (reg *runRegistry) add(r *run) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[r.id] = r
}

func (reg *runRegistry) get(id string) (*run, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.runs[id]
	return r, ok
}

func newRunID() string {
	return hex.EncodeToString(fastrand.Bytes(runIDSize))
}

// runSubmitPOST is the request body for POST /runs.
type runSubmitPOST struct {
	Preset  string         `json:"preset,omitempty"`
	Options config.Options `json:"options"`
}

// runSubmitResponse is the response body for POST /runs.
type runSubmitResponse struct {
	ID string `json:"id"`
}

// runStatusGET is the response body for GET /runs/:id.
type runStatusGET struct {
	ID             string         `json:"id"`
	State          string         `json:"state"`
	IterationsDone int64          `json:"iterationsDone,omitempty"`
	IterationsGoal int64          `json:"iterationsGoal,omitempty"`
	Result         *engine.Result `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
}

func presetOptions(name string) (config.Options, bool) {
	switch name {
	case "", "default":
		return config.Default(), true
	case "elerath2009":
		return config.Elerath2009(), true
	case "elerath2014a":
		return config.Elerath2014A(), true
	case "elerath2014b":
		return config.Elerath2014B(), true
	default:
		return config.Options{}, false
	}
}

// runsHandlerPOST validates and starts a new simulation run in the
// background, immediately returning its ID; the caller polls GET
// /runs/:id for progress and, eventually, the result.
func (a *API) runsHandlerPOST(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body runSubmitPOST
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		WriteError(w, Error{"error decoding run request: " + err.Error()}, http.StatusBadRequest)
		return
	}

	opts, ok := presetOptions(body.Preset)
	if !ok {
		WriteError(w, Error{"unrecognized preset: " + body.Preset}, http.StatusBadRequest)
		return
	}
	opts = mergeOptions(opts, body.Options)
	opts.ApplyCapacityFactor()

	sim, err := engine.New(opts)
	if err != nil {
		WriteError(w, Error{"invalid run configuration: " + err.Error()}, http.StatusBadRequest)
		return
	}

	progress := make(chan engine.Progress, 1)
	sim.Progress = progress

	r := &run{id: newRunID(), sim: sim, state: runQueued}
	a.runs.add(r)

	go a.executeRun(r, sim, progress)

	WriteJSON(w, runSubmitResponse{ID: r.id})
}

// mergeOptions lets a submitted options body override individual fields of
// a preset without needing to repeat the whole bundle; a zero-valued field
// in override is treated as "keep the preset's value", except the boolean
// fields (ForceRE, FileLevel, Dedup, Weighted), which always take override's
// value.
func mergeOptions(base, override config.Options) config.Options {
	if override.MissionTime != 0 {
		base.MissionTime = override.MissionTime
	}
	if override.Iterations != 0 {
		base.Iterations = override.Iterations
	}
	if override.RaidType != "" {
		base.RaidType = override.RaidType
	}
	if override.RaidNum != 0 {
		base.RaidNum = override.RaidNum
	}
	if override.DiskCapacity != 0 {
		base.DiskCapacity = override.DiskCapacity
	}
	if override.CapacityFactor != 0 {
		base.CapacityFactor = override.CapacityFactor
	}
	if override.DiskFailParms != (config.WeibullParams{}) {
		base.DiskFailParms = override.DiskFailParms
	}
	if override.DiskRepairParms != (config.WeibullParams{}) {
		base.DiskRepairParms = override.DiskRepairParms
	}
	if override.DiskScrubbingParms != (config.WeibullParams{}) {
		base.DiskScrubbingParms = override.DiskScrubbingParms
	}
	if override.DiskLSERate != 0 {
		base.DiskLSERate = override.DiskLSERate
	}
	base.ForceRE = override.ForceRE
	if override.RequiredRE != 0 {
		base.RequiredRE = override.RequiredRE
	}
	base.FileLevel = override.FileLevel
	base.Dedup = override.Dedup
	base.Weighted = override.Weighted
	if override.TracePath != "" {
		base.TracePath = override.TracePath
	}
	return base
}

func (a *API) executeRun(r *run, sim *engine.Simulator, progress <-chan engine.Progress) {
	r.mu.Lock()
	r.state = runRunning
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case p, ok := <-progress:
				if !ok {
					return
				}
				r.mu.Lock()
				r.progress = p
				r.mu.Unlock()
			case <-done:
				return
			}
		}
	}()

	result, err := sim.Run(stochastic.NewSource())
	close(done)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = runFailed
		r.err = err
		if a.log != nil {
			a.log.Println("run", r.id, "failed:", err)
		}
		return
	}
	r.state = runDone
	r.result = result
}

// runHandlerGET reports a run's current state: queued, running (with
// progress), done (with the full result), or failed (with an error).
func (a *API) runHandlerGET(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	r, ok := a.runs.get(ps.ByName("id"))
	if !ok {
		WriteError(w, Error{"run not found"}, http.StatusNotFound)
		return
	}
	WriteJSON(w, r.snapshot())
}

// runStopHandlerPOST cooperatively interrupts a running simulation; GET
// /runs/:id will subsequently report whatever partial statistics had
// accumulated when the interrupt was observed.
func (a *API) runStopHandlerPOST(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	r, ok := a.runs.get(ps.ByName("id"))
	if !ok {
		WriteError(w, Error{"run not found"}, http.StatusNotFound)
		return
	}
	r.sim.Interrupt()
	WriteSuccess(w)
}
