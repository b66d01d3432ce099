package persist

import (
	"gitlab.com/NebulousLabs/encoding"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/writeaheadlog"

	"github.com/fomy/simd/stats"
)

// checkpointUpdateName identifies a write-ahead-log update carrying a
// CheckpointState snapshot.
const checkpointUpdateName = "SimulatorCheckpoint"

// CheckpointState is the full durable snapshot of an in-progress adaptive
// run: the iteration count, the event counters, and both sample aggregators'
// raw sums, enough to reconstruct a Simulator's running state exactly.
type CheckpointState struct {
	Iterations         int64
	ArrayFailureEvents int64
	LSEEvents          int64
	DataLossEvents     int64

	ArrayFailureN         int64
	ArrayFailureNPositive int64
	ArrayFailureMean      float64
	ArrayFailureM2        float64

	LSEN         int64
	LSENPositive int64
	LSEMean      float64
	LSEM2        float64
}

// ArrayFailureSamples reconstructs the array-failure Samples accumulator
// this state was saved from.
func (s CheckpointState) ArrayFailureSamples() *stats.Samples {
	return stats.FromState(s.ArrayFailureN, s.ArrayFailureNPositive, s.ArrayFailureMean, s.ArrayFailureM2)
}

// LSESamples reconstructs the LSE Samples accumulator this state was saved
// from.
func (s CheckpointState) LSESamples() *stats.Samples {
	return stats.FromState(s.LSEN, s.LSENPositive, s.LSEMean, s.LSEM2)
}

// NewCheckpointState packages the current run progress into a
// CheckpointState ready to save.
func NewCheckpointState(iterations, arrayFailureEvents, lseEvents, dataLossEvents int64, arrayFailure, lse *stats.Samples) CheckpointState {
	afN, afNPos, afMean, afM2 := arrayFailure.State()
	lN, lNPos, lMean, lM2 := lse.State()
	return CheckpointState{
		Iterations:            iterations,
		ArrayFailureEvents:    arrayFailureEvents,
		LSEEvents:             lseEvents,
		DataLossEvents:        dataLossEvents,
		ArrayFailureN:         afN,
		ArrayFailureNPositive: afNPos,
		ArrayFailureMean:      afMean,
		ArrayFailureM2:        afM2,
		LSEN:                  lN,
		LSENPositive:          lNPos,
		LSEMean:               lMean,
		LSEM2:                 lM2,
	}
}

// Checkpoint durably persists CheckpointState snapshots through a
// write-ahead log, the same update/apply/signal pattern the rest of the
// ecosystem uses for crash-safe on-disk state. Unlike those callers it never
// needs separate "apply to the real file" logic: the WAL entry itself *is*
// the persisted state, so Save immediately signals completion.
type Checkpoint struct {
	wal *writeaheadlog.WAL
}

// NewCheckpoint opens (creating if necessary) the write-ahead log at path
// and replays any checkpoint left behind by a prior, interrupted run. A nil
// returned state means no prior checkpoint was found.
func NewCheckpoint(path string) (*Checkpoint, *CheckpointState, error) {
	txns, wal, err := writeaheadlog.New(path)
	if err != nil {
		return nil, nil, errors.AddContext(err, "could not open checkpoint write-ahead log")
	}

	var recovered *CheckpointState
	for _, txn := range txns {
		for _, u := range txn.Updates {
			if u.Name != checkpointUpdateName {
				continue
			}
			var state CheckpointState
			if err := encoding.Unmarshal(u.Instructions, &state); err != nil {
				return nil, nil, errors.AddContext(err, "could not decode recovered checkpoint")
			}
			recovered = &state
		}
		if err := txn.SignalUpdatesApplied(); err != nil {
			return nil, nil, errors.AddContext(err, "could not signal recovered checkpoint as applied")
		}
	}
	return &Checkpoint{wal: wal}, recovered, nil
}

// Save durably overwrites the checkpoint with state. Each call appends a
// fresh write-ahead-log transaction; the WAL itself only ever needs the most
// recently applied one on replay; see NewCheckpoint.
func (c *Checkpoint) Save(state CheckpointState) error {
	update := writeaheadlog.Update{
		Name:         checkpointUpdateName,
		Instructions: encoding.Marshal(state),
	}
	txn, err := c.wal.NewTransaction([]writeaheadlog.Update{update})
	if err != nil {
		return errors.AddContext(err, "could not start checkpoint transaction")
	}
	if err := <-txn.SignalSetupComplete(); err != nil {
		return errors.AddContext(err, "could not complete checkpoint setup")
	}
	if err := txn.SignalUpdatesApplied(); err != nil {
		return errors.AddContext(err, "could not signal checkpoint as applied")
	}
	return nil
}

// Close releases the underlying write-ahead log.
func (c *Checkpoint) Close() error {
	return c.wal.Close()
}
