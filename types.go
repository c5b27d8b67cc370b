package distsage

import "time"

// NodeID identifies a node in the global graph. Node IDs are global: every
// worker addresses the same node by the same ID regardless of which shard
// owns it.
type NodeID int64

// Split selects one of the three node roles of a training graph.
type Split string

const (
	// SplitTrain selects nodes visited by the training loop.
	SplitTrain Split = "train"

	// SplitVal selects nodes used for validation.
	SplitVal Split = "val"

	// SplitTest selects nodes used for final testing.
	SplitTest Split = "test"
)

// WorkerState represents the lifecycle state of a training worker.
type WorkerState string

const (
	// WorkerStateJoining indicates the worker has registered and is forming
	// the communication group.
	WorkerStateJoining WorkerState = "joining"

	// WorkerStateTraining indicates the worker is inside the training loop.
	WorkerStateTraining WorkerState = "training"

	// WorkerStateEvaluating indicates the worker is running distributed evaluation.
	WorkerStateEvaluating WorkerState = "evaluating"

	// WorkerStateDone indicates the worker finished its run cleanly.
	WorkerStateDone WorkerState = "done"

	// WorkerStateFailed indicates the worker aborted its run.
	WorkerStateFailed WorkerState = "failed"
)

// Run represents one distributed training run: a fixed group of workers
// training the same model over the same partitioned graph.
type Run struct {
	// ID is the unique identifier for this run (UUID).
	ID string

	// Name is the operator-facing name of the run.
	Name string

	// WorldSize is the number of workers participating in the run.
	WorldSize int

	// CreatedAt is when this run was created.
	CreatedAt time.Time
}

// Worker represents one participant process in a run. Each worker owns a
// disjoint shard of the graph and a rank in the communication group.
type Worker struct {
	// ID is the unique identifier for this worker (UUID).
	ID string

	// RunID identifies the run this worker belongs to.
	RunID string

	// Rank is the worker's rank in the communication group (0-indexed).
	Rank int

	// State is the current lifecycle state of the worker.
	State WorkerState

	// LastHeartbeat is the last time this worker reported health.
	LastHeartbeat time.Time

	// StartedAt is when this worker started.
	StartedAt time.Time
}

// EpochRecord captures one worker's view of a finished epoch.
type EpochRecord struct {
	// RunID identifies the run.
	RunID string

	// Rank is the reporting worker's rank.
	Rank int

	// Epoch is the 0-indexed epoch number.
	Epoch int

	// Loss is the mean training loss over the epoch.
	Loss float64

	// TrainAcc is the mean mini-batch training accuracy over the epoch.
	TrainAcc float64

	// ValAcc is the global validation accuracy, if evaluation ran this epoch.
	// NaN when evaluation did not run.
	ValAcc float64

	// TestAcc is the global test accuracy, if evaluation ran this epoch.
	// NaN when evaluation did not run.
	TestAcc float64

	// Duration is the wall-clock duration of the epoch.
	Duration time.Duration

	// RecordedAt is when the record was written.
	RecordedAt time.Time
}
