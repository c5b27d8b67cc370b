// Package runstore persists training run metadata: which runs exist, which
// workers participate in them, their health, and per-epoch results.
package runstore

import (
	"context"

	"github.com/distml/distsage"
)

// Store provides persistence for run coordination and epoch history.
// Implementations must be safe for concurrent access from multiple workers.
type Store interface {
	// CreateRun creates a new run with the given name and world size.
	// Returns the newly created run.
	CreateRun(ctx context.Context, name string, worldSize int) (distsage.Run, error)

	// GetRun returns a run by ID.
	// Returns ErrRunNotFound if the run does not exist.
	GetRun(ctx context.Context, runID string) (distsage.Run, error)

	// RegisterWorker registers a worker with the given rank under a run.
	// The worker starts in Joining state.
	// Returns ErrRunNotFound if the run does not exist.
	RegisterWorker(ctx context.Context, runID string, rank int) (distsage.Worker, error)

	// Heartbeat updates the last heartbeat time for a worker.
	// Returns ErrWorkerNotFound if the worker does not exist.
	Heartbeat(ctx context.Context, workerID string) error

	// UpdateWorkerState updates the state of a worker.
	// Returns ErrWorkerNotFound if the worker does not exist.
	UpdateWorkerState(ctx context.Context, workerID string, state distsage.WorkerState) error

	// GetWorker returns a worker by ID.
	// Returns ErrWorkerNotFound if the worker does not exist.
	GetWorker(ctx context.Context, workerID string) (distsage.Worker, error)

	// GetWorkers returns all workers registered under a run, ordered by rank.
	// Returns an empty slice if no workers exist for the run.
	GetWorkers(ctx context.Context, runID string) ([]distsage.Worker, error)

	// MarkWorkerFailed marks a worker as failed (for stale workers).
	// Returns ErrWorkerNotFound if the worker does not exist.
	MarkWorkerFailed(ctx context.Context, workerID string) error

	// RecordEpoch appends one worker's epoch result to the run history.
	// Returns ErrRunNotFound if the run does not exist.
	RecordEpoch(ctx context.Context, record distsage.EpochRecord) error

	// ListEpochs returns a run's epoch history ordered by epoch then rank.
	// Returns an empty slice if no epochs have been recorded.
	ListEpochs(ctx context.Context, runID string) ([]distsage.EpochRecord, error)
}
