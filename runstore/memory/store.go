// Package memory provides an in-memory run store for testing and
// single-machine runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/distml/distsage"
	"github.com/distml/distsage/runstore"
)

// Store is an in-memory implementation of runstore.Store.
// It provides thread-safe access to run and worker data using a sync.RWMutex.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]distsage.Run
	workers map[string]distsage.Worker
	epochs  map[string][]distsage.EpochRecord // runID -> records
}

// Compile-time check that Store implements runstore.Store.
var _ runstore.Store = (*Store)(nil)

// New creates a new in-memory store with initialized maps.
func New() *Store {
	return &Store{
		runs:    make(map[string]distsage.Run),
		workers: make(map[string]distsage.Worker),
		epochs:  make(map[string][]distsage.EpochRecord),
	}
}

// CreateRun creates a new run with the given name and world size.
func (s *Store) CreateRun(ctx context.Context, name string, worldSize int) (distsage.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := distsage.Run{
		ID:        uuid.New().String(),
		Name:      name,
		WorldSize: worldSize,
		CreatedAt: time.Now(),
	}
	s.runs[run.ID] = run

	return run, nil
}

// GetRun returns a run by ID.
// Returns distsage.ErrRunNotFound if the run does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (distsage.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return distsage.Run{}, distsage.ErrRunNotFound
	}
	return run, nil
}

// RegisterWorker registers a worker with the given rank under a run.
// Returns distsage.ErrRunNotFound if the run does not exist.
func (s *Store) RegisterWorker(ctx context.Context, runID string, rank int) (distsage.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return distsage.Worker{}, distsage.ErrRunNotFound
	}

	now := time.Now()
	worker := distsage.Worker{
		ID:            uuid.New().String(),
		RunID:         runID,
		Rank:          rank,
		State:         distsage.WorkerStateJoining,
		LastHeartbeat: now,
		StartedAt:     now,
	}
	s.workers[worker.ID] = worker

	return worker, nil
}

// Heartbeat updates the last heartbeat time for a worker.
// Returns distsage.ErrWorkerNotFound if the worker does not exist.
func (s *Store) Heartbeat(ctx context.Context, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	worker, ok := s.workers[workerID]
	if !ok {
		return distsage.ErrWorkerNotFound
	}

	worker.LastHeartbeat = time.Now()
	s.workers[workerID] = worker

	return nil
}

// UpdateWorkerState updates the state of a worker.
// Returns distsage.ErrWorkerNotFound if the worker does not exist.
func (s *Store) UpdateWorkerState(ctx context.Context, workerID string, state distsage.WorkerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	worker, ok := s.workers[workerID]
	if !ok {
		return distsage.ErrWorkerNotFound
	}

	worker.State = state
	s.workers[workerID] = worker

	return nil
}

// GetWorker returns a worker by ID.
// Returns distsage.ErrWorkerNotFound if the worker does not exist.
func (s *Store) GetWorker(ctx context.Context, workerID string) (distsage.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	worker, ok := s.workers[workerID]
	if !ok {
		return distsage.Worker{}, distsage.ErrWorkerNotFound
	}
	return worker, nil
}

// GetWorkers returns all workers registered under a run, ordered by rank.
func (s *Store) GetWorkers(ctx context.Context, runID string) ([]distsage.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers := []distsage.Worker{}
	for _, w := range s.workers {
		if w.RunID == runID {
			workers = append(workers, w)
		}
	}
	slices.SortFunc(workers, func(a, b distsage.Worker) int { return a.Rank - b.Rank })

	return workers, nil
}

// MarkWorkerFailed marks a worker as failed.
// Returns distsage.ErrWorkerNotFound if the worker does not exist.
func (s *Store) MarkWorkerFailed(ctx context.Context, workerID string) error {
	return s.UpdateWorkerState(ctx, workerID, distsage.WorkerStateFailed)
}

// RecordEpoch appends one worker's epoch result to the run history.
// Returns distsage.ErrRunNotFound if the run does not exist.
func (s *Store) RecordEpoch(ctx context.Context, record distsage.EpochRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[record.RunID]; !ok {
		return distsage.ErrRunNotFound
	}

	record.RecordedAt = time.Now()
	s.epochs[record.RunID] = append(s.epochs[record.RunID], record)

	return nil
}

// ListEpochs returns a run's epoch history ordered by epoch then rank.
func (s *Store) ListEpochs(ctx context.Context, runID string) ([]distsage.EpochRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := append([]distsage.EpochRecord{}, s.epochs[runID]...)
	slices.SortFunc(records, func(a, b distsage.EpochRecord) int {
		if a.Epoch != b.Epoch {
			return a.Epoch - b.Epoch
		}
		return a.Rank - b.Rank
	})

	return records, nil
}
