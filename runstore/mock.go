package runstore

import (
	"context"
	"sync"

	"github.com/distml/distsage"
)

// MockStore is a configurable mock implementation of Store for use in
// tests. It allows setting up expected return values, tracking method
// calls, and injecting errors for testing error paths.
type MockStore struct {
	mu sync.RWMutex

	// CreateRunFunc is called by CreateRun if set.
	CreateRunFunc func(ctx context.Context, name string, worldSize int) (distsage.Run, error)

	// GetRunFunc is called by GetRun if set.
	GetRunFunc func(ctx context.Context, runID string) (distsage.Run, error)

	// RegisterWorkerFunc is called by RegisterWorker if set.
	RegisterWorkerFunc func(ctx context.Context, runID string, rank int) (distsage.Worker, error)

	// HeartbeatFunc is called by Heartbeat if set.
	HeartbeatFunc func(ctx context.Context, workerID string) error

	// UpdateWorkerStateFunc is called by UpdateWorkerState if set.
	UpdateWorkerStateFunc func(ctx context.Context, workerID string, state distsage.WorkerState) error

	// GetWorkerFunc is called by GetWorker if set.
	GetWorkerFunc func(ctx context.Context, workerID string) (distsage.Worker, error)

	// GetWorkersFunc is called by GetWorkers if set.
	GetWorkersFunc func(ctx context.Context, runID string) ([]distsage.Worker, error)

	// MarkWorkerFailedFunc is called by MarkWorkerFailed if set.
	MarkWorkerFailedFunc func(ctx context.Context, workerID string) error

	// RecordEpochFunc is called by RecordEpoch if set.
	RecordEpochFunc func(ctx context.Context, record distsage.EpochRecord) error

	// ListEpochsFunc is called by ListEpochs if set.
	ListEpochsFunc func(ctx context.Context, runID string) ([]distsage.EpochRecord, error)

	// Call tracking
	CreateRunCalls         []CreateRunCall
	GetRunCalls            []GetRunCall
	RegisterWorkerCalls    []RegisterWorkerCall
	HeartbeatCalls         []HeartbeatCall
	UpdateWorkerStateCalls []UpdateWorkerStateCall
	GetWorkerCalls         []GetWorkerCall
	GetWorkersCalls        []GetWorkersCall
	MarkWorkerFailedCalls  []MarkWorkerFailedCall
	RecordEpochCalls       []RecordEpochCall
	ListEpochsCalls        []ListEpochsCall
}

// Call tracking structs
type CreateRunCall struct {
	Name      string
	WorldSize int
}

type GetRunCall struct {
	RunID string
}

type RegisterWorkerCall struct {
	RunID string
	Rank  int
}

type HeartbeatCall struct {
	WorkerID string
}

type UpdateWorkerStateCall struct {
	WorkerID string
	State    distsage.WorkerState
}

type GetWorkerCall struct {
	WorkerID string
}

type GetWorkersCall struct {
	RunID string
}

type MarkWorkerFailedCall struct {
	WorkerID string
}

type RecordEpochCall struct {
	Record distsage.EpochRecord
}

type ListEpochsCall struct {
	RunID string
}

// NewMockStore creates a new mock run store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Compile-time check that MockStore implements Store.
var _ Store = (*MockStore)(nil)

// CreateRun implements Store.
func (m *MockStore) CreateRun(ctx context.Context, name string, worldSize int) (distsage.Run, error) {
	m.mu.Lock()
	m.CreateRunCalls = append(m.CreateRunCalls, CreateRunCall{Name: name, WorldSize: worldSize})
	m.mu.Unlock()

	if m.CreateRunFunc != nil {
		return m.CreateRunFunc(ctx, name, worldSize)
	}
	return distsage.Run{Name: name, WorldSize: worldSize}, nil
}

// GetRun implements Store.
func (m *MockStore) GetRun(ctx context.Context, runID string) (distsage.Run, error) {
	m.mu.Lock()
	m.GetRunCalls = append(m.GetRunCalls, GetRunCall{RunID: runID})
	m.mu.Unlock()

	if m.GetRunFunc != nil {
		return m.GetRunFunc(ctx, runID)
	}
	return distsage.Run{ID: runID}, nil
}

// RegisterWorker implements Store.
func (m *MockStore) RegisterWorker(ctx context.Context, runID string, rank int) (distsage.Worker, error) {
	m.mu.Lock()
	m.RegisterWorkerCalls = append(m.RegisterWorkerCalls, RegisterWorkerCall{RunID: runID, Rank: rank})
	m.mu.Unlock()

	if m.RegisterWorkerFunc != nil {
		return m.RegisterWorkerFunc(ctx, runID, rank)
	}
	return distsage.Worker{RunID: runID, Rank: rank, State: distsage.WorkerStateJoining}, nil
}

// Heartbeat implements Store.
func (m *MockStore) Heartbeat(ctx context.Context, workerID string) error {
	m.mu.Lock()
	m.HeartbeatCalls = append(m.HeartbeatCalls, HeartbeatCall{WorkerID: workerID})
	m.mu.Unlock()

	if m.HeartbeatFunc != nil {
		return m.HeartbeatFunc(ctx, workerID)
	}
	return nil
}

// UpdateWorkerState implements Store.
func (m *MockStore) UpdateWorkerState(ctx context.Context, workerID string, state distsage.WorkerState) error {
	m.mu.Lock()
	m.UpdateWorkerStateCalls = append(m.UpdateWorkerStateCalls, UpdateWorkerStateCall{WorkerID: workerID, State: state})
	m.mu.Unlock()

	if m.UpdateWorkerStateFunc != nil {
		return m.UpdateWorkerStateFunc(ctx, workerID, state)
	}
	return nil
}

// GetWorker implements Store.
func (m *MockStore) GetWorker(ctx context.Context, workerID string) (distsage.Worker, error) {
	m.mu.Lock()
	m.GetWorkerCalls = append(m.GetWorkerCalls, GetWorkerCall{WorkerID: workerID})
	m.mu.Unlock()

	if m.GetWorkerFunc != nil {
		return m.GetWorkerFunc(ctx, workerID)
	}
	return distsage.Worker{ID: workerID}, nil
}

// GetWorkers implements Store.
func (m *MockStore) GetWorkers(ctx context.Context, runID string) ([]distsage.Worker, error) {
	m.mu.Lock()
	m.GetWorkersCalls = append(m.GetWorkersCalls, GetWorkersCall{RunID: runID})
	m.mu.Unlock()

	if m.GetWorkersFunc != nil {
		return m.GetWorkersFunc(ctx, runID)
	}
	return []distsage.Worker{}, nil
}

// MarkWorkerFailed implements Store.
func (m *MockStore) MarkWorkerFailed(ctx context.Context, workerID string) error {
	m.mu.Lock()
	m.MarkWorkerFailedCalls = append(m.MarkWorkerFailedCalls, MarkWorkerFailedCall{WorkerID: workerID})
	m.mu.Unlock()

	if m.MarkWorkerFailedFunc != nil {
		return m.MarkWorkerFailedFunc(ctx, workerID)
	}
	return nil
}

// RecordEpoch implements Store.
func (m *MockStore) RecordEpoch(ctx context.Context, record distsage.EpochRecord) error {
	m.mu.Lock()
	m.RecordEpochCalls = append(m.RecordEpochCalls, RecordEpochCall{Record: record})
	m.mu.Unlock()

	if m.RecordEpochFunc != nil {
		return m.RecordEpochFunc(ctx, record)
	}
	return nil
}

// ListEpochs implements Store.
func (m *MockStore) ListEpochs(ctx context.Context, runID string) ([]distsage.EpochRecord, error) {
	m.mu.Lock()
	m.ListEpochsCalls = append(m.ListEpochsCalls, ListEpochsCall{RunID: runID})
	m.mu.Unlock()

	if m.ListEpochsFunc != nil {
		return m.ListEpochsFunc(ctx, runID)
	}
	return []distsage.EpochRecord{}, nil
}
