package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distml/distsage"
	"github.com/distml/distsage/runstore"
)

func TestRegister_CreatesWorkerInJoiningState(t *testing.T) {
	mockStore := runstore.NewMockStore()
	runID := "run-123"
	workerID := "worker-456"

	mockStore.RegisterWorkerFunc = func(ctx context.Context, rid string, rank int) (distsage.Worker, error) {
		return distsage.Worker{
			ID:    workerID,
			RunID: rid,
			Rank:  rank,
			State: distsage.WorkerStateJoining,
		}, nil
	}

	manager := New(Config{Store: mockStore})
	ctx := context.Background()

	returnedID, err := manager.Register(ctx, runID, 2)

	require.NoError(t, err)
	assert.Equal(t, workerID, returnedID)
	assert.Equal(t, workerID, manager.WorkerID())
	assert.Len(t, mockStore.RegisterWorkerCalls, 1)
	assert.Equal(t, runID, mockStore.RegisterWorkerCalls[0].RunID)
	assert.Equal(t, 2, mockStore.RegisterWorkerCalls[0].Rank)
}

func TestHeartbeat_CalledAtConfiguredInterval(t *testing.T) {
	mockStore := runstore.NewMockStore()
	workerID := "worker-123"

	heartbeatCount := 0
	mockStore.HeartbeatFunc = func(ctx context.Context, wid string) error {
		heartbeatCount++
		return nil
	}

	manager := New(Config{
		Store:             mockStore,
		HeartbeatInterval: 50 * time.Millisecond,
	})
	manager.workerID = workerID

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := manager.StartHeartbeat(ctx)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, heartbeatCount, 2, "expected at least 2 heartbeats in 150ms with 50ms interval")
	assert.LessOrEqual(t, heartbeatCount, 4, "expected at most 4 heartbeats in 150ms with 50ms interval")
}

func TestContextCancellation_StopsHeartbeat(t *testing.T) {
	mockStore := runstore.NewMockStore()

	manager := New(Config{
		Store:             mockStore,
		HeartbeatInterval: 1 * time.Second,
	})
	manager.workerID = "worker-123"

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- manager.StartHeartbeat(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("StartHeartbeat did not return promptly after context cancellation")
	}
}

func TestHeartbeatFailure_StopsLoop(t *testing.T) {
	mockStore := runstore.NewMockStore()
	mockStore.HeartbeatFunc = func(ctx context.Context, wid string) error {
		return distsage.ErrWorkerNotFound
	}

	manager := New(Config{
		Store:             mockStore,
		HeartbeatInterval: 10 * time.Millisecond,
	})
	manager.workerID = "worker-123"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := manager.StartHeartbeat(ctx)
	assert.ErrorIs(t, err, distsage.ErrWorkerNotFound)
}

func TestStateUpdates_ArePersisted(t *testing.T) {
	mockStore := runstore.NewMockStore()
	workerID := "worker-789"

	mockStore.RegisterWorkerFunc = func(ctx context.Context, rid string, rank int) (distsage.Worker, error) {
		return distsage.Worker{
			ID:    workerID,
			RunID: rid,
			Rank:  rank,
			State: distsage.WorkerStateJoining,
		}, nil
	}

	manager := New(Config{Store: mockStore})
	ctx := context.Background()

	_, err := manager.Register(ctx, "run-123", 0)
	require.NoError(t, err)

	err = manager.UpdateState(ctx, distsage.WorkerStateTraining)
	require.NoError(t, err)

	assert.Len(t, mockStore.UpdateWorkerStateCalls, 1)
	assert.Equal(t, workerID, mockStore.UpdateWorkerStateCalls[0].WorkerID)
	assert.Equal(t, distsage.WorkerStateTraining, mockStore.UpdateWorkerStateCalls[0].State)
}

func TestNilLogger_DoesntPanic(t *testing.T) {
	mockStore := runstore.NewMockStore()

	manager := New(Config{
		Store:             mockStore,
		Logger:            nil,
		HeartbeatInterval: 50 * time.Millisecond,
	})
	ctx := context.Background()

	_, err := manager.Register(ctx, "run-123", 0)
	require.NoError(t, err)

	err = manager.UpdateState(ctx, distsage.WorkerStateTraining)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = manager.StartHeartbeat(ctx)
	require.NoError(t, err)
}

func TestGetWorker_ReturnsCurrentWorker(t *testing.T) {
	mockStore := runstore.NewMockStore()
	workerID := "worker-123"

	expectedWorker := distsage.Worker{
		ID:    workerID,
		RunID: "run-123",
		Rank:  1,
		State: distsage.WorkerStateTraining,
	}

	mockStore.RegisterWorkerFunc = func(ctx context.Context, rid string, rank int) (distsage.Worker, error) {
		return distsage.Worker{ID: workerID, RunID: rid, Rank: rank, State: distsage.WorkerStateJoining}, nil
	}

	mockStore.GetWorkerFunc = func(ctx context.Context, wid string) (distsage.Worker, error) {
		return expectedWorker, nil
	}

	manager := New(Config{Store: mockStore})
	ctx := context.Background()

	_, err := manager.Register(ctx, "run-123", 1)
	require.NoError(t, err)

	worker, err := manager.GetWorker(ctx)
	require.NoError(t, err)

	assert.Equal(t, expectedWorker.ID, worker.ID)
	assert.Equal(t, expectedWorker.State, worker.State)
	assert.Equal(t, expectedWorker.Rank, worker.Rank)
	assert.Len(t, mockStore.GetWorkerCalls, 1)
	assert.Equal(t, workerID, mockStore.GetWorkerCalls[0].WorkerID)
}

func TestDefaultHeartbeatInterval(t *testing.T) {
	manager := New(Config{Store: runstore.NewMockStore()})
	assert.Equal(t, 5*time.Second, manager.config.HeartbeatInterval)
}
