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

func TestSweep_MarksStaleWorkersFailed(t *testing.T) {
	mockStore := runstore.NewMockStore()
	now := time.Now()

	mockStore.GetWorkersFunc = func(ctx context.Context, runID string) ([]distsage.Worker, error) {
		return []distsage.Worker{
			{ID: "fresh", Rank: 0, State: distsage.WorkerStateTraining, LastHeartbeat: now},
			{ID: "stale", Rank: 1, State: distsage.WorkerStateTraining, LastHeartbeat: now.Add(-time.Minute)},
		}, nil
	}

	monitor := NewMonitor(MonitorConfig{
		Store:        mockStore,
		RunID:        "run-123",
		StaleTimeout: 30 * time.Second,
	})

	require.NoError(t, monitor.Sweep(context.Background()))

	require.Len(t, mockStore.MarkWorkerFailedCalls, 1)
	assert.Equal(t, "stale", mockStore.MarkWorkerFailedCalls[0].WorkerID)
}

func TestSweep_IgnoresFinishedWorkers(t *testing.T) {
	mockStore := runstore.NewMockStore()
	old := time.Now().Add(-time.Hour)

	mockStore.GetWorkersFunc = func(ctx context.Context, runID string) ([]distsage.Worker, error) {
		return []distsage.Worker{
			{ID: "done", State: distsage.WorkerStateDone, LastHeartbeat: old},
			{ID: "failed", State: distsage.WorkerStateFailed, LastHeartbeat: old},
		}, nil
	}

	monitor := NewMonitor(MonitorConfig{Store: mockStore, RunID: "run-123"})

	require.NoError(t, monitor.Sweep(context.Background()))
	assert.Empty(t, mockStore.MarkWorkerFailedCalls)
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	mockStore := runstore.NewMockStore()

	monitor := NewMonitor(MonitorConfig{
		Store:    mockStore,
		RunID:    "run-123",
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	require.NoError(t, monitor.Run(ctx))
	assert.GreaterOrEqual(t, len(mockStore.GetWorkersCalls), 2)
}

func TestMonitorDefaults(t *testing.T) {
	monitor := NewMonitor(MonitorConfig{Store: runstore.NewMockStore(), RunID: "run-123"})

	assert.Equal(t, 30*time.Second, monitor.config.StaleTimeout)
	assert.Equal(t, 10*time.Second, monitor.config.Interval)
}
