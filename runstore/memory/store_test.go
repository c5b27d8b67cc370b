package memory

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distml/distsage"
)

func TestCreateRun(t *testing.T) {
	s := New()
	ctx := context.Background()

	beforeCreate := time.Now()
	run, err := s.CreateRun(ctx, "ogbn-products", 4)
	afterCreate := time.Now()

	require.NoError(t, err)
	assert.NotEmpty(t, run.ID, "Run ID should not be empty")
	assert.Equal(t, "ogbn-products", run.Name)
	assert.Equal(t, 4, run.WorldSize)
	assert.True(t, run.CreatedAt.After(beforeCreate) || run.CreatedAt.Equal(beforeCreate))
	assert.True(t, run.CreatedAt.Before(afterCreate) || run.CreatedAt.Equal(afterCreate))
}

func TestGetRun_NotFound(t *testing.T) {
	s := New()

	_, err := s.GetRun(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, distsage.ErrRunNotFound)
}

func TestRegisterWorker_JoiningState(t *testing.T) {
	s := New()
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "test", 2)
	require.NoError(t, err)

	worker, err := s.RegisterWorker(ctx, run.ID, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, worker.ID)
	assert.Equal(t, run.ID, worker.RunID)
	assert.Equal(t, 1, worker.Rank)
	assert.Equal(t, distsage.WorkerStateJoining, worker.State)
	assert.False(t, worker.LastHeartbeat.IsZero())
}

func TestRegisterWorker_UnknownRun(t *testing.T) {
	s := New()

	_, err := s.RegisterWorker(context.Background(), "nonexistent", 0)
	assert.ErrorIs(t, err, distsage.ErrRunNotFound)
}

func TestHeartbeat_UpdatesTimestamp(t *testing.T) {
	s := New()
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "test", 1)
	require.NoError(t, err)
	worker, err := s.RegisterWorker(ctx, run.ID, 0)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Heartbeat(ctx, worker.ID))

	updated, err := s.GetWorker(ctx, worker.ID)
	require.NoError(t, err)
	assert.True(t, updated.LastHeartbeat.After(worker.LastHeartbeat))
}

func TestHeartbeat_UnknownWorker(t *testing.T) {
	s := New()

	err := s.Heartbeat(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, distsage.ErrWorkerNotFound)
}

func TestUpdateWorkerState(t *testing.T) {
	s := New()
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "test", 1)
	require.NoError(t, err)
	worker, err := s.RegisterWorker(ctx, run.ID, 0)
	require.NoError(t, err)

	require.NoError(t, s.UpdateWorkerState(ctx, worker.ID, distsage.WorkerStateTraining))

	updated, err := s.GetWorker(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, distsage.WorkerStateTraining, updated.State)
}

func TestMarkWorkerFailed(t *testing.T) {
	s := New()
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "test", 1)
	require.NoError(t, err)
	worker, err := s.RegisterWorker(ctx, run.ID, 0)
	require.NoError(t, err)

	require.NoError(t, s.MarkWorkerFailed(ctx, worker.ID))

	updated, err := s.GetWorker(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, distsage.WorkerStateFailed, updated.State)
}

func TestGetWorkers_OrderedByRank(t *testing.T) {
	s := New()
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "test", 3)
	require.NoError(t, err)

	for _, rank := range []int{2, 0, 1} {
		_, err := s.RegisterWorker(ctx, run.ID, rank)
		require.NoError(t, err)
	}

	workers, err := s.GetWorkers(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, workers, 3)
	for i, w := range workers {
		assert.Equal(t, i, w.Rank)
	}
}

func TestRecordEpoch_AndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "test", 2)
	require.NoError(t, err)

	records := []distsage.EpochRecord{
		{RunID: run.ID, Rank: 1, Epoch: 1, Loss: 0.4},
		{RunID: run.ID, Rank: 0, Epoch: 0, Loss: 0.9, ValAcc: math.NaN(), TestAcc: math.NaN()},
		{RunID: run.ID, Rank: 1, Epoch: 0, Loss: 0.8},
		{RunID: run.ID, Rank: 0, Epoch: 1, Loss: 0.5},
	}
	for _, r := range records {
		require.NoError(t, s.RecordEpoch(ctx, r))
	}

	listed, err := s.ListEpochs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, listed, 4)

	// Ordered by epoch, then rank.
	assert.Equal(t, 0, listed[0].Epoch)
	assert.Equal(t, 0, listed[0].Rank)
	assert.Equal(t, 0, listed[1].Epoch)
	assert.Equal(t, 1, listed[1].Rank)
	assert.Equal(t, 1, listed[2].Epoch)
	assert.Equal(t, 0, listed[2].Rank)

	assert.False(t, listed[0].RecordedAt.IsZero())
	assert.True(t, math.IsNaN(listed[0].ValAcc))
}

func TestRecordEpoch_UnknownRun(t *testing.T) {
	s := New()

	err := s.RecordEpoch(context.Background(), distsage.EpochRecord{RunID: "nonexistent"})
	assert.ErrorIs(t, err, distsage.ErrRunNotFound)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "test", 8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for rank := 0; rank < 8; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			worker, err := s.RegisterWorker(ctx, run.ID, rank)
			assert.NoError(t, err)
			assert.NoError(t, s.Heartbeat(ctx, worker.ID))
			assert.NoError(t, s.RecordEpoch(ctx, distsage.EpochRecord{RunID: run.ID, Rank: rank}))
		}(rank)
	}
	wg.Wait()

	workers, err := s.GetWorkers(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, workers, 8)
}
