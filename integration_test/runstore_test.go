//go:build integration

package integration_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distml/distsage"
	pgstore "github.com/distml/distsage/runstore/postgres"
)

func TestPostgresRunStore_FullLifecycle(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	setupTables(t, db)
	defer teardownTables(t, db)

	store := pgstore.New(db)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, "integration", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	fetched, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "integration", fetched.Name)
	assert.Equal(t, 2, fetched.WorldSize)

	worker0, err := store.RegisterWorker(ctx, run.ID, 0)
	require.NoError(t, err)
	worker1, err := store.RegisterWorker(ctx, run.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, distsage.WorkerStateJoining, worker0.State)

	require.NoError(t, store.Heartbeat(ctx, worker0.ID))
	require.NoError(t, store.UpdateWorkerState(ctx, worker0.ID, distsage.WorkerStateTraining))
	require.NoError(t, store.MarkWorkerFailed(ctx, worker1.ID))

	workers, err := store.GetWorkers(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, 0, workers[0].Rank)
	assert.Equal(t, distsage.WorkerStateTraining, workers[0].State)
	assert.Equal(t, distsage.WorkerStateFailed, workers[1].State)
}

func TestPostgresRunStore_EpochHistory(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	setupTables(t, db)
	defer teardownTables(t, db)

	store := pgstore.New(db)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, "integration-epochs", 1)
	require.NoError(t, err)

	require.NoError(t, store.RecordEpoch(ctx, distsage.EpochRecord{
		RunID:    run.ID,
		Rank:     0,
		Epoch:    1,
		Loss:     0.4,
		TrainAcc: 0.8,
		ValAcc:   0.75,
		TestAcc:  0.7,
		Duration: 3 * time.Second,
	}))
	require.NoError(t, store.RecordEpoch(ctx, distsage.EpochRecord{
		RunID:    run.ID,
		Rank:     0,
		Epoch:    0,
		Loss:     0.9,
		TrainAcc: 0.5,
		ValAcc:   math.NaN(),
		TestAcc:  math.NaN(),
		Duration: 2 * time.Second,
	}))

	records, err := store.ListEpochs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Ordered by epoch; NaN accuracies round-trip.
	assert.Equal(t, 0, records[0].Epoch)
	assert.True(t, math.IsNaN(records[0].ValAcc))
	assert.Equal(t, 2*time.Second, records[0].Duration)
	assert.Equal(t, 0.75, records[1].ValAcc)
}

func TestPostgresRunStore_NotFoundErrors(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	setupTables(t, db)
	defer teardownTables(t, db)

	store := pgstore.New(db)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, distsage.ErrRunNotFound)

	err = store.Heartbeat(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, distsage.ErrWorkerNotFound)
}
