package distsage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerState_Constants(t *testing.T) {
	t.Run("WorkerStateJoining equals joining", func(t *testing.T) {
		assert.Equal(t, WorkerState("joining"), WorkerStateJoining)
	})

	t.Run("WorkerStateTraining equals training", func(t *testing.T) {
		assert.Equal(t, WorkerState("training"), WorkerStateTraining)
	})

	t.Run("WorkerStateEvaluating equals evaluating", func(t *testing.T) {
		assert.Equal(t, WorkerState("evaluating"), WorkerStateEvaluating)
	})

	t.Run("WorkerStateDone equals done", func(t *testing.T) {
		assert.Equal(t, WorkerState("done"), WorkerStateDone)
	})

	t.Run("WorkerStateFailed equals failed", func(t *testing.T) {
		assert.Equal(t, WorkerState("failed"), WorkerStateFailed)
	})
}

func TestRun_ZeroValues(t *testing.T) {
	t.Run("zero value run", func(t *testing.T) {
		var run Run

		assert.Equal(t, "", run.ID)
		assert.Equal(t, "", run.Name)
		assert.Equal(t, 0, run.WorldSize)
		assert.True(t, run.CreatedAt.IsZero())
	})

	t.Run("initialized run", func(t *testing.T) {
		now := time.Now()
		run := Run{
			ID:        "run-123",
			Name:      "ogbn-products-sage",
			WorldSize: 4,
			CreatedAt: now,
		}

		assert.Equal(t, "run-123", run.ID)
		assert.Equal(t, "ogbn-products-sage", run.Name)
		assert.Equal(t, 4, run.WorldSize)
		assert.Equal(t, now, run.CreatedAt)
	})
}

func TestWorker_ZeroValues(t *testing.T) {
	t.Run("zero value worker", func(t *testing.T) {
		var worker Worker

		assert.Equal(t, "", worker.ID)
		assert.Equal(t, "", worker.RunID)
		assert.Equal(t, 0, worker.Rank)
		assert.Equal(t, WorkerState(""), worker.State)
		assert.True(t, worker.LastHeartbeat.IsZero())
		assert.True(t, worker.StartedAt.IsZero())
	})
}

func TestSplit_Constants(t *testing.T) {
	assert.Equal(t, Split("train"), SplitTrain)
	assert.Equal(t, Split("val"), SplitVal)
	assert.Equal(t, Split("test"), SplitTest)
}
