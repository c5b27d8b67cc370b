package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/distml/distsage"
)

func TestNewCollector_CreatesCollectorWithRunAndRank(t *testing.T) {
	collector := NewCollector("test-run", 3)

	assert.NotNil(t, collector)
	assert.Equal(t, "test-run", collector.run)
	assert.Equal(t, "3", collector.rank)
}

func TestCollector_IncEpochsCompleted(t *testing.T) {
	collector := NewCollector("test-run-coll-1", 0)

	before := testutil.ToFloat64(EpochsCompletedTotal.WithLabelValues("test-run-coll-1", "0"))
	collector.IncEpochsCompleted()
	after := testutil.ToFloat64(EpochsCompletedTotal.WithLabelValues("test-run-coll-1", "0"))

	assert.Equal(t, before+1, after)
}

func TestCollector_IncBatchesProcessed(t *testing.T) {
	collector := NewCollector("test-run-coll-2", 0)

	before := testutil.ToFloat64(BatchesProcessedTotal.WithLabelValues("test-run-coll-2", "0"))
	collector.IncBatchesProcessed()
	after := testutil.ToFloat64(BatchesProcessedTotal.WithLabelValues("test-run-coll-2", "0"))

	assert.Equal(t, before+1, after)
}

func TestCollector_AddSeedsProcessed(t *testing.T) {
	collector := NewCollector("test-run-coll-3", 0)

	before := testutil.ToFloat64(SeedsProcessedTotal.WithLabelValues("test-run-coll-3", "0"))
	collector.AddSeedsProcessed(128)
	after := testutil.ToFloat64(SeedsProcessedTotal.WithLabelValues("test-run-coll-3", "0"))

	assert.Equal(t, before+128, after)
}

func TestCollector_AddPaddedNodes(t *testing.T) {
	collector := NewCollector("test-run-coll-4", 2)

	before := testutil.ToFloat64(PaddedNodesTotal.WithLabelValues("test-run-coll-4", "2"))
	collector.AddPaddedNodes(32)
	after := testutil.ToFloat64(PaddedNodesTotal.WithLabelValues("test-run-coll-4", "2"))

	assert.Equal(t, before+32, after)
}

func TestCollector_IncCollectiveOps(t *testing.T) {
	collector := NewCollector("test-run-coll-5", 0)

	before := testutil.ToFloat64(CollectiveOpsTotal.WithLabelValues("test-run-coll-5", "0", "allreduce_max"))
	collector.IncCollectiveOps("allreduce_max")
	after := testutil.ToFloat64(CollectiveOpsTotal.WithLabelValues("test-run-coll-5", "0", "allreduce_max"))

	assert.Equal(t, before+1, after)
}

func TestCollector_IncCollectiveFailures(t *testing.T) {
	collector := NewCollector("test-run-coll-6", 0)

	before := testutil.ToFloat64(CollectiveFailuresTotal.WithLabelValues("test-run-coll-6", "0", "barrier"))
	collector.IncCollectiveFailures("barrier")
	after := testutil.ToFloat64(CollectiveFailuresTotal.WithLabelValues("test-run-coll-6", "0", "barrier"))

	assert.Equal(t, before+1, after)
}

func TestCollector_SetTrainLoss(t *testing.T) {
	collector := NewCollector("test-run-coll-7", 0)

	collector.SetTrainLoss(1.25)
	value := testutil.ToFloat64(TrainLoss.WithLabelValues("test-run-coll-7", "0"))

	assert.Equal(t, 1.25, value)
}

func TestCollector_SetEvalAccuracy(t *testing.T) {
	collector := NewCollector("test-run-coll-8", 0)

	collector.SetEvalAccuracy(distsage.SplitTest, 0.87)
	value := testutil.ToFloat64(EvalAccuracy.WithLabelValues("test-run-coll-8", "0", "test"))

	assert.Equal(t, 0.87, value)
}

func TestCollector_SetWorkerState(t *testing.T) {
	collector := NewCollector("test-run-coll-9", 0)

	collector.SetWorkerState("worker-1", distsage.WorkerStateTraining)

	trainingValue := testutil.ToFloat64(WorkerState.WithLabelValues("test-run-coll-9", "worker-1", "training"))
	joiningValue := testutil.ToFloat64(WorkerState.WithLabelValues("test-run-coll-9", "worker-1", "joining"))

	assert.Equal(t, float64(1), trainingValue)
	assert.Equal(t, float64(0), joiningValue)
}

func TestCollector_ObserveBatchPhaseDuration(t *testing.T) {
	collector := NewCollector("test-run-coll-10", 0)

	collector.ObserveBatchPhaseDuration("sample", 0.01)
	count := testutil.CollectAndCount(BatchPhaseDuration)

	assert.Greater(t, count, 0)
}

func TestCollector_ObserveEpochDuration(t *testing.T) {
	collector := NewCollector("test-run-coll-11", 0)

	collector.ObserveEpochDuration(2.5)
	count := testutil.CollectAndCount(EpochDuration)

	assert.Greater(t, count, 0)
}
