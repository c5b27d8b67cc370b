package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEpochsCompletedTotal_Increment(t *testing.T) {
	before := testutil.ToFloat64(EpochsCompletedTotal.WithLabelValues("test-run", "0"))
	EpochsCompletedTotal.WithLabelValues("test-run", "0").Inc()
	after := testutil.ToFloat64(EpochsCompletedTotal.WithLabelValues("test-run", "0"))

	assert.Equal(t, before+1, after)
}

func TestBatchesProcessedTotal_Increment(t *testing.T) {
	before := testutil.ToFloat64(BatchesProcessedTotal.WithLabelValues("test-run-2", "1"))
	BatchesProcessedTotal.WithLabelValues("test-run-2", "1").Inc()
	after := testutil.ToFloat64(BatchesProcessedTotal.WithLabelValues("test-run-2", "1"))

	assert.Equal(t, before+1, after)
}

func TestPaddedNodesTotal_Add(t *testing.T) {
	before := testutil.ToFloat64(PaddedNodesTotal.WithLabelValues("test-run-3", "0"))
	PaddedNodesTotal.WithLabelValues("test-run-3", "0").Add(7)
	after := testutil.ToFloat64(PaddedNodesTotal.WithLabelValues("test-run-3", "0"))

	assert.Equal(t, before+7, after)
}

func TestTrainLoss_SetValue(t *testing.T) {
	TrainLoss.WithLabelValues("test-run-4", "0").Set(0.42)
	value := testutil.ToFloat64(TrainLoss.WithLabelValues("test-run-4", "0"))

	assert.Equal(t, 0.42, value)
}

func TestEvalAccuracy_SetValue(t *testing.T) {
	EvalAccuracy.WithLabelValues("test-run-5", "0", "val").Set(0.9)
	value := testutil.ToFloat64(EvalAccuracy.WithLabelValues("test-run-5", "0", "val"))

	assert.Equal(t, 0.9, value)
}

func TestBatchPhaseDuration_Observe(t *testing.T) {
	BatchPhaseDuration.WithLabelValues("test-run-6", "0", "forward").Observe(0.02)
	count := testutil.CollectAndCount(BatchPhaseDuration)

	assert.Greater(t, count, 0)
}

func TestEpochDuration_Observe(t *testing.T) {
	EpochDuration.WithLabelValues("test-run-7", "0").Observe(1.5)
	count := testutil.CollectAndCount(EpochDuration)

	assert.Greater(t, count, 0)
}

func TestEvalDuration_Observe(t *testing.T) {
	EvalDuration.WithLabelValues("test-run-8", "0").Observe(0.5)
	count := testutil.CollectAndCount(EvalDuration)

	assert.Greater(t, count, 0)
}
