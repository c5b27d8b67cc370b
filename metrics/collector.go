package metrics

import (
	"strconv"

	"github.com/distml/distsage"
)

// Collector wraps metrics and provides helper methods with pre-filled labels.
type Collector struct {
	run  string
	rank string
}

// NewCollector creates a new Collector for the given run and rank.
func NewCollector(run string, rank int) *Collector {
	return &Collector{run: run, rank: strconv.Itoa(rank)}
}

// IncEpochsCompleted increments the epochs completed counter.
func (c *Collector) IncEpochsCompleted() {
	EpochsCompletedTotal.WithLabelValues(c.run, c.rank).Inc()
}

// IncBatchesProcessed increments the batches processed counter.
func (c *Collector) IncBatchesProcessed() {
	BatchesProcessedTotal.WithLabelValues(c.run, c.rank).Inc()
}

// AddSeedsProcessed adds to the seeds processed counter.
func (c *Collector) AddSeedsProcessed(count int) {
	SeedsProcessedTotal.WithLabelValues(c.run, c.rank).Add(float64(count))
}

// AddPaddedNodes adds to the padded nodes counter.
func (c *Collector) AddPaddedNodes(count int) {
	PaddedNodesTotal.WithLabelValues(c.run, c.rank).Add(float64(count))
}

// IncCollectiveOps increments the collective operations counter for an op.
func (c *Collector) IncCollectiveOps(op string) {
	CollectiveOpsTotal.WithLabelValues(c.run, c.rank, op).Inc()
}

// IncCollectiveFailures increments the collective failures counter for an op.
func (c *Collector) IncCollectiveFailures(op string) {
	CollectiveFailuresTotal.WithLabelValues(c.run, c.rank, op).Inc()
}

// SetTrainLoss sets the training loss gauge.
func (c *Collector) SetTrainLoss(loss float64) {
	TrainLoss.WithLabelValues(c.run, c.rank).Set(loss)
}

// SetTrainAccuracy sets the training accuracy gauge.
func (c *Collector) SetTrainAccuracy(acc float64) {
	TrainAccuracy.WithLabelValues(c.run, c.rank).Set(acc)
}

// SetEvalAccuracy sets the evaluation accuracy gauge for a split.
func (c *Collector) SetEvalAccuracy(split distsage.Split, acc float64) {
	EvalAccuracy.WithLabelValues(c.run, c.rank, string(split)).Set(acc)
}

// SetWorkerState sets the worker state gauge. Sets value to 1 for the given state, 0 for others.
func (c *Collector) SetWorkerState(workerID string, state distsage.WorkerState) {
	states := []distsage.WorkerState{
		distsage.WorkerStateJoining,
		distsage.WorkerStateTraining,
		distsage.WorkerStateEvaluating,
		distsage.WorkerStateDone,
		distsage.WorkerStateFailed,
	}
	for _, s := range states {
		if s == state {
			WorkerState.WithLabelValues(c.run, workerID, string(s)).Set(1)
		} else {
			WorkerState.WithLabelValues(c.run, workerID, string(s)).Set(0)
		}
	}
}

// ObserveBatchPhaseDuration records a mini-batch phase duration observation.
func (c *Collector) ObserveBatchPhaseDuration(phase string, seconds float64) {
	BatchPhaseDuration.WithLabelValues(c.run, c.rank, phase).Observe(seconds)
}

// ObserveEpochDuration records an epoch duration observation.
func (c *Collector) ObserveEpochDuration(seconds float64) {
	EpochDuration.WithLabelValues(c.run, c.rank).Observe(seconds)
}

// ObserveEvalDuration records an evaluation duration observation.
func (c *Collector) ObserveEvalDuration(seconds float64) {
	EvalDuration.WithLabelValues(c.run, c.rank).Observe(seconds)
}
