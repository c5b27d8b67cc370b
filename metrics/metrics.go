package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EpochsCompletedTotal tracks the total number of epochs completed.
var EpochsCompletedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "distsage_epochs_completed_total",
		Help: "Total number of epochs completed",
	},
	[]string{"run", "rank"},
)

// BatchesProcessedTotal tracks the total number of mini-batches processed.
var BatchesProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "distsage_batches_processed_total",
		Help: "Total mini-batches processed",
	},
	[]string{"run", "rank"},
)

// SeedsProcessedTotal tracks the total number of seed nodes trained on.
var SeedsProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "distsage_seeds_processed_total",
		Help: "Total seed nodes trained on",
	},
	[]string{"run", "rank"},
)

// PaddedNodesTotal tracks the number of duplicate node IDs appended to
// equalize batch counts across workers.
var PaddedNodesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "distsage_padded_nodes_total",
		Help: "Duplicate node IDs appended to equalize batch counts",
	},
	[]string{"run", "rank"},
)

// CollectiveOpsTotal tracks the total number of collective operations issued.
var CollectiveOpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "distsage_collective_ops_total",
		Help: "Total collective operations issued",
	},
	[]string{"run", "rank", "op"},
)

// CollectiveFailuresTotal tracks the total number of failed collective operations.
var CollectiveFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "distsage_collective_failures_total",
		Help: "Total failed collective operations",
	},
	[]string{"run", "rank", "op"},
)

// TrainLoss tracks the most recent mini-batch training loss.
var TrainLoss = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "distsage_train_loss",
		Help: "Most recent mini-batch training loss",
	},
	[]string{"run", "rank"},
)

// TrainAccuracy tracks the most recent mini-batch training accuracy.
var TrainAccuracy = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "distsage_train_accuracy",
		Help: "Most recent mini-batch training accuracy",
	},
	[]string{"run", "rank"},
)

// EvalAccuracy tracks the most recent global evaluation accuracy per split.
var EvalAccuracy = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "distsage_eval_accuracy",
		Help: "Most recent global evaluation accuracy",
	},
	[]string{"run", "rank", "split"},
)

// WorkerState tracks worker state (value 1 for current state, 0 otherwise).
var WorkerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "distsage_worker_state",
		Help: "Worker state (1 for current state, 0 otherwise)",
	},
	[]string{"run", "worker_id", "state"},
)

// BatchPhaseDuration tracks time spent per mini-batch phase.
var BatchPhaseDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "distsage_batch_phase_duration_seconds",
		Help:    "Time spent per mini-batch phase",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"run", "rank", "phase"},
)

// EpochDuration tracks wall-clock time per epoch.
var EpochDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "distsage_epoch_duration_seconds",
		Help:    "Wall-clock time per epoch",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	},
	[]string{"run", "rank"},
)

// EvalDuration tracks wall-clock time per distributed evaluation.
var EvalDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "distsage_eval_duration_seconds",
		Help:    "Wall-clock time per distributed evaluation",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	},
	[]string{"run", "rank"},
)
