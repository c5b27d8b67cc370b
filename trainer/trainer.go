// Package trainer drives distributed mini-batch training of a GraphSAGE
// model: batch-count equalization before the loop, per-batch sampling,
// forward/backward passes, data-parallel gradient averaging, and periodic
// distributed evaluation.
package trainer

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/distml/distsage"
	"github.com/distml/distsage/batching"
	"github.com/distml/distsage/comm"
	"github.com/distml/distsage/lifecycle"
	"github.com/distml/distsage/metrics"
	"github.com/distml/distsage/model"
	"github.com/distml/distsage/partition"
	"github.com/distml/distsage/runstore"
	"github.com/distml/distsage/sampler"
)

// Config holds configuration for the Trainer.
type Config struct {
	// Store is the worker's graph shard (required).
	Store partition.Store

	// Group is the communication group shared by all workers (required).
	Group comm.Group

	// Fanouts gives the neighbors to sample per layer, input layer first
	// (default: 10, 25). The model gets one layer per fanout.
	Fanouts []int

	// Epochs is the number of training epochs (default: 10).
	Epochs int

	// BatchSize is the number of seed nodes per training batch (default: 1000).
	BatchSize int

	// EvalBatchSize is the number of seed nodes per evaluation batch
	// (default: 10000).
	EvalBatchSize int

	// LearningRate is the Adam learning rate (default: 0.003).
	LearningRate float64

	// Dropout is the drop probability between hidden layers (default: 0.5).
	Dropout float64

	// HiddenDim is the hidden layer width (default: 16).
	HiddenDim int

	// LogEvery is the per-step log cadence in batches (default: 20).
	LogEvery int

	// EvalEvery runs distributed evaluation every EvalEvery epochs.
	// Zero disables periodic evaluation (default: 5). Must be identical
	// on every worker, or their collective schedules diverge.
	EvalEvery int

	// Seed seeds shuffling, sampling, and weight initialization.
	// Combined with the rank so workers draw different batches.
	Seed int64

	// Logger is for observability (optional).
	Logger distsage.Logger

	// RunStore persists worker lifecycle and epoch records (optional).
	RunStore runstore.Store

	// RunID is the run to register under. Required when RunStore is set.
	RunID string

	// HeartbeatInterval is passed to the lifecycle manager (optional).
	HeartbeatInterval time.Duration

	// Collector records training metrics (optional).
	Collector *metrics.Collector

	// ShowProgress draws a progress bar during evaluation batches.
	ShowProgress bool
}

// Trainer runs the distributed training loop for one worker.
type Trainer struct {
	config    Config
	equalizer *batching.Equalizer
	sampler   *sampler.Sampler
	evaler    *sampler.Sampler
	model     *model.SAGE
	opt       *model.Adam
	manager   *lifecycle.Manager
}

// EpochStats summarizes one finished epoch.
type EpochStats struct {
	Epoch    int
	Loss     float64
	TrainAcc float64
	ValAcc   float64
	TestAcc  float64
	Duration time.Duration
}

// New creates a Trainer with the given configuration.
// Applies default values for unset fields.
func New(cfg Config) (*Trainer, error) {
	if cfg.Store == nil {
		return nil, errors.New("a partition store is required")
	}
	if cfg.Group == nil {
		return nil, errors.New("a communication group is required")
	}
	if cfg.RunStore != nil && cfg.RunID == "" {
		return nil, errors.New("a run ID is required when a run store is configured")
	}
	if len(cfg.Fanouts) == 0 {
		cfg.Fanouts = []int{10, 25}
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	if cfg.EvalBatchSize == 0 {
		cfg.EvalBatchSize = 10000
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.003
	}
	if cfg.Dropout == 0 {
		cfg.Dropout = 0.5
	}
	if cfg.HiddenDim == 0 {
		cfg.HiddenDim = 16
	}
	if cfg.LogEvery == 0 {
		cfg.LogEvery = 20
	}
	if cfg.EvalEvery == 0 {
		cfg.EvalEvery = 5
	}

	meta := cfg.Store.Meta()
	seed := cfg.Seed + int64(cfg.Group.Rank())

	s, err := sampler.New(cfg.Store, cfg.Fanouts, seed)
	if err != nil {
		return nil, err
	}

	// Evaluation uses every neighbor at every layer.
	full := make([]int, len(cfg.Fanouts))
	for i := range full {
		full[i] = -1
	}
	evaler, err := sampler.New(cfg.Store, full, seed)
	if err != nil {
		return nil, err
	}

	// All workers initialize from the same seed so parameters start in
	// sync; gradient averaging keeps them in sync.
	net, err := model.New(model.Config{
		InDim:      meta.FeatureDim,
		HiddenDim:  cfg.HiddenDim,
		NumClasses: meta.NumClasses,
		NumLayers:  len(cfg.Fanouts),
		Dropout:    cfg.Dropout,
		Seed:       cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		config:    cfg,
		equalizer: batching.NewEqualizer(cfg.Group, cfg.Logger),
		sampler:   s,
		evaler:    evaler,
		model:     net,
		opt:       model.NewAdam(len(net.Params()), cfg.LearningRate),
	}
	if cfg.RunStore != nil {
		t.manager = lifecycle.New(lifecycle.Config{
			Store:             cfg.RunStore,
			HeartbeatInterval: cfg.HeartbeatInterval,
			Logger:            cfg.Logger,
		})
	}
	return t, nil
}

// Run executes the full training schedule. Any collective failure is fatal
// to the run; there is no retry semantic.
func (t *Trainer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if t.manager != nil {
		if _, err := t.manager.Register(ctx, t.config.RunID, t.config.Group.Rank()); err != nil {
			return errors.WithMessage(err, "failed to register worker")
		}
		go func() {
			_ = t.manager.StartHeartbeat(ctx)
		}()
	}

	err := t.run(ctx)

	if t.manager != nil {
		// Use a fresh context so the final state lands even when the run
		// context is already cancelled.
		stateCtx, stateCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stateCancel()
		state := distsage.WorkerStateDone
		if err != nil {
			state = distsage.WorkerStateFailed
		}
		if serr := t.manager.UpdateState(stateCtx, state); serr != nil && t.config.Logger != nil {
			t.config.Logger.Error(stateCtx, "failed to record final worker state", "error", serr)
		}
		t.setStateMetric(state)
	}
	return err
}

func (t *Trainer) run(ctx context.Context) error {
	trainIDs := t.config.Store.Split(distsage.SplitTrain)

	// Equalize once before the loop: train IDs are static across epochs,
	// and a worker with fewer batches than its peers would leave them
	// blocked in a gradient reduction that can never complete.
	equalized, err := t.equalizer.Equalize(ctx, trainIDs)
	if err != nil {
		return errors.WithMessage(err, "failed to equalize batch counts")
	}
	if t.config.Collector != nil {
		t.config.Collector.AddPaddedNodes(len(equalized) - len(trainIDs))
	}

	loader := batching.NewLoader(equalized, t.config.BatchSize, true, t.config.Seed+int64(t.config.Group.Rank()))

	if err := t.updateState(ctx, distsage.WorkerStateTraining); err != nil {
		return err
	}

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		stats, err := t.trainEpoch(ctx, loader, epoch)
		if err != nil {
			return errors.WithMessagef(err, "epoch %d failed", epoch)
		}

		stats.ValAcc = math.NaN()
		stats.TestAcc = math.NaN()
		if t.config.EvalEvery > 0 && (epoch+1)%t.config.EvalEvery == 0 {
			if err := t.updateState(ctx, distsage.WorkerStateEvaluating); err != nil {
				return err
			}
			stats.ValAcc, err = t.Evaluate(ctx, distsage.SplitVal)
			if err != nil {
				return errors.WithMessagef(err, "validation after epoch %d failed", epoch)
			}
			stats.TestAcc, err = t.Evaluate(ctx, distsage.SplitTest)
			if err != nil {
				return errors.WithMessagef(err, "testing after epoch %d failed", epoch)
			}
			if t.config.Logger != nil {
				t.config.Logger.Info(ctx, "evaluation finished",
					"epoch", epoch, "valAcc", stats.ValAcc, "testAcc", stats.TestAcc)
			}
			if err := t.updateState(ctx, distsage.WorkerStateTraining); err != nil {
				return err
			}
		}

		if err := t.recordEpoch(ctx, stats); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) trainEpoch(ctx context.Context, loader *batching.Loader, epoch int) (EpochStats, error) {
	cfg := t.config
	epochStart := time.Now()
	loader.Reshuffle()

	var (
		phases      = map[string]time.Duration{}
		totalLoss   float64
		totalRight  int
		totalSeeds  int
		windowStart = time.Now()
	)
	timed := func(phase string, f func() error) error {
		start := time.Now()
		err := f()
		d := time.Since(start)
		phases[phase] += d
		if cfg.Collector != nil {
			cfg.Collector.ObserveBatchPhaseDuration(phase, d.Seconds())
		}
		return err
	}

	for step := 0; step < loader.NumBatches(); step++ {
		seeds := loader.Batch(step)

		var (
			blocks   []sampler.Block
			features *mat.Dense
			labels   []int
			logits   *mat.Dense
			loss     float64
			dLogits  *mat.Dense
		)
		err := timed("sample", func() (err error) {
			if blocks, err = t.sampler.SampleBlocks(seeds); err != nil {
				return err
			}
			if features, err = gatherFeatures(cfg.Store, blocks[0].Src); err != nil {
				return err
			}
			labels, err = gatherLabels(cfg.Store, seeds)
			return err
		})
		if err != nil {
			return EpochStats{}, err
		}

		err = timed("forward", func() (err error) {
			if logits, err = t.model.Forward(blocks, features, true); err != nil {
				return err
			}
			loss, dLogits, err = model.SoftmaxCrossEntropy(logits, labels)
			return err
		})
		if err != nil {
			return EpochStats{}, err
		}

		if err := timed("backward", func() error {
			return t.model.Backward(dLogits)
		}); err != nil {
			return EpochStats{}, err
		}

		if err := timed("update", func() error {
			if err := t.averageGradients(ctx); err != nil {
				return err
			}
			return t.opt.Step(t.model.Params(), t.model.Grads())
		}); err != nil {
			return EpochStats{}, err
		}

		right, err := model.Correct(logits, labels)
		if err != nil {
			return EpochStats{}, err
		}
		totalLoss += loss
		totalRight += right
		totalSeeds += len(seeds)

		if cfg.Collector != nil {
			cfg.Collector.IncBatchesProcessed()
			cfg.Collector.AddSeedsProcessed(len(seeds))
			cfg.Collector.SetTrainLoss(loss)
			cfg.Collector.SetTrainAccuracy(float64(right) / float64(len(seeds)))
		}
		if cfg.Logger != nil && (step+1)%cfg.LogEvery == 0 {
			elapsed := time.Since(windowStart).Seconds()
			windowStart = time.Now()
			cfg.Logger.Info(ctx, "training step",
				"epoch", epoch,
				"step", step+1,
				"loss", loss,
				"acc", float64(right)/float64(len(seeds)),
				"seedsPerSec", float64(cfg.LogEvery*cfg.BatchSize)/elapsed)
		}
	}

	duration := time.Since(epochStart)
	batches := loader.NumBatches()
	stats := EpochStats{
		Epoch:    epoch,
		Loss:     totalLoss / float64(batches),
		TrainAcc: float64(totalRight) / float64(totalSeeds),
		Duration: duration,
	}

	if cfg.Collector != nil {
		cfg.Collector.IncEpochsCompleted()
		cfg.Collector.ObserveEpochDuration(duration.Seconds())
	}
	if cfg.Logger != nil {
		cfg.Logger.Info(ctx, "epoch finished",
			"epoch", epoch,
			"loss", stats.Loss,
			"acc", stats.TrainAcc,
			"duration", duration,
			"sample", phases["sample"],
			"forward", phases["forward"],
			"backward", phases["backward"],
			"update", phases["update"])
	}
	return stats, nil
}

// averageGradients replaces the local gradients with the mean gradient
// across all workers.
func (t *Trainer) averageGradients(ctx context.Context) error {
	grads := t.model.Grads()
	if t.config.Collector != nil {
		t.config.Collector.IncCollectiveOps("allreduce_sum")
	}
	if err := t.config.Group.AllReduceSum(ctx, grads); err != nil {
		if t.config.Collector != nil {
			t.config.Collector.IncCollectiveFailures("allreduce_sum")
		}
		return errors.WithMessage(err, "failed to average gradients")
	}
	inv := 1 / float64(t.config.Group.Size())
	for i := range grads {
		grads[i] *= inv
	}
	return nil
}

func (t *Trainer) updateState(ctx context.Context, state distsage.WorkerState) error {
	if t.manager == nil {
		return nil
	}
	if err := t.manager.UpdateState(ctx, state); err != nil {
		return errors.WithMessagef(err, "failed to enter %s state", state)
	}
	t.setStateMetric(state)
	return nil
}

func (t *Trainer) setStateMetric(state distsage.WorkerState) {
	if t.config.Collector != nil && t.manager != nil {
		t.config.Collector.SetWorkerState(t.manager.WorkerID(), state)
	}
}

func (t *Trainer) recordEpoch(ctx context.Context, stats EpochStats) error {
	if t.config.RunStore == nil {
		return nil
	}
	record := distsage.EpochRecord{
		RunID:    t.config.RunID,
		Rank:     t.config.Group.Rank(),
		Epoch:    stats.Epoch,
		Loss:     stats.Loss,
		TrainAcc: stats.TrainAcc,
		ValAcc:   stats.ValAcc,
		TestAcc:  stats.TestAcc,
		Duration: stats.Duration,
	}
	if err := t.config.RunStore.RecordEpoch(ctx, record); err != nil {
		return errors.WithMessagef(err, "failed to record epoch %d", stats.Epoch)
	}
	return nil
}

func gatherFeatures(store partition.Store, ids []distsage.NodeID) (*mat.Dense, error) {
	dim := store.Meta().FeatureDim
	features := mat.NewDense(len(ids), dim, nil)
	for i, id := range ids {
		row, err := store.Features(id)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch features of node %d", id)
		}
		features.SetRow(i, row)
	}
	return features, nil
}

func gatherLabels(store partition.Store, ids []distsage.NodeID) ([]int, error) {
	labels := make([]int, len(ids))
	for i, id := range ids {
		label, err := store.Label(id)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch label of node %d", id)
		}
		labels[i] = label
	}
	return labels, nil
}
