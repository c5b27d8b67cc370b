package trainer

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/distml/distsage"
	"github.com/distml/distsage/model"
)

// Evaluate computes the global accuracy over a role split. Each worker
// scores its own share of the split with full-neighbor inference, then the
// local correct/total counts are summed across the group so every rank
// returns the same figure. All workers must call Evaluate in the same
// epochs; the shared evaluation cadence guarantees that.
//
// Returns NaN if the split is empty on every worker.
func (t *Trainer) Evaluate(ctx context.Context, split distsage.Split) (float64, error) {
	start := time.Now()
	ids := t.config.Store.Split(split)

	var bar *progressbar.ProgressBar
	if t.config.ShowProgress {
		bar = progressbar.Default(int64(len(ids)), string(split))
	}

	correct := 0
	for off := 0; off < len(ids); off += t.config.EvalBatchSize {
		end := off + t.config.EvalBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		seeds := ids[off:end]

		right, err := t.scoreBatch(seeds)
		if err != nil {
			return 0, errors.WithMessagef(err, "failed to score %s batch at %d", split, off)
		}
		correct += right

		if bar != nil {
			_ = bar.Add(len(seeds))
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	// One collective per Evaluate regardless of local batch count, so
	// workers with different split sizes stay in lockstep.
	counts := []float64{float64(correct), float64(len(ids))}
	if t.config.Collector != nil {
		t.config.Collector.IncCollectiveOps("allreduce_sum")
	}
	if err := t.config.Group.AllReduceSum(ctx, counts); err != nil {
		if t.config.Collector != nil {
			t.config.Collector.IncCollectiveFailures("allreduce_sum")
		}
		return 0, errors.WithMessagef(err, "failed to combine %s counts", split)
	}

	acc := math.NaN()
	if counts[1] > 0 {
		acc = counts[0] / counts[1]
	}
	if t.config.Collector != nil {
		t.config.Collector.SetEvalAccuracy(split, acc)
		t.config.Collector.ObserveEvalDuration(time.Since(start).Seconds())
	}
	return acc, nil
}

func (t *Trainer) scoreBatch(seeds []distsage.NodeID) (int, error) {
	blocks, err := t.evaler.SampleBlocks(seeds)
	if err != nil {
		return 0, err
	}
	features, err := gatherFeatures(t.config.Store, blocks[0].Src)
	if err != nil {
		return 0, err
	}
	labels, err := gatherLabels(t.config.Store, seeds)
	if err != nil {
		return 0, err
	}

	logits, err := t.model.Forward(blocks, features, false)
	if err != nil {
		return 0, err
	}
	return model.Correct(logits, labels)
}
