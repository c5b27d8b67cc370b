// Package batching equalizes per-worker batch counts and feeds the training
// loop its mini-batches.
//
// In distributed training every worker must execute the same number of loop
// iterations per epoch: each iteration ends in synchronized collective calls,
// and a worker with fewer batches than its peers would leave them hanging on
// a rendezvous it never enters. The Equalizer prevents that by padding every
// worker's training identifiers to the maximum length observed across the
// group, repeating the worker's own identifiers cyclically.
package batching

import (
	"context"

	"github.com/pkg/errors"

	"github.com/distml/distsage"
	"github.com/distml/distsage/comm"
)

// Equalizer pads a worker's local training identifiers so that every worker
// in the group ends up with lists of identical length.
type Equalizer struct {
	reducer comm.MaxReducer
	logger  distsage.Logger
}

// NewEqualizer creates an Equalizer over the given reducer. The logger is
// optional.
func NewEqualizer(reducer comm.MaxReducer, logger distsage.Logger) *Equalizer {
	return &Equalizer{reducer: reducer, logger: logger}
}

// Equalize returns ids padded to the maximum local length across all workers
// in the group, by cyclic repetition of ids. The first len(ids) elements of
// the result are always ids itself, in order, and every element of the result
// is drawn from ids; no identifiers are fabricated.
//
// Equalize participates in one blocking all-reduce; every worker in the group
// must call it exactly once per synchronization point. An empty ids fails
// with ErrEmptyIDList before the collective is issued, so a worker with a
// broken shard does not strand its peers in the reduction.
func (e *Equalizer) Equalize(ctx context.Context, ids []distsage.NodeID) ([]distsage.NodeID, error) {
	if len(ids) == 0 {
		return nil, distsage.ErrEmptyIDList
	}

	localLen := int64(len(ids))
	globalMax, err := e.reducer.AllReduceMax(ctx, localLen)
	if err != nil {
		return nil, errors.WithMessage(err, "equalizing batch counts")
	}

	if globalMax <= localLen {
		return ids, nil
	}

	repeat := globalMax / localLen
	remainder := globalMax % localLen
	padded := make([]distsage.NodeID, 0, globalMax)
	for i := int64(0); i < repeat; i++ {
		padded = append(padded, ids...)
	}
	padded = append(padded, ids[:remainder]...)

	if int64(len(padded)) != globalMax {
		return nil, errors.Errorf("padded %d identifiers to %d, expected %d", localLen, len(padded), globalMax)
	}

	if e.logger != nil {
		e.logger.Info(ctx, "padded training identifiers", "from", localLen, "to", globalMax)
	}
	return padded, nil
}
