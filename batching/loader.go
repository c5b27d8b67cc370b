package batching

import (
	"math/rand"

	"github.com/distml/distsage"
)

// Loader slices a worker's (already equalized) training identifiers into
// mini-batches, reshuffling between epochs. The final batch of an epoch may
// be short; it is never dropped, because dropping it would desynchronize
// batch counts the equalizer just fixed — every worker sees the same list
// length, so every worker sees the same batch count.
type Loader struct {
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	order     []distsage.NodeID
}

// NewLoader creates a Loader over ids. The ids slice is copied; the caller's
// slice is never reordered. A seed fixes the shuffle order for tests.
func NewLoader(ids []distsage.NodeID, batchSize int, shuffle bool, seed int64) *Loader {
	order := make([]distsage.NodeID, len(ids))
	copy(order, ids)
	return &Loader{
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		order:     order,
	}
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	if len(l.order) == 0 {
		return 0
	}
	return (len(l.order) + l.batchSize - 1) / l.batchSize
}

// Reshuffle permutes the iteration order. Call once at the start of each
// epoch; it is a no-op for loaders created without shuffling.
func (l *Loader) Reshuffle() {
	if !l.shuffle {
		return
	}
	l.rng.Shuffle(len(l.order), func(i, j int) {
		l.order[i], l.order[j] = l.order[j], l.order[i]
	})
}

// Batch returns the i-th batch of the current epoch. The returned slice
// aliases the loader's internal order and is only valid until the next
// Reshuffle.
func (l *Loader) Batch(i int) []distsage.NodeID {
	start := i * l.batchSize
	end := start + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	return l.order[start:end]
}
