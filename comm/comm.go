package comm

import "context"

// MaxReducer is the single collective capability the batch-count equalizer
// consumes. Keeping it narrow lets the equalizer be tested against a fake
// group without bringing up real worker processes.
type MaxReducer interface {
	// AllReduceMax blocks until every member of the group has called it with
	// a value, then returns the maximum of all values to every caller. Every
	// worker must call it exactly once per synchronization point; a worker
	// that never calls leaves all others suspended.
	AllReduceMax(ctx context.Context, value int64) (int64, error)
}

// Group is a collective communication group of worker processes. A group has
// a fixed membership for its whole lifetime: Size ranks, each worker holding
// exactly one.
//
// Collectives are blocking rendezvous points: no caller returns until every
// rank has issued the matching call. All ranks must issue collectives in the
// same relative order; implementations may treat an order mismatch as a fatal
// protocol error. A Group supports one in-flight collective at a time — it is
// not safe to issue collectives from multiple goroutines concurrently.
type Group interface {
	MaxReducer

	// Rank returns this worker's rank, in [0, Size).
	Rank() int

	// Size returns the number of workers in the group.
	Size() int

	// AllReduceSum replaces values, element-wise, with the sum across all
	// ranks. All ranks must pass slices of the same length.
	AllReduceSum(ctx context.Context, values []float64) error

	// Barrier blocks until every rank has reached it.
	Barrier(ctx context.Context) error

	// Close releases the group's resources. Collectives issued after Close
	// fail with ErrGroupClosed.
	Close() error
}
