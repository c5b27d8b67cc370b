package distsage

import "errors"

var (
	// ErrEmptyIDList indicates a worker presented an empty identifier list for
	// batch-count equalization. It is detected before any collective call is
	// issued, so a misconfigured worker never strands its peers in a reduction
	// they can only complete together.
	ErrEmptyIDList = errors.New("empty identifier list")

	// ErrCollectiveTimeout indicates a collective operation did not complete in
	// time, usually because a participating worker never issued the matching
	// call. This is fatal: there is no retry semantic for collectives.
	ErrCollectiveTimeout = errors.New("collective operation timed out")

	// ErrGroupClosed indicates a collective was attempted on a communication
	// group that has been closed.
	ErrGroupClosed = errors.New("communication group closed")

	// ErrRunNotFound indicates the specified run does not exist in the run store.
	ErrRunNotFound = errors.New("run not found")

	// ErrWorkerNotFound indicates the specified worker does not exist in the run store.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrNodeNotFound indicates a node ID is not present in the local shard.
	ErrNodeNotFound = errors.New("node not found in shard")
)
