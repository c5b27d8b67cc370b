// Package partition provides access to a worker's shard of the partitioned
// training graph. A shard holds every node the worker may touch while
// sampling (its own nodes plus the sampling halo) together with the worker's
// share of the train/val/test role splits.
package partition

import (
	"github.com/distml/distsage"
)

// Meta describes the global graph a shard belongs to.
type Meta struct {
	// NumNodes is the global node count.
	NumNodes int64

	// FeatureDim is the width of every node's feature vector.
	FeatureDim int

	// NumClasses is the number of label classes.
	NumClasses int

	// Rank and WorldSize identify the shard within the partitioning.
	Rank      int
	WorldSize int
}

// Store provides read access to one worker's graph shard.
// Implementations must be safe for concurrent reads.
type Store interface {
	// Meta returns the shard's graph metadata.
	Meta() Meta

	// Neighbors returns the in-neighbors to aggregate from for a node.
	// Returns ErrNodeNotFound if the node is outside the shard.
	Neighbors(id distsage.NodeID) ([]distsage.NodeID, error)

	// Features returns a node's feature vector. The returned slice must not
	// be modified. Returns ErrNodeNotFound if the node is outside the shard.
	Features(id distsage.NodeID) ([]float64, error)

	// Label returns a node's class label.
	// Returns ErrNodeNotFound if the node is outside the shard.
	Label(id distsage.NodeID) (int, error)

	// Split returns this worker's share of the given role split. The
	// returned slice must not be modified.
	Split(s distsage.Split) []distsage.NodeID

	// Close releases the shard's resources.
	Close() error
}
