// Package memory provides an in-memory partition.Store assembled from edge
// lists. It backs tests and small standalone runs.
package memory

import (
	"github.com/pkg/errors"

	"github.com/distml/distsage"
	"github.com/distml/distsage/partition"
)

// Config describes the graph to assemble. Edges, Features, and Labels cover
// the whole graph; the role splits are given globally and divided evenly
// across ranks, the same even division every worker computes independently.
type Config struct {
	// Rank and WorldSize position this shard (required; WorldSize >= 1).
	Rank      int
	WorldSize int

	// Edges is the directed edge list. An edge [u, v] makes u a message
	// source for v: v aggregates from u.
	Edges [][2]distsage.NodeID

	// Features holds one feature vector per node, indexed by NodeID. All
	// vectors must share a length.
	Features [][]float64

	// Labels holds one class label per node, indexed by NodeID.
	Labels []int

	// NumClasses is the number of label classes.
	NumClasses int

	// TrainIDs, ValIDs, TestIDs are the global role splits.
	TrainIDs []distsage.NodeID
	ValIDs   []distsage.NodeID
	TestIDs  []distsage.NodeID
}

// Store is an in-memory implementation of partition.Store.
type Store struct {
	meta      partition.Meta
	neighbors map[distsage.NodeID][]distsage.NodeID
	features  [][]float64
	labels    []int
	splits    map[distsage.Split][]distsage.NodeID
}

// Compile-time check that Store implements partition.Store.
var _ partition.Store = (*Store)(nil)

// New assembles a shard from the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.WorldSize < 1 {
		return nil, errors.New("world size must be at least 1")
	}
	if len(cfg.Features) != len(cfg.Labels) {
		return nil, errors.Errorf("feature count %d does not match label count %d",
			len(cfg.Features), len(cfg.Labels))
	}

	featureDim := 0
	if len(cfg.Features) > 0 {
		featureDim = len(cfg.Features[0])
	}
	for id, f := range cfg.Features {
		if len(f) != featureDim {
			return nil, errors.Errorf("node %d has %d features, expected %d", id, len(f), featureDim)
		}
	}

	neighbors := make(map[distsage.NodeID][]distsage.NodeID)
	n := distsage.NodeID(len(cfg.Features))
	for _, e := range cfg.Edges {
		src, dst := e[0], e[1]
		if src >= n || dst >= n || src < 0 || dst < 0 {
			return nil, errors.Errorf("edge (%d, %d) references node outside graph of %d nodes", src, dst, n)
		}
		neighbors[dst] = append(neighbors[dst], src)
	}

	return &Store{
		meta: partition.Meta{
			NumNodes:   int64(len(cfg.Features)),
			FeatureDim: featureDim,
			NumClasses: cfg.NumClasses,
			Rank:       cfg.Rank,
			WorldSize:  cfg.WorldSize,
		},
		neighbors: neighbors,
		features:  cfg.Features,
		labels:    cfg.Labels,
		splits: map[distsage.Split][]distsage.NodeID{
			distsage.SplitTrain: partition.SplitEven(cfg.TrainIDs, cfg.Rank, cfg.WorldSize),
			distsage.SplitVal:   partition.SplitEven(cfg.ValIDs, cfg.Rank, cfg.WorldSize),
			distsage.SplitTest:  partition.SplitEven(cfg.TestIDs, cfg.Rank, cfg.WorldSize),
		},
	}, nil
}

func (s *Store) Meta() partition.Meta { return s.meta }

func (s *Store) Neighbors(id distsage.NodeID) ([]distsage.NodeID, error) {
	if id < 0 || id >= distsage.NodeID(len(s.features)) {
		return nil, distsage.ErrNodeNotFound
	}
	return s.neighbors[id], nil
}

func (s *Store) Features(id distsage.NodeID) ([]float64, error) {
	if id < 0 || id >= distsage.NodeID(len(s.features)) {
		return nil, distsage.ErrNodeNotFound
	}
	return s.features[id], nil
}

func (s *Store) Label(id distsage.NodeID) (int, error) {
	if id < 0 || id >= distsage.NodeID(len(s.labels)) {
		return 0, distsage.ErrNodeNotFound
	}
	return s.labels[id], nil
}

func (s *Store) Split(split distsage.Split) []distsage.NodeID {
	return s.splits[split]
}

func (s *Store) Close() error { return nil }
