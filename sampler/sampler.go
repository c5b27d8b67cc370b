// Package sampler builds the layered neighborhood blocks consumed by the
// model's forward pass. For a batch of seed nodes it walks the requested
// fanouts from the output layer inward, sampling a fixed number of
// in-neighbors per node at each hop.
package sampler

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/distml/distsage"
	"github.com/distml/distsage/partition"
)

// Block is one bipartite message-passing layer. Dst nodes are the first
// NumDst entries of Src, so a destination's own embedding is always
// available to the layer that consumes the block.
type Block struct {
	// Src lists the source nodes feeding this layer. The first NumDst
	// entries are the destination nodes themselves.
	Src []distsage.NodeID

	// NumDst is the number of destination nodes.
	NumDst int

	// Neighbors holds, for each destination i in [0, NumDst), the indices
	// into Src of its sampled in-neighbors.
	Neighbors [][]int
}

// Sampler draws layered neighborhoods from a graph shard.
// It is not safe for concurrent use; each worker goroutine owns one.
type Sampler struct {
	store   partition.Store
	fanouts []int
	rng     *rand.Rand
}

// New creates a sampler over store. fanouts gives the number of neighbors to
// sample per node at each layer, listed from the input layer to the output
// layer. A negative fanout keeps every neighbor at that layer.
func New(store partition.Store, fanouts []int, seed int64) (*Sampler, error) {
	if len(fanouts) == 0 {
		return nil, errors.New("at least one fanout is required")
	}
	for i, f := range fanouts {
		if f == 0 {
			return nil, errors.Errorf("fanout %d is zero; use a negative fanout to keep all neighbors", i)
		}
	}
	return &Sampler{
		store:   store,
		fanouts: fanouts,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// SampleBlocks builds one block per fanout for the given seed nodes. Blocks
// are returned input-layer first, so blocks[0] is consumed by the first
// model layer and the destinations of the last block are the seeds.
func (s *Sampler) SampleBlocks(seeds []distsage.NodeID) ([]Block, error) {
	if len(seeds) == 0 {
		return nil, errors.New("a batch needs at least one seed node")
	}

	blocks := make([]Block, len(s.fanouts))
	frontier := seeds
	for layer := len(s.fanouts) - 1; layer >= 0; layer-- {
		block, err := s.sampleLayer(frontier, s.fanouts[layer])
		if err != nil {
			return nil, err
		}
		blocks[layer] = block
		frontier = block.Src
	}
	return blocks, nil
}

func (s *Sampler) sampleLayer(dst []distsage.NodeID, fanout int) (Block, error) {
	src := make([]distsage.NodeID, len(dst), 2*len(dst))
	copy(src, dst)
	index := make(map[distsage.NodeID]int, len(dst))
	for i, id := range dst {
		index[id] = i
	}

	neighbors := make([][]int, len(dst))
	for i, id := range dst {
		sampled, err := s.sampleNeighbors(id, fanout)
		if err != nil {
			return Block{}, err
		}
		idxs := make([]int, 0, len(sampled))
		for _, n := range sampled {
			j, ok := index[n]
			if !ok {
				j = len(src)
				src = append(src, n)
				index[n] = j
			}
			idxs = append(idxs, j)
		}
		neighbors[i] = idxs
	}

	return Block{Src: src, NumDst: len(dst), Neighbors: neighbors}, nil
}

// sampleNeighbors draws up to fanout in-neighbors of id without replacement.
// A negative fanout returns every neighbor.
func (s *Sampler) sampleNeighbors(id distsage.NodeID, fanout int) ([]distsage.NodeID, error) {
	all, err := s.store.Neighbors(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sample neighbors of node %d", id)
	}
	if fanout < 0 || len(all) <= fanout {
		return all, nil
	}

	picked := make([]distsage.NodeID, len(all))
	copy(picked, all)
	s.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked[:fanout], nil
}
