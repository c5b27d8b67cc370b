package partition

import "github.com/distml/distsage"

// SplitEven deterministically splits ids into worldSize contiguous chunks of
// near-equal length and returns the chunk for the given rank. When the length
// is not divisible, the first len(ids) % worldSize ranks receive one extra
// element. Every rank computing SplitEven over the same input sees the same
// partitioning, so the chunks are disjoint and cover the input exactly.
func SplitEven(ids []distsage.NodeID, rank, worldSize int) []distsage.NodeID {
	if worldSize <= 1 {
		return ids
	}
	base := len(ids) / worldSize
	extra := len(ids) % worldSize

	start := rank*base + min(rank, extra)
	size := base
	if rank < extra {
		size++
	}
	return ids[start : start+size]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
