package batching

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distml/distsage"
	"github.com/distml/distsage/comm"
	"github.com/distml/distsage/comm/local"
)

func ids(vs ...int64) []distsage.NodeID {
	out := make([]distsage.NodeID, len(vs))
	for i, v := range vs {
		out[i] = distsage.NodeID(v)
	}
	return out
}

// fakeMax simulates a worker group in which some peer holds maxLen ids.
func fakeMax(maxLen int64) *comm.MockGroup {
	g := comm.NewMockGroup(0, 2)
	g.AllReduceMaxFunc = func(_ context.Context, v int64) (int64, error) {
		if v > maxLen {
			return v, nil
		}
		return maxLen, nil
	}
	return g
}

func TestEqualize_CyclicRepetition(t *testing.T) {
	// Length 3 padded to 8: two full copies plus the first two elements.
	eq := NewEqualizer(fakeMax(8), nil)

	padded, err := eq.Equalize(context.Background(), ids(5, 7, 9))

	require.NoError(t, err)
	assert.Equal(t, ids(5, 7, 9, 5, 7, 9, 5, 7), padded)
}

func TestEqualize_ResultLengthMatchesGlobalMax(t *testing.T) {
	tests := []struct {
		name      string
		local     []distsage.NodeID
		globalMax int64
	}{
		{"pad by one", ids(1, 2, 3), 4},
		{"pad to multiple", ids(1, 2), 6},
		{"pad from single id", ids(42), 5},
		{"large remainder", ids(10, 20, 30, 40), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eq := NewEqualizer(fakeMax(tt.globalMax), nil)

			padded, err := eq.Equalize(context.Background(), tt.local)

			require.NoError(t, err)
			assert.Len(t, padded, int(tt.globalMax))
			// Prefix is the original list, pattern repeats cyclically after.
			for i, id := range padded {
				assert.Equal(t, tt.local[i%len(tt.local)], id, "position %d", i)
			}
		})
	}
}

func TestEqualize_NoOpWhenAlreadyAtMax(t *testing.T) {
	input := ids(3, 1, 4, 1, 5)
	eq := NewEqualizer(fakeMax(5), nil)

	padded, err := eq.Equalize(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, input, padded)
}

func TestEqualize_NoOpWhenLocalExceedsReportedMax(t *testing.T) {
	// Ties and at-or-above-max workers return their input unchanged.
	input := ids(1, 2, 3, 4)
	eq := NewEqualizer(fakeMax(2), nil)

	padded, err := eq.Equalize(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, input, padded)
}

func TestEqualize_EmptyInputFailsBeforeCollective(t *testing.T) {
	group := comm.NewMockGroup(0, 2)
	eq := NewEqualizer(group, nil)

	_, err := eq.Equalize(context.Background(), nil)

	assert.ErrorIs(t, err, distsage.ErrEmptyIDList)
	assert.Empty(t, group.AllReduceMaxCalls, "no collective may be issued for empty input")
}

func TestEqualize_ReductionErrorPropagates(t *testing.T) {
	group := comm.NewMockGroup(0, 2)
	group.AllReduceMaxFunc = func(context.Context, int64) (int64, error) {
		return 0, distsage.ErrCollectiveTimeout
	}
	eq := NewEqualizer(group, nil)

	_, err := eq.Equalize(context.Background(), ids(1, 2))

	assert.ErrorIs(t, err, distsage.ErrCollectiveTimeout)
}

// TestEqualize_UniformGroup runs a real in-process group: when every worker
// holds the same number of ids, every worker gets its input back unchanged.
func TestEqualize_UniformGroup(t *testing.T) {
	const size = 3
	cluster := local.NewCluster(size)
	defer cluster.Close()

	inputs := [][]distsage.NodeID{ids(1, 2), ids(3, 4), ids(5, 6)}
	results := make([][]distsage.NodeID, size)
	errs := make([]error, size)

	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			eq := NewEqualizer(cluster.Group(rank), nil)
			results[rank], errs[rank] = eq.Equalize(context.Background(), inputs[rank])
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < size; rank++ {
		require.NoError(t, errs[rank])
		assert.Equal(t, inputs[rank], results[rank], "rank %d", rank)
	}
}

// TestEqualize_SkewedGroup runs a real in-process group with skewed shard
// sizes: every worker ends at the maximum length, smaller shards repeating
// cyclically.
func TestEqualize_SkewedGroup(t *testing.T) {
	const size = 3
	cluster := local.NewCluster(size)
	defer cluster.Close()

	inputs := [][]distsage.NodeID{
		ids(1, 2, 3, 4, 5), // already at max
		ids(10, 11),
		ids(20, 21, 22),
	}
	want := [][]distsage.NodeID{
		ids(1, 2, 3, 4, 5),
		ids(10, 11, 10, 11, 10),
		ids(20, 21, 22, 20, 21),
	}

	results := make([][]distsage.NodeID, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			eq := NewEqualizer(cluster.Group(rank), nil)
			results[rank], errs[rank] = eq.Equalize(context.Background(), inputs[rank])
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < size; rank++ {
		require.NoError(t, errs[rank])
		assert.Equal(t, want[rank], results[rank], "rank %d", rank)
	}
}

func TestEqualize_LogsOnlyWhenPaddingOccurs(t *testing.T) {
	logged := &countingLogger{}
	eq := NewEqualizer(fakeMax(4), logged)

	_, err := eq.Equalize(context.Background(), ids(1, 2, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 0, logged.infos, "no-op equalization must not log")

	_, err = eq.Equalize(context.Background(), ids(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, logged.infos, "padding must log once")
}

type countingLogger struct {
	distsage.NopLogger
	infos int
}

func (l *countingLogger) Info(context.Context, string, ...any) { l.infos++ }
