// Package local provides an in-process comm.Group implementation: all ranks
// live in one process, connected through channels. It backs standalone mode
// and lets tests exercise real collective rendezvous without sockets.
package local

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/distml/distsage"
	"github.com/distml/distsage/comm"
)

type opKind uint8

const (
	opMax opKind = iota
	opSum
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opMax:
		return "all-reduce-max"
	case opSum:
		return "all-reduce-sum"
	case opBarrier:
		return "barrier"
	}
	return "unknown"
}

type contribution struct {
	rank   int
	kind   opKind
	value  int64
	values []float64
	reply  chan result
}

type result struct {
	value  int64
	values []float64
	err    error
}

// Cluster owns the shared state of an in-process group: one coordinator
// goroutine that gathers every rank's contribution, reduces, and fans the
// result back out. The coordinator only completes a round once all ranks
// have arrived, which gives collectives their barrier semantics.
type Cluster struct {
	size   int
	arrive chan contribution
	done   chan struct{}
	groups []*Group
	closed atomic.Int32
}

// NewCluster creates an in-process cluster of the given size and starts its
// coordinator.
func NewCluster(size int) *Cluster {
	c := &Cluster{
		size:   size,
		arrive: make(chan contribution, size),
		done:   make(chan struct{}),
	}
	c.groups = make([]*Group, size)
	for rank := range c.groups {
		c.groups[rank] = &Group{cluster: c, rank: rank}
	}
	go c.run()
	return c
}

// Group returns the group handle for the given rank.
func (c *Cluster) Group(rank int) *Group {
	return c.groups[rank]
}

// run gathers size contributions per round. Mixed operation kinds within one
// round mean the ranks issued collectives in different orders; that is a
// protocol violation and fails the round for every participant.
func (c *Cluster) run() {
	for {
		round := make([]contribution, 0, c.size)
		for len(round) < c.size {
			select {
			case ct := <-c.arrive:
				round = append(round, ct)
			case <-c.done:
				return
			}
		}
		res := reduce(round)
		for _, ct := range round {
			ct.reply <- res
		}
	}
}

func reduce(round []contribution) result {
	kind := round[0].kind
	for _, ct := range round[1:] {
		if ct.kind != kind {
			return result{err: errors.Errorf(
				"collective order mismatch: rank %d issued %s while rank %d issued %s",
				round[0].rank, kind, ct.rank, ct.kind)}
		}
	}

	switch kind {
	case opMax:
		max := round[0].value
		for _, ct := range round[1:] {
			if ct.value > max {
				max = ct.value
			}
		}
		return result{value: max}

	case opSum:
		n := len(round[0].values)
		for _, ct := range round[1:] {
			if len(ct.values) != n {
				return result{err: errors.Errorf(
					"all-reduce-sum length mismatch: rank %d sent %d values, rank %d sent %d",
					round[0].rank, n, ct.rank, len(ct.values))}
			}
		}
		sum := make([]float64, n)
		for _, ct := range round {
			for i, v := range ct.values {
				sum[i] += v
			}
		}
		return result{values: sum}

	case opBarrier:
		return result{}
	}
	return result{err: errors.Errorf("unknown collective kind %d", kind)}
}

// Close shuts down the coordinator. Ranks blocked in a collective observe
// ErrGroupClosed.
func (c *Cluster) Close() error {
	if c.closed.CompareAndSwap(0, 1) {
		close(c.done)
	}
	return nil
}

// Group is one rank's handle on the cluster.
type Group struct {
	cluster *Cluster
	rank    int
	closed  atomic.Bool
}

// Compile-time check that Group implements comm.Group.
var _ comm.Group = (*Group)(nil)

func (g *Group) Rank() int { return g.rank }

func (g *Group) Size() int { return g.cluster.size }

func (g *Group) AllReduceMax(ctx context.Context, value int64) (int64, error) {
	res, err := g.collective(ctx, contribution{rank: g.rank, kind: opMax, value: value})
	if err != nil {
		return 0, err
	}
	return res.value, nil
}

func (g *Group) AllReduceSum(ctx context.Context, values []float64) error {
	sent := make([]float64, len(values))
	copy(sent, values)
	res, err := g.collective(ctx, contribution{rank: g.rank, kind: opSum, values: sent})
	if err != nil {
		return err
	}
	copy(values, res.values)
	return nil
}

func (g *Group) Barrier(ctx context.Context) error {
	_, err := g.collective(ctx, contribution{rank: g.rank, kind: opBarrier})
	return err
}

func (g *Group) Close() error {
	g.closed.Store(true)
	return nil
}

func (g *Group) collective(ctx context.Context, ct contribution) (result, error) {
	if g.closed.Load() {
		return result{}, distsage.ErrGroupClosed
	}

	ct.reply = make(chan result, 1)
	select {
	case g.cluster.arrive <- ct:
	case <-ctx.Done():
		return result{}, ctxError(ctx)
	case <-g.cluster.done:
		return result{}, distsage.ErrGroupClosed
	}

	select {
	case res := <-ct.reply:
		if res.err != nil {
			return result{}, res.err
		}
		return res, nil
	case <-ctx.Done():
		return result{}, ctxError(ctx)
	case <-g.cluster.done:
		return result{}, distsage.ErrGroupClosed
	}
}

// ctxError maps a deadline expiry to ErrCollectiveTimeout: a rank that gives
// up waiting on a rendezvous has, for all practical purposes, hit the missing-
// peer deadlock the timeout exists to surface.
func ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.WithMessage(distsage.ErrCollectiveTimeout, "waiting for group rendezvous")
	}
	return ctx.Err()
}
