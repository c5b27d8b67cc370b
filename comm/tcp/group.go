// Package tcp provides a comm.Group over a full mesh of TCP connections, one
// worker process per rank. Collectives run gather-to-root plus broadcast:
// every rank sends its contribution to rank 0, which reduces and sends the
// result back out. Frames are length-prefixed with an 8-byte size; a zero
// size is the close signal.
package tcp

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/distml/distsage"
	"github.com/distml/distsage/comm"
)

const root = 0

// Config holds configuration for forming a TCP group.
type Config struct {
	// Rank is this worker's rank (required, 0-indexed).
	Rank int

	// Peers lists every worker's listen address, indexed by rank (required).
	// len(Peers) is the group size.
	Peers []string

	// Listener is an optional pre-bound listener to accept peers on. When
	// nil, Dial listens on Peers[Rank].
	Listener net.Listener

	// RetryInterval is how long to wait between connection attempts while the
	// mesh forms (default: 500ms). Peers start at different times; dialing
	// retries until the context expires.
	RetryInterval time.Duration

	// Logger is for observability (optional).
	Logger distsage.Logger
}

// Group is a comm.Group over a TCP full mesh.
type Group struct {
	rank     int
	size     int
	logger   distsage.Logger
	listener net.Listener

	mu    sync.Mutex
	conns map[int]net.Conn
	seq   uint64
	open  bool
}

// Compile-time check that Group implements comm.Group.
var _ comm.Group = (*Group)(nil)

// Dial forms the group: it listens for higher ranks and dials lower ranks,
// retrying dials until the mesh is complete or ctx expires. Every connection
// starts with an 8-byte hello carrying the dialer's rank.
func Dial(ctx context.Context, cfg Config) (*Group, error) {
	if cfg.Rank < 0 || cfg.Rank >= len(cfg.Peers) {
		return nil, errors.Errorf("rank %d out of range for %d peers", cfg.Rank, len(cfg.Peers))
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}

	g := &Group{
		rank:   cfg.Rank,
		size:   len(cfg.Peers),
		logger: cfg.Logger,
		conns:  make(map[int]net.Conn),
		open:   true,
	}
	if g.size == 1 {
		return g, nil
	}

	listener := cfg.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", cfg.Peers[cfg.Rank])
		if err != nil {
			return nil, errors.Wrapf(err, "listening on %s", cfg.Peers[cfg.Rank])
		}
	}
	g.listener = listener

	// Higher ranks dial us; we dial lower ranks. Run both sides at once so
	// no ordering of process start-up can wedge mesh formation.
	acceptErr := make(chan error, 1)
	go func() { acceptErr <- g.acceptPeers(ctx) }()

	if err := g.dialPeers(ctx, cfg); err != nil {
		listener.Close()
		return nil, err
	}
	if err := <-acceptErr; err != nil {
		listener.Close()
		return nil, err
	}

	if g.logger != nil {
		g.logger.Info(ctx, "communication group formed", "size", g.size)
	}
	return g, nil
}

func (g *Group) acceptPeers(ctx context.Context) error {
	want := g.size - 1 - g.rank
	for i := 0; i < want; i++ {
		if deadline, ok := ctx.Deadline(); ok {
			type deadliner interface{ SetDeadline(time.Time) error }
			if d, ok := g.listener.(deadliner); ok {
				d.SetDeadline(deadline)
			}
		}
		conn, err := g.listener.Accept()
		if err != nil {
			return errors.Wrap(err, "accepting peer connection")
		}

		var hello [8]byte
		if _, err := io.ReadFull(conn, hello[:]); err != nil {
			conn.Close()
			return errors.Wrap(err, "reading peer hello")
		}
		peer := int(binary.BigEndian.Uint64(hello[:]))
		if peer <= g.rank || peer >= g.size {
			conn.Close()
			return errors.Errorf("unexpected hello from rank %d", peer)
		}

		g.mu.Lock()
		g.conns[peer] = conn
		g.mu.Unlock()
		if g.logger != nil {
			g.logger.Debug(ctx, "accepted peer", "peer", peer)
		}
	}
	return nil
}

func (g *Group) dialPeers(ctx context.Context, cfg Config) error {
	for peer := 0; peer < g.rank; peer++ {
		conn, err := dialRetry(ctx, cfg, cfg.Peers[peer], g.logger)
		if err != nil {
			return errors.Wrapf(err, "connecting to rank %d at %s", peer, cfg.Peers[peer])
		}

		var hello [8]byte
		binary.BigEndian.PutUint64(hello[:], uint64(g.rank))
		if _, err := conn.Write(hello[:]); err != nil {
			conn.Close()
			return errors.Wrapf(err, "sending hello to rank %d", peer)
		}

		g.mu.Lock()
		g.conns[peer] = conn
		g.mu.Unlock()
		if g.logger != nil {
			g.logger.Debug(ctx, "connected to peer", "peer", peer)
		}
	}
	return nil
}

func dialRetry(ctx context.Context, cfg Config, addr string, logger distsage.Logger) (net.Conn, error) {
	var dialer net.Dialer
	attempt := 0
	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		attempt++
		if logger != nil && attempt%10 == 0 {
			logger.Info(ctx, "still trying to connect", "addr", addr, "attempts", attempt)
		}
		select {
		case <-time.After(cfg.RetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (g *Group) Rank() int { return g.rank }

func (g *Group) Size() int { return g.size }

func (g *Group) AllReduceMax(ctx context.Context, value int64) (int64, error) {
	res, err := g.collective(ctx, opMax, value, nil)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

func (g *Group) AllReduceSum(ctx context.Context, values []float64) error {
	res, err := g.collective(ctx, opSum, 0, values)
	if err != nil {
		return err
	}
	copy(values, res.Values)
	return nil
}

func (g *Group) Barrier(ctx context.Context) error {
	_, err := g.collective(ctx, opBarrier, 0, nil)
	return err
}

// collective runs one rendezvous. Non-root ranks send their contribution to
// the root and block on the result; the root gathers all contributions,
// checks that every rank issued the same operation in the same order,
// reduces, and broadcasts.
func (g *Group) collective(ctx context.Context, kind opKind, value int64, values []float64) (message, error) {
	g.mu.Lock()
	if !g.open {
		g.mu.Unlock()
		return message{}, distsage.ErrGroupClosed
	}
	g.seq++
	seq := g.seq
	g.mu.Unlock()

	if g.size == 1 {
		return message{Seq: seq, Kind: kind, Value: value, Values: values}, nil
	}

	g.applyDeadline(ctx)
	defer g.clearDeadline()

	if g.rank != root {
		rootConn := g.conns[root]
		out := message{Seq: seq, Kind: kind, Value: value, Values: values}
		if err := writeMessage(rootConn, out); err != nil {
			return message{}, g.mapErr(err, kind)
		}
		reply, err := readMessage(rootConn)
		if err != nil {
			return message{}, g.mapErr(err, kind)
		}
		if reply.Err != "" {
			return message{}, errors.New(reply.Err)
		}
		if reply.Seq != seq {
			return message{}, errors.Errorf("%s: reply for collective %d, expected %d", kind, reply.Seq, seq)
		}
		return reply, nil
	}

	// Root: gather, reduce, broadcast.
	result := message{Seq: seq, Kind: kind, Value: value, Values: values}
	var protoErr error
	for peer := 1; peer < g.size; peer++ {
		in, err := readMessage(g.conns[peer])
		if err != nil {
			return message{}, g.mapErr(err, kind)
		}
		if in.Seq != seq || in.Kind != kind {
			protoErr = errors.Errorf(
				"collective order mismatch: root issued %s (seq %d), rank %d issued %s (seq %d)",
				kind, seq, peer, in.Kind, in.Seq)
			continue
		}
		if protoErr != nil {
			continue
		}
		switch kind {
		case opMax:
			if in.Value > result.Value {
				result.Value = in.Value
			}
		case opSum:
			if len(in.Values) != len(result.Values) {
				protoErr = errors.Errorf(
					"all-reduce-sum length mismatch: root has %d values, rank %d sent %d",
					len(result.Values), peer, len(in.Values))
				continue
			}
			for i, v := range in.Values {
				result.Values[i] += v
			}
		}
	}

	if protoErr != nil {
		fail := message{Seq: seq, Kind: kind, Err: protoErr.Error()}
		for peer := 1; peer < g.size; peer++ {
			_ = writeMessage(g.conns[peer], fail)
		}
		return message{}, protoErr
	}

	for peer := 1; peer < g.size; peer++ {
		if err := writeMessage(g.conns[peer], result); err != nil {
			return message{}, g.mapErr(err, kind)
		}
	}
	return result, nil
}

func (g *Group) applyDeadline(ctx context.Context) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, conn := range g.conns {
		conn.SetDeadline(deadline)
	}
}

func (g *Group) clearDeadline() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, conn := range g.conns {
		conn.SetDeadline(time.Time{})
	}
}

// mapErr translates transport failures into the group's error taxonomy. An
// IO timeout means some rank never issued the matching collective; that is
// the deadlock condition and must surface as ErrCollectiveTimeout.
func (g *Group) mapErr(err error, kind opKind) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errors.WithMessagef(distsage.ErrCollectiveTimeout, "%s", kind)
	}
	if errors.Is(err, errPeerClosed) {
		return distsage.ErrGroupClosed
	}
	return errors.Wrapf(err, "%s", kind)
}

// Close sends the close signal to every peer, then tears down connections
// and the listener.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return nil
	}
	g.open = false

	for _, conn := range g.conns {
		_ = writeClose(conn)
		conn.Close()
	}
	if g.listener != nil {
		return g.listener.Close()
	}
	return nil
}
