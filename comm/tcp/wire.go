package tcp

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"net"

	"github.com/pkg/errors"
)

// Frames are length-prefixed: an 8-byte big-endian payload size followed by
// the payload. A zero size is the close signal and carries no payload.

// maxFrameSize bounds a single collective payload. Gradients for even large
// models stay far below this; anything bigger is a corrupt length prefix.
const maxFrameSize = 1 << 30

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

// message is one collective exchange. Seq is the sender's collective sequence
// number: all ranks must issue collectives in the same order, so a sequence or
// kind mismatch at the root is a protocol violation, not a transient fault.
type message struct {
	Seq    uint64
	Kind   opKind
	Value  int64
	Values []float64
	Err    string
}

// errPeerClosed reports that the remote side sent the close signal.
var errPeerClosed = errors.New("peer closed connection")

func writeFrame(conn net.Conn, payload []byte) error {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(payload)))
	if _, err := conn.Write(size[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := conn.Write(payload)
	return err
}

func readFrame(conn net.Conn) ([]byte, error) {
	var size [8]byte
	if _, err := io.ReadFull(conn, size[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint64(size[:])
	if n == 0 {
		return nil, errPeerClosed
	}
	if n > maxFrameSize {
		return nil, errors.Errorf("frame size %d exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeMessage(conn net.Conn, msg message) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return errors.Wrap(err, "encoding collective message")
	}
	return writeFrame(conn, buf.Bytes())
}

func readMessage(conn net.Conn) (message, error) {
	payload, err := readFrame(conn)
	if err != nil {
		return message{}, err
	}
	var msg message
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&msg); err != nil {
		return message{}, errors.Wrap(err, "decoding collective message")
	}
	return msg, nil
}

// writeClose sends the zero-size close signal.
func writeClose(conn net.Conn) error {
	var size [8]byte
	_, err := conn.Write(size[:])
	return err
}
