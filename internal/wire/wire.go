// Package wire encodes joint messages for the datagram stream.
//
// Each message describes one joint of one body as ASCII text:
//
//	Frame: <seq>, Body ID[<id>], Joint[<index>]: Position[mm] ( <x>, <y>, <z> );\n
//
// Messages are built in a fixed-capacity buffer. Text that does not fit is cut
// at the buffer boundary; the consumer receives exactly Capacity bytes.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang/geo/r3"
)

const (
	// DefaultCapacity is the message buffer size used when none is configured.
	DefaultCapacity = 256

	// DefaultPrecision is the number of decimals written for each coordinate.
	DefaultPrecision = 6

	// MinCapacity and MaxCapacity bound the configurable buffer. The upper
	// bound is the largest UDP payload over IPv4.
	MinCapacity = 16
	MaxCapacity = 65507
)

// Message is one joint of one body in world coordinates.
type Message struct {
	Frame    uint64
	BodyID   uint32
	Joint    int
	Position r3.Vector
}

// Serializer formats messages into a reused fixed-capacity buffer. It is not
// safe for concurrent use.
type Serializer struct {
	precision int
	buf       []byte
	scratch   []byte
}

// NewSerializer creates a serializer with the given buffer capacity and
// decimal precision.
func NewSerializer(capacity, precision int) (*Serializer, error) {
	if capacity < MinCapacity || capacity > MaxCapacity {
		return nil, fmt.Errorf("buffer capacity %d out of range [%d, %d]", capacity, MinCapacity, MaxCapacity)
	}
	if precision < 0 || precision > 17 {
		return nil, fmt.Errorf("precision %d out of range [0, 17]", precision)
	}
	return &Serializer{
		precision: precision,
		buf:       make([]byte, capacity),
		scratch:   make([]byte, 0, capacity),
	}, nil
}

// Capacity returns the buffer size.
func (s *Serializer) Capacity() int {
	return len(s.buf)
}

// Encode formats m and returns the datagram payload. The slice aliases the
// serializer's buffer and is valid until the next call. truncated reports
// whether the text was cut to fit.
func (s *Serializer) Encode(m Message) (payload []byte, truncated bool) {
	s.scratch = Append(s.scratch[:0], m, s.precision)
	n := copy(s.buf, s.scratch)
	return s.buf[:n], len(s.scratch) > len(s.buf)
}

// Append appends the full, untruncated text of m to dst.
func Append(dst []byte, m Message, precision int) []byte {
	dst = append(dst, "Frame: "...)
	dst = strconv.AppendUint(dst, m.Frame, 10)
	dst = append(dst, ", Body ID["...)
	dst = strconv.AppendUint(dst, uint64(m.BodyID), 10)
	dst = append(dst, "], Joint["...)
	dst = strconv.AppendInt(dst, int64(m.Joint), 10)
	dst = append(dst, "]: Position[mm] ( "...)
	dst = strconv.AppendFloat(dst, m.Position.X, 'f', precision, 64)
	dst = append(dst, ", "...)
	dst = strconv.AppendFloat(dst, m.Position.Y, 'f', precision, 64)
	dst = append(dst, ", "...)
	dst = strconv.AppendFloat(dst, m.Position.Z, 'f', precision, 64)
	dst = append(dst, " );\n"...)
	return dst
}

// ErrMalformed is returned by Decode for text that is not a complete message.
var ErrMalformed = errors.New("malformed joint message")

// Decode parses one complete message. Truncated datagrams fail with ErrMalformed.
func Decode(b []byte) (Message, error) {
	if !bytes.HasSuffix(b, []byte(" );\n")) {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, b)
	}
	var m Message
	n, err := fmt.Sscanf(string(b), "Frame: %d, Body ID[%d], Joint[%d]: Position[mm] ( %f, %f, %f );\n",
		&m.Frame, &m.BodyID, &m.Joint, &m.Position.X, &m.Position.Y, &m.Position.Z)
	if err != nil || n != 6 {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, b)
	}
	return m, nil
}
