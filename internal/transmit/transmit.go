// Package transmit sends encoded joint messages as independent UDP datagrams.
//
// Delivery is fire-and-forget: there is no acknowledgement, ordering or retry.
// A send that fails to reach the transport is reported to the caller and
// counted, nothing more.
package transmit

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
)

// Transmitter delivers one payload per call to a fixed destination.
type Transmitter interface {
	// Send writes payload as one datagram.
	Send(payload []byte) error

	// Destination returns the configured host:port.
	Destination() string

	// Close releases the socket. Safe to call more than once.
	Close() error
}

// Conn is the subset of *net.UDPConn used by UDP.
type Conn interface {
	Write(b []byte) (int, error)
	Close() error
}

// Stats are cumulative send counters.
type Stats struct {
	Sent   uint64 `json:"sent"`
	Failed uint64 `json:"failed"`
	Bytes  uint64 `json:"bytes"`
}

// UDP is a Transmitter over a connected UDP socket.
type UDP struct {
	conn Conn
	dest string

	sent   atomic.Uint64
	failed atomic.Uint64
	bytes  atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// DialUDP resolves host:port and opens a connected UDP socket to it.
func DialUDP(host string, port int) (*UDP, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid destination port %d", port)
	}
	dest := net.JoinHostPort(host, strconv.Itoa(port))
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination %s: %w", dest, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket to %s: %w", dest, err)
	}
	return NewUDP(conn, dest), nil
}

// NewUDP wraps an already connected socket.
func NewUDP(conn Conn, dest string) *UDP {
	return &UDP{conn: conn, dest: dest}
}

// ErrShortWrite is returned when the transport accepted only part of a datagram.
var ErrShortWrite = errors.New("short datagram write")

// Send writes payload as one datagram. It never retries.
func (u *UDP) Send(payload []byte) error {
	n, err := u.conn.Write(payload)
	if err == nil && n != len(payload) {
		err = fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(payload))
	}
	if err != nil {
		u.failed.Add(1)
		return fmt.Errorf("send to %s: %w", u.dest, err)
	}
	u.sent.Add(1)
	u.bytes.Add(uint64(n))
	return nil
}

// Destination returns host:port.
func (u *UDP) Destination() string {
	return u.dest
}

// Stats returns the send counters.
func (u *UDP) Stats() Stats {
	return Stats{
		Sent:   u.sent.Load(),
		Failed: u.failed.Load(),
		Bytes:  u.bytes.Load(),
	}
}

// Close closes the socket once.
func (u *UDP) Close() error {
	u.closeOnce.Do(func() {
		u.closeErr = u.conn.Close()
	})
	return u.closeErr
}
