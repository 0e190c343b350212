package transmit

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUDPSendsOneDatagramPerCall(t *testing.T) {
	rx := listen(t)
	port := rx.LocalAddr().(*net.UDPAddr).Port

	tx, err := DialUDP("127.0.0.1", port)
	require.NoError(t, err)
	defer tx.Close()

	msgs := []string{"first\n", "second\n", "third\n"}
	for _, m := range msgs {
		require.NoError(t, tx.Send([]byte(m)))
	}

	buf := make([]byte, 1024)
	for _, want := range msgs {
		require.NoError(t, rx.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := rx.ReadFromUDP(buf)
		require.NoError(t, err)
		assert.Equal(t, want, string(buf[:n]))
	}

	stats := tx.Stats()
	assert.Equal(t, uint64(3), stats.Sent)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, uint64(len("first\nsecond\nthird\n")), stats.Bytes)
}

type fakeConn struct {
	err     error
	short   bool
	closed  int
	written [][]byte
}

func (c *fakeConn) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.written = append(c.written, append([]byte(nil), b...))
	if c.short {
		return len(b) - 1, nil
	}
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

func TestUDPReportsFailuresWithoutRetry(t *testing.T) {
	refused := errors.New("connection refused")
	conn := &fakeConn{err: refused}
	tx := NewUDP(conn, "example:9")

	err := tx.Send([]byte("x"))
	assert.ErrorIs(t, err, refused)
	assert.Empty(t, conn.written)
	assert.Equal(t, Stats{Failed: 1}, tx.Stats())
}

func TestUDPShortWrite(t *testing.T) {
	conn := &fakeConn{short: true}
	tx := NewUDP(conn, "example:9")

	err := tx.Send([]byte("abc"))
	assert.ErrorIs(t, err, ErrShortWrite)
	assert.Len(t, conn.written, 1)
	assert.Equal(t, uint64(1), tx.Stats().Failed)
}

func TestUDPCloseOnce(t *testing.T) {
	conn := &fakeConn{}
	tx := NewUDP(conn, "example:9")
	require.NoError(t, tx.Close())
	require.NoError(t, tx.Close())
	assert.Equal(t, 1, conn.closed)
	assert.Equal(t, "example:9", tx.Destination())
}

func TestDialUDPRejectsBadPort(t *testing.T) {
	_, err := DialUDP("127.0.0.1", 0)
	assert.Error(t, err)
	_, err = DialUDP("127.0.0.1", 70000)
	assert.Error(t, err)
}
