package main

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/BodyStreamer/internal/wire"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServePrintsDecodedDatagrams(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	out := &syncBuffer{}
	l := &listener{out: out}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.serve(ctx, conn) }()

	sender, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer sender.Close()

	s, err := wire.NewSerializer(wire.DefaultCapacity, 2)
	require.NoError(t, err)
	payload, _ := s.Encode(wire.Message{Frame: 4, BodyID: 1, Joint: 26, Position: r3.Vector{X: 1.5, Y: -680, Z: 2020}})
	_, err = sender.Write(payload)
	require.NoError(t, err)
	_, err = sender.Write([]byte("Frame: 4, Body"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return l.malformed.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "frame=4 body=1 joint=26 x=1.5 y=-680 z=2020\n", out.String())
	assert.Equal(t, int64(2), l.packets.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
