package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackPair(t *testing.T) (*UDPTransport, *UDPTransport) {
	t.Helper()
	server, err := NewUDPTransport("127.0.0.1:0", 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	client, err := NewUDPTransport("127.0.0.1:0", 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return server, client
}

func TestUDPTransportSendReceive(t *testing.T) {
	server, client := newLoopbackPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Send([]byte("keyframes"), server.LocalAddr()))

	buf := make([]byte, 64)
	n, from, err := server.ReadDatagram(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "keyframes", string(buf[:n]))
	assert.Equal(t, client.LocalAddr().String(), from.String())
	assert.False(t, server.IsSimulation())
}

func TestUDPTransportEmptyDatagram(t *testing.T) {
	server, client := newLoopbackPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Send(nil, server.LocalAddr()))

	buf := make([]byte, 64)
	n, _, err := server.ReadDatagram(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUDPTransportReadHonoursContext(t *testing.T) {
	server, _ := newLoopbackPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := server.ReadDatagram(ctx, make([]byte, 64))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUDPTransportClose(t *testing.T) {
	server, client := newLoopbackPair(t)

	done := make(chan error, 1)
	go func() {
		_, _, err := server.ReadDatagram(context.Background(), make([]byte, 64))
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, server.Close())
	assert.NoError(t, server.Close(), "close must be idempotent")

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrTransportClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock after close")
	}

	assert.ErrorIs(t, server.Send([]byte{1}, client.LocalAddr()), ErrTransportClosed)
}

func TestUDPTransportBindFailure(t *testing.T) {
	_, err := NewUDPTransport("256.0.0.1:0", 0)
	assert.Error(t, err)
}

func TestResolveAddr(t *testing.T) {
	addr, err := ResolveAddr("", 33450)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:33450", addr.String())

	assert.Equal(t, ":9000", ListenAddr(9000))
}
