package testing

import (
	"context"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/opd-ai/keystream/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(loss float64, window int) *interfaces.NetworkConfig {
	return &interfaces.NetworkConfig{
		UseSimulation:  true,
		NetworkTimeout: 100,
		LossRate:       loss,
		ReorderWindow:  window,
	}
}

// drain reads until the sentinel and returns the first byte of every data datagram.
func drain(t *testing.T, link *SimulatedLink) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []byte
	buf := make([]byte, 16)
	for {
		n, _, err := link.ReadDatagram(ctx, buf)
		require.NoError(t, err)
		if n == 0 {
			return got
		}
		got = append(got, buf[0])
	}
}

func TestSimulatedLinkInOrder(t *testing.T) {
	link := NewSimulatedLink(newTestConfig(0, 0), rand.New(rand.NewSource(1)))
	defer link.Close()

	for i := byte(1); i <= 5; i++ {
		require.NoError(t, link.Send([]byte{i}, link.LocalAddr()))
	}
	require.NoError(t, link.Send(nil, link.LocalAddr()))

	assert.Equal(t, []byte{1, 2, 3, 4, 5}, drain(t, link))
	assert.True(t, link.IsSimulation())

	stats := link.GetTypedStats()
	assert.Equal(t, LinkStats{Sent: 6, Delivered: 6, Dropped: 0, Sentinels: 1}, stats)
}

func TestSimulatedLinkTotalLossStillDeliversSentinel(t *testing.T) {
	link := NewSimulatedLink(newTestConfig(1, 0), rand.New(rand.NewSource(1)))
	defer link.Close()

	for i := byte(1); i <= 5; i++ {
		require.NoError(t, link.Send([]byte{i}, link.LocalAddr()))
	}
	require.NoError(t, link.Send(nil, link.LocalAddr()))

	assert.Empty(t, drain(t, link))
	assert.Equal(t, 5, link.GetTypedStats().Dropped)

	log := link.GetDeliveryLog()
	require.Len(t, log, 6)
	assert.True(t, log[5].Sentinel)
	assert.False(t, log[5].Dropped)
}

func TestSimulatedLinkReorderDeliversEverythingBeforeSentinel(t *testing.T) {
	link := NewSimulatedLink(newTestConfig(0, 4), rand.New(rand.NewSource(3)))
	defer link.Close()

	for i := byte(1); i <= 20; i++ {
		require.NoError(t, link.Send([]byte{i}, link.LocalAddr()))
	}
	require.NoError(t, link.Send(nil, link.LocalAddr()))

	got := drain(t, link)
	require.Len(t, got, 20)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i := range got {
		assert.Equal(t, byte(i+1), got[i])
	}
}

func TestSimulatedLinkCopiesPayload(t *testing.T) {
	link := NewSimulatedLink(newTestConfig(0, 0), rand.New(rand.NewSource(1)))
	defer link.Close()

	buf := []byte{9}
	require.NoError(t, link.Send(buf, link.LocalAddr()))
	buf[0] = 0
	require.NoError(t, link.Send(nil, link.LocalAddr()))

	assert.Equal(t, []byte{9}, drain(t, link))
}

func TestSimulatedLinkClose(t *testing.T) {
	link := NewSimulatedLink(newTestConfig(0, 0), nil)
	require.NoError(t, link.Close())
	require.NoError(t, link.Close())

	assert.ErrorIs(t, link.Send([]byte{1}, link.LocalAddr()), ErrLinkClosed)
	_, _, err := link.ReadDatagram(context.Background(), make([]byte, 4))
	assert.ErrorIs(t, err, ErrLinkClosed)
}

func TestSimulatedLinkReadHonoursContext(t *testing.T) {
	link := NewSimulatedLink(newTestConfig(0, 0), nil)
	defer link.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := link.ReadDatagram(ctx, make([]byte, 4))
	assert.ErrorIs(t, err, context.Canceled)
}
