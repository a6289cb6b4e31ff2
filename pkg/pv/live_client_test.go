package pv

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLiveClientConnectAndReceive(t *testing.T) {
	provider := NewFakeProvider()
	info := ChannelInfo{Name: "A", Provider: ProviderCA}

	c, err := NewLiveClient(info, provider, 8, zerolog.Nop())
	require.NoError(t, err)
	defer c.Stop()

	require.Equal(t, 0, c.Status())

	sub := provider.Subscription("A")
	require.NotNil(t, sub)
	sub.PushValue(3.14)

	select {
	case u := <-c.Updates().Chan():
		require.Equal(t, "A", u.Channel)
		require.InDelta(t, 3.14, u.Value.Double, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestLiveClientInitError(t *testing.T) {
	provider := NewFakeProvider()
	provider.Refuse["A"] = true

	_, err := NewLiveClient(ChannelInfo{Name: "A"}, provider, 8, zerolog.Nop())
	require.Error(t, err)
	var initErr *ClientInitError
	require.ErrorAs(t, err, &initErr)
}

func TestLiveClientNoProvider(t *testing.T) {
	_, err := NewLiveClient(ChannelInfo{Name: "A"}, nil, 8, zerolog.Nop())
	require.Error(t, err)
}

func TestLiveClientDisconnectReconnect(t *testing.T) {
	provider := NewFakeProvider()
	info := ChannelInfo{Name: "A"}

	c, err := NewLiveClient(info, provider, 8, zerolog.Nop())
	require.NoError(t, err)
	defer c.Stop()

	sub := provider.Subscription("A")
	sub.Disconnect()
	require.Eventually(t, func() bool { return c.Status() == StatusDisconnected }, time.Second, time.Millisecond)

	sub.Reconnect()
	require.Eventually(t, func() bool { return c.Status() == StatusOK }, time.Second, time.Millisecond)
}

func TestLiveClientDestroyIsFatal(t *testing.T) {
	provider := NewFakeProvider()
	info := ChannelInfo{Name: "A"}

	c, err := NewLiveClient(info, provider, 8, zerolog.Nop())
	require.NoError(t, err)
	defer c.Stop()

	sub := provider.Subscription("A")
	sub.Destroy()
	require.Eventually(t, func() bool { return c.Status() < 0 }, time.Second, time.Millisecond)
}

func TestLiveClientEmitCachedNoopBeforeFirstValue(t *testing.T) {
	provider := NewFakeProvider()
	c, err := NewLiveClient(ChannelInfo{Name: "A"}, provider, 8, zerolog.Nop())
	require.NoError(t, err)
	defer c.Stop()

	c.EmitCached()
	select {
	case <-c.Updates().Chan():
		t.Fatal("expected no update before first value observed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLiveClientEmitCachedReemitsLatest(t *testing.T) {
	provider := NewFakeProvider()
	c, err := NewLiveClient(ChannelInfo{Name: "A"}, provider, 8, zerolog.Nop())
	require.NoError(t, err)
	defer c.Stop()

	sub := provider.Subscription("A")
	sub.PushValue(1.5)
	<-c.Updates().Chan()

	c.EmitCached()
	select {
	case u := <-c.Updates().Chan():
		require.InDelta(t, 1.5, u.Value.Double, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for re-emitted update")
	}
}
