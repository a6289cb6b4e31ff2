package schema

import (
	"testing"

	"github.com/epics-kafka/forwarder/pkg/pv"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryHasReferenceConverters(t *testing.T) {
	r := DefaultRegistry()
	require.True(t, r.Has("f142"))
	require.True(t, r.Has("debug-json"))
	require.False(t, r.Has("nonexistent"))
}

func TestAcquireUnknownSchema(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.Acquire("nonexistent", "")
	require.Error(t, err)
}

func TestAcquireEmptyIdentityIsPrivate(t *testing.T) {
	r := DefaultRegistry()
	a, err := r.Acquire("f142", "")
	require.NoError(t, err)
	b, err := r.Acquire("f142", "")
	require.NoError(t, err)
	require.NotSame(t, a, b)
}

func TestAcquireSharedIdentityReturnsSameInstance(t *testing.T) {
	r := DefaultRegistry()
	a, err := r.Acquire("f142", "shared-1")
	require.NoError(t, err)
	b, err := r.Acquire("f142", "shared-1")
	require.NoError(t, err)
	require.Same(t, a, b)

	r.Release("f142", "shared-1")
	r.Release("f142", "shared-1")

	c, err := r.Acquire("f142", "shared-1")
	require.NoError(t, err)
	require.NotSame(t, a, c, "releasing all refs should retire the shared instance")
}

func TestF142ConverterRoundTrip(t *testing.T) {
	c := NewF142Converter()
	msg, err := c.Convert(pv.Update{Channel: "chan-a", Value: pv.Value{Double: 2.5, Alarm: "MINOR"}})
	require.NoError(t, err)
	require.Equal(t, "f142", msg.Schema)
	require.Contains(t, string(msg.Payload), `"channel":"chan-a"`)
	require.Contains(t, string(msg.Payload), `"value":2.5`)

	stats := c.Stats()
	require.EqualValues(t, 1, stats["converted"])
	require.EqualValues(t, 0, stats["failed"])
}

func TestDebugJSONConverterRoundTrip(t *testing.T) {
	c := NewDebugJSONConverter()
	msg, err := c.Convert(pv.Update{Channel: "chan-b", Value: pv.Value{Double: 1}})
	require.NoError(t, err)
	require.Equal(t, "debug-json", msg.Schema)
	require.Contains(t, string(msg.Payload), `"Channel":"chan-b"`)
}
