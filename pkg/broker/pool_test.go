package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int) (*Pool, []*fakeAsyncProducer) {
	t.Helper()
	var fakes []*fakeAsyncProducer
	factory := func(id string) (*Instance, error) {
		fake := newFakeAsyncProducer()
		fakes = append(fakes, fake)
		return newInstance(id, fake), nil
	}
	p, err := newPoolForTest(factory, size)
	require.NoError(t, err)
	t.Cleanup(p.Stop)
	return p, fakes
}

func TestPoolGetOrCreateTopicCachesPerInstance(t *testing.T) {
	p, _ := newTestPool(t, 2)

	h1, err := p.GetOrCreateTopic("values")
	require.NoError(t, err)
	h2, err := p.GetOrCreateTopic("values")
	require.NoError(t, err)
	require.Same(t, h1, h2, "same topic name should route to the same least-loaded instance and cache")
}

func TestPoolSelectsLeastLoadedInstance(t *testing.T) {
	p, _ := newTestPool(t, 2)

	h1, err := p.GetOrCreateTopic("a")
	require.NoError(t, err)
	h2, err := p.GetOrCreateTopic("b")
	require.NoError(t, err)
	require.NotEqual(t, h1.instance.ID(), h2.instance.ID(), "distinct topics should spread across instances when load ties")
}

func TestPoolRateLimitsReplacementWhenAllFailed(t *testing.T) {
	p, fakes := newTestPool(t, 1)

	h, err := p.GetOrCreateTopic("a")
	require.NoError(t, err)

	fakes[0].setBrokerWideFail(true)
	require.NoError(t, h.Produce([]byte("x")))
	require.Eventually(t, func() bool { return h.instance.Failed() }, time.Second, time.Millisecond)

	_, err = p.GetOrCreateTopic("b")
	require.Error(t, err, "replacing the only (now failed) instance within the same second should be rate-limited")
}

func TestPoolStatsReportsFailedInstances(t *testing.T) {
	p, fakes := newTestPool(t, 1)

	stats := p.Stats()
	require.Len(t, stats, 1)
	for _, failed := range stats {
		require.False(t, failed)
	}

	h, err := p.GetOrCreateTopic("a")
	require.NoError(t, err)
	fakes[0].setBrokerWideFail(true)
	require.NoError(t, h.Produce([]byte("x")))

	require.Eventually(t, func() bool {
		for _, failed := range p.Stats() {
			if failed {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}
