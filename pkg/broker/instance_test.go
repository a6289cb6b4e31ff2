package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTopicHandleProduceSuccessIncrementsCallback(t *testing.T) {
	fake := newFakeAsyncProducer()
	inst := newInstance("inst-1", fake)
	defer inst.Stop()

	h := inst.GetOrCreateTopic("values")
	require.NoError(t, h.Produce([]byte("payload")))

	require.Eventually(t, func() bool {
		return h.Stats()["produce_cb"] == 1
	}, time.Second, time.Millisecond)
	require.EqualValues(t, 1, h.Stats()["produced"])
}

func TestTopicHandleTransientDeliveryFailureDoesNotFailInstance(t *testing.T) {
	fake := newFakeAsyncProducer()
	fake.setFail(true)
	inst := newInstance("inst-1", fake)
	defer inst.Stop()

	h := inst.GetOrCreateTopic("values")
	require.NoError(t, h.Produce([]byte("payload")))

	require.Eventually(t, func() bool { return h.Stats()["produce_cb_fail"] == 1 }, time.Second, time.Millisecond)
	require.False(t, inst.Failed())
	require.False(t, h.Unhealthy())
}

func TestTopicHandleBrokerWideFailureMarksInstanceFailed(t *testing.T) {
	fake := newFakeAsyncProducer()
	fake.setBrokerWideFail(true)
	inst := newInstance("inst-1", fake)
	defer inst.Stop()

	h := inst.GetOrCreateTopic("values")
	require.NoError(t, h.Produce([]byte("payload")))

	require.Eventually(t, func() bool { return inst.Failed() }, time.Second, time.Millisecond)
	require.True(t, h.Unhealthy())
	require.EqualValues(t, 1, h.Stats()["produce_cb_fail"])
	require.EqualValues(t, 1, h.Stats()["unhealthy"])
}

func TestTopicHandleProduceRejectsOnFailedInstance(t *testing.T) {
	fake := newFakeAsyncProducer()
	fake.setBrokerWideFail(true)
	inst := newInstance("inst-1", fake)
	defer inst.Stop()

	h := inst.GetOrCreateTopic("values")
	require.NoError(t, h.Produce([]byte("first")))
	require.Eventually(t, func() bool { return inst.Failed() }, time.Second, time.Millisecond)

	err := h.Produce([]byte("second"))
	require.Error(t, err)
	require.EqualValues(t, 1, h.Stats()["produce_fail"])
}

func TestTopicHandleRejectsOversizedMessage(t *testing.T) {
	fake := newFakeAsyncProducer()
	inst := newInstance("inst-1", fake)
	defer inst.Stop()

	h := inst.GetOrCreateTopic("values")
	err := h.Produce(make([]byte, maxMessageBytes+1))
	require.Error(t, err)
	require.EqualValues(t, 1, h.Stats()["msg_too_large"])
	require.EqualValues(t, 0, h.Stats()["produced"])
}

func TestInstanceTopicCacheReturnsSameHandle(t *testing.T) {
	fake := newFakeAsyncProducer()
	inst := newInstance("inst-1", fake)
	defer inst.Stop()

	a := inst.GetOrCreateTopic("values")
	b := inst.GetOrCreateTopic("values")
	require.Same(t, a, b)
	require.Equal(t, 1, inst.TopicCount())
}
