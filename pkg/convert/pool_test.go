package convert

import (
	"testing"
	"time"

	"github.com/epics-kafka/forwarder/pkg/pv"
	"github.com/epics-kafka/forwarder/pkg/schema"
	"github.com/stretchr/testify/require"
)

// recordingConverter records every update it receives so tests can assert
// on dispatch without a broker connection.
type recordingConverter struct {
	out chan pv.Update
}

func (c *recordingConverter) Convert(u pv.Update) (schema.FramedMessage, error) {
	c.out <- u
	return schema.FramedMessage{Payload: []byte("ok"), Schema: "test"}, nil
}

func (c *recordingConverter) Stats() map[string]int64 { return nil }

type failingConverter struct{ calls chan struct{} }

func (c *failingConverter) Convert(pv.Update) (schema.FramedMessage, error) {
	c.calls <- struct{}{}
	return schema.FramedMessage{}, assertErr
}

func (c *failingConverter) Stats() map[string]int64 { return nil }

var assertErr = &testConvertErr{}

type testConvertErr struct{}

func (e *testConvertErr) Error() string { return "boom" }

// fakeTopic is a TopicProducer double that records produced payloads.
type fakeTopic struct {
	produced chan []byte
}

func (f *fakeTopic) Produce(payload []byte) error {
	f.produced <- payload
	return nil
}

func (f *fakeTopic) TopicName() string { return "test-topic" }

func TestWorkerPoolExecutesSubmittedTask(t *testing.T) {
	pool := NewWorkerPool(2, 8)
	pool.Start()
	defer pool.Stop()

	out := make(chan pv.Update, 1)
	path := &ConversionPath{Converter: &recordingConverter{out: out}, Topic: &fakeTopic{produced: make(chan []byte, 1)}, SchemaName: "test"}

	require.True(t, pool.Submit(Task{Path: path, Update: pv.Update{Channel: "A"}}))

	select {
	case u := <-out:
		require.Equal(t, "A", u.Channel)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for conversion")
	}
}

func TestWorkerPoolSubmitReportsFullQueue(t *testing.T) {
	pool := NewWorkerPool(0, 1)
	// no workers started: the queue fills and stays full.
	path := &ConversionPath{Converter: &failingConverter{calls: make(chan struct{}, 4)}, SchemaName: "test"}

	require.True(t, pool.Submit(Task{Path: path, Update: pv.Update{Channel: "A"}}))
	require.False(t, pool.Submit(Task{Path: path, Update: pv.Update{Channel: "A"}}), "second submit should find the queue full")
}

func TestWorkerPoolStopJoinsWorkers(t *testing.T) {
	pool := NewWorkerPool(3, 4)
	pool.Start()
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
