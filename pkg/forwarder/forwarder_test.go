package forwarder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/epics-kafka/forwarder/pkg/command"
	"github.com/epics-kafka/forwarder/pkg/config"
	"github.com/epics-kafka/forwarder/pkg/convert"
	"github.com/epics-kafka/forwarder/pkg/pv"
	"github.com/epics-kafka/forwarder/pkg/stream"
	"github.com/stretchr/testify/require"
)

type fakeTopicProducer struct {
	name string

	mu       sync.Mutex
	payloads [][]byte
}

func (tp *fakeTopicProducer) Produce(payload []byte) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.payloads = append(tp.payloads, payload)
	return nil
}

func (tp *fakeTopicProducer) TopicName() string { return tp.name }

func (tp *fakeTopicProducer) count() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.payloads)
}

type fakeBrokerPool struct {
	mu      sync.Mutex
	topics  map[string]*fakeTopicProducer
	stopped bool
}

func newFakeBrokerPool() *fakeBrokerPool {
	return &fakeBrokerPool{topics: make(map[string]*fakeTopicProducer)}
}

func (p *fakeBrokerPool) GetOrCreateTopic(name string) (convert.TopicProducer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[name]
	if !ok {
		t = &fakeTopicProducer{name: name}
		p.topics[name] = t
	}
	return t, nil
}

func (p *fakeBrokerPool) TopicStats() map[string]map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]map[string]int64, len(p.topics))
	for name, t := range p.topics {
		out[name] = map[string]int64{"produced": int64(t.count())}
	}
	return out
}

func (p *fakeBrokerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

type fakeCommandListener struct {
	mu      sync.Mutex
	polls   int
	stopped bool
}

func (l *fakeCommandListener) Poll(budget int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.polls++
	return 0
}

func (l *fakeCommandListener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
}

func (l *fakeCommandListener) pollCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.polls
}

func testConfig() *config.Config {
	return &config.Config{
		Brokers:                   []string{"broker:9092"},
		CommandTopic:              "cmd",
		BrokerPoolSize:            1,
		ConversionThreads:         1,
		ConversionWorkerQueueSize: 16,
		ChannelQueueDepth:         16,
		MainPollIntervalMS:        5,
	}
}

func newTestForwarder(t *testing.T, cfg *config.Config, provider *pv.FakeProvider) (*Forwarder, *fakeBrokerPool, *fakeCommandListener) {
	t.Helper()
	pool := newFakeBrokerPool()
	listener := &fakeCommandListener{}
	f, err := New(cfg,
		withPool(pool),
		WithProvider(provider),
		withListener(func(command.Dispatcher) (commandListener, error) { return listener, nil }),
	)
	require.NoError(t, err)
	return f, pool, listener
}

func debugJSONSpec(channel string) stream.StreamSpec {
	return stream.StreamSpec{
		Channel:  channel,
		Provider: pv.ProviderPVA,
		Converters: []stream.ConverterSpec{
			{Schema: "debug-json", Topic: channel + "-topic"},
		},
	}
}

func TestAddMappingRoutesUpdatesToTopic(t *testing.T) {
	provider := pv.NewFakeProvider()
	f, pool, _ := newTestForwarder(t, testConfig(), provider)
	f.workers.Start()
	t.Cleanup(f.workers.Stop)

	require.NoError(t, f.AddMapping(debugJSONSpec("chan-a")))

	sub := provider.Subscription("chan-a")
	require.NotNil(t, sub)
	sub.PushValue(1.5)

	st, ok := f.streams.GetByChannelName("chan-a")
	require.True(t, ok)

	topic, err := pool.GetOrCreateTopic("chan-a-topic")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st.Drain(f.workers, 8)
		return topic.(*fakeTopicProducer).count() == 1
	}, time.Second, time.Millisecond)
}

func TestNewRejectsMissingCommandTopic(t *testing.T) {
	cfg := testConfig()
	cfg.CommandTopic = ""

	_, err := New(cfg,
		withPool(newFakeBrokerPool()),
		WithProvider(pv.NewFakeProvider()),
		withListener(func(command.Dispatcher) (commandListener, error) { return &fakeCommandListener{}, nil }),
	)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestNewRejectsHostOnlyCommandTopicURI(t *testing.T) {
	cfg := testConfig()
	cfg.CommandTopic = "//broker:9092"

	_, err := New(cfg,
		withPool(newFakeBrokerPool()),
		WithProvider(pv.NewFakeProvider()),
		withListener(func(command.Dispatcher) (commandListener, error) { return &fakeCommandListener{}, nil }),
	)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestAddMappingDuplicateChannelIsNoOp(t *testing.T) {
	provider := pv.NewFakeProvider()
	f, _, _ := newTestForwarder(t, testConfig(), provider)

	require.NoError(t, f.AddMapping(debugJSONSpec("chan-a")))
	require.NoError(t, f.AddMapping(debugJSONSpec("chan-a")))
	require.Equal(t, 1, f.streams.Len())
}

func TestAddMappingUnknownSchemaReturnsMappingAddError(t *testing.T) {
	provider := pv.NewFakeProvider()
	f, _, _ := newTestForwarder(t, testConfig(), provider)

	spec := stream.StreamSpec{
		Channel:    "chan-b",
		Provider:   pv.ProviderPVA,
		Converters: []stream.ConverterSpec{{Schema: "does-not-exist", Topic: "t"}},
	}
	err := f.AddMapping(spec)
	require.Error(t, err)
	var mae *MappingAddError
	require.ErrorAs(t, err, &mae)
	require.Equal(t, "schema not found", mae.Reason)
	require.Equal(t, 0, f.streams.Len())
}

func TestStopChannelRemovesStream(t *testing.T) {
	provider := pv.NewFakeProvider()
	f, _, _ := newTestForwarder(t, testConfig(), provider)

	require.NoError(t, f.AddMapping(debugJSONSpec("chan-a")))
	f.StopChannel("chan-a")
	require.Equal(t, 0, f.streams.Len())
}

func TestStopAllClearsEveryStream(t *testing.T) {
	provider := pv.NewFakeProvider()
	f, _, _ := newTestForwarder(t, testConfig(), provider)

	require.NoError(t, f.AddMapping(debugJSONSpec("chan-a")))
	require.NoError(t, f.AddMapping(debugJSONSpec("chan-b")))
	f.StopAll()
	require.Equal(t, 0, f.streams.Len())
}

func TestForwardEpicsToKafkaReturnsOnRequestStop(t *testing.T) {
	provider := pv.NewFakeProvider()
	f, pool, listener := newTestForwarder(t, testConfig(), provider)
	require.NoError(t, f.AddMapping(debugJSONSpec("chan-a")))

	done := make(chan error, 1)
	go func() { done <- f.ForwardEpicsToKafka(context.Background()) }()

	// Give the loop a couple of ticks before asking it to stop.
	time.Sleep(20 * time.Millisecond)
	f.RequestStop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ForwardEpicsToKafka did not return after RequestStop")
	}

	require.Equal(t, "STOPPED", f.State())
	require.True(t, pool.stopped)
	require.True(t, listener.stopped)
}

func TestForwardEpicsToKafkaReturnsOnContextCancel(t *testing.T) {
	provider := pv.NewFakeProvider()
	f, _, _ := newTestForwarder(t, testConfig(), provider)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.ForwardEpicsToKafka(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ForwardEpicsToKafka did not return after context cancel")
	}
}

func TestRunStatsCycleAndPublishStatusDoNotPanicWithNoStreams(t *testing.T) {
	provider := pv.NewFakeProvider()
	f, _, _ := newTestForwarder(t, testConfig(), provider)

	require.NotPanics(t, f.runStatsCycle)
	require.NotPanics(t, f.publishStatus)
}

func TestPublishStatusPublishesStreamSnapshot(t *testing.T) {
	provider := pv.NewFakeProvider()
	cfg := testConfig()
	cfg.StatusReportURI = "status"
	f, pool, _ := newTestForwarder(t, cfg, provider)

	require.NoError(t, f.AddMapping(debugJSONSpec("chan-a")))
	f.publishStatus()

	topic, err := pool.GetOrCreateTopic("status")
	require.NoError(t, err)
	require.Equal(t, 1, topic.(*fakeTopicProducer).count())
}
