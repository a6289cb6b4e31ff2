package broker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/epics-kafka/forwarder/pkg/log"
	"github.com/epics-kafka/forwarder/pkg/metrics"
	"github.com/rs/zerolog"
)

// brokerWideErrors are the delivery errors that mean an Instance has lost
// its connection to the broker cluster rather than one message failing to
// place. A per-message failure is counted against its topic handle; a
// broker-wide failure marks the whole instance unhealthy. Any other
// delivery error is treated as transient and only counted.
var brokerWideErrors = []error{
	sarama.ErrOutOfBrokers,
	sarama.ErrNotConnected,
	sarama.ErrClosedClient,
	sarama.ErrBrokerNotAvailable,
	sarama.ErrControllerNotAvailable,
	sarama.ErrShuttingDown,
}

func isBrokerWideFailure(err error) bool {
	for _, candidate := range brokerWideErrors {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}

// maxMessageBytes mirrors sarama's default Producer.MaxMessageBytes; a
// payload larger than this is rejected before it ever reaches the
// producer's input channel.
const maxMessageBytes = 1000000

// asyncProducer is the subset of sarama.AsyncProducer this package drives.
// A real sarama.AsyncProducer value satisfies it directly; tests supply a
// minimal fake instead of standing up a broker connection.
type asyncProducer interface {
	Input() chan<- *sarama.ProducerMessage
	Successes() <-chan *sarama.ProducerMessage
	Errors() <-chan *sarama.ProducerError
	Close() error
}

// Instance is one broker pool member: one Sarama async producer, its
// delivery poll loop, and its topic handle cache.
type Instance struct {
	id       string
	producer asyncProducer
	logger   zerolog.Logger

	failed      int32 // atomic bool
	outstanding int64 // messages accepted but not yet confirmed by the poll loop

	mu     sync.Mutex
	topics map[string]*TopicHandle

	stopCh chan struct{}
	doneCh chan struct{}
}

// newInstance wraps an already-constructed asyncProducer. Callers outside
// this package use NewBrokerInstance.
func newInstance(id string, producer asyncProducer) *Instance {
	inst := &Instance{
		id:       id,
		producer: producer,
		logger:   log.WithBrokerInstance(id),
		topics:   make(map[string]*TopicHandle),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go inst.poll()
	return inst
}

// NewBrokerInstance builds an Instance from a brokers list using Sarama's
// default async-producer config, tuned so the poll loop can range over
// Successes()/Errors().
func NewBrokerInstance(id string, brokers []string) (*Instance, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return newInstance(id, producer), nil
}

// ID returns the instance's logging/metrics identifier.
func (inst *Instance) ID() string { return inst.id }

// Failed reports whether this instance's error callback has tripped.
func (inst *Instance) Failed() bool {
	return atomic.LoadInt32(&inst.failed) != 0
}

// TopicCount returns the number of live (non-swept) cached topic handles,
// used by the pool's least-loaded instance selection.
func (inst *Instance) TopicCount() int {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return len(inst.topics)
}

// GetOrCreateTopic returns the cached TopicHandle for name, creating one if
// absent.
func (inst *Instance) GetOrCreateTopic(name string) *TopicHandle {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if h, ok := inst.topics[name]; ok {
		return h
	}
	h := newTopicHandle(name, inst)
	inst.topics[name] = h
	return h
}

// TopicStats returns a snapshot of every cached topic handle's counters,
// keyed by topic name, for the supervisor's stats cycle.
func (inst *Instance) TopicStats() map[string]map[string]int64 {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	out := make(map[string]map[string]int64, len(inst.topics))
	for name, h := range inst.topics {
		out[name] = h.Stats()
	}
	return out
}

// sweepTopic drops name from the cache; called when a TopicHandle decides
// it has expired (currently: never spontaneously, but exposed so a future
// idle-eviction policy or explicit teardown can reuse it).
func (inst *Instance) sweepTopic(name string) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	delete(inst.topics, name)
}

// enqueue attempts a non-blocking synchronous hand-off to the producer's
// input channel, returning false if it would have blocked because the
// producer's internal output queue is saturated.
func (inst *Instance) enqueue(msg *sarama.ProducerMessage) bool {
	select {
	case inst.producer.Input() <- msg:
		atomic.AddInt64(&inst.outstanding, 1)
		return true
	default:
		return false
	}
}

// poll is the per-instance delivery loop: a select over
// Successes()/Errors() with an idle ticker for periodic housekeeping,
// exiting only when Stop is called.
func (inst *Instance) poll() {
	defer close(inst.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-inst.producer.Successes():
			if !ok {
				return
			}
			inst.onSuccess(msg)
		case perr, ok := <-inst.producer.Errors():
			if !ok {
				return
			}
			inst.onError(perr)
		case <-ticker.C:
			metrics.OutQueue.WithLabelValues(inst.id).Set(float64(atomic.LoadInt64(&inst.outstanding)))
		case <-inst.stopCh:
			return
		}
	}
}

func (inst *Instance) onSuccess(msg *sarama.ProducerMessage) {
	atomic.AddInt64(&inst.outstanding, -1)
	metrics.PollServed.WithLabelValues(inst.id).Inc()
	handle, _ := msg.Metadata.(*TopicHandle)
	if handle == nil {
		return
	}
	atomic.AddInt64(&handle.pollServed, 1)
	atomic.AddInt64(&handle.produceCallback, 1)
	metrics.ProduceCallback.WithLabelValues(handle.Name).Inc()
}

func (inst *Instance) onError(perr *sarama.ProducerError) {
	atomic.AddInt64(&inst.outstanding, -1)
	metrics.PollServed.WithLabelValues(inst.id).Inc()

	handle, _ := perr.Msg.Metadata.(*TopicHandle)
	if handle != nil {
		atomic.AddInt64(&handle.pollServed, 1)
		atomic.AddInt64(&handle.produceCallbackFail, 1)
		metrics.ProduceCallbackFail.WithLabelValues(handle.Name).Inc()
	}

	if !isBrokerWideFailure(perr.Err) {
		inst.logger.Warn().Err(perr.Err).Msg("delivery failed for one message, instance otherwise healthy")
		return
	}

	if atomic.CompareAndSwapInt32(&inst.failed, 0, 1) {
		metrics.BrokerInstanceFailures.WithLabelValues(inst.id).Inc()
		inst.logger.Error().Err(perr.Err).Msg("broker instance lost its broker connection, marking instance failed")
	}
}

// Stop signals the poll loop to exit and closes the underlying producer,
// waiting for the loop to drain.
func (inst *Instance) Stop() {
	select {
	case <-inst.stopCh:
		return
	default:
		close(inst.stopCh)
	}
	_ = inst.producer.Close()
	<-inst.doneCh
}
