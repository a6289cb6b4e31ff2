package broker

import (
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/epics-kafka/forwarder/pkg/metrics"
)

// TopicHandle is a cached producer binding to one topic on one broker
// Instance. Counters are exported both as an in-process snapshot (Stats)
// and as Prometheus series labeled by topic.
type TopicHandle struct {
	Name     string
	instance *Instance

	produced            int64
	produceFail         int64
	localQueueFull      int64
	produceCallback     int64
	produceCallbackFail int64
	pollServed          int64
	msgTooLarge         int64
	producedBytes       int64
}

func newTopicHandle(name string, inst *Instance) *TopicHandle {
	return &TopicHandle{Name: name, instance: inst}
}

// Unhealthy reports whether this handle's backing instance has failed. A
// topic is unhealthy iff its instance's failure flag is set.
func (h *TopicHandle) Unhealthy() bool {
	return h.instance.Failed()
}

// TopicName returns the topic this handle is bound to, satisfying
// convert.TopicProducer.
func (h *TopicHandle) TopicName() string { return h.Name }

// Produce enqueues payload for asynchronous delivery. It returns
// immediately after the message is accepted onto the producer's input
// channel, or a *ProduceError if the instance is already known-failed
// (produce_fail) or its internal output queue is saturated
// (local_queue_full). Delivery outcome for an accepted message is recorded
// later by the owning Instance's poll loop.
func (h *TopicHandle) Produce(payload []byte) error {
	if len(payload) > maxMessageBytes {
		atomic.AddInt64(&h.msgTooLarge, 1)
		metrics.MsgTooLarge.WithLabelValues(h.Name).Inc()
		return &ErrMessageTooLarge{Size: len(payload), Max: maxMessageBytes}
	}

	if h.Unhealthy() {
		atomic.AddInt64(&h.produceFail, 1)
		metrics.ProduceFail.WithLabelValues(h.Name).Inc()
		return &ProduceError{Topic: h.Name, Err: &InstanceFailureError{InstanceID: h.instance.ID()}}
	}

	msg := &sarama.ProducerMessage{
		Topic:     h.Name,
		Value:     sarama.ByteEncoder(payload),
		Metadata:  h,
		Timestamp: time.Now(),
	}

	if !h.instance.enqueue(msg) {
		atomic.AddInt64(&h.localQueueFull, 1)
		metrics.BrokerQueueFull.WithLabelValues(h.Name).Inc()
		return &ProduceError{Topic: h.Name, Err: errQueueFull}
	}

	atomic.AddInt64(&h.produced, 1)
	atomic.AddInt64(&h.producedBytes, int64(len(payload)))
	metrics.Produced.WithLabelValues(h.Name).Inc()
	metrics.ProducedBytes.WithLabelValues(h.Name).Add(float64(len(payload)))
	return nil
}

// Stats returns a snapshot of this handle's counters, the shape consumed
// by the metrics sink's per-topic stats cycle. "out_queue" is derived:
// messages accepted for this topic whose delivery outcome has not yet been
// served by the poll loop. "unhealthy" folds in Unhealthy() so the stats
// cycle reports instance failures per topic, not just the raw counters.
func (h *TopicHandle) Stats() map[string]int64 {
	unhealthy := int64(0)
	if h.Unhealthy() {
		unhealthy = 1
	}
	produced := atomic.LoadInt64(&h.produced)
	served := atomic.LoadInt64(&h.pollServed)
	return map[string]int64{
		"produced":         produced,
		"produce_fail":     atomic.LoadInt64(&h.produceFail),
		"local_queue_full": atomic.LoadInt64(&h.localQueueFull),
		"produce_cb":       atomic.LoadInt64(&h.produceCallback),
		"produce_cb_fail":  atomic.LoadInt64(&h.produceCallbackFail),
		"poll_served":      served,
		"msg_too_large":    atomic.LoadInt64(&h.msgTooLarge),
		"produced_bytes":   atomic.LoadInt64(&h.producedBytes),
		"out_queue":        produced - served,
		"unhealthy":        unhealthy,
	}
}
