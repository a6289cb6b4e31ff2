package broker

import (
	"sync"

	"github.com/IBM/sarama"
)

// fakeAsyncProducer is a minimal asyncProducer double: every enqueued
// message is echoed back on Successes() unless Fail is set, in which case
// it is wrapped into a ProducerError and sent on Errors() instead.
type fakeAsyncProducer struct {
	in        chan *sarama.ProducerMessage
	successes chan *sarama.ProducerMessage
	errors    chan *sarama.ProducerError
	stop      chan struct{}

	mu      sync.Mutex
	fail    bool
	failErr error
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	p := &fakeAsyncProducer{
		in:        make(chan *sarama.ProducerMessage, 16),
		successes: make(chan *sarama.ProducerMessage, 16),
		errors:    make(chan *sarama.ProducerError, 16),
		stop:      make(chan struct{}),
		failErr:   errFakeDeliveryFailed,
	}
	go p.run()
	return p
}

func (p *fakeAsyncProducer) run() {
	for {
		select {
		case msg := <-p.in:
			p.mu.Lock()
			fail, failErr := p.fail, p.failErr
			p.mu.Unlock()
			if fail {
				p.errors <- &sarama.ProducerError{Msg: msg, Err: failErr}
				continue
			}
			p.successes <- msg
		case <-p.stop:
			return
		}
	}
}

// setFail makes every subsequent enqueued message come back on Errors()
// with a plain per-message delivery error: the transient, not
// broker-wide, failure tier.
func (p *fakeAsyncProducer) setFail(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = v
	p.failErr = errFakeDeliveryFailed
}

// setBrokerWideFail makes every subsequent enqueued message come back on
// Errors() with a sentinel sarama error that isBrokerWideFailure
// recognizes, the fatal/instance-wide tier.
func (p *fakeAsyncProducer) setBrokerWideFail(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = v
	p.failErr = sarama.ErrOutOfBrokers
}

func (p *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage     { return p.in }
func (p *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return p.successes }
func (p *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError      { return p.errors }
func (p *fakeAsyncProducer) Close() error {
	select {
	case <-p.stop:
	default:
		close(p.stop)
		close(p.successes)
		close(p.errors)
	}
	return nil
}

var errFakeDeliveryFailed = &fakeErr{"delivery failed"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }
