package pv

import (
	"sync"
	"time"

	"github.com/epics-kafka/forwarder/pkg/metrics"
	"github.com/rs/zerolog"
)

// connState is the per-channel connection state machine:
//
//	never connected -> connected <-> disconnected
//	                    |               |
//	                    +-- destroyed --+  (terminal)
type connState int

const (
	stateNeverConnected connState = iota
	stateConnected
	stateDisconnected
	stateDestroyed
)

// LiveClient subscribes to one channel through an injected Connector and
// pushes every monitor event into its bounded queue.
type LiveClient struct {
	info   ChannelInfo
	queue  *Queue
	logger zerolog.Logger

	mu     sync.Mutex
	state  connState
	cached *Update

	sub    Subscription
	stopCh chan struct{}
	done   chan struct{}
}

// NewLiveClient connects info through provider and starts the goroutine
// that drains the subscription into the client's queue. An error from
// provider.Connect is wrapped as a ClientInitError.
func NewLiveClient(info ChannelInfo, provider Connector, queueDepth int, logger zerolog.Logger) (*LiveClient, error) {
	if provider == nil {
		return nil, &ClientInitError{Channel: info.Name, Reason: "no provider configured"}
	}
	sub, err := provider.Connect(info)
	if err != nil {
		return nil, &ClientInitError{Channel: info.Name, Reason: err.Error()}
	}

	c := &LiveClient{
		info:   info,
		queue:  NewQueue(queueDepth),
		logger: logger,
		state:  stateConnected,
		sub:    sub,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go c.run()
	return c, nil
}

func (c *LiveClient) run() {
	defer close(c.done)
	for {
		select {
		case <-c.stopCh:
			return
		case ev, ok := <-c.sub.Events():
			if !ok {
				return
			}
			c.handleEvent(ev)
		}
	}
}

func (c *LiveClient) handleEvent(ev Event) {
	switch ev.Kind {
	case EventValue:
		c.mu.Lock()
		c.state = stateConnected
		u := ev.Update
		c.cached = &u
		c.mu.Unlock()

		if !c.queue.Push(ev.Update) {
			metrics.LocalQueueFull.WithLabelValues(c.info.Name).Inc()
			c.logger.Warn().Str("channel", c.info.Name).Msg("local_queue_full: dropping update")
		}
	case EventDisconnected:
		c.mu.Lock()
		c.state = stateDisconnected
		c.mu.Unlock()
		c.logger.Warn().Str("channel", c.info.Name).Msg("channel disconnected")
	case EventReconnected:
		c.mu.Lock()
		c.state = stateConnected
		c.mu.Unlock()
		c.logger.Info().Str("channel", c.info.Name).Msg("channel reconnected")
	case EventDestroyed:
		c.mu.Lock()
		c.state = stateDestroyed
		c.mu.Unlock()
		c.logger.Error().Str("channel", c.info.Name).Msg("channel destroyed")
	}
}

// Stop closes the subscription and waits for the drain goroutine to exit.
func (c *LiveClient) Stop() {
	c.mu.Lock()
	if c.state != stateDestroyed {
		c.state = stateDestroyed
	}
	c.mu.Unlock()

	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	_ = c.sub.Close()
	<-c.done
}

// EmitCached re-enqueues the last observed Update, stamped with the current
// time, so liveness consumers see a fresh timestamp without a new monitor
// event.
func (c *LiveClient) EmitCached() {
	c.mu.Lock()
	cached := c.cached
	c.mu.Unlock()
	if cached == nil {
		return
	}
	reemit := *cached
	reemit.Timestamp = time.Now()
	if !c.queue.Push(reemit) {
		metrics.LocalQueueFull.WithLabelValues(c.info.Name).Inc()
		c.logger.Warn().Str("channel", c.info.Name).Msg("local_queue_full: dropping liveness re-emit")
	}
}

// Status returns a negative value only once the channel has been
// destroyed. A disconnect reports non-fatal: the channel is retained and
// resumes on reconnect.
func (c *LiveClient) Status() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateDestroyed:
		return StatusDestroyed
	case stateDisconnected:
		return StatusDisconnected
	default:
		return StatusOK
	}
}

func (c *LiveClient) Updates() *Queue   { return c.queue }
func (c *LiveClient) Info() ChannelInfo { return c.info }

var _ Client = (*LiveClient)(nil)
