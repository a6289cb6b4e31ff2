package pv

import (
	"math/rand"
	"sync"
	"time"

	"github.com/epics-kafka/forwarder/pkg/metrics"
)

// SyntheticClient produces updates on demand rather than from a live
// monitor. Each call to Generate pushes one scalar double drawn uniformly
// from [0, 1) with the current wall-clock timestamp. It is driven by the
// synthetic-update timer (FakePVPeriodMS) rather than any external source,
// so the whole pipeline can be exercised without a live PV.
type SyntheticClient struct {
	info  ChannelInfo
	queue *Queue
	rnd   *rand.Rand

	mu     sync.Mutex
	cached *Update
	status int
}

// NewSyntheticClient builds a synthetic client for info with a queue of the
// given depth.
func NewSyntheticClient(info ChannelInfo, queueDepth int) *SyntheticClient {
	return &SyntheticClient{
		info:  info,
		queue: NewQueue(queueDepth),
		// #nosec G404 -- synthetic test data, not security sensitive.
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate produces and enqueues one synthetic Update. Returns false if
// the queue was full.
func (c *SyntheticClient) Generate() bool {
	u := Update{
		Channel:   c.info.Name,
		Value:     Value{Double: c.rnd.Float64()},
		Timestamp: time.Now(),
	}
	c.mu.Lock()
	c.cached = &u
	c.mu.Unlock()
	if !c.queue.Push(u) {
		metrics.LocalQueueFull.WithLabelValues(c.info.Name).Inc()
		return false
	}
	return true
}

func (c *SyntheticClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusDestroyed
}

func (c *SyntheticClient) EmitCached() {
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
	}
}

func (c *SyntheticClient) Status() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *SyntheticClient) Updates() *Queue   { return c.queue }
func (c *SyntheticClient) Info() ChannelInfo { return c.info }

var _ Client = (*SyntheticClient)(nil)
