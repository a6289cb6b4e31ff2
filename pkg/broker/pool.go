package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/epics-kafka/forwarder/pkg/metrics"
	"github.com/google/uuid"
)

// instanceFactory builds a new broker Instance with the given id. Pool
// uses NewBrokerInstance in production; tests inject a fake.
type instanceFactory func(id string) (*Instance, error)

// Pool is a small, growing set of broker Instances with least-loaded
// topic-handle selection and rate-limited replacement of failed instances.
type Pool struct {
	brokers []string
	size    int
	newInst instanceFactory

	mu          sync.Mutex
	instances   []*Instance
	lastCreated time.Time
}

// minInstanceCreateInterval rate-limits replacement instance creation to
// one per second, so persistent broker failure does not thrash.
const minInstanceCreateInterval = time.Second

// NewPool builds a Pool of size initial broker Instances connected to
// brokers.
func NewPool(brokers []string, size int) (*Pool, error) {
	p := &Pool{
		brokers: brokers,
		size:    size,
		newInst: func(id string) (*Instance, error) { return NewBrokerInstance(id, brokers) },
	}
	for i := 0; i < size; i++ {
		if err := p.addInstance(); err != nil {
			return nil, fmt.Errorf("broker: pool init: %w", err)
		}
	}
	return p, nil
}

// newPoolForTest builds a Pool with an injected factory, bypassing any
// real broker connection.
func newPoolForTest(factory instanceFactory, size int) (*Pool, error) {
	p := &Pool{newInst: factory}
	for i := 0; i < size; i++ {
		if err := p.addInstance(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pool) addInstance() error {
	id := uuid.NewString()
	inst, err := p.newInst(id)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.instances = append(p.instances, inst)
	p.lastCreated = time.Now()
	p.mu.Unlock()
	metrics.BrokerInstancesTotal.Set(float64(len(p.instances)))
	return nil
}

// GetOrCreateTopic returns the cached handle for name if a non-failed
// instance already holds one. Otherwise it selects the non-failed instance
// with the fewest cached topics (tie-broken by insertion order) and creates
// the handle there. If every instance is failed, a replacement is appended
// subject to the one-per-second rate limit.
func (p *Pool) GetOrCreateTopic(name string) (*TopicHandle, error) {
	p.mu.Lock()
	for _, inst := range p.instances {
		if inst.Failed() {
			continue
		}
		inst.mu.Lock()
		h, ok := inst.topics[name]
		inst.mu.Unlock()
		if ok {
			p.mu.Unlock()
			return h, nil
		}
	}
	p.mu.Unlock()

	inst, err := p.selectInstance()
	if err != nil {
		return nil, err
	}
	return inst.GetOrCreateTopic(name), nil
}

func (p *Pool) selectInstance() (*Instance, error) {
	p.mu.Lock()
	var best *Instance
	bestCount := -1
	for _, inst := range p.instances {
		if inst.Failed() {
			continue
		}
		count := inst.TopicCount()
		if bestCount == -1 || count < bestCount {
			best = inst
			bestCount = count
		}
	}
	needsReplacement := best == nil
	sinceLast := time.Since(p.lastCreated)
	p.mu.Unlock()

	if !needsReplacement {
		return best, nil
	}

	if sinceLast < minInstanceCreateInterval {
		return nil, fmt.Errorf("broker: all instances failed, replacement rate-limited")
	}
	if err := p.addInstance(); err != nil {
		return nil, fmt.Errorf("broker: failed to create replacement instance: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instances[len(p.instances)-1], nil
}

// Stats returns a snapshot of every instance's id and whether it is
// currently failed, for status reporting.
func (p *Pool) Stats() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.instances))
	for _, inst := range p.instances {
		out[inst.ID()] = inst.Failed()
	}
	return out
}

// TopicStats aggregates every instance's per-topic counters, keyed by
// topic name, for the supervisor's stats cycle. A topic
// name that happens to exist on more than one instance (recreated after a
// prior instance failed) reports the most recently enumerated instance's
// counters; this is a reporting nuance only, the counters themselves are
// authoritative per (instance, topic) pair.
func (p *Pool) TopicStats() map[string]map[string]int64 {
	p.mu.Lock()
	instances := append([]*Instance(nil), p.instances...)
	p.mu.Unlock()

	out := make(map[string]map[string]int64)
	for _, inst := range instances {
		for name, stats := range inst.TopicStats() {
			out[name] = stats
		}
	}
	return out
}

// Stop tears down every instance in the pool.
func (p *Pool) Stop() {
	p.mu.Lock()
	instances := append([]*Instance(nil), p.instances...)
	p.mu.Unlock()

	for _, inst := range instances {
		inst.Stop()
	}
}
