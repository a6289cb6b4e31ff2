package convert

import (
	"sync"

	"github.com/epics-kafka/forwarder/pkg/log"
	"github.com/epics-kafka/forwarder/pkg/metrics"
	"github.com/epics-kafka/forwarder/pkg/pv"
	"github.com/rs/zerolog"
)

// Task is one (ConversionPath, Update) pair submitted to the worker pool.
type Task struct {
	Path   *ConversionPath
	Update pv.Update
}

// WorkerPool runs N worker goroutines draining a single bounded,
// fairly-ordered (FIFO) task channel. Workers are started together by
// Start and stopped cooperatively by Stop, which joins all of them before
// returning.
type WorkerPool struct {
	n      int
	tasks  chan Task
	logger zerolog.Logger

	wg      sync.WaitGroup
	stopped chan struct{}
	once    sync.Once
}

// NewWorkerPool builds a pool of n workers with a task queue of the given
// depth. The pool does not start its goroutines until Start is called, so
// the supervisor can finish wiring before any conversion runs.
func NewWorkerPool(n, queueDepth int) *WorkerPool {
	return &WorkerPool{
		n:       n,
		tasks:   make(chan Task, queueDepth),
		logger:  log.WithComponent("convert"),
		stopped: make(chan struct{}),
	}
}

// Start launches the pool's worker goroutines.
func (p *WorkerPool) Start() {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Submit enqueues task without blocking. It returns false if the task
// queue was full, in which case the caller (a Stream) drops the update and
// counts it.
func (p *WorkerPool) Submit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		metrics.ConversionQueueFull.WithLabelValues(task.Update.Channel).Inc()
		return false
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.execute(task)
		case <-p.stopped:
			return
		}
	}
}

func (p *WorkerPool) execute(task Task) {
	timer := metrics.NewTimer()
	msg, err := task.Path.Converter.Convert(task.Update)
	timer.ObserveDurationVec(metrics.ConversionDuration, task.Path.SchemaName)
	if err != nil {
		metrics.ConversionErrors.WithLabelValues(task.Path.SchemaName).Inc()
		p.logger.Warn().Err(err).Str("channel", task.Update.Channel).Str("schema", task.Path.SchemaName).
			Msg("conversion failed, dropping update")
		return
	}

	if err := task.Path.Topic.Produce(msg.Payload); err != nil {
		p.logger.Warn().Err(err).Str("topic", task.Path.Topic.TopicName()).Msg("produce failed")
	}
}

// Stop signals every worker to exit and waits for all of them to join.
func (p *WorkerPool) Stop() {
	p.once.Do(func() { close(p.stopped) })
	p.wg.Wait()
}
