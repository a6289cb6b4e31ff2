// Package forwarder implements the supervisor: the construction order
// wiring every other package together, the blocking main control loop, and
// the command.Dispatcher used by the command listener to mutate the Stream
// Set live.
package forwarder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/epics-kafka/forwarder/pkg/broker"
	"github.com/epics-kafka/forwarder/pkg/command"
	"github.com/epics-kafka/forwarder/pkg/config"
	"github.com/epics-kafka/forwarder/pkg/convert"
	"github.com/epics-kafka/forwarder/pkg/log"
	"github.com/epics-kafka/forwarder/pkg/metrics"
	"github.com/epics-kafka/forwarder/pkg/pv"
	"github.com/epics-kafka/forwarder/pkg/schema"
	"github.com/epics-kafka/forwarder/pkg/stream"
	"github.com/epics-kafka/forwarder/pkg/timers"
	"github.com/rs/zerolog"
)

// controlTickInterval is the cadence of the command-listener poll, the
// health sweep, and the stats cycle within the main loop.
const controlTickInterval = 2 * time.Second

// statusEmitInterval is the status topic publish cadence.
const statusEmitInterval = 3 * time.Second

// drainBudgetPerStream bounds how many updates a single main loop tick
// dequeues from one Stream before moving to the next.
const drainBudgetPerStream = 64

// brokerPool is the subset of *broker.Pool the Forwarder drives, narrowed
// to convert.TopicProducer so tests can inject a fake without a Sarama
// connection.
type brokerPool interface {
	GetOrCreateTopic(name string) (convert.TopicProducer, error)
	TopicStats() map[string]map[string]int64
	Stop()
}

// poolAdapter adapts *broker.Pool's concrete *broker.TopicHandle return
// value to the brokerPool interface's convert.TopicProducer.
type poolAdapter struct{ *broker.Pool }

func (p poolAdapter) GetOrCreateTopic(name string) (convert.TopicProducer, error) {
	return p.Pool.GetOrCreateTopic(name)
}

// commandListener is the subset of *command.Listener the Forwarder drives.
type commandListener interface {
	Poll(budget int) int
	Stop()
}

// Forwarder is the supervisor: it owns every other subsystem's lifecycle
// and runs the blocking main control loop.
type Forwarder struct {
	cfg       *config.Config
	registry  *schema.Registry
	pool      brokerPool
	workers   *convert.WorkerPool
	streams   *stream.Set
	listener  commandListener
	provider  pv.Connector
	synthetic bool
	sink      *metrics.InfluxSink
	logger    zerolog.Logger

	livenessTimer  *timers.Timer
	syntheticTimer *timers.Timer

	flag *RunFlag

	lastControlTick time.Time
	lastStatusEmit  time.Time
}

// Option customizes New's construction, primarily for tests that need to
// inject a fake PV provider, broker pool, or command listener.
type Option func(*options)

type options struct {
	provider pv.Connector
	pool     brokerPool
	listener func(dispatcher command.Dispatcher) (commandListener, error)
}

// WithProvider injects the pv.Connector used to build LiveClients. Tests
// use this to supply a pv.FakeProvider; a deployment with a real pva/ca
// client library injects its binding here. Defaults to
// pv.NewFakeProvider().
func WithProvider(p pv.Connector) Option {
	return func(o *options) { o.provider = p }
}

// withPool injects a brokerPool directly, bypassing any Sarama
// connection. Exported only to this package's tests.
func withPool(p brokerPool) Option {
	return func(o *options) { o.pool = p }
}

// withListener injects a commandListener factory, bypassing any Sarama
// connection. Exported only to this package's tests.
func withListener(f func(dispatcher command.Dispatcher) (commandListener, error)) Option {
	return func(o *options) { o.listener = f }
}

// New wires the subsystems in dependency order: schema registry, broker
// pool, converter worker pool (constructed, not started), command
// listener, timers, then the initial Streams from cfg.Streams.
func New(cfg *config.Config, opts ...Option) (*Forwarder, error) {
	o := &options{provider: pv.NewFakeProvider()}
	for _, opt := range opts {
		opt(o)
	}

	if topicNameFromURI(cfg.CommandTopic) == "" {
		return nil, &ConfigError{Reason: "command topic is required"}
	}

	logger := log.WithComponent("forwarder")

	registry := schema.DefaultRegistry()

	pool := o.pool
	if pool == nil {
		realPool, err := broker.NewPool(cfg.Brokers, cfg.BrokerPoolSize)
		if err != nil {
			return nil, fmt.Errorf("forwarder: broker pool init: %w", err)
		}
		pool = poolAdapter{realPool}
	}

	workers := convert.NewWorkerPool(cfg.ConversionThreads, cfg.ConversionWorkerQueueSize)

	f := &Forwarder{
		cfg:       cfg,
		registry:  registry,
		pool:      pool,
		workers:   workers,
		streams:   stream.NewSet(),
		provider:  o.provider,
		synthetic: cfg.FakePVPeriodMS > 0,
		sink:      metrics.NewInfluxSink(cfg.MetricsURI),
		logger:    logger,
		flag:      NewRunFlag(),
	}

	if o.listener != nil {
		listener, err := o.listener(f)
		if err != nil {
			pool.Stop()
			return nil, fmt.Errorf("forwarder: command listener init: %w", err)
		}
		f.listener = listener
	} else {
		listener, err := command.New(cfg.Brokers, topicNameFromURI(cfg.CommandTopic), f, logger)
		if err != nil {
			pool.Stop()
			return nil, fmt.Errorf("forwarder: command listener init: %w", err)
		}
		f.listener = listener
	}

	metrics.RegisterComponent(metrics.ComponentBrokerPool, true, "initialized")
	metrics.RegisterComponent(metrics.ComponentCommandListener, true, "initialized")

	f.livenessTimer = timers.New(cfg.Period(), f.emitLiveness)
	f.syntheticTimer = timers.New(cfg.FakePVPeriod(), f.generateSynthetic)

	for _, spec := range cfg.Streams {
		if err := f.AddMapping(spec); err != nil {
			logger.Warn().Err(err).Str("channel", spec.Channel).Msg("MappingAddError: static config stream rejected")
		}
	}

	return f, nil
}

// AddMapping builds a Stream from spec and adds it to the Stream Set. A
// duplicate channel is treated as a silent no-op so re-sending an add
// command cannot accumulate paths; every other failure is returned as a
// *MappingAddError.
func (f *Forwarder) AddMapping(spec stream.StreamSpec) error {
	for _, cs := range spec.Converters {
		if !f.registry.Has(cs.Schema) {
			return &MappingAddError{Channel: spec.Channel, Reason: "schema not found", Err: &SchemaNotFoundError{Schema: cs.Schema}}
		}
	}

	paths := make([]*convert.ConversionPath, 0, len(spec.Converters))
	for _, cs := range spec.Converters {
		conv, err := f.registry.Acquire(cs.Schema, cs.Name)
		if err != nil {
			f.releasePaths(paths)
			return &MappingAddError{Channel: spec.Channel, Reason: "converter acquire failed", Err: err}
		}
		topic, err := f.pool.GetOrCreateTopic(topicNameFromURI(cs.Topic))
		if err != nil {
			f.registry.Release(cs.Schema, cs.Name)
			f.releasePaths(paths)
			return &MappingAddError{Channel: spec.Channel, Reason: "topic unavailable", Err: err}
		}
		paths = append(paths, convert.NewConversionPath(cs.Schema, cs.Name, conv, topic))
	}

	info := spec.ChannelInfo()
	client, err := f.newClient(info)
	if err != nil {
		f.releasePaths(paths)
		return &MappingAddError{Channel: spec.Channel, Reason: "client init failed", Err: err}
	}

	st := stream.New(info, client, paths, f.registry, log.WithStream(info.Name, string(info.Provider)))
	if err := f.streams.Add(st); err != nil {
		st.Stop()
		if _, dup := err.(*stream.ErrDuplicateChannel); dup {
			return nil
		}
		return &MappingAddError{Channel: spec.Channel, Reason: "add failed", Err: err}
	}
	return nil
}

func (f *Forwarder) releasePaths(paths []*convert.ConversionPath) {
	for _, p := range paths {
		if p.ConverterIdentity != "" {
			f.registry.Release(p.SchemaName, p.ConverterIdentity)
		}
	}
}

func (f *Forwarder) newClient(info pv.ChannelInfo) (pv.Client, error) {
	if f.synthetic {
		return pv.NewSyntheticClient(info, f.cfg.ChannelQueueDepth), nil
	}
	return pv.NewLiveClient(info, f.provider, f.cfg.ChannelQueueDepth, log.WithChannel(info.Name))
}

// StopChannel implements command.Dispatcher.
func (f *Forwarder) StopChannel(channel string) {
	f.streams.StopChannel(channel)
}

// StopAll implements command.Dispatcher.
func (f *Forwarder) StopAll() {
	f.streams.ClearStreams()
}

// RequestStop implements command.Dispatcher: the "exit" command raises
// the stop bit.
func (f *Forwarder) RequestStop() {
	f.flag.Raise(FlagStop)
}

// StopForwarding raises STOP from an operator-driven path (e.g. the CLI).
func (f *Forwarder) StopForwarding() {
	f.flag.Raise(FlagStop)
}

// StopForwardingDueToSignal raises the signal stop bit; idempotent, safe
// to call from a signal handler.
func (f *Forwarder) StopForwardingDueToSignal() {
	f.flag.Raise(FlagStopDueToSignal)
}

// State reports "RUNNING" or "STOPPED" for status/health reporting.
func (f *Forwarder) State() string {
	if f.flag.Stopped() {
		return "STOPPED"
	}
	return "RUNNING"
}

type generator interface {
	Generate() bool
}

func (f *Forwarder) emitLiveness() {
	for _, st := range f.streams.Snapshot() {
		st.Client().EmitCached()
	}
}

func (f *Forwarder) generateSynthetic() {
	for _, st := range f.streams.Snapshot() {
		if g, ok := st.Client().(generator); ok {
			g.Generate()
		}
	}
}

// StatusReport is the status topic message shape.
type StatusReport struct {
	Streams []stream.StatusJSON `json:"streams"`
}

func (f *Forwarder) publishStatus() {
	if f.cfg.StatusReportURI == "" {
		return
	}
	snapshot := f.streams.Snapshot()
	report := StatusReport{Streams: make([]stream.StatusJSON, 0, len(snapshot))}
	for _, st := range snapshot {
		report.Streams = append(report.Streams, st.GetStatusJSON())
	}

	payload, err := json.Marshal(report)
	if err != nil {
		f.logger.Warn().Err(err).Msg("failed to encode status report")
		return
	}
	topic, err := f.pool.GetOrCreateTopic(topicNameFromURI(f.cfg.StatusReportURI))
	if err != nil {
		f.logger.Warn().Err(err).Msg("status topic unavailable")
		return
	}
	if err := topic.Produce(payload); err != nil {
		f.logger.Warn().Err(err).Msg("failed to publish status report")
	}
}

func (f *Forwarder) runStatsCycle() {
	set := 0
	for _, st := range f.streams.Snapshot() {
		for _, p := range st.Paths() {
			stats := p.Converter.Stats()
			if len(stats) == 0 {
				continue
			}
			_ = f.sink.PostStats("converter_"+p.SchemaName, set, stats)
			set++
		}
	}

	set = 0
	for topic, stats := range f.pool.TopicStats() {
		_ = f.sink.PostStats("broker_topic_"+topic, set, stats)
		set++
	}
}

// ForwardEpicsToKafka is the blocking main control loop. It returns when
// ctx is canceled or either stop bit of the run flag is observed.
func (f *Forwarder) ForwardEpicsToKafka(ctx context.Context) error {
	f.workers.Start()
	f.livenessTimer.Start()
	f.syntheticTimer.Start()
	metrics.UpdateComponent(metrics.ComponentForwarder, true, "running")
	defer f.shutdown()

	interval := f.cfg.MainPollInterval()
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}

	for {
		if ctx.Err() != nil {
			f.flag.Raise(FlagStop)
		}
		if f.flag.Stopped() {
			return nil
		}

		tickStart := time.Now()

		if tickStart.Sub(f.lastControlTick) >= controlTickInterval {
			f.listener.Poll(64)
			for _, ch := range f.streams.CheckStreamStatus() {
				f.logger.Warn().Str("channel", ch).Msg("ClientRuntimeError: stream removed after fatal status")
			}
			f.runStatsCycle()
			f.lastControlTick = tickStart
		}

		for _, st := range f.streams.Snapshot() {
			st.Drain(f.workers, drainBudgetPerStream)
		}

		if tickStart.Sub(f.lastStatusEmit) >= statusEmitInterval {
			f.publishStatus()
			f.lastStatusEmit = tickStart
		}

		elapsed := time.Since(tickStart)
		metrics.MainLoopDuration.Observe(elapsed.Seconds())
		if elapsed > interval {
			metrics.SlowMainLoopTotal.Inc()
			f.logger.Warn().Dur("elapsed", elapsed).Dur("budget", interval).Msg("slow main loop")
			continue
		}

		select {
		case <-ctx.Done():
		case <-time.After(interval - elapsed):
		}
	}
}

func (f *Forwarder) shutdown() {
	f.listener.Poll(1 << 16)
	f.listener.Stop()

	f.livenessTimer.TriggerStop()
	f.syntheticTimer.TriggerStop()
	f.livenessTimer.WaitForStop()
	f.syntheticTimer.WaitForStop()

	f.streams.ClearStreams()
	f.workers.Stop()
	f.pool.Stop()

	metrics.UpdateComponent(metrics.ComponentBrokerPool, false, "stopped")
	metrics.UpdateComponent(metrics.ComponentCommandListener, false, "stopped")
	metrics.UpdateComponent(metrics.ComponentForwarder, false, "stopped")
}
