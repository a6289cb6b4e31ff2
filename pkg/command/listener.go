package command

import (
	"sync"

	"github.com/IBM/sarama"
	"github.com/epics-kafka/forwarder/pkg/log"
	"github.com/epics-kafka/forwarder/pkg/metrics"
	"github.com/epics-kafka/forwarder/pkg/stream"
	"github.com/epics-kafka/forwarder/pkg/validate"
	"github.com/rs/zerolog"
)

// consumer is the subset of sarama.Consumer the Listener drives; a real
// sarama.Consumer satisfies it through the saramaConsumer adapter, tests
// inject a fake.
type consumer interface {
	Partitions(topic string) ([]int32, error)
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

// partitionConsumer is the subset of sarama.PartitionConsumer the
// Listener drives.
type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	AsyncClose()
}

// saramaConsumer adapts a real *sarama.Consumer so ConsumePartition
// returns our narrower partitionConsumer interface.
type saramaConsumer struct {
	sarama.Consumer
}

func (c saramaConsumer) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return c.Consumer.ConsumePartition(topic, partition, offset)
}

// Listener is a consumer bound to a single command topic on its own
// broker connection, starting at the high water mark of each partition so
// commands issued before start are not replayed.
type Listener struct {
	consumer   consumer
	dispatcher Dispatcher
	logger     zerolog.Logger

	partitions []partitionConsumer
	msgCh      chan []byte

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Listener consuming topic on brokers using Sarama's default
// client config, dispatching parsed commands to dispatcher.
func New(brokers []string, topic string, dispatcher Dispatcher, logger zerolog.Logger) (*Listener, error) {
	c, err := sarama.NewConsumer(brokers, sarama.NewConfig())
	if err != nil {
		return nil, err
	}
	return newListener(saramaConsumer{c}, topic, dispatcher, logger)
}

func newListener(c consumer, topic string, dispatcher Dispatcher, logger zerolog.Logger) (*Listener, error) {
	partitionIDs, err := c.Partitions(topic)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	l := &Listener{
		consumer:   c,
		dispatcher: dispatcher,
		logger:     logger,
		msgCh:      make(chan []byte, 256),
		stopCh:     make(chan struct{}),
	}

	for _, p := range partitionIDs {
		pc, err := c.ConsumePartition(topic, p, sarama.OffsetNewest)
		if err != nil {
			l.Stop()
			return nil, err
		}
		l.partitions = append(l.partitions, pc)
		l.wg.Add(1)
		go l.consumePartition(pc)
	}

	return l, nil
}

func (l *Listener) consumePartition(pc partitionConsumer) {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopCh:
			return
		case msg, ok := <-pc.Messages():
			if !ok {
				return
			}
			select {
			case l.msgCh <- msg.Value:
			default:
				l.logger.Warn().Msg("command listener backlog full, dropping command")
			}
		case cerr, ok := <-pc.Errors():
			if !ok {
				continue
			}
			l.logger.Warn().Err(cerr.Err).Msg("command partition consumer error")
		}
	}
}

// Poll drains up to budget pending command messages, parsing and
// dispatching each. It never blocks.
func (l *Listener) Poll(budget int) int {
	n := 0
	for n < budget {
		select {
		case data := <-l.msgCh:
			l.handle(data)
			n++
		default:
			return n
		}
	}
	return n
}

func (l *Listener) handle(data []byte) {
	cmd, err := parse(data)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("unknown", "parse_error").Inc()
		l.logger.Warn().Err(err).Msg("malformed command, ignoring")
		return
	}

	switch cmd.Cmd {
	case CmdAdd:
		l.applyAdd(cmd.Streams)
	case CmdStopChannel:
		metrics.CommandsTotal.WithLabelValues(CmdStopChannel, "applied").Inc()
		l.dispatcher.StopChannel(cmd.Channel)
	case CmdStopAll:
		metrics.CommandsTotal.WithLabelValues(CmdStopAll, "applied").Inc()
		l.dispatcher.StopAll()
	case CmdExit:
		metrics.CommandsTotal.WithLabelValues(CmdExit, "applied").Inc()
		l.dispatcher.RequestStop()
	default:
		metrics.CommandsTotal.WithLabelValues(cmd.Cmd, "ignored").Inc()
		l.logger.Warn().Str("cmd", cmd.Cmd).Msg("unrecognized command, ignoring")
	}
}

func (l *Listener) applyAdd(specs []stream.StreamSpec) {
	for i := range specs {
		spec := specs[i]
		if err := validate.Struct(spec); err != nil {
			metrics.MappingAddErrors.WithLabelValues("invalid_spec").Inc()
			l.logger.Warn().Err(err).Str("channel", spec.Channel).Msg("MappingAddError: invalid stream spec")
			continue
		}
		if err := l.dispatcher.AddMapping(spec); err != nil {
			metrics.MappingAddErrors.WithLabelValues("add_failed").Inc()
			l.logger.Warn().Err(err).Str("channel", spec.Channel).Msg("MappingAddError")
			continue
		}
		metrics.CommandsTotal.WithLabelValues(CmdAdd, "applied").Inc()
	}
}

// Stop tears down every partition consumer and the underlying client,
// waiting for the drain goroutines to exit.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	for _, pc := range l.partitions {
		pc.AsyncClose()
	}
	l.wg.Wait()
	if err := l.consumer.Close(); err != nil {
		lg := log.WithComponent("command")
		lg.Warn().Err(err).Msg("error closing command consumer")
	}
}
