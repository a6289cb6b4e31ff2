package stream

import (
	"github.com/epics-kafka/forwarder/pkg/convert"
	"github.com/epics-kafka/forwarder/pkg/pv"
	"github.com/epics-kafka/forwarder/pkg/schema"
	"github.com/rs/zerolog"
)

// Stream binds one PV client to an ordered list of conversion paths. It
// owns the client and releases shared converter references when torn down.
type Stream struct {
	info   pv.ChannelInfo
	client pv.Client
	paths  []*convert.ConversionPath
	logger zerolog.Logger

	registry *schema.Registry
}

// New builds a Stream for info, owning client and paths. paths must
// already be built (converters acquired, topic handles resolved) by the
// caller (typically Forwarder.AddMapping).
func New(info pv.ChannelInfo, client pv.Client, paths []*convert.ConversionPath, registry *schema.Registry, logger zerolog.Logger) *Stream {
	return &Stream{
		info:     info,
		client:   client,
		paths:    paths,
		registry: registry,
		logger:   logger,
	}
}

// ChannelName returns the channel this Stream is bound to.
func (s *Stream) ChannelName() string { return s.info.Name }

// Paths exposes the ordered conversion paths, preserved as built.
func (s *Stream) Paths() []*convert.ConversionPath { return s.paths }

// Client exposes the owned PV Client, e.g. so a liveness timer can call
// EmitCached on every live Stream.
func (s *Stream) Client() pv.Client { return s.client }

// Status returns negative when the underlying client is in a fatal state.
func (s *Stream) Status() int {
	return s.client.Status()
}

// Fatal reports whether Status is negative, the health sweep's removal
// criterion.
func (s *Stream) Fatal() bool {
	return s.Status() < 0
}

// Drain pulls updates off the client's queue, up to budget updates, and
// submits one task per conversion path for each, preserving path order at
// submission time. It returns the number of updates drained.
func (s *Stream) Drain(pool *convert.WorkerPool, budget int) int {
	n := 0
	ch := s.client.Updates().Chan()
	for n < budget {
		select {
		case u := <-ch:
			for _, p := range s.paths {
				if !pool.Submit(convert.Task{Path: p, Update: u}) {
					s.logger.Warn().Str("channel", s.info.Name).Str("topic", p.Topic.TopicName()).
						Msg("conversion_queue_full: worker pool saturated, dropping update")
				}
			}
			n++
		default:
			return n
		}
	}
	return n
}

// ConverterSpecsJSON mirrors ConverterSpec for status reporting, named
// schema/topic pairs without the internal Converter/TopicProducer handles.
type ConverterSpecsJSON struct {
	Schema string `json:"schema"`
	Topic  string `json:"topic"`
}

// StatusJSON is one Stream's entry in the periodic status report.
type StatusJSON struct {
	ChannelName string               `json:"channel_name"`
	Provider    string               `json:"provider"`
	Paths       []ConverterSpecsJSON `json:"paths"`
}

// GetStatusJSON builds the status object for this Stream.
func (s *Stream) GetStatusJSON() StatusJSON {
	paths := make([]ConverterSpecsJSON, 0, len(s.paths))
	for _, p := range s.paths {
		paths = append(paths, ConverterSpecsJSON{Schema: p.SchemaName, Topic: p.Topic.TopicName()})
	}
	return StatusJSON{
		ChannelName: s.info.Name,
		Provider:    string(s.info.Provider),
		Paths:       paths,
	}
}

// Stop tears down the owned client and releases every shared converter
// reference this Stream held.
func (s *Stream) Stop() {
	s.client.Stop()
	for _, p := range s.paths {
		if p.ConverterIdentity != "" {
			s.registry.Release(p.SchemaName, p.ConverterIdentity)
		}
	}
}
