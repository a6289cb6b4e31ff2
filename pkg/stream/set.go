package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/epics-kafka/forwarder/pkg/metrics"
)

// ErrDuplicateChannel is returned by Set.Add when a Stream for the given
// channel already exists. The caller treats this as a no-op rather than an
// error to the operator, so re-sending an add command cannot accumulate
// duplicate paths.
type ErrDuplicateChannel struct {
	Channel string
}

func (e *ErrDuplicateChannel) Error() string {
	return fmt.Sprintf("stream: channel %q already has an active stream", e.Channel)
}

// Set is the channel-indexed collection of live Streams, protected by a
// single mutex held only while mutating the map.
type Set struct {
	mu      sync.Mutex
	streams map[string]*Stream
}

// NewSet builds an empty Set.
func NewSet() *Set {
	return &Set{streams: make(map[string]*Stream)}
}

// Add inserts stream, rejecting a duplicate channel name: at most one
// Stream exists per channel.
func (s *Set) Add(stream *Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := stream.ChannelName()
	if _, exists := s.streams[name]; exists {
		return &ErrDuplicateChannel{Channel: name}
	}
	s.streams[name] = stream
	metrics.StreamsActive.Set(float64(len(s.streams)))
	return nil
}

// GetByChannelName returns the Stream for name, if any.
func (s *Set) GetByChannelName(name string) (*Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[name]
	return st, ok
}

// StopChannel removes and stops the Stream for name. An absent channel is
// a no-op, not an error.
func (s *Set) StopChannel(name string) {
	s.mu.Lock()
	st, ok := s.streams[name]
	if ok {
		delete(s.streams, name)
	}
	metrics.StreamsActive.Set(float64(len(s.streams)))
	s.mu.Unlock()

	if ok {
		st.Stop()
	}
}

// ClearStreams stops every client first, pauses briefly to let
// callback-driven provider/broker resources quiesce, then releases the
// converter references. Applying it twice is equivalent to once.
func (s *Set) ClearStreams() {
	s.mu.Lock()
	all := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		all = append(all, st)
	}
	s.streams = make(map[string]*Stream)
	metrics.StreamsActive.Set(0)
	s.mu.Unlock()

	for _, st := range all {
		st.client.Stop()
	}
	if len(all) > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	for _, st := range all {
		for _, p := range st.paths {
			if p.ConverterIdentity != "" {
				st.registry.Release(p.SchemaName, p.ConverterIdentity)
			}
		}
	}
}

// CheckStreamStatus removes any Stream whose status is fatal, returning
// the channel names removed for logging.
func (s *Set) CheckStreamStatus() []string {
	s.mu.Lock()
	var fatal []*Stream
	for name, st := range s.streams {
		if st.Fatal() {
			fatal = append(fatal, st)
			delete(s.streams, name)
		}
	}
	metrics.StreamsActive.Set(float64(len(s.streams)))
	s.mu.Unlock()

	names := make([]string, 0, len(fatal))
	for _, st := range fatal {
		names = append(names, st.ChannelName())
		metrics.ChannelRuntimeErrors.WithLabelValues(st.ChannelName()).Inc()
		st.Stop()
	}
	return names
}

// Len returns the current number of live Streams.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// Snapshot returns every live Stream, for draining and status reporting
// by the main loop. The returned slice is a copy; safe to range over
// without holding the Set's lock.
func (s *Set) Snapshot() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		out = append(out, st)
	}
	return out
}
