package pv

import (
	"fmt"
	"sync"
	"time"
)

// FakeProvider is an in-memory Connector used by tests and by callers
// wanting to exercise the live-client code path without a real
// control-system network. Connect succeeds unless the channel name is
// present in Refuse.
type FakeProvider struct {
	mu     sync.Mutex
	subs   map[string]*FakeSubscription
	Refuse map[string]bool
}

// NewFakeProvider creates an empty FakeProvider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		subs:   make(map[string]*FakeSubscription),
		Refuse: make(map[string]bool),
	}
}

func (p *FakeProvider) Connect(info ChannelInfo) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Refuse[info.Name] {
		return nil, fmt.Errorf("channel %q refused", info.Name)
	}

	sub := newFakeSubscription(info.Name)
	p.subs[info.Name] = sub
	return sub, nil
}

// Subscription returns the live subscription for channel, if any, so a
// test can push events into it.
func (p *FakeProvider) Subscription(channel string) *FakeSubscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs[channel]
}

// FakeSubscription is a test double a caller drives directly by calling
// PushValue/Disconnect/Reconnect/Destroy.
type FakeSubscription struct {
	channel string
	events  chan Event
	mu      sync.Mutex
	closed  bool
}

func newFakeSubscription(channel string) *FakeSubscription {
	return &FakeSubscription{
		channel: channel,
		events:  make(chan Event, 64),
	}
}

func (s *FakeSubscription) Events() <-chan Event { return s.events }

func (s *FakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// PushValue delivers a scalar-double monitor event.
func (s *FakeSubscription) PushValue(value float64) {
	s.send(Event{Kind: EventValue, Update: Update{
		Channel: s.channel,
		Value:   Value{Double: value},
	}})
}

func (s *FakeSubscription) Disconnect() { s.send(Event{Kind: EventDisconnected}) }
func (s *FakeSubscription) Reconnect()  { s.send(Event{Kind: EventReconnected}) }
func (s *FakeSubscription) Destroy()    { s.send(Event{Kind: EventDestroyed}) }

func (s *FakeSubscription) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if ev.Kind == EventValue && ev.Update.Timestamp.IsZero() {
		ev.Update.Timestamp = time.Now()
	}
	s.events <- ev
}
