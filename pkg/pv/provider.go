package pv

// Connector is the injected seam standing in for a live control-system
// transport. A production binding for "pva" or "ca" would implement
// Connector against a real Channel Access / PV Access client library;
// FakeProvider is the reference implementation used by tests.
type Connector interface {
	// Connect opens a subscription for the given channel. An error here
	// becomes a ClientInitError.
	Connect(info ChannelInfo) (Subscription, error)
}

// EventKind distinguishes the events a Subscription can deliver.
type EventKind int

const (
	// EventValue carries a new monitor value.
	EventValue EventKind = iota
	// EventDisconnected signals a transient loss of connection; the
	// channel is retained and may reconnect.
	EventDisconnected
	// EventReconnected signals recovery from EventDisconnected.
	EventReconnected
	// EventDestroyed signals a terminal provider-side failure; the
	// subscribing Stream is expected to be torn down.
	EventDestroyed
)

// Event is one notification delivered by a Subscription's Events channel.
type Event struct {
	Kind   EventKind
	Update Update // valid when Kind == EventValue
}

// Subscription is a standing monitor on one channel.
type Subscription interface {
	// Events delivers value, disconnect, reconnect, and destroy
	// notifications. The channel is closed when the subscription is
	// closed by either side.
	Events() <-chan Event
	// Close stops the monitor and releases provider-side resources.
	Close() error
}
