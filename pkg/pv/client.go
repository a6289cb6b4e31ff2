package pv

// Client is the interface shared by both PV client variants: teardown,
// liveness re-emit, a status code, and the queue a Stream drains.
type Client interface {
	// Stop tears the client down: stops any monitor, releases provider
	// resources, transitions to a terminal status.
	Stop()
	// EmitCached re-emits the most recently observed Update into the
	// client's queue without waiting for a new source event, driven by the
	// liveness timer. It is a no-op before the first Update has been
	// observed.
	EmitCached()
	// Status returns a negative value when the client is in a fatal state,
	// zero or positive otherwise.
	Status() int
	// Updates exposes the bounded per-channel queue for a Stream to drain.
	Updates() *Queue
	// Info returns the ChannelInfo this client was built for.
	Info() ChannelInfo
}

// Status codes returned by Client.Status. Only the sign is contractually
// meaningful: negative means fatal, the health sweep's removal criterion.
// A transient disconnect is not fatal; the channel is retained and may
// reconnect, so StatusDisconnected reports positive.
const (
	StatusOK               = 0
	StatusDisconnected     = 1
	StatusDestroyed        = -1
	StatusClientInitFailed = -2
)
