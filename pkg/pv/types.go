package pv

import "time"

// Provider identifies the control-system transport reached by a channel.
type Provider string

const (
	// ProviderPVA is the default provider when a spec omits one.
	ProviderPVA Provider = "pva"
	ProviderCA  Provider = "ca"
)

// ChannelInfo names one subscription: a channel name and the provider used
// to reach it.
type ChannelInfo struct {
	Name     string
	Provider Provider
}

// Value is the opaque, provider-native structured payload carried by an
// Update. The concrete shape a real provider produces (scalar, array,
// enum-with-choices, struct-with-alarm-fields) is out of scope for this
// engine; Value only needs to be readable by a Converter.
type Value struct {
	// Double holds the payload when it is a scalar floating point value,
	// the only shape the reference converters and the synthetic client
	// produce. A production provider binding would extend this type (or
	// replace it with a richer tagged union) without touching the rest of
	// the engine, since Converters only depend on the fields they read.
	Double float64
	// Alarm carries the monitor's alarm field; empty for the synthetic
	// client.
	Alarm string
}

// Update is one PV monitor event. It is created by exactly one Client
// implementation and owned by a single queue slot until the last
// conversion path serializes it.
type Update struct {
	Channel   string
	Value     Value
	Timestamp time.Time // monitor timestamp
}

// TimestampNanos returns the monitor timestamp as nanoseconds since the
// epoch, the representation converters put on the wire.
func (u Update) TimestampNanos() int64 {
	return u.Timestamp.UnixNano()
}
