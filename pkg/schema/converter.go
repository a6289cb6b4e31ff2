package schema

import (
	"fmt"

	"github.com/epics-kafka/forwarder/pkg/pv"
)

// FramedMessage is one converter output: a framed byte buffer tagged with
// the schema that produced it. The destination topic handle is attached by
// the caller (a convert.ConversionPath), not stored here, so this package
// has no dependency on the broker package.
type FramedMessage struct {
	Payload []byte
	Schema  string
}

// ConversionError wraps a converter failure.
type ConversionError struct {
	Schema  string
	Channel string
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("schema: converter %q failed for channel %q: %v", e.Schema, e.Channel, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Converter transforms PV updates into framed byte buffers. A Converter's
// internal state is per-converter; when an identity is shared across
// Streams, the Registry guarantees at most one live instance, and
// implementations must treat Convert as safe to call from any of the
// worker pool's goroutines.
type Converter interface {
	// Convert serializes one update. The returned FramedMessage's Schema
	// field must equal the name this converter was constructed under.
	Convert(u pv.Update) (FramedMessage, error)
	// Stats returns a snapshot of converter-internal counters for the
	// metrics sink.
	Stats() map[string]int64
}

// Factory constructs a new Converter instance for one schema name.
type Factory func() Converter
