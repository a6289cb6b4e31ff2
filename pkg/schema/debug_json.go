package schema

import (
	"encoding/json"
	"sync/atomic"

	"github.com/epics-kafka/forwarder/pkg/pv"
)

// DebugJSONConverter dumps the full pv.Update verbatim as JSON, for
// operators wiring up a new channel mapping who want to see exactly what
// the PV client observed before committing to a real schema.
type DebugJSONConverter struct {
	converted int64
	failed    int64
}

// NewDebugJSONConverter builds a DebugJSONConverter. It satisfies
// schema.Factory.
func NewDebugJSONConverter() Converter {
	return &DebugJSONConverter{}
}

func (c *DebugJSONConverter) Convert(u pv.Update) (FramedMessage, error) {
	payload, err := json.Marshal(u)
	if err != nil {
		atomic.AddInt64(&c.failed, 1)
		return FramedMessage{}, &ConversionError{Schema: "debug-json", Channel: u.Channel, Err: err}
	}
	atomic.AddInt64(&c.converted, 1)
	return FramedMessage{Payload: payload, Schema: "debug-json"}, nil
}

func (c *DebugJSONConverter) Stats() map[string]int64 {
	return map[string]int64{
		"converted": atomic.LoadInt64(&c.converted),
		"failed":    atomic.LoadInt64(&c.failed),
	}
}

var _ Converter = (*DebugJSONConverter)(nil)
