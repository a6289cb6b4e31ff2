package schema

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/epics-kafka/forwarder/pkg/pv"
)

// f142Envelope is a JSON framing of a scalar PV value: channel, value,
// alarm string, and the monitor timestamp in nanoseconds. Deployments that
// need a binary flat-buffer layout register their own factory under a
// different schema name; this converter keeps the same field shape in JSON
// so a consumer can decode the update with nothing but a JSON parser.
type f142Envelope struct {
	Channel       string  `json:"channel"`
	Value         float64 `json:"value"`
	Alarm         string  `json:"alarm,omitempty"`
	TimestampNano int64   `json:"timestamp_ns"`
}

// F142Converter converts pv.Update into f142Envelope JSON.
type F142Converter struct {
	converted int64
	failed    int64

	mu     sync.Mutex
	lastTS int64
}

// NewF142Converter builds an F142Converter. It satisfies schema.Factory.
func NewF142Converter() Converter {
	return &F142Converter{}
}

func (c *F142Converter) Convert(u pv.Update) (FramedMessage, error) {
	env := f142Envelope{
		Channel:       u.Channel,
		Value:         u.Value.Double,
		Alarm:         u.Value.Alarm,
		TimestampNano: u.TimestampNanos(),
	}

	payload, err := json.Marshal(env)
	if err != nil {
		atomic.AddInt64(&c.failed, 1)
		return FramedMessage{}, &ConversionError{Schema: "f142", Channel: u.Channel, Err: err}
	}

	atomic.AddInt64(&c.converted, 1)
	c.mu.Lock()
	c.lastTS = env.TimestampNano
	c.mu.Unlock()

	return FramedMessage{Payload: payload, Schema: "f142"}, nil
}

func (c *F142Converter) Stats() map[string]int64 {
	c.mu.Lock()
	lastTS := c.lastTS
	c.mu.Unlock()
	return map[string]int64{
		"converted":    atomic.LoadInt64(&c.converted),
		"failed":       atomic.LoadInt64(&c.failed),
		"last_ts_nano": lastTS,
	}
}

var _ Converter = (*F142Converter)(nil)
