// Package command implements the command listener and command protocol: a
// Sarama partition consumer bound to the dedicated command topic, JSON
// command parsing, and dispatch to a Dispatcher (the Forwarder) without
// this package needing to know how Streams are built.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/epics-kafka/forwarder/pkg/stream"
)

// Known command names.
const (
	CmdAdd         = "add"
	CmdStopChannel = "stop_channel"
	CmdStopAll     = "stop_all"
	CmdExit        = "exit"
)

// rawCommand mirrors the wire shape of every command document; only the
// fields relevant to Cmd are populated after parsing.
type rawCommand struct {
	Cmd     string              `json:"cmd"`
	Streams []stream.StreamSpec `json:"streams,omitempty"`
	Channel string              `json:"channel,omitempty"`
}

// ParseError reports malformed JSON or a missing "cmd" field. It is
// logged by the listener, never fatal.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("command: parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// parse decodes one command document from the wire.
func parse(data []byte) (rawCommand, error) {
	var cmd rawCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return rawCommand{}, &ParseError{Err: err}
	}
	if cmd.Cmd == "" {
		return rawCommand{}, &ParseError{Err: fmt.Errorf("missing \"cmd\" field")}
	}
	return cmd, nil
}

// Dispatcher is the subset of Forwarder the command listener drives.
// Implementations must not block, and an "add" failure for one spec must
// not abort the rest of the batch.
type Dispatcher interface {
	// AddMapping builds and adds a Stream for spec. A spec for a channel
	// that already has a Stream is a no-op and returns nil; any other
	// failure is returned as an error, which the listener logs before
	// continuing with the rest of the batch.
	AddMapping(spec stream.StreamSpec) error
	// StopChannel removes the Stream for channel, a no-op if absent.
	StopChannel(channel string)
	// StopAll removes every Stream.
	StopAll()
	// RequestStop raises the supervisor's stop bit, the effect of the
	// "exit" command.
	RequestStop()
}
