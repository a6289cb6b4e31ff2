// Package log provides structured logging for the forwarder using zerolog.
//
// A single global Logger is configured once via Init and then specialized
// per component with WithComponent, per PV channel with WithChannel, per
// Stream with WithStream, and per Broker Client Pool instance with
// WithBrokerInstance, each of which returns a child zerolog.Logger carrying
// the relevant field(s). Output is JSON when JSONOutput is true; otherwise
// (the zero value, and the CLI's --log-json default) it is a
// human-readable console writer.
package log
