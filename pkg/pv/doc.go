// Package pv implements the process-variable client variants: a Client
// interface shared by a live subscriber (backed by an injected Connector)
// and a synthetic generator, plus the ChannelInfo and Update types that
// flow through the rest of the engine.
//
// This package does not ship a network stack for a real control-system
// provider (Channel Access or PV Access); Connector is the seam a real
// implementation would satisfy, and FakeProvider is the in-memory stand-in
// used by tests.
package pv
