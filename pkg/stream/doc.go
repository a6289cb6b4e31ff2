// Package stream implements the Stream and the Stream Set: the unit
// binding one PV client to an ordered list of conversion paths, and the
// channel-indexed collection of live Streams with concurrent add/lookup/
// remove and a periodic health sweep.
package stream
