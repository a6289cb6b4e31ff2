// Package convert implements conversion paths and the conversion worker
// pool: pairing a schema converter with a topic handle, and the fixed-size
// worker pool that executes those pairings against a bounded,
// fairly-dispatched task queue.
package convert
