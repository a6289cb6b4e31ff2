// Package metrics provides the forwarder's observability surface.
//
// It serves two distinct needs. First, an ambient, locally-scraped view
// of engine health: Prometheus collectors for the delivery-accounting
// counters (produced, produce_fail, local_queue_full, and friends) plus
// /metrics, /health, /ready, and /live HTTP handlers, in the same shape as
// any Prometheus-instrumented Go service. Second, an optional push-based
// external sink: InfluxSink posts periodic stats as
// InfluxDB line-protocol text to a configured URL, independent of whatever
// scrapes /metrics.
package metrics
