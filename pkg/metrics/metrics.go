package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Topic handle counters
	Produced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_produced_total",
			Help: "Total number of messages accepted by the broker client for production",
		},
		[]string{"topic"},
	)

	ProduceFail = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_produce_fail_total",
			Help: "Total number of messages synchronously rejected on produce",
		},
		[]string{"topic"},
	)

	ProduceCallback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_produce_cb_total",
			Help: "Total number of successful delivery callbacks",
		},
		[]string{"topic"},
	)

	ProduceCallbackFail = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_produce_cb_fail_total",
			Help: "Total number of failed delivery callbacks",
		},
		[]string{"topic"},
	)

	LocalQueueFull = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_local_queue_full_total",
			Help: "Total number of updates dropped because a per-channel queue was full",
		},
		[]string{"channel"},
	)

	ConversionQueueFull = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_conversion_queue_full_total",
			Help: "Total number of updates dropped because the conversion worker pool's task queue was full",
		},
		[]string{"channel"},
	)

	BrokerQueueFull = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_broker_queue_full_total",
			Help: "Total number of produce calls synchronously rejected because a broker instance's internal output queue was full",
		},
		[]string{"topic"},
	)

	MsgTooLarge = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_msg_too_large_total",
			Help: "Total number of messages rejected for exceeding the broker's max message size",
		},
		[]string{"topic"},
	)

	ProducedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_produced_bytes_total",
			Help: "Total bytes accepted for production",
		},
		[]string{"topic"},
	)

	OutQueue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forwarder_out_queue",
			Help: "Number of messages waiting in a broker instance's internal output queue",
		},
		[]string{"instance"},
	)

	PollServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_poll_served_total",
			Help: "Total number of delivery events served by a broker instance's poll loop",
		},
		[]string{"instance"},
	)

	// Conversion metrics
	ConversionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_conversion_errors_total",
			Help: "Total number of converter failures",
		},
		[]string{"schema"},
	)

	ConversionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forwarder_conversion_duration_seconds",
			Help:    "Time taken to run one converter invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"schema"},
	)

	// Stream / Stream Set metrics
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forwarder_streams_active",
			Help: "Current number of active streams",
		},
	)

	ChannelRuntimeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_channel_runtime_errors_total",
			Help: "Total number of fatal PV client runtime errors by channel",
		},
		[]string{"channel"},
	)

	// Command listener metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_commands_total",
			Help: "Total number of commands processed by outcome",
		},
		[]string{"cmd", "outcome"},
	)

	MappingAddErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_mapping_add_errors_total",
			Help: "Total number of addMapping failures by reason",
		},
		[]string{"reason"},
	)

	// Broker pool metrics
	BrokerInstancesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forwarder_broker_instances_total",
			Help: "Current number of broker instances in the pool",
		},
	)

	BrokerInstanceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_broker_instance_failures_total",
			Help: "Total number of broker instances that transitioned to failed",
		},
		[]string{"instance"},
	)

	// Main loop metrics
	MainLoopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forwarder_main_loop_duration_seconds",
			Help:    "Time taken for one main loop tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	SlowMainLoopTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forwarder_slow_main_loop_total",
			Help: "Total number of main loop ticks that exceeded their budget",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Produced,
		ProduceFail,
		ProduceCallback,
		ProduceCallbackFail,
		LocalQueueFull,
		ConversionQueueFull,
		BrokerQueueFull,
		MsgTooLarge,
		ProducedBytes,
		OutQueue,
		PollServed,
		ConversionErrors,
		ConversionDuration,
		StreamsActive,
		ChannelRuntimeErrors,
		CommandsTotal,
		MappingAddErrors,
		BrokerInstancesTotal,
		BrokerInstanceFailures,
		MainLoopDuration,
		SlowMainLoopTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
