// Package config implements the forwarder's config-file loader: a Config
// struct loaded from YAML via gopkg.in/yaml.v3 and validated with
// github.com/go-playground/validator/v10 struct tags, with cobra flag
// overrides layered on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/epics-kafka/forwarder/pkg/stream"
	"github.com/epics-kafka/forwarder/pkg/validate"
	"gopkg.in/yaml.v3"
)

// Config is the forwarder's whole configuration surface: broker
// connectivity, the command topic, worker pool sizing, timer periods, and
// any statically-configured Streams.
type Config struct {
	// Brokers is the default broker list used for the broker client pool
	// and the command listener's connection.
	Brokers []string `yaml:"brokers" validate:"required,min=1,dive,required"`

	// CommandTopic is the dedicated command topic URI,
	// "//host[:port]/topic" or a bare topic name.
	CommandTopic string `yaml:"command_topic" validate:"required"`

	// StatusReportURI names the status topic; empty disables status
	// publishing.
	StatusReportURI string `yaml:"status_report_uri"`

	// MetricsURI is the optional HTTP(S) line-protocol sink URL; empty
	// disables it.
	MetricsURI string `yaml:"metrics_uri"`

	BrokerPoolSize int `yaml:"broker_pool_size" validate:"required,min=1"`

	ConversionThreads         int `yaml:"conversion_threads" validate:"required,min=1"`
	ConversionWorkerQueueSize int `yaml:"conversion_worker_queue_size" validate:"required,min=1"`

	// ChannelQueueDepth bounds each Stream's per-channel update queue.
	ChannelQueueDepth int `yaml:"channel_queue_depth" validate:"required,min=1"`

	// MainPollIntervalMS is the supervisor main loop tick interval,
	// typically ~10ms.
	MainPollIntervalMS int `yaml:"main_poll_interval_ms" validate:"required,min=1"`

	// PeriodMS is the liveness re-emit period; 0 disables it.
	PeriodMS int `yaml:"period_ms" validate:"min=0"`

	// FakePVPeriodMS is the synthetic-update generation period; 0
	// disables it.
	FakePVPeriodMS int `yaml:"fake_pv_period_ms" validate:"min=0"`

	// Streams lists statically-configured stream specs applied at
	// startup, in addition to whatever the command listener later adds.
	Streams []stream.StreamSpec `yaml:"streams"`

	Log LogConfig `yaml:"log"`
}

// LogConfig mirrors pkg/log.Config for YAML loading.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// MainPollInterval returns the main loop tick interval as a Duration.
func (c *Config) MainPollInterval() time.Duration {
	return time.Duration(c.MainPollIntervalMS) * time.Millisecond
}

// Period returns the liveness re-emit period, or 0 if disabled.
func (c *Config) Period() time.Duration {
	return time.Duration(c.PeriodMS) * time.Millisecond
}

// FakePVPeriod returns the synthetic-update period, or 0 if disabled.
func (c *Config) FakePVPeriod() time.Duration {
	return time.Duration(c.FakePVPeriodMS) * time.Millisecond
}

// Load reads and parses a YAML config file at path, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated with sensible worker/queue sizes and
// a ~10ms poll interval; every other field must come from the file or CLI
// flag overrides.
func Default() *Config {
	return &Config{
		BrokerPoolSize:            2,
		ConversionThreads:         4,
		ConversionWorkerQueueSize: 1024,
		ChannelQueueDepth:         64,
		MainPollIntervalMS:        10,
		Log:                       LogConfig{Level: "info", JSON: true},
	}
}

// Validate runs struct-tag validation. A failure here aborts startup.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &Error{Fields: validate.FieldErrors(err), Err: err}
	}
	return nil
}

// Error wraps a config validation failure with the offending field set.
type Error struct {
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: validation failed: %v", e.Fields)
}

func (e *Error) Unwrap() error { return e.Err }
