package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithChannel creates a child logger scoped to one PV channel, used by the
// live/synthetic PV clients for their per-channel connection logging.
func WithChannel(channel string) zerolog.Logger {
	return Logger.With().Str("channel_name", channel).Logger()
}

// WithStream creates a child logger scoped to one Stream: its channel name
// plus the provider it was reached through, used for a Stream's own
// drain/status logging rather than the generic "forwarder" component logger.
func WithStream(channel, provider string) zerolog.Logger {
	return Logger.With().Str("channel_name", channel).Str("provider", provider).Logger()
}

// WithBrokerInstance creates a child logger scoped to one Broker Client
// Pool instance, tagged with the "broker" component and its instance id.
func WithBrokerInstance(instanceID string) zerolog.Logger {
	return WithComponent("broker").With().Str("broker_instance", instanceID).Logger()
}
