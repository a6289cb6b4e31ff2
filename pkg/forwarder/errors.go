package forwarder

import "fmt"

// Supervisor-level error types, distinguishable with errors.As. Other
// failure kinds have their types in the package that raises them
// (command.ParseError, pv.ClientInitError, schema.ConversionError,
// broker.ProduceError, broker.InstanceFailureError); queue-full drops and
// client runtime failures are counted and logged rather than returned.

// ConfigError is raised at startup for malformed or missing configuration;
// startup aborts on it. config.Error covers the file-loading path; this
// type is returned by New's own construction-time checks, such as a
// command topic URI with no topic segment.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("forwarder: config error: %s", e.Reason) }

// MappingAddError reports why one AddMapping call failed: missing schema,
// invalid topic, or client init failure. Other specs in the same "add"
// batch proceed regardless.
type MappingAddError struct {
	Channel string
	Reason  string
	Err     error
}

func (e *MappingAddError) Error() string {
	return fmt.Sprintf("forwarder: addMapping failed for channel %q: %s: %v", e.Channel, e.Reason, e.Err)
}

func (e *MappingAddError) Unwrap() error { return e.Err }

// SchemaNotFoundError is the specific MappingAddError reason for an
// unregistered schema name.
type SchemaNotFoundError struct {
	Schema string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("forwarder: schema %q not found in registry", e.Schema)
}
