// internal/logger/interface.go

package logger

// Logger defines the interface for all log destination implementations.
type Logger interface {
	// Log processes and sends a single log record.
	// The record is provided as a map, representing the fully enriched
	// internal representation before destination-specific formatting.
	Log(record map[string]interface{}) error

	// Close releases the destination's connection. It should be called
	// during application shutdown.
	Close() error

	// Name returns the unique name of the logger instance (from config).
	Name() string
}
