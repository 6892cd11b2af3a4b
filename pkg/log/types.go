package log

// Logger is the structured logger used across the service.
// keysAndValues are alternating keys and values, e.g. "address", addr.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Fatal logs and terminates the process for production implementations.
	Fatal(msg string, keysAndValues ...any)

	// WithKV returns a logger that attaches key and value to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the key-value pairs attached with WithKV.
	GetAllKV() []any
	// WithName returns a logger scoped to the named component.
	WithName(name string) Logger
	Name() string
	// AddCallerSkip returns a logger reporting a caller that many frames further up.
	AddCallerSkip(skip int) Logger
}

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// SpanEventRecorder mirrors log entries onto a tracing span.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string
	RecordEvent(name string, keysAndValues ...any)
	RecordError(name string, keysAndValues ...any)
}
