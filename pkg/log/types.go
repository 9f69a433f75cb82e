package log

// Logger is a leveled, structured logger.
// keysAndValues are alternating keys and values, e.g. "sessionId", 12.
type Logger interface {
	// Debug logs diagnostic detail, such as lifecycle stage transitions.
	Debug(msg string, keysAndValues ...any)
	// Info logs routine progress.
	Info(msg string, keysAndValues ...any)
	// Warn logs a condition the caller recovered from.
	Warn(msg string, keysAndValues ...any)
	// Error logs a failure that needs attention.
	Error(msg string, keysAndValues ...any)
	// Fatal logs an unrecoverable failure. The zap implementation exits the process.
	Fatal(msg string, keysAndValues ...any)
	// WithKV returns a logger that appends key and value to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the pairs added through WithKV.
	GetAllKV() []any
	// WithName returns a logger with name appended to the dotted name hierarchy.
	WithName(name string) Logger
	// Name returns the dotted logger name.
	Name() string
	// AddCallerSkip returns a logger that skips skip more frames when reporting the caller.
	AddCallerSkip(skip int) Logger
}

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// SpanEventRecorder mirrors log entries into a trace span.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string
	// RecordEvent adds an event with keysAndValues as attributes.
	RecordEvent(name string, keysAndValues ...any)
	// RecordError adds an event and marks the span as failed.
	RecordError(name string, keysAndValues ...any)
}
