// Package log is the structured logger used across matchnode.
//
// Components receive a Logger explicitly and derive named children from it:
//
//	logger := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelInfo})
//	invokerLog := logger.WithName("invoker").WithKV("contract", contractID)
//
// A logger can travel in a context. SetContextLogger wraps it in a SpanLogger
// when the context carries a recording OpenTelemetry span, so every entry is
// also attached to the span as an event:
//
//	ctx, span := tracer.Start(ctx, "invoke get_session")
//	ctx = log.SetContextLogger(ctx, logger)
//	log.FromContext(ctx).Debug("simulated", "minResourceFee", fee)
//
// Tests use NewNoopLogger, or logtest.Recorder when they assert on entries.
//
// Config is read from the environment with cleanenv tags:
//
//   - LOG_FORMAT: console, logfmt or json
//   - LOG_LEVEL: debug, info, warn, error or fatal
//   - LOG_OUTPUT: stderr, stdout or a file path
package log
