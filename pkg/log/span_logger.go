package log

var _ Logger = &SpanLogger{}

// SpanLogger forwards entries to a wrapped Logger, tagging them with trace and
// span IDs, and records each one on the span. Error and Fatal entries mark the
// span as failed.
type SpanLogger struct {
	lg  Logger
	ser SpanEventRecorder
}

func NewSpanLogger(lg Logger, ser SpanEventRecorder) Logger {
	return &SpanLogger{lg: lg.AddCallerSkip(1), ser: ser}
}

func (sl *SpanLogger) Debug(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.eventAttrs(LevelDebug, keysAndValues)...)
	sl.lg.Debug(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl *SpanLogger) Info(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.eventAttrs(LevelInfo, keysAndValues)...)
	sl.lg.Info(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl *SpanLogger) Warn(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.eventAttrs(LevelWarn, keysAndValues)...)
	sl.lg.Warn(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl *SpanLogger) Error(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.eventAttrs(LevelError, keysAndValues)...)
	sl.lg.Error(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl *SpanLogger) Fatal(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.eventAttrs(LevelFatal, keysAndValues)...)
	sl.lg.Fatal(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl *SpanLogger) WithKV(key string, value any) Logger {
	return &SpanLogger{lg: sl.lg.WithKV(key, value), ser: sl.ser}
}

func (sl *SpanLogger) GetAllKV() []any { return sl.lg.GetAllKV() }

func (sl *SpanLogger) WithName(name string) Logger {
	return &SpanLogger{lg: sl.lg.WithName(name), ser: sl.ser}
}

func (sl *SpanLogger) Name() string { return sl.lg.Name() }

func (sl *SpanLogger) AddCallerSkip(skip int) Logger {
	return &SpanLogger{lg: sl.lg.AddCallerSkip(skip), ser: sl.ser}
}

func (sl *SpanLogger) withTraceIDs(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)+4)
	out = append(out, "traceId", sl.ser.TraceID(), "spanId", sl.ser.SpanID())
	return append(out, keysAndValues...)
}

// eventAttrs carries the level, component name and persistent pairs, since a
// span event has no other place to keep them.
func (sl *SpanLogger) eventAttrs(level Level, keysAndValues []any) []any {
	persistent := sl.lg.GetAllKV()
	out := make([]any, 0, 4+len(persistent)+len(keysAndValues))
	out = append(out, "level", string(level), "component", sl.lg.Name())
	out = append(out, persistent...)
	return append(out, keysAndValues...)
}
