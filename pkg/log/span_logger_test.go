package log_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
)

type mockEntry struct {
	level log.Level
	msg   string
	kv    []any
}

type mockLogger struct {
	last       mockEntry
	name       string
	kv         []any
	callerSkip int
}

func (m *mockLogger) record(level log.Level, msg string, kv ...any) {
	m.last = mockEntry{level: level, msg: msg, kv: append(append([]any{}, m.kv...), kv...)}
}

func (m *mockLogger) Debug(msg string, kv ...any) { m.record(log.LevelDebug, msg, kv...) }
func (m *mockLogger) Info(msg string, kv ...any)  { m.record(log.LevelInfo, msg, kv...) }
func (m *mockLogger) Warn(msg string, kv ...any)  { m.record(log.LevelWarn, msg, kv...) }
func (m *mockLogger) Error(msg string, kv ...any) { m.record(log.LevelError, msg, kv...) }
func (m *mockLogger) Fatal(msg string, kv ...any) { m.record(log.LevelFatal, msg, kv...) }
func (m *mockLogger) GetAllKV() []any             { return m.kv }
func (m *mockLogger) Name() string                { return m.name }

func (m *mockLogger) WithKV(key string, v any) log.Logger {
	m.kv = append(m.kv, key, v)
	return m
}

func (m *mockLogger) WithName(name string) log.Logger {
	m.name = name
	return m
}

func (m *mockLogger) AddCallerSkip(skip int) log.Logger {
	m.callerSkip += skip
	return m
}

type mockRecorder struct {
	hasErr bool
	name   string
	kv     []any
}

func (r *mockRecorder) TraceID() string { return "trace-1" }
func (r *mockRecorder) SpanID() string  { return "span-1" }

func (r *mockRecorder) RecordEvent(name string, kv ...any) {
	r.name, r.kv = name, kv
}

func (r *mockRecorder) RecordError(name string, kv ...any) {
	r.hasErr = true
	r.name, r.kv = name, kv
}

func kvMap(kv []any) map[string]any {
	out := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out[k] = kv[i+1]
		}
	}
	return out
}

func TestSpanLogger(t *testing.T) {
	ml := &mockLogger{name: "rpc"}
	rec := &mockRecorder{}
	logger := log.NewSpanLogger(ml, rec)
	assert.Equal(t, 1, ml.callerSkip)

	logger = logger.WithKV("connectionID", "c-1")

	t.Run("info goes to both sinks", func(t *testing.T) {
		logger.Info("sign_claim", "fid", 42)

		assert.Equal(t, log.LevelInfo, ml.last.level)
		logged := kvMap(ml.last.kv)
		assert.Equal(t, "trace-1", logged["traceId"])
		assert.Equal(t, "span-1", logged["spanId"])
		assert.Equal(t, 42, logged["fid"])
		assert.Equal(t, "c-1", logged["connectionID"])

		assert.Equal(t, "sign_claim", rec.name)
		event := kvMap(rec.kv)
		assert.Equal(t, "info", event["level"])
		assert.Equal(t, "rpc", event["component"])
		assert.Equal(t, "c-1", event["connectionID"])
		assert.False(t, rec.hasErr)
	})

	t.Run("error marks the span", func(t *testing.T) {
		logger.Error("recovery failed")
		assert.Equal(t, log.LevelError, ml.last.level)
		assert.True(t, rec.hasErr)
	})

	t.Run("naming passes through", func(t *testing.T) {
		assert.Equal(t, "store", logger.WithName("store").Name())
	})
}
