package log

import (
	"os"
	"path/filepath"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = &ZapLogger{}

// Config selects the encoder, minimum level and destination of a ZapLogger.
type Config struct {
	Format string `env:"CLAIMSIGNER_LOG_FORMAT" env-default:"console" validate:"omitempty,oneof=console logfmt json"`
	Level  Level  `env:"CLAIMSIGNER_LOG_LEVEL" env-default:"info" validate:"omitempty,oneof=debug info warn error fatal"`
	Output string `env:"CLAIMSIGNER_LOG_OUTPUT" env-default:"stderr"` // stderr, stdout or a file path
}

// ZapLogger implements Logger on top of a zap SugaredLogger.
type ZapLogger struct {
	lg            *zap.SugaredLogger
	keysAndValues []any
}

// NewZapLogger builds a logger from conf. Entries are also copied to every
// extra writer, which tests use to capture output.
func NewZapLogger(conf Config, extraWriters ...zapcore.WriteSyncer) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}

	var encoder zapcore.Encoder
	switch conf.Format {
	case "logfmt":
		encoder = zaplogfmt.NewEncoder(encCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	writers := append(extraWriters, openOutput(conf.Output))
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), toZapLevel(conf.Level))

	// Skip log() and the exported level method.
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
	return &ZapLogger{lg: zl}
}

func openOutput(output string) zapcore.WriteSyncer {
	switch output {
	case "", "stderr":
		return zapcore.Lock(os.Stderr)
	case "stdout":
		return zapcore.Lock(os.Stdout)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return zapcore.Lock(os.Stderr)
	}
	file, err := os.OpenFile(output, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(file)
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) { l.log(LevelDebug, msg, keysAndValues...) }
func (l *ZapLogger) Info(msg string, keysAndValues ...any)  { l.log(LevelInfo, msg, keysAndValues...) }
func (l *ZapLogger) Warn(msg string, keysAndValues ...any)  { l.log(LevelWarn, msg, keysAndValues...) }
func (l *ZapLogger) Error(msg string, keysAndValues ...any) { l.log(LevelError, msg, keysAndValues...) }
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) { l.log(LevelFatal, msg, keysAndValues...) }

func (l *ZapLogger) log(level Level, msg string, keysAndValues ...any) {
	l.lg.Logw(toZapLevel(level), msg, keysAndValues...)
}

func (l *ZapLogger) WithKV(key string, value any) Logger {
	kv := make([]any, 0, len(l.keysAndValues)+2)
	kv = append(kv, l.keysAndValues...)
	return &ZapLogger{
		lg:            l.lg.With(key, value),
		keysAndValues: append(kv, key, value),
	}
}

func (l *ZapLogger) GetAllKV() []any { return l.keysAndValues }

// WithName appends name to the logger hierarchy, separated by dots.
func (l *ZapLogger) WithName(name string) Logger {
	return &ZapLogger{lg: l.lg.Named(name), keysAndValues: l.keysAndValues}
}

func (l *ZapLogger) Name() string { return l.lg.Desugar().Name() }

func (l *ZapLogger) AddCallerSkip(skip int) Logger {
	return &ZapLogger{lg: l.lg.WithOptions(zap.AddCallerSkip(skip)), keysAndValues: l.keysAndValues}
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
