package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the global logger's output shape and level.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `conf:"level" yaml:"level" json:"level"`
	// JSON selects JSON encoding over a human-readable console encoder.
	JSON bool `conf:"json" yaml:"json" json:"json"`
}

// Logger wraps a zap.Logger with a chain of context-aware hooks.
type Logger struct {
	mu    sync.RWMutex
	zap   *zap.Logger
	level zap.AtomicLevel
	hooks []Hook
}

func New(cfg Config) *Logger {
	level := zap.NewAtomicLevel()

	switch cfg.Level {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "warn":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.JSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)

	return &Logger{
		zap:   zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		level: level,
	}
}

// AddHook registers a hook run on every call; its output fields are appended
// after the caller's own fields.
func (l *Logger) AddHook(hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, hook)
}

func (l *Logger) runHooks(ctx context.Context, msg string, fields []Field) []Field {
	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	for _, h := range hooks {
		fields = h.Apply(ctx, msg, fields...)
	}

	return fields
}

func (l *Logger) zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.zap())
	}

	return out
}

func (l *Logger) DebugEnabled(context.Context) bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	fields = l.runHooks(ctx, msg, fields)
	l.zap.Debug(msg, l.zapFields(fields)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	fields = l.runHooks(ctx, msg, fields)
	l.zap.Info(msg, l.zapFields(fields)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	fields = l.runHooks(ctx, msg, fields)
	l.zap.Warn(msg, l.zapFields(fields)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	fields = l.runHooks(ctx, msg, fields)
	l.zap.Error(msg, l.zapFields(fields)...)
}

func (l *Logger) Sync() error {
	return l.zap.Sync()
}

var (
	globalMu     sync.RWMutex
	globalLogger = New(Config{Level: "info"})
)

// SetGlobalConfig replaces the process-wide default logger.
func SetGlobalConfig(cfg Config) *Logger {
	l := New(cfg)

	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()

	return l
}

// GetGlobalLogger returns the process-wide default logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	return globalLogger
}

func Debug(ctx context.Context, msg string, fields ...Field) { GetGlobalLogger().Debug(ctx, msg, fields...) }
func Info(ctx context.Context, msg string, fields ...Field)  { GetGlobalLogger().Info(ctx, msg, fields...) }
func Warn(ctx context.Context, msg string, fields ...Field)  { GetGlobalLogger().Warn(ctx, msg, fields...) }
func Error(ctx context.Context, msg string, fields ...Field) { GetGlobalLogger().Error(ctx, msg, fields...) }

func DebugEnabled(ctx context.Context) bool { return GetGlobalLogger().DebugEnabled(ctx) }
