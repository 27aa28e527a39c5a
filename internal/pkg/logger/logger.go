// Package logger owns the process-wide zap logger. It splits stdout and
// stderr by severity, rotates the file sink with lumberjack, and redirects
// both the stdlib log package and slog into the same stream so every line
// the process emits carries the same fields.
package logger

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level = zapcore.Level

const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelWarn  = zapcore.WarnLevel
	LevelError = zapcore.ErrorLevel
	LevelFatal = zapcore.FatalLevel
)

var (
	mu         sync.RWMutex
	root       *zap.Logger
	rootSugar  *zap.SugaredLogger
	undoStdLog func()
	bootOnce   sync.Once
)

// InitBootstrap installs a console logger for the window before configuration
// is loaded. Init replaces it once the real options are known.
func InitBootstrap() {
	bootOnce.Do(func() {
		if err := Init(bootstrapOptions()); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "logger bootstrap failed: %v\n", err)
		}
	})
}

// Init builds the logger from options and swaps it in as the process default.
// Safe to call again to reconfigure; the previous logger is flushed.
func Init(options InitOptions) error {
	options = options.withDefaults()
	zl, err := options.build()
	if err != nil {
		return err
	}

	mu.Lock()
	prev := root
	root = zl
	rootSugar = zl.Sugar()
	redirectStdLogLocked()
	slog.SetDefault(slog.New(newSlogBridge(root.Named("slog"))))
	mu.Unlock()

	if prev != nil {
		_ = prev.Sync()
	}
	return nil
}

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return zap.NewNop()
	}
	return root
}

func S() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if rootSugar == nil {
		return zap.NewNop().Sugar()
	}
	return rootSugar
}

func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

func redirectStdLogLocked() {
	if undoStdLog != nil {
		undoStdLog()
		undoStdLog = nil
	}
	log.SetFlags(0)
	log.SetPrefix("")
	undo, err := zap.RedirectStdLogAt(root.Named("stdlog"), zap.InfoLevel)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger stdlog redirect failed: %v\n", err)
		return
	}
	undoStdLog = undo
}

func (o InitOptions) build() (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(o.Level))
	enc := o.encoder()

	var cores []zapcore.Core
	if o.Output.ToStdout {
		cores = append(cores, consoleCores(enc, level)...)
	}
	if o.Output.ToFile {
		fileCore, err := o.fileCore(enc, level)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "time=%s level=WARN msg=\"log file unavailable, writing to stdout only\" path=%s err=%v\n",
				time.Now().Format(time.RFC3339Nano), o.Output.FilePath, err)
		} else {
			cores = append(cores, fileCore)
		}
	}
	if len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level))
	}

	core := zapcore.NewTee(cores...)
	if o.Sampling.Enabled {
		core = zapcore.NewSamplerWithOptions(core, time.Second, o.Sampling.Initial, o.Sampling.Thereafter)
	}

	zapOpts := []zap.Option{zap.AddCallerSkip(1)}
	if o.Caller {
		zapOpts = append(zapOpts, zap.AddCaller())
	}
	if st := parseStacktraceLevel(o.StacktraceLevel); st <= zapcore.FatalLevel {
		zapOpts = append(zapOpts, zap.AddStacktrace(st))
	}

	return zap.New(core, zapOpts...).With(
		zap.String("service", o.ServiceName),
		zap.String("env", o.Environment),
	), nil
}

func (o InitOptions) encoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if o.Format == "console" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// consoleCores routes warn and above to stderr and everything else to stdout.
func consoleCores(enc zapcore.Encoder, level zap.AtomicLevel) []zapcore.Core {
	below := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level.Level() && lvl < zapcore.WarnLevel
	})
	above := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level.Level() && lvl >= zapcore.WarnLevel
	})
	return []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), below),
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), above),
	}
}

func (o InitOptions) fileCore(enc zapcore.Encoder, level zap.AtomicLevel) (zapcore.Core, error) {
	if err := os.MkdirAll(filepath.Dir(o.Output.FilePath), 0o755); err != nil {
		return nil, err
	}
	sink := &lumberjack.Logger{
		Filename:   o.Output.FilePath,
		MaxSize:    o.Rotation.MaxSizeMB,
		MaxBackups: o.Rotation.MaxBackups,
		MaxAge:     o.Rotation.MaxAgeDays,
		Compress:   o.Rotation.Compress,
		LocalTime:  o.Rotation.LocalTime,
	}
	return zapcore.NewCore(enc, zapcore.AddSync(sink), level), nil
}

func parseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// parseStacktraceLevel maps "none" above Fatal so stacktraces are never
// attached.
func parseStacktraceLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "none":
		return LevelFatal + 1
	case "fatal":
		return LevelFatal
	default:
		return LevelError
	}
}

type contextKey struct{}

// IntoContext attaches a request-scoped logger so handlers and middleware
// downstream share its fields.
func IntoContext(ctx context.Context, l *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if l == nil {
		l = L()
	}
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored by IntoContext, or the process
// logger when the context carries none.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(contextKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return L()
}
