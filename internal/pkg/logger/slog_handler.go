package logger

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// slogBridge routes log/slog records into the zap logger, so packages that
// log via slog (services, coordinator) share one output stream and format.
type slogBridge struct {
	zl     *zap.Logger
	attrs  []slog.Attr
	groups []string
}

func newSlogBridge(zl *zap.Logger) slog.Handler {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &slogBridge{zl: zl}
}

func slogToZapLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level <= slog.LevelDebug:
		return LevelDebug
	default:
		return LevelInfo
	}
}

func (h *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return h.zl.Core().Enabled(slogToZapLevel(level))
}

func (h *slogBridge) Handle(_ context.Context, record slog.Record) error {
	fields := make([]zap.Field, 0, len(h.attrs)+record.NumAttrs()+1)
	fields = append(fields, zap.Time("time", record.Time))
	for _, attr := range h.attrs {
		fields = append(fields, bridgeField(h.groups, attr))
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, bridgeField(h.groups, attr))
		return true
	})

	if ce := h.zl.Check(slogToZapLevel(record.Level), record.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (h *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *slogBridge) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

// bridgeField converts one slog attr, flattening group prefixes into dotted
// keys the way the rest of the log stream names fields.
func bridgeField(groups []string, attr slog.Attr) zap.Field {
	if len(groups) > 0 {
		attr.Key = strings.Join(append(append([]string{}, groups...), attr.Key), ".")
	}
	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindBool:
		return zap.Bool(attr.Key, value.Bool())
	case slog.KindInt64:
		return zap.Int64(attr.Key, value.Int64())
	case slog.KindUint64:
		return zap.Uint64(attr.Key, value.Uint64())
	case slog.KindFloat64:
		return zap.Float64(attr.Key, value.Float64())
	case slog.KindDuration:
		return zap.Duration(attr.Key, value.Duration())
	case slog.KindTime:
		return zap.Time(attr.Key, value.Time())
	case slog.KindString:
		return zap.String(attr.Key, value.String())
	case slog.KindGroup:
		nested := make([]zap.Field, 0, len(value.Group()))
		for _, ga := range value.Group() {
			nested = append(nested, bridgeField(nil, ga))
		}
		return zap.Object(attr.Key, bridgeObject(nested))
	default:
		return zap.Any(attr.Key, value.Any())
	}
}

type bridgeObject []zap.Field

func (o bridgeObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for _, field := range o {
		field.AddTo(enc)
	}
	return nil
}
