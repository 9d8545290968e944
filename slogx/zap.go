package slogx

import (
	"context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"log/slog"
	"runtime"
)

var _ slog.Handler = (*ZapHandler)(nil)

// ZapHandler is a [slog.Handler] that writes to a [zapcore.Core].
// Groups are flattened into dotted key prefixes, so "group.key" is written for a key in a group.
type ZapHandler struct {
	core  zapcore.Core
	group string
}

// NewZapHandler creates a [ZapHandler] writing to the core of logger.
func NewZapHandler(logger *zap.Logger) *ZapHandler {
	if logger == nil {
		panic("nil zap logger")
	}
	return &ZapHandler{core: logger.Core()}
}

func (z *ZapHandler) prefix() string {
	if len(z.group) == 0 {
		return ""
	}
	return z.group + "."
}

func (z *ZapHandler) Enabled(_ context.Context, level slog.Level) bool {
	return z.core.Enabled(zapLevel(level))
}

func (z *ZapHandler) Handle(_ context.Context, record slog.Record) error {
	ent := zapcore.Entry{
		Level:   zapLevel(record.Level),
		Time:    record.Time,
		Message: record.Message,
	}
	if record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		ent.Caller = zapcore.NewEntryCaller(frame.PC, frame.File, frame.Line, true)
		ent.Caller.Function = frame.Function
	}
	ce := z.core.Check(ent, nil)
	if ce == nil {
		return nil
	}
	fields := make([]zapcore.Field, 0, record.NumAttrs())
	prefix := z.prefix()
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, prefix, attr)
		return true
	})
	ce.Write(fields...)
	return nil
}

func (z *ZapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return z
	}
	var (
		fields []zapcore.Field
		prefix = z.prefix()
	)
	for _, attr := range attrs {
		fields = appendFields(fields, prefix, attr)
	}
	return &ZapHandler{
		core:  z.core.With(fields),
		group: z.group,
	}
}

func (z *ZapHandler) WithGroup(name string) slog.Handler {
	if len(name) == 0 {
		return z
	}
	return &ZapHandler{
		core:  z.core,
		group: z.prefix() + name,
	}
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level < slog.LevelInfo:
		return zapcore.DebugLevel
	case level < slog.LevelWarn:
		return zapcore.InfoLevel
	case level < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func appendFields(fields []zapcore.Field, prefix string, attr slog.Attr) []zapcore.Field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return fields
	}
	key := prefix + attr.Key
	val := attr.Value
	switch val.Kind() {
	case slog.KindGroup:
		groupPrefix := prefix
		if len(attr.Key) > 0 {
			groupPrefix = key + "."
		}
		for _, member := range val.Group() {
			fields = appendFields(fields, groupPrefix, member)
		}
		return fields
	case slog.KindBool:
		return append(fields, zap.Bool(key, val.Bool()))
	case slog.KindDuration:
		return append(fields, zap.Duration(key, val.Duration()))
	case slog.KindFloat64:
		return append(fields, zap.Float64(key, val.Float64()))
	case slog.KindInt64:
		return append(fields, zap.Int64(key, val.Int64()))
	case slog.KindString:
		return append(fields, zap.String(key, val.String()))
	case slog.KindTime:
		return append(fields, zap.Time(key, val.Time()))
	case slog.KindUint64:
		return append(fields, zap.Uint64(key, val.Uint64()))
	}
	if err, ok := val.Any().(error); ok {
		return append(fields, zap.NamedError(key, err))
	}
	return append(fields, zap.Any(key, val.Any()))
}
