package slogx

import (
	"errors"
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"io"
	"log/slog"
	"strings"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatZap  = "zap"
)

var (
	ErrUnknownFormat = errors.New("unknown log format")
	ErrUnknownLevel  = errors.New("unknown log level")
)

// NewHandler creates a [slog.Handler] writing to w in one of [FormatText], [FormatJSON], or [FormatZap].
// Records below level are discarded.
func NewHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText, "":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	case FormatZap:
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			zap.NewAtomicLevelAt(zapLevel(level)),
		)
		return NewZapHandler(zap.New(core)), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownFormat, format)
	}
}

// ParseLevel parses a level name like "debug" or "WARN", as well as offsets like "info+2".
func ParseLevel(level string) (slog.Level, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: '%s'", ErrUnknownLevel, level)
	}
	return parsed, nil
}
