package logger

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file written inside the cache directory.
const FileName = "taigo.log"

// Config describes where and how verbosely to log.
// Level accepts debug/info/warn/error; an empty level means info.
type Config struct {
	Level string
	Path  string
}

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}

// New creates a logger writing to a size-rotated file at cfg.Path.
// The returned closer releases the file.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Path == "" {
		return nil, nil, errors.New("log path is not set")
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler), writer, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
