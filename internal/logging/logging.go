package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	multi "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rickgao/irc-ingest/internal/config"
)

// Logger bundles the logger with its runtime level and rotating file.
type Logger struct {
	*slog.Logger

	// Level can be changed while running
	Level *slog.LevelVar

	file *lumberjack.Logger
}

// ParseLevel converts a config level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New creates a logger writing text to console and, if cfg.File is set, JSON to
// a lumberjack-rotated file.
func New(cfg config.LoggingConfig, console io.Writer) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := &Logger{Level: &slog.LevelVar{}}
	l.Level.Set(level)

	opts := &slog.HandlerOptions{Level: l.Level}
	handlers := []slog.Handler{slog.NewTextHandler(console, opts)}

	if cfg.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		handlers = append(handlers, slog.NewJSONHandler(l.file, opts))
	}

	l.Logger = slog.New(multi.Fanout(handlers...))
	return l, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
