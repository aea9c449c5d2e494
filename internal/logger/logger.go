// Package logger builds the process logger: tint formatted records written
// to stderr and to a dated, append-only file in the log directory.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Logger owns the log file backing a *slog.Logger.
type Logger struct {
	*slog.Logger
	file *os.File
	path string
}

// Config controls where and how much is logged.
type Config struct {
	Dir   string
	Level string
	// Now is used to name the log file; defaults to time.Now.
	Now func() time.Time
	// Stderr is the console sink; defaults to os.Stderr.
	Stderr io.Writer
}

// New opens log_YYYY-MM-DD.log under cfg.Dir and returns a logger writing to
// it and to the console. Close must be called at process end.
func New(cfg Config) (*Logger, error) {
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(cfg.Dir, fmt.Sprintf("log_%s.log", now().Format(time.DateOnly)))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	h := tint.NewHandler(io.MultiWriter(stderr, f), &tint.Options{
		Level:      ParseLevel(cfg.Level),
		TimeFormat: time.DateTime,
		NoColor:    true,
	})

	return &Logger{
		Logger: slog.New(h),
		file:   f,
		path:   path,
	}, nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

// ParseLevel maps debug/info/warn/error to a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record. Used where no logger was
// supplied, mostly in tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
