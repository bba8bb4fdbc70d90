package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kataras/golog"
)

const timeFormat = "2006-01-02 15:04:05"

// Options controls where and how verbosely the relay logs.
type Options struct {
	Level string
	// File, when set, receives a copy of everything written to stderr.
	File string
}

// New builds a logger writing to stderr and, optionally, to a log file.
// The returned close func releases the file handle.
func New(opts Options) (*golog.Logger, func() error, error) {
	level, err := normalizeLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	logger := golog.New()
	logger.SetTimeFormat(timeFormat)
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)

	closeFn := func() error { return nil }
	if path := strings.TrimSpace(opts.File); path != "" {
		f, err := openLogFile(path)
		if err != nil {
			return nil, nil, err
		}
		logger.AddOutput(f)
		closeFn = f.Close
	}
	return logger, closeFn, nil
}

// Discard returns a logger that drops everything, for tests and library callers.
func Discard() *golog.Logger {
	logger := golog.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel("disable")
	return logger
}

func normalizeLevel(v string) (string, error) {
	level := strings.ToLower(strings.TrimSpace(v))
	switch level {
	case "":
		return "info", nil
	case "warning":
		return "warn", nil
	case "debug", "info", "warn", "error", "fatal", "disable":
		return level, nil
	default:
		return "", fmt.Errorf("invalid log level %q (expected debug|info|warn|error|fatal|disable)", v)
	}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
