package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the path to the log file. Empty means no file logging.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep (default: 5).
	MaxFiles int
	// WriteToStderr whether to also write to stderr (default: true).
	WriteToStderr bool
}

// DefaultConfig logs info and above to stderr only.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig adds debug-level file logging to DefaultConfig.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.FilePath = DefaultLogPath()
	return cfg
}

// Setup builds a logger for cfg and returns it with a cleanup function that
// flushes and closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg Config, stderr *os.File) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	cleanup := func() {}

	if cfg.FilePath == "" {
		if !cfg.WriteToStderr {
			return slog.New(slog.NewJSONHandler(io.Discard, opts)), cleanup, nil
		}
		if isTerminal(stderr) {
			return slog.New(slog.NewTextHandler(stderr, opts)), cleanup, nil
		}
		return slog.New(slog.NewJSONHandler(stderr, opts)), cleanup, nil
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	// File logs are always JSON; stderr mirrors the same lines.
	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, stderr)
	}

	cleanup = func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return slog.New(slog.NewJSONHandler(output, opts)), cleanup, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
