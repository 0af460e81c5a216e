package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
)

// Log is the process-wide structured logger. Init must run before use;
// packages fall back to slog.Default when it is nil.
var Log *slog.Logger

// Init sets up the global logger. Level is one of "debug", "info", "warn",
// "error" (default info). If file is non-empty, output goes to a
// size-rotated log file instead of stdout.
func Init(level, file string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		Log = slog.New(slog.NewTextHandler(rotator, opts))
		return
	}
	Log = slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// L returns the configured logger, or the default one when Init has not run
// (tests mostly rely on this path).
func L() *slog.Logger {
	if Log != nil {
		return Log
	}
	return slog.Default()
}
