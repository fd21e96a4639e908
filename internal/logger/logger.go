// Package logger provides a process-wide structured logger.
//
// The server speaks MCP over stdio in local mode, so all log output goes
// to stderr.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	log     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	verbose bool
)

// Setup configures the package logger. Format is "text" or "json".
func Setup(w io.Writer, format string, debug bool) {
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	defer mu.Unlock()
	log = slog.New(handler)
	verbose = debug
}

// SetVerbose toggles debug-level logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether debug logging is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

func logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debugf logs a formatted message at debug level. Messages are dropped
// unless verbose logging is enabled.
func Debugf(format string, args ...any) {
	if !IsVerbose() {
		return
	}
	logger().Debug(fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	logger().Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) {
	logger().Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	logger().Error(fmt.Sprintf(format, args...))
}
