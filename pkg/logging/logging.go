// Package logging provides the structured logger used across kubeportald.
//
// It wraps log/slog with a "subsystem" attribute so every log line can be
// traced back to the component that emitted it (forward manager, a named
// forwarder, the Kubernetes access cache, a transport) without each call
// site having to spell out a logger name.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Level mirrors slog.Level with the names used in kubeportald's settings file.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a settings string ("debug", "info", "warn", "error")
// into a Level, defaulting to LevelInfo for unknown values.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defaultLogger *slog.Logger

// Init configures the process-wide logger. Call once at daemon startup.
func Init(level Level, output io.Writer) {
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func init() {
	// Sensible default so library code and early-startup logging never
	// crashes on a nil logger if Init hasn't run yet (e.g. in tests).
	Init(LevelInfo, os.Stderr)
}

func logAttrs(level Level, subsystem string, err error, messageFmt string, args ...any) {
	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}
	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	defaultLogger.LogAttrs(context.Background(), level.slogLevel(), msg, attrs...)
}

// Debug logs a debug-level message scoped to subsystem.
func Debug(subsystem, messageFmt string, args ...any) {
	logAttrs(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an info-level message scoped to subsystem.
func Info(subsystem, messageFmt string, args ...any) {
	logAttrs(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning-level message scoped to subsystem.
func Warn(subsystem, messageFmt string, args ...any) {
	logAttrs(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error-level message scoped to subsystem, attaching err.
func Error(subsystem string, err error, messageFmt string, args ...any) {
	logAttrs(LevelError, subsystem, err, messageFmt, args...)
}
