// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides general-purpose leveled logging (component
// startup, load warnings, regex-compile failures) plus the per-request
// structured audit record and its sinks (§4.7, SPEC_FULL §4.7).
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps log/slog, the same backend the teacher's other packages
// call into via package-level Info/Warn/Error/Debug.
type Logger struct {
	logger *slog.Logger
}

// NewLogger builds a Logger writing leveled JSON lines to w.
func NewLogger(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler)}
}

func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// With returns a Logger that always includes the given key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

var defaultLogger = NewLogger(os.Stderr, slog.LevelInfo)

// SetDefault replaces the package-level logger used by Info/Warn/Error/Debug.
func SetDefault(l *Logger) { defaultLogger = l }

// Default returns the package-level logger.
func Default() *Logger { return defaultLogger }

// Info, Warn, Error, and Debug log through the package-level default
// Logger, mirroring the teacher's logging.Info/Warn/Error package-level
// call convention used throughout its other internal packages.
func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
