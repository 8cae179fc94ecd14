// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"log/slog"
	"os"
)

// Logger is the process-wide logger. It starts as slog's default so
// packages can log before InitLogger runs (e.g. in tests).
var Logger = slog.Default()

// InitLogger initializes the global logger with appropriate log level
// Set APECHO_DEBUG=1 environment variable to enable debug logging
func InitLogger() {
	level := slog.LevelInfo // Default: only show Info, Warn, Error

	// Check for debug mode
	if os.Getenv("APECHO_DEBUG") != "" {
		level = slog.LevelDebug
	}

	// Program logs go to stderr so command output on stdout stays clean
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove time attribute for cleaner CLI output
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})

	Logger = slog.New(handler)
}

// Debug logs a debug message (only shown when APECHO_DEBUG is set)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs a program-level message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}
