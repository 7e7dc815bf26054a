// Package logging wraps log/slog with the store-aware destination
// selection described in SPEC_FULL.md: a rotating file under the
// control directory when one exists, stderr otherwise.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileName = "qipu.log"
	maxSizeMB   = 10
	maxBackups  = 3
)

// New returns a structured JSON logger. controlDir is the store's control
// directory (".qipu" or "qipu"); an empty string routes logs to stderr,
// which is the correct behavior before init() or during discover().
func New(controlDir string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(writer(controlDir), nil))
}

func writer(controlDir string) io.Writer {
	if controlDir == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(controlDir, logFileName),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     0,
		Compress:   false,
	}
}
