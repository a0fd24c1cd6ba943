package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// setupLog configures the default logger. Warnings and errors go to
// stderr; with debug enabled everything is also mirrored to logFile.
func setupLog(debug bool, logFile string) (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)
	if !debug {
		log.SetLevel(log.WarnLevel)
		return func() error { return nil }, nil
	}
	log.SetLevel(log.DebugLevel)

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetDefault(log.NewWithOptions(io.MultiWriter(os.Stderr, f), log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           log.DebugLevel,
	}))
	log.Debug("Debug log opened", "path", logFile)

	return f.Close, nil
}
