// Package logging wraps charmbracelet/log with level parsing, a package
// default and context propagation.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	defaultLogger     *log.Logger
	defaultLoggerOnce sync.Once
	defaultMu         sync.RWMutex
)

func getDefaultLogger() *log.Logger {
	defaultLoggerOnce.Do(func() {
		defaultMu.Lock()
		if defaultLogger == nil {
			defaultLogger = New("warn", os.Stderr)
		}
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// New creates a logger writing to w at the given level.
// Valid levels: "debug", "info", "warn", "error". Anything else means info.
func New(level string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "rbe",
		ReportTimestamp: false,
	})
	setLoggerLevel(logger, level)
	return logger
}

// NewFile creates a logger appending to the file at path, with timestamps.
// The returned closer closes the file.
func NewFile(level, path string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		Formatter:       log.LogfmtFormatter,
	})
	setLoggerLevel(logger, level)
	return logger, f, nil
}

// ParseLevel maps a level name to a log level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func setLoggerLevel(logger *log.Logger, level string) {
	logger.SetLevel(ParseLevel(level))
}

// Default returns the package-level default logger.
func Default() *log.Logger {
	return getDefaultLogger()
}

// SetDefault replaces the package-level default logger.
func SetDefault(logger *log.Logger) {
	getDefaultLogger()
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// SetLevel updates the level of the default logger.
func SetLevel(level string) {
	setLoggerLevel(getDefaultLogger(), level)
}
