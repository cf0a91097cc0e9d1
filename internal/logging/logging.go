package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
)

var (
	mu       sync.RWMutex
	disabled = false
	verbose  = false
	logger   = log.New(os.Stderr, "", log.LstdFlags)
)

// Disable turns off all logging, including component loggers created
// afterwards.
func Disable() {
	mu.Lock()
	disabled = true
	mu.Unlock()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// SetVerbose toggles Debug output.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// SetOutput redirects the package logger and the default slog handler.
// Report output stays on stdout; logs go to w (stderr unless changed).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", log.LstdFlags)
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Component returns a structured logger tagged with a component name.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

func enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return !disabled
}

func debugEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return !disabled && verbose
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	if enabled() {
		logger.Printf(format, v...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	if enabled() {
		logger.Printf("ERROR "+format, v...)
	}
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	if enabled() {
		logger.Printf("WARN "+format, v...)
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	if debugEnabled() {
		logger.Printf("DEBUG "+format, v...)
	}
}
