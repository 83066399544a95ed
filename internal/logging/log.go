// Package logging wraps the standard logger with an optional rotating log file
// and verbose-only debug output.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/menta2k/border-trim/internal/config"
)

var verbose atomic.Bool

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup points the standard logger at stderr or, when cfg.File is set, at a
// rotating log file. The returned closer releases the file and is a no-op for stderr.
func Setup(cfg config.LogConfig, debug bool) (io.Closer, error) {
	verbose.Store(debug)

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   cfg.Compress,
	}
	log.SetOutput(lj)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	return lj, nil
}

// SetVerbose toggles Debug output
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Verbose reports whether Debug output is enabled
func Verbose() bool {
	return verbose.Load()
}

// Printf calls the standard log.Printf()
func Printf(format string, v ...interface{}) {
	log.Output(2, fmt.Sprintf(format, v...))
}

// Debugf logs with a [DEBUG] prefix when verbose output is enabled
func Debugf(format string, v ...interface{}) {
	if !verbose.Load() {
		return
	}
	log.Output(2, "[DEBUG] "+fmt.Sprintf(format, v...))
}
