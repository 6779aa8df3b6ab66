package app

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Logger is the process-wide logging contract. The engine logs sparingly:
// auto-action failures, lock release problems and escalation activity.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// defaultLogger writes leveled lines to stderr
type defaultLogger struct {
	mu     sync.Mutex
	output io.Writer
}

func (l *defaultLogger) log(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.output, level+": "+format+"\n", args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.log("DEBUG", format, args...)
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.log("WARN", format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

var (
	loggerMu     sync.RWMutex
	globalLogger Logger = &defaultLogger{output: os.Stderr}
)

// SetLogger replaces the process logger. A nil logger is ignored.
func SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	globalLogger = logger
}

// GetLogger returns the current logger
func GetLogger() Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}
