package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Logger writes timestamped lines to a log file, falling back to stderr
// when no file is available.
type Logger struct {
	file *os.File
}

// NewLogger opens the given log file for appending. An empty path or an
// open failure yields a stderr-only logger.
func NewLogger(logFile string) *Logger {
	l := &Logger{}
	if logFile == "" {
		return l
	}
	_ = os.MkdirAll(filepath.Dir(logFile), 0o755)
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.Write(fmt.Sprintf("Error opening log file (%s): %v", logFile, err))
		return l
	}
	l.file = f
	return l
}

// Write appends a timestamped message to the log.
func (l *Logger) Write(message string) {
	line := fmt.Sprintf("%s: %s\n", time.Now().Format("2006-01-02 15:04:05"), message)
	if l != nil && l.file != nil {
		l.file.WriteString(line)
		l.file.Sync()
		return
	}
	fmt.Fprint(os.Stderr, line)
}

// Writef formats and appends a timestamped message to the log.
func (l *Logger) Writef(format string, args ...interface{}) {
	l.Write(fmt.Sprintf(format, args...))
}

// Close releases the underlying file handle.
func (l *Logger) Close() {
	if l != nil && l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
