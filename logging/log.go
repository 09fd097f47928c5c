// Package logging provides the levelled loggers used throughout the viewer.
// Every level is a plain *log.Logger with its own prefix; trace output is only
// produced in debug mode.
package logging

import (
	"fmt"
	"io"
	"log"
)

const flags = log.LstdFlags | log.Lshortfile

// Logger writes trace, info, warning and error messages.
type Logger struct {
	trace *log.Logger
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug bool
}

// New returns a Logger writing every level to w. Trace messages are dropped
// unless debug is set.
func New(w io.Writer, debug bool) *Logger {
	traceOut := io.Discard
	if debug {
		traceOut = w
	}

	return &Logger{
		trace: log.New(traceOut, "TRACE: ", flags),
		info:  log.New(w, "INFO: ", flags),
		warn:  log.New(w, "WARNING: ", flags),
		err:   log.New(w, "ERROR: ", flags),
		debug: debug,
	}
}

// Discard returns a Logger which drops everything. Handy in tests.
func Discard() *Logger {
	return New(io.Discard, false)
}

// Debug reports whether trace output is enabled.
func (l *Logger) Debug() bool {
	return l.debug
}

// Tracef logs verbose start-up and lifecycle details.
func (l *Logger) Tracef(format string, v ...any) {
	l.trace.Output(2, fmt.Sprintf(format, v...))
}

// Infof logs a notable event.
func (l *Logger) Infof(format string, v ...any) {
	l.info.Output(2, fmt.Sprintf(format, v...))
}

// Warnf logs a condition the program recovered from.
func (l *Logger) Warnf(format string, v ...any) {
	l.warn.Output(2, fmt.Sprintf(format, v...))
}

// Errorf logs a failure.
func (l *Logger) Errorf(format string, v ...any) {
	l.err.Output(2, fmt.Sprintf(format, v...))
}
