// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logs implements the small leveled-logging backend shared by
// every subsystem of epicd. It is deliberately minimal: callers get a
// per-subsystem Logger, levels gate at the call site, and a Backend
// fans formatted lines out to one or more io.Writers.
package logs

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a logging priority.
type Level uint32

// Level constants, lowest (most verbose) to highest.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrings = map[Level]string{
	LevelTrace:    "TRC",
	LevelDebug:    "DBG",
	LevelInfo:     "INF",
	LevelWarn:     "WRN",
	LevelError:    "ERR",
	LevelCritical: "CRT",
	LevelOff:      "OFF",
}

// String returns the string representation of the level.
func (l Level) String() string {
	if s, ok := levelStrings[l]; ok {
		return s
	}
	return "UNK"
}

// LevelFromString converts a three-letter level name (as printed by
// Level.String), matched case-insensitively, into a Level. Defaults to
// LevelInfo.
func LevelFromString(s string) Level {
	for lvl, str := range levelStrings {
		if strings.EqualFold(str, s) {
			return lvl
		}
	}
	return LevelInfo
}

// Backend fans formatted, leveled log lines out to its writers.
type Backend struct {
	mu      sync.Mutex
	writers []io.Writer
}

// NewBackend creates a Backend writing to the given writers.
func NewBackend(writers ...io.Writer) *Backend {
	return &Backend{writers: writers}
}

func (b *Backend) write(subsystem string, lvl Level, s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	line := fmt.Sprintf("%s [%s] %s: %s\n", time.Now().Format("2006-01-02 15:04:05.000"), lvl, subsystem, s)
	for _, w := range b.writers {
		_, _ = io.WriteString(w, line)
	}
}

// Logger returns a new Logger for the named subsystem backed by b.
func (b *Backend) Logger(subsystem string) *Logger {
	return &Logger{backend: b, subsystem: subsystem, level: LevelInfo}
}

// Logger is a per-subsystem handle onto a Backend.
type Logger struct {
	backend   *Backend
	subsystem string
	level     Level
}

// SetLevel changes the minimum level that will be emitted.
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

// Level returns the current minimum emitted level.
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) logf(lvl Level, format string, args ...interface{}) {
	if lvl < l.level || l.backend == nil {
		return
	}
	l.backend.write(l.subsystem, lvl, fmt.Sprintf(format, args...))
}

func (l *Logger) log(lvl Level, args ...interface{}) {
	if lvl < l.level || l.backend == nil {
		return
	}
	l.backend.write(l.subsystem, lvl, fmt.Sprint(args...))
}

// Tracef formats and logs at LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) { l.logf(LevelTrace, format, args...) }

// Debugf formats and logs at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) { l.logf(LevelDebug, format, args...) }

// Infof formats and logs at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) { l.logf(LevelInfo, format, args...) }

// Warnf formats and logs at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) { l.logf(LevelWarn, format, args...) }

// Errorf formats and logs at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) { l.logf(LevelError, format, args...) }

// Criticalf formats and logs at LevelCritical.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.logf(LevelCritical, format, args...)
}

// Trace logs its arguments at LevelTrace.
func (l *Logger) Trace(args ...interface{}) { l.log(LevelTrace, args...) }

// Debug logs its arguments at LevelDebug.
func (l *Logger) Debug(args ...interface{}) { l.log(LevelDebug, args...) }

// Info logs its arguments at LevelInfo.
func (l *Logger) Info(args ...interface{}) { l.log(LevelInfo, args...) }

// Warn logs its arguments at LevelWarn.
func (l *Logger) Warn(args ...interface{}) { l.log(LevelWarn, args...) }

// Error logs its arguments at LevelError.
func (l *Logger) Error(args ...interface{}) { l.log(LevelError, args...) }

// Disabled is a Logger that discards everything; used as the default
// for packages until their UseLogger replaces it.
var Disabled = &Logger{level: LevelOff}

// StdBackend is a process-wide backend writing to stdout.
var StdBackend = NewBackend(os.Stdout)
