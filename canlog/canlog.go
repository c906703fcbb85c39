// Package canlog provides the leveled logging facade used by the whole
// stack. The default implementation writes through a standard *log.Logger
// so callers can redirect output with the same file-based setup used by
// the Recorder helpers in this package.
package canlog

import (
	"fmt"
	"log"
)

// Level is a log severity, ordered from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Logger is the sink the protocol layers log through. Implementations
// must be safe for use from the tick loop and the I/O thread.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Criticalf(format string, args ...any)
}

// StandardLogger adapts a *log.Logger into a leveled Logger, dropping
// entries below MinLevel.
type StandardLogger struct {
	Out      *log.Logger
	MinLevel Level
}

// New returns a StandardLogger writing to the process-wide log output at
// the given minimum level.
func New(minLevel Level) *StandardLogger {
	return &StandardLogger{Out: log.Default(), MinLevel: minLevel}
}

func (s *StandardLogger) logf(level Level, format string, args ...any) {
	if level < s.MinLevel {
		return
	}
	out := s.Out
	if out == nil {
		out = log.Default()
	}
	out.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

func (s *StandardLogger) Debugf(format string, args ...any) {
	s.logf(LevelDebug, format, args...)
}

func (s *StandardLogger) Infof(format string, args ...any) {
	s.logf(LevelInfo, format, args...)
}

func (s *StandardLogger) Warnf(format string, args ...any) {
	s.logf(LevelWarning, format, args...)
}

func (s *StandardLogger) Errorf(format string, args ...any) {
	s.logf(LevelError, format, args...)
}

func (s *StandardLogger) Criticalf(format string, args ...any) {
	s.logf(LevelCritical, format, args...)
}

// Discard is a Logger that drops everything, useful in tests.
type Discard struct{}

func (Discard) Debugf(string, ...any)    {}
func (Discard) Infof(string, ...any)     {}
func (Discard) Warnf(string, ...any)     {}
func (Discard) Errorf(string, ...any)    {}
func (Discard) Criticalf(string, ...any) {}
