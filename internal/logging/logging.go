// Package logging implements the level-gated logger of spec.md §4.7: a
// single process-wide level, forwarding accepted lines to the host's log
// import. Transaction hands each entry-point invocation a google/uuid
// correlation id (SPEC_FULL.md §2.1, grounded on pkg/auth/requestid.go's
// per-request id pattern) that its TransactionLogger stamps onto every line
// it emits; lines logged directly through Logger carry no id. An operator can line up a
// blacklist-skip, a redaction, and a collector-timeout log line without
// cross-referencing a (possibly redacted, possibly absent-by-then) request
// body.
package logging

import (
	"fmt"

	"github.com/google/uuid"
)

// Level mirrors the host's numeric log scale (spec.md §4.7, §6).
type Level int

const (
	LevelDebug Level = -1
	LevelInfo  Level = 0
	LevelWarn  Level = 1
	LevelError Level = 2
	LevelNone  Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "none"
	}
}

// ParseLevel maps the config package's string levels onto the host's
// numeric scale.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelNone
	}
}

// Sink is the host log import (spec.md §6: log(level, ptr, len)).
type Sink func(level int32, msg string)

// Logger drops messages below its configured level and forwards the rest to
// Sink, mapped to the host's numeric scale. None disables all output.
type Logger struct {
	level Level
	sink  Sink
}

// New constructs a Logger at the given level. A nil sink is valid and
// discards everything — useful in tests and before the host import is
// wired up.
func New(level Level, sink Sink) *Logger {
	if sink == nil {
		sink = func(int32, string) {}
	}
	return &Logger{level: level, sink: sink}
}

// Log emits msg if level is at or above the logger's configured level.
func (l *Logger) Log(level Level, msg string) {
	if l == nil || level < l.level || l.level == LevelNone {
		return
	}
	l.sink(int32(level), msg)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.Log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Log(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.Log(LevelError, fmt.Sprintf(format, args...)) }

// Transaction returns a correlation id and a bound logger that prefixes
// every line with it, for the duration of one handle_request/handle_response
// invocation.
func (l *Logger) Transaction() (id string, bound *TransactionLogger) {
	id = uuid.NewString()
	return id, &TransactionLogger{id: id, logger: l}
}

// TransactionLogger prefixes every emitted line with its transaction id.
type TransactionLogger struct {
	id     string
	logger *Logger
}

func (t *TransactionLogger) ID() string { return t.id }

func (t *TransactionLogger) Debugf(format string, args ...interface{}) {
	t.logger.Log(LevelDebug, t.id+" "+fmt.Sprintf(format, args...))
}
func (t *TransactionLogger) Infof(format string, args ...interface{}) {
	t.logger.Log(LevelInfo, t.id+" "+fmt.Sprintf(format, args...))
}
func (t *TransactionLogger) Warnf(format string, args ...interface{}) {
	t.logger.Log(LevelWarn, t.id+" "+fmt.Sprintf(format, args...))
}
func (t *TransactionLogger) Errorf(format string, args ...interface{}) {
	t.logger.Log(LevelError, t.id+" "+fmt.Sprintf(format, args...))
}
