package logger

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Logger provides structured logging for journald
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a new logger instance
func New() *Logger {
	return &Logger{
		writer: os.Stderr,
	}
}

// NewWithWriter creates a logger with a custom writer
func NewWithWriter(w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{
		writer: w,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log("WARNING", msg, fields...)
}

// Debug logs debug messages
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log("DEBUG", msg, fields...)
}

func (l *Logger) log(level, msg string, fields ...Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "LEVEL=%s MESSAGE=%s", level, msg)
	for _, field := range fields {
		fmt.Fprintf(&b, " %s=%v", field.Key, field.Value)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.writer, b.String())
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new field (shorthand)
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Common field constructors
func Action(value string) Field    { return F("ACTION", value) }
func Status(value string) Field    { return F("STATUS", value) }
func Reason(value string) Field    { return F("REASON", value) }
func Operation(value string) Field { return F("OPERATION", value) }
func Outcome(value string) Field   { return F("OUTCOME", value) }
func EventID(value string) Field   { return F("EVENT_ID", value) }
func Calendar(value string) Field  { return F("CALENDAR", value) }
func Count(value int) Field        { return F("COUNT", value) }
func Error(value error) Field      { return F("ERROR", value) }

// Summary quotes the value so titles with spaces stay on one key.
func Summary(value string) Field { return F("SUMMARY", fmt.Sprintf("%q", value)) }

func Start(value time.Time) Field { return F("START", value.Format(time.RFC3339)) }
func End(value time.Time) Field   { return F("END", value.Format(time.RFC3339)) }

func Duration(value time.Duration) Field { return F("DURATION", value.String()) }

// Attendee logs a keyed digest of the address instead of the address itself.
// The same address always yields the same digest, so entries stay correlatable.
func Attendee(email string) Field {
	return F("ATTENDEE", AnonymizeEmail(email))
}

// AnonymizeEmail returns a short blake2b digest of a normalized email address.
func AnonymizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(email))
	return "att:" + hex.EncodeToString(sum[:6])
}
