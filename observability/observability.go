package observability

import (
	"fmt"
	"time"
)

// Logger is the structured logging surface used across the module.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type field struct {
	key string
	val interface{}
}

func (f field) Key() string        { return f.key }
func (f field) Value() interface{} { return f.val }

func String(key, value string) Field             { return field{key, value} }
func Int(key string, value int) Field            { return field{key, value} }
func Int64(key string, value int64) Field        { return field{key, value} }
func Float(key string, value float64) Field      { return field{key, value} }
func Bool(key string, value bool) Field          { return field{key, value} }
func Duration(key string, d time.Duration) Field { return field{key, d} }
func Error(key string, err error) Field          { return field{key, err} }

// Stringer defers formatting of v until the field is rendered.
func Stringer(key string, v fmt.Stringer) Field { return field{key, v} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger { return NopLogger{} }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// Field keys shared by the parser, the engine and the CLI.
const (
	KeyDocument = "document"
	KeyDocType  = "doc_type"
	KeyPage     = "page"
	KeyPattern  = "pattern"
	KeyStep     = "step"
	KeyOffset   = "offset"
	KeyObject   = "object"
	KeyBatchID  = "batch_id"
)
