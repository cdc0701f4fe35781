package osc

import (
	"errors"
	"fmt"
	"strings"
)

// Argument type tags used by the X32.
const (
	TagInt    = 'i'
	TagFloat  = 'f'
	TagString = 's'
	TagBlob   = 'b'
)

// Codec errors.
var (
	// ErrInvalidAddress is returned when an address pattern does not start
	// with the OSC root delimiter "/".
	ErrInvalidAddress = errors.New("osc: invalid address pattern")

	// ErrTruncated is returned when a datagram ends mid-field.
	ErrTruncated = errors.New("osc: truncated message")

	// ErrUnknownTag is returned for a type tag the codec does not handle.
	ErrUnknownTag = errors.New("osc: unknown type tag")
)

// Arg is one typed OSC argument.
type Arg struct {
	Type  byte
	Int   int32
	Float float32
	Str   string
	Blob  []byte
}

// Int returns an int32 argument.
func Int(v int32) Arg { return Arg{Type: TagInt, Int: v} }

// Float returns a float32 argument.
func Float(v float32) Arg { return Arg{Type: TagFloat, Float: v} }

// String returns a string argument.
func String(v string) Arg { return Arg{Type: TagString, Str: v} }

// Value unwraps the argument to its plain Go value.
func (a Arg) Value() any {
	switch a.Type {
	case TagInt:
		return a.Int
	case TagFloat:
		return a.Float
	case TagString:
		return a.Str
	case TagBlob:
		return a.Blob
	default:
		return nil
	}
}

// FromValue builds an Arg from a plain Go value, coercing JSON-decoded
// numbers (float64) to int32 when they carry no fractional part. This is
// how session passthrough writes map JSON args onto the wire.
func FromValue(v any) (Arg, error) {
	switch val := v.(type) {
	case int:
		return Int(int32(val)), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(int32(val)), nil
	case float32:
		return Float(val), nil
	case float64:
		if val == float64(int32(val)) {
			return Int(int32(val)), nil
		}
		return Float(float32(val)), nil
	case string:
		return String(val), nil
	case bool:
		if val {
			return Int(1), nil
		}
		return Int(0), nil
	default:
		return Arg{}, fmt.Errorf("%w: %T", ErrUnknownTag, v)
	}
}

// Message is a single OSC message.
type Message struct {
	Address string
	Args    []Arg
}

// Values returns the unwrapped argument values in order.
func (m Message) Values() []any {
	vals := make([]any, len(m.Args))
	for i, a := range m.Args {
		vals[i] = a.Value()
	}
	return vals
}

// String renders the message for logs.
func (m Message) String() string {
	var b strings.Builder
	b.WriteString(m.Address)
	for _, a := range m.Args {
		fmt.Fprintf(&b, " %v", a.Value())
	}
	return b.String()
}

// ValidAddress reports whether s is a usable OSC address pattern.
func ValidAddress(s string) bool {
	return strings.HasPrefix(s, "/") && len(s) > 1
}
