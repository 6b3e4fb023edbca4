// Package codec implements the typed encode/decode rules for scalar
// column values crossing the wire as JSON: Date, DateTime, Time, and
// Binary get a structured encoding; Numeric/Decimal becomes a decimal
// string; everything else passes through unchanged.
package codec

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Kind names the scalar encoding a column uses. Resolving which Kind a
// field has is the caller's job (driven by the tracked model's field
// tags); this package only implements the encode/decode rule once the
// Kind is known, via a plain type switch — historical revisions of this
// logic branched on ad hoc conditions (e.g. testing op.Command against
// the wrong operand) and on broken DateTime-as-ordinal encoding; this
// implementation fixes both by dispatching on Kind directly.
type Kind int

const (
	KindOther Kind = iota
	KindDate
	KindDateTime
	KindTime
	KindBinary
	KindDecimal
)

// Date, DateTime, and Time wrap time.Time to select which of the three
// encodings applies; Binary wraps []byte; Decimal wraps a decimal string
// (no third-party decimal type is used — the wire format already is a
// plain string, so a string alias round-trips without needing external
// arbitrary-precision arithmetic).
type Date time.Time
type DateTime time.Time
type Time time.Time
type Binary []byte
type Decimal string

// Encode converts a typed scalar value to its JSON-friendly
// representation per the table in the specification: Date -> [y,m,d],
// DateTime -> [y,m,d,H,M,S,µs], Time -> [H,M,S,µs], Binary -> base64,
// Decimal -> itself (already a decimal string), anything else ->
// pass-through unchanged. A nil value encodes to nil.
func Encode(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case Date:
		t := time.Time(x)
		return []int{t.Year(), int(t.Month()), t.Day()}, nil
	case DateTime:
		t := time.Time(x)
		return []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond() / 1000}, nil
	case Time:
		t := time.Time(x)
		return []int{t.Hour(), t.Minute(), t.Second(), t.Nanosecond() / 1000}, nil
	case Binary:
		return base64.StdEncoding.EncodeToString(x), nil
	case Decimal:
		return string(x), nil
	default:
		return v, nil
	}
}

// Decode converts an encoded JSON value back to its typed Go
// representation for the given Kind. encoded arrays arrive as
// []interface{} of float64 (the shape produced by decoding JSON numbers
// into interface{}); Decode tolerates both []interface{} and []int for
// ease of testing against literal Go values.
func Decode(encoded interface{}, kind Kind) (interface{}, error) {
	if encoded == nil {
		return nil, nil
	}
	switch kind {
	case KindDate:
		parts, err := intSlice(encoded, 3)
		if err != nil {
			return nil, fmt.Errorf("codec: decode date: %w", err)
		}
		return Date(time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)), nil
	case KindDateTime:
		parts, err := intSlice(encoded, 7)
		if err != nil {
			return nil, fmt.Errorf("codec: decode datetime: %w", err)
		}
		return DateTime(time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6]*1000, time.UTC)), nil
	case KindTime:
		parts, err := intSlice(encoded, 4)
		if err != nil {
			return nil, fmt.Errorf("codec: decode time: %w", err)
		}
		base := time.Date(0, 1, 1, parts[0], parts[1], parts[2], parts[3]*1000, time.UTC)
		return Time(base), nil
	case KindBinary:
		s, ok := encoded.(string)
		if !ok {
			return nil, fmt.Errorf("codec: decode binary: expected string, got %T", encoded)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("codec: decode binary: %w", err)
		}
		return Binary(b), nil
	case KindDecimal:
		s, ok := encoded.(string)
		if !ok {
			return nil, fmt.Errorf("codec: decode decimal: expected string, got %T", encoded)
		}
		return Decimal(s), nil
	default:
		return encoded, nil
	}
}

// intSlice normalizes encoded (either []interface{} of float64/int, or
// []int) to exactly n ints.
func intSlice(encoded interface{}, n int) ([]int, error) {
	out := make([]int, n)
	switch v := encoded.(type) {
	case []interface{}:
		if len(v) != n {
			return nil, fmt.Errorf("expected %d elements, got %d", n, len(v))
		}
		for i, e := range v {
			switch num := e.(type) {
			case float64:
				out[i] = int(num)
			case int:
				out[i] = num
			default:
				return nil, fmt.Errorf("element %d: expected number, got %T", i, e)
			}
		}
		return out, nil
	case []int:
		if len(v) != n {
			return nil, fmt.Errorf("expected %d elements, got %d", n, len(v))
		}
		copy(out, v)
		return out, nil
	default:
		return nil, fmt.Errorf("expected array, got %T", encoded)
	}
}
