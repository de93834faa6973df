package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// ValueKind tells which variant a Value holds.
type ValueKind int

const (
	// ValueAbsent is the zero Value.
	ValueAbsent ValueKind = iota
	// ValueString holds text.
	ValueString
	// ValueNumber holds a finite float64.
	ValueNumber
)

// numberToken matches the plain decimal numbers a path token may carry.
var numberToken = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?$`) //nolint:gochecknoglobals // compiled once

// Value is an optional string-or-number scalar used for on/off values.
// The zero Value is absent.
type Value struct {
	kind ValueKind
	text string
	num  float64
}

// StringValue returns a text Value.
func StringValue(s string) Value {
	return Value{kind: ValueString, text: s}
}

// NumberValue returns a numeric Value.
func NumberValue(n float64) Value {
	return Value{kind: ValueNumber, num: n}
}

// ParseValue turns a path token into a number when it is a plain decimal,
// otherwise into text.
func ParseValue(token string) Value {
	if numberToken.MatchString(token) {
		if n, err := strconv.ParseFloat(token, 64); err == nil {
			return NumberValue(n)
		}
	}
	return StringValue(token)
}

// Kind returns the variant held by v.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsPresent reports whether v holds a string or a number.
func (v Value) IsPresent() bool {
	return v.kind != ValueAbsent
}

// String returns the textual form used in paths and logs. Absent values
// render as the empty string.
func (v Value) String() string {
	switch v.kind {
	case ValueString:
		return v.text
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Interface returns the value as nil, string or float64 for encoding.
func (v Value) Interface() any {
	switch v.kind {
	case ValueString:
		return v.text
	case ValueNumber:
		return v.num
	default:
		return nil
	}
}

// Equal reports whether two Values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	return v == o
}

// Matches compares v with an observed raw value. The comparison is loose:
// numbers match numeric observations and numeric strings, booleans count as
// 1 and 0, everything else compares by text. An absent v or a nil
// observation never matches.
func (v Value) Matches(observed any) bool {
	if !v.IsPresent() || observed == nil {
		return false
	}

	if n, ok := observedNumber(observed); ok && v.kind == ValueNumber {
		return n == v.num
	}
	return observedText(observed) == v.String()
}

// observedNumber extracts a float from numeric, boolean and numeric-string observations.
func observedNumber(observed any) (float64, bool) {
	switch o := observed.(type) {
	case float64:
		return o, true
	case float32:
		return float64(o), true
	case int:
		return float64(o), true
	case int64:
		return float64(o), true
	case int32:
		return float64(o), true
	case uint:
		return float64(o), true
	case uint64:
		return float64(o), true
	case uint32:
		return float64(o), true
	case json.Number:
		n, err := o.Float64()
		return n, err == nil
	case bool:
		if o {
			return 1, true
		}
		return 0, true
	case string:
		if !numberToken.MatchString(o) {
			return 0, false
		}
		n, err := strconv.ParseFloat(o, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// observedText renders an observation the way path tokens are written.
func observedText(observed any) string {
	switch o := observed.(type) {
	case string:
		return o
	case bool:
		return strconv.FormatBool(o)
	default:
		if n, ok := observedNumber(observed); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return fmt.Sprint(observed)
	}
}

// MarshalJSON encodes an absent value as null, otherwise as a JSON string or number.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts null, a string or a number.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch r := raw.(type) {
	case nil:
		*v = Value{}
	case string:
		*v = StringValue(r)
	case float64:
		*v = NumberValue(r)
	default:
		return fmt.Errorf("value must be a string, number or null, got %T", raw)
	}
	return nil
}

// MarshalYAML encodes v as a YAML scalar or null.
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}
