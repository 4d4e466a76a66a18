package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants of FieldValue.
type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
)

// FieldValue is a tagged union for extracted field values. Exactly one of
// the payload fields is meaningful, selected by Kind. The zero value is the
// absent value.
type FieldValue struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

func NoValue() FieldValue               { return FieldValue{} }
func StringValue(s string) FieldValue   { return FieldValue{Kind: ValueString, Str: s} }
func NumberValue(n float64) FieldValue  { return FieldValue{Kind: ValueNumber, Num: n} }
func BoolValue(b bool) FieldValue       { return FieldValue{Kind: ValueBool, Bool: b} }

// IsNone reports whether no value is present.
func (v FieldValue) IsNone() bool { return v.Kind == ValueNone }

// IsBlank reports whether the value is absent or an all-whitespace string.
func (v FieldValue) IsBlank() bool {
	if v.Kind == ValueNone {
		return true
	}
	if v.Kind == ValueString && strings.TrimSpace(v.Str) == "" {
		return true
	}
	return false
}

// String renders the value for messages and canonical ordering.
func (v FieldValue) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// AsNumber coerces the value to a float64. Strings are parsed leniently:
// currency symbols and grouping commas are stripped first.
func (v FieldValue) AsNumber() (float64, bool) {
	switch v.Kind {
	case ValueNumber:
		return v.Num, true
	case ValueString:
		s := strings.TrimSpace(v.Str)
		s = strings.TrimLeft(s, "$£€ ")
		s = strings.ReplaceAll(s, ",", "")
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case ValueBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsBool coerces the value to a bool. Only boolean values and the usual
// string spellings coerce; everything else reports false.
func (v FieldValue) AsBool() (bool, bool) {
	switch v.Kind {
	case ValueBool:
		return v.Bool, true
	case ValueString:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "yes", "y", "1", "checked", "signed":
			return true, true
		case "false", "no", "n", "0", "unchecked", "unsigned":
			return false, true
		}
	}
	return false, false
}

// Equal reports deep equality across kinds.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueString:
		return v.Str == other.Str
	case ValueNumber:
		return v.Num == other.Num
	case ValueBool:
		return v.Bool == other.Bool
	default:
		return true
	}
}

// Compare orders values deterministically: by kind first, then payload.
func (v FieldValue) Compare(other FieldValue) int {
	if v.Kind != other.Kind {
		return int(v.Kind) - int(other.Kind)
	}
	switch v.Kind {
	case ValueString:
		return strings.Compare(v.Str, other.Str)
	case ValueNumber:
		switch {
		case v.Num < other.Num:
			return -1
		case v.Num > other.Num:
			return 1
		}
		return 0
	case ValueBool:
		switch {
		case !v.Bool && other.Bool:
			return -1
		case v.Bool && !other.Bool:
			return 1
		}
		return 0
	default:
		return 0
	}
}

// MarshalJSON emits null, a string, a number, or a bool depending on kind.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueString:
		return json.Marshal(v.Str)
	case ValueNumber:
		return json.Marshal(v.Num)
	case ValueBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, strings, numbers, and bools.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = FieldValue{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("field value: unsupported JSON payload %q", string(data))
		}
		*v = NumberValue(n)
		return nil
	}
}
