package validation

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Value is a request field that accepts any JSON value and keeps its string form.
// Present is false when the key is absent or null.
type Value struct {
	raw     []byte
	str     string
	present bool
}

// V builds a present string Value.
func V(s string) Value {
	raw, _ := json.Marshal(s)
	return Value{raw: raw, str: s, present: true}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = Value{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value{raw: append([]byte(nil), b...), str: s, present: true}
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return err
	}
	*v = Value{raw: buf.Bytes(), str: buf.String(), present: true}
	return nil
}

// Present reports whether the key was sent with a non-null value.
func (v Value) Present() bool { return v.present }

// String returns strings unquoted and every other JSON value as compact JSON text.
func (v Value) String() string { return v.str }

// Truthy reports whether the value is present and not empty, zero or false.
func (v Value) Truthy() bool {
	if !v.present || len(v.raw) == 0 {
		return false
	}
	switch v.raw[0] {
	case '"':
		return v.str != ""
	case 't':
		return true
	case 'f':
		return false
	case '[':
		return v.str != "[]"
	case '{':
		return v.str != "{}"
	default:
		n, err := strconv.ParseFloat(v.str, 64)
		return err != nil || n != 0
	}
}
