package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ScalarKind identifies the type held by a Scalar.
type ScalarKind uint8

const (
	KindInvalid ScalarKind = iota
	KindString
	KindNumber
	KindBool
)

func (k ScalarKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	}
	return "invalid"
}

// Scalar is a single event field value: a string, a number or a boolean.
type Scalar struct {
	kind ScalarKind
	str  string
	num  float64
	b    bool
}

// StringValue returns a string Scalar.
func StringValue(s string) Scalar { return Scalar{kind: KindString, str: s} }

// NumberValue returns a numeric Scalar.
func NumberValue(n float64) Scalar { return Scalar{kind: KindNumber, num: n} }

// BoolValue returns a boolean Scalar.
func BoolValue(b bool) Scalar { return Scalar{kind: KindBool, b: b} }

// Kind returns the kind of value held.
func (s Scalar) Kind() ScalarKind { return s.kind }

// Number returns the numeric value and whether s is a number.
func (s Scalar) Number() (float64, bool) { return s.num, s.kind == KindNumber }

// Str returns the string value and whether s is a string.
func (s Scalar) Str() (string, bool) { return s.str, s.kind == KindString }

// String formats the value for display.
func (s Scalar) String() string {
	switch s.kind {
	case KindString:
		return s.str
	case KindNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(s.b)
	}
	return ""
}

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindString:
		return json.Marshal(s.str)
	case KindNumber:
		return json.Marshal(s.num)
	case KindBool:
		return json.Marshal(s.b)
	}
	return nil, errors.New("marshal invalid scalar")
}

// UnmarshalJSON implements json.Unmarshaler. Null, arrays and objects are rejected.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	v, err := parseScalar(data)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func parseScalar(raw []byte) (Scalar, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Scalar{}, errors.New("empty value")
	}
	switch raw[0] {
	case '"':
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return Scalar{}, err
		}
		return StringValue(str), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Scalar{}, err
		}
		return BoolValue(b), nil
	case 'n':
		return Scalar{}, errors.New("null values are not allowed")
	case '{', '[':
		return Scalar{}, errors.New("nested values are not allowed")
	}
	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return Scalar{}, fmt.Errorf("invalid number %q", raw)
	}
	return NumberValue(n), nil
}

// Field is one key/value pair of an event payload.
type Field struct {
	Key   string
	Value Scalar
}

// Fields is an insertion-ordered map of event fields.
// The JSON encoding is an object whose key order matches the slice order.
type Fields []Field

// Get returns the value for key.
func (f Fields) Get(key string) (Scalar, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return Scalar{}, false
}

// Set replaces the value of an existing key in place or appends a new one.
func (f *Fields) Set(key string, value Scalar) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

// Keys returns field keys in insertion order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, field := range f {
		keys[i] = field.Key
	}
	return keys
}

// MarshalJSON implements json.Marshaler preserving key order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := field.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FieldsError reports every field whose value could not be accepted.
type FieldsError struct {
	Problems map[string]string // key -> reason
}

func (e *FieldsError) Error() string {
	keys := make([]string, 0, len(e.Problems))
	for k := range e.Problems {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Problems[k]
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// UnmarshalJSON implements json.Unmarshaler preserving key order.
// A repeated key keeps its first position and its last value.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("fields must be a JSON object")
	}

	out := Fields{}
	problems := map[string]string{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("fields key must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		value, err := parseScalar(raw)
		if err != nil {
			problems[key] = err.Error()
			continue
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if len(problems) > 0 {
		return &FieldsError{Problems: problems}
	}
	*f = out
	return nil
}
