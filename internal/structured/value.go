// Package structured holds the tagged-union value produced by reasoning stages
// and the extractor that recovers it from free-form model output.
package structured

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
)

// Kind identifies which variant a Value holds
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// maxDepth bounds nesting while decoding untrusted model output.
const maxDepth = 256

// Value is an immutable JSON-shaped value. The zero Value is null.
// Object keys keep the order in which they were decoded or added.
type Value struct {
	kind Kind
	str  string
	num  json.Number
	b    bool
	arr  []Value
	keys []string
	obj  map[string]Value
}

// Field is a key/value pair used to build objects
type Field struct {
	Key   string
	Value Value
}

// Null returns the null value
func Null() Value { return Value{} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value
func Number(f float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'f', -1, 64))}
}

// Int returns a numeric value holding an integer
func Int(i int64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(i, 10))}
}

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array returns an array value holding a copy of items
func Array(items ...Value) Value {
	arr := make([]Value, len(items))
	copy(arr, items)
	return Value{kind: KindArray, arr: arr}
}

// Object returns an object value. Later duplicate keys replace earlier ones
// but keep the first position.
func Object(fields ...Field) Value {
	v := Value{kind: KindObject, obj: make(map[string]Value, len(fields))}
	for _, f := range fields {
		if _, exists := v.obj[f.Key]; !exists {
			v.keys = append(v.keys, f.Key)
		}
		v.obj[f.Key] = f.Value
	}
	return v
}

// Kind reports the variant held by v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string and whether v is a string
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Float returns the number and whether v is a number
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// Boolean returns the bool and whether v is a bool
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// StringOr returns the string held by v, or def for any other variant
func (v Value) StringOr(def string) string {
	if v.kind == KindString {
		return v.str
	}
	return def
}

// Len returns the number of array items or object fields
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.keys)
	default:
		return 0
	}
}

// Items returns a copy of the array items, or nil for non-arrays
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out
}

// Index returns the i-th array item, or null when out of range
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Null()
	}
	return v.arr[i]
}

// Keys returns object keys in order, or nil for non-objects
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Get returns the field named key, or null when v is not an object or the key is missing
func (v Value) Get(key string) Value {
	if v.kind != KindObject {
		return Null()
	}
	return v.obj[key]
}

// Has reports whether v is an object holding key
func (v Value) Has(key string) bool {
	if v.kind != KindObject {
		return false
	}
	_, ok := v.obj[key]
	return ok
}

// Path walks nested objects, returning null on the first miss
func (v Value) Path(keys ...string) Value {
	cur := v
	for _, k := range keys {
		cur = cur.Get(k)
	}
	return cur
}

// With returns a copy of the object v with key set to val.
// A non-object v is treated as an empty object.
func (v Value) With(key string, val Value) Value {
	out := Value{kind: KindObject, obj: make(map[string]Value, len(v.keys)+1)}
	if v.kind == KindObject {
		out.keys = append(out.keys, v.keys...)
		for k, fv := range v.obj {
			out.obj[k] = fv
		}
	}
	if _, exists := out.obj[key]; !exists {
		out.keys = append(out.keys, key)
	}
	out.obj[key] = val
	return out
}

// Append returns a copy of the array v with items appended.
// A non-array v is treated as an empty array.
func (v Value) Append(items ...Value) Value {
	var base []Value
	if v.kind == KindArray {
		base = v.arr
	}
	arr := make([]Value, 0, len(base)+len(items))
	arr = append(arr, base...)
	arr = append(arr, items...)
	return Value{kind: KindArray, arr: arr}
}

// ErrorMarker builds the value recorded for a failed stage
func ErrorMarker(reason, details string) Value {
	return Object(
		Field{Key: "error", Value: String(reason)},
		Field{Key: "details", Value: String(details)},
	)
}

// IsErrorMarker reports whether v is an error marker
func (v Value) IsErrorMarker() bool {
	if v.kind != KindObject {
		return false
	}
	_, ok := v.obj["error"].Str()
	return ok && v.Has("details") && len(v.keys) == 2
}

// Usable reports whether v carries content a downstream stage can consume
func (v Value) Usable() bool {
	return !v.IsNull() && !v.IsErrorMarker()
}

// MarshalJSON encodes v, preserving object key order
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		buf.WriteString(v.num.String())
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes any JSON document into v
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse decodes exactly one JSON value from data. Trailing non-space
// content is an error.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return Null(), err
	}

	if _, err := dec.Token(); err != io.EOF {
		return Null(), eris.New("structured: trailing data after value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	if depth > maxDepth {
		return Null(), eris.New("structured: nesting too deep")
	}

	tok, err := dec.Token()
	if err != nil {
		return Null(), eris.Wrap(err, "structured: read token")
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case json.Number:
		return Value{kind: KindNumber, num: t}, nil
	case bool:
		return Bool(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := make([]Value, 0)
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Null(), err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), eris.Wrap(err, "structured: close array")
			}
			return Value{kind: KindArray, arr: arr}, nil
		case '{':
			obj := Value{kind: KindObject, obj: make(map[string]Value)}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null(), eris.Wrap(err, "structured: read key")
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null(), eris.New("structured: object key is not a string")
				}
				val, err := decodeValue(dec, depth+1)
				if err != nil {
					return Null(), err
				}
				if _, exists := obj.obj[key]; !exists {
					obj.keys = append(obj.keys, key)
				}
				obj.obj[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return Null(), eris.Wrap(err, "structured: close object")
			}
			return obj, nil
		}
	}
	return Null(), eris.Errorf("structured: unexpected token %v", tok)
}

