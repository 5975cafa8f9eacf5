package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind tags the variants of a JSON value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

// Value is a mutable JSON tree. Objects remember insertion order so a
// parsed document marshals back with its keys in the original order.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []*Value
	keys []string
	obj  map[string]*Value
}

func NewNull() *Value   { return &Value{kind: Null} }
func NewObject() *Value { return &Value{kind: Object, obj: map[string]*Value{}} }
func NewArray() *Value  { return &Value{kind: Array} }

func NewBool(b bool) *Value     { return &Value{kind: Bool, b: b} }
func NewString(s string) *Value { return &Value{kind: String, str: s} }

func NewNumber(n json.Number) *Value { return &Value{kind: Number, num: n} }

func (v *Value) Kind() Kind { return v.kind }

func (v *Value) IsObject() bool { return v != nil && v.kind == Object }
func (v *Value) IsArray() bool  { return v != nil && v.kind == Array }
func (v *Value) IsString() bool { return v != nil && v.kind == String }

// String returns the string payload or an error when the value is not a
// JSON string.
func (v *Value) String() (string, error) {
	if v == nil || v.kind != String {
		return "", errors.New("value is not a string")
	}
	return v.str, nil
}

// StringOr returns the string payload, or def for any non-string value.
func (v *Value) StringOr(def string) string {
	if v == nil || v.kind != String {
		return def
	}
	return v.str
}

// Array returns the element slice or an error when the value is not a
// JSON array.
func (v *Value) Array() ([]*Value, error) {
	if v == nil || v.kind != Array {
		return nil, errors.New("value is not an array")
	}
	return v.arr, nil
}

// Keys returns the object keys in insertion order.
func (v *Value) Keys() []string {
	if v == nil || v.kind != Object {
		return nil
	}
	return v.keys
}

// Get looks a key up in an object value.
func (v *Value) Get(key string) (*Value, bool) {
	if v == nil || v.kind != Object {
		return nil, false
	}
	val, ok := v.obj[key]
	return val, ok
}

// Set inserts or replaces an object entry, appending new keys at the end.
func (v *Value) Set(key string, val *Value) error {
	if v == nil || v.kind != Object {
		return errors.New("value is not an object")
	}
	if _, ok := v.obj[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.obj[key] = val
	return nil
}

// Append adds an element to the end of an array value.
func (v *Value) Append(val *Value) error {
	if v == nil || v.kind != Array {
		return errors.New("value is not an array")
	}
	v.arr = append(v.arr, val)
	return nil
}

// Prepend adds an element to the front of an array value.
func (v *Value) Prepend(val *Value) error {
	if v == nil || v.kind != Array {
		return errors.New("value is not an array")
	}
	v.arr = append([]*Value{val}, v.arr...)
	return nil
}

// Clone deep-copies the tree.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{kind: v.kind, b: v.b, num: v.num, str: v.str}
	switch v.kind {
	case Array:
		out.arr = make([]*Value, len(v.arr))
		for i, el := range v.arr {
			out.arr[i] = el.Clone()
		}
	case Object:
		out.keys = append([]string(nil), v.keys...)
		out.obj = make(map[string]*Value, len(v.obj))
		for k, el := range v.obj {
			out.obj[k] = el.Clone()
		}
	}
	return out
}

// Equal reports deep equality of two trees. Object key order is not
// significant for equality.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Number:
		return a.num == b.num
	case String:
		return a.str == b.str
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Merge combines base with overlay without mutating either. Overlay only
// fills gaps: a key missing from base is inserted, nested objects present
// on both sides are merged recursively, and every other conflict keeps
// the base value. Arrays are treated as opaque leaves.
func Merge(base, overlay *Value) *Value {
	if base == nil {
		return overlay.Clone()
	}
	out := base.Clone()
	if out.kind != Object || overlay == nil || overlay.kind != Object {
		return out
	}
	mergeInto(out, overlay)
	return out
}

func mergeInto(base, overlay *Value) {
	for _, key := range overlay.keys {
		ov := overlay.obj[key]
		bv, ok := base.obj[key]
		if !ok {
			base.Set(key, ov.Clone())
			continue
		}
		if bv.kind == Object && ov.kind == Object && !Equal(bv, ov) {
			mergeInto(bv, ov)
		}
	}
}

// Parse decodes a JSON document into a Value tree, preserving object key
// order and raw number formatting.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after json document")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key token %v", keyTok)
				}
				val, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := NewArray()
			for dec.More() {
				val, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Append(val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case bool:
		return NewBool(t), nil
	case json.Number:
		return NewNumber(t), nil
	case string:
		return NewString(t), nil
	case nil:
		return NewNull(), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// Marshal renders the tree as compact JSON with object keys in insertion
// order.
func (v *Value) Marshal() []byte {
	var buf bytes.Buffer
	v.write(&buf)
	return buf.Bytes()
}

// MarshalIndent renders the tree as 4-space indented JSON with object
// keys in insertion order.
func (v *Value) MarshalIndent() []byte {
	var buf bytes.Buffer
	v.writeIndent(&buf, 0)
	return buf.Bytes()
}

func (v *Value) writeIndent(buf *bytes.Buffer, depth int) {
	if v == nil || (v.kind != Array && v.kind != Object) {
		v.write(buf)
		return
	}
	indent := strings.Repeat("    ", depth+1)
	closing := strings.Repeat("    ", depth)
	switch v.kind {
	case Array:
		if len(v.arr) == 0 {
			buf.WriteString("[]")
			return
		}
		buf.WriteString("[\n")
		for i, el := range v.arr {
			if i > 0 {
				buf.WriteString(",\n")
			}
			buf.WriteString(indent)
			el.writeIndent(buf, depth+1)
		}
		buf.WriteString("\n" + closing + "]")
	case Object:
		if len(v.keys) == 0 {
			buf.WriteString("{}")
			return
		}
		buf.WriteString("{\n")
		for i, key := range v.keys {
			if i > 0 {
				buf.WriteString(",\n")
			}
			buf.WriteString(indent)
			escaped, _ := json.Marshal(key)
			buf.Write(escaped)
			buf.WriteString(": ")
			v.obj[key].writeIndent(buf, depth+1)
		}
		buf.WriteString("\n" + closing + "}")
	}
}

func (v *Value) write(buf *bytes.Buffer) {
	if v == nil {
		buf.WriteString("null")
		return
	}
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(string(v.num))
	case String:
		escaped, _ := json.Marshal(v.str)
		buf.Write(escaped)
	case Array:
		buf.WriteByte('[')
		for i, el := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			el.write(buf)
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, key := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			escaped, _ := json.Marshal(key)
			buf.Write(escaped)
			buf.WriteByte(':')
			v.obj[key].write(buf)
		}
		buf.WriteByte('}')
	}
}
