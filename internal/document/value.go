package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Kind identifies which JSON type a Value holds.
type Kind int

const (
	// KindNull is the JSON null literal.
	KindNull Kind = iota
	// KindBool is true or false.
	KindBool
	// KindNumber is any JSON number, kept in its textual form.
	KindNumber
	// KindString is a JSON string.
	KindString
	// KindArray is an ordered list of values.
	KindArray
	// KindObject is an ordered list of members.
	KindObject
)

// String returns the JSON type name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// ErrTrailingData is returned by Decode when the input holds more than one JSON value.
var ErrTrailingData = errors.New("unexpected data after top-level JSON value")

// ErrTooDeep is returned by Decode when containers nest deeper than MaxDepth.
var ErrTooDeep = errors.New("JSON nesting too deep")

// MaxDepth is the deepest container nesting Decode accepts, the same limit
// encoding/json applies.
const MaxDepth = 10000

// Member is one key/value pair of a JSON object.
type Member struct {
	Key   string
	Value *Value
}

// Value is a decoded JSON value. The zero Value is JSON null.
//
// Only the field matching kind is meaningful. A nil *Value behaves like null
// for every read accessor.
type Value struct {
	kind    Kind
	boolean bool
	number  json.Number
	str     string
	array   []*Value
	object  []Member
}

// NewNull returns a null value.
func NewNull() *Value { return &Value{kind: KindNull} }

// NewBool returns a boolean value.
func NewBool(b bool) *Value { return &Value{kind: KindBool, boolean: b} }

// NewNumber returns a number value from its textual JSON form.
func NewNumber(n json.Number) *Value { return &Value{kind: KindNumber, number: n} }

// NewInt returns a number value holding i.
func NewInt(i int64) *Value {
	return &Value{kind: KindNumber, number: json.Number(strconv.FormatInt(i, 10))}
}

// NewString returns a string value.
func NewString(s string) *Value { return &Value{kind: KindString, str: s} }

// NewArray returns an array holding elems in order.
func NewArray(elems ...*Value) *Value {
	if elems == nil {
		elems = []*Value{}
	}
	return &Value{kind: KindArray, array: elems}
}

// NewStringArray returns an array of strings. A nil slice yields an empty array.
func NewStringArray(items []string) *Value {
	elems := make([]*Value, 0, len(items))
	for _, s := range items {
		elems = append(elems, NewString(s))
	}
	return &Value{kind: KindArray, array: elems}
}

// NewObject returns an object holding members in order.
func NewObject(members ...Member) *Value {
	if members == nil {
		members = []Member{}
	}
	return &Value{kind: KindObject, object: members}
}

// Kind reports the JSON type of v.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether v is null (or nil).
func (v *Value) IsNull() bool {
	return v.Kind() == KindNull
}

// Bool returns the boolean and true when v is a bool.
func (v *Value) Bool() (bool, bool) {
	if v.Kind() != KindBool {
		return false, false
	}
	return v.boolean, true
}

// Number returns the number and true when v is a number.
func (v *Value) Number() (json.Number, bool) {
	if v.Kind() != KindNumber {
		return "", false
	}
	return v.number, true
}

// Str returns the string and true when v is a string.
func (v *Value) Str() (string, bool) {
	if v.Kind() != KindString {
		return "", false
	}
	return v.str, true
}

// Elements returns the array elements, or nil when v is not an array.
func (v *Value) Elements() []*Value {
	if v.Kind() != KindArray {
		return nil
	}
	return v.array
}

// Members returns the object members in encounter order, or nil when v is not an object.
func (v *Value) Members() []Member {
	if v.Kind() != KindObject {
		return nil
	}
	return v.object
}

// Get returns the value of the first member named key.
func (v *Value) Get(key string) (*Value, bool) {
	for _, m := range v.Members() {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// GetString returns the string stored under key, or "" when the member is
// missing or not a string.
func (v *Value) GetString(key string) string {
	child, ok := v.Get(key)
	if !ok {
		return ""
	}
	s, _ := child.Str()
	return s
}

// Set replaces the first member named key, or appends a new member when the
// key is absent. Set is a no-op when v is not an object.
func (v *Value) Set(key string, val *Value) {
	if v.Kind() != KindObject {
		return
	}
	for i := range v.object {
		if v.object[i].Key == key {
			v.object[i].Value = val
			return
		}
	}
	v.object = append(v.object, Member{Key: key, Value: val})
}

// Interface converts v to the generic form produced by encoding/json
// (map[string]any, []any, string, json.Number, bool, nil). Member order is lost.
func (v *Value) Interface() any {
	switch v.Kind() {
	case KindBool:
		return v.boolean
	case KindNumber:
		return v.number
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.array))
		for i, e := range v.array {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.object))
		for _, m := range v.object {
			if _, dup := out[m.Key]; !dup {
				out[m.Key] = m.Value.Interface()
			}
		}
		return out
	default:
		return nil
	}
}

// Decode parses exactly one JSON value from data.
func Decode(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, ErrTrailingData
	}
	return v, nil
}

// decodeValue reads the next complete value from dec. depth counts the
// containers already open around it.
func decodeValue(dec *json.Decoder, depth int) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= MaxDepth {
			return nil, fmt.Errorf("%w: more than %d levels", ErrTooDeep, MaxDepth)
		}
		switch t {
		case '{':
			return decodeObject(dec, depth+1)
		case '[':
			return decodeArray(dec, depth+1)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return NewString(t), nil
	case json.Number:
		return NewNumber(t), nil
	case bool:
		return NewBool(t), nil
	case nil:
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder, depth int) (*Value, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, not string", tok)
		}
		val, err := decodeValue(dec, depth)
		if err != nil {
			return nil, err
		}
		obj.object = append(obj.object, Member{Key: key, Value: val})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder, depth int) (*Value, error) {
	arr := NewArray()
	for dec.More() {
		val, err := decodeValue(dec, depth)
		if err != nil {
			return nil, err
		}
		arr.array = append(arr.array, val)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// MarshalJSON encodes v with object members in their stored order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes data into v, preserving member order.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*v = *decoded
	return nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	switch v.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		if v.number == "" {
			buf.WriteString("0")
			return nil
		}
		buf.WriteString(v.number.String())
	case KindString:
		return writeString(buf, v.str)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.object {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
