package collate

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/viewkit/viewkit/errors"
)

// Kind is the type tag of a Value
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
	Unknown
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Member is a single key/value pair of an object Value
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable json-like value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  []Member
}

// NewBool returns a boolean Value
func NewBool(b bool) Value {
	return Value{kind: Bool, b: b}
}

// NewNumber returns a numeric Value
func NewNumber(n float64) Value {
	return Value{kind: Number, n: n}
}

// NewString returns a string Value
func NewString(s string) Value {
	return Value{kind: String, s: s}
}

// NewArray returns an array Value holding the given elements
func NewArray(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: Array, arr: elems}
}

// NewObject returns an object Value. Member order is preserved.
func NewObject(members ...Member) Value {
	if members == nil {
		members = []Member{}
	}
	return Value{kind: Object, obj: members}
}

// NewUnknown returns a Value that sorts after every other type
func NewUnknown() Value {
	return Value{kind: Unknown}
}

// Kind returns the type tag of the value
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.kind == Null
}

// Bool returns the boolean payload
func (v Value) Bool() bool {
	return v.b
}

// Number returns the numeric payload
func (v Value) Number() float64 {
	return v.n
}

// Text returns the string payload
func (v Value) Text() string {
	return v.s
}

// Array returns the elements of an array value
func (v Value) Array() []Value {
	return v.arr
}

// Object returns the members of an object value
func (v Value) Object() []Member {
	return v.obj
}

// Len returns the number of elements or members, 0 for scalars
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj)
	default:
		return 0
	}
}

// Get returns the member with the given key of an object value
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.obj {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// String returns the value as a json string
func (v Value) String() string {
	bits, _ := v.MarshalJSON()
	return string(bits)
}

// MarshalJSON satisfies the json Marshaler interface
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		bits, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		buf.Write(bits)
	case String:
		bits, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(bits)
	case Array:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
	return nil
}

// UnmarshalJSON satisfies the json Unmarshaler interface
func (v *Value) UnmarshalJSON(bits []byte) error {
	parsed, err := ParseJSON(bits)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseJSON parses json bytes into a Value, preserving object member order
func ParseJSON(bits []byte) (Value, error) {
	if !gjson.ValidBytes(bits) {
		return Value{}, errors.New(errors.Validation, errors.BadRequest, "invalid json: %s", string(bits))
	}
	return FromResult(gjson.ParseBytes(bits)), nil
}

// FromResult converts a parsed gjson result into a Value
func FromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Value{}
	case gjson.False:
		return NewBool(false)
	case gjson.True:
		return NewBool(true)
	case gjson.Number:
		return NewNumber(r.Num)
	case gjson.String:
		return NewString(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			elems := []Value{}
			r.ForEach(func(_, value gjson.Result) bool {
				elems = append(elems, FromResult(value))
				return true
			})
			return NewArray(elems...)
		}
		members := []Member{}
		r.ForEach(func(key, value gjson.Result) bool {
			members = append(members, Member{Key: key.Str, Value: FromResult(value)})
			return true
		})
		return NewObject(members...)
	default:
		return Value{}
	}
}

// FromAny converts a json compatible go value into a Value. Map keys are sorted.
func FromAny(input any) Value {
	switch input := input.(type) {
	case nil:
		return Value{}
	case Value:
		return input
	case bool:
		return NewBool(input)
	case string:
		return NewString(input)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return NewNumber(cast.ToFloat64(input))
	case json.Number:
		f, err := input.Float64()
		if err != nil {
			return NewUnknown()
		}
		return NewNumber(f)
	case []any:
		elems := make([]Value, 0, len(input))
		for _, e := range input {
			elems = append(elems, FromAny(e))
		}
		return NewArray(elems...)
	case []string:
		return NewArray(lo.Map(input, func(s string, _ int) Value { return NewString(s) })...)
	case map[string]any:
		keys := lo.Keys(input)
		sort.Strings(keys)
		members := make([]Member, 0, len(keys))
		for _, k := range keys {
			members = append(members, Member{Key: k, Value: FromAny(input[k])})
		}
		return NewObject(members...)
	case json.RawMessage:
		v, err := ParseJSON(input)
		if err != nil {
			return NewUnknown()
		}
		return v
	default:
		bits, err := json.Marshal(input)
		if err != nil {
			return NewUnknown()
		}
		v, err := ParseJSON(bits)
		if err != nil {
			return NewUnknown()
		}
		return v
	}
}

// Interface converts the value into plain go values (nil, bool, float64, string, []any, map[string]any)
func (v Value) Interface() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return v.n
	case String:
		return v.s
	case Array:
		out := make([]any, 0, len(v.arr))
		for _, e := range v.arr {
			out = append(out, e.Interface())
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj))
		for _, m := range v.obj {
			out[m.Key] = m.Value.Interface()
		}
		return out
	default:
		return nil
	}
}
