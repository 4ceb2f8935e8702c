package document

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds.
const (
	KindInvalid Kind = iota
	KindString
	KindInteger
	KindBoolean
	KindFloat
	KindMap
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindFloat:
		return "float"
	case KindMap:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "invalid"
	}
}

// Value is one node of an options tree. The zero Value is invalid and is
// rejected by the encoder.
type Value struct {
	kind Kind
	str  string
	num  int64
	flag bool
	real float64
	m    *Map
	seq  []Value
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInteger, num: i} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBoolean, flag: b} }

// Float returns a float Value.
func Float(f float64) Value { return Value{kind: KindFloat, real: f} }

// MapValue wraps a mapping. A nil map is treated as empty.
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// Sequence returns a sequence Value holding vs in order.
func Sequence(vs ...Value) Value {
	seq := make([]Value, len(vs))
	copy(seq, vs)
	return Value{kind: KindSequence, seq: seq}
}

// Strings is a convenience for a sequence of string Values.
func Strings(ss ...string) Value {
	seq := make([]Value, len(ss))
	for i, s := range ss {
		seq[i] = String(s)
	}
	return Value{kind: KindSequence, seq: seq}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInteger }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBoolean }

// AsFloat returns the float held by v.
func (v Value) AsFloat() (float64, bool) { return v.real, v.kind == KindFloat }

// AsMap returns the mapping held by v.
func (v Value) AsMap() (*Map, bool) { return v.m, v.kind == KindMap }

// AsSequence returns the elements held by v. The slice must not be modified.
func (v Value) AsSequence() ([]Value, bool) { return v.seq, v.kind == KindSequence }

// Plain converts v to the equivalent plain Go value (string, int64, bool,
// float64, map[string]any, []any). Used to build JSON request bodies.
func (v Value) Plain() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInteger:
		return v.num
	case KindBoolean:
		return v.flag
	case KindFloat:
		return v.real
	case KindMap:
		return v.m.Plain()
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Plain()
		}
		return out
	default:
		return nil
	}
}

func (v Value) clone() Value {
	switch v.kind {
	case KindMap:
		return MapValue(v.m.Clone())
	case KindSequence:
		seq := make([]Value, len(v.seq))
		for i, e := range v.seq {
			seq[i] = e.clone()
		}
		return Value{kind: KindSequence, seq: seq}
	default:
		return v
	}
}

// FromGo converts a plain Go value into a Value. Go maps carry no order, so
// their keys are sorted; use Map directly when order matters.
func FromGo(x any) (Value, error) {
	return fromGo(x, "")
}

func fromGo(x any, path string) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case *Map:
		return MapValue(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint32:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []string:
		return Strings(t...), nil
	case nil:
		return Value{}, &SerializationError{Path: path, Reason: "null values are not representable"}
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return Value{}, &SerializationError{Path: path, Reason: "integer overflows int64"}
		}
		return Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		seq := make([]Value, rv.Len())
		for i := range seq {
			e, err := fromGo(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Value{}, err
			}
			seq[i] = e
		}
		return Value{kind: KindSequence, seq: seq}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, &SerializationError{Path: path, Reason: fmt.Sprintf("mapping keys must be strings, got %s", rv.Type().Key())}
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			e, err := fromGo(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface(), joinPath(path, k))
			if err != nil {
				return Value{}, err
			}
			m.Set(k, e)
		}
		return MapValue(m), nil
	}
	return Value{}, &SerializationError{Path: path, Reason: fmt.Sprintf("unsupported type %T", x)}
}
