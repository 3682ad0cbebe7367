package pulsive

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants of Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindEntityRef
	KindList
	KindMap
)

// valueEpsilon is the absolute tolerance for Float equality (§3).
const valueEpsilon = 1e-15

// Value is the dynamic, tagged value type flowing through expressions,
// effects, and storage. Maps preserve insertion order.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	ref  EntityRef
	list []Value
	m    *ValueMap
}

func Null() Value               { return Value{kind: KindNull} }
func BoolValue(b bool) Value    { return Value{kind: KindBool, b: b} }
func IntValue(i int64) Value    { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func EntityRefValue(r EntityRef) Value { return Value{kind: KindEntityRef, ref: r} }
func ListValue(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}
func MapValue(m *ValueMap) Value {
	if m == nil {
		m = NewValueMap()
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)     { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsEntityRef() (EntityRef, bool) {
	return v.ref, v.kind == KindEntityRef
}
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }
func (v Value) AsMap() (*ValueMap, bool) { return v.m, v.kind == KindMap }

// IsNull reports whether v is the Null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Truthy implements §3's truthiness rule: Null/false/0/0.0/""/[]/{} are
// falsy, an EntityRef is always truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindEntityRef:
		return true
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return v.m != nil && v.m.Len() > 0
	default:
		return false
	}
}

// AsNumber coerces v to a float64, following the one-directional
// Int->Float coercion rule. Returns (0, false) for non-numeric kinds.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Equal compares two values. Float comparisons (including a Float
// against a coerced Int) use an absolute epsilon of 1e-15.
func (v Value) Equal(other Value) bool {
	vn, vIsNum := v.AsNumber()
	on, oIsNum := other.AsNumber()
	if vIsNum && oIsNum {
		return math.Abs(vn-on) <= valueEpsilon
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	case KindEntityRef:
		return v.ref == other.ref
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if v.m == nil || other.m == nil {
			return v.m == other.m
		}
		if v.m.Len() != other.m.Len() {
			return false
		}
		for _, k := range v.m.Keys() {
			a, _ := v.m.Get(k)
			b, ok := other.m.Get(k)
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Text returns the canonical textual form used by string concatenation
// (§4.1): quoted strings, decimal numbers, true/false, null,
// EntityRef.String() forms for refs, and bracketed/braced forms for
// lists and maps.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return "\"" + v.s + "\""
	case KindEntityRef:
		return v.ref.String()
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Text()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindMap:
		if v.m == nil {
			return "{}"
		}
		parts := make([]string, 0, v.m.Len())
		for _, k := range v.m.Keys() {
			val, _ := v.m.Get(k)
			parts = append(parts, fmt.Sprintf("%s:%s", k, val.Text()))
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return "null"
	}
}

// ValueMap is an insertion-ordered String->Value mapping.
type ValueMap struct {
	keys   []string
	values map[string]Value
}

// NewValueMap creates an empty ordered map.
func NewValueMap() *ValueMap {
	return &ValueMap{values: make(map[string]Value)}
}

// Set inserts or updates key. Updating an existing key keeps its
// original position.
func (m *ValueMap) Set(key string, v Value) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get reads key, returning (Null, false) if absent.
func (m *ValueMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key, returning true if it was present.
func (m *ValueMap) Delete(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order.
func (m *ValueMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len reports the number of entries.
func (m *ValueMap) Len() int { return len(m.keys) }

// Clone returns a deep copy of m.
func (m *ValueMap) Clone() *ValueMap {
	out := NewValueMap()
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}
