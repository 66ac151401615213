// Package attr models the untyped attribute maps exchanged with the host as
// a tagged variant, with explicit conversions that fail with a
// ValidationError instead of panicking on a type mismatch.
package attr

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"sqlite-provider/internal/domain"
)

// Kind identifies which variant a Value holds.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindString
	KindBool
	KindNumber
	KindList
	KindMap
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one attribute value. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	b    bool
	num  float64
	list []Value
	m    Map
}

// Map is an attribute map keyed by field name.
type Map map[string]Value

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps n.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// List wraps the given elements.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// Strings builds a list of string values.
func Strings(items ...string) Value {
	out := make([]Value, len(items))
	for i, s := range items {
		out[i] = String(s)
	}
	return List(out...)
}

// MapValue wraps m.
func MapValue(m Map) Value {
	if m == nil {
		m = Map{}
	}
	return Value{kind: KindMap, m: m}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) mismatch(want Kind) error {
	return domain.ErrValidation("expected %s, got %s", want, v.kind)
}

// AsString returns the string held by v.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.mismatch(KindString)
	}
	return v.str, nil
}

// AsBool returns the bool held by v.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, v.mismatch(KindBool)
	}
	return v.b, nil
}

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, error) {
	if v.kind != KindNumber {
		return 0, v.mismatch(KindNumber)
	}
	return v.num, nil
}

// AsList returns the elements held by v.
func (v Value) AsList() ([]Value, error) {
	if v.kind != KindList {
		return nil, v.mismatch(KindList)
	}
	return v.list, nil
}

// AsMap returns the map held by v.
func (v Value) AsMap() (Map, error) {
	if v.kind != KindMap {
		return nil, v.mismatch(KindMap)
	}
	return v.m, nil
}

// Equal reports deep equality of kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(o.m)
	default:
		return false
	}
}

// GoString renders v compactly for plan output and diffs.
func (v Value) GoString() string {
	data, err := json.Marshal(v.ToAny())
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(data)
}

// ToAny converts v into plain Go values (string, bool, float64, []any,
// map[string]any, nil).
func (v Value) ToAny() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.ToAny()
		}
		return out
	case KindMap:
		return v.m.ToAny()
	default:
		return nil
	}
}

// FromAny converts decoded YAML or JSON data into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case float32:
		return Number(float64(t)), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Value{}, domain.ErrValidation("number %v is not finite", t)
		}
		return Number(t), nil
	case []string:
		return Strings(t...), nil
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, domain.ErrValidationAt(fmt.Sprintf("[%d]", i), "%s", err.Error())
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]any:
		m, err := MapFromAny(t)
		if err != nil {
			return Value{}, err
		}
		return MapValue(m), nil
	default:
		return Value{}, domain.ErrValidation("unsupported attribute type %T", x)
	}
}

// MarshalJSON encodes v as plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON decodes plain JSON into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	parsed, err := FromAny(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MapFromAny converts a decoded object into a Map.
func MapFromAny(src map[string]any) (Map, error) {
	out := make(Map, len(src))
	for k, e := range src {
		v, err := FromAny(e)
		if err != nil {
			return nil, domain.ErrValidationAt(k, "%s", err.Error())
		}
		out[k] = v
	}
	return out, nil
}

// ToAny converts m into a map of plain Go values.
func (m Map) ToAny() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.ToAny()
	}
	return out
}

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is present and not null.
func (m Map) Has(key string) bool {
	v, ok := m[key]
	return ok && !v.IsNull()
}

// Clone returns a shallow copy of m. Values are immutable, so sharing them is safe.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold equal values under the same keys.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// String returns the required string attribute key.
func (m Map) String(key string) (string, error) {
	v, ok := m[key]
	if !ok || v.IsNull() {
		return "", domain.ErrValidationAt(key, "is required")
	}
	s, err := v.AsString()
	if err != nil {
		return "", domain.ErrValidationAt(key, "%s", err.Error())
	}
	return s, nil
}

// OptionalString returns the string attribute key, or nil when absent.
func (m Map) OptionalString(key string) (*string, error) {
	if !m.Has(key) {
		return nil, nil
	}
	s, err := m[key].AsString()
	if err != nil {
		return nil, domain.ErrValidationAt(key, "%s", err.Error())
	}
	return &s, nil
}

// OptionalBool returns the bool attribute key, or false when absent.
func (m Map) OptionalBool(key string) (bool, error) {
	if !m.Has(key) {
		return false, nil
	}
	b, err := m[key].AsBool()
	if err != nil {
		return false, domain.ErrValidationAt(key, "%s", err.Error())
	}
	return b, nil
}

// List returns the required list attribute key.
func (m Map) List(key string) ([]Value, error) {
	v, ok := m[key]
	if !ok || v.IsNull() {
		return nil, domain.ErrValidationAt(key, "is required")
	}
	items, err := v.AsList()
	if err != nil {
		return nil, domain.ErrValidationAt(key, "%s", err.Error())
	}
	return items, nil
}

// Map returns the nested map attribute key, or an empty map when absent.
func (m Map) Map(key string) (Map, error) {
	if !m.Has(key) {
		return Map{}, nil
	}
	nested, err := m[key].AsMap()
	if err != nil {
		return nil, domain.ErrValidationAt(key, "%s", err.Error())
	}
	return nested, nil
}
