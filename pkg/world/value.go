// Package world holds the object model shared by the cache, the stores and
// the G interpreter: objects, attribute values, and the document-store
// contract the cache writes through to.
package world

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a G attribute value. The dynamic type is one of:
// nil, string, float64, bool, List, Map, or Ref.
// G source code is carried as a plain string and only gains meaning when
// an attribute is invoked.
type Value = any

// List is an ordered sequence of values.
type List []Value

// Map is a string-keyed mapping of values.
type Map map[string]Value

// Ref is an object reference by ID. Human-chosen IDs carry their leading
// '#' (e.g. "#commands"); server-assigned IDs are bare unique strings.
type Ref string

// ToString coerces any value to its string form. G is string-centric, so
// every value has one: nil is the empty string, lists are bracketed and
// space-joined, numbers are decimal, booleans are "true"/"false".
func ToString(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case Ref:
		return string(t)
	case List:
		parts := make([]string, len(t))
		for i, el := range t {
			parts[i] = ToString(el)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case Map:
		parts := make([]string, 0, len(t))
		for k, el := range t {
			parts = append(parts, k+" "+ToString(el))
		}
		return "{" + strings.Join(parts, " ") + "}"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ToNumber coerces a value to a float64. Strings are parsed as
// decimals; anything unparseable yields 0.
func ToNumber(v Value) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Truthy reports G truthiness: false, 0, nil, and the empty string are
// false; everything else is true.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	case List:
		return len(t) > 0
	case Map:
		return len(t) > 0
	default:
		return true
	}
}

// Equal compares two values: value-wise for primitives, identity (by ID)
// for object references, element-wise for lists.
func Equal(a, b Value) bool {
	ra, aIsRef := a.(Ref)
	rb, bIsRef := b.(Ref)
	if aIsRef || bIsRef {
		return aIsRef && bIsRef && ra == rb
	}
	la, aIsList := a.(List)
	lb, bIsList := b.(List)
	if aIsList || bIsList {
		if !aIsList || !bIsList || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	// Numeric comparison when both sides read as numbers and at least one
	// is a number already (so "a" == "a" stays string equality).
	if na, okA := a.(float64); okA {
		return na == ToNumber(b)
	}
	if nb, okB := b.(float64); okB {
		return ToNumber(a) == nb
	}
	return ToString(a) == ToString(b)
}

// encodedValue is the persisted JSON shape of a Value. Refs and maps get
// explicit tags so they survive a round trip; the natural JSON types map
// directly.
type encodedValue struct {
	Ref *string          `json:"$ref,omitempty"`
	Map map[string]Value `json:"$map,omitempty"`
}

// MarshalValue encodes a Value for storage.
func MarshalValue(v Value) (json.RawMessage, error) {
	switch t := v.(type) {
	case Ref:
		s := string(t)
		return json.Marshal(encodedValue{Ref: &s})
	case Map:
		return json.Marshal(encodedValue{Map: t})
	case List:
		parts := make([]json.RawMessage, len(t))
		for i, el := range t {
			enc, err := MarshalValue(el)
			if err != nil {
				return nil, err
			}
			parts[i] = enc
		}
		return json.Marshal(parts)
	default:
		return json.Marshal(v)
	}
}

// UnmarshalValue decodes a stored Value.
func UnmarshalValue(data json.RawMessage) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("world: decode value: %w", err)
	}
	return fromRaw(raw), nil
}

// fromRaw converts decoded JSON into Value form, restoring tagged refs
// and maps.
func fromRaw(raw any) Value {
	switch t := raw.(type) {
	case map[string]any:
		if r, ok := t["$ref"].(string); ok && len(t) == 1 {
			return Ref(r)
		}
		if m, ok := t["$map"].(map[string]any); ok && len(t) == 1 {
			out := make(Map, len(m))
			for k, el := range m {
				out[k] = fromRaw(el)
			}
			return out
		}
		out := make(Map, len(t))
		for k, el := range t {
			out[k] = fromRaw(el)
		}
		return out
	case []any:
		out := make(List, len(t))
		for i, el := range t {
			out[i] = fromRaw(el)
		}
		return out
	default:
		return t
	}
}

// CloneValue returns a deep copy of a value. Scalars are returned as-is.
func CloneValue(v Value) Value {
	switch t := v.(type) {
	case List:
		out := make(List, len(t))
		for i, el := range t {
			out[i] = CloneValue(el)
		}
		return out
	case Map:
		out := make(Map, len(t))
		for k, el := range t {
			out[k] = CloneValue(el)
		}
		return out
	default:
		return v
	}
}
