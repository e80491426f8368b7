package storage

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueType tags the variant held by a PropertyValue.
type ValueType int

const (
	TypeNull ValueType = iota
	TypeBool
	TypeInt
	TypeDouble
	TypeString
	TypeList
	TypeMap
)

// String returns the type name for log fields and error messages.
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	}
	return "unknown"
}

// typeClass orders type tags for the total property order. Int and Double
// share a class because they compare numerically with each other.
func (t ValueType) typeClass() int {
	switch t {
	case TypeNull:
		return 0
	case TypeBool:
		return 1
	case TypeInt, TypeDouble:
		return 2
	case TypeString:
		return 3
	case TypeList:
		return 4
	case TypeMap:
		return 5
	}
	return 6
}

// PropertyValue is a tagged union over the value types a vertex or edge
// property can hold.
type PropertyValue struct {
	t ValueType
	b bool
	i int64
	d float64
	s string
	l []PropertyValue
	m map[string]PropertyValue
}

// NullValue returns the null property value.
func NullValue() PropertyValue {
	return PropertyValue{t: TypeNull}
}

// BoolValue wraps a bool.
func BoolValue(b bool) PropertyValue {
	return PropertyValue{t: TypeBool, b: b}
}

// IntValue wraps an int64.
func IntValue(i int64) PropertyValue {
	return PropertyValue{t: TypeInt, i: i}
}

// DoubleValue wraps a float64. NaN is rejected because it would break the
// strict weak ordering the property index relies on.
func DoubleValue(d float64) (PropertyValue, error) {
	if math.IsNaN(d) {
		return PropertyValue{}, fmt.Errorf("NaN double: %w", ErrInvalidValue)
	}
	return PropertyValue{t: TypeDouble, d: d}, nil
}

// StringValue wraps a string.
func StringValue(s string) PropertyValue {
	return PropertyValue{t: TypeString, s: s}
}

// ListValue wraps a list of property values.
func ListValue(l []PropertyValue) PropertyValue {
	return PropertyValue{t: TypeList, l: l}
}

// MapValue wraps a string-keyed map of property values.
func MapValue(m map[string]PropertyValue) PropertyValue {
	return PropertyValue{t: TypeMap, m: m}
}

// Type returns the variant tag.
func (v PropertyValue) Type() ValueType {
	return v.t
}

// IsNull reports whether the value is null.
func (v PropertyValue) IsNull() bool {
	return v.t == TypeNull
}

// ValueBool returns the held bool or fails on a different tag.
func (v PropertyValue) ValueBool() (bool, error) {
	if v.t != TypeBool {
		return false, fmt.Errorf("value is %s, not bool: %w", v.t, ErrPropertyTypeMismatch)
	}
	return v.b, nil
}

// ValueInt returns the held int64 or fails on a different tag.
func (v PropertyValue) ValueInt() (int64, error) {
	if v.t != TypeInt {
		return 0, fmt.Errorf("value is %s, not int: %w", v.t, ErrPropertyTypeMismatch)
	}
	return v.i, nil
}

// ValueDouble returns the held float64 or fails on a different tag.
func (v PropertyValue) ValueDouble() (float64, error) {
	if v.t != TypeDouble {
		return 0, fmt.Errorf("value is %s, not double: %w", v.t, ErrPropertyTypeMismatch)
	}
	return v.d, nil
}

// ValueString returns the held string or fails on a different tag.
func (v PropertyValue) ValueString() (string, error) {
	if v.t != TypeString {
		return "", fmt.Errorf("value is %s, not string: %w", v.t, ErrPropertyTypeMismatch)
	}
	return v.s, nil
}

// ValueList returns the held list or fails on a different tag.
func (v PropertyValue) ValueList() ([]PropertyValue, error) {
	if v.t != TypeList {
		return nil, fmt.Errorf("value is %s, not list: %w", v.t, ErrPropertyTypeMismatch)
	}
	return v.l, nil
}

// ValueMap returns the held map or fails on a different tag.
func (v PropertyValue) ValueMap() (map[string]PropertyValue, error) {
	if v.t != TypeMap {
		return nil, fmt.Errorf("value is %s, not map: %w", v.t, ErrPropertyTypeMismatch)
	}
	return v.m, nil
}

// Equal reports strict equality: tags must match exactly, so Int(1) and
// Double(1.0) are not Equal even though they compare as the same index key.
// Index code uses CompareValues instead.
func (v PropertyValue) Equal(other PropertyValue) bool {
	if v.t != other.t {
		return false
	}
	switch v.t {
	case TypeNull:
		return true
	case TypeBool:
		return v.b == other.b
	case TypeInt:
		return v.i == other.i
	case TypeDouble:
		return v.d == other.d
	case TypeString:
		return v.s == other.s
	case TypeList:
		if len(v.l) != len(other.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(other.l[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, mv := range v.m {
			ov, ok := other.m[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// CompareValues imposes the total order used by the label+property index:
// Null < Bool < Int/Double < String < List < Map, numeric values compared
// cross-type as doubles, lists and maps lexicographic over their elements.
// It returns a negative number, zero, or a positive number.
func CompareValues(a, b PropertyValue) int {
	if ca, cb := a.t.typeClass(), b.t.typeClass(); ca != cb {
		return ca - cb
	}
	switch a.t {
	case TypeNull:
		return 0
	case TypeBool:
		return boolCompare(a.b, b.b)
	case TypeInt, TypeDouble:
		return numericCompare(a, b)
	case TypeString:
		return strings.Compare(a.s, b.s)
	case TypeList:
		for i := 0; i < len(a.l) && i < len(b.l); i++ {
			if c := CompareValues(a.l[i], b.l[i]); c != 0 {
				return c
			}
		}
		return len(a.l) - len(b.l)
	case TypeMap:
		return mapCompare(a.m, b.m)
	}
	return 0
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

// numericCompare stays in the int64 domain when both sides are ints so that
// large integers outside the float64 mantissa still order exactly.
func numericCompare(a, b PropertyValue) int {
	if a.t == TypeInt && b.t == TypeInt {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	}
	af, bf := a.asDouble(), b.asDouble()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

func mapCompare(a, b map[string]PropertyValue) int {
	ak := sortedKeys(a)
	bk := sortedKeys(b)
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := strings.Compare(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := CompareValues(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return len(ak) - len(bk)
}

func sortedKeys(m map[string]PropertyValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v PropertyValue) asDouble() float64 {
	if v.t == TypeInt {
		return float64(v.i)
	}
	return v.d
}

// clone deep-copies list and map payloads so version payloads never share
// mutable state.
func (v PropertyValue) clone() PropertyValue {
	switch v.t {
	case TypeList:
		l := make([]PropertyValue, len(v.l))
		for i := range v.l {
			l[i] = v.l[i].clone()
		}
		return PropertyValue{t: TypeList, l: l}
	case TypeMap:
		m := make(map[string]PropertyValue, len(v.m))
		for k, mv := range v.m {
			m[k] = mv.clone()
		}
		return PropertyValue{t: TypeMap, m: m}
	default:
		return v
	}
}

// String renders the value for the REPL and log output.
func (v PropertyValue) String() string {
	switch v.t {
	case TypeNull:
		return "null"
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeDouble:
		return strconv.FormatFloat(v.d, 'g', -1, 64)
	case TypeString:
		return strconv.Quote(v.s)
	case TypeList:
		parts := make([]string, len(v.l))
		for i := range v.l {
			parts[i] = v.l[i].String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeMap:
		keys := sortedKeys(v.m)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, v.m[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "unknown"
}

// lowestOfClass returns the smallest representable value of the type class of
// t. Range scans seek here when only an upper bound restricts the class.
func lowestOfClass(t ValueType) PropertyValue {
	switch t {
	case TypeBool:
		return BoolValue(false)
	case TypeInt, TypeDouble:
		return PropertyValue{t: TypeDouble, d: math.Inf(-1)}
	case TypeString:
		return StringValue("")
	case TypeList:
		return ListValue(nil)
	case TypeMap:
		return MapValue(nil)
	default:
		return NullValue()
	}
}
