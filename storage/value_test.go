package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPropertyValueAccessors(t *testing.T) {
	v := IntValue(42)
	i, err := v.ValueInt()
	require.NoError(t, err)
	require.Equal(t, int64(42), i)

	_, err = v.ValueString()
	require.ErrorIs(t, err, ErrPropertyTypeMismatch)

	s := StringValue("hello")
	got, err := s.ValueString()
	require.NoError(t, err)
	require.Equal(t, "hello", got)

	require.True(t, NullValue().IsNull())
	require.False(t, v.IsNull())
}

func TestDoubleValueRejectsNaN(t *testing.T) {
	_, err := DoubleValue(math.NaN())
	require.ErrorIs(t, err, ErrInvalidValue)

	d, err := DoubleValue(3.14)
	require.NoError(t, err)
	require.Equal(t, TypeDouble, d.Type())
}

func TestEqualIsStrictOnTags(t *testing.T) {
	d, err := DoubleValue(1.0)
	require.NoError(t, err)

	require.False(t, IntValue(1).Equal(d))
	require.True(t, IntValue(1).Equal(IntValue(1)))
	require.Zero(t, CompareValues(IntValue(1), d))
}

func TestCompareValuesTypeClassOrder(t *testing.T) {
	d, err := DoubleValue(2.5)
	require.NoError(t, err)

	ordered := []PropertyValue{
		NullValue(),
		BoolValue(false),
		BoolValue(true),
		IntValue(-10),
		d,
		IntValue(3),
		StringValue(""),
		StringValue("a"),
		ListValue(nil),
		ListValue([]PropertyValue{IntValue(1)}),
		MapValue(nil),
		MapValue(map[string]PropertyValue{"k": IntValue(1)}),
	}
	for i := 0; i < len(ordered)-1; i++ {
		require.Negative(t, CompareValues(ordered[i], ordered[i+1]),
			"expected %s < %s", ordered[i], ordered[i+1])
	}
}

func TestCompareValuesLargeIntsStayExact(t *testing.T) {
	a := IntValue(math.MaxInt64)
	b := IntValue(math.MaxInt64 - 1)
	require.Positive(t, CompareValues(a, b))
	require.Negative(t, CompareValues(b, a))
}

func TestCompareValuesNested(t *testing.T) {
	a := ListValue([]PropertyValue{IntValue(1), IntValue(2)})
	b := ListValue([]PropertyValue{IntValue(1), IntValue(3)})
	require.Negative(t, CompareValues(a, b))
	require.Negative(t, CompareValues(a, ListValue([]PropertyValue{IntValue(1), IntValue(2), IntValue(0)})))

	m1 := MapValue(map[string]PropertyValue{"a": IntValue(1)})
	m2 := MapValue(map[string]PropertyValue{"a": IntValue(1), "b": IntValue(2)})
	require.Negative(t, CompareValues(m1, m2))
	require.Zero(t, CompareValues(m2, MapValue(map[string]PropertyValue{"b": IntValue(2), "a": IntValue(1)})))
}

func TestCloneIsolatesNestedValues(t *testing.T) {
	inner := []PropertyValue{IntValue(1)}
	original := ListValue(inner)
	copied := original.clone()

	inner[0] = IntValue(99)
	l, err := copied.ValueList()
	require.NoError(t, err)
	require.True(t, l[0].Equal(IntValue(1)))
}

func TestValueString(t *testing.T) {
	d, err := DoubleValue(1.5)
	require.NoError(t, err)

	require.Equal(t, "null", NullValue().String())
	require.Equal(t, "true", BoolValue(true).String())
	require.Equal(t, "42", IntValue(42).String())
	require.Equal(t, "1.5", d.String())
	require.Equal(t, `"hi"`, StringValue("hi").String())
	require.Equal(t, "[1, 2]", ListValue([]PropertyValue{IntValue(1), IntValue(2)}).String())
	require.Equal(t, `{a: 1, b: "x"}`, MapValue(map[string]PropertyValue{
		"b": StringValue("x"),
		"a": IntValue(1),
	}).String())
}
