package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUnionNormalises(t *testing.T) {
	testCases := []struct {
		in       []Atomic
		expected string
	}{
		{nil, "never"},
		{[]Atomic{Int{}, Int{}}, "int"},
		{[]Atomic{LitInt{1}, LitInt{1}, LitInt{2}}, "1|2"},
		{[]Atomic{LitString{"a"}, String{}}, "string"},
		{[]Atomic{LitBool{true}, Null{}, LitBool{false}}, "bool|null"},
		{[]Atomic{Never{}, Int{}}, "int"},
		{[]Atomic{Int{}, Mixed{}}, "mixed"},
		{[]Atomic{List{Value: IntType()}, List{Value: StringType()}}, "list<int|string>"},
		{[]Atomic{Shape{}, List{Value: IntType()}}, "list<int>"},
		{[]Atomic{
			Shape{Entries: []ShapeEntry{{Key: "a", Type: IntType()}}},
			Shape{Entries: []ShapeEntry{{Key: "b", Type: StringType()}}},
		}, "array{a?: int, b?: string}"},
		{[]Atomic{List{Value: IntType()}, Array{Key: StringType(), Value: BoolType()}}, "array<int|string, int|bool>"},
	}
	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, NewUnion(tc.in...).String())
		})
	}
}

func TestCombineLaws(t *testing.T) {
	samples := []string{
		"int", "'a'|'b'", "string", "A|null", "B", "true", "false", "array{a: int}",
		"list<string>", "array<string, int>", "float|1", "mixed", "never", "Box<int>",
	}
	g := testGraph()
	for _, sa := range samples {
		for _, sb := range samples {
			a, b := MustParse(sa), MustParse(sb)
			t.Run(sa+" + "+sb, func(t *testing.T) {
				ab, ba := Combine(a, b), Combine(b, a)
				assert.True(t, ab.Equal(ba), "not commutative: %s vs %s", ab, ba)
				assert.True(t, Combine(a, a).Equal(a), "not idempotent: %s", Combine(a, a))
				assert.True(t, IsContainedBy(a, ab, g), "%s not contained by %s", a, ab)
			})
		}
	}
}

func TestCombineFlags(t *testing.T) {
	a := IntType().WithPossiblyUndefined(true)
	b := StringType()
	assert.True(t, Combine(a, b).PossiblyUndefined)
	assert.False(t, Combine(b, b).PossiblyUndefined)
}

func TestWiden(t *testing.T) {
	assert.Equal(t, "int|string", CombineWidened(MustParse("1"), MustParse("'s'")).String())
	assert.Equal(t, "list<int>", Widen(MustParse("list<1|2>")).String())
	assert.Equal(t, "string", Combine(MustParse("string"), MustParse("'s'")).String())
}

func TestWithIterationValue(t *testing.T) {
	testCases := []struct {
		in, written, expected string
	}{
		{"list<int>", "string", "list<int|string>"},
		{"array<string, int>|null", "float", "array<string, int|float>|null"},
		{"array{a: int, b?: string}", "null", "array{a: int|null, b?: string|null}"},
		{"int", "string", "int"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got := WithIterationValue(MustParse(tc.in), MustParse(tc.written))
			assert.True(t, got.SameType(MustParse(tc.expected)), "got %s", got)
		})
	}
}
