package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// graph is a small in-memory ClassGraph: B extends A, C extends B, I is an
// interface implemented by C, Box<T> is covariant and Cell<T> invariant.
type graph struct {
	parents    map[string][]string
	interfaces map[string]bool
	invariant  map[string]bool
}

func testGraph() graph {
	return graph{
		parents: map[string][]string{
			"a": nil, "b": {"a"}, "c": {"b", "i"}, "i": nil, "box": nil, "cell": nil, "other": nil,
		},
		interfaces: map[string]bool{"i": true},
		invariant:  map[string]bool{"cell": true},
	}
}

func (g graph) Known(name string) bool {
	_, ok := g.parents[strings.ToLower(name)]
	return ok
}

func (g graph) IsSubclassOf(child, parent string) bool {
	child, parent = strings.ToLower(child), strings.ToLower(parent)
	if child == parent {
		return true
	}
	for _, p := range g.parents[child] {
		if g.IsSubclassOf(p, parent) {
			return true
		}
	}
	return false
}

func (g graph) IsInterface(name string) bool { return g.interfaces[strings.ToLower(name)] }

func (g graph) TemplateVariance(class string, _ int) Variance {
	if g.invariant[strings.ToLower(class)] {
		return Invariant
	}
	return Covariant
}

func TestIsContainedBy(t *testing.T) {
	testCases := []struct {
		a, b     string
		expected bool
	}{
		{"int", "int|string", true},
		{"int|string", "int", false},
		{"1", "int", true},
		{"'a'", "string", true},
		{"string", "'a'", false},
		{"true", "bool", true},
		{"bool", "true|false", true},
		{"null", "?A", true},
		{"B", "A", true},
		{"C", "A", true},
		{"A", "B", false},
		{"C", "I", true},
		{"C", "A&I", true},
		{"B", "A&I", false},
		{"Box<B>", "Box<A>", true},
		{"Box<A>", "Box<B>", false},
		{"Cell<B>", "Cell<A>", false},
		{"Cell<A>", "Cell<A>", true},
		{"list<int>", "array<int, int>", true},
		{"array{a: int}", "array{a: int, b?: string}", true},
		{"array{a: int, c: int}", "array{a: int, b?: string}", false},
		{"array{0: int, 1: string}", "list<int|string>", true},
		{"array<never, never>", "list<string>", true},
		{"never", "int", true},
		{"mixed", "int", false},
		{"int", "mixed", true},
		{"callable(A): B", "callable(B): A", true},
	}
	g := testGraph()
	for _, tc := range testCases {
		t.Run(tc.a+" <: "+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsContainedBy(MustParse(tc.a), MustParse(tc.b), g))
		})
	}
}

func TestIntersect(t *testing.T) {
	testCases := []struct {
		a, b     string
		expected string
	}{
		{"A|null", "A", "A"},
		{"int|string", "string", "string"},
		{"mixed", "B", "B"},
		{"A", "B", "B"},
		{"B", "A", "B"},
		{"A", "I", "A&I"},
		{"A", "Other", "never"},
		{"int", "string", "never"},
		{"bool", "true", "true"},
		{"A", "Unknown", "A&Unknown"},
		{"array<int, mixed>", "list<string>", "list<string>"},
		{"int|float", "float", "float"},
		{"int|float|string", "int|float", "int|float"},
	}
	g := testGraph()
	for _, tc := range testCases {
		t.Run(tc.a+" & "+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.expected, Intersect(MustParse(tc.a), MustParse(tc.b), g).String())
		})
	}
}

func TestSubtract(t *testing.T) {
	testCases := []struct {
		a, b     string
		expected string
	}{
		{"A|null", "null", "A"},
		{"A|B|int", "B", "A|int"},
		{"A", "B", "A"},
		{"bool", "true", "false"},
		{"mixed", "null", "mixed"},
		{"int", "int", "never"},
		{"int|float", "float", "int"},
		{"1|'a'", "int", "'a'"},
	}
	g := testGraph()
	for _, tc := range testCases {
		t.Run(tc.a+" - "+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.expected, Subtract(MustParse(tc.a), MustParse(tc.b), g).String())
		})
	}
}

func TestTruthiness(t *testing.T) {
	assert.Equal(t, "A|true", Truthy(MustParse("A|null|bool")).String())
	assert.Equal(t, "null|false", Falsy(MustParse("A|null|bool")).String())
	assert.Equal(t, "0|string", Falsy(MustParse("int|string")).String())
	assert.True(t, AlwaysTruthy(MustParse("A")))
	assert.True(t, AlwaysFalsy(MustParse("null|false")))
	assert.False(t, AlwaysTruthy(MustParse("mixed")))
}
