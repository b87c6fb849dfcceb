package types_test

import (
	"testing"

	"github.com/cottand/typeflow/frontend/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unionComparer = cmp.Comparer(func(a, b types.Union) bool { return a.Equal(b) })

func TestParseRoundTrip(t *testing.T) {
	testCases := map[string]string{
		"int":                          "int",
		"?Foo":                         "Foo|null",
		"int|false":                    "int|false",
		"array<string, list<int>>":     "array<string, list<int>>",
		"array{a: int, b?: string}":    "array{a: int, b?: string}",
		"array{int, string}":           "array{0: int, 1: string}",
		"callable(int, string=): bool": "callable(int, string=): bool",
		"Box<T>&Countable":             "Box<T>&Countable",
		`'it\'s'|"x"`:                  `'it\'s'|'x'`,
		"-3|4.5":                       "-3|4.5",
		"array-key":                    "int|string",
		"\\Foo\\Bar":                   "Foo\\Bar",
		"(int|string)|null":            "int|string|null",
		"array<never, never>":          "array<never, never>",
		"array{'quoted key': int}":     "array{\"quoted key\": int}",
		"callable(...mixed): void":     "callable(...mixed): void",
	}
	for in, expected := range testCases {
		t.Run(in, func(t *testing.T) {
			u, err := types.Parse(in)
			require.NoError(t, err)
			assert.Equal(t, expected, u.String())
		})
	}
}

func TestParseTemplates(t *testing.T) {
	tmpl := types.Template{Name: "T", DefinedIn: "Box", Bound: types.MixedType()}
	u, err := types.ParseWithTemplates("list<T>|null", map[string]types.Template{"T": tmpl})
	require.NoError(t, err)
	assert.True(t, types.HasTemplates(u))

	substituted := types.Substitute(u, types.Bindings{types.TemplateKey("T", "Box"): types.IntType()})
	if diff := cmp.Diff(types.MustParse("list<int>|null"), substituted, unionComparer); diff != "" {
		t.Errorf("unexpected substitution (-want +got):\n%s", diff)
	}

	unbound := types.Substitute(u, types.Bindings{})
	assert.Equal(t, "list<mixed>|null", unbound.String())
}

func TestInferTemplates(t *testing.T) {
	tmpl := types.Template{Name: "T", DefinedIn: "f"}
	param := types.NewUnion(types.Array{Key: types.IntType(), Value: types.NewUnion(tmpl)})
	bindings := types.Bindings{}
	types.InferTemplates(param, types.MustParse("list<'a'|'b'>"), bindings)
	assert.Equal(t, "'a'|'b'", bindings[types.TemplateKey("T", "f")].String())
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "int|", "array<int", "Foo<", "'unterminated", "int&Foo", "array{a: }"} {
		t.Run(in, func(t *testing.T) {
			_, err := types.Parse(in)
			var parseErr *types.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}
