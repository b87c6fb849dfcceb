package signature_test

import (
	"math/rand/v2"
	"testing"

	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDelta(t *testing.T, src string) signature.Delta {
	t.Helper()
	d, err := signature.ParseDelta("test.yaml", []byte(src))
	require.NoError(t, err)
	return d
}

func mustBase(t *testing.T, src string) signature.Base {
	t.Helper()
	b, err := signature.ParseBase("base.yaml", []byte(src))
	require.NoError(t, err)
	return b
}

func TestAddedAtVersion(t *testing.T) {
	base := mustBase(t, `functions: {g: [int]}`)
	r, err := signature.New(base, mustDelta(t, `
version: "8.3"
added:
  f: [string, {s: string}]
`))
	require.NoError(t, err)

	_, ok := r.Resolve("f", "8.2")
	assert.False(t, ok)

	shape, ok := r.Resolve("f", "8.3")
	require.True(t, ok)
	assert.Equal(t, "(string $s): string", shape.String())

	shape, ok = r.Resolve("F", "8.4.1")
	require.True(t, ok)
	assert.Equal(t, "string", shape.Return.String())
}

func TestRemovedAndChanged(t *testing.T) {
	base := mustBase(t, `
functions:
  old_fn: [void]
  loc: [bool, {locale: string}]
`)
	r, err := signature.New(base, mustDelta(t, `
version: 8.1
removed: [old_fn]
changed:
  loc:
    old: [bool, {locale: string}]
    new: ['true', {locale: string}]
`))
	require.NoError(t, err)

	_, ok := r.Resolve("old_fn", "8.0")
	assert.True(t, ok)
	_, ok = r.Resolve("old_fn", "8.1")
	assert.False(t, ok)

	before, _ := r.Resolve("loc", "8.0.9")
	after, _ := r.Resolve("loc", "8.1")
	assert.Equal(t, "bool", before.Return.String())
	assert.Equal(t, "true", after.Return.String())
	assert.Equal(t, []string{"8.1"}, r.Versions())
}

func TestDeltaOrderIndependent(t *testing.T) {
	base := mustBase(t, `functions: {a: [int, {x: int}]}`)
	deltas := []signature.Delta{
		mustDelta(t, `{version: "8.0", added: {b: [int]}}`),
		mustDelta(t, `{version: "8.1", changed: {a: {old: [int, {x: int}], new: [float, {x: int}]}}}`),
		mustDelta(t, `{version: "8.2", changed: {a: {old: [float, {x: int}], new: [string, {x: int}, {y=: int}]}}}`),
		mustDelta(t, `{version: "8.3", removed: [b]}`),
	}
	reference, err := signature.New(base, deltas...)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 10 {
		shuffled := append([]signature.Delta(nil), deltas...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		r, err := signature.New(base, shuffled...)
		require.NoError(t, err)
		for _, v := range []string{"7.4", "8.0", "8.1", "8.2", "8.3", "9.0"} {
			for _, name := range []string{"a", "b"} {
				want, wantOK := reference.Resolve(name, v)
				got, gotOK := r.Resolve(name, v)
				assert.Equal(t, wantOK, gotOK, "%s@%s", name, v)
				assert.True(t, want.Equal(got), "%s@%s: %s vs %s", name, v, want, got)
			}
		}
	}
}

func TestMalformedDeltas(t *testing.T) {
	base := mustBase(t, `functions: {present: [int]}`)
	testCases := map[string]string{
		"changed without new":   `{version: "8.0", changed: {present: {old: [int]}}}`,
		"changed without old":   `{version: "8.0", changed: {present: {new: [int]}}}`,
		"unknown section":       `{version: "8.0", modified: {present: [int]}}`,
		"missing version":       `{added: {f: [int]}}`,
		"bad version":           `{version: "eight", added: {f: [int]}}`,
		"bad type":              `{version: "8.0", added: {f: ['array<int']}}`,
		"bad param":             `{version: "8.0", added: {f: [int, notamap]}}`,
		"empty shape":           `{version: "8.0", added: {f: []}}`,
		"variadic not last":     `{version: "8.0", added: {f: [int, {'...a': int}, {b: int}]}}`,
		"changed unknown field": `{version: "8.0", changed: {present: {old: [int], new: [int], why: x}}}`,
	}
	for name, src := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := signature.ParseDelta("bad.yaml", []byte(src))
			var cfgErr *issue.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "bad.yaml", cfgErr.Source)
		})
	}

	inconsistent := map[string][]string{
		"added when present":   {`{version: "8.0", added: {present: [int]}}`},
		"removed when absent":  {`{version: "8.0", removed: [absent]}`},
		"changed when absent":  {`{version: "8.0", changed: {absent: {old: [int], new: [int]}}}`},
		"changed old mismatch": {`{version: "8.0", changed: {present: {old: [string], new: [int]}}}`},
		"duplicate version":    {`{version: "8.0", added: {x: [int]}}`, `{version: "8.0.0", added: {y: [int]}}`},
		"two sections":         {`{version: "8.0", removed: [present], changed: {present: {old: [int], new: [int]}}}`},
		"removed twice":        {`{version: "8.0", removed: [present]}`, `{version: "8.1", removed: [present]}`},
	}
	for name, srcs := range inconsistent {
		t.Run(name, func(t *testing.T) {
			var deltas []signature.Delta
			for _, src := range srcs {
				deltas = append(deltas, mustDelta(t, src))
			}
			_, err := signature.New(base, deltas...)
			var cfgErr *issue.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestShapeParams(t *testing.T) {
	base := mustBase(t, `
functions:
  preg_match: ['int|false', {pattern: string}, {subject: string}, {'&matches=': 'array<array-key, string>'}]
  sprintf: [string, {format: string}, {'...values=': mixed}]
`)
	r, err := signature.New(base)
	require.NoError(t, err)
	snap, err := r.At("8.0")
	require.NoError(t, err)

	preg, ok := snap.Resolve("preg_match")
	require.True(t, ok)
	assert.Equal(t, 2, preg.Required())
	assert.True(t, preg.Params[2].ByRef)
	assert.True(t, preg.Params[2].Optional)
	_, ok = preg.Param(3)
	assert.False(t, ok)

	sprintf, _ := snap.Resolve("sprintf")
	assert.True(t, sprintf.Variadic())
	assert.Equal(t, 1, sprintf.Required())
	p, ok := sprintf.Param(7)
	require.True(t, ok)
	assert.Equal(t, "values", p.Name)
	assert.Equal(t, "callable(string, ...mixed=): string", sprintf.Callable().String())
}

func TestSuggest(t *testing.T) {
	r, err := signature.Builtin()
	require.NoError(t, err)
	snap, err := r.At("8.3")
	require.NoError(t, err)

	s, ok := snap.Suggest("strlenn")
	require.True(t, ok)
	assert.Equal(t, "strlen", s)

	_, ok = snap.Suggest("zzzzzzzzzzzz")
	assert.False(t, ok)
}

func TestBuiltin(t *testing.T) {
	r, err := signature.Builtin()
	require.NoError(t, err)
	assert.Equal(t, []string{"8.0", "8.1", "8.2", "8.3", "8.4"}, r.Versions())

	_, ok := r.Resolve("str_contains", "7.4")
	assert.False(t, ok)
	_, ok = r.Resolve("str_contains", "8.0")
	assert.True(t, ok)
	_, ok = r.Resolve("each", "8.0")
	assert.False(t, ok)

	getClass, _ := r.Resolve("get_class", "8.2")
	assert.Equal(t, "string", getClass.Return.String())

	snap, err := r.At("8.3")
	require.NoError(t, err)
	assert.True(t, snap.IsPure("STRLEN"))
	assert.False(t, snap.IsPure("var_dump"))
	assert.Contains(t, snap.Names(), "json_validate")

	_, err = r.At("not a version")
	assert.Error(t, err)
}

func TestLoadFiles(t *testing.T) {
	r, err := signature.LoadFiles("testdata/base.yaml", []string{"testdata/9.0.yaml"})
	require.NoError(t, err)
	_, ok := r.Resolve("legacy", "9.0")
	assert.False(t, ok)
	_, ok = r.Resolve("modern", "9.0")
	assert.True(t, ok)

	_, err = signature.LoadFiles("testdata/missing.yaml", nil)
	var cfgErr *issue.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	r, err = signature.Load("", []string{"testdata/9.0-builtin.yaml"})
	require.NoError(t, err)
	_, ok = r.Resolve("modern", "9.0")
	assert.True(t, ok)
	_, ok = r.Resolve("strlen", "9.0")
	assert.True(t, ok)
}
