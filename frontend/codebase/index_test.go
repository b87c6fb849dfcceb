package codebase

import (
	"testing"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/cottand/typeflow/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const declarations = `
stmts:
  - kind: interface
    name: HasName
    methods:
      - {name: getName, returnType: string}
  - kind: class
    name: Animal
    abstract: true
    interfaces: [HasName]
    properties:
      - {name: $name, type: string}
    methods:
      - {name: getName, returnType: string, body: []}
      - {name: speak, abstract: true, returnType: string}
  - kind: class
    name: Dog
    parent: Animal
    methods:
      - {name: speak, returnType: string, body: []}
      - {name: self, returnType: self, body: []}
  - kind: class
    name: Box
    templates: [{name: T}]
    properties:
      - {name: $value, type: T}
    methods:
      - {name: get, returnType: T, body: []}
  - kind: class
    name: IntBox
    parent: Box
    parentParams: [int]
  - kind: class
    name: Cell
    templates: [{name: T, invariant: true}]
  - kind: block
    body:
      - kind: function
        name: identity
        templates: [{name: U, bound: "int|string"}]
        params: [{name: $x, type: U}, {name: $y, type: int, default: {kind: "null"}}]
        returnType: U
        body: []
  - kind: function
    name: noReturn
    params: [{name: $x}]
    body: []
`

func scanned(t *testing.T) *Index {
	t.Helper()
	f, err := ast.DecodeFile("decl.yaml", []byte(declarations))
	require.NoError(t, err)
	ix := NewIndex()
	issues := ix.Scan(f)
	require.Equal(t, 0, issues.Len(), "%v", issues.List())
	return ix
}

func TestClassGraph(t *testing.T) {
	ix := scanned(t)
	assert.True(t, ix.Known("dog"))
	assert.True(t, ix.IsSubclassOf("Dog", "Animal"))
	assert.True(t, ix.IsSubclassOf("Dog", "HasName"))
	assert.False(t, ix.IsSubclassOf("Animal", "Dog"))
	assert.True(t, ix.IsInterface("hasname"))
	assert.Equal(t, types.Invariant, ix.TemplateVariance("Cell", 0))
	assert.Equal(t, types.Covariant, ix.TemplateVariance("Box", 0))
	assert.ElementsMatch(t, []string{"animal", "hasname"}, ix.Ancestors("Dog").Slice())

	assert.True(t, types.IsContainedBy(types.MustParse("Dog"), types.MustParse("HasName"), ix))
	assert.False(t, types.IsContainedBy(types.MustParse("Cell<Dog>"), types.MustParse("Cell<Animal>"), ix))
}

func TestFindMethod(t *testing.T) {
	ix := scanned(t)

	m, declaring, ok := ix.FindMethod("Dog", "GETNAME")
	require.True(t, ok)
	assert.Equal(t, "Animal", declaring.Name)
	assert.False(t, m.Abstract)

	m, declaring, ok = ix.FindMethod("Dog", "speak")
	require.True(t, ok)
	assert.Equal(t, "Dog", declaring.Name)
	assert.Equal(t, "dog::speak", m.Key())

	m, _, ok = ix.FindMethod("Dog", "self")
	require.True(t, ok)
	assert.Equal(t, "Dog", m.Signature.Return.String())

	_, _, ok = ix.FindMethod("Dog", "fly")
	assert.False(t, ok)
	assert.Equal(t, []string{"getname", "self", "speak"}, ix.MethodNames("Dog"))

	p, declaring, ok := ix.FindProperty("Dog", "name")
	require.True(t, ok)
	assert.Equal(t, "Animal", declaring.Name)
	assert.Equal(t, "string", p.Type.String())
}

func TestTemplateBindings(t *testing.T) {
	ix := scanned(t)

	get, declaring, ok := ix.FindMethod("IntBox", "get")
	require.True(t, ok)
	b := ix.Bindings(types.Named{Name: "IntBox"}, declaring)
	assert.Equal(t, "int", types.Substitute(get.Signature.Return, b).String())

	b = ix.Bindings(types.Named{Name: "Box", Params: []types.Union{types.StringType()}}, declaring)
	assert.Equal(t, "string", types.Substitute(get.Signature.Return, b).String())

	b = ix.Bindings(types.Named{Name: "Box"}, declaring)
	assert.Equal(t, "mixed", types.Substitute(get.Signature.Return, b).String())
}

func TestFunctions(t *testing.T) {
	ix := scanned(t)
	f, ok := ix.Function("IDENTITY")
	require.True(t, ok)
	require.Len(t, f.Templates, 1)
	assert.Equal(t, "int|string", f.Templates[0].Bound.String())
	assert.Equal(t, "int|null", f.Signature.Params[1].Type.String())
	assert.True(t, f.Signature.Params[1].Optional)
	assert.True(t, f.DeclaredReturn)

	f, ok = ix.Function("noReturn")
	require.True(t, ok)
	assert.False(t, f.DeclaredReturn)
	assert.True(t, f.Signature.Return.IsZero())
	assert.Equal(t, "mixed", f.Signature.Params[0].Type.String())
	assert.Equal(t, []string{"identity", "noreturn"}, ix.FunctionNames())
}

func TestScanReportsProblems(t *testing.T) {
	f, err := ast.DecodeFile("bad.yaml", []byte(`
stmts:
  - {kind: function, name: f, at: [0, 5], params: [{name: $x, type: "array<int", at: [2, 3]}], body: []}
  - {kind: function, name: F, at: [6, 9], body: []}
`))
	require.NoError(t, err)
	issues := NewIndex().Scan(f).List()
	require.Len(t, issues, 2)
	assert.Equal(t, issue.InvalidDocblock, issues[0].Kind)
	assert.Equal(t, "bad.yaml", issues[0].File)
	assert.Equal(t, issue.DuplicateDeclaration, issues[1].Kind)
}

func TestExportSignature(t *testing.T) {
	ix := NewIndex()
	shape := signature.Shape{Return: types.IntType()}
	ix.ExportSignature("Foo::Bar", shape)
	got, ok := ix.Inferred("foo::bar")
	require.True(t, ok)
	assert.True(t, got.Equal(shape))
	assert.Len(t, ix.InferredSignatures(), 1)
}

func TestSignatureRounds(t *testing.T) {
	ix := NewIndex()
	ix.ExportSignature("kept", signature.Shape{Return: types.IntType()})

	ix.BeginRound()
	ix.ExportSignature("fresh", signature.Shape{Return: types.StringType()})
	_, ok := ix.Inferred("fresh")
	assert.False(t, ok, "exports of an open round must not be visible")
	assert.True(t, ix.EndRound())

	got, ok := ix.Inferred("fresh")
	require.True(t, ok)
	assert.Equal(t, "string", got.Return.String())

	ix.BeginRound()
	ix.ExportSignature("fresh", signature.Shape{Return: types.StringType()})
	ix.ExportSignature("kept", signature.Shape{Return: types.IntType()})
	assert.False(t, ix.EndRound(), "same signatures again")

	ix.BeginRound()
	ix.ExportSignature("kept", signature.Shape{Return: types.FloatType()})
	assert.True(t, ix.EndRound())
	got, _ = ix.Inferred("kept")
	assert.Equal(t, "float", got.Return.String())
}

func TestScanConditionalDeclarations(t *testing.T) {
	f, err := ast.DecodeFile("cond.yaml", []byte(`
stmts:
  - kind: if
    cond: {kind: var, name: $c}
    then:
      - {kind: class, name: X}
      - {kind: function, name: helper, body: []}
    else:
      - {kind: function, name: helper, body: []}
  - kind: while
    cond: {kind: var, name: $c}
    body:
      - kind: switch
        subject: {kind: var, name: $c}
        cases:
          - body: [{kind: class, name: Y}]
  - kind: function
    name: outer
    body:
      - {kind: class, name: Hidden}
`))
	require.NoError(t, err)
	ix := NewIndex()
	issues := ix.Scan(f)

	assert.Zero(t, issues.Len(), "alternatives are not duplicates: %v", issues.List())
	for _, name := range []string{"X", "Y"} {
		_, ok := ix.Class(name)
		assert.True(t, ok, name)
	}
	_, ok := ix.Class("Hidden")
	assert.False(t, ok, "function bodies are not scanned")
	fn, ok := ix.Function("helper")
	require.True(t, ok)
	assert.Same(t, f.Stmts[0].(*ast.If).Then[1], fn.Decl)
}
