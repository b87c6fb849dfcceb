package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFile(t *testing.T) {
	doc := `
stmts:
  - kind: function
    name: f
    params: [{name: $v, type: "A|null"}]
    returnType: void
    body:
      - kind: if
        at: [10, 40]
        cond: {kind: binary, op: "!==", left: {kind: var, name: v}, right: {kind: "null"}}
        then:
          - {kind: trace, var: $v}
        else: [{kind: nop}]
      - kind: expr
        expr:
          kind: methodCall
          receiver: {kind: var, name: a}
          method: getFoo
          args: [{kind: int, value: 1}, {spread: {kind: var, name: rest}}]
`
	file, err := DecodeFile("f.yaml", []byte(doc))
	require.NoError(t, err)
	require.Len(t, file.Stmts, 1)

	fn, ok := file.Stmts[0].(*FunctionDecl)
	require.True(t, ok)
	assert.Equal(t, "f", fn.Name)
	assert.Equal(t, []Param{{Name: "v", Type: "A|null"}}, fn.Params)
	require.Len(t, fn.Body, 2)

	ifStmt, ok := fn.Body[0].(*If)
	require.True(t, ok)
	assert.Equal(t, Range{10, 40}, ifStmt.Range)
	assert.Equal(t, "$v !== null", Format(ifStmt.Cond))
	require.NotNil(t, ifStmt.Else)
	assert.Len(t, ifStmt.Else.Body, 1)

	call := fn.Body[1].(*ExprStmt).Expr.(*MethodCall)
	assert.Equal(t, "$a->getFoo(1, ...$rest)", Format(call))
	assert.True(t, call.Args[1].Unpack)
}

func TestDecodeFileRejectsMalformedTrees(t *testing.T) {
	testCases := map[string]string{
		"unknown statement": `stmts: [{kind: goto}]`,
		"unknown field":     `stmts: [{kind: echo, exprs: [], label: x}]`,
		"missing kind":      `stmts: [{exprs: []}]`,
		"bad range":         `stmts: [{kind: nop, at: [1]}]`,
		"bad cast":          `stmts: [{kind: expr, expr: {kind: cast, to: resource, expr: {kind: "null"}}}]`,
		"not a mapping":     `stmts: [3]`,
	}
	for name, doc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFile("bad.yaml", []byte(doc))
			var decErr *DecodeError
			assert.ErrorAs(t, err, &decErr)
		})
	}
}
