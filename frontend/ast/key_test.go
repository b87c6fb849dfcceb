package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func v(name string) *Variable { return &Variable{Name: name} }

func TestKey(t *testing.T) {
	testCases := []struct {
		expr Expr
		key  string
		ok   bool
	}{
		{v("x"), "$x", true},
		{&PropertyFetch{Receiver: v("a"), Property: "foo"}, "$a->foo", true},
		{&MethodCall{Receiver: v("a"), Method: "getFoo"}, "$a->getfoo()", true},
		{&MethodCall{Receiver: v("a"), Method: "get", Args: []Arg{{Value: &StringLit{Value: "k"}}, {Value: v("i")}}}, "$a->get('k', $i)", true},
		{&ArrayDimFetch{Var: v("a"), Dim: &IntLit{Value: 2}}, "$a[2]", true},
		{&ArrayDimFetch{Var: v("a"), Dim: v("i")}, "", false},
		{&Call{Name: "f"}, "", false},
		{&MethodCall{Receiver: &Call{Name: "f"}, Method: "g"}, "", false},
	}
	for _, tc := range testCases {
		t.Run(Format(tc.expr), func(t *testing.T) {
			key, ok := Key(tc.expr)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.key, key)
		})
	}
}

func TestDependsOn(t *testing.T) {
	assert.True(t, DependsOn("$a->foo", "$a"))
	assert.True(t, DependsOn("$b->get($a)", "$a"))
	assert.False(t, DependsOn("$ab->foo", "$a"))
	assert.False(t, DependsOn("$b", "$a"))
	assert.Equal(t, "$a", RootVar("$a->b()['c']"))
}

func TestVarsAndAssignedVars(t *testing.T) {
	e := &Binary{
		Op:    "&&",
		Left:  &Assign{Target: v("x"), Value: &Call{Name: "f", Args: []Arg{{Value: v("y")}}}},
		Right: &MethodCall{Receiver: v("x"), Method: "ok"},
	}
	assert.Equal(t, []string{"$x", "$y"}, Vars(e))
	assert.Equal(t, []string{"$x"}, AssignedVars(e))
}
