package flow

import (
	"testing"

	"github.com/cottand/typeflow/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeOf(t *testing.T, c *Context, key string) string {
	t.Helper()
	u, ok := c.Get(key)
	require.True(t, ok, "%s is not tracked", key)
	return u.String()
}

func TestSetForgetsDependents(t *testing.T) {
	c := New()
	c.Set("$a", types.MustParse("Foo"))
	c.Set("$a->b", types.IntType())
	c.Set("$a->getb()", types.StringType())
	c.Set("$x->get($a)", types.StringType())
	c.Set("$ab", types.IntType())

	c.Set("$a->b", types.FloatType())
	assert.False(t, c.Has("$a->getb()"), "call results on the receiver must be forgotten")
	assert.False(t, c.Has("$x->get($a)"), "calls taking the receiver as an argument too")

	c.Set("$a", types.MustParse("Bar"))
	assert.False(t, c.Has("$a->b"))
	assert.False(t, c.Has("$x->get($a)"))
	assert.True(t, c.Has("$ab"))
	assert.Equal(t, []string{"$a", "$ab"}, c.Keys())
}

func TestNarrowIsNotAssignment(t *testing.T) {
	c := New()
	c.Set("$a", types.MustParse("Foo|null"))
	c.Set("$a->b", types.IntType())
	f := c.Fork()
	f.Narrow("$a", types.MustParse("Foo"))
	assert.True(t, f.Has("$a->b"))
	assert.Equal(t, 0, f.Assigned().Size())
	assert.Equal(t, "Foo|null", typeOf(t, c, "$a"), "forks must not leak into their parent")
}

func TestReferences(t *testing.T) {
	c := New()
	c.Set("$a", types.IntType())
	c.Bind("$b", "$a")
	assert.True(t, c.IsRef("$a"))
	assert.True(t, c.IsRef("$b"))

	c.Set("$b", types.StringType())
	assert.Equal(t, "string", typeOf(t, c, "$a"))

	f := c.Fork()
	f.Set("$a", types.FloatType())
	assert.Equal(t, "float", typeOf(t, f, "$b"))
	assert.Equal(t, "string", typeOf(t, c, "$b"), "reference cells are copied on fork")

	c.Bind("$c", "$undefined")
	assert.Equal(t, "null", typeOf(t, c, "$undefined"))
}

func TestMerge(t *testing.T) {
	pre := New()
	pre.Set("$both", types.IntType())
	pre.Set("$untouched", types.MustParse("A|null"))
	pre.Set("$maybe", types.MustParse("1"))

	left := pre.Fork()
	left.Set("$both", types.StringType())
	left.Set("$new", types.IntType())
	left.Set("$maybe", types.MustParse("2"))

	right := pre.Fork()
	right.Set("$both", types.FloatType())

	dead := pre.Fork()
	dead.Set("$both", types.BoolType())
	dead.MarkUnreachable()

	merged := Merge(pre, []*Context{left, right, dead}, MergeOpts{})
	require.True(t, merged.Reachable())

	both, _ := merged.Get("$both")
	assert.Equal(t, "string|float", both.String())
	assert.False(t, both.PossiblyUndefined)

	newVar, _ := merged.Get("$new")
	assert.True(t, newVar.PossiblyUndefined)

	assert.Equal(t, "A|null", typeOf(t, merged, "$untouched"))
	assert.Equal(t, "2|1", typeOf(t, merged, "$maybe"))
	assert.Equal(t, []string{"$both"}, AssignedInAll([]*Context{left, right}))
	assert.True(t, merged.Assigned().Contains("$both"))

	widened := Merge(pre, []*Context{left, right}, MergeOpts{Widen: true})
	assert.Equal(t, "int", typeOf(t, widened, "$maybe"))
	assert.Equal(t, "A|null", typeOf(t, widened, "$untouched"))
}

func TestMergeNoLiveBranch(t *testing.T) {
	pre := New()
	pre.Set("$x", types.IntType())
	a := pre.Fork()
	a.MarkUnreachable()
	merged := Merge(pre, []*Context{a}, MergeOpts{})
	assert.False(t, merged.Reachable())
}

func TestMergeKeepsInheritedReferences(t *testing.T) {
	pre := New()
	pre.Set("$a", types.IntType())
	pre.Bind("$b", "$a")

	left := pre.Fork()
	left.Set("$a", types.StringType())
	right := pre.Fork()
	right.Bind("$c", "$a")

	merged := Merge(pre, []*Context{left, right}, MergeOpts{})
	assert.True(t, merged.IsRef("$b"))
	assert.False(t, merged.IsRef("$c"))
	merged.Set("$b", types.FloatType())
	assert.Equal(t, "float", typeOf(t, merged, "$a"))
}

func TestBreakAndContinue(t *testing.T) {
	c := New()
	outer := c.EnterLoop(false)
	inner := c.EnterLoop(true)

	b := c.Fork()
	b.Set("$x", types.IntType())
	assert.True(t, b.Break(2))
	assert.False(t, b.Reachable())
	require.Len(t, outer.Breaks, 1)
	assert.True(t, outer.Breaks[0].Assigned().Contains("$x"))

	k := c.Fork()
	assert.True(t, k.Continue(1))
	assert.Len(t, inner.Breaks, 1, "continue inside a switch acts as break")

	assert.False(t, c.Fork().Break(3))

	c.ExitLoop(inner)
	assert.Same(t, outer, c.Loop())
	c.ExitLoop(outer)
	assert.Nil(t, c.Loop())
}

func TestEqual(t *testing.T) {
	a := New()
	a.Set("$x", types.IntType())
	b := a.Fork()
	assert.True(t, a.Equal(b))
	b.Set("$x", types.MustParse("int|string"))
	assert.False(t, a.Equal(b))
	b.Set("$x", types.IntType())
	assert.True(t, a.Equal(b))
	b.MarkUnreachable()
	assert.False(t, a.Equal(b))
}

func TestInScope(t *testing.T) {
	c := New()
	assert.False(t, c.Has("$config"))
	c.DeclareInScope("$config")
	assert.Equal(t, "mixed", typeOf(t, c, "$config"))
	c.Remove("$config")
	assert.False(t, c.Has("$config"))
}

func TestForgetCallsAndReplace(t *testing.T) {
	c := New()
	c.Set("$a", types.MustParse("Foo"))
	c.Narrow("$a->get()", types.StringType())
	c.Narrow("$a->b", types.IntType())
	c.ForgetCalls()
	assert.Equal(t, []string{"$a", "$a->b"}, c.Keys())

	f := c.Fork()
	f.Set("$x", types.IntType())
	c.Replace(Merge(c, []*Context{f}, MergeOpts{}))
	assert.Equal(t, "int", typeOf(t, c, "$x"))
	assert.True(t, c.Assigned().Contains("$x"))
}
