package memo

import (
	"fmt"
	"testing"

	"github.com/cottand/typeflow/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupAfterStore(t *testing.T) {
	c := New(0)
	_, ok := c.Lookup("f", "$a->get()")
	assert.False(t, ok)

	c.Store("f", "$a->get()", []string{"$a"}, types.StringType())
	got, ok := c.Lookup("f", "$a->get()")
	require.True(t, ok)
	assert.Equal(t, "string", got.String())

	_, ok = c.Lookup("g", "$a->get()")
	assert.False(t, ok, "scopes do not share entries")
	assert.Equal(t, Stats{Hits: 1, Misses: 2, Stores: 1}, c.Stats())
}

func TestInvalidate(t *testing.T) {
	c := New(0)
	c.Store("f", "$a->get($b)", []string{"$a", "$b"}, types.StringType())
	c.Store("f", "$c->get()", []string{"$c"}, types.IntType())

	c.Invalidate("g", "$b")
	_, ok := c.Lookup("f", "$a->get($b)")
	assert.True(t, ok, "other scopes' variables are unrelated")

	c.Invalidate("f", "$b")
	_, ok = c.Lookup("f", "$a->get($b)")
	assert.False(t, ok, "reassigning an argument invalidates")
	_, ok = c.Lookup("f", "$c->get()")
	assert.True(t, ok)

	c.Store("f", "$a->get($b)", []string{"$a", "$b"}, types.FloatType())
	got, ok := c.Lookup("f", "$a->get($b)")
	require.True(t, ok, "storing again with the new epoch is valid")
	assert.Equal(t, "float", got.String())
}

func TestInvalidateAll(t *testing.T) {
	c := New(0)
	c.Store("f", "$a->get()", []string{"$a"}, types.StringType())
	c.InvalidateAll()
	_, ok := c.Lookup("f", "$a->get()")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats().Stale)
}

func TestEvictionIsAMiss(t *testing.T) {
	c := New(2)
	for i := range 5 {
		c.Store("f", fmt.Sprintf("$a->get(%d)", i), []string{"$a"}, types.IntType())
	}
	assert.LessOrEqual(t, c.Len(), 2)
	_, ok := c.Lookup("f", "$a->get(0)")
	assert.False(t, ok)
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *Cache
	c.Store("f", "$a->get()", []string{"$a"}, types.StringType())
	_, ok := c.Lookup("f", "$a->get()")
	assert.False(t, ok)
	c.Invalidate("f", "$a")
	c.InvalidateAll()
	assert.Zero(t, c.Len())
	assert.Equal(t, Stats{}, c.Stats())
}
