// Package memo is the call memoization layer: within one file, the result type
// of a method call is reused for later calls of the same shape until one of the
// variables the call mentions is reassigned or a side-effecting call happens.
package memo

import (
	"log/slog"

	"github.com/cottand/typeflow/frontend/types"
	"github.com/cottand/typeflow/internal/log"
	"github.com/hashicorp/golang-lru/arc/v2"
)

var logger = log.DefaultLogger.With("section", "memo")

// DefaultSize bounds the entries kept per file.
const DefaultSize = 4096

type key struct {
	scope string
	shape string
}

type varKey struct {
	scope string
	name  string
}

type entry struct {
	t types.Union
	// deps holds the epoch of every variable the call mentions when stored
	deps   map[varKey]uint64
	global uint64
}

// Stats counts cache traffic.
type Stats struct {
	Hits, Misses, Stale, Stores int
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("hits", s.Hits),
		slog.Int("misses", s.Misses),
		slog.Int("stale", s.Stale),
		slog.Int("stores", s.Stores),
	)
}

// Cache maps (scope, call shape) to the call's result type. Entries are
// stamped with the epochs of the variables they depend on: reassigning a
// variable bumps its epoch, and an entry whose stamps are out of date reads as
// absent. The cache is bounded; an evicted entry is a miss.
//
// A nil *Cache is a valid, disabled cache: every lookup misses.
// A Cache is owned by the analysis of one file and is not safe for
// concurrent use.
type Cache struct {
	entries *arc.ARCCache[key, entry]
	epochs  map[varKey]uint64
	global  uint64
	stats   Stats
}

// New returns an empty cache holding at most size entries.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := arc.NewARC[key, entry](size)
	if err != nil {
		// only returned for non-positive sizes
		panic(err)
	}
	return &Cache{entries: entries, epochs: map[varKey]uint64{}}
}

// Lookup returns the type stored for shape in scope, if it is still valid.
func (c *Cache) Lookup(scope, shape string) (types.Union, bool) {
	if c == nil {
		return types.Union{}, false
	}
	e, ok := c.entries.Get(key{scope, shape})
	if !ok {
		c.stats.Misses++
		return types.Union{}, false
	}
	if e.global != c.global {
		c.stats.Stale++
		return types.Union{}, false
	}
	for v, epoch := range e.deps {
		if c.epochs[v] != epoch {
			c.stats.Stale++
			return types.Union{}, false
		}
	}
	c.stats.Hits++
	logger.Debug("memoised call", "scope", scope, "shape", shape, "type", e.t)
	return e.t, true
}

// Store records t as the result of shape in scope. deps lists the variables
// (with "$") the call mentions, its receiver included.
func (c *Cache) Store(scope, shape string, deps []string, t types.Union) {
	if c == nil {
		return
	}
	e := entry{t: t, deps: make(map[varKey]uint64, len(deps)), global: c.global}
	for _, d := range deps {
		v := varKey{scope, d}
		e.deps[v] = c.epochs[v]
	}
	c.entries.Add(key{scope, shape}, e)
	c.stats.Stores++
}

// Invalidate bumps the epoch of variable in scope, so that every entry
// depending on it goes stale.
func (c *Cache) Invalidate(scope, variable string) {
	if c == nil {
		return
	}
	c.epochs[varKey{scope, variable}]++
}

// InvalidateAll makes every entry stale, as any call with side effects may
// have changed what later calls return.
func (c *Cache) InvalidateAll() {
	if c == nil {
		return
	}
	c.global++
}

// Len is the number of entries held, stale ones included.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return c.stats
}
