// Package flow holds the Flow Context: the variable to type environment that
// the analyzer threads through one scope's control flow, together with the
// fork and merge operations used at branch and join points.
package flow

import (
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/types"
	"github.com/cottand/typeflow/internal/log"
	"github.com/hashicorp/go-set/v3"
)

var logger = log.DefaultLogger.With("section", "flow")

// Context maps the shape keys of variables, properties, array elements and
// memoisable calls ("$x", "$a->b", "$a[0]", "$a->get()") to their types at one
// program point.
//
// Forking is cheap: the variable map is persistent and only the reference
// table is copied. A Context must not be shared between goroutines.
type Context struct {
	vars *immutable.SortedMap[string, types.Union]
	// assigned holds the root variables assigned since this context was
	// created or forked
	assigned *set.Set[string]
	// inScope holds variables known to exist whose type is not tracked
	// (brought in by `global`)
	inScope *set.Set[string]
	refs    refTable
	loop    *LoopScope

	unreachable bool
}

// refTable is the arena of shared type cells of by-reference variables.
// Every alias holds the index of its cell.
type refTable struct {
	aliases map[string]int
	cells   []types.Union
}

func (r refTable) clone() refTable {
	if len(r.aliases) == 0 {
		return refTable{}
	}
	return refTable{aliases: maps.Clone(r.aliases), cells: slices.Clone(r.cells)}
}

// New creates the empty context of a scope entry.
func New() *Context {
	return &Context{
		vars:     immutable.NewSortedMap[string, types.Union](nil),
		assigned: set.New[string](0),
		inScope:  set.New[string](0),
	}
}

// Fork clones c for the analysis of a branch. The fork starts with an empty
// assigned set and shares c's enclosing loop scope.
func (c *Context) Fork() *Context {
	return &Context{
		vars:        c.vars,
		assigned:    set.New[string](0),
		inScope:     c.inScope.Copy(),
		refs:        c.refs.clone(),
		loop:        c.loop,
		unreachable: c.unreachable,
	}
}

// Snapshot is a Fork that keeps the assigned set, for contexts that leave a
// scope (break, continue, exceptions) and are merged at its end.
func (c *Context) Snapshot() *Context {
	s := c.Fork()
	s.assigned = c.assigned.Copy()
	return s
}

// Get returns the type of key, reading through references.
func (c *Context) Get(key string) (types.Union, bool) {
	if id, ok := c.refs.aliases[key]; ok {
		return c.refs.cells[id], true
	}
	t, ok := c.vars.Get(key)
	if !ok && c.inScope.Contains(key) {
		return types.MixedType(), true
	}
	return t, ok
}

// Has reports whether key has a type, possibly undefined.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set assigns t to key. Keys derived from the assigned storage (properties,
// elements and call results of a reassigned variable) are forgotten, and a
// write to a reference is visible through all of its aliases.
func (c *Context) Set(key string, t types.Union) {
	t = t.WithPossiblyUndefined(false)
	if id, ok := c.refs.aliases[key]; ok {
		t = t.WithByRef(true)
		c.refs.cells[id] = t
	}
	c.vars = c.vars.Set(key, t)
	root := ast.RootVar(key)
	if root != "" {
		c.assigned.Insert(root)
	}
	c.forgetDependents(key)
}

// Narrow replaces the type of key without counting as an assignment: the
// storage is unchanged, only what is known about it.
func (c *Context) Narrow(key string, t types.Union) {
	if id, ok := c.refs.aliases[key]; ok {
		c.refs.cells[id] = t.WithByRef(true)
	}
	c.vars = c.vars.Set(key, t)
}

func (c *Context) forgetDependents(key string) {
	bare := key == ast.RootVar(key)
	var stale []string
	itr := c.vars.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		if k == key {
			continue
		}
		switch {
		case bare && ast.DependsOn(k, key):
			stale = append(stale, k)
		case strings.HasPrefix(k, key) && len(k) > len(key) && (k[len(key)] == '-' || k[len(key)] == '['):
			stale = append(stale, k)
		case !bare && ast.IsCallKey(k) && ast.DependsOn(k, ast.RootVar(key)):
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		c.vars = c.vars.Delete(k)
	}
}

// Remove forgets key and everything derived from it, as `unset` does.
func (c *Context) Remove(key string) {
	c.forgetDependents(key)
	c.vars = c.vars.Delete(key)
	delete(c.refs.aliases, key)
	c.inScope.Remove(key)
}

// Bind makes alias refer to the same storage as target (`$alias = &$target`).
// An undefined target springs into existence as null.
func (c *Context) Bind(alias, target string) {
	t, ok := c.Get(target)
	if !ok || t.PossiblyUndefined {
		t = types.Combine(t.WithPossiblyUndefined(false), types.NullType())
	}
	t = t.WithByRef(true)
	id, ok := c.refs.aliases[target]
	if !ok {
		if c.refs.aliases == nil {
			c.refs.aliases = map[string]int{}
		}
		id = len(c.refs.cells)
		c.refs.cells = append(c.refs.cells, t)
		c.refs.aliases[target] = id
	}
	c.refs.cells[id] = t
	c.refs.aliases[alias] = id
	c.vars = c.vars.Set(target, t).Set(alias, t)
	c.assigned.Insert(ast.RootVar(alias))
	c.forgetDependents(alias)
}

// ForgetCalls drops every tracked method call result, as needed once a call
// with side effects may have changed what they return.
func (c *Context) ForgetCalls() {
	itr := c.vars.Iterator()
	var stale []string
	for !itr.Done() {
		k, _, _ := itr.Next()
		if ast.IsCallKey(k) {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		c.vars = c.vars.Delete(k)
	}
}

// Replace makes c the context o, typically the merge of c's branches.
// o must not be used afterwards.
func (c *Context) Replace(o *Context) {
	*c = *o
}

// IsRef reports whether key is bound by reference.
func (c *Context) IsRef(key string) bool {
	_, ok := c.refs.aliases[key]
	return ok
}

// DeclareInScope marks name as existing with an untracked type.
func (c *Context) DeclareInScope(name string) {
	c.inScope.Insert(name)
}

// Keys lists every tracked key in sorted order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, c.vars.Len())
	itr := c.vars.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		keys = append(keys, k)
	}
	return keys
}

// Variables lists the tracked plain variables in sorted order.
func (c *Context) Variables() []string {
	var out []string
	for _, k := range c.Keys() {
		if k == ast.RootVar(k) {
			out = append(out, k)
		}
	}
	return out
}

// Assigned is the set of root variables assigned since the fork.
func (c *Context) Assigned() *set.Set[string] { return c.assigned }

// Reachable reports whether execution may reach this point.
func (c *Context) Reachable() bool { return !c.unreachable }

// MarkUnreachable records an unconditional transfer of control or a
// contradiction: nothing after this point executes on this path.
func (c *Context) MarkUnreachable() { c.unreachable = true }

// Equal reports whether c and o track the same keys with the same types.
func (c *Context) Equal(o *Context) bool {
	if c.unreachable != o.unreachable || c.vars.Len() != o.vars.Len() {
		return false
	}
	itr := c.vars.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		a, _ := c.Get(k)
		b, ok := o.Get(k)
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}

func (c *Context) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, c.vars.Len()+1)
	if c.unreachable {
		attrs = append(attrs, slog.Bool("unreachable", true))
	}
	for _, k := range c.Keys() {
		t, _ := c.Get(k)
		attrs = append(attrs, slog.String(k, t.String()))
	}
	return slog.GroupValue(attrs...)
}
