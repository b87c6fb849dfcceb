package flow

import (
	"slices"
	"sort"

	"github.com/cottand/typeflow/frontend/types"
	"github.com/hashicorp/go-set/v3"
	xset "github.com/xtgo/set"
)

// MergeOpts tunes Merge.
type MergeOpts struct {
	// Widen collapses literals into their scalar supertype for keys whose
	// type differs between branches. Loop heads use it so that literal sets
	// cannot grow forever.
	Widen bool
}

// Merge joins the contexts reaching a join point. pre is the context at the
// matching branch point and provides the loop scope of the result.
//
// Unreachable branches do not contribute. A key tracked in every live branch
// gets the combination of its branch types; a key missing from some live
// branch is possibly undefined afterwards. When no branch is live, the result
// is unreachable.
func Merge(pre *Context, branches []*Context, opts MergeOpts) *Context {
	live := make([]*Context, 0, len(branches))
	for _, b := range branches {
		if b != nil && b.Reachable() {
			live = append(live, b)
		}
	}
	out := pre.Fork()
	out.assigned = pre.assigned.Copy()
	if len(live) == 0 {
		out.MarkUnreachable()
		return out
	}
	out.unreachable = false

	keys := set.New[string](pre.vars.Len())
	for _, b := range live {
		keys.InsertSlice(b.Keys())
	}

	merged := New().vars
	for _, k := range slices.Sorted(keys.Items()) {
		var acc types.Union
		missing := false
		first := true
		for _, b := range live {
			t, ok := b.Get(k)
			if !ok {
				missing = true
				continue
			}
			switch {
			case first:
				acc = t
			case opts.Widen && !acc.SameType(t):
				acc = types.CombineWidened(acc, t)
			default:
				acc = types.Combine(acc, t)
			}
			first = false
		}
		if missing {
			acc = acc.WithPossiblyUndefined(true)
		}
		merged = merged.Set(k, acc)
	}
	out.vars = merged
	out.refs = mergeRefs(pre, live, out)
	for _, b := range live {
		out.inScope.InsertSet(b.inScope)
	}
	for _, v := range AssignedInAll(live) {
		out.assigned.Insert(v)
	}
	logger.Debug("merged contexts", "branches", len(branches), "live", len(live), "result", out)
	return out
}

// mergeRefs keeps the aliases that every live branch inherited unchanged from
// pre. Aliases created or rebound inside a branch are dropped, leaving the
// merged type as a plain value.
func mergeRefs(pre *Context, live []*Context, out *Context) refTable {
	if len(pre.refs.aliases) == 0 {
		return refTable{}
	}
	r := refTable{aliases: map[string]int{}, cells: make([]types.Union, len(pre.refs.cells))}
	for alias, id := range pre.refs.aliases {
		kept := true
		for _, b := range live {
			if bid, ok := b.refs.aliases[alias]; !ok || bid != id {
				kept = false
				break
			}
		}
		if !kept {
			continue
		}
		r.aliases[alias] = id
		if t, ok := out.vars.Get(alias); ok {
			r.cells[id] = t.WithByRef(true)
		}
	}
	return r
}

// AssignedInAll returns, sorted, the root variables assigned in every one of
// the given contexts since they were forked.
func AssignedInAll(contexts []*Context) []string {
	if len(contexts) == 0 {
		return nil
	}
	acc := sortedAssigned(contexts[0])
	for _, c := range contexts[1:] {
		// xset.Inter intersects data[:pivot] with data[pivot:] in place
		data := append(sort.StringSlice(slices.Clone(acc)), sortedAssigned(c)...)
		n := xset.Inter(data, len(acc))
		acc = data[:n]
	}
	return acc
}

func sortedAssigned(c *Context) []string {
	vars := c.assigned.Slice()
	slices.Sort(vars)
	return vars
}
