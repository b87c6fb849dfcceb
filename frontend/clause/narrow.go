package clause

import (
	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/flow"
	"github.com/cottand/typeflow/frontend/types"
	"github.com/cottand/typeflow/internal/log"
)

var logger = log.DefaultLogger.With("section", "flow")

// Contradiction is a predicate that no value of its subject's type satisfies.
type Contradiction struct {
	Predicate Predicate
	// Type is the subject's type before the predicate was applied.
	Type types.Union
}

// ImpliedAssignments returns a fork of ctx narrowed by what holding s implies.
// Every clause narrows its own fork and the forks are merged. A clause whose
// predicates cannot all hold leaves its fork unreachable and is reported among
// the contradictions; when every clause does, the returned context is
// unreachable. Unknown and True sets leave the fork untouched.
func ImpliedAssignments(s Set, ctx *flow.Context, g types.ClassGraph) (*flow.Context, []Contradiction) {
	switch {
	case s.IsUnknown() || s.IsTrue():
		return ctx.Fork(), nil
	case s.IsFalse():
		out := ctx.Fork()
		out.MarkUnreachable()
		return out, nil
	}
	if !ctx.Reachable() {
		return ctx.Fork(), nil
	}
	if len(s.rows) == 1 {
		out := ctx.Fork()
		return out, applyClause(s.rows[0], out, g)
	}

	base := ctx.Fork()
	branches := make([]*flow.Context, len(s.rows))
	var contradictions []Contradiction
	for i, row := range s.rows {
		branches[i] = base.Fork()
		contradictions = append(contradictions, applyClause(row, branches[i], g)...)
	}
	out := flow.Merge(base, branches, flow.MergeOpts{})
	// keys only some clauses learned about were not tracked before
	for _, k := range out.Keys() {
		if t, _ := out.Get(k); t.PossiblyUndefined && !ctx.Has(k) {
			out.Remove(k)
		}
	}
	logger.Debug("applied clause set", "set", s.String(), "result", out)
	return out, contradictions
}

func applyClause(row Clause, c *flow.Context, g types.ClassGraph) []Contradiction {
	for _, p := range row {
		if p.Kind == Opaque {
			continue
		}
		current, tracked := c.Get(p.Subject)
		if !tracked {
			if p.Subject == ast.RootVar(p.Subject) {
				continue
			}
			current = types.MixedType()
		}
		next := narrow(p, current, g)
		if !tracked && next.IsMixed() {
			continue
		}
		if next.IsNever() {
			c.MarkUnreachable()
			return []Contradiction{{Predicate: p, Type: current}}
		}
		c.Narrow(p.Subject, next)
	}
	return nil
}

func narrow(p Predicate, t types.Union, g types.ClassGraph) types.Union {
	switch p.Kind {
	case Truthy:
		if p.Negated {
			return types.Falsy(t)
		}
		return types.Truthy(t).WithPossiblyUndefined(false)
	case IsType:
		if p.Negated {
			neg := p.NegType
			if neg.IsZero() {
				neg = p.Type
			}
			return types.Subtract(t, neg, g)
		}
		out := types.Intersect(t, p.Type, g)
		if !p.Type.HasNull() {
			out = out.WithPossiblyUndefined(false)
		}
		return out
	case IsInstance:
		class := types.NewUnion(types.Named{Name: p.Class})
		if p.Negated {
			return types.Subtract(t, class, g)
		}
		return types.Intersect(t, class, g).WithPossiblyUndefined(false)
	case Isset:
		if !p.Negated {
			return t.WithoutNull().WithPossiblyUndefined(false)
		}
		if t.HasNull() || t.IsMixed() || t.PossiblyUndefined {
			return types.NullType().WithPossiblyUndefined(t.PossiblyUndefined)
		}
		return types.NeverType()
	}
	return t
}
