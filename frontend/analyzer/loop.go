package analyzer

import (
	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/flow"
	"github.com/cottand/typeflow/frontend/types"
)

// loopSpec describes one loop statement to loop.
type loopSpec struct {
	at ast.Node
	// cond is nil for loops that only end through break
	cond ast.Expr
	// before are evaluated ahead of cond on every iteration (all but the
	// last expression of a for condition)
	before []ast.Expr
	body   []ast.Stmt
	// condAfter marks do-while loops, whose body runs before the first check
	condAfter bool
	// step runs after the body and after every continue
	step []ast.Expr
	// bind prepares a fresh iteration, as foreach assigns the next element
	bind func(body *flow.Context)
	// exitAtHead marks loops that may stop before any iteration, with no
	// condition to tell when (foreach)
	exitAtHead bool
}

// loop analyses a loop in ctx. The body is first run in discovery passes with
// issues muted until the state at the loop head stops changing, then once
// more from that state to report. ctx becomes the state after the loop.
func (fa *fileAnalyzer) loop(sc *scope, ctx *flow.Context, spec loopSpec) {
	head := ctx.Fork()
	fa.muted++
	converged := false
	for pass := 0; pass < MaxLoopPasses && !converged; pass++ {
		end, _ := fa.iterate(sc, head, spec)
		next := flow.Merge(ctx, []*flow.Context{ctx, end}, flow.MergeOpts{Widen: true})
		if next.Equal(head) {
			converged = true
			break
		}
		if pass == MaxLoopPasses-1 {
			next = giveUp(head, next)
		}
		head = next
	}
	fa.muted--
	logger.Debug("loop head", "at", ast.Slog(spec.at), "converged", converged, "head", head)

	_, exits := fa.iterate(sc, head, spec)
	ctx.Replace(flow.Merge(ctx, exits, flow.MergeOpts{}))
}

// iterate runs one iteration from head. It returns the state reaching the
// next check of the loop and every state leaving the loop.
func (fa *fileAnalyzer) iterate(sc *scope, head *flow.Context, spec loopSpec) (end *flow.Context, exits []*flow.Context) {
	body := head.Fork()
	scope := body.EnterLoop(false)
	if spec.exitAtHead {
		exits = append(exits, head.Fork())
	}
	if spec.bind != nil {
		spec.bind(body)
	}
	if spec.cond != nil && !spec.condAfter {
		for _, e := range spec.before {
			fa.expr(sc, body, e)
		}
		var otherwise *flow.Context
		body, otherwise = fa.branch(sc, body, spec.cond, true)
		exits = append(exits, otherwise)
	}

	fa.stmts(sc, body, spec.body)
	end = flow.Merge(head, append([]*flow.Context{body}, scope.Continues...), flow.MergeOpts{})
	for _, e := range spec.step {
		fa.expr(sc, end, e)
	}
	if spec.cond != nil && spec.condAfter {
		var otherwise *flow.Context
		end, otherwise = fa.branch(sc, end, spec.cond, true)
		exits = append(exits, otherwise)
	}
	exits = append(exits, scope.Breaks...)
	return end, exits
}

// giveUp widens to mixed every key whose type was still changing.
func giveUp(prev, next *flow.Context) *flow.Context {
	out := next.Fork()
	for _, k := range next.Keys() {
		a, _ := prev.Get(k)
		b, _ := next.Get(k)
		if !a.Equal(b) {
			out.Narrow(k, types.MixedType().WithPossiblyUndefined(b.PossiblyUndefined))
		}
	}
	return out
}

func (fa *fileAnalyzer) forStmt(sc *scope, ctx *flow.Context, st *ast.For) {
	for _, e := range st.Init {
		fa.expr(sc, ctx, e)
	}
	spec := loopSpec{at: st, body: st.Body, step: st.Loop}
	if n := len(st.Cond); n > 0 {
		spec.before, spec.cond = st.Cond[:n-1], st.Cond[n-1]
	}
	fa.loop(sc, ctx, spec)
}

func (fa *fileAnalyzer) foreach(sc *scope, ctx *flow.Context, st *ast.Foreach) {
	subject := fa.expr(sc, ctx, st.Subject)
	key, value := types.IterationTypes(subject.WithoutNull())
	fa.loop(sc, ctx, loopSpec{
		at:         st,
		body:       st.Body,
		exitAtHead: true,
		bind: func(body *flow.Context) {
			if st.Key != nil {
				fa.assign(sc, body, st.Key, key)
			}
			fa.assign(sc, body, st.Value, value)
		},
	})
	if !st.ByRef {
		return
	}
	// what the body stored through the reference ends up in the subject
	subjectKey, ok := ast.Key(st.Subject)
	valueKey, vok := ast.Key(st.Value)
	if !ok || !vok || !ctx.Reachable() {
		return
	}
	if written, ok := ctx.Get(valueKey); ok {
		written = written.WithPossiblyUndefined(false).WithByRef(false)
		ctx.Set(subjectKey, types.WithIterationValue(subject, written))
		fa.memo.Invalidate(sc.id, ast.RootVar(subjectKey))
	}
}
