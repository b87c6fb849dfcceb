package analyzer

import (
	"slices"
	"strings"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/clause"
	"github.com/cottand/typeflow/frontend/flow"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/types"
)

// stmts analyses a statement list in ctx. Once ctx becomes unreachable the
// rest of the list is reported once as UnreachableCode and skipped.
func (fa *fileAnalyzer) stmts(sc *scope, ctx *flow.Context, stmts []ast.Stmt) {
	if !ctx.Reachable() {
		return
	}
	for i, st := range stmts {
		if !ctx.Reachable() {
			for _, rest := range stmts[i:] {
				switch rest.(type) {
				case *ast.Nop, *ast.FunctionDecl, *ast.ClassDecl:
					continue
				}
				fa.report(issue.UnreachableCode, rest, issue.Symbol{}, "unreachable code")
				break
			}
			return
		}
		fa.stmt(sc, ctx, st)
		if frame := sc.innermostTry(); frame != nil && ctx.Reachable() {
			// any statement of a try body may throw after it ran
			frame.throws = append(frame.throws, ctx.Snapshot())
		}
	}
}

func (sc *scope) innermostTry() *tryFrame {
	frame, _ := sc.tries.Peek()
	return frame
}

func (fa *fileAnalyzer) stmt(sc *scope, ctx *flow.Context, st ast.Stmt) {
	logger.Debug("stmt", "node", st, "scope", sc.name)
	switch st := st.(type) {
	case *ast.ExprStmt:
		fa.expr(sc, ctx, st.Expr)
	case *ast.Echo:
		for _, e := range st.Exprs {
			fa.expr(sc, ctx, e)
		}
	case *ast.If:
		fa.ifStmt(sc, ctx, st)
	case *ast.While:
		fa.loop(sc, ctx, loopSpec{at: st, cond: st.Cond, body: st.Body})
	case *ast.DoWhile:
		fa.loop(sc, ctx, loopSpec{at: st, cond: st.Cond, body: st.Body, condAfter: true})
	case *ast.For:
		fa.forStmt(sc, ctx, st)
	case *ast.Foreach:
		fa.foreach(sc, ctx, st)
	case *ast.Switch:
		fa.switchStmt(sc, ctx, st)
	case *ast.Break:
		if !ctx.Break(st.Levels) {
			fa.report(issue.UnrecognizedStatement, st, issue.Symbol{}, "cannot break %d level(s)", st.Levels)
		}
	case *ast.Continue:
		if !ctx.Continue(st.Levels) {
			fa.report(issue.UnrecognizedStatement, st, issue.Symbol{}, "cannot continue %d level(s)", st.Levels)
		}
	case *ast.Return:
		fa.returnStmt(sc, ctx, st)
	case *ast.Throw:
		fa.expr(sc, ctx, st.Expr)
		fa.throw(sc, ctx)
	case *ast.Try:
		fa.tryStmt(sc, ctx, st)
	case *ast.Unset:
		for _, v := range st.Vars {
			key, ok := ast.Key(v)
			if !ok {
				fa.quietExpr(sc, ctx, v)
				continue
			}
			ctx.Remove(key)
			fa.memo.Invalidate(sc.id, ast.RootVar(key))
		}
	case *ast.Global:
		for _, name := range st.Names {
			ctx.DeclareInScope("$" + name)
		}
	case *ast.Declare:
		fa.declare(st)
		fa.stmts(sc, ctx, st.Body)
	case *ast.Block:
		fa.stmts(sc, ctx, st.Body)
	case *ast.FunctionDecl:
		if fn, ok := fa.index.Function(st.Name); !ok || fn.Decl != st {
			fa.nestedFunction(st)
		}
	case *ast.ClassDecl:
		// analysed with the file's declarations
	case *ast.Trace:
		key := "$" + st.Var
		t, ok := ctx.Get(key)
		switch {
		case !ok:
			fa.report(issue.Trace, st, issue.Symbol{Kind: issue.Variable, Name: key}, "%s: undefined", key)
		case t.PossiblyUndefined:
			fa.report(issue.Trace, st, issue.Symbol{Kind: issue.Variable, Name: key}, "%s: %s (possibly undefined)", key, t)
		default:
			fa.report(issue.Trace, st, issue.Symbol{Kind: issue.Variable, Name: key}, "%s: %s", key, t)
		}
	case *ast.Nop:
	default:
		internalf(st, "unrecognized statement %T", st)
	}
}

// nestedFunction analyses a function declared outside the top level of the
// file. It is not part of the declaration index, so its signature is read
// from the declaration directly.
func (fa *fileAnalyzer) nestedFunction(d *ast.FunctionDecl) {
	sc := &scope{id: "function:" + strings.ToLower(d.Name), name: d.Name, static: true}
	shape := fa.localShape(d.Params, d.ReturnType, d)
	if d.ReturnType != "" {
		sc.declared = shape.Return
	}
	fa.body(sc, flow.New(), d, shape, d.Body)
}

func (fa *fileAnalyzer) declare(st *ast.Declare) {
	for _, dir := range st.Directives {
		switch strings.ToLower(dir.Name) {
		case "strict_types":
			if lit, ok := dir.Value.(*ast.IntLit); ok && (lit.Value == 0 || lit.Value == 1) {
				continue
			}
			fa.report(issue.UnrecognizedStatement, dir, issue.Symbol{}, "strict_types must be 0 or 1, got %s", ast.Format(dir.Value))
		case "ticks":
			if _, ok := dir.Value.(*ast.IntLit); ok {
				continue
			}
			fa.report(issue.UnrecognizedStatement, dir, issue.Symbol{}, "ticks must be an integer, got %s", ast.Format(dir.Value))
		case "encoding":
			if _, ok := dir.Value.(*ast.StringLit); ok {
				continue
			}
			fa.report(issue.UnrecognizedStatement, dir, issue.Symbol{}, "encoding must be a string, got %s", ast.Format(dir.Value))
		default:
			fa.report(issue.UnrecognizedStatement, dir, issue.Symbol{}, "unrecognized declare directive %s", dir.Name)
		}
	}
}

func (fa *fileAnalyzer) ifStmt(sc *scope, ctx *flow.Context, st *ast.If) {
	type arm struct {
		cond ast.Expr
		body []ast.Stmt
	}
	arms := []arm{{st.Cond, st.Then}}
	for _, e := range st.ElseIfs {
		arms = append(arms, arm{e.Cond, e.Body})
	}

	// known holds what the conditions of earlier arms imply on later ones
	known := clause.True()
	cur := ctx
	ends := make([]*flow.Context, 0, len(arms)+1)
	for i, a := range arms {
		set := clause.FromExpr(a.cond)
		paradox := i > 0 && cur.Reachable() && !set.IsFalse() && !isConstant(a.cond) && clause.And(known, set).IsFalse()
		if paradox {
			fa.report(issue.ParadoxicalCondition, a.cond, issue.Symbol{}, "condition %s can never hold after the previous conditions failed", ast.Format(a.cond))
		}
		then, otherwise := fa.branch(sc, cur, a.cond, !paradox)
		fa.stmts(sc, then, a.body)
		ends = append(ends, then)
		known = clause.And(known, clause.Negate(set)).Without(ast.AssignedVars(a.cond)...)
		cur = otherwise
	}
	if st.Else != nil {
		fa.stmts(sc, cur, st.Else.Body)
	}
	ends = append(ends, cur)
	ctx.Replace(flow.Merge(ctx, ends, flow.MergeOpts{}))
}

func isConstant(e ast.Expr) bool {
	_, ok := e.(*ast.BoolLit)
	return ok
}

func (fa *fileAnalyzer) returnStmt(sc *scope, ctx *flow.Context, st *ast.Return) {
	t := types.VoidType()
	if st.Value != nil {
		t = fa.expr(sc, ctx, st.Value)
	}
	sc.returns = append(sc.returns, t.WithPossiblyUndefined(false).WithByRef(false))
	if !sc.declared.IsZero() {
		switch {
		case st.Value == nil:
			if !acceptsImplicitReturn(sc.declared) {
				fa.report(issue.InvalidReturnType, st, issue.Symbol{}, "%s must return %s, returns nothing", sc.name, sc.declared)
			}
		case sc.declared.IsVoid():
			fa.report(issue.InvalidReturnType, st, issue.Symbol{}, "%s is declared void but returns %s", sc.name, t)
		case !t.IsMixed() && !types.IsContainedBy(t, sc.declared, fa.index):
			fa.report(issue.InvalidReturnType, st, issue.Symbol{}, "%s returns %s, declared %s", sc.name, t, sc.declared)
		}
	}
	if frame := sc.innermostTry(); frame != nil && ctx.Reachable() {
		frame.leaves = append(frame.leaves, ctx.Snapshot())
	}
	ctx.MarkUnreachable()
}

// throw ends the current path, handing it to the innermost try body if any.
func (fa *fileAnalyzer) throw(sc *scope, ctx *flow.Context) {
	if frame := sc.innermostTry(); frame != nil && ctx.Reachable() {
		frame.throws = append(frame.throws, ctx.Snapshot())
	}
	ctx.MarkUnreachable()
}

func (fa *fileAnalyzer) tryStmt(sc *scope, ctx *flow.Context, st *ast.Try) {
	frame := &tryFrame{throws: []*flow.Context{ctx.Snapshot()}}
	body := ctx.Fork()
	sc.tries.Push(frame)
	fa.stmts(sc, body, st.Body)
	sc.tries.Pop()

	// a catch may run after any prefix of the try body
	caught := flow.Merge(ctx, frame.throws, flow.MergeOpts{})
	ends := []*flow.Context{body}
	// catches throw to the enclosing try, through finally
	catching := &tryFrame{}
	sc.tries.Push(catching)
	for _, c := range st.Catches {
		cc := caught.Fork()
		if c.Var != "" {
			var atomics []types.Atomic
			for _, name := range c.Types {
				atomics = append(atomics, types.Named{Name: strings.TrimPrefix(name, "\\")})
			}
			cc.Set("$"+c.Var, types.NewUnion(atomics...))
		}
		fa.stmts(sc, cc, c.Body)
		ends = append(ends, cc)
	}
	sc.tries.Pop()

	// paths leaving the statement early: returns, and exceptions that are
	// not caught here
	leaving := append(slices.Clone(frame.leaves), catching.leaves...)
	throwing := slices.Clone(catching.throws)
	if len(st.Catches) == 0 {
		throwing = append(throwing, caught)
	}
	merged := flow.Merge(ctx, ends, flow.MergeOpts{})

	if st.Finally != nil {
		// issues come from every path through finally; the state after the
		// statement only from the paths that complete normally
		all := flow.Merge(ctx, slices.Concat(ends, leaving, throwing), flow.MergeOpts{})
		fa.stmts(sc, all, st.Finally.Body)
		if merged.Reachable() {
			fa.muted++
			fa.stmts(sc, merged, st.Finally.Body)
			fa.muted--
		}
	}
	for _, t := range throwing {
		fa.throwsFrom(sc, t)
	}
	if outer := sc.innermostTry(); outer != nil {
		outer.leaves = append(outer.leaves, leaving...)
	}
	ctx.Replace(merged)
}

// throwsFrom hands a context that leaves a try statement by exception to the
// enclosing try body, if any.
func (fa *fileAnalyzer) throwsFrom(sc *scope, ctx *flow.Context) {
	if frame := sc.innermostTry(); frame != nil && ctx.Reachable() {
		frame.throws = append(frame.throws, ctx.Snapshot())
	}
}

func (fa *fileAnalyzer) switchStmt(sc *scope, ctx *flow.Context, st *ast.Switch) {
	subject := fa.expr(sc, ctx, st.Subject)
	// switch (true) cases are conditions
	switchTrue := false
	if b, ok := st.Subject.(*ast.BoolLit); ok && b.Value {
		switchTrue = true
	}

	inner := ctx.Fork()
	loop := inner.EnterLoop(true)
	var fallthroughCtx *flow.Context
	hasDefault := false
	for _, c := range st.Cases {
		var start *flow.Context
		switch {
		case c.Cond == nil:
			hasDefault = true
			start = inner.Fork()
		case switchTrue:
			start, _ = fa.branch(sc, inner, c.Cond, false)
		default:
			fa.caseValue(sc, inner, subject, c.Cond)
			start = inner.Fork()
		}
		if fallthroughCtx != nil && fallthroughCtx.Reachable() {
			start = flow.Merge(inner, []*flow.Context{start, fallthroughCtx}, flow.MergeOpts{})
		}
		fa.stmts(sc, start, c.Body)
		fallthroughCtx = start
	}

	exits := append([]*flow.Context{}, loop.Breaks...)
	if fallthroughCtx != nil {
		exits = append(exits, fallthroughCtx)
	}
	if !hasDefault {
		exits = append(exits, inner)
	}
	inner.ExitLoop(loop)
	ctx.Replace(flow.Merge(ctx, exits, flow.MergeOpts{}))
}

// caseValue evaluates a case label and checks it can equal the subject.
func (fa *fileAnalyzer) caseValue(sc *scope, ctx *flow.Context, subject types.Union, cond ast.Expr) {
	t := fa.expr(sc, ctx, cond)
	if _, isLiteral := ast.Literal(cond); !isLiteral || subject.IsMixed() {
		return
	}
	if !types.Overlaps(subject, types.Widen(t), fa.index) && !looselyComparable(subject, t) {
		fa.report(issue.TypeDoesNotContainType, cond, issue.Symbol{}, "case %s can never match a subject of type %s", ast.Format(cond), subject)
	}
}

// looselyComparable reports whether == may hold between values of a and b
// without them sharing a type, as scalars and null compare after conversion.
func looselyComparable(a, b types.Union) bool {
	scalarish := func(u types.Union) bool {
		return u.Has(func(at types.Atomic) bool {
			switch at.(type) {
			case types.Named, types.Object, types.Callable:
				return false
			}
			return true
		})
	}
	return scalarish(a) && scalarish(b)
}
