package analyzer

import (
	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/clause"
	"github.com/cottand/typeflow/frontend/flow"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/types"
)

// branch evaluates cond in ctx and returns the contexts in which it holds
// and in which it fails. With check set, conditions whose outcome is already
// decided by the types in ctx are reported.
func (fa *fileAnalyzer) branch(sc *scope, ctx *flow.Context, cond ast.Expr, check bool) (then, otherwise *flow.Context) {
	then, otherwise, _ = fa.split(sc, ctx, cond, check)
	return then, otherwise
}

// split is branch that also returns the type of cond.
func (fa *fileAnalyzer) split(sc *scope, ctx *flow.Context, cond ast.Expr, check bool) (then, otherwise *flow.Context, t types.Union) {
	t = fa.expr(sc, ctx, cond)
	set := clause.FromExpr(cond)
	then, holds := clause.ImpliedAssignments(set, ctx, fa.index)
	otherwise, fails := clause.ImpliedAssignments(clause.Negate(set), ctx, fa.index)
	logger.Debug("condition", "cond", cond, "set", set.String(), "then", then, "else", otherwise)

	if !check || !ctx.Reachable() || isConstant(cond) {
		return then, otherwise, t
	}
	switch {
	case set.IsFalse():
		fa.report(issue.ParadoxicalCondition, cond, issue.Symbol{}, "condition %s can never hold", ast.Format(cond))
	case set.IsTrue():
		fa.report(issue.RedundantCondition, cond, issue.Symbol{}, "condition %s always holds", ast.Format(cond))
	case !then.Reachable() && len(holds) > 0:
		c := holds[0]
		fa.report(issue.TypeDoesNotContainType, cond, subjectSymbol(c.Predicate.Subject), "%s of type %s can never satisfy %s", c.Predicate.Subject, c.Type, ast.Format(cond))
	case !otherwise.Reachable() && len(fails) > 0:
		c := fails[0]
		fa.report(issue.RedundantCondition, cond, subjectSymbol(c.Predicate.Subject), "%s of type %s always satisfies %s", c.Predicate.Subject, c.Type, ast.Format(cond))
	}
	return then, otherwise, t
}

func subjectSymbol(key string) issue.Symbol {
	if key == ast.RootVar(key) {
		return issue.Symbol{Kind: issue.Variable, Name: key}
	}
	return issue.Symbol{}
}
