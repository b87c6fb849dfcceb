package analyzer

import (
	"strconv"
	"strings"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/clause"
	"github.com/cottand/typeflow/frontend/flow"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/types"
)

// superglobals are defined in every scope.
var superglobals = map[string]string{
	"GLOBALS":  "array<string, mixed>",
	"_SERVER":  "array<string, mixed>",
	"_GET":     "array<string, mixed>",
	"_POST":    "array<string, mixed>",
	"_COOKIE":  "array<string, mixed>",
	"_FILES":   "array<string, mixed>",
	"_ENV":     "array<string, mixed>",
	"_REQUEST": "array<string, mixed>",
	"_SESSION": "array<string, mixed>",
}

// expr analyses e in ctx, applying its side effects to ctx, and returns its type.
func (fa *fileAnalyzer) expr(sc *scope, ctx *flow.Context, e ast.Expr) types.Union {
	switch e := e.(type) {
	case *ast.Variable:
		return fa.variable(sc, ctx, e)
	case *ast.IntLit:
		return types.NewUnion(types.LitInt{Value: e.Value})
	case *ast.FloatLit:
		return types.NewUnion(types.LitFloat{Value: e.Value})
	case *ast.StringLit:
		return types.NewUnion(types.LitString{Value: e.Value})
	case *ast.BoolLit:
		return types.NewUnion(types.LitBool{Value: e.Value})
	case *ast.NullLit:
		return types.NullType()
	case *ast.ArrayLit:
		return fa.arrayLit(sc, ctx, e)
	case *ast.Assign:
		return fa.assignExpr(sc, ctx, e)
	case *ast.AssignOp:
		return fa.assignOp(sc, ctx, e)
	case *ast.Binary:
		return fa.binary(sc, ctx, e)
	case *ast.Unary:
		return fa.unary(sc, ctx, e)
	case *ast.IncDec:
		return fa.incDec(sc, ctx, e)
	case *ast.Ternary:
		return fa.ternary(sc, ctx, e)
	case *ast.Match:
		return fa.match(sc, ctx, e)
	case *ast.Instanceof:
		fa.quietExpr(sc, ctx, e.Expr)
		return types.BoolType()
	case *ast.Isset:
		for _, v := range e.Vars {
			fa.quietExpr(sc, ctx, v)
		}
		return types.BoolType()
	case *ast.Empty:
		fa.quietExpr(sc, ctx, e.Expr)
		return types.BoolType()
	case *ast.Call:
		return fa.call(sc, ctx, e)
	case *ast.MethodCall:
		return fa.methodCall(sc, ctx, e)
	case *ast.StaticCall:
		return fa.staticCall(sc, ctx, e)
	case *ast.New:
		return fa.newExpr(sc, ctx, e)
	case *ast.PropertyFetch:
		return fa.propertyFetch(sc, ctx, e, false)
	case *ast.ArrayDimFetch:
		return fa.dimFetch(sc, ctx, e, false)
	case *ast.Closure:
		return fa.closure(sc, ctx, e)
	case *ast.Cast:
		return fa.cast(sc, ctx, e)
	}
	internalf(e, "unrecognized expression %T", e)
	return types.MixedType()
}

// quietExpr evaluates e where missing storage is not an error (isset, empty,
// ?? and unset): undefined variables, keys and properties read as null.
func (fa *fileAnalyzer) quietExpr(sc *scope, ctx *flow.Context, e ast.Expr) types.Union {
	switch e := e.(type) {
	case *ast.Variable:
		if e.Name == "this" {
			break
		}
		if _, ok := superglobals[e.Name]; ok {
			break
		}
		t, ok := ctx.Get("$" + e.Name)
		switch {
		case !ok:
			return types.NullType()
		case t.PossiblyUndefined:
			return t.WithPossiblyUndefined(false).WithNull()
		}
		return t
	case *ast.PropertyFetch:
		return fa.propertyFetch(sc, ctx, e, true)
	case *ast.ArrayDimFetch:
		return fa.dimFetch(sc, ctx, e, true)
	}
	return fa.expr(sc, ctx, e)
}

func (fa *fileAnalyzer) variable(sc *scope, ctx *flow.Context, v *ast.Variable) types.Union {
	if v.Name == "this" {
		if sc.class == nil || sc.static {
			fa.report(issue.UndefinedVariable, v, issue.Symbol{Kind: issue.Variable, Name: "$this"}, "$this is not available in %s", sc.name)
			return types.MixedType()
		}
		return types.NewUnion(sc.class.Type())
	}
	if t, ok := superglobals[v.Name]; ok {
		return types.MustParse(t)
	}
	key := "$" + v.Name
	sym := issue.Symbol{Kind: issue.Variable, Name: key}
	t, ok := ctx.Get(key)
	switch {
	case !ok:
		fa.report(issue.UndefinedVariable, v, sym, "cannot find referenced variable %s", key)
		return types.MixedType()
	case t.PossiblyUndefined:
		fa.report(issue.PossiblyUndefinedVariable, v, sym, "possibly undefined variable %s", key)
		return t.WithPossiblyUndefined(false)
	}
	return t
}

func (fa *fileAnalyzer) arrayLit(sc *scope, ctx *flow.Context, e *ast.ArrayLit) types.Union {
	if len(e.Items) == 0 {
		return types.NewUnion(types.Shape{})
	}
	var (
		entries      []types.ShapeEntry
		keys, values []types.Union
		next         int64
		literalKeys  = true
		explicitKeys = false
	)
	for _, it := range e.Items {
		var v types.Union
		if it.ByRef {
			v = fa.quietExpr(sc, ctx, it.Value)
		} else {
			v = fa.expr(sc, ctx, it.Value)
		}
		v = v.WithPossiblyUndefined(false).WithByRef(false)
		if it.Unpack {
			k, iv := types.IterationTypes(v)
			keys, values = append(keys, k), append(values, iv)
			literalKeys = false
			continue
		}
		values = append(values, v)
		if it.Key == nil {
			keys = append(keys, types.NewUnion(types.LitInt{Value: next}))
			entries = withEntry(entries, types.ShapeEntry{Key: strconv.FormatInt(next, 10), IntKey: true, Type: v})
			next++
			continue
		}
		explicitKeys = true
		k := fa.expr(sc, ctx, it.Key)
		keys = append(keys, k)
		entry, ok := shapeKey(it.Key)
		if !ok {
			literalKeys = false
			continue
		}
		if entry.IntKey {
			if n, _ := strconv.ParseInt(entry.Key, 10, 64); n >= next {
				next = n + 1
			}
		}
		entry.Type = v
		entries = withEntry(entries, entry)
	}
	switch {
	case literalKeys:
		return types.NewUnion(types.Shape{Entries: entries})
	case !explicitKeys:
		return types.NewUnion(types.List{Value: types.CombineAll(values...)})
	}
	return types.NewUnion(types.Array{Key: types.Widen(types.CombineAll(keys...)), Value: types.CombineAll(values...)})
}

// shapeKey returns the shape entry addressed by a literal array key. Strings
// holding a canonical integer address the integer key, as they do at runtime.
func shapeKey(e ast.Expr) (types.ShapeEntry, bool) {
	switch e := e.(type) {
	case *ast.IntLit:
		return types.ShapeEntry{Key: strconv.FormatInt(e.Value, 10), IntKey: true}, true
	case *ast.StringLit:
		if n, err := strconv.ParseInt(e.Value, 10, 64); err == nil && strconv.FormatInt(n, 10) == e.Value {
			return types.ShapeEntry{Key: e.Value, IntKey: true}, true
		}
		return types.ShapeEntry{Key: e.Value}, true
	case *ast.BoolLit:
		if e.Value {
			return types.ShapeEntry{Key: "1", IntKey: true}, true
		}
		return types.ShapeEntry{Key: "0", IntKey: true}, true
	}
	return types.ShapeEntry{}, false
}

func withEntry(entries []types.ShapeEntry, e types.ShapeEntry) []types.ShapeEntry {
	out := make([]types.ShapeEntry, 0, len(entries)+1)
	for _, old := range entries {
		if old.Key != e.Key || old.IntKey != e.IntKey {
			out = append(out, old)
		}
	}
	return append(out, e)
}

func (fa *fileAnalyzer) assignExpr(sc *scope, ctx *flow.Context, e *ast.Assign) types.Union {
	if e.ByRef {
		target, tok := ast.Key(e.Target)
		source, sok := ast.Key(e.Value)
		if tok && sok && target == ast.RootVar(target) && source == ast.RootVar(source) {
			ctx.Bind(target, source)
			fa.memo.Invalidate(sc.id, target)
			t, _ := ctx.Get(target)
			return t
		}
	}
	t := fa.expr(sc, ctx, e.Value)
	fa.assign(sc, ctx, e.Target, t)
	return t.WithPossiblyUndefined(false).WithByRef(false)
}

// assign stores t into the storage target denotes.
func (fa *fileAnalyzer) assign(sc *scope, ctx *flow.Context, target ast.Expr, t types.Union) {
	t = t.WithPossiblyUndefined(false).WithByRef(false)
	switch target := target.(type) {
	case *ast.Variable:
		if target.Name == "this" {
			fa.report(issue.UnrecognizedStatement, target, issue.Symbol{}, "cannot re-assign $this")
			return
		}
		key := "$" + target.Name
		ctx.Set(key, t)
		fa.memo.Invalidate(sc.id, key)
	case *ast.PropertyFetch:
		recv := fa.expr(sc, ctx, target.Receiver)
		fa.nonNull(target, recv, false, "assign property "+target.Property)
		if key, ok := ast.Key(target); ok {
			ctx.Set(key, t)
			fa.memo.Invalidate(sc.id, ast.RootVar(key))
		}
	case *ast.ArrayDimFetch:
		fa.assignDim(sc, ctx, target, t)
	case *ast.ArrayLit:
		fa.destructure(sc, ctx, target, t)
	default:
		fa.expr(sc, ctx, target)
		fa.report(issue.UnrecognizedStatement, target, issue.Symbol{}, "cannot assign to %s", ast.Format(target))
	}
}

// assignDim writes an array element, updating the type of the array itself.
func (fa *fileAnalyzer) assignDim(sc *scope, ctx *flow.Context, target *ast.ArrayDimFetch, t types.Union) {
	base := fa.quietExpr(sc, ctx, target.Var).WithPossiblyUndefined(false).WithByRef(false)
	var dim types.Union
	if target.Dim != nil {
		dim = fa.expr(sc, ctx, target.Dim)
	}
	switch target.Var.(type) {
	case *ast.Variable, *ast.PropertyFetch, *ast.ArrayDimFetch:
		fa.assign(sc, ctx, target.Var, withElement(base, target.Dim, dim, t))
	}
	if key, ok := ast.Key(target); ok {
		ctx.Set(key, t)
	}
}

// withElement is the type of base after writing value at dim. A nil dim
// appends.
func withElement(base types.Union, dim ast.Expr, dimType, value types.Union) types.Union {
	if base.IsNull() || base.IsNever() {
		base = types.NewUnion(types.Shape{})
	}
	entry, literal := types.ShapeEntry{}, false
	if dim != nil {
		entry, literal = shapeKey(dim)
	}
	keyType := types.IntType()
	if dim != nil {
		keyType = types.Widen(dimType)
	}
	return base.Map(func(a types.Atomic) types.Atomic {
		switch a := a.(type) {
		case types.Null:
			return types.Shape{}
		case types.Shape:
			switch {
			case dim == nil:
				next := int64(0)
				for _, e := range a.Entries {
					if n, err := strconv.ParseInt(e.Key, 10, 64); err == nil && e.IntKey && n >= next {
						next = n + 1
					}
				}
				return types.Shape{Entries: withEntry(a.Entries, types.ShapeEntry{Key: strconv.FormatInt(next, 10), IntKey: true, Type: value})}
			case literal:
				entry.Type = value
				return types.Shape{Entries: withEntry(a.Entries, entry)}
			}
			k, v := types.IterationTypes(types.NewUnion(a))
			return types.Array{Key: types.Widen(types.Combine(k, keyType)), Value: types.Combine(v, value)}
		case types.List:
			if dim == nil {
				return types.List{Value: types.Combine(a.Value, value)}
			}
			return types.Array{Key: types.Combine(types.IntType(), keyType), Value: types.Combine(a.Value, value)}
		case types.Array:
			return types.Array{Key: types.Widen(types.Combine(a.Key, keyType)), Value: types.Combine(a.Value, value)}
		}
		return a
	})
}

// destructure assigns the elements of t to the items of a list() target.
func (fa *fileAnalyzer) destructure(sc *scope, ctx *flow.Context, target *ast.ArrayLit, t types.Union) {
	for i, it := range target.Items {
		if it.Value == nil {
			continue
		}
		var dim ast.Expr = &ast.IntLit{Range: target.Range, Value: int64(i)}
		if it.Key != nil {
			dim = it.Key
			fa.expr(sc, ctx, it.Key)
		}
		fa.assign(sc, ctx, it.Value, elementType(t, dim, true))
	}
}

func (fa *fileAnalyzer) assignOp(sc *scope, ctx *flow.Context, e *ast.AssignOp) types.Union {
	var t types.Union
	if e.Op == "??" {
		current := fa.quietExpr(sc, ctx, e.Target)
		t = coalesce(e.Target, current, fa.expr(sc, ctx, e.Value))
	} else {
		current := fa.expr(sc, ctx, e.Target)
		t = binaryType(e.Op, current, fa.expr(sc, ctx, e.Value))
	}
	fa.assign(sc, ctx, e.Target, t)
	return t
}

// coalesce is the type of left ?? right.
func coalesce(left ast.Expr, l, r types.Union) types.Union {
	if _, isVar := left.(*ast.Variable); isVar && !l.HasNull() && !l.IsMixed() {
		return l
	}
	if l.IsNull() {
		return r
	}
	return types.Combine(l.WithoutNull(), r)
}

func (fa *fileAnalyzer) binary(sc *scope, ctx *flow.Context, e *ast.Binary) types.Union {
	switch e.Op {
	case "&&", "and", "||", "or":
		fa.expr(sc, ctx, e.Left)
		set := clause.FromExpr(e.Left)
		if e.Op == "||" || e.Op == "or" {
			set = clause.Negate(set)
		}
		// the right operand only runs when the left one did not decide
		right, _ := clause.ImpliedAssignments(set, ctx, fa.index)
		skipped, _ := clause.ImpliedAssignments(clause.Negate(set), ctx, fa.index)
		fa.expr(sc, right, e.Right)
		ctx.Replace(flow.Merge(ctx, []*flow.Context{right, skipped}, flow.MergeOpts{}))
		return types.BoolType()
	case "??":
		l := fa.quietExpr(sc, ctx, e.Left)
		if _, isVar := e.Left.(*ast.Variable); isVar && !l.HasNull() && !l.IsMixed() {
			// the right operand never runs
			fa.quietly(func() { fa.expr(sc, ctx.Fork(), e.Right) })
			return l
		}
		return coalesce(e.Left, l, fa.expr(sc, ctx, e.Right))
	}
	l := fa.expr(sc, ctx, e.Left)
	r := fa.expr(sc, ctx, e.Right)
	return binaryType(e.Op, l, r)
}

// quietly runs f with issues muted.
func (fa *fileAnalyzer) quietly(f func()) {
	fa.muted++
	defer func() { fa.muted-- }()
	f()
}

func (fa *fileAnalyzer) unary(sc *scope, ctx *flow.Context, e *ast.Unary) types.Union {
	t := fa.expr(sc, ctx, e.Operand)
	switch e.Op {
	case "!":
		switch {
		case types.AlwaysTruthy(t):
			return types.NewUnion(types.LitBool{Value: false})
		case types.AlwaysFalsy(t):
			return types.NewUnion(types.LitBool{Value: true})
		}
		return types.BoolType()
	case "-":
		if lit, ok := e.Operand.(*ast.IntLit); ok {
			return types.NewUnion(types.LitInt{Value: -lit.Value})
		}
		if lit, ok := e.Operand.(*ast.FloatLit); ok {
			return types.NewUnion(types.LitFloat{Value: -lit.Value})
		}
		return numericResult(t)
	case "+":
		return numericResult(t)
	case "~":
		return types.IntType()
	case "@":
		return t
	}
	internalf(e, "unrecognized unary operator %q", e.Op)
	return types.MixedType()
}

func (fa *fileAnalyzer) incDec(sc *scope, ctx *flow.Context, e *ast.IncDec) types.Union {
	current := fa.expr(sc, ctx, e.Target)
	next := current
	switch ints, floats, other := numericParts(current); {
	case other && current.Has(isString) && e.Inc:
		next = types.MustParse("string|int|float")
	case other:
		next = types.MustParse("int|float")
	case floats && !ints:
		next = types.FloatType()
	case floats:
		next = types.MustParse("int|float")
	default:
		next = types.IntType()
	}
	if current.IsNull() && !e.Inc {
		// decrementing null leaves null
		next = types.NullType()
	}
	fa.assign(sc, ctx, e.Target, next)
	if e.Prefix {
		return next
	}
	return current
}

func (fa *fileAnalyzer) ternary(sc *scope, ctx *flow.Context, e *ast.Ternary) types.Union {
	then, otherwise, cond := fa.split(sc, ctx, e.Cond, false)
	var results []types.Union
	if then.Reachable() {
		if e.Then == nil {
			results = append(results, types.Truthy(cond))
		} else {
			results = append(results, fa.expr(sc, then, e.Then))
		}
	}
	if otherwise.Reachable() {
		results = append(results, fa.expr(sc, otherwise, e.Else))
	}
	ctx.Replace(flow.Merge(ctx, []*flow.Context{then, otherwise}, flow.MergeOpts{}))
	if len(results) == 0 {
		return types.NeverType()
	}
	return types.CombineAll(results...)
}

func (fa *fileAnalyzer) match(sc *scope, ctx *flow.Context, e *ast.Match) types.Union {
	subject := fa.expr(sc, ctx, e.Subject)
	b, isBool := e.Subject.(*ast.BoolLit)
	conditions := isBool && b.Value

	// remaining holds the subject values no arm has matched yet
	var remaining []types.Atomic
	for _, a := range subject.Atomics() {
		if _, ok := a.(types.Bool); ok {
			remaining = append(remaining, types.LitBool{Value: true}, types.LitBool{Value: false})
			continue
		}
		remaining = append(remaining, a)
	}
	exhaustive := !conditions && !subject.IsMixed()

	cur := ctx
	var results []types.Union
	var ends []*flow.Context
	for _, arm := range e.Arms {
		var armCtx *flow.Context
		if len(arm.Conds) == 0 {
			armCtx = cur.Fork()
			remaining = nil
		} else {
			set := clause.False()
			for _, c := range arm.Conds {
				ct := fa.expr(sc, cur, c)
				if conditions {
					set = clause.Or(set, clause.FromExpr(c))
					continue
				}
				set = clause.Or(set, clause.FromExpr(&ast.Binary{Range: arm.Range, Op: "===", Left: e.Subject, Right: c}))
				if _, ok := ast.Literal(c); !ok {
					exhaustive = false
					continue
				}
				remaining = without(remaining, ct, fa.index)
			}
			armCtx, _ = clause.ImpliedAssignments(set, cur, fa.index)
			cur, _ = clause.ImpliedAssignments(clause.Negate(set), cur, fa.index)
		}
		if armCtx.Reachable() {
			results = append(results, fa.expr(sc, armCtx, arm.Body))
			ends = append(ends, armCtx)
		}
	}
	if exhaustive && len(remaining) > 0 && ctx.Reachable() {
		fa.report(issue.UnhandledMatchCondition, e, issue.Symbol{}, "match subject of type %s is not handled for %s", subject, types.NewUnion(remaining...))
	}
	// an unmatched subject throws
	ctx.Replace(flow.Merge(ctx, ends, flow.MergeOpts{}))
	if len(results) == 0 {
		return types.NeverType()
	}
	return types.CombineAll(results...)
}

func without(atomics []types.Atomic, matched types.Union, g types.ClassGraph) []types.Atomic {
	var out []types.Atomic
	for _, a := range atomics {
		covered := false
		for _, m := range matched.Atomics() {
			if types.AtomicContainedBy(a, m, g) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, a)
		}
	}
	return out
}

func (fa *fileAnalyzer) cast(sc *scope, ctx *flow.Context, e *ast.Cast) types.Union {
	t := fa.expr(sc, ctx, e.Expr)
	switch strings.ToLower(e.To) {
	case "int", "integer":
		return types.IntType()
	case "float", "double", "real":
		return types.FloatType()
	case "string":
		return types.StringType()
	case "bool", "boolean":
		return types.BoolType()
	case "array":
		arrays := t.Filter(isArrayLike)
		if !arrays.IsNever() && len(arrays.Atomics()) == len(t.Atomics()) {
			return arrays
		}
		return types.MustParse("array<array-key, mixed>")
	case "object":
		objects := t.Filter(isObject)
		if !objects.IsNever() && len(objects.Atomics()) == len(t.Atomics()) {
			return objects
		}
		return types.NewUnion(types.Object{})
	case "unset":
		return types.NullType()
	}
	fa.report(issue.UnrecognizedStatement, e, issue.Symbol{}, "unrecognized cast to %s", e.To)
	return types.MixedType()
}
