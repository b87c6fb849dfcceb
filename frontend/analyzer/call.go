package analyzer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/codebase"
	"github.com/cottand/typeflow/frontend/flow"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/cottand/typeflow/frontend/types"
)

// builtinClasses are the runtime's own classes and interfaces, known without
// a declaration.
var builtinClasses = []string{
	"arrayaccess", "arrayiterator", "arrayobject", "closure", "countable", "datetime",
	"datetimeimmutable", "datetimeinterface", "error", "exception", "generator",
	"invalidargumentexception", "iterator", "iteratoraggregate", "jsonserializable",
	"logicexception", "runtimeexception", "stdclass", "stringable", "throwable",
	"traversable", "typeerror", "valueerror",
}

func (fa *fileAnalyzer) classKnown(name string) bool {
	return fa.index.Known(name) || slices.Contains(builtinClasses, strings.ToLower(name))
}

func (fa *fileAnalyzer) call(sc *scope, ctx *flow.Context, e *ast.Call) types.Union {
	name := strings.TrimPrefix(e.Name, "\\")
	sym := issue.Symbol{Kind: issue.Function, Name: name}

	if fn, ok := fa.index.Function(name); ok {
		shape := fn.Signature
		if !fn.DeclaredReturn {
			shape.Return = fa.inferredReturn(fn.Name)
		}
		ret, _ := fa.args(sc, ctx, e, e.Args, shape, fn.Name, sym)
		if !fn.Pure {
			fa.sideEffects(ctx)
		}
		return ret
	}
	if fa.functions != nil {
		if shape, ok := fa.functions.Resolve(name); ok {
			ret, _ := fa.args(sc, ctx, e, e.Args, shape, name, sym)
			if !fa.functions.IsPure(name) {
				fa.sideEffects(ctx)
			}
			return ret
		}
	}

	for _, a := range e.Args {
		fa.expr(sc, ctx, a.Value)
	}
	fa.sideEffects(ctx)
	fa.report(issue.UndefinedFunction, e, sym, "function %s does not exist%s", name, fa.suggestFunction(name))
	return types.MixedType()
}

func (fa *fileAnalyzer) suggestFunction(name string) string {
	candidates := fa.index.FunctionNames()
	if fa.functions != nil {
		candidates = append(candidates, fa.functions.Names()...)
	}
	if s, ok := signature.Closest(strings.ToLower(name), candidates); ok {
		return fmt.Sprintf(", did you mean %s?", s)
	}
	return ""
}

// inferredReturn is the return type inferred for a callable declared without
// one, mixed when its body has not been analysed yet. The file's own
// signatures take precedence over those the index has committed.
func (fa *fileAnalyzer) inferredReturn(name string) types.Union {
	if s, ok := fa.signatures[strings.ToLower(strings.TrimPrefix(name, "\\"))]; ok && !s.Return.IsZero() {
		return s.Return
	}
	if s, ok := fa.index.Inferred(name); ok && !s.Return.IsZero() {
		return s.Return
	}
	return types.MixedType()
}

// sideEffects forgets what was memoised about calls, since a call that is not
// pure may have changed what they return.
func (fa *fileAnalyzer) sideEffects(ctx *flow.Context) {
	fa.memo.InvalidateAll()
	ctx.ForgetCalls()
}

// args analyses the arguments of a call against shape and returns the call's
// return type, along with the templates the arguments bound.
func (fa *fileAnalyzer) args(sc *scope, ctx *flow.Context, at ast.Positioner, args []ast.Arg, shape signature.Shape, name string, sym issue.Symbol) (types.Union, types.Bindings) {
	argTypes := make([]types.Union, len(args))
	unpacked := false
	for i, a := range args {
		if p, ok := shape.Param(i); ok && p.ByRef && !a.Unpack {
			argTypes[i] = fa.quietExpr(sc, ctx, a.Value)
		} else {
			argTypes[i] = fa.expr(sc, ctx, a.Value)
		}
		unpacked = unpacked || a.Unpack
	}
	if !unpacked {
		switch {
		case len(args) < shape.Required():
			fa.report(issue.TooFewArguments, at, sym, "too few arguments for %s: expecting %d, got %d", name, shape.Required(), len(args))
		case len(args) > len(shape.Params) && !shape.Variadic():
			fa.report(issue.TooManyArguments, at, sym, "too many arguments for %s: expecting %d, got %d", name, len(shape.Params), len(args))
		}
	}

	b := types.Bindings{}
	for i, a := range args {
		p, ok := shape.Param(i)
		if !ok || a.Unpack {
			break
		}
		types.InferTemplates(p.Type, argTypes[i], b)
	}
	for i, a := range args {
		p, ok := shape.Param(i)
		if !ok || a.Unpack {
			break
		}
		want := types.Substitute(p.Type, b)
		if p.ByRef {
			fa.byRefArg(sc, ctx, a.Value, argTypes[i], want)
			continue
		}
		fa.checkArg(a, i, argTypes[i], want, name, sym)
	}

	ret := shape.Return
	if ret.IsZero() {
		return types.MixedType(), b
	}
	return types.Substitute(ret, b), b
}

// byRefArg applies the write a callee may make through a by-reference
// parameter.
func (fa *fileAnalyzer) byRefArg(sc *scope, ctx *flow.Context, arg ast.Expr, current, param types.Union) {
	if _, ok := ast.Key(arg); !ok {
		return
	}
	if !current.IsNull() && types.IsContainedBy(current, param, fa.index) {
		return
	}
	fa.assign(sc, ctx, arg, param)
}

func (fa *fileAnalyzer) checkArg(at ast.Positioner, i int, arg, param types.Union, name string, sym issue.Symbol) {
	arg = arg.WithPossiblyUndefined(false).WithByRef(false)
	if param.IsMixed() || arg.IsMixed() || types.IsContainedBy(arg, param, fa.index) {
		return
	}
	if coerced := fa.coerce(arg, param); types.IsContainedBy(coerced, param, fa.index) {
		return
	}
	if !types.Overlaps(arg, param, fa.index) {
		fa.report(issue.InvalidArgument, at, sym, "argument %d of %s expects %s, %s provided", i+1, name, param, arg)
		return
	}
	fa.report(issue.PossiblyInvalidArgument, at, sym, "argument %d of %s expects %s, possibly different type %s provided", i+1, name, param, arg)
}

// coerce converts the scalars of arg the way the runtime does when passing
// them to param: ints widen to floats, and without strict_types any scalar
// converts to the scalar the parameter accepts.
func (fa *fileAnalyzer) coerce(arg, param types.Union) types.Union {
	var target types.Atomic
	for _, a := range param.Atomics() {
		if isScalar(a) {
			target = types.Widen(types.NewUnion(a)).Atomics()[0]
			break
		}
	}
	acceptsFloat := param.Has(func(a types.Atomic) bool { _, ok := a.(types.Float); return ok })
	return arg.Map(func(a types.Atomic) types.Atomic {
		switch a.(type) {
		case types.Int, types.LitInt:
			if acceptsFloat {
				return types.Float{}
			}
		}
		if !fa.strictTypes && target != nil && isScalar(a) {
			return target
		}
		return a
	})
}

// nonNull checks a receiver before what is done to it and returns it without
// null. nullable reports whether a null-safe access let null through.
func (fa *fileAnalyzer) nonNull(at ast.Positioner, recv types.Union, nullsafe bool, what string) (t types.Union, nullable bool) {
	if !recv.HasNull() {
		return recv, false
	}
	switch {
	case nullsafe:
		return recv.WithoutNull(), true
	case recv.IsNull():
		fa.report(issue.NullReference, at, issue.Symbol{}, "cannot %s on null", what)
	default:
		fa.report(issue.PossiblyNullReference, at, issue.Symbol{}, "cannot %s on possibly null value of type %s", what, recv)
	}
	return recv.WithoutNull(), false
}

// methodTarget is a method resolved on one class of a receiver.
type methodTarget struct {
	method    *codebase.Method
	declaring *codebase.Class
	receiver  types.Named
}

// shape is the method's signature as seen through the receiver: class
// templates are bound to the receiver's type arguments, method templates are
// left for the arguments to bind.
func (fa *fileAnalyzer) shape(t methodTarget) signature.Shape {
	shape := t.method.Signature
	if !t.method.DeclaredReturn {
		shape.Return = fa.inferredReturn(t.method.Key())
	}
	b := fa.index.Bindings(t.receiver, t.declaring)
	for _, tpl := range t.method.Templates {
		b[types.TemplateKey(tpl.Name, tpl.DefinedIn)] = types.NewUnion(tpl)
	}
	params := make([]signature.Param, len(shape.Params))
	for i, p := range shape.Params {
		p.Type = types.Substitute(p.Type, b)
		params[i] = p
	}
	shape.Params = params
	shape.Return = types.Substitute(shape.Return, b)
	return shape
}

func (fa *fileAnalyzer) methodCall(sc *scope, ctx *flow.Context, e *ast.MethodCall) types.Union {
	recv := fa.expr(sc, ctx, e.Receiver)
	key, keyed := ast.Key(e)
	keyed = keyed && fa.opts.Memoize

	// the cache decides whether an earlier result still holds; the context
	// only tracks what conditions narrowed it to on this path
	if keyed {
		if narrowed, ok := ctx.Get(key); ok && !narrowed.PossiblyUndefined {
			if _, hit := fa.memo.Lookup(sc.id, key); hit {
				fa.quietArgs(sc, ctx, e.Args)
				logger.Debug("method call result known", "key", key, "type", narrowed)
				return narrowed
			}
		}
	}

	recv, nullable := fa.nonNull(e, recv, e.NullSafe, "call method "+e.Method)
	ret, clean := fa.callOn(sc, ctx, e, recv)
	if nullable {
		ret = ret.WithNull()
	}
	if keyed {
		if clean {
			fa.memo.Store(sc.id, key, ast.Vars(e), ret)
		}
		ctx.Narrow(key, ret)
	}
	return ret
}

// quietArgs evaluates the arguments of a call whose result is already known.
func (fa *fileAnalyzer) quietArgs(sc *scope, ctx *flow.Context, args []ast.Arg) {
	for _, a := range args {
		fa.expr(sc, ctx, a.Value)
	}
}

// callOn resolves e on every class of recv and returns the combined result.
// clean is false when some class could not be resolved.
func (fa *fileAnalyzer) callOn(sc *scope, ctx *flow.Context, e *ast.MethodCall, recv types.Union) (ret types.Union, clean bool) {
	var targets []methodTarget
	unknown := false
	for _, a := range recv.Atomics() {
		switch a := a.(type) {
		case types.Named:
			m, declaring, ok := fa.index.FindMethod(a.Name, e.Method)
			if ok {
				targets = append(targets, methodTarget{method: m, declaring: declaring, receiver: a})
				continue
			}
			unknown = true
			if fa.index.Known(a.Name) {
				hint := ""
				if s, ok := signature.Closest(strings.ToLower(e.Method), fa.index.MethodNames(a.Name)); ok {
					hint = fmt.Sprintf(", did you mean %s?", s)
				}
				fa.report(issue.UndefinedMethod, e, issue.Symbol{Kind: issue.Method, Name: a.Name + "::" + e.Method}, "method %s::%s does not exist%s", a.Name, e.Method, hint)
			}
		case types.Never:
		default:
			unknown = true
		}
	}
	if len(targets) == 0 {
		fa.quietArgs(sc, ctx, e.Args)
		return types.MixedType(), false
	}

	first := targets[0]
	name := first.declaring.Name + "::" + first.method.Name
	r, _ := fa.args(sc, ctx, e, e.Args, fa.shape(first), name, issue.Symbol{Kind: issue.Method, Name: name})
	rets := []types.Union{r}
	for _, t := range targets[1:] {
		rets = append(rets, fa.shape(t).Return)
	}
	if unknown {
		rets = append(rets, types.MixedType())
	}
	return types.CombineAll(rets...), !unknown
}

// staticClass resolves the class named by a static reference, reporting
// undeclared ones.
func (fa *fileAnalyzer) staticClass(sc *scope, at ast.Positioner, name string) (*codebase.Class, bool) {
	name = strings.TrimPrefix(name, "\\")
	switch strings.ToLower(name) {
	case "self", "static":
		if sc.class == nil {
			fa.report(issue.UndefinedClass, at, issue.Symbol{}, "cannot use %s outside of a class", name)
			return nil, false
		}
		return sc.class, true
	case "parent":
		if sc.class == nil || sc.class.Parent == "" {
			fa.report(issue.UndefinedClass, at, issue.Symbol{}, "cannot use parent without a parent class")
			return nil, false
		}
		name = sc.class.Parent
	}
	c, ok := fa.index.Class(name)
	if !ok && !fa.classKnown(name) {
		fa.report(issue.UndefinedClass, at, issue.Symbol{Kind: issue.Class, Name: name}, "class %s does not exist", name)
	}
	return c, ok
}

func (fa *fileAnalyzer) staticCall(sc *scope, ctx *flow.Context, e *ast.StaticCall) types.Union {
	defer fa.sideEffects(ctx)
	c, ok := fa.staticClass(sc, e, e.Class)
	if !ok {
		fa.quietArgs(sc, ctx, e.Args)
		return types.MixedType()
	}
	m, declaring, ok := fa.index.FindMethod(c.Name, e.Method)
	if !ok {
		fa.quietArgs(sc, ctx, e.Args)
		fa.report(issue.UndefinedMethod, e, issue.Symbol{Kind: issue.Method, Name: c.Name + "::" + e.Method}, "method %s::%s does not exist", c.Name, e.Method)
		return types.MixedType()
	}
	recv := c.Type()
	if sc.class != nil && !strings.EqualFold(e.Class, c.Name) {
		// self::, static:: and parent:: keep the bindings of $this
		recv = sc.class.Type()
	}
	name := declaring.Name + "::" + m.Name
	ret, _ := fa.args(sc, ctx, e, e.Args, fa.shape(methodTarget{method: m, declaring: declaring, receiver: recv}), name, issue.Symbol{Kind: issue.Method, Name: name})
	return ret
}

func (fa *fileAnalyzer) newExpr(sc *scope, ctx *flow.Context, e *ast.New) types.Union {
	defer fa.sideEffects(ctx)
	c, ok := fa.staticClass(sc, e, e.Class)
	if !ok {
		fa.quietArgs(sc, ctx, e.Args)
		return types.NewUnion(types.Named{Name: strings.TrimPrefix(e.Class, "\\")})
	}
	m, declaring, ok := fa.index.FindMethod(c.Name, "__construct")
	if !ok {
		fa.quietArgs(sc, ctx, e.Args)
		if len(c.Templates) == 0 {
			return types.NewUnion(types.Named{Name: c.Name})
		}
		return types.NewUnion(types.Named{Name: c.Name, Params: templateParams(c, types.Bindings{})})
	}
	name := declaring.Name + "::" + m.Name
	_, b := fa.args(sc, ctx, e, e.Args, fa.shape(methodTarget{method: m, declaring: declaring, receiver: c.Type()}), name, issue.Symbol{Kind: issue.Method, Name: name})
	if len(c.Templates) == 0 {
		return types.NewUnion(types.Named{Name: c.Name})
	}
	return types.NewUnion(types.Named{Name: c.Name, Params: templateParams(c, b)})
}

// templateParams are the type arguments of a new instance of c.
func templateParams(c *codebase.Class, b types.Bindings) []types.Union {
	params := make([]types.Union, len(c.Templates))
	for i, t := range c.Templates {
		bound, ok := b[types.TemplateKey(t.Name, t.DefinedIn)]
		if !ok || types.HasTemplates(bound) {
			bound = types.Substitute(types.NewUnion(t), types.Bindings{})
		}
		params[i] = bound
	}
	return params
}

func (fa *fileAnalyzer) propertyFetch(sc *scope, ctx *flow.Context, e *ast.PropertyFetch, quiet bool) types.Union {
	var recv types.Union
	if quiet {
		recv = fa.quietExpr(sc, ctx, e.Receiver)
	} else {
		recv = fa.expr(sc, ctx, e.Receiver)
	}
	key, keyed := ast.Key(e)
	if keyed {
		if t, ok := ctx.Get(key); ok && !t.PossiblyUndefined {
			return t
		}
	}

	nullable := false
	if quiet {
		nullable = recv.HasNull()
		recv = recv.WithoutNull()
	} else {
		recv, nullable = fa.nonNull(e, recv, e.NullSafe, "fetch property "+e.Property)
	}
	var out []types.Union
	for _, a := range recv.Atomics() {
		switch a := a.(type) {
		case types.Named:
			p, declaring, ok := fa.index.FindProperty(a.Name, e.Property)
			if ok {
				out = append(out, types.Substitute(p.Type, fa.index.Bindings(a, declaring)))
				continue
			}
			if fa.index.Known(a.Name) && !quiet {
				fa.report(issue.UndefinedPropertyFetch, e, issue.Symbol{Kind: issue.Property, Name: a.Name + "::" + e.Property}, "property %s::$%s is not defined", a.Name, e.Property)
			}
			out = append(out, types.MixedType())
		case types.Never:
		default:
			out = append(out, types.MixedType())
		}
	}
	t := types.MixedType()
	if len(out) > 0 {
		t = types.CombineAll(out...)
	}
	if nullable {
		t = t.WithNull()
	}
	if keyed {
		ctx.Narrow(key, t)
	}
	return t
}

func (fa *fileAnalyzer) dimFetch(sc *scope, ctx *flow.Context, e *ast.ArrayDimFetch, quiet bool) types.Union {
	var base types.Union
	if quiet {
		base = fa.quietExpr(sc, ctx, e.Var)
	} else {
		base = fa.expr(sc, ctx, e.Var)
	}
	if e.Dim == nil {
		fa.report(issue.UnrecognizedStatement, e, issue.Symbol{}, "cannot use [] for reading")
		return types.MixedType()
	}
	fa.expr(sc, ctx, e.Dim)
	key, keyed := ast.Key(e)
	if keyed {
		if t, ok := ctx.Get(key); ok && !t.PossiblyUndefined {
			return t
		}
	}
	if !quiet && base.HasNull() && !base.IsNull() {
		fa.report(issue.PossiblyNullReference, e, issue.Symbol{}, "cannot access an offset of possibly null value of type %s", base)
	}
	t := elementType(base, e.Dim, quiet)
	if keyed {
		ctx.Narrow(key, t)
	}
	return t
}

func (fa *fileAnalyzer) closure(sc *scope, ctx *flow.Context, e *ast.Closure) types.Union {
	inner := &scope{
		id:     fmt.Sprintf("%s/closure@%d", sc.id, e.Pos()),
		name:   "{closure}",
		class:  sc.class,
		static: sc.static || e.Static,
	}
	shape := fa.localShape(e.Params, e.ReturnType, e)
	if e.ReturnType != "" {
		inner.declared = shape.Return
	}
	captured := flow.New()
	for _, u := range e.Uses {
		key := "$" + u.Name
		var t types.Union
		if u.ByRef {
			t = fa.quietExpr(sc, ctx, &ast.Variable{Range: e.Range, Name: u.Name})
		} else {
			t = fa.variable(sc, ctx, &ast.Variable{Range: e.Range, Name: u.Name})
		}
		captured.Set(key, t)
	}
	ret := fa.body(inner, captured, e, shape, e.Body)
	if e.ReturnType == "" {
		shape.Return = types.Widen(ret)
	}
	return types.NewUnion(shape.Callable())
}

// localShape reads the signature of a function or closure that is not in
// the declaration index.
func (fa *fileAnalyzer) localShape(params []ast.Param, ret string, at ast.Positioner) signature.Shape {
	var shape signature.Shape
	for _, p := range params {
		t := fa.declaredType(p, p.Type)
		if t.IsZero() {
			t = types.MixedType()
		}
		if _, isNull := p.Default.(*ast.NullLit); isNull && !t.IsMixed() {
			t = t.WithNull()
		}
		shape.Params = append(shape.Params, signature.Param{
			Name:     p.Name,
			Type:     t,
			Optional: p.Default != nil,
			Variadic: p.Variadic,
			ByRef:    p.ByRef,
		})
	}
	shape.Return = fa.declaredType(at, ret)
	return shape
}

func (fa *fileAnalyzer) declaredType(at ast.Positioner, raw string) types.Union {
	if raw == "" {
		return types.Union{}
	}
	t, err := types.Parse(raw)
	if err != nil {
		fa.report(issue.InvalidDocblock, at, issue.Symbol{}, "%v", err)
		return types.MixedType()
	}
	return t
}
