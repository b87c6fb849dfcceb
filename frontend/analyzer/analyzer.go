// Package analyzer is the reconciliation engine: it walks the statements and
// expressions of one file, threading a flow context through every scope,
// narrowing it at conditions and joining it at merge points, and reports the
// type violations it finds.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/codebase"
	"github.com/cottand/typeflow/frontend/flow"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/memo"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/cottand/typeflow/frontend/types"
	"github.com/cottand/typeflow/internal/log"
	"github.com/cottand/typeflow/util"
)

var logger = ast.NodeLogger(log.DefaultLogger).With("section", "analyzer")

// MaxLoopPasses bounds the discovery passes over a loop body. Loops whose
// entry state has not converged by then have their unstable variables
// widened to mixed.
const MaxLoopPasses = 8

// Options tunes an Analyzer.
type Options struct {
	// Memoize enables reusing method call results (memoizeMethodCallResults).
	Memoize bool
	// RequireVoidReturnType reports MissingReturnType for functions that
	// return nothing and declare no return type.
	RequireVoidReturnType bool
	// Severity decides how every issue is surfaced. nil reports everything
	// as an error.
	Severity issue.SeverityResolver
	// MemoSize bounds the memoization cache of each file.
	MemoSize int
}

// Analyzer holds what is shared by the analysis of every file of a project.
// It is safe for concurrent use once built: each AnalyzeFile call works on
// its own state.
type Analyzer struct {
	index     *codebase.Index
	functions *signature.Snapshot
	opts      Options
}

func New(index *codebase.Index, functions *signature.Snapshot, opts Options) *Analyzer {
	if opts.Severity == nil {
		opts.Severity = issue.Everything{}
	}
	return &Analyzer{index: index, functions: functions, opts: opts}
}

// Result is the outcome of analysing one file.
type Result struct {
	File string
	// Issues are ordered by position and carry their resolved severity.
	// Suppressed issues are left out.
	Issues []issue.Issue
	// Signatures holds the signatures inferred for the file's functions
	// ("name") and methods ("class::name").
	Signatures map[string]signature.Shape
	Memo       memo.Stats
}

// fileAnalyzer is the per-file state of an analysis.
type fileAnalyzer struct {
	*Analyzer
	file        *ast.File
	issues      *issue.Issues
	memo        *memo.Cache
	signatures  map[string]signature.Shape
	strictTypes bool
	// muted is positive while issues are discarded, during loop discovery passes
	muted int
}

// scope is a function, method, closure or file body.
type scope struct {
	// id identifies the scope in the memoization cache
	id    string
	name  string
	class *codebase.Class
	// static scopes have no $this
	static   bool
	declared types.Union
	returns  []types.Union
	tries    util.Stack[*tryFrame]
}

// tryFrame gathers the contexts from which a try body may have thrown, and
// those returning out of it, which still run its finally block.
type tryFrame struct {
	throws []*flow.Context
	leaves []*flow.Context
}

// AnalyzeFile analyses f, whose declarations must already be in the index.
// Internal invariant violations abort the analysis of f only and are
// reported as an InternalError issue.
func (a *Analyzer) AnalyzeFile(f *ast.File) (res Result) {
	fa := &fileAnalyzer{
		Analyzer:    a,
		file:        f,
		signatures:  map[string]signature.Shape{},
		strictTypes: strictTypes(f.Stmts),
	}
	if a.opts.Memoize {
		fa.memo = memo.New(a.opts.MemoSize)
	}
	logger.Info("analysing file", "file", f.Path, "stmts", len(f.Stmts))

	defer func() {
		if r := recover(); r != nil {
			internal, ok := r.(*issue.Internal)
			if !ok {
				internal = issue.Internalf(f, "%v", r)
			}
			logger.Error("internal error, file analysis aborted", "file", f.Path, "error", internal.Msg, "stack", string(internal.Stack()))
			fa.muted = 0
			fa.report(issue.InternalError, internal.Range, issue.Symbol{}, "%s", internal.Msg)
		}
		res = fa.result()
	}()

	fa.declarations(f.Stmts)
	top := &scope{id: "file:" + f.Path, name: f.Path, static: true}
	fa.stmts(top, flow.New(), f.Stmts)
	return
}

func (fa *fileAnalyzer) result() Result {
	res := Result{File: fa.file.Path, Signatures: fa.signatures, Memo: fa.memo.Stats()}
	for _, i := range fa.issues.List() {
		i.Severity = fa.opts.Severity.Resolve(i.Kind, i.File, i.Symbol)
		if i.Severity == issue.Suppress {
			continue
		}
		res.Issues = append(res.Issues, i)
	}
	logger.Debug("file analysed", "file", fa.file.Path, "issues", fa.issues, "memo", res.Memo)
	return res
}

func (fa *fileAnalyzer) report(kind issue.Kind, at ast.Positioner, sym issue.Symbol, format string, args ...any) {
	if fa.muted > 0 {
		return
	}
	i := issue.New(kind, at, fmt.Sprintf(format, args...), sym)
	i.File = fa.file.Path
	fa.issues = fa.issues.With(i)
}

// internalf aborts the analysis of the file.
func internalf(at ast.Positioner, format string, args ...any) {
	panic(issue.Internalf(at, format, args...))
}

// strictTypes reports whether the file opens with declare(strict_types=1).
func strictTypes(stmts []ast.Stmt) bool {
	for _, st := range stmts {
		d, ok := st.(*ast.Declare)
		if !ok {
			continue
		}
		for _, dir := range d.Directives {
			if lit, ok := dir.Value.(*ast.IntLit); ok && strings.EqualFold(dir.Name, "strict_types") {
				return lit.Value == 1
			}
		}
	}
	return false
}

// declarations analyses the bodies of the functions and methods the index
// holds for this file, conditional ones included, before its other statements run, so that their
// inferred signatures are known to the code calling them.
func (fa *fileAnalyzer) declarations(stmts []ast.Stmt) {
	for _, st := range stmts {
		switch st := st.(type) {
		case *ast.FunctionDecl:
			fn, ok := fa.index.Function(st.Name)
			if !ok || fn.Decl != st {
				continue
			}
			fa.function(fn)
		case *ast.ClassDecl:
			c, ok := fa.index.Class(st.Name)
			if !ok || c.Decl != st {
				continue
			}
			for _, m := range c.Methods {
				if m.Decl.Body != nil {
					fa.method(c, m)
				}
			}
		default:
			for _, body := range ast.Bodies(st) {
				fa.declarations(body)
			}
		}
	}
}

func (fa *fileAnalyzer) function(fn *codebase.Function) {
	sc := &scope{id: "function:" + strings.ToLower(fn.Name), name: fn.Name, static: true}
	if fn.DeclaredReturn {
		sc.declared = fn.Signature.Return
	}
	ret := fa.body(sc, flow.New(), fn.Decl, fn.Signature, fn.Decl.Body)
	fa.finish(sc, fn.Decl, fn.Name, issue.Symbol{Kind: issue.Function, Name: fn.Name}, fn.Signature, ret, fn.DeclaredReturn)
}

func (fa *fileAnalyzer) method(c *codebase.Class, m *codebase.Method) {
	sc := &scope{id: "method:" + m.Key(), name: c.Name + "::" + m.Name, class: c, static: m.Static}
	if m.DeclaredReturn {
		sc.declared = m.Signature.Return
	}
	ret := fa.body(sc, flow.New(), m.Decl, m.Signature, m.Decl.Body)
	fa.finish(sc, m.Decl, sc.name, issue.Symbol{Kind: issue.Method, Name: sc.name}, m.Signature, ret, m.DeclaredReturn)
}

// body analyses a callable body with its parameters bound and returns the
// combination of everything it may return.
// ctx holds the variables captured from an enclosing scope, if any.
func (fa *fileAnalyzer) body(sc *scope, ctx *flow.Context, at ast.Positioner, shape signature.Shape, body []ast.Stmt) types.Union {
	for _, p := range shape.Params {
		t := p.Type
		if p.Variadic {
			t = types.NewUnion(types.List{Value: t})
		}
		ctx.Set("$"+p.Name, t)
	}
	logger.Debug("analysing body", "scope", sc.name, "at", ast.Slog(at))
	fa.stmts(sc, ctx, body)

	if ctx.Reachable() {
		// falling off the end returns null
		if len(sc.returns) == 0 {
			sc.returns = append(sc.returns, types.VoidType())
		} else {
			sc.returns = append(sc.returns, types.NullType())
		}
		if !sc.declared.IsZero() && !acceptsImplicitReturn(sc.declared) {
			fa.report(issue.InvalidReturnType, at, issue.Symbol{}, "not all code paths of %s end in a return statement, declared %s", sc.name, sc.declared)
		}
	}
	ret := types.CombineAll(sc.returns...)
	if ret.IsZero() {
		ret = types.NeverType()
	}
	return ret.WithPossiblyUndefined(false)
}

func acceptsImplicitReturn(declared types.Union) bool {
	return declared.IsVoid() || declared.IsMixed() || declared.HasNull() || declared.IsNever()
}

// finish reports a missing return type and exports the inferred signature.
func (fa *fileAnalyzer) finish(sc *scope, at ast.Positioner, name string, sym issue.Symbol, shape signature.Shape, inferred types.Union, declared bool) {
	if !declared {
		switch {
		case !inferred.IsVoid():
			fa.report(issue.MissingReturnType, at, sym, "%s does not have a return type, expecting %s", name, types.Widen(inferred))
		case fa.opts.RequireVoidReturnType:
			fa.report(issue.MissingReturnType, at, sym, "%s does not have a return type, expecting void", name)
		}
		shape.Return = types.Widen(inferred)
	}
	fa.signatures[strings.ToLower(name)] = shape
	fa.index.ExportSignature(name, shape)
}
