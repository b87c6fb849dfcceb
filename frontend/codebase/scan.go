package codebase

import (
	"fmt"
	"maps"
	"strings"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/cottand/typeflow/frontend/types"
)

// Scan adds the declarations of f to the index, including those nested in
// conditional and loop bodies but not those in function bodies. A
// conditional declaration whose name is taken is skipped without a
// DuplicateDeclaration, as only one of the alternatives runs.
// Malformed type strings are reported as InvalidDocblock and read as mixed.
func (ix *Index) Scan(f *ast.File) *issue.Issues {
	s := &scanner{ix: ix, file: f.Path}
	s.stmts(f.Stmts)
	return s.issues
}

type scanner struct {
	ix     *Index
	file   string
	issues *issue.Issues
	// conditional counts the enclosing bodies that may not run
	conditional int
}

func (s *scanner) report(kind issue.Kind, at ast.Positioner, sym issue.Symbol, format string, args ...any) {
	i := issue.New(kind, at, fmt.Sprintf(format, args...), sym)
	i.File = s.file
	s.issues = s.issues.With(i)
}

func (s *scanner) stmts(stmts []ast.Stmt) {
	for _, st := range stmts {
		switch st := st.(type) {
		case *ast.FunctionDecl:
			s.function(st)
		case *ast.ClassDecl:
			s.class(st)
		case *ast.Block, *ast.Declare:
			for _, body := range ast.Bodies(st) {
				s.stmts(body)
			}
		default:
			s.conditional++
			for _, body := range ast.Bodies(st) {
				s.stmts(body)
			}
			s.conditional--
		}
	}
}

// typeOf parses a declared type, resolving self/static to the enclosing class.
func (s *scanner) typeOf(at ast.Positioner, raw string, templates map[string]types.Template, self *Class) types.Union {
	if raw == "" {
		return types.Union{}
	}
	u, err := types.ParseWithTemplates(raw, templates)
	if err != nil {
		s.report(issue.InvalidDocblock, at, issue.Symbol{}, "%v", err)
		return types.MixedType()
	}
	if self == nil {
		return u
	}
	return u.Map(func(a types.Atomic) types.Atomic {
		if n, ok := a.(types.Named); ok && len(n.Params) == 0 && len(n.Extra) == 0 {
			switch strings.ToLower(n.Name) {
			case "self", "static", "$this":
				return self.Type()
			}
		}
		return a
	})
}

func (s *scanner) templates(at ast.Positioner, params []ast.TemplateParam, definedIn string, scope map[string]types.Template) []types.Template {
	var out []types.Template
	for _, p := range params {
		t := types.Template{Name: p.Name, DefinedIn: definedIn}
		if p.Bound != "" {
			t.Bound = s.typeOf(at, p.Bound, scope, nil)
		}
		scope[p.Name] = t
		out = append(out, t)
	}
	return out
}

func (s *scanner) shape(params []ast.Param, ret string, at ast.Positioner, scope map[string]types.Template, self *Class) signature.Shape {
	var shape signature.Shape
	for _, p := range params {
		t := s.typeOf(p, p.Type, scope, self)
		if t.IsZero() {
			t = types.MixedType()
		}
		if p.Default != nil {
			if _, isNull := p.Default.(*ast.NullLit); isNull && !t.IsMixed() {
				t = t.WithNull()
			}
		}
		shape.Params = append(shape.Params, signature.Param{
			Name:     p.Name,
			Type:     t,
			Optional: p.Default != nil,
			Variadic: p.Variadic,
			ByRef:    p.ByRef,
		})
	}
	shape.Return = s.typeOf(at, ret, scope, self)
	return shape
}

func (s *scanner) function(d *ast.FunctionDecl) {
	scope := map[string]types.Template{}
	f := &Function{
		Name:           d.Name,
		Templates:      s.templates(d, d.Templates, d.Name, scope),
		DeclaredReturn: d.ReturnType != "",
		Pure:           d.Pure,
		File:           s.file,
		Decl:           d,
	}
	f.Signature = s.shape(d.Params, d.ReturnType, d, scope, nil)
	if !s.ix.DeclareFunction(f) && s.conditional == 0 {
		s.report(issue.DuplicateDeclaration, d, issue.Symbol{Kind: issue.Function, Name: d.Name}, "function %s is already declared", d.Name)
	}
}

func (s *scanner) class(d *ast.ClassDecl) {
	c := &Class{
		Name:        d.Name,
		Parent:      d.Parent,
		Interfaces:  d.Interfaces,
		IsInterface: d.IsInterface,
		Abstract:    d.Abstract,
		File:        s.file,
		Decl:        d,
	}
	scope := map[string]types.Template{}
	c.Templates = s.templates(d, d.Templates, d.Name, scope)
	for _, t := range d.Templates {
		c.Invariant = append(c.Invariant, t.Invariant)
	}
	for _, p := range d.ParentParams {
		c.ParentParams = append(c.ParentParams, s.typeOf(d, p, scope, c))
	}
	for _, p := range d.Properties {
		t := s.typeOf(p, p.Type, scope, c)
		if t.IsZero() {
			t = types.MixedType()
		}
		c.Properties = append(c.Properties, &Property{Class: d.Name, Name: p.Name, Type: t})
	}
	for i := range d.Methods {
		md := &d.Methods[i]
		methodScope := maps.Clone(scope)
		m := &Method{
			Class:          d.Name,
			Name:           md.Name,
			Templates:      s.templates(md, md.Templates, d.Name+"::"+md.Name, methodScope),
			DeclaredReturn: md.ReturnType != "",
			Static:         md.Static,
			Abstract:       md.Abstract || md.Body == nil,
			Pure:           md.Pure,
			Decl:           md,
		}
		m.Signature = s.shape(md.Params, md.ReturnType, md, methodScope, c)
		c.Methods = append(c.Methods, m)
	}
	if !s.ix.DeclareClass(c) && s.conditional == 0 {
		s.report(issue.DuplicateDeclaration, d, issue.Symbol{Kind: issue.Class, Name: d.Name}, "class %s is already declared", d.Name)
	}
}
