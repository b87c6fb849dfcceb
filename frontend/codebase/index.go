// Package codebase is the declaration index: the classes, interfaces and
// functions a project declares, resolved ahead of flow analysis so that files
// can refer to each other's symbols.
package codebase

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/cottand/typeflow/frontend/types"
	"github.com/hashicorp/go-set/v3"
)

// Function is a user-declared function.
type Function struct {
	Name      string
	Signature signature.Shape
	Templates []types.Template
	// DeclaredReturn is false when the declaration carries no return type,
	// in which case Signature.Return is zero until an inferred one is exported.
	DeclaredReturn bool
	Pure           bool
	File           string
	Decl           *ast.FunctionDecl
}

// Method is a method declared on a class or interface.
type Method struct {
	Class          string
	Name           string
	Signature      signature.Shape
	Templates      []types.Template
	DeclaredReturn bool
	Static         bool
	Abstract       bool
	Pure           bool
	Decl           *ast.MethodDecl
}

// Key is the "class::method" name the method's inferred signature is exported under.
func (m *Method) Key() string {
	return strings.ToLower(m.Class + "::" + m.Name)
}

type Property struct {
	Class string
	Name  string
	Type  types.Union
}

// Class is a class or interface declaration.
type Class struct {
	Name         string
	Parent       string
	ParentParams []types.Union
	Interfaces   []string
	IsInterface  bool
	Abstract     bool
	Templates    []types.Template
	Invariant    []bool
	Methods      []*Method
	Properties   []*Property
	File         string
	Decl         *ast.ClassDecl
}

// Type is the named type of an instance of c, parameterised by its own templates.
func (c *Class) Type() types.Named {
	n := types.Named{Name: c.Name}
	for _, t := range c.Templates {
		n.Params = append(n.Params, types.NewUnion(t))
	}
	return n
}

func (c *Class) method(name string) (*Method, bool) {
	for _, m := range c.Methods {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return nil, false
}

func (c *Class) property(name string) (*Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Index holds every declaration of a project. Declarations are added during
// the discovery phase and only read afterwards; inferred signatures may be
// exported concurrently by the per-file workers.
type Index struct {
	classes   map[string]*Class
	functions map[string]*Function

	mu       sync.RWMutex
	inferred map[string]signature.Shape
	// pending holds the exports of the open round, nil outside rounds
	pending map[string]signature.Shape
}

var _ types.ClassGraph = (*Index)(nil)

func NewIndex() *Index {
	return &Index{
		classes:   map[string]*Class{},
		functions: map[string]*Function{},
		inferred:  map[string]signature.Shape{},
	}
}

func key(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "\\"))
}

// DeclareClass adds c, reporting false if a class-like of that name exists.
func (ix *Index) DeclareClass(c *Class) bool {
	k := key(c.Name)
	if _, exists := ix.classes[k]; exists {
		return false
	}
	ix.classes[k] = c
	return true
}

// DeclareFunction adds f, reporting false if a function of that name exists.
func (ix *Index) DeclareFunction(f *Function) bool {
	k := key(f.Name)
	if _, exists := ix.functions[k]; exists {
		return false
	}
	ix.functions[k] = f
	return true
}

func (ix *Index) Class(name string) (*Class, bool) {
	c, ok := ix.classes[key(name)]
	return c, ok
}

func (ix *Index) Function(name string) (*Function, bool) {
	f, ok := ix.functions[key(name)]
	return f, ok
}

// ClassNames lists every declared class-like, sorted.
func (ix *Index) ClassNames() []string {
	names := make([]string, 0, len(ix.classes))
	for _, c := range ix.classes {
		names = append(names, c.Name)
	}
	slices.Sort(names)
	return names
}

// FunctionNames lists every declared function in lower case, sorted.
func (ix *Index) FunctionNames() []string {
	return slices.Sorted(maps.Keys(ix.functions))
}

// supertypes visits class and every class-like it extends or implements,
// each at most once, stopping early when visit returns false.
func (ix *Index) supertypes(class string, visit func(*Class) bool) {
	seen := set.New[string](4)
	queue := []string{key(class)}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if !seen.Insert(k) {
			continue
		}
		c, ok := ix.classes[k]
		if !ok {
			continue
		}
		if !visit(c) {
			return
		}
		if c.Parent != "" {
			queue = append(queue, key(c.Parent))
		}
		for _, i := range c.Interfaces {
			queue = append(queue, key(i))
		}
	}
}

// Ancestors lists, in lower case, every class-like class extends or implements.
func (ix *Index) Ancestors(class string) *set.Set[string] {
	out := set.New[string](4)
	ix.supertypes(class, func(c *Class) bool {
		out.Insert(key(c.Name))
		return true
	})
	out.Remove(key(class))
	return out
}

func (ix *Index) Known(name string) bool {
	_, ok := ix.classes[key(name)]
	return ok
}

func (ix *Index) IsSubclassOf(child, parent string) bool {
	if key(child) == key(parent) {
		return true
	}
	return ix.Ancestors(child).Contains(key(parent))
}

func (ix *Index) IsInterface(name string) bool {
	c, ok := ix.classes[key(name)]
	return ok && c.IsInterface
}

func (ix *Index) TemplateVariance(class string, i int) types.Variance {
	c, ok := ix.classes[key(class)]
	if ok && i < len(c.Invariant) && c.Invariant[i] {
		return types.Invariant
	}
	return types.Covariant
}

// FindMethod looks name up on class, its parents and then its interfaces.
// The returned class is the one declaring the method.
func (ix *Index) FindMethod(class, name string) (*Method, *Class, bool) {
	var found *Method
	var declaring *Class
	ix.supertypes(class, func(c *Class) bool {
		if m, ok := c.method(name); ok && (found == nil || found.Abstract && !m.Abstract) {
			found, declaring = m, c
		}
		return found == nil || found.Abstract
	})
	return found, declaring, found != nil
}

// FindProperty looks name up on class and its parents.
func (ix *Index) FindProperty(class, name string) (*Property, *Class, bool) {
	var found *Property
	var declaring *Class
	ix.supertypes(class, func(c *Class) bool {
		if p, ok := c.property(name); ok {
			found, declaring = p, c
			return false
		}
		return true
	})
	return found, declaring, found != nil
}

// MethodNames lists the methods available on class, in lower case, for suggestions.
func (ix *Index) MethodNames(class string) []string {
	names := set.New[string](8)
	ix.supertypes(class, func(c *Class) bool {
		for _, m := range c.Methods {
			names.Insert(strings.ToLower(m.Name))
		}
		return true
	})
	return slices.Sorted(names.Items())
}

// Bindings maps the templates of declaring, an ancestor of receiver's class (or
// that class itself), to the type arguments receiver carries. Templates the
// receiver does not bind are left out so that Substitute falls back to their bounds.
func (ix *Index) Bindings(receiver types.Named, declaring *Class) types.Bindings {
	b := types.Bindings{}
	c, ok := ix.Class(receiver.Name)
	if !ok {
		return b
	}
	params := receiver.Params
	for seen := 0; c != nil && seen < 64; seen++ {
		for i, t := range c.Templates {
			if i < len(params) {
				b[types.TemplateKey(t.Name, t.DefinedIn)] = params[i]
			}
		}
		if declaring == nil || key(c.Name) == key(declaring.Name) || c.Parent == "" {
			return b
		}
		next, ok := ix.Class(c.Parent)
		if !ok {
			return b
		}
		parentParams := make([]types.Union, len(c.ParentParams))
		for i, p := range c.ParentParams {
			parentParams[i] = types.Substitute(p, b)
		}
		c, params = next, parentParams
	}
	return b
}

// ExportSignature publishes the inferred signature of a function ("name") or
// method ("class::name") for files analysed later. While a round is open the
// signature is only visible once the round ends.
func (ix *Index) ExportSignature(name string, shape signature.Shape) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.pending != nil {
		ix.pending[key(name)] = shape
		return
	}
	ix.inferred[key(name)] = shape
}

// BeginRound holds back exported signatures until EndRound, so that every
// file analysed during the round reads the same ones whatever the order the
// files run in.
func (ix *Index) BeginRound() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.pending = map[string]signature.Shape{}
}

// EndRound publishes the signatures exported since BeginRound and reports
// whether any of them is new or differs from the one it replaces.
func (ix *Index) EndRound() (changed bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for k, shape := range ix.pending {
		if old, ok := ix.inferred[k]; !ok || !old.Equal(shape) {
			changed = true
		}
		ix.inferred[k] = shape
	}
	ix.pending = nil
	return changed
}

// Inferred returns a previously exported signature.
func (ix *Index) Inferred(name string) (signature.Shape, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	s, ok := ix.inferred[key(name)]
	return s, ok
}

// InferredSignatures returns a copy of every exported signature.
func (ix *Index) InferredSignatures() map[string]signature.Shape {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return maps.Clone(ix.inferred)
}
