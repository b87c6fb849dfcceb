// Package ast holds the already-parsed statement and expression trees the analyzer walks.
//
// The set of node kinds is closed: Expr and Stmt carry unexported marker methods,
// so only this package can add new kinds, and every consumer switches over the
// kinds declared here.
package ast

// Node is the base interface for all tree nodes.
type Node interface {
	Positioner
}

// Expr is the interface for all expression nodes.
type Expr interface {
	Node
	exprNode() // Marker method to distinguish expressions
}

// Stmt is the interface for all statement nodes.
type Stmt interface {
	Node
	stmtNode() // Marker method to distinguish statements
}

// File is the root of one source file's tree.
type File struct {
	Range
	Path  string
	Stmts []Stmt
}

// Param is a parameter of a function, method or closure.
// Type is a type string (as found in a signature or docblock), empty when undeclared.
type Param struct {
	Range
	Name     string
	Type     string
	Default  Expr
	ByRef    bool
	Variadic bool
}

// TemplateParam declares a generic parameter on a class, function or method.
type TemplateParam struct {
	Name      string
	Bound     string
	Invariant bool
}

// Arg is one argument of a call.
type Arg struct {
	Value  Expr
	Unpack bool
}

// Pos and End are promoted from Value so that an Arg can be reported on directly.
func (a Arg) Pos() int { return a.Value.Pos() }
func (a Arg) End() int { return a.Value.End() }
