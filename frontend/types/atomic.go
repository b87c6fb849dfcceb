// Package types models the values a variable may hold at a program point as
// unions of atomic types, and implements the lattice operations over them:
// combination, containment, intersection and subtraction.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Atomic is one indivisible type alternative.
//
// The set of atomics is closed; see the kinds declared in this file.
type Atomic interface {
	fmt.Stringer
	// id is equal for two atomics iff they describe the same set of values
	id() string
}

type (
	Int    struct{}
	Float  struct{}
	String struct{}
	Bool   struct{}
	Null   struct{}
	Void   struct{}
	Never  struct{}
	Mixed  struct{}
	// Object is any class instance.
	Object struct{}
)

func (Int) String() string    { return "int" }
func (Float) String() string  { return "float" }
func (String) String() string { return "string" }
func (Bool) String() string   { return "bool" }
func (Null) String() string   { return "null" }
func (Void) String() string   { return "void" }
func (Never) String() string  { return "never" }
func (Mixed) String() string  { return "mixed" }
func (Object) String() string { return "object" }

func (a Int) id() string    { return a.String() }
func (a Float) id() string  { return a.String() }
func (a String) id() string { return a.String() }
func (a Bool) id() string   { return a.String() }
func (a Null) id() string   { return a.String() }
func (a Void) id() string   { return a.String() }
func (a Never) id() string  { return a.String() }
func (a Mixed) id() string  { return a.String() }
func (a Object) id() string { return a.String() }

// LitInt is an int pinned to one value.
type LitInt struct{ Value int64 }

// LitFloat is a float pinned to one value.
type LitFloat struct{ Value float64 }

// LitString is a string pinned to one value.
type LitString struct{ Value string }

// LitBool is `true` or `false`.
type LitBool struct{ Value bool }

func (a LitInt) String() string { return strconv.FormatInt(a.Value, 10) }
func (a LitFloat) String() string {
	s := strconv.FormatFloat(a.Value, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
func (a LitString) String() string { return "'" + strings.ReplaceAll(a.Value, "'", `\'`) + "'" }
func (a LitBool) String() string   { return strconv.FormatBool(a.Value) }

func (a LitInt) id() string    { return "int(" + a.String() + ")" }
func (a LitFloat) id() string  { return "float(" + a.String() + ")" }
func (a LitString) id() string { return "string(" + strconv.Quote(a.Value) + ")" }
func (a LitBool) id() string   { return a.String() }

// Named is a class-like type. Params binds the class's template parameters in
// declaration order, and Extra lists further class-likes the value must also
// satisfy (an intersection `A&B`).
type Named struct {
	Name   string
	Params []Union
	Extra  []Named
}

func (a Named) String() string {
	sb := &strings.Builder{}
	sb.WriteString(a.Name)
	if len(a.Params) > 0 {
		sb.WriteByte('<')
		for i, p := range a.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		sb.WriteByte('>')
	}
	for _, e := range a.Extra {
		sb.WriteByte('&')
		sb.WriteString(e.String())
	}
	return sb.String()
}

func (a Named) id() string {
	sb := &strings.Builder{}
	sb.WriteString(strings.ToLower(a.Name))
	if len(a.Params) > 0 {
		sb.WriteByte('<')
		for i, p := range a.Params {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(p.id())
		}
		sb.WriteByte('>')
	}
	for _, e := range a.Extra {
		sb.WriteByte('&')
		sb.WriteString(e.id())
	}
	return sb.String()
}

// Parts returns the named type and its intersection members.
func (a Named) Parts() []Named {
	head := a
	head.Extra = nil
	return append([]Named{head}, a.Extra...)
}

// CallableParam is a parameter of a callable signature type.
type CallableParam struct {
	Type     Union
	Optional bool
	ByRef    bool
}

// Callable is a callable-signature type. A zero Return means the callable's
// return type is unknown.
type Callable struct {
	Params   []CallableParam
	Variadic bool
	Return   Union
}

func (a Callable) String() string {
	if len(a.Params) == 0 && a.Return.IsZero() && !a.Variadic {
		return "callable"
	}
	sb := &strings.Builder{}
	sb.WriteString("callable(")
	for i, p := range a.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if a.Variadic && i == len(a.Params)-1 {
			sb.WriteString("...")
		}
		if p.ByRef {
			sb.WriteByte('&')
		}
		sb.WriteString(p.Type.String())
		if p.Optional {
			sb.WriteByte('=')
		}
	}
	sb.WriteByte(')')
	if !a.Return.IsZero() {
		sb.WriteString(": ")
		sb.WriteString(a.Return.String())
	}
	return sb.String()
}

func (a Callable) id() string { return a.String() }

// Array is a homogeneous key to value mapping.
type Array struct {
	Key   Union
	Value Union
}

func (a Array) String() string { return "array<" + a.Key.String() + ", " + a.Value.String() + ">" }
func (a Array) id() string     { return "array<" + a.Key.id() + "," + a.Value.id() + ">" }

// List is an array whose keys are 0..n-1 in order.
type List struct {
	Value Union
}

func (a List) String() string { return "list<" + a.Value.String() + ">" }
func (a List) id() string     { return "list<" + a.Value.id() + ">" }

// ShapeEntry is one literal key of a Shape. Keys that are integers are held in
// their decimal form with IntKey set.
type ShapeEntry struct {
	Key      string
	IntKey   bool
	Type     Union
	Optional bool
}

func (e ShapeEntry) keyString() string {
	if e.IntKey {
		return e.Key
	}
	if isPlainKey(e.Key) {
		return e.Key
	}
	return strconv.Quote(e.Key)
}

// Shape is an array with a fixed set of literal keys. The empty shape is the
// type of the empty array.
type Shape struct {
	Entries []ShapeEntry
}

func (a Shape) String() string {
	if len(a.Entries) == 0 {
		return "array<never, never>"
	}
	sb := &strings.Builder{}
	sb.WriteString("array{")
	for i, e := range a.Entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.keyString())
		if e.Optional {
			sb.WriteByte('?')
		}
		sb.WriteString(": ")
		sb.WriteString(e.Type.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func (a Shape) id() string {
	sb := &strings.Builder{}
	sb.WriteString("shape{")
	for _, e := range a.sortedEntries() {
		sb.WriteString(e.keyString())
		if e.Optional {
			sb.WriteByte('?')
		}
		sb.WriteByte(':')
		sb.WriteString(e.Type.id())
		sb.WriteByte(',')
	}
	sb.WriteByte('}')
	return sb.String()
}

// Entry looks up a literal key.
func (a Shape) Entry(key string) (ShapeEntry, bool) {
	for _, e := range a.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return ShapeEntry{}, false
}

// IsList reports whether the shape's keys are exactly 0..n-1, all required.
func (a Shape) IsList() bool {
	for i, e := range a.Entries {
		if !e.IntKey || e.Optional || e.Key != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

// Template is a generic placeholder bound to its declaring class or function.
type Template struct {
	Name      string
	DefinedIn string
	Bound     Union
}

func (a Template) String() string { return a.Name }
func (a Template) id() string     { return "tmpl(" + TemplateKey(a.Name, a.DefinedIn) + ")" }

// TemplateKey identifies a template parameter across declaring contexts.
func TemplateKey(name, definedIn string) string {
	return name + ":" + strings.ToLower(definedIn)
}

func isPlainKey(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
