// Package signature holds the built-in callable signature table and resolves
// callable shapes for a target language version.
//
// The table is a base set of signatures plus per-version delta records
// (added, removed, changed). Deltas are folded once, in ascending version
// order, into one immutable snapshot per version boundary.
package signature

import (
	"slices"
	"strings"

	"github.com/cottand/typeflow/frontend/types"
)

// Param is one parameter of a callable Shape.
type Param struct {
	Name     string
	Type     types.Union
	Optional bool
	Variadic bool
	ByRef    bool
}

func (p Param) equal(o Param) bool {
	return p.Name == o.Name && p.Optional == o.Optional && p.Variadic == o.Variadic &&
		p.ByRef == o.ByRef && p.Type.Equal(o.Type)
}

// Shape is the resolved parameter and return shape of a callable.
type Shape struct {
	Return types.Union
	Params []Param
}

// Equal reports whether two shapes describe the same signature.
func (s Shape) Equal(o Shape) bool {
	return s.Return.Equal(o.Return) && slices.EqualFunc(s.Params, o.Params, Param.equal)
}

// Required is the number of arguments a call must pass.
func (s Shape) Required() int {
	n := 0
	for _, p := range s.Params {
		if p.Optional || p.Variadic {
			break
		}
		n++
	}
	return n
}

// Variadic reports whether the last parameter accepts any number of arguments.
func (s Shape) Variadic() bool {
	return len(s.Params) > 0 && s.Params[len(s.Params)-1].Variadic
}

// Param returns the parameter receiving argument i, taking variadics into account.
func (s Shape) Param(i int) (Param, bool) {
	if i < len(s.Params) {
		return s.Params[i], true
	}
	if s.Variadic() {
		return s.Params[len(s.Params)-1], true
	}
	return Param{}, false
}

// Callable is the shape as a callable type, for closures and first-class callables.
func (s Shape) Callable() types.Callable {
	c := types.Callable{Return: s.Return, Variadic: s.Variadic()}
	for _, p := range s.Params {
		c.Params = append(c.Params, types.CallableParam{Type: p.Type, Optional: p.Optional || p.Variadic, ByRef: p.ByRef})
	}
	return c
}

func (s Shape) String() string {
	sb := &strings.Builder{}
	sb.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Type.String())
		sb.WriteByte(' ')
		if p.ByRef {
			sb.WriteByte('&')
		}
		if p.Variadic {
			sb.WriteString("...")
		}
		sb.WriteByte('$')
		sb.WriteString(p.Name)
		if p.Optional {
			sb.WriteString(" = ...")
		}
	}
	sb.WriteString("): ")
	sb.WriteString(s.Return.String())
	return sb.String()
}
