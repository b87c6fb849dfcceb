package types

import (
	"slices"
	"strings"
)

// Intersect computes the type of a value known to satisfy both a and b.
// The result is never when no pair of atomics is compatible.
// Flags are taken from a.
func Intersect(a, b Union, g ClassGraph) Union {
	var out []Atomic
	for _, x := range a.atomics {
		for _, y := range b.atomics {
			if z, ok := intersectAtomic(x, y, g); ok {
				out = append(out, z)
			}
		}
	}
	return a.withAtomics(out)
}

// valueContainedBy is AtomicContainedBy without the int to float coercion
// allowed for arguments: an int value is never a float value.
func valueContainedBy(x, y Atomic, g ClassGraph) bool {
	switch x.(type) {
	case Int, LitInt:
		if _, isFloat := y.(Float); isFloat {
			return false
		}
	}
	return AtomicContainedBy(x, y, g)
}

func valueContainedByUnion(x Atomic, b Union, g ClassGraph) bool {
	return slices.ContainsFunc(b.atomics, func(y Atomic) bool { return valueContainedBy(x, y, g) })
}

func intersectAtomic(x, y Atomic, g ClassGraph) (Atomic, bool) {
	if valueContainedBy(x, y, g) {
		return x, true
	}
	if valueContainedBy(y, x, g) {
		return y, true
	}
	switch x := x.(type) {
	case Bool:
		if y, ok := y.(LitBool); ok {
			return y, true
		}
	case Named:
		if y, ok := y.(Named); ok && mayShareInstances(x, y, g) {
			x.Extra = append(slices.Clone(x.Extra), y.Parts()...)
			return x, true
		}
	case Template:
		if x.Bound.IsZero() {
			return Template{Name: x.Name, DefinedIn: x.DefinedIn, Bound: NewUnion(y)}, true
		}
		if bound := Intersect(x.Bound, NewUnion(y), g); !bound.IsNever() {
			return Template{Name: x.Name, DefinedIn: x.DefinedIn, Bound: bound}, true
		}
	case Array:
		switch y := y.(type) {
		case Array:
			k, v := Intersect(x.Key, y.Key, g), Intersect(x.Value, y.Value, g)
			if !k.IsNever() {
				return Array{Key: k, Value: v}, true
			}
		case List:
			if v := Intersect(y.Value, x.Value, g); IsContainedBy(IntType(), x.Key, g) {
				return List{Value: v}, true
			}
		}
	case List:
		if y, ok := y.(Array); ok {
			return intersectAtomic(y, x, g)
		}
	}
	if _, isTemplate := y.(Template); isTemplate {
		return intersectAtomic(y, x, g)
	}
	return nil, false
}

// mayShareInstances reports whether some object could be an instance of both x
// and y. Unrelated classes can only share instances through an interface, and
// classes we know nothing about are given the benefit of the doubt.
func mayShareInstances(x, y Named, g ClassGraph) bool {
	for _, p := range append(x.Parts(), y.Parts()...) {
		if !g.Known(p.Name) || g.IsInterface(p.Name) {
			return true
		}
	}
	return false
}

// Subtract removes from a every atomic wholly contained by b.
// Atomics only partially covered by b are kept as they are, except for the
// few cases where the remainder is expressible (bool minus true is false).
func Subtract(a, b Union, g ClassGraph) Union {
	var out []Atomic
	for _, x := range a.atomics {
		if valueContainedByUnion(x, b, g) {
			continue
		}
		if _, isBool := x.(Bool); isBool {
			hasTrue := valueContainedByUnion(LitBool{true}, b, g)
			hasFalse := valueContainedByUnion(LitBool{false}, b, g)
			switch {
			case hasTrue && !hasFalse:
				out = append(out, LitBool{false})
				continue
			case hasFalse && !hasTrue:
				out = append(out, LitBool{true})
				continue
			}
		}
		out = append(out, x)
	}
	return a.withAtomics(out)
}

// Overlaps reports whether some value is described by both a and b.
func Overlaps(a, b Union, g ClassGraph) bool {
	if a.IsMixed() || b.IsMixed() {
		return true
	}
	return !Intersect(a, b, g).IsNever()
}

// Truthy narrows u to the values that are truthy.
func Truthy(u Union) Union {
	var out []Atomic
	for _, a := range u.atomics {
		switch a := a.(type) {
		case Null, Void, Never:
			continue
		case LitBool:
			if !a.Value {
				continue
			}
		case Bool:
			out = append(out, LitBool{true})
			continue
		case LitInt:
			if a.Value == 0 {
				continue
			}
		case LitFloat:
			if a.Value == 0 {
				continue
			}
		case LitString:
			if a.Value == "" || a.Value == "0" {
				continue
			}
		case Shape:
			if len(a.Entries) == 0 {
				continue
			}
		}
		out = append(out, a)
	}
	return u.withAtomics(out)
}

// Falsy narrows u to the values that are falsy.
func Falsy(u Union) Union {
	var out []Atomic
	for _, a := range u.atomics {
		switch a := a.(type) {
		case Null, Void, Mixed, String, Template:
			out = append(out, a)
		case Bool:
			out = append(out, LitBool{false})
		case LitBool:
			if !a.Value {
				out = append(out, a)
			}
		case Int:
			out = append(out, LitInt{0})
		case LitInt:
			if a.Value == 0 {
				out = append(out, a)
			}
		case Float:
			out = append(out, LitFloat{0})
		case LitFloat:
			if a.Value == 0 {
				out = append(out, a)
			}
		case LitString:
			if a.Value == "" || a.Value == "0" {
				out = append(out, a)
			}
		case Array, List:
			out = append(out, Shape{})
		case Shape:
			if !slices.ContainsFunc(a.Entries, func(e ShapeEntry) bool { return !e.Optional }) {
				out = append(out, Shape{})
			}
		}
	}
	return u.withAtomics(out)
}

// AlwaysTruthy reports whether every value of u is truthy.
func AlwaysTruthy(u Union) bool {
	return !u.IsNever() && Falsy(u).IsNever()
}

// AlwaysFalsy reports whether every value of u is falsy.
func AlwaysFalsy(u Union) bool {
	return !u.IsNever() && Truthy(u).IsNever()
}

// ClassNames lists the class-likes u may be an instance of.
func ClassNames(u Union) []string {
	var names []string
	for _, a := range u.atomics {
		if n, ok := a.(Named); ok {
			for _, p := range n.Parts() {
				if !slices.ContainsFunc(names, func(s string) bool { return strings.EqualFold(s, p.Name) }) {
					names = append(names, p.Name)
				}
			}
		}
	}
	return names
}
