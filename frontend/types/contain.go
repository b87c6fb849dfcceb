package types

import "strings"

// Variance of a class template parameter.
type Variance int

const (
	Covariant Variance = iota
	Invariant
)

// ClassGraph answers questions about declared class-likes.
// Names are compared case-insensitively.
type ClassGraph interface {
	// Known reports whether a class, interface or enum called name is declared.
	Known(name string) bool
	// IsSubclassOf reports whether child is parent, or extends or implements it
	// (transitively).
	IsSubclassOf(child, parent string) bool
	IsInterface(name string) bool
	// TemplateVariance returns the variance of the i-th template parameter of class.
	TemplateVariance(class string, i int) Variance
}

// NoClasses is a ClassGraph with no declarations, where class-likes are only
// related to themselves.
type NoClasses struct{}

func (NoClasses) Known(string) bool                      { return false }
func (NoClasses) IsSubclassOf(child, parent string) bool { return strings.EqualFold(child, parent) }
func (NoClasses) IsInterface(string) bool                { return false }
func (NoClasses) TemplateVariance(string, int) Variance  { return Covariant }

// IsContainedBy decides whether every value described by a is also described by b.
// Flags are not considered.
func IsContainedBy(a, b Union, g ClassGraph) bool {
	if b.IsMixed() {
		return true
	}
	for _, x := range a.atomics {
		if !atomicContainedByUnion(x, b, g) {
			return false
		}
	}
	return true
}

func atomicContainedByUnion(x Atomic, b Union, g ClassGraph) bool {
	for _, y := range b.atomics {
		if AtomicContainedBy(x, y, g) {
			return true
		}
	}
	switch x.(type) {
	case Bool:
		// bool is never built alongside both its literals, but a caller may
		// still ask about true|false spelled out
		return atomicContainedByUnion(LitBool{true}, b, g) && atomicContainedByUnion(LitBool{false}, b, g)
	}
	return false
}

// AtomicContainedBy decides containment for a single pair of atomics.
func AtomicContainedBy(x, y Atomic, g ClassGraph) bool {
	if x.id() == y.id() {
		return true
	}
	switch y.(type) {
	case Mixed:
		return true
	}
	switch x := x.(type) {
	case Never:
		return true
	case Mixed:
		return false
	case Void:
		if _, isNull := y.(Null); isNull {
			return true
		}
	case LitInt:
		switch y.(type) {
		case Int, Float:
			return true
		}
	case Int:
		if _, isFloat := y.(Float); isFloat {
			return true
		}
	case LitFloat:
		if _, isFloat := y.(Float); isFloat {
			return true
		}
	case LitString:
		if _, isString := y.(String); isString {
			return true
		}
	case LitBool:
		if _, isBool := y.(Bool); isBool {
			return true
		}
	case Template:
		if y, ok := y.(Template); ok {
			return TemplateKey(x.Name, x.DefinedIn) == TemplateKey(y.Name, y.DefinedIn)
		}
		if x.Bound.IsZero() {
			return false
		}
		return IsContainedBy(x.Bound, NewUnion(y), g)
	case Named:
		switch y := y.(type) {
		case Object:
			return true
		case Named:
			return namedContainedBy(x, y, g)
		case Callable:
			return strings.EqualFold(x.Name, "Closure")
		}
	case Callable:
		switch y := y.(type) {
		case Callable:
			return callableContainedBy(x, y, g)
		case Named:
			return strings.EqualFold(y.Name, "Closure")
		}
	case Array, List, Shape:
		return arrayContainedBy(x, y, g)
	}
	if y, ok := y.(Template); ok && !y.Bound.IsZero() {
		return IsContainedBy(NewUnion(x), y.Bound, g)
	}
	return false
}

func namedContainedBy(x, y Named, g ClassGraph) bool {
	// every part of y must be satisfied by some part of x
	for _, want := range y.Parts() {
		satisfied := false
		for _, have := range x.Parts() {
			if singleNamedContainedBy(have, want, g) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

func singleNamedContainedBy(x, y Named, g ClassGraph) bool {
	if !g.IsSubclassOf(x.Name, y.Name) {
		return false
	}
	if !strings.EqualFold(x.Name, y.Name) || len(x.Params) == 0 || len(y.Params) == 0 {
		return true
	}
	for i, yp := range y.Params {
		if i >= len(x.Params) {
			break
		}
		xp := x.Params[i]
		if !IsContainedBy(xp, yp, g) {
			return false
		}
		if g.TemplateVariance(y.Name, i) == Invariant && !IsContainedBy(yp, xp, g) {
			return false
		}
	}
	return true
}

func callableContainedBy(x, y Callable, g ClassGraph) bool {
	if !y.Return.IsZero() {
		if x.Return.IsZero() || !IsContainedBy(x.Return, y.Return, g) {
			return false
		}
	}
	for i, yp := range y.Params {
		if i >= len(x.Params) {
			return x.Variadic || len(x.Params) == 0
		}
		// parameters are contravariant
		if !IsContainedBy(yp.Type, x.Params[i].Type, g) {
			return false
		}
	}
	return true
}

func arrayContainedBy(x, y Atomic, g ClassGraph) bool {
	switch y := y.(type) {
	case Array:
		return IsContainedBy(arrayKey(x), y.Key, g) && IsContainedBy(arrayValue(x), y.Value, g)
	case List:
		switch x := x.(type) {
		case List:
			return IsContainedBy(x.Value, y.Value, g)
		case Shape:
			return x.IsList() && IsContainedBy(arrayValue(x), y.Value, g)
		}
		return false
	case Shape:
		xs, ok := x.(Shape)
		if !ok {
			return false
		}
		for _, e := range xs.Entries {
			if _, ok := y.Entry(e.Key); !ok {
				return false
			}
		}
		for _, want := range y.Entries {
			have, ok := xs.Entry(want.Key)
			if !ok {
				if !want.Optional {
					return false
				}
				continue
			}
			if have.Optional && !want.Optional {
				return false
			}
			if !IsContainedBy(have.Type, want.Type, g) {
				return false
			}
		}
		return true
	}
	return false
}
