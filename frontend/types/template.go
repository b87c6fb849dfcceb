package types

import "strings"

// Bindings maps template keys (see TemplateKey) to the types they stand for.
type Bindings map[string]Union

// Substitute replaces every template in u that has a binding. Templates without
// a binding are replaced by their bound (or mixed), so that no placeholder leaks
// out of its declaring context.
func Substitute(u Union, b Bindings) Union {
	if u.IsZero() {
		return u
	}
	var out []Atomic
	for _, a := range u.atomics {
		if t, ok := a.(Template); ok {
			out = append(out, substituteTemplate(t, b).atomics...)
			continue
		}
		out = append(out, substituteAtomic(a, b))
	}
	return u.withAtomics(out)
}

func substituteTemplate(t Template, b Bindings) Union {
	if bound, ok := b[TemplateKey(t.Name, t.DefinedIn)]; ok {
		return bound
	}
	if t.Bound.IsZero() {
		return MixedType()
	}
	return Substitute(t.Bound, b)
}

func substituteAtomic(a Atomic, b Bindings) Atomic {
	switch a := a.(type) {
	case Named:
		params := make([]Union, len(a.Params))
		for i, p := range a.Params {
			params[i] = Substitute(p, b)
		}
		a.Params = params
		return a
	case Array:
		return Array{Key: Substitute(a.Key, b), Value: Substitute(a.Value, b)}
	case List:
		return List{Value: Substitute(a.Value, b)}
	case Shape:
		entries := make([]ShapeEntry, len(a.Entries))
		for i, e := range a.Entries {
			e.Type = Substitute(e.Type, b)
			entries[i] = e
		}
		return Shape{Entries: entries}
	case Callable:
		params := make([]CallableParam, len(a.Params))
		for i, p := range a.Params {
			p.Type = Substitute(p.Type, b)
			params[i] = p
		}
		return Callable{Params: params, Variadic: a.Variadic, Return: Substitute(a.Return, b)}
	}
	return a
}

// InferTemplates binds the templates appearing in param from the argument type
// arg, combining with any earlier binding of the same template.
func InferTemplates(param, arg Union, b Bindings) {
	if param.IsZero() || arg.IsZero() {
		return
	}
	if t, ok := param.single(); ok {
		if t, ok := t.(Template); ok {
			key := TemplateKey(t.Name, t.DefinedIn)
			bound := arg.WithPossiblyUndefined(false).WithByRef(false)
			if prev, ok := b[key]; ok {
				bound = Combine(prev, bound)
			}
			b[key] = bound
			return
		}
	}
	for _, p := range param.atomics {
		switch p := p.(type) {
		case Array:
			for _, a := range arg.atomics {
				switch a.(type) {
				case Array, List, Shape:
					InferTemplates(p.Key, arrayKey(a), b)
					InferTemplates(p.Value, arrayValue(a), b)
				}
			}
		case List:
			for _, a := range arg.atomics {
				switch a.(type) {
				case List, Shape:
					InferTemplates(p.Value, arrayValue(a), b)
				}
			}
		case Named:
			for _, a := range arg.atomics {
				if a, ok := a.(Named); ok && len(a.Params) == len(p.Params) && strings.EqualFold(a.Name, p.Name) {
					for i := range p.Params {
						InferTemplates(p.Params[i], a.Params[i], b)
					}
				}
			}
		case Callable:
			for _, a := range arg.atomics {
				if a, ok := a.(Callable); ok {
					InferTemplates(p.Return, a.Return, b)
				}
			}
		}
	}
}

// HasTemplates reports whether u mentions any template placeholder.
func HasTemplates(u Union) bool {
	for _, a := range u.atomics {
		switch a := a.(type) {
		case Template:
			return true
		case Named:
			for _, p := range a.Params {
				if HasTemplates(p) {
					return true
				}
			}
		case Array:
			if HasTemplates(a.Key) || HasTemplates(a.Value) {
				return true
			}
		case List:
			if HasTemplates(a.Value) {
				return true
			}
		case Shape:
			for _, e := range a.Entries {
				if HasTemplates(e.Type) {
					return true
				}
			}
		case Callable:
			if HasTemplates(a.Return) {
				return true
			}
			for _, p := range a.Params {
				if HasTemplates(p.Type) {
					return true
				}
			}
		}
	}
	return false
}
