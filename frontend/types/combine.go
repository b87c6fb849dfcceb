package types

import "slices"

// Combine returns the least union of a and b.
// The flags are or-ed: the result is possibly undefined if either side is.
func Combine(a, b Union) Union {
	return combine(a, b, false)
}

// CombineWidened is Combine, additionally replacing literals by their scalar
// supertype. Loops use it so that literal sets do not grow with every iteration.
func CombineWidened(a, b Union) Union {
	return combine(a, b, true)
}

func combine(a, b Union, widen bool) Union {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	atomics := append(slices.Clone(a.atomics), b.atomics...)
	u := Union{
		atomics:           normalise(atomics),
		PossiblyUndefined: a.PossiblyUndefined || b.PossiblyUndefined,
		ByRef:             a.ByRef || b.ByRef,
	}
	if widen {
		return Widen(u)
	}
	return u
}

// CombineAll folds Combine over us. It returns the zero Union for no input.
func CombineAll(us ...Union) Union {
	var out Union
	for _, u := range us {
		out = Combine(out, u)
	}
	return out
}

// Widen replaces every literal in u by its scalar supertype.
func Widen(u Union) Union {
	return u.Map(widenAtomic)
}

func widenAtomic(a Atomic) Atomic {
	switch a := a.(type) {
	case LitInt:
		return Int{}
	case LitFloat:
		return Float{}
	case LitString:
		return String{}
	case LitBool:
		return Bool{}
	case Array:
		return Array{Key: Widen(a.Key), Value: Widen(a.Value)}
	case List:
		return List{Value: Widen(a.Value)}
	case Shape:
		entries := make([]ShapeEntry, len(a.Entries))
		for i, e := range a.Entries {
			e.Type = Widen(e.Type)
			entries[i] = e
		}
		return Shape{Entries: entries}
	}
	return a
}
