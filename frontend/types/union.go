package types

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"
)

// Union is the set of atomic alternatives a value may hold.
//
// A Union built through NewUnion is never empty: "no possible value" is the
// single atomic Never. Order of atomics only matters for display.
// The zero Union is a marker for "absent" (for instance an undeclared return
// type) and must not be used as a type.
type Union struct {
	atomics []Atomic
	// PossiblyUndefined is set when the variable holding the value may not
	// have been assigned on some incoming path.
	PossiblyUndefined bool
	// ByRef is set when the variable aliases another storage location.
	ByRef bool
}

// NewUnion normalises atomics into a Union: duplicates collapse, literals are
// absorbed by a present scalar supertype, true|false becomes bool and array-like
// atomics merge into one.
func NewUnion(atomics ...Atomic) Union {
	return Union{atomics: normalise(atomics)}
}

func MixedType() Union  { return NewUnion(Mixed{}) }
func NeverType() Union  { return NewUnion(Never{}) }
func NullType() Union   { return NewUnion(Null{}) }
func VoidType() Union   { return NewUnion(Void{}) }
func BoolType() Union   { return NewUnion(Bool{}) }
func IntType() Union    { return NewUnion(Int{}) }
func FloatType() Union  { return NewUnion(Float{}) }
func StringType() Union { return NewUnion(String{}) }

// Atomics returns the alternatives of u. The slice must not be modified.
func (u Union) Atomics() []Atomic { return u.atomics }

// IsZero reports whether u is the zero Union.
func (u Union) IsZero() bool { return len(u.atomics) == 0 }

func (u Union) single() (Atomic, bool) {
	if len(u.atomics) != 1 {
		return nil, false
	}
	return u.atomics[0], true
}

func (u Union) IsNever() bool {
	a, ok := u.single()
	_, isNever := a.(Never)
	return ok && isNever
}

func (u Union) IsMixed() bool {
	a, ok := u.single()
	_, isMixed := a.(Mixed)
	return ok && isMixed
}

func (u Union) IsVoid() bool {
	a, ok := u.single()
	_, isVoid := a.(Void)
	return ok && isVoid
}

// IsNull reports whether null is the only possible value.
func (u Union) IsNull() bool {
	return len(u.atomics) > 0 && !slices.ContainsFunc(u.atomics, func(a Atomic) bool {
		switch a.(type) {
		case Null, Void:
			return false
		}
		return true
	})
}

// HasNull reports whether null is one of the possible values.
func (u Union) HasNull() bool {
	return u.Has(func(a Atomic) bool {
		switch a.(type) {
		case Null, Void:
			return true
		}
		return false
	})
}

// Has reports whether any atomic of u satisfies pred.
func (u Union) Has(pred func(Atomic) bool) bool {
	return slices.ContainsFunc(u.atomics, pred)
}

// Filter keeps the atomics satisfying keep. A Union left empty becomes never.
func (u Union) Filter(keep func(Atomic) bool) Union {
	var kept []Atomic
	for _, a := range u.atomics {
		if keep(a) {
			kept = append(kept, a)
		}
	}
	return u.withAtomics(kept)
}

// Map replaces every atomic of u with f's result and renormalises.
func (u Union) Map(f func(Atomic) Atomic) Union {
	mapped := make([]Atomic, len(u.atomics))
	for i, a := range u.atomics {
		mapped[i] = f(a)
	}
	return u.withAtomics(mapped)
}

// WithoutNull drops null (and void) from u.
func (u Union) WithoutNull() Union {
	return u.Filter(func(a Atomic) bool {
		switch a.(type) {
		case Null, Void:
			return false
		}
		return true
	})
}

// WithNull adds null to u.
func (u Union) WithNull() Union {
	return u.withAtomics(append(slices.Clone(u.atomics), Null{}))
}

func (u Union) WithPossiblyUndefined(b bool) Union {
	u.PossiblyUndefined = b
	return u
}

func (u Union) WithByRef(b bool) Union {
	u.ByRef = b
	return u
}

func (u Union) withAtomics(atomics []Atomic) Union {
	return Union{atomics: normalise(atomics), PossiblyUndefined: u.PossiblyUndefined, ByRef: u.ByRef}
}

func (u Union) String() string {
	if u.IsZero() {
		return "<none>"
	}
	parts := make([]string, len(u.atomics))
	for i, a := range u.atomics {
		parts[i] = a.String()
	}
	return strings.Join(parts, "|")
}

func (u Union) LogValue() slog.Value {
	return slog.StringValue(u.String())
}

func (u Union) id() string {
	ids := make([]string, len(u.atomics))
	for i, a := range u.atomics {
		ids[i] = a.id()
	}
	slices.Sort(ids)
	return strings.Join(ids, "|")
}

// SameType reports whether u and o describe the same values, ignoring flags.
func (u Union) SameType(o Union) bool {
	if len(u.atomics) != len(o.atomics) {
		return false
	}
	return u.id() == o.id()
}

// Equal reports whether u and o describe the same values and carry the same flags.
func (u Union) Equal(o Union) bool {
	return u.PossiblyUndefined == o.PossiblyUndefined && u.ByRef == o.ByRef && u.SameType(o)
}

func (a Shape) sortedEntries() []ShapeEntry {
	sorted := slices.Clone(a.Entries)
	slices.SortFunc(sorted, func(x, y ShapeEntry) int { return cmp.Compare(x.Key, y.Key) })
	return sorted
}

func normalise(atomics []Atomic) []Atomic {
	if len(atomics) == 0 {
		return []Atomic{Never{}}
	}
	var (
		out         []Atomic
		seen        = make(map[string]bool, len(atomics))
		arrays      []Atomic
		arrayAt     = -1
		hasInt      bool
		hasFloat    bool
		hasString   bool
		hasBool     bool
		hasTrue     bool
		hasFalse    bool
		firstBoolAt = -1
	)
	for _, a := range atomics {
		switch a := a.(type) {
		case Mixed:
			return []Atomic{Mixed{}}
		case Array, List, Shape:
			if arrayAt < 0 {
				arrayAt = len(out)
				out = append(out, nil)
			}
			arrays = append(arrays, a)
			continue
		case Int:
			hasInt = true
		case Float:
			hasFloat = true
		case String:
			hasString = true
		case Bool:
			hasBool = true
		case LitBool:
			if a.Value {
				hasTrue = true
			} else {
				hasFalse = true
			}
		}
		if id := a.id(); !seen[id] {
			seen[id] = true
			if firstBoolAt < 0 {
				switch a.(type) {
				case Bool, LitBool:
					firstBoolAt = len(out)
				}
			}
			out = append(out, a)
		}
	}
	if arrayAt >= 0 {
		out[arrayAt] = mergeArrays(arrays)
	}
	if hasTrue && hasFalse && !hasBool {
		out[firstBoolAt] = Bool{}
		hasBool = true
	}
	kept := make([]Atomic, 0, len(out))
	for _, a := range out {
		switch a.(type) {
		case LitInt:
			if hasInt {
				continue
			}
		case LitFloat:
			if hasFloat {
				continue
			}
		case LitString:
			if hasString {
				continue
			}
		case LitBool:
			if hasBool {
				continue
			}
		}
		kept = append(kept, a)
	}
	return dedupe(kept)
}

func dedupe(atomics []Atomic) []Atomic {
	seen := make(map[string]bool, len(atomics))
	out := atomics[:0]
	for _, a := range atomics {
		if id := a.id(); !seen[id] {
			seen[id] = true
			out = append(out, a)
		}
	}
	if len(out) > 1 {
		withoutNever := out[:0]
		for _, a := range out {
			if _, isNever := a.(Never); !isNever {
				withoutNever = append(withoutNever, a)
			}
		}
		out = withoutNever
	}
	return out
}

// mergeArrays collapses several array-like atomics into the least one containing all of them.
func mergeArrays(arrays []Atomic) Atomic {
	if len(arrays) == 1 {
		return arrays[0]
	}
	allShapes, allLists := true, true
	for _, a := range arrays {
		switch a := a.(type) {
		case Shape:
			if !a.IsList() {
				allLists = false
			}
		case List:
			allShapes = false
		default:
			allShapes, allLists = false, false
		}
	}
	switch {
	case allShapes:
		return mergeShapes(arrays)
	case allLists:
		var values []Atomic
		for _, a := range arrays {
			values = append(values, arrayValue(a).atomics...)
		}
		return List{Value: NewUnion(values...)}
	}
	var keys, values []Atomic
	for _, a := range arrays {
		keys = append(keys, arrayKey(a).atomics...)
		values = append(values, arrayValue(a).atomics...)
	}
	return Array{Key: NewUnion(keys...), Value: NewUnion(values...)}
}

func mergeShapes(arrays []Atomic) Shape {
	type merged struct {
		entry ShapeEntry
		types []Atomic
		count int
	}
	var order []string
	byKey := map[string]*merged{}
	for _, a := range arrays {
		for _, e := range a.(Shape).Entries {
			m, ok := byKey[e.Key]
			if !ok {
				m = &merged{entry: e}
				byKey[e.Key] = m
				order = append(order, e.Key)
			}
			m.types = append(m.types, e.Type.atomics...)
			m.entry.Optional = m.entry.Optional || e.Optional
			m.count++
		}
	}
	out := Shape{Entries: make([]ShapeEntry, 0, len(order))}
	for _, k := range order {
		m := byKey[k]
		e := m.entry
		e.Type = NewUnion(m.types...)
		e.Optional = e.Optional || m.count < len(arrays)
		out.Entries = append(out.Entries, e)
	}
	return out
}

// arrayKey is the key type of an array-like atomic.
func arrayKey(a Atomic) Union {
	switch a := a.(type) {
	case Array:
		return a.Key
	case List:
		return IntType()
	case Shape:
		keys := make([]Atomic, 0, len(a.Entries))
		for _, e := range a.Entries {
			keys = append(keys, e.keyAtomic())
		}
		return NewUnion(keys...)
	}
	return MixedType()
}

// arrayValue is the value type of an array-like atomic.
func arrayValue(a Atomic) Union {
	switch a := a.(type) {
	case Array:
		return a.Value
	case List:
		return a.Value
	case Shape:
		values := make([]Atomic, 0, len(a.Entries))
		for _, e := range a.Entries {
			values = append(values, e.Type.atomics...)
		}
		return NewUnion(values...)
	}
	return MixedType()
}

// IterationTypes returns the key and value types produced when iterating over u.
func IterationTypes(u Union) (key, value Union) {
	var keys, values []Atomic
	for _, a := range u.atomics {
		switch a.(type) {
		case Array, List, Shape:
			keys = append(keys, arrayKey(a).atomics...)
			values = append(values, arrayValue(a).atomics...)
		default:
			keys = append(keys, Mixed{})
			values = append(values, Mixed{})
		}
	}
	return NewUnion(keys...), NewUnion(values...)
}

func (e ShapeEntry) keyAtomic() Atomic {
	if e.IntKey {
		var n int64
		for _, c := range e.Key {
			if c == '-' {
				continue
			}
			n = n*10 + int64(c-'0')
		}
		if strings.HasPrefix(e.Key, "-") {
			n = -n
		}
		return LitInt{Value: n}
	}
	return LitString{Value: e.Key}
}

// WithIterationValue is u after a by-reference iteration may have stored
// values of type written into its elements.
func WithIterationValue(u, written Union) Union {
	return u.Map(func(a Atomic) Atomic {
		switch a := a.(type) {
		case Array:
			return Array{Key: a.Key, Value: Combine(a.Value, written)}
		case List:
			return List{Value: Combine(a.Value, written)}
		case Shape:
			entries := make([]ShapeEntry, len(a.Entries))
			for i, e := range a.Entries {
				e.Type = Combine(e.Type, written)
				entries[i] = e
			}
			return Shape{Entries: entries}
		}
		return a
	})
}
