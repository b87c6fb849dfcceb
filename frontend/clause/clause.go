// Package clause is the condition algebra: boolean expressions become sets of
// clauses in disjunctive normal form, which are negated, combined and applied
// to flow contexts to narrow the types of the variables they test.
package clause

import (
	"cmp"
	"slices"
	"strings"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/types"
)

// MaxRows bounds the number of clauses in a Set. Operations that would exceed
// it yield Unknown instead.
const MaxRows = 256

// Kind is the kind of test a Predicate performs on its subject.
type Kind int

const (
	// Truthy holds when the subject converts to true.
	Truthy Kind = iota
	// IsType holds when the subject's value is described by Type.
	IsType
	// IsInstance holds when the subject is an instance of Class.
	IsInstance
	// Isset holds when the subject is defined and not null.
	Isset
	// Opaque is a test the algebra cannot see into. It never narrows.
	Opaque
)

// Predicate is one atomic, possibly negated, test of a subject. The subject is
// a shape key as built by ast.Key, or the source text of an opaque test.
type Predicate struct {
	Subject string
	Kind    Kind
	// Type is intersected with the subject when the predicate holds.
	Type types.Union
	// NegType is subtracted from the subject when the predicate does not hold.
	// When zero, Type is used.
	NegType types.Union
	Class   string
	Negated bool
}

// Negate returns the complementary predicate.
func (p Predicate) Negate() Predicate {
	p.Negated = !p.Negated
	return p
}

// base identifies the test regardless of negation.
func (p Predicate) base() string {
	switch p.Kind {
	case IsType:
		return p.Subject + " is " + p.Type.String()
	case IsInstance:
		return p.Subject + " instanceof " + strings.ToLower(p.Class)
	case Isset:
		return "isset(" + p.Subject + ")"
	case Opaque:
		return "(" + p.Subject + ")"
	}
	return p.Subject
}

func (p Predicate) String() string {
	if p.Negated {
		return "!" + p.base()
	}
	return p.base()
}

func comparePredicates(a, b Predicate) int {
	return cmp.Or(
		cmp.Compare(a.base(), b.base()),
		compareBool(a.Negated, b.Negated),
	)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// Clause is a conjunction of predicates, sorted and without duplicates.
type Clause []Predicate

func (c Clause) String() string {
	if len(c) == 0 {
		return "true"
	}
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = p.String()
	}
	return strings.Join(parts, " && ")
}

// contradictory reports whether c contains both a predicate and its negation.
func (c Clause) contradictory() bool {
	for i := 1; i < len(c); i++ {
		if c[i-1].base() == c[i].base() && c[i-1].Negated != c[i].Negated {
			return true
		}
	}
	return false
}

// subsetOf reports whether every predicate of c is in o. Both are sorted.
func (c Clause) subsetOf(o Clause) bool {
	j := 0
	for _, p := range c {
		for j < len(o) && comparePredicates(o[j], p) < 0 {
			j++
		}
		if j == len(o) || comparePredicates(o[j], p) != 0 {
			return false
		}
		j++
	}
	return true
}

func newClause(preds ...Predicate) Clause {
	c := slices.Clone(preds)
	slices.SortFunc(c, comparePredicates)
	return slices.CompactFunc(c, func(a, b Predicate) bool { return comparePredicates(a, b) == 0 })
}

// Set is a disjunction of clauses. The zero Set is False: no clause can hold.
type Set struct {
	rows    []Clause
	unknown bool
}

// True is the set that always holds.
func True() Set { return Set{rows: []Clause{{}}} }

// False is the set that never holds.
func False() Set { return Set{} }

// Unknown is the set the algebra gave up on. It holds an unknown truth value
// and never narrows.
func Unknown() Set { return Set{unknown: true} }

// Single is the set holding exactly when p does.
func Single(p Predicate) Set { return Set{rows: []Clause{{p}}} }

func (s Set) IsUnknown() bool { return s.unknown }

// IsTrue reports whether s holds unconditionally.
func (s Set) IsTrue() bool {
	return !s.unknown && slices.ContainsFunc(s.rows, func(c Clause) bool { return len(c) == 0 })
}

// IsFalse reports whether s can never hold.
func (s Set) IsFalse() bool { return !s.unknown && len(s.rows) == 0 }

// Rows returns the clauses of s.
func (s Set) Rows() []Clause { return s.rows }

func (s Set) String() string {
	switch {
	case s.unknown:
		return "unknown"
	case len(s.rows) == 0:
		return "false"
	}
	parts := make([]string, len(s.rows))
	for i, r := range s.rows {
		parts[i] = "(" + r.String() + ")"
	}
	return strings.Join(parts, " || ")
}

// And is the conjunction of a and b.
func And(a, b Set) Set {
	if a.unknown || b.unknown {
		return Unknown()
	}
	if len(a.rows)*len(b.rows) > 4*MaxRows {
		return Unknown()
	}
	rows := make([]Clause, 0, len(a.rows)*len(b.rows))
	for _, ra := range a.rows {
		for _, rb := range b.rows {
			rows = append(rows, newClause(append(slices.Clone(ra), rb...)...))
		}
	}
	return simplify(rows)
}

// Or is the disjunction of a and b.
func Or(a, b Set) Set {
	if a.unknown || b.unknown {
		return Unknown()
	}
	return simplify(append(slices.Clone(a.rows), b.rows...))
}

// Negate is the complement of s, by De Morgan: every clause is negated into a
// disjunction of negated predicates and the results are conjoined.
func Negate(s Set) Set {
	if s.unknown {
		return Unknown()
	}
	out := True()
	for _, row := range s.rows {
		negated := Set{rows: make([]Clause, 0, len(row))}
		for _, p := range row {
			negated.rows = append(negated.rows, Clause{p.Negate()})
		}
		out = And(out, negated)
		if out.unknown || out.IsFalse() {
			return out
		}
	}
	return out
}

// Without drops every predicate whose subject depends on one of vars, as
// needed once those variables are reassigned. Dropping predicates from a
// clause only weakens it.
func (s Set) Without(vars ...string) Set {
	if s.unknown || len(vars) == 0 {
		return s
	}
	rows := make([]Clause, 0, len(s.rows))
	for _, row := range s.rows {
		kept := row[:0:0]
		for _, p := range row {
			if !slices.ContainsFunc(vars, func(v string) bool { return ast.DependsOn(p.Subject, v) }) {
				kept = append(kept, p)
			}
		}
		rows = append(rows, kept)
	}
	return simplify(rows)
}

// Subjects lists the distinct subjects tested by s.
func (s Set) Subjects() []string {
	var out []string
	for _, row := range s.rows {
		for _, p := range row {
			if p.Kind != Opaque && !slices.Contains(out, p.Subject) {
				out = append(out, p.Subject)
			}
		}
	}
	return out
}

// simplify drops contradictory and duplicate clauses, absorbs clauses implied
// by smaller ones and merges complementary pairs (A && p) || (A && !p) into A.
func simplify(rows []Clause) Set {
	live := make([]Clause, 0, len(rows))
	for _, r := range rows {
		if r.contradictory() {
			continue
		}
		if len(r) == 0 {
			return True()
		}
		live = append(live, r)
	}
	for changed := true; changed; {
		changed = false
		live = absorb(live)
		if merged, ok := mergeComplements(live); ok {
			live, changed = merged, true
			if slices.ContainsFunc(live, func(c Clause) bool { return len(c) == 0 }) {
				return True()
			}
		}
	}
	if len(live) > MaxRows {
		return Unknown()
	}
	slices.SortFunc(live, func(a, b Clause) int { return cmp.Compare(a.String(), b.String()) })
	return Set{rows: live}
}

func absorb(rows []Clause) []Clause {
	out := rows[:0:0]
	for i, r := range rows {
		absorbed := false
		for j, o := range rows {
			if i == j {
				continue
			}
			// o is no larger than r and implied by it; on equal rows keep the first
			if o.subsetOf(r) && (len(o) < len(r) || j < i) {
				absorbed = true
				break
			}
		}
		if !absorbed {
			out = append(out, r)
		}
	}
	return out
}

func mergeComplements(rows []Clause) ([]Clause, bool) {
	for i, a := range rows {
		for j := i + 1; j < len(rows); j++ {
			b := rows[j]
			if len(a) != len(b) {
				continue
			}
			diff := -1
			for k := range a {
				if comparePredicates(a[k], b[k]) == 0 {
					continue
				}
				if diff >= 0 || a[k].base() != b[k].base() {
					diff = -2
					break
				}
				diff = k
			}
			if diff < 0 {
				continue
			}
			merged := append(slices.Clone(a[:diff]), a[diff+1:]...)
			out := make([]Clause, 0, len(rows)-1)
			out = append(out, rows[:i]...)
			out = append(out, merged)
			out = append(out, rows[i+1:j]...)
			out = append(out, rows[j+1:]...)
			return out, true
		}
	}
	return rows, false
}
