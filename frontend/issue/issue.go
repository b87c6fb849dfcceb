// Package issue defines what the analyzer reports: issue tuples, their kinds
// and severities, and the error categories that stop an analysis early.
package issue

import (
	"cmp"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/cottand/typeflow/frontend/ast"
)

// enableDebugStacks makes issues remember where in the analyzer they were raised
var enableDebugStacks = false

// SymbolKind says what a Symbol names.
type SymbolKind int

const (
	NoSymbol SymbolKind = iota
	Class
	Method
	Property
	Function
	Variable
)

// Symbol is the optional referenced symbol of an issue, as consumed by
// severity overrides. Methods and properties are named "Class::name".
type Symbol struct {
	Kind SymbolKind
	Name string
}

func (s Symbol) String() string {
	if s.Kind == Property {
		cls, prop, _ := strings.Cut(s.Name, "::")
		return cls + "::$" + prop
	}
	return s.Name
}

// Issue is one finding of the analyzer.
type Issue struct {
	Kind Kind
	ast.Range
	File     string
	Detail   string
	Symbol   Symbol
	Severity Severity
	stack    []byte
}

// New creates an Issue, capturing the analyzer stack when debugging is enabled.
func New(kind Kind, at ast.Positioner, detail string, sym Symbol) Issue {
	i := Issue{Kind: kind, Range: ast.RangeOf(at), Detail: detail, Symbol: sym, Severity: Error}
	if enableDebugStacks {
		i.stack = debug.Stack()
	}
	return i
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
}

// FormatWithCode renders the issue together with its code and location.
func FormatWithCode(i Issue) string {
	msg := fmt.Sprintf("%s:%v: (E%03d) %s - %s", i.File, i.Range, int(i.Kind), i.Kind, i.Detail)
	if i.stack != nil {
		msg += "\n" + strings.Split(string(i.stack), "\n")[6]
	}
	return msg
}

// Compare orders issues by file, position, then kind.
func Compare(a, b Issue) int {
	return cmp.Or(
		cmp.Compare(a.File, b.File),
		cmp.Compare(a.PosStart, b.PosStart),
		cmp.Compare(a.PosEnd, b.PosEnd),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Detail, b.Detail),
	)
}

// Issues is an accumulator of issues for one analysis.
// A nil *Issues is a valid empty accumulator.
type Issues struct {
	list []Issue
}

func (r *Issues) With(issues ...Issue) *Issues {
	if r == nil {
		return &Issues{list: issues}
	}
	r.list = append(r.list, issues...)
	return r
}

func (r *Issues) Merge(other *Issues) *Issues {
	if other == nil || len(other.list) == 0 {
		return r
	}
	return r.With(other.list...)
}

// List returns the accumulated issues in report order.
func (r *Issues) List() []Issue {
	if r == nil {
		return nil
	}
	sorted := slices.Clone(r.list)
	slices.SortStableFunc(sorted, Compare)
	return sorted
}

func (r *Issues) Len() int {
	if r == nil {
		return 0
	}
	return len(r.list)
}

// HasError reports whether any accumulated issue has Error severity.
func (r *Issues) HasError() bool {
	if r == nil {
		return false
	}
	return slices.ContainsFunc(r.list, func(i Issue) bool { return i.Severity == Error })
}

func (r *Issues) LogValue() slog.Value {
	var vals []slog.Attr
	for n, i := range r.List() {
		vals = append(vals, slog.String(fmt.Sprint("i", n), FormatWithCode(i)))
	}
	return slog.GroupValue(vals...)
}

// SeverityResolver decides whether, and how loudly, an issue is surfaced.
type SeverityResolver interface {
	Resolve(kind Kind, file string, sym Symbol) Severity
}

// Everything reports every issue kind as an error.
type Everything struct{}

func (Everything) Resolve(Kind, string, Symbol) Severity { return Error }
