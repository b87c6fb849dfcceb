package clause

import (
	"fmt"
	"strings"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/types"
)

// typeChecks are the type-testing functions FromExpr understands. neg is what
// a failed check rules out when it differs from what a passed check proves.
var typeChecks = map[string]struct{ pos, neg string }{
	"is_string":   {pos: "string"},
	"is_int":      {pos: "int"},
	"is_integer":  {pos: "int"},
	"is_float":    {pos: "float"},
	"is_double":   {pos: "float"},
	"is_bool":     {pos: "bool"},
	"is_array":    {pos: "array<array-key, mixed>"},
	"is_null":     {pos: "null"},
	"is_object":   {pos: "object"},
	"is_numeric":  {pos: "int|float|string", neg: "int|float"},
	"is_scalar":   {pos: "int|float|string|bool"},
	"is_callable": {pos: "callable|string|array<array-key, mixed>|object", neg: "callable"},
	"is_iterable": {pos: "iterable", neg: "array<array-key, mixed>"},
}

// FromExpr decomposes a condition into a clause set. Conjunctions distribute,
// disjunctions add clauses and negations are pushed down to the predicates.
// Tests the algebra does not recognise become opaque predicates.
func FromExpr(e ast.Expr) Set {
	switch e := e.(type) {
	case *ast.BoolLit:
		if e.Value {
			return True()
		}
		return False()
	case *ast.Unary:
		if e.Op == "!" {
			return Negate(FromExpr(e.Operand))
		}
	case *ast.Binary:
		switch e.Op {
		case "&&", "and":
			return And(FromExpr(e.Left), FromExpr(e.Right))
		case "||", "or":
			return Or(FromExpr(e.Left), FromExpr(e.Right))
		case "===", "!==", "==", "!=":
			if s, ok := comparison(e); ok {
				return s
			}
		}
	case *ast.Instanceof:
		if subject, ok := subjectKey(e.Expr); ok {
			return Single(Predicate{Subject: subject, Kind: IsInstance, Class: strings.TrimPrefix(e.Class, "\\")})
		}
	case *ast.Isset:
		out := True()
		for _, v := range e.Vars {
			subject, ok := subjectKey(v)
			if !ok {
				out = And(out, opaque(v))
				continue
			}
			out = And(out, Single(Predicate{Subject: subject, Kind: Isset}))
		}
		return out
	case *ast.Empty:
		if subject, ok := subjectKey(e.Expr); ok {
			return Single(Predicate{Subject: subject, Kind: Truthy, Negated: true})
		}
	case *ast.Call:
		if s, ok := callCheck(e); ok {
			return s
		}
	}
	if subject, ok := subjectKey(e); ok {
		return Single(Predicate{Subject: subject, Kind: Truthy})
	}
	return opaque(e)
}

// subjectKey is the key narrowed by a test of e. An assignment tests the
// assigned value, as in `if ($x = f())`.
func subjectKey(e ast.Expr) (string, bool) {
	if a, ok := e.(*ast.Assign); ok {
		return ast.Key(a.Target)
	}
	return ast.Key(e)
}

// opaque wraps an unrecognised test. Tests that may have side effects are made
// unique by their position so that two evaluations never cancel out.
func opaque(e ast.Expr) Set {
	subject := ast.Format(e)
	volatile := false
	ast.Inspect(e, func(n ast.Expr) bool {
		switch n.(type) {
		case *ast.Call, *ast.MethodCall, *ast.StaticCall, *ast.New, *ast.Assign, *ast.AssignOp, *ast.IncDec:
			volatile = true
		}
		return !volatile
	})
	if volatile {
		subject = fmt.Sprintf("%s@%d", subject, e.Pos())
	}
	return Single(Predicate{Subject: subject, Kind: Opaque})
}

func literalType(e ast.Expr) (types.Union, bool) {
	switch e := e.(type) {
	case *ast.NullLit:
		return types.NullType(), true
	case *ast.BoolLit:
		return types.NewUnion(types.LitBool{Value: e.Value}), true
	case *ast.IntLit:
		return types.NewUnion(types.LitInt{Value: e.Value}), true
	case *ast.FloatLit:
		return types.NewUnion(types.LitFloat{Value: e.Value}), true
	case *ast.StringLit:
		return types.NewUnion(types.LitString{Value: e.Value}), true
	}
	return types.Union{}, false
}

func comparison(e *ast.Binary) (Set, bool) {
	subjectExpr, lit := e.Left, e.Right
	litType, ok := literalType(lit)
	if !ok {
		subjectExpr, lit = e.Right, e.Left
		if litType, ok = literalType(lit); !ok {
			return Set{}, false
		}
	}
	subject, ok := subjectKey(subjectExpr)
	if !ok {
		return Set{}, false
	}
	negated := e.Op == "!==" || e.Op == "!="
	var p Predicate
	switch {
	case e.Op == "===" || e.Op == "!==":
		p = Predicate{Subject: subject, Kind: IsType, Type: litType}
	case litType.IsNull():
		// loose comparison with null holds exactly for falsy values
		p = Predicate{Subject: subject, Kind: Truthy, Negated: true}
	default:
		b, isBool := lit.(*ast.BoolLit)
		if !isBool {
			return Set{}, false
		}
		p = Predicate{Subject: subject, Kind: Truthy, Negated: !b.Value}
	}
	if negated {
		p = p.Negate()
	}
	return Single(p), true
}

func callCheck(e *ast.Call) (Set, bool) {
	name := strings.ToLower(strings.TrimPrefix(e.Name, "\\"))
	if name == "is_a" && len(e.Args) >= 2 {
		subject, ok := subjectKey(e.Args[0].Value)
		class, isString := e.Args[1].Value.(*ast.StringLit)
		if !ok || !isString {
			return Set{}, false
		}
		return Single(Predicate{Subject: subject, Kind: IsInstance, Class: strings.TrimPrefix(class.Value, "\\")}), true
	}
	check, ok := typeChecks[name]
	if !ok || len(e.Args) != 1 || e.Args[0].Unpack {
		return Set{}, false
	}
	subject, ok := subjectKey(e.Args[0].Value)
	if !ok {
		return Set{}, false
	}
	p := Predicate{Subject: subject, Kind: IsType, Type: types.MustParse(check.pos)}
	if check.neg != "" {
		p.NegType = types.MustParse(check.neg)
	}
	return Single(p), true
}
