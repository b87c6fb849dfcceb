package analyzer

import (
	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/types"
)

// binaryType is the result type of the operator op applied to l and r. Both
// binary expressions and compound assignments use it.
func binaryType(op string, l, r types.Union) types.Union {
	switch op {
	case ".":
		return types.StringType()
	case "==", "!=", "<>", "===", "!==", "<", "<=", ">", ">=", "xor", "instanceof":
		return types.BoolType()
	case "<=>", "%", "<<", ">>", "&", "|", "^":
		return types.IntType()
	case "+":
		if l.Has(isArrayLike) && r.Has(isArrayLike) {
			return types.Combine(l.Filter(isArrayLike), r.Filter(isArrayLike))
		}
		return arithmetic(op, l, r)
	case "-", "*", "/", "**":
		return arithmetic(op, l, r)
	}
	return types.MixedType()
}

func arithmetic(op string, l, r types.Union) types.Union {
	li, lf, lo := numericParts(l)
	ri, rf, ro := numericParts(r)
	switch {
	case lo || ro:
		return types.MustParse("int|float")
	case op == "/" && !lf && !rf:
		// integer division is exact only sometimes
		return types.MustParse("int|float")
	case !lf && !rf:
		return types.IntType()
	case !li && !ri, lf && !li, rf && !ri:
		return types.FloatType()
	}
	return types.MustParse("int|float")
}

// numericResult is the type of +x or -x.
func numericResult(t types.Union) types.Union {
	ints, floats, other := numericParts(t)
	switch {
	case other || ints && floats:
		return types.MustParse("int|float")
	case floats:
		return types.FloatType()
	}
	return types.IntType()
}

// numericParts classifies the atomics of u as used in arithmetic: those that
// act as ints (ints, bools, null), floats and anything else.
func numericParts(u types.Union) (ints, floats, other bool) {
	for _, a := range u.Atomics() {
		switch a.(type) {
		case types.Int, types.LitInt, types.Bool, types.LitBool, types.Null:
			ints = true
		case types.Float, types.LitFloat:
			floats = true
		default:
			other = true
		}
	}
	return ints, floats, other
}

func isString(a types.Atomic) bool {
	switch a.(type) {
	case types.String, types.LitString:
		return true
	}
	return false
}

func isScalar(a types.Atomic) bool {
	switch a.(type) {
	case types.Int, types.LitInt, types.Float, types.LitFloat, types.String, types.LitString, types.Bool, types.LitBool:
		return true
	}
	return false
}

func isArrayLike(a types.Atomic) bool {
	switch a.(type) {
	case types.Array, types.List, types.Shape:
		return true
	}
	return false
}

func isObject(a types.Atomic) bool {
	switch a.(type) {
	case types.Named, types.Object:
		return true
	}
	return false
}

// elementType is the type read from base at dim. quiet reads (isset, ??,
// list()) see missing keys of shapes as null.
func elementType(base types.Union, dim ast.Expr, quiet bool) types.Union {
	entry, literal := shapeKey(dim)
	var out []types.Union
	for _, a := range base.Atomics() {
		switch a := a.(type) {
		case types.Shape:
			if !literal {
				_, v := types.IterationTypes(types.NewUnion(a))
				if quiet {
					v = v.WithNull()
				}
				out = append(out, v)
				continue
			}
			e, ok := a.Entry(entry.Key)
			switch {
			case !ok:
				out = append(out, types.NullType())
			case e.Optional:
				out = append(out, e.Type.WithNull())
			default:
				out = append(out, e.Type)
			}
		case types.List:
			out = append(out, a.Value)
		case types.Array:
			out = append(out, a.Value)
		case types.String, types.LitString:
			out = append(out, types.StringType())
		case types.Null, types.Void:
			out = append(out, types.NullType())
		default:
			out = append(out, types.MixedType())
		}
	}
	if len(out) == 0 {
		return types.MixedType()
	}
	return types.CombineAll(out...)
}
