package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Key returns the canonical textual shape of an expression that can be tracked
// by the flow context or the call memoization cache: variables, property fetches,
// literal-indexed array accesses and method calls whose arguments are themselves
// literals or keyable.
//
// Two expressions with the same Key denote the same storage location (or the same
// call) as long as none of the variables they mention are reassigned.
func Key(e Expr) (string, bool) {
	switch e := e.(type) {
	case *Variable:
		return "$" + e.Name, true
	case *PropertyFetch:
		recv, ok := Key(e.Receiver)
		if !ok {
			return "", false
		}
		return recv + "->" + e.Property, true
	case *ArrayDimFetch:
		if e.Dim == nil {
			return "", false
		}
		recv, ok := Key(e.Var)
		if !ok {
			return "", false
		}
		dim, ok := Literal(e.Dim)
		if !ok {
			return "", false
		}
		return recv + "[" + dim + "]", true
	case *MethodCall:
		recv, ok := Key(e.Receiver)
		if !ok {
			return "", false
		}
		args := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			if arg.Unpack {
				return "", false
			}
			a, ok := Literal(arg.Value)
			if !ok {
				a, ok = Key(arg.Value)
			}
			if !ok {
				return "", false
			}
			args = append(args, a)
		}
		return recv + "->" + strings.ToLower(e.Method) + "(" + strings.Join(args, ", ") + ")", true
	}
	return "", false
}

// IsCallKey reports whether key (as built by Key) ends in a method call.
func IsCallKey(key string) bool {
	return strings.HasSuffix(key, ")")
}

// Literal renders scalar literals in their source form.
func Literal(e Expr) (string, bool) {
	switch e := e.(type) {
	case *IntLit:
		return strconv.FormatInt(e.Value, 10), true
	case *FloatLit:
		return strconv.FormatFloat(e.Value, 'g', -1, 64), true
	case *StringLit:
		return "'" + strings.ReplaceAll(e.Value, "'", `\'`) + "'", true
	case *BoolLit:
		return strconv.FormatBool(e.Value), true
	case *NullLit:
		return "null", true
	}
	return "", false
}

// RootVar returns the variable a key is rooted at, "$a" for "$a->b()['c']".
func RootVar(key string) string {
	if !strings.HasPrefix(key, "$") {
		return ""
	}
	for i := 1; i < len(key); i++ {
		if !isIdentChar(key[i]) {
			return key[:i]
		}
	}
	return key
}

// DependsOn reports whether key mentions the variable v anywhere, including
// inside call arguments. v includes the leading "$".
func DependsOn(key, v string) bool {
	for i := 0; i+len(v) <= len(key); {
		j := strings.Index(key[i:], v)
		if j < 0 {
			return false
		}
		end := i + j + len(v)
		if end == len(key) || !isIdentChar(key[end]) {
			return true
		}
		i = end
	}
	return false
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

// Vars lists the distinct variables (with "$") referenced by e, in order of appearance.
func Vars(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	Inspect(e, func(n Expr) bool {
		if v, ok := n.(*Variable); ok && !seen[v.Name] {
			seen[v.Name] = true
			out = append(out, "$"+v.Name)
		}
		_, isClosure := n.(*Closure)
		return !isClosure
	})
	return out
}

// AssignedVars lists the variables that e assigns to, directly or by increment.
func AssignedVars(e Expr) []string {
	var out []string
	Inspect(e, func(n Expr) bool {
		var target Expr
		switch n := n.(type) {
		case *Assign:
			target = n.Target
		case *AssignOp:
			target = n.Target
		case *IncDec:
			target = n.Target
		case *Closure:
			return false
		}
		if target != nil {
			if k, ok := Key(target); ok {
				out = append(out, RootVar(k))
			}
		}
		return true
	})
	return out
}

// Inspect walks the expression tree rooted at e in depth-first order, calling f for
// each node. Children are skipped when f returns false.
func Inspect(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	walkArgs := func(args []Arg) {
		for _, a := range args {
			Inspect(a.Value, f)
		}
	}
	switch e := e.(type) {
	case *ArrayLit:
		for _, item := range e.Items {
			Inspect(item.Key, f)
			Inspect(item.Value, f)
		}
	case *Assign:
		Inspect(e.Target, f)
		Inspect(e.Value, f)
	case *AssignOp:
		Inspect(e.Target, f)
		Inspect(e.Value, f)
	case *Binary:
		Inspect(e.Left, f)
		Inspect(e.Right, f)
	case *Unary:
		Inspect(e.Operand, f)
	case *IncDec:
		Inspect(e.Target, f)
	case *Ternary:
		Inspect(e.Cond, f)
		Inspect(e.Then, f)
		Inspect(e.Else, f)
	case *Match:
		Inspect(e.Subject, f)
		for _, arm := range e.Arms {
			for _, c := range arm.Conds {
				Inspect(c, f)
			}
			Inspect(arm.Body, f)
		}
	case *Instanceof:
		Inspect(e.Expr, f)
	case *Isset:
		for _, v := range e.Vars {
			Inspect(v, f)
		}
	case *Empty:
		Inspect(e.Expr, f)
	case *Call:
		walkArgs(e.Args)
	case *MethodCall:
		Inspect(e.Receiver, f)
		walkArgs(e.Args)
	case *StaticCall:
		walkArgs(e.Args)
	case *New:
		walkArgs(e.Args)
	case *PropertyFetch:
		Inspect(e.Receiver, f)
	case *ArrayDimFetch:
		Inspect(e.Var, f)
		Inspect(e.Dim, f)
	case *Cast:
		Inspect(e.Expr, f)
	}
}

// Format renders e in a compact source-like form, for issue details and logging.
func Format(e Expr) string {
	sb := &strings.Builder{}
	format(sb, e)
	return sb.String()
}

func formatArgs(sb *strings.Builder, args []Arg) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		if a.Unpack {
			sb.WriteString("...")
		}
		format(sb, a.Value)
	}
	sb.WriteByte(')')
}

func format(sb *strings.Builder, e Expr) {
	if lit, ok := Literal(e); ok {
		sb.WriteString(lit)
		return
	}
	switch e := e.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Variable:
		sb.WriteString("$" + e.Name)
	case *ArrayLit:
		sb.WriteByte('[')
		for i, item := range e.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			if item.Key != nil {
				format(sb, item.Key)
				sb.WriteString(" => ")
			}
			if item.Unpack {
				sb.WriteString("...")
			}
			format(sb, item.Value)
		}
		sb.WriteByte(']')
	case *Assign:
		format(sb, e.Target)
		if e.ByRef {
			sb.WriteString(" = &")
		} else {
			sb.WriteString(" = ")
		}
		format(sb, e.Value)
	case *AssignOp:
		format(sb, e.Target)
		sb.WriteString(" " + e.Op + "= ")
		format(sb, e.Value)
	case *Binary:
		format(sb, e.Left)
		sb.WriteString(" " + e.Op + " ")
		format(sb, e.Right)
	case *Unary:
		sb.WriteString(e.Op)
		format(sb, e.Operand)
	case *IncDec:
		op := "--"
		if e.Inc {
			op = "++"
		}
		if e.Prefix {
			sb.WriteString(op)
		}
		format(sb, e.Target)
		if !e.Prefix {
			sb.WriteString(op)
		}
	case *Ternary:
		format(sb, e.Cond)
		if e.Then == nil {
			sb.WriteString(" ?: ")
		} else {
			sb.WriteString(" ? ")
			format(sb, e.Then)
			sb.WriteString(" : ")
		}
		format(sb, e.Else)
	case *Match:
		sb.WriteString("match (")
		format(sb, e.Subject)
		sb.WriteString(") {...}")
	case *Instanceof:
		format(sb, e.Expr)
		sb.WriteString(" instanceof " + e.Class)
	case *Isset:
		sb.WriteString("isset(")
		for i, v := range e.Vars {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, v)
		}
		sb.WriteByte(')')
	case *Empty:
		sb.WriteString("empty(")
		format(sb, e.Expr)
		sb.WriteByte(')')
	case *Call:
		sb.WriteString(e.Name)
		formatArgs(sb, e.Args)
	case *MethodCall:
		format(sb, e.Receiver)
		if e.NullSafe {
			sb.WriteString("?->")
		} else {
			sb.WriteString("->")
		}
		sb.WriteString(e.Method)
		formatArgs(sb, e.Args)
	case *StaticCall:
		sb.WriteString(e.Class + "::" + e.Method)
		formatArgs(sb, e.Args)
	case *New:
		sb.WriteString("new " + e.Class)
		formatArgs(sb, e.Args)
	case *PropertyFetch:
		format(sb, e.Receiver)
		if e.NullSafe {
			sb.WriteString("?->")
		} else {
			sb.WriteString("->")
		}
		sb.WriteString(e.Property)
	case *ArrayDimFetch:
		format(sb, e.Var)
		sb.WriteByte('[')
		if e.Dim != nil {
			format(sb, e.Dim)
		}
		sb.WriteByte(']')
	case *Closure:
		sb.WriteString("function (...) {...}")
	case *Cast:
		sb.WriteString("(" + e.To + ") ")
		format(sb, e.Expr)
	default:
		sb.WriteString(fmt.Sprintf("%T", e))
	}
}
