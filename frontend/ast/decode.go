package ast

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// DecodeError reports a tree document that does not describe a valid tree.
type DecodeError struct {
	Path string
	Msg  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed tree: %s", e.Path, e.Msg)
}

// DecodeFile builds a File from a YAML (or JSON) tree document.
//
// Every node is a mapping with a `kind` discriminator and an optional
// `at: [start, end]` offset pair. Unknown kinds and unknown fields are errors.
func DecodeFile(path string, data []byte) (file *File, err error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Path: path, Msg: err.Error()}
	}
	d := &decoder{path: path}
	defer func() {
		if r := recover(); r != nil {
			decErr, ok := r.(*DecodeError)
			if !ok {
				panic(r)
			}
			file, err = nil, decErr
		}
	}()
	d.allow(raw, "root", "path", "at", "stmts")
	file = &File{
		Range: d.rangeOf(raw),
		Path:  path,
		Stmts: d.stmts(raw["stmts"]),
	}
	if p, ok := raw["path"]; ok {
		file.Path = d.str(p, "path")
	}
	return file, nil
}

type decoder struct {
	path string
}

func (d *decoder) fail(format string, args ...any) {
	panic(&DecodeError{Path: d.path, Msg: fmt.Sprintf(format, args...)})
}

func (d *decoder) node(v any, what string) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		d.fail("%s: expected a mapping, got %T", what, v)
	}
	return m
}

func (d *decoder) list(v any, what string) []any {
	if v == nil {
		return nil
	}
	l, ok := v.([]any)
	if !ok {
		d.fail("%s: expected a sequence, got %T", what, v)
	}
	return l
}

func (d *decoder) allow(m map[string]any, what string, fields ...string) {
	for k := range m {
		if k != "kind" && !slices.Contains(fields, k) {
			d.fail("%s: unknown field %q", what, k)
		}
	}
}

func (d *decoder) str(v any, what string) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v)
	}
	d.fail("%s: expected a string, got %T", what, v)
	return ""
}

func (d *decoder) strs(v any, what string) []string {
	var out []string
	for _, s := range d.list(v, what) {
		out = append(out, d.str(s, what))
	}
	return out
}

func (d *decoder) int(v any, what string) int64 {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint64:
		if v > math.MaxInt64 {
			d.fail("%s: integer %d overflows", what, v)
		}
		return int64(v)
	case float64:
		if v == math.Trunc(v) {
			return int64(v)
		}
	}
	d.fail("%s: expected an integer, got %v", what, v)
	return 0
}

func (d *decoder) float(v any, what string) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int, int64, uint64:
		return float64(d.int(v, what))
	}
	d.fail("%s: expected a number, got %v", what, v)
	return 0
}

func (d *decoder) bool(v any, what string) bool {
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail("%s: expected a boolean, got %v", what, v)
	}
	return b
}

func (d *decoder) rangeOf(m map[string]any) Range {
	at, ok := m["at"]
	if !ok {
		return Range{}
	}
	pair := d.list(at, "at")
	if len(pair) != 2 {
		d.fail("at: expected [start, end], got %v", at)
	}
	return Range{PosStart: int(d.int(pair[0], "at")), PosEnd: int(d.int(pair[1], "at"))}
}

func (d *decoder) kind(m map[string]any) string {
	k, ok := m["kind"].(string)
	if !ok {
		d.fail("node without a kind: %v", m)
	}
	return k
}

func (d *decoder) stmts(v any) []Stmt {
	var out []Stmt
	for _, s := range d.list(v, "statements") {
		out = append(out, d.stmt(s))
	}
	return out
}

func (d *decoder) optExpr(v any) Expr {
	if v == nil {
		return nil
	}
	return d.expr(v)
}

func (d *decoder) exprs(v any) []Expr {
	var out []Expr
	for _, e := range d.list(v, "expressions") {
		out = append(out, d.expr(e))
	}
	return out
}

func (d *decoder) levels(v any) int {
	if v == nil {
		return 1
	}
	return int(d.int(v, "levels"))
}

func (d *decoder) args(v any) []Arg {
	var out []Arg
	for _, a := range d.list(v, "args") {
		m := d.node(a, "arg")
		if spread, ok := m["spread"]; ok {
			d.allow(m, "arg", "spread")
			out = append(out, Arg{Value: d.expr(spread), Unpack: true})
			continue
		}
		out = append(out, Arg{Value: d.expr(m)})
	}
	return out
}

func (d *decoder) params(v any) []Param {
	var out []Param
	for _, p := range d.list(v, "params") {
		m := d.node(p, "param")
		d.allow(m, "param", "at", "name", "type", "default", "byRef", "variadic")
		out = append(out, Param{
			Range:    d.rangeOf(m),
			Name:     strings.TrimPrefix(d.str(m["name"], "param name"), "$"),
			Type:     d.str(m["type"], "param type"),
			Default:  d.optExpr(m["default"]),
			ByRef:    d.bool(m["byRef"], "byRef"),
			Variadic: d.bool(m["variadic"], "variadic"),
		})
	}
	return out
}

func (d *decoder) templates(v any) []TemplateParam {
	var out []TemplateParam
	for _, t := range d.list(v, "templates") {
		m := d.node(t, "template")
		d.allow(m, "template", "name", "bound", "invariant")
		out = append(out, TemplateParam{
			Name:      d.str(m["name"], "template name"),
			Bound:     d.str(m["bound"], "template bound"),
			Invariant: d.bool(m["invariant"], "invariant"),
		})
	}
	return out
}

func (d *decoder) block(v any) *Block {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		d.allow(m, "block", "at", "body")
		return &Block{Range: d.rangeOf(m), Body: d.stmts(m["body"])}
	}
	return &Block{Body: d.stmts(v)}
}

func (d *decoder) stmt(v any) Stmt {
	m := d.node(v, "statement")
	r := d.rangeOf(m)
	kind := d.kind(m)
	switch kind {
	case "expr":
		d.allow(m, kind, "at", "expr")
		return &ExprStmt{Range: r, Expr: d.expr(m["expr"])}
	case "echo":
		d.allow(m, kind, "at", "exprs")
		return &Echo{Range: r, Exprs: d.exprs(m["exprs"])}
	case "if":
		d.allow(m, kind, "at", "cond", "then", "elseifs", "else")
		var elseIfs []ElseIf
		for _, e := range d.list(m["elseifs"], "elseifs") {
			em := d.node(e, "elseif")
			d.allow(em, "elseif", "at", "cond", "body")
			elseIfs = append(elseIfs, ElseIf{Range: d.rangeOf(em), Cond: d.expr(em["cond"]), Body: d.stmts(em["body"])})
		}
		return &If{Range: r, Cond: d.expr(m["cond"]), Then: d.stmts(m["then"]), ElseIfs: elseIfs, Else: d.block(m["else"])}
	case "while":
		d.allow(m, kind, "at", "cond", "body")
		return &While{Range: r, Cond: d.expr(m["cond"]), Body: d.stmts(m["body"])}
	case "doWhile":
		d.allow(m, kind, "at", "cond", "body")
		return &DoWhile{Range: r, Cond: d.expr(m["cond"]), Body: d.stmts(m["body"])}
	case "for":
		d.allow(m, kind, "at", "init", "cond", "loop", "body")
		return &For{Range: r, Init: d.exprs(m["init"]), Cond: d.exprs(m["cond"]), Loop: d.exprs(m["loop"]), Body: d.stmts(m["body"])}
	case "foreach":
		d.allow(m, kind, "at", "subject", "key", "value", "byRef", "body")
		return &Foreach{
			Range:   r,
			Subject: d.expr(m["subject"]),
			Key:     d.optExpr(m["key"]),
			Value:   d.expr(m["value"]),
			ByRef:   d.bool(m["byRef"], "byRef"),
			Body:    d.stmts(m["body"]),
		}
	case "switch":
		d.allow(m, kind, "at", "subject", "cases")
		var cases []Case
		for _, c := range d.list(m["cases"], "cases") {
			cm := d.node(c, "case")
			d.allow(cm, "case", "at", "cond", "body")
			cases = append(cases, Case{Range: d.rangeOf(cm), Cond: d.optExpr(cm["cond"]), Body: d.stmts(cm["body"])})
		}
		return &Switch{Range: r, Subject: d.expr(m["subject"]), Cases: cases}
	case "break":
		d.allow(m, kind, "at", "levels")
		return &Break{Range: r, Levels: d.levels(m["levels"])}
	case "continue":
		d.allow(m, kind, "at", "levels")
		return &Continue{Range: r, Levels: d.levels(m["levels"])}
	case "return":
		d.allow(m, kind, "at", "value")
		return &Return{Range: r, Value: d.optExpr(m["value"])}
	case "throw":
		d.allow(m, kind, "at", "expr")
		return &Throw{Range: r, Expr: d.expr(m["expr"])}
	case "try":
		d.allow(m, kind, "at", "body", "catches", "finally")
		var catches []Catch
		for _, c := range d.list(m["catches"], "catches") {
			cm := d.node(c, "catch")
			d.allow(cm, "catch", "at", "types", "var", "body")
			catches = append(catches, Catch{
				Range: d.rangeOf(cm),
				Types: d.strs(cm["types"], "catch types"),
				Var:   strings.TrimPrefix(d.str(cm["var"], "catch var"), "$"),
				Body:  d.stmts(cm["body"]),
			})
		}
		return &Try{Range: r, Body: d.stmts(m["body"]), Catches: catches, Finally: d.block(m["finally"])}
	case "unset":
		d.allow(m, kind, "at", "vars")
		return &Unset{Range: r, Vars: d.exprs(m["vars"])}
	case "global":
		d.allow(m, kind, "at", "names")
		names := d.strs(m["names"], "global names")
		for i := range names {
			names[i] = strings.TrimPrefix(names[i], "$")
		}
		return &Global{Range: r, Names: names}
	case "declare":
		d.allow(m, kind, "at", "directives", "body")
		var directives []DeclareDirective
		for _, dir := range d.list(m["directives"], "directives") {
			dm := d.node(dir, "directive")
			d.allow(dm, "directive", "at", "name", "value")
			directives = append(directives, DeclareDirective{Range: d.rangeOf(dm), Name: d.str(dm["name"], "directive name"), Value: d.expr(dm["value"])})
		}
		return &Declare{Range: r, Directives: directives, Body: d.stmts(m["body"])}
	case "block":
		d.allow(m, kind, "at", "body")
		return &Block{Range: r, Body: d.stmts(m["body"])}
	case "function":
		d.allow(m, kind, "at", "name", "params", "returnType", "templates", "body", "pure")
		return &FunctionDecl{
			Range:      r,
			Name:       d.str(m["name"], "function name"),
			Params:     d.params(m["params"]),
			ReturnType: d.str(m["returnType"], "returnType"),
			Templates:  d.templates(m["templates"]),
			Body:       d.stmts(m["body"]),
			Pure:       d.bool(m["pure"], "pure"),
		}
	case "class", "interface":
		d.allow(m, kind, "at", "name", "parent", "parentParams", "interfaces", "abstract", "templates", "properties", "methods")
		decl := &ClassDecl{
			Range:        r,
			Name:         d.str(m["name"], "class name"),
			Parent:       d.str(m["parent"], "parent"),
			ParentParams: d.strs(m["parentParams"], "parentParams"),
			Interfaces:   d.strs(m["interfaces"], "interfaces"),
			IsInterface:  kind == "interface",
			Abstract:     d.bool(m["abstract"], "abstract"),
			Templates:    d.templates(m["templates"]),
		}
		for _, p := range d.list(m["properties"], "properties") {
			pm := d.node(p, "property")
			d.allow(pm, "property", "at", "name", "type")
			decl.Properties = append(decl.Properties, PropertyDecl{
				Range: d.rangeOf(pm),
				Name:  strings.TrimPrefix(d.str(pm["name"], "property name"), "$"),
				Type:  d.str(pm["type"], "property type"),
			})
		}
		for _, meth := range d.list(m["methods"], "methods") {
			mm := d.node(meth, "method")
			d.allow(mm, "method", "at", "name", "params", "returnType", "templates", "body", "static", "abstract", "pure")
			_, hasBody := mm["body"]
			method := MethodDecl{
				Range:      d.rangeOf(mm),
				Name:       d.str(mm["name"], "method name"),
				Params:     d.params(mm["params"]),
				ReturnType: d.str(mm["returnType"], "returnType"),
				Templates:  d.templates(mm["templates"]),
				Body:       d.stmts(mm["body"]),
				Static:     d.bool(mm["static"], "static"),
				Abstract:   d.bool(mm["abstract"], "abstract") || decl.IsInterface,
				Pure:       d.bool(mm["pure"], "pure"),
			}
			if hasBody && method.Body == nil {
				method.Body = []Stmt{}
			}
			decl.Methods = append(decl.Methods, method)
		}
		return decl
	case "trace":
		d.allow(m, kind, "at", "var")
		return &Trace{Range: r, Var: strings.TrimPrefix(d.str(m["var"], "trace var"), "$")}
	case "nop":
		d.allow(m, kind, "at")
		return &Nop{Range: r}
	}
	d.fail("unknown statement kind %q", kind)
	return nil
}

func (d *decoder) expr(v any) Expr {
	m := d.node(v, "expression")
	r := d.rangeOf(m)
	kind := d.kind(m)
	switch kind {
	case "var":
		d.allow(m, kind, "at", "name")
		return &Variable{Range: r, Name: strings.TrimPrefix(d.str(m["name"], "var name"), "$")}
	case "int":
		d.allow(m, kind, "at", "value")
		return &IntLit{Range: r, Value: d.int(m["value"], "int value")}
	case "float":
		d.allow(m, kind, "at", "value")
		return &FloatLit{Range: r, Value: d.float(m["value"], "float value")}
	case "string":
		d.allow(m, kind, "at", "value")
		return &StringLit{Range: r, Value: d.str(m["value"], "string value")}
	case "bool":
		d.allow(m, kind, "at", "value")
		return &BoolLit{Range: r, Value: d.bool(m["value"], "bool value")}
	case "null":
		d.allow(m, kind, "at")
		return &NullLit{Range: r}
	case "array":
		d.allow(m, kind, "at", "items")
		var items []ArrayItem
		for _, it := range d.list(m["items"], "items") {
			im := d.node(it, "item")
			if _, isExpr := im["kind"]; isExpr {
				items = append(items, ArrayItem{Value: d.expr(im)})
				continue
			}
			d.allow(im, "item", "key", "value", "byRef", "unpack")
			items = append(items, ArrayItem{
				Key:    d.optExpr(im["key"]),
				Value:  d.expr(im["value"]),
				ByRef:  d.bool(im["byRef"], "byRef"),
				Unpack: d.bool(im["unpack"], "unpack"),
			})
		}
		return &ArrayLit{Range: r, Items: items}
	case "assign":
		d.allow(m, kind, "at", "target", "value", "byRef")
		return &Assign{Range: r, Target: d.expr(m["target"]), Value: d.expr(m["value"]), ByRef: d.bool(m["byRef"], "byRef")}
	case "assignOp":
		d.allow(m, kind, "at", "op", "target", "value")
		return &AssignOp{Range: r, Op: d.str(m["op"], "op"), Target: d.expr(m["target"]), Value: d.expr(m["value"])}
	case "binary":
		d.allow(m, kind, "at", "op", "left", "right")
		return &Binary{Range: r, Op: strings.ToLower(d.str(m["op"], "op")), Left: d.expr(m["left"]), Right: d.expr(m["right"])}
	case "unary":
		d.allow(m, kind, "at", "op", "operand")
		return &Unary{Range: r, Op: d.str(m["op"], "op"), Operand: d.expr(m["operand"])}
	case "incDec":
		d.allow(m, kind, "at", "op", "prefix", "target")
		op := d.str(m["op"], "op")
		if op != "++" && op != "--" {
			d.fail("incDec: unknown operator %q", op)
		}
		return &IncDec{Range: r, Target: d.expr(m["target"]), Inc: op == "++", Prefix: d.bool(m["prefix"], "prefix")}
	case "ternary":
		d.allow(m, kind, "at", "cond", "then", "else")
		return &Ternary{Range: r, Cond: d.expr(m["cond"]), Then: d.optExpr(m["then"]), Else: d.expr(m["else"])}
	case "match":
		d.allow(m, kind, "at", "subject", "arms")
		var arms []MatchArm
		for _, a := range d.list(m["arms"], "arms") {
			am := d.node(a, "arm")
			d.allow(am, "arm", "at", "conds", "body")
			arms = append(arms, MatchArm{Range: d.rangeOf(am), Conds: d.exprs(am["conds"]), Body: d.expr(am["body"])})
		}
		return &Match{Range: r, Subject: d.expr(m["subject"]), Arms: arms}
	case "instanceof":
		d.allow(m, kind, "at", "expr", "class")
		return &Instanceof{Range: r, Expr: d.expr(m["expr"]), Class: d.str(m["class"], "class")}
	case "isset":
		d.allow(m, kind, "at", "vars")
		return &Isset{Range: r, Vars: d.exprs(m["vars"])}
	case "empty":
		d.allow(m, kind, "at", "expr")
		return &Empty{Range: r, Expr: d.expr(m["expr"])}
	case "call":
		d.allow(m, kind, "at", "name", "args")
		return &Call{Range: r, Name: d.str(m["name"], "function name"), Args: d.args(m["args"])}
	case "methodCall":
		d.allow(m, kind, "at", "receiver", "method", "args", "nullsafe")
		return &MethodCall{
			Range:    r,
			Receiver: d.expr(m["receiver"]),
			Method:   d.str(m["method"], "method"),
			Args:     d.args(m["args"]),
			NullSafe: d.bool(m["nullsafe"], "nullsafe"),
		}
	case "staticCall":
		d.allow(m, kind, "at", "class", "method", "args")
		return &StaticCall{Range: r, Class: d.str(m["class"], "class"), Method: d.str(m["method"], "method"), Args: d.args(m["args"])}
	case "new":
		d.allow(m, kind, "at", "class", "args")
		return &New{Range: r, Class: d.str(m["class"], "class"), Args: d.args(m["args"])}
	case "prop":
		d.allow(m, kind, "at", "receiver", "name", "nullsafe")
		return &PropertyFetch{
			Range:    r,
			Receiver: d.expr(m["receiver"]),
			Property: strings.TrimPrefix(d.str(m["name"], "property"), "$"),
			NullSafe: d.bool(m["nullsafe"], "nullsafe"),
		}
	case "dim":
		d.allow(m, kind, "at", "var", "dim")
		return &ArrayDimFetch{Range: r, Var: d.expr(m["var"]), Dim: d.optExpr(m["dim"])}
	case "closure":
		d.allow(m, kind, "at", "params", "uses", "returnType", "body", "static")
		var uses []ClosureUse
		for _, u := range d.list(m["uses"], "uses") {
			if name, ok := u.(string); ok {
				uses = append(uses, ClosureUse{Name: strings.TrimPrefix(name, "$")})
				continue
			}
			um := d.node(u, "use")
			d.allow(um, "use", "name", "byRef")
			uses = append(uses, ClosureUse{Name: strings.TrimPrefix(d.str(um["name"], "use"), "$"), ByRef: d.bool(um["byRef"], "byRef")})
		}
		return &Closure{
			Range:      r,
			Params:     d.params(m["params"]),
			Uses:       uses,
			ReturnType: d.str(m["returnType"], "returnType"),
			Body:       d.stmts(m["body"]),
			Static:     d.bool(m["static"], "static"),
		}
	case "cast":
		d.allow(m, kind, "at", "to", "expr")
		to := strings.ToLower(d.str(m["to"], "cast"))
		switch to {
		case "int", "float", "string", "bool", "array", "object", "unset":
		default:
			d.fail("cast: unknown target type %q", to)
		}
		return &Cast{Range: r, To: to, Expr: d.expr(m["expr"])}
	}
	d.fail("unknown expression kind %q", kind)
	return nil
}
