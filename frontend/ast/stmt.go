package ast

type ExprStmt struct {
	Range
	Expr Expr
}

type Echo struct {
	Range
	Exprs []Expr
}

type ElseIf struct {
	Range
	Cond Expr
	Body []Stmt
}

// If has a nil Else when there is no else arm.
type If struct {
	Range
	Cond    Expr
	Then    []Stmt
	ElseIfs []ElseIf
	Else    *Block
}

type While struct {
	Range
	Cond Expr
	Body []Stmt
}

type DoWhile struct {
	Range
	Body []Stmt
	Cond Expr
}

// For evaluates every Cond expression and uses the last one as the loop condition.
type For struct {
	Range
	Init []Expr
	Cond []Expr
	Loop []Expr
	Body []Stmt
}

type Foreach struct {
	Range
	Subject Expr
	Key     Expr
	Value   Expr
	ByRef   bool
	Body    []Stmt
}

// Case has a nil Cond for `default:`.
type Case struct {
	Range
	Cond Expr
	Body []Stmt
}

type Switch struct {
	Range
	Subject Expr
	Cases   []Case
}

type Break struct {
	Range
	Levels int
}

type Continue struct {
	Range
	Levels int
}

type Return struct {
	Range
	Value Expr
}

type Throw struct {
	Range
	Expr Expr
}

// Catch has an empty Var for `catch (Foo)` without a binding.
type Catch struct {
	Range
	Types []string
	Var   string
	Body  []Stmt
}

type Try struct {
	Range
	Body    []Stmt
	Catches []Catch
	Finally *Block
}

type Unset struct {
	Range
	Vars []Expr
}

type Global struct {
	Range
	Names []string
}

type DeclareDirective struct {
	Range
	Name  string
	Value Expr
}

type Declare struct {
	Range
	Directives []DeclareDirective
	Body       []Stmt
}

type Block struct {
	Range
	Body []Stmt
}

type FunctionDecl struct {
	Range
	Name       string
	Params     []Param
	ReturnType string
	Templates  []TemplateParam
	Body       []Stmt
	Pure       bool
}

type PropertyDecl struct {
	Range
	Name string
	Type string
}

// MethodDecl has a nil Body when it is abstract or declared on an interface.
type MethodDecl struct {
	Range
	Name       string
	Params     []Param
	ReturnType string
	Templates  []TemplateParam
	Body       []Stmt
	Static     bool
	Abstract   bool
	Pure       bool
}

type ClassDecl struct {
	Range
	Name         string
	Parent       string
	ParentParams []string
	Interfaces   []string
	IsInterface  bool
	Abstract     bool
	Templates    []TemplateParam
	Properties   []PropertyDecl
	Methods      []MethodDecl
}

// Trace asks the analyzer to report the type Var has at this point.
type Trace struct {
	Range
	Var string
}

type Nop struct {
	Range
}

func (*ExprStmt) stmtNode()     {}
func (*Echo) stmtNode()         {}
func (*If) stmtNode()           {}
func (*While) stmtNode()        {}
func (*DoWhile) stmtNode()      {}
func (*For) stmtNode()          {}
func (*Foreach) stmtNode()      {}
func (*Switch) stmtNode()       {}
func (*Break) stmtNode()        {}
func (*Continue) stmtNode()     {}
func (*Return) stmtNode()       {}
func (*Throw) stmtNode()        {}
func (*Try) stmtNode()          {}
func (*Unset) stmtNode()        {}
func (*Global) stmtNode()       {}
func (*Declare) stmtNode()      {}
func (*Block) stmtNode()        {}
func (*FunctionDecl) stmtNode() {}
func (*ClassDecl) stmtNode()    {}
func (*Trace) stmtNode()        {}
func (*Nop) stmtNode()          {}

// Bodies returns the statement lists nested directly in st, in source order.
// Function and class bodies are not among them.
func Bodies(st Stmt) [][]Stmt {
	switch st := st.(type) {
	case *If:
		out := [][]Stmt{st.Then}
		for _, e := range st.ElseIfs {
			out = append(out, e.Body)
		}
		if st.Else != nil {
			out = append(out, st.Else.Body)
		}
		return out
	case *While:
		return [][]Stmt{st.Body}
	case *DoWhile:
		return [][]Stmt{st.Body}
	case *For:
		return [][]Stmt{st.Body}
	case *Foreach:
		return [][]Stmt{st.Body}
	case *Switch:
		out := make([][]Stmt, 0, len(st.Cases))
		for _, c := range st.Cases {
			out = append(out, c.Body)
		}
		return out
	case *Try:
		out := [][]Stmt{st.Body}
		for _, c := range st.Catches {
			out = append(out, c.Body)
		}
		if st.Finally != nil {
			out = append(out, st.Finally.Body)
		}
		return out
	case *Declare:
		return [][]Stmt{st.Body}
	case *Block:
		return [][]Stmt{st.Body}
	}
	return nil
}
