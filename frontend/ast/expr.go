package ast

// Variable is a named local, `$Name`.
type Variable struct {
	Range
	Name string
}

type IntLit struct {
	Range
	Value int64
}

type FloatLit struct {
	Range
	Value float64
}

type StringLit struct {
	Range
	Value string
}

type BoolLit struct {
	Range
	Value bool
}

type NullLit struct {
	Range
}

// ArrayItem is one entry of an array literal. Key is nil for positional entries.
type ArrayItem struct {
	Key    Expr
	Value  Expr
	ByRef  bool
	Unpack bool
}

type ArrayLit struct {
	Range
	Items []ArrayItem
}

// Assign is `Target = Value`, or `Target = &Value` when ByRef is set.
type Assign struct {
	Range
	Target Expr
	Value  Expr
	ByRef  bool
}

// AssignOp is a compound assignment such as `$a .= "x"`. Op is the binary operator without `=`.
type AssignOp struct {
	Range
	Op     string
	Target Expr
	Value  Expr
}

// Binary covers arithmetic, comparison, logical and coalescing operators.
type Binary struct {
	Range
	Op    string
	Left  Expr
	Right Expr
}

type Unary struct {
	Range
	Op      string
	Operand Expr
}

// IncDec is `++`/`--` in prefix or postfix position.
type IncDec struct {
	Range
	Target Expr
	Inc    bool
	Prefix bool
}

// Ternary is `Cond ? Then : Else`; Then is nil for the short form `Cond ?: Else`.
type Ternary struct {
	Range
	Cond Expr
	Then Expr
	Else Expr
}

// MatchArm has no Conds when it is the default arm.
type MatchArm struct {
	Range
	Conds []Expr
	Body  Expr
}

type Match struct {
	Range
	Subject Expr
	Arms    []MatchArm
}

type Instanceof struct {
	Range
	Expr  Expr
	Class string
}

type Isset struct {
	Range
	Vars []Expr
}

type Empty struct {
	Range
	Expr Expr
}

// Call is a call to a function by name.
type Call struct {
	Range
	Name string
	Args []Arg
}

type MethodCall struct {
	Range
	Receiver Expr
	Method   string
	Args     []Arg
	NullSafe bool
}

type StaticCall struct {
	Range
	Class  string
	Method string
	Args   []Arg
}

type New struct {
	Range
	Class string
	Args  []Arg
}

type PropertyFetch struct {
	Range
	Receiver Expr
	Property string
	NullSafe bool
}

// ArrayDimFetch is `Var[Dim]`; Dim is nil for the append form `Var[]`.
type ArrayDimFetch struct {
	Range
	Var Expr
	Dim Expr
}

type ClosureUse struct {
	Name  string
	ByRef bool
}

type Closure struct {
	Range
	Params     []Param
	Uses       []ClosureUse
	ReturnType string
	Body       []Stmt
	Static     bool
}

// Cast is `(To) Expr`, To being one of int, float, string, bool, array, object or unset.
type Cast struct {
	Range
	To   string
	Expr Expr
}

func (*Variable) exprNode()      {}
func (*IntLit) exprNode()        {}
func (*FloatLit) exprNode()      {}
func (*StringLit) exprNode()     {}
func (*BoolLit) exprNode()       {}
func (*NullLit) exprNode()       {}
func (*ArrayLit) exprNode()      {}
func (*Assign) exprNode()        {}
func (*AssignOp) exprNode()      {}
func (*Binary) exprNode()        {}
func (*Unary) exprNode()         {}
func (*IncDec) exprNode()        {}
func (*Ternary) exprNode()       {}
func (*Match) exprNode()         {}
func (*Instanceof) exprNode()    {}
func (*Isset) exprNode()         {}
func (*Empty) exprNode()         {}
func (*Call) exprNode()          {}
func (*MethodCall) exprNode()    {}
func (*StaticCall) exprNode()    {}
func (*New) exprNode()           {}
func (*PropertyFetch) exprNode() {}
func (*ArrayDimFetch) exprNode() {}
func (*Closure) exprNode()       {}
func (*Cast) exprNode()          {}
