package ast

import "github.com/slowlang/pywat/compiler/tp"

type (
	Node interface {
		node()
	}

	Stmt interface {
		Node
		stmt()
	}

	Expr interface {
		Node
		expr()
	}

	Op int

	Program struct {
		Body []Stmt
	}

	Param struct {
		Name string
		Type tp.Type
	}

	Decl struct {
		Name  string
		Type  tp.Type
		Value Expr
	}

	// Statements.

	Assign struct {
		Name  string
		Value Expr
	}

	DeclStmt struct {
		Decl Decl
	}

	Define struct {
		Name   string
		Params []Param
		Ret    tp.Type
		Decls  []Decl
		Body   []Stmt
	}

	Return struct {
		Value Expr
	}

	If struct {
		Cond Expr
		Then []Stmt
		Else []Stmt
	}

	While struct {
		Cond Expr
		Body []Stmt
	}

	ExprStmt struct {
		Value Expr
	}

	Pass struct{}

	// Expressions.

	None struct{}

	Bool struct {
		V bool
	}

	Num struct {
		V int64
	}

	Ident struct {
		Name string
	}

	Unary struct {
		Op  Op
		Arg Expr
	}

	Binary struct {
		Op    Op
		Left  Expr
		Right Expr
	}

	Builtin1 struct {
		Name string
		Arg  Expr
	}

	Builtin2 struct {
		Name  string
		Left  Expr
		Right Expr
	}

	Call struct {
		Name string
		Args []Expr
	}
)

const (
	Plus Op = iota
	Minus
	Times
	Div
	Mod

	Eq
	Neq
	Leq
	Geq
	Lt
	Gt
	Is

	Neg
	Not

	opEnd
)

var opNames = [opEnd]string{
	Plus:  "+",
	Minus: "-",
	Times: "*",
	Div:   "//",
	Mod:   "%",
	Eq:    "==",
	Neq:   "!=",
	Leq:   "<=",
	Geq:   ">=",
	Lt:    "<",
	Gt:    ">",
	Is:    "is",
	Neg:   "-",
	Not:   "not",
}

// Intrinsic procedures supplied by the host, by arity.
var (
	Builtins1 = []string{"print", "abs"}
	Builtins2 = []string{"max", "min", "pow"}
)

func (op Op) String() string {
	if op < 0 || op >= opEnd {
		return "<invalid op>"
	}

	return opNames[op]
}

func (op Op) IsArith() bool { return op >= Plus && op <= Mod }
func (op Op) IsOrder() bool { return op >= Leq && op <= Gt }
func (op Op) IsUnary() bool { return op == Neg || op == Not }

func (op Op) IsEquality() bool { return op == Eq || op == Neq }

// ParseBinary returns the binary operator spelled s.
func ParseBinary(s string) (Op, bool) {
	for op := Plus; op <= Is; op++ {
		if opNames[op] == s {
			return op, true
		}
	}

	return 0, false
}

func ParseUnary(s string) (Op, bool) {
	switch s {
	case "-":
		return Neg, true
	case "not":
		return Not, true
	}

	return 0, false
}

// IsBuiltin reports whether name is an intrinsic procedure of any arity.
func IsBuiltin(name string) bool {
	return BuiltinArity(name) != 0
}

func BuiltinArity(name string) int {
	for _, n := range Builtins1 {
		if n == name {
			return 1
		}
	}

	for _, n := range Builtins2 {
		if n == name {
			return 2
		}
	}

	return 0
}

func (*Assign) node()   {}
func (*DeclStmt) node() {}
func (*Define) node()   {}
func (*Return) node()   {}
func (*If) node()       {}
func (*While) node()    {}
func (*ExprStmt) node() {}
func (*Pass) node()     {}

func (*Assign) stmt()   {}
func (*DeclStmt) stmt() {}
func (*Define) stmt()   {}
func (*Return) stmt()   {}
func (*If) stmt()       {}
func (*While) stmt()    {}
func (*ExprStmt) stmt() {}
func (*Pass) stmt()     {}

func (*None) node()     {}
func (*Bool) node()     {}
func (*Num) node()      {}
func (*Ident) node()    {}
func (*Unary) node()    {}
func (*Binary) node()   {}
func (*Builtin1) node() {}
func (*Builtin2) node() {}
func (*Call) node()     {}

func (*None) expr()     {}
func (*Bool) expr()     {}
func (*Num) expr()      {}
func (*Ident) expr()    {}
func (*Unary) expr()    {}
func (*Binary) expr()   {}
func (*Builtin1) expr() {}
func (*Builtin2) expr() {}
func (*Call) expr()     {}
