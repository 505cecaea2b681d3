package asm

type (
	// Module is a WebAssembly text module restricted to
	// the subset the back end emits.
	Module struct {
		Memory  *Memory
		Imports []Import
		Funcs   []*Func
	}

	Memory struct {
		Module string
		Name   string
		Pages  int
	}

	// Import is a host function bound to a local name.
	Import struct {
		Func   string
		Module string
		Name   string

		Params int
		Result bool
	}

	Func struct {
		Name   string
		Export string

		Params []string
		Result bool
		Locals []string

		Body []Instr
	}

	Instr any

	Const struct {
		Value int64
	}

	LocalGet struct {
		Name string
	}

	LocalSet struct {
		Name  string
		Value Instr
	}

	Load struct {
		Addr Instr
	}

	Store struct {
		Addr  Instr
		Value Instr
	}

	Unary struct {
		Op  string
		Arg Instr
	}

	Binary struct {
		Op string
		L  Instr
		R  Instr
	}

	Call struct {
		Func string
		Args []Instr
	}

	Drop struct {
		Value Instr
	}

	Return struct {
		Value Instr // nil if none
	}

	Nop struct{}

	Block struct {
		Body []Instr
	}

	Loop struct {
		Body []Instr
	}

	Br struct {
		Depth int
	}

	BrIf struct {
		Depth int
		Cond  Instr
	}

	If struct {
		Result bool
		Cond   Instr
		Then   []Instr
		Else   []Instr
	}
)

var unaryOps = map[string]struct{}{
	"i64.eqz":          {},
	"i64.extend_i32_u": {},
	"i64.extend_i32_s": {},
}

var binaryOps = map[string]struct{}{
	"i64.add":   {},
	"i64.sub":   {},
	"i64.mul":   {},
	"i64.div_s": {},
	"i64.rem_s": {},
	"i64.and":   {},
	"i64.or":    {},
	"i64.xor":   {},
	"i64.shl":   {},
	"i64.shr_s": {},
	"i64.shr_u": {},
	"i64.eq":    {},
	"i64.ne":    {},
	"i64.lt_s":  {},
	"i64.gt_s":  {},
	"i64.le_s":  {},
	"i64.ge_s":  {},
}

func IsUnary(op string) bool {
	_, ok := unaryOps[op]
	return ok
}

func IsBinary(op string) bool {
	_, ok := binaryOps[op]
	return ok
}

// Lookup finds a defined function by name.
func (m *Module) Lookup(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// Exported finds a function by its export name.
func (m *Module) Exported(name string) *Func {
	for _, f := range m.Funcs {
		if f.Export == name {
			return f
		}
	}

	return nil
}
