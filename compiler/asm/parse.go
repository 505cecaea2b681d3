package asm

import (
	"context"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	// node is a parsed s-expression.
	node struct {
		Pos  int
		Atom string
		Str  bool

		List bool
		Sub  []*node
	}
)

// Parse reads a module in folded WebAssembly text form.
func Parse(ctx context.Context, text []byte) (m *Module, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "asm: parse module", "size", len(text))
	defer tr.Finish("err", &err)

	x, i, err := parseNode(text, 0)
	if err != nil {
		return nil, errors.Wrap(err, "pos %d", i)
	}

	i = skip(text, i)
	if i != len(text) {
		return nil, errors.New("unexpected text after module at %d", i)
	}

	m, err = module(x)
	if err != nil {
		return nil, err
	}

	if tr.If("dump_asm") {
		tr.Printw("module", "imports", len(m.Imports), "funcs", len(m.Funcs))
	}

	return m, nil
}

func module(x *node) (m *Module, err error) {
	if x.head() != "module" {
		return nil, errors.New("expected module at %d", x.Pos)
	}

	m = &Module{}

	for _, f := range x.Sub[1:] {
		switch f.head() {
		case "import":
			if m.Memory != nil {
				return nil, errors.New("second memory at %d", f.Pos)
			}

			m.Memory, err = memory(f)
		case "func":
			var fn *Func
			var imp *Import

			fn, imp, err = function(f)
			if err != nil {
				break
			}

			if imp != nil {
				m.Imports = append(m.Imports, *imp)
			} else {
				m.Funcs = append(m.Funcs, fn)
			}
		default:
			err = errors.New("unsupported module field %q", f.head())
		}

		if err != nil {
			return nil, errors.Wrap(err, "pos %d", f.Pos)
		}
	}

	return m, nil
}

// memory parses (import "mod" "name" (memory N)).
func memory(x *node) (*Memory, error) {
	if len(x.Sub) != 4 || !x.Sub[1].Str || !x.Sub[2].Str || x.Sub[3].head() != "memory" || len(x.Sub[3].Sub) != 2 {
		return nil, errors.New("bad memory import")
	}

	pages, err := strconv.Atoi(x.Sub[3].Sub[1].Atom)
	if err != nil {
		return nil, errors.Wrap(err, "memory pages")
	}

	return &Memory{
		Module: x.Sub[1].Atom,
		Name:   x.Sub[2].Atom,
		Pages:  pages,
	}, nil
}

func function(x *node) (f *Func, imp *Import, err error) {
	rest := x.Sub[1:]
	f = &Func{}

	if len(rest) != 0 && rest[0].isID() {
		f.Name = rest[0].id()
		rest = rest[1:]
	}

	i := 0

fields:
	for ; i < len(rest); i++ {
		n := rest[i]

		switch n.head() {
		case "import":
			if len(n.Sub) != 3 || !n.Sub[1].Str || !n.Sub[2].Str {
				return nil, nil, errors.New("bad import")
			}

			imp = &Import{Func: f.Name, Module: n.Sub[1].Atom, Name: n.Sub[2].Atom}
		case "export":
			if len(n.Sub) != 2 || !n.Sub[1].Str {
				return nil, nil, errors.New("bad export")
			}

			f.Export = n.Sub[1].Atom
		case "param":
			if len(n.Sub) == 3 && n.Sub[1].isID() {
				f.Params = append(f.Params, n.Sub[1].id())
				continue
			}

			for range n.Sub[1:] {
				f.Params = append(f.Params, "")
			}
		case "result":
			f.Result = true
		case "local":
			if len(n.Sub) != 3 || !n.Sub[1].isID() {
				return nil, nil, errors.New("bad local")
			}

			f.Locals = append(f.Locals, n.Sub[1].id())
		default:
			break fields
		}
	}

	if imp != nil {
		if i != len(rest) {
			return nil, nil, errors.New("imported function %v has a body", f.Name)
		}

		imp.Params = len(f.Params)
		imp.Result = f.Result

		return nil, imp, nil
	}

	f.Body, err = instrs(rest[i:])
	if err != nil {
		return nil, nil, errors.Wrap(err, "func %v", f.Name)
	}

	return f, nil, nil
}

func instrs(l []*node) (r []Instr, err error) {
	for _, n := range l {
		x, err := instr(n)
		if err != nil {
			return nil, err
		}

		r = append(r, x)
	}

	return r, nil
}

func instr(n *node) (x Instr, err error) {
	op := n.head()
	args := n.Sub

	if len(args) != 0 {
		args = args[1:]
	}

	want := func(k int) error {
		if len(args) != k {
			return errors.New("%v: expected %d operands, got %d", op, k, len(args))
		}

		return nil
	}

	switch {
	case op == "i64.const", op == "i32.const":
		if err = want(1); err != nil {
			break
		}

		if args[0].List || args[0].Str {
			return nil, errors.New("%v: expected number", op)
		}

		v, err := strconv.ParseInt(args[0].Atom, 0, 64)
		if err != nil {
			return nil, errors.Wrap(err, "%v", op)
		}

		return Const{Value: v}, nil
	case op == "local.get":
		if err = want(1); err != nil {
			break
		}

		return LocalGet{Name: args[0].id()}, nil
	case op == "local.set":
		if err = want(2); err != nil {
			break
		}

		v, err := instr(args[1])
		if err != nil {
			return nil, err
		}

		return LocalSet{Name: args[0].id(), Value: v}, nil
	case op == "i64.load":
		if err = want(1); err != nil {
			break
		}

		a, err := instr(args[0])
		if err != nil {
			return nil, err
		}

		return Load{Addr: a}, nil
	case op == "i64.store":
		if err = want(2); err != nil {
			break
		}

		ops, err := instrs(args)
		if err != nil {
			return nil, err
		}

		return Store{Addr: ops[0], Value: ops[1]}, nil
	case IsUnary(op):
		if err = want(1); err != nil {
			break
		}

		a, err := instr(args[0])
		if err != nil {
			return nil, err
		}

		return Unary{Op: op, Arg: a}, nil
	case IsBinary(op):
		if err = want(2); err != nil {
			break
		}

		ops, err := instrs(args)
		if err != nil {
			return nil, err
		}

		return Binary{Op: op, L: ops[0], R: ops[1]}, nil
	case op == "call":
		if len(args) == 0 || !args[0].isID() {
			return nil, errors.New("call: expected function name")
		}

		as, err := instrs(args[1:])
		if err != nil {
			return nil, err
		}

		return Call{Func: args[0].id(), Args: as}, nil
	case op == "drop":
		if err = want(1); err != nil {
			break
		}

		v, err := instr(args[0])
		if err != nil {
			return nil, err
		}

		return Drop{Value: v}, nil
	case op == "return":
		if len(args) == 0 {
			return Return{}, nil
		}

		if err = want(1); err != nil {
			break
		}

		v, err := instr(args[0])
		if err != nil {
			return nil, err
		}

		return Return{Value: v}, nil
	case op == "nop":
		return Nop{}, want(0)
	case op == "block", op == "loop":
		body, err := instrs(args)
		if err != nil {
			return nil, errors.Wrap(err, "%v", op)
		}

		if op == "loop" {
			return Loop{Body: body}, nil
		}

		return Block{Body: body}, nil
	case op == "br":
		if err = want(1); err != nil {
			break
		}

		d, err := depth(args[0])
		if err != nil {
			return nil, err
		}

		return Br{Depth: d}, nil
	case op == "br_if":
		if err = want(2); err != nil {
			break
		}

		d, err := depth(args[0])
		if err != nil {
			return nil, err
		}

		c, err := instr(args[1])
		if err != nil {
			return nil, err
		}

		return BrIf{Depth: d, Cond: c}, nil
	case op == "if":
		return ifInstr(args)
	case op == "":
		return nil, errors.New("expected instruction at %d", n.Pos)
	default:
		return nil, errors.New("unsupported instruction %q", op)
	}

	return nil, err
}

// ifInstr parses (if (result i64)? COND (then ...) (else ...)?).
func ifInstr(args []*node) (x If, err error) {
	if len(args) != 0 && args[0].head() == "result" {
		x.Result = true
		args = args[1:]
	}

	if len(args) < 2 {
		return x, errors.New("if: expected condition and then")
	}

	x.Cond, err = instr(args[0])
	if err != nil {
		return x, errors.Wrap(err, "if cond")
	}

	if args[1].head() != "then" {
		return x, errors.New("if: expected then")
	}

	x.Then, err = instrs(args[1].Sub[1:])
	if err != nil {
		return x, errors.Wrap(err, "then")
	}

	switch {
	case len(args) == 2:
	case len(args) == 3 && args[2].head() == "else":
		x.Else, err = instrs(args[2].Sub[1:])
		if err != nil {
			return x, errors.Wrap(err, "else")
		}
	default:
		return x, errors.New("if: unexpected operands")
	}

	return x, nil
}

func depth(n *node) (int, error) {
	d, err := strconv.Atoi(n.Atom)
	if err != nil || d < 0 {
		return 0, errors.New("bad label depth %q", n.Atom)
	}

	return d, nil
}

func parseNode(b []byte, st int) (x *node, i int, err error) {
	i = skip(b, st)
	if i == len(b) {
		return nil, i, errors.New("unexpected end of text")
	}

	switch b[i] {
	case '(':
		x = &node{Pos: i, List: true}
		i++

		for {
			i = skip(b, i)
			if i == len(b) {
				return nil, i, errors.New("unclosed paren at %d", x.Pos)
			}

			if b[i] == ')' {
				return x, i + 1, nil
			}

			var sub *node

			sub, i, err = parseNode(b, i)
			if err != nil {
				return nil, i, err
			}

			x.Sub = append(x.Sub, sub)
		}
	case ')':
		return nil, i, errors.New("unexpected )")
	case '"':
		j := i + 1

		for j < len(b) && b[j] != '"' {
			if b[j] == '\\' {
				j++
			}

			j++
		}

		if j >= len(b) {
			return nil, i, errors.New("unterminated string")
		}

		s, err := strconv.Unquote(string(b[i : j+1]))
		if err != nil {
			return nil, i, errors.Wrap(err, "string")
		}

		return &node{Pos: i, Atom: s, Str: true}, j + 1, nil
	}

	j := i

	for j < len(b) && !delim(b[j]) {
		j++
	}

	return &node{Pos: i, Atom: string(b[i:j])}, j, nil
}

// skip skips spaces and line comments.
func skip(b []byte, i int) int {
	for i < len(b) {
		switch {
		case b[i] == ' ', b[i] == '\t', b[i] == '\n', b[i] == '\r':
			i++
		case b[i] == ';' && i+1 < len(b) && b[i+1] == ';':
			for i < len(b) && b[i] != '\n' {
				i++
			}
		default:
			return i
		}
	}

	return i
}

func delim(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '"', ';':
		return true
	}

	return false
}

func (n *node) head() string {
	if !n.List || len(n.Sub) == 0 || n.Sub[0].List || n.Sub[0].Str {
		return ""
	}

	return n.Sub[0].Atom
}

func (n *node) isID() bool {
	return !n.List && !n.Str && len(n.Atom) > 1 && n.Atom[0] == '$'
}

func (n *node) id() string {
	if !n.isID() {
		return ""
	}

	return n.Atom[1:]
}
