package back

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/pywat/compiler/ast"
	"github.com/slowlang/pywat/compiler/env"
	"github.com/slowlang/pywat/compiler/value"
)

type (
	Compiler struct{}

	UnboundError struct {
		Name string
	}
)

// Names the emitted module is linked against.
const (
	MemoryModule = "js"
	MemoryName   = "memory"
	HostModule   = "imports"
	Entry        = "_start"

	scratch = "scratch"
)

var arith = map[ast.Op]string{
	ast.Plus:  "i64.add",
	ast.Minus: "i64.sub",
	ast.Times: "i64.mul",
	ast.Div:   "i64.div_s",
	ast.Mod:   "i64.rem_s",
}

var rel = map[ast.Op]string{
	ast.Eq:  "i64.eq",
	ast.Neq: "i64.ne",
	ast.Leq: "i64.le_s",
	ast.Geq: "i64.ge_s",
	ast.Lt:  "i64.lt_s",
	ast.Gt:  "i64.gt_s",
	ast.Is:  "i64.eq",
}

func New() *Compiler { return &Compiler{} }

// Generate emits WebAssembly text for the checked program.
// e must be the environment the program was checked in.
func Generate(ctx context.Context, p *ast.Program, e *env.Env) ([]byte, error) {
	return New().CompileProgram(ctx, nil, p, e)
}

func (c *Compiler) CompileProgram(ctx context.Context, b []byte, p *ast.Program, e *env.Env) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile program", "stmts", len(p.Body), "globals", e.Slots())
	defer tr.Finish("err", &err)

	st := len(b)

	b = append(b, "(module\n"...)
	b = app(b, 1, "(import %q %q (memory %d))\n", MemoryModule, MemoryName, e.MemoryPages())

	for _, n := range ast.Builtins1 {
		b = app(b, 1, "(func $%s (import %q %q) (param i64) (result i64))\n", n, HostModule, n)
	}

	for _, n := range ast.Builtins2 {
		b = app(b, 1, "(func $%s (import %q %q) (param i64) (param i64) (result i64))\n", n, HostModule, n)
	}

	for _, s := range p.Body {
		d, ok := s.(*ast.Define)
		if !ok {
			continue
		}

		b, err = c.compileFunc(ctx, b, e, d)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", d.Name)
		}
	}

	b, err = c.compileEntry(ctx, b, e, p)
	if err != nil {
		return nil, errors.Wrap(err, "entry")
	}

	b = append(b, ")\n"...)

	if tr.If("dump_wat") {
		tr.Printw("wat", "text", b[st:])
	}

	return b, nil
}

func (c *Compiler) compileFunc(ctx context.Context, b []byte, par *env.Env, d *ast.Define) (_ []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "compile func", "name", d.Name, "params", len(d.Params), "decls", len(d.Decls))
	defer tr.Finish("err", &err)

	s := par.Scope(d.Name)

	b = app(b, 1, "(func $%s", d.Name)

	for _, p := range d.Params {
		b = hfmt.Appendf(b, " (param $%s i64)", p.Name)

		_, err = s.DeclareLocal(p.Name, p.Type)
		if err != nil {
			return nil, errors.Wrap(err, "param")
		}
	}

	b = append(b, " (result i64)\n"...)

	for _, dc := range d.Decls {
		b = app(b, 2, "(local $%s i64)\n", dc.Name)
	}

	for _, dc := range d.Decls {
		b = app(b, 2, "(local.set $%s ", dc.Name)

		b, err = c.expr(b, s, dc.Value)
		if err != nil {
			return nil, errors.Wrap(err, "decl %v", dc.Name)
		}

		b = append(b, ")\n"...)

		_, err = s.DeclareLocal(dc.Name, dc.Type)
		if err != nil {
			return nil, errors.Wrap(err, "decl")
		}
	}

	b, err = c.block(b, 2, s, d.Body)
	if err != nil {
		return nil, err
	}

	// falling off the end returns None
	b = app(b, 2, "(i64.const %d)\n", value.None)
	b = app(b, 1, ")\n")

	return b, nil
}

func (c *Compiler) compileEntry(ctx context.Context, b []byte, e *env.Env, p *ast.Program) (_ []byte, err error) {
	var result bool

	if l := len(p.Body); l != 0 {
		_, result = p.Body[l-1].(*ast.ExprStmt)
	}

	b = app(b, 1, "(func (export %q)", Entry)

	if result {
		b = append(b, " (result i64)"...)
	}

	b = append(b, '\n')
	b = app(b, 2, "(local $%s i64)\n", scratch)

	for _, s := range p.Body {
		d, ok := s.(*ast.DeclStmt)
		if !ok {
			continue
		}

		b, err = c.decl(b, 2, e, d.Decl)
		if err != nil {
			return nil, err
		}
	}

	for _, s := range p.Body {
		switch s.(type) {
		case *ast.Define, *ast.DeclStmt:
			continue
		}

		b, err = c.stmt(b, 2, e, s)
		if err != nil {
			return nil, err
		}
	}

	if result {
		b = app(b, 2, "(i64.shr_s (local.get $%s) (i64.const 1))\n", scratch)
	}

	b = app(b, 1, ")\n")

	return b, nil
}

func (c *Compiler) block(b []byte, d int, s *env.Env, body []ast.Stmt) (_ []byte, err error) {
	for _, x := range body {
		b, err = c.stmt(b, d, s, x)
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (c *Compiler) stmt(b []byte, d int, s *env.Env, x ast.Stmt) (_ []byte, err error) {
	switch x := x.(type) {
	case *ast.Pass:
		b = app(b, d, "(nop)\n")
	case *ast.DeclStmt:
		return c.decl(b, d, s, x.Decl)
	case *ast.Assign:
		return c.store(b, d, s, x.Name, x.Value)
	case *ast.ExprStmt:
		if s.IsTop() {
			b = app(b, d, "(local.set $%s ", scratch)
		} else {
			b = app(b, d, "(drop ")
		}

		b, err = c.expr(b, s, x.Value)
		if err != nil {
			return nil, err
		}

		b = append(b, ")\n"...)
	case *ast.Return:
		b = app(b, d, "(return ")

		b, err = c.expr(b, s, x.Value)
		if err != nil {
			return nil, err
		}

		b = append(b, ")\n"...)
	case *ast.If:
		b = app(b, d, "(if (i64.eq (i64.const %d) ", value.True)

		b, err = c.expr(b, s, x.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "if cond")
		}

		b = append(b, ")\n"...)
		b = app(b, d+1, "(then\n")

		b, err = c.block(b, d+2, s, x.Then)
		if err != nil {
			return nil, err
		}

		b = app(b, d+1, ")\n")
		b = app(b, d+1, "(else\n")

		b, err = c.block(b, d+2, s, x.Else)
		if err != nil {
			return nil, err
		}

		b = app(b, d+1, ")\n")
		b = app(b, d, ")\n")
	case *ast.While:
		b = app(b, d, "(block\n")
		b = app(b, d+1, "(loop\n")
		b = app(b, d+2, "(br_if 1 (i64.eq (i64.const %d) ", value.False)

		b, err = c.expr(b, s, x.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "while cond")
		}

		b = append(b, "))\n"...)

		b, err = c.block(b, d+2, s, x.Body)
		if err != nil {
			return nil, err
		}

		b = app(b, d+2, "(br 0)\n")
		b = app(b, d+1, ")\n")
		b = app(b, d, ")\n")
	default:
		return nil, errors.New("unsupported stmt: %T", x)
	}

	return b, nil
}

func (c *Compiler) decl(b []byte, d int, s *env.Env, x ast.Decl) (_ []byte, err error) {
	return c.store(b, d, s, x.Name, x.Value)
}

func (c *Compiler) store(b []byte, d int, s *env.Env, name string, val ast.Expr) (_ []byte, err error) {
	v, ok := s.Lookup(name)
	if !ok {
		return nil, UnboundError{Name: name}
	}

	if v.IsLocal() {
		b = app(b, d, "(local.set $%s ", name)
	} else {
		b = app(b, d, "(i64.store (i32.const %d) ", v.Addr())
	}

	b, err = c.expr(b, s, val)
	if err != nil {
		return nil, errors.Wrap(err, "%v", name)
	}

	if v.IsLocal() {
		b = append(b, ")\n"...)
	} else {
		b = hfmt.Appendf(b, ") ;; %s\n", name)
	}

	return b, nil
}

func (c *Compiler) expr(b []byte, s *env.Env, x ast.Expr) (_ []byte, err error) {
	switch x := x.(type) {
	case *ast.None:
		b = hfmt.Appendf(b, "(i64.const %d)", value.None)
	case *ast.Bool:
		b = hfmt.Appendf(b, "(i64.const %d)", value.EncodeBool(x.V))
	case *ast.Num:
		b = hfmt.Appendf(b, "(i64.const %d)", value.Encode(x.V))
	case *ast.Ident:
		v, ok := s.Lookup(x.Name)
		if !ok {
			return nil, UnboundError{Name: x.Name}
		}

		if v.IsLocal() {
			b = hfmt.Appendf(b, "(local.get $%s)", x.Name)
		} else {
			b = hfmt.Appendf(b, "(i64.load (i32.const %d))", v.Addr())
		}
	case *ast.Unary:
		// -e(n) = 2-e(n), not e(b) = 6-e(b)
		k := 2
		if x.Op == ast.Not {
			k = 6
		}

		b = hfmt.Appendf(b, "(i64.sub (i64.const %d) ", k)

		b, err = c.expr(b, s, x.Arg)
		if err != nil {
			return nil, err
		}

		b = append(b, ')')
	case *ast.Binary:
		return c.binary(b, s, x)
	case *ast.Builtin1:
		return c.call(b, s, x.Name, x.Arg)
	case *ast.Builtin2:
		return c.call(b, s, x.Name, x.Left, x.Right)
	case *ast.Call:
		return c.call(b, s, x.Name, x.Args...)
	default:
		return nil, errors.New("unsupported expr: %T", x)
	}

	return b, nil
}

func (c *Compiler) binary(b []byte, s *env.Env, x *ast.Binary) (_ []byte, err error) {
	if op, ok := arith[x.Op]; ok {
		b = hfmt.Appendf(b, "(i64.or (i64.shl (%s ", op)

		b, err = c.decode(b, s, x.Left)
		if err != nil {
			return nil, err
		}

		b = append(b, ' ')

		b, err = c.decode(b, s, x.Right)
		if err != nil {
			return nil, err
		}

		b = append(b, ") (i64.const 1)) (i64.const 1))"...)

		return b, nil
	}

	op, ok := rel[x.Op]
	if !ok {
		return nil, errors.New("unsupported operator: %v", x.Op)
	}

	// False + 2*cmp gives tagged bool without branching
	b = hfmt.Appendf(b, "(i64.add (i64.const %d) (i64.shl (i64.extend_i32_u (%s ", value.False, op)

	b, err = c.expr(b, s, x.Left)
	if err != nil {
		return nil, err
	}

	b = append(b, ' ')

	b, err = c.expr(b, s, x.Right)
	if err != nil {
		return nil, err
	}

	b = append(b, ")) (i64.const 1)))"...)

	return b, nil
}

func (c *Compiler) decode(b []byte, s *env.Env, x ast.Expr) (_ []byte, err error) {
	b = append(b, "(i64.shr_s "...)

	b, err = c.expr(b, s, x)
	if err != nil {
		return nil, err
	}

	b = append(b, " (i64.const 1))"...)

	return b, nil
}

func (c *Compiler) call(b []byte, s *env.Env, name string, args ...ast.Expr) (_ []byte, err error) {
	b = hfmt.Appendf(b, "(call $%s", name)

	for i, a := range args {
		b = append(b, ' ')

		b, err = c.expr(b, s, a)
		if err != nil {
			return nil, errors.Wrap(err, "%v: arg %d", name, i)
		}
	}

	b = append(b, ')')

	return b, nil
}

func (e UnboundError) Error() string {
	return "unbound name: " + e.Name
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"

	for d > len(tabs) {
		b = append(b, tabs...)
		d -= len(tabs)
	}

	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)

	return b
}
