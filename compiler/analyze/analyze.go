package analyze

import (
	"context"
	"strconv"

	"tlog.app/go/tlog"

	"github.com/slowlang/pywat/compiler/ast"
	"github.com/slowlang/pywat/compiler/env"
	"github.com/slowlang/pywat/compiler/set"
	"github.com/slowlang/pywat/compiler/tp"
	"github.com/slowlang/pywat/compiler/value"
)

type (
	// Info is what the checker learned about the program.
	Info struct {
		// Types is the type of every checked expression.
		Types map[ast.Expr]tp.Type
	}

	checker struct {
		info *Info

		ready set.Bitmap // global slots whose initializers are checked
		init  bool       // checking global initializer
		depth int        // nested blocks
	}

	// returns is the return type found in a block, if any.
	returns struct {
		T   tp.Type
		Has bool
	}
)

// Check validates the program. Globals and function signatures
// are registered in e, which the generator uses afterwards.
// The first violation found is returned.
func Check(ctx context.Context, p *ast.Program, e *env.Env) (info *Info, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "analyze: check program", "stmts", len(p.Body))
	defer tr.Finish("err", &err)

	c := &checker{
		info: &Info{Types: make(map[ast.Expr]tp.Type)},
	}

	for _, s := range p.Body {
		err = c.declare(e, s)
		if err != nil {
			return nil, err
		}
	}

	for _, s := range p.Body {
		_, err = c.stmt(ctx, e, s)
		if err != nil {
			return nil, err
		}
	}

	if tr.If("dump_env") {
		for _, b := range e.Globals() {
			tr.Printw("global", "binding", b)
		}

		tr.Printw("initialized", "slots", &c.ready)
	}

	return c.info, nil
}

// declare registers top-level names before anything is checked
// so functions and globals may be referenced before definition.
func (c *checker) declare(e *env.Env, s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.Define:
		if ast.IsBuiltin(s.Name) {
			return newError(DuplicateDeclaration, "function %v redefines intrinsic", s.Name)
		}

		err := e.Reserve(s.Name)
		if err != nil {
			return duplicate(err, s.Name)
		}

		sig := env.Signature{Ret: s.Ret}

		for _, p := range s.Params {
			sig.Params = append(sig.Params, p.Type)
		}

		err = e.DefineFunc(s.Name, sig)
		if err != nil {
			return duplicate(err, s.Name)
		}
	case *ast.DeclStmt:
		_, err := e.DeclareGlobal(s.Decl.Name, s.Decl.Type)
		if err != nil {
			return duplicate(err, s.Decl.Name)
		}
	}

	return nil
}

func (c *checker) stmt(ctx context.Context, s *env.Env, x ast.Stmt) (r returns, err error) {
	switch x := x.(type) {
	case *ast.Pass:
	case *ast.ExprStmt:
		_, err = c.expr(s, x.Value)
	case *ast.DeclStmt:
		if !s.IsTop() || c.depth != 0 {
			return r, newError(UnsupportedConstruct, "declaration of %v inside a block", x.Decl.Name)
		}

		err = c.global(s, x.Decl)
	case *ast.Assign:
		b, ok := s.Lookup(x.Name)
		if !ok {
			return r, newError(UnboundName, "%v", x.Name)
		}

		t, err := c.expr(s, x.Value)
		if err != nil {
			return r, err
		}

		if t != b.Type {
			return r, mismatch("assignment to "+x.Name, b.Type, t)
		}
	case *ast.Return:
		if s.IsTop() {
			return r, newError(UnsupportedConstruct, "return outside function")
		}

		r.T, err = c.expr(s, x.Value)
		r.Has = true
	case *ast.If:
		err = c.cond(s, "if", x.Cond)
		if err != nil {
			return r, err
		}

		thn, err := c.block(ctx, s, x.Then)
		if err != nil {
			return r, err
		}

		els, err := c.block(ctx, s, x.Else)
		if err != nil {
			return r, err
		}

		if thn.Has && els.Has && thn.T != els.T {
			return r, mismatch("return types of if branches", thn.T, els.T)
		}

		r = thn
		if !r.Has {
			r = els
		}
	case *ast.While:
		err = c.cond(s, "while", x.Cond)
		if err != nil {
			return r, err
		}

		r, err = c.block(ctx, s, x.Body)
	case *ast.Define:
		if !s.IsTop() || c.depth != 0 {
			return r, newError(UnsupportedConstruct, "nested definition of %v", x.Name)
		}

		err = c.define(ctx, s, x)
	default:
		return r, newError(UnsupportedConstruct, "statement %T", x)
	}

	return r, err
}

func (c *checker) block(ctx context.Context, s *env.Env, b []ast.Stmt) (r returns, err error) {
	c.depth++
	defer func() { c.depth-- }()

	for _, x := range b {
		sr, err := c.stmt(ctx, s, x)
		if err != nil {
			return r, err
		}

		if !sr.Has {
			continue
		}

		if r.Has && r.T != sr.T {
			return r, mismatch("inconsistent return types in block", r.T, sr.T)
		}

		r = sr
	}

	return r, nil
}

func (c *checker) cond(s *env.Env, what string, x ast.Expr) error {
	t, err := c.expr(s, x)
	if err != nil {
		return err
	}

	if t != tp.Bool {
		return mismatch(what+" condition", tp.Bool, t)
	}

	return nil
}

func (c *checker) global(s *env.Env, d ast.Decl) (err error) {
	c.init = true
	defer func() { c.init = false }()

	t, err := c.expr(s, d.Value)
	if err != nil {
		return err
	}

	if t != d.Type {
		return mismatch("declaration of "+d.Name, d.Type, t)
	}

	if b, ok := s.Lookup(d.Name); ok {
		c.ready.Set(b.Slot)
	}

	return nil
}

func (c *checker) define(ctx context.Context, par *env.Env, d *ast.Define) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "analyze: check function", "name", d.Name, "params", len(d.Params), "ret", d.Ret)
	defer tr.Finish("err", &err)

	s := par.Scope(d.Name)

	for _, p := range d.Params {
		_, err = s.DeclareLocal(p.Name, p.Type)
		if err != nil {
			return duplicate(err, p.Name)
		}
	}

	for _, dc := range d.Decls {
		if s.IsBoundHere(dc.Name) {
			return newError(DuplicateDeclaration, "%v", dc.Name)
		}

		t, err := c.expr(s, dc.Value)
		if err != nil {
			return err
		}

		if t != dc.Type {
			return mismatch("declaration of "+dc.Name, dc.Type, t)
		}

		_, err = s.DeclareLocal(dc.Name, dc.Type)
		if err != nil {
			return duplicate(err, dc.Name)
		}
	}

	r, err := c.block(ctx, s, d.Body)
	if err != nil {
		return err
	}

	if d.Ret != tp.None {
		if len(d.Body) == 0 {
			return mismatch("function "+d.Name+" must end with return", d.Ret, tp.None)
		}

		if _, ok := d.Body[len(d.Body)-1].(*ast.Return); !ok {
			return mismatch("function "+d.Name+" must end with return", d.Ret, tp.None)
		}
	}

	if r.Has && r.T != d.Ret {
		return mismatch("return type of function "+d.Name, d.Ret, r.T)
	}

	return nil
}

func (c *checker) expr(s *env.Env, x ast.Expr) (t tp.Type, err error) {
	switch x := x.(type) {
	case *ast.None:
		t = tp.None
	case *ast.Bool:
		t = tp.Bool
	case *ast.Num:
		if !value.InRange(x.V) {
			return t, newError(IntegerOverflow, "literal %d", x.V)
		}

		t = tp.Int
	case *ast.Ident:
		b, ok := s.Lookup(x.Name)
		if !ok {
			return t, newError(UnboundName, "%v", x.Name)
		}

		if c.init && !b.IsLocal() && !c.ready.IsSet(b.Slot) {
			return t, newError(UnboundName, "%v used before its declaration", x.Name)
		}

		t = b.Type
	case *ast.Unary:
		t, err = c.unary(s, x)
	case *ast.Binary:
		t, err = c.binary(s, x)
	case *ast.Builtin1:
		err = c.builtin(s, x.Name, x.Arg)
		t = tp.Int
	case *ast.Builtin2:
		err = c.builtin(s, x.Name, x.Left, x.Right)
		t = tp.Int
	case *ast.Call:
		t, err = c.call(s, x)
	default:
		return t, newError(UnsupportedConstruct, "expression %T", x)
	}

	if err != nil {
		return t, err
	}

	c.info.Types[x] = t

	return t, nil
}

func (c *checker) unary(s *env.Env, x *ast.Unary) (tp.Type, error) {
	var want tp.Type

	switch x.Op {
	case ast.Neg:
		want = tp.Int
	case ast.Not:
		want = tp.Bool
	default:
		return tp.None, newError(UnsupportedOperator, "unary %v", x.Op)
	}

	t, err := c.expr(s, x.Arg)
	if err != nil {
		return t, err
	}

	if t != want {
		return t, mismatch("operator "+x.Op.String(), want, t)
	}

	return want, nil
}

func (c *checker) binary(s *env.Env, x *ast.Binary) (tp.Type, error) {
	op := x.Op

	if op < ast.Plus || op > ast.Is {
		return tp.None, newError(UnsupportedOperator, "binary %v", op)
	}

	lt, err := c.expr(s, x.Left)
	if err != nil {
		return lt, err
	}

	rt, err := c.expr(s, x.Right)
	if err != nil {
		return rt, err
	}

	operands := func(want tp.Type) error {
		if lt != want {
			return mismatch("left operand of "+op.String(), want, lt)
		}

		if rt != want {
			return mismatch("right operand of "+op.String(), want, rt)
		}

		return nil
	}

	switch {
	case op.IsArith():
		return tp.Int, operands(tp.Int)
	case op.IsOrder():
		return tp.Bool, operands(tp.Int)
	case op.IsEquality():
		if lt != rt {
			return tp.Bool, mismatch("operator "+op.String(), lt, rt)
		}

		return tp.Bool, nil
	case op == ast.Is:
		return tp.Bool, operands(tp.None)
	}

	return tp.None, newError(UnsupportedOperator, "binary %v", op)
}

func (c *checker) builtin(s *env.Env, name string, args ...ast.Expr) error {
	ar := ast.BuiltinArity(name)
	if ar == 0 {
		return newError(UnboundName, "intrinsic %v", name)
	}

	if ar != len(args) {
		return arity(name, ar, len(args))
	}

	for i, a := range args {
		t, err := c.expr(s, a)
		if err != nil {
			return err
		}

		if t != tp.Int {
			return mismatch("argument "+strconv.Itoa(i)+" of "+name, tp.Int, t)
		}
	}

	return nil
}

func (c *checker) call(s *env.Env, x *ast.Call) (tp.Type, error) {
	sig, ok := s.LookupFunc(x.Name)
	if !ok {
		return tp.None, newError(UnboundName, "function %v", x.Name)
	}

	if c.init {
		return tp.None, newError(UnsupportedConstruct, "call to %v in global initializer", x.Name)
	}

	if len(x.Args) != len(sig.Params) {
		return tp.None, arity(x.Name, len(sig.Params), len(x.Args))
	}

	for i, a := range x.Args {
		t, err := c.expr(s, a)
		if err != nil {
			return t, err
		}

		if t != sig.Params[i] {
			return t, mismatch("argument "+strconv.Itoa(i)+" of "+x.Name, sig.Params[i], t)
		}
	}

	return sig.Ret, nil
}

func arity(name string, want, got int) *Error {
	return &Error{
		Kind:     ArityMismatch,
		Subject:  "call to " + name,
		Expected: strconv.Itoa(want) + " arguments",
		Actual:   strconv.Itoa(got),
	}
}

func duplicate(err error, name string) error {
	if dup, ok := err.(env.DuplicateError); ok {
		return newError(DuplicateDeclaration, "%v", dup.Name)
	}

	return err
}
