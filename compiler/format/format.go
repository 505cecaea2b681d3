package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/pywat/compiler/ast"
	"github.com/slowlang/pywat/compiler/tp"
)

// Format renders the program as source text.
func Format(ctx context.Context, b []byte, p *ast.Program) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "format: program", "stmts", len(p.Body))
	defer tr.Finish("err", &err)

	for i, s := range p.Body {
		if _, ok := s.(*ast.Define); ok && i != 0 {
			b = append(b, '\n')
		}

		b, err = formatStmt(ctx, b, s, 0)
		if err != nil {
			return nil, errors.Wrap(err, "stmt %d", i)
		}
	}

	return b, nil
}

func formatFunc(ctx context.Context, b []byte, x *ast.Define, d int) (_ []byte, err error) {
	b = app(b, d, "def %v(", x.Name)

	for i, a := range x.Params {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = app(b, 0, "%v: %v", a.Name, typ(a.Type))
	}

	b = append(b, ")"...)

	if x.Ret != tp.None {
		b = app(b, 0, " -> %v", typ(x.Ret))
	}

	b = append(b, ":\n"...)

	if len(x.Decls) == 0 && len(x.Body) == 0 {
		return app(b, d+1, "pass\n"), nil
	}

	for _, dc := range x.Decls {
		b, err = formatDecl(ctx, b, dc, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "decl %v", dc.Name)
		}
	}

	b, err = formatBlock(ctx, b, x.Body, d+1)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	return b, nil
}

func formatDecl(ctx context.Context, b []byte, x ast.Decl, d int) (_ []byte, err error) {
	b = app(b, d, "%v: %v = ", x.Name, typ(x.Type))

	b, err = formatExpr(ctx, b, x.Value)
	if err != nil {
		return nil, err
	}

	b = append(b, '\n')

	return b, nil
}

func formatBlock(ctx context.Context, b []byte, x []ast.Stmt, d int) (_ []byte, err error) {
	if len(x) == 0 {
		return app(b, d, "pass\n"), nil
	}

	for _, s := range x {
		b, err = formatStmt(ctx, b, s, d)
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

func formatStmt(ctx context.Context, b []byte, s ast.Stmt, d int) (_ []byte, err error) {
	switch s := s.(type) {
	case *ast.Pass:
		b = app(b, d, "pass\n")
	case *ast.ExprStmt:
		b = app(b, d, "")

		b, err = formatExpr(ctx, b, s.Value)
		if err != nil {
			return nil, errors.Wrap(err, "expr")
		}

		b = append(b, '\n')
	case *ast.Return:
		b = app(b, d, "return")

		if _, ok := s.Value.(*ast.None); !ok {
			b = append(b, ' ')

			b, err = formatExpr(ctx, b, s.Value)
			if err != nil {
				return nil, errors.Wrap(err, "return")
			}
		}

		b = append(b, '\n')
	case *ast.Assign:
		b = app(b, d, "%v = ", s.Name)

		b, err = formatExpr(ctx, b, s.Value)
		if err != nil {
			return nil, errors.Wrap(err, "assign %v", s.Name)
		}

		b = append(b, '\n')
	case *ast.DeclStmt:
		b, err = formatDecl(ctx, b, s.Decl, d)
		if err != nil {
			return nil, errors.Wrap(err, "decl %v", s.Decl.Name)
		}
	case *ast.Define:
		b, err = formatFunc(ctx, b, s, d)
		if err != nil {
			return nil, errors.Wrap(err, "def %v", s.Name)
		}
	case *ast.If:
		b = app(b, d, "if ")

		b, err = formatExpr(ctx, b, s.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		b = append(b, ":\n"...)

		b, err = formatBlock(ctx, b, s.Then, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "then block")
		}

		if len(s.Else) != 0 {
			b = app(b, d, "else:\n")

			b, err = formatBlock(ctx, b, s.Else, d+1)
			if err != nil {
				return nil, errors.Wrap(err, "else block")
			}
		}
	case *ast.While:
		b = app(b, d, "while ")

		b, err = formatExpr(ctx, b, s.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		b = append(b, ":\n"...)

		b, err = formatBlock(ctx, b, s.Body, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "while body")
		}
	default:
		return nil, errors.New("unsupported stmt: %T", s)
	}

	return b, nil
}

func formatExpr(ctx context.Context, b []byte, x ast.Expr) (_ []byte, err error) {
	switch x := x.(type) {
	case *ast.None:
		b = append(b, "None"...)
	case *ast.Bool:
		if x.V {
			b = append(b, "True"...)
		} else {
			b = append(b, "False"...)
		}
	case *ast.Num:
		b = hfmt.Appendf(b, "%d", x.V)
	case *ast.Ident:
		b = append(b, x.Name...)
	case *ast.Unary:
		b = append(b, x.Op.String()...)

		if x.Op == ast.Not {
			b = append(b, ' ')
		}

		b, err = operand(ctx, b, x.Arg)
		if err != nil {
			return nil, errors.Wrap(err, "arg")
		}
	case *ast.Binary:
		b, err = operand(ctx, b, x.Left)
		if err != nil {
			return nil, errors.Wrap(err, "left")
		}

		b = hfmt.Appendf(b, " %s ", x.Op.String())

		b, err = operand(ctx, b, x.Right)
		if err != nil {
			return nil, errors.Wrap(err, "right")
		}
	case *ast.Builtin1:
		return call(ctx, b, x.Name, x.Arg)
	case *ast.Builtin2:
		return call(ctx, b, x.Name, x.Left, x.Right)
	case *ast.Call:
		return call(ctx, b, x.Name, x.Args...)
	default:
		return nil, errors.New("unsupported expr: %T", x)
	}

	return b, nil
}

// operand parenthesizes compound subexpressions.
func operand(ctx context.Context, b []byte, x ast.Expr) (_ []byte, err error) {
	switch x.(type) {
	case *ast.Unary, *ast.Binary:
	default:
		return formatExpr(ctx, b, x)
	}

	b = append(b, '(')

	b, err = formatExpr(ctx, b, x)
	if err != nil {
		return nil, err
	}

	b = append(b, ')')

	return b, nil
}

func call(ctx context.Context, b []byte, name string, args ...ast.Expr) (_ []byte, err error) {
	b = append(b, name...)
	b = append(b, '(')

	for i, a := range args {
		if i != 0 {
			b = append(b, ", "...)
		}

		b, err = formatExpr(ctx, b, a)
		if err != nil {
			return nil, errors.Wrap(err, "%v: arg %d", name, i)
		}
	}

	b = append(b, ')')

	return b, nil
}

func typ(t tp.Type) string {
	if t == tp.None {
		return "None"
	}

	return t.String()
}

func app(b []byte, d int, f string, args ...any) []byte {
	const spaces = "                                                                "

	for n := d * 4; n > 0; {
		k := min(n, len(spaces))
		b = append(b, spaces[:k]...)
		n -= k
	}

	b = hfmt.Appendf(b, f, args...)

	return b
}
