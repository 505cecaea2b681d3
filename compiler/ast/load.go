package ast

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/slowlang/pywat/compiler/tp"
)

type (
	loader struct{}
)

// LoadFile reads a program from YAML AST document.
func LoadFile(name string) (*Program, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	return Load(data)
}

// Load builds a Program from YAML AST document.
// The document is a sequence of statements.
func Load(data []byte) (p *Program, err error) {
	var doc yaml.Node

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	var l loader

	root := &doc
	if root.Kind == 0 {
		return &Program{}, nil
	}

	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return &Program{}, nil
		}

		root = root.Content[0]
	}

	body, err := l.stmts(root)
	if err != nil {
		return nil, err
	}

	return &Program{Body: body}, nil
}

func (l loader) stmts(n *yaml.Node) (s []Stmt, err error) {
	if isNull(n) {
		return nil, nil
	}

	if n.Kind != yaml.SequenceNode {
		return nil, errors.New("line %d: statement list expected, got %v", n.Line, kind(n))
	}

	for i, x := range n.Content {
		st, err := l.stmt(x)
		if err != nil {
			return nil, errors.Wrap(err, "stmt %d", i)
		}

		s = append(s, st)
	}

	return s, nil
}

func (l loader) stmt(n *yaml.Node) (_ Stmt, err error) {
	if n.Kind == yaml.ScalarNode && n.Value == "pass" {
		return &Pass{}, nil
	}

	tag, v, err := variant(n)
	if err != nil {
		return nil, err
	}

	switch tag {
	case "pass":
		return &Pass{}, nil
	case "expr":
		x, err := l.expr(v)
		if err != nil {
			return nil, errors.Wrap(err, "expr")
		}

		return &ExprStmt{Value: x}, nil
	case "return":
		x := Expr(&None{})

		if !isNull(v) {
			x, err = l.expr(v)
			if err != nil {
				return nil, errors.Wrap(err, "return")
			}
		}

		return &Return{Value: x}, nil
	case "decl":
		d, err := l.decl(v)
		if err != nil {
			return nil, errors.Wrap(err, "decl")
		}

		return &DeclStmt{Decl: d}, nil
	case "assign":
		f, err := fields(v, "name", "value")
		if err != nil {
			return nil, errors.Wrap(err, "assign")
		}

		name, err := ident(f["name"])
		if err != nil {
			return nil, errors.Wrap(err, "assign name")
		}

		x, err := l.expr(f["value"])
		if err != nil {
			return nil, errors.Wrap(err, "assign %v", name)
		}

		return &Assign{Name: name, Value: x}, nil
	case "if":
		f, err := fields(v, "cond", "then", "else")
		if err != nil {
			return nil, errors.Wrap(err, "if")
		}

		c, err := l.expr(f["cond"])
		if err != nil {
			return nil, errors.Wrap(err, "if cond")
		}

		thn, err := l.stmts(f["then"])
		if err != nil {
			return nil, errors.Wrap(err, "if then")
		}

		els, err := l.stmts(f["else"])
		if err != nil {
			return nil, errors.Wrap(err, "if else")
		}

		return &If{Cond: c, Then: thn, Else: els}, nil
	case "while":
		f, err := fields(v, "cond", "body")
		if err != nil {
			return nil, errors.Wrap(err, "while")
		}

		c, err := l.expr(f["cond"])
		if err != nil {
			return nil, errors.Wrap(err, "while cond")
		}

		body, err := l.stmts(f["body"])
		if err != nil {
			return nil, errors.Wrap(err, "while body")
		}

		return &While{Cond: c, Body: body}, nil
	case "define":
		return l.define(v)
	default:
		return nil, errors.New("line %d: unsupported statement: %v", n.Line, tag)
	}
}

func (l loader) define(v *yaml.Node) (_ Stmt, err error) {
	f, err := fields(v, "name", "params", "ret", "decls", "body")
	if err != nil {
		return nil, errors.Wrap(err, "define")
	}

	d := &Define{}

	d.Name, err = ident(f["name"])
	if err != nil {
		return nil, errors.Wrap(err, "define name")
	}

	d.Ret, err = typ(f["ret"])
	if err != nil {
		return nil, errors.Wrap(err, "define %v: ret", d.Name)
	}

	if ps := f["params"]; !isNull(ps) {
		if ps.Kind != yaml.SequenceNode {
			return nil, errors.New("line %d: define %v: params: sequence expected", ps.Line, d.Name)
		}

		for i, p := range ps.Content {
			pf, err := fields(p, "name", "type")
			if err != nil {
				return nil, errors.Wrap(err, "define %v: param %d", d.Name, i)
			}

			var par Param

			par.Name, err = ident(pf["name"])
			if err != nil {
				return nil, errors.Wrap(err, "define %v: param %d", d.Name, i)
			}

			par.Type, err = typ(pf["type"])
			if err != nil {
				return nil, errors.Wrap(err, "define %v: param %v", d.Name, par.Name)
			}

			d.Params = append(d.Params, par)
		}
	}

	if ds := f["decls"]; !isNull(ds) {
		if ds.Kind != yaml.SequenceNode {
			return nil, errors.New("line %d: define %v: decls: sequence expected", ds.Line, d.Name)
		}

		for i, x := range ds.Content {
			dc, err := l.decl(x)
			if err != nil {
				return nil, errors.Wrap(err, "define %v: decl %d", d.Name, i)
			}

			d.Decls = append(d.Decls, dc)
		}
	}

	d.Body, err = l.stmts(f["body"])
	if err != nil {
		return nil, errors.Wrap(err, "define %v: body", d.Name)
	}

	return d, nil
}

func (l loader) decl(v *yaml.Node) (d Decl, err error) {
	f, err := fields(v, "name", "type", "value")
	if err != nil {
		return d, err
	}

	d.Name, err = ident(f["name"])
	if err != nil {
		return d, errors.Wrap(err, "name")
	}

	d.Type, err = typ(f["type"])
	if err != nil {
		return d, errors.Wrap(err, "%v: type", d.Name)
	}

	d.Value, err = l.expr(f["value"])
	if err != nil {
		return d, errors.Wrap(err, "%v: value", d.Name)
	}

	return d, nil
}

func (l loader) expr(n *yaml.Node) (_ Expr, err error) {
	if n == nil {
		return nil, errors.New("expression expected")
	}

	if n.Kind == yaml.ScalarNode {
		return scalar(n)
	}

	tag, v, err := variant(n)
	if err != nil {
		return nil, err
	}

	switch tag {
	case "none":
		return &None{}, nil
	case "num", "bool", "id":
		x, err := scalar(v)
		if err != nil {
			return nil, errors.Wrap(err, "%v", tag)
		}

		return x, nil
	case "unary":
		f, err := fields(v, "op", "arg")
		if err != nil {
			return nil, errors.Wrap(err, "unary")
		}

		op, ok := ParseUnary(str(f["op"]))
		if !ok {
			return nil, errors.New("line %d: unsupported unary operator: %q", v.Line, str(f["op"]))
		}

		arg, err := l.expr(f["arg"])
		if err != nil {
			return nil, errors.Wrap(err, "unary %v", op)
		}

		return &Unary{Op: op, Arg: arg}, nil
	case "binary":
		f, err := fields(v, "op", "left", "right")
		if err != nil {
			return nil, errors.Wrap(err, "binary")
		}

		op, ok := ParseBinary(str(f["op"]))
		if !ok {
			return nil, errors.New("line %d: unsupported binary operator: %q", v.Line, str(f["op"]))
		}

		left, err := l.expr(f["left"])
		if err != nil {
			return nil, errors.Wrap(err, "binary %v: left", op)
		}

		right, err := l.expr(f["right"])
		if err != nil {
			return nil, errors.Wrap(err, "binary %v: right", op)
		}

		return &Binary{Op: op, Left: left, Right: right}, nil
	case "builtin1":
		f, err := fields(v, "name", "arg")
		if err != nil {
			return nil, errors.Wrap(err, "builtin1")
		}

		name, err := ident(f["name"])
		if err != nil {
			return nil, errors.Wrap(err, "builtin1 name")
		}

		arg, err := l.expr(f["arg"])
		if err != nil {
			return nil, errors.Wrap(err, "%v", name)
		}

		return &Builtin1{Name: name, Arg: arg}, nil
	case "builtin2":
		f, err := fields(v, "name", "left", "right")
		if err != nil {
			return nil, errors.Wrap(err, "builtin2")
		}

		name, err := ident(f["name"])
		if err != nil {
			return nil, errors.Wrap(err, "builtin2 name")
		}

		left, err := l.expr(f["left"])
		if err != nil {
			return nil, errors.Wrap(err, "%v: left", name)
		}

		right, err := l.expr(f["right"])
		if err != nil {
			return nil, errors.Wrap(err, "%v: right", name)
		}

		return &Builtin2{Name: name, Left: left, Right: right}, nil
	case "call":
		f, err := fields(v, "name", "args")
		if err != nil {
			return nil, errors.Wrap(err, "call")
		}

		name, err := ident(f["name"])
		if err != nil {
			return nil, errors.Wrap(err, "call name")
		}

		// Calls to intrinsics are written as calls in source.
		if ar := BuiltinArity(name); ar != 0 {
			return l.builtin(name, ar, f["args"])
		}

		c := &Call{Name: name}

		if as := f["args"]; !isNull(as) {
			if as.Kind != yaml.SequenceNode {
				return nil, errors.New("line %d: call %v: args: sequence expected", as.Line, name)
			}

			for i, a := range as.Content {
				x, err := l.expr(a)
				if err != nil {
					return nil, errors.Wrap(err, "call %v: arg %d", name, i)
				}

				c.Args = append(c.Args, x)
			}
		}

		return c, nil
	default:
		return nil, errors.New("line %d: unsupported expression: %v", n.Line, tag)
	}
}

func (l loader) builtin(name string, arity int, as *yaml.Node) (Expr, error) {
	if as == nil || as.Kind != yaml.SequenceNode || len(as.Content) != arity {
		return nil, errors.New("%v: expected %d arguments", name, arity)
	}

	args := make([]Expr, arity)

	for i, a := range as.Content {
		x, err := l.expr(a)
		if err != nil {
			return nil, errors.Wrap(err, "%v: arg %d", name, i)
		}

		args[i] = x
	}

	if arity == 1 {
		return &Builtin1{Name: name, Arg: args[0]}, nil
	}

	return &Builtin2{Name: name, Left: args[0], Right: args[1]}, nil
}

func scalar(n *yaml.Node) (Expr, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, errors.New("line %d: scalar expected, got %v", n.Line, kind(n))
	}

	switch n.Tag {
	case "!!null":
		return &None{}, nil
	case "!!bool":
		var b bool

		err := n.Decode(&b)
		if err != nil {
			return nil, errors.Wrap(err, "line %d: bool", n.Line)
		}

		return &Bool{V: b}, nil
	case "!!int":
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, errors.Wrap(err, "line %d: int", n.Line)
		}

		return &Num{V: v}, nil
	}

	switch n.Value {
	case "None":
		return &None{}, nil
	case "True":
		return &Bool{V: true}, nil
	case "False":
		return &Bool{V: false}, nil
	}

	name, err := ident(n)
	if err != nil {
		return nil, err
	}

	return &Ident{Name: name}, nil
}

func variant(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, errors.New("line %d: single-key mapping expected, got %v", n.Line, kind(n))
	}

	return n.Content[0].Value, n.Content[1], nil
}

func fields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errors.New("line %d: mapping expected, got %v", n.Line, kind(n))
	}

	m := make(map[string]*yaml.Node, len(n.Content)/2)

	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value

		ok := false
		for _, a := range allowed {
			ok = ok || a == k
		}

		if !ok {
			return nil, errors.New("line %d: unexpected field: %v", n.Content[i].Line, k)
		}

		m[k] = n.Content[i+1]
	}

	return m, nil
}

func ident(n *yaml.Node) (string, error) {
	if n == nil || n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", errors.New("identifier expected")
	}

	for i, c := range n.Value {
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i != 0 && c >= '0' && c <= '9' {
			continue
		}

		return "", errors.New("line %d: bad identifier: %q", n.Line, n.Value)
	}

	return n.Value, nil
}

func typ(n *yaml.Node) (tp.Type, error) {
	if isNull(n) {
		return tp.None, nil
	}

	t, ok := tp.Parse(n.Value)
	if !ok {
		return tp.None, errors.New("line %d: invalid type annotation: %q", n.Line, n.Value)
	}

	return t, nil
}

func str(n *yaml.Node) string {
	if n == nil {
		return ""
	}

	return n.Value
}

func isNull(n *yaml.Node) bool {
	return n == nil || n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func kind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
