package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/pywat/compiler/tp"
)

func TestLoadProgram(t *testing.T) {
	p, err := Load([]byte(`
- decl: {name: x, type: int, value: 5}
- define:
    name: f
    params: [{name: a, type: int}, {name: b, type: int}]
    ret: int
    decls:
      - {name: t, type: bool, value: True}
    body:
      - if:
          cond: {binary: {op: "<", left: a, right: b}}
          then: [{return: a}]
          else: [pass]
      - while:
          cond: t
          body:
            - assign: {name: t, value: false}
      - return: {binary: {op: "+", left: a, right: b}}
- expr: {call: {name: f, args: [2, 3]}}
- expr: {call: {name: max, args: [x, {unary: {op: "-", arg: 1}}]}}
- expr: {call: {name: print, args: [None]}}
`))
	require.NoError(t, err)
	require.Len(t, p.Body, 5)

	assert.Equal(t, &DeclStmt{Decl: Decl{Name: "x", Type: tp.Int, Value: &Num{V: 5}}}, p.Body[0])

	def, ok := p.Body[1].(*Define)
	require.True(t, ok, "%T", p.Body[1])

	assert.Equal(t, "f", def.Name)
	assert.Equal(t, tp.Int, def.Ret)
	assert.Equal(t, []Param{{Name: "a", Type: tp.Int}, {Name: "b", Type: tp.Int}}, def.Params)
	assert.Equal(t, []Decl{{Name: "t", Type: tp.Bool, Value: &Bool{V: true}}}, def.Decls)
	require.Len(t, def.Body, 3)

	assert.Equal(t, &If{
		Cond: &Binary{Op: Lt, Left: &Ident{Name: "a"}, Right: &Ident{Name: "b"}},
		Then: []Stmt{&Return{Value: &Ident{Name: "a"}}},
		Else: []Stmt{&Pass{}},
	}, def.Body[0])

	assert.Equal(t, &While{
		Cond: &Ident{Name: "t"},
		Body: []Stmt{&Assign{Name: "t", Value: &Bool{V: false}}},
	}, def.Body[1])

	assert.Equal(t, &ExprStmt{Value: &Call{Name: "f", Args: []Expr{&Num{V: 2}, &Num{V: 3}}}}, p.Body[2])

	assert.Equal(t, &ExprStmt{Value: &Builtin2{
		Name:  "max",
		Left:  &Ident{Name: "x"},
		Right: &Unary{Op: Neg, Arg: &Num{V: 1}},
	}}, p.Body[3])

	assert.Equal(t, &ExprStmt{Value: &Builtin1{Name: "print", Arg: &None{}}}, p.Body[4])
}

func TestLoadEmpty(t *testing.T) {
	p, err := Load(nil)
	require.NoError(t, err)
	assert.Empty(t, p.Body)
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
	}{
		{"not_a_list", `{expr: 1}`},
		{"unknown_stmt", `[{loop: 1}]`},
		{"bad_op", `[{expr: {binary: {op: "**", left: 1, right: 2}}}]`},
		{"bad_unary", `[{expr: {unary: {op: "+", arg: 1}}}]`},
		{"bad_type", `[{decl: {name: x, type: str, value: 1}}]`},
		{"bad_field", `[{assign: {name: x, value: 1, extra: 2}}]`},
		{"bad_ident", `[{expr: "1x"}]`},
		{"builtin_arity", `[{expr: {call: {name: abs, args: [1, 2]}}}]`},
		{"no_value", `[{decl: {name: x, type: int}}]`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestOps(t *testing.T) {
	for op := Plus; op <= Is; op++ {
		got, ok := ParseBinary(op.String())
		if assert.True(t, ok, "%v", op) {
			assert.Equal(t, op, got)
		}
	}

	op, ok := ParseUnary("not")
	assert.True(t, ok)
	assert.Equal(t, Not, op)

	assert.True(t, Div.IsArith())
	assert.True(t, Gt.IsOrder())
	assert.False(t, Is.IsOrder())
	assert.True(t, Neq.IsEquality())
	assert.True(t, Neg.IsUnary())

	assert.Equal(t, 2, BuiltinArity("pow"))
	assert.Equal(t, 1, BuiltinArity("print"))
	assert.False(t, IsBuiltin("f"))
}
