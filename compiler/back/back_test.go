package back

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/pywat/compiler/analyze"
	"github.com/slowlang/pywat/compiler/ast"
	"github.com/slowlang/pywat/compiler/env"
)

func compile(t *testing.T, doc string) string {
	t.Helper()

	p, err := ast.Load([]byte(doc))
	require.NoError(t, err)

	ctx := context.Background()
	e := env.New()

	_, err = analyze.Check(ctx, p, e)
	require.NoError(t, err)

	obj, err := Generate(ctx, p, e)
	require.NoError(t, err)

	t.Logf("result:\n%s", obj)

	return string(obj)
}

func TestSmoke(t *testing.T) {
	code := compile(t, `[]`)

	assert.True(t, strings.HasPrefix(code, "(module\n"))
	assert.True(t, strings.HasSuffix(code, ")\n"))
	assert.Contains(t, code, `(import "js" "memory" (memory 1))`)
	assert.Contains(t, code, `(func $print (import "imports" "print") (param i64) (result i64))`)
	assert.Contains(t, code, `(func $abs (import "imports" "abs") (param i64) (result i64))`)
	assert.Contains(t, code, `(func $max (import "imports" "max") (param i64) (param i64) (result i64))`)
	assert.Contains(t, code, `(func $min (import "imports" "min") (param i64) (param i64) (result i64))`)
	assert.Contains(t, code, `(func $pow (import "imports" "pow") (param i64) (param i64) (result i64))`)
	assert.Contains(t, code, "(func (export \"_start\")\n")
	assert.Equal(t, strings.Count(code, "("), strings.Count(code, ")"))
}

func TestGlobals(t *testing.T) {
	code := compile(t, `
- decl: {name: x, type: int, value: 5}
- decl: {name: y, type: bool, value: true}
- assign: {name: x, value: y2}
- decl: {name: y2, type: int, value: 7}
- expr: x
`)

	assert.Contains(t, code, "(i64.store (i32.const 0) (i64.const 11)) ;; x")
	assert.Contains(t, code, "(i64.store (i32.const 8) (i64.const 4)) ;; y")
	assert.Contains(t, code, "(i64.store (i32.const 16) (i64.const 15)) ;; y2")
	assert.Contains(t, code, "(i64.store (i32.const 0) (i64.load (i32.const 16))) ;; x")
	assert.Contains(t, code, "(local.set $scratch (i64.load (i32.const 0)))")
	assert.Contains(t, code, "(func (export \"_start\") (result i64)")
	assert.Contains(t, code, "(i64.shr_s (local.get $scratch) (i64.const 1))")

	// declarations are initialized before anything else runs
	assert.Less(t, strings.Index(code, ";; y2"), strings.Index(code, ";; x\n\t\t(local.set"))
}

func TestNoResult(t *testing.T) {
	code := compile(t, `
- expr: 1
- decl: {name: x, type: int, value: 5}
`)

	assert.Contains(t, code, "(func (export \"_start\")\n")
	assert.NotContains(t, code, "(result i64)\n\t\t(local $scratch")
	assert.NotContains(t, code, "(i64.shr_s (local.get $scratch)")
}

func TestFunction(t *testing.T) {
	code := compile(t, `
- decl: {name: g, type: int, value: 1}
- define:
    name: f
    params: [{name: a, type: int}, {name: b, type: bool}]
    ret: int
    decls:
      - {name: c, type: int, value: {binary: {op: "+", left: a, right: g}}}
    body:
      - assign: {name: g, value: c}
      - expr: {call: {name: print, args: [c]}}
      - return: c
- expr: {call: {name: f, args: [2, false]}}
`)

	assert.Contains(t, code, "(func $f (param $a i64) (param $b i64) (result i64)\n")
	assert.Contains(t, code, "(local $c i64)\n")
	assert.Contains(t, code, "(local.set $c (i64.or (i64.shl (i64.add (i64.shr_s (local.get $a) (i64.const 1)) (i64.shr_s (i64.load (i32.const 0)) (i64.const 1))) (i64.const 1)) (i64.const 1)))")
	assert.Contains(t, code, "(i64.store (i32.const 0) (local.get $c)) ;; g")
	assert.Contains(t, code, "(drop (call $print (local.get $c)))")
	assert.Contains(t, code, "(return (local.get $c))")
	assert.Contains(t, code, "(local.set $scratch (call $f (i64.const 5) (i64.const 2)))")

	// locals are declared before any instruction
	assert.Less(t, strings.Index(code, "(local $c i64)"), strings.Index(code, "(local.set $c"))
}

func TestControlFlow(t *testing.T) {
	code := compile(t, `
- decl: {name: i, type: int, value: 0}
- while:
    cond: {binary: {op: "<", left: i, right: 3}}
    body:
      - assign: {name: i, value: {binary: {op: "+", left: i, right: 1}}}
- if:
    cond: {unary: {op: not, arg: {binary: {op: "==", left: i, right: 3}}}}
    then: [{expr: {call: {name: print, args: [1]}}}]
    else: [pass]
`)

	assert.Contains(t, code, "(block\n")
	assert.Contains(t, code, "(loop\n")
	assert.Contains(t, code, "(br_if 1 (i64.eq (i64.const 2) (i64.add (i64.const 2) (i64.shl (i64.extend_i32_u (i64.lt_s (i64.load (i32.const 0)) (i64.const 7))) (i64.const 1)))))")
	assert.Contains(t, code, "(br 0)\n")
	assert.Contains(t, code, "(if (i64.eq (i64.const 4) (i64.sub (i64.const 6) (i64.add (i64.const 2) (i64.shl (i64.extend_i32_u (i64.eq (i64.load (i32.const 0)) (i64.const 7))) (i64.const 1)))))")
	assert.Contains(t, code, "(then\n")
	assert.Contains(t, code, "(else\n")
	assert.Contains(t, code, "(nop)\n")
	assert.Equal(t, strings.Count(code, "("), strings.Count(code, ")"))
}

func TestOperators(t *testing.T) {
	for _, tc := range []struct {
		op   string
		want string
	}{
		{"+", "i64.add"},
		{"-", "i64.sub"},
		{"*", "i64.mul"},
		{"//", "i64.div_s"},
		{"%", "i64.rem_s"},
		{"<=", "i64.le_s"},
		{">=", "i64.ge_s"},
		{">", "i64.gt_s"},
		{"!=", "i64.ne"},
	} {
		code := compile(t, `[{expr: {binary: {op: "`+tc.op+`", left: 4, right: 2}}}]`)

		assert.Contains(t, code, "("+tc.want+" ", "op %v", tc.op)
	}

	code := compile(t, `[{expr: {unary: {op: "-", arg: 3}}}]`)
	assert.Contains(t, code, "(i64.sub (i64.const 2) (i64.const 7))")

	code = compile(t, `[{expr: {binary: {op: is, left: None, right: None}}}]`)
	assert.Contains(t, code, "(i64.eq (i64.const 0) (i64.const 0))")
}

func TestUnbound(t *testing.T) {
	p := &ast.Program{Body: []ast.Stmt{&ast.ExprStmt{Value: &ast.Ident{Name: "x"}}}}

	_, err := Generate(context.Background(), p, env.New())

	var ue UnboundError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "x", ue.Name)
}
