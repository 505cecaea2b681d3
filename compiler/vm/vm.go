package vm

import (
	"context"
	"encoding/binary"
	"math"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/pywat/compiler/asm"
)

type (
	Func = func(args []int64) (int64, error)

	// Machine executes a parsed module by walking its instructions.
	Machine struct {
		MaxDepth int

		mod     *asm.Module
		mem     []byte
		imports map[string]Func

		depth int
	}

	frame struct {
		locals map[string]int64
	}

	// unwind is a pending branch or return.
	unwind struct {
		Depth int
		Ret   bool
		Val   int64
	}
)

const (
	PageSize = 1 << 16

	DefaultMaxDepth = 10000
)

var (
	ErrDivByZero      = errors.New("integer divide by zero")
	ErrOverflow       = errors.New("integer overflow")
	ErrOutOfBounds    = errors.New("out of bounds memory access")
	ErrStackExhausted = errors.New("call stack exhausted")
)

// New links the module against imports keyed by module and name.
func New(m *asm.Module, imports map[string]map[string]Func) (*Machine, error) {
	vm := &Machine{
		MaxDepth: DefaultMaxDepth,
		mod:      m,
		imports:  make(map[string]Func, len(m.Imports)),
	}

	if m.Memory != nil {
		vm.mem = make([]byte, m.Memory.Pages*PageSize)
	}

	for _, im := range m.Imports {
		f, ok := imports[im.Module][im.Name]
		if !ok {
			return nil, errors.New("unresolved import %v.%v", im.Module, im.Name)
		}

		vm.imports[im.Func] = f
	}

	return vm, nil
}

// Memory is the machine linear memory.
func (m *Machine) Memory() []byte { return m.mem }

// Run calls the exported function.
// ok reports whether the function has a result.
func (m *Machine) Run(ctx context.Context, entry string) (res int64, ok bool, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "vm: run", "entry", entry)
	defer tr.Finish("res", &res, "err", &err)

	f := m.mod.Exported(entry)
	if f == nil {
		return 0, false, errors.New("no export %q", entry)
	}

	res, err = m.call(ctx, f, nil)
	if err != nil {
		return 0, false, err
	}

	return res, f.Result, nil
}

func (m *Machine) call(ctx context.Context, f *asm.Func, args []int64) (res int64, err error) {
	if err = ctx.Err(); err != nil {
		return 0, errors.Wrap(err, "interrupted")
	}

	if len(args) != len(f.Params) {
		return 0, errors.New("%v: expected %d arguments, got %d", f.Name, len(f.Params), len(args))
	}

	if m.depth >= m.MaxDepth {
		return 0, ErrStackExhausted
	}

	m.depth++
	defer func() { m.depth-- }()

	fr := &frame{locals: make(map[string]int64, len(f.Params)+len(f.Locals))}

	for i, p := range f.Params {
		fr.locals[p] = args[i]
	}

	for _, l := range f.Locals {
		fr.locals[l] = 0
	}

	v, u, err := m.block(ctx, fr, f.Body)
	if err != nil {
		return 0, errors.Wrap(err, "func %v", f.Name)
	}

	if u != nil && u.Ret {
		return u.Val, nil
	}

	return v, nil
}

// block runs the body and returns the last value it produced.
func (m *Machine) block(ctx context.Context, fr *frame, body []asm.Instr) (v int64, u *unwind, err error) {
	for _, x := range body {
		v, u, err = m.exec(ctx, fr, x)
		if err != nil || u != nil {
			return v, u, err
		}
	}

	return v, nil, nil
}

// label runs the body as a branch target.
func (m *Machine) label(ctx context.Context, fr *frame, body []asm.Instr) (v int64, u *unwind, err error) {
	v, u, err = m.block(ctx, fr, body)
	if err != nil || u == nil || u.Ret {
		return v, u, err
	}

	if u.Depth == 0 {
		return u.Val, nil, nil
	}

	return 0, &unwind{Depth: u.Depth - 1}, nil
}

func (m *Machine) exec(ctx context.Context, fr *frame, x asm.Instr) (v int64, u *unwind, err error) {
	switch x := x.(type) {
	case asm.Const:
		return x.Value, nil, nil
	case asm.LocalGet:
		v, ok := fr.locals[x.Name]
		if !ok {
			return 0, nil, errors.New("unknown local %v", x.Name)
		}

		return v, nil, nil
	case asm.LocalSet:
		if _, ok := fr.locals[x.Name]; !ok {
			return 0, nil, errors.New("unknown local %v", x.Name)
		}

		v, u, err = m.exec(ctx, fr, x.Value)
		if err != nil || u != nil {
			return v, u, err
		}

		fr.locals[x.Name] = v

		return 0, nil, nil
	case asm.Load:
		a, u, err := m.exec(ctx, fr, x.Addr)
		if err != nil || u != nil {
			return a, u, err
		}

		if a < 0 || a+8 > int64(len(m.mem)) {
			return 0, nil, errors.Wrap(ErrOutOfBounds, "load %d", a)
		}

		return int64(binary.LittleEndian.Uint64(m.mem[a:])), nil, nil
	case asm.Store:
		a, u, err := m.exec(ctx, fr, x.Addr)
		if err != nil || u != nil {
			return a, u, err
		}

		v, u, err = m.exec(ctx, fr, x.Value)
		if err != nil || u != nil {
			return v, u, err
		}

		if a < 0 || a+8 > int64(len(m.mem)) {
			return 0, nil, errors.Wrap(ErrOutOfBounds, "store %d", a)
		}

		binary.LittleEndian.PutUint64(m.mem[a:], uint64(v))

		return 0, nil, nil
	case asm.Unary:
		a, u, err := m.exec(ctx, fr, x.Arg)
		if err != nil || u != nil {
			return a, u, err
		}

		v, err = unary(x.Op, a)

		return v, nil, err
	case asm.Binary:
		l, u, err := m.exec(ctx, fr, x.L)
		if err != nil || u != nil {
			return l, u, err
		}

		r, u, err := m.exec(ctx, fr, x.R)
		if err != nil || u != nil {
			return r, u, err
		}

		v, err = binop(x.Op, l, r)
		if err != nil {
			return 0, nil, errors.Wrap(err, "%v", x.Op)
		}

		return v, nil, nil
	case asm.Call:
		args := make([]int64, len(x.Args))

		for i, a := range x.Args {
			args[i], u, err = m.exec(ctx, fr, a)
			if err != nil || u != nil {
				return 0, u, err
			}
		}

		v, err = m.invoke(ctx, x.Func, args)

		return v, nil, err
	case asm.Drop:
		_, u, err = m.exec(ctx, fr, x.Value)

		return 0, u, err
	case asm.Return:
		if x.Value != nil {
			v, u, err = m.exec(ctx, fr, x.Value)
			if err != nil || u != nil {
				return v, u, err
			}
		}

		return 0, &unwind{Ret: true, Val: v}, nil
	case asm.Nop:
		return 0, nil, nil
	case asm.Block:
		return m.label(ctx, fr, x.Body)
	case asm.Loop:
		for {
			if err = ctx.Err(); err != nil {
				return 0, nil, errors.Wrap(err, "interrupted")
			}

			v, u, err = m.block(ctx, fr, x.Body)
			if err != nil || u == nil || u.Ret {
				return v, u, err
			}

			// branch to a loop label restarts it
			if u.Depth != 0 {
				return 0, &unwind{Depth: u.Depth - 1}, nil
			}
		}
	case asm.Br:
		return 0, &unwind{Depth: x.Depth}, nil
	case asm.BrIf:
		c, u, err := m.exec(ctx, fr, x.Cond)
		if err != nil || u != nil {
			return c, u, err
		}

		if c == 0 {
			return 0, nil, nil
		}

		return 0, &unwind{Depth: x.Depth}, nil
	case asm.If:
		c, u, err := m.exec(ctx, fr, x.Cond)
		if err != nil || u != nil {
			return c, u, err
		}

		if c != 0 {
			return m.label(ctx, fr, x.Then)
		}

		return m.label(ctx, fr, x.Else)
	default:
		return 0, nil, errors.New("unsupported instruction %T", x)
	}
}

func (m *Machine) invoke(ctx context.Context, name string, args []int64) (v int64, err error) {
	if f, ok := m.imports[name]; ok {
		v, err = f(args)
		if err != nil {
			return 0, errors.Wrap(err, "host %v", name)
		}

		tlog.V("vm").Printw("host call", "func", name, "args", args, "res", v)

		return v, nil
	}

	f := m.mod.Lookup(name)
	if f == nil {
		return 0, errors.New("unknown function %v", name)
	}

	return m.call(ctx, f, args)
}

func unary(op string, x int64) (int64, error) {
	switch op {
	case "i64.eqz":
		return b2i(x == 0), nil
	case "i64.extend_i32_u":
		return int64(uint32(x)), nil
	case "i64.extend_i32_s":
		return int64(int32(x)), nil
	}

	return 0, errors.New("unsupported unary op %v", op)
}

func binop(op string, l, r int64) (int64, error) {
	switch op {
	case "i64.add":
		return l + r, nil
	case "i64.sub":
		return l - r, nil
	case "i64.mul":
		return l * r, nil
	case "i64.div_s":
		if r == 0 {
			return 0, ErrDivByZero
		}

		if l == math.MinInt64 && r == -1 {
			return 0, ErrOverflow
		}

		return l / r, nil
	case "i64.rem_s":
		if r == 0 {
			return 0, ErrDivByZero
		}

		if r == -1 {
			return 0, nil
		}

		return l % r, nil
	case "i64.and":
		return l & r, nil
	case "i64.or":
		return l | r, nil
	case "i64.xor":
		return l ^ r, nil
	case "i64.shl":
		return l << (uint64(r) & 63), nil
	case "i64.shr_s":
		return l >> (uint64(r) & 63), nil
	case "i64.shr_u":
		return int64(uint64(l) >> (uint64(r) & 63)), nil
	case "i64.eq":
		return b2i(l == r), nil
	case "i64.ne":
		return b2i(l != r), nil
	case "i64.lt_s":
		return b2i(l < r), nil
	case "i64.gt_s":
		return b2i(l > r), nil
	case "i64.le_s":
		return b2i(l <= r), nil
	case "i64.ge_s":
		return b2i(l >= r), nil
	}

	return 0, errors.New("unsupported binary op %v", op)
}

func b2i(b bool) int64 {
	if b {
		return 1
	}

	return 0
}
