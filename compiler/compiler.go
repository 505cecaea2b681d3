package compiler

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/pywat/compiler/analyze"
	"github.com/slowlang/pywat/compiler/asm"
	"github.com/slowlang/pywat/compiler/ast"
	"github.com/slowlang/pywat/compiler/back"
	"github.com/slowlang/pywat/compiler/env"
	"github.com/slowlang/pywat/compiler/host"
	"github.com/slowlang/pywat/compiler/vm"
)

func CompileFile(ctx context.Context, name string) (obj []byte, err error) {
	p, err := ast.LoadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}

	tlog.SpanFromContext(ctx).Printw("loaded file", "stmts", len(p.Body), "name", name)

	return Compile(ctx, p)
}

// Compile checks the program and generates WebAssembly text.
// Nothing is generated if checking fails.
func Compile(ctx context.Context, p *ast.Program) (obj []byte, err error) {
	e := env.New()

	_, err = analyze.Check(ctx, p, e)
	if err != nil {
		return nil, errors.Wrap(err, "analyze")
	}

	obj, err = back.Generate(ctx, p, e)
	if err != nil {
		return nil, errors.Wrap(err, "generate")
	}

	return obj, nil
}

// Run executes compiled text on the reference machine
// with h serving the imported procedures.
// ok reports whether the program has a result.
func Run(ctx context.Context, obj []byte, h *host.Host) (res int64, ok bool, err error) {
	m, err := asm.Parse(ctx, obj)
	if err != nil {
		return 0, false, errors.Wrap(err, "parse wat")
	}

	if m.Memory == nil || m.Memory.Module != back.MemoryModule || m.Memory.Name != back.MemoryName {
		return 0, false, errors.New("module does not import %v.%v", back.MemoryModule, back.MemoryName)
	}

	mach, err := vm.New(m, map[string]map[string]vm.Func{
		back.HostModule: h.Imports(),
	})
	if err != nil {
		return 0, false, errors.Wrap(err, "link")
	}

	res, ok, err = mach.Run(ctx, back.Entry)
	if err != nil {
		return 0, false, errors.Wrap(err, "run")
	}

	return res, ok, nil
}
