package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/pywat/compiler"
	"github.com/slowlang/pywat/compiler/analyze"
	"github.com/slowlang/pywat/compiler/ast"
	"github.com/slowlang/pywat/compiler/env"
	"github.com/slowlang/pywat/compiler/format"
	"github.com/slowlang/pywat/compiler/host"
)

func main() {
	checkCmd := &cli.Command{
		Name:        "check",
		Description: "type check programs",
		Action:      checkAct,
		Args:        cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile programs to WebAssembly text",
		Action:      compileAct,
		Args:        cli.Args{},
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "compile and run programs on the reference machine",
		Action:      runAct,
		Args:        cli.Args{},
	}

	fmtCmd := &cli.Command{
		Name:        "fmt",
		Description: "print programs as source text",
		Action:      fmtAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "pywat",
		Description: "pywat compiles typed python subset programs to WebAssembly",
		Commands: []*cli.Command{
			checkCmd,
			compileCmd,
			runCmd,
			fmtCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func checkAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		p, err := ast.LoadFile(a)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		e := env.New()

		_, err = analyze.Check(ctx, p, e)
		if err != nil {
			return errors.Wrap(err, "check %v", a)
		}

		fmt.Printf("%v: ok, %d globals\n", a, e.Slots())
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		fmt.Printf("%s", obj)
	}

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		res, ok, err := compiler.Run(ctx, obj, host.New(os.Stdout))
		if err != nil {
			return errors.Wrap(err, "run %v", a)
		}

		if ok {
			fmt.Printf("%d\n", res)
		}
	}

	return nil
}

func fmtAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		p, err := ast.LoadFile(a)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		b, err := format.Format(ctx, nil, p)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		fmt.Printf("%s", b)
	}

	return nil
}
