package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	l3c "github.com/l3bridge/l3c"
	"github.com/l3bridge/l3c/internal/l3parse"
)

func main() {
	compileCmd := &cli.Command{
		Name:   "compile",
		Action: compileAct,
		Args:   cli.Args{},
	}

	app := &cli.Command{
		Name:        "l3c",
		Description: "l3c compiles the L3 three-tier IR down to assembly",
		Commands:    []*cli.Command{compileCmd},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func compileAct(c *cli.Command) (err error) {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "verbose tlog output")
	dumpLiveness := fs.Bool("l", false, "dump liveness sets")
	dumpInterference := fs.Bool("i", false, "dump the interference graph")
	_ = fs.Int("g", 0, "unused, kept for flag-shape compatibility")
	_ = fs.Int("O", 0, "optimization level (0|1|2); only tree merging is ever performed")

	if err := fs.Parse(c.Args); err != nil {
		return errors.Wrap(err, "l3c: flags")
	}
	if fs.NArg() != 1 {
		return errors.New("l3c: expected exactly one SOURCE argument")
	}
	source := fs.Arg(0)

	var filter string
	switch {
	case *dumpLiveness && *dumpInterference:
		filter = "dump_func_live3,dump_func_live2,dump_func_graph"
	case *dumpLiveness:
		filter = "dump_func_live3,dump_func_live2"
	case *dumpInterference:
		filter = "dump_func_graph"
	}
	if *verbose {
		if filter != "" {
			filter += ","
		}
		filter += "l3c"
	}
	if filter != "" {
		tlog.SetVerbosity(filter)
	}

	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	obj, err := l3c.CompileFile(ctx, l3parse.Adapter{}, source)
	if err != nil {
		return errors.Wrap(err, "compile %v", source)
	}

	fmt.Printf("%s", obj)
	return nil
}
