package l3c

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/l3bridge/l3c/internal/asmprint"
	"github.com/l3bridge/l3c/internal/color"
	"github.com/l3bridge/l3c/internal/emit1"
	"github.com/l3bridge/l3c/internal/interfere"
	"github.com/l3bridge/l3c/internal/ir1"
	"github.com/l3bridge/l3c/internal/ir2"
	"github.com/l3bridge/l3c/internal/ir3"
	"github.com/l3bridge/l3c/internal/live2"
	"github.com/l3bridge/l3c/internal/live3"
	"github.com/l3bridge/l3c/internal/strset"
	"github.com/l3bridge/l3c/internal/tile"
	"github.com/l3bridge/l3c/internal/treebuild"

	"github.com/l3bridge/l3c/internal/spill"
)

// Parser is the seam spec.md §1 calls an "external collaborator": the
// core packages below never import a concrete grammar, they only
// consume the *ir3.Program a Parser produces. cmd/l3c wires a concrete
// implementation in; tests wire in literal *ir3.Program values instead.
type Parser interface {
	Parse(name string, text []byte) (*ir3.Program, error)
}

// maxSpillRounds bounds the per-function spill-retry loop (§7
// "Exhausted coloring"): once every variable in the function has been
// offered as a spill candidate and coloring still fails, continuing
// would loop forever, so this is a fatal internal-invariant error.
func maxSpillRounds(fn *ir3.Function) int {
	return len(fn.Instrs) + len(fn.Params) + 1
}

// CompileFile reads name and compiles it the way Compile does.
func CompileFile(ctx context.Context, p Parser, name string) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "l3c: read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, p, name, text)
}

// Compile drives the full L3 -> L2 -> L1 -> assembly pipeline: parse,
// per-function liveness/treebuild/tile, the liveness/interference/color/
// spill loop, L1 emission, and finally assembly printing.
func Compile(ctx context.Context, p Parser, name string, text []byte) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "l3c: compile", "name", name)
	defer tr.Finish("err", &err)

	prog, err := p.Parse(name, text)
	if err != nil {
		return nil, errors.Wrap(err, "l3c: parse")
	}

	l1prog, err := CompileProgram(ctx, prog)
	if err != nil {
		return nil, err
	}

	return asmprint.Print(l1prog)
}

// CompileProgram lowers an already-parsed L3 program to L1, for callers
// (and tests) that build an *ir3.Program directly rather than going
// through a Parser.
func CompileProgram(ctx context.Context, prog *ir3.Program) (_ *ir1.Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "l3c: lower program")
	defer tr.Finish("err", &err)

	if len(prog.Funcs) == 0 {
		return nil, errors.New("l3c: program has no functions")
	}

	lab := tile.NewLabeler(prog)

	out := &ir1.Program{EntryPointLabel: prog.Funcs[0].Name}

	for _, fn := range prog.Funcs {
		l1fn, err := compileFunction(ctx, fn, lab)
		if err != nil {
			return nil, errors.Wrap(err, "l3c: function %q", fn.Name)
		}
		out.Funcs = append(out.Funcs, l1fn)
	}

	return out, nil
}

// compileFunction runs one function through L3 liveness, tree
// construction, tiling, and the L2 register-allocation loop described
// in spec.md §4.
func compileFunction(ctx context.Context, fn *ir3.Function, lab *tile.Labeler) (*ir1.Function, error) {
	live3Result, err := live3.Analyze(ctx, fn)
	if err != nil {
		return nil, errors.Wrap(err, "live3")
	}

	built := treebuild.Build(fn, live3Result)

	f2, err := tile.Function(built, lab)
	if err != nil {
		return nil, errors.Wrap(err, "tile")
	}

	f2, colors, locals, err := allocateRegisters(ctx, fn, f2)
	if err != nil {
		return nil, err
	}

	return emit1.Emit(f2, colors, locals)
}

// allocateRegisters runs the liveness -> interference -> color loop,
// rewriting f2 through internal/spill whenever a round produces a
// spill candidate, until every variable gets a color or the round
// budget (per §7) is exhausted. It returns the function as last
// rewritten, its coloring, and its final spill-slot count.
func allocateRegisters(ctx context.Context, origFn *ir3.Function, f2 *ir2.Function) (*ir2.Function, map[string]ir2.Reg, int, error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "l3c: allocate registers", "func", f2.Name)
	var err error
	defer tr.Finish("err", &err)

	tempCounter, spillCounter := 0, 0
	limit := maxSpillRounds(origFn)

	for round := 0; ; round++ {
		if round >= limit {
			err = errors.New("l3c: function %q did not converge after %d spill rounds", f2.Name, round)
			return nil, nil, 0, err
		}

		var liveResult live2.Result
		liveResult, err = live2.Analyze(ctx, f2)
		if err != nil {
			return nil, nil, 0, errors.Wrap(err, "live2")
		}

		g := interfere.Build(ctx, f2, liveResult)
		result := color.Run(g)

		if result.SpillCandidate == "" {
			tr.Printw("colored", "round", round, "vars", len(result.Colors))
			return f2, result.Colors, spillCounter, nil
		}

		tr.Printw("spill", "round", round, "candidate", result.SpillCandidate)

		f2, tempCounter, spillCounter = spill.Rewrite(f2, strset.New(result.SpillCandidate), tempCounter, spillCounter)
	}
}
