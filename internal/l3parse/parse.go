// Package l3parse is a small hand-written recursive-descent reader for
// the sketched L3 grammar in spec.md §6. It is an external collaborator
// in the same sense as the original's PEG-based parsers: the core
// packages (treebuild, tile, live3, ...) never import it, they only see
// the *ir3.Program it produces.
package l3parse

import (
	"github.com/l3bridge/l3c/internal/ir3"
	"tlog.app/go/errors"
)

// Adapter satisfies the pipeline's Parser interface; cmd/l3c is the
// only caller that needs to name this concrete grammar.
type Adapter struct{}

func (Adapter) Parse(name string, text []byte) (*ir3.Program, error) { return Parse(name, text) }

type parser struct {
	lx   *lexer
	cur  token
	peek *token
}

// Parse reads a whole L3 program (a non-empty sequence of `define`
// blocks) from text. name is used only in error messages.
func Parse(name string, text []byte) (*ir3.Program, error) {
	p := &parser{lx: newLexer(text)}
	if err := p.advance(); err != nil {
		return nil, errors.Wrap(err, "l3parse: %s", name)
	}

	prog := &ir3.Program{}
	for p.cur.kind != tokEOF {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, errors.Wrap(err, "l3parse: %s", name)
		}
		prog.Funcs = append(prog.Funcs, fn)
	}

	if len(prog.Funcs) == 0 {
		return nil, errors.New("l3parse: %s: empty program", name)
	}
	return prog, nil
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.cur = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) peekTok() (token, error) {
	if p.peek == nil {
		t, err := p.lx.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func (p *parser) expect(k tokenKind) (token, error) {
	if p.cur.kind != k {
		return token{}, errors.New("line %d: expected %s, got %q", p.cur.line, k, p.cur.text)
	}
	t := p.cur
	err := p.advance()
	return t, err
}

func (p *parser) expectIdent(word string) error {
	if p.cur.kind != tokIdent || p.cur.text != word {
		return errors.New("line %d: expected %q, got %q", p.cur.line, word, p.cur.text)
	}
	return p.advance()
}

func (p *parser) atIdent(word string) bool {
	return p.cur.kind == tokIdent && p.cur.text == word
}

func (p *parser) parseFunction() (*ir3.Function, error) {
	if err := p.expectIdent("define"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokFunc)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}

	var params []ir3.Variable
	for p.cur.kind != tokRParen {
		v, err := p.expect(tokVariable)
		if err != nil {
			return nil, err
		}
		params = append(params, ir3.Variable{Name: v.text})
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}

	var instrs []ir3.Instr
	for p.cur.kind != tokRBrace {
		in, err := p.parseInstr()
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, in)
	}
	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}

	return &ir3.Function{Name: name.text, Params: params, Instrs: instrs}, nil
}

func (p *parser) parseInstr() (ir3.Instr, error) {
	switch {
	case p.cur.kind == tokLabel:
		l := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ir3.LabelDef{Label: ir3.Label{Name: l.text}}, nil

	case p.atIdent("return"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.startsValue() {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			return ir3.Ret{Val: v}, nil
		}
		return ir3.Ret{}, nil

	case p.atIdent("br"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tokLabel {
			l := p.cur
			if err := p.advance(); err != nil {
				return nil, err
			}
			return ir3.Branch{Label: ir3.Label{Name: l.text}}, nil
		}
		cond, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		l, err := p.expect(tokLabel)
		if err != nil {
			return nil, err
		}
		return ir3.CondBranch{Cond: cond, Label: ir3.Label{Name: l.text}}, nil

	case p.atIdent("store"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		addr, err := p.expect(tokVariable)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokArrow); err != nil {
			return nil, err
		}
		src, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return ir3.Store{Addr: ir3.Variable{Name: addr.text}, Src: src}, nil

	case p.atIdent("call"):
		call, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		return call, nil

	case p.cur.kind == tokVariable:
		dst := ir3.Variable{Name: p.cur.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokArrow); err != nil {
			return nil, err
		}
		return p.parseAssignRHS(dst)

	default:
		return nil, errors.New("line %d: unexpected token %q at start of instruction", p.cur.line, p.cur.text)
	}
}

func (p *parser) startsValue() bool {
	switch p.cur.kind {
	case tokVariable, tokNumber, tokFunc, tokLabel:
		return true
	default:
		return false
	}
}

// parseAssignRHS parses everything that can follow `%v <-`: a load, a
// call, or a value possibly followed by a binop/cmp operator and a
// second value.
func (p *parser) parseAssignRHS(dst ir3.Variable) (ir3.Instr, error) {
	if p.atIdent("load") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		addr, err := p.expect(tokVariable)
		if err != nil {
			return nil, err
		}
		return ir3.Load{Dst: dst, Addr: ir3.Variable{Name: addr.text}}, nil
	}

	if p.atIdent("call") {
		call, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		c, ok := call.(ir3.Call)
		if !ok {
			return nil, errors.New("line %d: internal: parseCall returned %T", p.cur.line, call)
		}
		return ir3.CallAssign{Dst: dst, Call: c}, nil
	}

	lhs, err := p.parseValue()
	if err != nil {
		return nil, err
	}

	if op, ok := p.peekOP(); ok {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return ir3.BinOp{Dst: dst, Op: op, L: lhs, R: rhs}, nil
	}
	if cmp, ok := p.peekCMP(); ok {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return ir3.CmpOp{Dst: dst, Cmp: cmp, L: lhs, R: rhs}, nil
	}

	return ir3.Assign{Dst: dst, Src: lhs}, nil
}

func (p *parser) peekOP() (ir3.OP, bool) {
	switch p.cur.kind {
	case tokPlus:
		return ir3.Add, true
	case tokMinus:
		return ir3.Sub, true
	case tokStar:
		return ir3.Mul, true
	case tokAmp:
		return ir3.BitAnd, true
	case tokShl:
		return ir3.ShiftL, true
	case tokShr:
		return ir3.ShiftR, true
	default:
		return "", false
	}
}

func (p *parser) peekCMP() (ir3.CMP, bool) {
	switch p.cur.kind {
	case tokLt:
		return ir3.Less, true
	case tokLe:
		return ir3.LessEq, true
	case tokEq:
		return ir3.Eq, true
	case tokGe:
		return ir3.GreaterEq, true
	case tokGt:
		return ir3.Greater, true
	default:
		return "", false
	}
}

func (p *parser) parseValue() (ir3.Item, error) {
	switch p.cur.kind {
	case tokVariable:
		v := ir3.Variable{Name: p.cur.text}
		return v, p.advance()
	case tokNumber:
		n := int64(0)
		for _, c := range p.cur.text {
			n = n*10 + int64(c-'0')
		}
		return ir3.Number{N: n}, p.advance()
	case tokFunc:
		f := ir3.Func{Name: p.cur.text}
		return f, p.advance()
	case tokLabel:
		l := ir3.Label{Name: p.cur.text}
		return l, p.advance()
	default:
		return nil, errors.New("line %d: expected a value, got %q", p.cur.line, p.cur.text)
	}
}

// parseCall parses `call callee(args)`, used both as a bare statement
// and (by the caller) as the right-hand side of a call-assignment.
func (p *parser) parseCall() (ir3.Instr, error) {
	if err := p.expectIdent("call"); err != nil {
		return nil, err
	}

	var call ir3.Call
	switch {
	case p.cur.kind == tokFunc:
		call.Callee = ir3.Func{Name: p.cur.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
	case p.cur.kind == tokVariable:
		call.Callee = ir3.Variable{Name: p.cur.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
	case p.cur.kind == tokIdent && ir3.IsBuiltin(p.cur.text):
		call.Builtin = p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("line %d: expected a call target, got %q", p.cur.line, p.cur.text)
	}

	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	for p.cur.kind != tokRParen {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, v)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	return call, nil
}
