package l3parse

import (
	"fmt"
	"strings"

	"tlog.app/go/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokVariable // %name
	tokFunc     // @name
	tokLabel    // :name
	tokArrow    // <-
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokComma
	tokPlus
	tokMinus
	tokStar
	tokAmp
	tokShl
	tokShr
	tokLt
	tokLe
	tokEq
	tokGe
	tokGt
)

type token struct {
	kind tokenKind
	text string
	line int
}

// lexer tokenizes the sketched L3 grammar from spec.md §6: a flat token
// stream with `//` line comments and otherwise insignificant whitespace.
type lexer struct {
	src  []byte
	pos  int
	line int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, line: 1}
}

func (lx *lexer) peekByte() byte {
	if lx.pos >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos]
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.line++
			lx.pos++
		case c == ' ' || c == '\t' || c == '\r':
			lx.pos++
		case c == '/' && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '/':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// scanIdentLike reads a run of identifier characters, additionally
// absorbing an embedded hyphen when it is immediately followed by more
// identifier characters — the only way `tuple-error`/`tensor-error`
// tokenize as single names under this lexer's otherwise hyphen-free
// identifier class.
func (lx *lexer) scanIdentLike() string {
	start := lx.pos
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if isIdentCont(c) {
			lx.pos++
			continue
		}
		if c == '-' && lx.pos+1 < len(lx.src) && isIdentStart(lx.src[lx.pos+1]) {
			lx.pos++
			continue
		}
		break
	}
	return string(lx.src[start:lx.pos])
}

func (lx *lexer) next() (token, error) {
	lx.skipSpaceAndComments()
	line := lx.line

	if lx.pos >= len(lx.src) {
		return token{kind: tokEOF, line: line}, nil
	}

	c := lx.src[lx.pos]

	switch {
	case isIdentStart(c):
		return token{kind: tokIdent, text: lx.scanIdentLike(), line: line}, nil

	case c >= '0' && c <= '9':
		start := lx.pos
		for lx.pos < len(lx.src) && lx.src[lx.pos] >= '0' && lx.src[lx.pos] <= '9' {
			lx.pos++
		}
		return token{kind: tokNumber, text: string(lx.src[start:lx.pos]), line: line}, nil

	case c == '%':
		lx.pos++
		name := lx.scanIdentLike()
		if name == "" {
			return token{}, errors.New("l3parse: line %d: expected name after %%", line)
		}
		return token{kind: tokVariable, text: name, line: line}, nil

	case c == '@':
		lx.pos++
		name := lx.scanIdentLike()
		if name == "" {
			return token{}, errors.New("l3parse: line %d: expected name after @", line)
		}
		return token{kind: tokFunc, text: name, line: line}, nil

	case c == ':':
		lx.pos++
		name := lx.scanIdentLike()
		if name == "" {
			return token{}, errors.New("l3parse: line %d: expected name after :", line)
		}
		return token{kind: tokLabel, text: name, line: line}, nil

	case c == '<':
		if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '-' {
			lx.pos += 2
			return token{kind: tokArrow, line: line}, nil
		}
		if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '=' {
			lx.pos += 2
			return token{kind: tokLe, line: line}, nil
		}
		if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '<' {
			lx.pos += 2
			return token{kind: tokShl, line: line}, nil
		}
		lx.pos++
		return token{kind: tokLt, line: line}, nil

	case c == '>':
		if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '=' {
			lx.pos += 2
			return token{kind: tokGe, line: line}, nil
		}
		if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '>' {
			lx.pos += 2
			return token{kind: tokShr, line: line}, nil
		}
		lx.pos++
		return token{kind: tokGt, line: line}, nil

	case c == '=':
		lx.pos++
		return token{kind: tokEq, line: line}, nil
	case c == '+':
		lx.pos++
		return token{kind: tokPlus, line: line}, nil
	case c == '-':
		lx.pos++
		return token{kind: tokMinus, line: line}, nil
	case c == '*':
		lx.pos++
		return token{kind: tokStar, line: line}, nil
	case c == '&':
		lx.pos++
		return token{kind: tokAmp, line: line}, nil
	case c == '(':
		lx.pos++
		return token{kind: tokLParen, line: line}, nil
	case c == ')':
		lx.pos++
		return token{kind: tokRParen, line: line}, nil
	case c == '{':
		lx.pos++
		return token{kind: tokLBrace, line: line}, nil
	case c == '}':
		lx.pos++
		return token{kind: tokRBrace, line: line}, nil
	case c == ',':
		lx.pos++
		return token{kind: tokComma, line: line}, nil
	}

	return token{}, errors.New("l3parse: line %d: unexpected character %q", line, string(c))
}

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "EOF"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokVariable:
		return "variable"
	case tokFunc:
		return "function name"
	case tokLabel:
		return "label"
	case tokArrow:
		return "<-"
	default:
		return strings.TrimPrefix(fmt.Sprintf("%d", int(k)), "")
	}
}
