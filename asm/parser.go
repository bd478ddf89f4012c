package asm

import (
	"strings"

	"cr8vm/isa"
)

// FileResolver loads the source text for an imported path, trying the
// built-in module registry before the filesystem, per §6.4.
type FileResolver interface {
	Resolve(path string) (canonical string, source string, err error)
}

// Parser turns one file's token stream into a node list, mutating the
// shared SymbolTable as directives are encountered. Imports are
// inlined recursively at the point of the #[use].
type Parser struct {
	file     string
	toks     []Token
	i        int
	st       *SymbolTable
	resolver FileResolver

	macroParams map[string]CaptureParamType // non-nil while parsing a macro arm body
	parent      string                      // most recent global label, for sub-label defs
	pendingMain bool                        // set by #[main], consumed by the next label
}

// ParseFile tokenizes and parses one file, inlining any #[use] imports
// it encounters, and returns the resulting node list.
func ParseFile(file, source string, st *SymbolTable, resolver FileResolver) ([]Node, error) {
	lex := NewLexer(file, source)
	var toks []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TEOF {
			break
		}
	}
	p := &Parser{file: file, toks: toks, st: st, resolver: resolver}
	return p.parseProgram()
}

func (p *Parser) peek() Token  { return p.toks[p.i] }
func (p *Parser) peekN(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}
func (p *Parser) next() Token {
	t := p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}
func (p *Parser) atEOF() bool { return p.peek().Kind == TEOF }

func (p *Parser) skipNewlines() {
	for p.peek().Kind == TNewLine {
		p.next()
	}
}

func (p *Parser) expectPunct(s string) (Token, error) {
	t := p.peek()
	if t.Kind != TPunct || t.Text != s {
		return t, errSyn(t.Pos, "expected %q, got %q", s, tokenDesc(t))
	}
	return p.next(), nil
}

func (p *Parser) expectWord() (Token, error) {
	t := p.peek()
	if t.Kind != TWord {
		return t, errSyn(t.Pos, "expected a word, got %q", tokenDesc(t))
	}
	return p.next(), nil
}

func tokenDesc(t Token) string {
	switch t.Kind {
	case TEOF:
		return "<eof>"
	case TNewLine:
		return "<newline>"
	case TNumber:
		return "number"
	case TString:
		return "string"
	default:
		return t.Text
	}
}

func (p *Parser) parseProgram() ([]Node, error) {
	var out []Node
	for {
		p.skipNewlines()
		if p.atEOF() {
			break
		}
		t := p.peek()
		if t.Kind == TPunct && t.Text == "#" {
			nodes, err := p.parseMeta()
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
			continue
		}
		if t.Kind == TWord && p.isLabelAhead() {
			node, err := p.parseLabel()
			if err != nil {
				return nil, err
			}
			out = append(out, node)
			continue
		}
		inst, err := p.parseInstructionLine()
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// isLabelAhead reports whether the current word token is immediately
// followed (no intervening whitespace/newline) by a ':' punct, which
// is the label-definition syntax.
func (p *Parser) isLabelAhead() bool {
	w := p.peek()
	nxt := p.peekN(1)
	return nxt.Kind == TPunct && nxt.Text == ":" && nxt.Pos.Line == w.Pos.Line
}

func (p *Parser) parseLabel() (Node, error) {
	w, _ := p.expectWord()
	if _, err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	name := w.Text
	sub := strings.HasPrefix(name, ".")
	if sub {
		if p.parent == "" {
			return nil, errSem(w.Pos, "sub-label %q has no preceding global label", name)
		}
		name = p.parent + name
	} else {
		p.parent = name
	}
	if p.pendingMain {
		if p.st.MainLabel != "" {
			return nil, errSem(w.Pos, "multiple #[main] labels (already have %q)", p.st.MainLabel)
		}
		p.st.MainLabel = name
		p.pendingMain = false
	}
	return LabelNode{Name: name, Sub: sub, Pos: w.Pos}, nil
}

// parseInstructionLine parses "mnemonic arg, arg, ..." up to a newline
// or EOF.
func (p *Parser) parseInstructionLine() (InstructionNode, error) {
	w, err := p.expectWord()
	if err != nil {
		return InstructionNode{}, err
	}
	inst := InstructionNode{Mnemonic: strings.ToLower(w.Text), Pos: w.Pos}
	for p.peek().Kind != TNewLine && p.peek().Kind != TEOF {
		arg, err := p.parseArg()
		if err != nil {
			return InstructionNode{}, err
		}
		inst.Args = append(inst.Args, arg)
		if p.peek().Kind == TPunct && p.peek().Text == "," {
			p.next()
			continue
		}
		break
	}
	return inst, nil
}

func (p *Parser) parseArg() (Arg, error) {
	t := p.peek()

	if t.Kind == TWord && strings.HasPrefix(t.Text, "%") {
		p.next()
		reg, ok := isa.RegisterByName(strings.ToLower(t.Text[1:]))
		if !ok {
			return Arg{}, errSem(t.Pos, "unknown register %q", t.Text)
		}
		return Arg{Kind: ArgKindRegister, Reg: reg, Pos: t.Pos}, nil
	}

	if t.Kind == TPunct && t.Text == "[" {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return Arg{}, err
		}
		if _, err := p.expectPunct("]"); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgKindExpr, Expr: e, Pos: t.Pos}, nil
	}

	if t.Kind == TPunct && t.Text == "$" && p.macroParams != nil {
		save := p.i
		p.next()
		nameTok := p.peek()
		if nameTok.Kind == TWord {
			// The lexer treats '.' as an identifier character, so
			// "$addr.l" arrives as one word "addr.l" rather than
			// "addr" + "." + "l". Split a trailing .l/.h suffix off
			// here before checking the bare name against the arm's
			// declared parameters.
			name := nameTok.Text
			hasSuffix := true
			addrKind := ArgKindMacroVar
			if rest, ok := strings.CutSuffix(name, ".l"); ok {
				name, addrKind = rest, ArgKindAddrLow
			} else if rest, ok := strings.CutSuffix(name, ".h"); ok {
				name, addrKind = rest, ArgKindAddrHigh
			} else {
				hasSuffix = false
			}
			if _, ok := p.macroParams[name]; ok {
				p.next()
				if hasSuffix {
					return Arg{Kind: addrKind, Name: name, Pos: t.Pos}, nil
				}
				// also accept the space-separated "$name .l" form
				suffix := p.peek()
				if suffix.Kind == TWord && suffix.Text == ".l" {
					p.next()
					return Arg{Kind: ArgKindAddrLow, Name: name, Pos: t.Pos}, nil
				}
				if suffix.Kind == TWord && suffix.Text == ".h" {
					p.next()
					return Arg{Kind: ArgKindAddrHigh, Name: name, Pos: t.Pos}, nil
				}
				return Arg{Kind: ArgKindMacroVar, Name: name, Pos: t.Pos}, nil
			}
		}
		p.i = save
	}

	e, err := p.parseExpr()
	if err != nil {
		return Arg{}, err
	}
	return Arg{Kind: ArgKindExpr, Expr: e, Pos: t.Pos}, nil
}

// --- expression grammar: '|' < '&' < '+'/'-' < '*'/'/' < '<<'/'>>' < atom

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TPunct && p.peek().Text == "|" {
		pos := p.next().Pos
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = BinOp{Op: '|', L: l, R: r, P: pos}
	}
	return l, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	l, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TPunct && p.peek().Text == "&" {
		pos := p.next().Pos
		r, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		l = BinOp{Op: '&', L: l, R: r, P: pos}
	}
	return l, nil
}

func (p *Parser) parseAddSub() (Expr, error) {
	l, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TPunct && (p.peek().Text == "+" || p.peek().Text == "-") {
		op := p.next()
		r, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		l = BinOp{Op: op.Text[0], L: l, R: r, P: op.Pos}
	}
	return l, nil
}

func (p *Parser) parseMulDiv() (Expr, error) {
	l, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TPunct && (p.peek().Text == "*" || p.peek().Text == "/") {
		op := p.next()
		r, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		l = BinOp{Op: op.Text[0], L: l, R: r, P: op.Pos}
	}
	return l, nil
}

func (p *Parser) parseShift() (Expr, error) {
	l, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TPunct && (p.peek().Text == "<<" || p.peek().Text == ">>") {
		op := p.next()
		r, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		l = BinOp{Op: op.Text[0], Shift: true, L: l, R: r, P: op.Pos}
	}
	return l, nil
}

func (p *Parser) parseAtom() (Expr, error) {
	t := p.peek()
	switch {
	case t.Kind == TNumber:
		p.next()
		return NumberLit{Value: t.Num, P: t.Pos}, nil
	case t.Kind == TPunct && t.Text == "(":
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case t.Kind == TPunct && t.Text == "$":
		p.next()
		return CurrentAddr{P: t.Pos}, nil
	case t.Kind == TPunct && t.Text == "-":
		p.next()
		inner, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return BinOp{Op: '-', L: NumberLit{Value: 0, P: t.Pos}, R: inner, P: t.Pos}, nil
	case t.Kind == TWord:
		p.next()
		return Ident{Name: t.Text, P: t.Pos}, nil
	}
	return nil, errSyn(t.Pos, "expected an expression, got %q", tokenDesc(t))
}
