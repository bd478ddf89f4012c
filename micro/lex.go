package micro

import (
	"fmt"
	"strings"

	"cr8vm/asm"
	"cr8vm/isa"
)

// Variants holds the two independently-optional signal programs for
// one opcode: the register-operand cycle sequence and the
// immediate-operand one. Either may be absent if that encoding form
// doesn't exist for the opcode (e.g. HALT has neither, it's a sentinel
// byte, never a dispatched opcode).
type Variants struct {
	Reg [][]Signal
	Imm [][]Signal
}

// Program is the parsed DSL: one Variants per opcode that was given a
// microcode definition.
type Program map[isa.Opcode]Variants

// parser walks the token stream produced by asm.NewLexer. The DSL
// reuses the assembler's lexer wholesale — its word/punct/comment
// rules already cover everything the microcode grammar needs (braces,
// parens, colon, "=>", ';' comments) — and layers its own
// recursive-descent grammar on top, the same division of labor the
// assembler package itself uses between token.go and parser.go.
type parser struct {
	toks []asm.Token
	i    int
}

func newParser(file, source string) (*parser, error) {
	lex := asm.NewLexer(file, source)
	var toks []asm.Token
	for {
		t, err := lex.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Kind == asm.TEOF {
			break
		}
	}
	return &parser{toks: toks}, nil
}

func (p *parser) peek() asm.Token { return p.toks[p.i] }
func (p *parser) next() asm.Token {
	t := p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}
func (p *parser) skipNewlines() {
	for p.peek().Kind == asm.TNewLine {
		p.next()
	}
}

func (p *parser) expectPunct(s string) error {
	t := p.peek()
	if t.Kind != asm.TPunct || t.Text != s {
		return fmt.Errorf("%s: expected %q, got %q", t.Pos, s, t.Text)
	}
	p.next()
	return nil
}

func (p *parser) expectWord() (asm.Token, error) {
	t := p.peek()
	if t.Kind != asm.TWord {
		return t, fmt.Errorf("%s: expected a word, got %q", t.Pos, t.Text)
	}
	p.next()
	return t, nil
}

// Parse reads the whole microcode DSL source: a sequence of
// "OPCODE: { (reg) => {...} (imm) => {...} }" blocks, per spec §6.3's
// second DSL.
func Parse(file, source string) (Program, error) {
	p, err := newParser(file, source)
	if err != nil {
		return nil, err
	}
	prog := make(Program)
	for {
		p.skipNewlines()
		if p.peek().Kind == asm.TEOF {
			return prog, nil
		}
		opTok, err := p.expectWord()
		if err != nil {
			return nil, err
		}
		op, ok := isa.OpcodeByName(strings.ToLower(opTok.Text))
		if !ok {
			return nil, fmt.Errorf("%s: unknown opcode %q", opTok.Pos, opTok.Text)
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		variants, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if _, exists := prog[op]; exists {
			return nil, fmt.Errorf("%s: microcode for %q redefined", opTok.Pos, opTok.Text)
		}
		prog[op] = variants
	}
}

func (p *parser) parseBlock() (Variants, error) {
	p.skipNewlines()
	if err := p.expectPunct("{"); err != nil {
		return Variants{}, err
	}
	var v Variants
	for {
		p.skipNewlines()
		if p.peek().Kind == asm.TPunct && p.peek().Text == "}" {
			p.next()
			return v, nil
		}
		if err := p.expectPunct("("); err != nil {
			return Variants{}, err
		}
		idTok, err := p.expectWord()
		if err != nil {
			return Variants{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return Variants{}, err
		}
		if err := p.expectPunct("=>"); err != nil {
			return Variants{}, err
		}
		p.skipNewlines()
		if err := p.expectPunct("{"); err != nil {
			return Variants{}, err
		}
		var lines [][]Signal
		for {
			p.skipNewlines()
			if p.peek().Kind == asm.TPunct && p.peek().Text == "}" {
				p.next()
				break
			}
			line, err := p.parseLine()
			if err != nil {
				return Variants{}, err
			}
			lines = append(lines, line)
		}
		switch idTok.Text {
		case "reg":
			if v.Reg != nil {
				return Variants{}, fmt.Errorf("%s: \"reg\" variant given twice", idTok.Pos)
			}
			v.Reg = lines
		case "imm":
			if v.Imm != nil {
				return Variants{}, fmt.Errorf("%s: \"imm\" variant given twice", idTok.Pos)
			}
			v.Imm = lines
		default:
			return Variants{}, fmt.Errorf("%s: expected \"reg\" or \"imm\", got %q", idTok.Pos, idTok.Text)
		}
	}
}

// parseLine reads one newline-terminated set of concurrent signals.
func (p *parser) parseLine() ([]Signal, error) {
	var sigs []Signal
	for p.peek().Kind != asm.TNewLine && p.peek().Kind != asm.TEOF && !(p.peek().Kind == asm.TPunct && p.peek().Text == "}") {
		sig, err := p.parseSignal()
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

func (p *parser) parseSignal() (Signal, error) {
	head, err := p.expectWord()
	if err != nil {
		return Signal{}, err
	}
	switch head.Text {
	case "nop":
		return Signal{Kind: KindNop}, nil
	case "aw":
		sub, err := p.expectWord()
		if err != nil {
			return Signal{}, err
		}
		w, ok := map[string]AddressBusWriter{
			"pc": AWProgramCounter, "sp": AWStackPointer, "xy": AWXY, "lr": AWLhsRhs,
		}[sub.Text]
		if !ok {
			return Signal{}, fmt.Errorf("%s: invalid \"aw\" operand %q", sub.Pos, sub.Text)
		}
		return Signal{Kind: KindAW, AW: w}, nil
	case "dw":
		sub, err := p.expectWord()
		if err != nil {
			return Signal{}, err
		}
		if sub.Text == "sel" {
			return Signal{Kind: KindDWSel}, nil
		}
		w, ok := map[string]DataBusWriter{
			"k": DWK, "alflg": DWAluFlags, "alu": DWAlu, "mem": DWMemory,
			"io": DWIo, "dev": DWDevice, "rhs": DWRhs, "op": DWOperation,
		}[sub.Text]
		if !ok {
			return Signal{}, fmt.Errorf("%s: invalid \"dw\" operand %q", sub.Pos, sub.Text)
		}
		return Signal{Kind: KindDW, DW: w}, nil
	case "dr":
		sub, err := p.expectWord()
		if err != nil {
			return Signal{}, err
		}
		if sub.Text == "sel" {
			return Signal{Kind: KindDRSel}, nil
		}
		r, ok := map[string]DataBusReader{
			"f": DRFlags, "mem": DRMemory, "k": DRMemoryBank, "dev": DRDevice,
			"io": DRIo, "rhs": DRRhs, "lhs": DRLhs,
		}[sub.Text]
		if !ok {
			return Signal{}, fmt.Errorf("%s: invalid \"dr\" operand %q", sub.Pos, sub.Text)
		}
		return Signal{Kind: KindDR, DR: r}, nil
	case "alu":
		sub, err := p.expectWord()
		if err != nil {
			return Signal{}, err
		}
		a, ok := map[string]AluSignal{
			"adc": AluAdd, "sbb": AluSub, "and": AluAnd, "or": AluOr, "nor": AluNor, "cmp": AluCmp,
		}[sub.Text]
		if !ok {
			return Signal{}, fmt.Errorf("%s: invalid \"alu\" operand %q", sub.Pos, sub.Text)
		}
		return Signal{Kind: KindAlu, Alu: a}, nil
	case "pc":
		sub, err := p.expectWord()
		if err != nil {
			return Signal{}, err
		}
		s, ok := map[string]ProgramCounterSignal{
			"inc": PCIncrement, "jmp": PCJump, "jnz": PCJumpNotZero,
		}[sub.Text]
		if !ok {
			return Signal{}, fmt.Errorf("%s: invalid \"pc\" operand %q", sub.Pos, sub.Text)
		}
		return Signal{Kind: KindPC, PC: s}, nil
	case "sp":
		sub, err := p.expectWord()
		if err != nil {
			return Signal{}, err
		}
		s, ok := map[string]StackPointerSignal{
			"inc": SPIncrement, "dec": SPDecrement,
		}[sub.Text]
		if !ok {
			return Signal{}, fmt.Errorf("%s: invalid \"sp\" operand %q", sub.Pos, sub.Text)
		}
		return Signal{Kind: KindSP, SP: s}, nil
	}
	return Signal{}, fmt.Errorf("%s: unknown signal %q", head.Pos, head.Text)
}
