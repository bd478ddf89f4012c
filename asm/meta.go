package asm

import "strings"

// staticResolver evaluates the expressions inside directives (static
// values, ram reservation lengths, const byte lists), which must be
// known immediately at parse time and so may only reference statics
// and other already-reserved ram locations, never forward labels.
type staticResolver struct{ st *SymbolTable }

func (s staticResolver) Lookup(name string) (int64, bool) {
	if v, ok := s.st.Statics[name]; ok {
		return v, true
	}
	if v, ok := s.st.RamLocations[name]; ok {
		return v, true
	}
	return 0, false
}
func (s staticResolver) Here() int64 { return 0 }

// parseMeta dispatches on the directive name following "#[".
func (p *Parser) parseMeta() ([]Node, error) {
	hash, _ := p.expectPunct("#")
	if _, err := p.expectPunct("["); err != nil {
		return nil, err
	}
	name, err := p.expectWord()
	if err != nil {
		return nil, err
	}
	switch name.Text {
	case "use":
		return p.parseUseDirective(hash.Pos)
	case "main":
		if _, err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		p.pendingMain = true
		return nil, nil
	case "static":
		return p.parseStaticDirective(hash.Pos)
	case "dyn":
		return p.parseDynDirective(hash.Pos)
	case "const":
		return p.parseConstDirective(hash.Pos)
	case "macro":
		return p.parseMacroDirective(hash.Pos)
	}
	return nil, errSyn(name.Pos, "unknown directive %q", name.Text)
}

func (p *Parser) parseUseDirective(pos Pos) ([]Node, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var sb strings.Builder
	for {
		t := p.peek()
		if t.Kind == TPunct && t.Text == ")" {
			break
		}
		if t.Kind == TEOF || t.Kind == TNewLine {
			return nil, errSyn(t.Pos, "unterminated use(...) directive")
		}
		sb.WriteString(t.Text)
		p.next()
	}
	p.next() // ')'
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	path := sb.String()
	if p.st.FilesImported[path] {
		return nil, nil
	}
	p.st.FilesImported[path] = true
	if p.resolver == nil {
		return nil, errSem(pos, "no file resolver configured for #[use(%s)]", path)
	}
	canonical, source, err := p.resolver.Resolve(path)
	if err != nil {
		return nil, errSem(pos, "cannot resolve import %q: %v", path, err)
	}
	return ParseFile(canonical, source, p.st, p.resolver)
}

func (p *Parser) parseStaticDirective(pos Pos) ([]Node, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	name, err := p.expectWord()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	v, err := e.Eval(staticResolver{p.st})
	if err != nil {
		return nil, err
	}
	if _, exists := p.st.Statics[name.Text]; exists {
		return nil, errSem(name.Pos, "static %q redefined", name.Text)
	}
	p.st.Statics[name.Text] = v
	return nil, nil
}

func (p *Parser) parseDynDirective(pos Pos) ([]Node, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var name string
	if p.peek().Kind == TPunct && p.peek().Text == "&" {
		p.next()
	} else {
		w, err := p.expectWord()
		if err != nil {
			return nil, err
		}
		name = w.Text
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	length, err := e.Eval(staticResolver{p.st})
	if err != nil {
		return nil, err
	}
	addr := p.st.RamOrigin
	if name != "" {
		if _, exists := p.st.RamLocations[name]; exists {
			return nil, errSem(pos, "ram location %q redefined", name)
		}
		p.st.RamLocations[name] = addr
	}
	p.st.RamOrigin += length
	return nil, nil
}

func (p *Parser) parseConstDirective(pos Pos) ([]Node, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	name, err := p.expectWord()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var bytes []byte
	for {
		p.skipNewlines()
		if p.peek().Kind == TPunct && p.peek().Text == "}" {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		v, err := e.Eval(staticResolver{p.st})
		if err != nil {
			return nil, err
		}
		bytes = append(bytes, byte(v))
		p.skipNewlines()
		if p.peek().Kind == TPunct && p.peek().Text == "," {
			p.next()
			continue
		}
		break
	}
	p.skipNewlines()
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return []Node{ConstantNode{Name: name.Text, Bytes: bytes, Pos: pos}}, nil
}

func (p *Parser) parseMacroDirective(pos Pos) ([]Node, error) {
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	p.skipNewlines()
	nameTok, err := p.expectWord()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	def := &MacroDef{Name: nameTok.Text}
	for {
		p.skipNewlines()
		if p.peek().Kind == TPunct && p.peek().Text == "}" {
			break
		}
		arm, err := p.parseMacroArm()
		if err != nil {
			return nil, err
		}
		def.Arms = append(def.Arms, arm)
		p.skipNewlines()
	}
	p.next() // '}'
	if _, exists := p.st.Macros[nameTok.Text]; exists {
		return nil, errSem(nameTok.Pos, "macro %q redefined", nameTok.Text)
	}
	p.st.Macros[nameTok.Text] = def
	return nil, nil
}

func (p *Parser) parseMacroArm() (CaptureArm, error) {
	if _, err := p.expectPunct("("); err != nil {
		return CaptureArm{}, err
	}
	var arm CaptureArm
	for !(p.peek().Kind == TPunct && p.peek().Text == ")") {
		nameTok, err := p.expectWord()
		if err != nil {
			return CaptureArm{}, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return CaptureArm{}, err
		}
		kindTok, err := p.expectWord()
		if err != nil {
			return CaptureArm{}, err
		}
		pt, err := p.parseParamKind(kindTok)
		if err != nil {
			return CaptureArm{}, err
		}
		arm.Params = append(arm.Params, pt)
		arm.Names = append(arm.Names, nameTok.Text)
		if p.peek().Kind == TPunct && p.peek().Text == "," {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expectPunct(")"); err != nil {
		return CaptureArm{}, err
	}
	if _, err := p.expectPunct("=>"); err != nil {
		return CaptureArm{}, err
	}
	p.skipNewlines()
	if _, err := p.expectPunct("{"); err != nil {
		return CaptureArm{}, err
	}

	prevParams := p.macroParams
	params := make(map[string]CaptureParamType, len(arm.Names))
	for i, n := range arm.Names {
		params[n] = arm.Params[i]
	}
	p.macroParams = params

	for {
		p.skipNewlines()
		if p.peek().Kind == TPunct && p.peek().Text == "}" {
			break
		}
		inst, err := p.parseInstructionLine()
		if err != nil {
			p.macroParams = prevParams
			return CaptureArm{}, err
		}
		arm.Body = append(arm.Body, inst)
	}
	p.macroParams = prevParams
	p.next() // '}'
	return arm, nil
}

func (p *Parser) parseParamKind(first Token) (CaptureParamType, error) {
	var pt CaptureParamType
	switch first.Text {
	case "reg":
		pt = ParamReg
	case "imm8":
		pt = ParamImm8
	case "imm16":
		pt = ParamImm16
	default:
		return 0, errSyn(first.Pos, "unknown parameter type %q", first.Text)
	}
	if p.peek().Kind == TPunct && p.peek().Text == "|" {
		p.next()
		alt, err := p.expectWord()
		if err != nil {
			return 0, err
		}
		if (first.Text == "imm8" && alt.Text == "reg") || (first.Text == "reg" && alt.Text == "imm8") {
			return ParamRegOrImm8, nil
		}
		return 0, errSyn(alt.Pos, "unsupported parameter type %q|%q", first.Text, alt.Text)
	}
	return pt, nil
}
