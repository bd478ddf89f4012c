package asm

import "cr8vm/isa"

// resolveForm picks the (opcode, imm) encoding row whose slot shapes
// structurally match the call's arguments. The imm bit is never chosen
// heuristically by value: it falls out of which row's argument-kind
// shape fits, exactly as the encoding table in isa.Forms prescribes.
func resolveForm(mnemonic string, args []Arg, pos Pos) (isa.OpForm, error) {
	op, ok := isa.OpcodeByName(mnemonic)
	if !ok {
		return isa.OpForm{}, errSem(pos, "unknown opcode %q", mnemonic)
	}
	for _, imm := range [...]bool{false, true} {
		form, ok := isa.Lookup(op, imm)
		if !ok {
			continue
		}
		if formMatches(form, args) {
			return form, nil
		}
	}
	return isa.OpForm{}, errSem(pos, "no encoding of %q matches the given arguments", mnemonic)
}

func formMatches(form isa.OpForm, args []Arg) bool {
	if len(form.Slots) != len(args) {
		return false
	}
	for i, slot := range form.Slots {
		switch slot {
		case isa.SlotReg, isa.SlotRegByte:
			if args[i].Kind != ArgKindRegister {
				return false
			}
		case isa.SlotImm8, isa.SlotImm16:
			if args[i].Kind != ArgKindExpr {
				return false
			}
		}
	}
	return true
}

// layoutResult is everything the emitter needs after the single
// forward sizing pass: every node's resolved form (for instructions)
// and, in parallel with the node list, the global label in scope at
// each position (for qualifying ".sub" references).
type layoutResult struct {
	forms    []isa.OpForm // nil entry for non-instruction nodes
	parentAt []string
	size     int64
}

// computeLayout walks the macro-expanded node list once, assigning an
// address to every label and constant and sizing every instruction.
func computeLayout(nodes []Node, st *SymbolTable) (layoutResult, error) {
	res := layoutResult{
		forms:    make([]isa.OpForm, len(nodes)),
		parentAt: make([]string, len(nodes)),
	}
	var addr int64
	var parent string

	for i, n := range nodes {
		res.parentAt[i] = parent
		switch v := n.(type) {
		case LabelNode:
			if _, exists := st.Labels[v.Name]; exists {
				return layoutResult{}, errLayout(v.Pos, "label %q redefined", v.Name)
			}
			st.Labels[v.Name] = addr
			if !v.Sub {
				parent = v.Name
			}
		case ConstantNode:
			if v.Name != "" {
				if _, exists := st.Labels[v.Name]; exists {
					return layoutResult{}, errLayout(v.Pos, "symbol %q redefined", v.Name)
				}
				st.Labels[v.Name] = addr
			}
			addr += int64(len(v.Bytes))
		case InstructionNode:
			form, err := resolveForm(v.Mnemonic, v.Args, v.Pos)
			if err != nil {
				return layoutResult{}, err
			}
			res.forms[i] = form
			addr += int64(1 + form.OperandSize)
		}
	}
	res.size = addr
	return res, nil
}
