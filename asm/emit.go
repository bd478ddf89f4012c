package asm

import (
	"strings"

	"cr8vm/isa"
)

// emitResolver answers Resolver queries during final emission, where
// every label has a known address: current labels, then statics, then
// a parent-qualified sub-label match, then ram_locations — the order
// spec §4.2 prescribes.
type emitResolver struct {
	st     *SymbolTable
	parent string
	here   int64
}

func (r emitResolver) Lookup(name string) (int64, bool) {
	if v, ok := r.st.Labels[name]; ok {
		return v, true
	}
	if v, ok := r.st.Statics[name]; ok {
		return v, true
	}
	if strings.HasPrefix(name, ".") && r.parent != "" {
		if v, ok := r.st.Labels[r.parent+name]; ok {
			return v, true
		}
	}
	if v, ok := r.st.RamLocations[name]; ok {
		return v, true
	}
	return 0, false
}

func (r emitResolver) Here() int64 { return r.here }

// Assemble runs the full pipeline described in spec §2: parse (inlining
// #[use] imports recursively), expand macros, lay out labels, and emit
// the final byte stream. mainFile/source are the program's entry file;
// resolver answers #[use] imports for every file pulled in along the
// way.
func Assemble(mainFile, source string, resolver FileResolver) ([]byte, error) {
	st := NewSymbolTable()
	registerBuiltinMacros(st)

	nodes, err := ParseFile(mainFile, source, st, resolver)
	if err != nil {
		return nil, err
	}

	if st.MainLabel != "" {
		boot := InstructionNode{
			Mnemonic: "jmp",
			Args: []Arg{
				{Kind: ArgKindExpr, Expr: Ident{Name: st.MainLabel}},
			},
		}
		nodes = append([]Node{boot}, nodes...)
	}

	expanded, err := expandNodes(nodes, st)
	if err != nil {
		return nil, err
	}

	layout, err := computeLayout(expanded, st)
	if err != nil {
		return nil, err
	}

	return emitBytes(expanded, layout, st)
}

// emitBytes walks the expanded, laid-out node list a second time,
// producing the final byte stream. Every instruction's size here must
// equal the size computeLayout predicted for it; emitInstruction draws
// its operand byte count directly from the same isa.OpForm so there is
// no way for the two passes to disagree.
func emitBytes(nodes []Node, res layoutResult, st *SymbolTable) ([]byte, error) {
	out := make([]byte, 0, res.size)
	var addr int64

	for i, n := range nodes {
		switch v := n.(type) {
		case LabelNode:
			// no bytes emitted
		case ConstantNode:
			out = append(out, v.Bytes...)
			addr += int64(len(v.Bytes))
		case InstructionNode:
			form := res.forms[i]
			r := emitResolver{st: st, parent: res.parentAt[i], here: addr}
			bytes, err := emitInstruction(v, form, r)
			if err != nil {
				return nil, err
			}
			out = append(out, bytes...)
			addr += int64(len(bytes))
		}
	}
	return out, nil
}

// emitInstruction produces the header byte and operand bytes for one
// instruction, per spec §4.6: header is (op<<4 | imm<<3 | reg), where
// reg is the form's designated header slot (0 if the form has none),
// followed by operand bytes in source order.
func emitInstruction(inst InstructionNode, form isa.OpForm, r Resolver) ([]byte, error) {
	var headerReg isa.Register
	if form.HeaderSlot >= 0 {
		headerReg = inst.Args[form.HeaderSlot].Reg
	}

	out := make([]byte, 1, 1+form.OperandSize)
	out[0] = isa.EncodeHeader(form.Op, form.Imm, headerReg)

	for i, slot := range form.Slots {
		if i == form.HeaderSlot {
			continue
		}
		arg := inst.Args[i]
		switch slot {
		case isa.SlotRegByte:
			out = append(out, byte(arg.Reg))
		case isa.SlotImm8:
			v, err := evalOperand(arg, r)
			if err != nil {
				return nil, err
			}
			out = append(out, byte(v))
		case isa.SlotImm16:
			v, err := evalOperand(arg, r)
			if err != nil {
				return nil, err
			}
			out = append(out, byte(v), byte(v>>8))
		}
	}
	return out, nil
}

// evalOperand evaluates an Imm8/Imm16 argument's expression. By this
// stage every argument reaching an operand slot is ArgKindExpr: macro
// parameters and .l/.h sentinels were substituted away during macro
// expansion (asm/macro.go's substituteArg).
func evalOperand(a Arg, r Resolver) (int64, error) {
	if a.Kind != ArgKindExpr {
		return 0, errLayout(a.Pos, "internal: unresolved argument reached emission")
	}
	return a.Expr.Eval(r)
}
