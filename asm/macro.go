package asm

import "cr8vm/isa"

// registerBuiltinMacros installs the macros that exist regardless of
// any #[macro] declaration: there is no native unconditional-jump
// opcode, so "jmp" is synthesized from mov+jnz using Z as scratch.
func registerBuiltinMacros(st *SymbolTable) {
	st.Macros["jmp"] = &MacroDef{
		Name: "jmp",
		Arms: []CaptureArm{
			{
				Params: []CaptureParamType{ParamImm16},
				Names:  []string{"addr"},
				Body: []InstructionNode{
					{Mnemonic: "mov", Args: []Arg{
						{Kind: ArgKindRegister, Reg: isa.H},
						{Kind: ArgKindAddrHigh, Name: "addr"},
					}},
					{Mnemonic: "mov", Args: []Arg{
						{Kind: ArgKindRegister, Reg: isa.L},
						{Kind: ArgKindAddrLow, Name: "addr"},
					}},
					{Mnemonic: "mov", Args: []Arg{
						{Kind: ArgKindRegister, Reg: isa.Z},
						{Kind: ArgKindExpr, Expr: NumberLit{Value: 1}},
					}},
					{Mnemonic: "jnz", Args: []Arg{
						{Kind: ArgKindRegister, Reg: isa.Z},
					}},
				},
			},
		},
	}
}

// expandNodes walks a parsed node list, replacing macro invocations
// (recursively) with native instructions, "halt" with its sentinel
// byte, and passing labels/constants/native instructions through.
func expandNodes(nodes []Node, st *SymbolTable) ([]Node, error) {
	var out []Node
	for _, n := range nodes {
		inst, ok := n.(InstructionNode)
		if !ok {
			out = append(out, n)
			continue
		}

		if inst.Mnemonic == "halt" {
			if len(inst.Args) != 0 {
				return nil, errSem(inst.Pos, "halt takes no arguments")
			}
			out = append(out, ConstantNode{Bytes: []byte{isa.HaltSentinel}, Pos: inst.Pos})
			continue
		}

		if _, ok := isa.OpcodeByName(inst.Mnemonic); ok {
			out = append(out, inst)
			continue
		}

		def, ok := st.Macros[inst.Mnemonic]
		if !ok {
			return nil, errSem(inst.Pos, "unknown mnemonic %q", inst.Mnemonic)
		}
		arm, err := matchArm(def, inst.Args, inst.Pos)
		if err != nil {
			return nil, err
		}
		body, err := instantiateArm(arm, inst.Args, inst.Pos)
		if err != nil {
			return nil, err
		}
		bodyNodes := make([]Node, len(body))
		for i, b := range body {
			bodyNodes[i] = b
		}
		expanded, err := expandNodes(bodyNodes, st)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// matchArm picks the first declared arm whose arity and per-slot kind
// match the call-site arguments. Value-fit (does this expression fit
// in 8 bits?) never participates: with forward references unresolved
// at this stage there is nothing to fit-check yet, so declaration
// order alone breaks imm8-vs-imm16 ties.
func matchArm(def *MacroDef, args []Arg, pos Pos) (CaptureArm, error) {
	for _, arm := range def.Arms {
		if len(arm.Params) != len(args) {
			continue
		}
		ok := true
		for i, want := range arm.Params {
			if !argMatchesParam(args[i], want) {
				ok = false
				break
			}
		}
		if ok {
			return arm, nil
		}
	}
	return CaptureArm{}, errSem(pos, "no overload of %q matches %d argument(s)", def.Name, len(args))
}

func argMatchesParam(a Arg, want CaptureParamType) bool {
	switch want {
	case ParamReg:
		return a.Kind == ArgKindRegister
	case ParamImm8, ParamImm16:
		return a.Kind == ArgKindExpr
	case ParamRegOrImm8:
		return a.Kind == ArgKindRegister || a.Kind == ArgKindExpr
	}
	return false
}

// instantiateArm binds the arm's named parameters to the call-site
// arguments and substitutes every reference to them throughout the
// arm body, producing a fresh, concrete instruction list. The body is
// not expanded further here; the caller recurses.
func instantiateArm(arm CaptureArm, args []Arg, callPos Pos) ([]InstructionNode, error) {
	subst := make(map[string]Arg, len(arm.Names))
	for i, name := range arm.Names {
		subst[name] = args[i]
	}

	body := make([]InstructionNode, len(arm.Body))
	for i, inst := range arm.Body {
		newArgs := make([]Arg, len(inst.Args))
		for j, a := range inst.Args {
			sa, err := substituteArg(a, subst, callPos)
			if err != nil {
				return nil, err
			}
			newArgs[j] = sa
		}
		body[i] = InstructionNode{Mnemonic: inst.Mnemonic, Args: newArgs, Pos: callPos}
	}
	return body, nil
}

func substituteArg(a Arg, subst map[string]Arg, callPos Pos) (Arg, error) {
	switch a.Kind {
	case ArgKindMacroVar:
		bound, ok := subst[a.Name]
		if !ok {
			return Arg{}, errSem(callPos, "unbound macro parameter %q", a.Name)
		}
		return bound, nil
	case ArgKindAddrLow, ArgKindAddrHigh:
		bound, ok := subst[a.Name]
		if !ok {
			return Arg{}, errSem(callPos, "unbound macro parameter %q", a.Name)
		}
		if bound.Kind != ArgKindExpr {
			return Arg{}, errSem(callPos, "cannot take .l/.h of register parameter %q", a.Name)
		}
		which := byte('l')
		if a.Kind == ArgKindAddrHigh {
			which = 'h'
		}
		return Arg{Kind: ArgKindExpr, Expr: AddrByte{Which: which, Inner: bound.Expr, P: callPos}, Pos: callPos}, nil
	default:
		return a, nil
	}
}
