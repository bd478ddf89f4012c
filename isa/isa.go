// Package isa defines the opcode and register tables shared by the
// assembler and the virtual machine, so the two never drift apart.
package isa

import "fmt"

// Register identifies one of the eight 8-bit general registers.
type Register uint8

const (
	A Register = iota
	B
	C
	D
	Z
	L
	H
	F
)

var registerNames = [...]string{"a", "b", "c", "d", "z", "l", "h", "f"}

func (r Register) String() string {
	if int(r) < len(registerNames) {
		return registerNames[r]
	}
	return fmt.Sprintf("reg(%d)", uint8(r))
}

// RegisterByName looks up a register by its lowercase mnemonic.
func RegisterByName(name string) (Register, bool) {
	r, ok := registerByName[name]
	return r, ok
}

var registerByName map[string]Register

func init() {
	registerByName = make(map[string]Register, len(registerNames))
	for i, n := range registerNames {
		registerByName[n] = Register(i)
	}
}

// Flag bits within the F register.
const (
	FlagLF uint8 = 1 << 0 // less-than
	FlagEF uint8 = 1 << 1 // equal
	FlagCF uint8 = 1 << 2 // carry
	FlagBF uint8 = 1 << 3 // borrow
)

// Opcode is the 4-bit operation field of the header byte.
type Opcode uint8

const (
	OpLW Opcode = iota
	OpSW
	OpMOV
	OpPUSH
	OpPOP
	OpJNZ
	OpIN
	OpOUT
	OpCMP
	OpADC
	OpSBB
	OpOR
	OpNOR
	OpAND
	OpMB
	OpHALT
)

var opcodeNames = [...]string{
	"lw", "sw", "mov", "push", "pop", "jnz", "in", "out",
	"cmp", "adc", "sbb", "or", "nor", "and", "mb", "halt",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// OpcodeByName looks up an opcode by its lowercase mnemonic. "halt" is
// accepted here for tooling (disassembly) purposes even though it is
// never reached through the (op,imm) dispatch table — 0xFF is a
// sentinel the fetch stage special-cases before decode.
func OpcodeByName(name string) (Opcode, bool) {
	o, ok := opcodeByName[name]
	return o, ok
}

var opcodeByName map[string]Opcode

func init() {
	opcodeByName = make(map[string]Opcode, len(opcodeNames))
	for i, n := range opcodeNames {
		opcodeByName[n] = Opcode(i)
	}
}

// HaltSentinel is the reserved fetched byte that halts the VM without
// ever reaching opcode dispatch.
const HaltSentinel = 0xFF

// ArgSlotKind describes the shape of one argument slot in an opcode or
// macro-arm form.
type ArgSlotKind uint8

const (
	SlotNone ArgSlotKind = iota
	SlotReg              // a register, packed into the header byte's RRR bits
	SlotRegByte          // a register, emitted as a plain operand byte
	SlotImm8
	SlotImm16
)

// OpForm is one (opcode, imm-bit) encoding row from the opcode table.
// Slots lists the argument slots in source order; HeaderSlot is the
// index into Slots of the single slot (if any) whose register encoding
// is packed into the header byte's RRR bits. A value of -1 means the
// header register field is always 0 for this form.
type OpForm struct {
	Op          Opcode
	Imm         bool
	Slots       []ArgSlotKind
	HeaderSlot  int
	OperandSize int // bytes following the header, derived from Slots
}

func slotSize(k ArgSlotKind) int {
	switch k {
	case SlotReg:
		return 0 // folded into the header byte
	case SlotRegByte:
		return 1
	case SlotImm8:
		return 1
	case SlotImm16:
		return 2
	default:
		return 0
	}
}

func newForm(op Opcode, imm bool, headerSlot int, slots ...ArgSlotKind) OpForm {
	size := 0
	for i, s := range slots {
		if i == headerSlot {
			continue
		}
		size += slotSize(s)
	}
	return OpForm{Op: op, Imm: imm, Slots: slots, HeaderSlot: headerSlot, OperandSize: size}
}

// Forms enumerates every (opcode, imm) row of the encoding table in
// spec §6.1. The header register slot (when present) is the form's
// RRR register (the destination or left-hand side for most opcodes,
// the port register for OUT imm=0, the source register for OUT imm=1);
// any other register argument in the same form is a plain operand byte
// (e.g. IN imm=0's port register, OUT imm=0's source register).
var Forms = map[[2]any]OpForm{}

func formKey(op Opcode, imm bool) [2]any { return [2]any{op, imm} }

func register(op Opcode, imm bool, headerSlot int, slots ...ArgSlotKind) {
	Forms[formKey(op, imm)] = newForm(op, imm, headerSlot, slots...)
}

func init() {
	// LW: imm=0 (to=RRR, from=HL) -> 0 bytes; imm=1 (to=RRR, addr imm16) -> 2 bytes.
	register(OpLW, false, 0, SlotReg)
	register(OpLW, true, 0, SlotReg, SlotImm16)

	// SW: imm=0 (from=RRR, to=HL) -> 0; imm=1 (from=RRR, addr imm16) -> 2.
	register(OpSW, false, 0, SlotReg)
	register(OpSW, true, 0, SlotReg, SlotImm16)

	// MOV: imm=0 (to=RRR, from=reg) -> 1; imm=1 (to=RRR, imm8) -> 1.
	register(OpMOV, false, 0, SlotReg, SlotRegByte)
	register(OpMOV, true, 0, SlotReg, SlotImm8)

	// PUSH: imm=0 (from=RRR) -> 0; imm=1 (imm8) -> 1, no header register.
	register(OpPUSH, false, 0, SlotReg)
	register(OpPUSH, true, -1, SlotImm8)

	// POP: (to=RRR) -> 0, both imm states degenerate to the same form.
	register(OpPOP, false, 0, SlotReg)
	register(OpPOP, true, 0, SlotReg)

	// JNZ: imm=0 (cond=RRR) -> 0; imm=1 (imm8 cond) -> 1, no header register.
	register(OpJNZ, false, 0, SlotReg)
	register(OpJNZ, true, -1, SlotImm8)

	// IN: imm=0 (to=RRR, port=reg) -> 1; imm=1 (to=RRR, port=imm8) -> 1.
	register(OpIN, false, 0, SlotReg, SlotRegByte)
	register(OpIN, true, 0, SlotReg, SlotImm8)

	// OUT: imm=0 (port=RRR, from=reg) -> 1; imm=1 (port=imm8) -> 1, from
	// rides in the header RRR bits.
	register(OpOUT, false, 0, SlotReg, SlotRegByte)
	register(OpOUT, true, 1, SlotImm8, SlotReg)

	// CMP/ADC/SBB/OR/NOR/AND: all share the CMP shape.
	for _, op := range []Opcode{OpCMP, OpADC, OpSBB, OpOR, OpNOR, OpAND} {
		register(op, false, 0, SlotReg, SlotRegByte)
		register(op, true, 0, SlotReg, SlotImm8)
	}

	// MB: imm=1 only, (bank=imm8) -> 1, no header register.
	register(OpMB, true, -1, SlotImm8)
}

// Lookup returns the encoding form for an opcode/imm pair.
func Lookup(op Opcode, imm bool) (OpForm, bool) {
	f, ok := Forms[formKey(op, imm)]
	return f, ok
}

// EncodeHeader packs the header byte from its three fields.
func EncodeHeader(op Opcode, imm bool, reg Register) byte {
	var immBit byte
	if imm {
		immBit = 1
	}
	return byte(op)<<4 | immBit<<3 | byte(reg)&0x7
}

// DecodeHeader splits a header byte into its three fields.
func DecodeHeader(b byte) (op Opcode, imm bool, reg Register) {
	op = Opcode(b >> 4)
	imm = (b>>3)&1 == 1
	reg = Register(b & 0x7)
	return
}
