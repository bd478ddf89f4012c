// Package micro assembles the microcode DSL (spec §6.5) into the three
// 256-byte ROM images the control unit addresses by opcode/imm/cycle.
package micro

import "fmt"

// AddressBusWriter selects which register pair drives the address bus
// for this cycle.
type AddressBusWriter int

const (
	AWProgramCounter AddressBusWriter = iota
	AWStackPointer
	AWXY
	AWLhsRhs
)

// DataBusWriter selects which source drives the data bus.
type DataBusWriter int

const (
	DWDevice DataBusWriter = iota
	DWK
	DWAluFlags
	DWAlu
	DWMemory
	DWIo
	DWRhs
	DWOperation
)

// DataBusReader selects which destination latches the data bus.
type DataBusReader int

const (
	DRSel DataBusReader = iota
	DRFlags
	DRMemoryBank
	DRIo
	DRMemory
	DRLhs
	DRRhs
	DRDevice
)

// AluSignal selects the ALU operation for this cycle.
type AluSignal int

const (
	AluAdd AluSignal = iota
	AluSub
	AluAnd
	AluOr
	AluNor
	AluCmp
)

// ProgramCounterSignal is one of the three ways the PC can move.
type ProgramCounterSignal int

const (
	PCIncrement ProgramCounterSignal = iota
	PCJump
	PCJumpNotZero
)

// StackPointerSignal moves SP by one in either direction.
type StackPointerSignal int

const (
	SPIncrement StackPointerSignal = iota
	SPDecrement
)

// Signal is one concurrent control assertion named on a single DSL
// line; exactly one of the typed fields is meaningful, selected by Kind.
type Signal struct {
	Kind SignalKind

	AW  AddressBusWriter
	DW  DataBusWriter
	DR  DataBusReader
	Alu AluSignal
	PC  ProgramCounterSignal
	SP  StackPointerSignal

	DWSel bool // "dw sel": select the writer by the register ID in Rhs
	DRSel bool // "dr sel": select the reader by the register ID in Lhs
}

type SignalKind int

const (
	KindAW SignalKind = iota
	KindDW
	KindDWSel
	KindDR
	KindDRSel
	KindAlu
	KindPC
	KindSP
	KindNop
)

// ControlWord is the struct-of-option-slots model of one 24-bit control
// word: at most one assignment per resource, mirroring the "cannot set
// X twice" rule the DSL enforces line by line.
type ControlWord struct {
	aw    *AddressBusWriter
	dw    *DataBusWriter
	dwSel bool
	dr    *DataBusReader
	drSel bool
	alu   *AluSignal
	pc    *ProgramCounterSignal
	sp    *StackPointerSignal
}

// Apply folds one signal into the word, erroring if its resource (data
// bus writer, address bus writer, ...) was already assigned on this
// line — the DSL has no notion of "last write wins".
func (c *ControlWord) Apply(s Signal) error {
	switch s.Kind {
	case KindAW:
		if c.aw != nil {
			return fmt.Errorf("address bus writer assigned twice on one line")
		}
		v := s.AW
		c.aw = &v
	case KindDW:
		if c.dw != nil || c.dwSel {
			return fmt.Errorf("data bus writer assigned twice on one line")
		}
		v := s.DW
		c.dw = &v
	case KindDWSel:
		if c.dw != nil || c.dwSel {
			return fmt.Errorf("data bus writer assigned twice on one line")
		}
		c.dwSel = true
	case KindDR:
		if c.dr != nil || c.drSel {
			return fmt.Errorf("data bus reader assigned twice on one line")
		}
		v := s.DR
		c.dr = &v
	case KindDRSel:
		if c.dr != nil || c.drSel {
			return fmt.Errorf("data bus reader assigned twice on one line")
		}
		c.drSel = true
	case KindAlu:
		if c.alu != nil {
			return fmt.Errorf("alu op assigned twice on one line")
		}
		v := s.Alu
		c.alu = &v
	case KindPC:
		if c.pc != nil {
			return fmt.Errorf("pc signal assigned twice on one line")
		}
		v := s.PC
		c.pc = &v
	case KindSP:
		if c.sp != nil {
			return fmt.Errorf("sp signal assigned twice on one line")
		}
		v := s.SP
		c.sp = &v
	case KindNop:
		// no resource claimed
	default:
		return fmt.Errorf("unknown signal kind %d", s.Kind)
	}
	return nil
}

// Pack bit-packs the word into its 3-byte wire form. Layout:
//
//	byte0: dr_k(7) dr_f(6) -(5) dr_io(4) dr_mem(3) dr_lhs(2) dr_rhs(1) dr_dev(0)
//	byte1: dr_sel(7) dw_sel(6) dw_id(5..3) aw_id(2..1) pc_jnz(0)
//	byte2: pc_jmp(7) pc_inc(6) alu_op(5..3) sp_inc(2) sp_dec(1) cc(0)
//
// Bit 5 of byte0 is reserved (the DSL has no signal that claims it),
// kept so the layout lines up with the control unit's wiring diagram.
// The cycle-complete bit (byte2 bit0) is not set here; compile.go sets
// it on the last line of each variant.
func (c *ControlWord) Pack() [3]byte {
	var b [3]byte

	if c.dr != nil {
		switch *c.dr {
		case DRMemoryBank:
			b[0] |= 1 << 7
		case DRFlags:
			b[0] |= 1 << 6
		case DRIo:
			b[0] |= 1 << 4
		case DRMemory:
			b[0] |= 1 << 3
		case DRLhs:
			b[0] |= 1 << 2
		case DRRhs:
			b[0] |= 1 << 1
		case DRDevice:
			b[0] |= 1 << 0
		}
	}

	if c.drSel {
		b[1] |= 1 << 7
	}
	if c.dwSel {
		b[1] |= 1 << 6
	}
	if c.dw != nil {
		b[1] |= (byte(*c.dw) & 0b111) << 3
	}
	if c.aw != nil {
		b[1] |= (byte(*c.aw) & 0b11) << 1
	}
	if c.pc != nil && *c.pc == PCJumpNotZero {
		b[1] |= 1 << 0
	}

	if c.pc != nil && *c.pc == PCJump {
		b[2] |= 1 << 7
	}
	if c.pc != nil && *c.pc == PCIncrement {
		b[2] |= 1 << 6
	}
	if c.alu != nil {
		b[2] |= (byte(*c.alu) & 0b111) << 3
	}
	if c.sp != nil {
		switch *c.sp {
		case SPIncrement:
			b[2] |= 1 << 2
		case SPDecrement:
			b[2] |= 1 << 1
		}
	}

	return b
}
