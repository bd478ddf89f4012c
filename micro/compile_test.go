package micro

import (
	"testing"

	"cr8vm/isa"
)

func assertMicro(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

// Spec §8 scenario 8: a 7-line (ADC, reg) variant packs into 7
// consecutive ROM addresses, with the cycle-complete bit only set on
// the last one.
func TestCompileSevenCycleVariant(t *testing.T) {
	src := `
ADC: {
	(reg) => {
		aw pc
		dr lhs
		pc inc
		dw rhs
		dr rhs
		alu adc
		dw alu
	}
}
`
	rom, err := Compile("t.micro", src)
	assertMicro(t, err == nil, "compile failed: %v", err)

	for i := 0; i < 7; i++ {
		addr := CycleAddress(isa.OpADC, false, i)
		cc := rom[2][addr]&1 != 0
		if i == 6 {
			assertMicro(t, cc, "cycle 6 (last) should have cycle-complete set, word=%03b", rom[2][addr])
		} else {
			assertMicro(t, !cc, "cycle %d should not have cycle-complete set, word=%03b", i, rom[2][addr])
		}
	}

	// address 0 (the "fetch next instruction" sentinel) must stay
	// untouched by any variant.
	assertMicro(t, rom[0][0] == 0 && rom[1][0] == 0 && rom[2][0] == 0, "address 0 must remain the fetch-next sentinel")
}

func TestCompileRegAndImmVariantsAreIndependent(t *testing.T) {
	src := `
MOV: {
	(reg) => {
		aw pc
		pc inc
		dr sel
	}
	(imm) => {
		aw pc
		pc inc
		dr k
	}
}
`
	rom, err := Compile("t.micro", src)
	assertMicro(t, err == nil, "compile failed: %v", err)

	// dr sel / dr k are on each variant's third line, cycle 2.
	regAddr := CycleAddress(isa.OpMOV, false, 2)
	immAddr := CycleAddress(isa.OpMOV, true, 2)
	assertMicro(t, regAddr != immAddr, "reg and imm cycle 2 must land at different addresses")
	assertMicro(t, rom[1][regAddr]&(1<<7) != 0, "reg variant should assert dr sel")
	assertMicro(t, rom[0][immAddr]&(1<<7) != 0, "imm variant should assert dr k")
}

func TestCompileRejectsDoubleAssignment(t *testing.T) {
	src := `
HALT: {
	(reg) => {
		dw rhs dw io
	}
}
`
	_, err := Compile("t.micro", src)
	assertMicro(t, err != nil, "expected a double-assignment error")
}

func TestCompileRejectsUnknownOpcode(t *testing.T) {
	src := "FROB: { (reg) => { nop } }\n"
	_, err := Compile("t.micro", src)
	assertMicro(t, err != nil, "expected an unknown-opcode error")
}
