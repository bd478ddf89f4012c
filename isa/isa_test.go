package isa

import (
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	for _, op := range []Opcode{OpLW, OpSW, OpMOV, OpPUSH, OpPOP, OpJNZ, OpIN, OpOUT, OpCMP, OpADC, OpSBB, OpOR, OpNOR, OpAND, OpMB} {
		for _, imm := range []bool{false, true} {
			for _, reg := range []Register{A, B, C, D, Z, L, H, F} {
				b := EncodeHeader(op, imm, reg)
				gotOp, gotImm, gotReg := DecodeHeader(b)
				assert(t, gotOp == op, "op mismatch: got %v want %v", gotOp, op)
				assert(t, gotImm == imm, "imm mismatch for %v", op)
				assert(t, gotReg == reg, "reg mismatch for %v", op)
			}
		}
	}
}

func TestEncodingTableMatchesSpec(t *testing.T) {
	cases := []struct {
		op    Opcode
		imm   bool
		bytes int
	}{
		{OpLW, false, 0}, {OpLW, true, 2},
		{OpSW, false, 0}, {OpSW, true, 2},
		{OpMOV, false, 1}, {OpMOV, true, 1},
		{OpPUSH, false, 0}, {OpPUSH, true, 1},
		{OpPOP, false, 0},
		{OpJNZ, false, 0}, {OpJNZ, true, 1},
		{OpIN, false, 1}, {OpIN, true, 1},
		{OpOUT, false, 1}, {OpOUT, true, 1},
		{OpCMP, false, 1}, {OpCMP, true, 1},
		{OpMB, true, 1},
	}
	for _, c := range cases {
		form, ok := Lookup(c.op, c.imm)
		assert(t, ok, "no form for %v imm=%v", c.op, c.imm)
		assert(t, form.OperandSize == c.bytes, "%v imm=%v: got %d operand bytes want %d", c.op, c.imm, form.OperandSize, c.bytes)
	}
}

func TestRegisterByName(t *testing.T) {
	r, ok := RegisterByName("h")
	assert(t, ok, "expected h to resolve")
	assert(t, r == H, "h should map to H")

	_, ok = RegisterByName("nope")
	assert(t, !ok, "unknown register name should not resolve")
}
