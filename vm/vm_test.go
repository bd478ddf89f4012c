package vm

import (
	"fmt"
	"testing"

	"cr8vm/isa"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func newTestCPU(program []byte) *CPU {
	mem := NewMemory()
	mem.LoadROM(program)
	return NewCPU(mem, false)
}

func h(op isa.Opcode, imm bool, reg isa.Register) byte {
	return isa.EncodeHeader(op, imm, reg)
}

func TestMovAddImmediate(t *testing.T) {
	prog := []byte{
		h(isa.OpMOV, true, isa.A), 12,
		h(isa.OpMOV, true, isa.B), 9,
		h(isa.OpADC, false, isa.A), byte(isa.B),
		isa.HaltSentinel,
	}
	c := newTestCPU(prog)
	assert(t, Run(c, RunOptions{}) == nil, "unexpected run error")
	assert(t, c.Reg(isa.A) == 21, "A=%d want 21", c.Reg(isa.A))
	assert(t, c.Reg(isa.B) == 9, "B=%d want 9", c.Reg(isa.B))
	assert(t, c.Flags()&isa.FlagCF == 0, "CF should be clear")
}

func TestAdcCarry(t *testing.T) {
	prog := []byte{
		h(isa.OpMOV, true, isa.A), 0xFF,
		h(isa.OpMOV, true, isa.B), 0x02,
		h(isa.OpADC, false, isa.A), byte(isa.B),
		isa.HaltSentinel,
	}
	c := newTestCPU(prog)
	assert(t, Run(c, RunOptions{}) == nil, "unexpected run error")
	assert(t, c.Reg(isa.A) == 0x01, "A=%#x want 0x01", c.Reg(isa.A))
	assert(t, c.Flags()&isa.FlagCF != 0, "CF should be set")
}

func TestCmpFlags(t *testing.T) {
	prog := []byte{
		h(isa.OpMOV, true, isa.A), 5,
		h(isa.OpCMP, true, isa.A), 7,
		isa.HaltSentinel,
	}
	c := newTestCPU(prog)
	assert(t, Run(c, RunOptions{}) == nil, "unexpected run error")
	assert(t, c.Flags()&isa.FlagLF != 0, "LF should be set when 5<7")
	assert(t, c.Flags()&isa.FlagEF == 0, "EF should be clear")

	prog2 := []byte{
		h(isa.OpMOV, true, isa.A), 5,
		h(isa.OpCMP, true, isa.A), 5,
		isa.HaltSentinel,
	}
	c2 := newTestCPU(prog2)
	assert(t, Run(c2, RunOptions{}) == nil, "unexpected run error")
	assert(t, c2.Flags()&isa.FlagEF != 0, "EF should be set when 5==5")
	assert(t, c2.Flags()&isa.FlagLF == 0, "LF should be clear")
}

func TestStackRoundTrip(t *testing.T) {
	prog := []byte{
		h(isa.OpMOV, true, isa.A), 0x42,
		h(isa.OpPUSH, false, isa.A),
		h(isa.OpMOV, true, isa.A), 0,
		h(isa.OpPOP, false, isa.B),
		isa.HaltSentinel,
	}
	c := newTestCPU(prog)
	startSP := c.SP()
	assert(t, Run(c, RunOptions{}) == nil, "unexpected run error")
	assert(t, c.Reg(isa.B) == 0x42, "B=%#x want 0x42", c.Reg(isa.B))
	assert(t, c.Reg(isa.A) == 0, "A=%#x want 0", c.Reg(isa.A))
	assert(t, c.SP() == startSP, "SP did not round-trip: got %#x want %#x", c.SP(), startSP)
}

func TestBankSwitch(t *testing.T) {
	prog := []byte{
		h(isa.OpMB, true, 0), 0x01,
		h(isa.OpMOV, true, isa.A), 0xAA,
		h(isa.OpSW, true, isa.A), 0x00, 0x80,
		h(isa.OpMB, true, 0), 0x00,
		h(isa.OpLW, true, isa.C), 0x00, 0x80,
		isa.HaltSentinel,
	}
	c := newTestCPU(prog)
	assert(t, Run(c, RunOptions{}) == nil, "unexpected run error")
	assert(t, c.Reg(isa.C) == 0, "reading builtin RAM should not observe bank 1's 0xAA, got %#x", c.Reg(isa.C))

	c.mem.SelectBank(BankVRAM)
	assert(t, c.mem.Read(0x8000) == 0xAA, "bank 1 at offset 0 should hold 0xAA")
	c.mem.SelectBank(BankBuiltin)
}

func TestStackOverflowIsFatal(t *testing.T) {
	const loopAddr = 8
	prog := []byte{
		h(isa.OpMOV, true, isa.A), 1,
		h(isa.OpMOV, true, isa.Z), 1,
		h(isa.OpMOV, true, isa.H), 0,
		h(isa.OpMOV, true, isa.L), loopAddr,
		h(isa.OpPUSH, false, isa.A),
		h(isa.OpJNZ, false, isa.Z),
		isa.HaltSentinel,
	}
	c := newTestCPU(prog)
	err := Run(c, RunOptions{})
	assert(t, err == errStackOverflow, "want errStackOverflow, got %v", err)
}

func TestPopEmptyStackIsFatal(t *testing.T) {
	prog := []byte{
		h(isa.OpPOP, false, isa.A),
		isa.HaltSentinel,
	}
	c := newTestCPU(prog)
	err := Run(c, RunOptions{})
	assert(t, err == errStackUnderflow, "want errStackUnderflow, got %v", err)
}

func TestIllegalOpcode(t *testing.T) {
	prog := []byte{0xF0}
	c := newTestCPU(prog)
	err := Run(c, RunOptions{})
	assert(t, err == errIllegalOpcode, "want errIllegalOpcode, got %v", err)
}

func TestUnknownPort(t *testing.T) {
	prog := []byte{
		h(isa.OpIN, true, isa.A), 0x10,
		isa.HaltSentinel,
	}
	c := newTestCPU(prog)
	err := Run(c, RunOptions{})
	assert(t, err == errUnknownPort, "want errUnknownPort, got %v", err)
}

func TestROMWriteIsFatal(t *testing.T) {
	prog := []byte{
		h(isa.OpMOV, true, isa.A), 1,
		h(isa.OpSW, true, isa.A), 0x10, 0x00,
		isa.HaltSentinel,
	}
	c := newTestCPU(prog)
	err := Run(c, RunOptions{})
	assert(t, err == errROMWrite, "want errROMWrite, got %v", err)
}

func TestHaltSentinelStopsCleanly(t *testing.T) {
	c := newTestCPU([]byte{isa.HaltSentinel})
	assert(t, Run(c, RunOptions{}) == nil, "sentinel halt should not be an error")
	assert(t, c.Halted(), "sysctrl status should report halted")
}
