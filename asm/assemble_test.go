package asm

import (
	"testing"

	"cr8vm/isa"
	"cr8vm/vm"
)

func assertAsm(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func runImage(t *testing.T, image []byte) *vm.CPU {
	t.Helper()
	mem := vm.NewMemory()
	mem.LoadROM(image)
	c := vm.NewCPU(mem, false)
	if err := vm.Run(c, vm.RunOptions{}); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	return c
}

// Scenario 1 of spec §8: mov immediate + adc.
func TestAssembleMovAdc(t *testing.T) {
	src := "mov %a, 12\nmov %b, 9\nadc %a, %b\nhalt\n"
	img, err := Assemble("t.asm", src, nil)
	assertAsm(t, err == nil, "assemble failed: %v", err)
	c := runImage(t, img)
	assertAsm(t, c.Reg(isa.A) == 21, "A=%d want 21", c.Reg(isa.A))
	assertAsm(t, c.Reg(isa.B) == 9, "B=%d want 9", c.Reg(isa.B))
	assertAsm(t, c.Flags()&isa.FlagCF == 0, "CF should be clear")
}

// Scenario 3: CMP flags.
func TestAssembleCmpFlags(t *testing.T) {
	src := "mov %a, 5\ncmp %a, 7\nhalt\n"
	img, err := Assemble("t.asm", src, nil)
	assertAsm(t, err == nil, "assemble failed: %v", err)
	c := runImage(t, img)
	assertAsm(t, c.Flags()&isa.FlagLF != 0, "LF should be set for 5<7")
	assertAsm(t, c.Flags()&isa.FlagEF == 0, "EF should be clear")
}

// Scenario 5: bank switch, assembled from source rather than hand bytes.
func TestAssembleBankSwitch(t *testing.T) {
	src := "mb 0x01\nmov %a, 0xAA\nsw %a, [0x8000]\nmb 0x00\nlw %c, [0x8000]\nhalt\n"
	img, err := Assemble("t.asm", src, nil)
	assertAsm(t, err == nil, "assemble failed: %v", err)
	c := runImage(t, img)
	assertAsm(t, c.Reg(isa.C) == 0, "builtin RAM should read 0, got %#x", c.Reg(isa.C))

	mem := c.Memory()
	mem.SelectBank(vm.BankVRAM)
	assertAsm(t, mem.Read(0x8000) == 0xAA, "bank 1 offset 0 should hold 0xAA")
}

// Scenario 6: multi-arm macro dispatch by argument shape.
func TestAssembleMacroDispatch(t *testing.T) {
	src := `
#[macro] nand: {
	(a: reg, b: reg) => {
		and $a, $b
		nor $a, $a
	}
	(a: reg, b: imm8) => {
		and $a, $b
		nor $a, $a
	}
}
nand %a, %b
nand %a, 0x0F
halt
`
	img, err := Assemble("t.asm", src, nil)
	assertAsm(t, err == nil, "assemble failed: %v", err)

	want := []byte{
		isa.EncodeHeader(isa.OpAND, false, isa.A), byte(isa.B),
		isa.EncodeHeader(isa.OpNOR, false, isa.A), byte(isa.A),
		isa.EncodeHeader(isa.OpAND, true, isa.A), 0x0F,
		isa.EncodeHeader(isa.OpNOR, false, isa.A), byte(isa.A),
		isa.HaltSentinel,
	}
	assertAsm(t, len(img) == len(want), "length mismatch: got %d want %d (%x)", len(img), len(want), img)
	for i := range want {
		assertAsm(t, img[i] == want[i], "byte %d: got %#x want %#x", i, img[i], want[i])
	}
}

// Scenario 7: a forward label reference resolves to the right address
// regardless of the macro expansion between the reference and the
// label, and the generated jump actually skips the intervening code
// at runtime.
func TestAssembleForwardLabelJump(t *testing.T) {
	src := "jmp [end]\nmov %a, 0xFF\nend:\nhalt\n"
	img, err := Assemble("t.asm", src, nil)
	assertAsm(t, err == nil, "assemble failed: %v", err)
	c := runImage(t, img)
	assertAsm(t, c.Reg(isa.A) == 0, "jmp should have skipped the mov, A=%#x", c.Reg(isa.A))
}

// #[main] emits a jump to the named label as the very first instructions.
func TestAssembleMainBootJump(t *testing.T) {
	src := "#[main] entry:\n mov %a, 0x7\n halt\n"
	img, err := Assemble("t.asm", src, nil)
	assertAsm(t, err == nil, "assemble failed: %v", err)
	c := runImage(t, img)
	assertAsm(t, c.Reg(isa.A) == 7, "A=%#x want 7", c.Reg(isa.A))
}

// The std::math::mul builtin module: a genuine repeated-add multiply
// subroutine (not a macro, since macro bodies can't hold the label a
// data-dependent loop needs), exercised end to end through #[use].
func TestAssembleStdlibMultiply(t *testing.T) {
	src := `
#[use(std::math::mul)]
#[main] main:
	mov %a, 3
	mov %b, 4
	mov %h, [(ret >> 8) & 0xFF]
	mov %l, [ret & 0xFF]
	push %h
	push %l
	mov %h, [(std_mul >> 8) & 0xFF]
	mov %l, [std_mul & 0xFF]
	mov %z, 1
	jnz %z
ret:
	halt
`
	img, err := Assemble("t.asm", src, DefaultResolver{})
	assertAsm(t, err == nil, "assemble failed: %v", err)
	c := runImage(t, img)
	assertAsm(t, c.Reg(isa.C) == 12, "3*4: C=%d want 12", c.Reg(isa.C))
}

// OUT's imm=1 form is (port=imm8) with the source register riding in
// the header RRR bits, a 2-byte instruction per spec §6.1 — not a
// 3-byte one with the register as a trailing operand.
func TestAssembleOutImmEncoding(t *testing.T) {
	src := "out 4, %b\nhalt\n"
	img, err := Assemble("t.asm", src, nil)
	assertAsm(t, err == nil, "assemble failed: %v", err)

	want := []byte{
		isa.EncodeHeader(isa.OpOUT, true, isa.B), 0x04,
		isa.HaltSentinel,
	}
	assertAsm(t, len(img) == len(want), "length mismatch: got %d want %d (%x)", len(img), len(want), img)
	for i := range want {
		assertAsm(t, img[i] == want[i], "byte %d: got %#x want %#x", i, img[i], want[i])
	}
}

// $name.l / $name.h must parse in the no-space form the spec's grammar
// actually uses inside macro bodies, not just the accidental
// space-separated one.
func TestAssembleMacroAddrByteSuffixNoSpace(t *testing.T) {
	src := `
#[macro] loadaddr: {
	(addr: imm16) => {
		mov %h, $addr.h
		mov %l, $addr.l
	}
}
loadaddr [0x1234]
halt
`
	img, err := Assemble("t.asm", src, nil)
	assertAsm(t, err == nil, "assemble failed: %v", err)

	want := []byte{
		isa.EncodeHeader(isa.OpMOV, true, isa.H), 0x12,
		isa.EncodeHeader(isa.OpMOV, true, isa.L), 0x34,
		isa.HaltSentinel,
	}
	assertAsm(t, len(img) == len(want), "length mismatch: got %d want %d (%x)", len(img), len(want), img)
	for i := range want {
		assertAsm(t, img[i] == want[i], "byte %d: got %#x want %#x", i, img[i], want[i])
	}
}

func TestAssembleDuplicateLabelIsError(t *testing.T) {
	src := "foo:\nhalt\nfoo:\nhalt\n"
	_, err := Assemble("t.asm", src, nil)
	assertAsm(t, err != nil, "expected a redefinition error")
}

func TestAssembleUnknownMnemonicIsError(t *testing.T) {
	src := "frobnicate %a, %b\n"
	_, err := Assemble("t.asm", src, nil)
	assertAsm(t, err != nil, "expected an unknown mnemonic error")
}

func TestAssembleStaticAndConstDirectives(t *testing.T) {
	src := `
#[static(WIDTH: 4)]
mov %a, WIDTH
lw %b, [greeting]
halt
#[const(greeting)] { 72, 73 }
`
	img, err := Assemble("t.asm", src, nil)
	assertAsm(t, err == nil, "assemble failed: %v", err)
	c := runImage(t, img)
	assertAsm(t, c.Reg(isa.A) == 4, "A should hold the static WIDTH=4, got %d", c.Reg(isa.A))
}
