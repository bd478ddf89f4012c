package vm

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"cr8vm/isa"
)

const (
	Stack    uint16 = 0xFC00
	StackEnd uint16 = 0xFEFF
)

// Devices are addressed by an 8-bit port number. These ports are wired
// up by default by NewCPU; callers may replace or add devices with
// AttachDevice before running a program.
const (
	PortSysctrl     byte = 0x00
	PortFramebuffer byte = 0x01
	PortKeyboard    byte = 0x02
	PortRNG         byte = 0x03
	PortConsole     byte = 0x04

	BankVRAM byte = 0x01
)

// CPU is the fetch/decode/execute core: eight registers, a program
// counter, a stack pointer held as machine state (not memory-mapped,
// see DESIGN.md), a banked address space, and a port-indexed device bus.
type CPU struct {
	mu sync.Mutex

	reg [8]byte
	pc  uint16
	sp  uint16

	mem     *Memory
	devices [256]Device
	sysctrl *sysctrlDevice
	vram    [bankLen]byte

	stdout *bufio.Writer

	errcode error
}

// NewCPU builds a CPU with the standard device table (sysctrl,
// framebuffer over a VRAM bank, keyboard, RNG) wired to their default
// ports, per spec's device bus.
func NewCPU(mem *Memory, debug bool) *CPU {
	c := &CPU{
		mem:    mem,
		sp:     Stack,
		stdout: bufio.NewWriter(os.Stdout),
	}

	c.sysctrl = newSysctrlDevice(debug, bufio.NewReader(os.Stdin))
	c.devices[PortSysctrl] = c.sysctrl

	mem.AddBank(BankVRAM, &c.vram)
	c.devices[PortFramebuffer] = newFramebufferDevice(BankVRAM)
	c.devices[PortKeyboard] = newKeyboardDevice()
	c.devices[PortRNG] = newRNGDevice(1)
	c.devices[PortConsole] = newConsoleDevice(c.stdout)

	return c
}

// Flush drains any buffered console output. Run calls this once after
// the loop exits, on every exit path (halt or fatal error), so a
// program that never writes a trailing newline still surfaces its
// output.
func (c *CPU) Flush() { c.stdout.Flush() }

// AttachDevice replaces (or installs) the device at a port.
func (c *CPU) AttachDevice(port byte, d Device) { c.devices[port] = d }

// Keyboard exposes the default keyboard device so a frontend can push
// key events into it.
func (c *CPU) Keyboard() *keyboardDevice {
	d, _ := c.devices[PortKeyboard].(*keyboardDevice)
	return d
}

// VRAMSize is the byte length of the VRAM bank, exported so a frontend
// can size a local pixel buffer without reaching into package internals.
const VRAMSize = bankLen

// VRAMSnapshot copies out the current contents of the VRAM bank. It
// locks against the fetch/execute loop so a frontend's render pass
// never observes a torn write.
func (c *CPU) VRAMSnapshot() [VRAMSize]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vram
}

// FramebufferDirty reports and clears the framebuffer device's dirty
// flag, letting a frontend skip a redraw when nothing changed.
func (c *CPU) FramebufferDirty() bool {
	fb, ok := c.devices[PortFramebuffer].(*framebufferDevice)
	if !ok {
		return true
	}
	return fb.Send() != 0
}

// SetDebug toggles the sysctrl breakpoint stall at runtime.
func (c *CPU) SetDebug(v bool) { c.sysctrl.setDebug(v) }

// PC, SP, Reg expose read-only state for debugging/disassembly tools.
func (c *CPU) PC() uint16            { return c.pc }
func (c *CPU) SP() uint16            { return c.sp }
func (c *CPU) Reg(r isa.Register) byte { return c.reg[r] }
func (c *CPU) Flags() byte           { return c.reg[isa.F] }
func (c *CPU) Memory() *Memory       { return c.mem }
func (c *CPU) Halted() bool          { return c.sysctrl.halted() }
func (c *CPU) Err() error            { return c.errcode }

func (c *CPU) hl() uint16 {
	return uint16(c.reg[isa.H])<<8 | uint16(c.reg[isa.L])
}

func (c *CPU) pushByte(v byte) error {
	if c.sp >= StackEnd {
		return errStackOverflow
	}
	c.sp++
	return c.write(c.sp, v)
}

func (c *CPU) popByte() (byte, error) {
	if c.sp == Stack {
		return 0, errStackUnderflow
	}
	v := c.mem.Read(c.sp)
	c.mem.Write(c.sp, 0)
	c.sp--
	return v, nil
}

func (c *CPU) write(addr uint16, v byte) error {
	if err := c.mem.Write(addr, v); err != nil {
		return err
	}
	if addr >= BankStart && addr <= BankEnd && c.mem.CurrentBank() == BankVRAM {
		if fb, ok := c.devices[PortFramebuffer].(*framebufferDevice); ok {
			fb.markDirty()
		}
	}
	return nil
}

func (c *CPU) device(port byte) (Device, error) {
	d := c.devices[port]
	if d == nil {
		return nil, errUnknownPort
	}
	return d, nil
}

// Step executes exactly one instruction, advancing PC (except for a
// taken JNZ, which sets PC directly). It returns errHalted when the
// sysctrl device's HALT bit is observed or the fetched byte is the
// reserved sentinel.
func (c *CPU) Step() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sysctrl.halted() {
		return errHalted
	}

	header := c.mem.Read(c.pc)
	if header == isa.HaltSentinel {
		c.sysctrl.Receive(0x01)
		return errHalted
	}

	op, imm, regBits := isa.DecodeHeader(header)
	form, ok := isa.Lookup(op, imm)
	if !ok {
		return errIllegalOpcode
	}
	reg := isa.Register(regBits)
	b0 := c.mem.Read(c.pc + 1)
	b1 := c.mem.Read(c.pc + 2)
	size := uint16(1 + form.OperandSize)

	switch op {
	case isa.OpLW:
		if imm {
			addr := uint16(b1)<<8 | uint16(b0)
			c.reg[reg] = c.mem.Read(addr)
		} else {
			c.reg[reg] = c.mem.Read(c.hl())
		}

	case isa.OpSW:
		if imm {
			addr := uint16(b1)<<8 | uint16(b0)
			if err := c.write(addr, c.reg[reg]); err != nil {
				return err
			}
		} else {
			if err := c.write(c.hl(), c.reg[reg]); err != nil {
				return err
			}
		}

	case isa.OpMOV:
		if imm {
			c.reg[reg] = b0
		} else {
			from := isa.Register(b0)
			c.reg[reg] = c.reg[from]
		}

	case isa.OpPUSH:
		var v byte
		if imm {
			v = b0
		} else {
			v = c.reg[reg]
		}
		if err := c.pushByte(v); err != nil {
			return err
		}

	case isa.OpPOP:
		v, err := c.popByte()
		if err != nil {
			return err
		}
		c.reg[reg] = v

	case isa.OpJNZ:
		var cond byte
		if imm {
			cond = b0
		} else {
			cond = c.reg[reg]
		}
		if cond != 0 {
			c.pc = c.hl()
			return nil
		}

	case isa.OpIN:
		var port byte
		if imm {
			port = b0
		} else {
			port = c.reg[isa.Register(b0)]
		}
		dev, err := c.device(port)
		if err != nil {
			return err
		}
		c.reg[reg] = dev.Send()

	case isa.OpOUT:
		var port byte
		var val byte
		if imm {
			port = b0
			val = c.reg[reg]
		} else {
			port = c.reg[reg]
			val = c.reg[isa.Register(b0)]
		}
		dev, err := c.device(port)
		if err != nil {
			return err
		}
		dev.Receive(val)

	case isa.OpCMP, isa.OpADC, isa.OpSBB, isa.OpOR, isa.OpNOR, isa.OpAND:
		var rhs byte
		if imm {
			rhs = b0
		} else {
			rhs = c.reg[isa.Register(b0)]
		}
		c.execALU(op, reg, rhs)

	case isa.OpMB:
		if err := c.mem.SelectBank(b0); err != nil {
			return err
		}

	default:
		return errIllegalOpcode
	}

	c.pc += size
	return nil
}

func (c *CPU) execALU(op isa.Opcode, lhs isa.Register, rhs byte) {
	a := c.reg[lhs]
	switch op {
	case isa.OpCMP:
		var f byte
		if a == rhs {
			f |= isa.FlagEF
		}
		if a < rhs {
			f |= isa.FlagLF
		}
		c.reg[isa.F] = f

	case isa.OpADC:
		carryIn := uint16(c.reg[isa.F]&isa.FlagCF) >> 2
		sum := uint16(a) + uint16(rhs) + carryIn
		c.reg[lhs] = byte(sum)
		if sum > 0xFF {
			c.reg[isa.F] |= isa.FlagCF
		} else {
			c.reg[isa.F] &^= isa.FlagCF
		}

	case isa.OpSBB:
		borrowIn := uint16(c.reg[isa.F]&isa.FlagBF) >> 3
		diff := int32(a) - int32(rhs) - int32(borrowIn)
		c.reg[lhs] = byte(uint32(diff))
		if diff < 0 {
			c.reg[isa.F] |= isa.FlagBF
		} else {
			c.reg[isa.F] &^= isa.FlagBF
		}

	case isa.OpOR:
		c.reg[lhs] = a | rhs
	case isa.OpNOR:
		c.reg[lhs] = ^(a | rhs)
	case isa.OpAND:
		c.reg[lhs] = a & rhs
	}
}

func (c *CPU) String() string {
	return fmt.Sprintf(
		"pc=%04x sp=%04x a=%02x b=%02x c=%02x d=%02x z=%02x l=%02x h=%02x f=%02x",
		c.pc, c.sp, c.reg[isa.A], c.reg[isa.B], c.reg[isa.C], c.reg[isa.D],
		c.reg[isa.Z], c.reg[isa.L], c.reg[isa.H], c.reg[isa.F],
	)
}
