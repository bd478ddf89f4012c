package micro

import (
	"fmt"

	"cr8vm/isa"
)

// ROM is the compiled output: three 256-byte chips, one per control
// word byte, the shape the hardware's three parallel ROM sockets
// expect. Byte 0 of every chip is reserved to mean "fetch next
// instruction" (spec §6.3) and is never written by a variant.
type ROM [3][256]byte

// Compile lexes and lowers a microcode DSL source file into the three
// ROM images. Each opcode variant (register-operand, immediate-operand)
// becomes one line sequence: "OOOOIccc" addresses, opcode nibble then
// the imm bit then a 3-bit cycle counter, offset by 1 so address 0
// keeps its fetch-next meaning, exactly as spec.md §6.3 describes and
// original_source's Microcode::rom() implements.
func Compile(file, source string) (ROM, error) {
	prog, err := Parse(file, source)
	if err != nil {
		return ROM{}, err
	}

	var rom ROM
	for op, variants := range prog {
		header := byte(op) << 4
		if variants.Reg != nil {
			if err := writeVariant(&rom, header, variants.Reg); err != nil {
				return ROM{}, fmt.Errorf("opcode %s, reg variant: %w", op, err)
			}
		}
		if variants.Imm != nil {
			if err := writeVariant(&rom, header|0b1000, variants.Imm); err != nil {
				return ROM{}, fmt.Errorf("opcode %s, imm variant: %w", op, err)
			}
		}
	}
	return rom, nil
}

// writeVariant packs every line of one variant into its control word,
// setting the cycle-complete bit on the last line, and writes all
// seven possible cycle slots (unused trailing cycles get a word with
// only the cycle-complete bit set, same as the reference compiler).
func writeVariant(rom *ROM, header byte, lines [][]Signal) error {
	if len(lines) == 0 {
		return fmt.Errorf("a variant must have at least one signal line")
	}
	if len(lines) > 7 {
		return fmt.Errorf("a variant cannot exceed 7 cycles (got %d)", len(lines))
	}

	const cycleComplete = 1 << 0
	last := len(lines) - 1

	for i := 0; i < 7; i++ {
		key := int(header|byte(i)) + 1
		if i > last {
			rom[0][key] = 0
			rom[1][key] = 0
			rom[2][key] = cycleComplete
			continue
		}

		var word ControlWord
		for _, sig := range lines[i] {
			if err := word.Apply(sig); err != nil {
				return fmt.Errorf("cycle %d: %w", i, err)
			}
		}
		bytes := word.Pack()
		if i == last {
			bytes[2] |= cycleComplete
		}
		rom[0][key] = bytes[0]
		rom[1][key] = bytes[1]
		rom[2][key] = bytes[2]
	}
	return nil
}

// CycleAddress returns the ROM index for one (opcode, imm, cycle)
// triple, the same addressing scheme Compile uses, exposed so callers
// (and tests) can look up a specific control word without re-deriving
// the bit arithmetic.
func CycleAddress(op isa.Opcode, imm bool, cycle int) int {
	header := byte(op) << 4
	if imm {
		header |= 0b1000
	}
	return int(header|byte(cycle)) + 1
}
