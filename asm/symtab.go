package asm

// SymbolTable is the assembler-scoped symbol table: it is built up
// while parsing (and importing) every file in a program and is
// destroyed once emission finishes. Labels are not filled in until the
// layout pass runs.
type SymbolTable struct {
	Labels        map[string]int64
	Statics       map[string]int64
	RamLocations  map[string]int64
	RamOrigin     int64
	Macros        map[string]*MacroDef
	FilesImported map[string]bool
	MainLabel     string
}

// NewSymbolTable returns an empty table with RamOrigin defaulted to
// the built-in RAM base address.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Labels:        make(map[string]int64),
		Statics:       make(map[string]int64),
		RamLocations:  make(map[string]int64),
		RamOrigin:     0xC000,
		Macros:        make(map[string]*MacroDef),
		FilesImported: make(map[string]bool),
	}
}
