package vm

import "errors"

// Runtime error taxonomy. Every fault the execution core can raise is
// one of these sentinels, matching the teacher's style of reporting
// halts through a stored errcode rather than a panic.
var (
	errStackOverflow  = errors.New("vm: stack overflow")
	errStackUnderflow = errors.New("vm: pop from empty stack")
	errUnknownPort    = errors.New("vm: unknown device port")
	errROMWrite       = errors.New("vm: write to read-only ROM")
	errUnknownBank    = errors.New("vm: unknown memory bank")
	errIllegalOpcode  = errors.New("vm: illegal opcode")
	errHalted         = errors.New("vm: halted")
)

// ErrStackOverflow etc. re-export the sentinels for callers outside the
// package that need to match on termination cause (e.g. the frontend
// package's check for ErrHalted).
var (
	ErrStackOverflow  = errStackOverflow
	ErrStackUnderflow = errStackUnderflow
	ErrUnknownPort    = errUnknownPort
	ErrROMWrite       = errROMWrite
	ErrUnknownBank    = errUnknownBank
	ErrIllegalOpcode  = errIllegalOpcode
	ErrHalted         = errHalted
)
