package asm

import "fmt"

// Diagnostic is every assembler-stage error: lexical, syntactic,
// semantic, evaluation, or layout. All are fatal and reported with a
// source position, per the error handling policy.
type Diagnostic struct {
	Pos   Pos
	Stage string // "lexical" | "syntactic" | "semantic" | "evaluation" | "layout"
	Msg   string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s error: %s", d.Pos, d.Stage, d.Msg)
}

func errSyn(pos Pos, format string, args ...any) error {
	return &Diagnostic{Pos: pos, Stage: "syntactic", Msg: fmt.Sprintf(format, args...)}
}

func errSem(pos Pos, format string, args ...any) error {
	return &Diagnostic{Pos: pos, Stage: "semantic", Msg: fmt.Sprintf(format, args...)}
}

func errEval(pos Pos, format string, args ...any) error {
	return &Diagnostic{Pos: pos, Stage: "evaluation", Msg: fmt.Sprintf(format, args...)}
}

func errLayout(pos Pos, format string, args ...any) error {
	return &Diagnostic{Pos: pos, Stage: "layout", Msg: fmt.Sprintf(format, args...)}
}
