package bytecode

import (
	"errors"
	"fmt"

	"github.com/chazu/mk/compiler"
)

// Runtime failure kinds. A *RuntimeError wraps exactly one of these, or a
// *CompileError when the instruction stream itself fails to decode.
var (
	ErrStackOverflow  = errors.New("stack overflow")
	ErrEmptyStack     = errors.New("empty stack")
	ErrConstantIndex  = errors.New("constant index out of range")
	ErrGlobalSlot     = errors.New("global slot out of range")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrDivisionByZero = errors.New("division by zero")
	ErrJumpTarget     = errors.New("jump target out of range")
	ErrHalted         = errors.New("vm already ran")
)

// CompileError reports a failure while assembling or decoding bytecode.
// Pos is the zero Position when the failure has no source location.
type CompileError struct {
	Pos compiler.Position
	Msg string
}

func (e *CompileError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("compile error at %s: %s", e.Pos, e.Msg)
	}
	return "compile error: " + e.Msg
}

func compileErrorf(format string, args ...interface{}) *CompileError {
	return &CompileError{Msg: fmt.Sprintf(format, args...)}
}

// RuntimeError reports a failure of the instruction at IP.
type RuntimeError struct {
	Op  Opcode
	IP  int
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at %04d %s: %v", e.IP, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
