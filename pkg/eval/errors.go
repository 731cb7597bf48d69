package eval

import (
	"errors"
	"fmt"

	"github.com/chazu/mk/compiler"
)

var (
	ErrUnknownVariable = errors.New("unknown variable")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrUnknownOperator = errors.New("unknown operator")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrArity           = errors.New("wrong number of arguments")
	ErrNotCallable     = errors.New("not a function")
	ErrUnhashable      = errors.New("unusable as hash key")
)

// Error is an evaluation failure positioned at the node that caused it.
type Error struct {
	Pos compiler.Position
	Err error
}

func (e *Error) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("runtime error at %s: %v", e.Pos, e.Err)
	}
	return "runtime error: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(pos compiler.Position, sentinel error, format string, args ...interface{}) *Error {
	return &Error{Pos: pos, Err: fmt.Errorf("%w: "+format, append([]interface{}{sentinel}, args...)...)}
}
