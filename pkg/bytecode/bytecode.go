// Package bytecode compiles mk syntax trees into a compact instruction
// stream and executes it on a stack-based virtual machine.
//
// # Instruction format
//
// Every instruction is a single opcode byte followed by zero or more
// operands whose widths (1 or 2 bytes, big-endian) are fixed per opcode by
// the definition table in opcodes.go. Make and Decode are the encoder and
// decoder for this format; Decode(Make(op, operands...), 0) returns the
// same opcode and operands.
//
// Jump operands are absolute byte offsets into the stream. The compiler
// emits forward jumps with a placeholder operand and back-patches the two
// operand bytes in place once the target is known.
//
// # Scope
//
// The bytecode path covers integers, booleans, null, arithmetic,
// comparisons, unary operators, conditionals and global let bindings.
// Functions, strings, arrays, hashes, indexing and built-ins are only
// supported by the tree-walking evaluator in package eval; the compiler
// rejects them with a *CompileError.
package bytecode

import (
	"github.com/chazu/mk/pkg/object"
)

// Bytecode is the compiler's output and the VM's input.
type Bytecode struct {
	Instructions Instructions
	Constants    []object.Object
}
