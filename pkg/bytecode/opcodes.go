package bytecode

import (
	"fmt"
	"sort"
)

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Constants (0x00-0x0F)
	// ========================================================================

	OpConstant Opcode = 0x00 // Push constant from pool: OpConstant <index:u16>
	OpTrue     Opcode = 0x01 // Push true
	OpFalse    Opcode = 0x02 // Push false
	OpNull     Opcode = 0x03 // Push null

	// ========================================================================
	// Stack manipulation (0x10-0x1F)
	// ========================================================================

	OpPop Opcode = 0x10 // Pop top of stack

	// ========================================================================
	// Arithmetic (0x20-0x2F)
	// ========================================================================

	OpAdd   Opcode = 0x20 // Pop two, push sum
	OpSub   Opcode = 0x21 // Pop two, push difference (a - b where b is TOS)
	OpMul   Opcode = 0x22 // Pop two, push product
	OpDiv   Opcode = 0x23 // Pop two, push quotient
	OpMinus Opcode = 0x24 // Negate top of stack

	// ========================================================================
	// Comparison and logic (0x30-0x3F)
	// ========================================================================

	OpEq     Opcode = 0x30 // Pop two, push a == b
	OpNEq    Opcode = 0x31 // Pop two, push a != b
	OpGT     Opcode = 0x32 // Pop two, push a > b
	OpLT     Opcode = 0x33 // Pop two, push a < b
	OpExclam Opcode = 0x38 // Logical NOT; integers negate as n == 0

	// ========================================================================
	// Control flow (0x40-0x4F)
	// ========================================================================

	OpJP      Opcode = 0x40 // Unconditional jump: OpJP <addr:u16>
	OpJPTrue  Opcode = 0x41 // Pop, jump if truthy: OpJPTrue <addr:u16>
	OpJPFalse Opcode = 0x42 // Pop, jump if falsy: OpJPFalse <addr:u16>

	// ========================================================================
	// Globals (0x50-0x5F)
	// ========================================================================

	OpSetGlobal Opcode = 0x50 // Pop and store: OpSetGlobal <slot:u16>
	OpGetGlobal Opcode = 0x51 // Push global: OpGetGlobal <slot:u16>
)

// Definition describes an opcode's name and operand widths in bytes.
type Definition struct {
	Name   string
	Widths []int
}

// Len returns the encoded instruction length, 1 + sum(widths).
func (d *Definition) Len() int {
	n := 1
	for _, w := range d.Widths {
		n += w
	}
	return n
}

// definitions maps opcodes to their metadata. Widths never change.
var definitions = map[Opcode]*Definition{
	// Constants
	OpConstant: {"CONSTANT", []int{2}},
	OpTrue:     {"TRUE", nil},
	OpFalse:    {"FALSE", nil},
	OpNull:     {"NULL", nil},

	// Stack
	OpPop: {"POP", nil},

	// Arithmetic
	OpAdd:   {"ADD", nil},
	OpSub:   {"SUB", nil},
	OpMul:   {"MUL", nil},
	OpDiv:   {"DIV", nil},
	OpMinus: {"MINUS", nil},

	// Comparison
	OpEq:     {"EQ", nil},
	OpNEq:    {"NEQ", nil},
	OpGT:     {"GT", nil},
	OpLT:     {"LT", nil},
	OpExclam: {"EXCLAM", nil},

	// Control flow
	OpJP:      {"JP", []int{2}},
	OpJPTrue:  {"JP_TRUE", []int{2}},
	OpJPFalse: {"JP_FALSE", []int{2}},

	// Globals
	OpSetGlobal: {"SET_GLOBAL", []int{2}},
	OpGetGlobal: {"GET_GLOBAL", []int{2}},
}

// Lookup returns the definition of op.
func Lookup(op Opcode) (*Definition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, compileErrorf("unknown opcode 0x%02X", byte(op))
	}
	return def, nil
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	if def, ok := definitions[op]; ok {
		return def.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJP && op <= OpJPFalse
}

// AllOpcodes returns every defined opcode in byte order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(definitions))
	for op := range definitions {
		opcodes = append(opcodes, op)
	}
	sort.Slice(opcodes, func(i, j int) bool { return opcodes[i] < opcodes[j] })
	return opcodes
}
