package bytecode

import (
	"fmt"
	"strings"
)

// String returns a listing with one line per instruction. Decoding stops at
// the first malformed instruction, which is reported as an ERROR line.
func (ins Instructions) String() string {
	var sb strings.Builder
	for offset := 0; offset < len(ins); {
		op, operands, n, err := Decode(ins, offset)
		if err != nil {
			fmt.Fprintf(&sb, "%04d ERROR: %s\n", offset, err)
			break
		}
		sb.WriteString(formatInstruction(offset, op, operands))
		sb.WriteString("\n")
		offset += n
	}
	return sb.String()
}

func formatInstruction(offset int, op Opcode, operands []Operand) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d %s", offset, op)
	for _, o := range operands {
		fmt.Fprintf(&sb, " %d", o.Value)
	}
	return sb.String()
}

// Disassemble returns a human-readable listing of bc's constants and code.
func Disassemble(bc *Bytecode) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "; %d bytes, %d constants\n", len(bc.Instructions), len(bc.Constants))

	if len(bc.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range bc.Constants {
			display := c.Inspect()
			// Truncate long values for readability
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			fmt.Fprintf(&sb, ";   [%3d] %s %s\n", i, c.Type(), display)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(bc.Instructions.String())
	return sb.String()
}
