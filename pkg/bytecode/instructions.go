package bytecode

import (
	"encoding/binary"
)

// Instructions is an encoded instruction stream. Each instruction is one
// opcode byte followed by its operands, big-endian.
type Instructions []byte

// Operand is an instruction argument tagged with its encoded width.
type Operand struct {
	Width int // 1 or 2 bytes
	Value uint16
}

// U8 returns a 1-byte operand.
func U8(v uint8) Operand { return Operand{Width: 1, Value: uint16(v)} }

// U16 returns a 2-byte operand.
func U16(v uint16) Operand { return Operand{Width: 2, Value: v} }

// ReadUint16 reads a big-endian uint16 from the first two bytes of ins.
func ReadUint16(ins []byte) uint16 {
	return binary.BigEndian.Uint16(ins)
}

// PutUint16 writes v big-endian into the first two bytes of ins.
func PutUint16(ins []byte, v uint16) {
	binary.BigEndian.PutUint16(ins, v)
}

// Make encodes op with its operands.
func Make(op Opcode, operands ...Operand) ([]byte, error) {
	def, err := Lookup(op)
	if err != nil {
		return nil, err
	}
	return encode(op, def, operands)
}

// MustMake is like Make but panics on error. Intended for tests and
// statically known instructions.
func MustMake(op Opcode, operands ...Operand) []byte {
	ins, err := Make(op, operands...)
	if err != nil {
		panic(err)
	}
	return ins
}

func encode(op Opcode, def *Definition, operands []Operand) ([]byte, error) {
	if len(operands) != len(def.Widths) {
		return nil, compileErrorf("%s expects %d operands, got %d", def.Name, len(def.Widths), len(operands))
	}

	ins := make([]byte, 1, def.Len())
	ins[0] = byte(op)
	for i, o := range operands {
		w := def.Widths[i]
		if o.Width != w {
			return nil, compileErrorf("%s operand %d: width %d, want %d", def.Name, i, o.Width, w)
		}
		switch w {
		case 1:
			if o.Value > 0xFF {
				return nil, compileErrorf("%s operand %d: value %d does not fit in 1 byte", def.Name, i, o.Value)
			}
			ins = append(ins, byte(o.Value))
		case 2:
			ins = binary.BigEndian.AppendUint16(ins, o.Value)
		default:
			return nil, compileErrorf("%s operand %d: unsupported width %d", def.Name, i, w)
		}
	}

	if len(ins) != def.Len() {
		return nil, compileErrorf("%s encoded to %d bytes, want %d", def.Name, len(ins), def.Len())
	}
	return ins, nil
}

// Decode reads the instruction starting at offset. It returns the opcode,
// its operands left to right, and the number of bytes consumed.
func Decode(ins []byte, offset int) (Opcode, []Operand, int, error) {
	return decode(ins, offset, Lookup)
}

func decode(ins []byte, offset int, lookup func(Opcode) (*Definition, error)) (Opcode, []Operand, int, error) {
	if offset < 0 || offset >= len(ins) {
		return 0, nil, 0, compileErrorf("offset %d out of bounds (len %d)", offset, len(ins))
	}

	op := Opcode(ins[offset])
	def, err := lookup(op)
	if err != nil {
		return op, nil, 0, err
	}

	n := def.Len()
	if n > len(ins)-offset {
		return op, nil, 0, compileErrorf("%s at %d needs %d bytes, %d remain", def.Name, offset, n, len(ins)-offset)
	}

	var operands []Operand
	if len(def.Widths) > 0 {
		operands = make([]Operand, len(def.Widths))
	}
	pos := offset + 1
	for i, w := range def.Widths {
		switch w {
		case 1:
			operands[i] = U8(ins[pos])
		case 2:
			operands[i] = U16(ReadUint16(ins[pos:]))
		default:
			return op, nil, 0, compileErrorf("%s operand %d: unsupported width %d", def.Name, i, w)
		}
		pos += w
	}
	return op, operands, n, nil
}
