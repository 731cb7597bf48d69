package bytecode

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestAllOpcodesHaveDefinitions(t *testing.T) {
	for _, op := range AllOpcodes() {
		def, err := Lookup(op)
		if err != nil {
			t.Fatalf("Lookup(0x%02X) failed: %v", byte(op), err)
		}
		if def.Name == "" {
			t.Errorf("opcode 0x%02X has no name", byte(op))
		}
	}
	if n := len(AllOpcodes()); n != 20 {
		t.Errorf("got %d opcodes, want 20", n)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup(Opcode(0xEE))
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Lookup(0xEE) err = %v, want *CompileError", err)
	}
	if ce.Msg != "unknown opcode 0xEE" {
		t.Errorf("message = %q", ce.Msg)
	}
	if got := Opcode(0xEE).String(); got != "UNKNOWN(0xEE)" {
		t.Errorf("String() = %q", got)
	}
}

func TestMakeEncoding(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []Operand
		want     []byte
	}{
		{OpConstant, []Operand{U16(65534)}, []byte{byte(OpConstant), 0xFF, 0xFE}},
		{OpConstant, []Operand{U16(1)}, []byte{0x00, 0x00, 0x01}},
		{OpAdd, nil, []byte{0x20}},
		{OpJPFalse, []Operand{U16(0x0102)}, []byte{0x42, 0x01, 0x02}},
		{OpSetGlobal, []Operand{U16(7)}, []byte{0x50, 0x00, 0x07}},
		{OpExclam, nil, []byte{0x38}},
	}

	for _, tc := range tests {
		got, err := Make(tc.op, tc.operands...)
		if err != nil {
			t.Fatalf("Make(%s) failed: %v", tc.op, err)
		}
		if !bytes.Equal(got, tc.want) {
			t.Errorf("Make(%s) = % X, want % X", tc.op, got, tc.want)
		}
	}
}

func TestMakeErrors(t *testing.T) {
	tests := []struct {
		name     string
		op       Opcode
		operands []Operand
	}{
		{"missing operand", OpConstant, nil},
		{"extra operand", OpPop, []Operand{U16(1)}},
		{"width mismatch", OpGetGlobal, []Operand{U8(1)}},
		{"unknown opcode", Opcode(0xEE), nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Make(tc.op, tc.operands...)
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Errorf("err = %v, want *CompileError", err)
			}
		})
	}
}

func TestRoundTripAllOpcodes(t *testing.T) {
	samples := []uint16{0, 1, 255, 256, 0xABCD, 65535}

	for _, op := range AllOpcodes() {
		def, _ := Lookup(op)
		for _, v := range samples {
			operands := make([]Operand, len(def.Widths))
			for i := range operands {
				operands[i] = U16(v)
			}
			ins, err := Make(op, operands...)
			if err != nil {
				t.Fatalf("Make(%s) failed: %v", op, err)
			}

			gotOp, gotOperands, n, err := Decode(ins, 0)
			if err != nil {
				t.Fatalf("Decode(%s) failed: %v", op, err)
			}
			if gotOp != op {
				t.Errorf("Decode opcode = %s, want %s", gotOp, op)
			}
			if n != def.Len() {
				t.Errorf("%s: consumed %d bytes, want %d", op, n, def.Len())
			}
			if len(operands) == 0 {
				if len(gotOperands) != 0 {
					t.Errorf("%s: got operands %v, want none", op, gotOperands)
				}
				continue
			}
			if !reflect.DeepEqual(gotOperands, operands) {
				t.Errorf("%s: operands = %v, want %v", op, gotOperands, operands)
			}
		}
	}
}

// Synthetic definitions exercise 1-byte operands, which no current opcode
// uses.
func TestRoundTripMixedWidths(t *testing.T) {
	const op = Opcode(0xE0)
	def := &Definition{Name: "MIXED", Widths: []int{1, 2, 1}}
	lookup := func(o Opcode) (*Definition, error) {
		if o == op {
			return def, nil
		}
		return Lookup(o)
	}

	operands := []Operand{U8(0xFE), U16(0x1234), U8(7)}
	ins, err := encode(op, def, operands)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := []byte{0xE0, 0xFE, 0x12, 0x34, 0x07}
	if !bytes.Equal(ins, want) {
		t.Fatalf("encode = % X, want % X", ins, want)
	}

	gotOp, gotOperands, n, err := decode(ins, 0, lookup)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if gotOp != op || n != 5 || !reflect.DeepEqual(gotOperands, operands) {
		t.Errorf("decode = %s %v %d, want %s %v 5", gotOp, gotOperands, n, op, operands)
	}

	if _, err := encode(op, def, []Operand{{Width: 1, Value: 300}, U16(1), U8(1)}); err == nil {
		t.Errorf("encode accepted 300 as a 1-byte operand")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		ins    []byte
		offset int
	}{
		{"empty", nil, 0},
		{"offset past end", []byte{byte(OpPop)}, 1},
		{"negative offset", []byte{byte(OpPop)}, -1},
		{"unknown opcode", []byte{0xEE}, 0},
		{"truncated operand", []byte{byte(OpConstant), 0x00}, 0},
		{"missing operand", []byte{byte(OpPop), byte(OpJP)}, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := Decode(tc.ins, tc.offset)
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Errorf("err = %v, want *CompileError", err)
			}
		})
	}
}

func TestDecodeAtOffset(t *testing.T) {
	var ins Instructions
	ins = append(ins, MustMake(OpTrue)...)
	ins = append(ins, MustMake(OpGetGlobal, U16(300))...)

	op, operands, n, err := Decode(ins, 1)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if op != OpGetGlobal || n != 3 || operands[0] != U16(300) {
		t.Errorf("Decode = %s %v %d", op, operands, n)
	}
}

func TestUint16Helpers(t *testing.T) {
	buf := []byte{0, 0, 0}
	PutUint16(buf[1:], 0xBEEF)
	if !bytes.Equal(buf, []byte{0, 0xBE, 0xEF}) {
		t.Errorf("PutUint16 wrote % X", buf)
	}
	if got := ReadUint16(buf[1:]); got != 0xBEEF {
		t.Errorf("ReadUint16 = %#x, want 0xbeef", got)
	}
}
