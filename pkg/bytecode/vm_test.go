package bytecode

import (
	"errors"
	"testing"

	"github.com/chazu/mk/pkg/object"
)

func run(t *testing.T, src string, opts ...Option) *VM {
	t.Helper()
	vm := New(compile(t, src), opts...)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run(%q) failed: %v", src, err)
	}
	return vm
}

func expectValue(t *testing.T, src string, got object.Object, want interface{}) {
	t.Helper()
	switch w := want.(type) {
	case int:
		i, ok := got.(*object.Integer)
		if !ok || i.Value != int64(w) {
			t.Errorf("%q = %s, want %d", src, got.Inspect(), w)
		}
	case bool:
		if got != object.NativeBool(w) {
			t.Errorf("%q = %s, want %v", src, got.Inspect(), w)
		}
	case nil:
		if got != object.NullValue {
			t.Errorf("%q = %s, want null", src, got.Inspect())
		}
	default:
		t.Fatalf("unsupported expectation %T", want)
	}
}

func TestVMIntegerArithmetic(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"1", 1},
		{"2", 2},
		{"1 + 2", 3},
		{"1 - 2", -1},
		{"1 * 2", 2},
		{"4 / 2", 2},
		{"7 / 2", 3},
		{"50 / 2 * 2 + 10 - 5", 55},
		{"5 * (2 + 10)", 60},
		{"5 + 5 + 5 + 5 - 10", 10},
		{"2 * 2 * 2 * 2 * 2", 32},
		{"-5", -5},
		{"-10", -10},
		{"-50 + 100 + -50", 0},
		{"(5 + 10 * 2 + 15 / 3) * 2 + -10", 50},
	}

	for _, tc := range tests {
		vm := run(t, tc.input)
		expectValue(t, tc.input, vm.Result(), tc.want)
	}
}

func TestVMArithmeticDeterminism(t *testing.T) {
	vm := run(t, "10 + 2 + 3 + 200")
	expectValue(t, "10 + 2 + 3 + 200", vm.Result(), 215)
	if vm.SP() != 1 {
		t.Errorf("SP() = %d, want 1", vm.SP())
	}
	if vm.State() != StateHalted {
		t.Errorf("State() = %s, want halted", vm.State())
	}
}

func TestVMBooleanExpressions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"false", false},
		{"1 < 2", true},
		{"1 > 2", false},
		{"1 < 1", false},
		{"1 == 1", true},
		{"1 != 1", false},
		{"1 == 2", false},
		{"1 != 2", true},
		{"true == true", true},
		{"false == false", true},
		{"true == false", false},
		{"true != false", true},
		{"false < true", true},
		{"true > false", true},
		{"true < true", false},
		{"(1 < 2) == true", true},
		{"(1 > 2) == false", true},
		{"!true", false},
		{"!false", true},
		{"!!true", true},
		{"!0", true},
		{"!5", false},
		{"!!5", true},
	}

	for _, tc := range tests {
		vm := run(t, tc.input)
		expectValue(t, tc.input, vm.Result(), tc.want)
	}
}

func TestVMConditionals(t *testing.T) {
	tests := []struct {
		input string
		want  interface{}
	}{
		{"if (true) { 10 }", 10},
		{"if (true) { 10 } else { 20 }", 10},
		{"if (false) { 10 } else { 20 }", 20},
		{"if (1) { 10 }", 10},
		{"if (0) { 10 } else { 20 }", 20},
		{"if (1 < 2) { 10 }", 10},
		{"if (1 > 2) { 10 } else { 20 }", 20},
		{"if (false) { 1 }", nil},
		{"if (1 > 2) { 10 }", nil},
		{"if (true) { }", nil},
		{"if (true) { let q = 1; }", nil},
		{"if ((if (false) { 10 })) { 10 } else { 20 }", 20},
		{"if (true) { 1; 2 }", 2},
		{"if (true) { if (false) { 1 } else { 3 } }", 3},
		{"if (true) { 10 } + 5", 15},
	}

	for _, tc := range tests {
		vm := run(t, tc.input)
		expectValue(t, tc.input, vm.Result(), tc.want)
	}
}

func TestVMGlobalLet(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"let one = 1; one", 1},
		{"let one = 1; let two = 2; one + two", 3},
		{"let one = 1; let two = one + one; one + two", 3},
		{"let x = 1; let x = x + 1; x", 2},
		{"let x = 5; if (x > 3) { x * 2 } else { 0 }", 10},
	}

	for _, tc := range tests {
		vm := run(t, tc.input)
		expectValue(t, tc.input, vm.Result(), tc.want)
	}
}

func TestVMGlobalBindingSlot(t *testing.T) {
	c := NewCompiler()
	bc, err := c.Compile(parse(t, "let x = 5; x"))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	sym, ok := c.Symbols().Resolve("x")
	if !ok || sym.Index != 0 {
		t.Fatalf("Resolve(x) = %+v, %v; want slot 0", sym, ok)
	}

	vm := New(bc)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	expectValue(t, "let x = 5; x", vm.Result(), 5)
	expectValue(t, "globals[0]", vm.Globals()[0], 5)
}

func TestVMEmptyProgram(t *testing.T) {
	vm := run(t, "let x = 1;")
	if vm.SP() != 0 {
		t.Errorf("SP() = %d, want 0", vm.SP())
	}
	if _, err := vm.StackTop(); !errors.Is(err, ErrEmptyStack) {
		t.Errorf("StackTop() err = %v, want ErrEmptyStack", err)
	}
	if vm.Result() != object.NullValue {
		t.Errorf("Result() = %s, want null", vm.Result().Inspect())
	}
}

func TestVMRuntimeErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"-true", ErrTypeMismatch},
		{"!(if (false) { 1 })", ErrTypeMismatch},
		{"1 + true", ErrTypeMismatch},
		{"true + false", ErrTypeMismatch},
		{"1 == true", ErrTypeMismatch},
		{"1 < true", ErrTypeMismatch},
		{"(if (false) { 1 }) > 1", ErrTypeMismatch},
		{"1 / 0", ErrDivisionByZero},
		{"let z = 0; 10 / z", ErrDivisionByZero},
	}

	for _, tc := range tests {
		vm := New(compile(t, tc.input))
		err := vm.Run()
		if !errors.Is(err, tc.want) {
			t.Errorf("%q: err = %v, want %v", tc.input, err, tc.want)
			continue
		}
		var re *RuntimeError
		if !errors.As(err, &re) {
			t.Errorf("%q: err is %T, want *RuntimeError", tc.input, err)
		}
		if vm.State() != StateFailed {
			t.Errorf("%q: State() = %s, want failed", tc.input, vm.State())
		}
		if vm.Err() != err {
			t.Errorf("%q: Err() = %v, want %v", tc.input, vm.Err(), err)
		}
	}
}

func TestVMStackOverflow(t *testing.T) {
	vm := New(compile(t, "1 + (2 + (3 + 4))"), WithStackSize(3))
	err := vm.Run()
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("err = %v, want ErrStackOverflow", err)
	}
	var re *RuntimeError
	if errors.As(err, &re) && re.Op != OpConstant {
		t.Errorf("failing op = %s, want CONSTANT", re.Op)
	}
	if vm.State() != StateFailed {
		t.Errorf("State() = %s, want failed", vm.State())
	}

	vm = New(compile(t, "1 + (2 + (3 + 4))"), WithStackSize(4))
	if err := vm.Run(); err != nil {
		t.Errorf("stack of 4 should fit: %v", err)
	}
}

func TestVMEmptyStackPop(t *testing.T) {
	vm := New(&Bytecode{Instructions: MustMake(OpPop)})
	err := vm.Run()
	if !errors.Is(err, ErrEmptyStack) {
		t.Fatalf("err = %v, want ErrEmptyStack", err)
	}
	var re *RuntimeError
	if !errors.As(err, &re) || re.IP != 0 || re.Op != OpPop {
		t.Errorf("err = %#v, want RuntimeError at 0 POP", err)
	}
	if vm.State() != StateFailed {
		t.Errorf("State() = %s, want failed", vm.State())
	}
}

func TestVMMalformedPrograms(t *testing.T) {
	tests := []struct {
		name string
		bc   *Bytecode
		want error
	}{
		{
			"constant out of range",
			&Bytecode{Instructions: MustMake(OpConstant, U16(3))},
			ErrConstantIndex,
		},
		{
			"jump past end",
			&Bytecode{Instructions: MustMake(OpJP, U16(100))},
			ErrJumpTarget,
		},
		{
			"conditional jump on empty stack",
			&Bytecode{Instructions: MustMake(OpJPFalse, U16(3))},
			ErrEmptyStack,
		},
		{
			"global slot past capacity",
			&Bytecode{Instructions: concat(MustMake(OpTrue), MustMake(OpSetGlobal, U16(8)))},
			ErrGlobalSlot,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vm := New(tc.bc, WithGlobalsSize(8))
			if err := vm.Run(); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestVMDecodeFailure(t *testing.T) {
	vm := New(&Bytecode{Instructions: Instructions{byte(OpTrue), 0xEE}})
	err := vm.Run()
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want wrapped *CompileError", err)
	}
	var re *RuntimeError
	if !errors.As(err, &re) || re.IP != 1 {
		t.Errorf("err = %v, want RuntimeError at 1", err)
	}

	vm = New(&Bytecode{Instructions: Instructions{byte(OpJP), 0x00}})
	if err := vm.Run(); !errors.As(err, &ce) {
		t.Errorf("truncated jump: err = %v, want wrapped *CompileError", err)
	}
}

func TestVMJumpTrue(t *testing.T) {
	// 0000 TRUE; 0001 JP_TRUE 7; 0004 CONSTANT 0; 0007 CONSTANT 1
	ins := concat(
		MustMake(OpTrue),
		MustMake(OpJPTrue, U16(7)),
		MustMake(OpConstant, U16(0)),
		MustMake(OpConstant, U16(1)),
	)
	bc := &Bytecode{
		Instructions: ins,
		Constants:    []object.Object{&object.Integer{Value: 1}, &object.Integer{Value: 2}},
	}
	vm := New(bc)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	expectValue(t, "jp_true", vm.Result(), 2)
	if vm.SP() != 1 {
		t.Errorf("SP() = %d, want 1", vm.SP())
	}
}

func TestVMNoResume(t *testing.T) {
	vm := run(t, "1")
	if err := vm.Run(); !errors.Is(err, ErrHalted) {
		t.Errorf("second Run err = %v, want ErrHalted", err)
	}

	vm = New(compile(t, "1 / 0"))
	_ = vm.Run()
	if err := vm.Run(); !errors.Is(err, ErrHalted) {
		t.Errorf("Run after failure err = %v, want ErrHalted", err)
	}
	if vm.State() != StateFailed {
		t.Errorf("State() = %s, want failed", vm.State())
	}
}

func TestVMPopScrubsSlot(t *testing.T) {
	vm := run(t, "1; 2; 3")
	if vm.SP() != 1 {
		t.Fatalf("SP() = %d, want 1", vm.SP())
	}
	for i := vm.SP(); i < 4; i++ {
		if vm.stack[i] != object.NullValue {
			t.Errorf("stack[%d] = %s, want null", i, vm.stack[i].Inspect())
		}
	}
}

func TestVMSharedGlobals(t *testing.T) {
	st := NewSymbolTable()
	globals := NewGlobals(16)

	c := NewCompilerWithState(st)
	bc, err := c.Compile(parse(t, "let a = 40;"))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if err := NewWithGlobals(bc, globals).Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	c.Reset()
	bc, err = c.Compile(parse(t, "a + 2"))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	vm := NewWithGlobals(bc, globals)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	expectValue(t, "a + 2", vm.Result(), 42)
}

func TestVMUnsetGlobalReadsNull(t *testing.T) {
	vm := New(&Bytecode{Instructions: MustMake(OpGetGlobal, U16(5))})
	if err := vm.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	expectValue(t, "GET_GLOBAL 5", vm.Result(), nil)
}

func TestVMTrace(t *testing.T) {
	vm := run(t, "let x = 1; if (x) { x + 1 }", WithTrace(true))
	expectValue(t, "trace", vm.Result(), 2)
}
