package bytecode

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/mk/pkg/object"
)

// Default capacities.
const (
	StackSize   = 2048
	GlobalsSize = MaxGlobals
)

// State is the lifecycle stage of a VM.
type State int

const (
	StateReady State = iota
	StateRunning
	StateHalted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type vmConfig struct {
	stackSize   int
	globalsSize int
	trace       bool
}

// Option configures a VM.
type Option func(*vmConfig)

// WithStackSize sets the evaluation stack capacity.
func WithStackSize(n int) Option {
	return func(c *vmConfig) {
		if n > 0 {
			c.stackSize = n
		}
	}
}

// WithGlobalsSize sets the number of global slots. Ignored by NewWithGlobals.
func WithGlobalsSize(n int) Option {
	return func(c *vmConfig) {
		if n > 0 {
			c.globalsSize = n
		}
	}
}

// WithTrace logs every executed instruction and the live stack at debug
// level on the mk.bytecode logger.
func WithTrace(on bool) Option {
	return func(c *vmConfig) { c.trace = on }
}

// NewGlobals returns a globals slice of n slots, each holding null.
func NewGlobals(n int) []object.Object {
	globals := make([]object.Object, n)
	for i := range globals {
		globals[i] = object.NullValue
	}
	return globals
}

// VM executes a Bytecode program once. A VM is owned by a single caller.
type VM struct {
	constants    []object.Object
	instructions Instructions

	stack []object.Object
	sp    int // next free slot; top of stack is stack[sp-1]

	globals []object.Object

	ip    int
	state State
	err   error
	trace bool
}

// New creates a VM with fresh globals.
func New(bc *Bytecode, opts ...Option) *VM {
	cfg := configure(opts)
	return newVM(bc, NewGlobals(cfg.globalsSize), cfg)
}

// NewWithGlobals creates a VM that reads and writes the given globals, so
// bindings survive across runs. A nil slice gets the default size.
func NewWithGlobals(bc *Bytecode, globals []object.Object, opts ...Option) *VM {
	cfg := configure(opts)
	if globals == nil {
		globals = NewGlobals(cfg.globalsSize)
	}
	return newVM(bc, globals, cfg)
}

func configure(opts []Option) vmConfig {
	cfg := vmConfig{stackSize: StackSize, globalsSize: GlobalsSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func newVM(bc *Bytecode, globals []object.Object, cfg vmConfig) *VM {
	stack := make([]object.Object, cfg.stackSize)
	for i := range stack {
		stack[i] = object.NullValue
	}
	return &VM{
		constants:    bc.Constants,
		instructions: bc.Instructions,
		stack:        stack,
		globals:      globals,
		trace:        cfg.trace,
	}
}

// Run executes until the instruction pointer reaches the end of the stream
// or an instruction fails. A VM runs at most once; later calls return
// ErrHalted.
func (vm *VM) Run() error {
	if vm.state != StateReady {
		return ErrHalted
	}
	vm.state = StateRunning

	for vm.ip < len(vm.instructions) {
		ip := vm.ip
		op, operands, n, err := Decode(vm.instructions, ip)
		if err != nil {
			return vm.fail(op, ip, err)
		}
		if vm.trace {
			vm.traceInstruction(op, operands, ip)
		}

		next := ip + n
		switch op {
		case OpConstant:
			idx := int(operands[0].Value)
			if idx >= len(vm.constants) {
				return vm.fail(op, ip, fmt.Errorf("%w: %d (pool size %d)", ErrConstantIndex, idx, len(vm.constants)))
			}
			err = vm.push(vm.constants[idx])

		case OpTrue:
			err = vm.push(object.True)
		case OpFalse:
			err = vm.push(object.False)
		case OpNull:
			err = vm.push(object.NullValue)

		case OpPop:
			_, err = vm.pop()

		case OpAdd, OpSub, OpMul, OpDiv:
			err = vm.execArithmetic(op)

		case OpEq, OpNEq, OpGT, OpLT:
			err = vm.execComparison(op)

		case OpMinus:
			err = vm.execMinus()

		case OpExclam:
			err = vm.execExclam()

		case OpJP:
			next, err = vm.jumpTarget(operands[0])

		case OpJPTrue, OpJPFalse:
			var cond object.Object
			if cond, err = vm.pop(); err != nil {
				break
			}
			if object.Truthy(cond) == (op == OpJPTrue) {
				next, err = vm.jumpTarget(operands[0])
			}

		case OpSetGlobal:
			slot := int(operands[0].Value)
			if slot >= len(vm.globals) {
				return vm.fail(op, ip, fmt.Errorf("%w: %d (capacity %d)", ErrGlobalSlot, slot, len(vm.globals)))
			}
			var v object.Object
			if v, err = vm.pop(); err == nil {
				vm.globals[slot] = v
			}

		case OpGetGlobal:
			slot := int(operands[0].Value)
			if slot >= len(vm.globals) {
				return vm.fail(op, ip, fmt.Errorf("%w: %d (capacity %d)", ErrGlobalSlot, slot, len(vm.globals)))
			}
			err = vm.push(vm.globals[slot])

		default:
			err = compileErrorf("no handler for opcode %s", op)
		}

		if err != nil {
			return vm.fail(op, ip, err)
		}
		vm.ip = next
	}

	vm.state = StateHalted
	return nil
}

func (vm *VM) fail(op Opcode, ip int, err error) error {
	vm.state = StateFailed
	vm.err = &RuntimeError{Op: op, IP: ip, Err: err}
	log.Debugf("%s", vm.err)
	return vm.err
}

func (vm *VM) jumpTarget(o Operand) (int, error) {
	target := int(o.Value)
	if target > len(vm.instructions) {
		return 0, fmt.Errorf("%w: %d (stream length %d)", ErrJumpTarget, target, len(vm.instructions))
	}
	return target, nil
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

func (vm *VM) push(o object.Object) error {
	if vm.sp >= len(vm.stack) {
		return ErrStackOverflow
	}
	vm.stack[vm.sp] = o
	vm.sp++
	return nil
}

// pop removes the top value and scrubs the vacated slot.
func (vm *VM) pop() (object.Object, error) {
	if vm.sp == 0 {
		return nil, ErrEmptyStack
	}
	vm.sp--
	o := vm.stack[vm.sp]
	vm.stack[vm.sp] = object.NullValue
	return o, nil
}

func (vm *VM) popPair() (left, right object.Object, err error) {
	if right, err = vm.pop(); err != nil {
		return nil, nil, err
	}
	if left, err = vm.pop(); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

func (vm *VM) execArithmetic(op Opcode) error {
	left, right, err := vm.popPair()
	if err != nil {
		return err
	}
	l, lok := left.(*object.Integer)
	r, rok := right.(*object.Integer)
	if !lok || !rok {
		return mismatch(op, left, right)
	}

	var result int64
	switch op {
	case OpAdd:
		result = l.Value + r.Value
	case OpSub:
		result = l.Value - r.Value
	case OpMul:
		result = l.Value * r.Value
	case OpDiv:
		if r.Value == 0 {
			return ErrDivisionByZero
		}
		result = l.Value / r.Value
	}
	return vm.push(&object.Integer{Value: result})
}

func (vm *VM) execComparison(op Opcode) error {
	left, right, err := vm.popPair()
	if err != nil {
		return err
	}

	var result bool
	switch op {
	case OpEq, OpNEq:
		eq, err := object.Equal(left, right)
		if err != nil {
			return mismatch(op, left, right)
		}
		result = eq == (op == OpEq)
	case OpGT, OpLT:
		cmp, err := object.Compare(left, right)
		if err != nil {
			return mismatch(op, left, right)
		}
		result = (op == OpGT && cmp > 0) || (op == OpLT && cmp < 0)
	}
	return vm.push(object.NativeBool(result))
}

func (vm *VM) execMinus() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	i, ok := v.(*object.Integer)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrTypeMismatch, OpMinus, v.Type())
	}
	return vm.push(&object.Integer{Value: -i.Value})
}

func (vm *VM) execExclam() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case *object.Boolean:
		return vm.push(object.NativeBool(!v.Value))
	case *object.Integer:
		return vm.push(object.NativeBool(v.Value == 0))
	default:
		return fmt.Errorf("%w: %s %s", ErrTypeMismatch, OpExclam, v.Type())
	}
}

func mismatch(op Opcode, left, right object.Object) error {
	return fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, left.Type(), op, right.Type())
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// StackTop returns the value on top of the stack without removing it.
func (vm *VM) StackTop() (object.Object, error) {
	if vm.sp == 0 {
		return nil, ErrEmptyStack
	}
	return vm.stack[vm.sp-1], nil
}

// Result returns the top of the stack, or null when the stack is empty.
func (vm *VM) Result() object.Object {
	if top, err := vm.StackTop(); err == nil {
		return top
	}
	return object.NullValue
}

// SP returns the stack pointer (the number of live stack values).
func (vm *VM) SP() int { return vm.sp }

// State returns the VM's lifecycle state.
func (vm *VM) State() State { return vm.state }

// Err returns the failure that stopped the VM, if any.
func (vm *VM) Err() error { return vm.err }

// Globals returns the global slots.
func (vm *VM) Globals() []object.Object { return vm.globals }

func (vm *VM) traceInstruction(op Opcode, operands []Operand, ip int) {
	if !log.AllowLevel(commonlog.Debug) {
		return
	}
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < vm.sp; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(vm.stack[i].Inspect())
	}
	sb.WriteString("]")
	log.Debugf("%s stack=%s", formatInstruction(ip, op, operands), sb.String())
}
