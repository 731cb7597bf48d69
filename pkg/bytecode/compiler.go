package bytecode

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/mk/compiler"
	"github.com/chazu/mk/pkg/object"
)

var log = commonlog.GetLogger("mk.bytecode")

// placeholder is the operand written for a forward jump before its target
// is known.
const placeholder = 0xFFFF

// maxConstants is the number of pool entries addressable by a 2-byte operand.
const maxConstants = 1 << 16

// emitted records an instruction written to the buffer.
type emitted struct {
	op  Opcode
	pos int
}

// Compiler converts an mk syntax tree to bytecode.
type Compiler struct {
	instructions Instructions
	constants    []object.Object
	symbols      *SymbolTable

	// The two most recent instructions, so a trailing Pop can be removed
	// by identity rather than by peeking at the final byte.
	last     emitted
	previous emitted
	emitted  int

	// valueLeft is set when the buffer ends with a program value whose Pop
	// was removed.
	valueLeft bool
}

// NewCompiler creates a compiler with an empty symbol table.
func NewCompiler() *Compiler {
	return NewCompilerWithState(NewSymbolTable())
}

// NewCompilerWithState creates a compiler that defines and resolves names in
// symbols. The REPL shares one table across inputs.
func NewCompilerWithState(symbols *SymbolTable) *Compiler {
	return &Compiler{
		instructions: make(Instructions, 0, 64),
		symbols:      symbols,
	}
}

// Compile appends the program's code to the buffer and returns a snapshot
// of the result. The value of the final expression statement is left on
// the stack. Without a Reset, the value left by the previous Compile is
// popped first so only the newest program's value remains.
func (c *Compiler) Compile(program *compiler.Program) (*Bytecode, error) {
	if c.valueLeft {
		if err := c.emit(program, OpPop); err != nil {
			return nil, err
		}
		c.valueLeft = false
	}
	for _, stmt := range program.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}
	if c.lastIs(OpPop) {
		c.removeLastPop()
		c.valueLeft = true
	}

	log.Debugf("compiled %d statements: %d bytes, %d constants, %d globals",
		len(program.Statements), len(c.instructions), len(c.constants), c.symbols.Len())
	return c.Bytecode(), nil
}

// Bytecode returns copies of the instruction buffer and constant pool.
func (c *Compiler) Bytecode() *Bytecode {
	ins := make(Instructions, len(c.instructions))
	copy(ins, c.instructions)
	consts := make([]object.Object, len(c.constants))
	copy(consts, c.constants)
	return &Bytecode{Instructions: ins, Constants: consts}
}

// Reset clears the buffer and constant pool. The symbol table is kept so
// names defined by earlier inputs still resolve.
func (c *Compiler) Reset() {
	c.instructions = c.instructions[:0]
	c.constants = nil
	c.last = emitted{}
	c.previous = emitted{}
	c.emitted = 0
	c.valueLeft = false
}

// Symbols returns the compiler's symbol table.
func (c *Compiler) Symbols() *SymbolTable {
	return c.symbols
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStatement(stmt compiler.Stmt) error {
	switch s := stmt.(type) {
	case *compiler.ExpressionStatement:
		if err := c.compileExpr(s.Expr); err != nil {
			return err
		}
		return c.emit(s, OpPop)

	case *compiler.LetStatement:
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		if c.symbols.Full() {
			return nodeErrorf(s, "too many globals (max %d)", MaxGlobals)
		}
		sym := c.symbols.Define(s.Name.Value)
		return c.emit(s, OpSetGlobal, U16(uint16(sym.Index)))

	case *compiler.BlockStatement:
		for _, inner := range s.Statements {
			if err := c.compileStatement(inner); err != nil {
				return err
			}
		}
		return nil

	default:
		return unsupported(stmt)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileExpr(expr compiler.Expr) error {
	switch e := expr.(type) {
	case *compiler.IntegerLiteral:
		if len(c.constants) >= maxConstants {
			return nodeErrorf(e, "constant pool full (max %d)", maxConstants)
		}
		c.constants = append(c.constants, &object.Integer{Value: e.Value})
		return c.emit(e, OpConstant, U16(uint16(len(c.constants)-1)))

	case *compiler.BooleanLiteral:
		if e.Value {
			return c.emit(e, OpTrue)
		}
		return c.emit(e, OpFalse)

	case *compiler.Identifier:
		sym, ok := c.symbols.Resolve(e.Value)
		if !ok {
			return nodeErrorf(e, "cannot resolve symbol %q", e.Value)
		}
		return c.emit(e, OpGetGlobal, U16(uint16(sym.Index)))

	case *compiler.PrefixExpression:
		return c.compilePrefix(e)

	case *compiler.InfixExpression:
		return c.compileInfix(e)

	case *compiler.IfExpression:
		return c.compileIf(e)

	default:
		return unsupported(expr)
	}
}

var infixOps = map[string]Opcode{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"==": OpEq,
	"!=": OpNEq,
	">":  OpGT,
	"<":  OpLT,
}

func (c *Compiler) compileInfix(e *compiler.InfixExpression) error {
	op, ok := infixOps[e.Operator]
	if !ok {
		return nodeErrorf(e, "unsupported infix operator %q", e.Operator)
	}
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	return c.emit(e, op)
}

func (c *Compiler) compilePrefix(e *compiler.PrefixExpression) error {
	var op Opcode
	switch e.Operator {
	case "-":
		op = OpMinus
	case "!":
		op = OpExclam
	default:
		return nodeErrorf(e, "unsupported prefix operator %q", e.Operator)
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	return c.emit(e, op)
}

// compileIf lowers a conditional to
//
//	<cond> JP_FALSE else <consequence> JP end
//	else: <alternative or NULL>
//	end:
//
// Both branches leave exactly one value on the stack.
func (c *Compiler) compileIf(e *compiler.IfExpression) error {
	if err := c.compileExpr(e.Condition); err != nil {
		return err
	}

	falseJump, err := c.emitJump(e, OpJPFalse)
	if err != nil {
		return err
	}
	if err := c.compileBranch(e.Consequence); err != nil {
		return err
	}

	endJump, err := c.emitJump(e, OpJP)
	if err != nil {
		return err
	}
	if err := c.patchJump(e, falseJump); err != nil {
		return err
	}

	if e.Alternative != nil {
		if err := c.compileBranch(e.Alternative); err != nil {
			return err
		}
	} else if err := c.emit(e, OpNull); err != nil {
		return err
	}

	return c.patchJump(e, endJump)
}

// compileBranch compiles a conditional branch so that it leaves its value
// on the stack. A branch whose last statement produces no value (an empty
// block or a trailing let) yields null.
func (c *Compiler) compileBranch(block *compiler.BlockStatement) error {
	start := len(c.instructions)
	if err := c.compileStatement(block); err != nil {
		return err
	}
	if len(c.instructions) > start && c.lastIs(OpPop) {
		c.removeLastPop()
		return nil
	}
	return c.emit(block, OpNull)
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// emit encodes and appends one instruction.
func (c *Compiler) emit(node compiler.Node, op Opcode, operands ...Operand) error {
	ins, err := Make(op, operands...)
	if err != nil {
		if ce, ok := err.(*CompileError); ok {
			ce.Pos = node.Pos()
		}
		return err
	}
	pos := len(c.instructions)
	c.instructions = append(c.instructions, ins...)
	c.previous = c.last
	c.last = emitted{op: op, pos: pos}
	c.emitted++
	return nil
}

// emitJump emits op with a placeholder target and returns the offset of
// the operand bytes for patchJump.
func (c *Compiler) emitJump(node compiler.Node, op Opcode) (int, error) {
	if err := c.emit(node, op, U16(placeholder)); err != nil {
		return 0, err
	}
	return c.last.pos + 1, nil
}

// patchJump points the jump operand at operandPos to the current end of
// the buffer. Only the two operand bytes are rewritten.
func (c *Compiler) patchJump(node compiler.Node, operandPos int) error {
	target := len(c.instructions)
	if target > 0xFFFF {
		return nodeErrorf(node, "jump target %d exceeds 65535", target)
	}
	PutUint16(c.instructions[operandPos:], uint16(target))
	return nil
}

func (c *Compiler) lastIs(op Opcode) bool {
	return c.emitted > 0 && c.last.op == op
}

func (c *Compiler) removeLastPop() {
	c.instructions = c.instructions[:c.last.pos]
	c.last = c.previous
	c.emitted--
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func nodeErrorf(node compiler.Node, format string, args ...interface{}) *CompileError {
	return &CompileError{Pos: node.Pos(), Msg: fmt.Sprintf(format, args...)}
}

func unsupported(node compiler.Node) *CompileError {
	kind := strings.TrimPrefix(fmt.Sprintf("%T", node), "*compiler.")
	return nodeErrorf(node, "unsupported node %s", kind)
}
