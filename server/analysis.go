package server

import (
	"errors"

	"github.com/chazu/mk/compiler"
	"github.com/chazu/mk/pkg/bytecode"
)

// Binding kinds.
const (
	KindGlobal    = "global"
	KindLocal     = "local"
	KindParameter = "parameter"
)

// Binding is a name introduced by a let statement or a function parameter.
type Binding struct {
	Name string
	Pos  compiler.Position
	Kind string
	// Slot is the VM global slot for top-level lets, -1 otherwise.
	Slot int
	// Value describes the bound expression: "function", "integer", ...
	Value string
}

// Analysis is the checked state of one document.
type Analysis struct {
	Text        string
	Program     *compiler.Program
	ParseErrors []compiler.ParseError
	// CompileErr is set when the program parses but the bytecode compiler
	// rejects it. Such programs still run on the tree-walking engine.
	CompileErr *bytecode.CompileError
	Bindings   []Binding
}

// Analyze parses text, collects its bindings and tries a bytecode compile.
func Analyze(text string) *Analysis {
	p := compiler.NewParser(text)
	a := &Analysis{Text: text, Program: p.ParseProgram()}
	a.ParseErrors = p.Errors()

	c := &collector{}
	c.stmts(a.Program.Statements, false)
	a.Bindings = c.bindings

	if len(a.ParseErrors) == 0 {
		if _, err := bytecode.NewCompiler().Compile(a.Program); err != nil {
			var ce *bytecode.CompileError
			if errors.As(err, &ce) {
				a.CompileErr = ce
			} else {
				a.CompileErr = &bytecode.CompileError{Msg: err.Error()}
			}
		}
	}
	return a
}

// Lookup returns the binding of name visible at line (1-based): the last
// one declared on or before that line. Names declared only after line are
// not visible.
func (a *Analysis) Lookup(name string, line int) (Binding, bool) {
	var found Binding
	ok := false
	for _, b := range a.Bindings {
		if b.Name != name || b.Pos.Line > line {
			continue
		}
		found, ok = b, true
	}
	return found, ok
}

// collector walks the tree in the order the bytecode compiler does, so the
// slots it hands out match the compiler's symbol table.
type collector struct {
	bindings []Binding
	slots    int
}

func (c *collector) stmts(stmts []compiler.Stmt, inFunc bool) {
	for _, s := range stmts {
		c.stmt(s, inFunc)
	}
}

func (c *collector) stmt(s compiler.Stmt, inFunc bool) {
	switch s := s.(type) {
	case *compiler.LetStatement:
		c.expr(s.Value, inFunc)
		if s.Name == nil {
			return
		}
		b := Binding{Name: s.Name.Value, Pos: s.Name.Pos(), Kind: KindLocal, Slot: -1, Value: describe(s.Value)}
		if !inFunc {
			b.Kind = KindGlobal
			b.Slot = c.slots
			c.slots++
		}
		c.bindings = append(c.bindings, b)
	case *compiler.ReturnStatement:
		c.expr(s.Value, inFunc)
	case *compiler.ExpressionStatement:
		c.expr(s.Expr, inFunc)
	case *compiler.BlockStatement:
		c.stmts(s.Statements, inFunc)
	}
}

func (c *collector) expr(e compiler.Expr, inFunc bool) {
	switch e := e.(type) {
	case *compiler.PrefixExpression:
		c.expr(e.Right, inFunc)
	case *compiler.InfixExpression:
		c.expr(e.Left, inFunc)
		c.expr(e.Right, inFunc)
	case *compiler.IfExpression:
		c.expr(e.Condition, inFunc)
		if e.Consequence != nil {
			c.stmts(e.Consequence.Statements, inFunc)
		}
		if e.Alternative != nil {
			c.stmts(e.Alternative.Statements, inFunc)
		}
	case *compiler.FunctionLiteral:
		for _, p := range e.Parameters {
			c.bindings = append(c.bindings, Binding{Name: p.Value, Pos: p.Pos(), Kind: KindParameter, Slot: -1})
		}
		if e.Body != nil {
			c.stmts(e.Body.Statements, true)
		}
	case *compiler.CallExpression:
		c.expr(e.Function, inFunc)
		for _, arg := range e.Arguments {
			c.expr(arg, inFunc)
		}
	case *compiler.ArrayLiteral:
		for _, el := range e.Elements {
			c.expr(el, inFunc)
		}
	case *compiler.HashLiteral:
		for _, p := range e.Pairs {
			c.expr(p.Key, inFunc)
			c.expr(p.Value, inFunc)
		}
	case *compiler.IndexExpression:
		c.expr(e.Left, inFunc)
		c.expr(e.Index, inFunc)
	}
}

func describe(e compiler.Expr) string {
	switch e.(type) {
	case *compiler.FunctionLiteral:
		return "function"
	case *compiler.IntegerLiteral:
		return "integer"
	case *compiler.BooleanLiteral:
		return "boolean"
	case *compiler.StringLiteral:
		return "string"
	case *compiler.ArrayLiteral:
		return "array"
	case *compiler.HashLiteral:
		return "hash"
	}
	return "expression"
}
