// Package eval is a tree-walking evaluator for mk programs. Unlike the
// bytecode path it covers the whole language: functions and closures,
// strings, arrays, hashes, indexing and built-ins.
package eval

import (
	"errors"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/mk/compiler"
	"github.com/chazu/mk/pkg/object"
)

var log = commonlog.GetLogger("mk.eval")

// MaxCallDepth bounds nested function calls.
const MaxCallDepth = 10000

// ErrCallDepth is returned when calls nest deeper than MaxCallDepth.
var ErrCallDepth = errors.New("maximum call depth exceeded")

// Interpreter evaluates programs against a persistent global environment.
// Successive Eval calls see the bindings of earlier ones.
type Interpreter struct {
	envs     []environment
	builtins map[string]*object.Builtin
	out      io.Writer
	depth    int
	closures int // function values created so far
}

// New returns an interpreter whose print built-ins write to out. A nil out
// discards output.
func New(out io.Writer) *Interpreter {
	if out == nil {
		out = io.Discard
	}
	in := &Interpreter{out: out}
	in.newEnv(NoEnv)
	in.builtins = in.newBuiltins()
	return in
}

// Eval runs program in the global environment and returns the value of the
// last statement evaluated, or the value of a top-level return.
func (in *Interpreter) Eval(program *compiler.Program) (object.Object, error) {
	in.depth = 0
	result, err := in.evalStatements(program.Statements, GlobalEnv)
	if err != nil {
		return nil, err
	}
	log.Debugf("evaluated %d statements, %d environments live", len(program.Statements), len(in.envs))
	return unwrapReturn(result), nil
}

// evalStatements stops at the first return and hands the *object.Return
// back so enclosing blocks keep unwinding.
func (in *Interpreter) evalStatements(stmts []compiler.Stmt, env EnvID) (object.Object, error) {
	var result object.Object = object.NullValue
	for _, s := range stmts {
		v, err := in.evalStatement(s, env)
		if err != nil {
			return nil, err
		}
		result = v
		if _, ok := v.(*object.Return); ok {
			return v, nil
		}
	}
	return result, nil
}

func (in *Interpreter) evalStatement(s compiler.Stmt, env EnvID) (object.Object, error) {
	switch s := s.(type) {
	case *compiler.ExpressionStatement:
		return in.evalExpr(s.Expr, env)
	case *compiler.LetStatement:
		v, err := in.evalValue(s.Value, env)
		if err != nil {
			return nil, err
		}
		in.define(env, s.Name.Value, v)
		return object.NullValue, nil
	case *compiler.ReturnStatement:
		v, err := in.evalValue(s.Value, env)
		if err != nil {
			return nil, err
		}
		return &object.Return{Value: v}, nil
	case *compiler.BlockStatement:
		return in.evalStatements(s.Statements, env)
	}
	return nil, errorf(s.Pos(), ErrUnknownOperator, "unsupported statement %T", s)
}

// evalValue evaluates e where a plain value is needed, unwrapping a return
// that escaped an if expression.
func (in *Interpreter) evalValue(e compiler.Expr, env EnvID) (object.Object, error) {
	v, err := in.evalExpr(e, env)
	if err != nil {
		return nil, err
	}
	return unwrapReturn(v), nil
}

func (in *Interpreter) evalExpr(e compiler.Expr, env EnvID) (object.Object, error) {
	switch e := e.(type) {
	case *compiler.IntegerLiteral:
		return &object.Integer{Value: e.Value}, nil
	case *compiler.BooleanLiteral:
		return object.NativeBool(e.Value), nil
	case *compiler.StringLiteral:
		return &object.String{Value: e.Value}, nil
	case *compiler.Identifier:
		if v, ok := in.lookup(env, e.Value); ok {
			return v, nil
		}
		return nil, errorf(e.Pos(), ErrUnknownVariable, "%s", e.Value)
	case *compiler.PrefixExpression:
		right, err := in.evalValue(e.Right, env)
		if err != nil {
			return nil, err
		}
		return evalPrefix(e, right)
	case *compiler.InfixExpression:
		left, err := in.evalValue(e.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := in.evalValue(e.Right, env)
		if err != nil {
			return nil, err
		}
		return evalInfix(e, left, right)
	case *compiler.IfExpression:
		cond, err := in.evalValue(e.Condition, env)
		if err != nil {
			return nil, err
		}
		if object.Truthy(cond) {
			return in.evalStatements(e.Consequence.Statements, env)
		}
		if e.Alternative != nil {
			return in.evalStatements(e.Alternative.Statements, env)
		}
		return object.NullValue, nil
	case *compiler.FunctionLiteral:
		in.closures++
		return &object.Function{Params: e.Parameters, Body: e.Body, Env: int(env)}, nil
	case *compiler.CallExpression:
		return in.evalCall(e, env)
	case *compiler.ArrayLiteral:
		elems, err := in.evalList(e.Elements, env)
		if err != nil {
			return nil, err
		}
		return &object.Array{Elements: elems}, nil
	case *compiler.HashLiteral:
		return in.evalHash(e, env)
	case *compiler.IndexExpression:
		return in.evalIndex(e, env)
	}
	return nil, errorf(e.Pos(), ErrUnknownOperator, "unsupported expression %T", e)
}

func (in *Interpreter) evalList(exprs []compiler.Expr, env EnvID) ([]object.Object, error) {
	out := make([]object.Object, 0, len(exprs))
	for _, e := range exprs {
		v, err := in.evalValue(e, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func evalPrefix(e *compiler.PrefixExpression, right object.Object) (object.Object, error) {
	switch e.Operator {
	case "!":
		switch r := right.(type) {
		case *object.Boolean:
			return object.NativeBool(!r.Value), nil
		case *object.Integer:
			return object.NativeBool(r.Value == 0), nil
		case *object.Null:
			return object.True, nil
		}
	case "-":
		if r, ok := right.(*object.Integer); ok {
			return &object.Integer{Value: -r.Value}, nil
		}
	default:
		return nil, errorf(e.Token.Pos, ErrUnknownOperator, "%s%s", e.Operator, right.Type())
	}
	return nil, errorf(e.Token.Pos, ErrTypeMismatch, "%s%s", e.Operator, right.Type())
}

func evalInfix(e *compiler.InfixExpression, left, right object.Object) (object.Object, error) {
	op := e.Operator
	pos := e.Token.Pos
	if left.Type() != right.Type() {
		return nil, errorf(pos, ErrTypeMismatch, "%s %s %s", left.Type(), op, right.Type())
	}

	switch op {
	case "+", "-", "*", "/":
		if l, ok := left.(*object.Integer); ok {
			return evalArithmetic(pos, op, l.Value, right.(*object.Integer).Value)
		}
		if l, ok := left.(*object.String); ok && op == "+" {
			return &object.String{Value: l.Value + right.(*object.String).Value}, nil
		}
	case "==", "!=":
		if eq, err := object.Equal(left, right); err == nil {
			return object.NativeBool(eq == (op == "==")), nil
		}
	case "<", ">":
		if c, err := object.Compare(left, right); err == nil {
			return object.NativeBool((op == "<" && c < 0) || (op == ">" && c > 0)), nil
		}
	}
	return nil, errorf(pos, ErrUnknownOperator, "%s %s %s", left.Type(), op, right.Type())
}

func evalArithmetic(pos compiler.Position, op string, l, r int64) (object.Object, error) {
	var v int64
	switch op {
	case "+":
		v = l + r
	case "-":
		v = l - r
	case "*":
		v = l * r
	case "/":
		if r == 0 {
			return nil, errorf(pos, ErrDivisionByZero, "%d / 0", l)
		}
		v = l / r
	}
	return &object.Integer{Value: v}, nil
}

func (in *Interpreter) evalCall(e *compiler.CallExpression, env EnvID) (object.Object, error) {
	callee, err := in.evalValue(e.Function, env)
	if err != nil {
		return nil, err
	}

	switch fn := callee.(type) {
	case *object.Function:
		if len(fn.Params) != len(e.Arguments) {
			return nil, errorf(e.Token.Pos, ErrArity, "function takes %d, got %d", len(fn.Params), len(e.Arguments))
		}
		args, err := in.evalList(e.Arguments, env)
		if err != nil {
			return nil, err
		}
		if in.depth >= MaxCallDepth {
			return nil, &Error{Pos: e.Token.Pos, Err: ErrCallDepth}
		}
		mark, made := EnvID(len(in.envs)), in.closures
		callEnv := in.newEnv(EnvID(fn.Env))
		for i, p := range fn.Params {
			in.define(callEnv, p.Value, args[i])
		}
		in.depth++
		result, err := in.evalStatements(fn.Body.Statements, callEnv)
		in.depth--
		// Only a closure made during the call can refer to its environments.
		if in.closures == made {
			in.release(mark)
		}
		if err != nil {
			return nil, err
		}
		return unwrapReturn(result), nil

	case *object.Builtin:
		args, err := in.evalList(e.Arguments, env)
		if err != nil {
			return nil, err
		}
		v, err := fn.Fn(args...)
		if err != nil {
			return nil, &Error{Pos: e.Token.Pos, Err: err}
		}
		return v, nil
	}
	return nil, errorf(e.Token.Pos, ErrNotCallable, "%s", callee.Type())
}

func (in *Interpreter) evalHash(e *compiler.HashLiteral, env EnvID) (object.Object, error) {
	h := object.NewHash()
	for _, pair := range e.Pairs {
		k, err := in.evalValue(pair.Key, env)
		if err != nil {
			return nil, err
		}
		key, ok := k.(object.Hashable)
		if !ok {
			return nil, errorf(pair.Key.Pos(), ErrUnhashable, "%s", k.Type())
		}
		v, err := in.evalValue(pair.Value, env)
		if err != nil {
			return nil, err
		}
		h.Set(key, v)
	}
	return h, nil
}

func (in *Interpreter) evalIndex(e *compiler.IndexExpression, env EnvID) (object.Object, error) {
	left, err := in.evalValue(e.Left, env)
	if err != nil {
		return nil, err
	}
	index, err := in.evalValue(e.Index, env)
	if err != nil {
		return nil, err
	}

	switch l := left.(type) {
	case *object.Array:
		i, ok := index.(*object.Integer)
		if !ok {
			return nil, errorf(e.Token.Pos, ErrTypeMismatch, "array index must be %s, got %s", object.IntegerType, index.Type())
		}
		if i.Value < 0 || i.Value >= int64(len(l.Elements)) {
			return nil, errorf(e.Token.Pos, ErrIndexOutOfRange, "index %d, length %d", i.Value, len(l.Elements))
		}
		return l.Elements[i.Value], nil
	case *object.Hash:
		key, ok := index.(object.Hashable)
		if !ok {
			return nil, errorf(e.Token.Pos, ErrUnhashable, "%s", index.Type())
		}
		if v, ok := l.Get(key); ok {
			return v, nil
		}
		return object.NullValue, nil
	}
	return nil, errorf(e.Token.Pos, ErrTypeMismatch, "cannot index %s", left.Type())
}

func unwrapReturn(o object.Object) object.Object {
	if r, ok := o.(*object.Return); ok {
		return r.Value
	}
	return o
}
