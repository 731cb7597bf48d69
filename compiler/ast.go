package compiler

import (
	"strings"
)

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for mk
// ---------------------------------------------------------------------------

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	String() string
	node() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Program is the root node: a sequence of top-level statements.
type Program struct {
	Statements []Stmt
}

func (p *Program) Pos() Position {
	if len(p.Statements) > 0 {
		return p.Statements[0].Pos()
	}
	return Position{Line: 1, Column: 1}
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, s := range p.Statements {
		sb.WriteString(s.String())
	}
	return sb.String()
}

func (p *Program) node() {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// LetStatement binds a name: let <Name> = <Value>;
type LetStatement struct {
	Token Token // the 'let' token
	Name  *Identifier
	Value Expr
}

func (n *LetStatement) Pos() Position { return n.Token.Pos }
func (n *LetStatement) node()         {}
func (n *LetStatement) stmt()         {}
func (n *LetStatement) String() string {
	return "let " + n.Name.String() + " = " + exprString(n.Value) + ";"
}

// ReturnStatement: return <Value>;
type ReturnStatement struct {
	Token Token
	Value Expr
}

func (n *ReturnStatement) Pos() Position { return n.Token.Pos }
func (n *ReturnStatement) node()         {}
func (n *ReturnStatement) stmt()         {}
func (n *ReturnStatement) String() string {
	return "return " + exprString(n.Value) + ";"
}

// ExpressionStatement wraps an expression used as a statement.
type ExpressionStatement struct {
	Token Token // first token of the expression
	Expr  Expr
}

func (n *ExpressionStatement) Pos() Position  { return n.Token.Pos }
func (n *ExpressionStatement) node()          {}
func (n *ExpressionStatement) stmt()          {}
func (n *ExpressionStatement) String() string { return exprString(n.Expr) }

// BlockStatement is a braced statement list.
type BlockStatement struct {
	Token      Token // the '{' token
	Statements []Stmt
}

func (n *BlockStatement) Pos() Position { return n.Token.Pos }
func (n *BlockStatement) node()         {}
func (n *BlockStatement) stmt()         {}
func (n *BlockStatement) String() string {
	var sb strings.Builder
	sb.WriteString("{ ")
	for _, s := range n.Statements {
		sb.WriteString(s.String())
		sb.WriteString(" ")
	}
	sb.WriteString("}")
	return sb.String()
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Identifier represents a name reference.
type Identifier struct {
	Token Token
	Value string
}

func (n *Identifier) Pos() Position  { return n.Token.Pos }
func (n *Identifier) node()          {}
func (n *Identifier) expr()          {}
func (n *Identifier) String() string { return n.Value }

// IntegerLiteral represents an integer literal.
type IntegerLiteral struct {
	Token Token
	Value int64
}

func (n *IntegerLiteral) Pos() Position  { return n.Token.Pos }
func (n *IntegerLiteral) node()          {}
func (n *IntegerLiteral) expr()          {}
func (n *IntegerLiteral) String() string { return n.Token.Literal }

// BooleanLiteral represents true or false.
type BooleanLiteral struct {
	Token Token
	Value bool
}

func (n *BooleanLiteral) Pos() Position  { return n.Token.Pos }
func (n *BooleanLiteral) node()          {}
func (n *BooleanLiteral) expr()          {}
func (n *BooleanLiteral) String() string { return n.Token.Literal }

// StringLiteral represents a string literal.
type StringLiteral struct {
	Token Token
	Value string
}

func (n *StringLiteral) Pos() Position  { return n.Token.Pos }
func (n *StringLiteral) node()          {}
func (n *StringLiteral) expr()          {}
func (n *StringLiteral) String() string { return `"` + n.Value + `"` }

// PrefixExpression: <Operator><Right>
type PrefixExpression struct {
	Token    Token
	Operator string
	Right    Expr
}

func (n *PrefixExpression) Pos() Position { return n.Token.Pos }
func (n *PrefixExpression) node()         {}
func (n *PrefixExpression) expr()         {}
func (n *PrefixExpression) String() string {
	return "(" + n.Operator + exprString(n.Right) + ")"
}

// InfixExpression: <Left> <Operator> <Right>
type InfixExpression struct {
	Token    Token // the operator token
	Left     Expr
	Operator string
	Right    Expr
}

func (n *InfixExpression) Pos() Position { return n.Left.Pos() }
func (n *InfixExpression) node()         {}
func (n *InfixExpression) expr()         {}
func (n *InfixExpression) String() string {
	return "(" + exprString(n.Left) + " " + n.Operator + " " + exprString(n.Right) + ")"
}

// IfExpression: if (<Condition>) <Consequence> else <Alternative>
// Alternative is nil when there is no else branch.
type IfExpression struct {
	Token       Token
	Condition   Expr
	Consequence *BlockStatement
	Alternative *BlockStatement
}

func (n *IfExpression) Pos() Position { return n.Token.Pos }
func (n *IfExpression) node()         {}
func (n *IfExpression) expr()         {}
func (n *IfExpression) String() string {
	s := "if " + exprString(n.Condition) + " " + n.Consequence.String()
	if n.Alternative != nil {
		s += " else " + n.Alternative.String()
	}
	return s
}

// FunctionLiteral: fn(<Parameters>) <Body>
type FunctionLiteral struct {
	Token      Token
	Parameters []*Identifier
	Body       *BlockStatement
}

func (n *FunctionLiteral) Pos() Position { return n.Token.Pos }
func (n *FunctionLiteral) node()         {}
func (n *FunctionLiteral) expr()         {}
func (n *FunctionLiteral) String() string {
	params := make([]string, len(n.Parameters))
	for i, p := range n.Parameters {
		params[i] = p.String()
	}
	return "fn(" + strings.Join(params, ", ") + ") " + n.Body.String()
}

// CallExpression: <Function>(<Arguments>)
type CallExpression struct {
	Token     Token // the '(' token
	Function  Expr
	Arguments []Expr
}

func (n *CallExpression) Pos() Position { return n.Function.Pos() }
func (n *CallExpression) node()         {}
func (n *CallExpression) expr()         {}
func (n *CallExpression) String() string {
	return exprString(n.Function) + "(" + joinExprs(n.Arguments) + ")"
}

// ArrayLiteral: [<Elements>]
type ArrayLiteral struct {
	Token    Token
	Elements []Expr
}

func (n *ArrayLiteral) Pos() Position  { return n.Token.Pos }
func (n *ArrayLiteral) node()          {}
func (n *ArrayLiteral) expr()          {}
func (n *ArrayLiteral) String() string { return "[" + joinExprs(n.Elements) + "]" }

// HashPair is one key: value entry of a hash literal, in source order.
type HashPair struct {
	Key   Expr
	Value Expr
}

// HashLiteral: {<Key>: <Value>, ...}
type HashLiteral struct {
	Token Token
	Pairs []HashPair
}

func (n *HashLiteral) Pos() Position { return n.Token.Pos }
func (n *HashLiteral) node()         {}
func (n *HashLiteral) expr()         {}
func (n *HashLiteral) String() string {
	pairs := make([]string, len(n.Pairs))
	for i, p := range n.Pairs {
		pairs[i] = exprString(p.Key) + ": " + exprString(p.Value)
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// IndexExpression: <Left>[<Index>]
type IndexExpression struct {
	Token Token // the '[' token
	Left  Expr
	Index Expr
}

func (n *IndexExpression) Pos() Position { return n.Left.Pos() }
func (n *IndexExpression) node()         {}
func (n *IndexExpression) expr()         {}
func (n *IndexExpression) String() string {
	return "(" + exprString(n.Left) + "[" + exprString(n.Index) + "])"
}

func exprString(e Expr) string {
	if e == nil {
		return ""
	}
	return e.String()
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = exprString(e)
	}
	return strings.Join(parts, ", ")
}
