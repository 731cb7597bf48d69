package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: Pratt parser for mk syntax
// ---------------------------------------------------------------------------

// Operator precedences, lowest first.
const (
	_ int = iota
	precLowest
	precEquals      // == !=
	precLessGreater // < >
	precSum         // + -
	precProduct     // * /
	precPrefix      // -x !x
	precCall        // f(x)
	precIndex       // a[i]
)

var precedences = map[TokenType]int{
	TokenEq:       precEquals,
	TokenNotEq:    precEquals,
	TokenLT:       precLessGreater,
	TokenGT:       precLessGreater,
	TokenPlus:     precSum,
	TokenMinus:    precSum,
	TokenStar:     precProduct,
	TokenSlash:    precProduct,
	TokenLParen:   precCall,
	TokenLBracket: precIndex,
}

type (
	prefixParseFn func() Expr
	infixParseFn  func(Expr) Expr
)

// ParseError is a single syntax error with its source position.
type ParseError struct {
	Pos Position
	Msg string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Pos.Line, e.Msg)
}

// ParseErrors is the list of errors collected while parsing one input.
type ParseErrors []ParseError

func (e ParseErrors) Error() string {
	msgs := make([]string, len(e))
	for i, pe := range e {
		msgs[i] = pe.Error()
	}
	return strings.Join(msgs, "\n")
}

// Parser parses mk source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    []ParseError

	prefixFns map[TokenType]prefixParseFn
	infixFns  map[TokenType]infixParseFn
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}

	p.prefixFns = map[TokenType]prefixParseFn{
		TokenIdent:    p.parseIdentifier,
		TokenInt:      p.parseInteger,
		TokenString:   p.parseString,
		TokenTrue:     p.parseBoolean,
		TokenFalse:    p.parseBoolean,
		TokenBang:     p.parsePrefix,
		TokenMinus:    p.parsePrefix,
		TokenLParen:   p.parseGrouped,
		TokenIf:       p.parseIf,
		TokenFunction: p.parseFunction,
		TokenLBracket: p.parseArray,
		TokenLBrace:   p.parseHash,
	}
	p.infixFns = map[TokenType]infixParseFn{
		TokenPlus:     p.parseInfix,
		TokenMinus:    p.parseInfix,
		TokenStar:     p.parseInfix,
		TokenSlash:    p.parseInfix,
		TokenEq:       p.parseInfix,
		TokenNotEq:    p.parseInfix,
		TokenLT:       p.parseInfix,
		TokenGT:       p.parseInfix,
		TokenLParen:   p.parseCall,
		TokenLBracket: p.parseIndex,
	}

	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses src and returns the program, or a ParseErrors value if any
// syntax error was found.
func Parse(src string) (*Program, error) {
	p := NewParser(src)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return program, ParseErrors(errs)
	}
	return program, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expectPeek advances if the peek token matches, otherwise records an error.
func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorAt(p.peekToken.Pos, "expected %s, got %s", t, p.peekToken.Type)
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(p.curToken.Pos, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...interface{}) {
	p.errors = append(p.errors, ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []ParseError {
	return p.errors
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return precLowest
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return precLowest
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseProgram parses the whole input. Statements that fail to parse are
// dropped and the error recorded; parsing continues with the next token.
func (p *Parser) ParseProgram() *Program {
	program := &Program{}
	for !p.curTokenIs(TokenEOF) {
		if stmt := p.parseStatement(); stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLet()
	case TokenReturn:
		return p.parseReturn()
	case TokenSemicolon:
		return nil
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseLet() Stmt {
	stmt := &LetStatement{Token: p.curToken}

	if !p.expectPeek(TokenIdent) {
		return nil
	}
	stmt.Name = &Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(TokenAssign) {
		return nil
	}
	p.nextToken()

	stmt.Value = p.parseExpression(precLowest)
	if stmt.Value == nil {
		return nil
	}
	if p.peekTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseReturn() Stmt {
	stmt := &ReturnStatement{Token: p.curToken}
	p.nextToken()

	stmt.Value = p.parseExpression(precLowest)
	if stmt.Value == nil {
		return nil
	}
	if p.peekTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExpressionStatement() Stmt {
	stmt := &ExpressionStatement{Token: p.curToken}
	stmt.Expr = p.parseExpression(precLowest)
	if stmt.Expr == nil {
		return nil
	}
	if p.peekTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseBlock() *BlockStatement {
	block := &BlockStatement{Token: p.curToken}
	p.nextToken()

	for !p.curTokenIs(TokenRBrace) {
		if p.curTokenIs(TokenEOF) {
			p.errorf("unterminated block starting at %s", block.Token.Pos)
			return block
		}
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression(precedence int) Expr {
	prefix := p.prefixFns[p.curToken.Type]
	if prefix == nil {
		if p.curTokenIs(TokenIllegal) {
			p.errorf("illegal token %s", p.curToken.Literal)
		} else {
			p.errorf("unexpected %s", p.curToken.Type)
		}
		return nil
	}
	left := prefix()
	if left == nil {
		return nil
	}

	for !p.peekTokenIs(TokenSemicolon) && precedence < p.peekPrecedence() {
		infix := p.infixFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
		if left == nil {
			return nil
		}
	}
	return left
}

func (p *Parser) parseIdentifier() Expr {
	return &Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseInteger() Expr {
	v, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.errorf("invalid integer %q", p.curToken.Literal)
		return nil
	}
	return &IntegerLiteral{Token: p.curToken, Value: v}
}

func (p *Parser) parseString() Expr {
	return &StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() Expr {
	return &BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(TokenTrue)}
}

func (p *Parser) parsePrefix() Expr {
	expr := &PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(precPrefix)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseInfix(left Expr) Expr {
	expr := &InfixExpression{Token: p.curToken, Operator: p.curToken.Literal, Left: left}
	prec := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(prec)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseGrouped() Expr {
	p.nextToken()
	expr := p.parseExpression(precLowest)
	if expr == nil {
		return nil
	}
	if !p.expectPeek(TokenRParen) {
		return nil
	}
	return expr
}

func (p *Parser) parseIf() Expr {
	expr := &IfExpression{Token: p.curToken}

	if !p.expectPeek(TokenLParen) {
		return nil
	}
	p.nextToken()
	expr.Condition = p.parseExpression(precLowest)
	if expr.Condition == nil {
		return nil
	}
	if !p.expectPeek(TokenRParen) {
		return nil
	}
	if !p.expectPeek(TokenLBrace) {
		return nil
	}
	expr.Consequence = p.parseBlock()

	if p.peekTokenIs(TokenElse) {
		p.nextToken()
		if !p.expectPeek(TokenLBrace) {
			return nil
		}
		expr.Alternative = p.parseBlock()
	}
	return expr
}

func (p *Parser) parseFunction() Expr {
	fn := &FunctionLiteral{Token: p.curToken}

	if !p.expectPeek(TokenLParen) {
		return nil
	}
	params, ok := p.parseParameters()
	if !ok {
		return nil
	}
	fn.Parameters = params

	if !p.expectPeek(TokenLBrace) {
		return nil
	}
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseParameters() ([]*Identifier, bool) {
	var params []*Identifier

	if p.peekTokenIs(TokenRParen) {
		p.nextToken()
		return params, true
	}

	if !p.expectPeek(TokenIdent) {
		return nil, false
	}
	params = append(params, &Identifier{Token: p.curToken, Value: p.curToken.Literal})

	for p.peekTokenIs(TokenComma) {
		p.nextToken()
		if !p.expectPeek(TokenIdent) {
			return nil, false
		}
		params = append(params, &Identifier{Token: p.curToken, Value: p.curToken.Literal})
	}

	if !p.expectPeek(TokenRParen) {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseCall(fn Expr) Expr {
	call := &CallExpression{Token: p.curToken, Function: fn}
	args, ok := p.parseExpressionList(TokenRParen)
	if !ok {
		return nil
	}
	call.Arguments = args
	return call
}

func (p *Parser) parseArray() Expr {
	arr := &ArrayLiteral{Token: p.curToken}
	elems, ok := p.parseExpressionList(TokenRBracket)
	if !ok {
		return nil
	}
	arr.Elements = elems
	return arr
}

// parseExpressionList parses comma-separated expressions up to end. The
// opening delimiter is the current token.
func (p *Parser) parseExpressionList(end TokenType) ([]Expr, bool) {
	var list []Expr

	if p.peekTokenIs(end) {
		p.nextToken()
		return list, true
	}

	p.nextToken()
	e := p.parseExpression(precLowest)
	if e == nil {
		return nil, false
	}
	list = append(list, e)

	for p.peekTokenIs(TokenComma) {
		p.nextToken()
		p.nextToken()
		e := p.parseExpression(precLowest)
		if e == nil {
			return nil, false
		}
		list = append(list, e)
	}

	if !p.expectPeek(end) {
		return nil, false
	}
	return list, true
}

func (p *Parser) parseHash() Expr {
	hash := &HashLiteral{Token: p.curToken}

	for !p.peekTokenIs(TokenRBrace) {
		p.nextToken()
		key := p.parseExpression(precLowest)
		if key == nil {
			return nil
		}
		if !p.expectPeek(TokenColon) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(precLowest)
		if value == nil {
			return nil
		}
		hash.Pairs = append(hash.Pairs, HashPair{Key: key, Value: value})

		if !p.peekTokenIs(TokenRBrace) && !p.expectPeek(TokenComma) {
			return nil
		}
	}

	if !p.expectPeek(TokenRBrace) {
		return nil
	}
	return hash
}

func (p *Parser) parseIndex(left Expr) Expr {
	expr := &IndexExpression{Token: p.curToken, Left: left}
	p.nextToken()
	expr.Index = p.parseExpression(precLowest)
	if expr.Index == nil {
		return nil
	}
	if !p.expectPeek(TokenRBracket) {
		return nil
	}
	return expr
}
