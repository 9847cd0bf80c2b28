package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	_ int = iota
	LOWEST
	TERNARY     // c ? a : b
	LOGICAL_OR  // ||
	LOGICAL_AND // &&
	EQUALS      // == !=
	LESSGREATER // > or <
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -X or !X
	POSTFIX     // X++
	CALL        // myFunction(X)
	MEMBER      // obj.property, obj[index]
)

var precedences = map[TokenType]int{
	QUESTION:      TERNARY,
	OR:            LOGICAL_OR,
	AND:           LOGICAL_AND,
	EQ:            EQUALS,
	NOT_EQ:        EQUALS,
	STRICT_EQ:     EQUALS,
	STRICT_NOT_EQ: EQUALS,
	LT:            LESSGREATER,
	GT:            LESSGREATER,
	LTE:           LESSGREATER,
	GTE:           LESSGREATER,
	PLUS:          SUM,
	MINUS:         SUM,
	ASTERISK:      PRODUCT,
	SLASH:         PRODUCT,
	PERCENT:       PRODUCT,
	INCR:          POSTFIX,
	DECR:          POSTFIX,
	LPAREN:        CALL,
	DOT:           MEMBER,
	LBRACKET:      MEMBER,
}

var assignOperators = map[TokenType]bool{
	ASSIGN:       true,
	PLUS_ASSIGN:  true,
	MINUS_ASSIGN: true,
	STAR_ASSIGN:  true,
	SLASH_ASSIGN: true,
}

type (
	prefixParseFn func() Expression
	infixParseFn  func(Expression) Expression
)

type Parser struct {
	l *Lexer

	curToken  Token
	peekToken Token

	errors []string

	prefixParseFns map[TokenType]prefixParseFn
	infixParseFns  map[TokenType]infixParseFn
}

func New(l *Lexer) *Parser {
	p := &Parser{
		l:      l,
		errors: []string{},
	}

	p.prefixParseFns = make(map[TokenType]prefixParseFn)
	p.registerPrefix(IDENT, p.parseIdentifier)
	p.registerPrefix(INT, p.parseIntegerLiteral)
	p.registerPrefix(FLOAT, p.parseFloatLiteral)
	p.registerPrefix(STRING, p.parseStringLiteral)
	p.registerPrefix(TRUE, p.parseBoolean)
	p.registerPrefix(FALSE, p.parseBoolean)
	p.registerPrefix(NULL, p.parseNull)
	p.registerPrefix(UNDEFINED, p.parseNull)
	p.registerPrefix(THIS, p.parseThis)
	p.registerPrefix(NOT, p.parsePrefixExpression)
	p.registerPrefix(MINUS, p.parsePrefixExpression)
	p.registerPrefix(PLUS, p.parsePrefixExpression)
	p.registerPrefix(INCR, p.parsePrefixUpdate)
	p.registerPrefix(DECR, p.parsePrefixUpdate)
	p.registerPrefix(LPAREN, p.parseGroupedExpression)
	p.registerPrefix(LBRACKET, p.parseArrayLiteral)

	p.infixParseFns = make(map[TokenType]infixParseFn)
	for _, t := range []TokenType{
		PLUS, MINUS, ASTERISK, SLASH, PERCENT,
		EQ, NOT_EQ, STRICT_EQ, STRICT_NOT_EQ,
		LT, GT, LTE, GTE, AND, OR,
	} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	p.registerInfix(QUESTION, p.parseConditionalExpression)
	p.registerInfix(INCR, p.parsePostfixUpdate)
	p.registerInfix(DECR, p.parsePostfixUpdate)
	p.registerInfix(LPAREN, p.parseCallExpression)
	p.registerInfix(DOT, p.parseDotExpression)
	p.registerInfix(LBRACKET, p.parseIndexExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// ParseExpression parses src as exactly one expression.
func ParseExpression(src string) (Expression, error) {
	p := New(NewLexer(src))
	if p.curTokenIs(EOF) {
		return nil, errors.New("empty expression")
	}
	exp := p.parseExpression(LOWEST)
	if len(p.errors) == 0 && !p.peekTokenIs(EOF) {
		p.errors = append(p.errors, fmt.Sprintf("unexpected %s after expression", p.peekToken.Type))
	}
	if len(p.errors) > 0 {
		return nil, errors.New(strings.Join(p.errors, "; "))
	}
	return exp, nil
}

// ParseStatements parses src as a statement sequence.
func ParseStatements(src string) (*Program, error) {
	p := New(NewLexer(src))
	program := p.ParseProgram()
	if len(p.errors) > 0 {
		return nil, errors.New(strings.Join(p.errors, "; "))
	}
	return program, nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) ParseProgram() *Program {
	program := &Program{}
	program.Statements = []Statement{}

	for !p.curTokenIs(EOF) {
		if p.curTokenIs(SEMICOLON) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		if len(p.errors) > 0 {
			break
		}
		p.nextToken()
	}

	return program
}

func (p *Parser) parseStatement() Statement {
	if p.curTokenIs(IDENT) && assignOperators[p.peekToken.Type] {
		return p.parseAssignStatement()
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseAssignStatement() *AssignStatement {
	name := &Identifier{Token: p.curToken, Value: p.curToken.Literal}
	p.nextToken()

	stmt := &AssignStatement{Token: p.curToken, Name: name, Operator: p.curToken.Literal}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)

	if p.peekTokenIs(SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseExpressionStatement() *ExpressionStatement {
	stmt := &ExpressionStatement{Token: p.curToken}
	stmt.Expression = p.parseExpression(LOWEST)

	if p.peekTokenIs(SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseExpression(precedence int) Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()

	for !p.peekTokenIs(SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken()

		leftExp = infix(leftExp)
	}

	return leftExp
}

func (p *Parser) parseIdentifier() Expression {
	return &Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseThis() Expression {
	return &ThisExpression{Token: p.curToken}
}

func (p *Parser) parseIntegerLiteral() Expression {
	lit := &IntegerLiteral{Token: p.curToken}

	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		msg := fmt.Sprintf("could not parse %q as integer", p.curToken.Literal)
		p.errors = append(p.errors, msg)
		return nil
	}

	lit.Value = value
	return lit
}

func (p *Parser) parseFloatLiteral() Expression {
	lit := &FloatLiteral{Token: p.curToken}

	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		msg := fmt.Sprintf("could not parse %q as float", p.curToken.Literal)
		p.errors = append(p.errors, msg)
		return nil
	}

	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() Expression {
	return &StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() Expression {
	return &BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(TRUE)}
}

func (p *Parser) parseNull() Expression {
	return &NullLiteral{Token: p.curToken}
}

func (p *Parser) parsePrefixExpression() Expression {
	expression := &PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
	}

	p.nextToken()

	expression.Right = p.parseExpression(PREFIX)

	return expression
}

func (p *Parser) parsePrefixUpdate() Expression {
	expression := &UpdateExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Prefix:   true,
	}

	p.nextToken()

	expression.Target = p.parseExpression(PREFIX)
	return expression
}

func (p *Parser) parsePostfixUpdate(left Expression) Expression {
	return &UpdateExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Target:   left,
	}
}

func (p *Parser) parseInfixExpression(left Expression) Expression {
	expression := &InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Literal,
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)

	return expression
}

func (p *Parser) parseConditionalExpression(condition Expression) Expression {
	expression := &ConditionalExpression{Token: p.curToken, Condition: condition}

	p.nextToken()
	expression.Consequence = p.parseExpression(LOWEST)

	if !p.expectPeek(COLON) {
		return nil
	}

	p.nextToken()
	// right associative: a ? b : c ? d : e
	expression.Alternative = p.parseExpression(TERNARY - 1)

	return expression
}

func (p *Parser) parseGroupedExpression() Expression {
	p.nextToken()

	exp := p.parseExpression(LOWEST)

	if !p.expectPeek(RPAREN) {
		return nil
	}

	return exp
}

func (p *Parser) parseArrayLiteral() Expression {
	array := &ArrayLiteral{Token: p.curToken}
	array.Elements = p.parseExpressionList(RBRACKET)
	return array
}

func (p *Parser) parseCallExpression(fn Expression) Expression {
	exp := &CallExpression{Token: p.curToken, Function: fn}
	exp.Arguments = p.parseExpressionList(RPAREN)
	return exp
}

func (p *Parser) parseDotExpression(left Expression) Expression {
	expression := &DotExpression{
		Token: p.curToken,
		Left:  left,
	}

	// keywords are valid property names: obj.null, obj.this
	if !p.peekTokenIs(IDENT) && !isKeyword(p.peekToken.Type) {
		p.peekError(IDENT)
		return nil
	}
	p.nextToken()
	expression.Property = &Identifier{Token: p.curToken, Value: p.curToken.Literal}

	return expression
}

func (p *Parser) parseIndexExpression(left Expression) Expression {
	exp := &IndexExpression{Token: p.curToken, Left: left}

	p.nextToken()
	exp.Index = p.parseExpression(LOWEST)

	if !p.expectPeek(RBRACKET) {
		return nil
	}

	return exp
}

func (p *Parser) parseExpressionList(end TokenType) []Expression {
	args := []Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return args
	}

	p.nextToken()
	args = append(args, p.parseExpression(LOWEST))

	for p.peekTokenIs(COMMA) {
		p.nextToken()
		p.nextToken()
		args = append(args, p.parseExpression(LOWEST))
	}

	if !p.expectPeek(end) {
		return nil
	}

	return args
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	} else {
		p.peekError(t)
		return false
	}
}

func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) peekError(t TokenType) {
	msg := fmt.Sprintf("expected next token to be %s, got %s instead",
		t, p.peekToken.Type)
	p.errors = append(p.errors, msg)
}

func (p *Parser) noPrefixParseFnError(tok Token) {
	msg := fmt.Sprintf("unexpected %s %q at line %d, column %d", tok.Type, tok.Literal, tok.Line, tok.Column)
	p.errors = append(p.errors, msg)
}

func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}

	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}

	return LOWEST
}

func (p *Parser) registerPrefix(tokenType TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func isKeyword(t TokenType) bool {
	return t == TRUE || t == FALSE || t == NULL || t == UNDEFINED || t == THIS
}
