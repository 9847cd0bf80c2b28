package parser

import (
	"bytes"
	"strings"
)

type Node interface {
	TokenLiteral() string
	String() string
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
}

type Program struct {
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer
	for i, s := range p.Statements {
		if i > 0 {
			out.WriteString("; ")
		}
		out.WriteString(s.String())
	}
	return out.String()
}

// CountNodes returns the number of AST nodes in the program.
func (p *Program) CountNodes() int {
	return CountNodes(p)
}

type ExpressionStatement struct {
	Token      Token // the first token of the expression
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) String() string {
	if es.Expression != nil {
		return es.Expression.String()
	}
	return ""
}

// AssignStatement is `name = value` or a compound form such as `name += value`.
type AssignStatement struct {
	Token    Token // the assignment operator token
	Name     *Identifier
	Operator string
	Value    Expression
}

func (as *AssignStatement) statementNode()       {}
func (as *AssignStatement) TokenLiteral() string { return as.Token.Literal }
func (as *AssignStatement) String() string {
	var out bytes.Buffer
	out.WriteString(as.Name.String())
	out.WriteString(" " + as.Operator + " ")
	if as.Value != nil {
		out.WriteString(as.Value.String())
	}
	return out.String()
}

type Identifier struct {
	Token Token // the token.IDENT token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

// ThisExpression refers to the evaluation namespace as a whole.
type ThisExpression struct {
	Token Token
}

func (te *ThisExpression) expressionNode()      {}
func (te *ThisExpression) TokenLiteral() string { return te.Token.Literal }
func (te *ThisExpression) String() string       { return "this" }

type IntegerLiteral struct {
	Token Token // the token.INT token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }

type FloatLiteral struct {
	Token Token // the token.FLOAT token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }

type StringLiteral struct {
	Token Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) String() string       { return `"` + sl.Value + `"` }

type BooleanLiteral struct {
	Token Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()      {}
func (bl *BooleanLiteral) TokenLiteral() string { return bl.Token.Literal }
func (bl *BooleanLiteral) String() string       { return bl.Token.Literal }

// NullLiteral covers both null and undefined.
type NullLiteral struct {
	Token Token
}

func (nl *NullLiteral) expressionNode()      {}
func (nl *NullLiteral) TokenLiteral() string { return nl.Token.Literal }
func (nl *NullLiteral) String() string       { return nl.Token.Literal }

type ArrayLiteral struct {
	Token    Token // the '[' token
	Elements []Expression
}

func (al *ArrayLiteral) expressionNode()      {}
func (al *ArrayLiteral) TokenLiteral() string { return al.Token.Literal }
func (al *ArrayLiteral) String() string {
	elems := make([]string, 0, len(al.Elements))
	for _, el := range al.Elements {
		elems = append(elems, el.String())
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

type InfixExpression struct {
	Token    Token // the operator token, e.g. +, -, *, /, ==, !=, <, >, <=, >=
	Left     Expression
	Operator string
	Right    Expression
}

func (oe *InfixExpression) expressionNode()      {}
func (oe *InfixExpression) TokenLiteral() string { return oe.Token.Literal }
func (oe *InfixExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	if oe.Left != nil {
		out.WriteString(oe.Left.String())
	}
	out.WriteString(" " + oe.Operator + " ")
	if oe.Right != nil {
		out.WriteString(oe.Right.String())
	}
	out.WriteString(")")
	return out.String()
}

type PrefixExpression struct {
	Token    Token // the prefix token, e.g. !, -
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(pe.Operator)
	if pe.Right != nil {
		out.WriteString(pe.Right.String())
	}
	out.WriteString(")")
	return out.String()
}

// UpdateExpression is ++x, --x, x++ or x--.
type UpdateExpression struct {
	Token    Token
	Operator string
	Prefix   bool
	Target   Expression
}

func (ue *UpdateExpression) expressionNode()      {}
func (ue *UpdateExpression) TokenLiteral() string { return ue.Token.Literal }
func (ue *UpdateExpression) String() string {
	if ue.Prefix {
		return "(" + ue.Operator + ue.Target.String() + ")"
	}
	return "(" + ue.Target.String() + ue.Operator + ")"
}

type ConditionalExpression struct {
	Token       Token // the '?' token
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (ce *ConditionalExpression) expressionNode()      {}
func (ce *ConditionalExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *ConditionalExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	if ce.Condition != nil {
		out.WriteString(ce.Condition.String())
	}
	out.WriteString(" ? ")
	if ce.Consequence != nil {
		out.WriteString(ce.Consequence.String())
	}
	out.WriteString(" : ")
	if ce.Alternative != nil {
		out.WriteString(ce.Alternative.String())
	}
	out.WriteString(")")
	return out.String()
}

type CallExpression struct {
	Token     Token      // the '(' token
	Function  Expression // Identifier or member expression
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) String() string {
	var out bytes.Buffer
	var args []string
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}
	if ce.Function != nil {
		out.WriteString(ce.Function.String())
	}
	out.WriteString("(")
	out.WriteString(strings.Join(args, ", "))
	out.WriteString(")")
	return out.String()
}

// DotExpression is property access, obj.property.
type DotExpression struct {
	Token    Token // the '.' token
	Left     Expression
	Property *Identifier
}

func (de *DotExpression) expressionNode()      {}
func (de *DotExpression) TokenLiteral() string { return de.Token.Literal }
func (de *DotExpression) String() string {
	var out bytes.Buffer
	if de.Left != nil {
		out.WriteString(de.Left.String())
	}
	out.WriteString(".")
	if de.Property != nil {
		out.WriteString(de.Property.String())
	}
	return out.String()
}

type IndexExpression struct {
	Token Token // the '[' token
	Left  Expression
	Index Expression
}

func (ie *IndexExpression) expressionNode()      {}
func (ie *IndexExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IndexExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	if ie.Left != nil {
		out.WriteString(ie.Left.String())
	}
	out.WriteString("[")
	if ie.Index != nil {
		out.WriteString(ie.Index.String())
	}
	out.WriteString("])")
	return out.String()
}

// CountNodes walks node and counts every AST node reachable from it.
func CountNodes(node Node) int {
	switch n := node.(type) {
	case nil:
		return 0
	case *Program:
		count := 1
		for _, s := range n.Statements {
			count += CountNodes(s)
		}
		return count
	case *ExpressionStatement:
		return 1 + countExpr(n.Expression)
	case *AssignStatement:
		return 2 + countExpr(n.Value)
	case *ArrayLiteral:
		count := 1
		for _, el := range n.Elements {
			count += countExpr(el)
		}
		return count
	case *InfixExpression:
		return 1 + countExpr(n.Left) + countExpr(n.Right)
	case *PrefixExpression:
		return 1 + countExpr(n.Right)
	case *UpdateExpression:
		return 1 + countExpr(n.Target)
	case *ConditionalExpression:
		return 1 + countExpr(n.Condition) + countExpr(n.Consequence) + countExpr(n.Alternative)
	case *CallExpression:
		count := 1 + countExpr(n.Function)
		for _, a := range n.Arguments {
			count += countExpr(a)
		}
		return count
	case *DotExpression:
		return 2 + countExpr(n.Left)
	case *IndexExpression:
		return 1 + countExpr(n.Left) + countExpr(n.Index)
	default:
		return 1
	}
}

// countExpr skips nil expressions left behind by parse errors.
func countExpr(e Expression) int {
	if e == nil {
		return 0
	}
	return CountNodes(e)
}
