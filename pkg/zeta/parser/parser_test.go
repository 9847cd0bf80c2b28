package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexerTokens(t *testing.T) {
	input := `a.b[0] += "x\"y" !== 'z' && n++ >= 1.5 ? this : null`
	expected := []struct {
		typ     TokenType
		literal string
	}{
		{IDENT, "a"},
		{DOT, "."},
		{IDENT, "b"},
		{LBRACKET, "["},
		{INT, "0"},
		{RBRACKET, "]"},
		{PLUS_ASSIGN, "+="},
		{STRING, `x"y`},
		{STRICT_NOT_EQ, "!=="},
		{STRING, "z"},
		{AND, "&&"},
		{IDENT, "n"},
		{INCR, "++"},
		{GTE, ">="},
		{FLOAT, "1.5"},
		{QUESTION, "?"},
		{THIS, "this"},
		{COLON, ":"},
		{NULL, "null"},
		{EOF, ""},
	}

	l := NewLexer(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want.typ {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%s, got=%s (%q)", i, want.typ, tok.Type, tok.Literal)
		}
		if tok.Literal != want.literal {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, want.literal, tok.Literal)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	tok := NewLexer(`"abc`).NextToken()
	assert.Equal(t, ILLEGAL, tok.Type)
}

func TestParseExpressionPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a + b * c", "(a + (b * c))"},
		{"(a + b) * c", "((a + b) * c)"},
		{"-a.b", "(-a.b)"},
		{"!a && b || c", "(((!a) && b) || c)"},
		{"a == b === c", "((a == b) === c)"},
		{"a < b != c >= d", "((a < b) != (c >= d))"},
		{"a ? b : c ? d : e", "(a ? b : (c ? d : e))"},
		{"f(a, b + 1)[0]", "(f(a, (b + 1))[0])"},
		{"items.length % 2", "(items.length % 2)"},
		{"x++ + ++y", "((x++) + (++y))"},
		{"[1, 'two', [3]]", `[1, "two", [3]]`},
		{"obj.null", "obj.null"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := ParseExpression(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, expr.String())
		})
	}
}

func TestParseExpressionErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"a +",
		"a b",
		"(a",
		"f(a,",
		"a ? b",
		"a.",
		"x = 1",
		`"open`,
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseExpression(input)
			assert.Error(t, err)
		})
	}
}

func TestParseStatements(t *testing.T) {
	program, err := ParseStatements("a = 1; b += a * 2\nc++; d")
	require.NoError(t, err)
	require.Len(t, program.Statements, 4)

	assign, ok := program.Statements[0].(*AssignStatement)
	require.True(t, ok, "statement 0 is %T", program.Statements[0])
	assert.Equal(t, "a", assign.Name.Value)
	assert.Equal(t, "=", assign.Operator)

	compound, ok := program.Statements[1].(*AssignStatement)
	require.True(t, ok, "statement 1 is %T", program.Statements[1])
	assert.Equal(t, "+=", compound.Operator)
	assert.Equal(t, "(a * 2)", compound.Value.String())

	_, ok = program.Statements[2].(*ExpressionStatement)
	assert.True(t, ok)
	assert.Equal(t, "a = 1; b += (a * 2); (c++); d", program.String())
}

func TestParseStatementsError(t *testing.T) {
	_, err := ParseStatements("a = ; b = 2")
	assert.Error(t, err)
}

func TestCountNodes(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"a", 1},
		{"a + b", 3},
		{"a.b", 3},
		{"f(1, 2)", 4},
		{"c ? [1, 2] : -x", 7},
	}
	for _, tt := range tests {
		expr, err := ParseExpression(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, CountNodes(expr), tt.input)
	}

	program, err := ParseStatements("a = b + 1")
	require.NoError(t, err)
	// program + assign(name) + infix(b, 1)
	assert.Equal(t, 6, program.CountNodes())
}

func TestScanIdentifiers(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, ScanIdentifiers("a + b.c + a"))
	assert.Equal(t, []string{"upper", "name", "hello"}, ScanIdentifiers(`upper(name) + "hello" + 1e5`))
	assert.Equal(t, []string{"$el", "_x1"}, ScanIdentifiers("$el[_x1] * 2"))
	assert.Empty(t, ScanIdentifiers("1 + 2"))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("count"))
	assert.True(t, IsIdentifier("$x_1"))
	assert.False(t, IsIdentifier("1x"))
	assert.False(t, IsIdentifier("a.b"))
	assert.False(t, IsIdentifier(""))
}
