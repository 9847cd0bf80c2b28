package parser

import "strings"

type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Literals
	IDENT  // variable names, helper names
	INT    // integers
	FLOAT  // floating point numbers
	STRING // string literals

	// Keywords
	TRUE
	FALSE
	NULL
	UNDEFINED
	THIS

	// Assignment
	ASSIGN       // =
	PLUS_ASSIGN  // +=
	MINUS_ASSIGN // -=
	STAR_ASSIGN  // *=
	SLASH_ASSIGN // /=

	// Operators
	PLUS          // +
	MINUS         // -
	ASTERISK      // *
	SLASH         // /
	PERCENT       // %
	INCR          // ++
	DECR          // --
	EQ            // ==
	NOT_EQ        // !=
	STRICT_EQ     // ===
	STRICT_NOT_EQ // !==
	LT            // <
	GT            // >
	LTE           // <=
	GTE           // >=
	AND           // &&
	OR            // ||
	NOT           // !
	QUESTION      // ?
	COLON         // :

	// Delimiters
	COMMA     // ,
	SEMICOLON // ;
	DOT       // .

	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
)

type Token struct {
	Type     TokenType
	Literal  string
	Position int
	Line     int
	Column   int
}

var keywords = map[string]TokenType{
	"true":      TRUE,
	"false":     FALSE,
	"null":      NULL,
	"undefined": UNDEFINED,
	"this":      THIS,
}

// ReservedWords are identifier-shaped tokens that never name a state key.
var ReservedWords = []string{"true", "false", "null", "undefined", "this"}

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) peekCharAt(offset int) byte {
	idx := l.readPosition + offset
	if idx >= len(l.input) {
		return 0
	}
	return l.input[idx]
}

// twoChar consumes the next char and builds a two-character token.
func (l *Lexer) twoChar(t TokenType, pos, line, col int) Token {
	ch := l.ch
	l.readChar()
	return Token{Type: t, Literal: string(ch) + string(l.ch), Position: pos, Line: line, Column: col}
}

// threeChar consumes the next two chars and builds a three-character token.
func (l *Lexer) threeChar(t TokenType, pos, line, col int) Token {
	start := l.position
	l.readChar()
	l.readChar()
	return Token{Type: t, Literal: l.input[start : l.position+1], Position: pos, Line: line, Column: col}
}

func (l *Lexer) NextToken() Token {
	var tok Token

	l.skipWhitespace()

	pos, line, col := l.position, l.line, l.column
	tok.Position = pos
	tok.Line = line
	tok.Column = col

	switch l.ch {
	case '=':
		switch {
		case l.peekChar() == '=' && l.peekCharAt(1) == '=':
			tok = l.threeChar(STRICT_EQ, pos, line, col)
		case l.peekChar() == '=':
			tok = l.twoChar(EQ, pos, line, col)
		default:
			tok = newToken(ASSIGN, l.ch, pos, line, col)
		}
	case '!':
		switch {
		case l.peekChar() == '=' && l.peekCharAt(1) == '=':
			tok = l.threeChar(STRICT_NOT_EQ, pos, line, col)
		case l.peekChar() == '=':
			tok = l.twoChar(NOT_EQ, pos, line, col)
		default:
			tok = newToken(NOT, l.ch, pos, line, col)
		}
	case '+':
		switch l.peekChar() {
		case '+':
			tok = l.twoChar(INCR, pos, line, col)
		case '=':
			tok = l.twoChar(PLUS_ASSIGN, pos, line, col)
		default:
			tok = newToken(PLUS, l.ch, pos, line, col)
		}
	case '-':
		switch l.peekChar() {
		case '-':
			tok = l.twoChar(DECR, pos, line, col)
		case '=':
			tok = l.twoChar(MINUS_ASSIGN, pos, line, col)
		default:
			tok = newToken(MINUS, l.ch, pos, line, col)
		}
	case '*':
		if l.peekChar() == '=' {
			tok = l.twoChar(STAR_ASSIGN, pos, line, col)
		} else {
			tok = newToken(ASTERISK, l.ch, pos, line, col)
		}
	case '/':
		if l.peekChar() == '=' {
			tok = l.twoChar(SLASH_ASSIGN, pos, line, col)
		} else {
			tok = newToken(SLASH, l.ch, pos, line, col)
		}
	case '%':
		tok = newToken(PERCENT, l.ch, pos, line, col)
	case '<':
		if l.peekChar() == '=' {
			tok = l.twoChar(LTE, pos, line, col)
		} else {
			tok = newToken(LT, l.ch, pos, line, col)
		}
	case '>':
		if l.peekChar() == '=' {
			tok = l.twoChar(GTE, pos, line, col)
		} else {
			tok = newToken(GT, l.ch, pos, line, col)
		}
	case '&':
		if l.peekChar() == '&' {
			tok = l.twoChar(AND, pos, line, col)
		} else {
			tok = newToken(ILLEGAL, l.ch, pos, line, col)
		}
	case '|':
		if l.peekChar() == '|' {
			tok = l.twoChar(OR, pos, line, col)
		} else {
			tok = newToken(ILLEGAL, l.ch, pos, line, col)
		}
	case '?':
		tok = newToken(QUESTION, l.ch, pos, line, col)
	case ':':
		tok = newToken(COLON, l.ch, pos, line, col)
	case ',':
		tok = newToken(COMMA, l.ch, pos, line, col)
	case ';':
		tok = newToken(SEMICOLON, l.ch, pos, line, col)
	case '.':
		if isDigit(l.peekChar()) {
			tok.Type, tok.Literal = l.readNumber()
			return tok
		}
		tok = newToken(DOT, l.ch, pos, line, col)
	case '(':
		tok = newToken(LPAREN, l.ch, pos, line, col)
	case ')':
		tok = newToken(RPAREN, l.ch, pos, line, col)
	case '[':
		tok = newToken(LBRACKET, l.ch, pos, line, col)
	case ']':
		tok = newToken(RBRACKET, l.ch, pos, line, col)
	case '"', '\'':
		lit, ok := l.readString(l.ch)
		tok.Literal = lit
		if ok {
			tok.Type = STRING
		} else {
			tok.Type = ILLEGAL
		}
	case 0:
		tok.Literal = ""
		tok.Type = EOF
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = lookupIdent(tok.Literal)
			return tok
		} else if isDigit(l.ch) {
			tok.Type, tok.Literal = l.readNumber()
			return tok
		} else {
			tok = newToken(ILLEGAL, l.ch, pos, line, col)
		}
	}

	l.readChar()
	return tok
}

func newToken(tokenType TokenType, ch byte, position, line, column int) Token {
	return Token{
		Type:     tokenType,
		Literal:  string(ch),
		Position: position,
		Line:     line,
		Column:   column,
	}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() (TokenType, string) {
	position := l.position
	tokenType := INT

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		tokenType = FLOAT
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return tokenType, l.input[position:l.position]
}

// readString reads a quoted literal starting at the opening quote and leaves
// l.ch on the closing quote. Escapes are decoded. ok is false when the input
// ends before the closing quote.
func (l *Lexer) readString(quote byte) (string, bool) {
	var out strings.Builder
	for {
		l.readChar()
		switch l.ch {
		case 0:
			return out.String(), false
		case quote:
			return out.String(), true
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case 'r':
				out.WriteByte('\r')
			case 0:
				return out.String(), false
			default:
				out.WriteByte(l.ch)
			}
		default:
			out.WriteByte(l.ch)
		}
	}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// IsIdentifier reports whether s is a single identifier-shaped token.
func IsIdentifier(s string) bool {
	if s == "" || !isLetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isLetter(s[i]) && !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// ScanIdentifiers returns every identifier-shaped word in src, deduplicated
// in first-seen order. It is a lexical scan over the raw text: words inside
// string literals are included and numeric runs such as 1e5 are skipped.
func ScanIdentifiers(src string) []string {
	var out []string
	seen := make(map[string]struct{})
	i := 0
	for i < len(src) {
		ch := src[i]
		switch {
		case isDigit(ch):
			for i < len(src) && (isLetter(src[i]) || isDigit(src[i])) {
				i++
			}
		case isLetter(ch):
			start := i
			for i < len(src) && (isLetter(src[i]) || isDigit(src[i])) {
				i++
			}
			word := src[start:i]
			if _, ok := seen[word]; !ok {
				seen[word] = struct{}{}
				out = append(out, word)
			}
		default:
			i++
		}
	}
	return out
}

func lookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

var tokenNames = map[TokenType]string{
	ILLEGAL:       "ILLEGAL",
	EOF:           "EOF",
	IDENT:         "IDENT",
	INT:           "INT",
	FLOAT:         "FLOAT",
	STRING:        "STRING",
	TRUE:          "true",
	FALSE:         "false",
	NULL:          "null",
	UNDEFINED:     "undefined",
	THIS:          "this",
	ASSIGN:        "=",
	PLUS_ASSIGN:   "+=",
	MINUS_ASSIGN:  "-=",
	STAR_ASSIGN:   "*=",
	SLASH_ASSIGN:  "/=",
	PLUS:          "+",
	MINUS:         "-",
	ASTERISK:      "*",
	SLASH:         "/",
	PERCENT:       "%",
	INCR:          "++",
	DECR:          "--",
	EQ:            "==",
	NOT_EQ:        "!=",
	STRICT_EQ:     "===",
	STRICT_NOT_EQ: "!==",
	LT:            "<",
	GT:            ">",
	LTE:           "<=",
	GTE:           ">=",
	AND:           "&&",
	OR:            "||",
	NOT:           "!",
	QUESTION:      "?",
	COLON:         ":",
	COMMA:         ",",
	SEMICOLON:     ";",
	DOT:           ".",
	LPAREN:        "(",
	RPAREN:        ")",
	LBRACKET:      "[",
	RBRACKET:      "]",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}
