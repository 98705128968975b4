package unit

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// TokenType is the kind of a body token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	TokenInteger // 42, -7
	TokenFloat   // 3.14
	TokenString  // "hello"
	TokenSymbol  // :foo, :+, :empty?
	TokenIdent   // foo, @x, $stdout, Foo::Bar, +

	TokenLParen // (
	TokenRParen // )
)

var tokenNames = map[TokenType]string{
	TokenEOF:     "EOF",
	TokenError:   "ERROR",
	TokenInteger: "INTEGER",
	TokenFloat:   "FLOAT",
	TokenString:  "STRING",
	TokenSymbol:  "SYMBOL",
	TokenIdent:   "IDENT",
	TokenLParen:  "(",
	TokenRParen:  ")",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// Position is a location in a body, 1-based.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is one lexeme.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes method bodies. Comments run from ';' to end of line.
type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      rune
	line    int
	col     int
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Line: l.line, Column: l.col}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()
	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Pos: pos}
	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}
	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}
	case l.ch == '"':
		return l.readString(pos)
	case l.ch == ':' && l.peekChar() != 0 && l.peekChar() != ':' && !isDelimiter(l.peekChar()):
		l.readChar()
		return Token{Type: TokenSymbol, Literal: l.readAtom(), Pos: pos}
	case unicode.IsDigit(l.ch), l.ch == '-' && unicode.IsDigit(l.peekChar()):
		return l.readNumber(pos)
	}
	return Token{Type: TokenIdent, Literal: l.readAtom(), Pos: pos}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ';':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case unicode.IsSpace(l.ch):
			l.readChar()
		default:
			return
		}
	}
}

func isDelimiter(r rune) bool {
	return r == '(' || r == ')' || r == '"' || r == ';' || unicode.IsSpace(r)
}

func (l *Lexer) readAtom() string {
	start := l.pos
	for l.ch != 0 && !isDelimiter(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	typ := TokenInteger
	for unicode.IsDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	if l.ch == '.' && unicode.IsDigit(l.peekChar()) {
		typ = TokenFloat
		l.readChar()
		for unicode.IsDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		typ = TokenFloat
		l.readChar()
		if l.ch == '-' || l.ch == '+' {
			l.readChar()
		}
		for unicode.IsDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch != 0 && !isDelimiter(l.ch) {
		l.readAtom()
		return Token{Type: TokenError, Literal: "malformed number " + l.input[start:l.pos], Pos: pos}
	}
	return Token{Type: typ, Literal: strings.ReplaceAll(l.input[start:l.pos], "_", ""), Pos: pos}
}

func (l *Lexer) readString(pos Position) Token {
	l.readChar()
	var sb strings.Builder
	for l.ch != '"' {
		switch l.ch {
		case 0:
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 0:
				return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
			default:
				sb.WriteRune(l.ch)
			}
		default:
			sb.WriteRune(l.ch)
		}
		l.readChar()
	}
	l.readChar()
	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}
