// lexer creates tokens from a sql string. The tokens are fed into the parser.
package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type TokenType int

// Token is a lexical unit of a SQL string. Offset is the byte offset of the
// token in the source and is used for error reporting.
type Token struct {
	Type   TokenType
	Value  string
	Offset int
}

const (
	// TokenKeyword is a reserved word. For example SELECT, FROM, or WHERE.
	// The value is always upper case.
	TokenKeyword TokenType = iota + 1
	// TokenIdentifier is a word that is not a keyword like a table or column
	// name.
	TokenIdentifier
	// TokenNumeric is a numeric value like 1 or 1.2.
	TokenNumeric
	// TokenLiteral is a quoted text value like 'foo'. The value holds the text
	// without quotes and with escaped quotes resolved.
	TokenLiteral
	// TokenOperator is a symbol that operates on arguments.
	TokenOperator
	// TokenSeparator is punctuation such as "(", ",", ";" or ".".
	TokenSeparator
	// TokenVariable is a "?" placeholder bound at execution.
	TokenVariable
	// TokenUnknown is a character the lexer does not recognize or an
	// unterminated string. It is rejected by the parser.
	TokenUnknown
	// TokenEOF (End of file) is the end of input.
	TokenEOF
)

var tokenTypeNames = map[TokenType]string{
	TokenKeyword:    "keyword",
	TokenIdentifier: "identifier",
	TokenNumeric:    "numeric",
	TokenLiteral:    "literal",
	TokenOperator:   "operator",
	TokenSeparator:  "separator",
	TokenVariable:   "variable",
	TokenUnknown:    "unknown",
	TokenEOF:        "eof",
}

func (t TokenType) String() string {
	if n, ok := tokenTypeNames[t]; ok {
		return n
	}
	return "invalid"
}

const (
	kwSelect  = "SELECT"
	kwFrom    = "FROM"
	kwWhere   = "WHERE"
	kwInsert  = "INSERT"
	kwInto    = "INTO"
	kwValues  = "VALUES"
	kwCreate  = "CREATE"
	kwTable   = "TABLE"
	kwAnd     = "AND"
	kwOr      = "OR"
	kwNot     = "NOT"
	kwNull    = "NULL"
	kwOrder   = "ORDER"
	kwBy      = "BY"
	kwAsc     = "ASC"
	kwDesc    = "DESC"
	kwTrue    = "TRUE"
	kwFalse   = "FALSE"
	kwIs      = "IS"
	kwLimit   = "LIMIT"
	kwAs      = "AS"
	kwDrop    = "DROP"
	kwIf      = "IF"
	kwExists  = "EXISTS"
	kwPrimary = "PRIMARY"
	// kwKey only has meaning after PRIMARY, so it lexes as an identifier.
	kwKey = "KEY"
)

var keywords = map[string]bool{
	kwSelect:  true,
	kwFrom:    true,
	kwWhere:   true,
	kwInsert:  true,
	kwInto:    true,
	kwValues:  true,
	kwCreate:  true,
	kwTable:   true,
	kwAnd:     true,
	kwOr:      true,
	kwNot:     true,
	kwNull:    true,
	kwOrder:   true,
	kwBy:      true,
	kwAsc:     true,
	kwDesc:    true,
	kwTrue:    true,
	kwFalse:   true,
	kwIs:      true,
	kwLimit:   true,
	kwAs:      true,
	kwDrop:    true,
	kwIf:      true,
	kwExists:  true,
	kwPrimary: true,
}

func (*lexer) isKeyword(w string) bool {
	return keywords[strings.ToUpper(w)]
}

type lexer struct {
	src   string
	start int
	end   int
}

// Tokenize lexes the entire src. It never fails. The returned tokens always
// end with exactly one TokenEOF.
func Tokenize(src string) []Token {
	return NewLexer(src).Lex()
}

func NewLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) Lex() []Token {
	ret := []Token{}
	for {
		t := l.getToken()
		ret = append(ret, t)
		if t.Type == TokenEOF {
			return ret
		}
	}
}

func (l *lexer) getToken() Token {
	l.skipWhiteSpaceAndComments()
	l.start = l.end
	if l.start >= len(l.src) {
		return Token{Type: TokenEOF, Offset: len(l.src)}
	}
	r := l.peek(l.start)
	switch {
	case l.isLetter(r) || l.isUnderscore(r):
		return l.scanWord()
	case l.isDigit(r):
		return l.scanDigit()
	case l.isSingleQuote(r):
		return l.scanLiteral()
	case l.isSeparator(r):
		return l.scanSeparator()
	case r == '?':
		l.next()
		return l.token(TokenVariable, "?")
	}
	if t, ok := l.scanOperator(); ok {
		return t
	}
	l.next()
	return l.token(TokenUnknown, l.src[l.start:l.end])
}

func (l *lexer) token(tt TokenType, value string) Token {
	return Token{Type: tt, Value: value, Offset: l.start}
}

func (l *lexer) peek(pos int) rune {
	if len(l.src) <= pos {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[pos:])
	return r
}

func (l *lexer) next() rune {
	if l.end >= len(l.src) {
		return 0
	}
	_, w := utf8.DecodeRuneInString(l.src[l.end:])
	l.end += w
	return l.peek(l.end)
}

func (l *lexer) skipWhiteSpaceAndComments() {
	for l.end < len(l.src) {
		r := l.peek(l.end)
		if l.isWhiteSpace(r) {
			l.next()
			continue
		}
		if r == '-' && l.peek(l.end+1) == '-' {
			for l.end < len(l.src) && l.peek(l.end) != '\n' {
				l.next()
			}
			continue
		}
		return
	}
}

func (l *lexer) scanWord() Token {
	l.next()
	for r := l.peek(l.end); l.isLetter(r) || l.isDigit(r) || l.isUnderscore(r); r = l.peek(l.end) {
		l.next()
	}
	value := l.src[l.start:l.end]
	if l.isKeyword(value) {
		return l.token(TokenKeyword, strings.ToUpper(value))
	}
	return l.token(TokenIdentifier, value)
}

// scanDigit scans an integer or a decimal. A decimal point must be followed
// by a digit to be part of the number.
func (l *lexer) scanDigit() Token {
	l.next()
	for l.isDigit(l.peek(l.end)) {
		l.next()
	}
	if l.peek(l.end) == '.' && l.isDigit(l.peek(l.end+1)) {
		l.next()
		for l.isDigit(l.peek(l.end)) {
			l.next()
		}
	}
	return l.token(TokenNumeric, l.src[l.start:l.end])
}

func (l *lexer) scanSeparator() Token {
	l.next()
	return l.token(TokenSeparator, l.src[l.start:l.end])
}

// scanLiteral scans a single quoted string where two consecutive quotes are an
// escaped quote. An unterminated string becomes a TokenUnknown holding the rest
// of the input.
func (l *lexer) scanLiteral() Token {
	var sb strings.Builder
	l.next()
	for {
		if l.end >= len(l.src) {
			return l.token(TokenUnknown, l.src[l.start:l.end])
		}
		r := l.peek(l.end)
		if l.isSingleQuote(r) {
			if l.isSingleQuote(l.peek(l.end + 1)) {
				sb.WriteRune('\'')
				l.next()
				l.next()
				continue
			}
			l.next()
			return l.token(TokenLiteral, sb.String())
		}
		sb.WriteRune(r)
		l.next()
	}
}

func (l *lexer) scanOperator() (Token, bool) {
	r := l.peek(l.start)
	n := l.peek(l.start + 1)
	switch r {
	case '=', '+', '-', '*', '/':
		l.next()
		return l.token(TokenOperator, string(r)), true
	case '<':
		l.next()
		if n == '=' || n == '>' {
			l.next()
		}
		return l.token(TokenOperator, l.src[l.start:l.end]), true
	case '>':
		l.next()
		if n == '=' {
			l.next()
		}
		return l.token(TokenOperator, l.src[l.start:l.end]), true
	case '!':
		if n == '=' {
			l.next()
			l.next()
			return l.token(TokenOperator, OpNe), true
		}
	}
	return Token{}, false
}

func (*lexer) isWhiteSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func (*lexer) isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func (*lexer) isUnderscore(r rune) bool {
	return r == '_'
}

func (*lexer) isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func (*lexer) isSeparator(r rune) bool {
	return r == ',' || r == '(' || r == ')' || r == ';' || r == '.'
}

func (*lexer) isSingleQuote(r rune) bool {
	return r == '\''
}

// Render converts tokens back to SQL text. Tokens are joined by a single space
// and literals are quoted again, so lexing the output yields tokens with the
// same types and values.
func Render(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		switch t.Type {
		case TokenEOF:
			continue
		case TokenLiteral:
			parts = append(parts, "'"+strings.ReplaceAll(t.Value, "'", "''")+"'")
		default:
			parts = append(parts, t.Value)
		}
	}
	return strings.Join(parts, " ")
}
