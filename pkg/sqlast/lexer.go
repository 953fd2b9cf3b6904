package sqlast

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokenWord tokenKind = iota // bare identifier or keyword
	tokenQuotedIdent
	tokenString
	tokenNumber
	tokenOperator
	tokenComma
	tokenLParen
	tokenRParen
	tokenSemicolon
)

type token struct {
	kind tokenKind
	// text is the unquoted payload for quoted identifiers and strings,
	// the raw text otherwise.
	text string
	pos  int
}

// upper returns the uppercased text of word tokens, used for keyword checks.
func (t token) upper() string {
	if t.kind != tokenWord {
		return ""
	}
	return strings.ToUpper(t.text)
}

// lex tokenizes sql under a dialect's quoting rules. Comments are dropped.
func lex(sql string, d Dialect) ([]token, error) {
	var tokens []token
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated block comment at offset %d", i)
			}
			i += end + 4

		case c == '\'':
			text, next, err := readQuoted(sql, i, '\'', '\'', true)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, text: text, pos: i})
			i = next

		case c == '"':
			text, next, err := readQuoted(sql, i, '"', '"', true)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: text, pos: i})
			i = next

		case c == '`':
			text, next, err := readQuoted(sql, i, '`', '`', true)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: text, pos: i})
			i = next

		case c == '[' && d == DialectTSQL:
			text, next, err := readQuoted(sql, i, '[', ']', false)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: text, pos: i})
			i = next

		case c == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ",", pos: i})
			i++

		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++

		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++

		case c == ';':
			tokens = append(tokens, token{kind: tokenSemicolon, text: ";", pos: i})
			i++

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(sql[i+1])):
			start := i
			for i < n && (isDigit(sql[i]) || sql[i] == '.' || sql[i] == 'e' || sql[i] == 'E' ||
				((sql[i] == '+' || sql[i] == '-') && i > start && (sql[i-1] == 'e' || sql[i-1] == 'E'))) {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: sql[start:i], pos: start})

		case isWordStart(c):
			start := i
			for i < n && isWordPart(sql[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, text: sql[start:i], pos: start})

		default:
			start := i
			for i < n && isOperatorChar(sql[i]) {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
			}
			tokens = append(tokens, token{kind: tokenOperator, text: sql[start:i], pos: start})
		}
	}
	return tokens, nil
}

// readQuoted consumes a quoted region starting at open. When doubling is set
// a doubled close character escapes itself.
func readQuoted(sql string, start int, open, close byte, doubling bool) (string, int, error) {
	var b strings.Builder
	i := start + 1
	n := len(sql)
	for i < n {
		if sql[i] == close {
			if doubling && i+1 < n && sql[i+1] == close {
				b.WriteByte(close)
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(sql[i])
		i++
	}
	return "", 0, fmt.Errorf("unterminated %q at offset %d", string(open), start)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(c byte) bool {
	return c == '_' || c == '@' || c == '#' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || isDigit(c)
}

func isOperatorChar(c byte) bool {
	switch c {
	case '=', '<', '>', '!', '+', '-', '*', '/', '%', '|', '&', '^', '~', ':', '.', '?', '[', ']':
		return true
	}
	return false
}
