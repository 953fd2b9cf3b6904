package sqlast

import (
	"fmt"
	"strings"
)

// StatementKind is the root statement type.
type StatementKind string

const (
	KindSelect  StatementKind = "select"
	KindInsert  StatementKind = "insert"
	KindUpdate  StatementKind = "update"
	KindDelete  StatementKind = "delete"
	KindDDL     StatementKind = "ddl"
	KindOther   StatementKind = "other"
	KindUnknown StatementKind = "unknown"
)

// statement is one lexed statement plus its derived shape.
type statement struct {
	tokens []token
	kind   StatementKind
}

// parse lexes sql and splits it into statements on top-level semicolons.
// Trailing semicolons produce no empty statement.
func parse(sql string, d Dialect) ([]*statement, error) {
	tokens, err := lex(sql, d)
	if err != nil {
		return nil, err
	}
	if err := checkBalance(tokens); err != nil {
		return nil, err
	}

	var stmts []*statement
	var cur []token
	flush := func() {
		if len(cur) > 0 {
			stmts = append(stmts, &statement{tokens: cur, kind: rootKind(cur)})
			cur = nil
		}
	}
	for _, t := range tokens {
		if t.kind == tokenSemicolon {
			flush()
			continue
		}
		cur = append(cur, t)
	}
	flush()
	return stmts, nil
}

func checkBalance(tokens []token) error {
	depth := 0
	for _, t := range tokens {
		switch t.kind {
		case tokenLParen:
			depth++
		case tokenRParen:
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced closing parenthesis at offset %d", t.pos)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%d unclosed parentheses", depth)
	}
	return nil
}

// rootKind classifies a statement by its leading keyword. WITH chains are
// resolved to the keyword that follows the final CTE body.
func rootKind(tokens []token) StatementKind {
	if len(tokens) == 0 {
		return KindUnknown
	}
	switch tokens[0].upper() {
	case "SELECT":
		return KindSelect
	case "WITH":
		return withRootKind(tokens)
	case "INSERT":
		return KindInsert
	case "UPDATE":
		return KindUpdate
	case "DELETE", "TRUNCATE":
		return KindDelete
	case "CREATE", "DROP", "ALTER", "RENAME":
		return KindDDL
	case "GRANT", "REVOKE", "EXEC", "EXECUTE", "CALL", "MERGE", "BEGIN", "SET", "USE", "VACUUM", "ANALYZE":
		return KindOther
	case "":
		return KindUnknown
	default:
		return KindUnknown
	}
}

// withRootKind walks past the CTE list: each CTE is name [(cols)] AS (body),
// separated by commas, then the root statement follows at depth zero.
func withRootKind(tokens []token) StatementKind {
	depth := 0
	for i := 1; i < len(tokens); i++ {
		t := tokens[i]
		switch t.kind {
		case tokenLParen:
			depth++
		case tokenRParen:
			depth--
		case tokenWord:
			if depth != 0 {
				continue
			}
			switch t.upper() {
			case "SELECT":
				return KindSelect
			case "INSERT":
				return KindInsert
			case "UPDATE":
				return KindUpdate
			case "DELETE":
				return KindDelete
			}
		}
	}
	return KindUnknown
}

// render reassembles tokens into SQL text with normalized spacing.
func render(tokens []token, d Dialect) string {
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 && needsSpace(tokens[i-1], t) {
			b.WriteByte(' ')
		}
		b.WriteString(renderToken(t, d))
	}
	return b.String()
}

func renderToken(t token, d Dialect) string {
	switch t.kind {
	case tokenString:
		return "'" + strings.ReplaceAll(t.text, "'", "''") + "'"
	case tokenQuotedIdent:
		open, close := identQuote(d)
		body := strings.ReplaceAll(t.text, string(close), string(close)+string(close))
		return string(open) + body + string(close)
	default:
		return t.text
	}
}

func needsSpace(prev, cur token) bool {
	switch cur.kind {
	case tokenComma, tokenRParen, tokenSemicolon:
		return false
	case tokenLParen:
		// function calls and parenthesized sources render tight
		if prev.kind == tokenWord || prev.kind == tokenQuotedIdent {
			return false
		}
	}
	switch prev.kind {
	case tokenLParen:
		return false
	}
	if prev.kind == tokenOperator && prev.text == "." {
		return false
	}
	if cur.kind == tokenOperator && cur.text == "." {
		return false
	}
	return true
}
