package sqlast

import (
	"fmt"
	"strings"
)

// TranspileResult carries the rewritten SQL and anything that could not be
// converted mechanically.
type TranspileResult struct {
	SQL            string   `json:"sql"`
	SourceDialect  Dialect  `json:"source_dialect"`
	TargetDialect  Dialect  `json:"target_dialect"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Transpile rewrites sql from one dialect to another: identifier quoting,
// pagination style and a set of function spellings. Constructs without a
// mechanical mapping pass through with a warning.
func (s *Service) Transpile(sql string, from, to Dialect) (*TranspileResult, error) {
	stmts, err := s.parse(sql, from)
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("empty statement")
	}
	if len(stmts) > 1 {
		return nil, fmt.Errorf("transpile accepts a single statement, got %d", len(stmts))
	}

	tokens, warnings := rewriteTokens(stmts[0].tokens, from, to)
	return &TranspileResult{
		SQL:           render(tokens, to),
		SourceDialect: from,
		TargetDialect: to,
		Warnings:      warnings,
	}, nil
}

// AutoTranspile detects the source dialect from the statement's surface
// features and transpiles to target.
func (s *Service) AutoTranspile(sql string, target Dialect) (*TranspileResult, error) {
	source := DetectStatementDialect(sql)
	return s.Transpile(sql, source, target)
}

// DetectStatementDialect guesses the dialect of a statement from telltale
// syntax. Statements without any marker come back generic.
func DetectStatementDialect(sql string) Dialect {
	upper := strings.ToUpper(sql)
	switch {
	case strings.Contains(sql, "`"):
		return DialectMySQL
	case strings.Contains(sql, "["), strings.Contains(upper, "GETDATE"), hasTopClause(upper):
		return DialectTSQL
	case strings.Contains(sql, "::"), strings.Contains(upper, " ILIKE "):
		return DialectPostgres
	case strings.Contains(upper, "NVL("), strings.Contains(upper, "SYSDATE"):
		return DialectOracle
	default:
		return DialectGeneric
	}
}

func hasTopClause(upper string) bool {
	idx := strings.Index(upper, "SELECT")
	if idx < 0 {
		return false
	}
	rest := strings.TrimSpace(upper[idx+len("SELECT"):])
	rest = strings.TrimPrefix(rest, "DISTINCT")
	return strings.HasPrefix(strings.TrimSpace(rest), "TOP ") ||
		strings.HasPrefix(strings.TrimSpace(rest), "TOP(")
}

// coalesceSpellings are normalized to COALESCE on every target.
var coalesceSpellings = map[string]struct{}{
	"IFNULL": {}, "ISNULL": {}, "NVL": {},
}

func rewriteTokens(tokens []token, from, to Dialect) ([]token, []string) {
	var warnings []string
	out := make([]token, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		isCall := t.kind == tokenWord && i+1 < len(tokens) && tokens[i+1].kind == tokenLParen

		if isCall {
			if _, ok := coalesceSpellings[t.upper()]; ok {
				out = append(out, token{kind: tokenWord, text: "COALESCE", pos: t.pos})
				continue
			}
			switch t.upper() {
			case "GETDATE", "SYSDATETIME":
				out = append(out, nowToken(to, t.pos))
				if !nowTakesParens(to) {
					i += 2 // drop ()
				}
				continue
			case "NOW":
				if to == DialectTSQL {
					out = append(out, token{kind: tokenWord, text: "GETDATE", pos: t.pos})
					continue
				}
			}
		}

		if t.upper() == "SYSDATE" && !isCall {
			out = append(out, token{kind: tokenWord, text: "CURRENT_TIMESTAMP", pos: t.pos})
			continue
		}

		if t.kind == tokenOperator && strings.Contains(t.text, "::") && to != DialectPostgres {
			warnings = append(warnings, "postgres cast operator :: has no direct equivalent; rewrite as CAST(expr AS type)")
		}

		out = append(out, t)
	}

	out, w := rewritePagination(out, to)
	warnings = append(warnings, w...)
	return out, warnings
}

func nowToken(to Dialect, pos int) token {
	switch to {
	case DialectPostgres, DialectMySQL, DialectSnowflake:
		return token{kind: tokenWord, text: "NOW", pos: pos}
	case DialectTSQL:
		return token{kind: tokenWord, text: "GETDATE", pos: pos}
	default:
		return token{kind: tokenWord, text: "CURRENT_TIMESTAMP", pos: pos}
	}
}

func nowTakesParens(to Dialect) bool {
	switch to {
	case DialectPostgres, DialectMySQL, DialectSnowflake, DialectTSQL:
		return true
	default:
		return false
	}
}

// rewritePagination converts between TOP and LIMIT. TOP is recognized right
// after the leading SELECT; LIMIT at parenthesis depth zero.
func rewritePagination(tokens []token, to Dialect) ([]token, []string) {
	var warnings []string

	// SELECT TOP n ... → strip, remember n
	topN := ""
	if len(tokens) >= 3 && tokens[0].upper() == "SELECT" && tokens[1].upper() == "TOP" {
		if tokens[2].kind == tokenNumber {
			topN = tokens[2].text
			tokens = append(tokens[:1], tokens[3:]...)
		} else if tokens[2].kind == tokenLParen && len(tokens) >= 5 &&
			tokens[3].kind == tokenNumber && tokens[4].kind == tokenRParen {
			topN = tokens[3].text
			tokens = append(tokens[:1], tokens[5:]...)
		}
	}

	// trailing LIMIT n at depth zero → strip, remember n
	limitN := ""
	depth := 0
	for i := 0; i < len(tokens); i++ {
		switch tokens[i].kind {
		case tokenLParen:
			depth++
		case tokenRParen:
			depth--
		}
		if depth == 0 && tokens[i].upper() == "LIMIT" && i+1 < len(tokens) && tokens[i+1].kind == tokenNumber {
			limitN = tokens[i+1].text
			tokens = append(tokens[:i], tokens[i+2:]...)
			break
		}
	}

	n := topN
	if n == "" {
		n = limitN
	}
	if n == "" {
		return tokens, warnings
	}

	if usesLimit(to) {
		tokens = append(tokens,
			token{kind: tokenWord, text: "LIMIT"},
			token{kind: tokenNumber, text: n})
	} else if to == DialectTSQL {
		if len(tokens) > 0 && tokens[0].upper() == "SELECT" {
			head := []token{tokens[0], {kind: tokenWord, text: "TOP"}, {kind: tokenNumber, text: n}}
			tokens = append(head, tokens[1:]...)
		}
	} else {
		// oracle
		tokens = append(tokens,
			token{kind: tokenWord, text: "FETCH"},
			token{kind: tokenWord, text: "FIRST"},
			token{kind: tokenNumber, text: n},
			token{kind: tokenWord, text: "ROWS"},
			token{kind: tokenWord, text: "ONLY"})
	}
	return tokens, warnings
}
