package schema

import (
	"strings"
	"unicode"
)

// stopTokens are dropped from query text and searchable text alike.
var stopTokens = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "get": {}, "give": {}, "how": {},
	"in": {}, "is": {}, "it": {}, "me": {}, "of": {}, "on": {}, "or": {},
	"per": {}, "show": {}, "that": {}, "the": {}, "their": {}, "to": {},
	"what": {}, "where": {}, "which": {}, "with": {},
}

// Tokenize lowercases, splits on non-alphanumerics and camelCase boundaries,
// and drops stop tokens. It is used both for identifiers and query text.
func Tokenize(s string) []string {
	var out []string
	for _, raw := range splitWords(s) {
		tok := strings.ToLower(raw)
		if tok == "" {
			continue
		}
		if _, stop := stopTokens[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// splitWords breaks a string on non-alphanumeric runes and lower→upper
// transitions, so "customerOrders_2024" yields [customer Orders 2024].
func splitWords(s string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	prevLower := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			if unicode.IsUpper(r) && prevLower {
				flush()
			}
			cur.WriteRune(r)
			prevLower = unicode.IsLower(r)
		case unicode.IsDigit(r):
			cur.WriteRune(r)
			prevLower = false
		default:
			flush()
			prevLower = false
		}
	}
	flush()
	return words
}

// SearchableText flattens a table profile into the bag of words the lexical
// retriever scores against.
func SearchableText(t *TableProfile) string {
	var b strings.Builder
	b.WriteString(t.Schema)
	b.WriteByte(' ')
	b.WriteString(t.Name)
	for _, c := range t.Columns {
		b.WriteByte(' ')
		b.WriteString(c.Name)
	}
	if t.SubjectArea != "" {
		b.WriteByte(' ')
		b.WriteString(t.SubjectArea)
	}
	return b.String()
}
