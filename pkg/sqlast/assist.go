package sqlast

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SchemaNames is the identifier universe used for fuzzy suggestions. Columns
// are keyed by table key.
type SchemaNames struct {
	Tables  []string
	Columns map[string][]string
}

// Assist is the guidance produced for a failed statement.
type Assist struct {
	LikelyCauses []string          `json:"likely_causes,omitempty"`
	Suggestions  map[string]string `json:"suggestions,omitempty"`
	Hints        []string          `json:"hints,omitempty"`
}

// maxSuggestionDistance bounds how far a fuzzy match may be.
const maxSuggestionDistance = 2

// messagePatterns extract the offending identifier from driver messages of
// the supported engines.
var messagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`column "([^"]+)" does not exist`),
	regexp.MustCompile(`relation "([^"]+)" does not exist`),
	regexp.MustCompile(`no such column:?\s+([\w.]+)`),
	regexp.MustCompile(`no such table:?\s+([\w.]+)`),
	regexp.MustCompile(`Invalid column name '([^']+)'`),
	regexp.MustCompile(`Invalid object name '([^']+)'`),
	regexp.MustCompile(`Unknown column '([^']+)'`),
	regexp.MustCompile(`Table '([^']+)' doesn't exist`),
}

// AssistError turns a driver error into actionable guidance: it pulls the
// offending identifier out of the message and fuzzy-matches it against the
// known schema within an edit distance of 2.
func (s *Service) AssistError(sql, driverMessage string, d Dialect, names *SchemaNames) *Assist {
	a := &Assist{Suggestions: map[string]string{}}

	offending := extractOffendingIdent(driverMessage)
	if offending != "" {
		a.LikelyCauses = append(a.LikelyCauses,
			fmt.Sprintf("identifier %q was not found in the database", offending))
		if names != nil {
			if best, kind := closestName(offending, names); best != "" {
				a.Suggestions[offending] = best
				a.Hints = append(a.Hints, fmt.Sprintf("did you mean %s %q?", kind, best))
			}
		}
	}

	if strings.Contains(strings.ToLower(driverMessage), "permission denied") {
		a.LikelyCauses = append(a.LikelyCauses, "the connection lacks read access to the referenced object")
	}
	if strings.Contains(strings.ToLower(driverMessage), "syntax error") {
		a.LikelyCauses = append(a.LikelyCauses, "the statement does not parse under the active dialect")
		a.Hints = append(a.Hints, fmt.Sprintf("the active dialect is %s; vendor-specific syntax from other engines is transpiled only where a mapping exists", d))
	}

	// cross-check referenced columns against the schema even when the
	// driver message carried no identifier
	if offending == "" && names != nil {
		if md, err := s.ExtractMetadata(sql, d); err == nil {
			for _, colRef := range md.Columns {
				bare := colRef
				if idx := strings.LastIndex(colRef, "."); idx >= 0 {
					bare = colRef[idx+1:]
				}
				if knownColumn(bare, names) {
					continue
				}
				if best, _ := closestName(bare, names); best != "" {
					a.Suggestions[bare] = best
					a.Hints = append(a.Hints, fmt.Sprintf("column %q is not on the schema card; closest known name is %q", bare, best))
				}
			}
		}
	}

	if len(a.LikelyCauses) == 0 && len(a.Hints) == 0 {
		a.LikelyCauses = append(a.LikelyCauses, "the driver rejected the statement; inspect the message for details")
	}
	sort.Strings(a.Hints)
	return a
}

func extractOffendingIdent(message string) string {
	for _, p := range messagePatterns {
		if m := p.FindStringSubmatch(message); m != nil {
			return m[1]
		}
	}
	return ""
}

func knownColumn(name string, names *SchemaNames) bool {
	lower := strings.ToLower(name)
	for _, cols := range names.Columns {
		for _, c := range cols {
			if strings.ToLower(c) == lower {
				return true
			}
		}
	}
	return false
}

// closestName finds the nearest table or column name within the distance
// bound. Ties resolve to the lexically smaller candidate.
func closestName(ident string, names *SchemaNames) (string, string) {
	lower := strings.ToLower(ident)
	// strip a qualifier so "orders.custmr_id" matches column names
	if idx := strings.LastIndex(lower, "."); idx >= 0 {
		lower = lower[idx+1:]
	}

	best, kind := "", ""
	bestDist := maxSuggestionDistance + 1

	consider := func(candidate, candidateKind string) {
		d := editDistance(lower, strings.ToLower(candidate))
		if d < bestDist || (d == bestDist && best != "" && candidate < best) {
			if d <= maxSuggestionDistance && d > 0 {
				best, kind, bestDist = candidate, candidateKind, d
			}
		}
	}

	for _, t := range names.Tables {
		consider(t, "table")
		if idx := strings.LastIndex(t, "."); idx >= 0 {
			consider(t[idx+1:], "table")
		}
	}
	for _, cols := range names.Columns {
		for _, c := range cols {
			consider(c, "column")
		}
	}
	return best, kind
}

// editDistance is the Levenshtein distance with unit costs.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
