package sqlast

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Service is the dialect-aware SQL analysis facade. Parse results are cached
// by (sql, dialect).
type Service struct {
	cache  *parseCache
	logger *zap.Logger
}

// NewService creates a Service with the default cache size.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cache:  newParseCache(512),
		logger: logger.Named("sqlast"),
	}
}

func (s *Service) parse(sql string, d Dialect) ([]*statement, error) {
	if stmts, err, ok := s.cache.get(sql, d); ok {
		return stmts, err
	}
	stmts, err := parse(sql, d)
	s.cache.put(sql, d, stmts, err)
	return stmts, err
}

// ValidationResult reports whether a statement parses and what it is.
type ValidationResult struct {
	Valid      bool          `json:"valid"`
	Kind       StatementKind `json:"kind"`
	Normalized string        `json:"normalized,omitempty"`
	Statements int           `json:"statements"`
	Notes      []string      `json:"notes,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Validate checks sql under a dialect. A multi-statement input is reported
// via Statements > 1 but is not itself invalid here; the execution guardrail
// enforces single statements.
func (s *Service) Validate(sql string, d Dialect) ValidationResult {
	stmts, err := s.parse(sql, d)
	if err != nil {
		return ValidationResult{Error: err.Error()}
	}
	if len(stmts) == 0 {
		return ValidationResult{Error: "empty statement"}
	}

	first := stmts[0]
	res := ValidationResult{
		Valid:      true,
		Kind:       first.kind,
		Normalized: render(first.tokens, d),
		Statements: len(stmts),
	}
	if first.kind == KindUnknown {
		res.Notes = append(res.Notes, "unrecognized statement root")
	}
	if len(stmts) > 1 {
		res.Notes = append(res.Notes, fmt.Sprintf("input contains %d statements", len(stmts)))
	}
	return res
}

// Metadata summarizes the references inside a statement.
type Metadata struct {
	Kind            StatementKind `json:"kind"`
	Tables          []string      `json:"tables,omitempty"`
	Columns         []string      `json:"columns,omitempty"`
	Functions       []string      `json:"functions,omitempty"`
	HasJoins        bool          `json:"has_joins"`
	HasSubqueries   bool          `json:"has_subqueries"`
	HasAggregations bool          `json:"has_aggregations"`
}

var aggregateFunctions = map[string]struct{}{
	"SUM": {}, "COUNT": {}, "AVG": {}, "MIN": {}, "MAX": {},
	"STDDEV": {}, "VARIANCE": {}, "STRING_AGG": {}, "ARRAY_AGG": {}, "GROUP_CONCAT": {},
}

// reservedAfterTable are words that end a table reference chain, so aliases
// and clauses are not mistaken for table names.
var reservedAfterTable = map[string]struct{}{
	"WHERE": {}, "GROUP": {}, "ORDER": {}, "HAVING": {}, "LIMIT": {}, "OFFSET": {},
	"JOIN": {}, "INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {}, "CROSS": {},
	"ON": {}, "UNION": {}, "EXCEPT": {}, "INTERSECT": {}, "AS": {}, "SET": {},
	"FETCH": {}, "FOR": {}, "WINDOW": {}, "QUALIFY": {},
}

// ExtractMetadata lists the table references, column references, and shape
// flags of the first statement. This is a heuristic token walk, not name
// resolution; qualified references keep their qualifier.
func (s *Service) ExtractMetadata(sql string, d Dialect) (*Metadata, error) {
	stmts, err := s.parse(sql, d)
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("empty statement")
	}

	tokens := stmts[0].tokens
	md := &Metadata{Kind: stmts[0].kind}
	tables := map[string]struct{}{}
	columns := map[string]struct{}{}
	functions := map[string]struct{}{}

	// cteNames are excluded from table references
	cteNames := map[string]struct{}{}
	if len(tokens) > 0 && tokens[0].upper() == "WITH" {
		depth := 0
	scan:
		for i := 1; i < len(tokens); i++ {
			switch tokens[i].kind {
			case tokenLParen:
				depth++
			case tokenRParen:
				depth--
			case tokenWord:
				if depth != 0 {
					continue
				}
				switch tokens[i].upper() {
				case "SELECT", "INSERT", "UPDATE", "DELETE":
					break scan
				}
				if i+1 < len(tokens) {
					if next := tokens[i+1]; next.kind == tokenLParen || next.upper() == "AS" {
						cteNames[strings.ToLower(tokens[i].text)] = struct{}{}
					}
				}
			}
		}
	}

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]

		if t.kind == tokenWord || t.kind == tokenQuotedIdent {
			if i+1 < len(tokens) && tokens[i+1].kind == tokenLParen && t.kind == tokenWord {
				fn := t.upper()
				functions[fn] = struct{}{}
				if _, agg := aggregateFunctions[fn]; agg {
					md.HasAggregations = true
				}
				continue
			}
		}

		switch t.upper() {
		case "JOIN":
			md.HasJoins = true
			name, next := readDottedName(tokens, i+1)
			if name != "" {
				if _, cte := cteNames[strings.ToLower(name)]; !cte {
					tables[name] = struct{}{}
				}
				i = next - 1
			}
		case "FROM", "INTO":
			name, next := readDottedName(tokens, i+1)
			if name != "" {
				if _, cte := cteNames[strings.ToLower(name)]; !cte {
					tables[name] = struct{}{}
				}
				i = next - 1
			}
		}

		if t.kind == tokenLParen && i+1 < len(tokens) && tokens[i+1].upper() == "SELECT" {
			md.HasSubqueries = true
		}
	}

	// qualified column references: ident '.' ident where the chain does not
	// start a table clause (those were consumed above)
	for i := 0; i+2 < len(tokens); i++ {
		if isIdent(tokens[i]) && isDot(tokens[i+1]) && isIdent(tokens[i+2]) {
			// skip three-part table names already captured
			full := tokens[i].text + "." + tokens[i+2].text
			if _, isTable := tables[full]; !isTable {
				columns[full] = struct{}{}
			}
		}
	}

	md.Tables = sortedSet(tables)
	md.Columns = sortedSet(columns)
	md.Functions = sortedSet(functions)
	return md, nil
}

// readDottedName consumes ident ('.' ident)* starting at i, returning the
// joined name and the index after it. Subqueries and VALUES return "".
func readDottedName(tokens []token, i int) (string, int) {
	if i >= len(tokens) || !isIdent(tokens[i]) {
		return "", i
	}
	if _, reserved := reservedAfterTable[tokens[i].upper()]; reserved {
		return "", i
	}
	parts := []string{tokens[i].text}
	i++
	for i+1 < len(tokens) && isDot(tokens[i]) && isIdent(tokens[i+1]) {
		parts = append(parts, tokens[i+1].text)
		i += 2
	}
	return strings.Join(parts, "."), i
}

func isIdent(t token) bool {
	return t.kind == tokenWord || t.kind == tokenQuotedIdent
}

func isDot(t token) bool {
	return t.kind == tokenOperator && t.text == "."
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Optimize applies conservative cleanups: whitespace normalization and
// removal of a trailing semicolon. The statement's meaning never changes.
func (s *Service) Optimize(sql string, d Dialect) (string, error) {
	stmts, err := s.parse(sql, d)
	if err != nil {
		return "", err
	}
	if len(stmts) == 0 {
		return "", fmt.Errorf("empty statement")
	}
	return render(stmts[0].tokens, d), nil
}

// StatementCount returns how many statements the input contains.
func (s *Service) StatementCount(sql string, d Dialect) (int, error) {
	stmts, err := s.parse(sql, d)
	if err != nil {
		return 0, err
	}
	return len(stmts), nil
}

// RootKind classifies the first statement.
func (s *Service) RootKind(sql string, d Dialect) (StatementKind, error) {
	stmts, err := s.parse(sql, d)
	if err != nil {
		return KindUnknown, err
	}
	if len(stmts) == 0 {
		return KindUnknown, fmt.Errorf("empty statement")
	}
	return stmts[0].kind, nil
}
