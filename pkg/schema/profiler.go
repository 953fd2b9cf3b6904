package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Surface patterns detected over sampled strings.
var (
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	urlPattern     = regexp.MustCompile(`^https?://\S+$`)
	phonePattern   = regexp.MustCompile(`^\+?[0-9][0-9\-\s().]{6,}$`)
	percentPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?%$`)
)

const patternMinFraction = 0.5

// Sample is the raw material for profiling one table: column-major access to
// up to sample_rows rows. Rows are discarded after profiling; only derived
// statistics are kept on the card.
type Sample struct {
	Columns []string
	Rows    [][]any
	Partial bool
}

// columnValues extracts the non-null values of one column as raw any values.
func (s *Sample) columnValues(name string) ([]any, int) {
	idx := -1
	for i, c := range s.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, 0
	}
	var vals []any
	nulls := 0
	for _, row := range s.Rows {
		if idx >= len(row) {
			continue
		}
		if row[idx] == nil {
			nulls++
			continue
		}
		vals = append(vals, row[idx])
	}
	return vals, nulls
}

// ProfileColumns fills the statistical fields and role of each column from
// the sample. A nil or empty sample leaves the statistical fields unset and
// classifies from structure alone.
func ProfileColumns(t *TableProfile, sample *Sample) {
	sampleSize := 0
	if sample != nil {
		sampleSize = len(sample.Rows)
	}
	t.RowsSampled = sampleSize
	if sample != nil {
		t.SampledPartial = sample.Partial
	}

	for _, col := range t.Columns {
		profileColumn(col, sample, sampleSize)
	}

	t.MetricCount = len(t.ColumnsByRole(RoleMetric))
	t.DateCount = len(t.ColumnsByRole(RoleDate))
}

func profileColumn(col *ColumnProfile, sample *Sample, sampleSize int) {
	var vals []any
	nulls := 0
	avgLen := 0.0
	if sampleSize > 0 {
		vals, nulls = sample.columnValues(col.Name)
		nr := float64(nulls) / float64(sampleSize)
		col.NullRate = &nr

		distinct, distinctCount := distinctValues(vals)
		dr := float64(distinctCount) / float64(sampleSize)
		col.DistinctRatio = &dr

		if strs := stringValues(vals); len(strs) > 0 {
			col.Patterns = detectPatterns(strs)
			col.SemanticTags = SemanticTags(strs)
			total := 0
			for _, s := range strs {
				total += len(s)
			}
			avgLen = float64(total) / float64(len(strs))
		}

		if len(distinct) > 0 {
			col.Values = distinct
		}
		if isNumericType(col.Type) || isTemporalType(col.Type) {
			col.Range = valueRange(vals)
		}
	}

	col.Role = classifyRole(col, sampleSize, avgLen)

	// Enumerated values only matter for category columns; keys and ids
	// would just leak identifiers onto the card.
	if col.Role != RoleCategory && col.Role != RoleDate {
		col.Values = nil
	}
}

// classifyRole applies the ordered role rules.
func classifyRole(col *ColumnProfile, sampleSize int, avgLen float64) ColumnRole {
	if col.IsPrimaryKey {
		return RoleKey
	}
	if col.IsForeignKey || idSuffixPattern.MatchString(col.Name) {
		return RoleID
	}
	if isTemporalType(col.Type) {
		return RoleDate
	}
	if isNumericType(col.Type) {
		dr := 1.0
		if col.DistinctRatio != nil {
			dr = *col.DistinctRatio
		}
		if dr > MetricDistinctRatioMin && measureNamePattern.MatchString(col.Name) {
			return RoleMetric
		}
	}
	if sampleSize > 0 && col.DistinctRatio != nil {
		threshold := float64(ValueConstraintThreshold) / float64(sampleSize)
		if *col.DistinctRatio <= threshold {
			return RoleCategory
		}
	}
	if isTextType(col.Type) && avgLen > TextAvgLenMin {
		return RoleText
	}
	return RoleCategory
}

func detectPatterns(strs []string) []string {
	counts := map[string]int{}
	for _, s := range strs {
		s = strings.TrimSpace(s)
		switch {
		case emailPattern.MatchString(s):
			counts["email"]++
		case urlPattern.MatchString(s):
			counts["url"]++
		case percentPattern.MatchString(s):
			counts["percent"]++
		case phonePattern.MatchString(s):
			counts["phone"]++
		}
	}
	var out []string
	for _, p := range []string{"email", "url", "phone", "percent"} {
		if float64(counts[p])/float64(len(strs)) >= patternMinFraction {
			out = append(out, p)
		}
	}
	return out
}

// distinctValues counts distinct display values over the whole sample and
// returns the sorted value list only when it is small enough to enumerate
// on the card.
func distinctValues(vals []any) ([]string, int) {
	seen := map[string]struct{}{}
	for _, v := range vals {
		seen[displayValue(v)] = struct{}{}
	}
	if len(seen) == 0 || len(seen) > ValueConstraintThreshold {
		return nil, len(seen)
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, len(seen)
}

func stringValues(vals []any) []string {
	var out []string
	for _, v := range vals {
		switch s := v.(type) {
		case string:
			out = append(out, s)
		case []byte:
			out = append(out, string(s))
		}
	}
	return out
}

func valueRange(vals []any) *ValueRange {
	if len(vals) == 0 {
		return nil
	}
	// Order numerically when all values are numeric, otherwise by the
	// display form (ISO timestamps order correctly as strings).
	numeric := true
	var minN, maxN float64
	var minS, maxS string
	for i, v := range vals {
		n, ok := toFloat(v)
		s := displayValue(v)
		if i == 0 {
			minN, maxN, minS, maxS = n, n, s, s
			numeric = ok
			continue
		}
		if !ok {
			numeric = false
		}
		if numeric {
			if n < minN {
				minN = n
			}
			if n > maxN {
				maxN = n
			}
		}
		if s < minS {
			minS = s
		}
		if s > maxS {
			maxS = s
		}
	}
	if numeric {
		return &ValueRange{Min: trimFloat(minN), Max: trimFloat(maxN)}
	}
	return &ValueRange{Min: minS, Max: maxS}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// displayValue renders a sampled value the way it appears on the card.
func displayValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64:
		return trimFloat(t)
	case float32:
		return trimFloat(float64(t))
	default:
		return fmt.Sprint(v)
	}
}

func matchesAny(typeName string, fragments []string) bool {
	lower := strings.ToLower(typeName)
	for _, f := range fragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

func isTemporalType(typeName string) bool { return matchesAny(typeName, temporalTypes) }
func isNumericType(typeName string) bool  { return matchesAny(typeName, numericTypes) }
func isTextType(typeName string) bool     { return matchesAny(typeName, textTypes) }
