package planner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/querylens/querylens-engine/pkg/schema"
)

// intentProfile summarizes what the request text asks for.
type intentProfile struct {
	aggregation    bool
	temporal       bool
	relativeRange  bool
	relativePhrase string
	// year holds a four-digit year constant found in the request; nextYear
	// is year+1, precomputed for half-open range rendering.
	year     string
	nextYear string
	tokens   map[string]bool
}

var aggregationCues = map[string]bool{
	"total": true, "sum": true, "count": true, "average": true, "avg": true,
	"max": true, "min": true, "revenue": true, "top": true, "most": true,
	"highest": true, "lowest": true, "per": true,
}

var temporalCues = map[string]bool{
	"date": true, "day": true, "daily": true, "week": true, "weekly": true,
	"month": true, "monthly": true, "quarter": true, "year": true,
	"yearly": true, "trend": true, "recent": true, "since": true,
	"between": true, "before": true, "after": true, "during": true,
}

// relativeRangePatterns match temporal phrases with no concrete boundary.
var relativeRangePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blast\s+(month|week|year|quarter|day|\d+\s+(days|weeks|months|years))\b`),
	regexp.MustCompile(`(?i)\bthis\s+(month|week|year|quarter)\b`),
	regexp.MustCompile(`(?i)\bpast\s+(month|week|year|quarter|\d+\s+(days|weeks|months|years))\b`),
	regexp.MustCompile(`(?i)\b(yesterday|today|recently)\b`),
}

var yearConstant = regexp.MustCompile(`\b(19|20)\d{2}\b`)

var archiveIntentCues = map[string]bool{
	"archive": true, "archived": true, "history": true, "historical": true,
	"old": true, "backup": true,
}

func detectIntent(text string) intentProfile {
	p := intentProfile{tokens: map[string]bool{}}
	for _, tok := range schema.Tokenize(text) {
		p.tokens[tok] = true
		if aggregationCues[tok] {
			p.aggregation = true
		}
		if temporalCues[tok] {
			p.temporal = true
		}
	}
	for _, re := range relativeRangePatterns {
		if m := re.FindString(text); m != "" {
			p.relativeRange = true
			p.relativePhrase = strings.ToLower(m)
			p.temporal = true
			break
		}
	}
	if y := yearConstant.FindString(text); y != "" {
		p.temporal = true
		if !p.relativeRange {
			p.year = y
			n, _ := strconv.Atoi(y)
			p.nextYear = strconv.Itoa(n + 1)
		}
	}
	return p
}

// mentions reports whether any token of the given identifier appears in the
// request text.
func (p intentProfile) mentions(identifier string) bool {
	for _, tok := range schema.Tokenize(identifier) {
		if p.tokens[tok] {
			return true
		}
	}
	return false
}

func hasArchiveIntent(text string) bool {
	for _, tok := range schema.Tokenize(text) {
		if archiveIntentCues[tok] {
			return true
		}
	}
	return false
}
