// Package planner assembles structured query plans from retrieval output:
// a main table, a joinable table set, candidate columns, clarifications,
// and an optional draft SQL statement.
package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/retrieval"
	"github.com/querylens/querylens-engine/pkg/schema"
)

// Clarification reason codes.
const (
	ReasonNoTables           = "NO_TABLES"
	ReasonAmbiguousIntent    = "AMBIGUOUS_INTENT"
	ReasonAmbiguousTimeRange = "AMBIGUOUS_TIME_RANGE"
	ReasonNoDateDimension    = "NO_DATE_DIMENSION"
	ReasonNoMetric           = "NO_METRIC"
	ReasonUnjoinableSubset   = "UNJOINABLE_SUBSET"
	ReasonMultipleDates      = "MULTIPLE_DATE_CANDIDATES"
)

const (
	confidenceThreshold = 0.6
	mainTableGap        = 0.05
	defaultColumnBudget = 6
	defaultValueBudget  = 5
)

// Budget caps the size of one plan.
type Budget struct {
	Tables          int `json:"tables,omitempty"`
	ColumnsPerTable int `json:"columns_per_table,omitempty"`
	SampleValues    int `json:"sample_values,omitempty"`
}

// Request is one planning request.
type Request struct {
	Text        string            `json:"request"`
	DetailLevel string            `json:"detail_level,omitempty"`
	Constraints map[string]string `json:"constraints,omitempty"`
	Budget      Budget            `json:"budget,omitempty"`
}

// JoinEdge is one join predicate as a pair of fully qualified columns.
type JoinEdge struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// FilterCandidate suggests one predicate over a qualified column.
type FilterCandidate struct {
	Column    string   `json:"column"`
	Predicate string   `json:"predicate"`
	Values    []string `json:"values,omitempty"`
	// Suggestion is a concrete rendered predicate when the request pins it
	// down, like a year constraint over a date column.
	Suggestion string `json:"suggestion,omitempty"`
}

// Clarification asks the caller to resolve an ambiguity before execution.
type Clarification struct {
	Question string `json:"question"`
	Reason   string `json:"reason"`
	Blocking bool   `json:"blocking"`
}

// Plan is the structured planning result.
type Plan struct {
	Request           string              `json:"request"`
	Tables            []retrieval.Hit     `json:"tables"`
	MainTable         string              `json:"main_table"`
	JoinPlan          []JoinEdge          `json:"join_plan"`
	JoinExamples      []string            `json:"join_examples,omitempty"`
	KeyColumns        map[string][]string `json:"key_columns"`
	GroupByCandidates []string            `json:"group_by_candidates,omitempty"`
	FilterCandidates  []FilterCandidate   `json:"filter_candidates,omitempty"`
	SelectedColumns   map[string][]string `json:"selected_columns"`
	Clarifications    []Clarification     `json:"clarifications,omitempty"`
	Assumptions       []string            `json:"assumptions,omitempty"`
	Confidence        float64             `json:"confidence"`
	DraftSQL          string              `json:"draft_sql,omitempty"`
}

// Options tune the planner defaults.
type Options struct {
	TopK      int
	Alpha     float64
	MaxExpand int
}

// Planner builds plans against one retrieval engine and its card.
type Planner struct {
	engine *retrieval.Engine
	opts   Options
	logger *zap.Logger
}

func New(engine *retrieval.Engine, opts Options, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxExpand <= 0 {
		opts.MaxExpand = 12
	}
	return &Planner{engine: engine, opts: opts, logger: logger.Named("planner")}
}

// Plan runs the full planning pipeline for one request.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("empty plan request")
	}
	budget := req.Budget
	if budget.Tables <= 0 {
		budget.Tables = p.opts.MaxExpand
	}
	if budget.ColumnsPerTable <= 0 {
		budget.ColumnsPerTable = defaultColumnBudget
	}
	if budget.SampleValues <= 0 {
		budget.SampleValues = defaultValueBudget
	}

	seeds, err := p.engine.Retrieve(ctx, text, retrieval.ApproachCombined, p.opts.TopK, p.opts.Alpha)
	if err != nil {
		return nil, err
	}
	card := p.engine.Card()
	hits := retrieval.Expand(card, seeds, retrieval.ExpandOptions{
		Strategy:        retrieval.StrategyFKFollowing,
		MaxTables:       budget.Tables,
		IncludeArchives: hasArchiveIntent(text),
	})

	plan := &Plan{
		Request:         text,
		Tables:          hits,
		KeyColumns:      map[string][]string{},
		SelectedColumns: map[string][]string{},
	}
	intent := detectIntent(text)

	if len(hits) == 0 {
		plan.Clarifications = append(plan.Clarifications, Clarification{
			Question: "No tables matched the request. Can you name the entities involved?",
			Reason:   ReasonNoTables,
			Blocking: true,
		})
		return plan, nil
	}

	plan.MainTable = chooseMainTable(card, hits)
	if mainIsAmbiguous(card, hits, plan.MainTable) {
		plan.Clarifications = append(plan.Clarifications, Clarification{
			Question: fmt.Sprintf("Several tables fit equally well; is %s the right starting point?", plan.MainTable),
			Reason:   ReasonAmbiguousIntent,
			Blocking: true,
		})
	}

	chosen := p.connectTables(card, plan, hits)
	p.collectKeyColumns(card, plan, chosen)
	p.collectGroupByCandidates(card, plan, chosen)
	p.collectFilterCandidates(card, plan, chosen, intent, budget)
	p.selectColumns(card, plan, chosen, budget)
	p.addIntentClarifications(card, plan, chosen, intent)

	plan.Confidence = confidence(card, plan, hits, chosen, intent)
	if len(plan.Clarifications) == 0 && plan.Confidence >= confidenceThreshold {
		plan.DraftSQL = p.draftSQL(card, plan, chosen, intent)
	}
	return plan, nil
}

// chooseMainTable takes the top-scored hit, preferring the best fact table
// when one made the cut.
func chooseMainTable(card *schema.Card, hits []retrieval.Hit) string {
	for _, h := range hits {
		if t := card.Table(h.TableKey); t != nil && t.Archetype == schema.ArchetypeFact {
			return h.TableKey
		}
	}
	return hits[0].TableKey
}

func mainIsAmbiguous(card *schema.Card, hits []retrieval.Hit, main string) bool {
	if len(hits) < 2 || hits[0].TableKey != main {
		// A fact preference resolved the choice.
		return false
	}
	if t := card.Table(main); t != nil && t.Archetype == schema.ArchetypeFact {
		return false
	}
	return hits[0].Score-hits[1].Score < mainTableGap && hits[0].Score > 0
}

// connectTables derives the join plan as a spanning set of FK edges reached
// breadth-first from the main table. Tables the walk cannot reach are dropped
// from the plan and reported as an unjoinable subset.
func (p *Planner) connectTables(card *schema.Card, plan *Plan, hits []retrieval.Hit) []string {
	inPlan := make(map[string]bool, len(hits))
	for _, h := range hits {
		inPlan[h.TableKey] = true
	}

	connected := map[string]bool{plan.MainTable: true}
	queue := []string{plan.MainTable}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range weightedNeighbors(card, cur) {
			if !inPlan[nb] || connected[nb] {
				continue
			}
			edge, ok := joinEdgeBetween(card, cur, nb)
			if !ok {
				continue
			}
			connected[nb] = true
			plan.JoinPlan = append(plan.JoinPlan, edge)
			plan.JoinExamples = append(plan.JoinExamples,
				fmt.Sprintf("JOIN %s ON %s = %s", nb, edge.Left, edge.Right))
			queue = append(queue, nb)
		}
	}

	var orphans []string
	for _, h := range hits {
		if !connected[h.TableKey] {
			orphans = append(orphans, h.TableKey)
		}
	}
	if len(orphans) > 0 {
		sort.Strings(orphans)
		plan.Clarifications = append(plan.Clarifications, Clarification{
			Question: fmt.Sprintf("Tables %s cannot be joined to %s and were left out; should they be part of the answer?",
				strings.Join(orphans, ", "), plan.MainTable),
			Reason:   ReasonUnjoinableSubset,
			Blocking: false,
		})
		plan.Assumptions = append(plan.Assumptions,
			fmt.Sprintf("dropped unjoinable tables: %s", strings.Join(orphans, ", ")))
	}

	chosen := make([]string, 0, len(connected))
	for key := range connected {
		chosen = append(chosen, key)
	}
	sort.Strings(chosen)
	return chosen
}

// weightedNeighbors orders a table's graph neighbors by lowest edge weight
// first, then key, so spanning-tree construction stays deterministic when the
// FK graph has cycles.
func weightedNeighbors(card *schema.Card, cur string) []string {
	type neighbor struct {
		key    string
		weight int
	}
	var nbs []neighbor
	for _, e := range card.Edges {
		switch cur {
		case e.Source:
			nbs = append(nbs, neighbor{e.Target, e.Weight})
		case e.Target:
			nbs = append(nbs, neighbor{e.Source, e.Weight})
		}
	}
	sort.Slice(nbs, func(i, j int) bool {
		if nbs[i].weight != nbs[j].weight {
			return nbs[i].weight < nbs[j].weight
		}
		return nbs[i].key < nbs[j].key
	})
	keys := make([]string, len(nbs))
	for i, n := range nbs {
		keys[i] = n.key
	}
	return keys
}

// joinEdgeBetween finds the FK linking two adjacent tables, in either
// direction, returning fully qualified column pairs.
func joinEdgeBetween(card *schema.Card, a, b string) (JoinEdge, bool) {
	ta, tb := card.Table(a), card.Table(b)
	if ta == nil || tb == nil {
		return JoinEdge{}, false
	}
	for _, fk := range ta.ForeignKeys {
		if fk.TargetTable == b {
			return JoinEdge{Left: a + "." + fk.Column, Right: b + "." + fk.TargetColumn}, true
		}
	}
	for _, fk := range tb.ForeignKeys {
		if fk.TargetTable == a {
			return JoinEdge{Left: b + "." + fk.Column, Right: a + "." + fk.TargetColumn}, true
		}
	}
	return JoinEdge{}, false
}

func (p *Planner) collectKeyColumns(card *schema.Card, plan *Plan, chosen []string) {
	joinCols := make(map[string]map[string]bool)
	note := func(qualified string) {
		idx := strings.LastIndex(qualified, ".")
		table, col := qualified[:idx], qualified[idx+1:]
		if joinCols[table] == nil {
			joinCols[table] = map[string]bool{}
		}
		joinCols[table][col] = true
	}
	for _, e := range plan.JoinPlan {
		note(e.Left)
		note(e.Right)
	}

	for _, key := range chosen {
		t := card.Table(key)
		seen := map[string]bool{}
		var cols []string
		for _, pk := range t.PKColumns {
			if !seen[pk] {
				seen[pk] = true
				cols = append(cols, pk)
			}
		}
		for col := range joinCols[key] {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
		sort.Strings(cols)
		plan.KeyColumns[key] = cols
	}
}

// collectGroupByCandidates gathers category and date columns from the main
// table and the dimensions joined directly to it.
func (p *Planner) collectGroupByCandidates(card *schema.Card, plan *Plan, chosen []string) {
	immediate := map[string]bool{plan.MainTable: true}
	for _, e := range plan.JoinPlan {
		lt := e.Left[:strings.LastIndex(e.Left, ".")]
		rt := e.Right[:strings.LastIndex(e.Right, ".")]
		var other string
		switch plan.MainTable {
		case lt:
			other = rt
		case rt:
			other = lt
		default:
			continue
		}
		if t := card.Table(other); t != nil && t.Archetype == schema.ArchetypeDimension {
			immediate[other] = true
		}
	}

	for _, key := range chosen {
		if !immediate[key] {
			continue
		}
		t := card.Table(key)
		for _, c := range t.Columns {
			if c.Role == schema.RoleCategory || c.Role == schema.RoleDate {
				plan.GroupByCandidates = append(plan.GroupByCandidates, key+"."+c.Name)
			}
		}
	}
	sort.Strings(plan.GroupByCandidates)
}

func (p *Planner) collectFilterCandidates(card *schema.Card, plan *Plan, chosen []string, intent intentProfile, budget Budget) {
	for _, key := range chosen {
		t := card.Table(key)
		for _, c := range t.Columns {
			qualified := key + "." + c.Name
			switch {
			case len(c.Values) > 0:
				values := c.Values
				if len(values) > budget.SampleValues {
					values = values[:budget.SampleValues]
				}
				pred := "="
				if len(c.Values) > 1 {
					pred = "IN (…)"
				}
				plan.FilterCandidates = append(plan.FilterCandidates, FilterCandidate{
					Column: qualified, Predicate: pred, Values: values,
				})
			case c.Role == schema.RoleDate:
				fc := FilterCandidate{Column: qualified, Predicate: ">= AND <"}
				if intent.year != "" {
					fc.Predicate = "BETWEEN"
					fc.Suggestion = fmt.Sprintf("%s BETWEEN '%s-01-01' AND '%s-01-01'",
						qualified, intent.year, intent.nextYear)
				}
				plan.FilterCandidates = append(plan.FilterCandidates, fc)
			case c.Role == schema.RoleMetric && c.Range != nil:
				plan.FilterCandidates = append(plan.FilterCandidates, FilterCandidate{
					Column: qualified, Predicate: "BETWEEN",
				})
			}
		}
	}
	sort.Slice(plan.FilterCandidates, func(i, j int) bool {
		return plan.FilterCandidates[i].Column < plan.FilterCandidates[j].Column
	})
}

// Role priority for output column selection, highest first.
var rolePriority = map[schema.ColumnRole]int{
	schema.RoleDate:     0,
	schema.RoleMetric:   1,
	schema.RoleCategory: 2,
	schema.RoleKey:      3,
	schema.RoleText:     4,
	schema.RoleID:       5,
}

func (p *Planner) selectColumns(card *schema.Card, plan *Plan, chosen []string, budget Budget) {
	for _, key := range chosen {
		t := card.Table(key)
		picked := map[string]bool{}
		var cols []string
		for _, k := range plan.KeyColumns[key] {
			picked[k] = true
			cols = append(cols, k)
		}

		rest := make([]*schema.ColumnProfile, 0, len(t.Columns))
		for _, c := range t.Columns {
			if !picked[c.Name] {
				rest = append(rest, c)
			}
		}
		sort.SliceStable(rest, func(i, j int) bool {
			pi, pj := rolePriority[rest[i].Role], rolePriority[rest[j].Role]
			if pi != pj {
				return pi < pj
			}
			return rest[i].Name < rest[j].Name
		})
		for _, c := range rest {
			if len(cols)-len(plan.KeyColumns[key]) >= budget.ColumnsPerTable {
				break
			}
			cols = append(cols, c.Name)
		}
		plan.SelectedColumns[key] = cols
	}
}

func (p *Planner) addIntentClarifications(card *schema.Card, plan *Plan, chosen []string, intent intentProfile) {
	var dateCols []string
	hasMetric := false
	for _, key := range chosen {
		t := card.Table(key)
		for _, c := range t.Columns {
			switch c.Role {
			case schema.RoleDate:
				dateCols = append(dateCols, key+"."+c.Name)
			case schema.RoleMetric:
				hasMetric = true
			}
		}
	}

	if intent.relativeRange {
		plan.Clarifications = append(plan.Clarifications, Clarification{
			Question: fmt.Sprintf("The request says %q; which concrete date range should it cover?", intent.relativePhrase),
			Reason:   ReasonAmbiguousTimeRange,
			Blocking: true,
		})
	}
	if intent.temporal && len(dateCols) == 0 {
		plan.Clarifications = append(plan.Clarifications, Clarification{
			Question: "The request implies a time scope but no date column was found in the chosen tables.",
			Reason:   ReasonNoDateDimension,
			Blocking: true,
		})
	}
	if intent.aggregation && !hasMetric {
		plan.Clarifications = append(plan.Clarifications, Clarification{
			Question: "The request implies aggregation but no numeric measure was found; what should be aggregated?",
			Reason:   ReasonNoMetric,
			Blocking: true,
		})
	}
	if intent.temporal && len(dateCols) > 1 {
		sort.Strings(dateCols)
		plan.Clarifications = append(plan.Clarifications, Clarification{
			Question: fmt.Sprintf("Several date columns qualify (%s); which one anchors the time range?",
				strings.Join(dateCols, ", ")),
			Reason:   ReasonMultipleDates,
			Blocking: false,
		})
	}
}

// confidence scores the plan per the published heuristic: 0.4·dispersion +
// 0.3·role coverage + 0.3·graph connectivity, clamped to [0,1].
func confidence(card *schema.Card, plan *Plan, hits []retrieval.Hit, chosen []string, intent intentProfile) float64 {
	dispersion := 0.0
	if top := hits[0].Score; top > 0 {
		dispersion = (top - hits[len(hits)-1].Score) / top
	}
	if len(hits) == 1 {
		dispersion = 1
	}

	coverage := roleCoverage(card, chosen, intent)

	connectivity := 1.0
	if len(hits) > 1 {
		connectivity = float64(len(chosen)) / float64(len(hits))
	}

	score := 0.4*dispersion + 0.3*coverage + 0.3*connectivity
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func roleCoverage(card *schema.Card, chosen []string, intent intentProfile) float64 {
	needed, covered := 0, 0
	has := func(role schema.ColumnRole) bool {
		for _, key := range chosen {
			for _, c := range card.Table(key).Columns {
				if c.Role == role {
					return true
				}
			}
		}
		return false
	}
	if intent.aggregation {
		needed++
		if has(schema.RoleMetric) {
			covered++
		}
	}
	if intent.temporal {
		needed++
		if has(schema.RoleDate) {
			covered++
		}
	}
	if needed == 0 {
		return 1
	}
	return float64(covered) / float64(needed)
}

// draftSQL renders a fully qualified SELECT over the plan. Aggregation intent
// produces a grouped query over the first metric; otherwise it projects the
// selected columns directly.
func (p *Planner) draftSQL(card *schema.Card, plan *Plan, chosen []string, intent intentProfile) string {
	var b strings.Builder

	var where []string
	for _, fc := range plan.FilterCandidates {
		if fc.Suggestion != "" {
			where = append(where, fc.Suggestion)
		}
	}

	if intent.aggregation && len(plan.GroupByCandidates) > 0 {
		metric := firstMetric(card, plan.MainTable, chosen)
		if metric != "" {
			groupBy := pickGroupBy(plan, intent)
			fmt.Fprintf(&b, "SELECT %s, SUM(%s) AS total_%s", groupBy, metric, columnName(metric))
			b.WriteString(joinClause(plan))
			writeWhere(&b, where)
			fmt.Fprintf(&b, " GROUP BY %s ORDER BY total_%s DESC", groupBy, columnName(metric))
			return b.String()
		}
	}

	var cols []string
	for _, key := range chosen {
		for _, c := range plan.SelectedColumns[key] {
			cols = append(cols, key+"."+c)
		}
	}
	sort.Strings(cols)
	fmt.Fprintf(&b, "SELECT %s", strings.Join(cols, ", "))
	b.WriteString(joinClause(plan))
	writeWhere(&b, where)
	return b.String()
}

func joinClause(plan *Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, " FROM %s", plan.MainTable)
	seen := map[string]bool{plan.MainTable: true}
	for _, e := range plan.JoinPlan {
		lt := e.Left[:strings.LastIndex(e.Left, ".")]
		rt := e.Right[:strings.LastIndex(e.Right, ".")]
		target := rt
		if seen[rt] {
			target = lt
		}
		seen[lt], seen[rt] = true, true
		fmt.Fprintf(&b, " JOIN %s ON %s = %s", target, e.Left, e.Right)
	}
	return b.String()
}

func writeWhere(b *strings.Builder, where []string) {
	if len(where) > 0 {
		fmt.Fprintf(b, " WHERE %s", strings.Join(where, " AND "))
	}
}

// pickGroupBy prefers a category the request mentions, then any category,
// then a date candidate.
func pickGroupBy(plan *Plan, intent intentProfile) string {
	for _, gb := range plan.GroupByCandidates {
		if intent.mentions(columnName(gb)) {
			return gb
		}
	}
	return plan.GroupByCandidates[0]
}

func firstMetric(card *schema.Card, main string, chosen []string) string {
	keys := append([]string{main}, chosen...)
	for _, key := range keys {
		t := card.Table(key)
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if c.Role == schema.RoleMetric {
				return key + "." + c.Name
			}
		}
	}
	return ""
}

func columnName(qualified string) string {
	return qualified[strings.LastIndex(qualified, ".")+1:]
}
