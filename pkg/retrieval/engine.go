package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/schema"
)

// Approach selects the ranking strategy.
type Approach string

const (
	ApproachLexical         Approach = "lexical"
	ApproachEmbeddingTable  Approach = "embedding_table"
	ApproachEmbeddingColumn Approach = "embedding_column"
	ApproachCombined        Approach = "combined"
)

// ParseApproach validates an approach name; empty means combined.
func ParseApproach(s string) (Approach, error) {
	switch Approach(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ApproachCombined, nil
	case ApproachLexical, ApproachEmbeddingTable, ApproachEmbeddingColumn, ApproachCombined:
		return Approach(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown retrieval approach %q", s)
}

// Scoring bonuses applied after fusion.
const (
	bonusAggIntent  = 0.08
	bonusDateIntent = 0.04
	bonusFact       = 0.06
	archivePenalty  = 0.5
	columnPoolSize  = 3
)

// Hit is one ranked table with its component scores.
type Hit struct {
	TableKey       string  `json:"table_key"`
	Score          float64 `json:"score"`
	Lexical        float64 `json:"lexical"`
	Embedding      float64 `json:"embedding"`
	Centrality     float64 `json:"centrality"`
	ArchetypeBonus float64 `json:"archetype_bonus"`
	// Origin is "seed" for retrieval hits, "expanded" after graph expansion.
	Origin string `json:"origin"`
}

// Options tune engine construction.
type Options struct {
	Alpha              float64
	TopK               int
	MaxColumnsPerTable int
}

// Engine ranks card tables for query text. It is immutable once built; a new
// card gets a new engine.
type Engine struct {
	card      *schema.Card
	embedder  Embedder
	opts      Options
	logger    *zap.Logger
	lexical   map[string]tokenVector
	tableIdx  *SemanticIndex
	columnIdx *SemanticIndex
	// embeddingsReady is false when the encoder failed or is disabled;
	// embedding approaches silently fall back to lexical.
	embeddingsReady bool
}

// columnLabel joins a table key and column name into an index label.
func columnLabel(tableKey, column string) string {
	return tableKey + "\x00" + column
}

func splitColumnLabel(label string) (tableKey, column string) {
	parts := strings.SplitN(label, "\x00", 2)
	if len(parts) != 2 {
		return label, ""
	}
	return parts[0], parts[1]
}

// BuildEngine constructs the retrieval engine for a card. Embedding failures
// degrade to lexical-only rather than failing the build.
func BuildEngine(ctx context.Context, card *schema.Card, embedder Embedder, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxColumnsPerTable <= 0 {
		opts.MaxColumnsPerTable = 20
	}
	e := &Engine{
		card:     card,
		embedder: embedder,
		opts:     opts,
		logger:   logger.Named("retrieval"),
		lexical:  make(map[string]tokenVector, len(card.Tables)),
	}

	for key, t := range card.Tables {
		e.lexical[key] = tableVector(t)
	}

	if embedder != nil && embedder.Enabled() {
		e.buildIndices(ctx)
	}
	return e
}

func (e *Engine) buildIndices(ctx context.Context) {
	keys := e.card.TableKeys()
	texts := make([]string, len(keys))
	for i, key := range keys {
		t := e.card.Tables[key]
		texts[i] = schema.SearchableText(t) + " " + t.Summary
	}
	vecs, err := e.embedder.Encode(ctx, texts)
	if err != nil {
		e.logger.Warn("table embedding build failed, falling back to lexical", zap.Error(err))
		return
	}
	e.tableIdx = NewSemanticIndex(keys, vecs)

	var colLabels, colTexts []string
	for _, key := range keys {
		t := e.card.Tables[key]
		for _, name := range columnNames(t, e.opts.MaxColumnsPerTable) {
			col := t.Column(name)
			colLabels = append(colLabels, columnLabel(key, name))
			colTexts = append(colTexts, t.Name+" "+name+" "+string(col.Role))
		}
	}
	colVecs, err := e.embedder.Encode(ctx, colTexts)
	if err != nil {
		e.logger.Warn("column embedding build failed, table embeddings only", zap.Error(err))
	} else {
		e.columnIdx = NewSemanticIndex(colLabels, colVecs)
	}

	e.embeddingsReady = true
	e.logger.Info("semantic indices built",
		zap.Int("tables", e.tableIdx.Len()),
		zap.Int("columns", len(colLabels)))
}

func columnNames(t *schema.TableProfile, limit int) []string {
	var out []string
	for _, c := range t.Columns {
		out = append(out, c.Name)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// EmbeddingsEnabled reports whether embedding approaches are live.
func (e *Engine) EmbeddingsEnabled() bool { return e.embeddingsReady }

// Card returns the card this engine was built from.
func (e *Engine) Card() *schema.Card { return e.card }

// Retrieve ranks tables for the query. k ≤ 0 uses the configured top-k, and
// alpha < 0 uses the configured fusion weight.
func (e *Engine) Retrieve(ctx context.Context, query string, approach Approach, k int, alpha float64) ([]Hit, error) {
	if k <= 0 {
		k = e.opts.TopK
	}
	if k <= 0 {
		k = 8
	}
	if alpha < 0 || alpha > 1 {
		alpha = e.opts.Alpha
	}
	if len(e.card.Tables) == 0 {
		return nil, nil
	}

	if approach != ApproachLexical && !e.embeddingsReady {
		approach = ApproachLexical
	}

	qv := queryVector(query)
	lexScores := make(map[string]float64, len(e.lexical))
	for key, tv := range e.lexical {
		lexScores[key] = cosine(qv, tv)
	}

	var embScores map[string]float64
	var err error
	switch approach {
	case ApproachEmbeddingTable, ApproachCombined:
		embScores, err = e.embeddingTableScores(ctx, query)
	case ApproachEmbeddingColumn:
		embScores, err = e.embeddingColumnScores(ctx, query)
	}
	if err != nil {
		e.logger.Warn("embedding query failed, falling back to lexical", zap.Error(err))
		approach = ApproachLexical
		embScores = nil
	}

	lexNorm := minMaxNormalize(lexScores)
	embNorm := minMaxNormalize(embScores)

	aggIntent := hasAggCue(query)
	dateIntent := hasDateCue(query)
	archiveIntent := hasArchiveCue(query)

	hits := make([]Hit, 0, len(e.card.Tables))
	for key, t := range e.card.Tables {
		h := Hit{
			TableKey:   key,
			Lexical:    lexNorm[key],
			Embedding:  embNorm[key],
			Centrality: t.Centrality,
			Origin:     "seed",
		}
		switch approach {
		case ApproachLexical:
			h.Score = h.Lexical
		case ApproachEmbeddingTable, ApproachEmbeddingColumn:
			h.Score = h.Embedding
		case ApproachCombined:
			h.Score = alpha*h.Lexical + (1-alpha)*h.Embedding
		}

		if aggIntent && t.MetricCount > 0 {
			h.ArchetypeBonus += bonusAggIntent
		}
		if dateIntent && t.DateCount > 0 {
			h.ArchetypeBonus += bonusDateIntent
		}
		if t.Archetype == schema.ArchetypeFact {
			h.ArchetypeBonus += bonusFact
		}
		h.Score += h.ArchetypeBonus

		if t.IsArchive && !archiveIntent {
			h.Score *= archivePenalty
		}
		hits = append(hits, h)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].TableKey < hits[j].TableKey
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (e *Engine) embeddingTableScores(ctx context.Context, query string) (map[string]float64, error) {
	vecs, err := e.embedder.Encode(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	scores := make(map[string]float64)
	for _, hit := range e.tableIdx.Search(vecs[0], 0) {
		scores[hit.Label] = hit.Score
	}
	return scores, nil
}

// embeddingColumnScores max-pools the top column matches per table.
func (e *Engine) embeddingColumnScores(ctx context.Context, query string) (map[string]float64, error) {
	if e.columnIdx == nil || e.columnIdx.Len() == 0 {
		return e.embeddingTableScores(ctx, query)
	}
	vecs, err := e.embedder.Encode(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	perTable := make(map[string][]float64)
	for _, hit := range e.columnIdx.Search(vecs[0], 0) {
		key, _ := splitColumnLabel(hit.Label)
		perTable[key] = append(perTable[key], hit.Score)
	}
	scores := make(map[string]float64, len(perTable))
	for key, colScores := range perTable {
		sort.Sort(sort.Reverse(sort.Float64Slice(colScores)))
		n := columnPoolSize
		if len(colScores) < n {
			n = len(colScores)
		}
		best := 0.0
		for i := 0; i < n; i++ {
			if colScores[i] > best {
				best = colScores[i]
			}
		}
		scores[key] = best
	}
	return scores, nil
}

// minMaxNormalize rescales scores into [0,1] within the candidate set.
func minMaxNormalize(scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := 0.0, 0.0
	first := true
	for _, s := range scores {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	span := hi - lo
	for k, s := range scores {
		if span == 0 {
			if s > 0 {
				out[k] = 1
			}
			continue
		}
		out[k] = (s - lo) / span
	}
	return out
}

// ColumnHit is one ranked column for keyword search.
type ColumnHit struct {
	TableKey string  `json:"table_key"`
	Column   string  `json:"column"`
	Role     string  `json:"role"`
	Score    float64 `json:"score"`
}

// SearchColumns ranks columns by lexical match against a keyword. byTable
// restricts results to one table when non-empty.
func (e *Engine) SearchColumns(keyword string, limit int, byTable string) []ColumnHit {
	if limit <= 0 {
		limit = 20
	}
	kv := queryVector(keyword)

	var hits []ColumnHit
	for key, t := range e.card.Tables {
		if byTable != "" && key != byTable {
			continue
		}
		for _, c := range t.Columns {
			cv := tokenVector{}
			for _, tok := range schema.Tokenize(c.Name) {
				cv.add(tok, 1.0)
			}
			score := cosine(kv, cv)
			if strings.Contains(strings.ToLower(c.Name), strings.ToLower(strings.TrimSpace(keyword))) {
				if score < 0.99 {
					score += 0.2
				}
			}
			if score > 0 {
				hits = append(hits, ColumnHit{TableKey: key, Column: c.Name, Role: string(c.Role), Score: score})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].TableKey != hits[j].TableKey {
			return hits[i].TableKey < hits[j].TableKey
		}
		return hits[i].Column < hits[j].Column
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Query cue detection.
var (
	aggCues = map[string]struct{}{
		"total": {}, "sum": {}, "count": {}, "average": {}, "avg": {},
		"max": {}, "min": {}, "revenue": {}, "sales": {}, "top": {}, "most": {},
	}
	dateCues = map[string]struct{}{
		"date": {}, "day": {}, "daily": {}, "week": {}, "weekly": {},
		"month": {}, "monthly": {}, "quarter": {}, "year": {}, "yearly": {},
		"trend": {}, "recent": {}, "last": {}, "since": {}, "between": {},
	}
	archiveCues = map[string]struct{}{
		"archive": {}, "archived": {}, "history": {}, "historical": {},
		"old": {}, "backup": {}, "past": {},
	}
	yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

func hasAggCue(query string) bool { return hasCue(query, aggCues) }

func hasArchiveCue(query string) bool { return hasCue(query, archiveCues) }

func hasDateCue(query string) bool {
	return hasCue(query, dateCues) || yearPattern.MatchString(query)
}

func hasCue(query string, cues map[string]struct{}) bool {
	for _, tok := range schema.Tokenize(query) {
		if _, ok := cues[tok]; ok {
			return true
		}
	}
	return false
}
