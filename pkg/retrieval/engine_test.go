package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/schema"
)

func testCard() *schema.Card {
	tables := map[string]*schema.TableProfile{
		"sales.orders": {
			Schema: "sales", Name: "orders",
			Archetype: schema.ArchetypeFact,
			Columns: []*schema.ColumnProfile{
				{Name: "id", Role: schema.RoleKey, IsPrimaryKey: true},
				{Name: "customer_id", Role: schema.RoleID, IsForeignKey: true},
				{Name: "order_date", Role: schema.RoleDate},
				{Name: "total_amount", Role: schema.RoleMetric},
			},
			ForeignKeys: []schema.FKEdge{
				{Column: "customer_id", TargetTable: "sales.customers", TargetColumn: "id"},
			},
			MetricCount: 1,
			DateCount:   1,
			Centrality:  1.0,
		},
		"sales.customers": {
			Schema: "sales", Name: "customers",
			Archetype: schema.ArchetypeDimension,
			Columns: []*schema.ColumnProfile{
				{Name: "id", Role: schema.RoleKey, IsPrimaryKey: true},
				{Name: "customer_name", Role: schema.RoleText},
				{Name: "region", Role: schema.RoleCategory},
			},
			Centrality: 0.6,
		},
		"sales.products": {
			Schema: "sales", Name: "products",
			Archetype: schema.ArchetypeDimension,
			Columns: []*schema.ColumnProfile{
				{Name: "id", Role: schema.RoleKey, IsPrimaryKey: true},
				{Name: "product_name", Role: schema.RoleText},
			},
			Centrality: 0.4,
		},
		"sales.orders_archive": {
			Schema: "sales", Name: "orders_archive",
			Archetype: schema.ArchetypeOperational,
			IsArchive: true,
			Columns: []*schema.ColumnProfile{
				{Name: "id", Role: schema.RoleKey},
				{Name: "total_amount", Role: schema.RoleMetric},
			},
			MetricCount: 1,
			Centrality:  0.1,
		},
		"hr.employees": {
			Schema: "hr", Name: "employees",
			Archetype: schema.ArchetypeOperational,
			Columns: []*schema.ColumnProfile{
				{Name: "id", Role: schema.RoleKey, IsPrimaryKey: true},
				{Name: "hire_date", Role: schema.RoleDate},
			},
			DateCount:  1,
			Centrality: 0.2,
		},
	}
	return &schema.Card{
		Dialect: "postgres",
		Tables:  tables,
		Edges: []schema.GraphEdge{
			{Source: "sales.customers", Target: "sales.orders", Weight: 1},
		},
	}
}

// fakeEmbedder projects text onto a fixed keyword basis so tests get
// deterministic vectors without a network call.
type fakeEmbedder struct {
	calls      int
	tableTexts []string
}

var embedBasis = []string{"order", "customer", "product", "employee"}

func (f *fakeEmbedder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.tableTexts == nil {
		f.tableTexts = texts
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(embedBasis))
		lower := strings.ToLower(text)
		for j, kw := range embedBasis {
			if strings.Contains(lower, kw) {
				vec[j] = 1
			}
		}
		if isZero(vec) {
			vec[0] = 0.01
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Enabled() bool { return true }

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func TestRetrieveLexical(t *testing.T) {
	e := BuildEngine(context.Background(), testCard(), nil, Options{TopK: 8, Alpha: 0.6}, zap.NewNop())
	assert.False(t, e.EmbeddingsEnabled())

	hits, err := e.Retrieve(context.Background(), "total revenue from orders for each customer", ApproachLexical, 0, -1)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, "sales.orders", hits[0].TableKey)
	assert.Equal(t, "seed", hits[0].Origin)

	// The archive table mentions total_amount too, but without an archive
	// cue in the query it must rank below the live fact table.
	rank := hitRank(hits)
	assert.Less(t, rank["sales.orders"], rank["sales.orders_archive"])
}

func TestRetrieveArchiveCueLiftsPenalty(t *testing.T) {
	e := BuildEngine(context.Background(), testCard(), nil, Options{TopK: 8}, zap.NewNop())

	plain, err := e.Retrieve(context.Background(), "orders archive totals", ApproachLexical, 0, -1)
	require.NoError(t, err)
	rank := hitRank(plain)
	assert.Contains(t, rank, "sales.orders_archive")
	assert.Less(t, rank["sales.orders_archive"], 3)
}

func TestRetrieveCombinedFallsBackWithoutEmbedder(t *testing.T) {
	e := BuildEngine(context.Background(), testCard(), NewEmbedder(config.EmbeddingConfig{}, zap.NewNop()), Options{TopK: 8}, zap.NewNop())

	hits, err := e.Retrieve(context.Background(), "customer orders", ApproachCombined, 0, -1)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	// Embedding component stays zero when the encoder is off.
	for _, h := range hits {
		assert.Zero(t, h.Embedding)
	}
}

func TestRetrieveEmbeddingTable(t *testing.T) {
	fe := &fakeEmbedder{}
	e := BuildEngine(context.Background(), testCard(), fe, Options{TopK: 8, Alpha: 0.6}, zap.NewNop())
	require.True(t, e.EmbeddingsEnabled())

	hits, err := e.Retrieve(context.Background(), "which employees were hired", ApproachEmbeddingTable, 3, -1)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "hr.employees", hits[0].TableKey)
	assert.Len(t, hits, 3)
}

func TestBuildIndicesEmbedsQualifiedText(t *testing.T) {
	fe := &fakeEmbedder{}
	BuildEngine(context.Background(), testCard(), fe, Options{TopK: 8, Alpha: 0.6}, zap.NewNop())

	require.NotEmpty(t, fe.tableTexts)
	joined := strings.Join(fe.tableTexts, "\n")
	assert.Contains(t, joined, "hr employees")
	assert.Contains(t, joined, "sales orders")
}

func TestRetrieveCombinedBlendsBothSignals(t *testing.T) {
	fe := &fakeEmbedder{}
	e := BuildEngine(context.Background(), testCard(), fe, Options{TopK: 8, Alpha: 0.6}, zap.NewNop())

	hits, err := e.Retrieve(context.Background(), "total customer orders", ApproachCombined, 0, 0.6)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "sales.orders", hits[0].TableKey)

	var sawBetween bool
	for _, h := range hits {
		if h.Lexical > 0 && h.Embedding > 0 {
			sawBetween = true
		}
	}
	assert.True(t, sawBetween, "expected at least one hit scored by both components")
}

func TestRetrieveTopKTrims(t *testing.T) {
	e := BuildEngine(context.Background(), testCard(), nil, Options{TopK: 8}, zap.NewNop())
	hits, err := e.Retrieve(context.Background(), "orders", ApproachLexical, 2, -1)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchColumns(t *testing.T) {
	e := BuildEngine(context.Background(), testCard(), nil, Options{}, zap.NewNop())

	hits := e.SearchColumns("customer", 10, "")
	require.NotEmpty(t, hits)
	assert.Equal(t, "sales.customers", hits[0].TableKey)

	keys := make(map[string]bool)
	for _, h := range hits {
		keys[h.TableKey+"."+h.Column] = true
	}
	assert.True(t, keys["sales.orders.customer_id"])
	assert.True(t, keys["sales.customers.customer_name"])

	scoped := e.SearchColumns("customer", 10, "sales.orders")
	for _, h := range scoped {
		assert.Equal(t, "sales.orders", h.TableKey)
	}
}

func TestParseApproach(t *testing.T) {
	a, err := ParseApproach("")
	require.NoError(t, err)
	assert.Equal(t, ApproachCombined, a)

	a, err = ParseApproach("Lexical")
	require.NoError(t, err)
	assert.Equal(t, ApproachLexical, a)

	_, err = ParseApproach("vector")
	assert.Error(t, err)
}

func TestMinMaxNormalize(t *testing.T) {
	norm := minMaxNormalize(map[string]float64{"a": 1, "b": 3, "c": 2})
	assert.InDelta(t, 0.0, norm["a"], 1e-9)
	assert.InDelta(t, 1.0, norm["b"], 1e-9)
	assert.InDelta(t, 0.5, norm["c"], 1e-9)

	flat := minMaxNormalize(map[string]float64{"a": 0.4, "b": 0.4})
	assert.Equal(t, 1.0, flat["a"])
	assert.Equal(t, 1.0, flat["b"])

	assert.Empty(t, minMaxNormalize(nil))
}

func hitRank(hits []Hit) map[string]int {
	rank := make(map[string]int, len(hits))
	for i, h := range hits {
		rank[h.TableKey] = i
	}
	return rank
}
