package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylens/querylens-engine/pkg/schema"
)

func expanderCard() *schema.Card {
	tables := map[string]*schema.TableProfile{
		"sales.orders": {
			Schema: "sales", Name: "orders",
			Archetype: schema.ArchetypeFact, Centrality: 1.0,
		},
		"sales.customers": {
			Schema: "sales", Name: "customers",
			Archetype: schema.ArchetypeDimension, Centrality: 0.6,
		},
		"sales.products": {
			Schema: "sales", Name: "products",
			Archetype: schema.ArchetypeDimension, Centrality: 0.4,
		},
		"sales.regions": {
			Schema: "sales", Name: "regions",
			Archetype: schema.ArchetypeReference, Centrality: 0.2,
		},
		"sales.orders_archive": {
			Schema: "sales", Name: "orders_archive",
			Archetype: schema.ArchetypeOperational, Centrality: 0.1,
			IsArchive: true,
		},
		"hr.employees": {
			Schema: "hr", Name: "employees",
			Archetype: schema.ArchetypeOperational, Centrality: 0.2,
		},
	}
	return &schema.Card{
		Tables: tables,
		Edges: []schema.GraphEdge{
			{Source: "sales.customers", Target: "sales.orders", Weight: 1},
			{Source: "sales.orders", Target: "sales.products", Weight: 1},
			{Source: "sales.customers", Target: "sales.regions", Weight: 1},
			{Source: "sales.orders", Target: "sales.orders_archive", Weight: 1},
		},
	}
}

func seedHits(keys ...string) []Hit {
	out := make([]Hit, len(keys))
	for i, k := range keys {
		out[i] = Hit{TableKey: k, Score: 1.0 - float64(i)*0.1, Origin: "seed"}
	}
	return out
}

func TestExpandFKFollowing(t *testing.T) {
	card := expanderCard()
	out := Expand(card, seedHits("sales.orders"), ExpandOptions{Strategy: StrategyFKFollowing, MaxTables: 12})

	require.NotEmpty(t, out)
	assert.Equal(t, "sales.orders", out[0].TableKey)
	assert.Equal(t, "seed", out[0].Origin)

	keys := make(map[string]string)
	for _, h := range out {
		keys[h.TableKey] = h.Origin
	}
	// One hop: customers, products. Two hops: regions via customers.
	assert.Equal(t, "expanded", keys["sales.customers"])
	assert.Equal(t, "expanded", keys["sales.products"])
	assert.Equal(t, "expanded", keys["sales.regions"])
	// Archives stay out and disconnected tables are never reached.
	assert.NotContains(t, keys, "sales.orders_archive")
	assert.NotContains(t, keys, "hr.employees")
}

func TestExpandFavorsDimensionsFromFactSeed(t *testing.T) {
	card := expanderCard()
	out := Expand(card, seedHits("sales.orders"), ExpandOptions{MaxTables: 12})

	rank := hitRank(out)
	// Both dimensions sit one hop out; higher centrality breaks the tie,
	// and the two-hop reference table comes after them.
	assert.Less(t, rank["sales.customers"], rank["sales.products"])
	assert.Less(t, rank["sales.products"], rank["sales.regions"])
}

func TestExpandSimpleStopsAtDirectNeighbors(t *testing.T) {
	card := expanderCard()
	out := Expand(card, seedHits("sales.orders"), ExpandOptions{Strategy: StrategySimple, MaxTables: 12})

	keys := make(map[string]bool)
	for _, h := range out {
		keys[h.TableKey] = true
	}
	assert.True(t, keys["sales.customers"])
	assert.True(t, keys["sales.products"])
	assert.False(t, keys["sales.regions"], "simple expansion must not walk two hops")
	assert.False(t, keys["sales.orders_archive"])
}

func TestExpandIncludeArchives(t *testing.T) {
	card := expanderCard()
	out := Expand(card, seedHits("sales.orders"), ExpandOptions{IncludeArchives: true, MaxTables: 12})

	keys := make(map[string]bool)
	for _, h := range out {
		keys[h.TableKey] = true
	}
	assert.True(t, keys["sales.orders_archive"])
}

func TestExpandPreservesSeedsUnderBudget(t *testing.T) {
	card := expanderCard()
	seeds := seedHits("sales.orders", "sales.customers")
	out := Expand(card, seeds, ExpandOptions{MaxTables: 3})

	require.Len(t, out, 3)
	assert.Equal(t, "sales.orders", out[0].TableKey)
	assert.Equal(t, "sales.customers", out[1].TableKey)
	assert.Equal(t, "expanded", out[2].Origin)
}

func TestExpandEmptySeeds(t *testing.T) {
	assert.Nil(t, Expand(expanderCard(), nil, ExpandOptions{}))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyFKFollowing, s)

	s, err = ParseStrategy("Simple")
	require.NoError(t, err)
	assert.Equal(t, StrategySimple, s)

	_, err = ParseStrategy("teleport")
	assert.Error(t, err)
}
