package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// starSchema builds orders at the center with three dimensions, plus a
// disconnected pair.
func starSchema() map[string]*TableProfile {
	mk := func(schema, name string, fks ...FKEdge) *TableProfile {
		return &TableProfile{
			Schema: schema, Name: name,
			PKColumns:   []string{"id"},
			Columns:     []*ColumnProfile{{Name: "id", IsPrimaryKey: true}},
			ForeignKeys: fks,
		}
	}
	return map[string]*TableProfile{
		"sales.orders": mk("sales", "orders",
			FKEdge{Column: "customer_id", TargetTable: "sales.customers", TargetColumn: "id"},
			FKEdge{Column: "product_id", TargetTable: "sales.products", TargetColumn: "id"},
			FKEdge{Column: "store_id", TargetTable: "sales.stores", TargetColumn: "id"},
		),
		"sales.customers": mk("sales", "customers"),
		"sales.products":  mk("sales", "products"),
		"sales.stores":    mk("sales", "stores"),
		"hr.employees": mk("hr", "employees",
			FKEdge{Column: "dept_id", TargetTable: "hr.departments", TargetColumn: "id"}),
		"hr.departments": mk("hr", "departments"),
	}
}

func TestBuildGraph_Edges(t *testing.T) {
	g := BuildGraph(starSchema())
	edges := g.Edges()
	assert.Len(t, edges, 4)
	assert.Equal(t, 3, g.Degree("sales.orders"))
	assert.Equal(t, 1, g.Degree("sales.customers"))
}

func TestCentrality_HubHighest(t *testing.T) {
	g := BuildGraph(starSchema())
	c := g.Centrality()

	assert.InDelta(t, 1.0, c["sales.orders"], 1e-9)
	for _, k := range []string{"sales.customers", "sales.products", "sales.stores"} {
		assert.Less(t, c[k], c["sales.orders"], k)
	}
}

func TestCentrality_EmptyGraph(t *testing.T) {
	g := BuildGraph(map[string]*TableProfile{})
	assert.Empty(t, g.Centrality())
}

func TestCommunities_SeparatesComponents(t *testing.T) {
	g := BuildGraph(starSchema())
	comms := g.Communities()

	// the star and the hr pair must never share a community
	find := func(key string) int {
		for i, c := range comms {
			for _, k := range c {
				if k == key {
					return i
				}
			}
		}
		return -1
	}
	require.NotEqual(t, -1, find("sales.orders"))
	assert.Equal(t, find("sales.orders"), find("sales.customers"))
	assert.NotEqual(t, find("sales.orders"), find("hr.employees"))
	assert.Equal(t, find("hr.employees"), find("hr.departments"))
}

func TestBuildSubjectAreas_EveryTableAssigned(t *testing.T) {
	tables := starSchema()
	g := BuildGraph(tables)
	areas := BuildSubjectAreas(g, tables, g.Centrality())

	assigned := map[string]int{}
	for _, a := range areas {
		for _, k := range a.Tables {
			assigned[k]++
		}
	}
	for k := range tables {
		assert.Equal(t, 1, assigned[k], k)
	}
}

func TestBuildSubjectAreas_StableIDs(t *testing.T) {
	tables := starSchema()
	g := BuildGraph(tables)
	c := g.Centrality()

	first := BuildSubjectAreas(g, tables, c)
	second := BuildSubjectAreas(g, tables, c)

	require.Equal(t, len(first), len(second))
	for id := range first {
		_, ok := second[id]
		assert.True(t, ok, "area id %s not stable", id)
	}
}

func TestBuildSubjectAreas_NamedAfterCentralTable(t *testing.T) {
	tables := starSchema()
	g := BuildGraph(tables)
	areas := BuildSubjectAreas(g, tables, g.Centrality())

	var names []string
	for _, a := range areas {
		names = append(names, a.Name)
	}
	assert.Contains(t, names, "orders")
}
