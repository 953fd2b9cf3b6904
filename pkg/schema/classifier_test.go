package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func classifierFixture() map[string]*TableProfile {
	return map[string]*TableProfile{
		"sales.orders": {
			Schema: "sales", Name: "orders",
			PKColumns: []string{"id"},
			Columns: []*ColumnProfile{
				{Name: "id", Role: RoleKey, IsPrimaryKey: true},
				{Name: "customer_id", Role: RoleID, IsForeignKey: true},
				{Name: "product_id", Role: RoleID, IsForeignKey: true},
				{Name: "amount", Role: RoleMetric},
			},
			ForeignKeys: []FKEdge{
				{Column: "customer_id", TargetTable: "sales.customers", TargetColumn: "id"},
				{Column: "product_id", TargetTable: "sales.products", TargetColumn: "id"},
			},
			MetricCount: 1,
			RowEstimate: 1000000,
		},
		"sales.customers": {
			Schema: "sales", Name: "customers",
			PKColumns:   []string{"id"},
			Columns:     []*ColumnProfile{{Name: "id", Role: RoleKey, IsPrimaryKey: true}, {Name: "region", Role: RoleCategory}},
			RowEstimate: 50000,
		},
		"sales.products": {
			Schema: "sales", Name: "products",
			PKColumns:   []string{"id"},
			Columns:     []*ColumnProfile{{Name: "id", Role: RoleKey, IsPrimaryKey: true}},
			RowEstimate: 2000,
		},
		"sales.order_items": {
			Schema: "sales", Name: "order_items",
			PKColumns: []string{"order_id", "product_id"},
			Columns: []*ColumnProfile{
				{Name: "order_id", Role: RoleID, IsForeignKey: true},
				{Name: "product_id", Role: RoleID, IsForeignKey: true},
			},
			ForeignKeys: []FKEdge{
				{Column: "order_id", TargetTable: "sales.orders", TargetColumn: "id"},
				{Column: "product_id", TargetTable: "sales.products", TargetColumn: "id"},
			},
			RowEstimate: 5000000,
		},
		"ref.country_codes": {
			Schema: "ref", Name: "country_codes",
			Columns:     []*ColumnProfile{{Name: "code", Role: RoleCategory}},
			RowEstimate: 250,
		},
		"sales.orders_archive": {
			Schema: "sales", Name: "orders_archive",
			Columns:     []*ColumnProfile{{Name: "id", Role: RoleCategory}},
			RowEstimate: 9000000,
		},
	}
}

func TestClassifyTables(t *testing.T) {
	tables := classifierFixture()
	ClassifyTables(tables)

	assert.Equal(t, ArchetypeFact, tables["sales.orders"].Archetype)
	assert.Equal(t, ArchetypeBridge, tables["sales.order_items"].Archetype)
	assert.Equal(t, ArchetypeDimension, tables["sales.customers"].Archetype)
	assert.Equal(t, ArchetypeDimension, tables["sales.products"].Archetype)
	assert.Equal(t, ArchetypeReference, tables["ref.country_codes"].Archetype)
	assert.Equal(t, ArchetypeOperational, tables["sales.orders_archive"].Archetype)

	assert.True(t, tables["sales.orders_archive"].IsArchive)
	assert.False(t, tables["sales.orders"].IsArchive)
}

func TestSummarize(t *testing.T) {
	tables := classifierFixture()
	ClassifyTables(tables)

	areas := map[string]*SubjectArea{
		"area-1": {ID: "area-1", Name: "orders", Tables: []string{"sales.orders"}},
	}
	Summarize(tables, areas)

	s := tables["sales.orders"].Summary
	assert.Contains(t, s, "fact")
	assert.Contains(t, s, "sales.orders")
	assert.Contains(t, s, "orders area")
}
