package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"snake case", "customer_orders_2024", []string{"customer", "orders", "2024"}},
		{"camel case", "customerOrderTotal", []string{"customer", "order", "total"}},
		{"stop tokens dropped", "show me the total revenue by region", []string{"total", "revenue", "region"}},
		{"punctuation split", "orders.amount, customers.region", []string{"orders", "amount", "customers", "region"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestIsArchiveName(t *testing.T) {
	assert.True(t, IsArchiveName("orders_archive"))
	assert.True(t, IsArchiveName("hist_customers"))
	assert.True(t, IsArchiveName("backup_2019"))
	assert.False(t, IsArchiveName("orders"))
	assert.False(t, IsArchiveName("historiography")) // token match, not substring
}

func TestIsAuditLikeName(t *testing.T) {
	assert.True(t, IsAuditLikeName("audit_trail"))
	assert.True(t, IsAuditLikeName("event_log"))
	assert.False(t, IsAuditLikeName("orders"))
}

func TestSearchableText(t *testing.T) {
	tbl := &TableProfile{
		Schema: "sales",
		Name:   "orders",
		Columns: []*ColumnProfile{
			{Name: "id"}, {Name: "order_date"}, {Name: "amount"},
		},
	}
	text := SearchableText(tbl)
	assert.Contains(t, text, "sales")
	assert.Contains(t, text, "orders")
	assert.Contains(t, text, "order_date")
	assert.Contains(t, text, "amount")
}
