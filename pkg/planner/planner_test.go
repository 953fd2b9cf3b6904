package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/retrieval"
	"github.com/querylens/querylens-engine/pkg/schema"
)

func salesCard() *schema.Card {
	tables := map[string]*schema.TableProfile{
		"sales.orders": {
			Schema: "sales", Name: "orders",
			Archetype: schema.ArchetypeFact,
			PKColumns: []string{"id"},
			Columns: []*schema.ColumnProfile{
				{Name: "id", Role: schema.RoleKey, IsPrimaryKey: true},
				{Name: "customer_id", Role: schema.RoleID, IsForeignKey: true},
				{Name: "order_date", Role: schema.RoleDate},
				{Name: "amount", Role: schema.RoleMetric},
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
			PKColumns: []string{"id"},
			Columns: []*schema.ColumnProfile{
				{Name: "id", Role: schema.RoleKey, IsPrimaryKey: true},
				{Name: "region", Role: schema.RoleCategory, Values: []string{"APAC", "EMEA", "NA"}},
			},
			Centrality: 0.6,
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

func newPlanner(card *schema.Card) *Planner {
	engine := retrieval.BuildEngine(context.Background(), card, nil, retrieval.Options{TopK: 8, Alpha: 0.6}, zap.NewNop())
	return New(engine, Options{TopK: 8, Alpha: 0.6, MaxExpand: 12}, zap.NewNop())
}

func TestPlanRevenueByRegion(t *testing.T) {
	p := newPlanner(salesCard())

	plan, err := p.Plan(context.Background(), Request{Text: "total revenue by region for 2024"})
	require.NoError(t, err)

	assert.Equal(t, "sales.orders", plan.MainTable)
	require.Len(t, plan.JoinPlan, 1)
	assert.Equal(t, "sales.orders.customer_id", plan.JoinPlan[0].Left)
	assert.Equal(t, "sales.customers.id", plan.JoinPlan[0].Right)

	assert.Contains(t, plan.GroupByCandidates, "sales.customers.region")
	assert.Contains(t, plan.GroupByCandidates, "sales.orders.order_date")

	var dateFilter *FilterCandidate
	for i := range plan.FilterCandidates {
		if plan.FilterCandidates[i].Column == "sales.orders.order_date" {
			dateFilter = &plan.FilterCandidates[i]
		}
	}
	require.NotNil(t, dateFilter)
	assert.Equal(t, "BETWEEN", dateFilter.Predicate)
	assert.Equal(t, "sales.orders.order_date BETWEEN '2024-01-01' AND '2025-01-01'", dateFilter.Suggestion)

	assert.Empty(t, plan.Clarifications)
	assert.GreaterOrEqual(t, plan.Confidence, 0.6)
	require.NotEmpty(t, plan.DraftSQL)
	assert.Contains(t, plan.DraftSQL, "SUM(sales.orders.amount)")
	assert.Contains(t, plan.DraftSQL, "GROUP BY sales.customers.region")
	assert.Contains(t, plan.DraftSQL, "BETWEEN '2024-01-01' AND '2025-01-01'")
	assert.NotContains(t, plan.DraftSQL, "*")
}

func TestPlanRelativeRangeBlocks(t *testing.T) {
	p := newPlanner(salesCard())

	plan, err := p.Plan(context.Background(), Request{Text: "top customers last month"})
	require.NoError(t, err)

	var found *Clarification
	for i := range plan.Clarifications {
		if plan.Clarifications[i].Reason == ReasonAmbiguousTimeRange {
			found = &plan.Clarifications[i]
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.Blocking)
	assert.Empty(t, plan.DraftSQL)
}

func TestPlanKeyAndSelectedColumns(t *testing.T) {
	p := newPlanner(salesCard())

	plan, err := p.Plan(context.Background(), Request{Text: "total revenue by region for 2024"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"customer_id", "id"}, plan.KeyColumns["sales.orders"])
	assert.ElementsMatch(t, []string{"id"}, plan.KeyColumns["sales.customers"])

	// Keys always selected, remaining slots by role priority.
	assert.Contains(t, plan.SelectedColumns["sales.orders"], "order_date")
	assert.Contains(t, plan.SelectedColumns["sales.orders"], "amount")
	assert.Contains(t, plan.SelectedColumns["sales.customers"], "region")
}

func TestPlanColumnBudget(t *testing.T) {
	p := newPlanner(salesCard())

	plan, err := p.Plan(context.Background(), Request{
		Text:   "orders for 2024",
		Budget: Budget{ColumnsPerTable: 1},
	})
	require.NoError(t, err)

	keys := len(plan.KeyColumns["sales.orders"])
	assert.Len(t, plan.SelectedColumns["sales.orders"], keys+1)
}

func TestPlanEmptyCard(t *testing.T) {
	p := newPlanner(&schema.Card{Tables: map[string]*schema.TableProfile{}})

	plan, err := p.Plan(context.Background(), Request{Text: "total revenue"})
	require.NoError(t, err)
	require.Len(t, plan.Clarifications, 1)
	assert.Equal(t, ReasonNoTables, plan.Clarifications[0].Reason)
	assert.True(t, plan.Clarifications[0].Blocking)
	assert.Empty(t, plan.DraftSQL)
}

func TestPlanJoinOrderPrefersLighterEdges(t *testing.T) {
	card := salesCard()
	card.Tables["sales.products"] = &schema.TableProfile{
		Schema: "sales", Name: "products",
		Archetype: schema.ArchetypeDimension,
		PKColumns: []string{"id"},
		Columns: []*schema.ColumnProfile{
			{Name: "id", Role: schema.RoleKey, IsPrimaryKey: true},
			{Name: "category", Role: schema.RoleCategory},
		},
		Centrality: 0.5,
	}
	orders := card.Tables["sales.orders"]
	orders.Columns = append(orders.Columns,
		&schema.ColumnProfile{Name: "product_id", Role: schema.RoleID, IsForeignKey: true})
	orders.ForeignKeys = append(orders.ForeignKeys,
		schema.FKEdge{Column: "product_id", TargetTable: "sales.products", TargetColumn: "id"})
	// The customers edge is heavier, so the products join must come first
	// even though customers sorts first lexically.
	card.Edges[0].Weight = 2
	card.Edges = append(card.Edges,
		schema.GraphEdge{Source: "sales.orders", Target: "sales.products", Weight: 1})

	p := newPlanner(card)
	plan, err := p.Plan(context.Background(), Request{Text: "orders by customer and product"})
	require.NoError(t, err)

	require.Len(t, plan.JoinPlan, 2)
	assert.Equal(t, "sales.orders.product_id", plan.JoinPlan[0].Left)
	assert.Equal(t, "sales.orders.customer_id", plan.JoinPlan[1].Left)
}

func TestPlanUnjoinableSubset(t *testing.T) {
	card := salesCard()
	card.Tables["hr.employees"] = &schema.TableProfile{
		Schema: "hr", Name: "employees",
		Archetype: schema.ArchetypeOperational,
		PKColumns: []string{"id"},
		Columns: []*schema.ColumnProfile{
			{Name: "id", Role: schema.RoleKey, IsPrimaryKey: true},
			{Name: "salary_amount", Role: schema.RoleMetric},
		},
		MetricCount: 1,
	}
	p := newPlanner(card)

	plan, err := p.Plan(context.Background(), Request{Text: "total order amount and employees for 2024"})
	require.NoError(t, err)

	var found *Clarification
	for i := range plan.Clarifications {
		if plan.Clarifications[i].Reason == ReasonUnjoinableSubset {
			found = &plan.Clarifications[i]
		}
	}
	require.NotNil(t, found)
	assert.False(t, found.Blocking)
	assert.Contains(t, found.Question, "hr.employees")
	assert.NotContains(t, plan.SelectedColumns, "hr.employees")
	assert.Empty(t, plan.DraftSQL)
}

func TestPlanNoMetricClarification(t *testing.T) {
	card := &schema.Card{
		Dialect: "postgres",
		Tables: map[string]*schema.TableProfile{
			"app.tags": {
				Schema: "app", Name: "tags",
				PKColumns: []string{"id"},
				Columns: []*schema.ColumnProfile{
					{Name: "id", Role: schema.RoleKey, IsPrimaryKey: true},
					{Name: "label", Role: schema.RoleCategory},
				},
			},
		},
	}
	p := newPlanner(card)

	plan, err := p.Plan(context.Background(), Request{Text: "total tags value"})
	require.NoError(t, err)

	reasons := clarificationReasons(plan)
	assert.Contains(t, reasons, ReasonNoMetric)
}

func TestPlanMultipleDateCandidates(t *testing.T) {
	card := salesCard()
	orders := card.Tables["sales.orders"]
	orders.Columns = append(orders.Columns, &schema.ColumnProfile{Name: "ship_date", Role: schema.RoleDate})
	orders.DateCount = 2
	p := newPlanner(card)

	plan, err := p.Plan(context.Background(), Request{Text: "order amount by region for 2024"})
	require.NoError(t, err)

	reasons := clarificationReasons(plan)
	require.Contains(t, reasons, ReasonMultipleDates)
	for _, c := range plan.Clarifications {
		if c.Reason == ReasonMultipleDates {
			assert.False(t, c.Blocking)
		}
	}
	assert.Empty(t, plan.DraftSQL, "any open clarification suppresses draft SQL")
}

func TestPlanEmptyRequest(t *testing.T) {
	p := newPlanner(salesCard())
	_, err := p.Plan(context.Background(), Request{Text: "  "})
	assert.Error(t, err)
}

func TestDetectIntent(t *testing.T) {
	p := detectIntent("total revenue by region for 2024")
	assert.True(t, p.aggregation)
	assert.True(t, p.temporal)
	assert.False(t, p.relativeRange)
	assert.Equal(t, "2024", p.year)
	assert.Equal(t, "2025", p.nextYear)

	p = detectIntent("top customers last month")
	assert.True(t, p.aggregation)
	assert.True(t, p.relativeRange)
	assert.Equal(t, "last month", p.relativePhrase)
	assert.Empty(t, p.year)

	p = detectIntent("list customer names")
	assert.False(t, p.aggregation)
	assert.False(t, p.temporal)

	assert.True(t, detectIntent("revenue by region").mentions("sales.customers.region"))
	assert.False(t, detectIntent("revenue totals").mentions("ship_date"))
}

func TestHasArchiveIntent(t *testing.T) {
	assert.True(t, hasArchiveIntent("orders from the archive"))
	assert.False(t, hasArchiveIntent("recent orders"))
}

func clarificationReasons(plan *Plan) []string {
	out := make([]string, 0, len(plan.Clarifications))
	for _, c := range plan.Clarifications {
		out = append(out, c.Reason)
	}
	return out
}
