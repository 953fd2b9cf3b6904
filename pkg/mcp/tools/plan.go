package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/planner"
)

// RegisterPlanTool adds plan_query_for_intent.
func RegisterPlanTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"plan_query_for_intent",
		mcp.WithDescription(
			"Turns a natural-language request into a structured query plan: "+
				"relevant tables with scores, join plan, key columns, group-by and "+
				"filter candidates, clarifying questions, and a draft SQL statement "+
				"when the request is unambiguous. Answer any blocking clarification "+
				"before executing.",
		),
		mcp.WithString("request",
			mcp.Required(),
			mcp.Description("The question to plan for, e.g. 'total revenue by region for 2024'"),
		),
		mcp.WithString("detail_level",
			mcp.Description("brief, standard, or full (default standard)"),
			mcp.Enum("brief", "standard", "full"),
		),
		mcp.WithNumber("tables",
			mcp.Description("Maximum tables in the plan"),
		),
		mcp.WithNumber("columns_per_table",
			mcp.Description("Maximum non-key columns selected per table"),
		),
		mcp.WithNumber("sample_values",
			mcp.Description("Maximum enumerated values per filter candidate"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if te := requireReady(deps); te != nil {
			return errorResult(te)
		}
		request, err := req.RequireString("request")
		if err != nil {
			return errorResult(apperrors.New(apperrors.CategoryInput, apperrors.CodeEmptyQuery,
				"the request parameter is required"))
		}

		plan, err := deps.Coordinator.Planner().Plan(ctx, planner.Request{
			Text:        request,
			DetailLevel: req.GetString("detail_level", "standard"),
			Budget: planner.Budget{
				Tables:          intArg(req, "tables", 0),
				ColumnsPerTable: intArg(req, "columns_per_table", 0),
				SampleValues:    intArg(req, "sample_values", 0),
			},
		})
		if err != nil {
			return errorResult(apperrors.New(apperrors.CategoryInput, apperrors.CodeEmptyQuery, err.Error()))
		}

		deps.Logger.Debug("plan produced",
			zap.String("main_table", plan.MainTable),
			zap.Float64("confidence", plan.Confidence),
			zap.Int("clarifications", len(plan.Clarifications)))

		return jsonResult(shapePlan(plan, req.GetString("detail_level", "standard")))
	})
}

// shapePlan trims the plan for the requested detail level. brief keeps the
// decision surface only; full is the whole artifact.
func shapePlan(plan *planner.Plan, detail string) any {
	switch detail {
	case "brief":
		return map[string]any{
			"request":        plan.Request,
			"main_table":     plan.MainTable,
			"tables":         plan.Tables,
			"clarifications": plan.Clarifications,
			"confidence":     plan.Confidence,
			"draft_sql":      plan.DraftSQL,
		}
	default:
		return plan
	}
}
