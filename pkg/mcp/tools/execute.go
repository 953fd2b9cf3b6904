package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/logging"
)

// RegisterExecuteTool adds execute_query.
func RegisterExecuteTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"execute_query",
		mcp.WithDescription(
			"Executes a single SELECT statement read-only and returns typed rows. "+
				"Any other statement kind is rejected. Results are capped at the "+
				"configured row limit; a truncated result sets next_action=paginate. "+
				"On error the result carries a structured code, hints, and "+
				"next_action=refine_plan.",
		),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SELECT statement to execute"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if te := requireReady(deps); te != nil {
			return errorResult(te)
		}
		sql, err := req.RequireString("sql")
		if err != nil {
			return errorResult(apperrors.New(apperrors.CategoryInput, apperrors.CodeEmptyQuery,
				"the sql parameter is required"))
		}

		deps.Logger.Debug("executing query", zap.String("query", logging.SanitizeQuery(sql)))

		res := deps.Coordinator.Guardrail().Execute(ctx, sql, schemaNames(deps.Coordinator.Card()))
		out, jerr := jsonResult(res)
		if jerr != nil {
			return nil, jerr
		}
		if res.Status != "ok" {
			out.IsError = true
		}
		return out, nil
	})
}
