package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/retrieval"
)

// RegisterFindTools adds the debug retrieval tools find_tables and
// find_columns. They expose raw ranking output and are only registered when
// the debug flag is on.
func RegisterFindTools(s *server.MCPServer, deps *Deps) {
	registerFindTables(s, deps)
	registerFindColumns(s, deps)
}

func registerFindTables(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"find_tables",
		mcp.WithDescription(
			"Debug: ranks tables for a query and returns the per-component "+
				"scores behind the ranking.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum tables returned (default 8)"),
		),
		mcp.WithString("approach",
			mcp.Description("lexical, embedding_table, embedding_column, or combined"),
			mcp.Enum("lexical", "embedding_table", "embedding_column", "combined"),
		),
		mcp.WithNumber("alpha",
			mcp.Description("Combined fusion weight in [0,1]; lexical share"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if te := requireReady(deps); te != nil {
			return errorResult(te)
		}
		query, err := req.RequireString("query")
		if err != nil {
			return errorResult(apperrors.New(apperrors.CategoryInput, apperrors.CodeEmptyQuery,
				"the query parameter is required"))
		}
		approach, err := retrieval.ParseApproach(req.GetString("approach", ""))
		if err != nil {
			return errorResult(apperrors.New(apperrors.CategoryInput, apperrors.CodeInvalidArgument, err.Error()))
		}

		hits, err := deps.Coordinator.Engine().Retrieve(ctx, query, approach,
			intArg(req, "limit", 0), floatArg(req, "alpha", -1))
		if err != nil {
			return errorResult(apperrors.New(apperrors.CategoryRuntime, apperrors.CodeEmbedderUnavailable, err.Error()))
		}
		return jsonResult(map[string]any{"tables": hits})
	})
}

func registerFindColumns(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"find_columns",
		mcp.WithDescription(
			"Debug: ranks columns matching a keyword, optionally within one table.",
		),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Column name fragment to search for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum columns returned (default 20)"),
		),
		mcp.WithString("by_table",
			mcp.Description("Restrict the search to one table key"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if te := requireReady(deps); te != nil {
			return errorResult(te)
		}
		keyword, err := req.RequireString("keyword")
		if err != nil {
			return errorResult(apperrors.New(apperrors.CategoryInput, apperrors.CodeEmptyQuery,
				"the keyword parameter is required"))
		}
		byTable := req.GetString("by_table", "")
		if byTable != "" && deps.Coordinator.Card().Table(byTable) == nil {
			return errorResult(apperrors.InvalidTableKey(byTable,
				suggestTableKeys(deps.Coordinator.Card(), byTable, 5)))
		}

		hits := deps.Coordinator.Engine().SearchColumns(keyword, intArg(req, "limit", 0), byTable)
		return jsonResult(map[string]any{"columns": hits})
	})
}
