package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type initStatusResult struct {
	Phase             string  `json:"phase"`
	Attempts          int     `json:"attempts"`
	StartedAt         string  `json:"started_at,omitempty"`
	CompletedAt       string  `json:"completed_at,omitempty"`
	ElapsedSec        float64 `json:"elapsed_sec"`
	TableCount        int     `json:"table_count"`
	FastStart         bool    `json:"fast_start"`
	Enriched          bool    `json:"enriched"`
	Dialect           string  `json:"dialect"`
	EmbeddingsEnabled bool    `json:"embeddings_enabled"`
	ErrorMessage      string  `json:"error_message,omitempty"`
}

// RegisterInitStatusTool adds get_init_status. It is the only tool that
// answers before the service is READY.
func RegisterInitStatusTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_init_status",
		mcp.WithDescription(
			"Returns the schema analysis status. Call this first; every other tool "+
				"requires the READY phase. While STARTING or RUNNING, poll this tool "+
				"to monitor progress.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state := deps.Coordinator.State()
		elapsed := 0.0
		startedAt, completedAt := "", ""
		if !state.StartedAt.IsZero() {
			startedAt = state.StartedAt.UTC().Format(time.RFC3339)
			end := state.CompletedAt
			if end.IsZero() {
				end = time.Now()
			} else {
				completedAt = end.UTC().Format(time.RFC3339)
			}
			elapsed = end.Sub(state.StartedAt).Seconds()
		}
		return jsonResult(initStatusResult{
			Phase:             state.Phase,
			Attempts:          state.Attempts,
			StartedAt:         startedAt,
			CompletedAt:       completedAt,
			ElapsedSec:        elapsed,
			TableCount:        state.TableCount,
			FastStart:         state.FastStart,
			Enriched:          state.Enriched,
			Dialect:           deps.Coordinator.Dialect(),
			EmbeddingsEnabled: deps.Coordinator.EmbeddingsEnabled(),
			ErrorMessage:      state.ErrorMessage,
		})
	})
}
