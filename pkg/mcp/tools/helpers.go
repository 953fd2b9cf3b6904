// Package tools implements the MCP tool surface of the engine. Tool errors
// are returned as structured JSON results with IsError set, so the caller
// sees the taxonomy instead of an opaque transport failure.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/lifecycle"
	"github.com/querylens/querylens-engine/pkg/schema"
	"github.com/querylens/querylens-engine/pkg/sqlast"
)

// Deps bundles what every tool needs.
type Deps struct {
	Coordinator *lifecycle.Coordinator
	Config      *config.Config
	Logger      *zap.Logger
}

// errorEnvelope is the JSON shape of a failed tool call.
type errorEnvelope struct {
	Error       bool     `json:"error"`
	Category    string   `json:"category"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Hints       []string `json:"hints,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult shapes a ToolError as a structured error payload.
func errorResult(te *apperrors.ToolError) (*mcp.CallToolResult, error) {
	data, _ := json.Marshal(errorEnvelope{
		Error:       true,
		Category:    string(te.Category),
		Code:        te.Code,
		Message:     te.Message,
		Hints:       te.Hints,
		Recoverable: te.Recoverable,
	})
	res := mcp.NewToolResultText(string(data))
	res.IsError = true
	return res, nil
}

// requireReady gates a tool on coordinator readiness.
func requireReady(deps *Deps) *apperrors.ToolError {
	if deps.Coordinator.Ready() {
		return nil
	}
	return deps.Coordinator.NotReadyError()
}

// intArg extracts an integer argument, returning defaultVal when the key is
// missing or not a number (JSON numbers arrive as float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// floatArg extracts a float argument with a default.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// boolArg extracts a boolean argument with a default.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// schemaNames flattens the card into the name sets the SQL assist layer
// fuzzy-matches against.
func schemaNames(card *schema.Card) *sqlast.SchemaNames {
	if card == nil {
		return nil
	}
	names := &sqlast.SchemaNames{Columns: map[string][]string{}}
	for _, key := range card.TableKeys() {
		names.Tables = append(names.Tables, key)
		for _, c := range card.Table(key).Columns {
			names.Columns[key] = append(names.Columns[key], c.Name)
		}
	}
	return names
}

// suggestTableKeys returns known table keys resembling the given one, for
// INVALID_TABLE_KEY hints.
func suggestTableKeys(card *schema.Card, key string, limit int) []string {
	needle := strings.ToLower(key)
	if idx := strings.LastIndex(needle, "."); idx >= 0 {
		needle = needle[idx+1:]
	}
	var out []string
	for _, candidate := range card.TableKeys() {
		name := candidate[strings.LastIndex(candidate, ".")+1:]
		if strings.Contains(strings.ToLower(name), needle) || strings.Contains(needle, strings.ToLower(name)) {
			out = append(out, candidate)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
