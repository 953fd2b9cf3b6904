package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/querylens/querylens-engine/pkg/apperrors"
)

type columnInfo struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Role          string   `json:"role"`
	Nullable      bool     `json:"nullable"`
	PrimaryKey    bool     `json:"primary_key,omitempty"`
	ForeignKey    bool     `json:"foreign_key,omitempty"`
	NullRate      *float64 `json:"null_rate,omitempty"`
	DistinctRatio *float64 `json:"distinct_ratio,omitempty"`
	Patterns      []string `json:"patterns,omitempty"`
	SemanticTags  []string `json:"semantic_tags,omitempty"`
	Values        []string `json:"values,omitempty"`
	Range         any      `json:"range,omitempty"`
}

type relationshipInfo struct {
	Column       string `json:"column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
}

type tableInfoResult struct {
	TableKey      string             `json:"table_key"`
	Archetype     string             `json:"archetype"`
	Summary       string             `json:"summary,omitempty"`
	SubjectArea   string             `json:"subject_area,omitempty"`
	RowEstimate   int64              `json:"row_estimate"`
	Centrality    float64            `json:"centrality"`
	IsArchive     bool               `json:"is_archive,omitempty"`
	IsAuditLike   bool               `json:"is_audit_like,omitempty"`
	PrimaryKeys   []string           `json:"primary_keys"`
	Columns       []columnInfo       `json:"columns"`
	Relationships []relationshipInfo `json:"relationships,omitempty"`
}

// RegisterTableInfoTool adds get_table_info.
func RegisterTableInfoTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_table_info",
		mcp.WithDescription(
			"Returns the full profile of one table: columns with roles and "+
				"statistics, primary keys, foreign-key relationships, and "+
				"representative sampled values. table_key is schema-qualified, "+
				"like 'sales.orders'.",
		),
		mcp.WithString("table_key",
			mcp.Required(),
			mcp.Description("Schema-qualified table name, e.g. 'sales.orders'"),
		),
		mcp.WithBoolean("include_samples",
			mcp.Description("Include sampled representative values (default true)"),
		),
		mcp.WithString("column_role_filter",
			mcp.Description("Only return columns with this role"),
			mcp.Enum("key", "id", "date", "metric", "category", "text"),
		),
		mcp.WithNumber("max_sample_values",
			mcp.Description("Cap on values returned per column (default 10)"),
		),
		mcp.WithNumber("relationship_limit",
			mcp.Description("Cap on foreign-key relationships returned"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if te := requireReady(deps); te != nil {
			return errorResult(te)
		}
		key, err := req.RequireString("table_key")
		if err != nil {
			return errorResult(apperrors.InvalidTableKey("", nil))
		}

		card := deps.Coordinator.Card()
		t := card.Table(key)
		if t == nil {
			return errorResult(apperrors.InvalidTableKey(key, suggestTableKeys(card, key, 5)))
		}

		includeSamples := boolArg(req, "include_samples", true)
		roleFilter := req.GetString("column_role_filter", "")
		maxValues := intArg(req, "max_sample_values", 10)
		relLimit := intArg(req, "relationship_limit", 0)

		out := tableInfoResult{
			TableKey:    key,
			Archetype:   string(t.Archetype),
			Summary:     t.Summary,
			SubjectArea: t.SubjectArea,
			RowEstimate: t.RowEstimate,
			Centrality:  t.Centrality,
			IsArchive:   t.IsArchive,
			IsAuditLike: t.IsAuditLike,
			PrimaryKeys: t.PKColumns,
		}

		for _, c := range t.Columns {
			if roleFilter != "" && string(c.Role) != roleFilter {
				continue
			}
			ci := columnInfo{
				Name:          c.Name,
				Type:          c.Type,
				Role:          string(c.Role),
				Nullable:      c.Nullable,
				PrimaryKey:    c.IsPrimaryKey,
				ForeignKey:    c.IsForeignKey,
				NullRate:      c.NullRate,
				DistinctRatio: c.DistinctRatio,
				Patterns:      c.Patterns,
				SemanticTags:  c.SemanticTags,
			}
			if includeSamples {
				ci.Values = capValues(c.Values, maxValues)
				if c.Range != nil {
					ci.Range = c.Range
				}
			}
			out.Columns = append(out.Columns, ci)
		}

		for _, fk := range t.ForeignKeys {
			if relLimit > 0 && len(out.Relationships) >= relLimit {
				break
			}
			out.Relationships = append(out.Relationships, relationshipInfo{
				Column:       fk.Column,
				TargetTable:  fk.TargetTable,
				TargetColumn: fk.TargetColumn,
			})
		}

		return jsonResult(out)
	})
}

func capValues(values []string, limit int) []string {
	if limit > 0 && len(values) > limit {
		return values[:limit]
	}
	return values
}
