package tools

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type subjectAreaSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Summary    string   `json:"summary,omitempty"`
	TableCount int      `json:"table_count"`
	Tables     []string `json:"tables"`
}

type overviewResult struct {
	Dialect      string               `json:"dialect"`
	Schemas      []string             `json:"schemas"`
	TableCount   int                  `json:"table_count"`
	SubjectAreas []subjectAreaSummary `json:"subject_areas,omitempty"`
	Warnings     []string             `json:"warnings,omitempty"`
}

// RegisterOverviewTool adds get_database_overview.
func RegisterOverviewTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_database_overview",
		mcp.WithDescription(
			"Returns a high-level map of the database: schemas, subject areas "+
				"with their tables, and build warnings. Use this to orient before "+
				"planning queries.",
		),
		mcp.WithBoolean("include_subject_areas",
			mcp.Description("Include the subject-area breakdown (default false)"),
		),
		mcp.WithNumber("area_limit",
			mcp.Description("Maximum subject areas returned (default 8)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if te := requireReady(deps); te != nil {
			return errorResult(te)
		}
		card := deps.Coordinator.Card()

		var areas []subjectAreaSummary
		if boolArg(req, "include_subject_areas", false) {
			areas = make([]subjectAreaSummary, 0, len(card.SubjectAreas))
			for id, area := range card.SubjectAreas {
				tables := append([]string(nil), area.Tables...)
				sort.Strings(tables)
				areas = append(areas, subjectAreaSummary{
					ID:         id,
					Name:       area.Name,
					Summary:    area.Summary,
					TableCount: len(tables),
					Tables:     tables,
				})
			}
			sort.Slice(areas, func(i, j int) bool {
				if areas[i].TableCount != areas[j].TableCount {
					return areas[i].TableCount > areas[j].TableCount
				}
				return areas[i].ID < areas[j].ID
			})
			if limit := intArg(req, "area_limit", 8); len(areas) > limit {
				areas = areas[:limit]
			}
		}

		return jsonResult(overviewResult{
			Dialect:      card.Dialect,
			Schemas:      card.Schemas,
			TableCount:   len(card.Tables),
			SubjectAreas: areas,
			Warnings:     card.Warnings,
		})
	})
}
