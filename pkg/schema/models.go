// Package schema builds and holds the schema card: the profiled, graphed and
// classified snapshot of a target database that every other component reads.
package schema

import (
	"fmt"
	"sort"
	"time"
)

// ColumnRole classifies what a column is for.
type ColumnRole string

const (
	RoleKey      ColumnRole = "key"
	RoleID       ColumnRole = "id"
	RoleDate     ColumnRole = "date"
	RoleMetric   ColumnRole = "metric"
	RoleCategory ColumnRole = "category"
	RoleText     ColumnRole = "text"
)

// Archetype classifies a table in the dimensional-modeling sense.
type Archetype string

const (
	ArchetypeFact        Archetype = "fact"
	ArchetypeDimension   Archetype = "dimension"
	ArchetypeBridge      Archetype = "bridge"
	ArchetypeReference   Archetype = "reference"
	ArchetypeOperational Archetype = "operational"
)

// FKTarget points at the referenced column of a foreign key.
type FKTarget struct {
	TableKey string `json:"table_key"`
	Column   string `json:"column"`
}

// ValueRange is the sampled (min, max) of a numeric or date column, kept in
// string form so the card serializes the same across drivers.
type ValueRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// ColumnProfile carries everything derived about one column.
type ColumnProfile struct {
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Nullable     bool      `json:"nullable"`
	IsPrimaryKey bool      `json:"is_primary_key"`
	IsForeignKey bool      `json:"is_foreign_key"`
	FK           *FKTarget `json:"fk,omitempty"`

	NullRate      *float64 `json:"null_rate,omitempty"`
	DistinctRatio *float64 `json:"distinct_ratio,omitempty"`

	Patterns     []string   `json:"patterns,omitempty"`
	SemanticTags []string   `json:"semantic_tags,omitempty"`
	Role         ColumnRole `json:"role"`

	// Values is populated only for low-cardinality columns.
	Values []string    `json:"values,omitempty"`
	Range  *ValueRange `json:"range,omitempty"`
}

// FKEdge is an outgoing foreign key of a table.
type FKEdge struct {
	Column       string `json:"column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
}

// TableProfile carries everything derived about one table.
type TableProfile struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`

	Columns     []*ColumnProfile `json:"columns"`
	PKColumns   []string         `json:"pk_columns,omitempty"`
	ForeignKeys []FKEdge         `json:"foreign_keys,omitempty"`

	RowEstimate    int64 `json:"row_estimate"`
	RowsSampled    int   `json:"rows_sampled"`
	SampledPartial bool  `json:"sampled_partial,omitempty"`

	Archetype   Archetype `json:"archetype"`
	Summary     string    `json:"summary"`
	SubjectArea string    `json:"subject_area"`
	Centrality  float64   `json:"centrality"`

	MetricCount int  `json:"metric_count"`
	DateCount   int  `json:"date_count"`
	IsArchive   bool `json:"is_archive,omitempty"`
	IsAuditLike bool `json:"is_audit_like,omitempty"`
}

// Key returns the canonical "<schema>.<name>" table key.
func (t *TableProfile) Key() string {
	return TableKey(t.Schema, t.Name)
}

// TableKey builds the canonical table key.
func TableKey(schema, name string) string {
	return fmt.Sprintf("%s.%s", schema, name)
}

// Column finds a column profile by name, nil when absent.
func (t *TableProfile) Column(name string) *ColumnProfile {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnsByRole returns the columns holding any of the given roles, in
// declaration order.
func (t *TableProfile) ColumnsByRole(roles ...ColumnRole) []*ColumnProfile {
	var out []*ColumnProfile
	for _, c := range t.Columns {
		for _, r := range roles {
			if c.Role == r {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// SubjectArea groups related tables discovered by community detection.
type SubjectArea struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Tables  []string `json:"tables"`
	Summary string   `json:"summary"`
}

// GraphEdge is one undirected FK edge of the card-level graph.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// BuildMeta records how a card was produced.
type BuildMeta struct {
	Version          string `json:"version"`
	ColumnEmbeddings bool   `json:"column_embeddings"`
	FastStart        bool   `json:"fast_start"`
}

// Card is the immutable root snapshot. Once installed it is never mutated;
// enrichment builds a new card and swaps the pointer.
type Card struct {
	Dialect           string                  `json:"dialect"`
	TargetFingerprint string                  `json:"target_fingerprint"`
	Schemas           []string                `json:"schemas"`
	SubjectAreas      map[string]*SubjectArea `json:"subject_areas"`
	Tables            map[string]*TableProfile `json:"tables"`
	Edges             []GraphEdge             `json:"edges"`
	BuiltAt           time.Time               `json:"built_at"`
	ReflectionHash    string                  `json:"reflection_hash"`
	Meta              BuildMeta               `json:"meta"`

	// Warnings collected during partial reflection or sampling.
	Warnings []string `json:"warnings,omitempty"`
}

// Table resolves a table key, nil when absent.
func (c *Card) Table(key string) *TableProfile {
	return c.Tables[key]
}

// TableKeys returns all table keys sorted.
func (c *Card) TableKeys() []string {
	keys := make([]string, 0, len(c.Tables))
	for k := range c.Tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Neighbors returns the adjacent table keys of the FK graph for one table.
func (c *Card) Neighbors(key string) []string {
	var out []string
	for _, e := range c.Edges {
		switch key {
		case e.Source:
			out = append(out, e.Target)
		case e.Target:
			out = append(out, e.Source)
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks the card invariants: every FK target resolves and every
// table belongs to exactly one subject area.
func (c *Card) Validate() error {
	for key, t := range c.Tables {
		for _, fk := range t.ForeignKeys {
			target, ok := c.Tables[fk.TargetTable]
			if !ok {
				return fmt.Errorf("table %s: FK target %s not in card", key, fk.TargetTable)
			}
			if target.Column(fk.TargetColumn) == nil {
				return fmt.Errorf("table %s: FK target column %s.%s not in card", key, fk.TargetTable, fk.TargetColumn)
			}
		}
	}
	seen := make(map[string]string)
	for id, area := range c.SubjectAreas {
		for _, key := range area.Tables {
			if prev, dup := seen[key]; dup {
				return fmt.Errorf("table %s in subject areas %s and %s", key, prev, id)
			}
			seen[key] = id
			if _, ok := c.Tables[key]; !ok {
				return fmt.Errorf("subject area %s references unknown table %s", id, key)
			}
		}
	}
	for key := range c.Tables {
		if _, ok := seen[key]; !ok {
			return fmt.Errorf("table %s not assigned to any subject area", key)
		}
	}
	return nil
}
