package schema

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
)

// BuildOptions control one card build.
type BuildOptions struct {
	Dialect           string
	TargetFingerprint string

	IncludeSchemas []string
	ExcludeSchemas []string

	// MaxTables caps the build scope; 0 means unbounded. The cap is applied
	// after sorting, so repeated builds cover the same prefix.
	MaxTables int

	SampleRows    int
	SampleTimeout time.Duration
	// SkipSampling builds a structure-only card (fast-start).
	SkipSampling bool

	Version   string
	FastStart bool
}

// Build reflects the database and assembles a complete card. Individual
// tables failing reflection or sampling produce warnings, not errors; only
// a database with tables where none can be reflected fails.
func Build(ctx context.Context, refl datasource.Reflector, opts BuildOptions, logger *zap.Logger) (*Card, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("card-build")
	start := time.Now()

	raw, err := refl.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("reflecting tables: %w", err)
	}
	raw = filterTables(raw, opts)

	var warnings []string
	tables := make(map[string]*TableProfile, len(raw))
	for _, rt := range raw {
		cols, err := refl.ListColumns(ctx, rt.Schema, rt.Name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped %s.%s: %v", rt.Schema, rt.Name, err))
			logger.Warn("table reflection failed",
				zap.String("table", TableKey(rt.Schema, rt.Name)), zap.Error(err))
			continue
		}
		tables[TableKey(rt.Schema, rt.Name)] = newTableProfile(rt, cols)
	}
	if len(tables) == 0 && len(raw) > 0 {
		return nil, fmt.Errorf("reflection failed for all %d tables", len(raw))
	}

	attachForeignKeys(ctx, refl, tables, logger)

	for _, key := range sortedKeys(tables) {
		t := tables[key]
		var sample *Sample
		if !opts.SkipSampling {
			sample = drawSample(ctx, refl, t, opts, logger)
			if sample != nil && sample.Partial {
				warnings = append(warnings, fmt.Sprintf("partial sample for %s", key))
			}
		}
		ProfileColumns(t, sample)
	}

	ClassifyTables(tables)

	graph := BuildGraph(tables)
	centrality := graph.Centrality()
	areas := BuildSubjectAreas(graph, tables, centrality)
	for _, area := range areas {
		for _, key := range area.Tables {
			tables[key].SubjectArea = area.ID
			tables[key].Centrality = centrality[key]
		}
	}
	Summarize(tables, areas)

	card := &Card{
		Dialect:           opts.Dialect,
		TargetFingerprint: opts.TargetFingerprint,
		Schemas:           schemaList(tables),
		SubjectAreas:      areas,
		Tables:            tables,
		Edges:             graph.Edges(),
		BuiltAt:           time.Now().UTC(),
		ReflectionHash:    ReflectionHash(tables, opts.Dialect),
		Meta: BuildMeta{
			Version:   opts.Version,
			FastStart: opts.FastStart,
		},
		Warnings: warnings,
	}
	if err := card.Validate(); err != nil {
		return nil, fmt.Errorf("card invariant violated: %w", err)
	}

	logger.Info("card built",
		zap.Int("tables", len(tables)),
		zap.Int("areas", len(areas)),
		zap.String("reflection_hash", card.ReflectionHash),
		zap.Duration("elapsed", time.Since(start)))
	return card, nil
}

func newTableProfile(rt datasource.RawTable, cols []datasource.RawColumn) *TableProfile {
	t := &TableProfile{
		Schema:      rt.Schema,
		Name:        rt.Name,
		RowEstimate: rt.RowEstimate,
	}
	for _, rc := range cols {
		cp := &ColumnProfile{
			Name:         rc.Name,
			Type:         rc.DataType,
			Nullable:     rc.Nullable,
			IsPrimaryKey: rc.IsPrimaryKey,
		}
		t.Columns = append(t.Columns, cp)
		if rc.IsPrimaryKey {
			t.PKColumns = append(t.PKColumns, rc.Name)
		}
	}
	return t
}

func attachForeignKeys(ctx context.Context, refl datasource.Reflector, tables map[string]*TableProfile, logger *zap.Logger) {
	fks, err := refl.ListForeignKeys(ctx)
	if err != nil {
		logger.Warn("foreign key reflection failed", zap.Error(err))
		return
	}
	for _, fk := range fks {
		srcKey := TableKey(fk.SourceSchema, fk.SourceTable)
		dstKey := TableKey(fk.TargetSchema, fk.TargetTable)
		src, okS := tables[srcKey]
		dst, okD := tables[dstKey]
		if !okS || !okD {
			continue
		}
		targetCol := fk.TargetColumn
		if targetCol == "" && len(dst.PKColumns) > 0 {
			targetCol = dst.PKColumns[0]
		}
		if dst.Column(targetCol) == nil {
			continue
		}
		src.ForeignKeys = append(src.ForeignKeys, FKEdge{
			Column:       fk.SourceColumn,
			TargetTable:  dstKey,
			TargetColumn: targetCol,
		})
		if col := src.Column(fk.SourceColumn); col != nil {
			col.IsForeignKey = true
			col.FK = &FKTarget{TableKey: dstKey, Column: targetCol}
		}
	}
}

func drawSample(ctx context.Context, refl datasource.Reflector, t *TableProfile, opts BuildOptions, logger *zap.Logger) *Sample {
	timeout := opts.SampleTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := refl.Sample(sctx, t.Schema, t.Name, opts.SampleRows)
	if err != nil {
		logger.Debug("sampling failed", zap.String("table", t.Key()), zap.Error(err))
		return nil
	}
	return &Sample{Columns: rows.Columns, Rows: rows.Rows, Partial: rows.Partial}
}

func filterTables(raw []datasource.RawTable, opts BuildOptions) []datasource.RawTable {
	include := toSet(opts.IncludeSchemas)
	exclude := toSet(opts.ExcludeSchemas)
	for _, s := range SystemSchemas(opts.Dialect) {
		exclude[s] = struct{}{}
	}

	var out []datasource.RawTable
	for _, t := range raw {
		if _, drop := exclude[t.Schema]; drop {
			continue
		}
		if len(include) > 0 {
			if _, keep := include[t.Schema]; !keep {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Schema != out[j].Schema {
			return out[i].Schema < out[j].Schema
		}
		return out[i].Name < out[j].Name
	})
	if opts.MaxTables > 0 && len(out) > opts.MaxTables {
		out = out[:opts.MaxTables]
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

func sortedKeys(tables map[string]*TableProfile) []string {
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func schemaList(tables map[string]*TableProfile) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range tables {
		if _, ok := seen[t.Schema]; !ok {
			seen[t.Schema] = struct{}{}
			out = append(out, t.Schema)
		}
	}
	sort.Strings(out)
	return out
}
