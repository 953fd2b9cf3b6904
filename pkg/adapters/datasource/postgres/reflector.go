package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
)

type reflector struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ datasource.Reflector = (*reflector)(nil)

const listTablesQuery = `
SELECT c.relnamespace::regnamespace::text AS schema_name,
       c.relname AS table_name,
       GREATEST(c.reltuples, 0)::bigint AS row_estimate
FROM pg_class c
WHERE c.relkind IN ('r', 'p')
  AND c.relnamespace::regnamespace::text NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
ORDER BY schema_name, table_name`

func (r *reflector) ListTables(ctx context.Context) ([]datasource.RawTable, error) {
	rows, err := r.pool.Query(ctx, listTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var out []datasource.RawTable
	for rows.Next() {
		var t datasource.RawTable
		if err := rows.Scan(&t.Schema, &t.Name, &t.RowEstimate); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const listColumnsQuery = `
SELECT c.column_name,
       c.data_type,
       c.is_nullable = 'YES',
       c.ordinal_position,
       EXISTS (
           SELECT 1
           FROM information_schema.table_constraints tc
           JOIN information_schema.key_column_usage kcu
             ON kcu.constraint_name = tc.constraint_name
            AND kcu.table_schema = tc.table_schema
           WHERE tc.constraint_type = 'PRIMARY KEY'
             AND tc.table_schema = c.table_schema
             AND tc.table_name = c.table_name
             AND kcu.column_name = c.column_name
       ) AS is_pk
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

func (r *reflector) ListColumns(ctx context.Context, schema, table string) ([]datasource.RawColumn, error) {
	rows, err := r.pool.Query(ctx, listColumnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("listing columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var out []datasource.RawColumn
	for rows.Next() {
		var c datasource.RawColumn
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.Ordinal, &c.IsPrimaryKey); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const listForeignKeysQuery = `
SELECT tc.constraint_name,
       tc.table_schema,
       tc.table_name,
       kcu.column_name,
       ccu.table_schema,
       ccu.table_name,
       ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name
 AND kcu.table_schema = tc.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name
 AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
ORDER BY tc.constraint_name, kcu.ordinal_position`

func (r *reflector) ListForeignKeys(ctx context.Context) ([]datasource.RawForeignKey, error) {
	rows, err := r.pool.Query(ctx, listForeignKeysQuery)
	if err != nil {
		return nil, fmt.Errorf("listing foreign keys: %w", err)
	}
	defer rows.Close()

	var out []datasource.RawForeignKey
	for rows.Next() {
		var fk datasource.RawForeignKey
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scanning foreign key row: %w", err)
		}
		out = append(out, fk)
	}
	return out, rows.Err()
}

func (r *reflector) Sample(ctx context.Context, schema, table string, limit int) (*datasource.SampleRows, error) {
	// TABLESAMPLE keeps big tables cheap; the fallback LIMIT scan covers
	// small tables where the bernoulli sample often returns nothing.
	query := fmt.Sprintf("SELECT * FROM %s TABLESAMPLE SYSTEM (5) LIMIT %d", qualify(schema, table), limit)
	sample, err := r.sampleQuery(ctx, query, limit)
	if err == nil && len(sample.Rows) > 0 {
		return sample, nil
	}
	query = fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualify(schema, table), limit)
	sample, err = r.sampleQuery(ctx, query, limit)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &datasource.SampleRows{Partial: true}, nil
		}
		return nil, fmt.Errorf("sampling %s.%s: %w", schema, table, err)
	}
	return sample, nil
}

func (r *reflector) sampleQuery(ctx context.Context, query string, limit int) (*datasource.SampleRows, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &datasource.SampleRows{}
	for _, fd := range rows.FieldDescriptions() {
		out.Columns = append(out.Columns, string(fd.Name))
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out.Rows = append(out.Rows, vals)
		if len(out.Rows) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.Partial = true
			return out, nil
		}
		return nil, err
	}
	return out, nil
}

func (r *reflector) Close() {
	r.pool.Close()
}
