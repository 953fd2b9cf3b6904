package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
)

type reflector struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ datasource.Reflector = (*reflector)(nil)

const listTablesQuery = `
SELECT s.name, t.name, ISNULL(p.rows, 0)
FROM sys.tables t
JOIN sys.schemas s ON s.schema_id = t.schema_id
LEFT JOIN (
    SELECT object_id, SUM(rows) AS rows
    FROM sys.partitions
    WHERE index_id IN (0, 1)
    GROUP BY object_id
) p ON p.object_id = t.object_id
WHERE s.name NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest')
ORDER BY s.name, t.name`

func (r *reflector) ListTables(ctx context.Context) ([]datasource.RawTable, error) {
	rows, err := r.db.QueryContext(ctx, listTablesQuery)
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
SELECT c.COLUMN_NAME,
       c.DATA_TYPE,
       CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END,
       c.ORDINAL_POSITION,
       CASE WHEN pk.COLUMN_NAME IS NULL THEN 0 ELSE 1 END
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN (
    SELECT kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.COLUMN_NAME
    FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
      ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
     AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
    WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
) pk ON pk.TABLE_SCHEMA = c.TABLE_SCHEMA
    AND pk.TABLE_NAME = c.TABLE_NAME
    AND pk.COLUMN_NAME = c.COLUMN_NAME
WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
ORDER BY c.ORDINAL_POSITION`

func (r *reflector) ListColumns(ctx context.Context, schema, table string) ([]datasource.RawColumn, error) {
	rows, err := r.db.QueryContext(ctx, listColumnsQuery, schema, table)
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
SELECT fk.name,
       ss.name, st.name, sc.name,
       ts.name, tt.name, tc.name
FROM sys.foreign_key_columns fkc
JOIN sys.foreign_keys fk ON fk.object_id = fkc.constraint_object_id
JOIN sys.tables st ON st.object_id = fkc.parent_object_id
JOIN sys.schemas ss ON ss.schema_id = st.schema_id
JOIN sys.columns sc ON sc.object_id = fkc.parent_object_id AND sc.column_id = fkc.parent_column_id
JOIN sys.tables tt ON tt.object_id = fkc.referenced_object_id
JOIN sys.schemas ts ON ts.schema_id = tt.schema_id
JOIN sys.columns tc ON tc.object_id = fkc.referenced_object_id AND tc.column_id = fkc.referenced_column_id
ORDER BY fk.name, fkc.constraint_column_id`

func (r *reflector) ListForeignKeys(ctx context.Context) ([]datasource.RawForeignKey, error) {
	rows, err := r.db.QueryContext(ctx, listForeignKeysQuery)
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
	query := fmt.Sprintf("SELECT TOP %d * FROM %s", limit, qualify(schema, table))
	sample, err := datasource.RunSampleQuery(ctx, r.db, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sampling %s.%s: %w", schema, table, err)
	}
	return sample, nil
}

func (r *reflector) Close() {
	r.db.Close()
}
