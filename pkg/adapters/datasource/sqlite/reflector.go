package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
)

// mainSchema is the schema name used on cards for SQLite tables.
const mainSchema = "main"

type reflector struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ datasource.Reflector = (*reflector)(nil)

func (r *reflector) ListTables(ctx context.Context) ([]datasource.RawTable, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]datasource.RawTable, 0, len(names))
	for _, name := range names {
		out = append(out, datasource.RawTable{
			Schema:      mainSchema,
			Name:        name,
			RowEstimate: r.rowEstimate(ctx, name),
		})
	}
	return out, nil
}

// rowEstimate counts rows directly; SQLite keeps no statistics by default
// and the count is cheap enough for local files.
func (r *reflector) rowEstimate(ctx context.Context, table string) int64 {
	var n int64
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qualify(table))
	if err := row.Scan(&n); err != nil {
		r.logger.Debug("row count failed", zap.String("table", table), zap.Error(err))
		return -1
	}
	return n
}

func (r *reflector) ListColumns(ctx context.Context, schema, table string) ([]datasource.RawColumn, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", qualify(table)))
	if err != nil {
		return nil, fmt.Errorf("listing columns of %s: %w", table, err)
	}
	defer rows.Close()

	var out []datasource.RawColumn
	for rows.Next() {
		var (
			cid       int
			name      string
			dataType  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		if dataType == "" {
			dataType = "text"
		}
		out = append(out, datasource.RawColumn{
			Name:         name,
			DataType:     dataType,
			Nullable:     notNull == 0,
			IsPrimaryKey: pk > 0,
			Ordinal:      cid + 1,
		})
	}
	return out, rows.Err()
}

func (r *reflector) ListForeignKeys(ctx context.Context) ([]datasource.RawForeignKey, error) {
	tables, err := r.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	var out []datasource.RawForeignKey
	for _, t := range tables {
		rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", qualify(t.Name)))
		if err != nil {
			r.logger.Debug("foreign key list failed", zap.String("table", t.Name), zap.Error(err))
			continue
		}
		for rows.Next() {
			var (
				id, seq                 int
				refTable, from          string
				to                      sql.NullString
				onUpdate, onDelete, mat string
			)
			if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &mat); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning foreign key row of %s: %w", t.Name, err)
			}
			// to is NULL when the FK references the implicit rowid PK;
			// the builder resolves it to the target's primary key.
			out = append(out, datasource.RawForeignKey{
				ConstraintName: fmt.Sprintf("%s_fk_%d", t.Name, id),
				SourceSchema:   mainSchema,
				SourceTable:    t.Name,
				SourceColumn:   from,
				TargetSchema:   mainSchema,
				TargetTable:    refTable,
				TargetColumn:   to.String,
			})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

func (r *reflector) Sample(ctx context.Context, schema, table string, limit int) (*datasource.SampleRows, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualify(table), limit)
	sample, err := datasource.RunSampleQuery(ctx, r.db, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sampling %s: %w", table, err)
	}
	return sample, nil
}

func (r *reflector) Close() {
	r.db.Close()
}
