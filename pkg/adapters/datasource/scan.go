package datasource

import (
	"context"
	"database/sql"
	"errors"
)

// ScanAll drains a database/sql result set into a QueryResult, fetching at
// most maxRows rows (0 means unbounded). Both database/sql adapters share
// this; pgx has its own row machinery.
func ScanAll(rows *sql.Rows, maxRows int) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{}
	for i, name := range cols {
		result.Columns = append(result.Columns, ColumnDesc{Name: name, Type: types[i].DatabaseTypeName()})
	}

	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range raw {
			if b, ok := v.([]byte); ok {
				raw[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, raw)
		if maxRows > 0 && len(result.Rows) >= maxRows {
			break
		}
	}
	return result, rows.Err()
}

// RunSampleQuery executes a sampling query and shapes the result, marking
// the sample partial when the deadline expired mid-scan.
func RunSampleQuery(ctx context.Context, db *sql.DB, query string, limit int) (*SampleRows, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, err := ScanAll(rows, limit)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &SampleRows{Partial: true}, nil
		}
		return nil, err
	}
	sample := &SampleRows{Rows: result.Rows}
	for _, c := range result.Columns {
		sample.Columns = append(sample.Columns, c.Name)
	}
	return sample, nil
}
