// Package datasource defines the driver-facing interfaces of the engine and
// the registry that maps dialects to concrete adapters.
//
// Adapters register themselves from init(); importing an adapter package for
// side effects makes its dialect available, like database/sql drivers.
package datasource

import "context"

// RawTable is one reflected table before profiling.
type RawTable struct {
	Schema      string
	Name        string
	RowEstimate int64
}

// RawColumn is one reflected column. The vendor type name is preserved
// verbatim as a string.
type RawColumn struct {
	Name         string
	DataType     string
	Nullable     bool
	IsPrimaryKey bool
	Ordinal      int
}

// RawForeignKey is one reflected FK constraint column pair.
type RawForeignKey struct {
	ConstraintName string
	SourceSchema   string
	SourceTable    string
	SourceColumn   string
	TargetSchema   string
	TargetTable    string
	TargetColumn   string
}

// SampleRows is the bounded sample drawn from one table.
type SampleRows struct {
	Columns []string
	Rows    [][]any
	// Partial is set when the sample deadline expired before the row
	// budget was reached.
	Partial bool
}

// ColumnDesc describes one result column of an executed query.
type ColumnDesc struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResult is the raw result of a guarded SELECT.
type QueryResult struct {
	Columns []ColumnDesc
	Rows    [][]any
}

// Reflector reads database structure and samples rows. Implementations must
// tolerate individual tables failing; only a fully unreadable database is an
// error.
type Reflector interface {
	// ListTables returns user tables, system schemas already dropped.
	ListTables(ctx context.Context) ([]RawTable, error)

	// ListColumns returns the columns of one table in ordinal order.
	ListColumns(ctx context.Context, schema, table string) ([]RawColumn, error)

	// ListForeignKeys returns all FK constraints visible to the connection.
	ListForeignKeys(ctx context.Context) ([]RawForeignKey, error)

	// Sample draws up to limit rows from a table. On deadline expiry it
	// returns the rows collected so far with Partial set.
	Sample(ctx context.Context, schema, table string, limit int) (*SampleRows, error)

	Close()
}

// Runner executes guarded read-only SELECT statements.
type Runner interface {
	// RunSelect executes sql inside a read-only transaction and fetches at
	// most maxRows rows.
	RunSelect(ctx context.Context, sql string, maxRows int) (*QueryResult, error)

	// Ping verifies the connection is usable.
	Ping(ctx context.Context) error

	Close()
}
