package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
	"github.com/querylens/querylens-engine/pkg/logging"
)

type runner struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ datasource.Runner = (*runner)(nil)

func (r *runner) RunSelect(ctx context.Context, query string, maxRows int) (*datasource.QueryResult, error) {
	// The driver rejects the ReadOnly transaction flag; statement-level
	// SELECT-only screening upstream covers write protection.
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	r.logger.Debug("executing query", zap.String("sql", logging.SanitizeQuery(query)))

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return datasource.ScanAll(rows, maxRows)
}

func (r *runner) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *runner) Close() {
	r.db.Close()
}
