package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
	"github.com/querylens/querylens-engine/pkg/logging"
)

type runner struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ datasource.Runner = (*runner)(nil)

func (r *runner) RunSelect(ctx context.Context, sql string, maxRows int) (*datasource.QueryResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	r.logger.Debug("executing query", zap.String("sql", logging.SanitizeQuery(sql)))

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &datasource.QueryResult{}
	for _, fd := range rows.FieldDescriptions() {
		result.Columns = append(result.Columns, datasource.ColumnDesc{
			Name: string(fd.Name),
			Type: pgTypeName(fd.DataTypeOID),
		})
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, vals)
		if maxRows > 0 && len(result.Rows) >= maxRows {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *runner) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *runner) Close() {
	r.pool.Close()
}

// pgTypeName maps the common PostgreSQL type OIDs to their names. Extension
// types fall through to the numeric form.
func pgTypeName(oid uint32) string {
	switch oid {
	case 16:
		return "bool"
	case 17:
		return "bytea"
	case 20:
		return "int8"
	case 21:
		return "int2"
	case 23:
		return "int4"
	case 25:
		return "text"
	case 114:
		return "json"
	case 700:
		return "float4"
	case 701:
		return "float8"
	case 790:
		return "money"
	case 1042:
		return "bpchar"
	case 1043:
		return "varchar"
	case 1082:
		return "date"
	case 1083:
		return "time"
	case 1114:
		return "timestamp"
	case 1184:
		return "timestamptz"
	case 1186:
		return "interval"
	case 1700:
		return "numeric"
	case 2950:
		return "uuid"
	case 3802:
		return "jsonb"
	default:
		return fmt.Sprintf("oid(%d)", oid)
	}
}
