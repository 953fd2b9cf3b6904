// Package postgres implements the datasource adapter for PostgreSQL on top
// of pgx connection pools.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{Dialect: "postgres", DisplayName: "PostgreSQL"},
		NewReflector: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.Reflector, error) {
			pool, err := newPool(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return &reflector{pool: pool, logger: named(logger, "pg-reflector")}, nil
		},
		NewRunner: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.Runner, error) {
			pool, err := newPool(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return &runner{pool: pool, logger: named(logger, "pg-runner")}, nil
		},
	})
}

func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres connection string: %w", err)
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	return pool, nil
}

func named(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}

// qualify builds a safely quoted schema.table identifier.
func qualify(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
