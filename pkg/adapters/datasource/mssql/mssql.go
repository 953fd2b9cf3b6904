// Package mssql implements the datasource adapter for SQL Server via the
// go-mssqldb database/sql driver.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{Dialect: "tsql", DisplayName: "SQL Server"},
		NewReflector: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.Reflector, error) {
			db, err := open(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return &reflector{db: db, logger: named(logger, "mssql-reflector")}, nil
		},
		NewRunner: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.Runner, error) {
			db, err := open(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return &runner{db: db, logger: named(logger, "mssql-runner")}, nil
		},
	})
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlserver connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlserver: %w", err)
	}
	return db, nil
}

func named(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}

// qualify builds a bracket-quoted schema.table identifier.
func qualify(schema, table string) string {
	esc := func(s string) string {
		return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
	}
	return esc(schema) + "." + esc(table)
}
