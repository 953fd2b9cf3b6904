// Package sqlite implements the datasource adapter for SQLite files via the
// pure-Go modernc.org driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{Dialect: "sqlite", DisplayName: "SQLite"},
		NewReflector: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.Reflector, error) {
			db, err := open(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return &reflector{db: db, logger: named(logger, "sqlite-reflector")}, nil
		},
		NewRunner: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.Runner, error) {
			db, err := open(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return &runner{db: db, logger: named(logger, "sqlite-runner")}, nil
		},
	})
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", normalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// The driver serializes writes anyway; one connection avoids lock
	// contention on file databases.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite database: %w", err)
	}
	return db, nil
}

// normalizeDSN strips the optional sqlite:// prefix used for dialect
// detection; the driver expects a bare path or file: URI.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	return dsn
}

func named(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}

// qualify quotes a table name. SQLite has a single implicit schema, named
// "main" on the card.
func qualify(table string) string {
	return `"` + strings.ReplaceAll(table, `"`, `""`) + `"`
}
