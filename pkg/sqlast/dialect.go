// Package sqlast provides dialect-aware SQL analysis: validation,
// transpilation, metadata extraction and error assistance. It works on a
// token stream rather than a full grammar; the goal is guarded execution and
// guidance, not query planning.
package sqlast

import (
	"fmt"
	"strings"
)

// Dialect names a SQL flavor accepted by the service.
type Dialect string

const (
	DialectGeneric   Dialect = "generic"
	DialectPostgres  Dialect = "postgres"
	DialectMySQL     Dialect = "mysql"
	DialectSQLite    Dialect = "sqlite"
	DialectTSQL      Dialect = "tsql"
	DialectOracle    Dialect = "oracle"
	DialectSnowflake Dialect = "snowflake"
	DialectBigQuery  Dialect = "bigquery"
)

var allDialects = []Dialect{
	DialectGeneric, DialectPostgres, DialectMySQL, DialectSQLite,
	DialectTSQL, DialectOracle, DialectSnowflake, DialectBigQuery,
}

// ParseDialect normalizes a dialect name, accepting common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "generic", "ansi":
		return DialectGeneric, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "tsql", "mssql", "sqlserver":
		return DialectTSQL, nil
	case "oracle":
		return DialectOracle, nil
	case "snowflake":
		return DialectSnowflake, nil
	case "bigquery":
		return DialectBigQuery, nil
	}
	return "", fmt.Errorf("unknown dialect %q (expected one of %s)", s, dialectList())
}

func dialectList() string {
	names := make([]string, len(allDialects))
	for i, d := range allDialects {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}

// identQuote returns the identifier quoting characters of a dialect.
func identQuote(d Dialect) (open, close byte) {
	switch d {
	case DialectMySQL, DialectBigQuery:
		return '`', '`'
	case DialectTSQL:
		return '[', ']'
	default:
		return '"', '"'
	}
}

// usesLimit reports whether the dialect paginates with LIMIT (as opposed to
// TOP or FETCH FIRST).
func usesLimit(d Dialect) bool {
	switch d {
	case DialectTSQL, DialectOracle:
		return false
	default:
		return true
	}
}
