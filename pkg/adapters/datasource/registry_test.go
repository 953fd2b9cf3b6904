package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"postgres url", "postgres://user:pw@host:5432/db", "postgres"},
		{"postgresql url", "postgresql://host/db", "postgres"},
		{"sqlserver url", "sqlserver://sa:pw@host?database=db", "tsql"},
		{"ado style", "Server=host;Database=db;User Id=sa;Password=pw", "tsql"},
		{"sqlite url", "sqlite://warehouse.db", "sqlite"},
		{"sqlite file uri", "file:warehouse.db?mode=ro", "sqlite"},
		{"bare db path", "./data/warehouse.db", "sqlite"},
		{"sqlite3 extension", "warehouse.sqlite3", "sqlite"},
		{"memory", ":memory:", "sqlite"},
		{"unknown", "mysql://host/db", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDialect(tt.dsn))
		})
	}
}

func TestLookup_Unregistered(t *testing.T) {
	_, err := Lookup("no-such-dialect")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no adapter registered")
}
