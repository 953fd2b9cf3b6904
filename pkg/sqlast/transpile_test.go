package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranspile_TopToLimit(t *testing.T) {
	s := newTestService()
	res, err := s.Transpile("SELECT TOP 10 name FROM [dbo].[users]", DialectTSQL, DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, `SELECT name FROM "dbo"."users" LIMIT 10`, res.SQL)
}

func TestTranspile_LimitToTop(t *testing.T) {
	s := newTestService()
	res, err := s.Transpile(`SELECT name FROM users LIMIT 5`, DialectPostgres, DialectTSQL)
	require.NoError(t, err)
	assert.Equal(t, "SELECT TOP 5 name FROM users", res.SQL)
}

func TestTranspile_LimitToOracleFetch(t *testing.T) {
	s := newTestService()
	res, err := s.Transpile("SELECT name FROM users LIMIT 5", DialectPostgres, DialectOracle)
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM users FETCH FIRST 5 ROWS ONLY", res.SQL)
}

func TestTranspile_QuoteStyles(t *testing.T) {
	s := newTestService()

	res, err := s.Transpile("SELECT `order`.`id` FROM `order`", DialectMySQL, DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "order"."id" FROM "order"`, res.SQL)

	res, err = s.Transpile(`SELECT "order" FROM t`, DialectPostgres, DialectMySQL)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `order` FROM t", res.SQL)
}

func TestTranspile_FunctionSpellings(t *testing.T) {
	s := newTestService()

	res, err := s.Transpile("SELECT IFNULL(a, 0) FROM t", DialectMySQL, DialectPostgres)
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "COALESCE(a, 0)")

	res, err = s.Transpile("SELECT GETDATE() FROM t", DialectTSQL, DialectPostgres)
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "NOW()")

	res, err = s.Transpile("SELECT NOW() FROM t", DialectPostgres, DialectTSQL)
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "GETDATE()")
}

func TestTranspile_CastWarning(t *testing.T) {
	s := newTestService()
	res, err := s.Transpile("SELECT amount::text FROM orders", DialectPostgres, DialectTSQL)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)
}

func TestTranspile_MultiStatementRejected(t *testing.T) {
	s := newTestService()
	_, err := s.Transpile("SELECT 1; SELECT 2", DialectPostgres, DialectTSQL)
	assert.Error(t, err)
}

func TestDetectStatementDialect(t *testing.T) {
	tests := []struct {
		sql  string
		want Dialect
	}{
		{"SELECT TOP 5 * FROM [users]", DialectTSQL},
		{"SELECT GETDATE()", DialectTSQL},
		{"SELECT `name` FROM `users`", DialectMySQL},
		{"SELECT amount::numeric FROM t", DialectPostgres},
		{"SELECT NVL(a, 0) FROM t", DialectOracle},
		{"SELECT name FROM users LIMIT 5", DialectGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectStatementDialect(tt.sql), tt.sql)
	}
}

func TestAutoTranspile_Idempotent(t *testing.T) {
	s := newTestService()

	once, err := s.Transpile("SELECT TOP 10 name FROM [users]", DialectTSQL, DialectPostgres)
	require.NoError(t, err)

	again, err := s.AutoTranspile(once.SQL, DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, once.SQL, again.SQL)
}
