package guardrail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/sqlast"
)

type fakeRunner struct {
	result  *datasource.QueryResult
	err     error
	lastSQL string
	maxRows int
	calls   int
}

func (f *fakeRunner) RunSelect(_ context.Context, sql string, maxRows int) (*datasource.QueryResult, error) {
	f.calls++
	f.lastSQL = sql
	f.maxRows = maxRows
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRunner) Ping(context.Context) error { return nil }
func (f *fakeRunner) Close()                     {}

func newGuardrail(r *fakeRunner, dialect sqlast.Dialect) *Guardrail {
	svc := sqlast.NewService(zap.NewNop())
	return New(r, svc, dialect, Options{RowLimit: 3, MaxCellChars: 10, Timeout: time.Second}, zap.NewNop())
}

func rowsResult(n int) *datasource.QueryResult {
	qr := &datasource.QueryResult{
		Columns: []datasource.ColumnDesc{{Name: "id", Type: "int8"}},
	}
	for i := 0; i < n; i++ {
		qr.Rows = append(qr.Rows, []any{int64(i)})
	}
	return qr
}

func TestExecuteHappyPath(t *testing.T) {
	r := &fakeRunner{result: rowsResult(2)}
	g := newGuardrail(r, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "SELECT id FROM sales.orders;", nil)
	require.Equal(t, "ok", res.Status)
	assert.Nil(t, res.Error)
	assert.Equal(t, 2, res.RowCount)
	assert.False(t, res.Truncated)
	assert.Equal(t, NextNone, res.NextAction)
	// Probe row requested on top of the limit.
	assert.Equal(t, 4, r.maxRows)
	assert.GreaterOrEqual(t, res.ElapsedMS, int64(0))
}

func TestExecuteRejectsNonSelect(t *testing.T) {
	r := &fakeRunner{}
	g := newGuardrail(r, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "DELETE FROM sales.orders", nil)
	require.Equal(t, "error", res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperrors.CodeNonSelectStatement, res.Error.Code)
	assert.Zero(t, r.calls, "rejected statements must never reach the driver")
}

func TestExecuteRejectsCTEWrappedDML(t *testing.T) {
	r := &fakeRunner{}
	g := newGuardrail(r, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "WITH doomed AS (SELECT 1) DELETE FROM sales.orders", nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperrors.CodeNonSelectStatement, res.Error.Code)
	assert.Zero(t, r.calls)
}

func TestExecuteRejectsMultiStatement(t *testing.T) {
	r := &fakeRunner{}
	g := newGuardrail(r, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "SELECT 1; SELECT 2", nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperrors.CodeMultiStatement, res.Error.Code)
	assert.Zero(t, r.calls)
}

func TestExecuteAllowsTrailingSemicolon(t *testing.T) {
	r := &fakeRunner{result: rowsResult(1)}
	g := newGuardrail(r, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "SELECT 1;  ", nil)
	assert.Equal(t, "ok", res.Status)
}

func TestExecuteEmptyQuery(t *testing.T) {
	g := newGuardrail(&fakeRunner{}, sqlast.DialectPostgres)
	res := g.Execute(context.Background(), "   ;", nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperrors.CodeEmptyQuery, res.Error.Code)
}

func TestExecuteTranspilesToActiveDialect(t *testing.T) {
	r := &fakeRunner{result: rowsResult(1)}
	g := newGuardrail(r, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "SELECT TOP 5 id FROM dbo.orders", nil)
	require.Equal(t, "ok", res.Status)
	assert.Contains(t, r.lastSQL, "LIMIT 5")
	assert.NotContains(t, r.lastSQL, "TOP")
}

func TestExecuteTruncation(t *testing.T) {
	r := &fakeRunner{result: rowsResult(4)} // limit 3 + probe row
	g := newGuardrail(r, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "SELECT id FROM sales.orders", nil)
	require.Equal(t, "ok", res.Status)
	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, NextPaginate, res.NextAction)
	assert.Contains(t, res.Notes, apperrors.CodeResultTruncated)
}

func TestExecuteCellTruncation(t *testing.T) {
	qr := &datasource.QueryResult{
		Columns: []datasource.ColumnDesc{{Name: "body", Type: "text"}},
		Rows:    [][]any{{strings.Repeat("x", 50)}},
	}
	g := newGuardrail(&fakeRunner{result: qr}, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "SELECT body FROM app.notes", nil)
	require.Equal(t, "ok", res.Status)
	assert.True(t, res.CellsTruncated)
	cell := res.Rows[0][0].(string)
	assert.True(t, strings.HasPrefix(cell, "xxxxxxxxxx"))
	assert.Less(t, len(cell), 50)
}

func TestExecuteCellTruncationRuneBoundary(t *testing.T) {
	// 9 ASCII bytes then multi-byte runes, so the byte cut lands inside a rune.
	qr := &datasource.QueryResult{
		Columns: []datasource.ColumnDesc{{Name: "body", Type: "text"}},
		Rows:    [][]any{{strings.Repeat("x", 9) + strings.Repeat("é", 20)}},
	}
	g := newGuardrail(&fakeRunner{result: qr}, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "SELECT body FROM app.notes", nil)
	require.Equal(t, "ok", res.Status)
	assert.True(t, res.CellsTruncated)
	cell := res.Rows[0][0].(string)
	assert.True(t, utf8.ValidString(cell))
	assert.Equal(t, strings.Repeat("x", 9)+"…", cell)
}

func TestExecuteTimeout(t *testing.T) {
	r := &fakeRunner{err: context.DeadlineExceeded}
	g := newGuardrail(r, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "SELECT id FROM sales.orders", nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperrors.CodeTimeout, res.Error.Code)
	assert.Equal(t, NextRefinePlan, res.NextAction)
}

func TestExecuteUnresolvedIdentifierWithAssist(t *testing.T) {
	r := &fakeRunner{err: errors.New(`ERROR: column "custmr_id" does not exist`)}
	g := newGuardrail(r, sqlast.DialectPostgres)
	names := &sqlast.SchemaNames{
		Tables:  []string{"sales.orders"},
		Columns: map[string][]string{"sales.orders": {"id", "customer_id"}},
	}

	res := g.Execute(context.Background(), "SELECT custmr_id FROM sales.orders", names)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperrors.CodeUnresolvedIdentifier, res.Error.Code)
	assert.Equal(t, apperrors.CategoryParse, res.Error.Category)
	assert.Equal(t, NextRefinePlan, res.NextAction)

	var hinted bool
	for _, h := range res.Error.Hints {
		if strings.Contains(h, "customer_id") {
			hinted = true
		}
	}
	assert.True(t, hinted, "expected a fuzzy-match hint for customer_id")
}

func TestExecuteDriverErrorFallback(t *testing.T) {
	r := &fakeRunner{err: errors.New("connection reset by peer")}
	g := newGuardrail(r, sqlast.DialectPostgres)

	res := g.Execute(context.Background(), "SELECT id FROM sales.orders", nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperrors.CodeDriverError, res.Error.Code)
	assert.Equal(t, apperrors.CategoryRuntime, res.Error.Category)
}

func TestStringLiterals(t *testing.T) {
	lits := stringLiterals(`SELECT * FROM t WHERE a = 'x' AND b = 'it''s'`)
	assert.Equal(t, []string{"x", "it's"}, lits)
}
