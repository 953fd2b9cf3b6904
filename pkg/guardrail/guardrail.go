// Package guardrail wraps query execution in the safety pipeline: SELECT-only
// screening, dialect transpilation, validation, read-only execution, and
// result shaping with truncation.
package guardrail

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	libinjection "github.com/corazawaf/libinjection-go"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/logging"
	"github.com/querylens/querylens-engine/pkg/sqlast"
)

// Next-action advisories returned with every execute result.
const (
	NextNone       = "none"
	NextRefinePlan = "refine_plan"
	NextPaginate   = "paginate"
)

// Options bound one execution.
type Options struct {
	RowLimit     int
	MaxCellChars int
	Timeout      time.Duration
}

// Result is the shaped outcome of one guarded execution.
type Result struct {
	SQL            string                  `json:"sql"`
	Notes          []string                `json:"notes,omitempty"`
	Columns        []datasource.ColumnDesc `json:"columns,omitempty"`
	Rows           [][]any                 `json:"rows,omitempty"`
	RowCount       int                     `json:"row_count"`
	Truncated      bool                    `json:"truncated"`
	CellsTruncated bool                    `json:"cells_truncated"`
	ElapsedMS      int64                   `json:"elapsed_ms"`
	Status         string                  `json:"status"`
	Error          *apperrors.ToolError    `json:"error,omitempty"`
	NextAction     string                  `json:"next_action"`
}

// Guardrail executes SELECT statements against one runner under one dialect.
type Guardrail struct {
	runner  datasource.Runner
	svc     *sqlast.Service
	dialect sqlast.Dialect
	opts    Options
	logger  *zap.Logger
}

func New(runner datasource.Runner, svc *sqlast.Service, dialect sqlast.Dialect, opts Options, logger *zap.Logger) *Guardrail {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RowLimit <= 0 {
		opts.RowLimit = 500
	}
	if opts.MaxCellChars <= 0 {
		opts.MaxCellChars = 2000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Guardrail{
		runner:  runner,
		svc:     svc,
		dialect: dialect,
		opts:    opts,
		logger:  logger.Named("guardrail"),
	}
}

// Execute runs the full pipeline, rejecting on the first failed step. names
// feeds fuzzy identifier suggestions on driver errors and may be nil.
func (g *Guardrail) Execute(ctx context.Context, sql string, names *sqlast.SchemaNames) *Result {
	res := &Result{SQL: sql, Status: "error", NextAction: NextNone}
	started := time.Now()
	defer func() { res.ElapsedMS = time.Since(started).Milliseconds() }()

	trimmed := strings.TrimRight(strings.TrimSpace(sql), "; \t\n")
	if trimmed == "" {
		res.Error = apperrors.New(apperrors.CategoryInput, apperrors.CodeEmptyQuery, "query text is empty")
		return res
	}

	if fail := g.screenStatement(trimmed); fail != nil {
		res.Error = fail
		return res
	}

	transpiled, fail := g.transpile(trimmed, names)
	if fail != nil {
		res.Error = fail
		res.NextAction = NextRefinePlan
		return res
	}
	res.SQL = transpiled.SQL
	res.Notes = append(res.Notes, transpiled.Warnings...)

	validation := g.svc.Validate(res.SQL, g.dialect)
	if !validation.Valid {
		res.Error = apperrors.New(apperrors.CategoryParse, apperrors.CodeParseError, validation.Error)
		res.NextAction = NextRefinePlan
		return res
	}
	res.SQL = validation.Normalized
	res.Notes = append(res.Notes, validation.Notes...)
	res.Notes = append(res.Notes, g.screenLiterals(res.SQL)...)

	execCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	qr, err := g.runner.RunSelect(execCtx, res.SQL, g.opts.RowLimit+1)
	if err != nil {
		res.Error = g.mapDriverError(res.SQL, err, names)
		res.NextAction = NextRefinePlan
		g.logger.Debug("execution rejected",
			zap.String("code", res.Error.Code),
			zap.String("query", logging.SanitizeQuery(res.SQL)))
		return res
	}

	res.Columns = qr.Columns
	res.Rows = qr.Rows
	if len(res.Rows) > g.opts.RowLimit {
		res.Rows = res.Rows[:g.opts.RowLimit]
		res.Truncated = true
		res.NextAction = NextPaginate
		res.Notes = append(res.Notes, apperrors.CodeResultTruncated)
	}
	res.CellsTruncated = truncateCells(res.Rows, g.opts.MaxCellChars)
	res.RowCount = len(res.Rows)
	res.Status = "ok"
	res.Error = nil
	return res
}

// screenStatement enforces the single-SELECT rule before anything touches
// the driver.
func (g *Guardrail) screenStatement(sql string) *apperrors.ToolError {
	count, err := g.svc.StatementCount(sql, g.dialect)
	if err != nil {
		return apperrors.New(apperrors.CategoryParse, apperrors.CodeParseError, err.Error())
	}
	if count > 1 {
		return apperrors.New(apperrors.CategorySafety, apperrors.CodeMultiStatement,
			"only a single statement is allowed per execution")
	}
	kind, err := g.svc.RootKind(sql, g.dialect)
	if err != nil {
		return apperrors.New(apperrors.CategoryParse, apperrors.CodeParseError, err.Error())
	}
	if kind != sqlast.KindSelect {
		return apperrors.Newf(apperrors.CategorySafety, apperrors.CodeNonSelectStatement,
			"statement root is %s; only SELECT is allowed", kind)
	}
	return nil
}

func (g *Guardrail) transpile(sql string, names *sqlast.SchemaNames) (*sqlast.TranspileResult, *apperrors.ToolError) {
	tr, err := g.svc.AutoTranspile(sql, g.dialect)
	if err != nil {
		te := apperrors.New(apperrors.CategoryParse, apperrors.CodeParseError, err.Error())
		if assist := g.svc.AssistError(sql, err.Error(), g.dialect, names); assist != nil {
			te = te.WithHints(assist.Hints...)
		}
		return nil, te
	}
	return tr, nil
}

// screenLiterals scans string literals for injection fingerprints. A match is
// surfaced as a note, not a rejection: the read-only transaction and SELECT
// screening already bound the blast radius, and analytic predicates trip
// heuristic scanners often enough that hard failure would hurt more.
func (g *Guardrail) screenLiterals(sql string) []string {
	var notes []string
	for _, lit := range stringLiterals(sql) {
		if isSQLi, fingerprint := libinjection.IsSQLi(lit); isSQLi {
			notes = append(notes, "string literal matches injection fingerprint "+string(fingerprint))
		}
	}
	return notes
}

// stringLiterals extracts the contents of single-quoted literals.
func stringLiterals(sql string) []string {
	var out []string
	for i := 0; i < len(sql); i++ {
		if sql[i] != '\'' {
			continue
		}
		var b strings.Builder
		j := i + 1
		for j < len(sql) {
			if sql[j] == '\'' {
				if j+1 < len(sql) && sql[j+1] == '\'' {
					b.WriteByte('\'')
					j += 2
					continue
				}
				break
			}
			b.WriteByte(sql[j])
			j++
		}
		if b.Len() > 0 {
			out = append(out, b.String())
		}
		i = j
	}
	return out
}

func (g *Guardrail) mapDriverError(sql string, err error, names *sqlast.SchemaNames) *apperrors.ToolError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Newf(apperrors.CategoryRuntime, apperrors.CodeTimeout,
			"execution exceeded the %s limit", g.opts.Timeout)
	}

	message := err.Error()
	code := apperrors.CodeDriverError
	category := apperrors.CategoryRuntime

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		message = pgErr.Message
		switch pgErr.Code {
		case "42703", "42P01": // undefined column / table
			code, category = apperrors.CodeUnresolvedIdentifier, apperrors.CategoryParse
		case "42804", "22P02", "42883": // type mismatches
			code = apperrors.CodeTypeMismatch
		case "42501":
			code = apperrors.CodePermissionDenied
		case "42601":
			code, category = apperrors.CodeParseError, apperrors.CategoryParse
		}
	} else {
		lower := strings.ToLower(message)
		switch {
		case strings.Contains(lower, "no such column"), strings.Contains(lower, "no such table"),
			strings.Contains(lower, "invalid column name"), strings.Contains(lower, "invalid object name"),
			strings.Contains(lower, "unknown column"), strings.Contains(lower, "does not exist"):
			code, category = apperrors.CodeUnresolvedIdentifier, apperrors.CategoryParse
		case strings.Contains(lower, "permission denied"):
			code = apperrors.CodePermissionDenied
		case strings.Contains(lower, "syntax error"):
			code, category = apperrors.CodeParseError, apperrors.CategoryParse
		case strings.Contains(lower, "timeout"):
			code = apperrors.CodeTimeout
		}
	}

	te := apperrors.New(category, code, logging.SanitizeError(err))
	if assist := g.svc.AssistError(sql, message, g.dialect, names); assist != nil {
		te = te.WithHints(assist.Hints...)
	}
	return te
}

// truncateCells clips oversized string cells in place and reports whether
// anything was clipped.
func truncateCells(rows [][]any, maxChars int) bool {
	clipped := false
	for _, row := range rows {
		for i, cell := range row {
			s, ok := cell.(string)
			if !ok || len(s) <= maxChars {
				continue
			}
			// Never cut inside a multi-byte rune.
			cut := maxChars
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			row[i] = s[:cut] + "…"
			clipped = true
		}
	}
	return clipped
}
