// Package apperrors defines the error taxonomy shared by the MCP tools.
//
// Every error that crosses a tool boundary is shaped into a ToolError with a
// stable category and code so that callers can branch on machine-readable
// fields instead of parsing message text.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for internal control flow. Tool handlers translate these
// into ToolError values before responding.
var (
	// ErrNotReady indicates the schema card has not been built yet.
	ErrNotReady = errors.New("service not ready")

	// ErrNoCard indicates no schema card is available at all.
	ErrNoCard = errors.New("no schema card available")

	// ErrInvalidTableKey indicates a table key that does not resolve.
	ErrInvalidTableKey = errors.New("invalid table key")

	// ErrUnknownDialect indicates an unsupported SQL dialect name.
	ErrUnknownDialect = errors.New("unknown dialect")

	// ErrEmbedderDisabled indicates an embedding approach was requested
	// while no embedding endpoint is configured.
	ErrEmbedderDisabled = errors.New("embedder not configured")

	// ErrShuttingDown indicates the coordinator is stopping.
	ErrShuttingDown = errors.New("service shutting down")
)

// Category groups error codes by the kind of failure. Tool responses carry
// both the category and the specific code.
type Category string

const (
	CategoryReadiness  Category = "readiness"
	CategoryInput      Category = "input"
	CategorySafety     Category = "safety"
	CategoryParse      Category = "parse"
	CategoryRuntime    Category = "runtime"
	CategoryTruncation Category = "truncation"
	CategoryCoverage   Category = "coverage"
)

// Stable error codes. These are part of the tool contract and must not be
// renamed once released.
const (
	CodeServiceNotReady      = "SERVICE_NOT_READY"
	CodeServiceFailed        = "SERVICE_FAILED"
	CodeInvalidTableKey      = "INVALID_TABLE_KEY"
	CodeInvalidArgument      = "INVALID_ARGUMENT"
	CodeUnknownDialect       = "UNKNOWN_DIALECT"
	CodeEmptyQuery           = "EMPTY_QUERY"
	CodeEmbedderUnavailable  = "EMBEDDER_UNAVAILABLE"
	CodeNonSelectStatement   = "NON_SELECT_STATEMENT"
	CodeMultiStatement       = "MULTI_STATEMENT"
	CodeParseError           = "PARSE_ERROR"
	CodeUnresolvedIdentifier = "UNRESOLVED_IDENTIFIER"
	CodeTypeMismatch         = "TYPE_MISMATCH"
	CodeDriverError          = "DRIVER_ERROR"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeTimeout              = "TIMEOUT"
	CodeResultTruncated      = "RESULT_TRUNCATED"
	CodeAmbiguousIntent      = "AMBIGUOUS_INTENT"
	CodeNoDateDimension      = "NO_DATE_DIMENSION"
	CodeNoMetric             = "NO_METRIC"
	CodeNoTables             = "NO_TABLES"
)

// ToolError is the structured error payload returned to MCP clients.
type ToolError struct {
	Category    Category `json:"category"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Hints       []string `json:"hints,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Category, e.Code, e.Message)
}

// New builds a ToolError with the given fields.
func New(category Category, code, message string, hints ...string) *ToolError {
	return &ToolError{
		Category:    category,
		Code:        code,
		Message:     message,
		Hints:       hints,
		Recoverable: recoverableByDefault(category),
	}
}

// Newf builds a ToolError with a formatted message and no hints.
func Newf(category Category, code, format string, args ...any) *ToolError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// WithHints returns a copy of the error with the hints appended.
func (e *ToolError) WithHints(hints ...string) *ToolError {
	clone := *e
	clone.Hints = append(append([]string(nil), e.Hints...), hints...)
	return &clone
}

// WithRecoverable returns a copy with the recoverable flag set explicitly.
func (e *ToolError) WithRecoverable(v bool) *ToolError {
	clone := *e
	clone.Recoverable = v
	return &clone
}

func recoverableByDefault(c Category) bool {
	switch c {
	case CategoryReadiness, CategoryInput, CategoryParse, CategoryCoverage,
		CategoryTruncation, CategoryRuntime:
		return true
	default:
		return false
	}
}

// NotReady shapes the standard readiness error with an estimate of how far
// along startup is.
func NotReady(phase string, elapsedSec float64) *ToolError {
	return New(CategoryReadiness, CodeServiceNotReady,
		fmt.Sprintf("schema analysis is still %s (%.0fs elapsed)", phase, elapsedSec),
		"call get_init_status to monitor progress, then retry")
}

// InvalidTableKey shapes the standard unresolved table key error. Suggestions
// carry near-miss table keys when the caller has them.
func InvalidTableKey(key string, suggestions []string) *ToolError {
	e := New(CategoryInput, CodeInvalidTableKey,
		fmt.Sprintf("table %q not found in the schema card", key))
	for _, s := range suggestions {
		e.Hints = append(e.Hints, "did you mean "+s+"?")
	}
	return e
}

// AsToolError unwraps err to a *ToolError when possible.
func AsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
