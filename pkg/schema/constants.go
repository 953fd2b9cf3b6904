package schema

import "regexp"

// Profiling and graph thresholds. Changing any of these changes the
// reflection hash, which forces dependent caches to rebuild.
const (
	// ValueConstraintThreshold is the max distinct count for which a
	// column's values are enumerated on the card.
	ValueConstraintThreshold = 20

	// MetricDistinctRatioMin gates the metric role: near-constant numeric
	// columns are categories, not measures.
	MetricDistinctRatioMin = 0.2

	// TextAvgLenMin is the average sampled length beyond which a string
	// column counts as free text.
	TextAvgLenMin = 32

	// MinAreaSize is the smallest community kept as its own subject area.
	MinAreaSize = 3

	// CentralityIterations and CentralityTolerance bound the eigenvector
	// power iteration before falling back to degree centrality.
	CentralityIterations = 100
	CentralityTolerance  = 1e-6
)

// systemSchemas lists vendor schemas dropped during reflection, per dialect.
var systemSchemas = map[string][]string{
	"postgres": {"pg_catalog", "information_schema", "pg_toast"},
	"tsql":     {"sys", "INFORMATION_SCHEMA", "guest", "db_owner", "db_accessadmin", "db_securityadmin", "db_ddladmin", "db_backupoperator", "db_datareader", "db_datawriter", "db_denydatareader", "db_denydatawriter"},
	"sqlite":   {},
}

// SystemSchemas returns the dropped schemas for a dialect.
func SystemSchemas(dialect string) []string {
	return systemSchemas[dialect]
}

var (
	archivePattern = regexp.MustCompile(`(?i)(^|_)(archive|archived|hist|history|backup|bak|old|tmp|temp)(_|$)`)
	auditPattern   = regexp.MustCompile(`(?i)(^|_)(audit|log|logs|event|events|change|changes)(_|$)`)

	idSuffixPattern = regexp.MustCompile(`(?i)(^id$|_id$|_key$|guid|uuid)`)

	measureNamePattern = regexp.MustCompile(`(?i)(amount|total|price|cost|qty|quantity|count|value|revenue|sales|balance|rate|score|weight|sum|num_|_num)`)
)

// IsArchiveName reports whether a table name looks like an archive or
// historical copy.
func IsArchiveName(name string) bool {
	return archivePattern.MatchString(name)
}

// IsAuditLikeName reports whether a table name looks like an audit or
// event-log table.
func IsAuditLikeName(name string) bool {
	return auditPattern.MatchString(name)
}

// temporal and numeric vendor type fragments, matched case-insensitively
// against the driver-reported type name.
var (
	temporalTypes = []string{"date", "time", "timestamp", "datetime", "datetimeoffset", "smalldatetime", "interval"}
	numericTypes  = []string{"int", "serial", "numeric", "decimal", "float", "double", "real", "money", "number"}
	textTypes     = []string{"char", "text", "clob", "string", "varchar", "nvarchar", "uuid", "json"}
)
