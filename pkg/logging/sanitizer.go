package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength caps how much of a SQL statement is logged.
	MaxQueryLogLength = 120
	// RedactedText replaces sensitive fragments.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx in key/value connection strings
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in URL-style connection strings
	credentialPattern = regexp.MustCompile(`://[^:/@\s]+:[^@\s]+@`)

	// api_key=... style secrets, e.g. embedding endpoint keys
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|token)=[A-Za-z0-9\-_]{12,}`)
)

// SanitizeDSN redacts credentials from a connection string before logging.
func SanitizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	out := passwordPattern.ReplaceAllString(dsn, "${1}="+RedactedText)
	out = credentialPattern.ReplaceAllString(out, "://"+RedactedText+"@")
	return out
}

// SanitizeError redacts credentials that database drivers sometimes echo
// back inside error messages.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	out := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	out = credentialPattern.ReplaceAllString(out, "://"+RedactedText+"@")
	out = apiKeyPattern.ReplaceAllString(out, "${1}="+RedactedText)
	return out
}

// SanitizeQuery truncates a SQL statement for log output. Queries can embed
// literals supplied by users, so they are never logged in full.
func SanitizeQuery(query string) string {
	if len(query) > MaxQueryLogLength {
		return query[:MaxQueryLogLength] + "..."
	}
	return query
}
