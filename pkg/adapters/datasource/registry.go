package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Dialect     string
	DisplayName string
}

// Registration bundles the factories of one adapter.
type Registration struct {
	Info         AdapterInfo
	NewReflector func(ctx context.Context, dsn string, logger *zap.Logger) (Reflector, error)
	NewRunner    func(ctx context.Context, dsn string, logger *zap.Logger) (Runner, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register installs an adapter for a dialect. Called from adapter init();
// duplicate registration is a programmer error and panics.
func Register(r Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if r.Info.Dialect == "" || r.NewReflector == nil || r.NewRunner == nil {
		panic("datasource: incomplete registration")
	}
	if _, dup := registry[r.Info.Dialect]; dup {
		panic("datasource: duplicate registration for " + r.Info.Dialect)
	}
	registry[r.Info.Dialect] = r
}

// Lookup returns the registration for a dialect.
func Lookup(dialect string) (Registration, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[dialect]
	if !ok {
		return Registration{}, fmt.Errorf("no adapter registered for dialect %q (available: %s)",
			dialect, strings.Join(registeredLocked(), ", "))
	}
	return r, nil
}

// Registered lists the available dialects sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registeredLocked()
}

func registeredLocked() []string {
	out := make([]string, 0, len(registry))
	for d := range registry {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// DetectDialect infers the dialect from the connection string shape.
// Returns "" when nothing matches.
func DetectDialect(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "sqlserver://"), strings.Contains(lower, "server="):
		return "tsql"
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"),
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"),
		strings.HasSuffix(lower, ".sqlite3"), lower == ":memory:":
		return "sqlite"
	}
	return ""
}
