package schema

import (
	"fmt"
	"sort"
	"strings"
)

const referenceRowMax = 10000

// ClassifyTables assigns an archetype and summary to every table. Bridges
// and facts are decided first because the dimension rule depends on which
// tables ended up as facts.
func ClassifyTables(tables map[string]*TableProfile) {
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		t := tables[k]
		t.IsArchive = IsArchiveName(t.Name)
		t.IsAuditLike = IsAuditLikeName(t.Name)
		switch {
		case isBridge(t):
			t.Archetype = ArchetypeBridge
		case len(t.ForeignKeys) >= 2 && t.MetricCount >= 1:
			t.Archetype = ArchetypeFact
		}
	}

	// referencedByFact[key] is true when some fact table has an FK to key
	referencedByFact := make(map[string]bool)
	for _, t := range tables {
		if t.Archetype != ArchetypeFact {
			continue
		}
		for _, fk := range t.ForeignKeys {
			referencedByFact[fk.TargetTable] = true
		}
	}

	for _, k := range keys {
		t := tables[k]
		if t.Archetype != "" {
			continue
		}
		switch {
		case len(t.PKColumns) > 0 && referencedByFact[k]:
			t.Archetype = ArchetypeDimension
		case t.RowEstimate >= 0 && t.RowEstimate <= referenceRowMax && len(t.ForeignKeys) == 0:
			t.Archetype = ArchetypeReference
		default:
			t.Archetype = ArchetypeOperational
		}
	}
}

// isBridge: exactly two FKs whose columns make up the whole primary key.
func isBridge(t *TableProfile) bool {
	if len(t.ForeignKeys) != 2 || len(t.PKColumns) == 0 {
		return false
	}
	fkCols := map[string]struct{}{}
	for _, fk := range t.ForeignKeys {
		fkCols[fk.Column] = struct{}{}
	}
	if len(fkCols) != len(t.PKColumns) {
		return false
	}
	for _, pk := range t.PKColumns {
		if _, ok := fkCols[pk]; !ok {
			return false
		}
	}
	return true
}

// Summarize writes the one-line table summaries. Called after subject areas
// are assigned so the area name can appear in the sentence.
func Summarize(tables map[string]*TableProfile, areas map[string]*SubjectArea) {
	areaName := make(map[string]string)
	for _, a := range areas {
		for _, k := range a.Tables {
			areaName[k] = a.Name
		}
	}
	for k, t := range tables {
		t.Summary = tableSummary(t, areaName[k])
	}
}

func tableSummary(t *TableProfile, area string) string {
	roles := dominantRoles(t)
	var b strings.Builder
	fmt.Fprintf(&b, "%s table %s", t.Archetype, t.Key())
	if len(roles) > 0 {
		fmt.Fprintf(&b, " with %s columns", strings.Join(roles, ", "))
	}
	if area != "" {
		fmt.Fprintf(&b, " in the %s area", area)
	}
	if t.IsArchive {
		b.WriteString(" (archive)")
	}
	return b.String()
}

// dominantRoles returns up to three most common non-key roles.
func dominantRoles(t *TableProfile) []string {
	counts := map[ColumnRole]int{}
	for _, c := range t.Columns {
		if c.Role == RoleKey || c.Role == RoleID {
			continue
		}
		counts[c.Role]++
	}
	roles := make([]ColumnRole, 0, len(counts))
	for r := range counts {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool {
		if counts[roles[i]] != counts[roles[j]] {
			return counts[roles[i]] > counts[roles[j]]
		}
		return roles[i] < roles[j]
	})
	if len(roles) > 3 {
		roles = roles[:3]
	}
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
