package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/querylens/querylens-engine/pkg/schema"
)

// Strategy selects how seed hits grow along the join graph.
type Strategy string

const (
	// StrategyFKFollowing walks foreign keys up to two hops out from the
	// seeds, scoring neighbors by proximity, archetype fit, and centrality.
	StrategyFKFollowing Strategy = "fk_following"
	// StrategySimple adds only the direct neighbors of each seed.
	StrategySimple Strategy = "simple"
)

// ParseStrategy validates a strategy name; empty means fk_following.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return StrategyFKFollowing, nil
	case StrategyFKFollowing, StrategySimple:
		return Strategy(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown expansion strategy %q", s)
}

const (
	maxExpandDepth  = 2
	utilityProx     = 0.5
	utilityArch     = 0.3
	utilityCentral  = 0.2
	expandScoreCap  = 0.95
)

// ExpandOptions tune one expansion pass.
type ExpandOptions struct {
	Strategy  Strategy
	MaxTables int
	// IncludeArchives lifts the default exclusion of archive tables from
	// expansion candidates.
	IncludeArchives bool
}

// Expand grows the seed set along the card's join graph. Seeds are always
// preserved; expanded tables are appended with Origin "expanded" and the
// result is trimmed to MaxTables, seeds first.
func Expand(card *schema.Card, seeds []Hit, opts ExpandOptions) []Hit {
	if opts.MaxTables <= 0 {
		opts.MaxTables = 12
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyFKFollowing
	}
	if len(seeds) == 0 {
		return nil
	}

	seedSet := make(map[string]*Hit, len(seeds))
	for i := range seeds {
		seedSet[seeds[i].TableKey] = &seeds[i]
	}

	var candidates []Hit
	switch opts.Strategy {
	case StrategySimple:
		candidates = directNeighbors(card, seeds, seedSet, opts)
	default:
		candidates = followForeignKeys(card, seeds, seedSet, opts)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].TableKey < candidates[j].TableKey
	})

	out := make([]Hit, 0, opts.MaxTables)
	out = append(out, seeds...)
	if len(out) > opts.MaxTables {
		return out[:opts.MaxTables]
	}
	for _, c := range candidates {
		if len(out) >= opts.MaxTables {
			break
		}
		out = append(out, c)
	}
	return out
}

// directNeighbors adds tables one hop away from any seed.
func directNeighbors(card *schema.Card, seeds []Hit, seedSet map[string]*Hit, opts ExpandOptions) []Hit {
	seen := make(map[string]struct{})
	var out []Hit
	for _, seed := range seeds {
		for _, nb := range card.Neighbors(seed.TableKey) {
			if _, isSeed := seedSet[nb]; isSeed {
				continue
			}
			if _, dup := seen[nb]; dup {
				continue
			}
			t := card.Table(nb)
			if t == nil || (t.IsArchive && !opts.IncludeArchives) {
				continue
			}
			seen[nb] = struct{}{}
			out = append(out, expandedHit(t, expansionUtility(t, seedArchetype(card, seed), 1)))
		}
	}
	return out
}

// followForeignKeys walks the graph breadth-first up to maxExpandDepth hops,
// keeping the best utility seen for each table.
func followForeignKeys(card *schema.Card, seeds []Hit, seedSet map[string]*Hit, opts ExpandOptions) []Hit {
	type frontier struct {
		key   string
		seed  Hit
		depth int
	}

	best := make(map[string]float64)
	byKey := make(map[string]*schema.TableProfile)
	queue := make([]frontier, 0, len(seeds))
	visited := make(map[string]int, len(seeds))
	for _, seed := range seeds {
		queue = append(queue, frontier{key: seed.TableKey, seed: seed, depth: 0})
		visited[seed.TableKey] = 0
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxExpandDepth {
			continue
		}
		for _, nb := range card.Neighbors(cur.key) {
			depth := cur.depth + 1
			if prev, ok := visited[nb]; ok && prev <= depth {
				continue
			}
			visited[nb] = depth
			if _, isSeed := seedSet[nb]; isSeed {
				continue
			}
			t := card.Table(nb)
			if t == nil || (t.IsArchive && !opts.IncludeArchives) {
				continue
			}
			u := expansionUtility(t, seedArchetype(card, cur.seed), depth)
			if u > best[nb] {
				best[nb] = u
				byKey[nb] = t
			}
			queue = append(queue, frontier{key: nb, seed: cur.seed, depth: depth})
		}
	}

	out := make([]Hit, 0, len(best))
	for key := range best {
		out = append(out, expandedHit(byKey[key], best[key]))
	}
	return out
}

func seedArchetype(card *schema.Card, seed Hit) schema.Archetype {
	if t := card.Table(seed.TableKey); t != nil {
		return t.Archetype
	}
	return ""
}

// expansionUtility scores a candidate reached from a seed. Dimensions are
// favored off fact seeds and facts off dimension seeds, since those pairs
// complete the joins a query plan actually needs.
func expansionUtility(t *schema.TableProfile, seedArch schema.Archetype, depth int) float64 {
	proximity := 1.0 / float64(depth+1)

	arch := 0.0
	switch t.Archetype {
	case schema.ArchetypeDimension:
		arch = 0.6
		if seedArch == schema.ArchetypeFact {
			arch = 1.0
		}
	case schema.ArchetypeFact:
		arch = 0.8
		if seedArch == schema.ArchetypeDimension {
			arch = 1.0
		}
	case schema.ArchetypeBridge:
		arch = 0.5
	case schema.ArchetypeReference:
		arch = 0.3
	}

	u := utilityProx*proximity + utilityArch*arch + utilityCentral*t.Centrality
	if u > expandScoreCap {
		u = expandScoreCap
	}
	return u
}

func expandedHit(t *schema.TableProfile, utility float64) Hit {
	return Hit{
		TableKey:   t.Key(),
		Score:      utility,
		Centrality: t.Centrality,
		Origin:     "expanded",
	}
}
