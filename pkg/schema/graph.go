package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Graph is the undirected FK graph over table keys. Edge weight is the
// number of FK columns between the two tables.
type Graph struct {
	nodes   []string
	weights map[string]map[string]int
}

// BuildGraph derives the FK graph from profiled tables. FKs whose target is
// not among the tables are skipped.
func BuildGraph(tables map[string]*TableProfile) *Graph {
	g := &Graph{weights: make(map[string]map[string]int)}
	for key := range tables {
		g.nodes = append(g.nodes, key)
		g.weights[key] = make(map[string]int)
	}
	sort.Strings(g.nodes)
	for key, t := range tables {
		for _, fk := range t.ForeignKeys {
			if _, ok := tables[fk.TargetTable]; !ok || fk.TargetTable == key {
				continue
			}
			g.weights[key][fk.TargetTable]++
			g.weights[fk.TargetTable][key]++
		}
	}
	return g
}

// Edges returns the edge list with source < target, sorted.
func (g *Graph) Edges() []GraphEdge {
	var out []GraphEdge
	for _, a := range g.nodes {
		for b, w := range g.weights[a] {
			if a < b {
				out = append(out, GraphEdge{Source: a, Target: b, Weight: w})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Degree returns the weighted degree of a node.
func (g *Graph) Degree(key string) int {
	total := 0
	for _, w := range g.weights[key] {
		total += w
	}
	return total
}

// Centrality computes eigenvector centrality by power iteration, normalized
// to [0,1]. When the iteration does not converge it falls back to degree
// centrality. Isolated nodes get 0.
func (g *Graph) Centrality() map[string]float64 {
	n := len(g.nodes)
	out := make(map[string]float64, n)
	if n == 0 {
		return out
	}

	vec := make(map[string]float64, n)
	for _, k := range g.nodes {
		vec[k] = 1.0 / float64(n)
	}

	converged := false
	for iter := 0; iter < CentralityIterations; iter++ {
		next := make(map[string]float64, n)
		for _, k := range g.nodes {
			sum := 0.0
			for nb, w := range g.weights[k] {
				sum += float64(w) * vec[nb]
			}
			next[k] = sum
		}
		norm := 0.0
		for _, v := range next {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			break
		}
		delta := 0.0
		for k := range next {
			next[k] /= norm
			delta += math.Abs(next[k] - vec[k])
		}
		vec = next
		if delta < CentralityTolerance {
			converged = true
			break
		}
	}

	if !converged {
		maxDeg := 0
		for _, k := range g.nodes {
			if d := g.Degree(k); d > maxDeg {
				maxDeg = d
			}
		}
		for _, k := range g.nodes {
			if maxDeg > 0 {
				out[k] = float64(g.Degree(k)) / float64(maxDeg)
			}
		}
		return out
	}

	maxV := 0.0
	for _, v := range vec {
		if v > maxV {
			maxV = v
		}
	}
	for _, k := range g.nodes {
		if maxV > 0 {
			out[k] = vec[k] / maxV
		}
	}
	return out
}

// Communities partitions the graph by greedy modularity optimization:
// agglomerative merging of the connected community pair with the highest
// modularity gain, stopping when no merge improves modularity. Result order
// is deterministic.
func (g *Graph) Communities() [][]string {
	if len(g.nodes) == 0 {
		return nil
	}

	comm := make(map[string]int, len(g.nodes))
	members := make(map[int][]string)
	for i, k := range g.nodes {
		comm[k] = i
		members[i] = []string{k}
	}

	totalWeight := 0.0
	for _, k := range g.nodes {
		totalWeight += float64(g.Degree(k))
	}
	m2 := totalWeight // 2m: degrees already count each edge twice
	if m2 == 0 {
		return g.singletons()
	}

	degSum := make(map[int]float64)
	for _, k := range g.nodes {
		degSum[comm[k]] += float64(g.Degree(k))
	}

	for {
		bestGain := 0.0
		bestA, bestB := -1, -1
		// between[a][b] = total edge weight between communities a and b
		between := make(map[int]map[int]float64)
		for _, a := range g.nodes {
			for b, w := range g.weights[a] {
				ca, cb := comm[a], comm[b]
				if ca >= cb {
					continue
				}
				if between[ca] == nil {
					between[ca] = make(map[int]float64)
				}
				between[ca][cb] += float64(w)
			}
		}
		for ca, row := range between {
			for cb, e := range row {
				gain := e/m2 - degSum[ca]*degSum[cb]/(m2*m2)*2
				if gain > bestGain+1e-12 ||
					(math.Abs(gain-bestGain) <= 1e-12 && bestA >= 0 && (ca < bestA || (ca == bestA && cb < bestB))) {
					if gain > 0 {
						bestGain, bestA, bestB = gain, ca, cb
					}
				}
			}
		}
		if bestA < 0 {
			break
		}
		for _, k := range members[bestB] {
			comm[k] = bestA
		}
		members[bestA] = append(members[bestA], members[bestB]...)
		delete(members, bestB)
		degSum[bestA] += degSum[bestB]
		delete(degSum, bestB)
	}

	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var out [][]string
	for _, id := range ids {
		ms := append([]string(nil), members[id]...)
		sort.Strings(ms)
		out = append(out, ms)
	}
	return out
}

func (g *Graph) singletons() [][]string {
	out := make([][]string, 0, len(g.nodes))
	for _, k := range g.nodes {
		out = append(out, []string{k})
	}
	return out
}

// sharedEdgeWeight is the total edge weight between two table sets.
func (g *Graph) sharedEdgeWeight(a, b []string) int {
	inB := make(map[string]struct{}, len(b))
	for _, k := range b {
		inB[k] = struct{}{}
	}
	total := 0
	for _, k := range a {
		for nb, w := range g.weights[k] {
			if _, ok := inB[nb]; ok {
				total += w
			}
		}
	}
	return total
}

// BuildSubjectAreas turns communities into named subject areas: communities
// below MinAreaSize are merged into the neighbor community they share the
// most edge weight with, archive-majority areas are coalesced, and each area
// gets a stable id plus a name from its highest-centrality table.
func BuildSubjectAreas(g *Graph, tables map[string]*TableProfile, centrality map[string]float64) map[string]*SubjectArea {
	communities := g.Communities()
	if len(communities) == 0 {
		return map[string]*SubjectArea{}
	}

	communities = mergeSmall(g, communities)
	communities = coalesceArchives(tables, communities)

	areas := make(map[string]*SubjectArea, len(communities))
	for _, tablesInArea := range communities {
		id := areaID(tablesInArea)
		areas[id] = &SubjectArea{
			ID:      id,
			Name:    areaName(tablesInArea, tables, centrality),
			Tables:  tablesInArea,
			Summary: areaSummary(tablesInArea, tables),
		}
	}
	return areas
}

// mergeSmall folds communities below MinAreaSize into the neighbor they
// share the most edges with. Communities with no connected neighbor stay
// as they are.
func mergeSmall(g *Graph, communities [][]string) [][]string {
	skip := make(map[int]bool)
	for {
		smallIdx := -1
		for i, c := range communities {
			if !skip[i] && len(c) < MinAreaSize && len(communities) > 1 {
				smallIdx = i
				break
			}
		}
		if smallIdx < 0 {
			break
		}
		bestIdx, bestShared := -1, 0
		for j, other := range communities {
			if j == smallIdx {
				continue
			}
			if shared := g.sharedEdgeWeight(communities[smallIdx], other); shared > bestShared {
				bestShared, bestIdx = shared, j
			}
		}
		if bestIdx < 0 {
			// no connected neighbor; the community stays on its own
			skip[smallIdx] = true
			continue
		}
		merged := append(communities[bestIdx], communities[smallIdx]...)
		sort.Strings(merged)
		communities[bestIdx] = merged
		communities = append(communities[:smallIdx], communities[smallIdx+1:]...)
		skip = make(map[int]bool)
	}
	return communities
}

// coalesceArchives groups all archive-majority communities into one area.
func coalesceArchives(tables map[string]*TableProfile, communities [][]string) [][]string {
	var kept [][]string
	var archive []string
	for _, c := range communities {
		archived := 0
		for _, k := range c {
			if t := tables[k]; t != nil && t.IsArchive {
				archived++
			}
		}
		if archived*2 > len(c) {
			archive = append(archive, c...)
		} else {
			kept = append(kept, c)
		}
	}
	if len(archive) > 0 {
		sort.Strings(archive)
		kept = append(kept, archive)
	}
	return kept
}

// areaID hashes the sorted table-key set so the id is stable across rebuilds
// of the same membership.
func areaID(tableKeys []string) string {
	h := sha256.Sum256([]byte(strings.Join(tableKeys, "\n")))
	return "area-" + hex.EncodeToString(h[:])[:8]
}

func areaName(tableKeys []string, tables map[string]*TableProfile, centrality map[string]float64) string {
	best := tableKeys[0]
	for _, k := range tableKeys[1:] {
		if centrality[k] > centrality[best] || (centrality[k] == centrality[best] && k < best) {
			best = k
		}
	}
	if t := tables[best]; t != nil {
		words := Tokenize(t.Name)
		if len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	return best
}

func areaSummary(tableKeys []string, tables map[string]*TableProfile) string {
	facts := 0
	for _, k := range tableKeys {
		if t := tables[k]; t != nil && t.Archetype == ArchetypeFact {
			facts++
		}
	}
	return fmt.Sprintf("%d tables, %d fact", len(tableKeys), facts)
}
