package retrieval

import (
	"math"
	"sort"
)

// SemanticIndex is a small exact nearest-neighbor index over normalized
// vectors. At card scale (thousands of labels) brute force beats the
// bookkeeping of an approximate structure.
type SemanticIndex struct {
	labels []string
	vecs   [][]float32
}

// IndexHit is one nearest-neighbor result.
type IndexHit struct {
	Label string
	Score float64
}

// NewSemanticIndex builds an index; vectors are normalized on insert.
func NewSemanticIndex(labels []string, vecs [][]float32) *SemanticIndex {
	idx := &SemanticIndex{}
	for i, v := range vecs {
		if i >= len(labels) || len(v) == 0 {
			continue
		}
		idx.labels = append(idx.labels, labels[i])
		idx.vecs = append(idx.vecs, normalize(v))
	}
	return idx
}

// Len returns the number of indexed labels.
func (s *SemanticIndex) Len() int { return len(s.labels) }

// Search returns the top-k labels by cosine similarity.
func (s *SemanticIndex) Search(query []float32, k int) []IndexHit {
	if len(s.labels) == 0 || len(query) == 0 {
		return nil
	}
	q := normalize(query)
	hits := make([]IndexHit, 0, len(s.labels))
	for i, v := range s.vecs {
		hits = append(hits, IndexHit{Label: s.labels[i], Score: dot(q, v)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Label < hits[j].Label
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
