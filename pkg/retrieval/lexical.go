package retrieval

import (
	"math"

	"github.com/jinzhu/inflection"

	"github.com/querylens/querylens-engine/pkg/schema"
)

// Token weights by where the token appears on the card.
const (
	weightTableName  = 2.0
	weightColumnName = 1.0
	weightSchemaName = 0.5
	weightRoleName   = 0.5
	weightMorphology = 0.3
)

// tokenVector is a sparse token-frequency vector.
type tokenVector map[string]float64

// add accumulates a token and its morphological variants. Variants carry the
// reduced morphology weight so "order" still matches "orders" without
// drowning exact matches.
func (v tokenVector) add(tok string, weight float64) {
	v[tok] += weight
	for _, variant := range morphVariants(tok) {
		if variant != tok {
			v[variant] += weight * weightMorphology
		}
	}
}

func morphVariants(tok string) []string {
	return []string{inflection.Singular(tok), inflection.Plural(tok)}
}

// tableVector builds the searchable vector of one table.
func tableVector(t *schema.TableProfile) tokenVector {
	v := tokenVector{}
	for _, tok := range schema.Tokenize(t.Name) {
		v.add(tok, weightTableName)
	}
	for _, tok := range schema.Tokenize(t.Schema) {
		v.add(tok, weightSchemaName)
	}
	for _, c := range t.Columns {
		for _, tok := range schema.Tokenize(c.Name) {
			v.add(tok, weightColumnName)
		}
		if c.Role != "" {
			v.add(string(c.Role), weightRoleName)
		}
	}
	return v
}

// queryVector builds the vector of a natural-language request.
func queryVector(query string) tokenVector {
	v := tokenVector{}
	for _, tok := range schema.Tokenize(query) {
		v.add(tok, 1.0)
	}
	return v
}

// cosine computes the cosine similarity of two sparse vectors.
func cosine(a, b tokenVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	var dotSum float64
	for tok, w := range small {
		if w2, ok := large[tok]; ok {
			dotSum += w * w2
		}
	}
	if dotSum == 0 {
		return 0
	}
	return dotSum / (vectorNorm(a) * vectorNorm(b))
}

func vectorNorm(v tokenVector) float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}
