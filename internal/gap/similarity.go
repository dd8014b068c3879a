// Package gap scores competitor content against the primary site and
// turns low-similarity matches into prioritized content gaps.
package gap

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b. Vectors stored by the
// embedding engine are unit length, so this reduces to a dot product; the
// general form covers raw vectors too.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Match is one similarity result against a candidate set.
type Match struct {
	Index      int
	Similarity float64
}

// MostSimilar returns the topK closest candidates to query, best first.
func MostSimilar(query []float32, candidates [][]float32, topK int) []Match {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}
	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{Index: i, Similarity: Cosine(query, c)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
