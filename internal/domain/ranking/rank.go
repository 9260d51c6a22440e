// Package ranking scores candidate posts against a user vector and
// produces the top-K feed. Candidates are a bounded random sample drawn
// by the caller, not the full corpus.
package ranking

import (
	"math"
	"sort"

	"github.com/feedworks/prefeed/internal/domain"
)

// Cosine returns the cosine similarity of a and b in [-1,1].
// A zero-norm operand (unengaged user, unembedded item) scores 0.0.
// Dimensions are validated at the storage boundary; mismatched inputs
// here also score 0.0 rather than reading out of range.
func Cosine(a, b domain.Vector) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every candidate against the user vector and returns at
// most limit posts sorted by non-increasing score. Ties keep the
// candidates' input order.
func Rank(user domain.Vector, candidates []domain.Post, limit int) []domain.ScoredPost {
	scored := make([]domain.ScoredPost, 0, len(candidates))
	for _, p := range candidates {
		scored = append(scored, domain.ScoredPost{Post: p, Score: Cosine(user, p.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
