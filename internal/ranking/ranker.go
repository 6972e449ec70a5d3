package ranking

import (
	"slices"

	"coursetutor/internal/model"
)

// Scored pairs a candidate with its similarity to the query.
type Scored struct {
	Record model.ChunkRecord
	Score  float64
}

// Ranker picks the k best candidates for a query. Implementations may use an
// index; LinearRanker scans every candidate.
type Ranker interface {
	TopK(query []float32, candidates []model.ChunkRecord, k int) []Scored
}

// LinearRanker is an exact, brute-force ranker.
type LinearRanker struct{}

func NewLinearRanker() LinearRanker {
	return LinearRanker{}
}

// TopK returns up to k candidates in descending similarity. Candidates
// without an embedding are skipped; ties keep the input order.
func (LinearRanker) TopK(query []float32, candidates []model.ChunkRecord, k int) []Scored {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasEmbedding() {
			continue
		}
		scored = append(scored, Scored{Record: c, Score: Cosine(query, c.Embedding)})
	}
	slices.SortStableFunc(scored, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
