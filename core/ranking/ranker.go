package ranking

import (
	"sort"

	"github.com/siherrmann/excerpter/model"
)

// Rank returns a copy of candidates ordered by score, highest first.
// Candidates with equal scores keep their submission order.
// The full set is ranked, truncation is left to Top.
func Rank(candidates []model.AnswerCandidate) []model.AnswerCandidate {
	ranked := make([]model.AnswerCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// Top returns the first n ranked candidates, all of them when n <= 0
func Top(ranked []model.AnswerCandidate, n int) []model.AnswerCandidate {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
