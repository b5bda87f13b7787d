package retrieval

import "sort"

// rrfK is the Reciprocal Rank Fusion smoothing constant. 60 is the value the
// original RRF paper settled on and the value the cartog index was tuned
// against; changing it would shift every existing ranking.
const rrfK = 60.0

// rrfMerge fuses any number of ranked id lists (best match first in each)
// into one ranking by summing 1/(k+rank) per list a symbol id appears in.
// Ids absent from a list simply contribute nothing from that list. Ties are
// broken by the order ids first appear across the input lists, so the
// result is deterministic given deterministic inputs.
func rrfMerge(rankings ...[]string) []string {
	scores := make(map[string]float64)
	order := make([]string, 0)
	seen := make(map[string]bool)

	for _, ranking := range rankings {
		for rank, id := range ranking {
			if !seen[id] {
				seen[id] = true
				order = append(order, id)
			}
			scores[id] += 1.0 / (rrfK + float64(rank+1))
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order
}
