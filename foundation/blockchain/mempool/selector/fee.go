package selector

import "sort"

// feeSelect returns the candidates with the best fee first. Candidates with
// the same fee are ordered by the depth of the block they endorse.
var feeSelect = func(candidates []Candidate) []Candidate {
	final := make([]Candidate, len(candidates))
	copy(final, candidates)

	sort.Sort(byFee(final))

	return final
}
