package selector

import "sort"

// depthSelect returns the candidates endorsing the oldest blocks first,
// ignoring fees.
var depthSelect = func(candidates []Candidate) []Candidate {
	final := make([]Candidate, len(candidates))
	copy(final, candidates)

	sort.Sort(byDepth(final))

	return final
}
