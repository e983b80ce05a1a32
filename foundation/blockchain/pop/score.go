package pop

import (
	"math"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// noEndorsement marks a keystone without a publication on the protecting
// chain.
const noEndorsement = math.MaxInt32

// Scoring represents the parameters of a protected chain used to score the
// publications of its keystones.
type Scoring interface {
	KeystoneInterval() int32
	FinalityDelay() int32
	Weight(relative int64) uint32
}

// =============================================================================

// publications is the view of one branch used to score it: the blocks from
// the fork point to the branch tip and the protecting tree their endorsements
// were published in.
type publications[P, Q blocktree.Header] struct {
	chain      blocktree.Chain[P]
	hashes     map[database.Hash]struct{}
	protecting *blocktree.Tree[Q]
	interval   int32
	first      int32
	last       int32
}

func newPublications[P, Q blocktree.Header](chain blocktree.Chain[P], protecting *blocktree.Tree[Q], interval int32) publications[P, Q] {
	hashes := make(map[database.Hash]struct{}, chain.Len())
	for _, idx := range chain.Blocks() {
		hashes[idx.Hash()] = struct{}{}
	}

	return publications[P, Q]{
		chain:      chain,
		hashes:     hashes,
		protecting: protecting,
		interval:   interval,
		first:      blocktree.FirstKeystoneAfter(chain.First().Height(), interval),
		last:       blocktree.HighestKeystoneAtOrBefore(chain.Tip().Height(), interval),
	}
}

func (p publications[P, Q]) empty() bool {
	return p.last < p.first
}

// keystone returns the height of the earliest protecting block holding an
// endorsement of the keystone or of a block connecting it to the previous
// keystone. Only endorsements contained in the branch and published on the
// active protecting chain count. It returns false when the keystone is
// outside the branch.
func (p publications[P, Q]) keystone(height int32) (int32, bool) {
	if height < p.first || height > p.last {
		return 0, false
	}

	highest := blocktree.HighestBlockWhichConnectsKeystoneToPrevious(height, p.interval)
	if tip := p.chain.Tip().Height(); tip < highest {
		highest = tip
	}

	earliest := int32(noEndorsement)
	for h := height; h <= highest; h++ {
		idx := p.chain.At(h)
		validation.Assert(idx != nil, "scoring: branch has no block at height %d", h)

		for _, e := range idx.Pop.EndorsedBy() {
			if _, exists := p.hashes[e.ContainingHash]; !exists {
				continue
			}

			proof := p.protecting.Get(e.BlockOfProof)
			validation.Assert(proof != nil, "scoring: block of proof %s of applied endorsement %s is unknown", e.BlockOfProof, e.ID)

			if !p.protecting.OnBestChain(proof) {
				continue
			}

			if proof.Height() < earliest {
				earliest = proof.Height()
			}
		}
	}

	return earliest, true
}

// =============================================================================

// violatesFinality reports whether a publication happened too late after the
// base publication to count.
func violatesFinality(publication int32, base int32, s Scoring) bool {
	return int64(publication)-int64(base) > int64(s.FinalityDelay())
}

// compareBranches scores branch a against branch b keystone by keystone. Both
// branches must start at the same fork block. A branch missing a keystone the
// other one has, or publishing a keystone later than the finality delay
// allows, is outside finality and stops collecting score.
func compareBranches[P, Q blocktree.Header](a, b blocktree.Chain[P], protecting *blocktree.Tree[Q], s Scoring) (int64, int64) {
	interval := s.KeystoneInterval()
	pa := newPublications(a, protecting, interval)
	pb := newPublications(b, protecting, interval)

	var scoreA, scoreB int64

	switch {
	case pa.empty() && pb.empty():
		return 0, 0
	case pa.empty():
		return 0, int64(s.Weight(0))
	case pb.empty():
		return int64(s.Weight(0)), 0
	}

	validation.Assert(a.First() == b.First(), "scoring: branches start at %s and %s", a.First(), b.First())

	latest := max(pa.last, pb.last)

	var outsideA, outsideB bool
	previousA := int32(noEndorsement)
	previousB := int32(noEndorsement)

	for ks := pa.first; ks <= latest; ks += interval {
		pubA, okA := int32(noEndorsement), false
		if !outsideA {
			pubA, okA = pa.keystone(ks)
			if !okA {
				pubA = noEndorsement
			}
		}

		pubB, okB := int32(noEndorsement), false
		if !outsideB {
			pubB, okB = pb.keystone(ks)
			if !okB {
				pubB = noEndorsement
			}
		}

		if okA && violatesFinality(pubA, previousA, s) {
			outsideA = true
			okA = false
		}
		previousA = pubA

		if okB && violatesFinality(pubB, previousB, s) {
			outsideB = true
			okB = false
		}
		previousB = pubB

		switch {
		case !okA && !okB:
			if outsideA && outsideB {
				return scoreA, scoreB
			}
			continue

		case !okA:
			scoreB += int64(s.Weight(0))
			outsideA = true
			if scoreB > scoreA {
				return scoreA, scoreB
			}
			continue

		case !okB:
			scoreA += int64(s.Weight(0))
			outsideB = true
			if scoreA > scoreB {
				return scoreA, scoreB
			}
			continue
		}

		earliest := min(pubA, pubB)
		scoreA += int64(s.Weight(int64(pubA) - int64(earliest)))
		scoreB += int64(s.Weight(int64(pubB) - int64(earliest)))

		if violatesFinality(pubA, pubB, s) {
			outsideA = true
		}
		if violatesFinality(pubB, pubA, s) {
			outsideB = true
		}
	}

	return scoreA, scoreB
}
