package pop

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
)

// resolveProtecting selects the best tips of the protecting trees after
// commands added or removed blocks. The base chain is resolved first since
// the intermediate chain is scored against it.
func (e *Engine) resolveProtecting() {
	e.resolveBtc()
	e.resolveVbk()
}

// resolveBtc selects the base chain tip with the most cumulative work. The
// incumbent is kept on equal work.
func (e *Engine) resolveBtc() {
	tree := e.trees.Btc

	for _, tip := range tree.Tips() {
		if tip.ChainWork() > tree.Tip().ChainWork() {
			tree.SetTip(tip)
		}
	}
}

// resolveVbk selects the intermediate chain tip by comparing the
// publications of its keystones in the base chain. Branches that do not
// cross a keystone are compared by cumulative work.
func (e *Engine) resolveVbk() {
	tree := e.trees.Vbk
	params := e.gen.Vbk
	interval := params.KeystoneInterval()

	for _, candidate := range tree.Tips() {
		current := tree.Tip()
		if candidate == current {
			continue
		}

		active := tree.BestChain()
		fork := active.FindFork(candidate)
		if fork == candidate {
			continue
		}

		if fork == current {
			tree.SetTip(candidate)
			continue
		}

		crossA := blocktree.IsCrossedKeystoneBoundary(fork.Height(), current.Height(), interval)
		crossB := blocktree.IsCrossedKeystoneBoundary(fork.Height(), candidate.Height(), interval)
		if !crossA && !crossB {
			if candidate.ChainWork() > current.ChainWork() {
				tree.SetTip(candidate)
			}
			continue
		}

		a := blocktree.NewChain(fork.Height(), current)
		b := blocktree.NewChain(fork.Height(), candidate)
		if scoreA, scoreB := compareBranches(a, b, e.trees.Btc, params); scoreB > scoreA {
			tree.SetTip(candidate)
		}
	}
}

// restoreProtecting moves the protecting trees back to the specified tips
// when they still exist, then resolves them again.
func (e *Engine) restoreProtecting(btcTip *BtcIndex, vbkTip *VbkIndex) {
	if e.trees.Btc.Get(btcTip.Hash()) == btcTip && e.trees.Btc.Tip() != btcTip {
		e.trees.Btc.SetTip(btcTip)
	}

	if e.trees.Vbk.Get(vbkTip.Hash()) == vbkTip && e.trees.Vbk.Tip() != vbkTip {
		e.trees.Vbk.SetTip(vbkTip)
	}

	e.resolveProtecting()
}
