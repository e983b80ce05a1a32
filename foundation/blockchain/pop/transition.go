package pop

import (
	"errors"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/command"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// SetState moves the applied state from the active tip to the specified
// block. Either the block becomes the active tip or the state is left exactly
// as it was and an error is returned.
func (e *Engine) SetState(to *AltIndex) error {
	alt := e.trees.Alt
	current := alt.Tip()

	if to == current {
		return nil
	}

	if to.Status().KnownInvalid() {
		return altInvalid("bad-block", "block %s is invalid: %s", to, to.Status())
	}

	if !to.IsValid(blocktree.StatusConnected) {
		return altInvalid("block-not-connected", "payloads of block %s or its ancestors are missing", to)
	}

	active := alt.BestChain()
	fork := active.FindFork(to)
	validation.Assert(fork != nil, "set state: no fork between %s and %s", current, to)

	if e.isFinal(active, fork) {
		return altInvalid("tip-is-final", "reorganization below %s crosses a final block", fork)
	}

	e.evHandler("pop: SetState: started: from[%s] to[%s] fork[%s]", current, to, fork)

	btcTip, vbkTip := e.trees.Btc.Tip(), e.trees.Vbk.Tip()

	// Unapply the active branch down to the fork point. The histories are kept
	// so the branch can be restored if the target branch fails.
	var unapplied []*AltIndex
	histories := make(map[database.Hash]*command.History)
	for idx := current; idx != fork; idx = idx.Prev {
		histories[idx.Hash()] = e.unapplyBlock(idx)
		unapplied = append(unapplied, idx)
	}
	e.resolveProtecting()

	if err := e.applyBranch(fork, to); err != nil {
		for i := len(unapplied) - 1; i >= 0; i-- {
			e.reapplyBlock(unapplied[i], histories[unapplied[i].Hash()])
		}
		e.restoreProtecting(btcTip, vbkTip)

		e.evHandler("pop: SetState: failed: to[%s]: %s", to, err)
		return err
	}

	alt.SetTip(to)
	e.resolveProtecting()

	e.evHandler("pop: SetState: completed: tip[%s] btc[%s] vbk[%s]", to, e.trees.Btc.Tip(), e.trees.Vbk.Tip())

	return nil
}

// isFinal reports whether reorganizing the active chain down to the fork
// block is forbidden, either because the block after the fork was finalized
// or because the reorganization is deeper than allowed.
func (e *Engine) isFinal(active blocktree.Chain[database.AltBlock], fork *AltIndex) bool {
	if next := active.At(fork.Height() + 1); next != nil && next.IsFinalized() {
		return true
	}

	return active.Tip().Height()-fork.Height() > e.gen.Alt.MaxReorgBlocks
}

// =============================================================================

// applyBranch applies the blocks above the fork up to the tip in increasing
// height order. If a block fails, the blocks applied by this call are
// unapplied, the failing block is invalidated and its error is returned.
func (e *Engine) applyBranch(fork *AltIndex, tip *AltIndex) error {
	path := branch(fork, tip)

	for i, idx := range path {
		err := e.applyBlock(idx)
		if err == nil {
			continue
		}

		for j := i - 1; j >= 0; j-- {
			e.unapplyBlock(path[j])
		}
		e.resolveProtecting()

		if validation.IsInvalid(err) {
			e.trees.Alt.InvalidateSubtree(idx, blocktree.StatusFailedPop)
			return validation.Wrap(err, altCode("bad-command"))
		}

		return err
	}

	e.resolveProtecting()

	return nil
}

// unapplyBranch unapplies the blocks from the tip down to the fork.
func (e *Engine) unapplyBranch(fork *AltIndex, tip *AltIndex) {
	for idx := tip; idx != fork; idx = idx.Prev {
		e.unapplyBlock(idx)
	}
	e.resolveProtecting()
}

// applyBlock executes the command groups of the block on top of its applied
// parent.
func (e *Engine) applyBlock(idx *AltIndex) error {
	validation.Assert(!idx.HasFlags(blocktree.StatusActive), "apply: block %s is already applied", idx)
	validation.Assert(idx.Prev != nil && idx.Prev.HasFlags(blocktree.StatusActive), "apply: parent of %s is not applied", idx)

	pd, err := e.store.PopData(idx.Pop.PayloadIDs())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			validation.Corrupt("apply: payloads of %s are missing: %s", idx, err)
		}
		return err
	}

	if err := e.checkDuplicates(idx); err != nil {
		return err
	}

	hist := new(command.History)
	for _, g := range e.groups(pd, idx.Hash()) {
		if err := hist.Exec(g, &e.trees); err != nil {
			hist.UndoAll(&e.trees)
			return err
		}
	}

	e.histories[idx.Hash()] = hist
	idx.SetFlags(blocktree.StatusActive)
	idx.RaiseValidity(blocktree.StatusCanBeApplied)

	return nil
}

// unapplyBlock reverses every command group of the applied block and returns
// its history with the groups moved to the undone stack.
func (e *Engine) unapplyBlock(idx *AltIndex) *command.History {
	hist, exists := e.histories[idx.Hash()]
	validation.Assert(exists && idx.HasFlags(blocktree.StatusActive), "unapply: block %s is not applied", idx)

	hist.UndoAll(&e.trees)

	delete(e.histories, idx.Hash())
	idx.UnsetFlags(blocktree.StatusActive)

	return hist
}

// reapplyBlock redoes the history of a block unapplied earlier. The block was
// valid before so any failure is corruption.
func (e *Engine) reapplyBlock(idx *AltIndex, hist *command.History) {
	if err := hist.RedoAll(&e.trees); err != nil {
		validation.Corrupt("reapply: block %s failed to reapply: %s", idx, err)
	}

	e.histories[idx.Hash()] = hist
	idx.SetFlags(blocktree.StatusActive)
}

// checkDuplicates fails when a payload of the block is already attached to
// one of its ancestors.
func (e *Engine) checkDuplicates(idx *AltIndex) error {
	for kind, ids := range idx.Pop.PayloadIDs() {
		for _, id := range ids {
			for _, hash := range e.index.containing(id) {
				if hash == idx.Hash() {
					continue
				}

				other := e.trees.Alt.Get(hash)
				if other != nil && other.IsAncestorOf(idx) {
					return validation.Invalid("payload-duplicate", "%s %s of block %s already included in %s", database.PayloadKind(kind), id, idx, other)
				}
			}
		}
	}

	return nil
}

// branch returns the blocks above the fork up to the tip in increasing height
// order.
func branch(fork *AltIndex, tip *AltIndex) []*AltIndex {
	n := int(tip.Height() - fork.Height())
	if n <= 0 {
		return nil
	}

	path := make([]*AltIndex, n)
	for idx := tip; idx != fork; idx = idx.Prev {
		path[idx.Height()-fork.Height()-1] = idx
	}

	return path
}

func altCode(code string) string {
	return genesis.TierAlt + "-" + code
}
