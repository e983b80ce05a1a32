// Package command provides the transactional units of state change applied to
// the block trees when payloads are connected, and the history used to
// reverse them.
package command

import (
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// Kind identifies the effect a command has on the trees.
type Kind int

// Set of command kinds.
const (
	KindAddBtcBlock Kind = iota
	KindAddVbkBlock
	KindAddVbkEndorsement
	KindAddAltEndorsement
)

// String returns the name of the command kind.
func (k Kind) String() string {
	switch k {
	case KindAddBtcBlock:
		return "add-btc-block"
	case KindAddVbkBlock:
		return "add-vbk-block"
	case KindAddVbkEndorsement:
		return "add-vbk-endorsement"
	case KindAddAltEndorsement:
		return "add-alt-endorsement"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Trees represents the set of block trees commands operate on.
type Trees struct {
	Btc *blocktree.Tree[database.BtcBlock]
	Vbk *blocktree.Tree[database.VbkBlock]
	Alt *blocktree.Tree[database.AltBlock]
}

// =============================================================================

// Command is the smallest transactional step. Only the fields matching the
// kind are used.
type Command struct {
	Kind        Kind
	BtcBlock    database.BtcBlock
	VbkBlock    database.VbkBlock
	Endorsement database.Endorsement
	Settlement  int32 // Maximum distance between endorsed and containing block.
}

// AddBtcBlock constructs a command adding a base chain header.
func AddBtcBlock(b database.BtcBlock) Command {
	return Command{Kind: KindAddBtcBlock, BtcBlock: b}
}

// AddVbkBlock constructs a command adding an intermediate chain header.
func AddVbkBlock(b database.VbkBlock) Command {
	return Command{Kind: KindAddVbkBlock, VbkBlock: b}
}

// AddVbkEndorsement constructs a command adding the endorsement of an
// intermediate block published in the base chain.
func AddVbkEndorsement(e database.Endorsement, settlement int32) Command {
	return Command{Kind: KindAddVbkEndorsement, Endorsement: e, Settlement: settlement}
}

// AddAltEndorsement constructs a command adding the endorsement of an
// altchain block published in the intermediate chain.
func AddAltEndorsement(e database.Endorsement, settlement int32) Command {
	return Command{Kind: KindAddAltEndorsement, Endorsement: e, Settlement: settlement}
}

// Execute applies the command to the trees. A failed command leaves the trees
// unchanged.
func (c Command) Execute(trees *Trees) error {
	switch c.Kind {
	case KindAddBtcBlock:
		return addBlock(trees.Btc, c.BtcBlock)

	case KindAddVbkBlock:
		return addBlock(trees.Vbk, c.VbkBlock)

	case KindAddVbkEndorsement:
		return addEndorsement(trees.Vbk, trees.Btc, c.Endorsement, c.Settlement, true)

	case KindAddAltEndorsement:
		return addEndorsement(trees.Alt, trees.Vbk, c.Endorsement, c.Settlement, false)
	}

	validation.Corrupt("execute: unknown command kind %d", c.Kind)
	return nil
}

// Unexecute reverses a successful Execute. Failing to do so means the trees
// no longer match the history and is reported as corruption.
func (c Command) Unexecute(trees *Trees) {
	switch c.Kind {
	case KindAddBtcBlock:
		removeBlock(trees.Btc, c.BtcBlock.Hash())

	case KindAddVbkBlock:
		removeBlock(trees.Vbk, c.VbkBlock.Hash())

	case KindAddVbkEndorsement:
		removeEndorsement(trees.Vbk, trees.Btc, c.Endorsement)

	case KindAddAltEndorsement:
		removeEndorsement(trees.Alt, trees.Vbk, c.Endorsement)

	default:
		validation.Corrupt("unexecute: unknown command kind %d", c.Kind)
	}
}

// String returns a short description of the command.
func (c Command) String() string {
	switch c.Kind {
	case KindAddBtcBlock:
		return fmt.Sprintf("%s[%s@%d]", c.Kind, c.BtcBlock.Hash().TerminalString(), c.BtcBlock.Number)
	case KindAddVbkBlock:
		return fmt.Sprintf("%s[%s@%d]", c.Kind, c.VbkBlock.Hash().TerminalString(), c.VbkBlock.Number)
	}
	return fmt.Sprintf("%s[%s]", c.Kind, c.Endorsement.ID.TerminalString())
}

// =============================================================================

// addBlock accepts the header and takes a reference on it.
func addBlock[B blocktree.Header](tree *blocktree.Tree[B], header B) error {
	idx, err := tree.AcceptBlockHeader(header)
	if err != nil {
		return err
	}

	idx.Pop.AddRef()

	return nil
}

// removeBlock releases a reference on the block. Blocks nothing references
// any more are removed together with unreferenced ancestors.
func removeBlock[B blocktree.Header](tree *blocktree.Tree[B], hash database.Hash) {
	idx := tree.Get(hash)
	validation.Assert(idx != nil, "%s: remove block: %s is unknown", tree.Tier(), hash)
	validation.Assert(idx.Pop.Refs() > 0, "%s: remove block: %s is not referenced", tree.Tier(), idx)

	idx.Pop.ReleaseRef()

	for idx != nil && removable(idx) {
		prev := idx.Prev
		tree.RemoveLeaf(idx)
		idx = prev
	}
}

func removable[B blocktree.Header](idx *blocktree.BlockIndex[B]) bool {
	return idx.Pop.Refs() == 0 &&
		idx.NumChildren() == 0 &&
		!idx.HasFlags(blocktree.StatusBootstrap) &&
		len(idx.Pop.ProofOf()) == 0
}

// addEndorsement checks the endorsement against the protected tree and the
// protecting tree and records it on the three blocks it relates. Shared
// endorsements may be recorded more than once: the same VTB can be carried by
// altchain blocks of competing branches that are applied together while their
// scores are compared.
func addEndorsement[P, Q blocktree.Header](protected *blocktree.Tree[P], protecting *blocktree.Tree[Q], e database.Endorsement, settlement int32, shared bool) error {
	containing := protected.Get(e.ContainingHash)
	if containing == nil {
		return validation.Invalid("no-containing", "containing block %s of endorsement %s is unknown", e.ContainingHash, e.ID)
	}

	endorsed := protected.Get(e.EndorsedHash)
	if endorsed == nil {
		return validation.Invalid("no-endorsed-block", "endorsed block %s of endorsement %s is unknown", e.EndorsedHash, e.ID)
	}

	if endorsed == containing || !endorsed.IsAncestorOf(containing) {
		return validation.Invalid("block-differs", "endorsed block %s is not an ancestor of containing block %s", endorsed, containing)
	}

	if containing.Height()-endorsed.Height() > settlement {
		return validation.Invalid("expired", "endorsed block %s is more than %d blocks below containing block %s", endorsed, settlement, containing)
	}

	proof := protecting.Get(e.BlockOfProof)
	if proof == nil {
		return validation.Invalid("block-of-proof-not-found", "block of proof %s of endorsement %s is unknown", e.BlockOfProof, e.ID)
	}

	if !shared && containing.Pop.ContainsEndorsement(e.ID) {
		return validation.Invalid("duplicate", "endorsement %s already contained in %s", e.ID, containing)
	}

	containing.Pop.AddContaining(e)
	endorsed.Pop.AddEndorsedBy(e)
	proof.Pop.AddProofOf(e.ID)

	return nil
}

// removeEndorsement is the inverse of addEndorsement.
func removeEndorsement[P, Q blocktree.Header](protected *blocktree.Tree[P], protecting *blocktree.Tree[Q], e database.Endorsement) {
	containing := protected.Get(e.ContainingHash)
	endorsed := protected.Get(e.EndorsedHash)
	proof := protecting.Get(e.BlockOfProof)

	validation.Assert(containing != nil && endorsed != nil && proof != nil, "remove endorsement %s: related block is unknown", e.ID)

	validation.Assert(containing.Pop.RemoveContaining(e.ID), "remove endorsement %s: not contained in %s", e.ID, containing)
	validation.Assert(endorsed.Pop.RemoveEndorsedBy(e.ID), "remove endorsement %s: not endorsing %s", e.ID, endorsed)
	validation.Assert(proof.Pop.RemoveProofOf(e.ID), "remove endorsement %s: not proven by %s", e.ID, proof)
}
