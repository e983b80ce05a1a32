// Package pop implements the proof-of-proof state engine. It converts the
// payloads of altchain blocks into command groups, moves the applied state
// between branches and decides which branch is best by comparing the
// publications of their keystones.
package pop

import (
	"errors"
	"fmt"
	"time"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/command"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// Set of block index types of the three chain tiers.
type (
	BtcIndex = blocktree.BlockIndex[database.BtcBlock]
	VbkIndex = blocktree.BlockIndex[database.VbkBlock]
	AltIndex = blocktree.BlockIndex[database.AltBlock]
)

// PayloadStore represents the behavior required to persist payload bodies
// and resolve the payload ids of a block back into its PopData.
type PayloadStore interface {
	StorePayloads(pd database.PopData) error
	PopData(ids [database.NumKinds][]database.Hash) (database.PopData, error)
}

// Config represents the configuration required to construct an engine.
type Config struct {
	Genesis   genesis.Genesis
	Store     PayloadStore
	EvHandler func(v string, args ...any)
	Now       func() time.Time
}

// Engine owns the three block trees and the command histories of the applied
// altchain blocks. It is not safe for concurrent use.
type Engine struct {
	gen       genesis.Genesis
	store     PayloadStore
	evHandler func(v string, args ...any)

	trees     command.Trees
	histories map[database.Hash]*command.History
	index     payloadIndex
}

// New constructs an engine with the three trees bootstrapped at their
// genesis blocks.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("pop: payload store is required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	btc, err := blocktree.New(blocktree.Config[database.BtcBlock]{Params: cfg.Genesis.Btc, EvHandler: ev, Now: cfg.Now})
	if err != nil {
		return nil, fmt.Errorf("btc tree: %w", err)
	}

	vbk, err := blocktree.New(blocktree.Config[database.VbkBlock]{Params: cfg.Genesis.Vbk, EvHandler: ev, Now: cfg.Now})
	if err != nil {
		return nil, fmt.Errorf("vbk tree: %w", err)
	}

	alt, err := blocktree.New(blocktree.Config[database.AltBlock]{Params: cfg.Genesis.Alt, EvHandler: ev, Now: cfg.Now})
	if err != nil {
		return nil, fmt.Errorf("alt tree: %w", err)
	}

	// The altchain genesis block carries no payloads and is always applied.
	root := alt.Root()
	root.SetFlags(blocktree.StatusActive | blocktree.StatusHasPayloads)

	e := Engine{
		gen:       cfg.Genesis,
		store:     cfg.Store,
		evHandler: ev,
		trees: command.Trees{
			Btc: btc,
			Vbk: vbk,
			Alt: alt,
		},
		histories: make(map[database.Hash]*command.History),
		index:     newPayloadIndex(),
	}

	return &e, nil
}

// Genesis returns the chain parameters of the engine.
func (e *Engine) Genesis() genesis.Genesis {
	return e.gen
}

// Btc returns the base chain tree.
func (e *Engine) Btc() *blocktree.Tree[database.BtcBlock] {
	return e.trees.Btc
}

// Vbk returns the intermediate chain tree.
func (e *Engine) Vbk() *blocktree.Tree[database.VbkBlock] {
	return e.trees.Vbk
}

// Alt returns the altchain tree.
func (e *Engine) Alt() *blocktree.Tree[database.AltBlock] {
	return e.trees.Alt
}

// ContainingBlocks returns the altchain blocks the payload is attached to.
func (e *Engine) ContainingBlocks(id database.Hash) []*AltIndex {
	var blocks []*AltIndex
	for _, hash := range e.index.containing(id) {
		if idx := e.trees.Alt.Get(hash); idx != nil {
			blocks = append(blocks, idx)
		}
	}
	return blocks
}

// IsIncluded reports whether the payload is attached to a block of the
// active altchain.
func (e *Engine) IsIncluded(id database.Hash) bool {
	for _, idx := range e.ContainingBlocks(id) {
		if e.trees.Alt.OnBestChain(idx) {
			return true
		}
	}
	return false
}

// =============================================================================

// AcceptBlockHeader validates and links an altchain header.
func (e *Engine) AcceptBlockHeader(header database.AltBlock) (*AltIndex, error) {
	return e.trees.Alt.AcceptBlockHeader(header)
}

// AcceptBlock accepts the altchain header and attaches its PopData. The
// payloads must have passed their stateless checks. Stateful validation
// happens when the block is applied.
func (e *Engine) AcceptBlock(header database.AltBlock, pd database.PopData) (*AltIndex, error) {
	idx, err := e.trees.Alt.AcceptBlockHeader(header)
	if err != nil {
		return nil, err
	}

	ids := pd.IDs()

	// Accepting the same block again is a no-op.
	if idx.HasFlags(blocktree.StatusHasPayloads) {
		if sameIDs(idx.Pop.PayloadIDs(), ids) {
			return idx, nil
		}
		return idx, altInvalid("payloads-already-attached", "block %s already has different payloads", idx)
	}

	if root := pd.Root(); root != header.PopRoot {
		return idx, altInvalid("bad-pop-root", "pop data root %s does not match header root %s", root, header.PopRoot)
	}

	if err := e.checkLimits(pd); err != nil {
		return idx, err
	}

	seen := make(map[database.Hash]struct{})
	for _, list := range ids {
		for _, id := range list {
			if _, exists := seen[id]; exists {
				return idx, altInvalid("duplicate-payload", "payload %s appears twice in block %s", id, idx)
			}
			seen[id] = struct{}{}
		}
	}

	if !pd.Empty() {
		if err := e.store.StorePayloads(pd); err != nil {
			return idx, fmt.Errorf("store payloads of %s: %w", idx, err)
		}
	}

	idx.Pop.SetPayloads(ids)
	idx.SetFlags(blocktree.StatusHasPayloads)
	e.index.add(idx.Hash(), ids)
	e.connect(idx)

	e.evHandler("pop: AcceptBlock: block[%s] vbk[%d] vtb[%d] atv[%d]", idx, len(pd.Context), len(pd.VTBs), len(pd.ATVs))

	return idx, nil
}

// checkLimits checks the payload counts and the size of the PopData.
func (e *Engine) checkLimits(pd database.PopData) error {
	for kind := database.PayloadKind(0); kind < database.NumKinds; kind++ {
		if n, limit := pd.Count(kind), e.gen.Alt.MaxCount(kind); n > limit {
			return altInvalid("pop-data-too-large", "%d %s payloads exceed the limit of %d", n, kind, limit)
		}
	}

	if size := pd.Size(); size > e.gen.Alt.MaxPopDataSize {
		return altInvalid("pop-data-too-large", "pop data size %d exceeds the limit of %d", size, e.gen.Alt.MaxPopDataSize)
	}

	return nil
}

// connect raises the block and its descendants with payloads to the
// connected level once every ancestor is connected.
func (e *Engine) connect(idx *AltIndex) {
	if idx.Prev == nil || idx.Prev.Status().Level() < blocktree.StatusConnected {
		return
	}

	if !idx.HasFlags(blocktree.StatusHasPayloads) || !idx.RaiseValidity(blocktree.StatusConnected) {
		return
	}

	for _, child := range e.trees.Alt.Children(idx) {
		e.connect(child)
	}
}

// disconnect lowers the block and its descendants below the connected level.
func (e *Engine) disconnect(idx *AltIndex) {
	idx.LowerValidity(blocktree.StatusValidTree)
	for _, child := range e.trees.Alt.Children(idx) {
		e.disconnect(child)
	}
}

// RemovePayloads detaches the payloads from a block that is not applied. It
// is the inverse of attaching them in AcceptBlock.
func (e *Engine) RemovePayloads(hash database.Hash) error {
	idx := e.trees.Alt.Get(hash)
	if idx == nil {
		return altInvalid("unknown-block", "block %s is unknown", hash)
	}

	if idx == e.trees.Alt.Root() {
		return altInvalid("bootstrap-block", "payloads of the bootstrap block can not be removed")
	}

	if idx.HasFlags(blocktree.StatusActive) {
		return altInvalid("block-applied", "block %s is applied", idx)
	}

	if !idx.HasFlags(blocktree.StatusHasPayloads) {
		return nil
	}

	e.index.remove(idx.Hash(), idx.Pop.PayloadIDs())
	idx.Pop.ClearPayloads()
	idx.UnsetFlags(blocktree.StatusHasPayloads)
	e.disconnect(idx)

	if idx.HasFlags(blocktree.StatusFailedPop) {
		e.trees.Alt.RevalidateSubtree(idx, blocktree.StatusFailedPop)
	}

	e.evHandler("pop: RemovePayloads: block[%s]", idx)

	return nil
}

// InvalidateBlock marks the block and its descendants as invalid. An applied
// block is unapplied first.
func (e *Engine) InvalidateBlock(hash database.Hash) error {
	idx := e.trees.Alt.Get(hash)
	if idx == nil {
		return altInvalid("unknown-block", "block %s is unknown", hash)
	}

	if idx == e.trees.Alt.Root() {
		return altInvalid("bootstrap-block", "the bootstrap block can not be invalidated")
	}

	if e.trees.Alt.OnBestChain(idx) {
		if err := e.SetState(idx.Prev); err != nil {
			return err
		}
	}

	e.trees.Alt.InvalidateSubtree(idx, blocktree.StatusFailedBlock)

	e.evHandler("pop: InvalidateBlock: block[%s]", idx)

	return nil
}

// FinalizeBlock marks the active block and its ancestors as final.
func (e *Engine) FinalizeBlock(hash database.Hash) error {
	return e.trees.Alt.FinalizeBlock(hash)
}

// =============================================================================

// Snapshot returns the stored form of the altchain tree and its active tip.
func (e *Engine) Snapshot() (map[database.Hash]database.StoredBlock, database.Hash, error) {
	return e.trees.Alt.Snapshot()
}

// Restore rebuilds the altchain tree from its stored form and replays the
// state up to the stored tip. The protecting trees are rebuilt by the
// replayed commands.
func (e *Engine) Restore(stored []database.StoredBlock, tip database.Hash) error {
	if err := e.trees.Alt.Restore(stored); err != nil {
		return err
	}

	e.trees.Alt.ForEach(func(idx *AltIndex) bool {
		if idx != e.trees.Alt.Root() {
			e.index.add(idx.Hash(), idx.Pop.PayloadIDs())
		}
		return true
	})

	target := e.trees.Alt.Get(tip)
	if target == nil {
		return fmt.Errorf("restore: stored tip %s is unknown", tip)
	}

	if err := e.SetState(target); err != nil {
		return fmt.Errorf("restore: replay to %s: %w", target, err)
	}

	e.evHandler("pop: Restore: tip[%s] btc[%s] vbk[%s]", target, e.trees.Btc.Tip(), e.trees.Vbk.Tip())

	return nil
}

// =============================================================================

// group converts one payload into the commands it represents. The containing
// hash is the altchain block the payload is carried in.
func (e *Engine) group(p database.Payload, containing database.Hash) *command.Group {
	g := command.NewGroup(p.ID(), p.Kind())

	switch v := p.(type) {
	case database.VbkBlock:
		g.Add(command.AddVbkBlock(v))

	case database.VTB:
		for _, b := range v.Context {
			g.Add(command.AddBtcBlock(b))
		}
		g.Add(command.AddBtcBlock(v.BlockOfProof))
		g.Add(command.AddVbkBlock(v.ContainingBlock))
		g.Add(command.AddVbkEndorsement(v.Endorsement(), e.gen.Vbk.SettlementInterval()))

	case database.ATV:
		for _, b := range v.Context {
			g.Add(command.AddVbkBlock(b))
		}
		g.Add(command.AddVbkBlock(v.BlockOfProof))
		g.Add(command.AddAltEndorsement(v.Endorsement(containing), e.gen.Alt.SettlementInterval()))

	default:
		validation.Corrupt("group: unknown payload type %T", p)
	}

	return g
}

// groups converts the PopData into command groups in application order.
func (e *Engine) groups(pd database.PopData, containing database.Hash) []*command.Group {
	payloads := pd.Payloads()

	groups := make([]*command.Group, len(payloads))
	for i, p := range payloads {
		groups[i] = e.group(p, containing)
	}

	return groups
}

// =============================================================================

func altInvalid(code string, format string, args ...any) error {
	return validation.Invalid(altCode(code), format, args...)
}

func sameIDs(a, b [database.NumKinds][]database.Hash) bool {
	for kind := range a {
		if len(a[kind]) != len(b[kind]) {
			return false
		}
		for i := range a[kind] {
			if a[kind][i] != b[kind][i] {
				return false
			}
		}
	}
	return true
}
