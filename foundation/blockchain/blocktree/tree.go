// Package blocktree provides the in-memory tree of block headers maintained
// for each chain tier. The tree is generic over the header type so the base,
// intermediate and altchain trees share one implementation.
package blocktree

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// medianTimeSpan is the number of blocks used to calculate the median time
// past of a block.
const medianTimeSpan = 11

// Params represents the chain specific rules a tree delegates to.
type Params[B Header] interface {
	Tier() string
	GenesisBlock() B
	MaxFutureTime() uint32
	CheckHeader(header B, prev *BlockIndex[B]) error
}

// Config represents the configuration required to construct a tree.
type Config[B Header] struct {
	Params    Params[B]
	EvHandler func(v string, args ...any)
	Now       func() time.Time
}

// Tree manages the set of known headers of one chain tier and the chain that
// is currently active.
type Tree[B Header] struct {
	params    Params[B]
	evHandler func(v string, args ...any)
	now       func() time.Time

	blocks map[database.Hash]*BlockIndex[B]
	tips   map[database.Hash]*BlockIndex[B]
	root   *BlockIndex[B]
	best   Chain[B]
}

// New constructs a tree bootstrapped with the genesis block of the params.
func New[B Header](cfg Config[B]) (*Tree[B], error) {
	if cfg.Params == nil {
		return nil, errors.New("blocktree: params are required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	t := Tree[B]{
		params:    cfg.Params,
		evHandler: ev,
		now:       now,
		blocks:    make(map[database.Hash]*BlockIndex[B]),
		tips:      make(map[database.Hash]*BlockIndex[B]),
	}

	genesis := cfg.Params.GenesisBlock()
	root := newBlockIndex(genesis, nil)
	root.SetFlags(StatusBootstrap)
	root.RaiseValidity(StatusCanBeApplied)
	root.finalized = true

	t.blocks[root.hash] = root
	t.tips[root.hash] = root
	t.root = root
	t.best = NewChain(genesis.Height(), root)

	ev("blocktree: %s: bootstrap: height[%d] hash[%s]", t.params.Tier(), genesis.Height(), root.hash)

	return &t, nil
}

// Tier returns the name of the chain tier.
func (t *Tree[B]) Tier() string {
	return t.params.Tier()
}

// Params returns the chain parameters of the tree.
func (t *Tree[B]) Params() Params[B] {
	return t.params
}

// Root returns the bootstrap block of the tree.
func (t *Tree[B]) Root() *BlockIndex[B] {
	return t.root
}

// Len returns the number of blocks in the tree.
func (t *Tree[B]) Len() int {
	return len(t.blocks)
}

// Get returns the block index for the hash or nil when it is unknown.
func (t *Tree[B]) Get(hash database.Hash) *BlockIndex[B] {
	return t.blocks[hash]
}

// BestChain returns a read only copy of the active chain.
func (t *Tree[B]) BestChain() Chain[B] {
	return t.best.Clone()
}

// Tip returns the tip of the active chain.
func (t *Tree[B]) Tip() *BlockIndex[B] {
	return t.best.Tip()
}

// OnBestChain reports whether the block is part of the active chain.
func (t *Tree[B]) OnBestChain(idx *BlockIndex[B]) bool {
	return t.best.Contains(idx)
}

// SetTip moves the active chain to the specified block. It performs no
// validation; the caller decides which tip is best.
func (t *Tree[B]) SetTip(idx *BlockIndex[B]) {
	t.best.SetTip(idx)
	t.evHandler("blocktree: %s: SetTip: height[%d] hash[%s]", t.params.Tier(), idx.Height(), idx.hash)
}

// Tips returns the valid blocks without valid children ordered by chain work,
// then height, then hash.
func (t *Tree[B]) Tips() []*BlockIndex[B] {
	tips := make([]*BlockIndex[B], 0, len(t.tips))
	for _, idx := range t.tips {
		tips = append(tips, idx)
	}

	sort.Slice(tips, func(i, j int) bool {
		a, b := tips[i], tips[j]
		if a.chainWork != b.chainWork {
			return a.chainWork > b.chainWork
		}
		if a.Height() != b.Height() {
			return a.Height() > b.Height()
		}
		return bytes.Compare(a.hash[:], b.hash[:]) < 0
	})

	return tips
}

// Children returns the known children of the block.
func (t *Tree[B]) Children(idx *BlockIndex[B]) []*BlockIndex[B] {
	children := make([]*BlockIndex[B], 0, len(idx.next))
	for hash := range idx.next {
		children = append(children, t.blocks[hash])
	}

	sort.Slice(children, func(i, j int) bool {
		return bytes.Compare(children[i].hash[:], children[j].hash[:]) < 0
	})

	return children
}

// ForEach calls the function for every block in the tree in height order.
func (t *Tree[B]) ForEach(fn func(idx *BlockIndex[B]) bool) {
	blocks := make([]*BlockIndex[B], 0, len(t.blocks))
	for _, idx := range t.blocks {
		blocks = append(blocks, idx)
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Height() != blocks[j].Height() {
			return blocks[i].Height() < blocks[j].Height()
		}
		return bytes.Compare(blocks[i].hash[:], blocks[j].hash[:]) < 0
	})

	for _, idx := range blocks {
		if !fn(idx) {
			return
		}
	}
}

// =============================================================================

// AcceptBlockHeader validates the header against its parent and links it into
// the tree. Accepting a known header returns the existing index. The active
// chain is not changed.
func (t *Tree[B]) AcceptBlockHeader(header B) (*BlockIndex[B], error) {
	hash := header.Hash()

	if idx, exists := t.blocks[hash]; exists {
		if idx.status.KnownInvalid() {
			return idx, t.invalid("duplicate", "block %s is known invalid: %s", hash, idx.status)
		}
		return idx, nil
	}

	prev, exists := t.blocks[header.PrevHash()]
	if !exists {
		return nil, t.invalid("bad-prev-block", "previous block %s of %s is unknown", header.PrevHash(), hash)
	}

	if prev.status.KnownInvalid() {
		return nil, t.invalid("bad-prevblk", "previous block %s is invalid: %s", prev.hash, prev.status)
	}

	if err := t.checkContext(header, prev); err != nil {
		return nil, validation.Wrap(err, t.params.Tier()+"-bad-header")
	}

	idx := t.link(header, prev)
	idx.RaiseValidity(StatusValidTree)

	t.evHandler("blocktree: %s: AcceptBlockHeader: height[%d] hash[%s]", t.params.Tier(), idx.Height(), hash)

	return idx, nil
}

// link creates the index for the header and adds it to the tree as a tip.
func (t *Tree[B]) link(header B, prev *BlockIndex[B]) *BlockIndex[B] {
	idx := newBlockIndex(header, prev)

	t.blocks[idx.hash] = idx
	delete(t.tips, prev.hash)
	t.tips[idx.hash] = idx

	return idx
}

// checkContext performs the contextual checks of a header against its
// parent.
func (t *Tree[B]) checkContext(header B, prev *BlockIndex[B]) error {
	if header.Height() != prev.Height()+1 {
		return validation.Invalid("bad-height", "height %d does not follow parent height %d", header.Height(), prev.Height())
	}

	if mtp := t.MedianTimePast(prev); header.Timestamp() <= mtp {
		return validation.Invalid("time-too-old", "timestamp %d is not above median time past %d", header.Timestamp(), mtp)
	}

	maxTime := uint32(t.now().Unix()) + t.params.MaxFutureTime()
	if header.Timestamp() > maxTime {
		return validation.Invalid("time-too-new", "timestamp %d is above the allowed %d", header.Timestamp(), maxTime)
	}

	return t.params.CheckHeader(header, prev)
}

// MedianTimePast returns the median timestamp of the block and its
// ancestors, using at most the last eleven blocks.
func (t *Tree[B]) MedianTimePast(idx *BlockIndex[B]) uint32 {
	times := make([]uint32, 0, medianTimeSpan)
	for n := idx; n != nil && len(times) < medianTimeSpan; n = n.Prev {
		times = append(times, n.Header.Timestamp())
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	return times[len(times)/2]
}

// =============================================================================

// RemoveLeaf removes a block that has no children from the tree. When the
// block is the active tip the parent becomes the active tip.
func (t *Tree[B]) RemoveLeaf(idx *BlockIndex[B]) {
	validation.Assert(idx != t.root, "%s: can not remove the root block %s", t.params.Tier(), idx)
	validation.Assert(len(idx.next) == 0, "%s: can not remove block %s with %d children", t.params.Tier(), idx, len(idx.next))
	validation.Assert(t.blocks[idx.hash] == idx, "%s: removing unknown block %s", t.params.Tier(), idx)

	prev := idx.Prev

	if t.best.Tip() == idx {
		t.best.SetTip(prev)
	}

	delete(prev.next, idx.hash)
	delete(t.blocks, idx.hash)
	delete(t.tips, idx.hash)

	if !prev.status.KnownInvalid() && !t.hasValidChild(prev) {
		t.tips[prev.hash] = prev
	}

	t.evHandler("blocktree: %s: RemoveLeaf: height[%d] hash[%s]", t.params.Tier(), idx.Height(), idx.hash)
}

// InvalidateSubtree marks the block with the specified failure flag and
// every descendant with the failed child flag. The active chain is not
// changed; invalidating an active block is the caller's responsibility.
func (t *Tree[B]) InvalidateSubtree(idx *BlockIndex[B], reason Status) {
	validation.Assert(reason&StatusFailedMask == reason && reason != 0, "%s: invalid failure reason %s", t.params.Tier(), reason)
	validation.Assert(idx != t.root, "%s: can not invalidate the root block", t.params.Tier())

	t.evHandler("blocktree: %s: InvalidateSubtree: height[%d] hash[%s] reason[%s]", t.params.Tier(), idx.Height(), idx.hash, reason)

	t.doInvalidate(idx, reason)

	prev := idx.Prev
	if !prev.status.KnownInvalid() && !t.hasValidChild(prev) {
		t.tips[prev.hash] = prev
	}
}

func (t *Tree[B]) doInvalidate(idx *BlockIndex[B], reason Status) {
	idx.SetFlags(reason)
	delete(t.tips, idx.hash)

	for hash := range idx.next {
		t.doInvalidate(t.blocks[hash], StatusFailedChild)
	}
}

// RevalidateSubtree clears the specified failure flag from the block and, if
// the block becomes valid, the failed child flag from its descendants.
func (t *Tree[B]) RevalidateSubtree(idx *BlockIndex[B], reason Status) {
	validation.Assert(reason&StatusFailedMask == reason && reason != 0, "%s: invalid failure reason %s", t.params.Tier(), reason)

	t.evHandler("blocktree: %s: RevalidateSubtree: height[%d] hash[%s] reason[%s]", t.params.Tier(), idx.Height(), idx.hash, reason)

	if idx.Prev != nil && idx.Prev.status.KnownInvalid() {
		idx.UnsetFlags(reason &^ StatusFailedChild)
		return
	}

	t.doRevalidate(idx, reason)
}

func (t *Tree[B]) doRevalidate(idx *BlockIndex[B], reason Status) {
	idx.UnsetFlags(reason)
	if idx.status.KnownInvalid() {
		return
	}

	if idx.Prev != nil {
		delete(t.tips, idx.Prev.hash)
	}
	if !t.hasValidChild(idx) {
		t.tips[idx.hash] = idx
	}

	for hash := range idx.next {
		t.doRevalidate(t.blocks[hash], StatusFailedChild)
	}
}

// hasValidChild reports whether any child of the block is not known invalid.
func (t *Tree[B]) hasValidChild(idx *BlockIndex[B]) bool {
	for hash := range idx.next {
		if !t.blocks[hash].status.KnownInvalid() {
			return true
		}
	}
	return false
}

// =============================================================================

// FinalizeBlock marks the block and all of its ancestors as final. Only
// blocks of the active chain can be finalized.
func (t *Tree[B]) FinalizeBlock(hash database.Hash) error {
	idx, exists := t.blocks[hash]
	if !exists {
		return t.invalid("unknown-block", "block %s is unknown", hash)
	}

	if !t.best.Contains(idx) {
		return t.invalid("block-not-active", "block %s is not on the active chain", hash)
	}

	for n := idx; n != nil && !n.finalized; n = n.Prev {
		n.finalized = true
	}

	t.evHandler("blocktree: %s: FinalizeBlock: height[%d] hash[%s]", t.params.Tier(), idx.Height(), hash)

	return nil
}

// invalid constructs a validation error prefixed with the tier name.
func (t *Tree[B]) invalid(code string, format string, args ...any) error {
	return validation.Invalid(t.params.Tier()+"-"+code, format, args...)
}

// String returns a short description of the tree.
func (t *Tree[B]) String() string {
	return fmt.Sprintf("%s tree: blocks[%d] tips[%d] tip[%s]", t.params.Tier(), len(t.blocks), len(t.tips), t.best.Tip())
}
