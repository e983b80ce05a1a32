package blocktree

import (
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
)

// Header represents the capability set a block of any chain tier must
// provide to be stored in a tree.
type Header interface {
	Hash() database.Hash
	PrevHash() database.Hash
	Height() int32
	Timestamp() uint32
	Work() uint64
}

// =============================================================================

// BlockIndex wraps one block header and carries the mutable state the trees
// maintain for it. Indexes are owned by the arena of their tree; the parent
// pointer is the only direct reference, every other relation is a hash.
type BlockIndex[B Header] struct {
	Header B
	Prev   *BlockIndex[B]

	hash      database.Hash
	next      map[database.Hash]struct{}
	chainWork uint64
	status    Status
	finalized bool

	Pop PopState
}

func newBlockIndex[B Header](header B, prev *BlockIndex[B]) *BlockIndex[B] {
	idx := BlockIndex[B]{
		Header:    header,
		Prev:      prev,
		hash:      header.Hash(),
		next:      make(map[database.Hash]struct{}),
		chainWork: header.Work(),
	}

	if prev != nil {
		idx.chainWork += prev.chainWork
		prev.next[idx.hash] = struct{}{}
	}

	return &idx
}

// Hash returns the hash of the block.
func (idx *BlockIndex[B]) Hash() database.Hash {
	return idx.hash
}

// Height returns the height of the block.
func (idx *BlockIndex[B]) Height() int32 {
	return idx.Header.Height()
}

// ChainWork returns the cumulative work of the chain ending at this block.
func (idx *BlockIndex[B]) ChainWork() uint64 {
	return idx.chainWork
}

// Status returns the status bit field.
func (idx *BlockIndex[B]) Status() Status {
	return idx.status
}

// HasFlags reports whether every specified flag is set.
func (idx *BlockIndex[B]) HasFlags(flags Status) bool {
	return idx.status&flags == flags
}

// SetFlags sets the specified flags.
func (idx *BlockIndex[B]) SetFlags(flags Status) {
	idx.status |= flags
}

// UnsetFlags clears the specified flags.
func (idx *BlockIndex[B]) UnsetFlags(flags Status) {
	idx.status &^= flags
}

// IsValid reports whether the block has no failure flags and has reached at
// least the specified validity level.
func (idx *BlockIndex[B]) IsValid(upTo Status) bool {
	if idx.status.KnownInvalid() {
		return false
	}
	return idx.status.Level() >= upTo
}

// RaiseValidity moves the validity level up to the specified level. It
// returns false when the block is known invalid.
func (idx *BlockIndex[B]) RaiseValidity(upTo Status) bool {
	if idx.status.KnownInvalid() {
		return false
	}
	if idx.status.Level() < upTo {
		idx.status = (idx.status &^ statusValidMask) | upTo
	}
	return true
}

// LowerValidity moves the validity level down to the specified level.
func (idx *BlockIndex[B]) LowerValidity(upTo Status) {
	if idx.status.Level() > upTo {
		idx.status = (idx.status &^ statusValidMask) | upTo
	}
}

// IsFinalized reports whether the block was finalized.
func (idx *BlockIndex[B]) IsFinalized() bool {
	return idx.finalized
}

// Ancestor returns the ancestor at the specified height by walking the parent
// links. It returns nil when the height is outside the chain of the block.
func (idx *BlockIndex[B]) Ancestor(height int32) *BlockIndex[B] {
	if height > idx.Height() {
		return nil
	}

	n := idx
	for n != nil && n.Height() > height {
		n = n.Prev
	}

	return n
}

// IsAncestorOf reports whether the block is an ancestor of, or equal to, the
// specified block.
func (idx *BlockIndex[B]) IsAncestorOf(other *BlockIndex[B]) bool {
	if other == nil {
		return false
	}
	return other.Ancestor(idx.Height()) == idx
}

// NumChildren returns the number of known children.
func (idx *BlockIndex[B]) NumChildren() int {
	return len(idx.next)
}

// String returns a short description of the block.
func (idx *BlockIndex[B]) String() string {
	return fmt.Sprintf("%s@%d", idx.hash.TerminalString(), idx.Height())
}

// =============================================================================

// PopState is the per block decoration tracking the endorsements a block
// contains, the endorsements pointing at it and the payloads attached to it.
type PopState struct {
	containing []database.Endorsement
	endorsedBy []database.Endorsement
	proofOf    []database.Hash
	payloads   [database.NumKinds][]database.Hash
	refs       int
}

// Containing returns the endorsements contained in the block.
func (ps *PopState) Containing() []database.Endorsement {
	return ps.containing
}

// ContainsEndorsement reports whether the block contains the endorsement.
func (ps *PopState) ContainsEndorsement(id database.Hash) bool {
	for _, e := range ps.containing {
		if e.ID == id {
			return true
		}
	}
	return false
}

// AddContaining records an endorsement contained in the block.
func (ps *PopState) AddContaining(e database.Endorsement) {
	ps.containing = append(ps.containing, e)
}

// RemoveContaining removes an endorsement contained in the block.
func (ps *PopState) RemoveContaining(id database.Hash) bool {
	return removeLast(&ps.containing, func(e database.Endorsement) bool { return e.ID == id })
}

// EndorsedBy returns the endorsements pointing at the block.
func (ps *PopState) EndorsedBy() []database.Endorsement {
	return ps.endorsedBy
}

// AddEndorsedBy records an endorsement pointing at the block.
func (ps *PopState) AddEndorsedBy(e database.Endorsement) {
	ps.endorsedBy = append(ps.endorsedBy, e)
}

// RemoveEndorsedBy removes an endorsement pointing at the block.
func (ps *PopState) RemoveEndorsedBy(id database.Hash) bool {
	return removeLast(&ps.endorsedBy, func(e database.Endorsement) bool { return e.ID == id })
}

// ProofOf returns the ids of the endorsements whose block of proof is this
// block.
func (ps *PopState) ProofOf() []database.Hash {
	return ps.proofOf
}

// AddProofOf records an endorsement whose block of proof is this block.
func (ps *PopState) AddProofOf(id database.Hash) {
	ps.proofOf = append(ps.proofOf, id)
}

// RemoveProofOf removes an endorsement whose block of proof is this block.
func (ps *PopState) RemoveProofOf(id database.Hash) bool {
	return removeLast(&ps.proofOf, func(h database.Hash) bool { return h == id })
}

// Payloads returns the payload ids of the specified kind attached to the
// block.
func (ps *PopState) Payloads(kind database.PayloadKind) []database.Hash {
	return ps.payloads[kind]
}

// PayloadIDs returns every payload id attached to the block.
func (ps *PopState) PayloadIDs() [database.NumKinds][]database.Hash {
	return ps.payloads
}

// SetPayloads attaches the payload ids to the block.
func (ps *PopState) SetPayloads(ids [database.NumKinds][]database.Hash) {
	ps.payloads = ids
}

// ClearPayloads detaches every payload id from the block.
func (ps *PopState) ClearPayloads() {
	ps.payloads = [database.NumKinds][]database.Hash{}
}

// HasPayloads reports whether any payload id is attached.
func (ps *PopState) HasPayloads() bool {
	for _, ids := range ps.payloads {
		if len(ids) > 0 {
			return true
		}
	}
	return false
}

// Refs returns the number of executed commands that reference the block.
func (ps *PopState) Refs() int {
	return ps.refs
}

// AddRef increments the command reference count.
func (ps *PopState) AddRef() {
	ps.refs++
}

// ReleaseRef decrements the command reference count and returns the new
// count.
func (ps *PopState) ReleaseRef() int {
	ps.refs--
	return ps.refs
}

// =============================================================================

// removeLast removes the last element matching the predicate while keeping
// the order of the remaining elements. An emptied slice becomes nil.
func removeLast[T any](s *[]T, match func(T) bool) bool {
	list := *s
	for i := len(list) - 1; i >= 0; i-- {
		if !match(list[i]) {
			continue
		}

		list = append(list[:i], list[i+1:]...)
		if len(list) == 0 {
			list = nil
		}
		*s = list

		return true
	}

	return false
}
