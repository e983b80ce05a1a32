// Package merkle provides the merkle tree used to commit the PopData of an
// altchain block into its header.
package merkle

import (
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Tree represents a merkle tree over a set of leaf digests. Levels are stored
// bottom up and the last node of an odd level is paired with itself.
type Tree struct {
	levels       [][]common.Hash
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy(hashStrategy func() hash.Hash) func(t *Tree) {
	return func(t *Tree) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a merkle tree over the specified leaves. A tree with no
// leaves has a root of zeros.
func NewTree(leaves []common.Hash, options ...func(t *Tree)) *Tree {
	t := Tree{
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	t.generate(leaves)

	return &t
}

// Root returns the merkle root of the tree.
func (t *Tree) Root() common.Hash {
	if len(t.levels) == 0 {
		return common.Hash{}
	}

	top := t.levels[len(t.levels)-1]
	return top[0]
}

// RootHex converts the merkle root to a hex encoded string.
func (t *Tree) RootHex() string {
	root := t.Root()
	return hexutil.Encode(root[:])
}

// Proof returns the set of sibling hashes and the order of concatenating
// those hashes for proving the leaf at the specified index is in the tree.
// An order of 0 means the sibling comes first.
func (t *Tree) Proof(index int) ([]common.Hash, []int, error) {
	if len(t.levels) == 0 || index < 0 || index >= len(t.levels[0]) {
		return nil, nil, errors.New("unable to find leaf in tree")
	}

	var proof []common.Hash
	var order []int

	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index
		}

		proof = append(proof, level[sibling])
		if sibling < index {
			order = append(order, 0)
		} else {
			order = append(order, 1)
		}

		index /= 2
	}

	return proof, order, nil
}

// Verify processes the leaf against the proof and reports whether the
// resulting hash matches the root.
func (t *Tree) Verify(leaf common.Hash, proof []common.Hash, order []int, root common.Hash) bool {
	if len(proof) != len(order) {
		return false
	}

	current := leaf
	for i, sibling := range proof {
		switch order[i] {
		case 0:
			current = t.combine(sibling, current)
		default:
			current = t.combine(current, sibling)
		}
	}

	return current == root
}

// =============================================================================

// generate builds every level of the tree from the leaves up to the root.
func (t *Tree) generate(leaves []common.Hash) {
	if len(leaves) == 0 {
		return
	}

	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	t.levels = append(t.levels, level)

	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := i + 1
			if right == len(level) {
				right = i
			}
			next = append(next, t.combine(level[i], level[right]))
		}

		t.levels = append(t.levels, next)
		level = next
	}
}

// combine hashes the concatenation of two nodes.
func (t *Tree) combine(left, right common.Hash) common.Hash {
	h := t.hashStrategy()
	h.Write(left[:])
	h.Write(right[:])
	return common.BytesToHash(h.Sum(nil))
}
