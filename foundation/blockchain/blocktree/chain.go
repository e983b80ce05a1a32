package blocktree

// Chain represents the path from the first block of a tree to a tip with
// constant time lookup by height.
type Chain[B Header] struct {
	start  int32
	blocks []*BlockIndex[B]
}

// NewChain constructs a chain starting at the specified height and ending at
// the specified tip.
func NewChain[B Header](start int32, tip *BlockIndex[B]) Chain[B] {
	c := Chain[B]{start: start}
	c.SetTip(tip)
	return c
}

// First returns the lowest block of the chain.
func (c Chain[B]) First() *BlockIndex[B] {
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[0]
}

// Tip returns the highest block of the chain.
func (c Chain[B]) Tip() *BlockIndex[B] {
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[len(c.blocks)-1]
}

// Height returns the height of the tip, or one below the start when the
// chain is empty.
func (c Chain[B]) Height() int32 {
	return c.start + int32(len(c.blocks)) - 1
}

// Len returns the number of blocks in the chain.
func (c Chain[B]) Len() int {
	return len(c.blocks)
}

// At returns the block at the specified height or nil when the height is
// outside the chain.
func (c Chain[B]) At(height int32) *BlockIndex[B] {
	i := height - c.start
	if i < 0 || int(i) >= len(c.blocks) {
		return nil
	}
	return c.blocks[i]
}

// Contains reports whether the block is part of the chain.
func (c Chain[B]) Contains(idx *BlockIndex[B]) bool {
	if idx == nil {
		return false
	}
	return c.At(idx.Height()) == idx
}

// FindFork returns the highest block of the chain that is an ancestor of, or
// equal to, the specified block.
func (c Chain[B]) FindFork(idx *BlockIndex[B]) *BlockIndex[B] {
	if idx == nil || len(c.blocks) == 0 {
		return nil
	}

	if idx.Height() > c.Height() {
		idx = idx.Ancestor(c.Height())
	}

	for idx != nil && !c.Contains(idx) {
		idx = idx.Prev
	}

	return idx
}

// Blocks returns a copy of the blocks from first to tip.
func (c Chain[B]) Blocks() []*BlockIndex[B] {
	blocks := make([]*BlockIndex[B], len(c.blocks))
	copy(blocks, c.blocks)
	return blocks
}

// Clone returns a chain that does not share storage with this one.
func (c Chain[B]) Clone() Chain[B] {
	return Chain[B]{start: c.start, blocks: c.Blocks()}
}

// SetTip moves the tip of the chain, reusing the part of the current path
// shared with the new tip.
func (c *Chain[B]) SetTip(tip *BlockIndex[B]) {
	if tip == nil {
		c.blocks = c.blocks[:0]
		return
	}

	size := int(tip.Height()-c.start) + 1
	if size < 0 {
		size = 0
	}

	switch {
	case size > len(c.blocks):
		c.blocks = append(c.blocks, make([]*BlockIndex[B], size-len(c.blocks))...)
	default:
		for i := size; i < len(c.blocks); i++ {
			c.blocks[i] = nil
		}
		c.blocks = c.blocks[:size]
	}

	for idx := tip; idx != nil && idx.Height() >= c.start; idx = idx.Prev {
		i := idx.Height() - c.start
		if c.blocks[i] == idx {
			break
		}
		c.blocks[i] = idx
	}
}
