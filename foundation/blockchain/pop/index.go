package pop

import (
	"bytes"
	"sort"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
)

// payloadIndex maps a payload id to the altchain blocks it was attached to.
type payloadIndex struct {
	blocks map[database.Hash]map[database.Hash]struct{}
}

func newPayloadIndex() payloadIndex {
	return payloadIndex{
		blocks: make(map[database.Hash]map[database.Hash]struct{}),
	}
}

// add records the block as containing every payload id.
func (pi payloadIndex) add(block database.Hash, ids [database.NumKinds][]database.Hash) {
	for _, list := range ids {
		for _, id := range list {
			set, exists := pi.blocks[id]
			if !exists {
				set = make(map[database.Hash]struct{})
				pi.blocks[id] = set
			}
			set[block] = struct{}{}
		}
	}
}

// remove is the inverse of add.
func (pi payloadIndex) remove(block database.Hash, ids [database.NumKinds][]database.Hash) {
	for _, list := range ids {
		for _, id := range list {
			set, exists := pi.blocks[id]
			if !exists {
				continue
			}
			delete(set, block)
			if len(set) == 0 {
				delete(pi.blocks, id)
			}
		}
	}
}

// containing returns the hashes of the blocks the payload is attached to in
// byte order.
func (pi payloadIndex) containing(id database.Hash) []database.Hash {
	set := pi.blocks[id]

	hashes := make([]database.Hash, 0, len(set))
	for hash := range set {
		hashes = append(hashes, hash)
	}

	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})

	return hashes
}
