package blocktree

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
)

// persistedFlags are the status bits that survive a restart. Validity levels
// and the active flag are recomputed when the state is replayed.
const persistedFlags = StatusFailedMask | StatusHasPayloads | StatusBootstrap

// Snapshot returns the stored form of every block in the tree and the hash of
// the active tip.
func (t *Tree[B]) Snapshot() (map[database.Hash]database.StoredBlock, database.Hash, error) {
	blocks := make(map[database.Hash]database.StoredBlock, len(t.blocks))
	for hash, idx := range t.blocks {
		header, err := json.Marshal(idx.Header)
		if err != nil {
			return nil, database.ZeroHash, fmt.Errorf("marshal header %s: %w", hash, err)
		}

		blocks[hash] = database.StoredBlock{
			Header:    header,
			Status:    uint32(idx.status & persistedFlags),
			Finalized: idx.finalized,
			Payloads:  idx.Pop.PayloadIDs(),
		}
	}

	return blocks, t.best.Tip().hash, nil
}

// Restore links the stored blocks into a freshly constructed tree. Blocks are
// linked in height order without contextual checks since they were validated
// when first accepted. The active chain stays at the root; the caller replays
// the state up to the stored tip.
func (t *Tree[B]) Restore(stored []database.StoredBlock) error {
	type entry struct {
		header B
		sb     database.StoredBlock
	}

	entries := make([]entry, 0, len(stored))
	for _, sb := range stored {
		var header B
		if err := json.Unmarshal(sb.Header, &header); err != nil {
			return fmt.Errorf("unmarshal %s header: %w", t.params.Tier(), err)
		}
		entries = append(entries, entry{header: header, sb: sb})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].header.Height() < entries[j].header.Height()
	})

	for _, e := range entries {
		idx, exists := t.blocks[e.header.Hash()]
		if !exists {
			prev, ok := t.blocks[e.header.PrevHash()]
			if !ok {
				return fmt.Errorf("%s block %s: parent %s not restored", t.params.Tier(), e.header.Hash(), e.header.PrevHash())
			}
			idx = t.link(e.header, prev)
			idx.RaiseValidity(StatusValidTree)
		}

		idx.SetFlags(Status(e.sb.Status) & persistedFlags)
		idx.finalized = idx.finalized || e.sb.Finalized
		idx.Pop.SetPayloads(e.sb.Payloads)
		if idx.HasFlags(StatusHasPayloads) && idx.Prev != nil && idx.Prev.status.Level() >= StatusConnected {
			idx.RaiseValidity(StatusConnected)
		}
	}

	t.rebuildTips()

	t.evHandler("blocktree: %s: Restore: blocks[%d]", t.params.Tier(), len(t.blocks))

	return nil
}

// rebuildTips recomputes the set of valid blocks without valid children.
func (t *Tree[B]) rebuildTips() {
	t.tips = make(map[database.Hash]*BlockIndex[B])
	for hash, idx := range t.blocks {
		if idx.status.KnownInvalid() || t.hasValidChild(idx) {
			continue
		}
		t.tips[hash] = idx
	}
}
