package state

import (
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
)

// BlockInfo is a copy of the state of one block index that can be used
// outside the lock.
type BlockInfo struct {
	Tier        string                     `json:"tier"`
	Hash        database.Hash              `json:"hash"`
	PrevHash    database.Hash              `json:"previousHash"`
	Height      int32                      `json:"height"`
	ChainWork   uint64                     `json:"chainWork"`
	Status      string                     `json:"status"`
	Validity    string                     `json:"validity"`
	Finalized   bool                       `json:"finalized"`
	OnBestChain bool                       `json:"onBestChain"`
	Containing  []database.Endorsement     `json:"containing,omitempty"`
	EndorsedBy  []database.Endorsement     `json:"endorsedBy,omitempty"`
	Payloads    map[string][]database.Hash `json:"payloads,omitempty"`
	Header      any                        `json:"header"`
}

func newBlockInfo[B blocktree.Header](tree *blocktree.Tree[B], idx *blocktree.BlockIndex[B]) BlockInfo {
	info := BlockInfo{
		Tier:        tree.Tier(),
		Hash:        idx.Hash(),
		PrevHash:    idx.Header.PrevHash(),
		Height:      idx.Height(),
		ChainWork:   idx.ChainWork(),
		Status:      idx.Status().String(),
		Validity:    idx.Status().Validity().String(),
		Finalized:   idx.IsFinalized(),
		OnBestChain: tree.OnBestChain(idx),
		Containing:  append([]database.Endorsement(nil), idx.Pop.Containing()...),
		EndorsedBy:  append([]database.Endorsement(nil), idx.Pop.EndorsedBy()...),
		Header:      idx.Header,
	}

	for kind := database.PayloadKind(0); kind < database.NumKinds; kind++ {
		ids := idx.Pop.Payloads(kind)
		if len(ids) == 0 {
			continue
		}
		if info.Payloads == nil {
			info.Payloads = make(map[string][]database.Hash)
		}
		info.Payloads[kind.String()] = append([]database.Hash(nil), ids...)
	}

	return info
}

// Tips represents the active tips of the three trees.
type Tips struct {
	Btc BlockInfo `json:"btc"`
	Vbk BlockInfo `json:"vbk"`
	Alt BlockInfo `json:"alt"`
}

// =============================================================================

// QueryTips returns the active tips of the three trees.
func (s *State) QueryTips() (Tips, error) {
	var tips Tips

	err := s.read(func() error {
		tips = Tips{
			Btc: newBlockInfo(s.engine.Btc(), s.engine.Btc().Tip()),
			Vbk: newBlockInfo(s.engine.Vbk(), s.engine.Vbk().Tip()),
			Alt: newBlockInfo(s.engine.Alt(), s.engine.Alt().Tip()),
		}
		return nil
	})

	return tips, err
}

// QueryBlock returns the block of the specified tier.
func (s *State) QueryBlock(tier string, hash database.Hash) (BlockInfo, bool, error) {
	var info BlockInfo
	var found bool

	err := s.read(func() error {
		switch tier {
		case genesis.TierBtc:
			info, found = lookup(s.engine.Btc(), hash)
		case genesis.TierVbk:
			info, found = lookup(s.engine.Vbk(), hash)
		case genesis.TierAlt:
			info, found = lookup(s.engine.Alt(), hash)
		default:
			return fmt.Errorf("tier %q does not exist", tier)
		}
		return nil
	})

	return info, found, err
}

// QueryBestChain returns the active altchain blocks from the specified
// height up to the tip.
func (s *State) QueryBestChain(from int32) ([]BlockInfo, error) {
	var out []BlockInfo

	err := s.read(func() error {
		alt := s.engine.Alt()
		chain := alt.BestChain()

		if from < chain.First().Height() {
			from = chain.First().Height()
		}

		for h := from; h <= chain.Height(); h++ {
			out = append(out, newBlockInfo(alt, chain.At(h)))
		}
		return nil
	})

	return out, err
}

// QueryAltTips returns every altchain tip in fork resolution order.
func (s *State) QueryAltTips() ([]BlockInfo, error) {
	var out []BlockInfo

	err := s.read(func() error {
		alt := s.engine.Alt()
		for _, idx := range alt.Tips() {
			out = append(out, newBlockInfo(alt, idx))
		}
		return nil
	})

	return out, err
}

// QueryContainingBlocks returns the altchain blocks the payload is attached
// to.
func (s *State) QueryContainingBlocks(id database.Hash) ([]database.Hash, error) {
	var out []database.Hash

	err := s.read(func() error {
		for _, idx := range s.engine.ContainingBlocks(id) {
			out = append(out, idx.Hash())
		}
		return nil
	})

	return out, err
}

func lookup[B blocktree.Header](tree *blocktree.Tree[B], hash database.Hash) (BlockInfo, bool) {
	idx := tree.Get(hash)
	if idx == nil {
		return BlockInfo{}, false
	}
	return newBlockInfo(tree, idx), true
}
