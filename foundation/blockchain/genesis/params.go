package genesis

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// Tier names used as the prefix of validation reason codes and as storage
// namespaces.
const (
	TierBtc = "BTC"
	TierVbk = "VBK"
	TierAlt = "ALT"
)

// =============================================================================

// BtcParams represents the rules of the base chain.
type BtcParams struct {
	Network            string            `json:"network" validate:"required"`
	Genesis            database.BtcBlock `json:"genesis"`
	MinDifficulty      uint32            `json:"min_difficulty" validate:"gt=0"`
	MaxFutureBlockTime uint32            `json:"max_future_block_time" validate:"gt=0"`
}

// Tier implements the blocktree.Params interface.
func (p BtcParams) Tier() string { return TierBtc }

// GenesisBlock implements the blocktree.Params interface.
func (p BtcParams) GenesisBlock() database.BtcBlock { return p.Genesis }

// MaxFutureTime implements the blocktree.Params interface.
func (p BtcParams) MaxFutureTime() uint32 { return p.MaxFutureBlockTime }

// CheckHeader checks the difficulty floor of the base chain.
func (p BtcParams) CheckHeader(header database.BtcBlock, prev *blocktree.BlockIndex[database.BtcBlock]) error {
	if header.Difficulty < p.MinDifficulty {
		return validation.Invalid("bad-diffbits", "difficulty %d below minimum %d", header.Difficulty, p.MinDifficulty)
	}
	return nil
}

// =============================================================================

// VbkParams represents the rules of the intermediate chain, which is
// protected by the base chain.
type VbkParams struct {
	Network                       string            `json:"network" validate:"required"`
	Genesis                       database.VbkBlock `json:"genesis"`
	MinDifficulty                 uint32            `json:"min_difficulty" validate:"gt=0"`
	MaxFutureBlockTime            uint32            `json:"max_future_block_time" validate:"gt=0"`
	Keystone                      int32             `json:"keystone_interval" validate:"gt=0"`
	Finality                      int32             `json:"finality_delay" validate:"gt=0"`
	LookUpTable                   []uint32          `json:"fork_resolution_lookup_table" validate:"min=1"`
	EndorsementSettlementInterval int32             `json:"endorsement_settlement_interval" validate:"gt=0"`
}

// Tier implements the blocktree.Params interface.
func (p VbkParams) Tier() string { return TierVbk }

// GenesisBlock implements the blocktree.Params interface.
func (p VbkParams) GenesisBlock() database.VbkBlock { return p.Genesis }

// MaxFutureTime implements the blocktree.Params interface.
func (p VbkParams) MaxFutureTime() uint32 { return p.MaxFutureBlockTime }

// KeystoneInterval returns the distance between keystone blocks.
func (p VbkParams) KeystoneInterval() int32 { return p.Keystone }

// FinalityDelay returns the number of protecting blocks after which a late
// publication no longer counts.
func (p VbkParams) FinalityDelay() int32 { return p.Finality }

// SettlementInterval returns the maximum distance between an endorsed block
// and the block containing its endorsement.
func (p VbkParams) SettlementInterval() int32 { return p.EndorsementSettlementInterval }

// Weight returns the score for a publication the specified number of
// protecting blocks later than the earliest one.
func (p VbkParams) Weight(relative int64) uint32 { return weight(p.LookUpTable, relative) }

// CheckHeader checks the difficulty floor and that the header points to the
// previous keystone of its chain.
func (p VbkParams) CheckHeader(header database.VbkBlock, prev *blocktree.BlockIndex[database.VbkBlock]) error {
	if header.Difficulty < p.MinDifficulty {
		return validation.Invalid("bad-diffbits", "difficulty %d below minimum %d", header.Difficulty, p.MinDifficulty)
	}

	ksHeight := blocktree.PreviousKeystoneHeight(header.Number, p.Keystone)
	ks := prev.Ancestor(ksHeight)
	if ks == nil {
		return nil
	}

	if header.PrevKeystone != ks.Hash() {
		return validation.Invalid("bad-prev-keystone", "previous keystone %s expected %s at height %d", header.PrevKeystone, ks.Hash(), ksHeight)
	}

	return nil
}

// =============================================================================

// AltParams represents the rules of the altchain, which is protected by the
// intermediate chain.
type AltParams struct {
	ChainID                       int64             `json:"chain_id" validate:"gt=0"`
	Genesis                       database.AltBlock `json:"genesis"`
	MaxFutureBlockTime            uint32            `json:"max_future_block_time" validate:"gt=0"`
	Keystone                      int32             `json:"keystone_interval" validate:"gt=0"`
	Finality                      int32             `json:"finality_delay" validate:"gt=0"`
	LookUpTable                   []uint32          `json:"fork_resolution_lookup_table" validate:"min=1"`
	EndorsementSettlementInterval int32             `json:"endorsement_settlement_interval" validate:"gt=0"`
	MaxReorgBlocks                int32             `json:"max_reorg_blocks" validate:"gt=0"`
	MaxVbkBlocksInAltBlock        int               `json:"max_vbk_blocks_in_alt_block" validate:"gt=0"`
	MaxVTBsInAltBlock             int               `json:"max_vtbs_in_alt_block" validate:"gt=0"`
	MaxATVsInAltBlock             int               `json:"max_atvs_in_alt_block" validate:"gt=0"`
	MaxPopDataSize                int               `json:"max_pop_data_size" validate:"gt=0"`
}

// Tier implements the blocktree.Params interface.
func (p AltParams) Tier() string { return TierAlt }

// GenesisBlock implements the blocktree.Params interface.
func (p AltParams) GenesisBlock() database.AltBlock { return p.Genesis }

// MaxFutureTime implements the blocktree.Params interface.
func (p AltParams) MaxFutureTime() uint32 { return p.MaxFutureBlockTime }

// KeystoneInterval returns the distance between keystone blocks.
func (p AltParams) KeystoneInterval() int32 { return p.Keystone }

// FinalityDelay returns the number of protecting blocks after which a late
// publication no longer counts.
func (p AltParams) FinalityDelay() int32 { return p.Finality }

// SettlementInterval returns the maximum distance between an endorsed block
// and the block containing its endorsement.
func (p AltParams) SettlementInterval() int32 { return p.EndorsementSettlementInterval }

// Weight returns the score for a publication the specified number of
// protecting blocks later than the earliest one.
func (p AltParams) Weight(relative int64) uint32 { return weight(p.LookUpTable, relative) }

// MaxCount returns the maximum number of payloads of the specified kind one
// altchain block can carry.
func (p AltParams) MaxCount(kind database.PayloadKind) int {
	switch kind {
	case database.KindVbkBlock:
		return p.MaxVbkBlocksInAltBlock
	case database.KindVTB:
		return p.MaxVTBsInAltBlock
	case database.KindATV:
		return p.MaxATVsInAltBlock
	}
	return 0
}

// CheckHeader only requires the altchain to have assigned a hash. The
// altchain validates the rest of its headers before handing them over.
func (p AltParams) CheckHeader(header database.AltBlock, prev *blocktree.BlockIndex[database.AltBlock]) error {
	if header.ID == database.ZeroHash {
		return validation.Invalid("bad-hash", "altchain block without hash")
	}
	return nil
}

// =============================================================================

// weight looks up the score in the table. Publications outside the table
// score nothing.
func weight(table []uint32, relative int64) uint32 {
	if relative < 0 || relative >= int64(len(table)) {
		return 0
	}
	return table[relative]
}
