package database

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
)

// Hash represents the fixed width digest used to identify blocks, payloads
// and endorsements on every chain tier.
type Hash = common.Hash

// ZeroHash represents a hash code of zeros.
var ZeroHash Hash

// =============================================================================

// BtcBlock represents a header of the base proof of work chain.
type BtcBlock struct {
	Version    uint32 `json:"version"`       // Bitcoin: Block version.
	PrevBlock  Hash   `json:"previousBlock"` // Bitcoin: Hash of the previous block in the chain.
	MerkleRoot Hash   `json:"merkleRoot"`    // Bitcoin: Root of the transactions in this block.
	Time       uint32 `json:"timestamp"`     // Bitcoin: Time the block was mined.
	Difficulty uint32 `json:"difficulty"`    // Amount of work this header represents.
	Nonce      uint32 `json:"nonce"`         // Bitcoin: Value identified to solve the hash solution.
	Number     int32  `json:"height"`        // Height of the block in the chain.
}

// Hash returns the double sha256 hash of the header.
func (b BtcBlock) Hash() Hash {
	return signature.DoubleHash(b)
}

// PrevHash returns the hash of the parent block.
func (b BtcBlock) PrevHash() Hash {
	return b.PrevBlock
}

// Height returns the height of the block.
func (b BtcBlock) Height() int32 {
	return b.Number
}

// Timestamp returns the time the block was mined.
func (b BtcBlock) Timestamp() uint32 {
	return b.Time
}

// Work returns the amount of work the header contributes to its chain.
func (b BtcBlock) Work() uint64 {
	return uint64(b.Difficulty)
}

// =============================================================================

// VbkBlock represents a header of the intermediate chain. Context blocks
// carried in PopData are headers of this type.
type VbkBlock struct {
	Number       int32  `json:"height"`           // Height of the block in the chain.
	Version      int16  `json:"version"`          // Block version.
	PrevBlock    Hash   `json:"previousBlock"`    // Hash of the previous block in the chain.
	PrevKeystone Hash   `json:"previousKeystone"` // Hash of the highest keystone below this block.
	MerkleRoot   Hash   `json:"merkleRoot"`       // Root of the PoP transactions in this block.
	Time         uint32 `json:"timestamp"`        // Time the block was mined.
	Difficulty   uint32 `json:"difficulty"`       // Amount of work this header represents.
	Nonce        uint64 `json:"nonce"`            // Value identified to solve the hash solution.
}

// Hash returns the keccak256 hash of the header.
func (b VbkBlock) Hash() Hash {
	return signature.Keccak(b)
}

// PrevHash returns the hash of the parent block.
func (b VbkBlock) PrevHash() Hash {
	return b.PrevBlock
}

// Height returns the height of the block.
func (b VbkBlock) Height() int32 {
	return b.Number
}

// Timestamp returns the time the block was mined.
func (b VbkBlock) Timestamp() uint32 {
	return b.Time
}

// Work returns the amount of work the header contributes to its chain.
func (b VbkBlock) Work() uint64 {
	return uint64(b.Difficulty)
}

// =============================================================================

// AltBlock represents a header of the altchain. The altchain computes its own
// block hashes so the hash is carried with the header.
type AltBlock struct {
	ID        Hash   `json:"hash"`          // Hash assigned by the altchain.
	PrevBlock Hash   `json:"previousBlock"` // Hash of the previous block in the chain.
	Number    int32  `json:"height"`        // Height of the block in the chain.
	Time      uint32 `json:"timestamp"`     // Time the block was produced.
	PopRoot   Hash   `json:"popRoot"`       // Merkle root of the PopData ids in this block.
}

// Hash returns the altchain supplied hash of the header.
func (b AltBlock) Hash() Hash {
	return b.ID
}

// PrevHash returns the hash of the parent block.
func (b AltBlock) PrevHash() Hash {
	return b.PrevBlock
}

// Height returns the height of the block.
func (b AltBlock) Height() int32 {
	return b.Number
}

// Timestamp returns the time the block was produced.
func (b AltBlock) Timestamp() uint32 {
	return b.Time
}

// Work returns one since altchain branches are compared by length when
// PoP scores do not apply.
func (b AltBlock) Work() uint64 {
	return 1
}
