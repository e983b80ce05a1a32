// Package poptest provides builders for the blocks and signed payloads of the
// three chain tiers, for use in tests.
package poptest

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey is the key the builder signs payloads with.
const PrivateKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

// Now is the clock trees built for tests run with.
var Now = time.Unix(1_700_000_000, 0)

// blockSpacing is the number of seconds between consecutive blocks.
const blockSpacing = 30

// =============================================================================

// Builder creates chains of headers and payloads that pass the checks of the
// trees constructed with the same genesis.
type Builder struct {
	Genesis genesis.Genesis

	key  *ecdsa.PrivateKey
	vbk  map[database.Hash]database.VbkBlock
	salt int
}

// New constructs a builder for the specified genesis.
func New(gen genesis.Genesis) (*Builder, error) {
	key, err := crypto.HexToECDSA(PrivateKey)
	if err != nil {
		return nil, err
	}

	b := Builder{
		Genesis: gen,
		key:     key,
		vbk:     map[database.Hash]database.VbkBlock{gen.Vbk.Genesis.Hash(): gen.Vbk.Genesis},
	}

	return &b, nil
}

// Clock returns the time function the trees should use.
func (b *Builder) Clock() func() time.Time {
	return func() time.Time { return Now }
}

// MineBtc returns n base chain headers on top of prev.
func (b *Builder) MineBtc(prev database.BtcBlock, n int) []database.BtcBlock {
	blocks := make([]database.BtcBlock, n)
	for i := range blocks {
		blocks[i] = database.BtcBlock{
			Version:    1,
			PrevBlock:  prev.Hash(),
			Time:       prev.Time + blockSpacing,
			Difficulty: b.Genesis.Btc.MinDifficulty,
			Number:     prev.Number + 1,
		}
		prev = blocks[i]
	}
	return blocks
}

// MineVbk returns n intermediate chain headers on top of prev. The previous
// keystone of every header points to its ancestor.
func (b *Builder) MineVbk(prev database.VbkBlock, n int) []database.VbkBlock {
	return b.MineVbkWithNonce(prev, n, 0)
}

// MineVbkWithNonce is MineVbk with a nonce so competing branches get
// different hashes.
func (b *Builder) MineVbkWithNonce(prev database.VbkBlock, n int, nonce uint64) []database.VbkBlock {
	blocks := make([]database.VbkBlock, n)
	for i := range blocks {
		header := database.VbkBlock{
			Number:     prev.Number + 1,
			Version:    2,
			PrevBlock:  prev.Hash(),
			Time:       prev.Time + blockSpacing,
			Difficulty: b.Genesis.Vbk.MinDifficulty,
			Nonce:      nonce,
		}
		header.PrevKeystone = b.vbkAncestor(prev, blocktree.PreviousKeystoneHeight(header.Number, b.Genesis.Vbk.Keystone)).Hash()

		b.vbk[header.Hash()] = header
		blocks[i] = header
		prev = header
	}
	return blocks
}

// Alt returns the altchain header on top of prev carrying the PopData.
func (b *Builder) Alt(prev database.AltBlock, pd database.PopData) database.AltBlock {
	b.salt++

	return database.AltBlock{
		ID:        signature.Hash(fmt.Sprintf("alt:%s:%d", prev.ID, b.salt)),
		PrevBlock: prev.ID,
		Number:    prev.Number + 1,
		Time:      prev.Time + blockSpacing,
		PopRoot:   pd.Root(),
	}
}

// ATV returns a signed ATV publishing the altchain block in the block of
// proof. The context must connect a known intermediate block to the block of
// proof.
func (b *Builder) ATV(endorsed database.AltBlock, blockOfProof database.VbkBlock, context []database.VbkBlock) database.ATV {
	a := database.ATV{
		Version:       1,
		EndorsedBlock: endorsed,
		BlockOfProof:  blockOfProof,
		Context:       context,
	}

	a.PublicKey, a.Signature = b.sign(a.SignedContent())
	return a
}

// VTB returns a signed VTB publishing the endorsed intermediate block in the
// base chain block of proof, with the proof contained in containing.
func (b *Builder) VTB(endorsed database.VbkBlock, containing database.VbkBlock, blockOfProof database.BtcBlock, context []database.BtcBlock) database.VTB {
	v := database.VTB{
		Version:         1,
		EndorsedBlock:   endorsed,
		ContainingBlock: containing,
		BlockOfProof:    blockOfProof,
		Context:         context,
	}

	v.PublicKey, v.Signature = b.sign(v.SignedContent())
	return v
}

// =============================================================================

func (b *Builder) sign(content any) ([]byte, []byte) {
	pub, sig, err := signature.Sign(content, b.key)
	if err != nil {
		panic(fmt.Sprintf("poptest: sign: %s", err))
	}
	return pub, sig
}

func (b *Builder) vbkAncestor(block database.VbkBlock, height int32) database.VbkBlock {
	for block.Number > height {
		prev, exists := b.vbk[block.PrevBlock]
		if !exists {
			panic(fmt.Sprintf("poptest: vbk block %s was not built here", block.PrevBlock))
		}
		block = prev
	}
	return block
}
