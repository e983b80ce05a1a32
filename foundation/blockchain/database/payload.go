package database

import (
	"encoding/json"
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/signature"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// PayloadKind identifies the kind of content carried in PopData.
type PayloadKind int

// Set of payload kinds. The order is the order payloads are applied within
// a single altchain block.
const (
	KindVbkBlock PayloadKind = iota
	KindVTB
	KindATV
)

// NumKinds is the number of payload kinds.
const NumKinds = 3

// String returns the short name of the payload kind.
func (k PayloadKind) String() string {
	switch k {
	case KindVbkBlock:
		return "vbk"
	case KindVTB:
		return "vtb"
	case KindATV:
		return "atv"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a short name back into a payload kind.
func ParseKind(s string) (PayloadKind, error) {
	switch s {
	case "vbk":
		return KindVbkBlock, nil
	case "vtb":
		return KindVTB, nil
	case "atv":
		return KindATV, nil
	}
	return 0, fmt.Errorf("payload kind %q does not exist", s)
}

// Payload represents the behavior shared by everything that can be carried
// inside PopData.
type Payload interface {
	ID() Hash
	Kind() PayloadKind
	Size() int
	Validate() error
}

// size returns the serialized size of a value.
func size(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

// =============================================================================

// ID returns the id of the context block, which is its hash.
func (b VbkBlock) ID() Hash {
	return b.Hash()
}

// Kind implements the Payload interface.
func (b VbkBlock) Kind() PayloadKind {
	return KindVbkBlock
}

// Size returns the serialized size of the header.
func (b VbkBlock) Size() int {
	return size(b)
}

// Validate performs the stateless checks for a context block.
func (b VbkBlock) Validate() error {
	if b.Number < 0 {
		return validation.Invalid("vbk-bad-height", "negative height %d", b.Number)
	}
	if b.Difficulty == 0 {
		return validation.Invalid("vbk-bad-difficulty", "zero difficulty")
	}
	return nil
}

// =============================================================================

// VTB represents a proof that an intermediate chain block was published in
// the base chain. The publication happened in BlockOfProof and the proof was
// included in ContainingBlock of the intermediate chain.
type VTB struct {
	Version         uint32     `json:"version"`
	EndorsedBlock   VbkBlock   `json:"endorsedBlock"`   // Intermediate block that was published.
	ContainingBlock VbkBlock   `json:"containingBlock"` // Intermediate block holding the proof.
	BlockOfProof    BtcBlock   `json:"blockOfProof"`    // Base block holding the publication.
	Context         []BtcBlock `json:"context"`         // Base headers connecting to the block of proof.
	Fee             uint64     `json:"fee"`             // Reward offered for including the payload.
	PublicKey       []byte     `json:"publicKey"`
	Signature       []byte     `json:"signature"`
}

// payloadID is the value an endorsement id is computed over.
type payloadID struct {
	Content   any    `json:"content"`
	PublicKey []byte `json:"publicKey"`
}

// vtbContent is the signed portion of a VTB.
type vtbContent struct {
	Version         uint32     `json:"version"`
	EndorsedBlock   VbkBlock   `json:"endorsedBlock"`
	ContainingBlock VbkBlock   `json:"containingBlock"`
	BlockOfProof    BtcBlock   `json:"blockOfProof"`
	Context         []BtcBlock `json:"context"`
	Fee             uint64     `json:"fee"`
}

// SignedContent returns the portion of the VTB covered by the signature.
func (v VTB) SignedContent() any {
	return vtbContent{
		Version:         v.Version,
		EndorsedBlock:   v.EndorsedBlock,
		ContainingBlock: v.ContainingBlock,
		BlockOfProof:    v.BlockOfProof,
		Context:         v.Context,
		Fee:             v.Fee,
	}
}

// ID returns the hash of the signed content and the signer key. The
// signature bytes are left out so a re-encoded signature keeps the id.
func (v VTB) ID() Hash {
	return signature.Hash(payloadID{Content: v.SignedContent(), PublicKey: v.PublicKey})
}

// Kind implements the Payload interface.
func (v VTB) Kind() PayloadKind {
	return KindVTB
}

// Size returns the serialized size of the VTB.
func (v VTB) Size() int {
	return size(v)
}

// Validate performs the stateless checks for a VTB.
func (v VTB) Validate() error {
	if v.ContainingBlock.Number <= v.EndorsedBlock.Number {
		return validation.Invalid("vtb-bad-containing", "containing height %d is not above endorsed height %d", v.ContainingBlock.Number, v.EndorsedBlock.Number)
	}

	if err := checkBtcContext(v.Context, v.BlockOfProof); err != nil {
		return validation.Wrap(err, "vtb-bad-context")
	}

	if err := signature.Verify(v.SignedContent(), v.PublicKey, v.Signature); err != nil {
		return validation.Invalid("vtb-bad-signature", "%s", err)
	}

	return nil
}

// Endorsement returns the endorsement of the intermediate chain this VTB
// represents.
func (v VTB) Endorsement() Endorsement {
	return Endorsement{
		ID:                 v.ID(),
		EndorsedHash:       v.EndorsedBlock.Hash(),
		ContainingHash:     v.ContainingBlock.Hash(),
		BlockOfProof:       v.BlockOfProof.Hash(),
		BlockOfProofHeight: v.BlockOfProof.Number,
	}
}

// =============================================================================

// ATV represents a proof that an altchain block was published in the
// intermediate chain inside BlockOfProof.
type ATV struct {
	Version       uint32     `json:"version"`
	EndorsedBlock AltBlock   `json:"endorsedBlock"` // Altchain block that was published.
	BlockOfProof  VbkBlock   `json:"blockOfProof"`  // Intermediate block holding the publication.
	Context       []VbkBlock `json:"context"`       // Intermediate headers connecting to the block of proof.
	Fee           uint64     `json:"fee"`           // Reward offered for including the payload.
	PublicKey     []byte     `json:"publicKey"`
	Signature     []byte     `json:"signature"`
}

// atvContent is the signed portion of an ATV.
type atvContent struct {
	Version       uint32     `json:"version"`
	EndorsedBlock AltBlock   `json:"endorsedBlock"`
	BlockOfProof  VbkBlock   `json:"blockOfProof"`
	Context       []VbkBlock `json:"context"`
	Fee           uint64     `json:"fee"`
}

// SignedContent returns the portion of the ATV covered by the signature.
func (a ATV) SignedContent() any {
	return atvContent{
		Version:       a.Version,
		EndorsedBlock: a.EndorsedBlock,
		BlockOfProof:  a.BlockOfProof,
		Context:       a.Context,
		Fee:           a.Fee,
	}
}

// ID returns the hash of the signed content and the signer key. The
// signature bytes are left out so a re-encoded signature keeps the id.
func (a ATV) ID() Hash {
	return signature.Hash(payloadID{Content: a.SignedContent(), PublicKey: a.PublicKey})
}

// Kind implements the Payload interface.
func (a ATV) Kind() PayloadKind {
	return KindATV
}

// Size returns the serialized size of the ATV.
func (a ATV) Size() int {
	return size(a)
}

// Validate performs the stateless checks for an ATV.
func (a ATV) Validate() error {
	if a.EndorsedBlock.ID == ZeroHash {
		return validation.Invalid("atv-bad-endorsed", "endorsed block has no hash")
	}

	for i := 1; i < len(a.Context); i++ {
		if a.Context[i].PrevBlock != a.Context[i-1].Hash() {
			return validation.Invalid("atv-bad-context", "context block %d does not connect", i)
		}
	}

	if n := len(a.Context); n > 0 && a.BlockOfProof.PrevBlock != a.Context[n-1].Hash() {
		return validation.Invalid("atv-bad-context", "block of proof does not connect to context")
	}

	if err := signature.Verify(a.SignedContent(), a.PublicKey, a.Signature); err != nil {
		return validation.Invalid("atv-bad-signature", "%s", err)
	}

	return nil
}

// Endorsement returns the endorsement of the altchain this ATV represents
// once it is included in the specified altchain block.
func (a ATV) Endorsement(containing Hash) Endorsement {
	return Endorsement{
		ID:                 a.ID(),
		EndorsedHash:       a.EndorsedBlock.ID,
		ContainingHash:     containing,
		BlockOfProof:       a.BlockOfProof.Hash(),
		BlockOfProofHeight: a.BlockOfProof.Number,
	}
}

// =============================================================================

// checkBtcContext validates the context headers form a connected chain that
// ends at the block of proof.
func checkBtcContext(context []BtcBlock, blockOfProof BtcBlock) error {
	for i := 1; i < len(context); i++ {
		if context[i].PrevBlock != context[i-1].Hash() {
			return validation.Invalid("btc-context-gap", "context block %d does not connect", i)
		}
	}

	if n := len(context); n > 0 && blockOfProof.PrevBlock != context[n-1].Hash() {
		return validation.Invalid("btc-context-gap", "block of proof does not connect to context")
	}

	return nil
}
