package database

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/merkle"
)

// PopData represents the batch of endorsement content embedded in one
// altchain block.
type PopData struct {
	Version uint32     `json:"version"`
	Context []VbkBlock `json:"context"`
	VTBs    []VTB      `json:"vtbs"`
	ATVs    []ATV      `json:"atvs"`
}

// Empty reports whether the PopData carries no payloads.
func (pd PopData) Empty() bool {
	return len(pd.Context) == 0 && len(pd.VTBs) == 0 && len(pd.ATVs) == 0
}

// Payloads returns every payload in application order: context blocks, then
// VTBs, then ATVs.
func (pd PopData) Payloads() []Payload {
	payloads := make([]Payload, 0, len(pd.Context)+len(pd.VTBs)+len(pd.ATVs))
	for _, b := range pd.Context {
		payloads = append(payloads, b)
	}
	for _, v := range pd.VTBs {
		payloads = append(payloads, v)
	}
	for _, a := range pd.ATVs {
		payloads = append(payloads, a)
	}
	return payloads
}

// Add appends the payload to the list matching its kind.
func (pd *PopData) Add(p Payload) {
	switch v := p.(type) {
	case VbkBlock:
		pd.Context = append(pd.Context, v)
	case VTB:
		pd.VTBs = append(pd.VTBs, v)
	case ATV:
		pd.ATVs = append(pd.ATVs, v)
	}
}

// IDs returns the payload ids grouped by payload kind.
func (pd PopData) IDs() [NumKinds][]Hash {
	var ids [NumKinds][]Hash
	for _, p := range pd.Payloads() {
		ids[p.Kind()] = append(ids[p.Kind()], p.ID())
	}
	return ids
}

// Count returns the number of payloads of the specified kind.
func (pd PopData) Count(kind PayloadKind) int {
	switch kind {
	case KindVbkBlock:
		return len(pd.Context)
	case KindVTB:
		return len(pd.VTBs)
	case KindATV:
		return len(pd.ATVs)
	}
	return 0
}

// Size returns the serialized size of the PopData.
func (pd PopData) Size() int {
	return size(pd)
}

// Root returns the merkle root over the payload ids. Empty PopData has a root
// of zeros.
func (pd PopData) Root() Hash {
	payloads := pd.Payloads()
	if len(payloads) == 0 {
		return ZeroHash
	}

	leaves := make([]Hash, len(payloads))
	for i, p := range payloads {
		leaves[i] = p.ID()
	}

	return merkle.NewTree(leaves).Root()
}
