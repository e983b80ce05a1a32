package mempool

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
)

// CountingContext tracks the payload counts and the size of the PopData
// being generated against the limits of one altchain block. The tracked
// size is an upper bound of the serialized size.
type CountingContext struct {
	params genesis.AltParams
	counts [database.NumKinds]int
	size   int
}

// NewCountingContext constructs a context for an empty PopData.
func NewCountingContext(params genesis.AltParams) *CountingContext {
	return &CountingContext{
		params: params,
		size:   database.PopData{Version: popDataVersion}.Size(),
	}
}

// CanFit reports whether the payload can be added without exceeding the count
// limit of its kind or the size limit.
func (cc *CountingContext) CanFit(p database.Payload) bool {
	kind := p.Kind()
	if cc.counts[kind] >= cc.params.MaxCount(kind) {
		return false
	}

	return cc.size+entrySize(p) <= cc.params.MaxPopDataSize
}

// Update records the payload as added.
func (cc *CountingContext) Update(p database.Payload) {
	cc.counts[p.Kind()]++
	cc.size += entrySize(p)
}

// Count returns the number of payloads of the kind added so far.
func (cc *CountingContext) Count(kind database.PayloadKind) int {
	return cc.counts[kind]
}

// Size returns the upper bound of the serialized size so far.
func (cc *CountingContext) Size() int {
	return cc.size
}

// entrySize is the payload size plus the separator inside a list.
func entrySize(p database.Payload) int {
	return p.Size() + 1
}
