// Package selector provides different payload ordering algorithms used when
// PopData is generated for the next altchain block.
package selector

import (
	"bytes"
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyFee   = "fee"
	StrategyDepth = "depth"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFee:   feeSelect,
	StrategyDepth: depthSelect,
}

// Candidate represents a payload waiting in the mempool with the values the
// strategies order by.
type Candidate struct {
	Payload        database.Payload
	Fee            uint64
	EndorsedHeight int32
}

// NewCandidate constructs a candidate for an endorsement payload. Context
// blocks carry no fee and are ordered by their own height.
func NewCandidate(p database.Payload) Candidate {
	c := Candidate{Payload: p}

	switch v := p.(type) {
	case database.VTB:
		c.Fee = v.Fee
		c.EndorsedHeight = v.EndorsedBlock.Number
	case database.ATV:
		c.Fee = v.Fee
		c.EndorsedHeight = v.EndorsedBlock.Number
	case database.VbkBlock:
		c.EndorsedHeight = v.Number
	}

	return c
}

// Func defines a function that takes the candidates of one payload kind and
// returns them in the order they should be considered for inclusion. The
// order must be deterministic for the same set of candidates.
type Func func(candidates []Candidate) []Candidate

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byDepth provides sorting support by the height of the endorsed block.
type byDepth []Candidate

// Len returns the number of candidates in the list.
func (bd byDepth) Len() int {
	return len(bd)
}

// Less helps to sort the list by endorsed height in ascending order so the
// oldest blocks are protected first. The payload id breaks ties.
func (bd byDepth) Less(i, j int) bool {
	if bd[i].EndorsedHeight != bd[j].EndorsedHeight {
		return bd[i].EndorsedHeight < bd[j].EndorsedHeight
	}
	return lessID(bd[i], bd[j])
}

// Swap moves candidates in the order of the endorsed height.
func (bd byDepth) Swap(i, j int) {
	bd[i], bd[j] = bd[j], bd[i]
}

// =============================================================================

// byFee provides sorting support by the fee value.
type byFee []Candidate

// Len returns the number of candidates in the list.
func (bf byFee) Len() int {
	return len(bf)
}

// Less helps to sort the list by fee in descending order to pick the
// payloads that provide the best reward, then by depth.
func (bf byFee) Less(i, j int) bool {
	if bf[i].Fee != bf[j].Fee {
		return bf[i].Fee > bf[j].Fee
	}
	return byDepth(bf).Less(i, j)
}

// Swap moves candidates in the order of the fee value.
func (bf byFee) Swap(i, j int) {
	bf[i], bf[j] = bf[j], bf[i]
}

// =============================================================================

func lessID(a, b Candidate) bool {
	ia, ib := a.Payload.ID(), b.Payload.ID()
	return bytes.Compare(ia[:], ib[:]) < 0
}
