// Package mempool maintains the payloads waiting to be included in the next
// altchain block.
package mempool

import (
	"bytes"
	"sort"
	"sync"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/mempool/selector"
)

// popDataVersion is the version of the PopData the mempool generates.
const popDataVersion = 1

// Relations represents the payloads depending on one intermediate chain
// block: the block itself when it was submitted as a context payload, and
// the VTBs and ATVs referencing it.
type Relations struct {
	Hash   database.Hash                  `json:"hash"`
	Height int32                          `json:"height"`
	Header *database.VbkBlock             `json:"header,omitempty"`
	VTBs   map[database.Hash]database.VTB `json:"vtbs"`
	ATVs   map[database.Hash]database.ATV `json:"atvs"`
}

func (r *Relations) empty() bool {
	return r.Header == nil && len(r.VTBs) == 0 && len(r.ATVs) == 0
}

// copy returns a deep copy of the relations.
func (r *Relations) copy() Relations {
	c := Relations{
		Hash:   r.Hash,
		Height: r.Height,
		VTBs:   make(map[database.Hash]database.VTB, len(r.VTBs)),
		ATVs:   make(map[database.Hash]database.ATV, len(r.ATVs)),
	}

	if r.Header != nil {
		h := *r.Header
		c.Header = &h
	}
	for id, v := range r.VTBs {
		c.VTBs[id] = v
	}
	for id, a := range r.ATVs {
		c.ATVs[id] = a
	}

	return c
}

// relationKey returns the intermediate chain block a payload depends on.
func relationKey(p database.Payload) (database.Hash, int32) {
	switch v := p.(type) {
	case database.VbkBlock:
		return v.Hash(), v.Number
	case database.VTB:
		return v.ContainingBlock.Hash(), v.ContainingBlock.Number
	case database.ATV:
		return v.BlockOfProof.Hash(), v.BlockOfProof.Number
	}
	return database.ZeroHash, 0
}

// =============================================================================

// Mempool represents the set of pending payloads organized in buckets keyed
// by the intermediate chain block they depend on, with a second key on the
// payload id.
type Mempool struct {
	mu        sync.RWMutex
	params    genesis.AltParams
	selectFn  selector.Func
	relations map[database.Hash]*Relations
	payloads  map[database.Hash]database.Hash
}

// New constructs a new mempool using the default select strategy.
func New(params genesis.AltParams) (*Mempool, error) {
	return NewWithStrategy(params, selector.StrategyFee)
}

// NewWithStrategy constructs a new mempool with specified select strategy.
func NewWithStrategy(params genesis.AltParams, strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		params:    params,
		selectFn:  selectFn,
		relations: make(map[database.Hash]*Relations),
		payloads:  make(map[database.Hash]database.Hash),
	}

	return &mp, nil
}

// Count returns the current number of payloads in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.payloads)
}

// Buckets returns the number of buckets in the pool.
func (mp *Mempool) Buckets() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.relations)
}

// Contains reports whether the payload is in the pool.
func (mp *Mempool) Contains(id database.Hash) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.payloads[id]
	return exists
}

// Get returns the payload with the specified id.
func (mp *Mempool) Get(id database.Hash) (database.Payload, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	key, exists := mp.payloads[id]
	if !exists {
		return nil, false
	}

	rel := mp.relations[key]
	if rel.Header != nil && rel.Header.ID() == id {
		return *rel.Header, true
	}
	if v, exists := rel.VTBs[id]; exists {
		return v, true
	}
	if a, exists := rel.ATVs[id]; exists {
		return a, true
	}

	return nil, false
}

// Relations returns a copy of every bucket ordered by block height.
func (mp *Mempool) Relations() []Relations {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	list := make([]Relations, 0, len(mp.relations))
	for _, rel := range mp.sortedRelations() {
		list = append(list, rel.copy())
	}

	return list
}

// Add places a payload that passed validation into its bucket. Adding a
// payload that is already pending is a no-op and returns false.
func (mp *Mempool) Add(p database.Payload) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	id := p.ID()
	if _, exists := mp.payloads[id]; exists {
		return false
	}

	key, height := relationKey(p)
	rel, exists := mp.relations[key]
	if !exists {
		rel = &Relations{
			Hash:   key,
			Height: height,
			VTBs:   make(map[database.Hash]database.VTB),
			ATVs:   make(map[database.Hash]database.ATV),
		}
		mp.relations[key] = rel
	}

	switch v := p.(type) {
	case database.VbkBlock:
		rel.Header = &v
	case database.VTB:
		rel.VTBs[id] = v
	case database.ATV:
		rel.ATVs[id] = v
	}

	mp.payloads[id] = key

	return true
}

// Remove removes a payload from the pool. The bucket is deleted once it is
// empty.
func (mp *Mempool) Remove(id database.Hash) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.remove(id)
}

// RemoveAll removes every payload of the PopData from the pool, usually
// because a block including it was accepted.
func (mp *Mempool) RemoveAll(pd database.PopData) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed int
	for _, p := range pd.Payloads() {
		if mp.remove(p.ID()) {
			removed++
		}
	}

	return removed
}

// CleanUp removes every payload the keep function rejects and returns the
// number of payloads removed.
func (mp *Mempool) CleanUp(keep func(p database.Payload) bool) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var drop []database.Hash
	for _, rel := range mp.relations {
		if rel.Header != nil && !keep(*rel.Header) {
			drop = append(drop, rel.Header.ID())
		}
		for id, v := range rel.VTBs {
			if !keep(v) {
				drop = append(drop, id)
			}
		}
		for id, a := range rel.ATVs {
			if !keep(a) {
				drop = append(drop, id)
			}
		}
	}

	for _, id := range drop {
		mp.remove(id)
	}

	return len(drop)
}

// Truncate clears all the payloads from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.relations = make(map[database.Hash]*Relations)
	mp.payloads = make(map[database.Hash]database.Hash)
}

// =============================================================================

// GeneratePopData builds the PopData for the next altchain block. Context
// blocks are considered in height order. Endorsements are ranked across all
// buckets by the configured select strategy, VTBs before ATVs. A payload that does not fit or that the accept
// function rejects is skipped and the remaining candidates are still
// considered.
func (mp *Mempool) GeneratePopData(cc *CountingContext, accept func(p database.Payload) bool) database.PopData {
	var headers []selector.Candidate
	var vtbs []selector.Candidate
	var atvs []selector.Candidate

	mp.mu.RLock()
	{
		for _, rel := range mp.sortedRelations() {
			if rel.Header != nil {
				headers = append(headers, selector.NewCandidate(*rel.Header))
			}
			for _, v := range rel.VTBs {
				vtbs = append(vtbs, selector.NewCandidate(v))
			}
			for _, a := range rel.ATVs {
				atvs = append(atvs, selector.NewCandidate(a))
			}
		}
	}
	mp.mu.RUnlock()

	ordered := make([]selector.Candidate, 0, len(headers)+len(vtbs)+len(atvs))
	ordered = append(ordered, headers...)
	ordered = append(ordered, mp.selectFn(vtbs)...)
	ordered = append(ordered, mp.selectFn(atvs)...)

	pd := database.PopData{Version: popDataVersion}
	for _, c := range ordered {
		if !cc.CanFit(c.Payload) {
			continue
		}

		if accept != nil && !accept(c.Payload) {
			continue
		}

		cc.Update(c.Payload)
		pd.Add(c.Payload)
	}

	return pd
}

// =============================================================================

// remove deletes the payload and prunes its bucket. The caller must hold the
// write lock.
func (mp *Mempool) remove(id database.Hash) bool {
	key, exists := mp.payloads[id]
	if !exists {
		return false
	}

	rel := mp.relations[key]
	if rel.Header != nil && rel.Header.ID() == id {
		rel.Header = nil
	}
	delete(rel.VTBs, id)
	delete(rel.ATVs, id)
	delete(mp.payloads, id)

	if rel.empty() {
		delete(mp.relations, key)
	}

	return true
}

// sortedRelations returns the buckets ordered by block height then hash. The
// caller must hold a lock.
func (mp *Mempool) sortedRelations() []*Relations {
	list := make([]*Relations, 0, len(mp.relations))
	for _, rel := range mp.relations {
		list = append(list, rel)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Height != list[j].Height {
			return list[i].Height < list[j].Height
		}
		return bytes.Compare(list[i].Hash[:], list[j].Hash[:]) < 0
	})

	return list
}
