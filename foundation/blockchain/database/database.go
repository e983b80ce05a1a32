// Package database handles the entities of the three chain tiers and the
// lower level support for persisting payload bodies and block index
// snapshots through a key-value Repository.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Key prefixes used inside the Repository.
const (
	prefixPayload = 'p'
	prefixBlock   = 'b'
	prefixTip     = 't'
)

// defaultCacheSize is the number of payload bodies kept in memory.
const defaultCacheSize = 10_000

// StoredBlock is the snapshot of a block index written to the Repository.
type StoredBlock struct {
	Header    json.RawMessage  `json:"header"`
	Status    uint32           `json:"status"`
	Finalized bool             `json:"finalized"`
	Payloads  [NumKinds][]Hash `json:"payloads"`
}

// =============================================================================

// Database manages payload bodies and block snapshots on top of a Repository.
// It implements the payload lookups the state transition engine needs.
type Database struct {
	mu    sync.Mutex
	repo  Repository
	cache *lru.Cache
}

// New constructs a database on top of the specified repository.
func New(repo Repository) (*Database, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("constructing payload cache: %w", err)
	}

	db := Database{
		repo:  repo,
		cache: cache,
	}

	return &db, nil
}

// Close closes the underlying repository.
func (db *Database) Close() error {
	return db.repo.Close()
}

// =============================================================================

// StorePayloads writes the bodies of every payload in the PopData in a
// single batch. Payloads already known are written again with the same value.
func (db *Database) StorePayloads(pd PopData) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	batch := db.repo.NewBatch()
	for _, p := range pd.Payloads() {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal payload %s: %w", p.ID(), err)
		}
		batch.Put(payloadKey(p.Kind(), p.ID()), data)
	}

	if err := batch.Write(); err != nil {
		return err
	}

	for _, p := range pd.Payloads() {
		db.cache.Add(p.ID(), p)
	}

	return nil
}

// Payload returns the body of the payload with the specified kind and id.
// It returns ErrNotFound when the payload was never stored.
func (db *Database) Payload(kind PayloadKind, id Hash) (Payload, error) {
	if v, exists := db.cache.Get(id); exists {
		return v.(Payload), nil
	}

	data, err := db.repo.Get(payloadKey(kind, id))
	if err != nil {
		return nil, err
	}

	p, err := decodePayload(kind, data)
	if err != nil {
		return nil, err
	}

	db.cache.Add(id, p)

	return p, nil
}

// PopData resolves the payload ids of a block back into its PopData.
func (db *Database) PopData(ids [NumKinds][]Hash) (PopData, error) {
	var pd PopData
	for kind := range ids {
		for _, id := range ids[kind] {
			p, err := db.Payload(PayloadKind(kind), id)
			if err != nil {
				return PopData{}, fmt.Errorf("payload %s %s: %w", PayloadKind(kind), id, err)
			}
			pd.Add(p)
		}
	}

	return pd, nil
}

// =============================================================================

// WriteBlocks writes the snapshots of a tree and its tip in a single batch.
func (db *Database) WriteBlocks(tier string, blocks map[Hash]StoredBlock, tip Hash) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	batch := db.repo.NewBatch()
	for hash, sb := range blocks {
		data, err := json.Marshal(sb)
		if err != nil {
			return fmt.Errorf("marshal block %s: %w", hash, err)
		}
		batch.Put(blockKey(tier, hash), data)
	}
	batch.Put(tipKey(tier), tip.Bytes())

	return batch.Write()
}

// ReadBlocks reads every snapshot written for a tree and its tip. A tree that
// was never written returns no blocks and a tip of zeros.
func (db *Database) ReadBlocks(tier string) ([]StoredBlock, Hash, error) {
	var tip Hash
	data, err := db.repo.Get(tipKey(tier))
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, ZeroHash, nil
	case err != nil:
		return nil, ZeroHash, err
	}
	tip.SetBytes(data)

	var blocks []StoredBlock
	fn := func(key []byte, value []byte) error {
		var sb StoredBlock
		if err := json.Unmarshal(value, &sb); err != nil {
			return fmt.Errorf("unmarshal block %x: %w", key, err)
		}
		blocks = append(blocks, sb)
		return nil
	}

	if err := db.repo.Iterate(blockPrefix(tier), fn); err != nil {
		return nil, ZeroHash, err
	}

	return blocks, tip, nil
}

// =============================================================================

// decodePayload unmarshals the body of a payload of the specified kind.
func decodePayload(kind PayloadKind, data []byte) (Payload, error) {
	switch kind {
	case KindVbkBlock:
		var b VbkBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return b, nil

	case KindVTB:
		var v VTB
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil

	case KindATV:
		var a ATV
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	}

	return nil, fmt.Errorf("unknown payload kind %d", kind)
}

func payloadKey(kind PayloadKind, id Hash) []byte {
	key := make([]byte, 0, 2+len(id))
	key = append(key, prefixPayload, byte(kind))
	return append(key, id.Bytes()...)
}

func blockPrefix(tier string) []byte {
	key := make([]byte, 0, 2+len(tier))
	key = append(key, prefixBlock)
	key = append(key, tier...)
	return append(key, ':')
}

func blockKey(tier string, hash Hash) []byte {
	return append(blockPrefix(tier), hash.Bytes()...)
}

func tipKey(tier string) []byte {
	key := make([]byte, 0, 1+len(tier))
	key = append(key, prefixTip)
	return append(key, tier...)
}
