// Package memory implements the database.Repository interface in memory
// using a goleveldb memdb.
package memory

import (
	"errors"
	"sync"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	lvlerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Memory represents the repository implementation for reading and storing
// block trees in memory. This implements the database.Repository interface.
type Memory struct {
	mu sync.RWMutex
	db *memdb.DB
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		db: memdb.New(comparer.DefaultComparer, 0),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Get returns a copy of the value stored for the key.
func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, lvlerrors.ErrNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, database.NewIOError("get", err)
	}

	return append([]byte(nil), value...), nil
}

// Put stores the value for the key.
func (m *Memory) Put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db.Put(key, value)
}

// Remove deletes the key. Removing a key that does not exist is not an error.
func (m *Memory) Remove(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.Delete(key); err != nil && !errors.Is(err, lvlerrors.ErrNotFound) {
		return database.NewIOError("remove", err)
	}

	return nil
}

// Iterate calls the function for every key with the specified prefix in key
// order. The key and value slices are only valid during the call.
func (m *Memory) Iterate(prefix []byte, fn func(key []byte, value []byte) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iter := m.db.NewIterator(util.BytesPrefix(prefix))
	defer iter.Release()

	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}

	return iter.Error()
}

// NewBatch constructs a batch of writes.
func (m *Memory) NewBatch() database.Batch {
	return &batch{m: m}
}

// Len returns the number of keys stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.db.Len()
}

// =============================================================================

type op struct {
	key    []byte
	value  []byte
	remove bool
}

// batch collects writes and applies them under a single lock.
type batch struct {
	m   *Memory
	ops []op
}

func (b *batch) Put(key []byte, value []byte) {
	b.ops = append(b.ops, op{key: key, value: value})
}

func (b *batch) Remove(key []byte) {
	b.ops = append(b.ops, op{key: key, remove: true})
}

func (b *batch) Len() int {
	return len(b.ops)
}

func (b *batch) Write() error {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()

	for _, o := range b.ops {
		if o.remove {
			if err := b.m.db.Delete(o.key); err != nil && !errors.Is(err, lvlerrors.ErrNotFound) {
				return database.NewIOError("write batch", err)
			}
			continue
		}

		if err := b.m.db.Put(o.key, o.value); err != nil {
			return database.NewIOError("write batch", err)
		}
	}

	return nil
}
