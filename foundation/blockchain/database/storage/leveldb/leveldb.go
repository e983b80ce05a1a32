// Package leveldb implements the database.Repository interface on top of a
// goleveldb database stored on disk.
package leveldb

import (
	"errors"
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
	"github.com/syndtr/goleveldb/leveldb"
	lvlerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB represents the repository implementation for reading and storing
// block trees in a leveldb database. This implements the database.Repository
// interface.
type LevelDB struct {
	db *leveldb.DB
}

// New opens or creates the leveldb database at the specified path.
func New(dbPath string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dbPath, &opt.Options{})
	if lvlerrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(dbPath, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", dbPath, err)
	}

	return &LevelDB{db: db}, nil
}

// Close closes the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Get returns the value stored for the key.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if err != nil {
		return nil, mapError("get", err)
	}

	return value, nil
}

// Put stores the value for the key.
func (l *LevelDB) Put(key []byte, value []byte) error {
	return mapError("put", l.db.Put(key, value, nil))
}

// Remove deletes the key. Removing a key that does not exist is not an error.
func (l *LevelDB) Remove(key []byte) error {
	return mapError("remove", l.db.Delete(key, nil))
}

// Iterate calls the function for every key with the specified prefix in key
// order. The key and value slices are only valid during the call.
func (l *LevelDB) Iterate(prefix []byte, fn func(key []byte, value []byte) error) error {
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}

	return mapError("iterate", iter.Error())
}

// NewBatch constructs a batch of writes.
func (l *LevelDB) NewBatch() database.Batch {
	return &batch{db: l.db, b: new(leveldb.Batch)}
}

// =============================================================================

// batch wraps a leveldb batch so the writes are applied atomically.
type batch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *batch) Put(key []byte, value []byte) {
	b.b.Put(key, value)
}

func (b *batch) Remove(key []byte) {
	b.b.Delete(key)
}

func (b *batch) Len() int {
	return b.b.Len()
}

func (b *batch) Write() error {
	return mapError("write batch", b.db.Write(b.b, nil))
}

// =============================================================================

// mapError converts leveldb errors into the errors of the database package.
// A corrupted database is not recoverable.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, leveldb.ErrNotFound):
		return database.ErrNotFound
	case lvlerrors.IsCorrupted(err):
		validation.Corrupt("leveldb %s: %s", op, err)
	}

	return database.NewIOError(op, err)
}
