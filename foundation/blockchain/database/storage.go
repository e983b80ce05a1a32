package database

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Repository when the key does not exist.
var ErrNotFound = errors.New("not found")

// Repository interface represents the behavior required to be implemented by
// any package providing key-value persistence for the block trees.
type Repository interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Remove(key []byte) error
	Iterate(prefix []byte, fn func(key []byte, value []byte) error) error
	NewBatch() Batch
	Close() error
}

// Batch interface represents a set of writes applied to a Repository in one
// operation.
type Batch interface {
	Put(key []byte, value []byte)
	Remove(key []byte)
	Len() int
	Write() error
}

// =============================================================================

// IOError represents a recoverable failure of the storage backend, such as a
// full disk. The caller may retry the operation.
type IOError struct {
	Op  string
	Err error
}

// NewIOError wraps a backend error for the specified operation.
func NewIOError(op string, err error) error {
	return &IOError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("storage %s: %s", e.Op, e.Err)
}

// Unwrap returns the backend error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError checks if an error of type IOError exists in the chain.
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}
