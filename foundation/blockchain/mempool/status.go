package mempool

import (
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
)

// Status is the outcome of submitting a payload.
type Status int

// Set of submit statuses.
const (
	StatusValid Status = iota
	StatusFailedStateless
	StatusFailedStateful
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusFailedStateless:
		return "FAILED_STATELESS"
	case StatusFailedStateful:
		return "FAILED_STATEFUL"
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// MarshalText implements the encoding.TextMarshaler interface.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SubmitResult reports what happened to a submitted payload.
type SubmitResult struct {
	ID     database.Hash        `json:"id"`
	Kind   database.PayloadKind `json:"-"`
	Status Status               `json:"status"`
	Added  bool                 `json:"added"` // False when the payload was already pending.
	Reason string               `json:"reason,omitempty"`
}

// Valid reports whether the payload is pending in the mempool.
func (r SubmitResult) Valid() bool {
	return r.Status == StatusValid
}
