package blocktree

import "strings"

// Status is a bit field representing the validation state of a block index.
// The lowest bits hold the validity level reached, the remaining bits hold
// independent flags.
type Status uint32

// Validity levels. A block at a level has passed the checks of every lower
// level as well.
const (
	StatusValidUnknown Status = 0
	StatusValidTree    Status = 1 // Header is contextually valid and linked to its parent.
	StatusConnected    Status = 2 // Payloads are attached and every ancestor is connected.
	StatusCanBeApplied Status = 3 // Payloads were applied on top of the ancestors.
	statusValidMask    Status = 3
)

// Independent flags.
const (
	StatusFailedBlock Status = 1 << (iota + 2) // Header or block content is invalid.
	StatusFailedPop                            // Payloads failed stateful validation.
	StatusFailedChild                          // An ancestor is invalid.
	StatusActive                               // Payloads of the block are currently applied.
	StatusHasPayloads                          // Payload ids are attached to the block.
	StatusBootstrap                            // Block was part of the bootstrap set.

	StatusFailedMask = StatusFailedBlock | StatusFailedPop | StatusFailedChild
)

// Validity is the coarse view of a status.
type Validity int

// Set of coarse validity values.
const (
	ValidityUnknown Validity = iota
	ValidityValid
	ValidityFailed
)

// String returns the name of the validity.
func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "valid"
	case ValidityFailed:
		return "failed"
	}
	return "unknown"
}

// Level returns the validity level of the status.
func (s Status) Level() Status {
	return s & statusValidMask
}

// KnownInvalid reports whether any failure flag is set.
func (s Status) KnownInvalid() bool {
	return s&StatusFailedMask != 0
}

// Validity collapses the status into unknown, valid or failed.
func (s Status) Validity() Validity {
	switch {
	case s.KnownInvalid():
		return ValidityFailed
	case s.Level() >= StatusValidTree:
		return ValidityValid
	}
	return ValidityUnknown
}

// String returns the flags set in the status.
func (s Status) String() string {
	var names []string
	switch s.Level() {
	case StatusValidTree:
		names = append(names, "VALID_TREE")
	case StatusConnected:
		names = append(names, "CONNECTED")
	case StatusCanBeApplied:
		names = append(names, "CAN_BE_APPLIED")
	default:
		names = append(names, "VALID_UNKNOWN")
	}

	flags := []struct {
		f    Status
		name string
	}{
		{StatusFailedBlock, "FAILED_BLOCK"},
		{StatusFailedPop, "FAILED_POP"},
		{StatusFailedChild, "FAILED_CHILD"},
		{StatusActive, "ACTIVE"},
		{StatusHasPayloads, "HAS_PAYLOADS"},
		{StatusBootstrap, "BOOTSTRAP"},
	}
	for _, fl := range flags {
		if s&fl.f != 0 {
			names = append(names, fl.name)
		}
	}

	return strings.Join(names, "|")
}
