// Package validation provides the structured result returned when data fails
// validation and the corruption channel used when an internal invariant of
// the block trees is violated.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a data dependent validation failure. Codes are ordered from
// the outermost operation to the innermost check that failed.
type Error struct {
	Codes   []string
	Message string
}

// Invalid constructs a validation error with a single reason code.
func Invalid(code string, format string, args ...any) *Error {
	return &Error{
		Codes:   []string{code},
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s, %s", e.Path(), e.Message)
}

// Path returns the reason codes joined in order.
func (e *Error) Path() string {
	return strings.Join(e.Codes, "+")
}

// Reason returns the innermost reason code.
func (e *Error) Reason() string {
	if len(e.Codes) == 0 {
		return ""
	}
	return e.Codes[len(e.Codes)-1]
}

// Wrap prefixes the reason codes of a validation error with the specified
// code. Errors that are not validation errors are wrapped as a new validation
// error using their text as the debug message.
func Wrap(err error, code string) error {
	if err == nil {
		return nil
	}

	var ve *Error
	if !errors.As(err, &ve) {
		return &Error{Codes: []string{code}, Message: err.Error()}
	}

	codes := make([]string, 0, len(ve.Codes)+1)
	codes = append(codes, code)
	codes = append(codes, ve.Codes...)

	return &Error{Codes: codes, Message: ve.Message}
}

// IsInvalid checks if an error of type Error exists in the chain.
func IsInvalid(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// HasCode reports whether the validation error carries the specified code.
func HasCode(err error, code string) bool {
	var ve *Error
	if !errors.As(err, &ve) {
		return false
	}

	for _, c := range ve.Codes {
		if c == code {
			return true
		}
	}

	return false
}

// =============================================================================

// CorruptionError represents a violated internal invariant. A context that
// observes one of these cannot continue operating on its trees.
type CorruptionError struct {
	Message string
}

// Error implements the error interface.
func (e *CorruptionError) Error() string {
	return "corruption: " + e.Message
}

// Corrupt raises a corruption failure. It never returns.
func Corrupt(format string, args ...any) {
	panic(&CorruptionError{Message: fmt.Sprintf(format, args...)})
}

// Assert raises a corruption failure when the condition does not hold.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		Corrupt(format, args...)
	}
}

// Recover converts a corruption panic into an error stored at the specified
// address. Any other panic is propagated. It must be called directly by defer.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}

	ce, ok := r.(*CorruptionError)
	if !ok {
		panic(r)
	}

	*errp = ce
}

// IsCorruption checks if an error of type CorruptionError exists in the chain.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}
