// Package errs provides types and support related to web v1 functionality.
package errs

import (
	"errors"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Codes  []string          `json:"codes,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// NewResponse constructs the response for an error. Validation failures
// carry their code path so callers can branch on it.
func NewResponse(err error) Response {
	resp := Response{
		Error: err.Error(),
	}

	var ve *validation.Error
	if errors.As(err, &ve) {
		resp.Codes = ve.Codes
	}

	var fe FieldErrors
	if errors.As(err, &fe) {
		resp.Error = "data validation error"
		resp.Fields = fe.Fields()
	}

	return resp
}

// =============================================================================

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (re *Trusted) Error() string {
	return re.Err.Error()
}

// Unwrap returns the wrapped error.
func (re *Trusted) Unwrap() error {
	return re.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var re *Trusted
	return errors.As(err, &re)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var re *Trusted
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// =============================================================================

// FieldError is used to indicate an error with a specific request field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	var s string
	for i, f := range fe {
		if i > 0 {
			s += ", "
		}
		s += f.Field + ": " + f.Err
	}
	return s
}

// Fields returns the fields that failed validation.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, f := range fe {
		m[f.Field] = f.Err
	}
	return m
}
