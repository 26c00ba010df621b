package core

import "github.com/pkg/errors"

// FieldError ties an error message to a single input field, keyed by the
// field's JSON name.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a rejected input. The API error handler renders Fields as
// a field→message map with a 400 status; Err carries the underlying cause
// (e.g. classroom.ErrEnrollmentExists) for callers that switch on it.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown marks an error as unrecoverable for the running server; the API
// error handler reacts to it by asking for a graceful stop.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown reports whether err (or its cause) requests a shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
