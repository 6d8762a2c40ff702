package services

import (
	"errors"
	"fmt"
)

// ErrLookup marks a failure of the price catalog itself. The cause is
// wrapped and stays reachable through errors.Is / errors.As.
var ErrLookup = errors.New("price lookup failed")

// ValidationError reports a malformed or missing query field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type lookupError struct{ cause error }

func (e *lookupError) Error() string { return ErrLookup.Error() + ": " + e.cause.Error() }
func (e *lookupError) Unwrap() []error { return []error{ErrLookup, e.cause} }
