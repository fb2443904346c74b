package cachette

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/cachette/backend"
)

var (
	// ErrValidation matches every configuration failure.
	ErrValidation = errors.New("cachette: invalid configuration")

	ErrUnknownBackend = errors.New("unknown backend")
	ErrUnknownCodec   = errors.New("unknown codec")
	ErrInvalidTTL     = errors.New("ttl must be between 1 and 3600 seconds")
	ErrUnknownOption  = errors.New("unknown option")
	ErrMissingOption  = errors.New("required option is missing")
	ErrInvalidOption  = errors.New("invalid option value")

	ErrBackendUnavailable = backend.ErrUnavailable
	ErrUnsupported        = backend.ErrUnsupported
)

// ValidationError names the offending option. It unwraps to ErrValidation
// and to the specific cause.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("cachette: %s: %s: %v", e.Field, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("cachette: %s: %s", e.Field, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("cachette: %s: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("cachette: %s: invalid", e.Field)
	}
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, 2)
	errs = append(errs, ErrValidation)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func invalid(field string, err error, reason string) error {
	return &ValidationError{Field: field, Reason: reason, Err: err}
}
