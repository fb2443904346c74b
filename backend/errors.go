package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable marks connectivity or transport failures. Never retried.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrUnsupported is returned by stores that cannot perform an operation,
	// e.g. namespace clear on a store that cannot enumerate keys.
	ErrUnsupported = errors.New("operation not supported by backend")
	ErrClearArgs   = errors.New("clear: namespace and key are mutually exclusive")
	// ErrRejected is returned when a bounded store drops a write under pressure.
	ErrRejected = errors.New("write rejected by backend")
	ErrNoCodec  = errors.New("backend: codec is required")
)

// OpError describes a failed backend call. It unwraps to ErrUnavailable (for
// transport failures) and to the driver's own error.
type OpError struct {
	Backend string
	Op      string
	Key     string
	Kind    error
	Err     error
}

func (e *OpError) Error() string {
	switch {
	case e.Key != "" && e.Err != nil:
		return fmt.Sprintf("%s %s %q: %v: %v", e.Backend, e.Op, e.Key, e.Kind, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Key, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v: %v", e.Backend, e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Kind)
	}
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Unavailable wraps a transport error.
func Unavailable(backend, op, key string, err error) error {
	return &OpError{Backend: backend, Op: op, Key: key, Kind: ErrUnavailable, Err: err}
}

// Unsupported reports an operation the backend cannot perform.
func Unsupported(backend, op string) error {
	return &OpError{Backend: backend, Op: op, Kind: ErrUnsupported}
}
