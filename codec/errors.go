package codec

import (
	"errors"
	"fmt"
)

var (
	ErrEncode      = errors.New("codec: encode failed")
	ErrDecode      = errors.New("codec: decode failed")
	ErrUnknownKind = errors.New("codec: unknown kind")
	ErrTooLarge    = errors.New("codec: payload too large")
)

const (
	OpEncode = "encode"
	OpDecode = "decode"
)

// Error reports a failed encode or decode. It matches ErrEncode or ErrDecode
// (by Op) as well as the underlying cause.
type Error struct {
	Codec string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec %s: %s: %v", e.Codec, e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Op {
	case OpEncode:
		errs = append(errs, ErrEncode)
	case OpDecode:
		errs = append(errs, ErrDecode)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Decoding wraps err as a decode failure outside of a codec, e.g. when a
// backend finds a corrupt envelope.
func Decoding(name string, err error) error {
	return &Error{Codec: name, Op: OpDecode, Err: err}
}
