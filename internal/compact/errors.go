package compact

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is returned by Expand and DecodeRecord when a record's
// parallel sequences cannot be reassembled.
var ErrMalformedRecord = errors.New("malformed record")

// DecodeError means an input did not match the expected shape. No partial
// record is produced.
type DecodeError struct {
	Input string // "config" or "datapoint"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Input, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError means a record could not be rendered as text, typically
// because it holds a non-finite float.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode record: %v", e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
