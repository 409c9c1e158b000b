package cdr

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes codec failures.
type ErrorCode string

const (
	// ErrCodeBound indicates a string or sequence longer than its bound.
	ErrCodeBound ErrorCode = "E401"

	// ErrCodeValue indicates a value whose shape or range does not fit the type.
	ErrCodeValue ErrorCode = "E402"

	// ErrCodeUnsupported indicates an encoding the type cannot be expressed in,
	// or an encapsulation the decoder does not implement.
	ErrCodeUnsupported ErrorCode = "E403"

	// ErrCodeTruncated indicates input that ends inside a value.
	ErrCodeTruncated ErrorCode = "E410"

	// ErrCodeInvalid indicates malformed input: a bool byte other than 0 or 1,
	// an unknown enumerator, a missing string terminator.
	ErrCodeInvalid ErrorCode = "E411"

	// ErrCodeDuplicate indicates a MUTABLE member id that occurs twice.
	ErrCodeDuplicate ErrorCode = "E412"

	// ErrCodeMustUnderstand indicates an unknown MUTABLE member flagged
	// must-understand.
	ErrCodeMustUnderstand ErrorCode = "E413"

	// ErrCodeMismatch indicates a FINAL layout with missing or extra members.
	ErrCodeMismatch ErrorCode = "E420"
)

// EncodeError reports a value that violates its type, such as a string
// longer than its declared bound.
type EncodeError struct {
	Code    ErrorCode
	Path    string
	Offset  int
	Message string
	Err     error
}

func (e *EncodeError) Error() string {
	return formatError("encode", e.Code, e.Path, e.Offset, e.Message, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports a malformed or truncated buffer.
type DecodeError struct {
	Code    ErrorCode
	Path    string
	Offset  int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	return formatError("decode", e.Code, e.Path, e.Offset, e.Message, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a FINAL type whose encoded member list does not
// match the reader's: the data ends at a member boundary before all members
// were read, or bytes remain after the last member.
type SchemaMismatchError struct {
	Path    string
	Offset  int
	Message string
}

func (e *SchemaMismatchError) Error() string {
	return formatError("decode", ErrCodeMismatch, e.Path, e.Offset, e.Message, nil)
}

func formatError(op string, code ErrorCode, path string, offset int, msg string, cause error) string {
	s := fmt.Sprintf("%s: %s", code, op)
	if path != "" {
		s += " " + path
	}
	s += fmt.Sprintf(" at offset %d: %s", offset, msg)
	if cause != nil {
		s += ": " + cause.Error()
	}
	return s
}

// IsEncodeError reports whether err is or wraps an EncodeError.
func IsEncodeError(err error) bool {
	var e *EncodeError
	return errors.As(err, &e)
}

// IsDecodeError reports whether err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// IsSchemaMismatch reports whether err is or wraps a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var e *SchemaMismatchError
	return errors.As(err, &e)
}

// Code extracts the ErrorCode of a codec error, or "" for other errors.
func Code(err error) ErrorCode {
	var ee *EncodeError
	if errors.As(err, &ee) {
		return ee.Code
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Code
	}
	var se *SchemaMismatchError
	if errors.As(err, &se) {
		return ErrCodeMismatch
	}
	return ""
}
