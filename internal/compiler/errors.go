package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Load error codes (E001-E007), shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
)

// Type error codes (E201-E299)
const (
	ErrRecursiveByValue     = "E201" // type contains itself without indirection
	ErrKeyNotAddressable    = "E202" // key member type cannot be part of a key
	ErrNonPositiveBound     = "E203" // bound or array dimension <= 0
	ErrUnknownPrimitive     = "E204" // primitive without a wire mapping
	ErrDuplicateMember      = "E205" // duplicate member or case name
	ErrDuplicateMemberID    = "E206" // duplicate member id
	ErrDuplicateLabel       = "E207" // union label used twice
	ErrMultipleDefaults     = "E208" // more than one default case
	ErrMutableUnion         = "E209" // unions cannot be mutable
	ErrInvalidDiscriminator = "E210" // discriminator type or label invalid
	ErrMalformed            = "E211" // malformed declaration
	ErrDuplicateType        = "E212" // scoped name declared twice
	ErrInvalidEnum          = "E213" // empty enum or duplicate enumerators
	ErrInvalidAnnotation    = "E214" // bad extensibility, autoid or id
	ErrArrayTooLarge        = "E215" // array element count overflows 32 bits
)

// ErrContextBusy is returned when a second compilation pass starts on a
// Context that is already running one.
var ErrContextBusy = errors.New("compilation context is busy")

// TypeError reports an IDL declaration the backend cannot accept.
type TypeError struct {
	Code    string    `json:"code"`
	Type    string    `json:"type,omitempty"`  // scoped name of the declaration
	Field   string    `json:"field,omitempty"` // member, case or enumerator
	Message string    `json:"message"`
	Pos     token.Pos `json:"-"`
}

func (e *TypeError) Error() string {
	subject := e.Type
	if e.Field != "" {
		if subject != "" {
			subject += "."
		}
		subject += e.Field
	}
	if subject != "" {
		subject += ": "
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s%s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, subject, e.Message)
	}
	return fmt.Sprintf("[%s] %s%s", e.Code, subject, e.Message)
}

// IsTypeError reports whether err is or wraps a TypeError.
func IsTypeError(err error) bool {
	var te *TypeError
	return errors.As(err, &te)
}

// LoadError represents an error that occurred while loading IDL documents.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error, typeName, field string) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &TypeError{Code: ErrMalformed, Type: typeName, Field: field, Message: err.Error()}
	}

	// Return first error with position info
	first := errs[0]
	te := &TypeError{Code: ErrMalformed, Type: typeName, Field: field, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		te.Pos = positions[0]
	}
	return te
}
