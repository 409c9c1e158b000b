package generator

import (
	"fmt"
	"strings"
)

// Generation error codes
const (
	ErrCodeUnresolved  = "E302" // references no declaration matches
	ErrCodeTopic       = "E303" // root topic missing or not a struct/union
	ErrCodeLedger      = "E304" // published member changed ordinal or id
	ErrCodePositional  = "E305" // generated fields out of step with descriptor
	ErrCodeWrite       = "E306" // output could not be written
	ErrCodeDescriptor  = "E307" // descriptor construction failed
	ErrCodeTypedefLoop = "E308" // typedef refers to itself
)

// GenerationError is a fatal generator failure. Details lists every
// offending item when there is more than one.
type GenerationError struct {
	Code    string
	Message string
	Details []string
}

func (e *GenerationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	for _, d := range e.Details {
		b.WriteString("\n  ")
		b.WriteString(d)
	}
	return b.String()
}

func genErr(code, format string, args ...any) *GenerationError {
	return &GenerationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
