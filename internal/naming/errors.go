package naming

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrCodeNameConflict is the code of NameConflictError.
const ErrCodeNameConflict = "E301"

// NameConflictError reports IDL names that cannot be given distinct,
// unreserved Go identifiers. It is fatal for generation.
type NameConflictError struct {
	Scope      string
	Identifier string
	Paths      []string
	Reason     string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("[%s] name conflict in %s: %q (%s) for %s",
		ErrCodeNameConflict, e.Scope, e.Identifier, e.Reason, strings.Join(e.Paths, ", "))
}

// newConflict returns a NameConflictError carrying a user hint.
func newConflict(scope, id string, paths []string, reason string) error {
	err := &NameConflictError{Scope: scope, Identifier: id, Paths: paths, Reason: reason}
	return errors.WithHint(err,
		"rename one of the IDL declarations, or adjust reserved_words or case_convention in the naming config")
}
