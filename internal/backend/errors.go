package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for storage-contract violations. Implementations wrap
// these with path context; callers classify with errors.Is.
var (
	// ErrInvalidPath rejects traversal or malformed paths before any
	// storage access.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound reports a read or edit against a missing path.
	ErrNotFound = errors.New("file not found")

	// ErrAmbiguousMatch reports an edit whose target occurs more than once
	// without replace-all.
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrNoMatch reports an edit whose target text is absent.
	ErrNoMatch = errors.New("no match")

	// ErrSandboxClosed reports any operation after Stop. Retry is
	// meaningless; this signals caller misuse.
	ErrSandboxClosed = errors.New("sandbox closed")

	// ErrBusy reports a concurrent Execute while one is already running.
	ErrBusy = errors.New("execution already in progress")
)

// NotFound wraps ErrNotFound with the offending path.
func NotFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}

// InvalidPath wraps ErrInvalidPath with the validation failure.
func InvalidPath(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidPath, err)
}

// BadPatternError is returned by Grep when the regular expression does not
// compile; its message is the user-facing diagnostic.
type BadPatternError struct {
	Pattern string
	Err     error
}

func (e *BadPatternError) Error() string {
	return fmt.Sprintf("invalid regex pattern %q: %v", e.Pattern, e.Err)
}

func (e *BadPatternError) Unwrap() error { return e.Err }
