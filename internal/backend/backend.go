package backend

import (
	"context"
	"time"
)

// DefaultReadLimit is the number of lines Read returns when the caller does
// not specify a limit.
const DefaultReadLimit = 2000

// DirectoryEntry is metadata for one listing or glob result. Entries are
// derived on every call from the authoritative file set, never persisted.
type DirectoryEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// SearchMatch is one grep hit: path, 1-indexed line number, full line text.
type SearchMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// WriteResult reports a successful write.
type WriteResult struct {
	Path string `json:"path"`
}

// EditResult reports a successful edit and how many substitutions were made.
type EditResult struct {
	Path        string `json:"path"`
	Occurrences int    `json:"occurrences"`
}

// ExecutionResult is the outcome of one sandbox command. ExitCode is nil if
// the process could not report one, including when the command timed out;
// a timeout is a normal outcome, not an executor failure.
type ExecutionResult struct {
	Output    string        `json:"output"`
	ExitCode  *int          `json:"exit_code,omitempty"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"duration"`
}

// Backend is the file contract implemented by every storage strategy.
//
// Paths are absolute forward-slash paths and are validated before any
// storage access. Read renders lines as "<1-indexed number><TAB><text>";
// an offset past the end of the file yields an empty string, not an error.
type Backend interface {
	// List returns entries for the direct children of path, including
	// synthesized entries for intermediate directories.
	List(ctx context.Context, path string) ([]DirectoryEntry, error)

	// Read returns up to limit lines starting at the 0-indexed offset,
	// rendered with 1-indexed line numbers. Fails with ErrNotFound.
	Read(ctx context.Context, path string, offset, limit int) (string, error)

	// Write replaces the full content of path, creating it if absent.
	Write(ctx context.Context, path, content string) (WriteResult, error)

	// Edit substitutes old with new. With replaceAll false, exactly one
	// occurrence must exist: zero fails ErrNoMatch, more than one fails
	// ErrAmbiguousMatch and the file is left untouched.
	Edit(ctx context.Context, path, old, new string, replaceAll bool) (EditResult, error)

	// Glob returns entries for files under path matching a shell-glob
	// pattern with doublestar (**) semantics.
	Glob(ctx context.Context, pattern, path string) ([]DirectoryEntry, error)

	// Grep scans every line of every file under path (optionally filtered
	// by fileGlob) against a regular expression.
	Grep(ctx context.Context, pattern, path, fileGlob string) ([]SearchMatch, error)
}

// Executor is the capability extension exposed by sandbox backends on top
// of the file contract.
type Executor interface {
	Backend

	// Execute runs a shell command inside the isolated environment. A zero
	// timeout selects the executor's default.
	Execute(ctx context.Context, command string, timeout time.Duration) (ExecutionResult, error)

	// ID returns a stable identifier for the environment instance.
	ID() string

	// Stop releases the environment. Idempotent; terminates any in-flight
	// command first. All calls after Stop fail with ErrSandboxClosed.
	Stop() error
}
