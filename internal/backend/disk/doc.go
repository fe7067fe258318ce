// Package disk implements the file contract over a real directory tree.
//
// Every path is validated, joined beneath the configured root, and
// re-checked for containment, so the store can never escape its root. In
// virtual mode writes and edits land in an in-memory overlay instead of the
// filesystem: reads consult the overlay first, listings and search merge
// overlay and disk with overlay precedence, and the overlay's key set
// records exactly which paths a batch of changes touched.
//
// Grep prefers ripgrep when it is on PATH and falls back to a line-by-line
// scan with identical output; the fallback is always available.
package disk
