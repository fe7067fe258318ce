// Package search implements the glob and grep algorithms shared by the
// in-memory store and disk overlays.
//
// Glob patterns use doublestar semantics: * matches within a path segment,
// ** spans segments, ? matches one character. Grep treats patterns as Go
// regular expressions and reports 1-indexed line numbers.
package search
