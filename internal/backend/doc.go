// Package backend defines the storage contract shared by every file backend.
//
// A Backend presents one consistent surface (line-numbered reads, atomic
// writes, exact-substring edits, glob and regex search, directory listing)
// regardless of whether files live in memory, on disk, behind a prefix
// router, or inside an isolated sandbox. Concrete implementations live in
// the memory, disk, composite, and sandbox subpackages.
//
// Contract violations are reported as error values built on the exported
// sentinels (ErrNotFound, ErrAmbiguousMatch, ...); callers classify them
// with errors.Is and render them as user-facing messages.
package backend
