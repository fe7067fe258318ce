// Package pathutil provides path validation and normalization shared by
// every storage backend.
//
// All backends speak absolute, forward-slash paths. Validation is the single
// gate against traversal: it rejects parent-directory segments, home
// expansion markers, and Windows-style paths before any storage access.
package pathutil
