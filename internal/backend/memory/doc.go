// Package memory implements the file contract on a process-local map.
//
// All state lives in a single path-keyed map of FileRecords guarded by one
// store-wide lock, so any operation is atomic with respect to every other.
// Nothing survives process restart.
package memory
