// Package server assembles the storage topology and exposes it over HTTP.
//
// The mount table decides the backend shape: a single backend when no mounts
// are configured, a composite router otherwise. Sandboxes are created on
// demand through the sandbox manager and torn down at shutdown.
package server
