// Package composite dispatches file operations to sub-backends by longest
// matching path prefix, falling back to a default backend.
//
// The router owns no file state: routes share their backends, and paths are
// forwarded unrewritten. Root-level listings synthesize one directory entry
// per mounted prefix; root-level glob and grep aggregate across the default
// backend and every route.
package composite
