package composite

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agentfs/agentfs/internal/backend"
	"github.com/agentfs/agentfs/internal/shared/pathutil"
)

// Route binds a path prefix to a backend. Prefixes are normalized to end
// with a separator so "/project/" never captures "/projectx".
type Route struct {
	Prefix  string
	Backend backend.Backend
}

// Router routes each operation to the backend with the longest matching
// prefix, or to the default backend when nothing matches.
type Router struct {
	mu       sync.RWMutex
	routes   []Route // sorted by prefix length descending, then mount order
	fallback backend.Backend
}

var _ backend.Backend = (*Router)(nil)

// New creates a router over a default backend.
func New(fallback backend.Backend, routes ...Route) *Router {
	r := &Router{fallback: fallback}
	for _, rt := range routes {
		r.Mount(rt.Prefix, rt.Backend)
	}
	return r
}

// Mount registers a prefix route. Routes are kept sorted by prefix length
// descending; equal-length prefixes keep mount order, first mounted wins.
func (r *Router) Mount(prefix string, b backend.Backend) {
	prefix = pathutil.Normalize(prefix)
	if prefix != pathutil.Separator {
		prefix += pathutil.Separator
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, Route{Prefix: prefix, Backend: b})
	sort.SliceStable(r.routes, func(i, j int) bool {
		return len(r.routes[i].Prefix) > len(r.routes[j].Prefix)
	})
}

// Routes returns a snapshot of the routing table.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Route(nil), r.routes...)
}

// Default returns the fallback backend.
func (r *Router) Default() backend.Backend { return r.fallback }

// resolve picks the backend for a path. Invalid paths go to the default
// backend, which rejects them with the shared validation error.
func (r *Router) resolve(path string) backend.Backend {
	normalized, err := pathutil.Validate(path)
	if err != nil {
		return r.fallback
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if strings.HasPrefix(normalized+pathutil.Separator, rt.Prefix) {
			return rt.Backend
		}
	}
	return r.fallback
}

// isRoot reports whether path addresses the router's whole namespace.
func isRoot(path string) bool {
	return path == "" || pathutil.Normalize(path) == pathutil.Separator
}

// List forwards to the routed backend. At the root it merges the default
// backend's listing with one synthesized directory entry per route prefix.
func (r *Router) List(ctx context.Context, path string) ([]backend.DirectoryEntry, error) {
	if !isRoot(path) {
		return r.resolve(path).List(ctx, path)
	}

	entries, err := r.fallback.List(ctx, pathutil.Separator)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.Name] = true
	}
	for _, rt := range r.Routes() {
		name := strings.Trim(rt.Prefix, pathutil.Separator)
		if i := strings.Index(name, pathutil.Separator); i >= 0 {
			name = name[:i]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		entries = append(entries, backend.DirectoryEntry{
			Name:  name,
			Path:  pathutil.Separator + name,
			IsDir: true,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Read forwards to the routed backend.
func (r *Router) Read(ctx context.Context, path string, offset, limit int) (string, error) {
	return r.resolve(path).Read(ctx, path, offset, limit)
}

// Write forwards to the routed backend.
func (r *Router) Write(ctx context.Context, path, content string) (backend.WriteResult, error) {
	return r.resolve(path).Write(ctx, path, content)
}

// Edit forwards to the routed backend.
func (r *Router) Edit(ctx context.Context, path, old, new string, replaceAll bool) (backend.EditResult, error) {
	return r.resolve(path).Edit(ctx, path, old, new, replaceAll)
}

// Glob forwards to the routed backend, or aggregates across every backend
// when globbing from the root.
func (r *Router) Glob(ctx context.Context, pattern, path string) ([]backend.DirectoryEntry, error) {
	if !isRoot(path) {
		return r.resolve(path).Glob(ctx, pattern, path)
	}

	var results []backend.DirectoryEntry
	seen := make(map[string]bool)
	collect := func(entries []backend.DirectoryEntry) {
		for _, e := range entries {
			if !seen[e.Path] {
				seen[e.Path] = true
				results = append(results, e)
			}
		}
	}

	for _, rt := range r.Routes() {
		entries, err := rt.Backend.Glob(ctx, pattern, pathutil.Separator)
		if err != nil {
			continue // aggregation is best-effort per backend
		}
		collect(entries)
	}
	entries, err := r.fallback.Glob(ctx, pattern, pathutil.Separator)
	if err != nil {
		return nil, err
	}
	collect(entries)

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// Grep forwards to the routed backend, or aggregates across every backend
// when searching from the root. A backend's bad-pattern diagnostic does not
// suppress matches from the others.
func (r *Router) Grep(ctx context.Context, pattern, path, fileGlob string) ([]backend.SearchMatch, error) {
	if !isRoot(path) {
		return r.resolve(path).Grep(ctx, pattern, path, fileGlob)
	}

	var matches []backend.SearchMatch
	for _, rt := range r.Routes() {
		found, err := rt.Backend.Grep(ctx, pattern, pathutil.Separator, fileGlob)
		if err != nil {
			continue
		}
		matches = append(matches, found...)
	}
	found, err := r.fallback.Grep(ctx, pattern, pathutil.Separator, fileGlob)
	if err == nil {
		matches = append(matches, found...)
	} else if len(matches) == 0 {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Path != matches[j].Path {
			return matches[i].Path < matches[j].Path
		}
		return matches[i].Line < matches[j].Line
	})
	return matches, nil
}
