package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/agentfs/agentfs/internal/backend"
	"github.com/agentfs/agentfs/internal/backend/memory"
	"github.com/agentfs/agentfs/internal/backend/search"
	"github.com/agentfs/agentfs/internal/shared/pathutil"
)

// Store implements the file contract beneath a real root directory.
type Store struct {
	root    string
	overlay *memory.Store // nil in direct mode
	grepper grepper
}

var _ backend.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithVirtualMode captures writes and edits in an in-memory overlay instead
// of touching disk. The root directory is created if missing.
func WithVirtualMode() Option {
	return func(s *Store) { s.overlay = memory.New() }
}

// New creates a disk store rooted at root. In direct mode the root must
// already exist; virtual mode creates it.
func New(root string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	s := &Store{root: abs, grepper: newGrepper()}
	for _, opt := range opts {
		opt(s)
	}

	info, statErr := os.Stat(abs)
	switch {
	case statErr == nil && !info.IsDir():
		return nil, fmt.Errorf("root is not a directory: %s", abs)
	case os.IsNotExist(statErr) && s.overlay != nil:
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("create root: %w", err)
		}
	case statErr != nil:
		return nil, fmt.Errorf("root directory unavailable: %w", statErr)
	}
	return s, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

// Virtual reports whether the store runs in virtual-overlay mode.
func (s *Store) Virtual() bool { return s.overlay != nil }

// OverlayPaths returns the sorted set of paths captured by the overlay,
// empty in direct mode. This is how callers inspect a previewed batch.
func (s *Store) OverlayPaths() []string {
	if s.overlay == nil {
		return nil
	}
	return s.overlay.Paths()
}

// resolve validates path and anchors it beneath the root, re-validating
// containment after the join.
func (s *Store) resolve(path string) (host string, normalized string, err error) {
	normalized, err = pathutil.Validate(path)
	if err != nil {
		return "", "", backend.InvalidPath(err)
	}
	host = filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(normalized, "/")))
	host = filepath.Clean(host)
	if host != s.root && !strings.HasPrefix(host, s.root+string(filepath.Separator)) {
		return "", "", backend.InvalidPath(fmt.Errorf("path escapes root: %s", path))
	}
	return host, normalized, nil
}

// virtualPath maps an absolute host path back into the store's namespace.
func (s *Store) virtualPath(host string) string {
	rel, err := filepath.Rel(s.root, host)
	if err != nil || rel == "." {
		return pathutil.Separator
	}
	return pathutil.Normalize(filepath.ToSlash(rel))
}

// List returns the direct children of path, merging overlay entries over
// real ones in virtual mode. A missing directory lists as empty.
func (s *Store) List(ctx context.Context, path string) ([]backend.DirectoryEntry, error) {
	host, normalized, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]backend.DirectoryEntry)

	if info, statErr := os.Stat(host); statErr == nil {
		if !info.IsDir() {
			merged[filepath.Base(host)] = backend.DirectoryEntry{
				Name: filepath.Base(host),
				Path: normalized,
				Size: info.Size(),
			}
		} else {
			dirents, readErr := os.ReadDir(host)
			if readErr != nil {
				return nil, fmt.Errorf("list %s: %w", normalized, readErr)
			}
			for _, d := range dirents {
				entry := backend.DirectoryEntry{
					Name:  d.Name(),
					Path:  childPath(normalized, d.Name()),
					IsDir: d.IsDir(),
				}
				if fi, infoErr := d.Info(); infoErr == nil && !d.IsDir() {
					entry.Size = fi.Size()
				}
				merged[d.Name()] = entry
			}
		}
	}

	if s.overlay != nil {
		overlayEntries, overlayErr := s.overlay.List(ctx, normalized)
		if overlayErr != nil {
			return nil, overlayErr
		}
		for _, e := range overlayEntries {
			merged[e.Name] = e
		}
	}

	entries := make([]backend.DirectoryEntry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Read renders a line range, consulting the overlay before disk.
func (s *Store) Read(ctx context.Context, path string, offset, limit int) (string, error) {
	host, normalized, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	if s.overlay != nil {
		if out, overlayErr := s.overlay.Read(ctx, normalized, offset, limit); overlayErr == nil {
			return out, nil
		}
	}

	info, statErr := os.Stat(host)
	if os.IsNotExist(statErr) {
		return "", backend.NotFound(normalized)
	}
	if statErr != nil {
		return "", fmt.Errorf("read %s: %w", normalized, statErr)
	}
	if info.IsDir() {
		return "", fmt.Errorf("cannot read %s: path is a directory", normalized)
	}

	data, readErr := os.ReadFile(host)
	if readErr != nil {
		return "", fmt.Errorf("read %s: %w", normalized, readErr)
	}
	return backend.RenderLines(backend.SplitLines(string(data)), offset, limit), nil
}

// Write replaces the file content. Virtual mode captures the write in the
// overlay with zero disk side effects.
func (s *Store) Write(ctx context.Context, path, content string) (backend.WriteResult, error) {
	host, normalized, err := s.resolve(path)
	if err != nil {
		return backend.WriteResult{}, err
	}

	if s.overlay != nil {
		return s.overlay.Write(ctx, normalized, content)
	}

	if err := os.MkdirAll(filepath.Dir(host), 0o755); err != nil {
		return backend.WriteResult{}, fmt.Errorf("write %s: %w", normalized, err)
	}
	if err := os.WriteFile(host, []byte(content), 0o644); err != nil {
		return backend.WriteResult{}, fmt.Errorf("write %s: %w", normalized, err)
	}
	return backend.WriteResult{Path: normalized}, nil
}

// Edit substitutes old with new. In virtual mode the edited result lands in
// the overlay; a real file is read as the base when the overlay misses.
func (s *Store) Edit(ctx context.Context, path, old, new string, replaceAll bool) (backend.EditResult, error) {
	host, normalized, err := s.resolve(path)
	if err != nil {
		return backend.EditResult{}, err
	}

	if s.overlay != nil {
		if _, ok := s.overlay.Record(normalized); ok {
			return s.overlay.Edit(ctx, normalized, old, new, replaceAll)
		}
	}

	data, readErr := os.ReadFile(host)
	if os.IsNotExist(readErr) {
		return backend.EditResult{}, backend.NotFound(normalized)
	}
	if readErr != nil {
		return backend.EditResult{}, fmt.Errorf("edit %s: %w", normalized, readErr)
	}

	updated, count, subErr := backend.Substitute(string(data), old, new, replaceAll)
	if subErr != nil {
		return backend.EditResult{}, subErr
	}

	if s.overlay != nil {
		if _, err := s.overlay.Write(ctx, normalized, updated); err != nil {
			return backend.EditResult{}, err
		}
		return backend.EditResult{Path: normalized, Occurrences: count}, nil
	}

	if err := os.WriteFile(host, []byte(updated), 0o644); err != nil {
		return backend.EditResult{}, fmt.Errorf("edit %s: %w", normalized, err)
	}
	return backend.EditResult{Path: normalized, Occurrences: count}, nil
}

// Glob matches files under path against a doublestar pattern, merging
// overlay results over disk results in virtual mode.
func (s *Store) Glob(ctx context.Context, pattern, path string) ([]backend.DirectoryEntry, error) {
	if path == "" {
		path = pathutil.Separator
	}
	host, normalized, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]backend.DirectoryEntry)

	if info, statErr := os.Stat(host); statErr == nil && info.IsDir() {
		conf := fastwalk.Config{Follow: false}
		walkErr := fastwalk.Walk(&conf, host, func(p string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil || d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(host, p)
			if relErr != nil {
				return nil
			}
			if ok, matchErr := doublestar.Match(pattern, filepath.ToSlash(rel)); matchErr != nil || !ok {
				return nil
			}
			vp := s.virtualPath(p)
			entry := backend.DirectoryEntry{Name: filepath.Base(p), Path: vp}
			if fi, infoErr := d.Info(); infoErr == nil {
				entry.Size = fi.Size()
			}
			merged[vp] = entry
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, walkErr)
		}
	}

	if s.overlay != nil {
		overlayEntries, overlayErr := s.overlay.Glob(ctx, pattern, normalized)
		if overlayErr != nil {
			return nil, overlayErr
		}
		for _, e := range overlayEntries {
			merged[e.Path] = e
		}
	}

	results := make([]backend.DirectoryEntry, 0, len(merged))
	for _, e := range merged {
		results = append(results, e)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// Grep scans files under path for a regex pattern. Overlay entries shadow
// their on-disk counterparts so a previewed change is searched, not the
// stale file beneath it.
func (s *Store) Grep(ctx context.Context, pattern, path, fileGlob string) ([]backend.SearchMatch, error) {
	if path == "" {
		path = pathutil.Separator
	}
	host, normalized, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	// Compile up front so both the accelerated and fallback paths reject
	// bad patterns identically.
	re, err := search.Compile(pattern)
	if err != nil {
		return nil, err
	}

	shadowed := make(map[string]bool)
	var matches []backend.SearchMatch

	if s.overlay != nil {
		for _, p := range s.overlay.Paths() {
			shadowed[p] = true
		}
		overlayMatches, overlayErr := s.overlay.Grep(ctx, pattern, normalized, fileGlob)
		if overlayErr != nil {
			return nil, overlayErr
		}
		matches = append(matches, overlayMatches...)
	}

	diskMatches, grepErr := s.grepper.grep(ctx, s, re, pattern, host, fileGlob, shadowed)
	if grepErr != nil {
		return nil, grepErr
	}
	matches = append(matches, diskMatches...)

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Path != matches[j].Path {
			return matches[i].Path < matches[j].Path
		}
		return matches[i].Line < matches[j].Line
	})
	return matches, nil
}

func childPath(base, name string) string {
	if base == pathutil.Separator {
		return pathutil.Separator + name
	}
	return base + pathutil.Separator + name
}
