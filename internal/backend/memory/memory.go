package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentfs/agentfs/internal/backend"
	"github.com/agentfs/agentfs/internal/backend/search"
	"github.com/agentfs/agentfs/internal/shared/pathutil"
)

// Store holds every file in memory, keyed by normalized path.
type Store struct {
	mu    sync.RWMutex
	files map[string]*backend.FileRecord
	now   func() time.Time
}

var _ backend.Backend = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		files: make(map[string]*backend.FileRecord),
		now:   time.Now,
	}
}

// List returns the direct children of path: stored files plus one
// synthesized entry per distinct intermediate directory segment. Listing a
// path stored as a file returns that single entry.
func (s *Store) List(ctx context.Context, path string) ([]backend.DirectoryEntry, error) {
	normalized, err := pathutil.Validate(path)
	if err != nil {
		return nil, backend.InvalidPath(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.files[normalized]; ok {
		return []backend.DirectoryEntry{{
			Name: pathutil.Base(normalized),
			Path: normalized,
			Size: rec.Size(),
		}}, nil
	}

	entries := make(map[string]backend.DirectoryEntry)
	for p, rec := range s.files {
		if !pathutil.IsUnder(p, normalized) || p == normalized {
			continue
		}
		rel := search.Relative(p, normalized)
		name, isDir := splitFirst(rel)
		entry := backend.DirectoryEntry{
			Name:  name,
			Path:  childPath(normalized, name),
			IsDir: isDir,
		}
		if !isDir {
			entry.Size = rec.Size()
		}
		// A directory segment wins over a same-named file entry.
		if prev, seen := entries[name]; !seen || (!prev.IsDir && isDir) {
			entries[name] = entry
		}
	}
	return sortEntries(entries), nil
}

// Read renders a line range of the stored file.
func (s *Store) Read(ctx context.Context, path string, offset, limit int) (string, error) {
	normalized, err := pathutil.Validate(path)
	if err != nil {
		return "", backend.InvalidPath(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[normalized]
	if !ok {
		return "", backend.NotFound(normalized)
	}
	return backend.RenderLines(rec.Lines, offset, limit), nil
}

// Write replaces the record for path, creating it on first write.
func (s *Store) Write(ctx context.Context, path, content string) (backend.WriteResult, error) {
	normalized, err := pathutil.Validate(path)
	if err != nil {
		return backend.WriteResult{}, backend.InvalidPath(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.files[normalized]; ok {
		rec.Replace(content, s.now())
	} else {
		s.files[normalized] = backend.NewFileRecord(content, s.now())
	}
	return backend.WriteResult{Path: normalized}, nil
}

// Edit substitutes old with new in the stored file.
func (s *Store) Edit(ctx context.Context, path, old, new string, replaceAll bool) (backend.EditResult, error) {
	normalized, err := pathutil.Validate(path)
	if err != nil {
		return backend.EditResult{}, backend.InvalidPath(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[normalized]
	if !ok {
		return backend.EditResult{}, backend.NotFound(normalized)
	}
	updated, count, err := backend.Substitute(rec.Content(), old, new, replaceAll)
	if err != nil {
		return backend.EditResult{}, err
	}
	rec.Replace(updated, s.now())
	return backend.EditResult{Path: normalized, Occurrences: count}, nil
}

// Glob matches stored paths under path against a doublestar pattern.
func (s *Store) Glob(ctx context.Context, pattern, path string) ([]backend.DirectoryEntry, error) {
	if path == "" {
		path = pathutil.Separator
	}
	normalized, err := pathutil.Validate(path)
	if err != nil {
		return nil, backend.InvalidPath(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []backend.DirectoryEntry
	for _, p := range s.sortedPathsLocked() {
		if !pathutil.IsUnder(p, normalized) {
			continue
		}
		if search.MatchGlob(pattern, p, normalized) {
			results = append(results, backend.DirectoryEntry{
				Name: pathutil.Base(p),
				Path: p,
				Size: s.files[p].Size(),
			})
		}
	}
	return results, nil
}

// Grep scans stored files under path for a regex pattern. An empty path
// scans the whole store; a path naming a stored file scans only it.
func (s *Store) Grep(ctx context.Context, pattern, path, fileGlob string) ([]backend.SearchMatch, error) {
	if path == "" {
		path = pathutil.Separator
	}
	normalized, err := pathutil.Validate(path)
	if err != nil {
		return nil, backend.InvalidPath(err)
	}
	re, err := search.Compile(pattern)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []backend.SearchMatch
	for _, p := range s.sortedPathsLocked() {
		if p != normalized && !pathutil.IsUnder(p, normalized) {
			continue
		}
		if fileGlob != "" && !search.MatchGlob(fileGlob, p, pathutil.Separator) {
			continue
		}
		matches = append(matches, search.GrepLines(re, p, s.files[p].Lines)...)
	}
	return matches, nil
}

// Delete removes a stored file. Deleting an absent path is a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	normalized, err := pathutil.Validate(path)
	if err != nil {
		return backend.InvalidPath(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, normalized)
	return nil
}

// Paths returns a sorted snapshot of every stored path.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPathsLocked()
}

// Record returns a copy of the stored record for path, if present.
func (s *Store) Record(path string) (backend.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[pathutil.Normalize(path)]
	if !ok {
		return backend.FileRecord{}, false
	}
	cp := *rec
	cp.Lines = append([]string(nil), rec.Lines...)
	return cp, true
}

func (s *Store) sortedPathsLocked() []string {
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func splitFirst(rel string) (name string, isDir bool) {
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' {
			return rel[:i], true
		}
	}
	return rel, false
}

func childPath(base, name string) string {
	if base == pathutil.Separator {
		return pathutil.Separator + name
	}
	return base + pathutil.Separator + name
}

func sortEntries(m map[string]backend.DirectoryEntry) []backend.DirectoryEntry {
	entries := make([]backend.DirectoryEntry, 0, len(m))
	for _, e := range m {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}
