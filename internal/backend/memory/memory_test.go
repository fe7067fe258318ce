package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfs/agentfs/internal/backend"
)

func TestWriteThenRead(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Write(ctx, "/src/app.py", "print('hi')")
	require.NoError(t, err)

	out, err := store.Read(ctx, "/src/app.py", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1\tprint('hi')", out)
}

func TestReadNotFound(t *testing.T) {
	store := New()
	_, err := store.Read(context.Background(), "/missing.txt", 0, 0)
	assert.True(t, errors.Is(err, backend.ErrNotFound))
}

func TestReadWithOffsetAndLimit(t *testing.T) {
	store := New()
	ctx := context.Background()

	content := "Line 0\nLine 1\nLine 2\nLine 3\nLine 4\nLine 5\nLine 6"
	_, err := store.Write(ctx, "/test.txt", content)
	require.NoError(t, err)

	out, err := store.Read(ctx, "/test.txt", 5, 3)
	require.NoError(t, err)
	assert.Contains(t, out, "Line 5")
	assert.Contains(t, out, "Line 6")
	assert.NotContains(t, out, "Line 4")
}

func TestReadOffsetPastEnd(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Write(ctx, "/test.txt", "short file")
	require.NoError(t, err)

	out, err := store.Read(ctx, "/test.txt", 100, 0)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestReadTruncationNote(t *testing.T) {
	store := New()
	ctx := context.Background()

	content := ""
	for i := 0; i < 100; i++ {
		if i > 0 {
			content += "\n"
		}
		content += "line"
	}
	_, err := store.Write(ctx, "/test.txt", content)
	require.NoError(t, err)

	out, err := store.Read(ctx, "/test.txt", 0, 10)
	require.NoError(t, err)
	assert.Contains(t, out, "more lines")
}

func TestWritePreservesCreatedAt(t *testing.T) {
	store := New()
	ctx := context.Background()

	t0 := time.Unix(1000, 0)
	t1 := time.Unix(2000, 0)
	times := []time.Time{t0, t1}
	store.now = func() time.Time {
		next := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return next
	}

	_, err := store.Write(ctx, "/test.txt", "initial")
	require.NoError(t, err)
	_, err = store.Write(ctx, "/test.txt", "updated")
	require.NoError(t, err)

	rec, ok := store.Record("/test.txt")
	require.True(t, ok)
	assert.Equal(t, t0, rec.CreatedAt)
	assert.Equal(t, t1, rec.ModifiedAt)
	assert.True(t, rec.ModifiedAt.After(rec.CreatedAt))
}

func TestEditSingleOccurrence(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Write(ctx, "/src/app.py", "print('hi')")
	require.NoError(t, err)

	res, err := store.Edit(ctx, "/src/app.py", "hi", "world", false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Occurrences)

	out, err := store.Read(ctx, "/src/app.py", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1\tprint('world')", out)
}

func TestEditNotFound(t *testing.T) {
	store := New()
	_, err := store.Edit(context.Background(), "/missing.txt", "a", "b", false)
	assert.True(t, errors.Is(err, backend.ErrNotFound))
}

func TestEditAmbiguousLeavesFileUntouched(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Write(ctx, "/test.txt", "foo bar foo")
	require.NoError(t, err)

	_, err = store.Edit(ctx, "/test.txt", "foo", "qux", false)
	assert.True(t, errors.Is(err, backend.ErrAmbiguousMatch))

	out, err := store.Read(ctx, "/test.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1\tfoo bar foo", out)
}

func TestEditNoMatch(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Write(ctx, "/test.txt", "hello")
	require.NoError(t, err)

	_, err = store.Edit(ctx, "/test.txt", "absent", "x", false)
	assert.True(t, errors.Is(err, backend.ErrNoMatch))
}

func TestEditReplaceAll(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Write(ctx, "/test.txt", "foo bar foo baz foo")
	require.NoError(t, err)

	res, err := store.Edit(ctx, "/test.txt", "foo", "qux", true)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Occurrences)

	out, err := store.Read(ctx, "/test.txt", 0, 0)
	require.NoError(t, err)
	assert.NotContains(t, out, "foo")
}

func TestPathRejection(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, p := range []string{"../etc/passwd", "~/x", "C:\\x"} {
		_, err := store.Read(ctx, p, 0, 0)
		assert.True(t, errors.Is(err, backend.ErrInvalidPath), "path %q", p)

		_, err = store.Write(ctx, p, "data")
		assert.True(t, errors.Is(err, backend.ErrInvalidPath), "path %q", p)

		_, err = store.Edit(ctx, p, "a", "b", false)
		assert.True(t, errors.Is(err, backend.ErrInvalidPath), "path %q", p)
	}
}

func TestListDirectChildrenAndSynthesizedDirs(t *testing.T) {
	store := New()
	ctx := context.Background()

	mustWrite(t, store, "/src/main.py", "# main")
	mustWrite(t, store, "/src/utils/helpers.py", "# helpers")
	mustWrite(t, store, "/readme.md", "hello")

	entries, err := store.List(ctx, "/")
	require.NoError(t, err)

	byName := map[string]backend.DirectoryEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Len(t, entries, 2)
	assert.True(t, byName["src"].IsDir)
	assert.False(t, byName["readme.md"].IsDir)
	assert.Equal(t, int64(len("hello")), byName["readme.md"].Size)

	entries, err = store.List(ctx, "/src")
	require.NoError(t, err)
	byName = map[string]backend.DirectoryEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Len(t, entries, 2)
	assert.True(t, byName["utils"].IsDir)
	assert.False(t, byName["main.py"].IsDir)
}

func TestListOnFilePath(t *testing.T) {
	store := New()
	ctx := context.Background()

	mustWrite(t, store, "/file.txt", "content")

	entries, err := store.List(ctx, "/file.txt")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.txt", entries[0].Name)
	assert.False(t, entries[0].IsDir)
}

func TestGlobScopedToPath(t *testing.T) {
	store := New()
	ctx := context.Background()

	mustWrite(t, store, "/src/main.py", "# main")
	mustWrite(t, store, "/src/utils.py", "# utils")
	mustWrite(t, store, "/lib/helper.py", "# helper")

	results, err := store.Glob(ctx, "*.py", "/src")
	require.NoError(t, err)

	paths := entryPaths(results)
	assert.Contains(t, paths, "/src/main.py")
	assert.Contains(t, paths, "/src/utils.py")
	assert.NotContains(t, paths, "/lib/helper.py")
}

func TestGlobDoublestar(t *testing.T) {
	store := New()
	ctx := context.Background()

	mustWrite(t, store, "/a/b/c/deep.py", "x")
	mustWrite(t, store, "/top.py", "y")
	mustWrite(t, store, "/note.txt", "z")

	results, err := store.Glob(ctx, "**/*.py", "/")
	require.NoError(t, err)

	paths := entryPaths(results)
	assert.Contains(t, paths, "/a/b/c/deep.py")
	assert.Contains(t, paths, "/top.py")
	assert.NotContains(t, paths, "/note.txt")
}

func TestGrepDirectoryScope(t *testing.T) {
	store := New()
	ctx := context.Background()

	mustWrite(t, store, "/src/main.py", "Hello world")
	mustWrite(t, store, "/src/utils.py", "Goodbye world")
	mustWrite(t, store, "/lib/other.py", "No match here")

	matches, err := store.Grep(ctx, "world", "/src", "")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestGrepSingleFile(t *testing.T) {
	store := New()
	ctx := context.Background()

	mustWrite(t, store, "/test.txt", "Hello world\nGoodbye world")
	mustWrite(t, store, "/other.txt", "Other world")

	matches, err := store.Grep(ctx, "world", "/test.txt", "")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, "/test.txt", m.Path)
	}
	assert.Equal(t, 1, matches[0].Line)
	assert.Equal(t, 2, matches[1].Line)
}

func TestGrepWithGlobFilter(t *testing.T) {
	store := New()
	ctx := context.Background()

	mustWrite(t, store, "/src/main.py", "Hello world")
	mustWrite(t, store, "/src/test.js", "Hello world")

	matches, err := store.Grep(ctx, "world", "", "**/*.py")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Contains(t, m.Path, ".py")
	}
}

func TestGrepInvalidPattern(t *testing.T) {
	store := New()
	ctx := context.Background()

	mustWrite(t, store, "/test.txt", "content")

	_, err := store.Grep(ctx, "[invalid", "", "")
	require.Error(t, err)
	var bad *backend.BadPatternError
	assert.True(t, errors.As(err, &bad))
}

func TestDeleteAndPaths(t *testing.T) {
	store := New()
	ctx := context.Background()

	mustWrite(t, store, "/a.txt", "a")
	mustWrite(t, store, "/b.txt", "b")
	assert.Equal(t, []string{"/a.txt", "/b.txt"}, store.Paths())

	require.NoError(t, store.Delete(ctx, "/a.txt"))
	assert.Equal(t, []string{"/b.txt"}, store.Paths())

	// Deleting an absent path is a no-op.
	require.NoError(t, store.Delete(ctx, "/a.txt"))
}

func mustWrite(t *testing.T, store *Store, path, content string) {
	t.Helper()
	_, err := store.Write(context.Background(), path, content)
	require.NoError(t, err)
}

func entryPaths(entries []backend.DirectoryEntry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths
}
