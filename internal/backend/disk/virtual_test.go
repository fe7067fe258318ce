package disk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVirtual(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), WithVirtualMode())
	require.NoError(t, err)
	return s
}

func TestVirtualWriteLeavesDiskUntouched(t *testing.T) {
	s := newVirtual(t)
	ctx := context.Background()

	_, err := s.Write(ctx, "/f.txt", "x")
	require.NoError(t, err)

	out, err := s.Read(ctx, "/f.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1\tx", out)

	entries, readErr := os.ReadDir(s.Root())
	require.NoError(t, readErr)
	assert.Empty(t, entries, "virtual write must not touch disk")
}

func TestVirtualReadFallsThroughToDisk(t *testing.T) {
	s := newVirtual(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "real.txt"), []byte("from disk"), 0o644))

	out, err := s.Read(ctx, "/real.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1\tfrom disk", out)
}

func TestVirtualOverlayShadowsRealFile(t *testing.T) {
	s := newVirtual(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "f.txt"), []byte("disk version"), 0o644))

	_, err := s.Write(ctx, "/f.txt", "overlay version")
	require.NoError(t, err)

	out, err := s.Read(ctx, "/f.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1\toverlay version", out)

	data, readErr := os.ReadFile(filepath.Join(s.Root(), "f.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "disk version", string(data))
}

func TestVirtualEditOfRealFileLandsInOverlay(t *testing.T) {
	s := newVirtual(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "app.py"), []byte("print('hi')"), 0o644))

	res, err := s.Edit(ctx, "/app.py", "hi", "world", false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Occurrences)

	out, err := s.Read(ctx, "/app.py", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1\tprint('world')", out)

	data, readErr := os.ReadFile(filepath.Join(s.Root(), "app.py"))
	require.NoError(t, readErr)
	assert.Equal(t, "print('hi')", string(data), "disk must keep the original")

	assert.Equal(t, []string{"/app.py"}, s.OverlayPaths())
}

func TestVirtualListMerges(t *testing.T) {
	s := newVirtual(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "disk.txt"), []byte("d"), 0o644))
	_, err := s.Write(ctx, "/overlay.txt", "o")
	require.NoError(t, err)

	entries, err := s.List(ctx, "/")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["disk.txt"])
	assert.True(t, names["overlay.txt"])
}

func TestVirtualGlobMergesWithOverlayPrecedence(t *testing.T) {
	s := newVirtual(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "shared.py"), []byte("old old old"), 0o644))
	_, err := s.Write(ctx, "/shared.py", "new")
	require.NoError(t, err)
	_, err = s.Write(ctx, "/only_overlay.py", "x")
	require.NoError(t, err)

	results, err := s.Glob(ctx, "*.py", "/")
	require.NoError(t, err)

	bySize := map[string]int64{}
	for _, e := range results {
		bySize[e.Path] = e.Size
	}
	require.Len(t, results, 2)
	assert.Equal(t, int64(len("new")), bySize["/shared.py"], "overlay entry wins")
	assert.Contains(t, bySize, "/only_overlay.py")
}

func TestVirtualGrepSearchesOverlayNotStaleDisk(t *testing.T) {
	s := newVirtual(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "f.txt"), []byte("stale needle"), 0o644))
	_, err := s.Write(ctx, "/f.txt", "fresh needle")
	require.NoError(t, err)

	matches, err := s.Grep(ctx, "needle", "/", "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fresh needle", matches[0].Text)
}

func TestVirtualOverlayPaths(t *testing.T) {
	s := newVirtual(t)
	ctx := context.Background()

	_, err := s.Write(ctx, "/b.txt", "b")
	require.NoError(t, err)
	_, err = s.Write(ctx, "/a.txt", "a")
	require.NoError(t, err)

	assert.Equal(t, []string{"/a.txt", "/b.txt"}, s.OverlayPaths())
}

func TestDirectModeHasNoOverlay(t *testing.T) {
	s := newDirect(t)
	assert.False(t, s.Virtual())
	assert.Nil(t, s.OverlayPaths())
}
