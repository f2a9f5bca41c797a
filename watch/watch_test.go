package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNilCallback(t *testing.T) {
	w, err := New(10*time.Millisecond, nil, nil)
	assert.ErrorIs(t, err, os.ErrInvalid)
	assert.Nil(t, w)
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(10*time.Millisecond, []string{"{"}, func([]string) {})
	assert.Error(t, err)
}

func TestWatchBatchesChanges(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "plugin.manifest")
	require.NoError(t, os.WriteFile(manifest, []byte("a"), 0o644))

	changed := make(chan []string, 4)
	w, err := New(100*time.Millisecond, []string{"*.json"}, func(paths []string) {
		changed <- paths
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{manifest}))

	ios := filepath.Join(dir, "ios.json")
	require.NoError(t, os.WriteFile(manifest, []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(ios, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	seen := make(map[string]bool)
	timeout := time.After(2 * time.Second)
	for !seen[manifest] || !seen[ios] {
		select {
		case paths := <-changed:
			for _, p := range paths {
				seen[p] = true
			}
		case <-timeout:
			t.Fatalf("timed out waiting for changes, saw %v", seen)
		}
	}
	assert.False(t, seen[filepath.Join(dir, "notes.txt")], "unmatched file reported")
}

func TestCloseWithoutWatch(t *testing.T) {
	w, err := New(10*time.Millisecond, nil, func([]string) {})
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}

func TestWatchMissingPath(t *testing.T) {
	w, err := New(10*time.Millisecond, nil, func([]string) {})
	require.NoError(t, err)
	assert.Error(t, w.Watch([]string{filepath.Join(t.TempDir(), "missing")}))
	require.NoError(t, w.Watch([]string{t.TempDir()}))
	assert.NoError(t, w.Close())
}
