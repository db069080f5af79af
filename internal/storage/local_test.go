package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	src := writeFile(t, "hello world")
	objectPath := "reports/abc.json.sz"
	require.NoError(t, store.Upload(ctx, src, objectPath))

	exists, err := store.Exists(ctx, objectPath)
	require.NoError(t, err)
	assert.True(t, exists)

	dst := filepath.Join(t.TempDir(), "nested", "out.bin")
	require.NoError(t, store.Download(ctx, objectPath, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	require.NoError(t, store.Delete(ctx, objectPath))
	exists, err = store.Exists(ctx, objectPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_Overwrite(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, writeFile(t, "v1"), "a"))
	require.NoError(t, store.Upload(ctx, writeFile(t, "v2"), "a"))

	dst := filepath.Join(t.TempDir(), "a")
	require.NoError(t, store.Download(ctx, "a", dst))
	got, _ := os.ReadFile(dst)
	assert.Equal(t, "v2", string(got))
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = store.Download(context.Background(), "missing", filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_DeleteMissingIsIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Delete(context.Background(), "missing"))
}

func TestLocalStorage_ListObjects(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, p := range []string{"reports/a.json.sz", "reports/b.json.sz", "other/c"} {
		require.NoError(t, store.Upload(ctx, writeFile(t, p), p))
	}

	objects, err := store.ListObjects(ctx, "reports")
	require.NoError(t, err)
	sort.Strings(objects)
	assert.Equal(t, []string{"reports/a.json.sz", "reports/b.json.sz"}, objects)

	objects, err = store.ListObjects(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Upload(ctx, writeFile(t, "x"), "a"))
	_, err = store.Exists(ctx, "a")
	assert.Error(t, err)
}
