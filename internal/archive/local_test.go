package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/registry-crawler/internal/archive"
)

func TestNewLocalStore(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := archive.NewLocalStore(archive.LocalConfig{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := archive.NewLocalStore(archive.LocalConfig{})
		assert.Error(t, err)
	})

	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "pages")
		_, err := archive.NewLocalStore(archive.LocalConfig{BaseDir: base})
		require.NoError(t, err)
		info, err := os.Stat(base)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := archive.NewLocalStore(archive.LocalConfig{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestLocalStoreSave(t *testing.T) {
	base := t.TempDir()
	store, err := archive.NewLocalStore(archive.LocalConfig{BaseDir: base})
	require.NoError(t, err)

	t.Run("NestedKey", func(t *testing.T) {
		key := "pages/XM0701/2020/page-0001.html"
		uri, err := store.Save(context.Background(), key, []byte("<html></html>"))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(base, key), uri)

		data, err := os.ReadFile(filepath.Join(base, key))
		require.NoError(t, err)
		assert.Equal(t, "<html></html>", string(data))
	})

	t.Run("EmptyKey", func(t *testing.T) {
		_, err := store.Save(context.Background(), "", []byte("x"))
		assert.Error(t, err)
	})

	t.Run("TraversalKey", func(t *testing.T) {
		_, err := store.Save(context.Background(), "../outside.html", []byte("x"))
		assert.Error(t, err)
	})
}

func TestNoopStore(t *testing.T) {
	uri, err := archive.NoopStore{}.Save(context.Background(), "pages/x.html", []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, uri)
}
