package library_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/sd-gallery/internal/library"
	"github.com/vrsandeep/sd-gallery/internal/testutil"
)

func TestListDirectories(t *testing.T) {
	base := t.TempDir()
	testutil.WriteFile(t, base, "top.png", []byte("x"))
	testutil.WriteFile(t, base, "top.txt", []byte("x"))
	testutil.WriteFile(t, base, "batch10/1-1.png", []byte("x"))
	testutil.WriteFile(t, base, "batch2/1-1.png", []byte("x"))
	testutil.WriteFile(t, base, "batch2/1-2.webp", []byte("x"))
	testutil.WriteFile(t, base, "batch2/nested/1-3.png", []byte("x"))
	require.NoError(t, os.Mkdir(filepath.Join(base, "empty"), 0755))

	s := newTestScanner(t, base)

	t.Run("base directory", func(t *testing.T) {
		listing, err := s.ListDirectories("")
		require.NoError(t, err)

		assert.Equal(t, "", listing.CurrentPath)
		assert.Equal(t, 1, listing.TotalImagesInCurrent)
		require.Len(t, listing.Directories, 3)

		// Natural order: batch2 before batch10.
		assert.Equal(t, "batch2", listing.Directories[0].Name)
		assert.Equal(t, "batch2", listing.Directories[0].Path)
		assert.Equal(t, 2, listing.Directories[0].TotalImages, "nested images are not counted")
		assert.Equal(t, "batch10", listing.Directories[1].Name)
		assert.Equal(t, 1, listing.Directories[1].TotalImages)
		assert.Equal(t, "empty", listing.Directories[2].Name)
		assert.Equal(t, 0, listing.Directories[2].TotalImages)
	})

	t.Run("subdirectory", func(t *testing.T) {
		listing, err := s.ListDirectories("batch2")
		require.NoError(t, err)
		assert.Equal(t, "batch2", listing.CurrentPath)
		assert.Equal(t, 2, listing.TotalImagesInCurrent)
		require.Len(t, listing.Directories, 1)
		assert.Equal(t, "batch2/nested", listing.Directories[0].Path)
		assert.Equal(t, 1, listing.Directories[0].TotalImages)
	})

	t.Run("empty listing serializes as an array", func(t *testing.T) {
		listing, err := s.ListDirectories("empty")
		require.NoError(t, err)
		assert.NotNil(t, listing.Directories)
		assert.Empty(t, listing.Directories)
	})

	t.Run("escape", func(t *testing.T) {
		_, err := s.ListDirectories("../")
		assert.ErrorIs(t, err, library.ErrAccessDenied)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.ListDirectories("missing")
		assert.ErrorIs(t, err, library.ErrNotFound)
	})
}

func TestListDirectories_SkipsUnreadable(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	base := t.TempDir()
	testutil.WriteFile(t, base, "open/1-1.png", []byte("x"))
	locked := filepath.Join(base, "locked")
	require.NoError(t, os.Mkdir(locked, 0000))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	listing, err := newTestScanner(t, base).ListDirectories("")
	require.NoError(t, err)
	require.Len(t, listing.Directories, 1)
	assert.Equal(t, "open", listing.Directories[0].Name)
}
