package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension_WalksDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	for _, name := range []string{"a.hcl", "b.txt", "nested/c.hcl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	files, err := FindFilesByExtension(dir, ".hcl")
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestFindFilesByExtension_SingleFileRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	files, err := FindFilesByExtension(path, ".hcl")
	require.NoError(t, err)
	require.Equal(t, []string{path}, files)

	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	files, err = FindFilesByExtension(other, ".hcl")
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestFindFilesByExtension_MissingPath(t *testing.T) {
	_, err := FindFilesByExtension(filepath.Join(t.TempDir(), "ghost"), ".hcl")
	require.Error(t, err)
}
