package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRename(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")

	require.NoError(t, os.WriteFile(src, []byte("hello"), 0600))
	require.NoError(t, Rename(src, dst))

	require.NoFileExists(t, src)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "copy")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "file.txt"), []byte("data"), 0644))
	require.NoError(t, os.Symlink(filepath.Join("sub", "file.txt"), filepath.Join(src, "link.txt")))

	require.NoError(t, CopyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "sub", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "data", string(data))

	link, err := os.Readlink(filepath.Join(dst, "link.txt"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join("sub", "file.txt"), link)

	data, err = os.ReadFile(filepath.Join(dst, "link.txt"))
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}

func TestMoveTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "moved", "logs")

	require.NoError(t, os.WriteFile(filepath.Join(src, "file.txt"), []byte("data"), 0644))
	require.NoError(t, MoveTree(src, dst))

	require.NoDirExists(t, src)
	require.FileExists(t, filepath.Join(dst, "file.txt"))
}
