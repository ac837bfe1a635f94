package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFilePreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o640))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone")
	require.NoError(t, DeleteFile(path))

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, DeleteFile(path))
	assert.False(t, PathExists(path))
}

func TestPathExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.True(t, PathExists(dir))
	assert.True(t, PathExists(file))
	assert.False(t, PathExists(filepath.Join(dir, "missing")))

	assert.True(t, PathIsDir(dir))
	assert.False(t, PathIsDir(file))
}

func TestDirIsEmpty(t *testing.T) {
	dir := t.TempDir()
	empty, err := DirIsEmpty(dir)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0o644))
	empty, err = DirIsEmpty(dir)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestReadWriteAppendFileAtOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")

	require.NoError(t, WriteFile(path, 0, []byte("hello")))
	require.NoError(t, WriteFile(path, 5, []byte(" world")))

	data, err := ReadFile(path, 0, 11)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, AppendFile(path, []byte("!")))
	data, err = ReadFile(path, 0, 12)
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(data))
}

func TestReadFileAtEOFReturnsFewerBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	data, err := ReadFile(path, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "bc", string(data))
}

func TestListDirReportsEntriesAndKind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), nil, 0o644))

	entries, err := ListDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]DirEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.True(t, byName["sub"].IsDir)
	assert.False(t, byName["file"].IsDir)
}

func TestStatReportsModeAndSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o600))

	st, err := Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Size)
	assert.Equal(t, uint32(0o600), st.Mode)
}

func TestMakedirsIsRecursive(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, Makedirs(target, 0o755))
	assert.True(t, PathIsDir(target))
}

func TestRenameMovesFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "old")
	dst := filepath.Join(dir, "new")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	require.NoError(t, Rename(src, dst))
	assert.False(t, PathExists(src))
	assert.True(t, PathExists(dst))
}

func TestChangeFileNameWithinSameDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "old")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	require.NoError(t, ChangeFileName(src, "new"))
	assert.True(t, PathExists(filepath.Join(dir, "new")))
}

func TestMktempCreatesFileUnderDir(t *testing.T) {
	dir := t.TempDir()
	name, err := Mktemp(dir, "clup-*.tmp")
	require.NoError(t, err)
	assert.True(t, PathExists(name))
	assert.Equal(t, dir, filepath.Dir(name))
}

func TestGetFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("12345678"), 0o644))

	size, err := GetFileSize(path)
	require.NoError(t, err)
	assert.EqualValues(t, 8, size)
}

func TestReceiveFileCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dest", "file.bin")
	require.NoError(t, ReceiveFile(path, []byte("payload")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestChildPIDsFindsOwnProcess(t *testing.T) {
	children, err := ChildPIDs(os.Getppid())
	require.NoError(t, err)
	assert.Contains(t, children, os.Getpid())
}
