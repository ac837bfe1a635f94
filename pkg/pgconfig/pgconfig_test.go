package pgconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "postgresql.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestModifyType1InsertsAfterCommentedLine(t *testing.T) {
	path := writeTempConfig(t, "listen_addresses = '*'\n#port = 5432\nmax_connections = 100\n")
	require.NoError(t, ModifyType1(path, map[string]string{"port": "5444"}, DeliEquals, false))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "listen_addresses = '*'\n#port = 5432\nport = 5444\nmax_connections = 100\n", string(out))
}

func TestModifyType1ReplacesLiveLineEvenWithComment(t *testing.T) {
	path := writeTempConfig(t, "listen_addresses = '*'\n#port = 5432\nport = 5433\nmax_connections = 100\n")
	require.NoError(t, ModifyType1(path, map[string]string{"port": "5444"}, DeliEquals, false))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "listen_addresses = '*'\n#port = 5432\nport = 5444\nmax_connections = 100\n", string(out))
}

func TestModifyType1AppendsMissingKeysSorted(t *testing.T) {
	path := writeTempConfig(t, "listen_addresses = '*'\n")
	require.NoError(t, ModifyType1(path, map[string]string{"wal_level": "replica", "max_wal_senders": "10"}, DeliEquals, false))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "listen_addresses = '*'\nmax_wal_senders = 10\nwal_level = replica\n", string(out))
}

func TestModifyType1BacksUpPreservingMode(t *testing.T) {
	path := writeTempConfig(t, "port = 5432\n")
	require.NoError(t, os.Chmod(path, 0o640))
	require.NoError(t, ModifyType1(path, map[string]string{"port": "5444"}, DeliEquals, true))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	var backups int
	for _, e := range entries {
		if e.Name() != filepath.Base(path) {
			backups++
			info, err := e.Info()
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
		}
	}
	assert.Equal(t, 1, backups)
}

func TestModifyType2ReplacesMatchingLine(t *testing.T) {
	path := writeTempConfig(t, "*          soft    nproc     4096\nother line\n")
	rules := []RegexRule{{Pattern: `^\*\s+soft\s+nproc\s+\d+$`, Replacement: "*          soft    nproc     131072"}}
	require.NoError(t, ModifyType2(path, rules, false, false))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "*          soft    nproc     131072\nother line\n", string(out))
}

func TestModifyType2AppendsWhenNoMatch(t *testing.T) {
	path := writeTempConfig(t, "other line\n")
	rules := []RegexRule{{Pattern: `^\*\s+soft\s+nproc\s+\d+$`, Replacement: "*          soft    nproc     131072"}}
	require.NoError(t, ModifyType2(path, rules, false, true))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "other line\n*          soft    nproc     131072\n", string(out))
}

func TestSetTagContentCreatesAndReplacesBlock(t *testing.T) {
	path := writeTempConfig(t, "* soft nofile 1024\n")
	require.NoError(t, SetTagContent(path, "# Add by clup", "* soft nofile 65536\n* hard nofile 65536"))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	first := string(out)
	assert.Contains(t, first, "# Add by clup **do not modify** begin")
	assert.Contains(t, first, "* soft nofile 65536")
	assert.Contains(t, first, "# Add by clup **do not modify** end")

	require.NoError(t, SetTagContent(path, "# Add by clup", "* soft nofile 131072"))
	out2, err := os.ReadFile(path)
	require.NoError(t, err)
	second := string(out2)
	assert.Contains(t, second, "* soft nofile 131072")
	assert.NotContains(t, second, "* soft nofile 65536")
	assert.Contains(t, second, "* soft nofile 1024")
}

func TestSetTagInHeadInsertsAtStart(t *testing.T) {
	path := writeTempConfig(t, "export PATH=/usr/bin\n")
	require.NoError(t, SetTagInHead(path, "# Add by clup", "export PGDATA=/data/pg"))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(out)
	require.True(t, len(content) > 0)
	assert.True(t, content[:len("# Add by clup **do not modify** begin")] == "# Add by clup **do not modify** begin")
	assert.Contains(t, content, "export PATH=/usr/bin")
}

func TestReadItemsFlagsCommentedKeyAsEmpty(t *testing.T) {
	path := writeTempConfig(t, "listen_addresses = '*'\n#wal_level = replica\n")
	items, err := ReadItems(path, []string{"listen_addresses", "wal_level"}, false)
	require.NoError(t, err)
	assert.Equal(t, "'*'", items["listen_addresses"])
	assert.Equal(t, "", items["wal_level"])
}

func TestReadItemsFollowsIncludeWithChildPrecedence(t *testing.T) {
	dir := t.TempDir()
	childPath := filepath.Join(dir, "extra.conf")
	require.NoError(t, os.WriteFile(childPath, []byte("shared_buffers = 256MB\n"), 0o644))
	parentPath := filepath.Join(dir, "postgresql.conf")
	require.NoError(t, os.WriteFile(parentPath, []byte("shared_buffers = 128MB\ninclude 'extra.conf'\n"), 0o644))

	items, err := ReadItems(parentPath, []string{"shared_buffers"}, false)
	require.NoError(t, err)
	assert.Equal(t, "256MB", items["shared_buffers"])
}
