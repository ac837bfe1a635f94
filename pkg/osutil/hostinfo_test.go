package osutil

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnitSize(t *testing.T) {
	assert.EqualValues(t, 1024, GetUnitSize("1K"))
	assert.EqualValues(t, 2*1024*1024, GetUnitSize("2M"))
	assert.EqualValues(t, 3*1024*1024*1024, GetUnitSize("3G"))
	assert.EqualValues(t, 100, GetUnitSize("100"))
}

func TestGetCPUInfoParsesProcessorBlocks(t *testing.T) {
	cpus, err := GetCPUInfo()
	require.NoError(t, err)
	assert.NotEmpty(t, cpus)
	for _, fields := range cpus {
		assert.NotEmpty(t, fields)
		break
	}
}

func TestGetMemSizeIsPositive(t *testing.T) {
	size, err := GetMemSize()
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
}

func TestGetOSTypeNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, GetOSType())
}

func TestCheckPortUsedDetectsListener(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	used, err := CheckPortUsed(port)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestCheckPortUsedFalseForClosedPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	used, err := CheckPortUsed(port)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestGetDataDiskUseReportsPositiveTotal(t *testing.T) {
	use, err := GetDataDiskUse(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, use.TotalBytes, int64(0))
}

func TestGetPgBinPathListMatchesOnlyDirsWithPgCtl(t *testing.T) {
	dir := t.TempDir()
	withCtl := dir + "/pg16/bin"
	withoutCtl := dir + "/pg17/bin"
	require.NoError(t, os.MkdirAll(withCtl, 0o755))
	require.NoError(t, os.MkdirAll(withoutCtl, 0o755))
	require.NoError(t, os.WriteFile(withCtl+"/pg_ctl", nil, 0o755))

	paths, err := GetPgBinPathList([]string{dir + "/pg*/bin"})
	require.NoError(t, err)
	assert.Equal(t, []string{withCtl}, paths)
}
