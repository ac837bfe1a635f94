package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadPIDFileRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "clup-agent.pid")
	require.NoError(t, WritePIDFile(path))

	pid, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestProcessRunningTrueForSelf(t *testing.T) {
	assert.True(t, ProcessRunning(os.Getpid()))
}

func TestProcessRunningFalseForBogusPID(t *testing.T) {
	assert.False(t, ProcessRunning(1<<30))
}

func TestStatusDaemonReportsNotRunningWhenNoPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clup-agent.pid")
	errCode, msg := StatusDaemon(path)
	assert.Equal(t, 1, errCode)
	assert.Contains(t, msg, "not running")
}

func TestStatusDaemonReportsRunningForLivePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clup-agent.pid")
	require.NoError(t, WritePIDFile(path))

	errCode, msg := StatusDaemon(path)
	assert.Equal(t, 0, errCode)
	assert.Contains(t, msg, "running")
}

func TestStatusDaemonReportsStaleForDeadPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clup-agent.pid")
	require.NoError(t, os.WriteFile(path, []byte("2147483000"), 0o644))

	errCode, msg := StatusDaemon(path)
	assert.Equal(t, 1, errCode)
	assert.Contains(t, msg, "stale")
}

func TestStopDaemonRemovesStalePIDFileWithoutSignaling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clup-agent.pid")
	require.NoError(t, os.WriteFile(path, []byte("2147483000"), 0o644))

	require.NoError(t, StopDaemon(path, 1, 0))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStopDaemonNoOpWhenNoPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clup-agent.pid")
	assert.NoError(t, StopDaemon(path, 1, 0))
}
