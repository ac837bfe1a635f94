package cft

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/csudata/clup-agent/pkg/agentconn"
	"github.com/csudata/clup-agent/pkg/config"
	"github.com/csudata/clup-agent/pkg/rpcwire"
	"github.com/csudata/clup-agent/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAgent struct {
	mgr *Manager
	srv *rpcwire.Server
}

func newTestAgent(t *testing.T, listenIP, port, secret string) *testAgent {
	t.Helper()
	cfg := config.NewAt(t.TempDir())
	cfg.Set("agent_rpc_port", port)
	cfg.Set("internal_rpc_pass", secret)
	cfg.Set("my_ip", listenIP)

	mgr := NewManager(agentconn.New(cfg))
	srv := rpcwire.NewServer(secret, 4)
	srv.Register("create_cft", mgr.HandleCreateCFT)
	srv.Register("get_cft_state", mgr.HandleGetCFTState)
	srv.Register("remove_cft", mgr.HandleRemoveCFT)
	srv.Register("cft_batch_cmd", mgr.HandleCftBatchCmd)
	srv.Register("os_write_file", mgr.HandleOsWriteFile)
	srv.Register("set_file_attr", mgr.HandleSetFileAttr)

	addr := listenIP + ":" + port
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = srv.Serve(addr)
	}()
	<-ready
	time.Sleep(50 * time.Millisecond)
	t.Cleanup(func() { srv.Close() })

	return &testAgent{mgr: mgr, srv: srv}
}

func waitCFTState(t *testing.T, m *Manager, id int64, timeout time.Duration) Task {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := m.GetState(id)
		require.NoError(t, err)
		if st.State != task.Running {
			return st
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("cft %d did not finish within %s", id, timeout)
	return Task{}
}

func TestCreateCFTCopiesTreeWithSmallAndBigFiles(t *testing.T) {
	const secret = "cft-secret"
	const port = "19465"

	a := newTestAgent(t, "127.0.0.1", port, secret)
	b := newTestAgent(t, "127.0.0.2", port, secret)
	_ = b

	srcDir := t.TempDir()
	dstDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "small.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(srcDir, "sub"), 0o755))
	bigData := make([]byte, 2*1024*1024)
	for i := range bigData {
		bigData[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "big.bin"), bigData, 0o644))
	require.NoError(t, os.Symlink("small.txt", filepath.Join(srcDir, "link.txt")))

	id := a.mgr.CreateCFT(srcDir, "127.0.0.2", dstDir, defaultBigFileSize, defaultTransBlockSize)
	st := waitCFTState(t, a.mgr, id, 5*time.Second)
	require.Equal(t, task.Success, st.State, "err: %s", st.ErrMsg)

	gotSmall, err := os.ReadFile(filepath.Join(dstDir, "small.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(gotSmall))

	gotBig, err := os.ReadFile(filepath.Join(dstDir, "sub", "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, bigData, gotBig)

	linkTarget, err := os.Readlink(filepath.Join(dstDir, "link.txt"))
	require.NoError(t, err)
	assert.Equal(t, "small.txt", linkTarget)

	info, err := os.Stat(filepath.Join(dstDir, "sub"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRemoveCFTRequiresFinished(t *testing.T) {
	const secret = "cft-secret-2"
	const port = "19466"

	a := newTestAgent(t, "127.0.0.1", port, secret)
	_ = newTestAgent(t, "127.0.0.2", port, secret)

	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "f.txt"), []byte("x"), 0o644))

	id := a.mgr.CreateCFT(srcDir, "127.0.0.2", t.TempDir(), defaultBigFileSize, defaultTransBlockSize)
	waitCFTState(t, a.mgr, id, 3*time.Second)

	require.NoError(t, a.mgr.Remove(id))
	assert.Error(t, a.mgr.Remove(id))
}
