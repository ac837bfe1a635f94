package rpcserver

import (
	"net"
	"testing"
	"time"

	"github.com/csudata/clup-agent/pkg/agentconn"
	"github.com/csudata/clup-agent/pkg/chp"
	"github.com/csudata/clup-agent/pkg/cft"
	"github.com/csudata/clup-agent/pkg/config"
	"github.com/csudata/clup-agent/pkg/ltc"
	"github.com/csudata/clup-agent/pkg/rpcwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expectedMethods = []string{
	"copy_file", "delete_file", "change_file_name", "os_path_exists",
	"path_is_dir", "dir_is_empty", "os_read_file", "os_write_file",
	"os_listdir", "os_stat", "os_chown", "os_chmod", "os_makedirs",
	"os_readlink", "os_real_path", "os_rename", "os_kill",
	"get_child_pid_list", "file_read", "file_write", "append_file",
	"mktemp", "receive_file", "extract_file", "get_file_size",
	"pwd_getpwnam", "pwd_getpwuid", "grp_getgrall", "os_user_exists",
	"os_uid_exists",
	"run_cmd", "run_cmd_result", "send_to_exec", "run_long_term_cmd",
	"get_long_term_cmd_state", "remove_long_term_cmd", "terminate_long_term_cmd",
	"get_agent_version", "check_os_env", "get_data_disk_use",
	"check_port_used", "get_pg_bin_path_list",
	"vip_exists", "check_and_add_vip", "check_and_del_vip",
	"mount_dev", "umount_dev", "check_is_mount", "check_and_mount",
	"read_config_file_items", "modify_config_type1", "modify_config_type2",
	"config_file_set_tag_content", "config_file_set_tag_in_head",
	"pg_get_last_valid_wal_file", "pg_get_valid_wal_list_le_pt",
	"pg_cp_delay_wal_from_pri", "modify_hba_conf", "modify_standby_delay",
	"chp_create_pipe_out_cmd", "chp_remove_pipe_out_cmd", "chp_send_pipe_out_data",
	"create_chp", "remove_chp", "get_chp_state",
	"create_cft", "get_cft_state", "remove_cft", "cft_batch_cmd", "set_file_attr",
	"get_log_level", "set_log_level",
	"restart_agent",
}

func newTestBuild(t *testing.T) *rpcwire.Server {
	t.Helper()
	cfg := config.NewAt(t.TempDir())
	cfg.Set("internal_rpc_pass", "s3cret")
	cfg.Set("agent_rpc_port", "4242")
	dial := agentconn.New(cfg)

	mgrs := Managers{
		LTC: ltc.NewManager(),
		CHP: chp.NewManager(dial),
		CFT: cft.NewManager(dial),
	}
	return Build(cfg, dial, mgrs)
}

func TestBuildRegistersFullMethodSurface(t *testing.T) {
	srv := newTestBuild(t)
	registered := make(map[string]bool)
	for _, m := range srv.Methods() {
		registered[m] = true
	}
	for _, m := range expectedMethods {
		assert.True(t, registered[m], "expected method %q to be registered", m)
	}
	assert.Equal(t, len(expectedMethods), len(srv.Methods()))
}

func TestAddrFormatsFromAgentRPCPort(t *testing.T) {
	cfg := config.NewAt(t.TempDir())
	cfg.Set("agent_rpc_port", "4242")
	addr, err := Addr(cfg)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:4242", addr)
}

func TestServedMethodsAnswerCalls(t *testing.T) {
	srv := newTestBuild(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	go func() { _ = srv.Serve(addr) }()
	time.Sleep(50 * time.Millisecond)
	t.Cleanup(func() { srv.Close() })

	client, err := rpcwire.Dial(addr, "s3cret", 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	var version string
	errCode, errMsg, err := client.CallJSON("get_agent_version", nil, &version)
	require.NoError(t, err)
	require.Equal(t, 0, errCode, errMsg)
	assert.NotEmpty(t, version)

	var level string
	errCode, errMsg, err = client.CallJSON("get_log_level", nil, &level)
	require.NoError(t, err)
	require.Equal(t, 0, errCode, errMsg)
	assert.NotEmpty(t, level)
}
