// Package rpcserver wires every handler package's RPC methods onto a
// single rpcwire.Server and binds it to agent_rpc_port, giving C10 one
// assembly point instead of scattering Register calls through main.
package rpcserver

import (
	"fmt"

	"github.com/csudata/clup-agent/pkg/agentconn"
	"github.com/csudata/clup-agent/pkg/chp"
	"github.com/csudata/clup-agent/pkg/cft"
	"github.com/csudata/clup-agent/pkg/config"
	"github.com/csudata/clup-agent/pkg/logging"
	"github.com/csudata/clup-agent/pkg/ltc"
	"github.com/csudata/clup-agent/pkg/osutil"
	"github.com/csudata/clup-agent/pkg/pgconfig"
	"github.com/csudata/clup-agent/pkg/rpcwire"
	"github.com/csudata/clup-agent/pkg/wal"
)

const poolSize = 10

// Managers bundles the stateful task-table managers main wires up before
// calling Build, so their background workers and the RPC handlers that
// drive them share the same instances.
type Managers struct {
	LTC *ltc.Manager
	CHP *chp.Manager
	CFT *cft.Manager
}

// Build constructs an rpcwire.Server with every RPC method in the
// surface bound to its handler, but does not start listening.
func Build(cfg *config.Store, dial *agentconn.Dialer, mgrs Managers) *rpcwire.Server {
	secret := cfg.Get("internal_rpc_pass", "")
	srv := rpcwire.NewServer(secret, poolSize)

	osHandlers := osutil.NewHandlers()
	pgHandlers := pgconfig.NewHandlers()
	walHandlers := wal.NewHandlers(dial)
	logHandlers := logging.NewHandlers()

	methods := map[string]rpcwire.HandlerFunc{
		// Filesystem/process primitives.
		"copy_file":          osHandlers.HandleCopyFile,
		"delete_file":        osHandlers.HandleDeleteFile,
		"change_file_name":   osHandlers.HandleChangeFileName,
		"os_path_exists":     osHandlers.HandleOsPathExists,
		"path_is_dir":        osHandlers.HandlePathIsDir,
		"dir_is_empty":       osHandlers.HandleDirIsEmpty,
		"os_read_file":       walHandlers.HandleOsReadFile,
		"os_write_file":      mgrs.CFT.HandleOsWriteFile,
		"os_listdir":         osHandlers.HandleOsListdir,
		"os_stat":            osHandlers.HandleOsStat,
		"os_chown":           osHandlers.HandleOsChown,
		"os_chmod":           osHandlers.HandleOsChmod,
		"os_makedirs":        osHandlers.HandleOsMakedirs,
		"os_readlink":        osHandlers.HandleOsReadlink,
		"os_real_path":       osHandlers.HandleOsRealPath,
		"os_rename":          osHandlers.HandleOsRename,
		"os_kill":            osHandlers.HandleOsKill,
		"get_child_pid_list": osHandlers.HandleGetChildPidList,
		"file_read":          osHandlers.HandleFileRead,
		"file_write":         osHandlers.HandleFileWrite,
		"append_file":        osHandlers.HandleAppendFile,
		"mktemp":             osHandlers.HandleMktemp,
		"receive_file":       osHandlers.HandleReceiveFile,
		"extract_file":       osHandlers.HandleExtractFile,
		"get_file_size":      osHandlers.HandleGetFileSize,

		// Users/groups.
		"pwd_getpwnam":   osHandlers.HandlePwdGetpwnam,
		"pwd_getpwuid":   osHandlers.HandlePwdGetpwuid,
		"grp_getgrall":   osHandlers.HandleGrpGetgrall,
		"os_user_exists": osHandlers.HandleOsUserExists,
		"os_uid_exists":  osHandlers.HandleOsUidExists,

		// Shell execution.
		"run_cmd":                 osHandlers.HandleRunCmd,
		"run_cmd_result":          osHandlers.HandleRunCmdResult,
		"send_to_exec":            osHandlers.HandleSendToExec,
		"run_long_term_cmd":       mgrs.LTC.HandleRunLongTermCmd,
		"get_long_term_cmd_state": mgrs.LTC.HandleGetLongTermCmdState,
		"remove_long_term_cmd":    mgrs.LTC.HandleRemoveLongTermCmd,
		"terminate_long_term_cmd": mgrs.LTC.HandleTerminateLongTermCmd,

		// Host info.
		"get_agent_version":   osHandlers.HandleGetAgentVersion,
		"check_os_env":        osHandlers.HandleCheckOSEnv,
		"get_data_disk_use":   osHandlers.HandleGetDataDiskUse,
		"check_port_used":     osHandlers.HandleCheckPortUsed,
		"get_pg_bin_path_list": osHandlers.HandleGetPgBinPathList,

		// Networking.
		"vip_exists":         osHandlers.HandleVipExists,
		"check_and_add_vip":  osHandlers.HandleCheckAndAddVip,
		"check_and_del_vip":  osHandlers.HandleCheckAndDelVip,

		// Mounts.
		"mount_dev":       osHandlers.HandleMountDev,
		"umount_dev":      osHandlers.HandleUmountDev,
		"check_is_mount":  osHandlers.HandleCheckIsMount,
		"check_and_mount": osHandlers.HandleCheckAndMount,

		// Config file ops.
		"read_config_file_items":    pgHandlers.HandleReadConfigItems,
		"modify_config_type1":       pgHandlers.HandleModifyConfigType1,
		"modify_config_type2":       pgHandlers.HandleModifyConfigType2,
		"config_file_set_tag_content": pgHandlers.HandleConfigFileSetTagContent,
		"config_file_set_tag_in_head": pgHandlers.HandleConfigFileSetTagInHead,

		// PostgreSQL / WAL.
		"pg_get_last_valid_wal_file":  walHandlers.HandleGetLastValidWALFile,
		"pg_get_valid_wal_list_le_pt": walHandlers.HandleGetValidWALListLEPt,
		"pg_cp_delay_wal_from_pri":    walHandlers.HandleCpDelayedWALFromPri,
		"modify_hba_conf":             walHandlers.HandleModifyHBAConf,
		"modify_standby_delay":        walHandlers.HandleModifyStandbyDelay,

		// CHP.
		"chp_create_pipe_out_cmd": mgrs.CHP.HandleCreatePipeOutCmd,
		"chp_remove_pipe_out_cmd": mgrs.CHP.HandleRemovePipeOutCmd,
		"chp_send_pipe_out_data":  mgrs.CHP.HandleSendPipeOutData,
		"create_chp":              mgrs.CHP.HandleCreateCHP,
		"remove_chp":              mgrs.CHP.HandleRemoveCHP,
		"get_chp_state":           mgrs.CHP.HandleGetCHPState,

		// CFT.
		"create_cft":     mgrs.CFT.HandleCreateCFT,
		"get_cft_state":  mgrs.CFT.HandleGetCFTState,
		"remove_cft":     mgrs.CFT.HandleRemoveCFT,
		"cft_batch_cmd":  mgrs.CFT.HandleCftBatchCmd,
		"set_file_attr":  mgrs.CFT.HandleSetFileAttr,

		// Logging.
		"get_log_level": logHandlers.HandleGetLogLevel,
		"set_log_level": logHandlers.HandleSetLogLevel,

		// Self.
		"restart_agent": osHandlers.HandleRestartAgent,
	}

	for method, handler := range methods {
		srv.Register(method, handler)
	}

	logging.Info(fmt.Sprintf("rpcserver: bound %d methods", len(methods)))
	return srv
}

// Addr formats the bind address from agent_rpc_port.
func Addr(cfg *config.Store) (string, error) {
	port, err := cfg.GetInt("agent_rpc_port")
	if err != nil {
		return "", fmt.Errorf("agent_rpc_port: %w", err)
	}
	return fmt.Sprintf("0.0.0.0:%d", port), nil
}
