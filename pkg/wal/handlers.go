package wal

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/csudata/clup-agent/pkg/agentconn"
	"github.com/csudata/clup-agent/pkg/rpcwire"
)

// Handlers binds the wal package's RPC methods; it needs an
// agentconn.Dialer because pg_cp_delay_wal_from_pri acts as the RPC
// client to the primary's agent.
type Handlers struct {
	dial *agentconn.Dialer
}

func NewHandlers(dial *agentconn.Dialer) *Handlers {
	return &Handlers{dial: dial}
}

type getLastValidWALArgs struct {
	Pgdata string
}

func (h *Handlers) HandleGetLastValidWALFile(args []byte) (int, []byte) {
	var a getLastValidWALArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	f, err := GetLastValidWALFile(a.Pgdata)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(f)
	return 0, out
}

// HandleGetValidWALListLEPt implements pg_get_valid_wal_list_le_pt. The
// method name is part of the external wire contract and is kept as-is
// even though the comparison it performs is "at or after", not "less
// than or equal to".
func (h *Handlers) HandleGetValidWALListLEPt(args []byte) (int, []byte) {
	var a getValidWALListArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	files, err := GetValidWALListAtOrAfter(a.Pgdata, a.Pt)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(files)
	return 0, out
}

// HandleOsReadFile implements os_read_file: read up to Length bytes of
// Path starting at Offset, returning fewer (including zero, at EOF).
func (h *Handlers) HandleOsReadFile(args []byte) (int, []byte) {
	var a readFileArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return errReply(-1, err.Error())
	}
	defer f.Close()

	buf := make([]byte, a.Length)
	n, err := f.ReadAt(buf, a.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(buf[:n])
	return 0, out
}

type cpDelayedWALArgs struct {
	PriIP     string
	PriPgdata string
	StbPgdata string
}

// HandleCpDelayedWALFromPri implements pg_cp_delay_wal_from_pri.
func (h *Handlers) HandleCpDelayedWALFromPri(args []byte) (int, []byte) {
	var a cpDelayedWALArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	reader := &AgentRemoteReader{Dial: h.dial}
	if err := CopyDelayedWALFromPrimary(reader, a.PriIP, a.PriPgdata, a.StbPgdata); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

type modifyHBAConfArgs struct {
	Pgdata      string
	ReplUser    string
	SubnetRange string
}

// HandleModifyHBAConf implements modify_hba_conf.
func (h *Handlers) HandleModifyHBAConf(args []byte) (int, []byte) {
	var a modifyHBAConfArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := ModifyHBAConf(a.Pgdata, a.ReplUser, a.SubnetRange); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

type modifyStandbyDelayArgs struct {
	Pgdata string
	DBUser string
	Delay  string
}

// HandleModifyStandbyDelay implements modify_standby_delay.
func (h *Handlers) HandleModifyStandbyDelay(args []byte) (int, []byte) {
	var a modifyStandbyDelayArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := ModifyStandbyDelay(a.Pgdata, a.DBUser, a.Delay); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func errReply(code int, msg string) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(msg)
	return code, out
}
