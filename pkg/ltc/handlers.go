package ltc

import (
	"fmt"
	"time"

	"github.com/csudata/clup-agent/pkg/rpcwire"
)

type runArgs struct {
	Cmd           string
	OutputQSize   int
	OutputTimeout int
}

// HandleRunLongTermCmd implements run_long_term_cmd.
func (m *Manager) HandleRunLongTermCmd(args []byte) (int, []byte) {
	var a runArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	timeout := time.Duration(a.OutputTimeout) * time.Second
	id := m.Run(a.Cmd, a.OutputQSize, timeout)
	out, _ := rpcwire.EncodeArgs(id)
	return 0, out
}

type stateView struct {
	State       int
	ErrCode     int
	ErrMsg      string
	StdoutLines []string
	StderrLines []string
}

// HandleGetLongTermCmdState implements get_long_term_cmd_state. Each
// call destructively drains the task's pending output, matching the
// source's behavior.
func (m *Manager) HandleGetLongTermCmdState(args []byte) (int, []byte) {
	var id int64
	if err := rpcwire.DecodeArgs(args, &id); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	snap, err := m.GetState(id)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(stateView{
		State:       int(snap.State),
		ErrCode:     snap.ErrCode,
		ErrMsg:      snap.ErrMsg,
		StdoutLines: snap.StdoutLines,
		StderrLines: snap.StderrLines,
	})
	return 0, out
}

// HandleTerminateLongTermCmd implements terminate_long_term_cmd.
func (m *Manager) HandleTerminateLongTermCmd(args []byte) (int, []byte) {
	var id int64
	if err := rpcwire.DecodeArgs(args, &id); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := m.Terminate(id); err != nil {
		return errReply(1, err.Error())
	}
	return 0, nil
}

// HandleRemoveLongTermCmd implements remove_long_term_cmd.
func (m *Manager) HandleRemoveLongTermCmd(args []byte) (int, []byte) {
	var id int64
	if err := rpcwire.DecodeArgs(args, &id); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := m.Remove(id); err != nil {
		return errReply(1, err.Error())
	}
	return 0, nil
}

func errReply(code int, msg string) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(msg)
	return code, out
}
