package chp

import (
	"fmt"
	"time"

	"github.com/csudata/clup-agent/pkg/rpcwire"
)

// CreatePipeOutArgs is the wire argument for chp_create_pipe_out_cmd:
// sent by the initiator to ask a peer to run DstCmd and stream its
// stdout back to SrcHost.
type CreatePipeOutArgs struct {
	CmdID   int64
	SrcHost string
	DstCmd  string
}

// SendPipeOutDataArgs is the wire argument for chp_send_pipe_out_data:
// sent by a pipe-out worker back to the initiator that started it.
type SendPipeOutDataArgs struct {
	CmdID   int64
	Type    string
	ErrCode int
	ErrMsg  string
	Payload []byte
}

// CreateCHPArgs is the wire argument for the top-level create_chp RPC
// method, the one a controller invokes to start a pipe.
type CreateCHPArgs struct {
	SrcCmd  string
	DstHost string
	DstCmd  string
}

// HandleCreateCHP implements the create_chp RPC method.
func (m *Manager) HandleCreateCHP(args []byte) (int, []byte) {
	var a CreateCHPArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	id := m.CreateCHP(a.SrcCmd, a.DstHost, a.DstCmd)
	out, _ := rpcwire.EncodeArgs(id)
	return 0, out
}

// HandleGetCHPState implements the get_chp_state RPC method.
func (m *Manager) HandleGetCHPState(args []byte) (int, []byte) {
	var id int64
	if err := rpcwire.DecodeArgs(args, &id); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	t, err := m.GetState(id)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(stateView{
		State:           int(t.State),
		ErrCode:         t.ErrCode,
		ErrMsg:          t.ErrMsg,
		TransferredSize: t.TransferredSize,
	})
	return 0, out
}

type stateView struct {
	State           int
	ErrCode         int
	ErrMsg          string
	TransferredSize int64
}

// HandleRemoveCHP implements the remove_chp RPC method.
func (m *Manager) HandleRemoveCHP(args []byte) (int, []byte) {
	var id int64
	if err := rpcwire.DecodeArgs(args, &id); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := m.RemoveCHP(id); err != nil {
		return errReply(1, err.Error())
	}
	return 0, nil
}

// HandleCreatePipeOutCmd implements chp_create_pipe_out_cmd: invoked by
// an initiator on a peer, asking that peer to run DstCmd and stream
// output back.
func (m *Manager) HandleCreatePipeOutCmd(args []byte) (int, []byte) {
	var a CreatePipeOutArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := m.createPipeOut(a); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

// HandleRemovePipeOutCmd implements chp_remove_pipe_out_cmd.
func (m *Manager) HandleRemovePipeOutCmd(args []byte) (int, []byte) {
	var id int64
	if err := rpcwire.DecodeArgs(args, &id); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := m.removePipeOut(id); err != nil {
		return errReply(1, err.Error())
	}
	return 0, nil
}

// HandleSendPipeOutData implements chp_send_pipe_out_data: invoked by a
// pipe-out worker running on a peer, pushing one chunk onto this host's
// initiator-side capacity-1 receive queue. The push blocks (within the
// overall RPC call) until the local consumer has drained the previous
// chunk, which is what gives the pipe its end-to-end backpressure.
func (m *Manager) HandleSendPipeOutData(args []byte) (int, []byte) {
	var a SendPipeOutDataArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}

	m.mu.Lock()
	t, ok := m.pipes[a.CmdID]
	m.mu.Unlock()
	if !ok {
		return errReply(-1, fmt.Sprintf("chp %d not exists", a.CmdID))
	}

	m.mu.Lock()
	finished := t.State != 0
	m.mu.Unlock()
	if finished {
		return errReply(-1, fmt.Sprintf("chp %d already finished", a.CmdID))
	}

	frame := pipeFrame{Typ: frameType(a.Type), Payload: a.Payload, ErrCode: a.ErrCode, ErrMsg: a.ErrMsg}
	select {
	case t.recvQ <- frame:
	case <-time.After(progressFlushInterval * 3):
		return errReply(-1, fmt.Sprintf("chp %d consumer did not drain in time", a.CmdID))
	}
	return 0, nil
}

func errReply(code int, msg string) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(msg)
	return code, out
}
