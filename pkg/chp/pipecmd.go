package chp

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/csudata/clup-agent/pkg/logging"
	"github.com/csudata/clup-agent/pkg/task"
)

// runPipeCmd is the initiator-side worker: it asks the remote to start
// producing, starts the local consumer, and feeds one into the other
// until the remote signals CLOSE or the local consumer dies.
func (m *Manager) runPipeCmd(t *PipeTask) {
	log := logging.WithTaskID(t.ID)

	remote, err := m.dial.Dial(t.DstHost)
	if err != nil {
		m.finishPipe(t, task.Failed, -1, fmt.Sprintf("dial %s: %v", t.DstHost, err))
		return
	}

	errCode, errMsg, err := remote.CallJSON("chp_create_pipe_out_cmd", CreatePipeOutArgs{
		CmdID:   t.ID,
		SrcHost: m.dial.MyIP(),
		DstCmd:  t.DstCmd,
	}, nil)
	remote.Close()
	if err != nil {
		m.finishPipe(t, task.Failed, -1, fmt.Sprintf("create remote pipe-out: %v", err))
		return
	}
	if errCode != 0 {
		m.finishPipe(t, task.Failed, errCode, fmt.Sprintf("remote refused pipe-out: %s", errMsg))
		return
	}

	cmd := exec.Command("sh", "-c", t.SrcCmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		m.finishPipe(t, task.Failed, -1, fmt.Sprintf("create stdin pipe: %v", err))
		return
	}
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		m.finishPipe(t, task.Failed, -1, fmt.Sprintf("start local command: %v", err))
		return
	}
	log.Info().Str("src_cmd", t.SrcCmd).Str("dst_host", t.DstHost).Msg("chp started")

	remoteErrCode := 0
	remoteErrMsg := ""
	localFailed := false
	lastFlush := time.Now()

drain:
	for {
		frame := <-t.recvQ
		switch frame.Typ {
		case frameData:
			if !localFailed {
				if _, err := stdin.Write(frame.Payload); err != nil {
					localFailed = true
				}
			}
			m.mu.Lock()
			t.TransferredSize += int64(len(frame.Payload))
			m.mu.Unlock()
			if time.Since(lastFlush) >= progressFlushInterval {
				log.Debug().Int64("transferred", t.TransferredSize).Msg("chp progress")
				lastFlush = time.Now()
			}
		case frameClose:
			remoteErrCode = frame.ErrCode
			remoteErrMsg = frame.ErrMsg
			break drain
		default:
			remoteErrCode = -1
			remoteErrMsg = fmt.Sprintf("protocol error: unknown frame type %q", frame.Typ)
			break drain
		}
	}

	stdin.Close()
	waitErr := cmd.Wait()
	if waitErr != nil {
		localFailed = true
	}

	state := task.Success
	errCode = 0
	errMsg = ""
	switch {
	case remoteErrCode != 0:
		state = task.Failed
		errCode = remoteErrCode
		errMsg = remoteErrMsg
	case localFailed:
		state = task.Failed
		errCode = -1
		errMsg = strings.TrimSpace(stderrBuf.String())
		if errMsg == "" {
			errMsg = fmt.Sprintf("local command failed: %v", waitErr)
		}
	}
	m.finishPipe(t, state, errCode, errMsg)
	log.Info().Str("state", state.String()).Msg("chp finished")

	if cleanup, err := m.dial.Dial(t.DstHost); err == nil {
		_, _, _ = cleanup.CallJSON("chp_remove_pipe_out_cmd", t.ID, nil)
		cleanup.Close()
	}
}
