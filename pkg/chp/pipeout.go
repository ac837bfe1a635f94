package chp

import (
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/csudata/clup-agent/pkg/logging"
	"github.com/csudata/clup-agent/pkg/task"
)

// createPipeOut registers and starts the responder-side worker for a
// pipe the caller (some other agent) initiated against this host.
func (m *Manager) createPipeOut(args CreatePipeOutArgs) error {
	m.gcPipeOuts()

	m.mu.Lock()
	if _, exists := m.pipeOuts[args.CmdID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("pipe-out %d already exists", args.CmdID)
	}
	t := &PipeOutTask{
		ID:        args.CmdID,
		SrcHost:   args.SrcHost,
		DstCmd:    args.DstCmd,
		State:     task.Running,
		StartTime: time.Now(),
	}
	m.pipeOuts[args.CmdID] = t
	m.mu.Unlock()

	go m.runPipeOut(t)
	return nil
}

// runPipeOut executes DstCmd and streams its stdout back to SrcHost in
// bounded chunks, finishing with a CLOSE frame carrying the outcome.
func (m *Manager) runPipeOut(t *PipeOutTask) {
	log := logging.WithTaskID(t.ID)

	cmd := exec.Command("sh", "-c", t.DstCmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.closePipeOut(t, -1, fmt.Sprintf("create stdout pipe: %v", err))
		return
	}
	var stderrBuf boundedBuffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		m.closePipeOut(t, -1, fmt.Sprintf("start command: %v", err))
		return
	}
	log.Info().Str("cmd", t.DstCmd).Str("src_host", t.SrcHost).Msg("chp pipe-out started")

	callback, err := m.dial.Dial(t.SrcHost)
	if err != nil {
		_ = cmd.Process.Kill()
		cmd.Wait()
		m.closePipeOut(t, -1, fmt.Sprintf("dial src host %s: %v", t.SrcHost, err))
		return
	}
	defer callback.Close()

	buf := make([]byte, maxChunkSize)
	readErr := error(nil)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			errCode, errMsg, sendErr := callback.CallJSON("chp_send_pipe_out_data", SendPipeOutDataArgs{
				CmdID:   t.ID,
				Type:    string(frameData),
				Payload: append([]byte(nil), buf[:n]...),
			}, nil)
			if sendErr != nil || errCode != 0 {
				readErr = fmt.Errorf("send data chunk: errCode=%d errMsg=%s err=%v", errCode, errMsg, sendErr)
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
	}

	waitErr := cmd.Wait()

	errCode := 0
	errMsg := ""
	switch {
	case readErr != nil:
		errCode = -1
		errMsg = readErr.Error()
	case waitErr != nil:
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			errCode = exitErr.ExitCode()
			errMsg = stderrBuf.String()
		} else {
			errCode = -1
			errMsg = waitErr.Error()
		}
	}

	_, _, _ = callback.CallJSON("chp_send_pipe_out_data", SendPipeOutDataArgs{
		CmdID:   t.ID,
		Type:    string(frameClose),
		ErrCode: errCode,
		ErrMsg:  errMsg,
	}, nil)

	m.closePipeOut(t, errCode, errMsg)
	log.Info().Int("err_code", errCode).Msg("chp pipe-out finished")
}

func (m *Manager) closePipeOut(t *PipeOutTask, errCode int, errMsg string) {
	state := task.Success
	if errCode != 0 {
		state = task.Failed
	}
	m.finishPipeOut(t, state, errCode, errMsg)
}

// removePipeOut deletes a finished responder-side record.
func (m *Manager) removePipeOut(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.pipeOuts[id]
	if !ok {
		return fmt.Errorf("pipe-out %d not exists", id)
	}
	if t.State == task.Running {
		return fmt.Errorf("pipe-out %d is running", id)
	}
	delete(m.pipeOuts, id)
	return nil
}

// boundedBuffer caps how much stderr text is retained for diagnostics
// at boundedBufferLimit bytes; anything written past the limit is
// discarded.
type boundedBuffer struct {
	buf []byte
}

const boundedBufferLimit = 4096

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if len(b.buf) < boundedBufferLimit {
		room := boundedBufferLimit - len(b.buf)
		if room > len(p) {
			room = len(p)
		}
		b.buf = append(b.buf, p[:room]...)
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return string(b.buf)
}
