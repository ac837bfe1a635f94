// Package chp implements the cross-host pipe primitive (CHP): running a
// command on the local host whose stdin is fed from the stdout of a
// command run on a remote agent's host, without either side touching
// disk.
//
// Grounded on original_source/lib/cross_host_pipe.py. Every agent plays
// both roles over its lifetime. The initiator (this host) calls
// CreateCHP, which starts src_cmd locally and asks the remote agent,
// via chp_create_pipe_out_cmd, to run dst_cmd and stream its stdout
// back. The remote streams data by calling chp_send_pipe_out_data
// against the initiator, which is itself just another RPC method every
// agent exposes — so the "server" in that call is whichever host
// started out as the initiator.
//
// Backpressure comes from a single capacity-1 channel per pipe: the
// remote's chp_send_pipe_out_data handler blocks until the initiator's
// local consumer has drained the previous chunk, so a slow local sink
// throttles the remote producer automatically.
package chp

import (
	"fmt"
	"sync"
	"time"

	"github.com/csudata/clup-agent/pkg/agentconn"
	"github.com/csudata/clup-agent/pkg/task"
	"github.com/csudata/clup-agent/pkg/taskid"
)

const (
	// initiatorRetention bounds how long a finished initiator-side
	// record is kept before GetState/GC can no longer see it.
	initiatorRetention = 24 * time.Hour
	// pipeOutRetention is longer because the remote-side worker
	// record is the only audit trail of what ran on that host.
	pipeOutRetention = 7 * 24 * time.Hour

	maxChunkSize = 512 * 1024

	progressFlushInterval = 10 * time.Second
)

type frameType string

const (
	frameData  frameType = "DATA"
	frameClose frameType = "CLOSE"
)

// pipeFrame is what crosses the capacity-1 receive channel.
type pipeFrame struct {
	Typ     frameType
	Payload []byte
	ErrCode int
	ErrMsg  string
}

// PipeTask is the initiator-side record: the local command consuming
// data produced by a command running on DstHost.
type PipeTask struct {
	ID      int64
	SrcCmd  string
	DstHost string
	DstCmd  string

	State           task.State
	ErrCode         int
	ErrMsg          string
	TransferredSize int64

	StartTime time.Time
	EndTime   *time.Time

	recvQ chan pipeFrame
}

// PipeOutTask is the responder-side record: the remote command this
// host runs on behalf of some other initiator, whose stdout is being
// streamed back to SrcHost.
type PipeOutTask struct {
	ID      int64
	SrcHost string
	DstCmd  string

	State   task.State
	ErrCode int
	ErrMsg  string

	StartTime time.Time
	EndTime   *time.Time
}

// Manager owns both the initiator and responder tables. A single
// Manager instance is wired into the RPC server so both roles share
// one process-wide view, matching __chp_cmd_dict/__chp_pipe_out_cmd_dict
// in the source.
type Manager struct {
	mu       sync.Mutex
	pipes    map[int64]*PipeTask
	pipeOuts map[int64]*PipeOutTask

	dial *agentconn.Dialer
}

func NewManager(dial *agentconn.Dialer) *Manager {
	return &Manager{
		pipes:    make(map[int64]*PipeTask),
		pipeOuts: make(map[int64]*PipeOutTask),
		dial:     dial,
	}
}

// CreateCHP starts srcCmd locally and arranges for dstCmd to run on
// dstHost with its stdout streamed into srcCmd's stdin. It returns the
// new pipe's id immediately; the transfer runs on a background
// goroutine.
func (m *Manager) CreateCHP(srcCmd, dstHost, dstCmd string) int64 {
	m.gcPipes()

	t := &PipeTask{
		ID:        taskid.New(),
		SrcCmd:    srcCmd,
		DstHost:   dstHost,
		DstCmd:    dstCmd,
		State:     task.Running,
		StartTime: time.Now(),
		recvQ:     make(chan pipeFrame, 1),
	}

	m.mu.Lock()
	m.pipes[t.ID] = t
	m.mu.Unlock()

	go m.runPipeCmd(t)
	return t.ID
}

// TransDir is the tar-pipe convenience wrapper: it recursively copies
// remoteDir on dstHost into localDir on this host.
func (m *Manager) TransDir(dstHost, remoteDir, localDir string) int64 {
	localCmd := fmt.Sprintf("tar -xf - -C %q", localDir)
	remoteCmd := fmt.Sprintf("tar -cf - -C %q .", remoteDir)
	return m.CreateCHP(localCmd, dstHost, remoteCmd)
}

// GetState returns a point-in-time snapshot of an initiator-side pipe.
func (m *Manager) GetState(id int64) (PipeTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.pipes[id]
	if !ok {
		return PipeTask{}, fmt.Errorf("chp %d not exists", id)
	}
	return *t, nil
}

// RemoveCHP drops a finished initiator-side record.
func (m *Manager) RemoveCHP(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.pipes[id]
	if !ok {
		return fmt.Errorf("chp %d not exists", id)
	}
	if t.State == task.Running {
		return fmt.Errorf("chp %d is running", id)
	}
	delete(m.pipes, id)
	return nil
}

func (m *Manager) gcPipes() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.pipes {
		if t.EndTime != nil && now.Sub(*t.EndTime) > initiatorRetention {
			delete(m.pipes, id)
		}
	}
}

func (m *Manager) gcPipeOuts() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.pipeOuts {
		if t.EndTime != nil && now.Sub(*t.EndTime) > pipeOutRetention {
			delete(m.pipeOuts, id)
		}
	}
}

func (m *Manager) finishPipe(t *PipeTask, state task.State, errCode int, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.State = state
	t.ErrCode = errCode
	t.ErrMsg = errMsg
	now := time.Now()
	t.EndTime = &now
}

func (m *Manager) finishPipeOut(t *PipeOutTask, state task.State, errCode int, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.State = state
	t.ErrCode = errCode
	t.ErrMsg = errMsg
	now := time.Now()
	t.EndTime = &now
}
