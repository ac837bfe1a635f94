// Package cft implements cross-host file transfer (CFT): walking a
// local directory tree and replicating it onto a remote agent's host,
// batching small files and metadata-only entries (directories,
// symlinks) into bulk RPC calls while streaming large files in
// fixed-size chunks.
//
// Grounded on original_source/lib/csu_file_trans.py. Entries accumulate
// into a batch request until either the batch holds more than 100
// entries (checked each time a directory or symlink is added) or the
// accumulated small-file payload
// reaches bigFileSize, at which point the batch is flushed with a
// single cft_batch_cmd RPC call. A file at or above bigFileSize bypasses
// batching entirely and streams over os_write_file in trans_block_size
// chunks, finished off with a set_file_attr call.
package cft

import (
	"fmt"
	"sync"
	"time"

	"github.com/csudata/clup-agent/pkg/agentconn"
	"github.com/csudata/clup-agent/pkg/task"
	"github.com/csudata/clup-agent/pkg/taskid"
)

const (
	retention = 24 * time.Hour

	defaultBigFileSize     = 768 * 1024
	defaultTransBlockSize  = 512 * 1024
	batchEntryCountFlush   = 100
	progressFlushInterval  = 10 * time.Second
	progressByteThreshold  = 5 * 1024 * 1024
)

// Task is one tree-copy's live record.
type Task struct {
	ID      int64
	SrcHost string
	SrcDir  string
	DstHost string
	DstDir  string

	BigFileSize    int64
	TransBlockSize int64

	State   task.State
	ErrMsg  string
	EndTime *time.Time

	TransferredBytes int64
	TransferredFiles int64

	StartTime time.Time
}

// Manager owns the in-memory table of CFT tasks.
type Manager struct {
	mu    sync.Mutex
	tasks map[int64]*Task

	dial *agentconn.Dialer
}

func NewManager(dial *agentconn.Dialer) *Manager {
	return &Manager{tasks: make(map[int64]*Task), dial: dial}
}

// CreateCFT starts copying srcDir on this host into dstDir on dstHost
// and returns the new task's id immediately.
func (m *Manager) CreateCFT(srcDir, dstHost, dstDir string, bigFileSize, transBlockSize int64) int64 {
	if bigFileSize <= 0 {
		bigFileSize = defaultBigFileSize
	}
	if transBlockSize <= 0 {
		transBlockSize = defaultTransBlockSize
	}

	m.gc()

	t := &Task{
		ID:             taskid.New(),
		SrcHost:        m.dial.MyIP(),
		SrcDir:         srcDir,
		DstHost:        dstHost,
		DstDir:         dstDir,
		BigFileSize:    bigFileSize,
		TransBlockSize: transBlockSize,
		State:          task.Running,
		StartTime:      time.Now(),
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()

	go m.run(t)
	return t.ID
}

// GetState returns a point-in-time copy of a task's record.
// TransferredBytes and TransferredFiles are filled in when the task
// finishes and read 0 while it is still running.
func (m *Manager) GetState(id int64) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("cft %d not exists", id)
	}
	return *t, nil
}

// Remove drops a finished task's record.
func (m *Manager) Remove(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("cft %d not exists", id)
	}
	if t.State == task.Running {
		return fmt.Errorf("cft %d is running", id)
	}
	delete(m.tasks, id)
	return nil
}

func (m *Manager) gc() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		if t.EndTime != nil && now.Sub(*t.EndTime) > retention {
			delete(m.tasks, id)
		}
	}
}

func (m *Manager) finish(t *Task, state task.State, errMsg string, transferredBytes, transferredFiles int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.State = state
	t.ErrMsg = errMsg
	t.TransferredBytes = transferredBytes
	t.TransferredFiles = transferredFiles
	now := time.Now()
	t.EndTime = &now
}
