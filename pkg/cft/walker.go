package cft

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/csudata/clup-agent/pkg/logging"
	"github.com/csudata/clup-agent/pkg/task"
	"golang.org/x/sys/unix"
)

// batchEntry is one directory/symlink/small-file entry accumulated into
// a cft_batch_cmd call.
type batchEntry struct {
	Type   string // "dir", "link", "file"
	Path   string // destination path on the remote host
	LinkTo string
	Attr   Attr
	Data   []byte
}

func (m *Manager) run(t *Task) {
	log := logging.WithTaskID(t.ID)
	log.Info().Str("src_dir", t.SrcDir).Str("dst_host", t.DstHost).Str("dst_dir", t.DstDir).Msg("cft started")

	w := &walkState{m: m, t: t, lastProgress: time.Now()}
	err := w.scan(t.SrcDir)
	if err == nil {
		err = w.flush()
	}

	if err != nil {
		m.finish(t, task.Failed, err.Error(), w.transferred, w.fileCount)
		log.Error().Err(err).Msg("cft failed")
		return
	}
	m.finish(t, task.Success, "", w.transferred, w.fileCount)
	log.Info().Int64("bytes", w.transferred).Int64("files", w.fileCount).Msg("cft finished")
}

// walkState carries the batching and progress-reporting state for one
// run, separate from the Task record so GetState's lock scope stays
// small.
type walkState struct {
	m *Manager
	t *Task

	reqList       []batchEntry
	needTransSize int64

	transferred  int64
	fileCount    int64
	lastProgress time.Time
}

// scan recurses depth-first, mirroring the source's symlink-first
// classification: a symlink is never treated as the directory or file
// it may point to.
func (w *walkState) scan(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		st, err := statPath(path)
		if err != nil {
			return fmt.Errorf("lstat %s: %w", path, err)
		}

		remotePath := w.remotePath(path)
		switch {
		case st.Mode&unix.S_IFMT == unix.S_IFLNK:
			if err := w.processSymlink(path, remotePath, st); err != nil {
				return err
			}
		case st.Mode&unix.S_IFMT == unix.S_IFDIR:
			if err := w.processDir(remotePath, st); err != nil {
				return err
			}
			if err := w.scan(path); err != nil {
				return err
			}
		default:
			if err := w.processFile(path, remotePath, st); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walkState) remotePath(localPath string) string {
	rel := strings.TrimPrefix(localPath, w.t.SrcDir)
	return filepath.Join(w.t.DstDir, rel)
}

func (w *walkState) processSymlink(path, remotePath string, st unix.Stat_t) error {
	linkTo, err := os.Readlink(path)
	if err != nil {
		return fmt.Errorf("readlink %s: %w", path, err)
	}
	w.reqList = append(w.reqList, batchEntry{
		Type:   "link",
		Path:   remotePath,
		LinkTo: linkTo,
		Attr:   attrFromStat(&st),
	})
	return w.flushIfOverCount()
}

func (w *walkState) processDir(remotePath string, st unix.Stat_t) error {
	w.reqList = append(w.reqList, batchEntry{
		Type: "dir",
		Path: remotePath,
		Attr: attrFromStat(&st),
	})
	return w.flushIfOverCount()
}

func (w *walkState) flushIfOverCount() error {
	if len(w.reqList) > batchEntryCountFlush {
		if err := w.flush(); err != nil {
			return err
		}
		w.notifyProgress()
	}
	return nil
}

func (w *walkState) processFile(path, remotePath string, st unix.Stat_t) error {
	attr := attrFromStat(&st)
	size := st.Size
	w.fileCount++

	if size >= w.t.BigFileSize {
		if err := w.flush(); err != nil {
			return err
		}
		w.notifyProgress()
		if err := w.m.sendBigFile(w.t, path, remotePath, size, attr, w); err != nil {
			return err
		}
		w.notifyProgress()
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	w.transferred += int64(len(data))
	w.reqList = append(w.reqList, batchEntry{
		Type: "file",
		Path: remotePath,
		Attr: attr,
		Data: data,
	})
	w.needTransSize += size
	if w.needTransSize >= w.t.BigFileSize {
		if err := w.flush(); err != nil {
			return err
		}
		w.notifyProgress()
	}
	return nil
}

func (w *walkState) flush() error {
	if len(w.reqList) == 0 {
		return nil
	}
	if err := w.m.sendBatch(w.t, w.reqList); err != nil {
		return err
	}
	w.needTransSize = 0
	w.reqList = nil
	return nil
}

func (w *walkState) notifyProgress() {
	if time.Since(w.lastProgress) < progressFlushInterval {
		return
	}
	w.lastProgress = time.Now()
	logging.WithTaskID(w.t.ID).Debug().
		Int64("files", w.fileCount).
		Int64("bytes", w.transferred).
		Msg("cft progress")
}
