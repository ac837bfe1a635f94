package cft

import (
	"fmt"
	"os"

	"github.com/csudata/clup-agent/pkg/rpcwire"
)

// progressSink lets sendBigFile report bytes streamed back into the
// walk's running total without taking a dependency on walkState's
// other fields.
type progressSink interface {
	addTransferred(n int64)
}

func (w *walkState) addTransferred(n int64) {
	w.transferred += n
	w.notifyProgress()
}

// sendBatch ships accumulated directory/symlink/small-file entries to
// dstHost in a single cft_batch_cmd call.
func (m *Manager) sendBatch(t *Task, entries []batchEntry) error {
	c, err := m.dial.Dial(t.DstHost)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.DstHost, err)
	}
	defer c.Close()

	errCode, errMsg, err := c.CallJSON("cft_batch_cmd", entries, nil)
	if err != nil {
		return fmt.Errorf("cft_batch_cmd: %w", err)
	}
	if errCode != 0 {
		return fmt.Errorf("cft_batch_cmd: %s", errMsg)
	}
	return nil
}

// sendBigFile streams localFile to remotePath on dstHost in
// trans_block_size chunks via repeated os_write_file calls, finishing
// with set_file_attr.
func (m *Manager) sendBigFile(t *Task, localFile, remotePath string, size int64, attr Attr, progress progressSink) error {
	c, err := m.dial.Dial(t.DstHost)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.DstHost, err)
	}
	defer c.Close()

	f, err := os.Open(localFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", localFile, err)
	}
	defer f.Close()

	buf := make([]byte, t.TransBlockSize)
	var offset int64
	for offset < size {
		n, err := f.Read(buf)
		if n > 0 {
			errCode, errMsg, callErr := c.CallJSON("os_write_file", OsWriteFileArgs{
				Path:   remotePath,
				Offset: offset,
				Data:   append([]byte(nil), buf[:n]...),
			}, nil)
			if callErr != nil {
				return fmt.Errorf("os_write_file: %w", callErr)
			}
			if errCode != 0 {
				return fmt.Errorf("os_write_file: %s", errMsg)
			}
			offset += int64(n)
			if progress != nil {
				progress.addTransferred(int64(n))
			}
		}
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return fmt.Errorf("read %s: %w", localFile, err)
		}
	}

	errCode, errMsg, err := c.CallJSON("set_file_attr", SetFileAttrArgs{Path: remotePath, Attr: attr}, nil)
	if err != nil {
		return fmt.Errorf("set_file_attr: %w", err)
	}
	if errCode != 0 {
		return fmt.Errorf("set_file_attr: %s", errMsg)
	}
	return nil
}

// OsWriteFileArgs is the wire argument for os_write_file: write Data at
// Offset into Path, which the receiving agent creates if absent.
type OsWriteFileArgs struct {
	Path   string
	Offset int64
	Data   []byte
}

// SetFileAttrArgs is the wire argument for set_file_attr.
type SetFileAttrArgs struct {
	Path string
	Attr Attr
}

// CreateCFTArgs is the wire argument for the top-level create_cft RPC
// method.
type CreateCFTArgs struct {
	SrcDir         string
	DstHost        string
	DstDir         string
	BigFileSize    int64
	TransBlockSize int64
}

func (m *Manager) HandleCreateCFT(args []byte) (int, []byte) {
	var a CreateCFTArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	id := m.CreateCFT(a.SrcDir, a.DstHost, a.DstDir, a.BigFileSize, a.TransBlockSize)
	out, _ := rpcwire.EncodeArgs(id)
	return 0, out
}

func (m *Manager) HandleGetCFTState(args []byte) (int, []byte) {
	var id int64
	if err := rpcwire.DecodeArgs(args, &id); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	t, err := m.GetState(id)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(cftStateView{
		State:            int(t.State),
		ErrMsg:           t.ErrMsg,
		TransferredBytes: t.TransferredBytes,
		TransferredFiles: t.TransferredFiles,
	})
	return 0, out
}

type cftStateView struct {
	State            int
	ErrMsg           string
	TransferredBytes int64
	TransferredFiles int64
}

func (m *Manager) HandleRemoveCFT(args []byte) (int, []byte) {
	var id int64
	if err := rpcwire.DecodeArgs(args, &id); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := m.Remove(id); err != nil {
		return errReply(1, err.Error())
	}
	return 0, nil
}

// HandleCftBatchCmd implements cft_batch_cmd: apply a batch of
// directory/symlink/small-file entries on this (the destination) host.
func (m *Manager) HandleCftBatchCmd(args []byte) (int, []byte) {
	var entries []batchEntry
	if err := rpcwire.DecodeArgs(args, &entries); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := applyBatch(entries); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

// HandleOsWriteFile implements os_write_file: write (or append to) the
// destination file for a streaming big-file transfer.
func (m *Manager) HandleOsWriteFile(args []byte) (int, []byte) {
	var a OsWriteFileArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := writeFileChunk(a.Path, a.Offset, a.Data); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

// HandleSetFileAttr implements set_file_attr: restore a streamed file's
// attributes once the whole byte stream has arrived.
func (m *Manager) HandleSetFileAttr(args []byte) (int, []byte) {
	var a SetFileAttrArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := applyAttr(a.Path, a.Attr, false); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func errReply(code int, msg string) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(msg)
	return code, out
}
